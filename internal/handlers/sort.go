package handlers

import (
	"fmt"
	"strings"
)

// OrderClause builds an ORDER BY fragment from caller-supplied sort params.
// Column names are matched against a whitelist, never interpolated raw.
func OrderClause(sortBy, sortOrder string, allowed map[string]bool, defaultColumn string) (string, error) {
	if sortBy == "" {
		sortBy = defaultColumn
	}
	if !allowed[sortBy] {
		return "", fmt.Errorf("unknown sort column %q", sortBy)
	}

	switch strings.ToUpper(sortOrder) {
	case "", "ASC":
		return sortBy + " ASC", nil
	case "DESC":
		return sortBy + " DESC", nil
	default:
		return "", fmt.Errorf("sort order must be ASC or DESC")
	}
}
