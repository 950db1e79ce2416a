package handlers

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// GetCustomerID extracts the authenticated customer from the access cookie.
func GetCustomerID(c echo.Context, jwtSecret []byte) (uint, error) {
	id, _, err := GetIdentity(c, jwtSecret)
	return id, err
}

// GetIdentity returns the authenticated customer id and role. The auth
// middleware stores both on the context after validating (and possibly
// rotating) the cookie pair; that rotated identity wins over the request's
// cookie, which still carries the pre-rotation access token.
func GetIdentity(c echo.Context, jwtSecret []byte) (uint, string, error) {
	if id, ok := c.Get("customerID").(uint); ok {
		role, _ := c.Get("role").(string)
		return id, role, nil
	}

	cookie, err := c.Cookie("accessToken")
	if err != nil {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "missing auth cookie")
	}
	tokenString := cookie.Value
	if tokenString == "" {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "empty token")
	}

	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token: "+err.Error())
	}
	if !parsed.Valid {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	subRaw, ok := claims["sub"].(float64)
	if !ok {
		return 0, "", echo.NewHTTPError(http.StatusBadRequest, "invalid subject claim")
	}
	role, _ := claims["role"].(string)

	return uint(subRaw), role, nil
}
