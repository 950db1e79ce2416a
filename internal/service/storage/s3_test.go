package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyFromURL(t *testing.T) {
	s := &ImageStore{bucket: "nabookma-images", region: "eu-central-1"}

	key := s.KeyFromURL("https://nabookma-images.s3.eu-central-1.amazonaws.com/images/abc-123.jpg")
	require.Equal(t, "images/abc-123.jpg", key)

	// foreign bucket
	require.Empty(t, s.KeyFromURL("https://other-bucket.s3.eu-central-1.amazonaws.com/images/abc.jpg"))
	// external image
	require.Empty(t, s.KeyFromURL("https://example.com/cover.png"))
	require.Empty(t, s.KeyFromURL(""))
}
