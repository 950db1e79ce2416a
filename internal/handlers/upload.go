package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nabookma/bookstore/internal/service/storage"
)

const maxImageSize = 10 << 20 // 10 MiB

type UploadHandler struct {
	Store *storage.ImageStore
}

// UploadImage stores a multipart image under the "images" prefix and returns
// its public URL. Callers persist the URL on the book or customer themselves.
func (h *UploadHandler) UploadImage(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "image storage is not configured")
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file is required")
	}
	if fileHeader.Size > maxImageSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image exceeds 10 MiB")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	switch contentType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "only jpeg, png and webp images are accepted")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer file.Close()

	url, err := h.Store.Upload(c.Request().Context(), "images/", fileHeader.Filename, file, contentType)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"url": url})
}
