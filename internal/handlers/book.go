package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/nabookma/bookstore/internal/logging"
	"github.com/nabookma/bookstore/internal/models"
	"github.com/nabookma/bookstore/internal/mykafka"
	"github.com/nabookma/bookstore/internal/service/search"
	"github.com/nabookma/bookstore/internal/service/storage"
	"github.com/nabookma/bookstore/internal/util"
)

var bookSortColumns = map[string]bool{
	"book_id":          true,
	"title":            true,
	"author_name":      true,
	"publisher_name":   true,
	"genre":            true,
	"category":         true,
	"language":         true,
	"price":            true,
	"rating":           true,
	"pages":            true,
	"publication_date": true,
}

type BookHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	ESIndex  string
	Store    *storage.ImageStore
}

type bookRequest struct {
	Title           string  `json:"title"`
	AuthorName      string  `json:"author_name"`
	PublisherName   string  `json:"publisher_name"`
	Genre           string  `json:"genre"`
	Category        string  `json:"category"`
	Language        string  `json:"language"`
	Price           float64 `json:"price"`
	Rating          int     `json:"rating"`
	Pages           int     `json:"pages"`
	PublicationDate string  `json:"publication_date"`
	Summary         string  `json:"summary"`
	PhotoURL        string  `json:"book_photo_url"`
}

func (r *bookRequest) apply(book *models.Book) {
	book.Title = r.Title
	book.AuthorName = r.AuthorName
	book.PublisherName = r.PublisherName
	book.Genre = r.Genre
	book.Category = r.Category
	book.Language = r.Language
	book.Price = r.Price
	book.Rating = r.Rating
	book.Pages = r.Pages
	book.PublicationDate = parseDate(r.PublicationDate)
	book.Summary = r.Summary
	book.PhotoURL = r.PhotoURL
}

func (h *BookHandler) GetBooks(c echo.Context) error {
	order, err := OrderClause(c.QueryParam("sortBy"), c.QueryParam("sortOrder"), bookSortColumns, "title")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	q := h.DB.WithContext(c.Request().Context()).Model(&models.Book{})
	if lang := c.QueryParam("language"); lang != "" && lang != "all" {
		q = q.Where("language = ?", lang)
	}
	if cat := c.QueryParam("category"); cat != "" && cat != "all" {
		q = q.Where("category = ?", cat)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var books []models.Book
	if err := q.Order(order).Offset(offset).Limit(limit).Find(&books).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": books,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *BookHandler) GetBookByID(c echo.Context) error {
	id, err := strconv.Atoi(c.QueryParam("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var book models.Book
	if err := h.DB.WithContext(c.Request().Context()).First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "book not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, book)
}

func (h *BookHandler) AddBook(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Title == "" || req.AuthorName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title and author_name are required")
	}
	if req.Price < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	if req.Rating < 0 || req.Rating > 5 {
		return echo.NewHTTPError(http.StatusBadRequest, "rating must be between 0 and 5")
	}

	var book models.Book
	req.apply(&book)

	if err := h.DB.WithContext(c.Request().Context()).Create(&book).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, &book)
	h.publish(c, map[string]any{
		"type":   "book_created",
		"bookID": book.ID,
		"title":  book.Title,
	})

	return c.JSON(http.StatusCreated, book)
}

func (h *BookHandler) UpdateBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Price < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	if req.Rating < 0 || req.Rating > 5 {
		return echo.NewHTTPError(http.StatusBadRequest, "rating must be between 0 and 5")
	}

	var book models.Book
	if err := h.DB.WithContext(c.Request().Context()).First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "book not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	oldPhotoURL := book.PhotoURL
	req.apply(&book)

	if err := h.DB.WithContext(c.Request().Context()).Save(&book).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if oldPhotoURL != book.PhotoURL {
		h.removeImage(c, oldPhotoURL)
	}
	h.index(c, &book)
	h.publish(c, map[string]any{
		"type":   "book_updated",
		"bookID": book.ID,
		"title":  book.Title,
	})

	return c.JSON(http.StatusOK, book)
}

func (h *BookHandler) DeleteBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var book models.Book
	hadRow := h.DB.WithContext(c.Request().Context()).First(&book, id).Error == nil

	if err := h.DB.WithContext(c.Request().Context()).Delete(&models.Book{}, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if hadRow {
		h.removeImage(c, book.PhotoURL)
	}

	if h.ES != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := search.DeleteBook(ctx, h.ES, h.ESIndex, uint(id)); err != nil {
			logging.FromContext(c.Request().Context()).Warn("es delete failed", "bookID", id, "error", err)
		}
	}
	h.publish(c, map[string]any{
		"type":   "book_deleted",
		"bookID": id,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *BookHandler) SearchBooks(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not configured")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, limit := util.Calculate(page, size)

	total, books, err := search.Search(c.Request().Context(), h.ES, h.ESIndex, q, from, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "books": books})
}

func (h *BookHandler) index(c echo.Context, book *models.Book) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexBook(ctx, h.ES, h.ESIndex, book); err != nil {
		logging.FromContext(c.Request().Context()).Warn("es index failed", "bookID", book.ID, "error", err)
	}
}

// removeImage drops an orphaned cover from S3. External URLs and foreign
// buckets map to an empty key and are left alone.
func (h *BookHandler) removeImage(c echo.Context, url string) {
	if h.Store == nil || url == "" {
		return
	}
	key := h.Store.KeyFromURL(url)
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Store.Delete(ctx, key); err != nil {
		logging.FromContext(c.Request().Context()).Warn("s3 delete failed", "key", key, "error", err)
	}
}

func (h *BookHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicBookEvents, fmt.Sprint(event["bookID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
