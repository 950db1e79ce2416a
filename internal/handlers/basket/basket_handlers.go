package basket

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/nabookma/bookstore/internal/handlers"
	"github.com/nabookma/bookstore/internal/models"
	"github.com/nabookma/bookstore/internal/mykafka"
)

type BasketHandler struct {
	DB        *gorm.DB
	Producer  *mykafka.Producer
	JWTSecret []byte
}

func (h *BasketHandler) GetBasket(c echo.Context) error {
	customerID, err := handlers.GetCustomerID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var items []models.BasketItem
	if err := h.DB.WithContext(c.Request().Context()).Where("customer_id = ?", customerID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, items)
}

// AddToBasket is an upsert: a repeated add bumps the existing line instead of
// inserting a duplicate row.
func (h *BasketHandler) AddToBasket(c echo.Context) error {
	customerID, err := handlers.GetCustomerID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		BookID uint `json:"book_id"`
		Amount uint `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.BookID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "book_id is required")
	}
	if req.Amount < 1 {
		req.Amount = 1
	}

	var book models.Book
	if err := h.DB.WithContext(c.Request().Context()).First(&book, req.BookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "book not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var item models.BasketItem
	tx := h.DB.WithContext(c.Request().Context()).
		Where("customer_id = ? AND book_id = ?", customerID, req.BookID).
		First(&item)
	if tx.Error == nil {
		item.Amount += req.Amount
		if err := h.DB.WithContext(c.Request().Context()).Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		h.publish(c, customerID, map[string]any{
			"type":       "basket_item_added",
			"customerID": customerID,
			"bookID":     req.BookID,
			"amount":     item.Amount,
		})
		return c.JSON(http.StatusOK, item)
	}
	if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, tx.Error.Error())
	}

	newItem := models.BasketItem{
		CustomerID: customerID,
		BookID:     req.BookID,
		Amount:     req.Amount,
	}
	if err := h.DB.WithContext(c.Request().Context()).Create(&newItem).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.publish(c, customerID, map[string]any{
		"type":       "basket_item_added",
		"customerID": customerID,
		"bookID":     req.BookID,
		"amount":     newItem.Amount,
	})
	return c.JSON(http.StatusCreated, newItem)
}

// DecrementFromBasket drops the amount by one; at amount 1 the line is removed.
func (h *BasketHandler) DecrementFromBasket(c echo.Context) error {
	customerID, err := handlers.GetCustomerID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		BookID uint `json:"book_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.BookID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "book_id is required")
	}

	var item models.BasketItem
	if err := h.DB.WithContext(c.Request().Context()).
		Where("customer_id = ? AND book_id = ?", customerID, req.BookID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "basket line not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if item.Amount > 1 {
		item.Amount -= 1
		if err := h.DB.WithContext(c.Request().Context()).Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		h.publish(c, customerID, map[string]any{
			"type":       "basket_item_decremented",
			"customerID": customerID,
			"bookID":     req.BookID,
			"amount":     item.Amount,
		})
		return c.JSON(http.StatusOK, item)
	}

	if err := h.DB.WithContext(c.Request().Context()).Delete(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.publish(c, customerID, map[string]any{
		"type":       "basket_item_removed",
		"customerID": customerID,
		"bookID":     req.BookID,
	})
	return c.JSON(http.StatusOK, echo.Map{"deleted_item": item.ID})
}

// DeleteFromBasket removes the whole line; deleting an absent line is not an error.
func (h *BasketHandler) DeleteFromBasket(c echo.Context) error {
	customerID, err := handlers.GetCustomerID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("bookId"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.DB.WithContext(c.Request().Context()).
		Where("id = ? AND customer_id = ?", id, customerID).
		Delete(&models.BasketItem{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var remaining []models.BasketItem
	if err := h.DB.WithContext(c.Request().Context()).Where("customer_id = ?", customerID).Find(&remaining).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, customerID, map[string]any{
		"type":       "basket_item_removed",
		"customerID": customerID,
		"itemID":     id,
	})
	return c.JSON(http.StatusOK, remaining)
}
