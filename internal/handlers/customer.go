package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/nabookma/bookstore/internal/hash"
	"github.com/nabookma/bookstore/internal/models"
	"github.com/nabookma/bookstore/internal/mykafka"
)

var customerSortColumns = map[string]bool{
	"customer_id":    true,
	"customer_email": true,
	"cust_name":      true,
	"cust_surname":   true,
	"birth_date":     true,
	"city":           true,
}

type CustomerHandler struct {
	DB        *gorm.DB
	JWTSecret []byte
	Producer  *mykafka.Producer
}

func (h *CustomerHandler) GetCustomers(c echo.Context) error {
	order, err := OrderClause(c.QueryParam("sortBy"), c.QueryParam("sortOrder"), customerSortColumns, "customer_email")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var customers []models.Customer
	if err := h.DB.WithContext(c.Request().Context()).Order(order).Find(&customers).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, customers)
}

func (h *CustomerHandler) GetCustomerByEmail(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	var customer models.Customer
	if err := h.DB.WithContext(c.Request().Context()).Where("customer_email = ?", email).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "customer not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, customer)
}

func (h *CustomerHandler) GetProfile(c echo.Context) error {
	customerID, err := GetCustomerID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var customer models.Customer
	if err := h.DB.WithContext(c.Request().Context()).First(&customer, customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "customer not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, customer)
}

func (h *CustomerHandler) UpdateProfile(c echo.Context) error {
	customerID, err := GetCustomerID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		Name        string `json:"cust_name"`
		Surname     string `json:"cust_surname"`
		Patronymic  string `json:"cust_patronymic"`
		BirthDate   string `json:"birth_date"`
		PhoneNumber string `json:"phone_number"`
		City        string `json:"city"`
		Street      string `json:"street"`
		ZipCode     string `json:"zip_code"`
		PhotoURL    string `json:"customer_photo_url"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var customer models.Customer
	if err := h.DB.WithContext(c.Request().Context()).First(&customer, customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "customer not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	customer.Name = req.Name
	customer.Surname = req.Surname
	customer.Patronymic = req.Patronymic
	customer.BirthDate = parseDate(req.BirthDate)
	customer.PhoneNumber = req.PhoneNumber
	customer.City = req.City
	customer.Street = req.Street
	customer.ZipCode = req.ZipCode
	customer.PhotoURL = req.PhotoURL

	if err := h.DB.WithContext(c.Request().Context()).Save(&customer).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":       "profile_updated",
		"customerID": customer.ID,
	})

	return c.JSON(http.StatusOK, customer)
}

func (h *CustomerHandler) ChangePassword(c echo.Context) error {
	customerID, err := GetCustomerID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "password is required")
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	result := h.DB.WithContext(c.Request().Context()).
		Model(&models.Customer{}).
		Where("customer_id = ?", customerID).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "customer not found")
	}

	h.publish(c, map[string]any{
		"type":       "password_changed",
		"customerID": customerID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

func (h *CustomerHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicCustomerEvents, fmt.Sprint(event["customerID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
