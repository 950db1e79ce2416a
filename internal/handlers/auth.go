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
	"github.com/nabookma/bookstore/internal/service/token"
)

type AuthHandler struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	Producer      *mykafka.Producer
}

func CreateCookie(name string, value string, path string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

type registrationRequest struct {
	Email       string `json:"customer_email"`
	Password    string `json:"password"`
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

func (h *AuthHandler) Register(c echo.Context) error {
	var req registrationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "customer_email and password are required")
	}

	var existing models.Customer
	result := h.DB.Where("customer_email = ?", req.Email).First(&existing)
	if result.Error == nil {
		return echo.NewHTTPError(http.StatusConflict, "customer already exists")
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, result.Error.Error())
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	customer := models.Customer{
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleCustomer,
		Name:         req.Name,
		Surname:      req.Surname,
		Patronymic:   req.Patronymic,
		BirthDate:    parseDate(req.BirthDate),
		PhoneNumber:  req.PhoneNumber,
		City:         req.City,
		Street:       req.Street,
		ZipCode:      req.ZipCode,
		PhotoURL:     req.PhotoURL,
	}
	if err := h.DB.Create(&customer).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":       "customer_registered",
		"customerID": customer.ID,
		"email":      customer.Email,
	})

	return c.JSON(http.StatusCreated, customer)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"customer_email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var customer models.Customer
	if err := h.DB.Where("customer_email = ?", req.Email).First(&customer).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}

	if !hash.CheckPassword(customer.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}

	accessToken, err := token.SignAccessToken(customer.ID, customer.Role, h.JWTSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create access token")
	}

	refreshToken, err := token.SignRefreshToken(customer.ID, customer.Role, h.RefreshSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create refresh token")
	}
	if err := token.SaveRefreshToken(h.DB, refreshToken, customer.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.SetCookie(CreateCookie("accessToken", accessToken, "/", time.Now().Add(token.AccessTTL)))
	c.SetCookie(CreateCookie("refreshToken", refreshToken, "/", time.Now().Add(token.RefreshTTL)))

	h.publish(c, map[string]any{
		"type":       "customer_logged_in",
		"customerID": customer.ID,
		"email":      customer.Email,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"customer_id":   customer.ID,
		"is_admin":      customer.Role == models.RoleAdmin,
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	refreshCookie, err := c.Cookie("refreshToken")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh token missing")
	}

	result := h.DB.Model(&models.RefreshToken{}).
		Where("token = ?", refreshCookie.Value).
		Update("revoked", true)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, result.Error.Error())
	}

	expired := time.Now().Add(-1 * time.Hour)
	c.SetCookie(CreateCookie("accessToken", "", "/", expired))
	c.SetCookie(CreateCookie("refreshToken", "", "/", expired))

	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicCustomerEvents, fmt.Sprint(event["customerID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
