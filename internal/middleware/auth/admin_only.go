package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/nabookma/bookstore/internal/handlers"
	"github.com/nabookma/bookstore/internal/models"
	"github.com/nabookma/bookstore/internal/service/token"
)

func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		newAccess, newRefresh, role, err := m.CheckCookie(c)
		if err != nil {
			return err
		}

		if role != models.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin only")
		}

		if newRefresh != "" {
			c.SetCookie(handlers.CreateCookie("accessToken", newAccess, "/", time.Now().Add(token.AccessTTL)))
			c.SetCookie(handlers.CreateCookie("refreshToken", newRefresh, "/", time.Now().Add(token.RefreshTTL)))
		}

		parsed, _ := jwt.Parse(newAccess, func(j *jwt.Token) (interface{}, error) { return m.Tokens.JWTSecret, nil })
		setUserContext(c, parsed.Claims.(jwt.MapClaims))
		return next(c)
	}
}
