package auth

import (
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/nabookma/bookstore/internal/service/token"
)

type Middleware struct {
	Tokens *token.Service
}

// CheckCookie returns a valid access token for the request, rotating via the
// refresh cookie when the access token is missing or expired. newRefresh is
// empty when no rotation happened.
func (m *Middleware) CheckCookie(c echo.Context) (newAccess, newRefresh, role string, err error) {
	asCookie, err := c.Cookie("accessToken")
	if err == nil {
		parsed, err := jwt.Parse(asCookie.Value, func(t *jwt.Token) (interface{}, error) {
			return m.Tokens.JWTSecret, nil
		})
		if err == nil && parsed.Valid {
			claims := parsed.Claims.(jwt.MapClaims)
			role, ok := claims["role"].(string)
			if !ok {
				return "", "", "", echo.NewHTTPError(http.StatusForbidden, "missing role claim")
			}
			setUserContext(c, claims)
			return asCookie.Value, "", role, nil
		}
		if !errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", "", echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
	}

	rfCookie, err := c.Cookie("refreshToken")
	if err != nil {
		return "", "", "", echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}
	newAccess, newRefresh, claims, err := m.Tokens.Rotate(rfCookie.Value)
	if err != nil {
		return "", "", "", echo.NewHTTPError(http.StatusUnauthorized, "cannot rotate token: "+err.Error())
	}

	role, ok := claims["role"].(string)
	if !ok {
		return "", "", "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	return newAccess, newRefresh, role, nil
}

func setUserContext(c echo.Context, claims jwt.MapClaims) {
	c.Set("customerID", uint(claims["sub"].(float64)))
	c.Set("role", claims["role"].(string))
}
