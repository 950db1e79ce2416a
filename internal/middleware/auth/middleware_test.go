package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nabookma/bookstore/internal/handlers"
	"github.com/nabookma/bookstore/internal/models"
	"github.com/nabookma/bookstore/internal/service/token"
)

var (
	testJWTSecret     = []byte("test-jwt-secret")
	testRefreshSecret = []byte("test-refresh-secret")
)

func newMiddleware(t *testing.T) *Middleware {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RefreshToken{}))

	return &Middleware{Tokens: &token.Service{DB: db, JWTSecret: testJWTSecret, RefreshSecret: testRefreshSecret}}
}

func signExpiredAccess(t *testing.T, customerID uint, role string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  customerID,
		"role": role,
		"exp":  time.Now().Add(-time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTSecret)
	require.NoError(t, err)
	return signed
}

func newAuthedContext(t *testing.T, access, refresh string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/get-basket", nil)
	if access != "" {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: access, Path: "/"})
	}
	if refresh != "" {
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh, Path: "/"})
	}
	rec := httptest.NewRecorder()
	return rec, echo.New().NewContext(req, rec)
}

// The first request after access expiry must succeed in one round trip: the
// middleware rotates the pair and the handler sees the rotated identity, not
// the stale cookie still on the request.
func TestRequireLoginRotatesExpiredAccess(t *testing.T) {
	m := newMiddleware(t)

	refresh, err := token.SignRefreshToken(7, models.RoleCustomer, testRefreshSecret)
	require.NoError(t, err)
	require.NoError(t, token.SaveRefreshToken(m.Tokens.DB, refresh, 7))

	expired := signExpiredAccess(t, 7, models.RoleCustomer)
	rec, c := newAuthedContext(t, expired, refresh)

	next := m.RequireLogin(func(c echo.Context) error {
		id, role, err := handlers.GetIdentity(c, testJWTSecret)
		require.NoError(t, err)
		require.EqualValues(t, 7, id)
		require.Equal(t, models.RoleCustomer, role)
		return c.JSON(http.StatusOK, echo.Map{"customer_id": id})
	})
	require.NoError(t, next(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// fresh pair in the response
	cookies := map[string]string{}
	for _, ck := range rec.Result().Cookies() {
		cookies[ck.Name] = ck.Value
	}
	require.NotEmpty(t, cookies["accessToken"])
	require.NotEqual(t, expired, cookies["accessToken"])
	require.NotEmpty(t, cookies["refreshToken"])
	require.NotEqual(t, refresh, cookies["refreshToken"])

	// the spent refresh token was revoked during the same request
	var stored models.RefreshToken
	require.NoError(t, m.Tokens.DB.Where("token = ?", refresh).First(&stored).Error)
	require.True(t, stored.Revoked)
}

func TestRequireLoginValidAccess(t *testing.T) {
	m := newMiddleware(t)

	access, err := token.SignAccessToken(7, models.RoleCustomer, testJWTSecret)
	require.NoError(t, err)
	rec, c := newAuthedContext(t, access, "")

	next := m.RequireLogin(func(c echo.Context) error {
		id, _, err := handlers.GetIdentity(c, testJWTSecret)
		require.NoError(t, err)
		require.EqualValues(t, 7, id)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, next(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// no rotation, no new cookies
	require.Empty(t, rec.Result().Cookies())
}

func TestRequireLoginNoCookies(t *testing.T) {
	m := newMiddleware(t)
	_, c := newAuthedContext(t, "", "")

	err := m.RequireLogin(func(c echo.Context) error { return nil })(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireAdminRejectsCustomer(t *testing.T) {
	m := newMiddleware(t)

	access, err := token.SignAccessToken(7, models.RoleCustomer, testJWTSecret)
	require.NoError(t, err)
	_, c := newAuthedContext(t, access, "")

	err = m.RequireAdmin(func(c echo.Context) error { return nil })(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	m := newMiddleware(t)

	access, err := token.SignAccessToken(1, models.RoleAdmin, testJWTSecret)
	require.NoError(t, err)
	rec, c := newAuthedContext(t, access, "")

	require.NoError(t, m.RequireAdmin(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c))
	require.Equal(t, http.StatusOK, rec.Code)
}
