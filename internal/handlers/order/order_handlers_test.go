package order

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nabookma/bookstore/internal/models"
	"github.com/nabookma/bookstore/internal/mykafka"
	"github.com/nabookma/bookstore/internal/service/token"
)

var testJWTSecret = []byte("test-jwt-secret")

func newOrderEnv(t *testing.T) (*OrderHandler, models.Customer, []models.Book) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Book{}, &models.Customer{}, &models.BasketItem{},
		&models.Check{}, &models.Purchase{},
	))

	customer := models.Customer{Email: "reader@example.com", PasswordHash: "x", Role: models.RoleCustomer, Name: "Anna", Surname: "Ivanova"}
	require.NoError(t, db.Create(&customer).Error)

	books := []models.Book{
		{Title: "Kobzar", AuthorName: "Taras Shevchenko", Price: 250},
		{Title: "Tiger Catchers", AuthorName: "Ivan Bahrianyi", Price: 420},
	}
	for i := range books {
		require.NoError(t, db.Create(&books[i]).Error)
	}

	return &OrderHandler{DB: db, Producer: &mykafka.Producer{}, JWTSecret: testJWTSecret}, customer, books
}

func doJSONRequest(t *testing.T, method, target string, payload any, customerID uint, role string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if customerID != 0 {
		accessToken, err := token.SignAccessToken(customerID, role, testJWTSecret)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: accessToken, Path: "/", Expires: time.Now().Add(token.AccessTTL)})
	}

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	return rec, c
}

func TestPlaceOrder(t *testing.T) {
	h, customer, books := newOrderEnv(t)

	require.NoError(t, h.DB.Create(&models.BasketItem{CustomerID: customer.ID, BookID: books[0].ID, Amount: 2}).Error)
	require.NoError(t, h.DB.Create(&models.BasketItem{CustomerID: customer.ID, BookID: books[1].ID, Amount: 1}).Error)

	rec, c := doJSONRequest(t, http.MethodPost, "/place-order", nil, customer.ID, models.RoleCustomer)
	require.NoError(t, h.PlaceOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotZero(t, resp.Check.CheckNumber)
	require.Equal(t, customer.ID, resp.Check.CustomerID)
	require.Equal(t, models.StatusPending, resp.Check.Status)
	require.InDelta(t, 2*250.0+420.0, resp.Check.TotalPrice, 0.001)
	require.Len(t, resp.Purchases, 2)

	// prices are captured at checkout time
	for _, p := range resp.Purchases {
		switch p.BookID {
		case books[0].ID:
			require.InDelta(t, 250.0, p.SellingPrice, 0.001)
			require.EqualValues(t, 2, p.Quantity)
		case books[1].ID:
			require.InDelta(t, 420.0, p.SellingPrice, 0.001)
			require.EqualValues(t, 1, p.Quantity)
		default:
			t.Fatalf("unexpected book %d in purchases", p.BookID)
		}
	}

	var basketCount int64
	require.NoError(t, h.DB.Model(&models.BasketItem{}).Where("customer_id = ?", customer.ID).Count(&basketCount).Error)
	require.EqualValues(t, 0, basketCount)
}

func TestPlaceOrderEmptyBasket(t *testing.T) {
	h, customer, _ := newOrderEnv(t)

	_, c := doJSONRequest(t, http.MethodPost, "/place-order", nil, customer.ID, models.RoleCustomer)
	err := h.PlaceOrder(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)

	// nothing created on failure
	var checkCount int64
	require.NoError(t, h.DB.Model(&models.Check{}).Count(&checkCount).Error)
	require.EqualValues(t, 0, checkCount)
}

func TestPlaceOrderRollsBackWhenBookGone(t *testing.T) {
	h, customer, books := newOrderEnv(t)

	require.NoError(t, h.DB.Create(&models.BasketItem{CustomerID: customer.ID, BookID: books[0].ID, Amount: 1}).Error)
	require.NoError(t, h.DB.Create(&models.BasketItem{CustomerID: customer.ID, BookID: books[1].ID, Amount: 2}).Error)

	// the second book vanishes between basket add and checkout
	require.NoError(t, h.DB.Delete(&models.Book{}, books[1].ID).Error)

	_, c := doJSONRequest(t, http.MethodPost, "/place-order", nil, customer.ID, models.RoleCustomer)
	err := h.PlaceOrder(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)

	// the check and the first line's purchase were written inside the
	// transaction before the failure; all of it must be rolled back
	var checkCount, purchaseCount, basketCount int64
	require.NoError(t, h.DB.Model(&models.Check{}).Count(&checkCount).Error)
	require.NoError(t, h.DB.Model(&models.Purchase{}).Count(&purchaseCount).Error)
	require.NoError(t, h.DB.Model(&models.BasketItem{}).Where("customer_id = ?", customer.ID).Count(&basketCount).Error)
	require.EqualValues(t, 0, checkCount)
	require.EqualValues(t, 0, purchaseCount)
	require.EqualValues(t, 2, basketCount)
}

func TestPlaceOrderKeepsHistoricalPrice(t *testing.T) {
	h, customer, books := newOrderEnv(t)
	require.NoError(t, h.DB.Create(&models.BasketItem{CustomerID: customer.ID, BookID: books[0].ID, Amount: 1}).Error)

	rec, c := doJSONRequest(t, http.MethodPost, "/place-order", nil, customer.ID, models.RoleCustomer)
	require.NoError(t, h.PlaceOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	// a later price change must not rewrite the receipt
	require.NoError(t, h.DB.Model(&models.Book{}).Where("book_id = ?", books[0].ID).Update("price", 999).Error)

	var purchase models.Purchase
	require.NoError(t, h.DB.Where("book_id = ?", books[0].ID).First(&purchase).Error)
	require.InDelta(t, 250.0, purchase.SellingPrice, 0.001)
}

func placeTestOrder(t *testing.T, h *OrderHandler, customer models.Customer, book models.Book) models.Check {
	t.Helper()
	require.NoError(t, h.DB.Create(&models.BasketItem{CustomerID: customer.ID, BookID: book.ID, Amount: 1}).Error)
	rec, c := doJSONRequest(t, http.MethodPost, "/place-order", nil, customer.ID, models.RoleCustomer)
	require.NoError(t, h.PlaceOrder(c))

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Check
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	h, customer, books := newOrderEnv(t)
	check := placeTestOrder(t, h, customer, books[0])

	rec, c := doJSONRequest(t, http.MethodPut, "/update-status?check_number=1&status=processing", nil, customer.ID, models.RoleAdmin)
	require.NoError(t, h.UpdateStatus(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Check
	require.NoError(t, h.DB.First(&updated, check.CheckNumber).Error)
	require.Equal(t, models.StatusProcessing, updated.Status)

	// going back to pending is refused
	_, cBack := doJSONRequest(t, http.MethodPut, "/update-status?check_number=1&status=pending", nil, customer.ID, models.RoleAdmin)
	err := h.UpdateStatus(cBack)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)

	_, cDone := doJSONRequest(t, http.MethodPut, "/update-status?check_number=1&status=completed", nil, customer.ID, models.RoleAdmin)
	require.NoError(t, h.UpdateStatus(cDone))
}

func TestUpdateStatusUnknownValue(t *testing.T) {
	h, customer, books := newOrderEnv(t)
	placeTestOrder(t, h, customer, books[0])

	_, c := doJSONRequest(t, http.MethodPut, "/update-status?check_number=1&status=shipped", nil, customer.ID, models.RoleAdmin)
	err := h.UpdateStatus(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestCancelCheckOnlyPending(t *testing.T) {
	h, customer, books := newOrderEnv(t)
	check := placeTestOrder(t, h, customer, books[0])

	rec, c := doJSONRequest(t, http.MethodDelete, "/delete-check/1", nil, customer.ID, models.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.CancelCheck(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var checkCount, purchaseCount int64
	require.NoError(t, h.DB.Model(&models.Check{}).Count(&checkCount).Error)
	require.NoError(t, h.DB.Model(&models.Purchase{}).Where("check_number = ?", check.CheckNumber).Count(&purchaseCount).Error)
	require.EqualValues(t, 0, checkCount)
	require.EqualValues(t, 0, purchaseCount)
}

func TestCancelCheckRefusedAfterProcessing(t *testing.T) {
	h, customer, books := newOrderEnv(t)
	check := placeTestOrder(t, h, customer, books[0])
	require.NoError(t, h.DB.Model(&models.Check{}).Where("check_number = ?", check.CheckNumber).Update("status", models.StatusProcessing).Error)

	_, c := doJSONRequest(t, http.MethodDelete, "/delete-check/1", nil, customer.ID, models.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("1")
	err := h.CancelCheck(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)
}

func TestGetChecksByCustomerScoped(t *testing.T) {
	h, customer, books := newOrderEnv(t)
	placeTestOrder(t, h, customer, books[0])

	other := models.Customer{Email: "other@example.com", PasswordHash: "x", Role: models.RoleCustomer}
	require.NoError(t, h.DB.Create(&other).Error)
	placeTestOrder(t, h, other, books[1])

	rec, c := doJSONRequest(t, http.MethodGet, "/get-checks-by-customer", nil, customer.ID, models.RoleCustomer)
	require.NoError(t, h.GetChecksByCustomer(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []checkRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, customer.ID, rows[0].CustomerID)
	require.Equal(t, "Anna", rows[0].Name)
	require.Equal(t, customer.Email, rows[0].Email)
}

func TestGetChecksSortWhitelist(t *testing.T) {
	h, customer, books := newOrderEnv(t)
	placeTestOrder(t, h, customer, books[0])

	_, c := doJSONRequest(t, http.MethodGet, "/get-checks?sortBy=password_hash", nil, customer.ID, models.RoleAdmin)
	err := h.GetChecks(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestGetPurchasesOwnership(t *testing.T) {
	h, customer, books := newOrderEnv(t)
	check := placeTestOrder(t, h, customer, books[0])

	other := models.Customer{Email: "other@example.com", PasswordHash: "x", Role: models.RoleCustomer}
	require.NoError(t, h.DB.Create(&other).Error)

	rec, c := doJSONRequest(t, http.MethodGet, "/get-purchases?check_number=1", nil, customer.ID, models.RoleCustomer)
	require.NoError(t, h.GetPurchases(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []purchaseRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, check.CheckNumber, rows[0].CheckNumber)
	require.Equal(t, "Kobzar", rows[0].Title)

	// another customer must not read this receipt
	_, cOther := doJSONRequest(t, http.MethodGet, "/get-purchases?check_number=1", nil, other.ID, models.RoleCustomer)
	err := h.GetPurchases(cOther)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusForbidden, he.Code)

	// staff can
	recAdmin, cAdmin := doJSONRequest(t, http.MethodGet, "/get-purchases?check_number=1", nil, other.ID, models.RoleAdmin)
	require.NoError(t, h.GetPurchases(cAdmin))
	require.Equal(t, http.StatusOK, recAdmin.Code)
}

func TestCreateCheckAndAddPurchase(t *testing.T) {
	h, customer, books := newOrderEnv(t)

	rec, c := doJSONRequest(t, http.MethodPost, "/create-check", map[string]any{
		"customer_id": customer.ID,
		"total_price": 100.0,
	}, customer.ID, models.RoleAdmin)
	require.NoError(t, h.CreateCheck(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var check models.Check
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	require.Equal(t, models.StatusPending, check.Status)

	recP, cP := doJSONRequest(t, http.MethodPost, "/add-purchase", map[string]any{
		"check_number":  check.CheckNumber,
		"book_id":       books[0].ID,
		"quantity":      2,
		"selling_price": 50.0,
	}, customer.ID, models.RoleAdmin)
	require.NoError(t, h.AddPurchase(cP))
	require.Equal(t, http.StatusCreated, recP.Code)

	_, cMissing := doJSONRequest(t, http.MethodPost, "/add-purchase", map[string]any{
		"check_number": 999,
		"book_id":      books[0].ID,
	}, customer.ID, models.RoleAdmin)
	err := h.AddPurchase(cMissing)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusNotFound, he.Code)
}
