package order

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/nabookma/bookstore/internal/handlers"
	"github.com/nabookma/bookstore/internal/logging"
	"github.com/nabookma/bookstore/internal/models"
	"github.com/nabookma/bookstore/internal/mykafka"
)

var checkSortColumns = map[string]bool{
	"check_number": true,
	"print_date":   true,
	"total_price":  true,
	"status":       true,
	"customer_id":  true,
}

type OrderHandler struct {
	DB        *gorm.DB
	Producer  *mykafka.Producer
	JWTSecret []byte
}

type OrderResponse struct {
	Check     models.Check      `json:"check"`
	Purchases []models.Purchase `json:"purchases"`
}

// checkRow is a check joined with its owner, the shape the receipt view needs.
type checkRow struct {
	CheckNumber uint      `json:"check_number"`
	CustomerID  uint      `json:"customer_id"`
	TotalPrice  float64   `json:"total_price"`
	PrintDate   time.Time `json:"print_date"`
	Status      string    `json:"status"`
	Name        string    `gorm:"column:cust_name"      json:"cust_name"`
	Surname     string    `gorm:"column:cust_surname"   json:"cust_surname"`
	Email       string    `gorm:"column:customer_email" json:"customer_email"`
}

// purchaseRow is a purchase joined with its book, the shape the receipt view needs.
type purchaseRow struct {
	ID           uint    `json:"id"`
	CheckNumber  uint    `json:"check_number"`
	BookID       uint    `json:"book_id"`
	Quantity     uint    `json:"quantity"`
	SellingPrice float64 `json:"selling_price"`
	Title        string  `json:"title"`
	AuthorName   string  `json:"author_name"`
	Publisher    string  `gorm:"column:publisher_name" json:"publisher_name"`
	PhotoURL     string  `gorm:"column:book_photo_url" json:"book_photo_url"`
}

// PlaceOrder turns the whole basket into a check with one purchase per line,
// inside a single transaction: either the complete order exists afterwards or
// nothing changed. The selling price is captured from the book row at this
// moment, so later catalog edits do not rewrite history.
func (h *OrderHandler) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.place_order")

	customerID, err := handlers.GetCustomerID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var (
		check     models.Check
		purchases []models.Purchase
	)

	txErr := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.BasketItem
		if err := tx.Where("customer_id = ?", customerID).Find(&items).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if len(items) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "basket is empty")
		}

		check = models.Check{
			CustomerID: customerID,
			PrintDate:  time.Now(),
			Status:     models.StatusPending,
		}
		if err := tx.Create(&check).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		var total float64
		purchases = make([]models.Purchase, 0, len(items))
		for _, it := range items {
			var book models.Book
			if err := tx.First(&book, it.BookID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return echo.NewHTTPError(http.StatusConflict, "book no longer available")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
			purchase := models.Purchase{
				CheckNumber:  check.CheckNumber,
				BookID:       it.BookID,
				Quantity:     it.Amount,
				SellingPrice: book.Price,
			}
			if err := tx.Create(&purchase).Error; err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
			purchases = append(purchases, purchase)
			total += float64(it.Amount) * book.Price
		}

		check.TotalPrice = total
		if err := tx.Save(&check).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		if err := tx.Where("customer_id = ?", customerID).Delete(&models.BasketItem{}).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return nil
	})
	if txErr != nil {
		var he *echo.HTTPError
		if errors.As(txErr, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	l.Info("order placed", "checkNumber", check.CheckNumber, "lines", len(purchases), "total", check.TotalPrice)
	h.publish(c, customerID, map[string]any{
		"type":        "order_placed",
		"customerID":  customerID,
		"checkNumber": check.CheckNumber,
		"total":       check.TotalPrice,
	})

	return c.JSON(http.StatusCreated, OrderResponse{Check: check, Purchases: purchases})
}

func (h *OrderHandler) GetChecks(c echo.Context) error {
	order, err := handlers.OrderClause(c.QueryParam("sortBy"), c.QueryParam("sortOrder"), checkSortColumns, "check_number")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var rows []checkRow
	// All sortable columns live on checks; qualify to keep the join unambiguous.
	if err := h.checkQuery(c).Order("checks." + order).Scan(&rows).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, rows)
}

func (h *OrderHandler) GetChecksByCustomer(c echo.Context) error {
	customerID, err := handlers.GetCustomerID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	order, err := handlers.OrderClause(c.QueryParam("sortBy"), c.QueryParam("sortOrder"), checkSortColumns, "check_number")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var rows []checkRow
	if err := h.checkQuery(c).Where("checks.customer_id = ?", customerID).Order("checks." + order).Scan(&rows).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, rows)
}

func (h *OrderHandler) GetPurchases(c echo.Context) error {
	customerID, role, err := handlers.GetIdentity(c, h.JWTSecret)
	if err != nil {
		return err
	}

	checkNumber, err := strconv.Atoi(c.QueryParam("check_number"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid check_number")
	}

	var check models.Check
	if err := h.DB.WithContext(c.Request().Context()).First(&check, checkNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "check not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// Customers only see their own receipts; staff see all of them.
	if role != models.RoleAdmin && check.CustomerID != customerID {
		return echo.NewHTTPError(http.StatusForbidden, "not your check")
	}

	var rows []purchaseRow
	if err := h.DB.WithContext(c.Request().Context()).
		Table("purchases").
		Select("purchases.id, purchases.check_number, purchases.book_id, purchases.quantity, purchases.selling_price, books.title, books.author_name, books.publisher_name, books.book_photo_url").
		Joins("JOIN books ON books.book_id = purchases.book_id").
		Where("purchases.check_number = ?", checkNumber).
		Scan(&rows).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, rows)
}

// CreateCheck is the legacy admin surface: an empty check with caller-supplied
// date and total, not tied to any basket.
func (h *OrderHandler) CreateCheck(c echo.Context) error {
	var req struct {
		CustomerID uint    `json:"customer_id"`
		TotalPrice float64 `json:"total_price"`
		PrintDate  string  `json:"print_date"`
		Status     string  `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.CustomerID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "customer_id is required")
	}
	if req.Status == "" {
		req.Status = models.StatusPending
	}
	if !validStatus(req.Status) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}

	printDate := time.Now()
	if req.PrintDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.PrintDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "print_date must be RFC3339")
		}
		printDate = parsed
	}

	check := models.Check{
		CustomerID: req.CustomerID,
		TotalPrice: req.TotalPrice,
		PrintDate:  printDate,
		Status:     req.Status,
	}
	if err := h.DB.WithContext(c.Request().Context()).Create(&check).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, check.CustomerID, map[string]any{
		"type":        "check_created",
		"customerID":  check.CustomerID,
		"checkNumber": check.CheckNumber,
	})
	return c.JSON(http.StatusCreated, check)
}

// AddPurchase is the legacy admin surface: append a line to an existing check
// with an explicit selling price.
func (h *OrderHandler) AddPurchase(c echo.Context) error {
	var req struct {
		CheckNumber  uint    `json:"check_number"`
		BookID       uint    `json:"book_id"`
		Quantity     uint    `json:"quantity"`
		SellingPrice float64 `json:"selling_price"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.CheckNumber == 0 || req.BookID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "check_number and book_id are required")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var check models.Check
	if err := h.DB.WithContext(c.Request().Context()).First(&check, req.CheckNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "check not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	purchase := models.Purchase{
		CheckNumber:  req.CheckNumber,
		BookID:       req.BookID,
		Quantity:     req.Quantity,
		SellingPrice: req.SellingPrice,
	}
	if err := h.DB.WithContext(c.Request().Context()).Create(&purchase).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, purchase)
}

// UpdateStatus only moves a check forward: pending → processing → completed.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	checkNumber, err := strconv.Atoi(c.QueryParam("check_number"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid check_number")
	}
	status := c.QueryParam("status")
	if !validStatus(status) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}

	var check models.Check
	if err := h.DB.WithContext(c.Request().Context()).First(&check, checkNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "check not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if statusRank(status) <= statusRank(check.Status) {
		return echo.NewHTTPError(http.StatusConflict, "status can only move forward")
	}

	check.Status = status
	if err := h.DB.WithContext(c.Request().Context()).Save(&check).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, check.CustomerID, map[string]any{
		"type":        "check_status_updated",
		"customerID":  check.CustomerID,
		"checkNumber": check.CheckNumber,
		"status":      check.Status,
	})
	return c.JSON(http.StatusOK, check)
}

// CancelCheck deletes a pending check together with its purchases, so no
// orphaned lines survive the cancellation.
func (h *OrderHandler) CancelCheck(c echo.Context) error {
	checkNumber, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	txErr := h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		var check models.Check
		if err := tx.First(&check, checkNumber).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "check not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		if check.Status != models.StatusPending {
			return echo.NewHTTPError(http.StatusConflict, "only pending checks can be cancelled")
		}

		if err := tx.Where("check_number = ?", check.CheckNumber).Delete(&models.Purchase{}).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if err := tx.Delete(&check).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return nil
	})
	if txErr != nil {
		var he *echo.HTTPError
		if errors.As(txErr, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"deleted_check": checkNumber})
}

func (h *OrderHandler) checkQuery(c echo.Context) *gorm.DB {
	return h.DB.WithContext(c.Request().Context()).
		Table("checks").
		Select("checks.check_number, checks.customer_id, checks.total_price, checks.print_date, checks.status, customers.cust_name, customers.cust_surname, customers.customer_email").
		Joins("JOIN customers ON customers.customer_id = checks.customer_id")
}
