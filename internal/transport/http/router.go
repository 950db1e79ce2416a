package http

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/nabookma/bookstore/internal/es"
	"github.com/nabookma/bookstore/internal/handlers"
	"github.com/nabookma/bookstore/internal/handlers/basket"
	"github.com/nabookma/bookstore/internal/handlers/order"
	authmw "github.com/nabookma/bookstore/internal/middleware/auth"
	"github.com/nabookma/bookstore/internal/mykafka"
	"github.com/nabookma/bookstore/internal/service/storage"
	"github.com/nabookma/bookstore/internal/service/token"
)

// Deps carries everything the routes need. Producer, ES and Store may be nil;
// the affected endpoints degrade instead of the whole server refusing to start.
type Deps struct {
	DB            *gorm.DB
	Producer      *mykafka.Producer
	ES            *elasticsearch.Client
	Store         *storage.ImageStore
	JWTSecret     []byte
	RefreshSecret []byte
}

func RegisterRoutes(e *echo.Echo, d Deps) {
	tokens := &token.Service{DB: d.DB, JWTSecret: d.JWTSecret, RefreshSecret: d.RefreshSecret}
	mw := &authmw.Middleware{Tokens: tokens}

	authHandler := &handlers.AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, RefreshSecret: d.RefreshSecret, Producer: d.Producer}
	bookHandler := &handlers.BookHandler{DB: d.DB, Producer: d.Producer, ES: d.ES, ESIndex: es.BooksIndex, Store: d.Store}
	customerHandler := &handlers.CustomerHandler{DB: d.DB, JWTSecret: d.JWTSecret, Producer: d.Producer}
	basketHandler := &basket.BasketHandler{DB: d.DB, Producer: d.Producer, JWTSecret: d.JWTSecret}
	orderHandler := &order.OrderHandler{DB: d.DB, Producer: d.Producer, JWTSecret: d.JWTSecret}
	uploadHandler := &handlers.UploadHandler{Store: d.Store}

	e.GET("/health/live", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/health/ready", func(c echo.Context) error {
		sqlDB, err := d.DB.DB()
		if err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unreachable")
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Public catalog and account creation.
	e.GET("/get-books", bookHandler.GetBooks)
	e.GET("/get-book-by-id", bookHandler.GetBookByID)
	e.GET("/search-books", bookHandler.SearchBooks)
	e.POST("/registration", authHandler.Register)
	e.POST("/login", authHandler.Login)

	// Everything below needs a valid session.
	authed := e.Group("", mw.RequireLogin)
	authed.POST("/logout", authHandler.LogOut)

	authed.GET("/get-profile", customerHandler.GetProfile)
	authed.PUT("/update-profile", customerHandler.UpdateProfile)
	authed.PUT("/change-password", customerHandler.ChangePassword)

	authed.GET("/get-basket", basketHandler.GetBasket)
	authed.POST("/add-book-to-basket", basketHandler.AddToBasket)
	authed.PUT("/decrement-book-in-basket", basketHandler.DecrementFromBasket)
	authed.DELETE("/delete-book-from-basket/:bookId", basketHandler.DeleteFromBasket)

	authed.POST("/place-order", orderHandler.PlaceOrder)
	authed.GET("/get-checks-by-customer", orderHandler.GetChecksByCustomer)
	authed.GET("/get-purchases", orderHandler.GetPurchases)

	// Staff surface.
	admin := e.Group("", mw.RequireAdmin)
	admin.POST("/add-book", bookHandler.AddBook)
	admin.PUT("/update-book/:id", bookHandler.UpdateBook)
	admin.DELETE("/delete-book/:id", bookHandler.DeleteBook)
	admin.POST("/upload-image", uploadHandler.UploadImage)

	admin.GET("/get-customers", customerHandler.GetCustomers)
	admin.GET("/get-customer-by-email", customerHandler.GetCustomerByEmail)

	admin.GET("/get-checks", orderHandler.GetChecks)
	admin.POST("/create-check", orderHandler.CreateCheck)
	admin.POST("/add-purchase", orderHandler.AddPurchase)
	admin.PUT("/update-status", orderHandler.UpdateStatus)
	admin.DELETE("/delete-check/:id", orderHandler.CancelCheck)
}
