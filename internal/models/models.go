package models

import (
	"time"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type Book struct {
	ID              uint      `gorm:"primaryKey;autoIncrement;column:book_id" json:"book_id"`
	Title           string    `gorm:"not null"                  json:"title"`
	AuthorName      string    `gorm:"not null"                  json:"author_name"`
	PublisherName   string    `json:"publisher_name"`
	Genre           string    `json:"genre"`
	Category        string    `gorm:"index"                     json:"category"`
	Language        string    `gorm:"index"                     json:"language"`
	Price           float64   `gorm:"not null"                  json:"price"`
	Rating          int       `gorm:"check:rating>=0 AND rating<=5" json:"rating"`
	Pages           int       `json:"pages"`
	PublicationDate time.Time `json:"publication_date"`
	Summary         string    `json:"summary"`
	PhotoURL        string    `gorm:"column:book_photo_url"     json:"book_photo_url"`
}

type Customer struct {
	ID           uint      `gorm:"primaryKey;autoIncrement;column:customer_id" json:"customer_id"`
	Email        string    `gorm:"column:customer_email;unique;not null" json:"customer_email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         string    `gorm:"not null;default:customer" json:"role"`
	Name         string    `gorm:"column:cust_name"         json:"cust_name"`
	Surname      string    `gorm:"column:cust_surname"      json:"cust_surname"`
	Patronymic   string    `gorm:"column:cust_patronymic"   json:"cust_patronymic"`
	BirthDate    time.Time `json:"birth_date"`
	PhoneNumber  string    `json:"phone_number"`
	City         string    `json:"city"`
	Street       string    `json:"street"`
	ZipCode      string    `json:"zip_code"`
	PhotoURL     string    `gorm:"column:customer_photo_url" json:"customer_photo_url"`
}

type RefreshToken struct {
	ID         uint   `gorm:"primaryKey"          json:"id"`
	Token      string `gorm:"unique;not null"     json:"token"`
	CustomerID uint   `gorm:"index;not null"      json:"customer_id"`
	ExpiresAt  int64  `gorm:"not null"            json:"expires_at"`
	Revoked    bool   `gorm:"default:false"       json:"revoked"`
}

// One active line per (customer, book); adding the same book again bumps Amount.
type BasketItem struct {
	ID         uint `gorm:"primaryKey"                                 json:"id"`
	CustomerID uint `gorm:"not null;uniqueIndex:idx_basket_line"       json:"customer_id"`
	BookID     uint `gorm:"not null;uniqueIndex:idx_basket_line"       json:"book_id"`
	Amount     uint `gorm:"default:1;check:amount>0"                   json:"amount"`
}

type Check struct {
	CheckNumber uint      `gorm:"primaryKey;autoIncrement;column:check_number" json:"check_number"`
	CustomerID  uint      `gorm:"index;not null"           json:"customer_id"`
	TotalPrice  float64   `gorm:"not null"                 json:"total_price"`
	PrintDate   time.Time `gorm:"not null"                 json:"print_date"`
	Status      string    `gorm:"not null;default:pending" json:"status"`
}

type Purchase struct {
	ID           uint    `gorm:"primaryKey"      json:"id"`
	CheckNumber  uint    `gorm:"index;not null"  json:"check_number"`
	BookID       uint    `gorm:"not null"        json:"book_id"`
	Quantity     uint    `gorm:"default:1;check:quantity>0" json:"quantity"`
	SellingPrice float64 `gorm:"not null"        json:"selling_price"`
}
