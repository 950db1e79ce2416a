package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/nabookma/bookstore/internal/models"
	"github.com/nabookma/bookstore/pkg/db"
)

type Config struct {
	DB_HOST        string
	DB_PORT        string
	DB_USER        string
	DB_PASSWORD    string
	DB_NAME        string
	ES_URL         string
	ES_USER        string
	ES_PASSWORD    string
	JWT_SECRET     string
	REFRESH_SECRET string
	KAFKA_BROKERS  []string
	S3_BUCKET      string
	S3_REGION      string
	S3_ACCESS_KEY  string
	S3_SECRET_KEY  string
	LOG_LEVEL      string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:        os.Getenv("DB_HOST"),
		DB_PORT:        envDefault("DB_PORT", "5432"),
		DB_USER:        os.Getenv("DB_USER"),
		DB_PASSWORD:    os.Getenv("DB_PASSWORD"),
		DB_NAME:        os.Getenv("DB_NAME"),
		ES_URL:         os.Getenv("ES_URL"),
		ES_USER:        os.Getenv("ES_USER"),
		ES_PASSWORD:    os.Getenv("ES_PASSWORD"),
		JWT_SECRET:     os.Getenv("JWT_SECRET"),
		REFRESH_SECRET: os.Getenv("REFRESH_SECRET"),
		KAFKA_BROKERS:  csv(os.Getenv("KAFKA_BROKERS")),
		S3_BUCKET:      os.Getenv("S3_BUCKET"),
		S3_REGION:      envDefault("S3_REGION", "eu-central-1"),
		S3_ACCESS_KEY:  os.Getenv("S3_ACCESS_KEY"),
		S3_SECRET_KEY:  os.Getenv("S3_SECRET_KEY"),
		LOG_LEVEL:      envDefault("LOG_LEVEL", "info"),
	}

	return config, nil
}

func (c *Config) MustSecrets() {
	mustNonEmpty(c.JWT_SECRET, "JWT_SECRET")
	mustNonEmpty(c.REFRESH_SECRET, "REFRESH_SECRET")
}

func InitDB(ctx context.Context, cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)

	conn, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.AutoMigrate(
		&models.Book{},
		&models.Customer{},
		&models.RefreshToken{},
		&models.BasketItem{},
		&models.Check{},
		&models.Purchase{},
	); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return conn, nil
}

func csv(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}
