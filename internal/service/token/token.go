package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/nabookma/bookstore/internal/models"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

type Service struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
}

func SignAccessToken(customerID uint, role string, accessSecret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  customerID,
		"role": role,
		"exp":  time.Now().Add(AccessTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(accessSecret)
}

func SignRefreshToken(customerID uint, role string, refreshSecret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  customerID,
		"role": role,
		"exp":  time.Now().Add(RefreshTTL).Unix(),
		"typ":  "refresh",
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(refreshSecret)
}

func SaveRefreshToken(db *gorm.DB, token string, customerID uint) error {
	stored := models.RefreshToken{
		Token:      token,
		CustomerID: customerID,
		ExpiresAt:  time.Now().Add(RefreshTTL).Unix(),
		Revoked:    false,
	}
	if err := db.Create(&stored).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ValidateRefresh checks the signature and the stored row: the token must be
// known, unexpired and not revoked.
func ValidateRefresh(rawToken string, refreshSecret []byte, db *gorm.DB) (jwt.MapClaims, error) {
	t, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return refreshSecret, nil
	})
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("cannot parse claims")
	}
	if typ, ok := claims["typ"]; !ok || typ != "refresh" {
		return nil, errors.New("not a refresh token")
	}

	var stored models.RefreshToken
	if err := db.Where("token = ?", rawToken).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("refresh token not found")
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if stored.Revoked {
		return nil, errors.New("refresh token revoked")
	}
	if time.Now().Unix() > stored.ExpiresAt {
		return nil, errors.New("refresh token expired")
	}

	return claims, nil
}

// Rotate exchanges a valid refresh token for a fresh access/refresh pair.
// The old token is revoked so a stolen cookie cannot be replayed later.
func (s *Service) Rotate(rawToken string) (newAccess, newRefresh string, claims jwt.MapClaims, err error) {
	claims, err = ValidateRefresh(rawToken, s.RefreshSecret, s.DB)
	if err != nil {
		return "", "", nil, err
	}

	customerID := uint(claims["sub"].(float64))
	role, _ := claims["role"].(string)

	newAccess, err = SignAccessToken(customerID, role, s.JWTSecret)
	if err != nil {
		return "", "", nil, err
	}

	newRefresh, err = SignRefreshToken(customerID, role, s.RefreshSecret)
	if err != nil {
		return "", "", nil, err
	}

	if err = SaveRefreshToken(s.DB, newRefresh, customerID); err != nil {
		return "", "", nil, err
	}
	if err = s.Revoke(rawToken); err != nil {
		return "", "", nil, err
	}

	return newAccess, newRefresh, claims, nil
}

func (s *Service) Revoke(rawToken string) error {
	result := s.DB.Model(&models.RefreshToken{}).
		Where("token = ?", rawToken).
		Update("revoked", true)
	if result.Error != nil {
		return fmt.Errorf("db error: %w", result.Error)
	}
	return nil
}
