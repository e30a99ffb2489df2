// Package auth centralizes the admin capability checks so no handler
// compares identities or credentials inline.
package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nayon117/custome-chat-server/internal/config"
	"github.com/nayon117/custome-chat-server/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// IsAdmin reports whether an identity is the reserved operator console.
func IsAdmin(identity string) bool {
	return identity == domain.AdminIdentity
}

// Claims is the admin session token payload.
type Claims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// Service verifies the operator credentials and issues session tokens.
type Service struct {
	cfg config.AdminConfig
}

func NewService(cfg config.AdminConfig) *Service {
	return &Service{cfg: cfg}
}

// Login checks email and password against the configured operator account
// and returns a signed token on success.
func (s *Service) Login(email, password string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(email), []byte(s.cfg.Email)) != 1 {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		Identity: domain.AdminIdentity,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.cfg.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenExpire)),
			Issuer:    "support-chat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ValidateToken parses a session token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
