// Package auth covers the gateway's three trust boundaries: the device
// ingest token, the mobile crew key, and JWT-backed dashboard logins.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"fieldops-gateway/internal/config"
)

// Header names for the two shared-secret boundaries.
const (
	DeviceTokenHeader = "X-Device-Token"
	MobileKeyHeader   = "X-API-Key"
)

// Manager validates shared secrets, user credentials and JWTs.
type Manager struct {
	deviceToken   string
	mobileKey     string
	jwtSecret     []byte
	jwtExpiration time.Duration
	users         []config.User
}

// Claims are the JWT claims issued to dashboard users.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewManager builds a manager from the auth section of the config.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		deviceToken:   cfg.Auth.DeviceToken,
		mobileKey:     cfg.Auth.MobileKey,
		jwtSecret:     []byte(cfg.Auth.JWTSecret),
		jwtExpiration: time.Duration(cfg.Auth.JWTExpiration) * time.Minute,
		users:         cfg.Auth.Users,
	}
}

// VerifyDeviceToken checks the device ingest shared secret in constant time.
func (m *Manager) VerifyDeviceToken(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(m.deviceToken)) == 1
}

// VerifyMobileKey checks the mobile position-report key in constant time.
func (m *Manager) VerifyMobileKey(key string) bool {
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.mobileKey)) == 1
}

// Authenticate validates a dashboard login and returns the user's role.
func (m *Manager) Authenticate(username, password string) (string, error) {
	for _, u := range m.users {
		if u.Username != username {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			return "", errors.New("invalid password")
		}
		return u.Role, nil
	}
	return "", errors.New("user not found")
}

// GenerateJWT issues a signed token for an authenticated dashboard user.
func (m *Manager) GenerateJWT(username, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "fieldops-gateway",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.jwtSecret)
}

// ValidateJWT parses and verifies a dashboard token.
func (m *Manager) ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireDeviceToken guards the device ingest endpoints.
func (m *Manager) RequireDeviceToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.VerifyDeviceToken(r.Header.Get(DeviceTokenHeader)) {
			http.Error(w, "invalid device token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireMobileKey guards the crew position endpoint.
func (m *Manager) RequireMobileKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.VerifyMobileKey(r.Header.Get(MobileKeyHeader)) {
			http.Error(w, "invalid API key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJWT guards operator endpoints with a bearer token.
func (m *Manager) RequireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "authorization header required", http.StatusUnauthorized)
			return
		}
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "invalid authorization format", http.StatusUnauthorized)
			return
		}
		if _, err := m.ValidateJWT(parts[1]); err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HashPassword produces a bcrypt hash for seeding users in config.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}
