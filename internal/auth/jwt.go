package auth

import (
	"errors"
	"os"
	"time"

	"notebook-api/internal/cache"

	"github.com/golang-jwt/jwt/v5"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Claims represents the JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Config controls construction of a Manager. Zero fields fall back to the
// NOTEBOOK_JWT_* environment variables and their defaults; Sessions has no
// fallback and is required.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TokenTTL time.Duration

	// Sessions caches validated claims keyed by token, so repeated requests
	// skip signature verification. Required.
	Sessions cache.Cache[Claims]
}

// Manager issues and validates session tokens for one configured realm.
type Manager struct {
	secret   []byte
	issuer   string
	audience string
	tokenTTL time.Duration
	sessions cache.Cache[Claims]
}

// NewManager builds a Manager. A missing session cache is a programming
// error, not a runtime condition, so it fails fast.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("auth: session cache is required")
	}
	m := &Manager{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		tokenTTL: cfg.TokenTTL,
		sessions: cfg.Sessions,
	}
	if len(m.secret) == 0 {
		m.secret = []byte(getEnv("NOTEBOOK_JWT_SECRET", "development-insecure-secret-change-me"))
	}
	if m.issuer == "" {
		m.issuer = getEnv("NOTEBOOK_JWT_ISSUER", "notebook-api")
	}
	if m.audience == "" {
		m.audience = getEnv("NOTEBOOK_JWT_AUDIENCE", "notebook-clients")
	}
	if m.tokenTTL <= 0 {
		m.tokenTTL = 24 * time.Hour
	}
	return m, nil
}

// GenerateToken generates a JWT token for the given user
func (m *Manager) GenerateToken(userID, username string) (string, error) {
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)

	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the claims. Previously
// validated tokens are answered from the session cache; the cache entry
// lives no longer than the token itself.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	if claims, ok := m.sessions.Get(tokenString); ok {
		return &claims, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}

		return m.secret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	// Validate issuer and audience
	if claims.Issuer != m.issuer {
		return nil, errors.New("invalid token issuer")
	}
	audValid := false
	for _, aud := range claims.Audience {
		if aud == m.audience {
			audValid = true
			break
		}
	}
	if !audValid {
		return nil, errors.New("invalid token audience")
	}

	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			m.sessions.Set(tokenString, *claims, remaining)
		}
	}
	return claims, nil
}
