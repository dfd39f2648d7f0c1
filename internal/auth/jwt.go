package auth

import (
	"errors"
	"fmt"
	"time"

	"catalog_service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeSession = "session"
	tokenTypeCustom  = "custom"
)

var (
	ErrInvalidToken = fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	ErrExpiredToken = fmt.Errorf("%w: token has expired", domain.ErrUnauthenticated)
)

type TokenConfig struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration
}

type Claims struct {
	SessionID string `json:"sid,omitempty"`
	Email     string `json:"email,omitempty"`
	Admin     bool   `json:"admin,omitempty"`
	Anonymous bool   `json:"anon,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenManager signs and checks both session tokens and the custom sign-in
// tokens handed out by the token command.
type TokenManager struct {
	config TokenConfig
}

func NewTokenManager(config TokenConfig) (*TokenManager, error) {
	if len(config.Secret) < 16 {
		return nil, fmt.Errorf("%w: token secret must be at least 16 characters", domain.ErrInvalidInput)
	}
	if config.Issuer == "" {
		config.Issuer = "catalog_service"
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 24 * time.Hour
	}
	return &TokenManager{config: config}, nil
}

func (m *TokenManager) SessionTTL() time.Duration {
	return m.config.SessionTTL
}

func (m *TokenManager) IssueSession(identity domain.Identity) (string, error) {
	return m.sign(Claims{
		SessionID: identity.SessionID,
		Email:     identity.Email,
		Admin:     identity.Admin,
		Anonymous: identity.Anonymous,
		TokenType: tokenTypeSession,
	}, identity.UID, identity.ExpiresAt)
}

// MintCustomToken issues a token that SignInWithCustomToken accepts.
func (m *TokenManager) MintCustomToken(uid string, admin bool, ttl time.Duration) (string, error) {
	if uid == "" {
		return "", fmt.Errorf("%w: uid is required", domain.ErrInvalidInput)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return m.sign(Claims{Admin: admin, TokenType: tokenTypeCustom}, uid, time.Now().Add(ttl))
}

func (m *TokenManager) sign(claims Claims, subject string, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    m.config.Issuer,
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.Secret))
}

func (m *TokenManager) parse(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.Secret), nil
	}, jwt.WithIssuer(m.config.Issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != tokenType || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *TokenManager) ParseSession(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString, tokenTypeSession)
	if err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *TokenManager) ParseCustom(tokenString string) (*Claims, error) {
	return m.parse(tokenString, tokenTypeCustom)
}
