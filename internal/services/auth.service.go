package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrAuthDisabled is returned by a nil AuthService
var ErrAuthDisabled = errors.New("agent authentication is disabled")

const (
	tokenIssuer      = "aegisnet-server"
	secretKeyFile    = ".aegisnet-secret-key"
	minSecretLength  = 32
	defaultTokenLife = 90 * 24 * time.Hour
)

// AgentClaims binds a bearer token to one agent
type AgentClaims struct {
	AgentID string `json:"agent_id"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies agent tokens
type AuthService struct {
	secretKey   []byte
	tokenExpiry time.Duration
	now         func() time.Time
}

// NewAuthService signs tokens with secret. An empty secret loads the key
// persisted in the home directory, generating it on first use.
func NewAuthService(secret string, tokenExpiry time.Duration, logger *zap.Logger) (*AuthService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		var err error
		secret, err = loadOrCreateSecret(logger)
		if err != nil {
			return nil, err
		}
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth secret is %d bytes, need at least %d for HMAC-SHA256", len(secret), minSecretLength)
	}
	if tokenExpiry <= 0 {
		tokenExpiry = defaultTokenLife
	}
	return &AuthService{secretKey: []byte(secret), tokenExpiry: tokenExpiry, now: time.Now}, nil
}

func loadOrCreateSecret(logger *zap.Logger) (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	keyFile := filepath.Join(dir, secretKeyFile)

	if data, err := os.ReadFile(keyFile); err == nil && len(strings.TrimSpace(string(data))) >= minSecretLength {
		logger.Info("loaded persisted secret key", zap.String("path", keyFile))
		return strings.TrimSpace(string(data)), nil
	}

	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generate secret key: %w", err)
	}
	secret := hex.EncodeToString(randomBytes)
	if err := os.WriteFile(keyFile, []byte(secret), 0o600); err != nil {
		logger.Warn("could not persist secret key", zap.String("path", keyFile), zap.Error(err))
	} else {
		logger.Info("generated and persisted secret key", zap.String("path", keyFile))
	}
	return secret, nil
}

// GenerateToken issues a token for agentID and returns its expiry
func (a *AuthService) GenerateToken(agentID string) (string, time.Time, error) {
	if a == nil {
		return "", time.Time{}, ErrAuthDisabled
	}
	if agentID == "" {
		return "", time.Time{}, errors.New("agent_id is required")
	}

	now := a.now()
	expiresAt := now.Add(a.tokenExpiry)
	claims := AgentClaims{
		AgentID: agentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agentID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies signature, expiry and issuer
func (a *AuthService) ValidateToken(tokenString string) (*AgentClaims, error) {
	if a == nil {
		return nil, ErrAuthDisabled
	}

	claims := &AgentClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secretKey, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.AgentID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
