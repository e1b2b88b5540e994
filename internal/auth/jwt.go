// Package auth provides JWT token management and the bearer-token middleware.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type constants for the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Token expiration durations.
const (
	AccessTokenExpiry  = 15 * time.Minute
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// DefaultLeeway absorbs small clock skew between signer and validator.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when the token has expired.
var ErrExpiredToken = errors.New("token has expired")

// ErrEmptyUserID is returned when userID is empty.
var ErrEmptyUserID = errors.New("userID cannot be empty")

// Claims are the JWT claims carried by Karib tokens. Subject holds the
// user ID.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"` // "access" or "refresh"
}

// JWTService signs and validates tokens. It supports dual-key rotation:
// tokens are signed with currentSecret but validated against either
// currentSecret or previousSecret, so rotation needs no downtime.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
}

// NewJWTService creates a JWTService signing and validating with a single secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		currentSecret: []byte(secret),
		leeway:        DefaultLeeway,
	}
}

// NewJWTServiceWithRotation creates a JWTService that validates against both
// secrets during a rotation window. Pass an empty previousSecret when no
// rotation is in progress.
func NewJWTServiceWithRotation(currentSecret, previousSecret string) *JWTService {
	svc := &JWTService{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// GenerateAccessToken creates a new access token for userID.
func (s *JWTService) GenerateAccessToken(userID string) (string, error) {
	return s.generate(userID, TokenTypeAccess, AccessTokenExpiry)
}

// GenerateRefreshToken creates a new refresh token for userID.
func (s *JWTService) GenerateRefreshToken(userID string) (string, error) {
	return s.generate(userID, TokenTypeRefresh, RefreshTokenExpiry)
}

func (s *JWTService) generate(userID, tokenType string, expiry time.Duration) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		Type: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// ValidateToken parses and validates a token, returning its claims.
// Tries currentSecret first, then previousSecret when rotation is active.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parseWith(tokenString, s.currentSecret)
	if err == nil {
		return claims, nil
	}

	if s.previousSecret != nil {
		if claims, prevErr := s.parseWith(tokenString, s.previousSecret); prevErr == nil {
			return claims, nil
		}
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

func (s *JWTService) parseWith(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(s.leeway))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
