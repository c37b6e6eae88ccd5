package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// AccessToken issues a token carrying the caller's identity.
func (t *TokenIssuer) AccessToken(claims UserClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  claims.UserID,
		"username": claims.Username,
		"is_admin": claims.IsAdmin,
		"exp":      t.now().Add(t.accessTTL).Unix(),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// RefreshToken issues an opaque-to-clients refresh token and its expiry.
// The jti makes two tokens issued in the same second distinct.
func (t *TokenIssuer) RefreshToken(userID uint) (string, time.Time, error) {
	expires := t.now().Add(t.refreshTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"jti":     uuid.New().String(),
		"exp":     expires.Unix(),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies an access token and returns its claims.
func (t *TokenIssuer) Parse(tokenString string) (*UserClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return nil, ErrInvalidToken
	}
	username, ok := claims["username"].(string)
	if !ok {
		// refresh tokens carry no username and are not valid for API calls
		return nil, ErrInvalidToken
	}
	isAdmin, _ := claims["is_admin"].(bool)

	return &UserClaims{
		UserID:   uint(userID),
		Username: username,
		IsAdmin:  isAdmin,
	}, nil
}
