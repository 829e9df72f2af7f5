package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Identity is what a session token asserts about its bearer.
type Identity struct {
	UserID string
	Email  string
}

// Claims is the signed payload of a session token.
type Claims struct {
	UserID string `json:"_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email}
}

// Issue signs the identity with secret; the token expires ttl from now.
func Issue(id Identity, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: id.UserID,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// Verify checks signature and expiry. It returns ErrTokenExpired or
// ErrTokenInvalid so callers can tell a stale session from a bad one.
func Verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// TokenService holds the two independent secrets and lifetimes used for
// access and refresh tokens.
type TokenService struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
}

func NewTokenService(accessSecret string, accessTTL time.Duration, refreshSecret string, refreshTTL time.Duration) (*TokenService, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("auth: access and refresh token secrets are required")
	}
	return &TokenService{
		AccessSecret:  []byte(accessSecret),
		AccessTTL:     accessTTL,
		RefreshSecret: []byte(refreshSecret),
		RefreshTTL:    refreshTTL,
	}, nil
}

func (s *TokenService) IssueAccess(id Identity) (string, error) {
	return Issue(id, s.AccessSecret, s.AccessTTL)
}

// IssuePair returns a fresh access token and refresh token.
func (s *TokenService) IssuePair(id Identity) (access string, refresh string, err error) {
	access, err = Issue(id, s.AccessSecret, s.AccessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = Issue(id, s.RefreshSecret, s.RefreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return Verify(token, s.AccessSecret)
}

func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return Verify(token, s.RefreshSecret)
}
