package jwt

import (
	"errors"
	"time"

	"authd/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is the only error Parse* ever return. Signature, expiry
// and kind failures are deliberately indistinguishable to the caller.
var ErrInvalidToken = errors.New("invalid token")

const refreshKind = "refresh"

type AccessClaims struct {
	AccountID int64              `json:"uid"`
	Email     string             `json:"email"`
	Role      models.AccountRole `json:"role"`
	Kind      string             `json:"kind,omitempty"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	AccountID int64  `json:"uid"`
	Kind      string `json:"kind"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access and refresh tokens with two independent
// secrets and lifetimes.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

func (c *Codec) NewAccessToken(account models.Account) (string, error) {
	if account.ID == 0 {
		return "", errors.New("not enough data for token generation")
	}

	now := time.Now()
	claims := AccessClaims{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
			ID:        generateJTI(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(c.accessSecret)
}

func (c *Codec) NewRefreshToken(accountID int64) (string, error) {
	if accountID == 0 {
		return "", errors.New("not enough data for token generation")
	}

	now := time.Now()
	claims := RefreshClaims{
		AccountID: accountID,
		Kind:      refreshKind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
			ID:        generateJTI(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(c.refreshSecret)
}

func (c *Codec) ParseAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc(c.accessSecret))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	// A refresh token must never pass as an access token, even if both
	// secrets happen to be the same.
	if claims.Kind != "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (c *Codec) ParseRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc(c.refreshSecret))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Kind != refreshKind {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func keyFunc(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}
}

func generateJTI() string {
	return uuid.New().String()
}
