package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// Claims is the verified content of an access token.
type Claims struct {
	UserID uuid.UUID
	Email  string
	Roles  []string
}

// TokenIssuer signs and verifies HS256 access tokens and mints opaque
// refresh tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// RefreshTTL reports how long minted refresh tokens live.
func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// NewAccessToken signs an access token carrying the user's identity and
// role names.
func (i *TokenIssuer) NewAccessToken(user *User, roles []string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.accessTTL)
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"roles": roles,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseAccessToken verifies the signature and expiry, returning the
// claims. Any failure maps to shared.ErrTokenInvalid.
func (i *TokenIssuer) ParseAccessToken(raw string) (*Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, shared.ErrTokenInvalid
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, shared.ErrTokenInvalid
	}
	sub, _ := mc["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, shared.ErrTokenInvalid
	}
	claims := &Claims{UserID: id}
	claims.Email, _ = mc["email"].(string)
	if rawRoles, ok := mc["roles"].([]interface{}); ok {
		for _, rr := range rawRoles {
			if s, ok := rr.(string); ok {
				claims.Roles = append(claims.Roles, s)
			}
		}
	}
	return claims, nil
}

// NewRefreshToken mints a random opaque refresh token and its expiry.
// Only the SHA-256 hash of the raw value is ever stored.
func (i *TokenIssuer) NewRefreshToken() (raw string, exp time.Time, err error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, err
	}
	return hex.EncodeToString(buf), time.Now().UTC().Add(i.refreshTTL), nil
}

// HashRefresh returns the hex SHA-256 digest of a raw refresh token.
func HashRefresh(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
