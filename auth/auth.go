// Package auth covers password hashing, the permission bitmask carried
// in token scopes, and signed access/refresh tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Token lifetimes. Refresh tokens rotate on every use and their ids are
// persisted server-side, so a long lifetime is acceptable.
const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 365 * 24 * time.Hour

	// clock skew tolerated when validating expiry
	tokenLeeway = 10 * time.Second
)

var (
	ErrExpiredToken = errors.New("expired token")
	ErrInvalidToken = errors.New("invalid token")
)

// Permission names a capability a user may hold.
type Permission string

const PermissionAdmin Permission = "admin"

var permissionBits = map[Permission]int{
	PermissionAdmin: 1 << 0,
}

// PermissionBitmask folds permission names into the bitmask stored on
// the user row and carried in the token's scopes claim.
func PermissionBitmask(permissions []Permission) int {
	mask := 0
	for _, p := range permissions {
		mask |= permissionBits[p]
	}
	return mask
}

// PermissionList expands a bitmask back into permission names.
func PermissionList(scopes int) []Permission {
	var out []Permission
	for p, bit := range permissionBits {
		if scopes&bit == bit {
			out = append(out, p)
		}
	}
	return out
}

// HasPermissions reports whether scopes covers every bit of required.
func HasPermissions(scopes, required int) bool {
	return scopes&required == required
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
func VerifyPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// CurrentUser is the authenticated principal attached to a request.
type CurrentUser struct {
	ID          string
	Scopes      int
	Permissions []Permission
}

type currentUserKey struct{}

// WithCurrentUser stores the principal on the context.
func WithCurrentUser(ctx context.Context, user CurrentUser) context.Context {
	return context.WithValue(ctx, currentUserKey{}, user)
}

// UserFromContext retrieves the principal set by the auth middleware.
func UserFromContext(ctx context.Context) (CurrentUser, bool) {
	user, ok := ctx.Value(currentUserKey{}).(CurrentUser)
	return user, ok
}

// Tokens signs and validates HS256 tokens with the shared SECRET_KEY.
type Tokens struct {
	secret []byte
}

// NewTokens wraps the signing secret.
func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret)}
}

// AccessClaims is the payload of a short-lived bearer token.
type AccessClaims struct {
	Scopes int `json:"scopes"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of the refresh cookie; ID (jti) is the
// server-side handle that makes revocation possible.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// CreateAccessToken issues a bearer token for the user.
func (t *Tokens) CreateAccessToken(userID string, scopes int) (string, time.Time, error) {
	expires := time.Now().UTC().Add(AccessTokenTTL)
	claims := AccessClaims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	return signed, expires, err
}

// CreateRefreshToken issues the long-lived token identified by jti.
func (t *Tokens) CreateRefreshToken(userID, jti string) (string, time.Time, error) {
	expires := time.Now().UTC().Add(RefreshTokenTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	return signed, expires, err
}

// ParseAccess validates a bearer token and returns its claims.
func (t *Tokens) ParseAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := t.parse(token, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseRefresh validates a refresh token and returns its subject and jti.
func (t *Tokens) ParseRefresh(token string) (userID, jti string, err error) {
	claims := &RefreshClaims{}
	if err := t.parse(token, claims); err != nil {
		return "", "", err
	}
	if claims.Subject == "" || claims.ID == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.ID, nil
}

func (t *Tokens) parse(token string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(tok *jwt.Token) (interface{}, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithLeeway(tokenLeeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
