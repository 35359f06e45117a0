package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/soaringjerry/surveyor/internal/models"
)

type authCtxKey int

const authKey authCtxKey = 7

const defaultSecret = "surveyor-dev-secret"

type Claims struct {
	UID   string      `json:"uid"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// User returns the user the token was issued for.
func (c *Claims) User() models.User {
	return models.User{ID: c.UID, Email: c.Email, Role: c.Role}
}

// Signer issues and verifies HS256 session tokens.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewSigner(secret, issuer string) *Signer {
	if strings.TrimSpace(secret) == "" {
		secret = defaultSecret
	}
	return &Signer{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Sign matches services.TokenSigner.
func (s *Signer) Sign(u models.User, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UID:   u.ID,
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Signer) Parse(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

type authInfo struct {
	claims *Claims
	token  string
}

// WithAuth attaches claims to the request context when a valid bearer token is
// present. active, when set, can reject tokens that were logged out.
func WithAuth(s *Signer, active func(token string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if strings.HasPrefix(h, "Bearer ") {
				tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
				if c, err := s.Parse(tok); err == nil && (active == nil || active(tok)) {
					ctx := context.WithValue(r.Context(), authKey, &authInfo{claims: c, token: tok})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	if info, ok := ctx.Value(authKey).(*authInfo); ok && info.claims != nil {
		return info.claims, true
	}
	return nil, false
}

func TokenFromContext(ctx context.Context) (string, bool) {
	if info, ok := ctx.Value(authKey).(*authInfo); ok && info.token != "" {
		return info.token, true
	}
	return "", false
}
