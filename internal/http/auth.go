package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/milkshop/internal/domain"
	"github.com/fjod/milkshop/internal/relay"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleSeller   = "seller"
	RoleCustomer = "customer"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingUser  = errors.New("missing subject in claims")
)

// Claims issued by the auth service. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	// Address is the profile's delivery address, if the user saved one.
	Address *domain.ShippingAddress `json:"address,omitempty"`
}

type User struct {
	ID      string
	Role    string
	Name    string
	Email   string
	Address *domain.ShippingAddress
}

type contextKey int

const userKey contextKey = iota

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

// Authenticator checks HS256 bearer tokens signed with a secret shared with
// the auth service.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Sign issues a token for u. The store never logs anyone in; this is for
// tooling and tests.
func (a *Authenticator) Sign(u User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:    u.Role,
		Name:    u.Name,
		Email:   u.Email,
		Address: u.Address,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Parse(tokenString string) (User, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return User{}, ErrExpiredToken
		}
		return User{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return User{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return User{}, ErrMissingUser
	}
	return User{
		ID:      claims.Subject,
		Role:    claims.Role,
		Name:    claims.Name,
		Email:   claims.Email,
		Address: claims.Address,
	}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return a.authenticate(next, false)
}

// StreamMiddleware is Middleware for the event stream. Browsers cannot set
// headers on a websocket handshake, so the token may also come in the
// access_token query parameter. The caller becomes the stream's viewer.
func (a *Authenticator) StreamMiddleware(next http.Handler) http.Handler {
	return a.authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := UserFromContext(r.Context())
		next.ServeHTTP(w, r.WithContext(relay.WithViewer(r.Context(), u.ID)))
	}), true)
}

func (a *Authenticator) authenticate(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found {
			raw = ""
		}
		if raw == "" && allowQuery {
			raw = r.URL.Query().Get("access_token")
		}
		if raw == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		u, err := a.Parse(raw)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireRole lets through only callers with the given role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
				return
			}
			if u.Role != role {
				respondError(w, http.StatusForbidden, "permission_denied", "requires role "+role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
