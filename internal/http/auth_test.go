package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/milkshop/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator_RoundTrip(t *testing.T) {
	a := NewAuthenticator("secret", "milkshop")
	want := User{
		ID:      "u1",
		Role:    RoleSeller,
		Name:    "Ana",
		Email:   "ana@example.com",
		Address: &domain.ShippingAddress{FirstName: "Ana", LastName: "Cruz", Address: "1 Rizal St", City: "Cebu", ZipCode: "6000"},
	}
	token, err := a.Sign(want, time.Minute)
	require.NoError(t, err)

	u, err := a.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, want, u)

	token, err = a.Sign(User{ID: "u2", Role: RoleCustomer}, time.Minute)
	require.NoError(t, err)
	u, err = a.Parse(token)
	require.NoError(t, err)
	assert.Nil(t, u.Address)
}

func TestAuthenticator_Rejects(t *testing.T) {
	a := NewAuthenticator("secret", "milkshop")

	expired, err := a.Sign(User{ID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = a.Parse(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	foreign, err := NewAuthenticator("other-secret", "milkshop").Sign(User{ID: "u1"}, time.Minute)
	require.NoError(t, err)
	_, err = a.Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	otherIssuer, err := NewAuthenticator("secret", "someone-else").Sign(User{ID: "u1"}, time.Minute)
	require.NoError(t, err)
	_, err = a.Parse(otherIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject, err := a.Sign(User{Role: RoleCustomer}, time.Minute)
	require.NoError(t, err)
	_, err = a.Parse(noSubject)
	assert.ErrorIs(t, err, ErrMissingUser)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware_PutsUserInContext(t *testing.T) {
	a := NewAuthenticator("secret", "")
	token, err := a.Sign(User{ID: "u7", Role: RoleCustomer}, time.Minute)
	require.NoError(t, err)

	var got User
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status code %d, got %d", http.StatusNoContent, rec.Code)
	}
	if got.ID != "u7" {
		t.Errorf("Expected user id u7, got %q", got.ID)
	}
}

func TestMiddleware_MissingToken(t *testing.T) {
	a := NewAuthenticator("secret", "")
	h := a.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not be called")
	}))

	for _, header := range []string{"", "Bearer ", "Basic dXNlcjpwYXNz", "Bearer garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status code %d, got %d", header, http.StatusUnauthorized, rec.Code)
		}
		var response ErrorResponse
		json.NewDecoder(rec.Body).Decode(&response)
		if response.Code != "unauthorized" {
			t.Errorf("header %q: expected error code 'unauthorized', got '%s'", header, response.Code)
		}
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(RoleSeller)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"no user", context.Background(), http.StatusUnauthorized},
		{"customer", WithUser(context.Background(), User{ID: "c", Role: RoleCustomer}), http.StatusForbidden},
		{"seller", WithUser(context.Background(), User{ID: "s", Role: RoleSeller}), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(tc.ctx)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestStreamMiddleware_TokenInQuery(t *testing.T) {
	a := NewAuthenticator("secret", "")
	token, err := a.Sign(User{ID: "u7", Role: RoleSeller}, time.Minute)
	require.NoError(t, err)

	var viewer User
	h := a.StreamMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?access_token="+token, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status code %d, got %d", http.StatusNoContent, rec.Code)
	}
	if viewer.ID != "u7" {
		t.Errorf("Expected user id u7, got %q", viewer.ID)
	}

	// plain Middleware ignores the query parameter
	rec = httptest.NewRecorder()
	a.Middleware(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?access_token="+token, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status code %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}
