package identity_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"

	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/identity"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := identity.ContextProvider{}.CurrentUserID(r.Context())
		_, _ = w.Write([]byte(uid))
	})
}

func TestContextProvider(t *testing.T) {
	_, ok := identity.ContextProvider{}.CurrentUserID(context.Background())
	assert.False(t, ok)

	ctx := identity.WithUser(context.Background(), "u1")
	uid, ok := identity.ContextProvider{}.CurrentUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, domain.UserID("u1"), uid)
}

func TestMiddleware_Header(t *testing.T) {
	h := identity.Middleware(identity.HeaderResolver{})(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(identity.HeaderUserID, "alice")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestMiddleware_GoogleToken(t *testing.T) {
	res := &identity.GoogleResolver{
		Audience: "client-id",
		Validate: func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
			if token != "good" || audience != "client-id" {
				return nil, errors.New("invalid token")
			}
			return &idtoken.Payload{Subject: "google-sub-1"}, nil
		},
	}
	h := identity.Middleware(res)(echoUser())

	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{name: "missing", header: "", code: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", code: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer bad", code: http.StatusUnauthorized},
		{name: "valid", header: "Bearer good", code: http.StatusOK, body: "google-sub-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tc.code, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}
