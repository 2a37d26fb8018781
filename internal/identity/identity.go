// Package identity resolves the signed-in user of a request and carries it
// through the context.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/idtoken"

	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/observability"
)

// HeaderUserID carries the user id in local mode.
const HeaderUserID = "X-User-ID"

var ErrNoCredentials = errors.New("missing credentials")

type ctxKey struct{}

// WithUser returns a context signed in as userID.
func WithUser(ctx context.Context, userID domain.UserID) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFrom returns the user stored by WithUser.
func UserFrom(ctx context.Context) (domain.UserID, bool) {
	uid, ok := ctx.Value(ctxKey{}).(domain.UserID)
	return uid, ok && uid != ""
}

// ContextProvider implements domain.AuthProvider on top of WithUser.
type ContextProvider struct{}

func (ContextProvider) CurrentUserID(ctx context.Context) (domain.UserID, bool) {
	return UserFrom(ctx)
}

// Resolver extracts the user from an incoming request.
type Resolver interface {
	Resolve(r *http.Request) (domain.UserID, error)
}

// HeaderResolver trusts the X-User-ID header. Local mode only.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(r *http.Request) (domain.UserID, error) {
	uid := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if uid == "" {
		return "", ErrNoCredentials
	}
	return domain.UserID(uid), nil
}

// ValidateFunc checks a Google ID token. idtoken.Validate in production.
type ValidateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleResolver accepts a Google ID token as a bearer token and uses its
// subject as the user id.
type GoogleResolver struct {
	Audience string
	Validate ValidateFunc
}

func NewGoogleResolver(audience string) *GoogleResolver {
	return &GoogleResolver{Audience: audience, Validate: idtoken.Validate}
}

func (g *GoogleResolver) Resolve(r *http.Request) (domain.UserID, error) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrNoCredentials
	}

	payload, err := g.Validate(r.Context(), strings.TrimSpace(token), g.Audience)
	if err != nil {
		return "", err
	}
	if payload.Subject == "" {
		return "", ErrNoCredentials
	}
	return domain.UserID(payload.Subject), nil
}

// Middleware stores the resolved user in the request context. Requests
// without a valid identity get 401.
func Middleware(res Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, err := res.Resolve(r)
			if err != nil {
				observability.LoggerFromContext(r.Context()).Warn("rejecting unauthenticated request",
					"path", r.URL.Path,
					"error", err,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}

			ctx := WithUser(r.Context(), uid)
			ctx = observability.WithUserID(ctx, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
