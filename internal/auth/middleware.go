package auth

import (
	"context"
	"net/http"
	"strings"

	"quizhub-service/internal/domain"
)

// Verifier turns a bearer token into a session.
type Verifier interface {
	Verify(raw string) (Session, error)
}

type contextKey struct{}

// WithSession stores the session in ctx.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session stored by the middleware, if any.
func FromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(Session)
	return sess, ok && sess.UID != ""
}

// CurrentUser is the "current user id, or absent" query of the auth provider.
func CurrentUser(ctx context.Context) (Session, error) {
	sess, ok := FromContext(ctx)
	if !ok {
		return Session{}, domain.ErrUnauthenticated
	}
	return sess, nil
}

// Middleware rejects requests without a valid bearer token. The token may also
// be passed as the access_token query parameter, which browsers need for
// websocket upgrades.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				http.Error(w, "authorization required", http.StatusUnauthorized)
				return
			}
			sess, err := v.Verify(raw)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return r.URL.Query().Get("access_token")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
