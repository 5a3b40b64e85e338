package auth

import (
	"context"
	"net/http"
	"strings"

	log "github.com/go-pkgz/lgr"
)

type ctxKey struct{}

// UserLoader resolves a session user id into the current user row.
// It should return an error if the user no longer exists.
type UserLoader interface {
	LoadUser(ctx context.Context, id int64) (AuthenticatedUser, error)
}

// UserLoaderFunc adapts a function to UserLoader
type UserLoaderFunc func(ctx context.Context, id int64) (AuthenticatedUser, error)

// LoadUser calls f
func (f UserLoaderFunc) LoadUser(ctx context.Context, id int64) (AuthenticatedUser, error) {
	return f(ctx, id)
}

// WithUser returns ctx carrying the user
func WithUser(ctx context.Context, user AuthenticatedUser) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFromContext returns the user attached by Guard, anonymous if none
func UserFromContext(ctx context.Context) AuthenticatedUser {
	user, ok := ctx.Value(ctxKey{}).(AuthenticatedUser)
	if !ok {
		return AuthenticatedUser{}
	}
	return user
}

// Guard resolves the session of every request and attaches the user to the request context.
// Requests to prefix or anything under it without an authenticated user are redirected to loginPath.
func Guard(sessions *Sessions, loader UserLoader, prefix, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var current Authenticator = AuthenticatedUser{}
			if user, err := sessions.Read(r); err == nil {
				loaded, lerr := loader.LoadUser(r.Context(), user.ID)
				if lerr != nil {
					log.Printf("[DEBUG] session for user %d rejected: %v", user.ID, lerr)
				} else {
					current = loaded
					r = r.WithContext(WithUser(r.Context(), loaded))
				}
			}

			if underPrefix(r.URL.Path, prefix) && !current.IsAuthenticated() {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func underPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
