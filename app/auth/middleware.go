package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/models"
)

type ctxKey int

const userKey ctxKey = iota

type UserLoader interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
}

// WithUser stores the authenticated user on ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFrom returns the authenticated user or nil for guests.
func UserFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}

// Authenticate resolves a bearer token into a user. Requests without a token
// pass through as guests; a bad token is rejected with 401.
func Authenticate(tokens *Tokens, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httpx.WriteError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			claims, err := tokens.Parse(parts[1])
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			id, err := claims.UserID()
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			user, err := users.GetUser(r.Context(), id)
			if err != nil {
				httpx.Log(r.Context()).WithError(err).WithField("user_id", id).Warn("token for unknown user")
				httpx.WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = httpx.WithLogger(ctx, httpx.Log(ctx).WithField("user_id", user.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects guests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()) == nil {
			httpx.WriteError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects guests with 401 and users lacking every role with 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !UserFrom(r.Context()).HasRole(roles...) {
				httpx.WriteError(w, http.StatusForbidden, "You are not allowed to access this resource")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
