// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nexusforge/user-service/internal/core"
)

const PrincipalKey contextKey = "principal"

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	ID          int64
	Username    string
	Email       string
	IsActive    bool
	IsSuperuser bool
}

type PrincipalResolver interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// Authenticator resolves the bearer token into a Principal. It does not
// check the active flag; chain RequireActive for that.
func Authenticator(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)

			if token == "" {
				core.Unauthorized(w, "missing authorization token")
				return
			}

			principal, err := resolver.Authenticate(r.Context(), token)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := GetPrincipal(r.Context())

		if principal == nil {
			core.Unauthorized(w, "authentication required")
			return
		}

		if !principal.IsActive {
			core.Forbidden(w, "inactive user")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := GetPrincipal(r.Context())

		if principal == nil {
			core.Unauthorized(w, "authentication required")
			return
		}

		if !principal.IsSuperuser {
			core.Forbidden(w, "not enough privileges")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func handleAuthError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, core.ErrTokenExpired):
		w.Header().Set("WWW-Authenticate", "Bearer")
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenInvalid), errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	default:
		core.InternalServerError(w, err)
	}
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(PrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func GetUserID(ctx context.Context) int64 {
	if p := GetPrincipal(ctx); p != nil {
		return p.ID
	}
	return 0
}

func IsSuperuser(ctx context.Context) bool {
	p := GetPrincipal(ctx)
	return p != nil && p.IsSuperuser
}
