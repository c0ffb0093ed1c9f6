// AngelaMos | 2026
// resolver.go

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/nexusforge/user-service/internal/core"
	"github.com/nexusforge/user-service/internal/middleware"
	"github.com/nexusforge/user-service/internal/user"
)

type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// Resolver turns a bearer token into the live user it names. Stages are
// meant to run in order: Resolve, RequireActive, then RequireSuperuser.
type Resolver struct {
	tokens TokenVerifier
	users  UserLookup
}

func NewResolver(tokens TokenVerifier, users UserLookup) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve verifies the token and loads its subject. Bad or expired tokens
// and unknown or deleted subjects all wrap core.ErrUnauthorized; store
// failures are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, token string) (*user.User, error) {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrUnauthorized, err)
	}

	u, err := r.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("resolve user %d: %w", claims.UserID, core.ErrUnauthorized)
		}
		return nil, err
	}

	return u, nil
}

func (r *Resolver) RequireActive(u *user.User) (*user.User, error) {
	if !u.IsActive {
		return nil, fmt.Errorf("inactive user: %w", core.ErrForbidden)
	}
	return u, nil
}

func (r *Resolver) RequireSuperuser(u *user.User) (*user.User, error) {
	if !u.IsSuperuser {
		return nil, fmt.Errorf("not enough privileges: %w", core.ErrForbidden)
	}
	return u, nil
}

// Authenticate implements middleware.PrincipalResolver. The active and
// superuser checks are left to the route middleware.
func (r *Resolver) Authenticate(
	ctx context.Context,
	token string,
) (*middleware.Principal, error) {
	u, err := r.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	return &middleware.Principal{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
	}, nil
}
