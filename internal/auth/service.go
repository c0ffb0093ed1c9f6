// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nexusforge/user-service/internal/core"
	"github.com/nexusforge/user-service/internal/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("inactive user")
)

const tokenTypeBearer = "bearer"

type UserProvider interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	CheckCredentials(ctx context.Context, login, password string) (*user.User, error)
	UpdateLastLogin(ctx context.Context, id int64) error
}

type TokenIssuer interface {
	Issue(subjectID int64, claims Claims, ttl time.Duration) (string, error)
	DefaultTTL() time.Duration
}

type Service struct {
	tokens       TokenIssuer
	userProvider UserProvider
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(
	tokens TokenIssuer,
	userProvider UserProvider,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tokens:       tokens,
		userProvider: userProvider,
		logger:       logger.With("component", "auth_service"),
		now:          time.Now,
	}
}

// Login checks the credentials and issues an access token. login may be an
// email or a username.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
) (*TokenResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.Login")
	defer span.End()

	u, err := s.userProvider.CheckCredentials(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("check credentials: %w", err)
	}

	if !u.IsActive {
		return nil, ErrInactiveUser
	}

	ttl := s.tokens.DefaultTTL()
	issuedAt := s.now()

	token, err := s.tokens.Issue(u.ID, Claims{
		Username: u.Username,
		Email:    u.Email,
	}, ttl)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if err := s.userProvider.UpdateLastLogin(ctx, u.ID); err != nil {
		s.logger.WarnContext(ctx, "last login update failed",
			"user_id", u.ID,
			"error", err,
		)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", u.ID)

	return &TokenResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int(ttl / time.Second),
		ExpiresAt:   issuedAt.Add(ttl).UTC(),
	}, nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID int64,
) (*user.UserResponse, error) {
	u, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := user.ToUserResponse(u)
	return &resp, nil
}
