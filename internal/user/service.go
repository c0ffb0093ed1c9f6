// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nexusforge/user-service/internal/core"
)

// Cache is the user namespace of the cache store, keyed by decimal id.
type Cache interface {
	Get(ctx context.Context, id string) (User, bool)
	Set(ctx context.Context, id string, u User) bool
	Invalidate(ctx context.Context, id string) bool
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) bool
	VerifyTimingSafe(password string, encodedHash *string) bool
	NeedsRehash(encodedHash string) bool
}

type Service struct {
	repo   Repository
	cache  Cache
	hasher PasswordHasher
	logger *slog.Logger
	now    func() time.Time
}

func NewService(
	repo Repository,
	cache Cache,
	hasher PasswordHasher,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		hasher: hasher,
		logger: logger.With("component", "user_service"),
		now:    time.Now,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Create registers a new active, unverified, non-superuser account. The
// email check runs before the username check; the database unique indexes
// settle concurrent creates that both pass the pre-checks.
func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	ctx, span := core.StartSpan(ctx, "user.Create")
	defer span.End()

	email := NormalizeEmail(in.Email)
	username := NormalizeUsername(in.Username)

	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}
	if err := s.ensureUsernameFree(ctx, username, 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FullName:     in.FullName,
		IsActive:     true,
		IsVerified:   false,
		IsSuperuser:  false,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "user created",
		"user_id", user.ID,
		"username", user.Username,
	)

	return user, nil
}

// GetByID reads through the cache. Users served from the cache carry no
// password hash.
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	ctx, span := core.StartSpan(ctx, "user.GetByID",
		attribute.Int64("user.id", id),
	)
	defer span.End()

	key := cacheID(id)

	if cached, ok := s.cache.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		core.AddSpanEvent(ctx, "cache.hit", attribute.String("cache.key", key))
		return &cached, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))
	core.AddSpanEvent(ctx, "cache.miss", attribute.String("cache.key", key))

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, *user)

	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *Service) GetByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	return s.repo.GetByUsername(ctx, NormalizeUsername(username))
}

// List returns one page, newest first, and the total matching the same
// filter. Upper bounds on skip and limit belong to the caller.
func (s *Service) List(
	ctx context.Context,
	params ListParams,
) ([]User, int, error) {
	ctx, span := core.StartSpan(ctx, "user.List",
		attribute.Int("list.skip", params.Skip),
		attribute.Int("list.limit", params.Limit),
	)
	defer span.End()

	if params.Skip < 0 {
		params.Skip = 0
	}
	if params.Limit < 0 {
		params.Limit = 0
	}

	return s.repo.List(ctx, params)
}

// Update applies patch to the stored user. The cache entry is invalidated
// only after the write succeeds.
func (s *Service) Update(
	ctx context.Context,
	id int64,
	patch Patch,
) (*User, error) {
	ctx, span := core.StartSpan(ctx, "user.Update",
		attribute.Int64("user.id", id),
	)
	defer span.End()

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Email != nil {
		email := NormalizeEmail(*patch.Email)
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, id); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}

	if patch.Username != nil {
		username := NormalizeUsername(*patch.Username)
		if username != user.Username {
			if err := s.ensureUsernameFree(ctx, username, id); err != nil {
				return nil, err
			}
			user.Username = username
		}
	}

	if patch.FullName != nil {
		fullName := *patch.FullName
		user.FullName = &fullName
	}

	if patch.Password != nil {
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}

	if err := s.repo.Update(ctx, user); err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	s.invalidate(ctx, id)

	return user, nil
}

// SoftDelete marks the user deleted and inactive. It reports false when the
// user is absent or already deleted.
func (s *Service) SoftDelete(ctx context.Context, id int64) (bool, error) {
	ctx, span := core.StartSpan(ctx, "user.SoftDelete",
		attribute.Int64("user.id", id),
	)
	defer span.End()

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := s.repo.SoftDelete(ctx, id, s.now().UTC()); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		core.SetSpanError(ctx, err)
		return false, err
	}

	s.invalidate(ctx, id)

	s.logger.InfoContext(ctx, "user soft deleted", "user_id", id)

	return true, nil
}

func (s *Service) VerifyEmail(ctx context.Context, id int64) (*User, error) {
	ctx, span := core.StartSpan(ctx, "user.VerifyEmail",
		attribute.Int64("user.id", id),
	)
	defer span.End()

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	if err := s.repo.MarkEmailVerified(ctx, id, at); err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	s.invalidate(ctx, id)

	user.IsVerified = true
	user.EmailVerifiedAt = &at

	return user, nil
}

func (s *Service) UpdateLastLogin(ctx context.Context, id int64) error {
	if err := s.repo.TouchLastLogin(ctx, id, s.now().UTC()); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	return nil
}

// CheckCredentials looks the user up by email when login contains "@" and
// by username otherwise. Unknown users and wrong passwords both yield
// core.ErrUnauthorized after the same amount of hashing work.
func (s *Service) CheckCredentials(
	ctx context.Context,
	login, password string,
) (*User, error) {
	ctx, span := core.StartSpan(ctx, "user.CheckCredentials")
	defer span.End()

	var (
		user *User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.GetByEmail(ctx, login)
	} else {
		user, err = s.GetByUsername(ctx, login)
	}

	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.hasher.VerifyTimingSafe(password, nil)
			return nil, fmt.Errorf("check credentials: %w", core.ErrUnauthorized)
		}
		return nil, err
	}

	if !s.hasher.VerifyTimingSafe(password, &user.PasswordHash) {
		return nil, fmt.Errorf("check credentials: %w", core.ErrUnauthorized)
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	return user, nil
}

func (s *Service) rehash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}

	user.PasswordHash = hash
	if err := s.repo.Update(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}

	s.invalidate(ctx, user.ID)
}

func (s *Service) ensureEmailFree(
	ctx context.Context,
	email string,
	selfID int64,
) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return core.NewDuplicateFieldError(FieldEmail, email)
	}
	return nil
}

func (s *Service) ensureUsernameFree(
	ctx context.Context,
	username string,
	selfID int64,
) error {
	existing, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return core.NewDuplicateFieldError(FieldUsername, username)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	key := cacheID(id)
	s.cache.Invalidate(ctx, key)
	core.AddSpanEvent(ctx, "cache.invalidate", attribute.String("cache.key", key))
}

func cacheID(id int64) string {
	return strconv.FormatInt(id, 10)
}
