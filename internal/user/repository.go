// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nexusforge/user-service/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, params ListParams) ([]User, int, error)
	Update(ctx context.Context, user *User) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	MarkEmailVerified(ctx context.Context, id int64, at time.Time) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

const userColumns = `id, email, username, hashed_password, full_name,
		       is_active, is_verified, is_superuser,
		       last_login_at, email_verified_at,
		       created_at, updated_at, deleted_at`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, username, hashed_password, full_name,
		                   is_active, is_verified, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.GetContext(ctx, user, query,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.FullName,
		user.IsActive,
		user.IsVerified,
		user.IsSuperuser,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", mapUniqueViolation(err, user))
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, "get user", "id = $1", id)
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	return r.getOne(ctx, "get user by email", "email = $1", email)
}

func (r *repository) GetByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	return r.getOne(ctx, "get user by username", "username = $1", username)
}

func (r *repository) getOne(
	ctx context.Context,
	op, predicate string,
	arg any,
) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ` + predicate + ` AND deleted_at IS NULL`

	var user User
	err := r.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]User, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []any
	argIdx := 1

	if params.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *params.IsActive)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+userColumns+`
		FROM users
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.Limit, params.Skip)

	users := []User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET email = $2, username = $3, hashed_password = $4, full_name = $5,
		    is_active = $6, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.FullName,
		user.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", mapUniqueViolation(err, user))
	}

	return nil
}

func (r *repository) SoftDelete(
	ctx context.Context,
	id int64,
	at time.Time,
) error {
	query := `
		UPDATE users
		SET deleted_at = $2, is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "delete user", query, id, at)
}

func (r *repository) MarkEmailVerified(
	ctx context.Context,
	id int64,
	at time.Time,
) error {
	query := `
		UPDATE users
		SET is_verified = TRUE, email_verified_at = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "verify email", query, id, at)
}

func (r *repository) TouchLastLogin(
	ctx context.Context,
	id int64,
	at time.Time,
) error {
	query := `
		UPDATE users
		SET last_login_at = $2
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "update last login", query, id, at)
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

// mapUniqueViolation turns a unique index violation into the duplicate error
// for the field that owns the index (ix_users_email, ix_users_username).
func mapUniqueViolation(err error, user *User) error {
	constraint, ok := core.UniqueViolation(err)
	if !ok {
		return err
	}

	switch {
	case strings.Contains(constraint, FieldUsername):
		return core.NewDuplicateFieldError(FieldUsername, user.Username)
	case strings.Contains(constraint, FieldEmail):
		return core.NewDuplicateFieldError(FieldEmail, user.Email)
	default:
		return fmt.Errorf("%w: %s", core.ErrDuplicateKey, constraint)
	}
}
