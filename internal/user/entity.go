// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

// User is a row of the users table. The json tags describe the cache
// snapshot, which never carries the password hash.
type User struct {
	ID              int64      `db:"id"                json:"id"`
	Email           string     `db:"email"             json:"email"`
	Username        string     `db:"username"          json:"username"`
	PasswordHash    string     `db:"hashed_password"   json:"-"`
	FullName        *string    `db:"full_name"         json:"full_name,omitempty"`
	IsActive        bool       `db:"is_active"         json:"is_active"`
	IsVerified      bool       `db:"is_verified"       json:"is_verified"`
	IsSuperuser     bool       `db:"is_superuser"      json:"is_superuser"`
	LastLoginAt     *time.Time `db:"last_login_at"     json:"last_login_at,omitempty"`
	EmailVerifiedAt *time.Time `db:"email_verified_at" json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at"        json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"        json:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at"        json:"deleted_at,omitempty"`
}

// CreateInput carries already validated registration fields. Normalization
// happens in the service.
type CreateInput struct {
	Email    string
	Username string
	Password string
	FullName *string
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Email    *string
	Username *string
	FullName *string
	Password *string
	IsActive *bool
}

type ListParams struct {
	Skip     int
	Limit    int
	IsActive *bool
}

const (
	FieldEmail    = "email"
	FieldUsername = "username"
)
