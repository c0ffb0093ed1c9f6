// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

type CreateUserRequest struct {
	Email    string  `json:"email"               validate:"required,email,max=255"`
	Username string  `json:"username"            validate:"required,min=3,max=100,username"`
	Password string  `json:"password"            validate:"required,min=8,max=100,password_strength"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
}

func (r CreateUserRequest) ToInput() CreateInput {
	return CreateInput{
		Email:    r.Email,
		Username: r.Username,
		Password: r.Password,
		FullName: r.FullName,
	}
}

type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty"     validate:"omitempty,email,max=255"`
	Username *string `json:"username,omitempty"  validate:"omitempty,min=3,max=100,username"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
	Password *string `json:"password,omitempty"  validate:"omitempty,min=8,max=100,password_strength"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (r UpdateUserRequest) ToPatch() Patch {
	return Patch{
		Email:    r.Email,
		Username: r.Username,
		FullName: r.FullName,
		Password: r.Password,
		IsActive: r.IsActive,
	}
}

type UserResponse struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	FullName    *string    `json:"full_name"`
	IsActive    bool       `json:"is_active"`
	IsVerified  bool       `json:"is_verified"`
	IsSuperuser bool       `json:"is_superuser"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

type UserListResponse struct {
	Users   []UserResponse `json:"users"`
	Total   int            `json:"total"`
	Skip    int            `json:"skip"`
	Limit   int            `json:"limit"`
	HasMore bool           `json:"has_more"`
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FullName:    u.FullName,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		IsSuperuser: u.IsSuperuser,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToUserResponse(&users[i]))
	}
	return responses
}

func NewUserListResponse(users []User, total, skip, limit int) UserListResponse {
	return UserListResponse{
		Users:   ToUserResponseList(users),
		Total:   total,
		Skip:    skip,
		Limit:   limit,
		HasMore: skip+len(users) < total,
	}
}
