package users

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInviteNotFound     = errors.New("invite not found")
	ErrInviteExpired      = errors.New("invite expired")
	ErrInviteRateLimited  = errors.New("invite rate limit exceeded")
	ErrUserNotFound       = errors.New("user not found")
	ErrSelfDelete         = errors.New("cannot delete your own account")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Profile is an application user.
type Profile struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Nome         string    `json:"nome" gorm:"not null"`
	Email        string    `json:"email" gorm:"not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Ativo        bool      `json:"ativo" gorm:"not null;default:true"`
	CriadoEm     time.Time `json:"criado_em" gorm:"autoCreateTime"`
}

func (Profile) TableName() string { return "profiles" }

// UserRole grants a role to a user. A user may hold several.
type UserRole struct {
	ID       uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_role"`
	Role     workflows.Role `json:"role" gorm:"type:varchar(16);not null;uniqueIndex:idx_user_role"`
	CriadoEm time.Time      `json:"criado_em" gorm:"autoCreateTime"`
}

func (UserRole) TableName() string { return "user_roles" }

// Invite is a pending account invitation. The token is stored hashed;
// the raw value only travels in the invite email.
type Invite struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Email      string         `json:"email" gorm:"not null;index"`
	Nome       string         `json:"nome" gorm:"not null"`
	Role       workflows.Role `json:"role" gorm:"type:varchar(16);not null"`
	TokenHash  string         `json:"-" gorm:"not null;uniqueIndex"`
	CreatedBy  uuid.UUID      `json:"created_by" gorm:"type:uuid;not null;index"`
	SentAt     time.Time      `json:"sent_at" gorm:"not null"`
	ExpiresAt  time.Time      `json:"expires_at" gorm:"not null"`
	AcceptedAt *time.Time     `json:"accepted_at,omitempty"`
}

func (Invite) TableName() string { return "invites" }

// UserView is the admin listing shape: profile plus resolved roles.
type UserView struct {
	Profile
	Roles []workflows.Role `json:"roles"`
}

type InviteRequest struct {
	Email string         `json:"email" binding:"required"`
	Nome  string         `json:"nome" binding:"required"`
	Role  workflows.Role `json:"role"`
}

type CreateUserRequest struct {
	Email    string         `json:"email" binding:"required"`
	Nome     string         `json:"nome" binding:"required"`
	Password string         `json:"password" binding:"required"`
	Role     workflows.Role `json:"role"`
}

type AcceptInviteRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
