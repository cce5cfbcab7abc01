package account

import (
	"context"
	"slices"
	"time"
)

// Role is the platform role carried in tokens.
type Role string

const (
	RoleUser      Role = "user"
	RoleRecruiter Role = "recruiter"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return slices.Contains([]Role{RoleUser, RoleRecruiter, RoleAdmin}, r)
}

// User is an account record. PasswordHash is an encoded digest and never
// leaves the process.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`
	IsSuspended  bool      `json:"is_suspended"`
	TOTPEnabled  bool      `json:"totp_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserStore persists users. Emails are stored normalized.
type UserStore interface {
	// CreateUser inserts u or returns ErrUserExists when the email is taken.
	CreateUser(ctx context.Context, u *User) error

	// UserByID and UserByEmail return ErrUserNotFound when nothing matches.
	UserByID(ctx context.Context, id string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)

	// MarkVerified flips is_verified from false to true, or returns ErrStale
	// if the user was already verified.
	MarkVerified(ctx context.Context, id string, at time.Time) error

	// UpdatePassword replaces the stored digest.
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error

	// DeleteUser removes the user and everything that references it.
	DeleteUser(ctx context.Context, id string) error
}

// Enrollment is the TOTP state of a user. Secret holds the sealed base32
// secret, never the plaintext.
type Enrollment struct {
	UserID    string
	Secret    string
	Enabled   bool
	CreatedAt time.Time
	EnabledAt *time.Time
}

// EnrollmentStore persists TOTP enrollments.
type EnrollmentStore interface {
	// Enrollment returns ErrEnrollmentNotFound when the user never enrolled.
	Enrollment(ctx context.Context, userID string) (*Enrollment, error)

	// SavePending creates or replaces a not yet enabled enrollment. It
	// returns ErrStale when an enabled enrollment exists.
	SavePending(ctx context.Context, e *Enrollment) error

	// Enable flips enabled from false to true, or returns ErrStale.
	Enable(ctx context.Context, userID string, at time.Time) error

	// DeleteEnrollment removes the enrollment and its secret.
	DeleteEnrollment(ctx context.Context, userID string) error
}
