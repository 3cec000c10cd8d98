package entities

import (
	"time"
)

// UserRole is the account role
type UserRole string

const (
	// UserRoleMember is a medical technologist account
	UserRoleMember UserRole = "member"
	// UserRoleFaculty is the admin/director account
	UserRoleFaculty UserRole = "faculty"
)

// Role caps enforced on user creation and role changes
const (
	MaxFacultyUsers = 1
	MaxMemberUsers  = 8
)

// IsValid reports whether r is a known role.
func (r UserRole) IsValid() bool {
	return r == UserRoleMember || r == UserRoleFaculty
}

// Cap returns the maximum number of accounts allowed for r.
func (r UserRole) Cap() int {
	if r == UserRoleFaculty {
		return MaxFacultyUsers
	}
	return MaxMemberUsers
}

// UserStatus is the account status
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User represents a staff account
type User struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Email         string     `json:"email" db:"email"`
	Role          UserRole   `json:"role" db:"role"`
	Department    string     `json:"department" db:"department"`
	Status        UserStatus `json:"status" db:"status"`
	EncryptionKey string     `json:"encryption_key" db:"encryption_key"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Actor returns the audit attribution for u.
func (u *User) Actor(ip string) Actor {
	return Actor{UserID: u.ID, Name: u.Name, EncryptionKey: u.EncryptionKey, IPAddress: ip}
}

// Session is an authenticated sign-in
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenID     string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

// AuthEventType names an auth state change
type AuthEventType string

const (
	AuthEventSignedIn  AuthEventType = "SIGNED_IN"
	AuthEventSignedOut AuthEventType = "SIGNED_OUT"
)

// AuthEvent is delivered to auth state change listeners
type AuthEvent struct {
	Type    AuthEventType `json:"type"`
	Session *Session      `json:"session,omitempty"`
}
