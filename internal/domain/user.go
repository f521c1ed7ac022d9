package domain

import "time"

// UserRole distinguishes administrative accounts from regular ones.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// ValidRole reports whether the value is one of the known roles.
func ValidRole(r UserRole) bool {
	return r == RoleAdmin || r == RoleUser
}

// UserStatus represents account lifecycle states.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// ValidStatus reports whether the value is one of the known statuses.
func ValidStatus(s UserStatus) bool {
	return s == UserStatusActive || s == UserStatusInactive
}

// User is the domain model for accounts managed by this service.
// The password hash is never serialized.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
