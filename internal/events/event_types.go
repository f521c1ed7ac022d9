package events

import (
	"time"

	"github.com/spec-kit/user-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserCreated         EventType = "user_created"
	EventUserStatusChanged   EventType = "user_status_changed"
	EventUserPasswordChanged EventType = "user_password_changed"
	EventUserDeleted         EventType = "user_deleted"
)

// Actor encapsulates who triggered an event. Empty ActorID means the system
// itself (signup, seeding).
type Actor struct {
	ActorID string          `json:"actor_id,omitempty"`
	Role    domain.UserRole `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserCreatedPayload payload.
type UserCreatedPayload struct {
	Email    string          `json:"email"`
	FullName string          `json:"full_name"`
	Role     domain.UserRole `json:"role"`
	Signup   bool            `json:"signup"`
}

// UserStatusChangedPayload payload.
type UserStatusChangedPayload struct {
	OldStatus domain.UserStatus `json:"old_status"`
	NewStatus domain.UserStatus `json:"new_status"`
}

// UserPasswordChangedPayload payload.
type UserPasswordChangedPayload struct {
	Email   string `json:"email"`
	ByAdmin bool   `json:"by_admin"`
	Reset   bool   `json:"reset"`
}

// UserDeletedPayload payload.
type UserDeletedPayload struct {
	Email      string `json:"email"`
	SelfDelete bool   `json:"self_delete"`
}
