// Package events publishes security-relevant account events to the message broker
// so that audit and notification consumers can react without polling the database.
package events

import (
	"context"
	"time"
)

// Type identifies an event and doubles as its routing key
type Type string

const (
	AccountLocked   Type = "account.locked"
	AccountUnlocked Type = "account.unlocked"
	SessionsRevoked Type = "sessions.revoked"
	PasswordChanged Type = "password.changed"
	UserCreated     Type = "user.created"
)

// Event is the payload published for every security event
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	UserID     int64             `json:"user_id"`
	ActorID    int64             `json:"actor_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Publisher delivers events to interested consumers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher discards events. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

func (NoopPublisher) Close() error { return nil }
