// AngelaMos | 2026
// event.go

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	MovieCreated     = "movie.created"
	MovieUpdated     = "movie.updated"
	MovieReactivated = "movie.reactivated"
	MovieDeactivated = "movie.deactivated"

	AccountRegistered    = "account.registered"
	AccountPasswordReset = "account.password_reset"
)

// Envelope wraps every payload put on the wire.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

func NewEnvelope(eventType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}, nil
}

// Decode unmarshals the envelope data into dst.
func (e Envelope) Decode(dst any) error {
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

type MovieEvent struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	IsActive bool   `json:"is_active"`
	ActorID  string `json:"actor_id,omitempty"`
}

type AccountRegisteredEvent struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type PasswordResetEvent struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	ConfirmURL string    `json:"confirm_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}
