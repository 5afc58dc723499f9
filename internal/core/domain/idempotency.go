package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotentResponse is a stored HTTP outcome replayed for a repeated Idempotency-Key.
type IdempotentResponse struct {
	StatusCode int       `json:"status_code"`
	Body       []byte    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// BuildIdempotencyKey scopes a client-supplied key to the calling user and route.
func BuildIdempotencyKey(userID uuid.UUID, route, clientKey string) string {
	return userID.String() + ":" + route + ":" + clientKey
}
