package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// User is an account holder. Every user owns at most one Wallet.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrUsernameTaken is returned by stores when a username is already registered.
var ErrUsernameTaken = errors.New("username already taken")
