package model

import (
	"time"

	"clipforge/internal/domain"

	"github.com/oklog/ulid/v2"
)

// User is a domain entity representing a credit-metered account.
// Credits are mutated only through the ledger use case, never directly.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Credits      int64
	CreatedAt    time.Time
}

func NewUser(id, username, passwordHash string, signupCredits int64) (*User, error) {
	if id == "" {
		id = ulid.Make().String()
	}
	if username == "" {
		return nil, domain.ErrInvalidArgument
	}
	if passwordHash == "" {
		return nil, domain.ErrInvalidArgument
	}
	if signupCredits < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Credits:      signupCredits,
		CreatedAt:    time.Now(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
