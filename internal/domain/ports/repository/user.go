package repository

import (
	"context"

	"clipforge/internal/domain/model"
)

// UserRepository persists accounts and their credit balances.
//
// DebitCredits and CreditCredits are the only balance mutations in the
// system; both are conditional single-row updates so the non-negative
// balance invariant holds without read-modify-write races.
type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByUsername(ctx context.Context, tx Tx, username string) (*model.User, error)

	// DebitCredits subtracts amount from the balance, failing with
	// domain.ErrInsufficientCredits when the balance is too low.
	DebitCredits(ctx context.Context, tx Tx, userID string, amount int64) error
	// CreditCredits adds amount back to the balance.
	CreditCredits(ctx context.Context, tx Tx, userID string, amount int64) error
}
