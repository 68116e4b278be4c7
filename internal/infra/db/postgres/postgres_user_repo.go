package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"clipforge/internal/domain"
	"clipforge/internal/domain/model"
	"clipforge/internal/domain/ports/repository"
	"clipforge/internal/infra/metrics"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

// Save inserts a new user. Updates never touch the credit balance; that is
// reserved for DebitCredits/CreditCredits.
func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, username, password_hash, credits, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
  username = EXCLUDED.username,
  password_hash = EXCLUDED.password_hash;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, u.ID, u.Username, u.PasswordHash, u.Credits, u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `
SELECT id, username, password_hash, credits, created_at
  FROM users WHERE id = $1;`
	return r.scanOne(ctx, tx, q, id)
}

func (r *PostgresUserRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.User, error) {
	const q = `
SELECT id, username, password_hash, credits, created_at
  FROM users WHERE username = $1;`
	return r.scanOne(ctx, tx, q, username)
}

func (r *PostgresUserRepo) scanOne(ctx context.Context, tx repository.Tx, q string, arg interface{}) (*model.User, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := ex.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Credits, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// DebitCredits is a conditional single-row update; the WHERE clause is what
// keeps the balance non-negative under concurrent submissions.
func (r *PostgresUserRepo) DebitCredits(ctx context.Context, tx repository.Tx, userID string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx,
		`UPDATE users SET credits = credits - $2 WHERE id = $1 AND credits >= $2;`,
		userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, tx, userID); err != nil {
			return err
		}
		return domain.ErrInsufficientCredits
	}
	metrics.AddCreditsDebited(amount)
	return nil
}

func (r *PostgresUserRepo) CreditCredits(ctx context.Context, tx repository.Tx, userID string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx,
		`UPDATE users SET credits = credits + $2 WHERE id = $1;`,
		userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	metrics.AddCreditsRefunded(amount)
	return nil
}
