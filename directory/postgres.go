package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/echarter/fleetauth/core"
)

// querier is the part of *pgxpool.Pool the directory uses.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres reads and updates accounts in the accounts table.
type Postgres struct {
	db querier
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool}
}

// Open connects a pool and pings it.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const findByEmailSQL = `
SELECT id::text, email, name, kind, password_hash
FROM accounts
WHERE LOWER(email) = LOWER($1)`

func (p *Postgres) FindByEmail(ctx context.Context, email string) (*core.Account, error) {
	var a core.Account
	err := p.db.QueryRow(ctx, findByEmailSQL, core.NormalizeEmail(email)).
		Scan(&a.ID, &a.Email, &a.Name, &a.Kind, &a.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &a, nil
}

const updateHashSQL = `
UPDATE accounts
SET password_hash = $2, updated_at = now()
WHERE id = $1::uuid`

func (p *Postgres) UpdateCredentialHash(ctx context.Context, accountID, hash string) (int64, error) {
	tag, err := p.db.Exec(ctx, updateHashSQL, accountID, hash)
	if err != nil {
		return 0, fmt.Errorf("update password hash: %w", err)
	}
	return tag.RowsAffected(), nil
}

const insertAccountSQL = `
INSERT INTO accounts (id, email, name, kind, password_hash)
VALUES ($1::uuid, LOWER($2), $3, $4, $5)`

// Create inserts an account for Seed. Registration lives elsewhere.
func (p *Postgres) Create(ctx context.Context, a core.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, err := p.db.Exec(ctx, insertAccountSQL, a.ID, a.Email, a.Name, a.Kind, a.PasswordHash); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}
