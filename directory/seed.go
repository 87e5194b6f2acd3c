package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/echarter/fleetauth/core"
)

// Creator stores a new account. *Postgres and *Memory implement it.
type Creator interface {
	Create(ctx context.Context, a core.Account) error
}

// Seed creates an admin account so a fresh environment has someone to reset.
func Seed(ctx context.Context, c Creator, h core.Hasher, email, password string) (core.Account, error) {
	email = core.NormalizeEmail(email)
	if email == "" || password == "" {
		return core.Account{}, errors.New("seed: email and password are required")
	}
	hash, err := h.Hash(password)
	if err != nil {
		return core.Account{}, fmt.Errorf("seed: hash: %w", err)
	}
	a := core.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Seed admin",
		Kind:         core.KindAdmin,
		PasswordHash: hash,
	}
	if err := c.Create(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("seed %s: %w", email, err)
	}
	return a, nil
}
