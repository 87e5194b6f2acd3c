package directory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/echarter/fleetauth/core"
)

// Memory is an in-process AccountDirectory.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]*core.Account
	byEmail map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[string]*core.Account),
		byEmail: make(map[string]string),
	}
}

// Add stores a copy of a. A missing ID is filled with a new UUID.
func (m *Memory) Add(a core.Account) (core.Account, error) {
	a.Email = core.NormalizeEmail(a.Email)
	if a.Email == "" {
		return core.Account{}, errors.New("email is required")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[a.Email]; taken {
		return core.Account{}, errors.New("email already exists")
	}
	m.byID[a.ID] = &a
	m.byEmail[a.Email] = a.ID
	return a, nil
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*core.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[core.NormalizeEmail(email)]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *Memory) UpdateCredentialHash(_ context.Context, accountID, hash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[accountID]
	if !ok {
		return 0, nil
	}
	a.PasswordHash = hash
	return 1, nil
}

func (m *Memory) Create(_ context.Context, a core.Account) error {
	_, err := m.Add(a)
	return err
}
