package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/echarter/fleetauth/core"
)

func TestMemory_FindAndUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	added, err := m.Add(core.Account{Email: " Driver@Fleet.io ", Kind: core.KindDriver, PasswordHash: "h1"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added.ID == "" {
		t.Fatal("Add should assign an ID")
	}

	got, err := m.FindByEmail(ctx, "driver@fleet.io")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.ID != added.ID || got.PasswordHash != "h1" {
		t.Errorf("FindByEmail = %+v", got)
	}

	n, err := m.UpdateCredentialHash(ctx, added.ID, "h2")
	if err != nil || n != 1 {
		t.Fatalf("UpdateCredentialHash = %d, %v", n, err)
	}
	got, _ = m.FindByEmail(ctx, "DRIVER@fleet.io")
	if got.PasswordHash != "h2" {
		t.Errorf("PasswordHash = %q, want h2", got.PasswordHash)
	}
}

func TestMemory_Missing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.FindByEmail(ctx, "nobody@x.com"); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
	n, err := m.UpdateCredentialHash(ctx, "missing", "h")
	if err != nil || n != 0 {
		t.Fatalf("UpdateCredentialHash = %d, %v; want 0, nil", n, err)
	}
}

func TestMemory_DuplicateEmail(t *testing.T) {
	m := NewMemory()
	if _, err := m.Add(core.Account{Email: "a@x.com"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := m.Add(core.Account{Email: "A@X.COM"}); err == nil {
		t.Fatal("duplicate email should be rejected")
	}
}
