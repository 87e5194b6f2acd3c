package main

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/echarter/fleetauth/core"
	"github.com/echarter/fleetauth/internal/config"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestBuildDirectory_MemorySeeded(t *testing.T) {
	buf := captureLog(t)
	cfg := &config.Config{SeedEmail: "Admin@Echarter.test", SeedPassword: "s3cret!", BcryptCost: 4}

	dir, closeFn := buildDirectory(context.Background(), cfg)
	defer closeFn()

	a, err := dir.FindByEmail(context.Background(), "admin@echarter.test")
	if err != nil {
		t.Fatalf("seeded account missing: %v", err)
	}
	if !core.NewBcryptHasher(4).Compare("s3cret!", a.PasswordHash) {
		t.Error("seeded password does not match")
	}
	if strings.Contains(buf.String(), "WARNING") {
		t.Errorf("unexpected warning: %s", buf.String())
	}
}

func TestBuildDirectory_MemoryEmptyWarns(t *testing.T) {
	buf := captureLog(t)

	dir, closeFn := buildDirectory(context.Background(), &config.Config{BcryptCost: 4})
	defer closeFn()

	if _, err := dir.FindByEmail(context.Background(), "anyone@echarter.test"); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
	if !strings.Contains(buf.String(), "WARNING") || !strings.Contains(buf.String(), "SEED_EMAIL") {
		t.Errorf("missing startup warning, log = %q", buf.String())
	}
}
