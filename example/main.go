package main

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/echarter/fleetauth/core"
	"github.com/echarter/fleetauth/directory"
)

// inbox stands in for the driver's mailbox.
type inbox struct {
	mu   sync.Mutex
	last string
}

func (i *inbox) SendCode(_ context.Context, to, code string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.last = code
	fmt.Printf("  [mail to %s] your reset code is %s\n", to, code)
	return nil
}

func main() {
	ctx := context.Background()

	accounts := directory.NewMemory()
	hasher := core.NewBcryptHasher(core.DefaultBcryptCost)
	hash, err := hasher.Hash("OldPass123")
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	driver, err := accounts.Add(core.Account{Email: "driver@fleet.io", Name: "Dana Driver", Kind: core.KindDriver, PasswordHash: hash})
	if err != nil {
		log.Fatalf("add account: %v", err)
	}

	mail := &inbox{}
	manager, err := core.NewManagerWithOptions(core.ManagerOptions{
		Directory:         accounts,
		Notifier:          mail,
		JWTSecret:         "example-secret",
		JWTIssuer:         "echarter-auth",
		MaxVerifyAttempts: 5,
	})
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}

	fmt.Println("Requesting a reset code:")
	if err := manager.RequestReset(ctx, "Driver@Fleet.io"); err != nil {
		log.Fatalf("request reset: %v", err)
	}

	if _, err := manager.VerifyReset(ctx, driver.Email, "000000"); err != nil {
		fmt.Printf("\nWrong code rejected: %v\n", err)
	}

	token, err := manager.VerifyReset(ctx, driver.Email, mail.last)
	if err != nil {
		log.Fatalf("verify: %v", err)
	}
	fmt.Printf("\nCode verified, reset token expires at %s\n", token.ExpiresAt.Format("15:04:05"))

	if err := manager.ApplyNewPassword(ctx, token.Value, "N3wPass!"); err != nil {
		log.Fatalf("apply: %v", err)
	}
	fmt.Println("Password reset successful")

	if err := manager.ApplyNewPassword(ctx, token.Value, "Again123"); err != nil {
		fmt.Printf("As expected, the token cannot be used twice: %v\n", err)
	}

	if err := manager.ChangePassword(ctx, driver.Email, "N3wPass!", "Th1rdPass"); err != nil {
		log.Fatalf("change: %v", err)
	}
	fmt.Println("Password changed with the old password")
}
