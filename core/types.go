package core

import (
	"errors"
	"strings"
	"time"
)

// Entry is a pending reset code for one account.
type Entry struct {
	AccountID string    `json:"account_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is dead at now. An entry is dead at exactly ExpiresAt.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Token is a signed reset-authorization credential handed to the caller after a code
// has been verified.
type Token struct {
	ID        string    `json:"id"`
	Value     string    `json:"token"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the facts a reset-authorization token carries.
type Claims struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
}

// Account kinds on the platform.
const (
	KindDriver   = "driver"
	KindCompany  = "company"
	KindCustomer = "customer"
	KindAdmin    = "admin"
)

// Account is the directory record a reset acts on. ID is what credential updates
// are keyed by.
type Account struct {
	ID           string
	Email        string
	Name         string
	Kind         string
	PasswordHash string
}

// Notification is a reset code on its way to an account's contact address.
type Notification struct {
	To         string    `json:"to"`
	Code       string    `json:"code"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrNoRequestFound        = errors.New("no reset request found")
	ErrCodeExpired           = errors.New("reset code expired")
	ErrCodeMismatch          = errors.New("incorrect reset code")
	ErrTooManyAttempts       = errors.New("too many verification attempts")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrIncorrectOldPassword  = errors.New("incorrect old password")
	ErrPersistenceFailure    = errors.New("password update failed")
	ErrNotifierFailure       = errors.New("notification dispatch failed")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrInvalidInput          = errors.New("invalid input")
)

// NormalizeEmail trims and lower-cases an email so it can be used as a store key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
