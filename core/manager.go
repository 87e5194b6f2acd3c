package core

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	DefaultCodeTTL  = 5 * time.Minute
	DefaultTokenTTL = 10 * time.Minute

	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

// AccountDirectory resolves accounts and replaces their stored credential.
type AccountDirectory interface {
	// FindByEmail returns ErrAccountNotFound when no account uses email.
	FindByEmail(ctx context.Context, email string) (*Account, error)
	UpdateCredentialHash(ctx context.Context, accountID, hash string) (int64, error)
}

// Notifier delivers a reset code to an account's contact address.
type Notifier interface {
	SendCode(ctx context.Context, to, code string) error
}

// TokenService issues and checks reset-authorization tokens.
type TokenService interface {
	Issue(ctx context.Context, accountID string, ttl time.Duration) (Token, error)
	// Verify returns ErrInvalidOrExpiredToken for anything it does not accept.
	Verify(ctx context.Context, raw string) (Claims, error)
}

// Hasher turns plaintext passwords into stored credential hashes.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(plain, hash string) bool
}

// RetryQueue takes notifications that could not be delivered inline.
type RetryQueue interface {
	Enqueue(ctx context.Context, n Notification) error
}

// Manager runs the password-reset workflow: request a code, verify it for a
// reset token, spend the token on a new password.
type Manager struct {
	store     Store
	directory AccountDirectory
	notifier  Notifier
	tokens    TokenService
	hasher    Hasher
	ledger    TokenLedger
	retry     RetryQueue
	generate  func() (string, error)
	now       func() time.Time
	logger    *log.Logger

	codeTTL  time.Duration
	tokenTTL time.Duration

	requestLimiter RateLimiter
	requestLimit   int
	requestWindow  time.Duration

	verifyLimiter     RateLimiter
	maxVerifyAttempts int
}

// Config carries a Manager's collaborators and limits. Zero TTLs fall back to
// DefaultCodeTTL and DefaultTokenTTL.
type Config struct {
	Store     Store
	Directory AccountDirectory
	Notifier  Notifier
	Tokens    TokenService
	Hasher    Hasher
	// Ledger makes reset tokens single-use. Without it a token can be replayed
	// until it expires.
	Ledger TokenLedger
	Retry  RetryQueue

	GenerateCode func() (string, error)
	Now          func() time.Time
	Logger       *log.Logger

	CodeTTL  time.Duration
	TokenTTL time.Duration

	RequestLimiter RateLimiter
	RequestLimit   int
	RequestWindow  time.Duration

	// VerifyLimiter counts wrong codes per account. Once MaxVerifyAttempts wrong
	// codes have been submitted the next one discards the pending code.
	VerifyLimiter     RateLimiter
	MaxVerifyAttempts int
}

// NewManager requires Store, Directory, Tokens and Hasher; everything else is optional.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("account directory is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if cfg.Hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	gen := cfg.GenerateCode
	if gen == nil {
		gen = GenerateCode
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	codeTTL := cfg.CodeTTL
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	requestWindow := cfg.RequestWindow
	if requestWindow <= 0 && cfg.RequestLimit > 0 {
		requestWindow = time.Hour
	}
	return &Manager{
		store:             cfg.Store,
		directory:         cfg.Directory,
		notifier:          cfg.Notifier,
		tokens:            cfg.Tokens,
		hasher:            cfg.Hasher,
		ledger:            cfg.Ledger,
		retry:             cfg.Retry,
		generate:          gen,
		now:               nowFn,
		logger:            logger,
		codeTTL:           codeTTL,
		tokenTTL:          tokenTTL,
		requestLimiter:    cfg.RequestLimiter,
		requestLimit:      cfg.RequestLimit,
		requestWindow:     requestWindow,
		verifyLimiter:     cfg.VerifyLimiter,
		maxVerifyAttempts: cfg.MaxVerifyAttempts,
	}, nil
}

// RequestReset issues a fresh code for the account registered under email and
// sends it to that address. Any earlier pending code stops being valid.
func (m *Manager) RequestReset(ctx context.Context, email string) error {
	accountID := NormalizeEmail(email)
	if accountID == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	// Unknown emails are counted too, so throttling does not reveal which accounts exist.
	if m.requestLimiter != nil && m.requestLimit > 0 {
		if err := m.requestLimiter.CheckAndIncrement(ctx, requestKey(accountID), m.requestLimit, m.requestWindow); err != nil {
			return err
		}
	}

	acct, err := m.directory.FindByEmail(ctx, accountID)
	if err != nil {
		return err
	}

	code, err := m.generate()
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}
	if _, err := m.store.Put(ctx, accountID, code, m.codeTTL); err != nil {
		return err
	}
	if m.verifyLimiter != nil {
		if err := m.verifyLimiter.Reset(ctx, verifyKey(accountID)); err != nil {
			m.logger.Printf("reset: clearing verify attempts for %s: %v", accountID, err)
		}
	}

	to := acct.Email
	if to == "" {
		to = accountID
	}
	m.dispatch(ctx, to, code)
	return nil
}

// dispatch never fails the request; undelivered codes go to the retry queue.
func (m *Manager) dispatch(ctx context.Context, to, code string) {
	if m.notifier == nil {
		m.logger.Printf("reset: no notifier configured, code for %s not sent", to)
		return
	}
	err := m.notifier.SendCode(ctx, to, code)
	if err == nil {
		return
	}
	m.logger.Printf("reset: %v to %s: %v", ErrNotifierFailure, to, err)
	if m.retry == nil {
		return
	}
	n := Notification{To: to, Code: code, Attempt: 1, EnqueuedAt: m.now()}
	if err := m.retry.Enqueue(ctx, n); err != nil {
		m.logger.Printf("reset: enqueue retry for %s: %v", to, err)
	}
}

// VerifyReset checks code against the pending entry for email. On success the
// entry is removed and a reset-authorization token is returned.
func (m *Manager) VerifyReset(ctx context.Context, email, code string) (Token, error) {
	accountID := NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if accountID == "" || code == "" {
		return Token{}, fmt.Errorf("%w: email and code are required", ErrInvalidInput)
	}

	entry, err := m.store.Get(ctx, accountID)
	if err != nil {
		return Token{}, err
	}

	if entry.Expired(m.now()) {
		if err := m.store.Delete(ctx, accountID); err != nil {
			m.logger.Printf("reset: pruning expired code for %s: %v", accountID, err)
		}
		return Token{}, ErrCodeExpired
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) != 1 {
		return Token{}, m.recordMismatch(ctx, accountID)
	}

	claimed, err := m.store.Claim(ctx, accountID, entry.Code)
	if err != nil {
		return Token{}, err
	}
	if !claimed {
		// Superseded or consumed between Get and Claim.
		return Token{}, ErrNoRequestFound
	}
	if m.verifyLimiter != nil {
		if err := m.verifyLimiter.Reset(ctx, verifyKey(accountID)); err != nil {
			m.logger.Printf("reset: clearing verify attempts for %s: %v", accountID, err)
		}
	}

	tok, err := m.tokens.Issue(ctx, accountID, m.tokenTTL)
	if err != nil {
		return Token{}, fmt.Errorf("issue reset token: %w", err)
	}
	return tok, nil
}

func (m *Manager) recordMismatch(ctx context.Context, accountID string) error {
	if m.verifyLimiter == nil || m.maxVerifyAttempts <= 0 {
		return ErrCodeMismatch
	}
	err := m.verifyLimiter.CheckAndIncrement(ctx, verifyKey(accountID), m.maxVerifyAttempts, m.codeTTL)
	if err == nil {
		return ErrCodeMismatch
	}
	if !errors.Is(err, ErrRateLimitExceeded) {
		return err
	}
	if err := m.store.Delete(ctx, accountID); err != nil {
		return err
	}
	if err := m.verifyLimiter.Reset(ctx, verifyKey(accountID)); err != nil {
		m.logger.Printf("reset: clearing verify attempts for %s: %v", accountID, err)
	}
	m.logger.Printf("reset: too many wrong codes for %s, pending code discarded", accountID)
	return ErrTooManyAttempts
}

// ApplyNewPassword spends a reset-authorization token to replace the account's password.
func (m *Manager) ApplyNewPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidOrExpiredToken
	}
	claims, err := m.tokens.Verify(ctx, token)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	acct, err := m.directory.FindByEmail(ctx, claims.AccountID)
	if err != nil {
		return err
	}

	if m.ledger != nil {
		ttl := claims.ExpiresAt.Sub(m.now())
		if ttl < time.Second {
			ttl = time.Second
		}
		fresh, err := m.ledger.Consume(ctx, claims.ID, ttl)
		if err != nil {
			return fmt.Errorf("consume reset token: %w", err)
		}
		if !fresh {
			return ErrInvalidOrExpiredToken
		}
	}

	return m.setPassword(ctx, acct, newPassword)
}

// ChangePassword replaces the password of an account that knows its current one.
func (m *Manager) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	accountID := NormalizeEmail(email)
	if accountID == "" || oldPassword == "" {
		return fmt.Errorf("%w: all fields are required", ErrInvalidInput)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	acct, err := m.directory.FindByEmail(ctx, accountID)
	if err != nil {
		return err
	}
	if !m.hasher.Compare(oldPassword, acct.PasswordHash) {
		return ErrIncorrectOldPassword
	}
	return m.setPassword(ctx, acct, newPassword)
}

func (m *Manager) setPassword(ctx context.Context, acct *Account, plain string) error {
	hash, err := m.hasher.Hash(plain)
	if err != nil {
		return fmt.Errorf("%w: hash: %v", ErrPersistenceFailure, err)
	}
	n, err := m.directory.UpdateCredentialHash(ctx, acct.ID, hash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if n == 0 {
		return ErrPersistenceFailure
	}
	m.logger.Printf("reset: password updated for account %s", acct.ID)
	return nil
}

func validatePassword(p string) error {
	if p == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	if len(p) > maxPasswordBytes {
		return fmt.Errorf("%w: new password must be at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}
	return nil
}

func requestKey(accountID string) string { return "request:" + accountID }

func verifyKey(accountID string) string { return "verify:" + accountID }
