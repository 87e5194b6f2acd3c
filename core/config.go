package core

import (
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ManagerOptions wires a Manager from plain settings. With RedisAddr (or Redis) set,
// codes, counters and spent tokens live in Redis and are shared by every instance;
// otherwise they stay in process memory.
type ManagerOptions struct {
	Directory AccountDirectory
	Notifier  Notifier
	Retry     RetryQueue
	Logger    *log.Logger

	RedisAddr      string
	Redis          redis.UniversalClient
	RedisKeyPrefix string

	JWTSecret  string
	JWTIssuer  string
	BcryptCost int

	CodeTTL           time.Duration
	TokenTTL          time.Duration
	RequestLimit      int
	RequestWindow     time.Duration
	MaxVerifyAttempts int
}

// NewManagerWithOptions builds the stores and limiters opts asks for and returns a Manager over them.
func NewManagerWithOptions(opts ManagerOptions) (*Manager, error) {
	var (
		store   Store
		limiter RateLimiter
		ledger  TokenLedger
	)

	client := opts.Redis
	if client == nil && opts.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{
			Addr: opts.RedisAddr,
		})
	}

	if client != nil {
		keyPrefix := opts.RedisKeyPrefix
		if keyPrefix == "" {
			keyPrefix = "reset:"
		}
		store = NewRedisStore(client, keyPrefix+"code:")
		limiter = NewRedisRateLimiter(client, keyPrefix+"rate:")
		ledger = NewRedisLedger(client, keyPrefix+"used:")
	} else {
		store = NewMemoryStore()
		limiter = NewMemoryRateLimiter()
		ledger = NewMemoryLedger(nil)
	}

	requestWindow := opts.RequestWindow
	if requestWindow == 0 && opts.RequestLimit > 0 {
		requestWindow = 1 * time.Hour
	}

	cfg := Config{
		Store:             store,
		Directory:         opts.Directory,
		Notifier:          opts.Notifier,
		Tokens:            NewJWTService(opts.JWTSecret, opts.JWTIssuer),
		Hasher:            NewBcryptHasher(opts.BcryptCost),
		Ledger:            ledger,
		Retry:             opts.Retry,
		Logger:            opts.Logger,
		CodeTTL:           opts.CodeTTL,
		TokenTTL:          opts.TokenTTL,
		RequestLimiter:    limiter,
		RequestLimit:      opts.RequestLimit,
		RequestWindow:     requestWindow,
		VerifyLimiter:     limiter,
		MaxVerifyAttempts: opts.MaxVerifyAttempts,
	}
	return NewManager(cfg)
}
