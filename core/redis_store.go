package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps reset codes in Redis so every service instance sees the same
// pending request. Keys expire with the code.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

var claimScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if not val then return 0 end
local obj = cjson.decode(val)
if obj.code ~= ARGV[1] then return 0 end
redis.call("DEL", KEYS[1])
return 1
`)

func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "reset-code:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (s *RedisStore) key(accountID string) string {
	return fmt.Sprintf("%s%s", s.keyPrefix, accountID)
}

func (s *RedisStore) Put(ctx context.Context, accountID, code string, ttl time.Duration) (Entry, error) {
	e := Entry{
		AccountID: accountID,
		Code:      code,
		ExpiresAt: s.now().Add(ttl),
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return Entry{}, err
	}
	if err := s.client.Set(ctx, s.key(accountID), raw, ttl).Err(); err != nil {
		return Entry{}, fmt.Errorf("reset store: %w", err)
	}
	return e, nil
}

func (s *RedisStore) Get(ctx context.Context, accountID string) (*Entry, error) {
	val, err := s.client.Get(ctx, s.key(accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoRequestFound
	}
	if err != nil {
		return nil, fmt.Errorf("reset store: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return nil, fmt.Errorf("reset store: decode entry: %w", err)
	}
	return &e, nil
}

func (s *RedisStore) Delete(ctx context.Context, accountID string) error {
	if err := s.client.Del(ctx, s.key(accountID)).Err(); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	return nil
}

func (s *RedisStore) Claim(ctx context.Context, accountID, code string) (bool, error) {
	res, err := claimScript.Run(ctx, s.client, []string{s.key(accountID)}, code).Int()
	if err != nil {
		return false, fmt.Errorf("reset store: %w", err)
	}
	return res == 1, nil
}
