package core

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeDirectory struct {
	mu       sync.Mutex
	accounts map[string]*Account
	updates  []credentialUpdate
	failWith error
	affect   int64
}

type credentialUpdate struct {
	accountID string
	hash      string
}

func newFakeDirectory(accounts ...Account) *fakeDirectory {
	d := &fakeDirectory{accounts: make(map[string]*Account), affect: 1}
	for i := range accounts {
		a := accounts[i]
		d.accounts[NormalizeEmail(a.Email)] = &a
	}
	return d
}

func (d *fakeDirectory) FindByEmail(_ context.Context, email string) (*Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.accounts[NormalizeEmail(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (d *fakeDirectory) UpdateCredentialHash(_ context.Context, accountID, hash string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return 0, d.failWith
	}
	d.updates = append(d.updates, credentialUpdate{accountID: accountID, hash: hash})
	if d.affect == 0 {
		return 0, nil
	}
	for _, a := range d.accounts {
		if a.ID == accountID {
			a.PasswordHash = hash
			return d.affect, nil
		}
	}
	return 0, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[string][]string
	fail bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(map[string][]string)}
}

func (n *recordingNotifier) SendCode(_ context.Context, to, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("smtp unavailable")
	}
	n.sent[to] = append(n.sent[to], code)
	return nil
}

func (n *recordingNotifier) last(to string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.sent[to]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

type recordingQueue struct {
	mu    sync.Mutex
	items []Notification
}

func (q *recordingQueue) Enqueue(_ context.Context, n Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	return nil
}

func newTestHasher() *BcryptHasher {
	return NewBcryptHasher(4)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
