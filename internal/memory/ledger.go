// In file: internal/memory/ledger.go
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ledgerFormat is part of every ledger key. Bump it when the meaning of a claim changes so
// stale claims stop matching.
const ledgerFormat = "v1"

// Ledger records which turns have already been written to the memory service.
type Ledger interface {
	// Claim marks the key as stored. It reports false if the key was already claimed.
	Claim(ctx context.Context, key string) (bool, error)
	// Release drops a claim so the turn can be stored again.
	Release(ctx context.Context, key string) error
}

// ledgerKey builds a fixed-length key for a turn in a conversation.
func ledgerKey(conversationID, turnID string) string {
	sum := sha256.Sum256([]byte(conversationID + "\x00" + turnID))
	return fmt.Sprintf("%s:%s", ledgerFormat, hex.EncodeToString(sum[:]))
}

// RedisLedger keeps claims in Redis so deduplication holds across processes.
type RedisLedger struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ Ledger = (*RedisLedger)(nil)

// NewRedisLedger creates a ledger whose claims expire after ttl.
func NewRedisLedger(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisLedger {
	if prefix == "" {
		prefix = "memledger"
	}
	return &RedisLedger{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (l *RedisLedger) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.prefix+":"+key, 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis ledger claim: %w", err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, l.prefix+":"+key).Err(); err != nil {
		return fmt.Errorf("redis ledger release: %w", err)
	}
	return nil
}

// LocalLedger keeps claims in process memory. Claims are lost on restart.
type LocalLedger struct {
	mu     sync.Mutex
	ttl    time.Duration
	claims map[string]time.Time
	now    func() time.Time
}

var _ Ledger = (*LocalLedger)(nil)

// NewLocalLedger creates an in-process ledger. A zero ttl keeps claims forever.
func NewLocalLedger(ttl time.Duration) *LocalLedger {
	return &LocalLedger{ttl: ttl, claims: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLedger) Claim(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.claims[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}
	var exp time.Time
	if l.ttl > 0 {
		exp = now.Add(l.ttl)
		l.sweep(now)
	}
	l.claims[key] = exp
	return true, nil
}

func (l *LocalLedger) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claims, key)
	return nil
}

// sweep drops expired claims. Called with mu held.
func (l *LocalLedger) sweep(now time.Time) {
	for k, exp := range l.claims {
		if !exp.IsZero() && !now.Before(exp) {
			delete(l.claims, k)
		}
	}
}
