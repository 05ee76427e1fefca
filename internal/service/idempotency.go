package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"teahaven/internal/model"

	"github.com/google/uuid"
)

// IdempotencyStore maps a checkout fingerprint to the payment session it
// produced. Get returns ("", nil) on a miss. The store is advisory:
// pre-payment idempotency fails open, post-payment idempotency is enforced
// by the database unique index on payment_session_id.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// checkoutFingerprint hashes the identity of a checkout attempt: who is
// buying what, shipped where. Cart lines are sorted by product id so the
// fingerprint is insensitive to cart ordering.
func checkoutFingerprint(userID, cartID, addressID uuid.UUID, items []model.CartItem) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("%s:%d", it.ProductID, it.Quantity))
	}
	sort.Strings(lines)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", userID, cartID, addressID)
	for _, l := range lines {
		h.Write([]byte("|"))
		h.Write([]byte(l))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ── In-memory store ───────────────────────────────────────────────────────────

const memoryIdempotencyMaxEntries = 10000

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryIdempotencyStore is the single-process fallback used when Redis is
// not configured, and the store unit tests run against. Entries expire by
// TTL; the map is pruned on write once it crosses the size bound.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.entries, key)
		return "", nil
	}
	return e.value, nil
}

func (s *MemoryIdempotencyStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= memoryIdempotencyMaxEntries {
		s.prune()
	}
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// prune drops expired entries; if everything is still live, it drops the
// soonest-to-expire half so the map stays bounded.
func (s *MemoryIdempotencyStore) prune() {
	now := time.Now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	if len(s.entries) < memoryIdempotencyMaxEntries {
		return
	}
	type kv struct {
		key       string
		expiresAt time.Time
	}
	all := make([]kv, 0, len(s.entries))
	for k, e := range s.entries {
		all = append(all, kv{k, e.expiresAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].expiresAt.Before(all[j].expiresAt) })
	for _, e := range all[:len(all)/2] {
		delete(s.entries, e.key)
	}
}
