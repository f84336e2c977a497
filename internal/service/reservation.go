package service

import (
	"context"
	"sync"
	"time"

	"github.com/MuriData/zkclaim/pkg/errs"
	"github.com/redis/go-redis/v9"
)

// ReserveOutcome is the result of a reservation attempt (spec.md §4.E).
type ReserveOutcome int

const (
	ReserveOK ReserveOutcome = iota
	ReserveAlreadyClaimed
	ReserveBusy
)

// ReservationStore implements the atomic two-key nullifier reservation
// spec.md §4.E describes: a short-lived "pending" entry with TTL, and a
// durable "committed" entry. Both the Redis-backed and in-memory
// implementations satisfy this interface so the service layer never
// branches on backend.
type ReservationStore interface {
	// Reserve atomically checks committed, then pending, then sets pending
	// with the given TTL if neither exists.
	Reserve(ctx context.Context, nullifier string, ttl time.Duration) (ReserveOutcome, error)
	// Release deletes the pending entry (transition RESERVED -> back to
	// available, on SUBMITTED -> FAILED).
	Release(ctx context.Context, nullifier string) error
	// Commit deletes pending and writes a durable committed entry
	// (transition SUBMITTED -> CONFIRMED).
	Commit(ctx context.Context, nullifier string) error
	// IsCommitted reports whether nullifier has a durable committed entry.
	IsCommitted(ctx context.Context, nullifier string) (bool, error)
}

// reservationScript implements the single atomic script spec.md §4.E
// mandates: "if committed exists, return AlreadyClaimed; else if pending
// exists, return Busy; else set pending with TTL and return OK".
const reservationScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 2
end
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 1
end
redis.call("SET", KEYS[2], "1", "PX", ARGV[1])
return 0
`

// RedisReservationStore is the production backend: the reservation script
// runs as a single Lua `EVAL` so the check-then-set is linearizable across
// every service instance sharing the Redis deployment, the property
// spec.md §8's concurrent-claim stress test depends on.
type RedisReservationStore struct {
	client    *redis.Client
	keyPrefix string
	script    *redis.Script
}

// NewRedisReservationStore wraps an already-connected client.
func NewRedisReservationStore(client *redis.Client, keyPrefix string) *RedisReservationStore {
	return &RedisReservationStore{
		client:    client,
		keyPrefix: keyPrefix,
		script:    redis.NewScript(reservationScript),
	}
}

func (r *RedisReservationStore) committedKey(nullifier string) string {
	return r.keyPrefix + "committed:" + nullifier
}

func (r *RedisReservationStore) pendingKey(nullifier string) string {
	return r.keyPrefix + "pending:" + nullifier
}

func (r *RedisReservationStore) Reserve(ctx context.Context, nullifier string, ttl time.Duration) (ReserveOutcome, error) {
	res, err := r.script.Run(ctx, r.client,
		[]string{r.committedKey(nullifier), r.pendingKey(nullifier)},
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return 0, errs.Wrap(errs.StorageFailure, "run reservation script", err)
	}
	switch res {
	case 0:
		return ReserveOK, nil
	case 1:
		return ReserveBusy, nil
	case 2:
		return ReserveAlreadyClaimed, nil
	default:
		return 0, errs.New(errs.Internal, "reservation script returned unexpected code")
	}
}

func (r *RedisReservationStore) Release(ctx context.Context, nullifier string) error {
	if err := r.client.Del(ctx, r.pendingKey(nullifier)).Err(); err != nil {
		return errs.Wrap(errs.StorageFailure, "release pending reservation", err)
	}
	return nil
}

func (r *RedisReservationStore) Commit(ctx context.Context, nullifier string) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.committedKey(nullifier), "1", 0)
	pipe.Del(ctx, r.pendingKey(nullifier))
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.StorageFailure, "commit reservation", err)
	}
	return nil
}

func (r *RedisReservationStore) IsCommitted(ctx context.Context, nullifier string) (bool, error) {
	n, err := r.client.Exists(ctx, r.committedKey(nullifier)).Result()
	if err != nil {
		return false, errs.Wrap(errs.StorageFailure, "check committed reservation", err)
	}
	return n > 0, nil
}

// MemoryReservationStore is the in-memory fallback spec.md §6 allows for
// deployments without Redis; it implements the identical interface and
// the identical check-order under a single mutex.
type MemoryReservationStore struct {
	mu        sync.Mutex
	pending   map[string]time.Time // nullifier -> expiry
	committed map[string]struct{}
}

// NewMemoryReservationStore returns an empty store.
func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{
		pending:   make(map[string]time.Time),
		committed: make(map[string]struct{}),
	}
}

func (m *MemoryReservationStore) Reserve(_ context.Context, nullifier string, ttl time.Duration) (ReserveOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.committed[nullifier]; ok {
		return ReserveAlreadyClaimed, nil
	}
	if expiry, ok := m.pending[nullifier]; ok {
		if time.Now().Before(expiry) {
			return ReserveBusy, nil
		}
		// TTL elapsed without promotion or release: treat as expired.
		delete(m.pending, nullifier)
	}
	m.pending[nullifier] = time.Now().Add(ttl)
	return ReserveOK, nil
}

func (m *MemoryReservationStore) Release(_ context.Context, nullifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, nullifier)
	return nil
}

func (m *MemoryReservationStore) Commit(_ context.Context, nullifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, nullifier)
	m.committed[nullifier] = struct{}{}
	return nil
}

func (m *MemoryReservationStore) IsCommitted(_ context.Context, nullifier string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.committed[nullifier]
	return ok, nil
}
