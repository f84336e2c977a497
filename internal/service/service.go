// Package service implements the submission & reservation pipeline
// (spec.md §4.E): envelope validation, rate limiting, atomic nullifier
// reservation, on-chain submission with bounded retry, and status
// reporting.
package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/MuriData/zkclaim/pkg/envelope"
	"github.com/MuriData/zkclaim/pkg/errs"
	"github.com/MuriData/zkclaim/pkg/field"
	"github.com/MuriData/zkclaim/pkg/onchain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ClaimSession tracks one submission's progress through the state machine.
// SessionID is a random per-submission correlation id, not a reservation
// key: the nullifier itself still keys the reservation and commit entries,
// so retried/duplicate submissions of the same claim still collide on it
// regardless of SessionID.
type ClaimSession struct {
	SessionID  string
	State      ClaimState
	Nullifier  string
	Recipient  common.Address
	TxHash     common.Hash
	ReceivedAt time.Time
}

// Config bundles the tunables Submit needs beyond the envelope itself.
type Config struct {
	ReservationTTL time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
}

// DefaultConfig mirrors spec.md §4.E's "reservation TTL chosen strictly
// greater than the expected chain confirmation time, with safety margin"
// guidance and a small bounded retry count.
func DefaultConfig() Config {
	return Config{
		ReservationTTL: 5 * time.Minute,
		MaxAttempts:    3,
		BackoffBase:    500 * time.Millisecond,
	}
}

// SubmitResult is the wire response shape spec.md §6 names:
// {accepted, tx_id?, code?, retry_after?}.
type SubmitResult struct {
	Accepted   bool
	TxID       string
	Code       string
	RetryAfter time.Duration
}

// StatusResult is the wire response shape for a status query by
// nullifier: {claimed, tx_id?, recipient?, time?}.
type StatusResult struct {
	Claimed   bool
	TxID      string
	Recipient string
	Time      time.Time
}

// Service wires together validation, rate limiting, reservation, and chain
// submission into the single Submit entry point.
type Service struct {
	cfg         Config
	reservation ReservationStore
	limiter     *RateLimiter
	chain       *onchain.ChainClient
	store       *Store
	currentRoot *field.ParsedElement
	log         zerolog.Logger
}

// New constructs a Service. currentRoot is the tree root the service
// currently accepts proofs against (spec.md §4.D root-match check).
func New(cfg Config, reservation ReservationStore, limiter *RateLimiter, chain *onchain.ChainClient, store *Store, currentRoot *field.ParsedElement, log zerolog.Logger) *Service {
	return &Service{
		cfg:         cfg,
		reservation: reservation,
		limiter:     limiter,
		chain:       chain,
		store:       store,
		currentRoot: currentRoot,
		log:         log.With().Str("component", "service.Service").Logger(),
	}
}

// Submit runs one claim envelope through RECEIVED -> VALIDATED -> RESERVED
// -> SUBMITTED -> {CONFIRMED|FAILED} -> {COMMITTED|RELEASED}, returning the
// outcome in the wire response shape. It never panics on caller-supplied
// data: every failure path returns a *errs.Error whose Kind maps directly
// to one of spec.md §6's client-facing error codes.
func (s *Service) Submit(ctx context.Context, env *envelope.Envelope, identity, ip string) (*SubmitResult, error) {
	session := &ClaimSession{SessionID: uuid.NewString(), State: StateReceived, ReceivedAt: time.Now()}
	log := s.log.With().Str("session_id", session.SessionID).Logger()
	_ = s.store.IncrStat("received")

	parsed, err := envelope.Validate(env, s.currentRoot)
	if err != nil {
		_ = s.store.IncrStat("rejected")
		return nil, err
	}
	if err := session.advance(StateValidated); err != nil {
		return nil, errs.Wrap(errs.Internal, "state machine", err)
	}
	session.Nullifier = parsed.Nullifier.Raw
	session.Recipient = parsed.Recipient

	if !s.limiter.Allow(identity, ip, session.Nullifier) {
		_ = s.store.IncrStat("rejected")
		return &SubmitResult{Accepted: false, Code: "RATE_LIMITED", RetryAfter: s.cfg.BackoffBase}, errs.New(errs.RateLimited, "rate limit exceeded")
	}

	outcome, err := s.reservation.Reserve(ctx, session.Nullifier, s.cfg.ReservationTTL)
	if err != nil {
		_ = s.store.IncrStat("rejected")
		return nil, err
	}
	switch outcome {
	case ReserveAlreadyClaimed:
		_ = s.store.IncrStat("rejected")
		return &SubmitResult{Accepted: false, Code: "ALREADY_CLAIMED"}, errs.New(errs.AlreadyClaimed, "nullifier already committed")
	case ReserveBusy:
		_ = s.store.IncrStat("rejected")
		return &SubmitResult{Accepted: false, Code: "RATE_LIMITED", RetryAfter: s.cfg.ReservationTTL}, errs.New(errs.RateLimited, "nullifier reservation in flight")
	}
	if err := session.advance(StateReserved); err != nil {
		return nil, errs.Wrap(errs.Internal, "state machine", err)
	}

	txHash, submitErr := s.submitWithRetry(ctx, parsed, session, log)
	if submitErr != nil {
		_ = session.advance(StateFailed)
		_ = s.reservation.Release(ctx, session.Nullifier)
		_ = session.advance(StateReleased)
		_ = s.store.IncrStat("failed")
		return &SubmitResult{Accepted: false, Code: chainErrorCode(submitErr)}, submitErr
	}

	if err := session.advance(StateConfirmed); err != nil {
		return nil, errs.Wrap(errs.Internal, "state machine", err)
	}
	if err := s.reservation.Commit(ctx, session.Nullifier); err != nil {
		log.Error().Err(err).Str("nullifier", session.Nullifier).Msg("commit reservation failed after confirmed chain tx")
	}
	if err := session.advance(StateCommitted); err != nil {
		return nil, errs.Wrap(errs.Internal, "state machine", err)
	}
	if err := s.store.RecordCommitted(session.Nullifier, session.Recipient.Hex(), txHash.Hex(), time.Now()); err != nil {
		log.Error().Err(err).Msg("failed to persist durable committed record")
	}
	_ = s.store.IncrStat("confirmed")

	return &SubmitResult{Accepted: true, TxID: txHash.Hex()}, nil
}

// submitWithRetry broadcasts the claim transaction, retrying bounded
// transient failures with exponential backoff (spec.md §4.E retries).
// Permanent on-chain reverts (ChainRevertKnown) are never retried.
func (s *Service) submitWithRetry(ctx context.Context, parsed *envelope.Parsed, session *ClaimSession, log zerolog.Logger) (common.Hash, error) {
	if err := session.advance(StateSubmitted); err != nil {
		return common.Hash{}, errs.Wrap(errs.Internal, "state machine", err)
	}

	var proof [8]*big.Int
	for i, p := range parsed.Proof {
		proof[i] = p.Value
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := s.cfg.BackoffBase * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return common.Hash{}, errs.Wrap(errs.ChainTransient, "context cancelled during backoff", ctx.Err())
			}
		}

		randomWei, err := rand.Int(rand.Reader, big.NewInt(1<<20))
		if err != nil {
			return common.Hash{}, errs.Wrap(errs.Internal, "draw gas randomness", err)
		}

		hash, err := s.chain.SubmitClaim(ctx, proof, parsed.Nullifier.Value, parsed.Recipient, randomWei)
		if err == nil {
			return hash, nil
		}
		lastErr = err
		if errs.KindOf(err) != errs.ChainTransient {
			return common.Hash{}, err // permanent revert: no retry
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("transient chain submission failure, retrying")
	}
	return common.Hash{}, lastErr
}

// CheckStatus answers spec.md §6's status-by-nullifier query. The durable
// store is authoritative for tx metadata; when it has no record (e.g. a
// claim submitted directly against the chain, bypassing this service) it
// falls back to asking the chain itself whether the nullifier is spent.
func (s *Service) CheckStatus(ctx context.Context, nullifier string) (*StatusResult, error) {
	if committed, err := s.store.IsCommitted(nullifier); err != nil {
		return nil, err
	} else if committed {
		return &StatusResult{Claimed: true}, nil
	}

	n, err := field.Parse(nullifier)
	if err != nil {
		return nil, errs.Wrap(errs.MalformedInput, "nullifier", err)
	}
	claimed, err := s.chain.IsClaimed(ctx, n)
	if err != nil {
		return nil, err
	}
	return &StatusResult{Claimed: claimed}, nil
}

// chainErrorCode maps an error's Kind to spec.md §6's client-facing code.
func chainErrorCode(err error) string {
	switch errs.KindOf(err) {
	case errs.AlreadyClaimed:
		return "ALREADY_CLAIMED"
	case errs.ChainRevertKnown:
		return "CONTRACT_REVERT"
	case errs.ChainTransient:
		return "NETWORK_ERROR"
	case errs.RateLimited:
		return "RATE_LIMITED"
	case errs.MalformedInput:
		return "INVALID_PROOF"
	default:
		return "INTERNAL_ERROR"
	}
}
