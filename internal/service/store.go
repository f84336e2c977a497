package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MuriData/zkclaim/pkg/errs"
	badger "github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"
)

const (
	keyPrefixCommitted = "claim:committed:"
	keyPrefixStats     = "claim:stats:main"
)

// committedRecord is the durable record written once a claim reaches
// CONFIRMED (spec.md §6 "committed-nullifier mirror (durable)").
type committedRecord struct {
	Recipient string    `json:"recipient"`
	TxHash    string    `json:"tx_hash"`
	Time      time.Time `json:"time"`
}

// Stats accumulates durable submission counters (spec.md §6 "submission
// stats (durable)").
type Stats struct {
	Received  uint64 `json:"received"`
	Confirmed uint64 `json:"confirmed"`
	Failed    uint64 `json:"failed"`
	Rejected  uint64 `json:"rejected"`
}

// Store wraps a badger database for the durable pieces of service state:
// the committed-nullifier mirror and submission stats. Grounded on
// Layr-Labs-eigenx-kms-go's pkg/persistence/badger (DefaultOptions,
// SyncWrites for durability, db.Update/db.View transactions), generalized
// from key-share versions to claim records.
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

// OpenStore opens (or creates) a badger database at dataPath.
func OpenStore(dataPath string, log zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dataPath)
	opts.SyncWrites = true
	opts.Logger = nil // badger's own logger interface doesn't match zerolog; callers log via Store instead

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.Wrap(errs.StorageFailure, "open badger store", err)
	}
	return &Store{db: db, log: log.With().Str("component", "service.Store").Logger()}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordCommitted writes the durable committed-nullifier mirror entry.
func (s *Store) RecordCommitted(nullifier string, recipient string, txHash string, at time.Time) error {
	data, err := json.Marshal(committedRecord{Recipient: recipient, TxHash: txHash, Time: at})
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal committed record", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefixCommitted+nullifier), data)
	})
	if err != nil {
		return errs.Wrap(errs.StorageFailure, "persist committed record", err)
	}
	return nil
}

// IsCommitted reports whether a durable committed record exists for
// nullifier — the source of truth that survives a Redis reservation-store
// restart.
func (s *Store) IsCommitted(nullifier string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyPrefixCommitted + nullifier))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, errs.Wrap(errs.StorageFailure, "read committed record", err)
	}
	return found, nil
}

// IncrStat increments one named stats counter and persists the result.
func (s *Store) IncrStat(field string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var st Stats
		item, err := txn.Get([]byte(keyPrefixStats))
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err == nil {
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &st) }); err != nil {
				return err
			}
		}

		switch field {
		case "received":
			st.Received++
		case "confirmed":
			st.Confirmed++
		case "failed":
			st.Failed++
		case "rejected":
			st.Rejected++
		default:
			return fmt.Errorf("unknown stats field %q", field)
		}

		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		return txn.Set([]byte(keyPrefixStats), data)
	})
}

// ReadStats returns the current durable counters.
func (s *Store) ReadStats() (Stats, error) {
	var st Stats
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefixStats))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &st) })
	})
	if err != nil {
		return Stats{}, errs.Wrap(errs.StorageFailure, "read stats", err)
	}
	return st, nil
}
