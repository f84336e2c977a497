// Package config holds the submission service's runtime configuration,
// populated from CLI flags/environment variables by cmd/claimctl.
package config

import (
	"fmt"
	"time"

	"github.com/MuriData/zkclaim/internal/service"
)

// Environment variable names, grouped the way the teacher names its
// EnvKMS* constants, so every config knob has one canonical source.
const (
	EnvRPCURL             = "ZKCLAIM_RPC_URL"
	EnvChainID            = "ZKCLAIM_CHAIN_ID"
	EnvContractAddress    = "ZKCLAIM_CONTRACT_ADDRESS"
	EnvOperatorKeyFile    = "ZKCLAIM_OPERATOR_KEY_FILE"
	EnvPersistenceType    = "ZKCLAIM_PERSISTENCE_TYPE"
	EnvPersistenceDataDir = "ZKCLAIM_DATA_DIR"
	EnvRedisAddress       = "ZKCLAIM_REDIS_ADDRESS"
	EnvRedisDB            = "ZKCLAIM_REDIS_DB"
	EnvRedisKeyPrefix     = "ZKCLAIM_REDIS_KEY_PREFIX"
	EnvGasPremiumBp       = "ZKCLAIM_GAS_PREMIUM_BP"
	EnvGasCeilingWei      = "ZKCLAIM_GAS_CEILING_WEI"
	EnvVerbose            = "ZKCLAIM_VERBOSE"
)

// RedisConfig holds connection parameters for the Redis-backed reservation
// store; only used when PersistenceType is "redis".
type RedisConfig struct {
	Address   string
	DB        int
	KeyPrefix string
}

// GasConfig holds the gas policy knobs (spec.md §4.E).
type GasConfig struct {
	PremiumBp    uint64
	CeilingWei   string // decimal wei, parsed by the caller into *big.Int
	MaxRandomWei string
}

// Config is the fully assembled service configuration.
type Config struct {
	RPCURL          string
	ChainID         uint64
	ContractAddress string
	OperatorKeyFile string

	PersistenceType string // "memory", "badger", or "redis"
	DataDir         string
	Redis           RedisConfig

	Gas GasConfig

	Rate    service.RateLimitConfig
	Session service.Config

	Verbose bool
}

// Default returns a Config with the same conservative defaults the
// teacher's server command ships (rate limits, badger persistence,
// localhost endpoints), expecting callers to override via flags/env.
func Default() Config {
	return Config{
		RPCURL:          "http://localhost:8545",
		ChainID:         1,
		PersistenceType: "badger",
		DataDir:         "./zkclaim-data",
		Redis: RedisConfig{
			Address: "localhost:6379",
			DB:      0,
		},
		Gas: GasConfig{
			PremiumBp:  1000, // 10% premium over base fee
			CeilingWei: "500000000000",
		},
		Rate:    service.DefaultRateLimitConfig(),
		Session: service.DefaultConfig(),
	}
}

// Validate checks the fields Submit/CheckStatus depend on being non-empty
// and internally consistent, mirroring the teacher's
// KMSServerConfig.Validate()-before-use convention.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("%s is required", EnvRPCURL)
	}
	if c.ChainID == 0 {
		return fmt.Errorf("%s must be nonzero", EnvChainID)
	}
	if c.ContractAddress == "" {
		return fmt.Errorf("%s is required", EnvContractAddress)
	}
	if c.OperatorKeyFile == "" {
		return fmt.Errorf("%s is required", EnvOperatorKeyFile)
	}
	switch c.PersistenceType {
	case "memory", "badger":
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("%s is required when persistence-type is redis", EnvRedisAddress)
		}
	default:
		return fmt.Errorf("unsupported persistence-type %q (want memory, badger, or redis)", c.PersistenceType)
	}
	if c.DataDir == "" && c.PersistenceType == "badger" {
		return fmt.Errorf("%s is required when persistence-type is badger", EnvPersistenceDataDir)
	}
	if c.Session.MaxAttempts <= 0 {
		return fmt.Errorf("session.max_attempts must be positive")
	}
	if c.Session.ReservationTTL <= 0 {
		return fmt.Errorf("session.reservation_ttl must be positive")
	}
	return nil
}

// ReservationTTLOrDefault returns cfg's configured TTL, or a safe default
// if unset, matching the teacher's pattern of tolerant zero-value configs
// for optional timing knobs.
func (c *Config) ReservationTTLOrDefault() time.Duration {
	if c.Session.ReservationTTL <= 0 {
		return service.DefaultConfig().ReservationTTL
	}
	return c.Session.ReservationTTL
}
