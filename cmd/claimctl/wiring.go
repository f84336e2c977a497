package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/MuriData/zkclaim/internal/config"
	"github.com/MuriData/zkclaim/internal/service"
	"github.com/MuriData/zkclaim/pkg/field"
	"github.com/MuriData/zkclaim/pkg/onchain"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var serviceFlags = []cli.Flag{
	&cli.StringFlag{Name: "rpc-url", EnvVars: []string{config.EnvRPCURL}, Value: config.Default().RPCURL, Usage: "JSON-RPC endpoint of the chain running the claim contract"},
	&cli.Uint64Flag{Name: "chain-id", EnvVars: []string{config.EnvChainID}, Value: config.Default().ChainID, Usage: "expected chain id"},
	&cli.StringFlag{Name: "contract-address", EnvVars: []string{config.EnvContractAddress}, Usage: "deployed claim contract address"},
	&cli.StringFlag{Name: "operator-key-file", EnvVars: []string{config.EnvOperatorKeyFile}, Usage: "path to the hex-encoded operator private key"},
	&cli.StringFlag{Name: "persistence-type", EnvVars: []string{config.EnvPersistenceType}, Value: config.Default().PersistenceType, Usage: "memory, badger, or redis"},
	&cli.StringFlag{Name: "data-dir", EnvVars: []string{config.EnvPersistenceDataDir}, Value: config.Default().DataDir, Usage: "badger data directory"},
	&cli.StringFlag{Name: "redis-address", EnvVars: []string{config.EnvRedisAddress}, Value: config.Default().Redis.Address, Usage: "redis address for the reservation store"},
	&cli.IntFlag{Name: "redis-db", EnvVars: []string{config.EnvRedisDB}, Value: config.Default().Redis.DB, Usage: "redis database number"},
	&cli.StringFlag{Name: "redis-key-prefix", EnvVars: []string{config.EnvRedisKeyPrefix}, Value: "zkclaim", Usage: "redis key prefix"},
	&cli.Uint64Flag{Name: "gas-premium-bp", EnvVars: []string{config.EnvGasPremiumBp}, Value: config.Default().Gas.PremiumBp, Usage: "gas premium in basis points over base fee"},
	&cli.StringFlag{Name: "gas-ceiling-wei", EnvVars: []string{config.EnvGasCeilingWei}, Value: config.Default().Gas.CeilingWei, Usage: "hard ceiling on quoted gas price, in wei"},
	&cli.StringFlag{Name: "root", Required: true, Usage: "current eligibility tree root (decimal or 0x-hex)"},
}

// configFromFlags assembles an internal/config.Config from CLI flags and
// validates it before any network or storage connection is attempted.
func configFromFlags(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	cfg.RPCURL = c.String("rpc-url")
	cfg.ChainID = c.Uint64("chain-id")
	cfg.ContractAddress = c.String("contract-address")
	cfg.OperatorKeyFile = c.String("operator-key-file")
	cfg.PersistenceType = c.String("persistence-type")
	cfg.DataDir = c.String("data-dir")
	cfg.Redis.Address = c.String("redis-address")
	cfg.Redis.DB = c.Int("redis-db")
	cfg.Redis.KeyPrefix = c.String("redis-key-prefix")
	cfg.Gas.PremiumBp = c.Uint64("gas-premium-bp")
	cfg.Gas.CeilingWei = c.String("gas-ceiling-wei")
	cfg.Verbose = c.Bool("verbose")
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// dialChainClient loads the operator key and dials the configured RPC
// endpoint, the pair of steps submit and submit-direct both need.
func dialChainClient(ctx context.Context, cfg config.Config, log zerolog.Logger) (*onchain.ChainClient, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	signer, err := gethcrypto.LoadECDSA(cfg.OperatorKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load operator key: %w", err)
	}

	ceiling, ok := new(big.Int).SetString(cfg.Gas.CeilingWei, 10)
	if !ok {
		return nil, fmt.Errorf("invalid gas ceiling %q", cfg.Gas.CeilingWei)
	}
	maxRandom := big.NewInt(0)
	if cfg.Gas.MaxRandomWei != "" {
		maxRandom, ok = new(big.Int).SetString(cfg.Gas.MaxRandomWei, 10)
		if !ok {
			return nil, fmt.Errorf("invalid max random wei %q", cfg.Gas.MaxRandomWei)
		}
	}
	gas := onchain.GasPolicy{PremiumBp: cfg.Gas.PremiumBp, MaxRandomWei: maxRandom, CeilingWei: ceiling}

	return onchain.NewChainClient(ctx, cfg.RPCURL, common.HexToAddress(cfg.ContractAddress), signer, gas, log)
}

// buildService wires a full internal/service.Service from cfg, choosing
// the reservation and durable-storage backends per cfg.PersistenceType.
func buildService(ctx context.Context, cfg config.Config, currentRoot *field.ParsedElement, log zerolog.Logger) (*service.Service, error) {
	chain, err := dialChainClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var reservation service.ReservationStore
	switch cfg.PersistenceType {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, DB: cfg.Redis.DB})
		reservation = service.NewRedisReservationStore(client, cfg.Redis.KeyPrefix)
	default:
		reservation = service.NewMemoryReservationStore()
	}

	store, err := service.OpenStore(cfg.DataDir, log)
	if err != nil {
		return nil, fmt.Errorf("open durable store: %w", err)
	}

	limiter := service.NewRateLimiter(cfg.Rate)
	return service.New(cfg.Session, reservation, limiter, chain, store, currentRoot, log), nil
}
