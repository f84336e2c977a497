package main

import (
	"context"
	"fmt"

	"github.com/MuriData/zkclaim/internal/config"
	"github.com/MuriData/zkclaim/pkg/field"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var statusFlags = []cli.Flag{
	&cli.StringFlag{Name: "rpc-url", EnvVars: []string{config.EnvRPCURL}, Value: config.Default().RPCURL, Usage: "JSON-RPC endpoint of the chain running the claim contract"},
	&cli.Uint64Flag{Name: "chain-id", EnvVars: []string{config.EnvChainID}, Value: config.Default().ChainID, Usage: "expected chain id"},
	&cli.StringFlag{Name: "contract-address", EnvVars: []string{config.EnvContractAddress}, Usage: "deployed claim contract address"},
	&cli.StringFlag{Name: "operator-key-file", EnvVars: []string{config.EnvOperatorKeyFile}, Usage: "path to the hex-encoded operator private key"},
	&cli.StringFlag{Name: "data-dir", EnvVars: []string{config.EnvPersistenceDataDir}, Value: config.Default().DataDir, Usage: "badger data directory holding the durable committed-nullifier mirror"},
	&cli.StringFlag{Name: "gas-ceiling-wei", EnvVars: []string{config.EnvGasCeilingWei}, Value: config.Default().Gas.CeilingWei, Usage: "hard ceiling on quoted gas price, in wei (required by client construction, unused for a status check)"},
	&cli.StringFlag{Name: "nullifier", Required: true, Usage: "nullifier to check (decimal or 0x-hex)"},
}

// checkStatusCommand reports whether a claim's nullifier has already been
// committed, checking the durable local mirror before falling back to an
// on-chain read.
func checkStatusCommand(log *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "check-status",
		Usage: "check whether a nullifier has already claimed",
		Flags: statusFlags,
		Action: func(c *cli.Context) error {
			ctx := context.Background()

			if _, err := field.ParseElement(c.String("nullifier")); err != nil {
				return fmt.Errorf("parse --nullifier: %w", err)
			}

			cfg := config.Default()
			cfg.RPCURL = c.String("rpc-url")
			cfg.ChainID = c.Uint64("chain-id")
			cfg.ContractAddress = c.String("contract-address")
			cfg.OperatorKeyFile = c.String("operator-key-file")
			cfg.DataDir = c.String("data-dir")
			cfg.Gas.CeilingWei = c.String("gas-ceiling-wei")
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			svc, err := buildService(ctx, cfg, nil, *log)
			if err != nil {
				return err
			}

			status, err := svc.CheckStatus(ctx, c.String("nullifier"))
			if err != nil {
				return err
			}
			if status.Claimed {
				fmt.Println("claimed")
			} else {
				fmt.Println("not claimed")
			}
			return nil
		},
	}
}
