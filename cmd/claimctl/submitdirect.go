package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"

	"github.com/MuriData/zkclaim/pkg/envelope"
	"github.com/MuriData/zkclaim/pkg/field"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// submitDirectCommand submits a claim proof straight to the chain client,
// bypassing rate limiting, nullifier reservation, and the durable store.
// Intended for operator recovery and debugging, not for holder-facing use.
func submitDirectCommand(log *zerolog.Logger) *cli.Command {
	flags := append([]cli.Flag{
		&cli.StringFlag{Name: "envelope", Required: true, Usage: "path to the proof envelope JSON"},
	}, serviceFlags...)

	return &cli.Command{
		Name:  "submit-direct",
		Usage: "submit a claim proof directly to the chain, bypassing the submission service",
		Flags: flags,
		Action: func(c *cli.Context) error {
			ctx := context.Background()

			rootElem, err := field.ParseElement(c.String("root"))
			if err != nil {
				return fmt.Errorf("parse --root: %w", err)
			}
			cfg, err := configFromFlags(c)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(c.String("envelope"))
			if err != nil {
				return fmt.Errorf("read envelope: %w", err)
			}
			env, err := envelope.Decode(data)
			if err != nil {
				return err
			}
			parsed, err := envelope.Validate(env, rootElem)
			if err != nil {
				return err
			}

			chain, err := dialChainClient(ctx, cfg, *log)
			if err != nil {
				return err
			}
			defer chain.Close()

			var proof [8]*big.Int
			for i, p := range parsed.Proof {
				proof[i] = p.Value
			}
			randomWei, err := rand.Int(rand.Reader, big.NewInt(1<<20))
			if err != nil {
				return fmt.Errorf("draw gas randomness: %w", err)
			}

			hash, err := chain.SubmitClaim(ctx, proof, parsed.Nullifier.Value, parsed.Recipient, randomWei)
			if err != nil {
				return err
			}
			fmt.Printf("submitted: tx %s\n", hash.Hex())
			return nil
		},
	}
}
