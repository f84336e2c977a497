package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MuriData/zkclaim/pkg/envelope"
	"github.com/MuriData/zkclaim/pkg/field"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// submitCommand runs a proof envelope through the full submission service:
// rate limiting, nullifier reservation, chain submission with bounded
// retry, and the durable committed-nullifier mirror.
func submitCommand(log *zerolog.Logger) *cli.Command {
	flags := append([]cli.Flag{
		&cli.StringFlag{Name: "envelope", Required: true, Usage: "path to the proof envelope JSON"},
		&cli.StringFlag{Name: "identity", Usage: "caller identity key for per-identity rate limiting"},
		&cli.StringFlag{Name: "client-ip", Value: "127.0.0.1", Usage: "caller IP for per-IP rate limiting"},
	}, serviceFlags...)

	return &cli.Command{
		Name:  "submit",
		Usage: "submit a claim proof through the submission service",
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

			svc, err := buildService(ctx, cfg, rootElem, *log)
			if err != nil {
				return err
			}

			result, err := svc.Submit(ctx, env, c.String("identity"), c.String("client-ip"))
			if err != nil {
				if result != nil {
					fmt.Printf("rejected: %s\n", result.Code)
				}
				return err
			}
			fmt.Printf("submitted: tx %s\n", result.TxID)
			return nil
		},
	}
}
