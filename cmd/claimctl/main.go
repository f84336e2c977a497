// Command claimctl is the holder- and operator-facing CLI for the claim
// pipeline (spec.md §6): build the eligibility tree, generate and verify
// proofs, submit claims, and check claim status.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	app := &cli.App{
		Name:  "claimctl",
		Usage: "fixed-quantity token airdrop claim tool",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "quiet", Usage: "suppress non-error output"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") && c.Bool("quiet") {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			switch {
			case c.Bool("verbose"):
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			case c.Bool("quiet"):
				zerolog.SetGlobalLevel(zerolog.ErrorLevel)
			default:
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			buildTreeCommand(),
			downloadTreeCommand(),
			devSetupCommand(),
			generateProofCommand(),
			verifyProofCommand(),
			submitCommand(&log),
			submitDirectCommand(&log),
			checkStatusCommand(&log),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("claimctl failed")
		os.Exit(exitCodeFor(err))
	}
}
