package main

import (
	"fmt"

	"github.com/MuriData/zkclaim/circuits/claim"
	"github.com/MuriData/zkclaim/pkg/setup"
	"github.com/urfave/cli/v2"
)

// devSetupCommand runs an insecure, single-party Groth16 setup for the
// claim circuit and writes the resulting proving/verifying keys to
// --output-dir. This is for local development and testing only: a
// production deployment's keys must come from the multi-party ceremony
// transcript, never from this command.
func devSetupCommand() *cli.Command {
	return &cli.Command{
		Name:  "dev-setup",
		Usage: "generate insecure Groth16 keys for local development (not for production)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output-dir", Required: true, Usage: "directory to write claim_prover.key / claim_verifier.key / claim_verifier.sol into"},
		},
		Action: func(c *cli.Context) error {
			if err := setup.DevSetup(&claim.Circuit{}, c.String("output-dir"), "claim"); err != nil {
				return fmt.Errorf("dev setup: %w", err)
			}
			fmt.Printf("wrote dev keys to %s\n", c.String("output-dir"))
			return nil
		},
	}
}
