package main

import (
	"fmt"
	"os"

	"github.com/MuriData/zkclaim/circuits/claim"
	"github.com/MuriData/zkclaim/pkg/envelope"
	"github.com/MuriData/zkclaim/pkg/field"
	"github.com/MuriData/zkclaim/pkg/merkle"
	"github.com/MuriData/zkclaim/pkg/prover"
	"github.com/MuriData/zkclaim/pkg/setup"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// generateProofCommand runs the full proof-generation pipeline
// (pkg/prover) against a local tree file and writes the resulting
// envelope to disk.
func generateProofCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate-proof",
		Usage: "generate a claim proof",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "secret-key-file", Usage: "path to a file containing the secret key (must be mode 0600)"},
			&cli.BoolFlag{Name: "stdin", Usage: "read the secret key from stdin"},
			&cli.StringFlag{Name: "recipient", Required: true, Usage: "recipient address for the claimed tokens"},
			&cli.StringFlag{Name: "tree-file", Required: true, Usage: "path to the eligibility tree file"},
			&cli.StringFlag{Name: "keys-dir", Required: true, Usage: "directory holding the claim circuit's proving/verifying keys"},
			&cli.StringFlag{Name: "output", Required: true, Usage: "path to write the proof envelope JSON"},
		},
		Action: func(c *cli.Context) error {
			if !common.IsHexAddress(c.String("recipient")) {
				return fmt.Errorf("invalid recipient address")
			}
			recipient := common.HexToAddress(c.String("recipient"))

			skElem, err := readSecretKey(c)
			if err != nil {
				return err
			}

			treeFile, err := os.Open(c.String("tree-file"))
			if err != nil {
				return fmt.Errorf("open tree file: %w", err)
			}
			defer treeFile.Close()
			tree, addrs, err := merkle.Read(treeFile)
			if err != nil {
				return fmt.Errorf("read tree file: %w", err)
			}
			src := claim.NewTreePathSource(tree, addrs)

			ccs, err := setup.CompileCircuit(&claim.Circuit{})
			if err != nil {
				return fmt.Errorf("compile circuit: %w", err)
			}
			pk, vk, err := setup.LoadKeys(c.String("keys-dir"), "claim")
			if err != nil {
				return fmt.Errorf("load proving/verifying keys: %w", err)
			}

			p := prover.New(ccs, pk, vk, zerolog.Nop())
			env, err := p.GenerateProof(skElem.Value, recipient, src)
			if err != nil {
				return err
			}

			data, err := envelope.Encode(env)
			if err != nil {
				return err
			}
			if err := os.WriteFile(c.String("output"), data, 0644); err != nil {
				return fmt.Errorf("write envelope: %w", err)
			}
			fmt.Printf("wrote %s\n", c.String("output"))
			return nil
		},
	}
}

// verifyProofCommand runs envelope.Validate and a Groth16 verification
// against a locally available verifying key, without touching any chain
// or submission state.
func verifyProofCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify-proof",
		Usage: "verify a claim proof envelope locally",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "envelope", Required: true, Usage: "path to the proof envelope JSON"},
			&cli.StringFlag{Name: "keys-dir", Required: true, Usage: "directory holding the claim circuit's verifying key"},
			&cli.StringFlag{Name: "root", Usage: "expected merkle root (decimal or 0x-hex); validated against the envelope if given"},
		},
		Action: func(c *cli.Context) error {
			data, err := os.ReadFile(c.String("envelope"))
			if err != nil {
				return fmt.Errorf("read envelope: %w", err)
			}
			env, err := envelope.Decode(data)
			if err != nil {
				return err
			}

			var expectedRoot *field.ParsedElement
			if r := c.String("root"); r != "" {
				expectedRoot, err = field.ParseElement(r)
				if err != nil {
					return fmt.Errorf("parse --root: %w", err)
				}
			}
			parsed, err := envelope.Validate(env, expectedRoot)
			if err != nil {
				return err
			}

			_, vk, err := setup.LoadKeys(c.String("keys-dir"), "claim")
			if err != nil {
				return fmt.Errorf("load verifying key: %w", err)
			}

			proof, err := decodeGroth16Proof(parsed.Proof)
			if err != nil {
				return err
			}

			if err := groth16VerifyEnvelope(vk, proof, parsed); err != nil {
				return fmt.Errorf("proof verification failed: %w", err)
			}
			fmt.Println("proof OK")
			return nil
		},
	}
}
