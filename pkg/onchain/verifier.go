package onchain

import (
	"math/big"

	"github.com/MuriData/zkclaim/circuits/claim"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
)

// GrothVerifier adapts a compiled claim circuit's verifying key to the
// Verifier interface, so ClaimLedger re-runs the exact relation the proof
// generator targeted rather than trusting a
// caller-supplied "already verified" flag.
type GrothVerifier struct {
	VK groth16.VerifyingKey
}

// Verify rebuilds the public witness from (root, recipient, nullifier) and
// checks proof against it.
func (g *GrothVerifier) Verify(proof groth16.Proof, root, recipient, nullifier *big.Int) bool {
	assignment := claim.PublicAssignment(root, recipient, nullifier)
	w, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false
	}
	return groth16.Verify(proof, g.VK, w) == nil
}
