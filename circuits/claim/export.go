package claim

import (
	"fmt"
	"math/big"
	"time"

	"github.com/MuriData/zkclaim/pkg/envelope"
	"github.com/MuriData/zkclaim/pkg/errs"
	"github.com/MuriData/zkclaim/pkg/field"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
)

// ProveAndVerify runs the Groth16 prover over an already-prepared witness,
// self-verifies the result (spec.md §4.C step 6), and returns the raw
// proof together with the public witness.
func ProveAndVerify(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey, result *WitnessResult) (groth16.Proof, witness.Witness, error) {
	w, err := frontend.NewWitness(&result.Assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, errs.Wrap(errs.ProverInternal, "build witness", err)
	}
	pubW, err := w.Public()
	if err != nil {
		return nil, nil, errs.Wrap(errs.ProverInternal, "extract public witness", err)
	}

	proof, err := groth16.Prove(ccs, pk, w)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ProverInternal, "prove", err)
	}

	if err := groth16.Verify(proof, vk, pubW); err != nil {
		return nil, nil, errs.Wrap(errs.ProverInternal, "self-verify", err)
	}

	return proof, pubW, nil
}

// ToEnvelope packages a Groth16 BN254 proof and its public values into the
// wire envelope (spec.md §3, §4.D).
func ToEnvelope(proof groth16.Proof, result *WitnessResult) (*envelope.Envelope, error) {
	bn254Proof, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return nil, errs.New(errs.ProverInternal, "proof is not a BN254 Groth16 proof")
	}

	aX, aY := new(big.Int), new(big.Int)
	bn254Proof.Ar.X.BigInt(aX)
	bn254Proof.Ar.Y.BigInt(aY)

	bX0, bX1, bY0, bY1 := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
	bn254Proof.Bs.X.A0.BigInt(bX0)
	bn254Proof.Bs.X.A1.BigInt(bX1)
	bn254Proof.Bs.Y.A0.BigInt(bY0)
	bn254Proof.Bs.Y.A1.BigInt(bY1)

	cX, cY := new(big.Int), new(big.Int)
	bn254Proof.Krs.X.BigInt(cX)
	bn254Proof.Krs.Y.BigInt(cY)

	// Solidity verifier element order: [A.x, A.y, B.x1, B.x0, B.y1, B.y0, C.x, C.y].
	elements := [8]*big.Int{aX, aY, bX1, bX0, bY1, bY0, cX, cY}

	e := &envelope.Envelope{
		Scheme:      envelope.SchemeGroth16BN254,
		Recipient:   fmt.Sprintf("0x%040x", result.Recipient.Big()),
		Nullifier:   field.Hex(result.Nullifier),
		MerkleRoot:  field.Hex(result.RootHash),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for i, v := range elements {
		e.Proof[i] = field.Hex(v)
	}
	e.PublicSignals = [3]string{
		field.Hex(result.RootHash),
		field.Hex(result.Recipient.Big()),
		field.Hex(result.Nullifier),
	}

	return e, nil
}
