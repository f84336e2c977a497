package main

import (
	"fmt"

	"github.com/MuriData/zkclaim/circuits/claim"
	"github.com/MuriData/zkclaim/config"
	"github.com/MuriData/zkclaim/pkg/envelope"
	"github.com/MuriData/zkclaim/pkg/field"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/frontend"
)

// decodeGroth16Proof rebuilds a BN254 Groth16 proof object from its wire
// elements, reversing circuits/claim.ToEnvelope's Solidity-verifier
// element order ([A.x, A.y, B.x1, B.x0, B.y1, B.y0, C.x, C.y]).
func decodeGroth16Proof(elements [config.ProofElementCount]*field.ParsedElement) (*groth16bn254.Proof, error) {
	if len(elements) != 8 {
		return nil, fmt.Errorf("expected 8 proof elements, got %d", len(elements))
	}
	for i, e := range elements {
		if e == nil {
			return nil, fmt.Errorf("proof element %d is missing", i)
		}
	}

	var p groth16bn254.Proof
	p.Ar.X.SetBigInt(elements[0].Value)
	p.Ar.Y.SetBigInt(elements[1].Value)
	p.Bs.X.A1.SetBigInt(elements[2].Value)
	p.Bs.X.A0.SetBigInt(elements[3].Value)
	p.Bs.Y.A1.SetBigInt(elements[4].Value)
	p.Bs.Y.A0.SetBigInt(elements[5].Value)
	p.Krs.X.SetBigInt(elements[6].Value)
	p.Krs.Y.SetBigInt(elements[7].Value)

	if !p.Ar.IsOnCurve() || !p.Bs.IsOnCurve() || !p.Krs.IsOnCurve() {
		return nil, fmt.Errorf("proof point is not on the BN254 curve")
	}
	if !inG1Subgroup(&p.Ar) || !inG2Subgroup(&p.Bs) || !inG1Subgroup(&p.Krs) {
		return nil, fmt.Errorf("proof point is not in the expected subgroup")
	}
	return &p, nil
}

func inG1Subgroup(pt *bn254.G1Affine) bool {
	return pt.IsInSubGroup()
}

func inG2Subgroup(pt *bn254.G2Affine) bool {
	return pt.IsInSubGroup()
}

// groth16VerifyEnvelope re-derives the public witness from the envelope's
// parsed values and runs groth16.Verify against it. It builds the witness
// from claim.PublicAssignment rather than a hand-rolled struct, so the
// witness schema is guaranteed identical to the one the proving/verifying
// keys were generated against.
func groth16VerifyEnvelope(vk groth16.VerifyingKey, proof *groth16bn254.Proof, parsed *envelope.Parsed) error {
	assignment := claim.PublicAssignment(parsed.MerkleRoot.Value, parsed.Recipient.Big(), parsed.Nullifier.Value)
	w, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("build public witness: %w", err)
	}
	return groth16.Verify(proof, vk, w)
}
