// Package claim implements the claim circuit (spec.md §4.C): given a
// secret key from the eligibility set and a freely-chosen recipient, it
// proves knowledge of a Merkle path binding the key's derived address to
// the published root, and correct derivation of the one-time nullifier,
// without revealing the address or path.
package claim

import (
	"github.com/MuriData/zkclaim/config"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"
)

// Circuit is the claim relation:
//
//	∃ sk, siblings, directions :
//	  deriveAddress(sk) = A ∧
//	  leaf(A) = ℓ ∧
//	  fold(ℓ, siblings, directions) = rootHash ∧
//	  H(DomainTagNullifier, sk) = nullifier
//
// with public inputs (rootHash, recipient, nullifier).
type Circuit struct {
	// Public.
	RootHash  frontend.Variable `gnark:"rootHash,public"`
	Recipient frontend.Variable `gnark:"recipient,public"`
	Nullifier frontend.Variable `gnark:"nullifier,public"`

	// Private.
	SecretKey  frontend.Variable                `gnark:"secretKey"`
	Siblings   [Depth]frontend.Variable `gnark:"siblings"`
	Directions [Depth]frontend.Variable `gnark:"directions"`
}

func (c *Circuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.IsZero(c.SecretKey), 0)
	api.AssertIsEqual(api.IsZero(c.Recipient), 0)

	p, err := poseidon2.NewPoseidon2FromParameters(api, 2, 6, 50)
	if err != nil {
		return err
	}

	address, err := deriveAddress(api, c.SecretKey)
	if err != nil {
		return err
	}

	leafHasher := hash.NewMerkleDamgardHasher(api, p, config.DomainTagLeaf)
	leafHasher.Write(address)
	leaf := leafHasher.Sum()

	path := MerklePathCircuit{
		RootHash:   c.RootHash,
		LeafValue:  leaf,
		Siblings:   c.Siblings,
		Directions: c.Directions,
	}
	if err := path.Define(api); err != nil {
		return err
	}

	nullifierHasher := hash.NewMerkleDamgardHasher(api, p, config.DomainTagNullifier)
	nullifierHasher.Write(c.SecretKey)
	derivedNullifier := nullifierHasher.Sum()

	api.AssertIsEqual(c.Nullifier, derivedNullifier)

	return nil
}
