// Package poseidon wraps gnark-crypto's Poseidon2 sponge with the three
// domain-separated hash modes the claim pipeline needs (spec.md §4.A):
// leaf hashing, nullifier derivation, and internal Merkle-node hashing.
// Each mode prepends a fixed tag element so identical raw bytes can never
// collide across modes, mirroring the teacher's HashWithDomainTag.
package poseidon

import (
	"math/big"

	"github.com/MuriData/zkclaim/config"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// toElement canonically encodes v as a 32-byte fr.Element, so a zero value
// writes 32 zero bytes instead of the empty slice big.Int.Bytes() would
// return (matching the in-circuit encoding).
func toElement(v *big.Int) [32]byte {
	var e fr.Element
	e.SetBigInt(v)
	return e.Bytes()
}

func sumToBigInt(h *poseidon2.MerkleDamgardHasher) *big.Int {
	return new(big.Int).SetBytes(h.Sum(nil))
}

func hashTagged(tag int64, parts ...*big.Int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()

	var tagFr fr.Element
	tagFr.SetInt64(tag)
	tagBytes := tagFr.Bytes()
	h.Write(tagBytes[:])

	for _, p := range parts {
		b := toElement(p)
		h.Write(b[:])
	}
	return sumToBigInt(h)
}

// Leaf computes H(DomainTagLeaf, address) where address is a 20-byte
// Ethereum address left-padded to a full field element.
func Leaf(addressAsField *big.Int) *big.Int {
	return hashTagged(config.DomainTagLeaf, addressAsField)
}

// EmptyLeaf is the padding-leaf constant H(DomainTagEmptyLeaf, 0),
// precomputed once and reused by reference throughout the tree builder.
func EmptyLeaf() *big.Int {
	return hashTagged(config.DomainTagEmptyLeaf, big.NewInt(0))
}

// Nullifier computes ν = H(DomainTagNullifier, secretKey): a deterministic,
// one-way function of the secret key alone.
func Nullifier(secretKey *big.Int) *big.Int {
	return hashTagged(config.DomainTagNullifier, secretKey)
}

// InternalNode hashes two child hashes together to produce their parent,
// H(DomainTagInternal, left, right).
func InternalNode(left, right *big.Int) *big.Int {
	return hashTagged(config.DomainTagInternal, left, right)
}
