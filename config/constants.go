// Package config holds the fixed, circuit-wide parameters of the claim
// pipeline. Everything here must match on both sides of a proof: the
// prover that builds the witness and the verifier that checks it.
package config

const (
	// TreeDepth is the height of the eligibility Merkle tree (spec D=26),
	// giving capacity 2^26 = 67,108,864 leaf slots.
	TreeDepth = 26

	// TreeCapacity is 2^TreeDepth.
	TreeCapacity = 1 << TreeDepth

	// AddressSize is the byte width of an Ethereum-style address.
	AddressSize = 20

	// FieldElementSize is the byte width an address or secret key is
	// left-padded to before being fed to Poseidon2, so every domain-
	// separated hash mode agrees on padding.
	FieldElementSize = 32

	// ProofElementCount is the number of field elements in the proof
	// transport for the chosen succinct scheme (Groth16 over BN254: 8 —
	// see DESIGN.md for the Open Question resolution).
	ProofElementCount = 8

	// PublicInputCount is the number of public signals carried alongside a
	// proof: (merkleRoot, recipient, nullifier).
	PublicInputCount = 3
)

// Domain separation tags for the hash modes used across the pipeline
// (spec.md §4.A). A single tag is hashed as the first Poseidon2 input
// element so a leaf hash can never collide with a nullifier hash even on
// identical raw input.
const (
	DomainTagEmptyLeaf = 0
	DomainTagLeaf      = 1
	DomainTagNullifier = 2
	DomainTagInternal  = 3
)
