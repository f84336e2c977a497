package claim

import (
	"math/big"

	"github.com/MuriData/zkclaim/pkg/address"
	"github.com/MuriData/zkclaim/pkg/errs"
	"github.com/MuriData/zkclaim/pkg/merkle"
	"github.com/MuriData/zkclaim/pkg/poseidon"
	"github.com/consensys/gnark/frontend"
	"github.com/ethereum/go-ethereum/common"
)

// WitnessResult holds the fully populated circuit assignment and the
// public values a caller typically needs for logging, envelope
// construction, or fixture export.
type WitnessResult struct {
	Assignment Circuit
	Recipient  common.Address
	Nullifier  *big.Int
	RootHash   *big.Int
}

// PathSource resolves the Merkle path for an address, returning
// errs.NotEligible if the address was never inserted into the tree.
type PathSource interface {
	PathFor(a common.Address) (siblings []*big.Int, directions []int, err error)
	Root() *big.Int
}

// TreePathSource adapts an in-memory *merkle.Tree plus its address list to
// PathSource.
type TreePathSource struct {
	Tree      *merkle.Tree
	Addresses []common.Address
	index     map[common.Address]int
}

// NewTreePathSource builds the address→index lookup once so PathFor is O(1).
func NewTreePathSource(t *merkle.Tree, addrs []common.Address) *TreePathSource {
	idx := make(map[common.Address]int, len(addrs))
	for i, a := range addrs {
		idx[a] = i
	}
	return &TreePathSource{Tree: t, Addresses: addrs, index: idx}
}

func (s *TreePathSource) PathFor(a common.Address) ([]*big.Int, []int, error) {
	i, ok := s.index[a]
	if !ok {
		return nil, nil, errs.New(errs.NotEligible, "address not present in eligibility tree")
	}
	return s.Tree.Path(i)
}

func (s *TreePathSource) Root() *big.Int { return s.Tree.Root }

// PrepareWitness derives the address from sk, looks up its Merkle path via
// src, and assembles the full circuit assignment plus the public values
// (spec.md §4.C steps 1-5). recipient must already be validated nonzero by
// the caller; PrepareWitness re-checks it defensively.
func PrepareWitness(sk *big.Int, recipient common.Address, src PathSource) (*WitnessResult, error) {
	if recipient == (common.Address{}) {
		return nil, errs.New(errs.MalformedInput, "recipient is the zero address")
	}

	a, err := address.FromSecretKey(sk)
	if err != nil {
		return nil, errs.Wrap(errs.WeakKey, "derive address", err)
	}

	siblings, directions, err := src.PathFor(a)
	if err != nil {
		return nil, err
	}

	nullifier := poseidon.Nullifier(sk)

	var assignment Circuit
	assignment.RootHash = src.Root()
	assignment.Recipient = recipient.Big()
	assignment.Nullifier = nullifier
	assignment.SecretKey = sk
	for i := 0; i < Depth; i++ {
		assignment.Siblings[i] = siblings[i]
		assignment.Directions[i] = directions[i]
	}

	return &WitnessResult{
		Assignment: assignment,
		Recipient:  recipient,
		Nullifier:  nullifier,
		RootHash:   src.Root(),
	}, nil
}

// PublicAssignment returns the public-only circuit values, used to build
// the witness passed to the verifier.
func PublicAssignment(rootHash, recipient, nullifier *big.Int) Circuit {
	var c Circuit
	c.RootHash = frontend.Variable(rootHash)
	c.Recipient = frontend.Variable(recipient)
	c.Nullifier = frontend.Variable(nullifier)
	return c
}
