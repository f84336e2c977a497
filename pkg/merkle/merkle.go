// Package merkle builds and serializes the depth-26 eligibility Merkle
// tree (spec.md §3/§4.B): a complete binary tree over up to 2^26 leaves,
// where unpopulated positions are implicitly the precomputed empty-leaf
// constant. Only real leaves are stored (sparse maps keyed by index, plus
// a precomputed zero-subtree hash chain for padding), the same storage
// technique the teacher's SparseMerkleTree uses for a tree that is
// conceptually dense but overwhelmingly populated.
package merkle

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"runtime"
	"sync"

	"github.com/MuriData/zkclaim/config"
	"github.com/MuriData/zkclaim/pkg/address"
	"github.com/MuriData/zkclaim/pkg/errs"
	"github.com/MuriData/zkclaim/pkg/poseidon"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
)

// Depth is the tree height used throughout this package.
const Depth = config.TreeDepth

// Tree is the eligibility Merkle tree.
type Tree struct {
	Root      *big.Int
	NumLeaves int
	// Levels[0] holds real leaf hashes keyed by leaf index; Levels[k] for
	// k>0 holds internal node hashes keyed by node index at that level.
	// Levels[Depth] has at most one entry, at index 0: the root.
	Levels     []map[int]*big.Int
	ZeroHashes []*big.Int // ZeroHashes[k] = hash of an all-empty subtree of height k
}

// PrecomputeZeroHashes builds the zero-subtree hash chain:
//
//	zeroHashes[0] = emptyLeaf
//	zeroHashes[k] = InternalNode(zeroHashes[k-1], zeroHashes[k-1])
func PrecomputeZeroHashes(depth int) []*big.Int {
	zh := make([]*big.Int, depth+1)
	zh[0] = poseidon.EmptyLeaf()
	for i := 1; i <= depth; i++ {
		zh[i] = poseidon.InternalNode(zh[i-1], zh[i-1])
	}
	return zh
}

// Build constructs the eligibility tree from an ordered list of populated
// addresses. Duplicate addresses are rejected (naming the duplicate
// index), as is a count exceeding the tree's capacity.
func Build(addresses []common.Address) (*Tree, error) {
	n := len(addresses)
	if n == 0 {
		return nil, errs.New(errs.MalformedInput, "empty address list")
	}
	if n > config.TreeCapacity {
		return nil, errs.New(errs.MalformedInput, fmt.Sprintf("%d addresses exceeds tree capacity %d", n, config.TreeCapacity))
	}
	if dupIdx, ok := findDuplicate(addresses); ok {
		return nil, errs.New(errs.MalformedInput, fmt.Sprintf("duplicate address at index %d", dupIdx))
	}

	zeroHashes := PrecomputeZeroHashes(Depth)

	leafHashes := make([]*big.Int, n)
	hashLeavesParallel(addresses, leafHashes)

	levels := make([]map[int]*big.Int, Depth+1)
	levels[0] = make(map[int]*big.Int, n)
	for i, h := range leafHashes {
		levels[0][i] = h
	}
	for lvl := 1; lvl <= Depth; lvl++ {
		levels[lvl] = make(map[int]*big.Int)
	}

	for lvl := 0; lvl < Depth; lvl++ {
		parentIndices := make(map[int]bool)
		for idx := range levels[lvl] {
			parentIndices[idx/2] = true
		}
		for p := range parentIndices {
			left, ok := levels[lvl][p*2]
			if !ok {
				left = zeroHashes[lvl]
			}
			right, ok := levels[lvl][p*2+1]
			if !ok {
				right = zeroHashes[lvl]
			}
			levels[lvl+1][p] = poseidon.InternalNode(left, right)
		}
	}

	root, ok := levels[Depth][0]
	if !ok {
		root = zeroHashes[Depth]
	}

	return &Tree{
		Root:       root,
		NumLeaves:  n,
		Levels:     levels,
		ZeroHashes: zeroHashes,
	}, nil
}

func findDuplicate(addresses []common.Address) (int, bool) {
	seen := make(map[common.Address]int, len(addresses))
	for i, a := range addresses {
		if _, ok := seen[a]; ok {
			return i, true
		}
		seen[a] = i
	}
	return 0, false
}

func hashLeavesParallel(addresses []common.Address, out []*big.Int) {
	n := len(addresses)
	numWorkers := runtime.NumCPU()
	if numWorkers > n {
		numWorkers = n
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	work := make(chan int, n)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				out[i] = poseidon.Leaf(address.ToFieldElement(addresses[i]))
			}
		}()
	}
	for i := 0; i < n; i++ {
		work <- i
	}
	close(work)
	wg.Wait()
}

// Path returns the sibling hashes and direction bits for leaf index i
// (spec.md §3): directions[k] = 0 means the node at level k is the left
// child (sibling on the right), 1 means the reverse.
func (t *Tree) Path(i int) ([]*big.Int, []int, error) {
	if i < 0 || i >= config.TreeCapacity {
		return nil, nil, errs.New(errs.MalformedInput, fmt.Sprintf("leaf index %d out of range", i))
	}

	siblings := make([]*big.Int, Depth)
	directions := make([]int, Depth)

	idx := i
	for lvl := 0; lvl < Depth; lvl++ {
		var siblingIdx int
		if idx%2 == 0 {
			siblingIdx = idx + 1
			directions[lvl] = 0
		} else {
			siblingIdx = idx - 1
			directions[lvl] = 1
		}
		if h, ok := t.Levels[lvl][siblingIdx]; ok {
			siblings[lvl] = h
		} else {
			siblings[lvl] = t.ZeroHashes[lvl]
		}
		idx /= 2
	}
	return siblings, directions, nil
}

// LeafHash returns the hash at leaf index i, or the empty-leaf constant if
// i is beyond the populated range.
func (t *Tree) LeafHash(i int) *big.Int {
	if h, ok := t.Levels[0][i]; ok {
		return h
	}
	return t.ZeroHashes[0]
}

// VerifyPath recomputes the root from a leaf hash, sibling list, and
// direction bits, and compares against root. It is the pure fold used by
// both the prover's self-check and the reference (off-chain) verifier.
func VerifyPath(leaf *big.Int, siblings []*big.Int, directions []int, root *big.Int) bool {
	if len(siblings) != len(directions) {
		return false
	}
	current := leaf
	for i := 0; i < len(siblings); i++ {
		if directions[i] == 0 {
			current = poseidon.InternalNode(current, siblings[i])
		} else {
			current = poseidon.InternalNode(siblings[i], current)
		}
	}
	return current.Cmp(root) == 0
}

// ---------------------------------------------------------------------------
// Binary tree file format (spec.md §3/§6): 16-byte header, 32-byte root,
// address body.
//
//	magic[4]="ZKPT" | version(1)=1 | height(1)=26 | reserved(2)=0
//	leafCount(4, big-endian) | reserved(4)=0
//	root(32, big-endian canonical fr.Element)
//	addresses: leafCount * 20 bytes, insertion order
//
// Storing addresses rather than hashes keeps the file a source of truth
// independent of this package's internal representation; readers rebuild
// the tree and check the recomputed root against the header.
// ---------------------------------------------------------------------------

var fileMagic = [4]byte{'Z', 'K', 'P', 'T'}

const fileVersion = 1

// Write emits the tree's header and address body to w.
func Write(t *Tree, addresses []common.Address, w io.Writer) error {
	if len(addresses) != t.NumLeaves {
		return errs.New(errs.MalformedInput, fmt.Sprintf("address count %d does not match tree leaf count %d", len(addresses), t.NumLeaves))
	}

	if _, err := w.Write(fileMagic[:]); err != nil {
		return errs.Wrap(errs.StorageFailure, "write magic", err)
	}
	if _, err := w.Write([]byte{fileVersion, byte(Depth), 0, 0}); err != nil {
		return errs.Wrap(errs.StorageFailure, "write version/height/reserved", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(t.NumLeaves)); err != nil {
		return errs.Wrap(errs.StorageFailure, "write leaf count", err)
	}
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return errs.Wrap(errs.StorageFailure, "write reserved", err)
	}

	var rootElem fr.Element
	rootElem.SetBigInt(t.Root)
	rootBytes := rootElem.Bytes()
	if _, err := w.Write(rootBytes[:]); err != nil {
		return errs.Wrap(errs.StorageFailure, "write root", err)
	}

	for i, a := range addresses {
		if _, err := w.Write(a.Bytes()); err != nil {
			return errs.Wrap(errs.StorageFailure, fmt.Sprintf("write address %d", i), err)
		}
	}
	return nil
}

// Read parses a tree file written by Write, rebuilds the tree from the
// address body, and refuses the file if the recomputed root or height
// disagree with the header.
func Read(r io.Reader) (*Tree, []common.Address, error) {
	var hdr [16]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, nil, errs.Wrap(errs.StorageFailure, "read header", err)
	}
	if hdr[0] != fileMagic[0] || hdr[1] != fileMagic[1] || hdr[2] != fileMagic[2] || hdr[3] != fileMagic[3] {
		return nil, nil, errs.New(errs.MalformedInput, "bad tree file magic")
	}
	version := hdr[4]
	height := hdr[5]
	if version != fileVersion {
		return nil, nil, errs.New(errs.MalformedInput, fmt.Sprintf("unsupported tree file version %d", version))
	}
	if int(height) != Depth {
		return nil, nil, errs.New(errs.MalformedInput, fmt.Sprintf("unsupported tree height %d", height))
	}
	leafCount := binary.BigEndian.Uint32(hdr[8:12])

	var rootBuf [32]byte
	if _, err := io.ReadFull(r, rootBuf[:]); err != nil {
		return nil, nil, errs.Wrap(errs.StorageFailure, "read root", err)
	}
	var rootElem fr.Element
	rootElem.SetBytes(rootBuf[:])
	claimedRoot := new(big.Int)
	rootElem.BigInt(claimedRoot)

	addresses := make([]common.Address, leafCount)
	var addrBuf [config.AddressSize]byte
	for i := range addresses {
		if _, err := io.ReadFull(r, addrBuf[:]); err != nil {
			return nil, nil, errs.Wrap(errs.StorageFailure, fmt.Sprintf("read address %d", i), err)
		}
		addresses[i] = common.BytesToAddress(addrBuf[:])
	}

	t, err := Build(addresses)
	if err != nil {
		return nil, nil, err
	}
	if t.Root.Cmp(claimedRoot) != 0 {
		return nil, nil, errs.New(errs.MalformedInput, "recomputed root does not match tree file header")
	}
	return t, addresses, nil
}
