package merkle

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"runtime"
	"sync"

	"github.com/MuriData/zkclaim/pkg/address"
	"github.com/MuriData/zkclaim/pkg/errs"
	"github.com/MuriData/zkclaim/pkg/poseidon"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
)

// ---------------------------------------------------------------------------
// Checkpointed eligibility tree
// ---------------------------------------------------------------------------
//
// A full depth-26 tree over ~65.25M addresses has 2^27-1 internal+leaf
// entries; materializing all of them is wasteful when most path lookups
// happen against a server that already keeps the address list on disk. A
// CheckpointedTree instead persists only selected "checkpoint" levels and,
// at proof time, rebuilds the gap between checkpoints in parallel:
//
//   - Bottom gap (level 0 → first checkpoint): re-reads addresses from the
//     caller-supplied source and parallel-hashes them (the expensive step,
//     since every populated leaf needs a Poseidon2 evaluation).
//   - Middle/upper gaps: rebuild from stored checkpoint entries with cheap
//     InternalNode calls (each gap in its own goroutine).
//
// Graduated spacing — smaller gaps near the bottom, larger near the top —
// equalizes per-gap rebuild cost so wall-clock time tracks max(gap_times)
// rather than sum(gap_times).

// CheckpointScheme lists which tree levels to persist. Levels must be
// sorted ascending with the last element equal to Depth.
type CheckpointScheme struct {
	Levels []int
}

// Preset schemes for the depth-26 eligibility tree. Space estimates assume
// ~65.25M populated leaves; rebuild times assume 11 CPU cores and ~4ms per
// Poseidon2 leaf hash.
var (
	// SchemeCompact stores only level 13 and the root. Smallest file,
	// slowest per-opening rebuild.
	SchemeCompact = CheckpointScheme{Levels: []int{13, Depth}}

	// SchemeBalanced stores checkpoint levels with graduated gaps,
	// trading file size against rebuild latency.
	SchemeBalanced = CheckpointScheme{Levels: []int{6, 12, 19, Depth}}

	// SchemeFast keeps the bottom gap small at the cost of a larger file.
	SchemeFast = CheckpointScheme{Levels: []int{4, 9, 15, 21, Depth}}
)

// CheckpointedTree holds only the entries at checkpoint levels plus the
// precomputed zero-subtree hash chain.
type CheckpointedTree struct {
	Root       *big.Int
	NumLeaves  int
	Scheme     CheckpointScheme
	Levels     map[int]map[int]*big.Int // checkpoint level → index → hash
	ZeroHashes []*big.Int
}

// RebuildProofResult holds the output of CheckpointedTree.RebuildProof.
type RebuildProofResult struct {
	Siblings   []*big.Int
	Directions []int
	LeafHash   *big.Int
}

// segment is a contiguous range of tree levels [lo, hi) rebuilt from the
// entries stored (or re-derived) at level lo.
type segment struct {
	lo, hi          int
	needsAddresses bool // true when level lo is not stored (bottom gap)
}

// BuildCheckpointed constructs a checkpointed tree directly from the full
// address list, keeping only the checkpoint-level entries in memory.
func BuildCheckpointed(addresses []common.Address, scheme CheckpointScheme) (*CheckpointedTree, error) {
	if err := validateScheme(scheme, Depth); err != nil {
		return nil, err
	}
	full, err := Build(addresses)
	if err != nil {
		return nil, err
	}

	levels := make(map[int]map[int]*big.Int, len(scheme.Levels))
	for _, lvl := range scheme.Levels {
		levels[lvl] = full.Levels[lvl]
	}

	return &CheckpointedTree{
		Root:       full.Root,
		NumLeaves:  full.NumLeaves,
		Scheme:     scheme,
		Levels:     levels,
		ZeroHashes: full.ZeroHashes,
	}, nil
}

// ---------------------------------------------------------------------------
// Serialization
//
//	uint32(depth) | uint32(numLeaves) | uint32(numCheckpointLevels)
//	uint32(level_0) | ... | uint32(level_k)
//	for each checkpoint level (scheme order):
//	  uint32(count); for each entry (sorted by index): uint32(index) | [32]byte(hash)
// ---------------------------------------------------------------------------

// SaveCheckpointed writes the checkpoint-level entries of ct to w.
func (ct *CheckpointedTree) SaveCheckpointed(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, uint32(Depth)); err != nil {
		return errs.Wrap(errs.StorageFailure, "write depth", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(ct.NumLeaves)); err != nil {
		return errs.Wrap(errs.StorageFailure, "write numLeaves", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(ct.Scheme.Levels))); err != nil {
		return errs.Wrap(errs.StorageFailure, "write level count", err)
	}
	for _, lvl := range ct.Scheme.Levels {
		if err := binary.Write(w, binary.BigEndian, uint32(lvl)); err != nil {
			return errs.Wrap(errs.StorageFailure, "write level number", err)
		}
	}

	for _, lvl := range ct.Scheme.Levels {
		m := ct.Levels[lvl]
		if err := binary.Write(w, binary.BigEndian, uint32(len(m))); err != nil {
			return errs.Wrap(errs.StorageFailure, fmt.Sprintf("write level %d count", lvl), err)
		}
		indices := make([]int, 0, len(m))
		for idx := range m {
			indices = append(indices, idx)
		}
		sortInts(indices)
		for _, idx := range indices {
			if err := binary.Write(w, binary.BigEndian, uint32(idx)); err != nil {
				return errs.Wrap(errs.StorageFailure, fmt.Sprintf("write level %d index", lvl), err)
			}
			var elem fr.Element
			elem.SetBigInt(m[idx])
			b := elem.Bytes()
			if _, err := w.Write(b[:]); err != nil {
				return errs.Wrap(errs.StorageFailure, fmt.Sprintf("write level %d hash", lvl), err)
			}
		}
	}
	return nil
}

// LoadCheckpointed reads a checkpointed tree written by SaveCheckpointed.
func LoadCheckpointed(r io.Reader) (*CheckpointedTree, error) {
	var depth, numLeaves, numLevels uint32
	if err := binary.Read(r, binary.BigEndian, &depth); err != nil {
		return nil, errs.Wrap(errs.StorageFailure, "read depth", err)
	}
	if int(depth) != Depth {
		return nil, errs.New(errs.MalformedInput, fmt.Sprintf("unsupported tree depth %d", depth))
	}
	if err := binary.Read(r, binary.BigEndian, &numLeaves); err != nil {
		return nil, errs.Wrap(errs.StorageFailure, "read numLeaves", err)
	}
	if err := binary.Read(r, binary.BigEndian, &numLevels); err != nil {
		return nil, errs.Wrap(errs.StorageFailure, "read level count", err)
	}

	checkpointLevels := make([]int, numLevels)
	for i := range checkpointLevels {
		var lvl uint32
		if err := binary.Read(r, binary.BigEndian, &lvl); err != nil {
			return nil, errs.Wrap(errs.StorageFailure, "read level number", err)
		}
		checkpointLevels[i] = int(lvl)
	}

	zeroHashes := PrecomputeZeroHashes(Depth)

	levels := make(map[int]map[int]*big.Int, int(numLevels))
	for _, lvl := range checkpointLevels {
		var count uint32
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return nil, errs.Wrap(errs.StorageFailure, fmt.Sprintf("read level %d count", lvl), err)
		}
		m := make(map[int]*big.Int, int(count))
		var hashBuf [32]byte
		for j := 0; j < int(count); j++ {
			var idx uint32
			if err := binary.Read(r, binary.BigEndian, &idx); err != nil {
				return nil, errs.Wrap(errs.StorageFailure, fmt.Sprintf("read level %d index", lvl), err)
			}
			if _, err := io.ReadFull(r, hashBuf[:]); err != nil {
				return nil, errs.Wrap(errs.StorageFailure, fmt.Sprintf("read level %d hash", lvl), err)
			}
			var elem fr.Element
			elem.SetBytes(hashBuf[:])
			m[int(idx)] = new(big.Int)
			elem.BigInt(m[int(idx)])
		}
		levels[lvl] = m
	}

	root := zeroHashes[Depth]
	if rootLevel, ok := levels[Depth]; ok {
		if r, ok := rootLevel[0]; ok {
			root = r
		}
	}

	return &CheckpointedTree{
		Root:       root,
		NumLeaves:  int(numLeaves),
		Scheme:     CheckpointScheme{Levels: checkpointLevels},
		Levels:     levels,
		ZeroHashes: zeroHashes,
	}, nil
}

// ---------------------------------------------------------------------------
// Parallel proof reconstruction
// ---------------------------------------------------------------------------

// RebuildProof reconstructs a full depth-26 Merkle proof by rebuilding the
// gaps between checkpoint levels in parallel. readAddress supplies the
// populated address at a given leaf index; it is called only for indices
// below ct.NumLeaves in the bottom gap.
func (ct *CheckpointedTree) RebuildProof(leafIndex int, readAddress func(int) common.Address) *RebuildProofResult {
	siblings := make([]*big.Int, Depth)
	directions := make([]int, Depth)

	idx := leafIndex
	for lvl := 0; lvl < Depth; lvl++ {
		if idx%2 == 0 {
			directions[lvl] = 0
		} else {
			directions[lvl] = 1
		}
		idx /= 2
	}

	segments := ct.buildSegments()

	type segResult struct {
		siblings map[int]*big.Int
		leafHash *big.Int
	}
	results := make([]segResult, len(segments))

	var wg sync.WaitGroup
	for si, seg := range segments {
		wg.Add(1)
		go func(si int, seg segment) {
			defer wg.Done()
			gapDepth := seg.hi - seg.lo
			if gapDepth == 0 {
				return
			}

			subtreeAtHi := leafIndex >> seg.hi
			baseStart := subtreeAtHi << gapDepth
			subtreeSize := 1 << gapDepth

			baseEntries := make(map[int]*big.Int)
			var segLeafHash *big.Int

			if seg.needsAddresses {
				baseEntries, segLeafHash = ct.rebuildBottomEntries(baseStart, subtreeSize, leafIndex, readAddress, len(segments))
			} else {
				if stored, ok := ct.Levels[seg.lo]; ok {
					for i := 0; i < subtreeSize; i++ {
						absIdx := baseStart + i
						if h, ok := stored[absIdx]; ok {
							baseEntries[absIdx] = h
						}
					}
				}
				if seg.lo == 0 {
					if h, ok := baseEntries[leafIndex]; ok {
						segLeafHash = h
					} else {
						segLeafHash = ct.ZeroHashes[0]
					}
				}
			}

			segSiblings := ct.buildGap(baseEntries, seg.lo, gapDepth, leafIndex)

			results[si].siblings = segSiblings
			results[si].leafHash = segLeafHash
		}(si, seg)
	}
	wg.Wait()

	var leafHash *big.Int
	for _, res := range results {
		for lvl, sib := range res.siblings {
			siblings[lvl] = sib
		}
		if res.leafHash != nil {
			leafHash = res.leafHash
		}
	}

	for i, s := range siblings {
		if s == nil {
			siblings[i] = ct.ZeroHashes[i]
		}
	}
	if leafHash == nil {
		leafHash = ct.ZeroHashes[0]
	}

	return &RebuildProofResult{Siblings: siblings, Directions: directions, LeafHash: leafHash}
}

func (ct *CheckpointedTree) buildSegments() []segment {
	_, hasLevel0 := ct.Levels[0]
	var segments []segment
	prev := 0
	for _, cp := range ct.Scheme.Levels {
		if cp > prev {
			segments = append(segments, segment{
				lo:             prev,
				hi:             cp,
				needsAddresses: prev == 0 && !hasLevel0,
			})
		}
		prev = cp
	}
	return segments
}

func (ct *CheckpointedTree) rebuildBottomEntries(
	baseStart, subtreeSize, leafIndex int,
	readAddress func(int) common.Address,
	numSegments int,
) (map[int]*big.Int, *big.Int) {
	hashes := make([]*big.Int, subtreeSize)
	present := make([]bool, subtreeSize)

	numWorkers := runtime.NumCPU()
	if numSegments > 1 && numWorkers > numSegments {
		numWorkers -= numSegments - 1
	}
	if numWorkers > subtreeSize {
		numWorkers = subtreeSize
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var leafWg sync.WaitGroup
	work := make(chan int, subtreeSize)
	for w := 0; w < numWorkers; w++ {
		leafWg.Add(1)
		go func() {
			defer leafWg.Done()
			for localIdx := range work {
				absIdx := baseStart + localIdx
				if absIdx < ct.NumLeaves {
					a := readAddress(absIdx)
					hashes[localIdx] = poseidon.Leaf(address.ToFieldElement(a))
					present[localIdx] = true
				}
			}
		}()
	}
	for i := 0; i < subtreeSize; i++ {
		work <- i
	}
	close(work)
	leafWg.Wait()

	baseEntries := make(map[int]*big.Int, subtreeSize)
	for i, h := range hashes {
		if present[i] {
			baseEntries[baseStart+i] = h
		}
	}

	localOffset := leafIndex - baseStart
	var leafHash *big.Int
	if localOffset >= 0 && localOffset < subtreeSize && present[localOffset] {
		leafHash = hashes[localOffset]
	} else {
		leafHash = ct.ZeroHashes[0]
	}

	return baseEntries, leafHash
}

func (ct *CheckpointedTree) buildGap(baseEntries map[int]*big.Int, baseLvl, gapDepth, leafIndex int) map[int]*big.Int {
	segSiblings := make(map[int]*big.Int, gapDepth)
	currentEntries := baseEntries

	for relLvl := 0; relLvl < gapDepth; relLvl++ {
		absLvl := baseLvl + relLvl

		nodeIdx := leafIndex >> absLvl
		sibIdx := nodeIdx ^ 1
		if h, ok := currentEntries[sibIdx]; ok {
			segSiblings[absLvl] = h
		} else {
			segSiblings[absLvl] = ct.ZeroHashes[absLvl]
		}

		nextEntries := make(map[int]*big.Int)
		parentIndices := make(map[int]bool)
		for idx := range currentEntries {
			parentIndices[idx/2] = true
		}
		for parentIdx := range parentIndices {
			leftIdx := parentIdx * 2
			rightIdx := parentIdx*2 + 1

			left, ok := currentEntries[leftIdx]
			if !ok {
				left = ct.ZeroHashes[absLvl]
			}
			right, ok := currentEntries[rightIdx]
			if !ok {
				right = ct.ZeroHashes[absLvl]
			}
			nextEntries[parentIdx] = poseidon.InternalNode(left, right)
		}
		currentEntries = nextEntries
	}

	return segSiblings
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func validateScheme(scheme CheckpointScheme, depth int) error {
	if len(scheme.Levels) == 0 {
		return errs.New(errs.MalformedInput, "checkpoint scheme has no levels")
	}
	if scheme.Levels[len(scheme.Levels)-1] != depth {
		return errs.New(errs.MalformedInput, fmt.Sprintf("checkpoint scheme must end with tree depth %d, got %d", depth, scheme.Levels[len(scheme.Levels)-1]))
	}
	for i := 1; i < len(scheme.Levels); i++ {
		if scheme.Levels[i] <= scheme.Levels[i-1] {
			return errs.New(errs.MalformedInput, fmt.Sprintf("checkpoint levels must be sorted ascending: %d <= %d", scheme.Levels[i], scheme.Levels[i-1]))
		}
	}
	if scheme.Levels[0] < 0 {
		return errs.New(errs.MalformedInput, "checkpoint levels must be non-negative")
	}
	return nil
}

// sortInts sorts a slice of ints ascending (insertion sort, fine for the
// typically small per-level entry counts).
func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		key := s[i]
		j := i - 1
		for j >= 0 && s[j] > key {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = key
	}
}
