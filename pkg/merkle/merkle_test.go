package merkle

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func testAddresses(n int) []common.Address {
	addrs := make([]common.Address, n)
	for i := range addrs {
		var a common.Address
		a[18] = byte(i >> 8)
		a[19] = byte(i)
		addrs[i] = a
	}
	return addrs
}

func TestBuildAndVerifyPath(t *testing.T) {
	addrs := testAddresses(5)
	tree, err := Build(addrs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tree.NumLeaves != 5 {
		t.Fatalf("NumLeaves = %d, want 5", tree.NumLeaves)
	}

	for i := range addrs {
		siblings, directions, err := tree.Path(i)
		if err != nil {
			t.Fatalf("Path(%d): %v", i, err)
		}
		leaf := tree.LeafHash(i)
		if !VerifyPath(leaf, siblings, directions, tree.Root) {
			t.Errorf("VerifyPath failed for leaf %d", i)
		}
	}
}

func TestBuildRejectsDuplicates(t *testing.T) {
	addrs := testAddresses(3)
	addrs[2] = addrs[0]
	if _, err := Build(addrs); err == nil {
		t.Fatal("expected error for duplicate address")
	}
}

func TestBuildRejectsEmpty(t *testing.T) {
	if _, err := Build(nil); err == nil {
		t.Fatal("expected error for empty address list")
	}
}

func TestVerifyPathRejectsWrongRoot(t *testing.T) {
	addrs := testAddresses(4)
	tree, err := Build(addrs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	siblings, directions, err := tree.Path(0)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	wrongRoot := tree.ZeroHashes[Depth]
	if VerifyPath(tree.LeafHash(0), siblings, directions, wrongRoot) {
		t.Fatal("VerifyPath should reject mismatched root")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	addrs := testAddresses(7)
	tree, err := Build(addrs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(tree, addrs, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, loadedAddrs, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if loaded.Root.Cmp(tree.Root) != 0 {
		t.Fatal("root mismatch after round trip")
	}
	if len(loadedAddrs) != len(addrs) {
		t.Fatalf("address count = %d, want %d", len(loadedAddrs), len(addrs))
	}
	for i := range addrs {
		if loadedAddrs[i] != addrs[i] {
			t.Fatalf("address %d mismatch after round trip", i)
		}
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer(make([]byte, 16))
	if _, _, err := Read(buf); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestReadRejectsTamperedRoot(t *testing.T) {
	addrs := testAddresses(3)
	tree, err := Build(addrs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(tree, addrs, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data := buf.Bytes()
	data[16] ^= 0xff // flip a byte in the root

	if _, _, err := Read(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for tampered root")
	}
}

func TestCheckpointedTreeMatchesFullTree(t *testing.T) {
	addrs := testAddresses(20)
	full, err := Build(addrs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ct, err := BuildCheckpointed(addrs, SchemeCompact)
	if err != nil {
		t.Fatalf("BuildCheckpointed: %v", err)
	}
	if ct.Root.Cmp(full.Root) != 0 {
		t.Fatal("checkpointed root does not match full tree root")
	}

	for i := range addrs {
		res := ct.RebuildProof(i, func(idx int) common.Address { return addrs[idx] })
		if !VerifyPath(res.LeafHash, res.Siblings, res.Directions, ct.Root) {
			t.Errorf("rebuilt proof failed to verify for leaf %d", i)
		}
		wantSiblings, wantDirections, err := full.Path(i)
		if err != nil {
			t.Fatalf("Path(%d): %v", i, err)
		}
		for lvl := range wantSiblings {
			if wantSiblings[lvl].Cmp(res.Siblings[lvl]) != 0 {
				t.Errorf("leaf %d level %d: sibling mismatch", i, lvl)
			}
			if wantDirections[lvl] != res.Directions[lvl] {
				t.Errorf("leaf %d level %d: direction mismatch", i, lvl)
			}
		}
	}
}

func TestCheckpointedSaveLoadRoundTrip(t *testing.T) {
	addrs := testAddresses(10)
	ct, err := BuildCheckpointed(addrs, SchemeBalanced)
	if err != nil {
		t.Fatalf("BuildCheckpointed: %v", err)
	}

	var buf bytes.Buffer
	if err := ct.SaveCheckpointed(&buf); err != nil {
		t.Fatalf("SaveCheckpointed: %v", err)
	}

	loaded, err := LoadCheckpointed(&buf)
	if err != nil {
		t.Fatalf("LoadCheckpointed: %v", err)
	}
	if loaded.Root.Cmp(ct.Root) != 0 {
		t.Fatal("root mismatch after checkpointed round trip")
	}
	if loaded.NumLeaves != ct.NumLeaves {
		t.Fatalf("NumLeaves = %d, want %d", loaded.NumLeaves, ct.NumLeaves)
	}
}

func TestValidateSchemeRejectsBadLevels(t *testing.T) {
	if err := validateScheme(CheckpointScheme{Levels: []int{5, 3, Depth}}, Depth); err == nil {
		t.Fatal("expected error for unsorted levels")
	}
	if err := validateScheme(CheckpointScheme{Levels: []int{5, 10}}, Depth); err == nil {
		t.Fatal("expected error for scheme not ending at tree depth")
	}
}
