package claim_test

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/MuriData/zkclaim/circuits/claim"
	"github.com/MuriData/zkclaim/pkg/address"
	"github.com/MuriData/zkclaim/pkg/merkle"
	"github.com/MuriData/zkclaim/pkg/setup"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/ethereum/go-ethereum/common"
)

// proveAndVerify compiles, proves, and verifies a claim circuit assignment.
func proveAndVerify(t *testing.T, ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey, assignment *claim.Circuit) {
	t.Helper()

	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		t.Fatalf("create witness: %v", err)
	}
	publicWitness, err := w.Public()
	if err != nil {
		t.Fatalf("extract public witness: %v", err)
	}

	proof, err := groth16.Prove(ccs, pk, w)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

// randomValidSecretKey draws secret keys until it finds one that satisfies
// address.ValidateRange (the circuit does not accept every 256-bit value).
func randomValidSecretKey(t *testing.T) *big.Int {
	t.Helper()
	for i := 0; i < 100; i++ {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			t.Fatalf("read random bytes: %v", err)
		}
		sk := new(big.Int).SetBytes(buf)
		if address.ValidateRange(sk) == nil {
			return sk
		}
	}
	t.Fatal("failed to draw a valid secret key after 100 attempts")
	return nil
}

func TestClaimCircuitEndToEnd(t *testing.T) {
	ccs, err := setup.CompileCircuit(&claim.Circuit{})
	if err != nil {
		t.Fatalf("compile circuit: %v", err)
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		t.Fatalf("groth16 setup: %v", err)
	}

	sk := randomValidSecretKey(t)
	a, err := address.FromSecretKey(sk)
	if err != nil {
		t.Fatalf("derive address: %v", err)
	}

	// Build a small eligibility tree that includes a, plus filler
	// addresses, mirroring how the real ~65M-entry tree is populated.
	addrs := make([]common.Address, 8)
	addrs[3] = a
	for i := range addrs {
		if i == 3 {
			continue
		}
		var filler common.Address
		filler[19] = byte(i + 1)
		addrs[i] = filler
	}

	tree, err := merkle.Build(addrs)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}

	src := claim.NewTreePathSource(tree, addrs)
	var recipient common.Address
	recipient[19] = 0xaa

	result, err := claim.PrepareWitness(sk, recipient, src)
	if err != nil {
		t.Fatalf("prepare witness: %v", err)
	}

	proveAndVerify(t, ccs, pk, vk, &result.Assignment)
}

func TestPrepareWitnessRejectsIneligibleAddress(t *testing.T) {
	sk := randomValidSecretKey(t)

	addrs := make([]common.Address, 4)
	for i := range addrs {
		var filler common.Address
		filler[19] = byte(i + 1)
		addrs[i] = filler
	}
	tree, err := merkle.Build(addrs)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}

	src := claim.NewTreePathSource(tree, addrs)
	var recipient common.Address
	recipient[19] = 0xaa

	if _, err := claim.PrepareWitness(sk, recipient, src); err == nil {
		t.Fatal("expected NotEligible error for address absent from tree")
	}
}

func TestPrepareWitnessRejectsZeroRecipient(t *testing.T) {
	sk := randomValidSecretKey(t)
	a, err := address.FromSecretKey(sk)
	if err != nil {
		t.Fatalf("derive address: %v", err)
	}

	addrs := []common.Address{a}
	tree, err := merkle.Build(addrs)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	src := claim.NewTreePathSource(tree, addrs)

	if _, err := claim.PrepareWitness(sk, common.Address{}, src); err == nil {
		t.Fatal("expected error for zero recipient")
	}
}
