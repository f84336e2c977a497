package envelope

import (
	"math/big"
	"strings"
	"testing"

	"github.com/MuriData/zkclaim/pkg/field"
)

func validEnvelope() *Envelope {
	proof := [8]string{}
	for i := range proof {
		proof[i] = field.Hex(big.NewInt(int64(i + 1)))
	}
	return &Envelope{
		Scheme: SchemeGroth16BN254,
		Proof:  proof,
		PublicSignals: [3]string{
			field.Hex(big.NewInt(100)),
			field.Hex(big.NewInt(101)),
			field.Hex(big.NewInt(102)),
		},
		Nullifier:   field.Hex(big.NewInt(555)),
		Recipient:   "0x00000000000000000000000000000000000000aa",
		MerkleRoot:  field.Hex(big.NewInt(100)),
		GeneratedAt: "2026-01-01T00:00:00Z",
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := validEnvelope()
	data, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Scheme != e.Scheme || decoded.Nullifier != e.Nullifier {
		t.Fatal("decoded envelope does not match original")
	}
}

func TestValidateAccepts(t *testing.T) {
	e := validEnvelope()
	root, _ := field.ParseElement(e.MerkleRoot)
	if _, err := Validate(e, root); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsUnknownScheme(t *testing.T) {
	e := validEnvelope()
	e.Scheme = "plonk-bn254"
	if _, err := Validate(e, nil); err == nil {
		t.Fatal("expected error for unrecognized scheme")
	}
}

func TestValidateRejectsUniformProof(t *testing.T) {
	e := validEnvelope()
	same := field.Hex(big.NewInt(7))
	for i := range e.Proof {
		e.Proof[i] = same
	}
	if _, err := Validate(e, nil); err == nil {
		t.Fatal("expected error for uniform proof elements")
	}
}

func TestValidateRejectsZeroProofElement(t *testing.T) {
	e := validEnvelope()
	e.Proof[3] = field.Hex(big.NewInt(0))
	if _, err := Validate(e, nil); err == nil {
		t.Fatal("expected error for zero proof element")
	}
}

func TestValidateRejectsRootMismatch(t *testing.T) {
	e := validEnvelope()
	wrongRoot, _ := field.ParseElement(field.Hex(big.NewInt(999)))
	if _, err := Validate(e, wrongRoot); err == nil {
		t.Fatal("expected error for root mismatch")
	}
}

func TestValidateRejectsZeroRecipient(t *testing.T) {
	e := validEnvelope()
	e.Recipient = "0x0000000000000000000000000000000000000000"
	if _, err := Validate(e, nil); err == nil {
		t.Fatal("expected error for zero recipient")
	}
}

func TestValidateRejectsZeroNullifier(t *testing.T) {
	e := validEnvelope()
	e.Nullifier = field.Hex(big.NewInt(0))
	if _, err := Validate(e, nil); err == nil {
		t.Fatal("expected error for zero nullifier")
	}
}

func TestDecodeRejectsOversizedEnvelope(t *testing.T) {
	huge := strings.Repeat("a", MaxSize+1)
	if _, err := Decode([]byte(huge)); err == nil {
		t.Fatal("expected error for oversized envelope")
	}
}
