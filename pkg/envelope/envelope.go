// Package envelope defines the claim proof envelope's wire schema and the
// structural validator run before any cryptographic verification
// (spec.md §3, §4.D). The envelope is the self-describing, JSON-encoded
// object a holder produces locally and hands to the submission service or
// directly to the chain.
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/MuriData/zkclaim/config"
	"github.com/MuriData/zkclaim/pkg/errs"
	"github.com/MuriData/zkclaim/pkg/field"
	"github.com/ethereum/go-ethereum/common"
)

// MaxSize is the implementation cap on envelope byte size (spec.md §4.D).
const MaxSize = 10 * 1024 * 1024

// SchemeGroth16BN254 is the only currently recognized proof-scheme tag.
const SchemeGroth16BN254 = "groth16-bn254"

// Envelope is the wire form of a claim proof (spec.md §3 "Proof envelope
// (wire form)"). Every *big.Int-shaped field is carried as a string on the
// wire, either decimal or 0x-prefixed 64-nibble hex (ToEnvelope writes
// hex); Parsed converts to the validated numeric form.
type Envelope struct {
	Scheme        string    `json:"scheme"`
	Proof         [8]string `json:"proof"`
	PublicSignals [3]string `json:"public_signals"`
	Nullifier     string    `json:"nullifier"`
	Recipient     string    `json:"recipient"`
	MerkleRoot    string    `json:"merkle_root"`
	GeneratedAt   string    `json:"generated_at"` // RFC3339/ISO-8601
}

// Encode marshals e to its canonical JSON wire form.
func Encode(e *Envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "marshal envelope", err)
	}
	return b, nil
}

// Decode parses raw JSON into an Envelope without running the structural
// validator; callers must call Validate separately before trusting the
// result.
func Decode(data []byte) (*Envelope, error) {
	if len(data) > MaxSize {
		return nil, errs.New(errs.MalformedInput, fmt.Sprintf("envelope size %d exceeds cap %d", len(data), MaxSize))
	}
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errs.Wrap(errs.MalformedInput, "unmarshal envelope", err)
	}
	return &e, nil
}

// Parsed is the validated, numeric form of an Envelope's contents.
type Parsed struct {
	Proof         [config.ProofElementCount]*field.ParsedElement
	PublicSignals [config.PublicInputCount]*field.ParsedElement
	Nullifier     *field.ParsedElement
	Recipient     common.Address
	MerkleRoot    *field.ParsedElement
	GeneratedAt   string
}

// Validate runs every structural check from spec.md §4.D, in order, and
// reports the first violated rule. currentRoot is the root the service
// currently accepts; pass nil to skip the root-match check (e.g. when
// validating before a root is known).
func Validate(e *Envelope, currentRoot *field.ParsedElement) (*Parsed, error) {
	if e.Scheme != SchemeGroth16BN254 {
		return nil, errs.New(errs.MalformedInput, fmt.Sprintf("unrecognized proof scheme %q", e.Scheme))
	}

	var proof [config.ProofElementCount]*field.ParsedElement
	for i, s := range e.Proof {
		v, err := field.ParseElement(s)
		if err != nil {
			return nil, errs.Wrap(errs.MalformedInput, fmt.Sprintf("proof element %d", i), err)
		}
		if v.Value.Sign() == 0 {
			return nil, errs.New(errs.MalformedInput, fmt.Sprintf("proof element %d is zero", i))
		}
		proof[i] = v
	}
	if allEqual(proof[:]) {
		return nil, errs.New(errs.MalformedInput, "proof elements are not uniform: all equal")
	}

	var publicSignals [config.PublicInputCount]*field.ParsedElement
	for i, s := range e.PublicSignals {
		v, err := field.ParseElement(s)
		if err != nil {
			return nil, errs.Wrap(errs.MalformedInput, fmt.Sprintf("public signal %d", i), err)
		}
		publicSignals[i] = v
	}

	root, err := field.ParseElement(e.MerkleRoot)
	if err != nil {
		return nil, errs.Wrap(errs.MalformedInput, "merkle_root", err)
	}
	if currentRoot != nil && root.Value.Cmp(currentRoot.Value) != 0 {
		return nil, errs.New(errs.MalformedInput, "merkle_root does not match the currently accepted root")
	}

	if !common.IsHexAddress(e.Recipient) {
		return nil, errs.New(errs.MalformedInput, "recipient is not a valid address")
	}
	recipient := common.HexToAddress(e.Recipient)
	if recipient == (common.Address{}) {
		return nil, errs.New(errs.MalformedInput, "recipient is the zero address")
	}

	nullifier, err := field.ParseElement(e.Nullifier)
	if err != nil {
		return nil, errs.Wrap(errs.MalformedInput, "nullifier", err)
	}
	if nullifier.Value.Sign() == 0 {
		return nil, errs.New(errs.MalformedInput, "nullifier is zero")
	}

	if e.GeneratedAt == "" {
		return nil, errs.New(errs.MalformedInput, "generated_at is empty")
	}

	return &Parsed{
		Proof:         proof,
		PublicSignals: publicSignals,
		Nullifier:     nullifier,
		Recipient:     recipient,
		MerkleRoot:    root,
		GeneratedAt:   e.GeneratedAt,
	}, nil
}

// allEqual reports whether every element shares the same value. Combined
// with the per-element nonzero check above, this enforces spec.md §4.D's
// "not all elements equal, not all zero" proof-uniformity rule in full.
func allEqual(elems []*field.ParsedElement) bool {
	for _, e := range elems[1:] {
		if e.Value.Cmp(elems[0].Value) != 0 {
			return false
		}
	}
	return true
}
