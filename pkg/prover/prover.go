// Package prover implements the end-to-end claim proof generation
// pipeline (spec.md §4.C): validate the secret key, derive the witness,
// run the proving backend, self-verify, and hand back a wire envelope —
// wiping every buffer that touched the secret key on every exit path.
package prover

import (
	"math/big"
	"runtime"

	"github.com/MuriData/zkclaim/circuits/claim"
	"github.com/MuriData/zkclaim/pkg/envelope"
	"github.com/MuriData/zkclaim/pkg/errs"
	"github.com/MuriData/zkclaim/pkg/weakkey"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Prover holds the compiled circuit and keys needed to generate claim
// proofs. It is safe for concurrent use: every call allocates its own
// witness buffers.
type Prover struct {
	CCS constraint.ConstraintSystem
	PK  groth16.ProvingKey
	VK  groth16.VerifyingKey
	Log zerolog.Logger
}

// New wraps an already-compiled circuit and key pair.
func New(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey, log zerolog.Logger) *Prover {
	return &Prover{CCS: ccs, PK: pk, VK: vk, Log: log.With().Str("component", "prover").Logger()}
}

// GenerateProof runs spec.md §4.C's full procedure: weak-key gate,
// witness derivation (address → leaf → path → nullifier), proving,
// self-verification, and envelope packaging. sk is wiped from the
// caller-visible buffer only by the caller — this function clears its own
// copies and every intermediate big.Int it allocates from sk on every
// return path, including panics.
func (p *Prover) GenerateProof(sk *big.Int, recipient common.Address, src claim.PathSource) (env *envelope.Envelope, err error) {
	skCopy := new(big.Int).Set(sk)
	defer zeroBigInt(skCopy)

	defer func() {
		if r := recover(); r != nil {
			p.Log.Error().Interface("panic", r).Msg("prover panicked mid-proof")
			err = errs.New(errs.ProverInternal, "prover panicked")
		}
	}()

	if recipient == (common.Address{}) {
		return nil, errs.New(errs.MalformedInput, "recipient is the zero address")
	}

	if wErr := weakkey.Check(skCopy); wErr != nil {
		return nil, errs.Wrap(errs.WeakKey, "secret key failed entropy gate", wErr)
	}

	result, wErr := claim.PrepareWitness(skCopy, recipient, src)
	if wErr != nil {
		return nil, wErr // already a *errs.Error (NotEligible, MalformedInput, ...)
	}
	// result.Assignment.SecretKey aliases skCopy (PrepareWitness assigns sk
	// directly), so the deferred zeroBigInt(skCopy) above already covers it.

	p.Log.Debug().
		Str("nullifier", result.Nullifier.String()).
		Str("root", result.RootHash.String()).
		Msg("witness prepared")

	proof, _, pErr := claim.ProveAndVerify(p.CCS, p.PK, p.VK, result)
	if pErr != nil {
		return nil, pErr
	}

	env, eErr := claim.ToEnvelope(proof, result)
	if eErr != nil {
		return nil, errs.Wrap(errs.ProverInternal, "package envelope", eErr)
	}

	return env, nil
}

// zeroBigInt overwrites a big.Int's backing word slice in place. Go's
// garbage collector offers no guarantee about when the old backing array
// is reclaimed, so secret-key-derived buffers are wiped explicitly
// (spec.md "Secret key sk ... zeroed on all exit paths").
func zeroBigInt(v *big.Int) {
	if v == nil {
		return
	}
	words := v.Bits()
	for i := range words {
		words[i] = 0
	}
	runtime.KeepAlive(v)
}
