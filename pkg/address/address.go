// Package address derives Ethereum-style addresses from secret keys, the
// standard derivation spec.md §3 requires: the last 20 bytes of the
// Keccak-256 digest of the uncompressed secp256k1 public key. Grounded on
// go-ethereum's crypto package, the same dependency wyf-ACCEPT-eth2030 and
// Layr-Labs-eigenx-kms-go use for key handling.
package address

import (
	"fmt"
	"math/big"

	"github.com/MuriData/zkclaim/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ScalarOrder is the secp256k1 scalar (group) order.
var ScalarOrder = crypto.S256().Params().N

// FromSecretKey derives the 20-byte Ethereum address owned by sk.
// sk must already satisfy ValidateRange; callers run the weak-key gate
// separately (pkg/weakkey) before deriving an address for proving.
func FromSecretKey(sk *big.Int) (common.Address, error) {
	if err := ValidateRange(sk); err != nil {
		return common.Address{}, err
	}

	privKeyBytes := make([]byte, 32)
	sk.FillBytes(privKeyBytes)

	priv, err := crypto.ToECDSA(privKeyBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("derive ecdsa key: %w", err)
	}
	defer zeroECDSA(priv.D)

	return crypto.PubkeyToAddress(priv.PublicKey), nil
}

// ValidateRange checks the purely numeric constraints on a secret key from
// spec.md §3: nonzero, strictly less than the secp256k1 scalar order, and
// strictly less than the BN254 field modulus p (required for in-circuit
// use, since the secret key is also a circuit witness element).
func ValidateRange(sk *big.Int) error {
	if sk == nil || sk.Sign() == 0 {
		return fmt.Errorf("secret key is zero")
	}
	if sk.Sign() < 0 {
		return fmt.Errorf("secret key is negative")
	}
	if sk.Cmp(ScalarOrder) >= 0 {
		return fmt.Errorf("secret key >= secp256k1 scalar order")
	}
	if bn254Modulus.Cmp(sk) <= 0 {
		return fmt.Errorf("secret key >= BN254 field modulus")
	}
	return nil
}

// ToFieldElement left-pads a 20-byte address to a full field-width element
// so it can be hashed by the Poseidon2 leaf function (spec.md §3: "ℓ = H(A
// padded to 32 bytes)").
func ToFieldElement(a common.Address) *big.Int {
	padded := make([]byte, config.FieldElementSize)
	copy(padded[config.FieldElementSize-len(a):], a.Bytes())
	return new(big.Int).SetBytes(padded)
}

// zeroECDSA overwrites the in-memory representation of a scalar that held
// secret-key material. big.Int keeps its backing array even after the
// wrapper is discarded, so the bytes are wiped explicitly rather than
// relying on garbage collection.
func zeroECDSA(d *big.Int) {
	if d == nil {
		return
	}
	words := d.Bits()
	for i := range words {
		words[i] = 0
	}
}

var bn254Modulus = func() *big.Int {
	p, _ := new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)
	return p
}()
