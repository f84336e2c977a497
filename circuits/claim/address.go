package claim

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_emulated"
	"github.com/consensys/gnark/std/hash/sha3"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/uints"
)

// deriveAddress computes, entirely inside the circuit, the 20-byte
// Ethereum address owned by secretKey: scalar multiplication by the
// secp256k1 generator, then the low 20 bytes of Keccak-256 of the
// uncompressed public point (spec.md §3 "Address A", §4.C step 1).
//
// Per spec.md's stated scope, "the low-level arithmetic gadgets of the
// proving system" are a black-box primitive with a stated contract — this
// function is that boundary: it calls gnark's own emulated-curve and
// Keccak gadgets rather than re-deriving elliptic-curve or hash circuits
// from scratch.
func deriveAddress(api frontend.API, secretKey frontend.Variable) (frontend.Variable, error) {
	curve, err := sw_emulated.New[emulated.Secp256k1Fp, emulated.Secp256k1Fr](api, sw_emulated.GetSecp256k1Params())
	if err != nil {
		return nil, err
	}
	scalarField, err := emulated.NewField[emulated.Secp256k1Fr](api)
	if err != nil {
		return nil, err
	}

	// secretKey is already range-checked off-circuit against both the
	// secp256k1 scalar order and the BN254 field modulus (pkg/address,
	// pkg/weakkey), so the same native witness value is valid as a
	// secp256k1 scalar without further reduction.
	skBits := api.ToBinary(secretKey, emulated.Secp256k1Fr{}.Modulus().BitLen())
	skScalar := scalarField.FromBits(skBits...)

	pub := curve.ScalarMulBase(skScalar)

	hasher, err := sha3.NewLegacyKeccak256(api)
	if err != nil {
		return nil, err
	}

	baseField, err := emulated.NewField[emulated.Secp256k1Fp](api)
	if err != nil {
		return nil, err
	}
	xBytes := baseField.ToBits(&pub.X)
	yBytes := baseField.ToBits(&pub.Y)
	hasher.Write(bitsToBytes(api, xBytes)...)
	hasher.Write(bitsToBytes(api, yBytes)...)

	digest := hasher.Sum()

	// Ethereum address = low 20 bytes of the 32-byte Keccak digest.
	var addressBytes [20]uints.U8
	copy(addressBytes[:], digest[12:32])

	uapi, err := uints.New[uints.U32](api)
	if err != nil {
		return nil, err
	}
	return uapi.PackMSB(addressBytes[:]...), nil
}

// bitsToBytes repacks a little-endian bit slice (as produced by
// emulated.Field.ToBits) into big-endian uints.U8 bytes suitable for a
// byte-oriented hash gadget.
func bitsToBytes(api frontend.API, bits []frontend.Variable) []uints.U8 {
	out := make([]uints.U8, len(bits)/8)
	for i := range out {
		var b frontend.Variable = 0
		for j := 0; j < 8; j++ {
			b = api.Add(b, api.Mul(bits[len(bits)-1-(i*8+j)], 1<<uint(7-j)))
		}
		out[i] = uints.U8{Val: b}
	}
	return out
}
