// Package weakkey implements the entropy and weak-key guard shared by the
// prover and the submission service (spec.md §4.G). It is stateless and
// pure: given a candidate secret key it returns nil or a reason it was
// rejected, never logging or touching the key beyond reading its bytes.
package weakkey

import (
	"fmt"
	"math"
	"math/big"

	"github.com/MuriData/zkclaim/pkg/address"
)

// MinScaledEntropy is the single, authoritative threshold for the
// scaled-Shannon-entropy gate (spec.md §9 Open Question: the source
// reviews drifted between 600, 750, 790, 1200, and 120; this
// implementation fixes 750 — roughly the midpoint of the quoted range —
// as THE one constant, referenced nowhere else in the codebase). Entropy
// is computed in bits-per-symbol over the byte distribution of the key and
// scaled by key length (32). With only 32 samples at most log2(32) = 5
// bits per symbol are reachable, so the score lives on a 0..160 scale and
// the threshold is 750/1000 of that maximum, i.e. 120.
const MinScaledEntropy = 750.0 / 1000.0 * 160.0

// watchlist holds widely-published test/example secret keys (e.g. from
// tutorials and sample code) whose prefixes must never be accepted as a
// claim's secret key.
var watchlist = [][]byte{
	{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	{0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01},
	{0xac, 0x09, 0x74, 0xbe, 0xc3, 0x9a, 0x17, 0xe3}, // hardhat account #0
	{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe,
		0xba, 0xae, 0xdc, 0xe6, 0xaf, 0x48, 0xa0, 0x3b, 0xbf, 0xd2, 0x5e, 0x8c, 0xd0, 0x36, 0x41, 0x40},
}

// Check runs every rule of spec.md §4.G against sk, which must be exactly
// 32 bytes (left-padded if shorter). It returns the first violated rule as
// an error, or nil if sk passes the gate.
func Check(sk *big.Int) error {
	if sk == nil || sk.Sign() == 0 {
		return fmt.Errorf("weak key: zero")
	}
	if sk.Sign() < 0 {
		return fmt.Errorf("weak key: negative")
	}

	if err := address.ValidateRange(sk); err != nil {
		return fmt.Errorf("weak key: %w", err)
	}

	b := make([]byte, 32)
	sk.FillBytes(b)

	if isAllEqual(b) {
		return fmt.Errorf("weak key: constant byte pattern")
	}
	if isSequential(b) {
		return fmt.Errorf("weak key: sequential byte pattern")
	}
	if matchesWatchlist(b) {
		return fmt.Errorf("weak key: matches known test-key watchlist")
	}
	if scaledEntropy(b) < MinScaledEntropy {
		return fmt.Errorf("weak key: scaled entropy below threshold")
	}
	return nil
}

func isAllEqual(b []byte) bool {
	for i := 1; i < len(b); i++ {
		if b[i] != b[0] {
			return false
		}
	}
	return true
}

func isSequential(b []byte) bool {
	for i := 1; i < len(b); i++ {
		if b[i] != b[i-1]+1 {
			return false
		}
	}
	return true
}

func matchesWatchlist(b []byte) bool {
	for _, entry := range watchlist {
		n := len(entry)
		if n > len(b) {
			n = len(b)
		}
		match := true
		for i := 0; i < n; i++ {
			if b[i] != entry[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// scaledEntropy computes the Shannon entropy (bits per symbol) of the byte
// distribution of b, scaled by len(b). For 32-byte input the maximum is
// log2(32)*32 = 160 (all bytes distinct); uniformly random input scores
// about 156 on average and degenerate input scores near 0.
func scaledEntropy(b []byte) float64 {
	var counts [256]int
	for _, v := range b {
		counts[v]++
	}

	n := float64(len(b))
	var entropy float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy * n
}
