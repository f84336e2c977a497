package onchain_test

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/MuriData/zkclaim/pkg/errs"
	"github.com/MuriData/zkclaim/pkg/onchain"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// acceptAllVerifier always accepts; reject-specific tests use rejectVerifier.
type acceptAllVerifier struct{}

func (acceptAllVerifier) Verify(groth16.Proof, *big.Int, *big.Int, *big.Int) bool { return true }

type rejectVerifier struct{}

func (rejectVerifier) Verify(groth16.Proof, *big.Int, *big.Int, *big.Int) bool { return false }

func testConfig(now time.Time) onchain.LedgerConfig {
	return onchain.LedgerConfig{
		Root:                big.NewInt(1),
		RewardAmount:        big.NewInt(100),
		ClaimDeadline:       now.Add(24 * time.Hour),
		Grace:               30 * 24 * time.Hour,
		Cooldown:            7 * 24 * time.Hour,
		WithdrawPercentBp:   1000, // 10%
		InitialUnclaimedPot: big.NewInt(1_000_000),
	}
}

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func TestClaimSucceedsOnce(t *testing.T) {
	now := time.Now()
	ledger := onchain.NewClaimLedger(testConfig(now))

	ev, err := ledger.Claim(acceptAllVerifier{}, nil, now, big.NewInt(42), addr(0xaa))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(42), ev.Nullifier)
	require.True(t, ledger.IsClaimed(big.NewInt(42)))
}

func TestClaimRejectsDuplicateNullifier(t *testing.T) {
	now := time.Now()
	ledger := onchain.NewClaimLedger(testConfig(now))

	_, err := ledger.Claim(acceptAllVerifier{}, nil, now, big.NewInt(7), addr(0xaa))
	require.NoError(t, err)

	_, err = ledger.Claim(acceptAllVerifier{}, nil, now, big.NewInt(7), addr(0xbb))
	require.Error(t, err)
	require.Equal(t, errs.AlreadyClaimed, errs.KindOf(err))
}

func TestClaimRejectsAfterDeadline(t *testing.T) {
	now := time.Now()
	cfg := testConfig(now)
	ledger := onchain.NewClaimLedger(cfg)

	_, err := ledger.Claim(acceptAllVerifier{}, nil, cfg.ClaimDeadline.Add(time.Second), big.NewInt(1), addr(0xaa))
	require.Error(t, err)
	require.Equal(t, errs.ChainRevertKnown, errs.KindOf(err))
}

func TestClaimRejectsZeroRecipient(t *testing.T) {
	now := time.Now()
	ledger := onchain.NewClaimLedger(testConfig(now))

	_, err := ledger.Claim(acceptAllVerifier{}, nil, now, big.NewInt(1), common.Address{})
	require.Error(t, err)
	require.Equal(t, errs.MalformedInput, errs.KindOf(err))
}

func TestClaimRejectsInvalidProof(t *testing.T) {
	now := time.Now()
	ledger := onchain.NewClaimLedger(testConfig(now))

	_, err := ledger.Claim(rejectVerifier{}, nil, now, big.NewInt(1), addr(0xaa))
	require.Error(t, err)
	require.Equal(t, errs.ChainRevertKnown, errs.KindOf(err))
}

// TestConcurrentClaimsExactlyOneWins exercises spec.md §8 property 8: N
// concurrent identical submissions against the same nullifier, exactly one
// becomes committed.
func TestConcurrentClaimsExactlyOneWins(t *testing.T) {
	now := time.Now()
	ledger := onchain.NewClaimLedger(testConfig(now))

	const n = 10
	var wg sync.WaitGroup
	successes := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.Claim(acceptAllVerifier{}, nil, now, big.NewInt(99), addr(byte(i+1)))
			successes[i] = err == nil
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestEmergencyWithdrawTooEarly(t *testing.T) {
	now := time.Now()
	cfg := testConfig(now)
	ledger := onchain.NewClaimLedger(cfg)

	err := ledger.EmergencyWithdraw(cfg.ClaimDeadline.Add(time.Hour), addr(0xaa), big.NewInt(1))
	require.Error(t, err)
	require.Equal(t, errs.ChainRevertKnown, errs.KindOf(err))
}

func TestEmergencyWithdrawRespectsCapAndCooldown(t *testing.T) {
	now := time.Now()
	cfg := testConfig(now)
	ledger := onchain.NewClaimLedger(cfg)

	after := cfg.ClaimDeadline.Add(cfg.Grace).Add(time.Second)

	// 10% of 1,000,000 = 100,000; this single withdrawal is within cap.
	err := ledger.EmergencyWithdraw(after, addr(0xaa), big.NewInt(100_000))
	require.NoError(t, err)

	// A second withdrawal in the same window that would exceed the cap fails.
	err = ledger.EmergencyWithdraw(after.Add(time.Minute), addr(0xaa), big.NewInt(1))
	require.Error(t, err)
	require.Equal(t, errs.ChainRevertKnown, errs.KindOf(err))

	// After a full cooldown elapses, the window resets.
	next := after.Add(cfg.Cooldown + time.Second)
	err = ledger.EmergencyWithdraw(next, addr(0xaa), big.NewInt(1))
	require.NoError(t, err)
}

func TestGasPolicyQuote(t *testing.T) {
	policy := onchain.GasPolicy{
		PremiumBp:    2000, // 1.2x
		MaxRandomWei: big.NewInt(10),
		CeilingWei:   big.NewInt(1000),
	}

	q, err := policy.Quote(big.NewInt(100), big.NewInt(5))
	require.NoError(t, err)
	require.True(t, q.Cmp(big.NewInt(120)) >= 0)
	require.True(t, q.Cmp(policy.CeilingWei) <= 0)
}

func TestGasPolicyRejectsInvalidConfig(t *testing.T) {
	policy := onchain.GasPolicy{PremiumBp: 0, CeilingWei: big.NewInt(0)}
	_, err := policy.Quote(big.NewInt(100), big.NewInt(1))
	require.Error(t, err)
	require.Equal(t, errs.MalformedInput, errs.KindOf(err))
}

func TestGasPolicyClampsToCeiling(t *testing.T) {
	policy := onchain.GasPolicy{
		PremiumBp:    0,
		MaxRandomWei: big.NewInt(1000),
		CeilingWei:   big.NewInt(105),
	}
	q, err := policy.Quote(big.NewInt(100), big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, 0, q.Cmp(policy.CeilingWei))
}
