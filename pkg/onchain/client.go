package onchain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/MuriData/zkclaim/pkg/errs"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// claimContractABI describes just the two entry points this client calls.
// No generated Go binding ships with this repo (the deployed contract's
// source lives outside it), so calls are packed directly against the ABI,
// the same way a relayer without vendored bindings would.
const claimContractABI = `[
	{"type":"function","name":"claim","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"proof","type":"uint256[8]"},
		{"name":"nullifier","type":"uint256"},
		{"name":"recipient","type":"address"}
	 ],"outputs":[]},
	{"type":"function","name":"emergencyWithdraw","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"to","type":"address"},
		{"name":"amount","type":"uint256"}
	 ],"outputs":[]},
	{"type":"function","name":"claimed","stateMutability":"view",
	 "inputs":[{"name":"nullifier","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

// GasPolicy implements spec.md §4.E's randomized-but-bounded gas pricing:
// base fee * premium, perturbed by a bounded uniform random factor, then
// clamped to a hard ceiling. All inputs must be strictly positive;
// MaxRandomWei may be zero (no perturbation) but CeilingWei must exceed
// the unperturbed estimate or every quote is rejected.
type GasPolicy struct {
	PremiumBp   uint64 // multiply base fee by (10000+PremiumBp)/10000
	MaxRandomWei *big.Int
	CeilingWei  *big.Int
}

// Quote computes a saturating gas price from baseFee and a random
// perturbation source in [0, MaxRandomWei]. It never returns a value
// above CeilingWei. Returns errs.MalformedInput (GasConfigInvalid in
// spec.md vocabulary) for non-positive baseFee, zero CeilingWei, or a
// ceiling below the unperturbed base estimate.
//
// The arithmetic runs on uint256.Int rather than math/big so that a
// premium or perturbation that would overflow 256 bits saturates instead
// of wrapping, matching the EVM's own word size for gas/value fields.
func (g GasPolicy) Quote(baseFee *big.Int, randomWei *big.Int) (*big.Int, error) {
	if baseFee == nil || baseFee.Sign() <= 0 {
		return nil, errs.New(errs.MalformedInput, "GasConfigInvalid: base fee must be positive")
	}
	if g.CeilingWei == nil || g.CeilingWei.Sign() <= 0 {
		return nil, errs.New(errs.MalformedInput, "GasConfigInvalid: ceiling must be positive")
	}

	baseU, overflow := uint256.FromBig(baseFee)
	if overflow {
		return nil, errs.New(errs.MalformedInput, "GasConfigInvalid: base fee exceeds uint256 range")
	}
	ceilingU, overflow := uint256.FromBig(g.CeilingWei)
	if overflow {
		return nil, errs.New(errs.MalformedInput, "GasConfigInvalid: ceiling exceeds uint256 range")
	}

	premium, overflow := new(uint256.Int).MulOverflow(baseU, uint256.NewInt(10000+g.PremiumBp))
	if overflow {
		return nil, errs.New(errs.MalformedInput, "GasConfigInvalid: ceiling below base*premium")
	}
	premium.Div(premium, uint256.NewInt(10000))

	if premium.Cmp(ceilingU) >= 0 {
		return nil, errs.New(errs.MalformedInput, "GasConfigInvalid: ceiling below base*premium")
	}

	perturbed := premium.Clone()
	if g.MaxRandomWei != nil && g.MaxRandomWei.Sign() > 0 && randomWei != nil {
		maxRandomU, overflow := uint256.FromBig(g.MaxRandomWei)
		if overflow {
			maxRandomU = new(uint256.Int).SetAllOne()
		}
		randomU, overflow := uint256.FromBig(randomWei)
		if overflow {
			randomU = new(uint256.Int).SetAllOne()
		}
		modulus, overflow := new(uint256.Int).AddOverflow(maxRandomU, uint256.NewInt(1))
		if overflow {
			modulus = maxRandomU
		}
		bounded := new(uint256.Int).Mod(randomU, modulus)
		sum, overflow := new(uint256.Int).AddOverflow(perturbed, bounded)
		if overflow {
			perturbed = ceilingU.Clone()
		} else {
			perturbed = sum
		}
	}

	if perturbed.Cmp(ceilingU) > 0 {
		perturbed = ceilingU.Clone()
	}
	return perturbed.ToBig(), nil
}

// ChainClient submits claim transactions to a live claim contract over a
// go-ethereum RPC endpoint, mirroring the sign-estimate-send-wait pipeline
// of a relayer that holds its own hot key (spec.md §6 "submit-direct").
type ChainClient struct {
	eth      *ethclient.Client
	abi      abi.ABI
	contract common.Address
	chainID  *big.Int
	signer   *ecdsa.PrivateKey
	from     common.Address
	gas      GasPolicy
	log      zerolog.Logger
}

// NewChainClient dials rpcURL and wires a transactor for contract using the
// given operating key (spec.md §6 "Service reads its operating key from a
// named environment variable"). The caller owns signer's lifetime and
// should zero it after the client is no longer needed.
func NewChainClient(ctx context.Context, rpcURL string, contract common.Address, signer *ecdsa.PrivateKey, gas GasPolicy, log zerolog.Logger) (*ChainClient, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errs.Wrap(errs.ChainTransient, "dial rpc endpoint", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ChainTransient, "fetch chain id", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(claimContractABI))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "parse claim contract abi", err)
	}

	from := gethcrypto.PubkeyToAddress(signer.PublicKey)

	return &ChainClient{
		eth:      eth,
		abi:      parsedABI,
		contract: contract,
		chainID:  chainID,
		signer:   signer,
		from:     from,
		gas:      gas,
		log:      log.With().Str("component", "onchain.ChainClient").Logger(),
	}, nil
}

// transactOpts builds EIP-1559 transact options for a call, pricing gas via
// g.gas.Quote over the current base fee and a caller-supplied random
// perturbation source (spec.md §4.E gas policy).
func (c *ChainClient) transactOpts(ctx context.Context, randomWei *big.Int) (*bind.TransactOpts, error) {
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ChainTransient, "fetch latest header", err)
	}
	if header.BaseFee == nil {
		return nil, errs.New(errs.Internal, "chain does not report EIP-1559 base fee")
	}

	gasFeeCap, err := c.gas.Quote(header.BaseFee, randomWei)
	if err != nil {
		return nil, err
	}

	tipCap, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ChainTransient, "suggest gas tip cap", err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, errs.Wrap(errs.ChainTransient, "fetch pending nonce", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.signer, c.chainID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "build transactor", err)
	}
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(nonce)
	opts.GasFeeCap = gasFeeCap
	opts.GasTipCap = tipCap
	return opts, nil
}

// SubmitClaim packs and sends a claim(proof, nullifier, recipient)
// transaction, waits for inclusion, and maps the outcome to the §7 error
// kinds. randomWei seeds the gas-perturbation step; callers should draw it
// from a CSPRNG, not a predictable counter.
func (c *ChainClient) SubmitClaim(ctx context.Context, proof [8]*big.Int, nullifier *big.Int, recipient common.Address, randomWei *big.Int) (common.Hash, error) {
	opts, err := c.transactOpts(ctx, randomWei)
	if err != nil {
		return common.Hash{}, err
	}

	data, err := c.abi.Pack("claim", proof, nullifier, recipient)
	if err != nil {
		return common.Hash{}, errs.Wrap(errs.MalformedInput, "pack claim calldata", err)
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.contract,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, mapRevertErr(err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     opts.Nonce.Uint64(),
		GasTipCap: opts.GasTipCap,
		GasFeeCap: opts.GasFeeCap,
		Gas:       gasLimit + gasLimit/5, // 20% buffer, matching the relayer convention
		To:        &c.contract,
		Data:      data,
	})

	signedTx, err := opts.Signer(c.from, tx)
	if err != nil {
		return common.Hash{}, errs.Wrap(errs.Internal, "sign transaction", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, mapRevertErr(err)
	}

	c.log.Info().Str("tx_hash", signedTx.Hash().Hex()).Msg("claim transaction broadcast")

	receipt, err := bind.WaitMined(ctx, c.eth, signedTx)
	if err != nil {
		return signedTx.Hash(), errs.Wrap(errs.ChainTransient, "wait for receipt", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return signedTx.Hash(), errs.New(errs.ChainRevertKnown, "claim transaction reverted")
	}
	return signedTx.Hash(), nil
}

// IsClaimed queries the contract's claimed(nullifier) view function.
func (c *ChainClient) IsClaimed(ctx context.Context, nullifier *big.Int) (bool, error) {
	data, err := c.abi.Pack("claimed", nullifier)
	if err != nil {
		return false, errs.Wrap(errs.MalformedInput, "pack claimed calldata", err)
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return false, mapRevertErr(err)
	}
	results, err := c.abi.Unpack("claimed", out)
	if err != nil || len(results) != 1 {
		return false, errs.Wrap(errs.Internal, "unpack claimed result", err)
	}
	claimed, _ := results[0].(bool)
	return claimed, nil
}

// mapRevertErr classifies a go-ethereum call/send error as a known
// on-chain revert (terminal, surfaced to the caller as-is) or a transient
// network/RPC failure (bounded retry, spec.md §7).
func mapRevertErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, known := range []string{"InvalidProof", "AlreadyClaimed", "ClaimWindowClosed", "ZeroRecipient", "WithdrawalTooEarly", "WithdrawalExceedsLimit", "execution reverted"} {
		if strings.Contains(msg, known) {
			return errs.Wrap(errs.ChainRevertKnown, fmt.Sprintf("contract reverted (%s)", known), err)
		}
	}
	return errs.Wrap(errs.ChainTransient, "rpc call failed", err)
}

// Close releases the underlying RPC connection.
func (c *ChainClient) Close() {
	c.eth.Close()
}
