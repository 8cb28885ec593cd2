// Package custody pays gas on behalf of user wallets. A call is quoted as
// the user would send it, the custodian transfers exactly the quoted cost to
// the wallet and waits for that transfer to be mined, and only then may the
// wallet submit.
package custody

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/ledger"
	"github.com/dmitrijs2005/ticketkeeper/internal/logging"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	DefaultFallbackGasPrice    = big.NewInt(20_000_000_000)
	DefaultConfirmationTimeout = 2 * time.Minute
)

// Gateway is the part of *ledger.Gateway the custodian needs.
type Gateway interface {
	EstimateGas(ctx context.Context, c ledger.Call) (uint64, error)
	FeeData(ctx context.Context) (*big.Int, error)
	WaitForReceipt(ctx context.Context, hash ethcommon.Hash, timeout time.Duration) (*types.Receipt, error)
}

// Sender submits transactions for one address; *ledger.Signer satisfies it.
type Sender interface {
	Address() ethcommon.Address
	Send(ctx context.Context, req ledger.TxRequest) (ethcommon.Hash, error)
}

// Quote is the cost of one call: Required = Gas * GasPrice + Value.
type Quote struct {
	Gas      uint64
	GasPrice *big.Int
	Value    *big.Int
	Required *big.Int
}

type Custodian struct {
	gw       Gateway
	signer   Sender
	fallback *big.Int
	timeout  time.Duration
	log      logging.Logger
}

type Option func(*Custodian)

// WithFallbackGasPrice is used when the node suggests no gas price.
func WithFallbackGasPrice(p *big.Int) Option {
	return func(c *Custodian) {
		if p != nil && p.Sign() > 0 {
			c.fallback = new(big.Int).Set(p)
		}
	}
}

func WithConfirmationTimeout(d time.Duration) Option {
	return func(c *Custodian) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Custodian) { c.log = l }
}

func New(gw Gateway, signer Sender, opts ...Option) *Custodian {
	c := &Custodian{
		gw:       gw,
		signer:   signer,
		fallback: new(big.Int).Set(DefaultFallbackGasPrice),
		timeout:  DefaultConfirmationTimeout,
		log:      logging.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("module", "custody")
	return c
}

// Address is the custodian wallet.
func (c *Custodian) Address() ethcommon.Address { return c.signer.Address() }

// Signer exposes the custodian's sender for calls it signs itself.
func (c *Custodian) Signer() Sender { return c.signer }

// Quote estimates call exactly as its sender would submit it. Nothing is
// sent. A call the node reverts during estimation is returned as the
// ledger's rejection so its reason reaches the caller; any other estimation
// failure is ErrGasEstimationFailed.
//
// Nodes check the sender's balance against the attached value while
// estimating, and a wallet is only funded after its quote. A payable call
// refused for insufficient funds is therefore re-estimated from the
// custodian's address.
func (c *Custodian) Quote(ctx context.Context, call ledger.Call) (*Quote, error) {
	gas, err := c.gw.EstimateGas(ctx, call)
	if err != nil && c.estimateAsCustodian(call, err) {
		c.log.Debug(ctx, "wallet cannot cover value during estimation, estimating from custodian",
			"wallet", call.From.Hex(), "value", call.Value.String())
		alt := call
		alt.From = c.signer.Address()
		gas, err = c.gw.EstimateGas(ctx, alt)
	}
	if err != nil {
		if _, ok := ledger.IsRejected(err); ok {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrGasEstimationFailed, err)
	}

	price, err := c.gw.FeeData(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fee data: %w", common.ErrGasEstimationFailed, err)
	}
	if price == nil {
		price = new(big.Int).Set(c.fallback)
	}

	value := new(big.Int)
	if call.Value != nil {
		value.Set(call.Value)
	}

	required := new(big.Int).Mul(new(big.Int).SetUint64(gas), price)
	required.Add(required, value)

	return &Quote{Gas: gas, GasPrice: price, Value: value, Required: required}, nil
}

func (c *Custodian) estimateAsCustodian(call ledger.Call, err error) bool {
	return call.Value != nil && call.Value.Sign() > 0 &&
		call.From != c.signer.Address() &&
		ledger.IsInsufficientFunds(err)
}

// Fund transfers q.Required to target and waits for the transfer to be
// mined. Funding the custodian itself is a no-op and returns a zero hash.
//
// Funds that reached target before a later failure are not reclaimed.
func (c *Custodian) Fund(ctx context.Context, target ethcommon.Address, q *Quote) (ethcommon.Hash, error) {
	if target == c.signer.Address() {
		return ethcommon.Hash{}, nil
	}

	hash, err := c.signer.Send(ctx, ledger.TxRequest{To: target, Value: q.Required})
	if err != nil {
		c.log.Error(ctx, "funding transfer not submitted", "wallet", target.Hex(), "amount", q.Required.String(), "error", err)
		return ethcommon.Hash{}, fmt.Errorf("%w: submit: %w", common.ErrFundingFailed, err)
	}

	r, err := c.gw.WaitForReceipt(ctx, hash, c.timeout)
	if err != nil {
		c.log.Warn(ctx, "funding transfer not confirmed, funds may already be at the wallet",
			"wallet", target.Hex(), "amount", q.Required.String(), "tx_hash", hash.Hex(), "error", err)
		return hash, fmt.Errorf("%w: confirm %s: %w", common.ErrFundingFailed, hash.Hex(), err)
	}
	if r == nil || r.TxHash == (ethcommon.Hash{}) {
		return hash, fmt.Errorf("%w: %w: empty receipt for %s", common.ErrFundingFailed, common.ErrInvalidReceipt, hash.Hex())
	}

	c.log.Info(ctx, "wallet funded", "wallet", target.Hex(), "amount", q.Required.String(), "tx_hash", hash.Hex())
	return hash, nil
}
