// Package orchestrator sequences ticket operations against the ledger:
// build, estimate, fund, submit, confirm.
package orchestrator

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/custody"
	"github.com/dmitrijs2005/ticketkeeper/internal/ledger"
	"github.com/dmitrijs2005/ticketkeeper/internal/logging"
	"github.com/dmitrijs2005/ticketkeeper/internal/ticketnft"
	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const defaultReadConcurrency = 8

// State is a step of a pending operation.
type State string

const (
	StateBuilt        State = "built"
	StateGasEstimated State = "gas_estimated"
	StateFunded       State = "funded"
	StateSubmitted    State = "submitted"
	StateConfirmed    State = "confirmed"
	StateFailed       State = "failed"
)

// Result describes a confirmed operation.
type Result struct {
	Kind          ticketnft.Kind
	TxHash        ethcommon.Hash
	BlockNumber   uint64
	FundingTxHash ethcommon.Hash
	// Minted is set for mint operations and comes from the ledger's log,
	// not from the submitted arguments.
	Minted *ticketnft.MintedEvent
}

// Observer is told about every state transition.
type Observer func(kind ticketnft.Kind, s State)

type Orchestrator struct {
	gw        *ledger.Gateway
	custodian *custody.Custodian
	contract  *ticketnft.Contract
	decoder   *ticketnft.Decoder

	timeout         time.Duration
	readConcurrency int
	observe         Observer
	log             logging.Logger
}

type Option func(*Orchestrator)

func WithConfirmationTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithReadConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.readConcurrency = n
		}
	}
}

func WithObserver(f Observer) Option {
	return func(o *Orchestrator) { o.observe = f }
}

func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func New(gw *ledger.Gateway, custodian *custody.Custodian, contract *ticketnft.Contract, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:              gw,
		custodian:       custodian,
		contract:        contract,
		decoder:         ticketnft.NewDecoder(),
		timeout:         custody.DefaultConfirmationTimeout,
		readConcurrency: defaultReadConcurrency,
		observe:         func(ticketnft.Kind, State) {},
		log:             logging.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With("module", "orchestrator")
	return o
}

// Contract returns the bound contract.
func (o *Orchestrator) Contract() *ticketnft.Contract { return o.contract }

// Mint issues a ticket to to. Signed by the custodian.
func (o *Orchestrator) Mint(ctx context.Context, to ethcommon.Address, eventInfo string) (*Result, error) {
	return o.mint(ctx, ticketnft.MintTicket{To: to, EventInfo: eventInfo}, to)
}

// MintAndList issues a ticket to to and lists it at priceWei.
func (o *Orchestrator) MintAndList(ctx context.Context, to ethcommon.Address, eventInfo string, priceWei *big.Int) (*Result, error) {
	return o.mint(ctx, ticketnft.MintAndList{To: to, EventInfo: eventInfo, Price: priceWei}, to)
}

func (o *Orchestrator) List(ctx context.Context, key *ecdsa.PrivateKey, tokenID, priceWei *big.Int) (*Result, error) {
	return o.run(ctx, o.gw.SignerFor(key), ticketnft.SetForSale{TokenID: tokenID, Price: priceWei})
}

func (o *Orchestrator) Unlist(ctx context.Context, key *ecdsa.PrivateKey, tokenID *big.Int) (*Result, error) {
	return o.run(ctx, o.gw.SignerFor(key), ticketnft.RemoveFromSale{TokenID: tokenID})
}

// Buy pays the current on-chain price of tokenID from key's wallet.
func (o *Orchestrator) Buy(ctx context.Context, key *ecdsa.PrivateKey, tokenID *big.Int) (*Result, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, fmt.Errorf("%w: token id must be a non-negative integer", common.ErrorInvalidArgument)
	}
	price, err := o.contract.Price(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("read price of %s: %w", tokenID, err)
	}
	return o.run(ctx, o.gw.SignerFor(key), ticketnft.BuyTicket{TokenID: tokenID, Price: price})
}

// Transfer moves tokenID from one wallet to another. Signed by the
// custodian, so neither wallet needs funding.
func (o *Orchestrator) Transfer(ctx context.Context, from, to ethcommon.Address, tokenID *big.Int) (*Result, error) {
	return o.run(ctx, o.custodian.Signer(), ticketnft.TransferTicket{From: from, To: to, TokenID: tokenID})
}

// Validate submits a holder's QR signature, signed and paid by key's
// wallet after funding.
func (o *Orchestrator) Validate(ctx context.Context, key *ecdsa.PrivateKey, tokenID, nonce, expiration *big.Int, signature []byte) (*Result, error) {
	return o.run(ctx, o.gw.SignerFor(key), ticketnft.ValidateWithSignature{
		TokenID:    tokenID,
		Nonce:      nonce,
		Expiration: expiration,
		Signature:  signature,
	})
}

// Submit runs any typed operation. Mints and transfers are always signed
// by the custodian; every other operation by key.
func (o *Orchestrator) Submit(ctx context.Context, key *ecdsa.PrivateKey, op ticketnft.Operation) (*Result, error) {
	switch v := op.(type) {
	case ticketnft.MintTicket:
		return o.mint(ctx, v, v.To)
	case ticketnft.MintAndList:
		return o.mint(ctx, v, v.To)
	case ticketnft.TransferTicket:
		return o.run(ctx, o.custodian.Signer(), v)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: %s needs a signing key", common.ErrorInvalidArgument, op.Kind())
	}
	if v, ok := op.(ticketnft.BuyTicket); ok && v.Price == nil {
		return o.Buy(ctx, key, v.TokenID)
	}
	return o.run(ctx, o.gw.SignerFor(key), op)
}

func (o *Orchestrator) mint(ctx context.Context, op ticketnft.Operation, to ethcommon.Address) (*Result, error) {
	res, err := o.run(ctx, o.custodian.Signer(), op)
	if err != nil {
		return nil, err
	}

	minted, err := o.findMinted(ctx, res.TxHash, res.BlockNumber, to)
	if err != nil {
		o.log.Error(ctx, "minted ticket not found in confirmed block",
			"operation", op.Kind(), "wallet", to.Hex(), "tx_hash", res.TxHash.Hex(), "error", err)
		return nil, err
	}
	res.Minted = minted
	return res, nil
}

// run drives one pending operation through its states.
func (o *Orchestrator) run(ctx context.Context, signer custody.Sender, op ticketnft.Operation) (*Result, error) {
	p := &pendingOperation{op: op, from: signer.Address()}
	log := o.log.With("operation", op.Kind(), "wallet", p.from.Hex())
	if id := ticketnft.TokenOf(op); id != nil {
		log = log.With("token_id", id.String())
	}

	fail := func(err error) (*Result, error) {
		reached := p.last
		o.transition(p, StateFailed)
		log.Error(ctx, "ledger operation failed", "reached", reached, "error", err)
		return nil, err
	}

	data, err := op.Pack()
	if err != nil {
		return fail(err)
	}
	p.data = data
	o.transition(p, StateBuilt)

	p.quote, err = o.custodian.Quote(ctx, ledger.Call{
		From:  p.from,
		To:    o.contract.Address(),
		Data:  p.data,
		Value: op.Value(),
	})
	if err != nil {
		return fail(err)
	}
	o.transition(p, StateGasEstimated)

	p.fundingTx, err = o.custodian.Fund(ctx, p.from, p.quote)
	if err != nil {
		return fail(err)
	}
	o.transition(p, StateFunded)

	p.txHash, err = signer.Send(ctx, ledger.TxRequest{
		To:       o.contract.Address(),
		Data:     p.data,
		Value:    p.quote.Value,
		GasLimit: p.quote.Gas,
		GasPrice: p.quote.GasPrice,
	})
	if err != nil {
		return fail(err)
	}
	o.transition(p, StateSubmitted)

	p.receipt, err = o.gw.WaitForReceipt(ctx, p.txHash, o.timeout)
	if err != nil {
		return fail(err)
	}
	if p.receipt == nil || p.receipt.TxHash == (ethcommon.Hash{}) {
		return fail(fmt.Errorf("%w: no transaction hash for %s", common.ErrInvalidReceipt, p.txHash.Hex()))
	}
	o.transition(p, StateConfirmed)

	log.Info(ctx, "ledger operation confirmed", "tx_hash", p.receipt.TxHash.Hex(), "block", p.receipt.BlockNumber.Uint64())
	return &Result{
		Kind:          op.Kind(),
		TxHash:        p.receipt.TxHash,
		BlockNumber:   p.receipt.BlockNumber.Uint64(),
		FundingTxHash: p.fundingTx,
	}, nil
}

func (o *Orchestrator) transition(p *pendingOperation, s State) {
	p.last = s
	o.observe(p.op.Kind(), s)
}

// findMinted looks for this transaction's TicketMinted log in its block.
func (o *Orchestrator) findMinted(ctx context.Context, txHash ethcommon.Hash, block uint64, to ethcommon.Address) (*ticketnft.MintedEvent, error) {
	n := new(big.Int).SetUint64(block)
	logs, err := o.gw.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: n,
		ToBlock:   n,
		Addresses: []ethcommon.Address{o.contract.Address()},
		Topics: [][]ethcommon.Hash{
			{ticketnft.Topic(ticketnft.EventMinted)},
			{ethcommon.BytesToHash(to.Bytes())},
		},
	})
	if err != nil {
		return nil, err
	}

	for _, l := range logs {
		if l.TxHash != txHash {
			continue
		}
		ev, err := o.decoder.DecodeMinted(l)
		if err != nil {
			return nil, fmt.Errorf("decode mint log of %s: %w", txHash.Hex(), err)
		}
		return ev, nil
	}
	return nil, fmt.Errorf("%w: %s in tx %s at block %d", common.ErrEventNotFound, ticketnft.EventMinted, txHash.Hex(), block)
}

// pendingOperation lives for one request.
type pendingOperation struct {
	op        ticketnft.Operation
	from      ethcommon.Address
	data      []byte
	quote     *custody.Quote
	fundingTx ethcommon.Hash
	txHash    ethcommon.Hash
	receipt   *types.Receipt
	last      State
}
