package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/logging"
	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const defaultPollInterval = time.Second

// Call is a read-only or to-be-estimated contract call.
type Call struct {
	From  ethcommon.Address
	To    ethcommon.Address
	Data  []byte
	Value *big.Int
}

func (c Call) msg() ethereum.CallMsg {
	to := c.To
	return ethereum.CallMsg{From: c.From, To: &to, Data: c.Data, Value: c.Value}
}

// BlockInfo is the block summary exposed over the API.
type BlockInfo struct {
	Number     uint64 `json:"number"`
	Hash       string `json:"hash"`
	ParentHash string `json:"parentHash"`
	Timestamp  uint64 `json:"timestamp"`
	GasUsed    uint64 `json:"gasUsed"`
	GasLimit   uint64 `json:"gasLimit"`
	TxCount    uint   `json:"transactionCount"`
}

// Gateway is shared by all requests. Submissions from the same address are
// serialized; everything else runs concurrently.
type Gateway struct {
	client       Client
	chainID      *big.Int
	pollInterval time.Duration
	log          logging.Logger

	mu     sync.Mutex
	nonces map[ethcommon.Address]*nonceState
}

type nonceState struct {
	mu    sync.Mutex
	next  uint64
	known bool
}

type Option func(*Gateway)

func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// New reads the chain id once and returns a ready gateway.
func New(ctx context.Context, client Client, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		client:       client,
		pollInterval: defaultPollInterval,
		log:          logging.Nop(),
		nonces:       make(map[ethcommon.Address]*nonceState),
	}
	for _, o := range opts {
		o(g)
	}

	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, classify(err)
	}
	g.chainID = id
	g.log = g.log.With("module", "ledger", "chain_id", id.String())
	return g, nil
}

func (g *Gateway) ChainID() *big.Int { return new(big.Int).Set(g.chainID) }

func (g *Gateway) Close() { g.client.Close() }

func (g *Gateway) LatestBlock(ctx context.Context) (*BlockInfo, error) {
	return g.block(ctx, nil)
}

func (g *Gateway) Block(ctx context.Context, number uint64) (*BlockInfo, error) {
	return g.block(ctx, new(big.Int).SetUint64(number))
}

func (g *Gateway) block(ctx context.Context, number *big.Int) (*BlockInfo, error) {
	h, err := g.client.HeaderByNumber(ctx, number)
	if errors.Is(err, ethereum.NotFound) || (err == nil && h == nil) {
		return nil, fmt.Errorf("block %v: %w", number, common.ErrorNotFound)
	}
	if err != nil {
		return nil, classify(err)
	}

	hash := h.Hash()
	n, err := g.client.TransactionCount(ctx, hash)
	if err != nil {
		return nil, classify(err)
	}

	return &BlockInfo{
		Number:     h.Number.Uint64(),
		Hash:       hash.Hex(),
		ParentHash: h.ParentHash.Hex(),
		Timestamp:  h.Time,
		GasUsed:    h.GasUsed,
		GasLimit:   h.GasLimit,
		TxCount:    n,
	}, nil
}

func (g *Gateway) EstimateGas(ctx context.Context, c Call) (uint64, error) {
	gas, err := g.client.EstimateGas(ctx, c.msg())
	if err != nil {
		return 0, classify(err)
	}
	return gas, nil
}

// FeeData returns the node's suggested gas price, or nil when the node
// reports none.
func (g *Gateway) FeeData(ctx context.Context) (*big.Int, error) {
	price, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classify(err)
	}
	if price == nil || price.Sign() == 0 {
		return nil, nil
	}
	return price, nil
}

func (g *Gateway) Balance(ctx context.Context, addr ethcommon.Address) (*big.Int, error) {
	b, err := g.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

// Call executes a read-only call against the latest block.
func (g *Gateway) Call(ctx context.Context, c Call) ([]byte, error) {
	out, err := g.client.CallContract(ctx, c.msg(), nil)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (g *Gateway) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := g.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	return logs, nil
}

// WaitForReceipt polls until the transaction is mined or timeout elapses.
// A reverted transaction yields a *RejectedError alongside its receipt.
func (g *Gateway) WaitForReceipt(ctx context.Context, hash ethcommon.Hash, timeout time.Duration) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		r, err := g.client.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil && r != nil:
			if r.Status == types.ReceiptStatusFailed {
				return r, &RejectedError{Reason: "transaction reverted", TxHash: hash}
			}
			return r, nil
		case err == nil, errors.Is(err, ethereum.NotFound):
		case waitCtx.Err() != nil:
		default:
			return nil, classify(err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: stopped waiting for %s: %w", common.ErrTransactionTimeout, hash.Hex(), ctx.Err())
			}
			return nil, fmt.Errorf("%w: %s not mined within %s", common.ErrTransactionTimeout, hash.Hex(), timeout)
		case <-ticker.C:
		}
	}
}

// SignerFor binds key to the gateway. The caller keeps ownership of key.
func (g *Gateway) SignerFor(key *ecdsa.PrivateKey) *Signer {
	return &Signer{gw: g, key: key, address: addressOf(key)}
}

func (g *Gateway) nonceFor(addr ethcommon.Address) *nonceState {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.nonces[addr]
	if !ok {
		st = &nonceState{}
		g.nonces[addr] = st
	}
	return st
}
