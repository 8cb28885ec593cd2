// Package fakechain is an in-process stand-in for an EVM node running the
// TicketNFT contract. It implements ledger.Client for tests: transactions
// are checked for signature, nonce and balance, mined one per block, and
// contract calls are simulated including reverts and event logs.
package fakechain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/ticketnft"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	TransferGas = 21_000
	CallGas     = 90_000
	blockGas    = 30_000_000
)

// RPCError mimics a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int
	Message string
	Data    any
}

func (e *RPCError) Error() string  { return e.Message }
func (e *RPCError) ErrorCode() int { return e.Code }
func (e *RPCError) ErrorData() any { return e.Data }

// Entry is one mined transaction in submission order.
type Entry struct {
	Seq    int
	From   ethcommon.Address
	To     ethcommon.Address
	Value  *big.Int
	Method string
	Status uint64
	Hash   ethcommon.Hash
}

type ticket struct {
	owner     ethcommon.Address
	price     *big.Int
	forSale   bool
	used      bool
	eventInfo string
}

// Chain is safe for concurrent use.
type Chain struct {
	mu sync.Mutex

	chainID  *big.Int
	signer   types.Signer
	contract ethcommon.Address
	owner    ethcommon.Address
	gasPrice *big.Int
	now      func() time.Time

	balances map[ethcommon.Address]*big.Int
	nonces   map[ethcommon.Address]uint64

	headers  []*types.Header
	txCounts map[ethcommon.Hash]uint
	receipts map[ethcommon.Hash]*types.Receipt
	polls    map[ethcommon.Hash]int
	logs     []types.Log

	tickets    []*ticket
	usedNonces map[string]bool

	journal []Entry

	receiptDelay int
	stalled      map[ethcommon.Address]bool
	blankHash    map[ethcommon.Address]bool
	dropLogs     bool
	lagNonce     bool
	estimateErr  error
	strictQuote  bool
	sendHook     func(from ethcommon.Address, tx *types.Transaction) error
	calls        int
}

type Option func(*Chain)

func WithClock(now func() time.Time) Option { return func(c *Chain) { c.now = now } }

func WithGasPrice(p *big.Int) Option { return func(c *Chain) { c.gasPrice = p } }

// New deploys the contract at contract with owner as its minting authority.
func New(contract, owner ethcommon.Address, opts ...Option) *Chain {
	c := &Chain{
		chainID:    big.NewInt(1337),
		contract:   contract,
		owner:      owner,
		gasPrice:   big.NewInt(1_000_000_000),
		now:        time.Now,
		balances:   make(map[ethcommon.Address]*big.Int),
		nonces:     make(map[ethcommon.Address]uint64),
		txCounts:   make(map[ethcommon.Hash]uint),
		receipts:   make(map[ethcommon.Hash]*types.Receipt),
		polls:      make(map[ethcommon.Hash]int),
		usedNonces: make(map[string]bool),
		stalled:    make(map[ethcommon.Address]bool),
		blankHash:  make(map[ethcommon.Address]bool),
	}
	for _, o := range opts {
		o(c)
	}
	c.signer = types.LatestSignerForChainID(c.chainID)

	genesis := &types.Header{
		Number:     big.NewInt(0),
		Time:       uint64(c.now().Unix()),
		GasLimit:   blockGas,
		Difficulty: big.NewInt(0),
	}
	c.headers = append(c.headers, genesis)
	c.txCounts[genesis.Hash()] = 0
	return c
}

// Fund credits addr out of thin air.
func (c *Chain) Fund(addr ethcommon.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credit(addr, wei)
}

// Balance is a test-side read that bypasses the client interface.
func (c *Chain) Balance(addr ethcommon.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balanceOf(addr))
}

// Journal returns mined transactions in order.
func (c *Chain) Journal() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.journal...)
}

// SetReceiptDelay makes each receipt invisible for n polls.
func (c *Chain) SetReceiptDelay(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiptDelay = n
}

// Stall accepts transactions from addr but never mines them.
func (c *Chain) Stall(addr ethcommon.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stalled[addr] = true
}

// BlankReceiptHash mines transactions from addr but reports their
// receipts with a zero transaction hash.
func (c *Chain) BlankReceiptHash(addr ethcommon.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blankHash[addr] = true
}

// DropLogs mines transactions without emitting events.
func (c *Chain) DropLogs(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLogs = v
}

// LagPendingNonce makes PendingNonceAt always report zero.
func (c *Chain) LagPendingNonce(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lagNonce = v
}

// CheckBalanceOnEstimate makes EstimateGas refuse calls whose sender cannot
// cover the attached value, as geth does.
func (c *Chain) CheckBalanceOnEstimate(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strictQuote = v
}

func (c *Chain) SetEstimateError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.estimateErr = err
}

// SetGasPrice changes the suggested price; nil means the node reports none.
func (c *Chain) SetGasPrice(p *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gasPrice = p
}

// OnSend installs a hook that can reject a transaction before it is
// accepted.
func (c *Chain) OnSend(hook func(from ethcommon.Address, tx *types.Transaction) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendHook = hook
}

// Calls counts every client method invocation.
func (c *Chain) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *Chain) ChainID(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return new(big.Int).Set(c.chainID), nil
}

func (c *Chain) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if number == nil {
		return types.CopyHeader(c.headers[len(c.headers)-1]), nil
	}
	if !number.IsUint64() || number.Uint64() >= uint64(len(c.headers)) {
		return nil, ethereum.NotFound
	}
	return types.CopyHeader(c.headers[number.Uint64()]), nil
}

func (c *Chain) TransactionCount(_ context.Context, blockHash ethcommon.Hash) (uint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	n, ok := c.txCounts[blockHash]
	if !ok {
		return 0, ethereum.NotFound
	}
	return n, nil
}

func (c *Chain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.estimateErr != nil {
		return 0, c.estimateErr
	}
	if c.strictQuote && msg.Value != nil && c.balanceOf(msg.From).Cmp(msg.Value) < 0 {
		return 0, &RPCError{Code: -32000, Message: "insufficient funds for transfer"}
	}
	if msg.To == nil || *msg.To != c.contract || len(msg.Data) == 0 {
		return TransferGas, nil
	}
	if _, rev := c.exec(msg.From, msg.Value, msg.Data, false); rev != nil {
		return 0, rev.rpc()
	}
	return CallGas, nil
}

func (c *Chain) SuggestGasPrice(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.gasPrice == nil {
		return nil, nil
	}
	return new(big.Int).Set(c.gasPrice), nil
}

func (c *Chain) BalanceAt(_ context.Context, addr ethcommon.Address, _ *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return new(big.Int).Set(c.balanceOf(addr)), nil
}

func (c *Chain) PendingNonceAt(_ context.Context, addr ethcommon.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.lagNonce {
		return 0, nil
	}
	return c.nonces[addr], nil
}

func (c *Chain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	from, err := types.Sender(c.signer, tx)
	if err != nil {
		return &RPCError{Code: -32000, Message: "invalid sender: " + err.Error()}
	}
	if c.sendHook != nil {
		if err := c.sendHook(from, tx); err != nil {
			return err
		}
	}
	if tx.Nonce() < c.nonces[from] {
		return &RPCError{Code: -32000, Message: "nonce too low"}
	}
	if tx.Nonce() > c.nonces[from] {
		return &RPCError{Code: -32000, Message: "nonce too high"}
	}
	if tx.Gas() < TransferGas {
		return &RPCError{Code: -32000, Message: "intrinsic gas too low"}
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()), tx.GasPrice())
	cost := new(big.Int).Add(fee, tx.Value())
	if c.balanceOf(from).Cmp(cost) < 0 {
		return &RPCError{Code: -32000, Message: "insufficient funds for gas * price + value"}
	}

	c.nonces[from]++
	if c.stalled[from] {
		return nil
	}
	c.mine(from, tx, fee)
	return nil
}

func (c *Chain) mine(from ethcommon.Address, tx *types.Transaction, fee *big.Int) {
	c.debit(from, fee)

	parent := c.headers[len(c.headers)-1]
	number := new(big.Int).Add(parent.Number, big.NewInt(1))
	status := types.ReceiptStatusSuccessful
	method := ""
	var logs []*types.Log

	to := *tx.To()
	if to == c.contract && len(tx.Data()) > 0 {
		if m, err := ticketnft.ABI.MethodById(tx.Data()[:4]); err == nil {
			method = m.Name
		}
		out, rev := c.exec(from, tx.Value(), tx.Data(), true)
		if rev != nil {
			status = types.ReceiptStatusFailed
		} else {
			logs = out
		}
	} else {
		c.debit(from, tx.Value())
		c.credit(to, tx.Value())
	}
	if c.dropLogs {
		logs = nil
	}

	header := &types.Header{
		ParentHash: parent.Hash(),
		Number:     number,
		Time:       uint64(c.now().Unix()),
		GasLimit:   blockGas,
		GasUsed:    tx.Gas(),
		Difficulty: big.NewInt(0),
	}
	blockHash := header.Hash()
	for i, l := range logs {
		l.BlockNumber = number.Uint64()
		l.BlockHash = blockHash
		l.TxHash = tx.Hash()
		l.Index = uint(len(c.logs) + i)
	}
	for _, l := range logs {
		c.logs = append(c.logs, *l)
	}

	receiptHash := tx.Hash()
	if c.blankHash[from] {
		receiptHash = ethcommon.Hash{}
	}

	c.headers = append(c.headers, header)
	c.txCounts[blockHash] = 1
	c.receipts[tx.Hash()] = &types.Receipt{
		Type:              types.LegacyTxType,
		Status:            status,
		CumulativeGasUsed: tx.Gas(),
		Logs:              logs,
		TxHash:            receiptHash,
		GasUsed:           tx.Gas(),
		BlockHash:         blockHash,
		BlockNumber:       number,
	}
	c.journal = append(c.journal, Entry{
		Seq:    len(c.journal) + 1,
		From:   from,
		To:     to,
		Value:  new(big.Int).Set(tx.Value()),
		Method: method,
		Status: status,
		Hash:   tx.Hash(),
	})
}

func (c *Chain) TransactionReceipt(_ context.Context, hash ethcommon.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	r, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	c.polls[hash]++
	if c.polls[hash] <= c.receiptDelay {
		return nil, ethereum.NotFound
	}
	cp := *r
	return &cp, nil
}

func (c *Chain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	from := uint64(0)
	if q.FromBlock != nil {
		from = q.FromBlock.Uint64()
	}
	to := uint64(len(c.headers) - 1)
	if q.ToBlock != nil {
		to = q.ToBlock.Uint64()
	}

	var out []types.Log
	for _, l := range c.logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		if !topicsMatch(q.Topics, l.Topics) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (c *Chain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if msg.To == nil || *msg.To != c.contract {
		return nil, nil
	}
	out, rev := c.view(msg.Data)
	if rev != nil {
		return nil, rev.rpc()
	}
	return out, nil
}

func (c *Chain) Close() {}

func (c *Chain) balanceOf(addr ethcommon.Address) *big.Int {
	b, ok := c.balances[addr]
	if !ok {
		b = new(big.Int)
		c.balances[addr] = b
	}
	return b
}

func (c *Chain) credit(addr ethcommon.Address, wei *big.Int) {
	b := c.balanceOf(addr)
	b.Add(b, wei)
}

func (c *Chain) debit(addr ethcommon.Address, wei *big.Int) {
	b := c.balanceOf(addr)
	b.Sub(b, wei)
}

func containsAddress(list []ethcommon.Address, a ethcommon.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func topicsMatch(filter [][]ethcommon.Hash, topics []ethcommon.Hash) bool {
	if len(filter) > len(topics) {
		return false
	}
	for i, alts := range filter {
		if len(alts) == 0 {
			continue
		}
		match := false
		for _, h := range alts {
			if h == topics[i] {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

type revert struct{ reason string }

var errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

func (r *revert) rpc() *RPCError {
	strTy, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: strTy}}.Pack(r.reason)
	data := append(append([]byte{}, errorSelector...), packed...)
	return &RPCError{
		Code:    3,
		Message: fmt.Sprintf("execution reverted: %s", r.reason),
		Data:    hexutil.Encode(data),
	}
}
