package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func addressOf(key *ecdsa.PrivateKey) ethcommon.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// TxRequest describes a state-changing call. Zero GasLimit and nil GasPrice
// are filled from the node.
type TxRequest struct {
	To       ethcommon.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
}

// Signer submits transactions for one key.
type Signer struct {
	gw      *Gateway
	key     *ecdsa.PrivateKey
	address ethcommon.Address
}

func (s *Signer) Address() ethcommon.Address { return s.address }

// Send signs and submits req and returns the transaction hash without
// waiting for it to be mined.
func (s *Signer) Send(ctx context.Context, req TxRequest) (ethcommon.Hash, error) {
	st := s.gw.nonceFor(s.address)
	st.mu.Lock()
	defer st.mu.Unlock()

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		est, err := s.gw.EstimateGas(ctx, Call{From: s.address, To: req.To, Data: req.Data, Value: value})
		if err != nil {
			return ethcommon.Hash{}, err
		}
		gasLimit = est
	}

	gasPrice := req.GasPrice
	if gasPrice == nil {
		p, err := s.gw.FeeData(ctx)
		if err != nil {
			return ethcommon.Hash{}, err
		}
		if p == nil {
			return ethcommon.Hash{}, fmt.Errorf("%w: node reports no gas price", common.ErrorInvalidArgument)
		}
		gasPrice = p
	}

	pending, err := s.gw.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return ethcommon.Hash{}, classify(err)
	}
	nonce := pending
	if st.known && st.next > nonce {
		nonce = st.next
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.gw.chainID), s.key)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := s.gw.client.SendTransaction(ctx, signed); err != nil {
		st.known = false
		return ethcommon.Hash{}, classify(err)
	}

	st.next = nonce + 1
	st.known = true

	s.gw.log.Debug(ctx, "transaction submitted",
		"from", s.address.Hex(), "to", req.To.Hex(), "nonce", nonce, "tx_hash", signed.Hash().Hex())

	return signed.Hash(), nil
}
