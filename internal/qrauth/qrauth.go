// Package qrauth issues and redeems signed, time-boxed ticket QR payloads.
//
// The holder signs keccak256(contract ++ tokenId ++ nonce ++ expiration)
// with an EIP-191 personal-message prefix. The service checks only expiry
// and single use; the contract verifies the signature against the ticket
// owner when the organizer submits it.
package qrauth

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/logging"
	"github.com/dmitrijs2005/ticketkeeper/internal/orchestrator"
	"github.com/ethereum/go-ethereum/accounts"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const DefaultTTL = 5 * time.Minute

// Payload is what the QR code carries.
type Payload struct {
	TokenID    *big.Int
	Nonce      int64 // unix milliseconds
	Expiration int64 // unix seconds
	Signature  []byte
}

// Validator submits a signed payload to the ledger.
type Validator interface {
	Validate(ctx context.Context, key *ecdsa.PrivateKey, tokenID, nonce, expiration *big.Int, signature []byte) (*orchestrator.Result, error)
}

type Service struct {
	contract  ethcommon.Address
	validator Validator
	store     NonceStore
	ttl       time.Duration
	now       func() time.Time
	log       logging.Logger
}

type Option func(*Service)

func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

func New(contract ethcommon.Address, validator Validator, store NonceStore, opts ...Option) *Service {
	s := &Service{
		contract:  contract,
		validator: validator,
		store:     store,
		ttl:       DefaultTTL,
		now:       time.Now,
		log:       logging.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("module", "qrauth")
	return s
}

// Digest is keccak256 over the tightly packed address and three uint256.
func Digest(contract ethcommon.Address, tokenID *big.Int, nonce, expiration int64) []byte {
	return crypto.Keccak256(
		contract.Bytes(),
		ethcommon.LeftPadBytes(tokenID.Bytes(), 32),
		ethcommon.LeftPadBytes(big.NewInt(nonce).Bytes(), 32),
		ethcommon.LeftPadBytes(big.NewInt(expiration).Bytes(), 32),
	)
}

// Sign produces the 65-byte signature a wallet's signMessage(digest) would,
// with V in {27, 28}.
func Sign(key *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(digest), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Generate signs a fresh payload for tokenID with the holder's key.
func (s *Service) Generate(holder *ecdsa.PrivateKey, tokenID *big.Int) (*Payload, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, fmt.Errorf("%w: token id must be a non-negative integer", common.ErrorInvalidArgument)
	}

	now := s.now()
	p := &Payload{
		TokenID:    new(big.Int).Set(tokenID),
		Nonce:      now.UnixMilli(),
		Expiration: now.Add(s.ttl).Unix(),
	}

	sig, err := Sign(holder, Digest(s.contract, p.TokenID, p.Nonce, p.Expiration))
	if err != nil {
		return nil, fmt.Errorf("sign qr payload: %w", err)
	}
	p.Signature = sig
	return p, nil
}

// Verify redeems p with the organizer's key. Expired payloads are rejected
// before the replay cache or the ledger is touched.
func (s *Service) Verify(ctx context.Context, organizer *ecdsa.PrivateKey, p Payload) (*orchestrator.Result, error) {
	if p.TokenID == nil || p.TokenID.Sign() < 0 {
		return nil, fmt.Errorf("%w: token id must be a non-negative integer", common.ErrorInvalidArgument)
	}
	if len(p.Signature) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: signature must be %d bytes", common.ErrorInvalidArgument, crypto.SignatureLength)
	}

	now := s.now()
	if now.Unix() > p.Expiration {
		return nil, fmt.Errorf("%w: expired at %s", common.ErrQRExpired, time.Unix(p.Expiration, 0).UTC().Format(time.RFC3339))
	}

	ttl := time.Unix(p.Expiration, 0).Sub(now) + time.Second
	key := fmt.Sprintf("%s:%s:%d", s.contract.Hex(), p.TokenID, p.Nonce)
	fresh, err := s.store.Claim(ctx, key, ttl)
	if err != nil {
		return nil, fmt.Errorf("claim qr nonce: %w", err)
	}
	if !fresh {
		s.log.Warn(ctx, "qr payload replayed", "token_id", p.TokenID.String(), "nonce", p.Nonce)
		return nil, fmt.Errorf("%w: token %s nonce %d", common.ErrQRReplayed, p.TokenID, p.Nonce)
	}

	return s.validator.Validate(ctx, organizer, p.TokenID, big.NewInt(p.Nonce), big.NewInt(p.Expiration), p.Signature)
}
