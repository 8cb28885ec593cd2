package services

import (
	"context"
	"crypto/ecdsa"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/ledger"
	"github.com/dmitrijs2005/ticketkeeper/internal/logging"
	"github.com/dmitrijs2005/ticketkeeper/internal/orchestrator"
	"github.com/dmitrijs2005/ticketkeeper/internal/pricing"
	"github.com/dmitrijs2005/ticketkeeper/internal/qrauth"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/models"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/ticketkeeper/internal/ticketnft"
	"github.com/dmitrijs2005/ticketkeeper/internal/vault"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TicketLedger is the part of the orchestrator the service drives.
type TicketLedger interface {
	Mint(ctx context.Context, to ethcommon.Address, eventInfo string) (*orchestrator.Result, error)
	MintAndList(ctx context.Context, to ethcommon.Address, eventInfo string, priceWei *big.Int) (*orchestrator.Result, error)
	List(ctx context.Context, key *ecdsa.PrivateKey, tokenID, priceWei *big.Int) (*orchestrator.Result, error)
	Unlist(ctx context.Context, key *ecdsa.PrivateKey, tokenID *big.Int) (*orchestrator.Result, error)
	Buy(ctx context.Context, key *ecdsa.PrivateKey, tokenID *big.Int) (*orchestrator.Result, error)
	Transfer(ctx context.Context, from, to ethcommon.Address, tokenID *big.Int) (*orchestrator.Result, error)
	Submit(ctx context.Context, key *ecdsa.PrivateKey, op ticketnft.Operation) (*orchestrator.Result, error)

	Ticket(ctx context.Context, tokenID *big.Int) (*ticketnft.TicketRecord, error)
	Tickets(ctx context.Context) ([]*ticketnft.TicketRecord, error)
	MintedTo(ctx context.Context, owner ethcommon.Address) ([]ticketnft.MintedEvent, int, error)
	LatestBlock(ctx context.Context) (*ledger.BlockInfo, error)
	Block(ctx context.Context, number uint64) (*ledger.BlockInfo, error)
}

// QRAuthority issues and redeems QR payloads.
type QRAuthority interface {
	Generate(holder *ecdsa.PrivateKey, tokenID *big.Int) (*qrauth.Payload, error)
	Verify(ctx context.Context, organizer *ecdsa.PrivateKey, p qrauth.Payload) (*orchestrator.Result, error)
}

var (
	_ TicketLedger = (*orchestrator.Orchestrator)(nil)
	_ QRAuthority  = (*qrauth.Service)(nil)
)

// TicketService runs ticket operations on behalf of authenticated users.
// A user's key is decrypted for a single call and wiped before returning.
type TicketService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	ledger      TicketLedger
	qr          QRAuthority
	vault       KeyVault
	prices      *pricing.Converter
	log         logging.Logger
}

func NewTicketService(db *sql.DB, m repomanager.RepositoryManager, l TicketLedger, qr QRAuthority,
	v KeyVault, prices *pricing.Converter, log logging.Logger) *TicketService {
	return &TicketService{
		db:          db,
		repomanager: m,
		ledger:      l,
		qr:          qr,
		vault:       v,
		prices:      prices,
		log:         log.With("module", "tickets"),
	}
}

func (s *TicketService) Prices() *pricing.Converter { return s.prices }

// Mint issues a ticket for one of the distributor's events. An empty to
// mints into the distributor's own wallet.
func (s *TicketService) Mint(ctx context.Context, userID, to, eventID string) (*orchestrator.Result, error) {
	recipient, err := s.prepareMint(ctx, userID, to, eventID)
	if err != nil {
		return nil, err
	}
	return s.ledger.Mint(ctx, recipient, eventID)
}

func (s *TicketService) MintAndList(ctx context.Context, userID, to, eventID string, priceUSD decimal.Decimal) (*orchestrator.Result, error) {
	recipient, err := s.prepareMint(ctx, userID, to, eventID)
	if err != nil {
		return nil, err
	}
	wei, err := s.prices.USDToWei(priceUSD)
	if err != nil {
		return nil, err
	}
	return s.ledger.MintAndList(ctx, recipient, eventID, wei)
}

func (s *TicketService) List(ctx context.Context, userID string, tokenID *big.Int, priceUSD decimal.Decimal) (*orchestrator.Result, error) {
	wei, err := s.prices.USDToWei(priceUSD)
	if err != nil {
		return nil, err
	}
	return s.withUserKey(ctx, userID, func(key *ecdsa.PrivateKey) (*orchestrator.Result, error) {
		return s.ledger.List(ctx, key, tokenID, wei)
	})
}

func (s *TicketService) Unlist(ctx context.Context, userID string, tokenID *big.Int) (*orchestrator.Result, error) {
	return s.withUserKey(ctx, userID, func(key *ecdsa.PrivateKey) (*orchestrator.Result, error) {
		return s.ledger.Unlist(ctx, key, tokenID)
	})
}

func (s *TicketService) Buy(ctx context.Context, userID string, tokenID *big.Int) (*orchestrator.Result, error) {
	return s.withUserKey(ctx, userID, func(key *ecdsa.PrivateKey) (*orchestrator.Result, error) {
		return s.ledger.Buy(ctx, key, tokenID)
	})
}

// Transfer hands a ticket held by the user's wallet to another wallet.
func (s *TicketService) Transfer(ctx context.Context, userID string, tokenID *big.Int, to string) (*orchestrator.Result, error) {
	if !ethcommon.IsHexAddress(to) {
		return nil, fmt.Errorf("%w: invalid recipient address %q", common.ErrorInvalidArgument, to)
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	rec, err := s.ledger.Ticket(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	from := ethcommon.HexToAddress(u.WalletAddress)
	if rec.Owner != from {
		return nil, fmt.Errorf("%w: ticket %s is not held by this account", common.ErrorForbidden, tokenID)
	}
	if rec.Used {
		return nil, fmt.Errorf("%w: ticket %s already used", common.ErrorInvalidArgument, tokenID)
	}
	recipient := ethcommon.HexToAddress(to)
	if recipient == from {
		return nil, fmt.Errorf("%w: recipient already holds ticket %s", common.ErrorInvalidArgument, tokenID)
	}

	return s.ledger.Transfer(ctx, from, recipient, tokenID)
}

// GenerateQR signs an entry payload for a ticket the user holds.
func (s *TicketService) GenerateQR(ctx context.Context, userID string, tokenID *big.Int) (*qrauth.Payload, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	rec, err := s.ledger.Ticket(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if rec.Owner != ethcommon.HexToAddress(u.WalletAddress) {
		return nil, fmt.Errorf("%w: ticket %s is not held by this account", common.ErrorForbidden, tokenID)
	}
	if rec.Used {
		return nil, fmt.Errorf("%w: ticket %s already used", common.ErrorInvalidArgument, tokenID)
	}

	key, err := s.decrypt(ctx, u)
	if err != nil {
		return nil, err
	}
	defer vault.WipeKey(key)

	return s.qr.Generate(key, tokenID)
}

// ValidateQR redeems a holder's payload at the door with the distributor's
// own key.
func (s *TicketService) ValidateQR(ctx context.Context, userID string, p qrauth.Payload) (*orchestrator.Result, error) {
	u, err := s.distributor(ctx, userID)
	if err != nil {
		return nil, err
	}
	key, err := s.decrypt(ctx, u)
	if err != nil {
		return nil, err
	}
	defer vault.WipeKey(key)

	return s.qr.Verify(ctx, key, p)
}

// Submit runs a typed operation. Mints go through the same event checks as
// Mint and MintAndList, and validateWithSignature through the QR protocol,
// so expiry and replay are enforced before the ledger is touched. A
// transfer always moves a ticket out of the caller's own wallet. Everything
// else is signed with the user's key.
func (s *TicketService) Submit(ctx context.Context, userID string, op ticketnft.Operation) (*orchestrator.Result, error) {
	switch op := op.(type) {
	case ticketnft.MintTicket:
		recipient, err := s.prepareMint(ctx, userID, op.To.Hex(), op.EventInfo)
		if err != nil {
			return nil, err
		}
		return s.ledger.Mint(ctx, recipient, op.EventInfo)
	case ticketnft.MintAndList:
		if op.Price == nil {
			return nil, fmt.Errorf("%w: priceWei is required", common.ErrorInvalidArgument)
		}
		recipient, err := s.prepareMint(ctx, userID, op.To.Hex(), op.EventInfo)
		if err != nil {
			return nil, err
		}
		return s.ledger.MintAndList(ctx, recipient, op.EventInfo, op.Price)
	case ticketnft.TransferTicket:
		return s.Transfer(ctx, userID, op.TokenID, op.To.Hex())
	case ticketnft.ValidateWithSignature:
		p, err := payloadOf(op)
		if err != nil {
			return nil, err
		}
		return s.ValidateQR(ctx, userID, p)
	}
	return s.withUserKey(ctx, userID, func(key *ecdsa.PrivateKey) (*orchestrator.Result, error) {
		return s.ledger.Submit(ctx, key, op)
	})
}

func payloadOf(op ticketnft.ValidateWithSignature) (qrauth.Payload, error) {
	if op.TokenID == nil || op.Nonce == nil || op.Expiration == nil {
		return qrauth.Payload{}, fmt.Errorf("%w: tokenId, nonce and expiration are required", common.ErrorInvalidArgument)
	}
	if !op.Nonce.IsInt64() || !op.Expiration.IsInt64() {
		return qrauth.Payload{}, fmt.Errorf("%w: nonce or expiration out of range", common.ErrorInvalidArgument)
	}
	return qrauth.Payload{
		TokenID:    op.TokenID,
		Nonce:      op.Nonce.Int64(),
		Expiration: op.Expiration.Int64(),
		Signature:  op.Signature,
	}, nil
}

func (s *TicketService) Ticket(ctx context.Context, tokenID *big.Int) (*ticketnft.TicketRecord, error) {
	return s.ledger.Ticket(ctx, tokenID)
}

func (s *TicketService) Tickets(ctx context.Context) ([]*ticketnft.TicketRecord, error) {
	return s.ledger.Tickets(ctx)
}

func (s *TicketService) MintedTo(ctx context.Context, wallet string) ([]ticketnft.MintedEvent, error) {
	if !ethcommon.IsHexAddress(wallet) {
		return nil, fmt.Errorf("%w: invalid wallet address %q", common.ErrorInvalidArgument, wallet)
	}
	events, skipped, err := s.ledger.MintedTo(ctx, ethcommon.HexToAddress(wallet))
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.log.Warn(ctx, "undecodable mint logs skipped", "wallet", wallet, "skipped", skipped)
	}
	return events, nil
}

func (s *TicketService) LatestBlock(ctx context.Context) (*ledger.BlockInfo, error) {
	return s.ledger.LatestBlock(ctx)
}

func (s *TicketService) Block(ctx context.Context, number uint64) (*ledger.BlockInfo, error) {
	return s.ledger.Block(ctx, number)
}

// --- helpers below ---

func (s *TicketService) prepareMint(ctx context.Context, userID, to, eventID string) (ethcommon.Address, error) {
	u, err := s.distributor(ctx, userID)
	if err != nil {
		return ethcommon.Address{}, err
	}

	ev, err := s.repomanager.Events(s.db).GetByID(ctx, eventID)
	if err != nil {
		return ethcommon.Address{}, err
	}
	if ev.OrganizerID != u.ID {
		return ethcommon.Address{}, fmt.Errorf("%w: event %s belongs to another organizer", common.ErrorForbidden, eventID)
	}

	if to == "" {
		return ethcommon.HexToAddress(u.WalletAddress), nil
	}
	if !ethcommon.IsHexAddress(to) {
		return ethcommon.Address{}, fmt.Errorf("%w: invalid recipient address %q", common.ErrorInvalidArgument, to)
	}
	return ethcommon.HexToAddress(to), nil
}

func (s *TicketService) user(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *TicketService) distributor(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsDistributor {
		return nil, fmt.Errorf("%w: distributor role required", common.ErrorForbidden)
	}
	return u, nil
}

func (s *TicketService) decrypt(ctx context.Context, u *models.User) (*ecdsa.PrivateKey, error) {
	key, err := s.vault.DecryptKey(u.EncryptedKey)
	if err != nil {
		s.log.Error(ctx, "decrypt signing key", "user_id", u.ID, "error", err)
		return nil, err
	}
	return key, nil
}

func (s *TicketService) withUserKey(ctx context.Context, userID string,
	fn func(key *ecdsa.PrivateKey) (*orchestrator.Result, error)) (*orchestrator.Result, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	key, err := s.decrypt(ctx, u)
	if err != nil {
		return nil, err
	}
	defer vault.WipeKey(key)

	return fn(key)
}
