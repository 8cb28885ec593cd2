package ticketnft

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dmitrijs2005/ticketkeeper/internal/ledger"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Caller performs read-only calls; *ledger.Gateway satisfies it.
type Caller interface {
	Call(ctx context.Context, c ledger.Call) ([]byte, error)
}

// TicketRecord is a ticket as currently seen on-chain. It is rebuilt from
// view calls on every request and never stored.
type TicketRecord struct {
	TokenID  *big.Int
	PriceWei *big.Int
	Owner    ethcommon.Address
	Used     bool
	ForSale  bool
	EventID  string
}

// Contract reads TicketNFT state at a fixed address.
type Contract struct {
	address ethcommon.Address
	caller  Caller
}

func NewContract(address ethcommon.Address, caller Caller) *Contract {
	return &Contract{address: address, caller: caller}
}

func (c *Contract) Address() ethcommon.Address { return c.address }

func (c *Contract) view(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.caller.Call(ctx, ledger.Call{To: c.address, Data: data})
	if err != nil {
		return nil, err
	}
	out, err := ABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unpack %s: expected 1 value, got %d", method, len(out))
	}
	return out, nil
}

func (c *Contract) Price(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	out, err := c.view(ctx, "getTicketPrice", tokenID)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (c *Contract) OwnerOf(ctx context.Context, tokenID *big.Int) (ethcommon.Address, error) {
	out, err := c.view(ctx, "ownerOf", tokenID)
	if err != nil {
		return ethcommon.Address{}, err
	}
	return out[0].(ethcommon.Address), nil
}

func (c *Contract) IsUsed(ctx context.Context, tokenID *big.Int) (bool, error) {
	out, err := c.view(ctx, "isTicketUsed", tokenID)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (c *Contract) IsForSale(ctx context.Context, tokenID *big.Int) (bool, error) {
	out, err := c.view(ctx, "isForSale", tokenID)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (c *Contract) EventInfo(ctx context.Context, tokenID *big.Int) (string, error) {
	out, err := c.view(ctx, "getEventInfo", tokenID)
	if err != nil {
		return "", err
	}
	return out[0].(string), nil
}

func (c *Contract) TotalSupply(ctx context.Context) (*big.Int, error) {
	out, err := c.view(ctx, "totalSupply")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Record assembles a TicketRecord from the individual views.
func (c *Contract) Record(ctx context.Context, tokenID *big.Int) (*TicketRecord, error) {
	owner, err := c.OwnerOf(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	price, err := c.Price(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	used, err := c.IsUsed(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	forSale, err := c.IsForSale(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	info, err := c.EventInfo(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	return &TicketRecord{
		TokenID:  new(big.Int).Set(tokenID),
		PriceWei: price,
		Owner:    owner,
		Used:     used,
		ForSale:  forSale,
		EventID:  info,
	}, nil
}
