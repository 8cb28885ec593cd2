package ticketnft

import (
	"fmt"
	"math/big"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Kind names a state-changing contract function.
type Kind string

const (
	KindMintTicket            Kind = "mintTicket"
	KindMintAndList           Kind = "mintAndList"
	KindSetForSale            Kind = "setTicketForSale"
	KindRemoveFromSale        Kind = "removeTicketFromSale"
	KindBuyTicket             Kind = "buyTicket"
	KindTransferTicket        Kind = "transferTicket"
	KindValidateWithSignature Kind = "validateWithSignature"
)

var knownKinds = map[Kind]struct{}{
	KindMintTicket:            {},
	KindMintAndList:           {},
	KindSetForSale:            {},
	KindRemoveFromSale:        {},
	KindBuyTicket:             {},
	KindTransferTicket:        {},
	KindValidateWithSignature: {},
}

// ParseKind accepts only the contract functions this service submits.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if _, ok := knownKinds[k]; !ok {
		return "", fmt.Errorf("%w: %q", common.ErrUnknownOperation, name)
	}
	return k, nil
}

// Operation is one of the typed contract calls below. The set is closed.
type Operation interface {
	Kind() Kind
	// Pack returns the call data.
	Pack() ([]byte, error)
	// Value is the wei attached to the call.
	Value() *big.Int
	operation()
}

type MintTicket struct {
	To        ethcommon.Address
	EventInfo string
}

type MintAndList struct {
	To        ethcommon.Address
	EventInfo string
	Price     *big.Int
}

type SetForSale struct {
	TokenID *big.Int
	Price   *big.Int
}

type RemoveFromSale struct {
	TokenID *big.Int
}

// BuyTicket pays Price, which must equal the on-chain listing price.
type BuyTicket struct {
	TokenID *big.Int
	Price   *big.Int
}

// TransferTicket moves a ticket between wallets. Only the contract owner
// may send it, so it is always signed by the custodian.
type TransferTicket struct {
	From    ethcommon.Address
	To      ethcommon.Address
	TokenID *big.Int
}

type ValidateWithSignature struct {
	TokenID    *big.Int
	Nonce      *big.Int
	Expiration *big.Int
	Signature  []byte
}

func (MintTicket) Kind() Kind            { return KindMintTicket }
func (MintAndList) Kind() Kind           { return KindMintAndList }
func (SetForSale) Kind() Kind            { return KindSetForSale }
func (RemoveFromSale) Kind() Kind        { return KindRemoveFromSale }
func (BuyTicket) Kind() Kind             { return KindBuyTicket }
func (TransferTicket) Kind() Kind        { return KindTransferTicket }
func (ValidateWithSignature) Kind() Kind { return KindValidateWithSignature }

func (o MintTicket) Pack() ([]byte, error) {
	return ABI.Pack(string(KindMintTicket), o.To, o.EventInfo)
}

func (o MintAndList) Pack() ([]byte, error) {
	if err := positive("price", o.Price); err != nil {
		return nil, err
	}
	return ABI.Pack(string(KindMintAndList), o.To, o.EventInfo, o.Price)
}

func (o SetForSale) Pack() ([]byte, error) {
	if err := nonNegative("token id", o.TokenID); err != nil {
		return nil, err
	}
	if err := positive("price", o.Price); err != nil {
		return nil, err
	}
	return ABI.Pack(string(KindSetForSale), o.TokenID, o.Price)
}

func (o RemoveFromSale) Pack() ([]byte, error) {
	if err := nonNegative("token id", o.TokenID); err != nil {
		return nil, err
	}
	return ABI.Pack(string(KindRemoveFromSale), o.TokenID)
}

func (o BuyTicket) Pack() ([]byte, error) {
	if err := nonNegative("token id", o.TokenID); err != nil {
		return nil, err
	}
	return ABI.Pack(string(KindBuyTicket), o.TokenID)
}

func (o TransferTicket) Pack() ([]byte, error) {
	if err := nonNegative("token id", o.TokenID); err != nil {
		return nil, err
	}
	if o.To == (ethcommon.Address{}) {
		return nil, fmt.Errorf("%w: recipient is required", common.ErrorInvalidArgument)
	}
	if o.To == o.From {
		return nil, fmt.Errorf("%w: recipient already holds the ticket", common.ErrorInvalidArgument)
	}
	return ABI.Pack(string(KindTransferTicket), o.From, o.To, o.TokenID)
}

func (o ValidateWithSignature) Pack() ([]byte, error) {
	if err := nonNegative("token id", o.TokenID); err != nil {
		return nil, err
	}
	if o.Nonce == nil || o.Expiration == nil || len(o.Signature) == 0 {
		return nil, fmt.Errorf("%w: incomplete signature payload", common.ErrorInvalidArgument)
	}
	return ABI.Pack(string(KindValidateWithSignature), o.TokenID, o.Nonce, o.Expiration, o.Signature)
}

func (MintTicket) Value() *big.Int            { return new(big.Int) }
func (MintAndList) Value() *big.Int           { return new(big.Int) }
func (SetForSale) Value() *big.Int            { return new(big.Int) }
func (RemoveFromSale) Value() *big.Int        { return new(big.Int) }
func (TransferTicket) Value() *big.Int        { return new(big.Int) }
func (ValidateWithSignature) Value() *big.Int { return new(big.Int) }

func (o BuyTicket) Value() *big.Int {
	if o.Price == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(o.Price)
}

func (MintTicket) operation()            {}
func (MintAndList) operation()           {}
func (SetForSale) operation()            {}
func (RemoveFromSale) operation()        {}
func (BuyTicket) operation()             {}
func (TransferTicket) operation()        {}
func (ValidateWithSignature) operation() {}

// TokenOf returns the token an operation targets, or nil for mints.
func TokenOf(op Operation) *big.Int {
	switch o := op.(type) {
	case SetForSale:
		return o.TokenID
	case RemoveFromSale:
		return o.TokenID
	case BuyTicket:
		return o.TokenID
	case TransferTicket:
		return o.TokenID
	case ValidateWithSignature:
		return o.TokenID
	default:
		return nil
	}
}

func nonNegative(name string, v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return fmt.Errorf("%w: %s must be a non-negative integer", common.ErrorInvalidArgument, name)
	}
	return nil
}

func positive(name string, v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return fmt.Errorf("%w: %s must be positive", common.ErrorInvalidArgument, name)
	}
	return nil
}
