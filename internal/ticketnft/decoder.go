package ticketnft

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrUnknownEvent = errors.New("unknown event")

// Event is one of the decoded contract events below.
type Event interface {
	EventName() string
}

// Meta locates a decoded event on the ledger.
type Meta struct {
	TxHash      ethcommon.Hash
	BlockNumber uint64
	Index       uint
}

type MintedEvent struct {
	Meta
	To        ethcommon.Address
	TokenID   *big.Int
	EventInfo string
}

type ListedEvent struct {
	Meta
	TokenID *big.Int
	Owner   ethcommon.Address
	Price   *big.Int
}

type UnlistedEvent struct {
	Meta
	TokenID *big.Int
	Owner   ethcommon.Address
}

type SoldEvent struct {
	Meta
	Owner    ethcommon.Address
	NewOwner ethcommon.Address
	TokenID  *big.Int
	Price    *big.Int
}

type TransferredEvent struct {
	Meta
	From    ethcommon.Address
	To      ethcommon.Address
	TokenID *big.Int
}

type ValidatedEvent struct {
	Meta
	TokenID *big.Int
	Holder  ethcommon.Address
}

func (MintedEvent) EventName() string      { return EventMinted }
func (ListedEvent) EventName() string      { return EventListed }
func (UnlistedEvent) EventName() string    { return EventUnlisted }
func (SoldEvent) EventName() string        { return EventSold }
func (TransferredEvent) EventName() string { return EventTransferred }
func (ValidatedEvent) EventName() string   { return EventValidated }

// Topic returns the topic 0 hash for an event name.
func Topic(name string) ethcommon.Hash {
	return ABI.Events[name].ID
}

// Decoder turns raw logs into typed events.
type Decoder struct {
	abi abi.ABI
}

func NewDecoder() *Decoder {
	return &Decoder{abi: ABI}
}

// Decode dispatches on topic 0.
func (d *Decoder) Decode(l types.Log) (Event, error) {
	if len(l.Topics) == 0 {
		return nil, fmt.Errorf("%w: log has no topics", ErrUnknownEvent)
	}
	ev, err := d.abi.EventByID(l.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, l.Topics[0].Hex())
	}

	fields, err := d.fields(ev, l)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.Name, err)
	}
	meta := Meta{TxHash: l.TxHash, BlockNumber: l.BlockNumber, Index: l.Index}

	var out Event
	switch ev.Name {
	case EventMinted:
		e := MintedEvent{Meta: meta}
		err = collect(fields, field("to", &e.To), field("tokenId", &e.TokenID), field("eventInfo", &e.EventInfo))
		out = e
	case EventListed:
		e := ListedEvent{Meta: meta}
		err = collect(fields, field("tokenId", &e.TokenID), field("owner", &e.Owner), field("price", &e.Price))
		out = e
	case EventUnlisted:
		e := UnlistedEvent{Meta: meta}
		err = collect(fields, field("tokenId", &e.TokenID), field("owner", &e.Owner))
		out = e
	case EventSold:
		e := SoldEvent{Meta: meta}
		err = collect(fields, field("owner", &e.Owner), field("newOwner", &e.NewOwner), field("tokenId", &e.TokenID), field("price", &e.Price))
		out = e
	case EventTransferred:
		e := TransferredEvent{Meta: meta}
		err = collect(fields, field("from", &e.From), field("to", &e.To), field("tokenId", &e.TokenID))
		out = e
	case EventValidated:
		e := ValidatedEvent{Meta: meta}
		err = collect(fields, field("tokenId", &e.TokenID), field("holder", &e.Holder))
		out = e
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.Name, err)
	}
	return out, nil
}

// DecodeMinted decodes l and requires it to be a TicketMinted log.
func (d *Decoder) DecodeMinted(l types.Log) (*MintedEvent, error) {
	ev, err := d.Decode(l)
	if err != nil {
		return nil, err
	}
	m, ok := ev.(MintedEvent)
	if !ok {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrUnknownEvent, EventMinted, ev.EventName())
	}
	return &m, nil
}

// DecodeAll decodes what it can and reports how many logs were skipped.
func (d *Decoder) DecodeAll(logs []types.Log) ([]Event, int) {
	out := make([]Event, 0, len(logs))
	skipped := 0
	for _, l := range logs {
		ev, err := d.Decode(l)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, ev)
	}
	return out, skipped
}

func (d *Decoder) fields(ev *abi.Event, l types.Log) (map[string]any, error) {
	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if len(l.Topics)-1 != len(indexed) {
		return nil, fmt.Errorf("expected %d indexed topics, got %d", len(indexed), len(l.Topics)-1)
	}

	fields := make(map[string]any, len(ev.Inputs))
	if len(ev.Inputs.NonIndexed()) > 0 {
		if err := ev.Inputs.UnpackIntoMap(fields, l.Data); err != nil {
			return nil, err
		}
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, l.Topics[1:]); err != nil {
		return nil, err
	}
	return fields, nil
}

type setter func(map[string]any) error

func field[T any](name string, dst *T) setter {
	return func(m map[string]any) error {
		v, ok := m[name]
		if !ok {
			return fmt.Errorf("missing field %q", name)
		}
		t, ok := v.(T)
		if !ok {
			return fmt.Errorf("field %q has type %T", name, v)
		}
		*dst = t
		return nil
	}
}

func collect(m map[string]any, setters ...setter) error {
	for _, s := range setters {
		if err := s(m); err != nil {
			return err
		}
	}
	return nil
}
