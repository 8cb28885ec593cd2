package fakechain

import (
	"encoding/binary"
	"math/big"

	"github.com/dmitrijs2005/ticketkeeper/internal/ticketnft"
	"github.com/ethereum/go-ethereum/accounts"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// exec runs a state-changing contract call. Nothing is mutated unless
// commit is set and the call succeeds.
func (c *Chain) exec(from ethcommon.Address, value *big.Int, data []byte, commit bool) ([]*types.Log, *revert) {
	if value == nil {
		value = new(big.Int)
	}
	if len(data) < 4 {
		return nil, &revert{"unknown selector"}
	}
	m, err := ticketnft.ABI.MethodById(data[:4])
	if err != nil {
		return nil, &revert{"unknown selector"}
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, &revert{"bad calldata"}
	}
	if !m.IsPayable() && value.Sign() != 0 {
		return nil, &revert{"non-payable function"}
	}

	switch m.Name {
	case "mintTicket":
		to, info := args[0].(ethcommon.Address), args[1].(string)
		if from != c.owner {
			return nil, &revert{"Ownable: caller is not the owner"}
		}
		if !commit {
			return nil, nil
		}
		id := c.mint(to, info)
		return []*types.Log{c.mintedLog(to, id, info)}, nil

	case "mintAndList":
		to, info, price := args[0].(ethcommon.Address), args[1].(string), args[2].(*big.Int)
		if from != c.owner {
			return nil, &revert{"Ownable: caller is not the owner"}
		}
		if price.Sign() <= 0 {
			return nil, &revert{"Price must be greater than zero"}
		}
		if !commit {
			return nil, nil
		}
		id := c.mint(to, info)
		t := c.tickets[id]
		t.price = new(big.Int).Set(price)
		t.forSale = true
		return []*types.Log{c.mintedLog(to, id, info), c.listedLog(id, to, price)}, nil

	case "setTicketForSale":
		id, price := args[0].(*big.Int), args[1].(*big.Int)
		t, rev := c.ownedBy(id, from)
		if rev != nil {
			return nil, rev
		}
		if t.used {
			return nil, &revert{"Ticket already used"}
		}
		if price.Sign() <= 0 {
			return nil, &revert{"Price must be greater than zero"}
		}
		if !commit {
			return nil, nil
		}
		t.price = new(big.Int).Set(price)
		t.forSale = true
		return []*types.Log{c.listedLog(id.Uint64(), from, price)}, nil

	case "removeTicketFromSale":
		id := args[0].(*big.Int)
		t, rev := c.ownedBy(id, from)
		if rev != nil {
			return nil, rev
		}
		if !t.forSale {
			return nil, &revert{"Ticket not for sale"}
		}
		if !commit {
			return nil, nil
		}
		t.forSale = false
		return []*types.Log{c.event(ticketnft.EventUnlisted, nil, idTopic(id.Uint64()), addrTopic(from))}, nil

	case "buyTicket":
		id := args[0].(*big.Int)
		t, rev := c.lookup(id)
		if rev != nil {
			return nil, rev
		}
		if !t.forSale {
			return nil, &revert{"Ticket not for sale"}
		}
		if t.owner == from {
			return nil, &revert{"Cannot buy your own ticket"}
		}
		if value.Cmp(t.price) != 0 {
			return nil, &revert{"Incorrect payment amount"}
		}
		if !commit {
			return nil, nil
		}
		seller := t.owner
		c.debit(from, value)
		c.credit(seller, value)
		t.owner = from
		t.forSale = false
		return []*types.Log{c.event(ticketnft.EventSold, []any{new(big.Int).Set(t.price)},
			addrTopic(seller), addrTopic(from), idTopic(id.Uint64()))}, nil

	case "transferTicket":
		holder, to, id := args[0].(ethcommon.Address), args[1].(ethcommon.Address), args[2].(*big.Int)
		if from != c.owner {
			return nil, &revert{"Ownable: caller is not the owner"}
		}
		t, rev := c.ownedBy(id, holder)
		if rev != nil {
			return nil, rev
		}
		if t.used {
			return nil, &revert{"Ticket already used"}
		}
		if to == (ethcommon.Address{}) {
			return nil, &revert{"Invalid recipient"}
		}
		if !commit {
			return nil, nil
		}
		t.owner = to
		t.forSale = false
		return []*types.Log{c.event(ticketnft.EventTransferred, nil, addrTopic(holder), addrTopic(to), idTopic(id.Uint64()))}, nil

	case "validateWithSignature":
		id, nonce, exp, sig := args[0].(*big.Int), args[1].(*big.Int), args[2].(*big.Int), args[3].([]byte)
		t, rev := c.lookup(id)
		if rev != nil {
			return nil, rev
		}
		if t.used {
			return nil, &revert{"Ticket already used"}
		}
		if big.NewInt(c.now().Unix()).Cmp(exp) > 0 {
			return nil, &revert{"Signature expired"}
		}
		key := id.String() + ":" + nonce.String()
		if c.usedNonces[key] {
			return nil, &revert{"Nonce already used"}
		}
		signer, ok := c.recover(id, nonce, exp, sig)
		if !ok || signer != t.owner {
			return nil, &revert{"Invalid signature"}
		}
		if !commit {
			return nil, nil
		}
		c.usedNonces[key] = true
		t.used = true
		t.forSale = false
		return []*types.Log{c.event(ticketnft.EventValidated, nil, idTopic(id.Uint64()), addrTopic(t.owner))}, nil
	}

	return nil, &revert{"function is a view"}
}

// view answers read-only calls.
func (c *Chain) view(data []byte) ([]byte, *revert) {
	if len(data) < 4 {
		return nil, &revert{"unknown selector"}
	}
	m, err := ticketnft.ABI.MethodById(data[:4])
	if err != nil {
		return nil, &revert{"unknown selector"}
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, &revert{"bad calldata"}
	}

	if m.Name == "totalSupply" {
		out, _ := m.Outputs.Pack(big.NewInt(int64(len(c.tickets))))
		return out, nil
	}
	if len(args) != 1 {
		return nil, &revert{"function is not a view"}
	}
	t, rev := c.lookup(args[0].(*big.Int))
	if rev != nil {
		return nil, rev
	}

	var v any
	switch m.Name {
	case "ownerOf":
		v = t.owner
	case "getTicketPrice":
		v = new(big.Int).Set(t.price)
	case "isTicketUsed":
		v = t.used
	case "isForSale":
		v = t.forSale
	case "getEventInfo":
		v = t.eventInfo
	default:
		return nil, &revert{"function is not a view"}
	}
	out, err := m.Outputs.Pack(v)
	if err != nil {
		return nil, &revert{"bad return"}
	}
	return out, nil
}

func (c *Chain) mint(to ethcommon.Address, info string) uint64 {
	c.tickets = append(c.tickets, &ticket{owner: to, price: new(big.Int), eventInfo: info})
	return uint64(len(c.tickets) - 1)
}

func (c *Chain) lookup(id *big.Int) (*ticket, *revert) {
	if !id.IsUint64() || id.Uint64() >= uint64(len(c.tickets)) {
		return nil, &revert{"ERC721: invalid token ID"}
	}
	return c.tickets[id.Uint64()], nil
}

func (c *Chain) ownedBy(id *big.Int, from ethcommon.Address) (*ticket, *revert) {
	t, rev := c.lookup(id)
	if rev != nil {
		return nil, rev
	}
	if t.owner != from {
		return nil, &revert{"Not the ticket owner"}
	}
	return t, nil
}

// recover checks an EIP-191 signature over
// keccak256(contract ++ tokenId ++ nonce ++ expiration).
func (c *Chain) recover(id, nonce, exp *big.Int, sig []byte) (ethcommon.Address, bool) {
	if len(sig) != crypto.SignatureLength {
		return ethcommon.Address{}, false
	}
	s := append([]byte(nil), sig...)
	if s[crypto.RecoveryIDOffset] >= 27 {
		s[crypto.RecoveryIDOffset] -= 27
	}
	hash := crypto.Keccak256(
		c.contract.Bytes(),
		ethcommon.LeftPadBytes(id.Bytes(), 32),
		ethcommon.LeftPadBytes(nonce.Bytes(), 32),
		ethcommon.LeftPadBytes(exp.Bytes(), 32),
	)
	pub, err := crypto.SigToPub(accounts.TextHash(hash), s)
	if err != nil {
		return ethcommon.Address{}, false
	}
	return crypto.PubkeyToAddress(*pub), true
}

func (c *Chain) mintedLog(to ethcommon.Address, id uint64, info string) *types.Log {
	return c.event(ticketnft.EventMinted, []any{info}, addrTopic(to), idTopic(id))
}

func (c *Chain) listedLog(id uint64, owner ethcommon.Address, price *big.Int) *types.Log {
	return c.event(ticketnft.EventListed, []any{new(big.Int).Set(price)}, idTopic(id), addrTopic(owner))
}

func (c *Chain) event(name string, data []any, topics ...ethcommon.Hash) *types.Log {
	ev := ticketnft.ABI.Events[name]
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic("fakechain: pack " + name + ": " + err.Error())
	}
	return &types.Log{
		Address: c.contract,
		Topics:  append([]ethcommon.Hash{ev.ID}, topics...),
		Data:    packed,
	}
}

func addrTopic(a ethcommon.Address) ethcommon.Hash { return ethcommon.BytesToHash(a.Bytes()) }

func idTopic(id uint64) ethcommon.Hash {
	var h ethcommon.Hash
	binary.BigEndian.PutUint64(h[24:], id)
	return h
}
