package httpapi

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/pricing"
	"github.com/dmitrijs2005/ticketkeeper/internal/qrauth"
	"github.com/dmitrijs2005/ticketkeeper/internal/ticketnft"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
)

type ticketView struct {
	TokenID  string `json:"tokenId"`
	PriceWei string `json:"priceWei"`
	PriceUSD string `json:"priceUsd"`
	Owner    string `json:"owner"`
	Used     bool   `json:"used"`
	ForSale  bool   `json:"forSale"`
	EventID  string `json:"eventId"`
}

func (s *Server) newTicketView(t *ticketnft.TicketRecord) ticketView {
	return ticketView{
		TokenID:  t.TokenID.String(),
		PriceWei: t.PriceWei.String(),
		PriceUSD: s.tickets.Prices().WeiToUSD(t.PriceWei).StringFixed(2),
		Owner:    t.Owner.Hex(),
		Used:     t.Used,
		ForSale:  t.ForSale,
		EventID:  t.EventID,
	}
}

type mintedView struct {
	TokenID     string `json:"tokenId"`
	To          string `json:"to"`
	EventID     string `json:"eventId"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

type qrView struct {
	TokenID    string        `json:"tokenId"`
	Nonce      int64         `json:"nonce"`
	Expiration int64         `json:"expiration"`
	Signature  hexutil.Bytes `json:"signature"`
}

func (v qrView) payload() (qrauth.Payload, error) {
	id, err := parseBig("tokenId", v.TokenID)
	if err != nil {
		return qrauth.Payload{}, err
	}
	return qrauth.Payload{TokenID: id, Nonce: v.Nonce, Expiration: v.Expiration, Signature: v.Signature}, nil
}

type mintRequest struct {
	To       string `json:"to"`
	EventID  string `json:"eventId"`
	PriceUSD string `json:"priceUsd"`
}

type listRequest struct {
	PriceUSD string `json:"priceUsd"`
}

type transferRequest struct {
	To string `json:"to"`
}

func (s *Server) listTickets(w http.ResponseWriter, r *http.Request) {
	recs, err := s.tickets.Tickets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]ticketView, 0, len(recs))
	for _, t := range recs {
		out = append(out, s.newTicketView(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTicket(w http.ResponseWriter, r *http.Request) {
	id, err := bigParam(r, "tokenId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.tickets.Ticket(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.newTicketView(t))
}

func (s *Server) walletTickets(w http.ResponseWriter, r *http.Request) {
	events, err := s.tickets.MintedTo(r.Context(), chi.URLParam(r, "wallet"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]mintedView, 0, len(events))
	for _, e := range events {
		out = append(out, mintedView{
			TokenID:     e.TokenID.String(),
			To:          e.To.Hex(),
			EventID:     e.EventInfo,
			TxHash:      e.TxHash.Hex(),
			BlockNumber: e.BlockNumber,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.EventID == "" {
		s.writeError(w, r, missing("eventId"))
		return
	}

	res, err := s.tickets.Mint(r.Context(), userIDFrom(r.Context()), req.To, req.EventID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTx(w, res, "ticket minted")
}

func (s *Server) mintAndList(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.EventID == "" {
		s.writeError(w, r, missing("eventId"))
		return
	}
	price, err := pricing.ParseUSD(req.PriceUSD)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.tickets.MintAndList(r.Context(), userIDFrom(r.Context()), req.To, req.EventID, price)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTx(w, res, "ticket minted and listed")
}

func (s *Server) listForSale(w http.ResponseWriter, r *http.Request) {
	id, err := bigParam(r, "tokenId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req listRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	price, err := pricing.ParseUSD(req.PriceUSD)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.tickets.List(r.Context(), userIDFrom(r.Context()), id, price)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTx(w, res, "ticket listed for sale")
}

func (s *Server) unlist(w http.ResponseWriter, r *http.Request) {
	id, err := bigParam(r, "tokenId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.tickets.Unlist(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTx(w, res, "ticket removed from sale")
}

func (s *Server) buy(w http.ResponseWriter, r *http.Request) {
	id, err := bigParam(r, "tokenId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.tickets.Buy(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTx(w, res, "ticket purchased")
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	id, err := bigParam(r, "tokenId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.To == "" {
		s.writeError(w, r, missing("to"))
		return
	}

	res, err := s.tickets.Transfer(r.Context(), userIDFrom(r.Context()), id, req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTx(w, res, "ticket transferred")
}

func (s *Server) generateQR(w http.ResponseWriter, r *http.Request) {
	id, err := bigParam(r, "tokenId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.tickets.GenerateQR(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qrView{
		TokenID:    p.TokenID.String(),
		Nonce:      p.Nonce,
		Expiration: p.Expiration,
		Signature:  p.Signature,
	})
}

func (s *Server) validateQR(w http.ResponseWriter, r *http.Request) {
	var req qrView
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := req.payload()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.tickets.ValidateQR(r.Context(), userIDFrom(r.Context()), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTx(w, res, "ticket validated")
}

// operationRequest carries the union of fields any operation kind needs.
// Prices here are raw wei.
type operationRequest struct {
	To         string        `json:"to"`
	EventInfo  string        `json:"eventInfo"`
	PriceWei   string        `json:"priceWei"`
	TokenID    string        `json:"tokenId"`
	Nonce      string        `json:"nonce"`
	Expiration string        `json:"expiration"`
	Signature  hexutil.Bytes `json:"signature"`
}

func (req operationRequest) build(kind ticketnft.Kind) (ticketnft.Operation, error) {
	optionalBig := func(name, raw string) (*big.Int, error) {
		if raw == "" {
			return nil, nil
		}
		return parseBig(name, raw)
	}
	address := func() (ethcommon.Address, error) {
		if !ethcommon.IsHexAddress(req.To) {
			return ethcommon.Address{}, missing("to (a hex address)")
		}
		return ethcommon.HexToAddress(req.To), nil
	}

	price, err := optionalBig("priceWei", req.PriceWei)
	if err != nil {
		return nil, err
	}

	switch kind {
	case ticketnft.KindMintTicket, ticketnft.KindMintAndList:
		to, err := address()
		if err != nil {
			return nil, err
		}
		if kind == ticketnft.KindMintTicket {
			return ticketnft.MintTicket{To: to, EventInfo: req.EventInfo}, nil
		}
		return ticketnft.MintAndList{To: to, EventInfo: req.EventInfo, Price: price}, nil
	}

	id, err := parseBig("tokenId", req.TokenID)
	if err != nil {
		return nil, err
	}

	switch kind {
	case ticketnft.KindSetForSale:
		return ticketnft.SetForSale{TokenID: id, Price: price}, nil
	case ticketnft.KindRemoveFromSale:
		return ticketnft.RemoveFromSale{TokenID: id}, nil
	case ticketnft.KindBuyTicket:
		return ticketnft.BuyTicket{TokenID: id, Price: price}, nil
	case ticketnft.KindTransferTicket:
		to, err := address()
		if err != nil {
			return nil, err
		}
		return ticketnft.TransferTicket{To: to, TokenID: id}, nil
	case ticketnft.KindValidateWithSignature:
		nonce, err := parseBig("nonce", req.Nonce)
		if err != nil {
			return nil, err
		}
		exp, err := parseBig("expiration", req.Expiration)
		if err != nil {
			return nil, err
		}
		return ticketnft.ValidateWithSignature{TokenID: id, Nonce: nonce, Expiration: exp, Signature: req.Signature}, nil
	}
	return nil, common.ErrUnknownOperation
}

func (s *Server) submitOperation(w http.ResponseWriter, r *http.Request) {
	kind, err := ticketnft.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req operationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	op, err := req.build(kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.tickets.Submit(r.Context(), userIDFrom(r.Context()), op)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTx(w, res, string(kind)+" confirmed")
}

func (s *Server) latestBlock(w http.ResponseWriter, r *http.Request) {
	b, err := s.tickets.LatestBlock(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) blockByNumber(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(chi.URLParam(r, "number"), 10, 64)
	if err != nil {
		s.writeError(w, r, missing("number (a block number)"))
		return
	}
	b, err := s.tickets.Block(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
