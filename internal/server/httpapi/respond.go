package httpapi

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/orchestrator"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	ErrorKind common.Kind `json:"errorKind"`
	Message   string      `json:"message"`
}

type txResponse struct {
	TxHash        string `json:"txHash"`
	Message       string `json:"message"`
	BlockNumber   uint64 `json:"blockNumber,omitempty"`
	FundingTxHash string `json:"fundingTxHash,omitempty"`
	TokenID       string `json:"tokenId,omitempty"`
}

var statusByKind = map[common.Kind]int{
	common.KindAuthenticationRequired:  http.StatusUnauthorized,
	common.KindAuthenticationInvalid:   http.StatusUnauthorized,
	common.KindAuthorizationDenied:     http.StatusForbidden,
	common.KindResourceNotFound:        http.StatusNotFound,
	common.KindEventNotFound:           http.StatusNotFound,
	common.KindQRExpired:               http.StatusGone,
	common.KindQRReplayed:              http.StatusConflict,
	common.KindAlreadyExists:           http.StatusConflict,
	common.KindLedgerRejected:          http.StatusUnprocessableEntity,
	common.KindInvalidArgument:         http.StatusBadRequest,
	common.KindUnknownOperation:        http.StatusBadRequest,
	common.KindInvalidCiphertextFormat: http.StatusBadRequest,
	common.KindTransactionTimeout:      http.StatusGatewayTimeout,
	common.KindLedgerUnreachable:       http.StatusBadGateway,
	common.KindGasEstimationFailed:     http.StatusBadGateway,
	common.KindFundingFailed:           http.StatusBadGateway,
	common.KindInvalidReceipt:          http.StatusBadGateway,
}

// Fixed client messages for server-side failures. The full error is only
// logged.
var publicMessage = map[common.Kind]string{
	common.KindLedgerUnreachable:   "ledger node unavailable",
	common.KindGasEstimationFailed: "could not estimate gas for the transaction",
	common.KindFundingFailed:       "custodian could not fund the transaction",
	common.KindInvalidReceipt:      "ledger returned an invalid receipt",
	common.KindDecryptionFailure:   "stored key could not be decrypted",
	common.KindInternal:            "internal error",
}

// StatusOf maps an error to its HTTP status. Unmapped kinds are 500.
func StatusOf(err error) int {
	if st, ok := statusByKind[common.KindOf(err)]; ok {
		return st
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := common.KindOf(err)
	status := StatusOf(err)

	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "kind", kind, "error", err)
		msg = publicMessage[kind]
		if msg == "" {
			msg = publicMessage[common.KindInternal]
		}
	} else {
		s.logger.Warn(r.Context(), "request rejected", "path", r.URL.Path, "kind", kind, "error", err)
	}

	writeJSON(w, status, errorResponse{ErrorKind: kind, Message: msg})
}

func writeTx(w http.ResponseWriter, res *orchestrator.Result, message string) {
	out := txResponse{
		TxHash:      res.TxHash.Hex(),
		Message:     message,
		BlockNumber: res.BlockNumber,
	}
	if res.FundingTxHash != (ethcommon.Hash{}) {
		out.FundingTxHash = res.FundingTxHash.Hex()
	}
	if res.Minted != nil {
		out.TokenID = res.Minted.TokenID.String()
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", common.ErrorInvalidArgument, err)
	}
	return nil
}

// bigParam reads a non-negative integer path parameter.
func bigParam(r *http.Request, name string) (*big.Int, error) {
	return parseBig(name, chi.URLParam(r, name))
}

func parseBig(name, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative integer, got %q", common.ErrorInvalidArgument, name, raw)
	}
	return v, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s is required", common.ErrorInvalidArgument, field)
}
