package ledger

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertPrefix = "execution reverted"

// RejectedError is returned when the node refuses a call or a mined
// transaction reverts. Reason is the node's message with the generic
// revert prefix removed.
type RejectedError struct {
	Code   int
	Reason string
	TxHash ethcommon.Hash
}

func (e *RejectedError) Error() string {
	if e.TxHash != (ethcommon.Hash{}) {
		return fmt.Sprintf("ledger rejected tx %s: %s", e.TxHash.Hex(), e.Reason)
	}
	return "ledger rejected: " + e.Reason
}

func (e *RejectedError) Is(target error) bool {
	return target == common.ErrLedgerRejected
}

// classify maps a client error onto the gateway's error kinds. JSON-RPC
// errors become *RejectedError; everything else is treated as transport
// failure with the endpoint URL stripped.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &RejectedError{Code: rpcErr.ErrorCode(), Reason: revertReason(rpcErr)}
	}

	return fmt.Errorf("%w: %w", common.ErrLedgerUnreachable, stripURL(err))
}

// stripURL drops the endpoint from a *url.Error, keeping the operation and
// cause.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

func revertReason(err rpc.Error) string {
	msg := err.Error()

	if dataErr, ok := err.(rpc.DataError); ok {
		if s, ok := dataErr.ErrorData().(string); ok {
			if raw, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}

	if rest, ok := strings.CutPrefix(msg, revertPrefix); ok {
		rest = strings.TrimPrefix(rest, ":")
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return revertPrefix
		}
		return rest
	}
	return msg
}

// IsRejected reports whether err carries a ledger rejection and returns it.
func IsRejected(err error) (*RejectedError, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// IsInsufficientFunds reports whether the node refused a call because the
// sender's balance cannot cover it.
func IsInsufficientFunds(err error) bool {
	rej, ok := IsRejected(err)
	return ok && strings.Contains(strings.ToLower(rej.Reason), "insufficient funds")
}
