package common

import "errors"

// Kind is the stable, caller-facing name of an error class.
type Kind string

const (
	KindAuthenticationRequired  Kind = "AuthenticationRequired"
	KindAuthenticationInvalid   Kind = "AuthenticationInvalid"
	KindAuthorizationDenied     Kind = "AuthorizationDenied"
	KindResourceNotFound        Kind = "ResourceNotFound"
	KindAlreadyExists           Kind = "AlreadyExists"
	KindInvalidArgument         Kind = "InvalidArgument"
	KindInvalidCiphertextFormat Kind = "InvalidCiphertextFormat"
	KindDecryptionFailure       Kind = "DecryptionFailure"
	KindGasEstimationFailed     Kind = "GasEstimationFailed"
	KindFundingFailed           Kind = "FundingFailed"
	KindLedgerRejected          Kind = "LedgerRejected"
	KindLedgerUnreachable       Kind = "LedgerUnreachable"
	KindEventNotFound           Kind = "EventNotFound"
	KindInvalidReceipt          Kind = "InvalidReceipt"
	KindTransactionTimeout      Kind = "TransactionTimeout"
	KindQRExpired               Kind = "QRExpired"
	KindQRReplayed              Kind = "QRReplayed"
	KindUnknownOperation        Kind = "UnknownOperation"
	KindInternal                Kind = "Internal"
)

// Order matters: wrapping errors may match more than one sentinel, the
// first hit wins. Ledger outcomes come before the generic classes.
var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrQRExpired, KindQRExpired},
	{ErrQRReplayed, KindQRReplayed},
	{ErrGasEstimationFailed, KindGasEstimationFailed},
	{ErrFundingFailed, KindFundingFailed},
	{ErrTransactionTimeout, KindTransactionTimeout},
	{ErrLedgerRejected, KindLedgerRejected},
	{ErrLedgerUnreachable, KindLedgerUnreachable},
	{ErrEventNotFound, KindEventNotFound},
	{ErrInvalidReceipt, KindInvalidReceipt},
	{ErrInvalidCiphertextFormat, KindInvalidCiphertextFormat},
	{ErrDecryptionFailure, KindDecryptionFailure},
	{ErrUnknownOperation, KindUnknownOperation},
	{ErrAuthenticationRequired, KindAuthenticationRequired},
	{ErrInvalidToken, KindAuthenticationInvalid},
	{ErrTokenExpired, KindAuthenticationInvalid},
	{ErrorUnauthorized, KindAuthenticationInvalid},
	{ErrorForbidden, KindAuthorizationDenied},
	{ErrorNotFound, KindResourceNotFound},
	{ErrorAlreadyExists, KindAlreadyExists},
	{ErrorInvalidArgument, KindInvalidArgument},
}

// KindOf classifies err. Anything unrecognised is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
