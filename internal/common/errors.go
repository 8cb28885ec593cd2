// Package common defines shared sentinel errors and helpers used across the
// ticketkeeper packages. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal        = errors.New("internal error")
	ErrorUnauthorized    = errors.New("unauthorized")
	ErrorForbidden       = errors.New("access denied")
	ErrorInvalidArgument = errors.New("invalid argument")

	// Auth errors.
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInvalidToken           = errors.New("invalid token")
	ErrTokenExpired           = errors.New("token expired")

	// Key vault errors.
	ErrInvalidCiphertextFormat = errors.New("invalid ciphertext format")
	ErrDecryptionFailure       = errors.New("decryption failure")

	// Ledger errors.
	ErrLedgerUnreachable   = errors.New("ledger unreachable")
	ErrLedgerRejected      = errors.New("ledger rejected")
	ErrGasEstimationFailed = errors.New("gas estimation failed")
	ErrFundingFailed       = errors.New("funding failed")
	ErrEventNotFound       = errors.New("event not found")
	ErrInvalidReceipt      = errors.New("invalid receipt")
	ErrTransactionTimeout  = errors.New("transaction confirmation timed out")
	ErrUnknownOperation    = errors.New("unknown operation")

	// QR authorization errors.
	ErrQRExpired  = errors.New("qr payload expired")
	ErrQRReplayed = errors.New("qr payload already used")
)
