package x402

import "errors"

// Sentinel errors for configuration and claim handling.
var (
	// ErrMissingRecipient indicates the server configuration has no recipient address.
	ErrMissingRecipient = errors.New("x402: recipient address is required")

	// ErrInvalidAddress indicates a value that is not a base58 Solana address.
	ErrInvalidAddress = errors.New("x402: invalid address")

	// ErrInvalidNetwork indicates an unsupported network selector.
	ErrInvalidNetwork = errors.New("x402: invalid or unsupported network")

	// ErrInvalidAmount indicates an amount string that is not a non-negative decimal.
	ErrInvalidAmount = errors.New("x402: invalid amount")

	// ErrInvalidTimeout indicates a non-positive timeout or max age outside its bounds.
	ErrInvalidTimeout = errors.New("x402: invalid timeout")

	// ErrMalformedClaim indicates the X-PAYMENT header could not be decoded.
	ErrMalformedClaim = errors.New("x402: malformed payment header")

	// ErrTransactionNotFound is returned by a Ledger when the signature is unknown.
	ErrTransactionNotFound = errors.New("x402: transaction not found")

	// ErrAccountNotFound is returned by a Ledger when the account does not exist.
	ErrAccountNotFound = errors.New("x402: account not found")
)

// Reason classifies why a verification was rejected.
type Reason string

const (
	ReasonNotFound             Reason = "not_found"
	ReasonExecutionFailed      Reason = "execution_failed"
	ReasonNoQualifyingTransfer Reason = "no_qualifying_transfer"
	ReasonInsufficientAmount   Reason = "insufficient_amount"
	ReasonMalformedClaim       Reason = "malformed_claim"
	ReasonTransportFailure     Reason = "transport_failure"
	ReasonStale                Reason = "stale"
	ReasonInvalidAmount        Reason = "invalid_amount"
)
