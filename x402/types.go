package x402

// x402 v1 payment types for Solana SPL-token payments.
// Settlement-style responses reuse the official github.com/coinbase/x402/go types.
// Based on: https://github.com/coinbase/x402/blob/main/specs/x402-specification.md

import (
	"time"

	x402sdk "github.com/coinbase/x402/go"
)

const (
	X402Version           = 1
	SchemeExact           = "exact"
	PaymentHeader         = "X-PAYMENT"
	PaymentResponseHeader = "X-PAYMENT-RESPONSE"
	DefaultMimeType       = "application/json"
	UnknownSender         = "unknown"
)

// Re-export official types for convenience
type (
	// SettleResponse is the official x402 settle response type, used for X-PAYMENT-RESPONSE
	SettleResponse = x402sdk.SettleResponse

	// Network is the official x402 network type
	Network = x402sdk.Network
)

// InputSchema describes how the protected resource is called.
type InputSchema struct {
	Type         string `json:"type"`
	Method       string `json:"method"`
	Discoverable bool   `json:"discoverable"`
}

// OutputSchema is the structured access hint carried in a requirement.
type OutputSchema struct {
	Input InputSchema `json:"input"`
}

// Extra carries scheme-specific data; only the fee payer is defined for Solana.
type Extra struct {
	FeePayer string `json:"feePayer,omitempty"`
}

// PaymentRequirement is a single acceptable payment option.
type PaymentRequirement struct {
	Scheme            string        `json:"scheme"`
	Network           string        `json:"network"`
	MaxAmountRequired string        `json:"maxAmountRequired"`
	Resource          string        `json:"resource"`
	Description       string        `json:"description"`
	MimeType          string        `json:"mimeType"`
	PayTo             string        `json:"payTo"`
	MaxTimeoutSeconds int           `json:"maxTimeoutSeconds"`
	Asset             string        `json:"asset"`
	OutputSchema      *OutputSchema `json:"outputSchema"`
	Extra             *Extra        `json:"extra"`
}

// PaymentRequiredResponse is the HTTP 402 response body.
type PaymentRequiredResponse struct {
	X402Version int                  `json:"x402Version"`
	Accepts     []PaymentRequirement `json:"accepts"`
	Error       string               `json:"error,omitempty"`
}

// VerificationResult is the outcome of one ledger verification.
type VerificationResult struct {
	Valid     bool       `json:"valid"`
	Amount    string     `json:"amount,omitempty"`
	From      string     `json:"from,omitempty"`
	To        string     `json:"to,omitempty"`
	Signature string     `json:"signature,omitempty"`
	BlockTime *time.Time `json:"blockTime,omitempty"`
	Reason    Reason     `json:"reason,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// PaymentClaim is the decoded X-PAYMENT header.
type PaymentClaim struct {
	Signature   string
	X402Version int
	Scheme      string
	Network     string
}

func rejected(reason Reason, msg string) VerificationResult {
	return VerificationResult{Valid: false, Reason: reason, Error: msg}
}
