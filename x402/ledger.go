package x402

import (
	"context"
	"time"
)

// TokenBalance is one token-balance snapshot entry of a transaction.
type TokenBalance struct {
	// AccountIndex indexes the transaction's account key list.
	AccountIndex int

	// Mint is the token mint address.
	Mint string

	// Amount is the raw balance in the token's smallest unit.
	Amount string
}

// LedgerTransaction is the subset of a confirmed transaction the verifier needs.
type LedgerTransaction struct {
	Signature string

	// ExecutionError is non-empty when the transaction failed on-chain.
	ExecutionError string

	// BlockTime is nil when the node did not report one.
	BlockTime *time.Time

	// AccountKeys includes addresses loaded from lookup tables, in index order.
	AccountKeys []string

	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// Ledger answers the two queries verification needs.
// FetchTransaction returns ErrTransactionNotFound for unknown signatures and
// FetchAccountState returns ErrAccountNotFound for missing accounts.
type Ledger interface {
	FetchTransaction(ctx context.Context, signature string) (*LedgerTransaction, error)
	FetchAccountState(ctx context.Context, address string) ([]byte, error)
}
