// Package ledger adapts a Solana JSON-RPC endpoint to the x402.Ledger interface.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/andrewreder/solana-x402/go-api/x402"
)

// RPCClient is the subset of *rpc.Client used by the adapter.
// This allows for dependency injection and easier testing.
type RPCClient interface {
	GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}

var (
	_ RPCClient   = (*rpc.Client)(nil)
	_ x402.Ledger = (*Solana)(nil)
)

// Solana implements x402.Ledger over Solana RPC at confirmed commitment.
type Solana struct {
	client  RPCClient
	timeout time.Duration
}

// Option configures a Solana ledger.
type Option func(*Solana)

// WithRPCClient sets a custom RPC client.
func WithRPCClient(client RPCClient) Option {
	return func(s *Solana) {
		s.client = client
	}
}

// WithTimeout bounds every RPC round-trip.
func WithTimeout(d time.Duration) Option {
	return func(s *Solana) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewSolana creates a ledger for the endpoint at rpcURL.
func NewSolana(rpcURL string, opts ...Option) *Solana {
	s := &Solana{timeout: x402.DefaultRPCTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = rpc.New(rpcURL)
	}
	return s
}

// FromConfig creates a ledger using the endpoint and timeout of cfg.
func FromConfig(cfg *x402.ServerConfig, opts ...Option) *Solana {
	opts = append([]Option{WithTimeout(cfg.RPCTimeout())}, opts...)
	return NewSolana(cfg.RPCURL(), opts...)
}

// FetchTransaction implements x402.Ledger.
func (s *Solana) FetchTransaction(ctx context.Context, signature string) (*x402.LedgerTransaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	maxVersion := uint64(0)
	result, err := s.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, x402.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if result == nil || result.Transaction == nil {
		return nil, x402.ErrTransactionNotFound
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	out := &x402.LedgerTransaction{Signature: signature}
	keys := make([]string, 0, len(tx.Message.AccountKeys))
	for _, key := range tx.Message.AccountKeys {
		keys = append(keys, key.String())
	}

	if result.BlockTime != nil {
		blockTime := result.BlockTime.Time()
		out.BlockTime = &blockTime
	}

	if meta := result.Meta; meta != nil {
		if meta.Err != nil {
			out.ExecutionError = fmt.Sprint(meta.Err)
		}
		// Versioned transactions index loaded addresses after the static keys:
		// writable first, then read-only.
		for _, key := range meta.LoadedAddresses.Writable {
			keys = append(keys, key.String())
		}
		for _, key := range meta.LoadedAddresses.ReadOnly {
			keys = append(keys, key.String())
		}
		out.PreTokenBalances = convertBalances(meta.PreTokenBalances)
		out.PostTokenBalances = convertBalances(meta.PostTokenBalances)
	}
	out.AccountKeys = keys

	return out, nil
}

// FetchAccountState implements x402.Ledger.
func (s *Solana) FetchAccountState(ctx context.Context, address string) ([]byte, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid account address %q: %w", address, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.client.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, x402.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account info: %w", err)
	}
	if result == nil || result.Value == nil || result.Value.Data == nil {
		return nil, x402.ErrAccountNotFound
	}
	return result.Value.Data.GetBinary(), nil
}

func convertBalances(balances []rpc.TokenBalance) []x402.TokenBalance {
	out := make([]x402.TokenBalance, 0, len(balances))
	for _, b := range balances {
		entry := x402.TokenBalance{
			AccountIndex: int(b.AccountIndex),
			Mint:         b.Mint.String(),
		}
		if b.UiTokenAmount != nil {
			entry.Amount = b.UiTokenAmount.Amount
		}
		out = append(out, entry)
	}
	return out
}
