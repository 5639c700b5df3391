package x402

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

// Token account layout: mint [0:32], owner [32:64].
const (
	tokenAccountOwnerOffset = 32
	tokenAccountOwnerEnd    = 64
)

const defaultLookupConcurrency = 4

var errNotTokenAccount = errors.New("data too short for a token account")

// Verifier checks claimed transactions against ledger state.
type Verifier struct {
	config      *ServerConfig
	ledger      Ledger
	logger      *slog.Logger
	now         func() time.Time
	concurrency int
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithConcurrency bounds the parallel owner lookups per verification.
func WithConcurrency(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

// NewVerifier creates a Verifier for cfg backed by ledger.
func NewVerifier(cfg *ServerConfig, ledger Ledger, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		config:      cfg,
		ledger:      ledger,
		logger:      slog.Default(),
		now:         time.Now,
		concurrency: defaultLookupConcurrency,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Config returns the verifier's server configuration.
func (v *Verifier) Config() *ServerConfig {
	return v.config
}

type verifyParams struct {
	maxAge time.Duration
}

// VerifyOption adjusts a single verification.
type VerifyOption func(*verifyParams)

// WithMaxAge rejects transactions whose block time is older than d.
// Zero disables the check.
func WithMaxAge(d time.Duration) VerifyOption {
	return func(p *verifyParams) {
		p.maxAge = d
	}
}

type credit struct {
	index int
	delta *big.Int
}

// VerifyPayment decides whether the transaction identified by signature paid at
// least expectedAmount (decimal asset units) of the configured asset to the
// configured recipient. Failures are reported in the result, never as errors.
func (v *Verifier) VerifyPayment(ctx context.Context, signature, expectedAmount string, opts ...VerifyOption) VerificationResult {
	params := verifyParams{maxAge: v.config.MaxAge()}
	for _, opt := range opts {
		opt(&params)
	}
	logger := v.logger.With("signature", signature)

	expected, err := ToSmallestUnit(expectedAmount, v.config.Decimals())
	if err != nil {
		return rejected(ReasonInvalidAmount, err.Error())
	}

	if _, err := solana.SignatureFromBase58(signature); err != nil {
		return rejected(ReasonMalformedClaim, fmt.Sprintf("invalid signature: %v", err))
	}

	tx, err := v.ledger.FetchTransaction(ctx, signature)
	if errors.Is(err, ErrTransactionNotFound) || (err == nil && tx == nil) {
		logger.Info("transaction not found")
		return rejected(ReasonNotFound, "transaction not found")
	}
	if err != nil {
		logger.Error("fetch transaction failed", "error", err)
		return rejected(ReasonTransportFailure, fmt.Sprintf("verification failed: %v", err))
	}

	if tx.ExecutionError != "" {
		logger.Info("transaction failed on-chain", "error", tx.ExecutionError)
		return rejected(ReasonExecutionFailed, "transaction failed")
	}

	if params.maxAge > 0 {
		if tx.BlockTime == nil {
			logger.Warn("block time unavailable, skipping freshness check")
		} else if age := v.now().Sub(*tx.BlockTime); age > params.maxAge {
			logger.Info("transaction too old", "age", age, "maxAge", params.maxAge)
			return rejected(ReasonStale, fmt.Sprintf("transaction too old: age %s exceeds max age %s",
				age.Truncate(time.Second), params.maxAge))
		}
	}

	mint := v.config.Asset()
	pre := balancesByIndex(tx.PreTokenBalances, mint)
	post := balancesByIndex(tx.PostTokenBalances, mint)

	var credits []credit
	for _, entry := range tx.PostTokenBalances {
		if entry.Mint != mint {
			continue
		}
		after, ok := parseUnits(entry.Amount)
		if !ok {
			continue
		}
		before := pre[entry.AccountIndex]
		if before == nil {
			before = new(big.Int)
		}
		delta := new(big.Int).Sub(after, before)
		if delta.Sign() > 0 {
			credits = append(credits, credit{index: entry.AccountIndex, delta: delta})
		}
	}
	if len(credits) == 0 {
		return rejected(ReasonNoQualifyingTransfer, "no qualifying transfer found")
	}

	owners, lookupErr := v.resolveOwners(ctx, tx.AccountKeys, credits)
	if err := ctx.Err(); err != nil {
		logger.Error("owner lookup interrupted", "error", err)
		return rejected(ReasonTransportFailure, fmt.Sprintf("verification failed: %v", err))
	}

	var matched *credit
	for i := range credits {
		if owners[i] == v.config.Recipient() {
			matched = &credits[i]
			break
		}
	}
	if matched == nil {
		if lookupErr != nil {
			logger.Error("owner lookup failed", "error", lookupErr)
			return rejected(ReasonTransportFailure, fmt.Sprintf("verification failed: %v", lookupErr))
		}
		return rejected(ReasonNoQualifyingTransfer, "no qualifying transfer found")
	}

	from := v.findSender(ctx, tx, pre, post, matched.index)

	if matched.delta.Cmp(expected) < 0 {
		logger.Info("insufficient amount", "expected", expected.String(), "got", matched.delta.String())
		return rejected(ReasonInsufficientAmount,
			fmt.Sprintf("insufficient amount: expected %s, got %s", expected.String(), matched.delta.String()))
	}

	logger.Info("payment verified", "from", from, "amount", matched.delta.String())
	return VerificationResult{
		Valid:     true,
		Amount:    FromSmallestUnit(matched.delta, v.config.Decimals()).String(),
		From:      from,
		To:        v.config.Recipient(),
		Signature: signature,
		BlockTime: tx.BlockTime,
	}
}

// resolveOwners looks up the owner of every credited account in parallel.
// owners[i] corresponds to credits[i]; failed lookups leave an empty string.
// Missing or non-token accounts are skipped; the first other lookup failure is
// returned so a hung ledger is not mistaken for an absent transfer.
func (v *Verifier) resolveOwners(ctx context.Context, keys []string, credits []credit) ([]string, error) {
	owners := make([]string, len(credits))
	failures := make([]error, len(credits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, c := range credits {
		if c.index < 0 || c.index >= len(keys) {
			continue
		}
		address := keys[c.index]
		g.Go(func() error {
			owner, err := v.resolveOwner(gctx, address)
			if err != nil {
				v.logger.Debug("owner lookup failed", "account", address, "error", err)
				if !errors.Is(err, ErrAccountNotFound) && !errors.Is(err, errNotTokenAccount) {
					failures[i] = err
				}
				return nil
			}
			owners[i] = owner
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range failures {
		if err != nil {
			return owners, err
		}
	}
	return owners, nil
}

// findSender returns the owner of the first other account whose balance on
// the asset decreased, or UnknownSender.
func (v *Verifier) findSender(ctx context.Context, tx *LedgerTransaction, pre, post map[int]*big.Int, recipientIndex int) string {
	for _, entry := range tx.PreTokenBalances {
		if entry.Mint != v.config.Asset() || entry.AccountIndex == recipientIndex {
			continue
		}
		before := pre[entry.AccountIndex]
		after := post[entry.AccountIndex]
		if after == nil {
			after = new(big.Int)
		}
		if before == nil || before.Cmp(after) <= 0 {
			continue
		}
		if entry.AccountIndex < 0 || entry.AccountIndex >= len(tx.AccountKeys) {
			return UnknownSender
		}
		owner, err := v.resolveOwner(ctx, tx.AccountKeys[entry.AccountIndex])
		if err != nil {
			v.logger.Debug("sender lookup failed", "account", tx.AccountKeys[entry.AccountIndex], "error", err)
			return UnknownSender
		}
		return owner
	}
	return UnknownSender
}

func (v *Verifier) resolveOwner(ctx context.Context, address string) (string, error) {
	data, err := v.ledger.FetchAccountState(ctx, address)
	if err != nil {
		return "", err
	}
	if len(data) < tokenAccountOwnerEnd {
		return "", fmt.Errorf("account %s: %w (%d bytes)", address, errNotTokenAccount, len(data))
	}
	return solana.PublicKeyFromBytes(data[tokenAccountOwnerOffset:tokenAccountOwnerEnd]).String(), nil
}

func balancesByIndex(balances []TokenBalance, mint string) map[int]*big.Int {
	out := make(map[int]*big.Int, len(balances))
	for _, entry := range balances {
		if entry.Mint != mint {
			continue
		}
		if units, ok := parseUnits(entry.Amount); ok {
			out[entry.AccountIndex] = units
		}
	}
	return out
}
