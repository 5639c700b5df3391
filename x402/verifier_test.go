package x402

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestVerifyPaymentExactAmount(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")

	if !result.Valid {
		t.Fatalf("expected valid payment, got %+v", result)
	}
	if result.Amount != "0.01" {
		t.Fatalf("expected amount 0.01, got %s", result.Amount)
	}
	if result.From != f.sender {
		t.Fatalf("expected from %s, got %s", f.sender, result.From)
	}
	if result.To != f.recipient {
		t.Fatalf("expected to %s, got %s", f.recipient, result.To)
	}
	if result.Signature != f.signature {
		t.Fatalf("expected signature to be echoed")
	}
}

func TestVerifyPaymentOverpaymentIsValid(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "25000")
	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
	if !result.Valid {
		t.Fatalf("expected valid payment, got %+v", result)
	}
	if result.Amount != "0.025" {
		t.Fatalf("expected amount 0.025, got %s", result.Amount)
	}
}

func TestVerifyPaymentInsufficient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		units    string
		expected string
		wantMsg  []string
	}{
		{
			name:     "one unit short",
			units:    "9999",
			expected: "0.01",
			wantMsg:  []string{"expected 10000", "got 9999"},
		},
		{
			name:     "half the price",
			units:    "10000",
			expected: "0.02",
			wantMsg:  []string{"expected 20000", "got 10000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newPaymentFixture(t, tt.units)
			result := f.verifier().VerifyPayment(context.Background(), f.signature, tt.expected)
			if result.Valid {
				t.Fatalf("expected invalid payment")
			}
			if result.Reason != ReasonInsufficientAmount {
				t.Fatalf("expected reason %s, got %s", ReasonInsufficientAmount, result.Reason)
			}
			for _, want := range tt.wantMsg {
				if !strings.Contains(result.Error, want) {
					t.Fatalf("expected error %q to contain %q", result.Error, want)
				}
			}
		})
	}
}

func TestVerifyPaymentNotFound(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	result := f.verifier().VerifyPayment(context.Background(), newSignature(t), "0.01")
	if result.Valid || result.Reason != ReasonNotFound {
		t.Fatalf("expected not_found, got %+v", result)
	}
	if result.Error != "transaction not found" {
		t.Fatalf("unexpected error message %q", result.Error)
	}
	if calls := f.ledger.accountCalls.Load(); calls != 0 {
		t.Fatalf("expected no account lookups, got %d", calls)
	}
}

func TestVerifyPaymentExecutionFailed(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	f.ledger.txs[f.signature].ExecutionError = "map[InstructionError:[3 map[Custom:1]]]"

	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
	if result.Valid || result.Reason != ReasonExecutionFailed {
		t.Fatalf("expected execution_failed, got %+v", result)
	}
	if result.Error != "transaction failed" {
		t.Fatalf("unexpected error message %q", result.Error)
	}
}

func TestVerifyPaymentTransportFailure(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	f.ledger.txErr = errors.New("dial tcp: connection refused")

	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
	if result.Valid || result.Reason != ReasonTransportFailure {
		t.Fatalf("expected transport_failure, got %+v", result)
	}
	if !strings.HasPrefix(result.Error, "verification failed:") {
		t.Fatalf("unexpected error message %q", result.Error)
	}
}

func TestVerifyPaymentCreditToOtherOwner(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	// Re-own the credited account by a stranger.
	f.ledger.addTokenAccount(f.recipientToken, USDCDevnetMint, newAddress())

	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
	if result.Valid || result.Reason != ReasonNoQualifyingTransfer {
		t.Fatalf("expected no_qualifying_transfer, got %+v", result)
	}
}

func TestVerifyPaymentIgnoresOtherMints(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	tx := f.ledger.txs[f.signature]
	otherMint := newAddress()
	for i := range tx.PreTokenBalances {
		tx.PreTokenBalances[i].Mint = otherMint
	}
	for i := range tx.PostTokenBalances {
		tx.PostTokenBalances[i].Mint = otherMint
	}

	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
	if result.Valid || result.Reason != ReasonNoQualifyingTransfer {
		t.Fatalf("expected no_qualifying_transfer, got %+v", result)
	}
	if calls := f.ledger.accountCalls.Load(); calls != 0 {
		t.Fatalf("expected no account lookups, got %d", calls)
	}
}

func TestVerifyPaymentMissingPreBalanceCountsAsZero(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	tx := f.ledger.txs[f.signature]
	// Recipient token account created in this transaction: no pre entry.
	tx.PreTokenBalances = tx.PreTokenBalances[:1]

	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
	if !result.Valid {
		t.Fatalf("expected valid payment, got %+v", result)
	}
	if result.Amount != "0.01" {
		t.Fatalf("expected amount 0.01, got %s", result.Amount)
	}
}

func TestVerifyPaymentScansPastForeignCredits(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	tx := f.ledger.txs[f.signature]

	// A stranger's account is credited first in post-balance order.
	strangerToken := newAddress()
	f.ledger.addTokenAccount(strangerToken, USDCDevnetMint, newAddress())
	tx.AccountKeys = append(tx.AccountKeys, strangerToken)
	strangerIndex := len(tx.AccountKeys) - 1
	tx.PostTokenBalances = append([]TokenBalance{
		{AccountIndex: strangerIndex, Mint: USDCDevnetMint, Amount: "500"},
	}, tx.PostTokenBalances...)

	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
	if !result.Valid {
		t.Fatalf("expected valid payment, got %+v", result)
	}
	if result.Amount != "0.01" {
		t.Fatalf("expected the recipient credit of 0.01, got %s", result.Amount)
	}
}

func TestVerifyPaymentFirstRecipientCreditWins(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	tx := f.ledger.txs[f.signature]

	// A second recipient-owned account credited later must not be chosen.
	secondToken := newAddress()
	f.ledger.addTokenAccount(secondToken, USDCDevnetMint, f.recipient)
	tx.AccountKeys = append(tx.AccountKeys, secondToken)
	tx.PostTokenBalances = append(tx.PostTokenBalances, TokenBalance{
		AccountIndex: len(tx.AccountKeys) - 1, Mint: USDCDevnetMint, Amount: "90000",
	})

	for i := 0; i < 20; i++ {
		result := f.verifier(WithConcurrency(8)).VerifyPayment(context.Background(), f.signature, "0.01")
		if !result.Valid || result.Amount != "0.01" {
			t.Fatalf("iteration %d: expected first credit 0.01, got %+v", i, result)
		}
	}
}

func TestVerifyPaymentOwnerLookupFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded},
		{name: "rpc error", err: errors.New("rpc: 503 service unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newPaymentFixture(t, "10000")
			f.ledger.accountErrs[f.recipientToken] = tt.err

			result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
			if result.Valid || result.Reason != ReasonTransportFailure {
				t.Fatalf("expected transport_failure, got %+v", result)
			}
			if !strings.HasPrefix(result.Error, "verification failed:") {
				t.Fatalf("unexpected error message %q", result.Error)
			}
		})
	}
}

func TestVerifyPaymentSkipsFailedForeignLookup(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	tx := f.ledger.txs[f.signature]

	// An earlier credited account whose lookup times out must not hide the
	// recipient's credit.
	slowToken := newAddress()
	f.ledger.accountErrs[slowToken] = context.DeadlineExceeded
	tx.AccountKeys = append(tx.AccountKeys, slowToken)
	tx.PostTokenBalances = append([]TokenBalance{
		{AccountIndex: len(tx.AccountKeys) - 1, Mint: USDCDevnetMint, Amount: "500"},
	}, tx.PostTokenBalances...)

	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
	if !result.Valid {
		t.Fatalf("expected valid payment, got %+v", result)
	}
}

func TestVerifyPaymentMissingCreditedAccount(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	delete(f.ledger.accounts, f.recipientToken)

	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
	if result.Valid || result.Reason != ReasonNoQualifyingTransfer {
		t.Fatalf("expected no_qualifying_transfer, got %+v", result)
	}
}

func TestVerifyPaymentInvalidSignature(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	result := f.verifier().VerifyPayment(context.Background(), "not-a-signature!", "0.01")
	if result.Valid || result.Reason != ReasonMalformedClaim {
		t.Fatalf("expected malformed_claim, got %+v", result)
	}
	if calls := f.ledger.txCalls.Load(); calls != 0 {
		t.Fatalf("expected no ledger calls, got %d", calls)
	}
}

func TestVerifyPaymentShortAccountData(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	f.ledger.accounts[f.recipientToken] = make([]byte, 40)

	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
	if result.Valid || result.Reason != ReasonNoQualifyingTransfer {
		t.Fatalf("expected no_qualifying_transfer, got %+v", result)
	}
}

func TestVerifyPaymentUnknownSender(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	delete(f.ledger.accounts, f.senderToken)

	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
	if !result.Valid {
		t.Fatalf("expected valid payment, got %+v", result)
	}
	if result.From != UnknownSender {
		t.Fatalf("expected from %q, got %q", UnknownSender, result.From)
	}
}

func TestVerifyPaymentFreshness(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	late := func() time.Time { return f.blockTime.Add(10 * time.Minute) }

	result := f.verifier(WithClock(late)).VerifyPayment(context.Background(), f.signature, "0.01")
	if result.Valid || result.Reason != ReasonStale {
		t.Fatalf("expected stale with default max age, got %+v", result)
	}

	result = f.verifier(WithClock(late)).VerifyPayment(context.Background(), f.signature, "0.01", WithMaxAge(time.Hour))
	if !result.Valid {
		t.Fatalf("expected valid with one hour max age, got %+v", result)
	}

	result = f.verifier(WithClock(late)).VerifyPayment(context.Background(), f.signature, "0.01", WithMaxAge(0))
	if !result.Valid {
		t.Fatalf("expected valid with freshness disabled, got %+v", result)
	}
}

func TestVerifyPaymentMissingBlockTime(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	f.ledger.txs[f.signature].BlockTime = nil

	result := f.verifier().VerifyPayment(context.Background(), f.signature, "0.01")
	if !result.Valid {
		t.Fatalf("expected valid payment without block time, got %+v", result)
	}
}

func TestVerifyPaymentInvalidExpectedAmount(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	result := f.verifier().VerifyPayment(context.Background(), f.signature, "ten cents")
	if result.Valid || result.Reason != ReasonInvalidAmount {
		t.Fatalf("expected invalid_amount, got %+v", result)
	}
	if calls := f.ledger.txCalls.Load(); calls != 0 {
		t.Fatalf("expected no ledger calls, got %d", calls)
	}
}

func TestVerifyPaymentIdempotent(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	v := f.verifier()

	first := v.VerifyPayment(context.Background(), f.signature, "0.01")
	second := v.VerifyPayment(context.Background(), f.signature, "0.01")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestVerifyPaymentCancelledContext(t *testing.T) {
	t.Parallel()

	f := newPaymentFixture(t, "10000")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := f.verifier().VerifyPayment(ctx, f.signature, "0.01")
	if result.Valid || result.Reason != ReasonTransportFailure {
		t.Fatalf("expected transport_failure, got %+v", result)
	}
}
