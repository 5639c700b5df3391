package x402

import (
	"context"
	"crypto/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
)

// fakeLedger serves recorded transactions and account data without a network.
type fakeLedger struct {
	mu          sync.Mutex
	txs         map[string]*LedgerTransaction
	accounts    map[string][]byte
	txErr       error
	accountErrs map[string]error

	txCalls      atomic.Int32
	accountCalls atomic.Int32
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		txs:         make(map[string]*LedgerTransaction),
		accounts:    make(map[string][]byte),
		accountErrs: make(map[string]error),
	}
}

func (f *fakeLedger) FetchTransaction(ctx context.Context, signature string) (*LedgerTransaction, error) {
	f.txCalls.Add(1)
	if f.txErr != nil {
		return nil, f.txErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[signature]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

func (f *fakeLedger) FetchAccountState(ctx context.Context, address string) ([]byte, error) {
	f.accountCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.accountErrs[address]; ok {
		return nil, err
	}
	data, ok := f.accounts[address]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return data, nil
}

// addTokenAccount registers a 165-byte SPL token account owned by owner.
func (f *fakeLedger) addTokenAccount(address, mint, owner string) {
	data := make([]byte, 165)
	m := solana.MustPublicKeyFromBase58(mint)
	o := solana.MustPublicKeyFromBase58(owner)
	copy(data[0:32], m[:])
	copy(data[32:64], o[:])
	f.mu.Lock()
	f.accounts[address] = data
	f.mu.Unlock()
}

func (f *fakeLedger) addTransaction(tx *LedgerTransaction) {
	f.mu.Lock()
	f.txs[tx.Signature] = tx
	f.mu.Unlock()
}

func newAddress() string {
	return solana.NewWallet().PublicKey().String()
}

func newSignature(t *testing.T) string {
	t.Helper()
	var sig solana.Signature
	if _, err := rand.Read(sig[:]); err != nil {
		t.Fatalf("generate signature: %v", err)
	}
	return sig.String()
}

// paymentFixture is a standard sender → recipient USDC transfer on devnet.
type paymentFixture struct {
	ledger         *fakeLedger
	config         *ServerConfig
	recipient      string
	sender         string
	recipientToken string
	senderToken    string
	signature      string
	blockTime      time.Time
}

// newPaymentFixture records a transaction moving units from the sender's
// token account (index 1) to the recipient's (index 2).
func newPaymentFixture(t *testing.T, units string) *paymentFixture {
	t.Helper()

	f := &paymentFixture{
		ledger:         newFakeLedger(),
		recipient:      newAddress(),
		sender:         newAddress(),
		recipientToken: newAddress(),
		senderToken:    newAddress(),
		signature:      newSignature(t),
		blockTime:      time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC),
	}

	cfg, err := NewServerConfig(ServerOptions{
		RecipientAddress: f.recipient,
		Network:          NetworkDevnet,
	})
	if err != nil {
		t.Fatalf("NewServerConfig error: %v", err)
	}
	f.config = cfg

	f.ledger.addTokenAccount(f.senderToken, USDCDevnetMint, f.sender)
	f.ledger.addTokenAccount(f.recipientToken, USDCDevnetMint, f.recipient)

	senderAfter := mustSub(t, "5000000", units)
	blockTime := f.blockTime
	f.ledger.addTransaction(&LedgerTransaction{
		Signature:   f.signature,
		BlockTime:   &blockTime,
		AccountKeys: []string{f.sender, f.senderToken, f.recipientToken, USDCDevnetMint, solana.TokenProgramID.String()},
		PreTokenBalances: []TokenBalance{
			{AccountIndex: 1, Mint: USDCDevnetMint, Amount: "5000000"},
			{AccountIndex: 2, Mint: USDCDevnetMint, Amount: "0"},
		},
		PostTokenBalances: []TokenBalance{
			{AccountIndex: 1, Mint: USDCDevnetMint, Amount: senderAfter},
			{AccountIndex: 2, Mint: USDCDevnetMint, Amount: units},
		},
	})

	return f
}

// verifier returns a Verifier whose clock sits one minute after the block time.
func (f *paymentFixture) verifier(opts ...VerifierOption) *Verifier {
	clock := func() time.Time { return f.blockTime.Add(time.Minute) }
	opts = append([]VerifierOption{WithClock(clock)}, opts...)
	return NewVerifier(f.config, f.ledger, opts...)
}

func mustSub(t *testing.T, a, b string) string {
	t.Helper()
	x, ok := parseUnits(a)
	if !ok {
		t.Fatalf("parse %q", a)
	}
	y, ok := parseUnits(b)
	if !ok {
		t.Fatalf("parse %q", b)
	}
	return x.Sub(x, y).String()
}
