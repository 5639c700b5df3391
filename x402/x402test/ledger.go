// Package x402test provides an in-memory x402.Ledger for tests of packages
// that sit on top of the verifier.
package x402test

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/andrewreder/solana-x402/go-api/x402"
)

// Ledger serves recorded transactions and token accounts from memory.
type Ledger struct {
	mu       sync.Mutex
	txs      map[string]*x402.LedgerTransaction
	accounts map[string][]byte

	// TxErr, when set, is returned by every FetchTransaction call.
	TxErr error
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		txs:      make(map[string]*x402.LedgerTransaction),
		accounts: make(map[string][]byte),
	}
}

// FetchTransaction implements x402.Ledger.
func (l *Ledger) FetchTransaction(ctx context.Context, signature string) (*x402.LedgerTransaction, error) {
	if l.TxErr != nil {
		return nil, l.TxErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.txs[signature]
	if !ok {
		return nil, x402.ErrTransactionNotFound
	}
	return tx, nil
}

// FetchAccountState implements x402.Ledger.
func (l *Ledger) FetchAccountState(ctx context.Context, address string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, ok := l.accounts[address]
	if !ok {
		return nil, x402.ErrAccountNotFound
	}
	return data, nil
}

// AddTokenAccount registers an SPL token account for mint owned by owner.
func (l *Ledger) AddTokenAccount(address, mint, owner string) {
	data := make([]byte, 165)
	m := solana.MustPublicKeyFromBase58(mint)
	o := solana.MustPublicKeyFromBase58(owner)
	copy(data[0:32], m[:])
	copy(data[32:64], o[:])

	l.mu.Lock()
	l.accounts[address] = data
	l.mu.Unlock()
}

// AddTransaction records tx under its signature.
func (l *Ledger) AddTransaction(tx *x402.LedgerTransaction) {
	l.mu.Lock()
	l.txs[tx.Signature] = tx
	l.mu.Unlock()
}

// Payment describes a transfer recorded by RecordPayment.
type Payment struct {
	Signature string
	Sender    string
	Recipient string
	BlockTime time.Time
}

// RecordPayment records a successful transfer of units (base units of mint)
// from a fresh sender to recipient, confirmed at blockTime.
func (l *Ledger) RecordPayment(recipient, mint, units string, blockTime time.Time) Payment {
	p := Payment{
		Signature: NewSignature(),
		Sender:    NewAddress(),
		Recipient: recipient,
		BlockTime: blockTime,
	}
	senderToken := NewAddress()
	recipientToken := NewAddress()
	l.AddTokenAccount(senderToken, mint, p.Sender)
	l.AddTokenAccount(recipientToken, mint, recipient)

	l.AddTransaction(&x402.LedgerTransaction{
		Signature:   p.Signature,
		BlockTime:   &blockTime,
		AccountKeys: []string{p.Sender, senderToken, recipientToken, mint},
		PreTokenBalances: []x402.TokenBalance{
			{AccountIndex: 1, Mint: mint, Amount: units},
		},
		PostTokenBalances: []x402.TokenBalance{
			{AccountIndex: 1, Mint: mint, Amount: "0"},
			{AccountIndex: 2, Mint: mint, Amount: units},
		},
	})
	return p
}

// NewAddress returns a random base58 account address.
func NewAddress() string {
	return solana.NewWallet().PublicKey().String()
}

// NewSignature returns a random base58 transaction signature.
func NewSignature() string {
	var sig solana.Signature
	_, _ = rand.Read(sig[:])
	return sig.String()
}
