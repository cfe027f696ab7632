package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// WalletTransaction is immutable once appended.
type WalletTransaction struct {
	ID             string            `json:"id"`
	Type           TransactionType   `json:"type"`
	Amount         decimal.Decimal   `json:"amount"`
	Description    string            `json:"description"`
	CreatedAt      time.Time         `json:"createdAt"`
	BalanceAfter   decimal.Decimal   `json:"balanceAfter"`
	IdempotencyKey string            `json:"idempotencyKey,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// SignedAmount is positive for credits and negative for debits.
func (t WalletTransaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// WalletSnapshot is the balance of one owner plus its full history.
type WalletSnapshot struct {
	Owner        string              `json:"owner"`
	Balance      decimal.Decimal     `json:"balance"`
	Transactions []WalletTransaction `json:"transactions"`
}

// Clone returns a copy that shares nothing mutable with the receiver.
func (s WalletSnapshot) Clone() WalletSnapshot {
	out := WalletSnapshot{Owner: s.Owner, Balance: s.Balance}
	out.Transactions = make([]WalletTransaction, len(s.Transactions))
	for i, t := range s.Transactions {
		if t.Metadata != nil {
			meta := make(map[string]string, len(t.Metadata))
			for k, v := range t.Metadata {
				meta[k] = v
			}
			t.Metadata = meta
		}
		out.Transactions[i] = t
	}
	return out
}
