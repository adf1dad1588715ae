package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one immutable ledger row. The stored amount is always a
// positive magnitude; direction is carried by the sender/receiver roles.
// A self-credit or self-withdrawal has sender == receiver, and a peer
// transfer produces exactly one row, never a debit/credit pair.
type Transaction struct {
	ID          int             `json:"id" db:"id"`
	SenderID    int             `json:"sender_id" db:"sender_id"`
	ReceiverID  int             `json:"receiver_id" db:"receiver_id"`
	Description string          `json:"description" db:"description"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Operation is a history entry projected from a Transaction: the amount is
// negated for presentation when the account is the sender of an outgoing
// transfer. The stored row is never touched.
type Operation struct {
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Counterparty string          `json:"counterparty,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
