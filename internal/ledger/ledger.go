package ledger

import (
	"database/sql"

	"github.com/peerpay/backend/internal/audit"
)

// Transaction descriptions for self-directed operations. These are data, not
// UI strings, and match what counterparties see in their history.
const (
	CreditDescription   = "Crédit"
	WithdrawDescription = "Débit"
)

// Ledger is the balance-consistency core: credits, withdrawals, relation
// management, peer transfers and the history projection. Every mutating
// operation is a single-shot validate-then-commit unit of work; there is no
// state here beyond the persisted rows.
type Ledger struct {
	store *Store
	audit *audit.Logger
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{
		store: NewStore(db),
		audit: audit.NewLogger(),
	}
}

// Store exposes the read-side persistence helpers to the web layer.
func (l *Ledger) Store() *Store {
	return l.store
}
