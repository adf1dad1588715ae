package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a user together with the monetary side of their profile. The
// balance is a cached aggregate of the transactions ledger and is updated in
// the same unit of work as every transaction insert; the version column backs
// optimistic locking on balance updates.
type Account struct {
	ID        int             `json:"id" db:"id"`
	Username  string          `json:"username" db:"username"`
	Email     string          `json:"email" db:"email"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Version   int             `json:"-" db:"version"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
