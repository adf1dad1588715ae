package ledger

import (
	"context"
	"database/sql"

	"github.com/peerpay/backend/internal/models"
)

// TransferResult reports a committed peer transfer back to the caller.
type TransferResult struct {
	Transaction  *models.Transaction
	PayerBalance *models.Account
	Payee        *models.Account
}

// Transfer moves a positive amount from the payer to the payee resolved by
// email, gated on a payer -> payee relation edge. Exactly one ledger row is
// written; the payer decrement and payee increment land in the same unit of
// work, so the two deltas always sum to zero.
//
// Failing checks surface in a fixed order: amount validity, payee existence,
// payer solvency, relation existence, persistence.
func (l *Ledger) Transfer(ctx context.Context, payerID int, payeeEmail, rawAmount, description string) (*TransferResult, error) {
	amount, err := Normalize(rawAmount)
	if err != nil {
		return nil, err
	}

	payee, err := l.store.FindAccountByEmail(ctx, payeeEmail)
	if err != nil {
		return nil, err
	}

	var result TransferResult
	err = l.store.withinTx(ctx, func(tx *sql.Tx) error {
		payerRow, payeeRow, err := l.store.lockAccountPair(ctx, tx, payerID, payee.ID)
		if err != nil {
			return err
		}

		if payerRow.Balance.Sub(amount).IsNegative() {
			return insufficientBalance()
		}

		// A relation edge to oneself can never exist, so a self-directed
		// transfer falls out here as well.
		related, err := l.store.relationExists(ctx, tx, payerRow.ID, payeeRow.ID)
		if err != nil {
			return err
		}
		if !related {
			return relationMissing()
		}

		record, err := l.store.insertTransaction(ctx, tx, payerRow.ID, payeeRow.ID, amount, description)
		if err != nil {
			return err
		}

		if err := l.store.updateBalance(ctx, tx, payerRow.ID, payerRow.Balance.Sub(amount), payerRow.Version); err != nil {
			return err
		}
		if err := l.store.updateBalance(ctx, tx, payeeRow.ID, payeeRow.Balance.Add(amount), payeeRow.Version); err != nil {
			return err
		}

		payerRow.Balance = payerRow.Balance.Sub(amount)
		payeeRow.Balance = payeeRow.Balance.Add(amount)
		result = TransferResult{Transaction: record, PayerBalance: payerRow, Payee: payeeRow}
		return nil
	})
	if err != nil {
		l.audit.LogRejection("TRANSFER", payerID, err)
		return nil, err
	}

	l.audit.LogTransfer(result.Transaction.ID, payerID, result.Payee.ID, amount.String(), "SUCCESS")
	return &result, nil
}
