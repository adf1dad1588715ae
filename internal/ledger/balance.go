package ledger

import (
	"context"
	"database/sql"

	"github.com/peerpay/backend/internal/models"
)

// MovementResult reports a committed self-directed operation: the account
// with its new balance and the ledger row the operation wrote.
type MovementResult struct {
	Account     *models.Account
	Transaction *models.Transaction
}

// Credit adds a positive amount to the account's balance. One ledger row is
// written with sender == receiver == account, and the cached balance moves by
// the same normalized amount in the same unit of work.
func (l *Ledger) Credit(ctx context.Context, accountID int, rawAmount string) (*MovementResult, error) {
	amount, err := Normalize(rawAmount)
	if err != nil {
		return nil, err
	}

	var result MovementResult
	err = l.store.withinTx(ctx, func(tx *sql.Tx) error {
		locked, err := l.store.lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}

		record, err := l.store.insertTransaction(ctx, tx, locked.ID, locked.ID, amount, CreditDescription)
		if err != nil {
			return err
		}

		newBalance := locked.Balance.Add(amount)
		if err := l.store.updateBalance(ctx, tx, locked.ID, newBalance, locked.Version); err != nil {
			return err
		}

		locked.Balance = newBalance
		result = MovementResult{Account: locked, Transaction: record}
		return nil
	})
	if err != nil {
		l.audit.LogRejection("CREDIT", accountID, err)
		return nil, err
	}

	l.audit.LogMovement("CREDIT", result.Transaction.ID, result.Account.ID, amount.String(), "SUCCESS")
	return &result, nil
}

// Withdraw removes a positive amount from the account's balance, rejecting
// the operation when the committed balance cannot cover it. The solvency
// check runs under the row lock, so two concurrent withdrawals cannot both
// pass against a stale balance.
func (l *Ledger) Withdraw(ctx context.Context, accountID int, rawAmount string) (*MovementResult, error) {
	amount, err := Normalize(rawAmount)
	if err != nil {
		return nil, err
	}

	var result MovementResult
	err = l.store.withinTx(ctx, func(tx *sql.Tx) error {
		locked, err := l.store.lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}

		if locked.Balance.Sub(amount).IsNegative() {
			return insufficientBalance()
		}

		record, err := l.store.insertTransaction(ctx, tx, locked.ID, locked.ID, amount, WithdrawDescription)
		if err != nil {
			return err
		}

		newBalance := locked.Balance.Sub(amount)
		if err := l.store.updateBalance(ctx, tx, locked.ID, newBalance, locked.Version); err != nil {
			return err
		}

		locked.Balance = newBalance
		result = MovementResult{Account: locked, Transaction: record}
		return nil
	})
	if err != nil {
		l.audit.LogRejection("WITHDRAW", accountID, err)
		return nil, err
	}

	l.audit.LogMovement("WITHDRAW", result.Transaction.ID, result.Account.ID, amount.String(), "SUCCESS")
	return &result, nil
}
