package ledger

import (
	"context"

	"github.com/peerpay/backend/internal/models"
)

// History projects the account's activity feed, newest first. Each ledger
// row where the account participates appears exactly once; the sign flip for
// outgoing transfers is applied on the projected copy only, never written
// back to the stored row.
func (l *Ledger) History(ctx context.Context, accountID int) ([]models.Operation, error) {
	rows, err := l.store.transactionsWithParties(ctx, accountID)
	if err != nil {
		return nil, err
	}

	operations := make([]models.Operation, 0, len(rows))
	for _, row := range rows {
		op := models.Operation{
			Amount:      row.tx.Amount,
			Description: row.tx.Description,
			CreatedAt:   row.tx.CreatedAt,
		}
		switch {
		case row.tx.SenderID == row.tx.ReceiverID:
			// Self-directed credit or withdrawal: no counterparty.
		case row.tx.ReceiverID == accountID:
			op.Counterparty = row.senderName
		default:
			op.Amount = op.Amount.Neg()
			op.Counterparty = row.receiverName
		}
		operations = append(operations, op)
	}
	return operations, nil
}
