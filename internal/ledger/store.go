package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/peerpay/backend/internal/models"
	"github.com/shopspring/decimal"
)

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// Store wraps the SQL persistence for accounts, transactions and relations.
// Mutating helpers are *sql.Tx scoped so that every engine operation commits
// as a single unit of work: either all of its writes land or none do.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// withinTx runs fn inside a database transaction, rolling back on error.
func (s *Store) withinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return persistence(err)
	}
	return nil
}

const accountColumns = "id, username, email, balance, version, created_at, updated_at"

func scanAccount(row *sql.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(&account.ID, &account.Username, &account.Email,
		&account.Balance, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, unknownUser()
		}
		return nil, persistence(err)
	}
	return &account, nil
}

// FindAccountByID resolves an account by its id.
func (s *Store) FindAccountByID(ctx context.Context, id int) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1", id)
	return scanAccount(row)
}

// FindAccountByEmail resolves an account by email, the public identifier
// counterparties are addressed with.
func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = $1", email)
	return scanAccount(row)
}

// lockAccount reads an account under FOR UPDATE so its balance cannot move
// between the solvency check and the balance write.
func (s *Store) lockAccount(ctx context.Context, tx *sql.Tx, id int) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRowContext(ctx,
		"SELECT id, username, email, balance, version FROM accounts WHERE id = $1 FOR UPDATE",
		id).Scan(&account.ID, &account.Username, &account.Email, &account.Balance, &account.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, unknownUser()
		}
		return nil, persistence(err)
	}
	return &account, nil
}

// lockAccountPair locks two accounts in ascending id order so that
// concurrent opposite-direction transfers cannot deadlock, and returns them
// in the requested order.
func (s *Store) lockAccountPair(ctx context.Context, tx *sql.Tx, firstID, secondID int) (*models.Account, *models.Account, error) {
	if firstID == secondID {
		account, err := s.lockAccount(ctx, tx, firstID)
		if err != nil {
			return nil, nil, err
		}
		return account, account, nil
	}

	lowID, highID := firstID, secondID
	if lowID > highID {
		lowID, highID = highID, lowID
	}

	low, err := s.lockAccount(ctx, tx, lowID)
	if err != nil {
		return nil, nil, err
	}
	high, err := s.lockAccount(ctx, tx, highID)
	if err != nil {
		return nil, nil, err
	}

	if firstID == lowID {
		return low, high, nil
	}
	return high, low, nil
}

// insertTransaction appends one immutable ledger row.
func (s *Store) insertTransaction(ctx context.Context, tx *sql.Tx, senderID, receiverID int, amount decimal.Decimal, description string) (*models.Transaction, error) {
	record := models.Transaction{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Description: description,
		Amount:      amount,
	}
	err := tx.QueryRowContext(ctx,
		"INSERT INTO transactions (sender_id, receiver_id, description, amount, created_at) VALUES ($1, $2, $3, $4, NOW()) RETURNING id, created_at",
		senderID, receiverID, description, amount).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return nil, persistence(err)
	}
	return &record, nil
}

// updateBalance writes the new cached balance, guarded by the version column.
// A zero row count means another writer got there first despite the row lock,
// so the whole unit of work must be retried by the caller.
func (s *Store) updateBalance(ctx context.Context, tx *sql.Tx, accountID int, balance decimal.Decimal, version int) error {
	result, err := tx.ExecContext(ctx,
		"UPDATE accounts SET balance = $1, version = version + 1, updated_at = NOW() WHERE id = $2 AND version = $3",
		balance, accountID, version)
	if err != nil {
		return persistence(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence(err)
	}
	if affected == 0 {
		return persistence(fmt.Errorf("optimistic lock failed for account %d", accountID))
	}
	return nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) relationExists(ctx context.Context, q rowQuerier, ownerID, relatedID int) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM relations WHERE owner_id = $1 AND related_id = $2)",
		ownerID, relatedID).Scan(&exists)
	if err != nil {
		return false, persistence(err)
	}
	return exists, nil
}

// RelationExists reports whether the directed owner -> related edge is present.
func (s *Store) RelationExists(ctx context.Context, ownerID, relatedID int) (bool, error) {
	return s.relationExists(ctx, s.db, ownerID, relatedID)
}

// insertRelation appends the directed edge. The unique index on
// (owner_id, related_id) backstops the pre-insert existence check under
// concurrent duplicate adds.
func (s *Store) insertRelation(ctx context.Context, tx *sql.Tx, ownerID, relatedID int) (*models.Relation, error) {
	relation := models.Relation{OwnerID: ownerID, RelatedID: relatedID}
	err := tx.QueryRowContext(ctx,
		"INSERT INTO relations (owner_id, related_id, created_at) VALUES ($1, $2, NOW()) RETURNING id, created_at",
		ownerID, relatedID).Scan(&relation.ID, &relation.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, relationExists()
		}
		return nil, persistence(err)
	}
	return &relation, nil
}

// RelationsByOwner returns the public profiles of the owner's related
// accounts, sorted by username ascending (byte-wise order).
func (s *Store) RelationsByOwner(ctx context.Context, ownerID int) ([]models.RelationProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT a.username, a.email FROM relations r JOIN accounts a ON a.id = r.related_id WHERE r.owner_id = $1 ORDER BY a.username ASC",
		ownerID)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()

	profiles := []models.RelationProfile{}
	for rows.Next() {
		var profile models.RelationProfile
		if err := rows.Scan(&profile.Username, &profile.Email); err != nil {
			return nil, persistence(err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence(err)
	}
	return profiles, nil
}

// historyRow is one ledger row joined with both party usernames, used by the
// history projection.
type historyRow struct {
	tx           models.Transaction
	senderName   string
	receiverName string
}

// transactionsWithParties fetches every row where the account is sender or
// receiver, newest first. The ordering is an explicit timestamp sort with an
// id tiebreak, never an artifact of insertion order.
func (s *Store) transactionsWithParties(ctx context.Context, accountID int) ([]historyRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.sender_id, t.receiver_id, t.description, t.amount, t.created_at, s.username, r.username
		 FROM transactions t
		 JOIN accounts s ON s.id = t.sender_id
		 JOIN accounts r ON r.id = t.receiver_id
		 WHERE t.sender_id = $1 OR t.receiver_id = $1
		 ORDER BY t.created_at DESC, t.id DESC`,
		accountID)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()

	history := []historyRow{}
	for rows.Next() {
		var row historyRow
		if err := rows.Scan(&row.tx.ID, &row.tx.SenderID, &row.tx.ReceiverID,
			&row.tx.Description, &row.tx.Amount, &row.tx.CreatedAt,
			&row.senderName, &row.receiverName); err != nil {
			return nil, persistence(err)
		}
		history = append(history, row)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence(err)
	}
	return history, nil
}

// TransactionsSent returns the rows the account initiated toward other
// accounts, newest first. Self-directed credit/withdrawal rows are excluded.
func (s *Store) TransactionsSent(ctx context.Context, accountID int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, sender_id, receiver_id, description, amount, created_at FROM transactions WHERE sender_id = $1 AND receiver_id <> $1 ORDER BY created_at DESC, id DESC",
		accountID)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var record models.Transaction
		if err := rows.Scan(&record.ID, &record.SenderID, &record.ReceiverID,
			&record.Description, &record.Amount, &record.CreatedAt); err != nil {
			return nil, persistence(err)
		}
		transactions = append(transactions, record)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence(err)
	}
	return transactions, nil
}
