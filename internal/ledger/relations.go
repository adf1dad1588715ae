package ledger

import (
	"context"
	"database/sql"

	"github.com/peerpay/backend/internal/models"
)

// RelationExists reports whether the directed owner -> candidate edge is
// present. The check is never symmetric.
func (l *Ledger) RelationExists(ctx context.Context, ownerID, candidateID int) (bool, error) {
	return l.store.RelationExists(ctx, ownerID, candidateID)
}

// AddRelation inserts the directed edge from the owner to the account
// resolved by email. It fails when the candidate does not exist, when the
// edge is already present, or when the owner targets themselves; ids are
// compared, never struct identity.
func (l *Ledger) AddRelation(ctx context.Context, ownerID int, candidateEmail string) (*models.Relation, error) {
	candidate, err := l.store.FindAccountByEmail(ctx, candidateEmail)
	if err != nil {
		return nil, err
	}

	exists, err := l.store.RelationExists(ctx, ownerID, candidate.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, relationExists()
	}

	if ownerID == candidate.ID {
		return nil, selfRelation()
	}

	var relation *models.Relation
	err = l.store.withinTx(ctx, func(tx *sql.Tx) error {
		inserted, err := l.store.insertRelation(ctx, tx, ownerID, candidate.ID)
		if err != nil {
			return err
		}
		relation = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return relation, nil
}

// Relations lists the owner's related accounts as public profiles, sorted by
// username ascending.
func (l *Ledger) Relations(ctx context.Context, ownerID int) ([]models.RelationProfile, error) {
	return l.store.RelationsByOwner(ctx, ownerID)
}
