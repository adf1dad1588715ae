package models

import "time"

// Relation is a directed permission edge: its existence allows the owner to
// transfer funds to the related account. Adding A->B does not imply B->A.
type Relation struct {
	ID        int       `json:"id" db:"id"`
	OwnerID   int       `json:"owner_id" db:"owner_id"`
	RelatedID int       `json:"related_id" db:"related_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RelationProfile is the public view of a related account.
type RelationProfile struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}
