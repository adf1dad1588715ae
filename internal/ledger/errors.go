package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger failure. Business-rule kinds are detected before
// any write is attempted; KindPersistence is the only infrastructure kind and
// the only one a caller may reasonably retry.
type Kind int

const (
	KindInvalidAmount Kind = iota + 1
	KindInsufficientBalance
	KindUnknownUser
	KindRelationMissing
	KindRelationExists
	KindSelfRelation
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindInvalidAmount:
		return "INVALID_AMOUNT"
	case KindInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	case KindUnknownUser:
		return "UNKNOWN_USER"
	case KindRelationMissing:
		return "RELATION_MISSING"
	case KindRelationExists:
		return "RELATION_ALREADY_EXISTS"
	case KindSelfRelation:
		return "SELF_RELATION"
	case KindPersistence:
		return "PERSISTENCE_FAILURE"
	}
	return "UNKNOWN"
}

// Error is a typed ledger failure carrying a human-readable message and, for
// persistence failures, the wrapped storage error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a ledger Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var lerr *Error
	return errors.As(err, &lerr) && lerr.Kind == kind
}

// ErrKind returns the ledger kind of err, or 0 when err is not a ledger Error.
func ErrKind(err error) Kind {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return 0
}

func invalidAmount(message string) *Error {
	return &Error{Kind: KindInvalidAmount, Message: message}
}

func insufficientBalance() *Error {
	return &Error{Kind: KindInsufficientBalance, Message: "balance cannot go negative"}
}

func unknownUser() *Error {
	return &Error{Kind: KindUnknownUser, Message: "user does not exist"}
}

func relationMissing() *Error {
	return &Error{Kind: KindRelationMissing, Message: "no relation with this user"}
}

func relationExists() *Error {
	return &Error{Kind: KindRelationExists, Message: "user has already been added"}
}

func selfRelation() *Error {
	return &Error{Kind: KindSelfRelation, Message: "cannot add yourself"}
}

func persistence(err error) *Error {
	return &Error{Kind: KindPersistence, Message: "storage operation failed", Err: err}
}
