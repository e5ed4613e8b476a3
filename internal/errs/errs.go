// Package errs defines the failure kinds shared by the catalog and the loan ledger.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindDuplicate
	KindUnavailable
	KindLimitExceeded
	KindAlreadyReturned
	KindOverdue
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindValidation:      "validation",
	KindNotFound:        "not_found",
	KindDuplicate:       "duplicate",
	KindUnavailable:     "unavailable",
	KindLimitExceeded:   "limit_exceeded",
	KindAlreadyReturned: "already_returned",
	KindOverdue:         "overdue",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// ParseKind is the inverse of Kind.String. Unrecognised names map to KindUnknown.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

// Sentinels usable with errors.Is.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrDuplicate       = &Error{Kind: KindDuplicate}
	ErrUnavailable     = &Error{Kind: KindUnavailable}
	ErrLimitExceeded   = &Error{Kind: KindLimitExceeded}
	ErrAlreadyReturned = &Error{Kind: KindAlreadyReturned}
	ErrOverdue         = &Error{Kind: KindOverdue}
)

// Error is the single concrete failure type of the core.
type Error struct {
	Kind   Kind
	Op     string
	Entity string
	ID     string
	// OverdueDays is set for KindOverdue.
	OverdueDays int
	Message     string
	Err         error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Entity != "" && e.ID != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Entity, e.ID, msg)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same kind, so the
// package sentinels compare by kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Validation builds a KindValidation error.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error for the given entity.
func NotFound(op, entity, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Entity: entity, ID: id, Message: "not found"}
}

// Duplicate builds a KindDuplicate error for the given entity.
func Duplicate(op, entity, id string) *Error {
	return &Error{Kind: KindDuplicate, Op: op, Entity: entity, ID: id, Message: "already exists"}
}

// Unavailable builds a KindUnavailable error for an item with no copies left.
func Unavailable(op, itemID, title string) *Error {
	return &Error{
		Kind:    KindUnavailable,
		Op:      op,
		Entity:  "item",
		ID:      itemID,
		Message: fmt.Sprintf("no copies of %q available", title),
	}
}

// LimitExceeded builds a KindLimitExceeded error for a member.
func LimitExceeded(op, memberID, format string, args ...any) *Error {
	return &Error{
		Kind:    KindLimitExceeded,
		Op:      op,
		Entity:  "member",
		ID:      memberID,
		Message: fmt.Sprintf(format, args...),
	}
}

// AlreadyReturned builds a KindAlreadyReturned error for a loan.
func AlreadyReturned(op, loanID string) *Error {
	return &Error{Kind: KindAlreadyReturned, Op: op, Entity: "loan", ID: loanID, Message: "already returned"}
}

// Overdue builds a KindOverdue error carrying the overdue day count.
func Overdue(op, loanID string, days int) *Error {
	return &Error{
		Kind:        KindOverdue,
		Op:          op,
		Entity:      "loan",
		ID:          loanID,
		OverdueDays: days,
		Message:     fmt.Sprintf("overdue by %d days", days),
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// OverdueDays returns the overdue day count carried by an overdue error.
func OverdueDays(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindOverdue {
		return e.OverdueDays, true
	}
	return 0, false
}
