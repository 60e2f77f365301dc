// Package apperrors classifies engine failures so that transport layers can
// render a specific response without parsing messages.
package apperrors

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
)

// Kind is the machine-readable class of an error.
type Kind string

const (
	KindValidation           Kind = "validation_error"
	KindDuplicateEvaluation  Kind = "duplicate_evaluation"
	KindPostingLocked        Kind = "posting_locked"
	KindInsufficientEntrants Kind = "insufficient_entrants"
	KindInsufficientTeams    Kind = "insufficient_teams"
	KindNotFound             Kind = "not_found"
	KindStoreUnavailable     Kind = "store_unavailable"
	KindConflict             Kind = "conflict"
	KindInternal             Kind = "internal"
)

// Sentinels usable with errors.Is. Every *Error unwraps to the sentinel of its kind.
var (
	ErrValidation           = errors.New("validation failed")
	ErrDuplicateEvaluation  = errors.New("evaluation already recorded")
	ErrPostingLocked        = errors.New("posting is locked")
	ErrInsufficientEntrants = errors.New("not enough entrants")
	ErrInsufficientTeams    = errors.New("not enough teams")
	ErrNotFound             = errors.New("requested resource not found")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrConflict             = errors.New("conflicting update")
	ErrInternal             = errors.New("internal error")
)

var sentinels = map[Kind]error{
	KindValidation:           ErrValidation,
	KindDuplicateEvaluation:  ErrDuplicateEvaluation,
	KindPostingLocked:        ErrPostingLocked,
	KindInsufficientEntrants: ErrInsufficientEntrants,
	KindInsufficientTeams:    ErrInsufficientTeams,
	KindNotFound:             ErrNotFound,
	KindStoreUnavailable:     ErrStoreUnavailable,
	KindConflict:             ErrConflict,
	KindInternal:             ErrInternal,
}

// Error is an engine error with a kind and structured detail.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds field-level validation detail keyed by input field name.
	Fields map[string]string
	// Refs holds the identifiers the error is about, e.g. "posting_id".
	Refs map[string]string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s: %s", k, e.Fields[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := []error{sentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// WithRef returns a copy of e carrying an extra offending identifier.
func (e *Error) WithRef(key, value string) *Error {
	c := *e
	c.Refs = maps.Clone(e.Refs)
	if c.Refs == nil {
		c.Refs = make(map[string]string, 1)
	}
	c.Refs[key] = value
	return &c
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: entity + " not found",
		Refs:    map[string]string{entity + "_id": id},
	}
}

func DuplicateEvaluation(postingID, judgeID string) *Error {
	return &Error{
		Kind:    KindDuplicateEvaluation,
		Message: "judge has already evaluated this posting",
		Refs:    map[string]string{"posting_id": postingID, "judge_id": judgeID},
	}
}

func PostingLocked(postingID, status, reason string) *Error {
	return &Error{
		Kind:    KindPostingLocked,
		Message: reason,
		Refs:    map[string]string{"posting_id": postingID, "status": status},
	}
}

func InsufficientEntrants(have int) *Error {
	return Newf(KindInsufficientEntrants, "at least 2 entrants are required, got %d", have)
}

func InsufficientTeams(have int) *Error {
	return Newf(KindInsufficientTeams, "at least 2 teams are required, got %d", have)
}

func Conflict(msg string) *Error {
	return New(KindConflict, msg)
}

func StoreUnavailable(op string, err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: op + " failed", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf reports the kind of err. Errors outside this package are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// RefsOf returns the identifiers attached to err, or nil.
func RefsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Refs
	}
	return nil
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the caller may retry the operation.
func Retryable(err error) bool {
	return KindOf(err) == KindStoreUnavailable
}

// FieldErrors collects validation failures before any write happens.
type FieldErrors map[string]string

func (f FieldErrors) Add(field, reason string) {
	if _, ok := f[field]; !ok {
		f[field] = reason
	}
}

func (f FieldErrors) Check(ok bool, field, reason string) {
	if !ok {
		f.Add(field, reason)
	}
}

// Err returns a validation error when any field failed, otherwise nil.
func (f FieldErrors) Err(msg string) error {
	if len(f) == 0 {
		return nil
	}
	return Validation(msg, maps.Clone(map[string]string(f)))
}
