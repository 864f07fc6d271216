package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized      = errors.New("caller is not the ledger owner")
	ErrNotRegistered     = errors.New("organization is not registered")
	ErrAlreadyRegistered = errors.New("organization is already registered")
	ErrValidation        = errors.New("invalid election")
	ErrElectionNotFound  = errors.New("election not found")
	ErrNotStarted        = errors.New("election has not started")
	ErrEnded             = errors.New("election has ended")
	ErrAlreadyVoted      = errors.New("voter has already voted")
	ErrInvalidCandidate  = errors.New("candidate does not exist")
	ErrInvalidPage       = errors.New("invalid page request")
	ErrOwnerMismatch     = errors.New("store belongs to a different owner")
)

// ValidationKind names which election precondition failed.
type ValidationKind string

const (
	TooFewCandidates  ValidationKind = "too_few_candidates"
	TooManyCandidates ValidationKind = "too_many_candidates"
	StartNotFuture    ValidationKind = "start_not_future"
	StartNotBeforeEnd ValidationKind = "start_not_before_end"
	PaymentMismatch   ValidationKind = "payment_mismatch"
)

// ValidationError reports a rejected election draft or payment. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Kind   ValidationKind
	Detail string
}

func invalid(kind ValidationKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Kind, e.Detail)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
