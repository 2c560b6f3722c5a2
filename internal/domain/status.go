package domain

import (
	"fmt"
	"strings"
)

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	StatusPending          TransactionStatus = "pending"
	StatusOnHold           TransactionStatus = "on_hold"
	StatusInProgress       TransactionStatus = "in_progress"
	StatusAwaitingApproval TransactionStatus = "awaiting_approval"
	StatusSuccess          TransactionStatus = "success"
	StatusFailed           TransactionStatus = "failed"
	StatusCanceled         TransactionStatus = "canceled"
	StatusRefunded         TransactionStatus = "refunded"
	StatusExpired          TransactionStatus = "expired"
)

var knownStatuses = map[TransactionStatus]bool{
	StatusPending:          false,
	StatusOnHold:           false,
	StatusInProgress:       false,
	StatusAwaitingApproval: false,
	StatusSuccess:          true,
	StatusFailed:           true,
	StatusCanceled:         true,
	StatusRefunded:         true,
	StatusExpired:          true,
}

// DefaultAccountingStatuses are the statuses counted toward a balance value.
func DefaultAccountingStatuses() []TransactionStatus {
	return []TransactionStatus{StatusSuccess, StatusOnHold, StatusInProgress, StatusAwaitingApproval}
}

// IsValid reports whether s is a known status.
func (s TransactionStatus) IsValid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// IsFinal reports whether s is a terminal status.
func (s TransactionStatus) IsFinal() bool {
	return knownStatuses[s]
}

// ParseStatus parses a status name.
func ParseStatus(s string) (TransactionStatus, error) {
	status := TransactionStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}

	return status, nil
}

// StatusSet is a lookup set of statuses.
type StatusSet map[TransactionStatus]struct{}

// NewStatusSet builds a set from statuses.
func NewStatusSet(statuses ...TransactionStatus) StatusSet {
	set := make(StatusSet, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}

	return set
}

// Contains reports whether s is in the set.
func (set StatusSet) Contains(s TransactionStatus) bool {
	_, ok := set[s]
	return ok
}
