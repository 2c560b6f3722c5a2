package domain

import "errors"

var (
	// Creation errors
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrUnknownProcessor        = errors.New("unknown processor")
	ErrMissingCounterparty     = errors.New("from counterparty or overcharge required")
	ErrSameCounterparty        = errors.New("from and to must differ")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrEventDispatcherRequired = errors.New("event dispatcher required")
	ErrBatchIntegrityViolation = errors.New("batch integrity violation")
	ErrLockAcquisitionFailed   = errors.New("lock acquisition failed")

	// Numeric errors
	ErrUnknownCurrency   = errors.New("unknown currency")
	ErrInvalidCommission = errors.New("invalid commission")

	// Lookup errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrBalanceNotFound     = errors.New("balance not found")
	ErrInvalidStatus       = errors.New("invalid transaction status")
	ErrDuplicateProcessor  = errors.New("processor already registered")
)
