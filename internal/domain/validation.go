package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidCurrency  = errors.New("invalid currency code")
	ErrAmountTooLarge   = errors.New("amount exceeds maximum allowed")
	ErrMetadataTooLarge = errors.New("metadata size exceeds limit")
	ErrInvalidIDFormat  = errors.New("invalid ID format")
)

// Validation constants
const (
	MaxHolderFieldLength = 255
	MaxMetadataSize      = 10240           // 10KB
	MaxTransactionAmount = "1000000000000" // 1 trillion
)

var currencyCodeRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// ValidateCurrency checks the shape of a currency code. Whether the
// currency is known is decided by Numeric.
func ValidateCurrency(currency string) error {
	if !currencyCodeRegex.MatchString(currency) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}

	return nil
}

// ValidateAmount validates a transaction amount
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	maxAmount, _ := decimal.NewFromString(MaxTransactionAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxTransactionAmount)
	}

	return nil
}

// ValidateHolder validates a holder reference.
func ValidateHolder(ref HolderRef) error {
	for _, field := range []string{ref.ID, ref.Type} {
		field = strings.TrimSpace(field)
		if field == "" || len(field) > MaxHolderFieldLength || strings.Contains(field, ":") {
			return fmt.Errorf("%w: holder %q", ErrInvalidIDFormat, ref.String())
		}
	}

	return nil
}

// ValidateMetadata validates metadata size
func ValidateMetadata(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}

	// Estimate size (rough approximation)
	size := 0
	for k, v := range metadata {
		size += len(k)
		size += len(fmt.Sprintf("%v", v))
	}

	if size > MaxMetadataSize {
		return fmt.Errorf("%w: metadata size %d bytes exceeds limit of %d bytes", ErrMetadataTooLarge, size, MaxMetadataSize)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
