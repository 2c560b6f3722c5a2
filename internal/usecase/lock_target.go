package usecase

import (
	"sort"

	"github.com/iho/txledger/internal/domain"
)

// LockMode selects how a commit picks its lock target.
type LockMode int

const (
	// LockDefault locks the from balance, or the to balance when from is unset.
	LockDefault LockMode = iota
	// LockCustom locks a caller supplied key.
	LockCustom
	// LockDisabled skips the lock coordinator entirely.
	LockDisabled
)

// LockOverride is the caller's choice of lock target.
type LockOverride struct {
	Mode LockMode
	Key  string
}

// ResolveLockTarget applies the precedence override > from > to. It returns
// false when locking is disabled or there is nothing to lock.
func ResolveLockTarget(from, to *domain.HolderRef, currency string, override LockOverride) (string, bool) {
	switch override.Mode {
	case LockDisabled:
		return "", false
	case LockCustom:
		if override.Key != "" {
			return override.Key, true
		}
	}

	if from != nil {
		return domain.BalanceKey{Holder: *from, Currency: currency}.LockKey(), true
	}
	if to != nil {
		return domain.BalanceKey{Holder: *to, Currency: currency}.LockKey(), true
	}

	return "", false
}

// lockSet returns the resolved target plus every balance the transaction
// recalculates, deduplicated and sorted.
func lockSet(t *domain.Transaction, override LockOverride) []string {
	target, ok := ResolveLockTarget(t.From, t.To, t.Currency, override)
	if !ok {
		return nil
	}

	keys := []string{target}
	for _, k := range t.BalanceKeys() {
		keys = append(keys, k.LockKey())
	}

	return sortedUnique(keys)
}

func balanceLockKeys(keys []domain.BalanceKey) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.LockKey())
	}

	return sortedUnique(out)
}

func sortedUnique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}

// sortedBalanceKeys deduplicates keys and orders them by lock key so row
// locks are always taken in the same order.
func sortedBalanceKeys(keys []domain.BalanceKey) []domain.BalanceKey {
	seen := make(map[domain.BalanceKey]struct{}, len(keys))
	out := make([]domain.BalanceKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LockKey() < out[j].LockKey() })

	return out
}
