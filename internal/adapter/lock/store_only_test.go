package lock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iho/txledger/internal/usecase"
)

var _ usecase.Locker = StoreOnly{}

func TestStoreOnly_RunsFnAndReturnsItsError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0

	err := NewStoreOnly().WithLock(context.Background(), []string{"balance:user:1:USD"}, func(context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
