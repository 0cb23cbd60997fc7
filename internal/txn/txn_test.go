package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitDiscardsSteps(t *testing.T) {
	tx := New()
	ran := false
	tx.AddRollback("noop", func(ctx context.Context) error {
		ran = true
		return nil
	})

	tx.Commit()
	assert.Equal(t, 0, tx.Len())

	err := tx.Rollback(context.Background(), nil)
	assert.NoError(t, err)
	assert.False(t, ran, "compensator must not run after commit")
}

func TestRollbackRunsInLIFOOrder(t *testing.T) {
	tx := New()
	var order []string

	tx.AddRollback("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	tx.AddRollback("second", func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	cause := errors.New("step 3 failed")
	err := tx.Rollback(context.Background(), cause)
	require.Error(t, err)

	assert.Equal(t, []string{"second", "first"}, order)
	assert.ErrorIs(t, err, cause)
}

func TestRollbackContinuesPastCompensatorFailures(t *testing.T) {
	tx := New()
	secondRan := false

	tx.AddRollback("fails", func(ctx context.Context) error {
		return errors.New("compensator exploded")
	})
	tx.AddRollback("succeeds", func(ctx context.Context) error {
		secondRan = true
		return nil
	})

	cause := errors.New("original failure")
	err := tx.Rollback(context.Background(), cause)

	require.Error(t, err)
	assert.True(t, secondRan)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "original failure")
	assert.Contains(t, err.Error(), "compensator exploded")
}

func TestRollbackWithNoStepsAndNilCauseReturnsNil(t *testing.T) {
	tx := New()
	assert.NoError(t, tx.Rollback(context.Background(), nil))
}
