// Package txn implements the Transaction Manager (§4.7): an ordered
// stack of compensating actions attached during a multi-step operation,
// committed (discarded) on success or unwound in LIFO order on failure.
package txn

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/robertjbass/spindb/internal/logger"
)

// Step is one compensating action: Description is for logging,
// Compensate undoes whatever the forward step did. Compensators must
// tolerate "already undone" conditions (drop-if-exists, remove-if-absent)
// since a later failure may run them against partially-unwound state.
type Step struct {
	Description string
	Compensate  func(ctx context.Context) error
}

// Tx is a single operation's rollback stack. The zero value is usable.
type Tx struct {
	steps []Step
}

// New returns an empty transaction.
func New() *Tx {
	return &Tx{}
}

// AddRollback pushes a compensating action onto the stack.
func (t *Tx) AddRollback(description string, compensate func(ctx context.Context) error) {
	t.steps = append(t.steps, Step{Description: description, Compensate: compensate})
}

// Commit discards every registered compensator; call this once the
// operation has fully succeeded.
func (t *Tx) Commit() {
	t.steps = nil
}

// Rollback runs every registered compensator in LIFO order, continuing
// past individual failures and aggregating them. cause is the error that
// triggered the rollback; it is always the first error in the returned
// multierror so the original cause is never masked (§7).
func (t *Tx) Rollback(ctx context.Context, cause error) error {
	log := logger.GetLogger(ctx)
	var result *multierror.Error
	if cause != nil {
		result = multierror.Append(result, cause)
	}

	for i := len(t.steps) - 1; i >= 0; i-- {
		step := t.steps[i]
		if err := step.Compensate(ctx); err != nil {
			log.Warn("rollback step failed",
				zap.String("description", step.Description), zap.Error(err))
			result = multierror.Append(result, err)
		} else {
			log.Info("rollback step completed", zap.String("description", step.Description))
		}
	}

	t.steps = nil
	if result == nil {
		return nil
	}
	return result.ErrorOrNil()
}

// Len reports how many compensators are currently registered, mostly for
// tests asserting a transaction unwound completely.
func (t *Tx) Len() int { return len(t.steps) }
