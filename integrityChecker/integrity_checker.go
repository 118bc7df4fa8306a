// Package integrityChecker audits the state store for parent/child references that have
// drifted apart: children pointing at missing parents, and parents listing children that
// are gone or point elsewhere.
package integrityChecker

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/resources"
	"ec2emulator/state"
)

const packageName = "integrityChecker"

// Checker audits one store against the declared relationships.
type Checker struct {
	store         *state.Store
	relationships []resources.Relationship
	logger        *zap.Logger
}

var _ Auditor = &Checker{}

// NewChecker returns a checker over every declared relationship.
func NewChecker(store *state.Store, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		store:         store,
		relationships: resources.Relationships(),
		logger:        logger.With(zap.String("package", packageName)),
	}
}

// Violations audits the store under a shared lock, checking every relationship in both
// directions concurrently. Results are sorted.
func (c *Checker) Violations(ctx context.Context) ([]Violation, error) {
	var found []Violation
	err := c.store.View(func() error {
		ch := make(chan Violation)
		var wg sync.WaitGroup
		for _, rel := range c.relationships {
			launch(&wg, func() { checkChildren(c.store, rel, ch) })
			launch(&wg, func() { checkParents(c.store, rel, ch) })
		}

		go func() {
			wg.Wait()
			close(ch)
		}()

		for {
			select {
			case <-ctx.Done():
				// Drain so the workers can finish before the lock is released.
				for range ch {
				}
				return errors.New(errors.ErrIntegrity, "integrity audit cancelled", nil, ctx.Err())
			case v, ok := <-ch:
				if !ok {
					return nil
				}
				found = append(found, v)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].String() < found[j].String() })
	return found, nil
}

// Audit returns nil for a consistent store, or one combined error holding an
// ErrIntegrity error per violation.
func (c *Checker) Audit(ctx context.Context) error {
	logger := c.logger.With(zap.String("operation", "Audit"))

	violations, err := c.Violations(ctx)
	if err != nil {
		return err
	}

	var combined error
	for _, v := range violations {
		combined = multierr.Append(combined, v.err())
	}
	if combined != nil {
		logger.Warn("Integrity violations found",
			zap.Int("violation_count", len(violations)),
			zap.Error(combined),
		)
		return combined
	}
	logger.Debug("Store is consistent", zap.Int("relationships", len(c.relationships)))
	return nil
}

// RunLoop audits every interval until ctx is done. A non-positive interval disables the
// loop. Violations are logged, not returned; the loop only ends through ctx.
func (c *Checker) RunLoop(ctx context.Context, interval time.Duration) error {
	logger := c.logger.With(zap.String("operation", "RunLoop"))
	if interval <= 0 {
		logger.Info("Integrity checks disabled")
		return nil
	}

	logger.Info("Integrity check loop started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Integrity check loop stopped")
			return errors.New(errors.ErrIntegrity, "integrity check cancelled", nil, ctx.Err())
		case <-ticker.C:
			if err := c.Audit(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Integrity audit reported drift",
					zap.Int("violation_count", len(multierr.Errors(err))),
				)
			}
		}
	}
}
