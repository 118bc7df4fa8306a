package integrityChecker

import (
	"context"
	"time"
)

// Auditor defines the interface for integrity auditing operations
type Auditor interface {
	Audit(ctx context.Context) error
	RunLoop(ctx context.Context, interval time.Duration) error
}
