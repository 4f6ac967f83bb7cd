// Package gather runs the incremental daily-bar synchronization: gap
// calculation, bucketed ingestion and the surrounding run bookkeeping.
package gather

import (
	"context"
	"time"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass and returns when it is done or ctx is
	// cancelled.
	Run(ctx context.Context) error
}

// DateRange is a fetch window. End is exclusive; a zero End is open-ended.
type DateRange struct {
	Start time.Time
	End   time.Time
}
