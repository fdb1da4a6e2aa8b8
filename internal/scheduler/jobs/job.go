package jobs

import (
	"context"
	"time"
)

// DefaultMinimumJobIntervalSeconds is the floor for any job interval. Tighter loops would hammer the claim query
// for no benefit, the claim statement already serializes concurrent batches.
const DefaultMinimumJobIntervalSeconds = 5

// Job is a periodic task run by the scheduler.
type Job interface {
	Execute(context.Context) error
	GetInterval() time.Duration
	GetName() string
}
