package jobs

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// StalePayoutsSweepJob periodically requeues payouts stuck in PROCESSING, recovering claims orphaned by a crash.
type StalePayoutsSweepJob struct {
	engine          PayoutEngine
	intervalSeconds int
}

const (
	stalePayoutsSweepJobName            = "stale_payouts_sweep_job"
	StalePayoutsSweepJobIntervalSeconds = 60
)

func NewStalePayoutsSweepJob(payoutEngine PayoutEngine, intervalSeconds int) *StalePayoutsSweepJob {
	if intervalSeconds < DefaultMinimumJobIntervalSeconds {
		log.Fatalf("interval for %s must be greater than or equal to %d seconds", stalePayoutsSweepJobName, DefaultMinimumJobIntervalSeconds)
	}
	return &StalePayoutsSweepJob{engine: payoutEngine, intervalSeconds: intervalSeconds}
}

func (j StalePayoutsSweepJob) GetInterval() time.Duration {
	return time.Duration(j.intervalSeconds) * time.Second
}

func (j StalePayoutsSweepJob) GetName() string {
	return stalePayoutsSweepJobName
}

func (j StalePayoutsSweepJob) Execute(ctx context.Context) error {
	if _, err := j.engine.SweepStale(ctx); err != nil {
		return fmt.Errorf("executing %s: %w", stalePayoutsSweepJobName, err)
	}
	return nil
}

var _ Job = (*StalePayoutsSweepJob)(nil)
