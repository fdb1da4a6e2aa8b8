package jobs

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kelmah-platform/kelmah-payout-service/internal/engine"
)

// PayoutEngine is the subset of the engine the jobs drive.
type PayoutEngine interface {
	ProcessBatch(ctx context.Context, limit int) (engine.BatchResult, error)
	SweepStale(ctx context.Context) (int64, error)
}

var _ PayoutEngine = (*engine.Engine)(nil)

// ProcessPayoutsJob periodically claims and dispatches a batch of eligible payouts.
type ProcessPayoutsJob struct {
	engine          PayoutEngine
	intervalSeconds int
	batchLimit      int
}

const (
	processPayoutsJobName            = "process_payouts_job"
	ProcessPayoutsJobIntervalSeconds = 10
)

func NewProcessPayoutsJob(payoutEngine PayoutEngine, intervalSeconds, batchLimit int) *ProcessPayoutsJob {
	if intervalSeconds < DefaultMinimumJobIntervalSeconds {
		log.Fatalf("interval for %s must be greater than or equal to %d seconds", processPayoutsJobName, DefaultMinimumJobIntervalSeconds)
	}
	return &ProcessPayoutsJob{engine: payoutEngine, intervalSeconds: intervalSeconds, batchLimit: batchLimit}
}

func (j ProcessPayoutsJob) GetInterval() time.Duration {
	return time.Duration(j.intervalSeconds) * time.Second
}

func (j ProcessPayoutsJob) GetName() string {
	return processPayoutsJobName
}

func (j ProcessPayoutsJob) Execute(ctx context.Context) error {
	result, err := j.engine.ProcessBatch(ctx, j.batchLimit)
	if err != nil {
		return fmt.Errorf("executing %s: %w", processPayoutsJobName, err)
	}
	if result.Processed > 0 {
		log.WithContext(ctx).WithFields(log.Fields{
			"processed": result.Processed,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
			"requeued":  result.Requeued,
		}).Info("payout batch processed")
	}
	return nil
}

var _ Job = (*ProcessPayoutsJob)(nil)
