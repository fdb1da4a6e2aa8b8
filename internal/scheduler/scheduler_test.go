package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kelmah-platform/kelmah-payout-service/internal/crashtracker"
)

// countingJob is a test job that counts its executions.
type countingJob struct {
	name       string
	interval   time.Duration
	executions int
	mu         sync.Mutex
}

func (j *countingJob) GetName() string {
	return j.name
}

func (j *countingJob) GetInterval() time.Duration {
	return j.interval
}

func (j *countingJob) Execute(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.executions++
	return nil
}

func (j *countingJob) GetExecutions() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.executions
}

func TestScheduler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scheduler := newScheduler(cancel)

	mockCrashTrackerClient := &crashtracker.MockCrashTrackerClient{}
	scheduler.crashTrackerClient = mockCrashTrackerClient

	clone := crashtracker.MockCrashTrackerClient{}
	mockCrashTrackerClient.On("Clone").Return(&clone).Times(SchedulerWorkerCount)

	fastJob := &countingJob{name: "fast_job", interval: 1 * time.Second}
	slowJob := &countingJob{name: "slow_job", interval: 20 * time.Second}

	scheduler.addJob(fastJob)
	scheduler.addJob(slowJob)

	// Start the scheduler and wait for a short period to let the fast job run
	scheduler.start(ctx)
	time.Sleep(2 * time.Second)

	fastExecutions := fastJob.GetExecutions()
	require.True(t, fastExecutions > 0, "Expected job to be executed at least once, but it was executed %d times", fastExecutions)

	slowExecutions := slowJob.GetExecutions()
	require.True(t, slowExecutions == 0, "Expected job to be executed 0 times, but it was executed %d times", slowExecutions)

	cancel()
	time.Sleep(1 * time.Second)

	mockCrashTrackerClient.AssertExpectations(t)
}
