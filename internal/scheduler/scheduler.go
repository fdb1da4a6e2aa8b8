package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kelmah-platform/kelmah-payout-service/internal/crashtracker"
	"github.com/kelmah-platform/kelmah-payout-service/internal/scheduler/jobs"
)

// Scheduler manages a list of jobs and executes them at their specified intervals.
// It uses a job queue to distribute jobs to workers.
type Scheduler struct {
	jobs               map[string]jobs.Job
	cancel             context.CancelFunc
	crashTrackerClient crashtracker.CrashTrackerClient
	jobQueue           chan jobs.Job
	// enqueuedJobs keeps track of in-flight jobs so a job that runs longer than its interval is not enqueued twice.
	enqueuedJobs sync.Map
}

type SchedulerOptions struct {
	ProcessPayoutsJobIntervalSeconds    int
	ProcessPayoutsJobBatchLimit         int
	StalePayoutsSweepJobIntervalSeconds int
}

type SchedulerJobRegisterOption func(*Scheduler)

// SchedulerWorkerCount is the number of workers that will be started to process jobs
const SchedulerWorkerCount = 2

// StartScheduler initializes and starts the scheduler. This method blocks until the scheduler is stopped.
func StartScheduler(crashTrackerClient crashtracker.CrashTrackerClient, schedulerJobRegisters ...SchedulerJobRegisterOption) {
	// Flush buffered crash tracker events before the scheduler terminates
	defer crashTrackerClient.FlushEvents(2 * time.Second)
	// Recover from unhandled panics
	defer crashTrackerClient.Recover()

	ctx, cancel := context.WithCancel(context.Background())

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	scheduler := newScheduler(cancel)
	scheduler.crashTrackerClient = crashTrackerClient

	for _, schedulerJobRegister := range schedulerJobRegisters {
		schedulerJobRegister(scheduler)
	}

	scheduler.start(ctx)

	<-signalChan

	scheduler.stop()
}

func newScheduler(cancel context.CancelFunc) *Scheduler {
	return &Scheduler{
		jobs:     make(map[string]jobs.Job),
		cancel:   cancel,
		jobQueue: make(chan jobs.Job),
	}
}

// addJob adds a job to the scheduler. This method does not start the job. To start the job, call start().
func (s *Scheduler) addJob(job jobs.Job) {
	log.Infof("registering job to scheduler [name: %s], [interval: %s]", job.GetName(), job.GetInterval())
	s.jobs[job.GetName()] = job
}

// start starts the scheduler and all jobs. This method blocks until the scheduler is stopped.
func (s *Scheduler) start(ctx context.Context) {
	if len(s.jobs) == 0 {
		log.WithContext(ctx).Info("No jobs to start")
		s.stop()
		return
	}
	log.WithContext(ctx).Infof("Starting scheduler with %d workers...", SchedulerWorkerCount)

	// 1. Start the workers that process jobs from the job queue.
	for i := 1; i <= SchedulerWorkerCount; i++ {
		// each worker gets its own crash tracker clone so error reports don't share hub state
		go worker(ctx, i, s.crashTrackerClient.Clone(), s)
	}

	// 2. Enqueue jobs to jobQueue. One lightweight goroutine per job, waiting on its ticker.
	for _, job := range s.jobs {
		go func(job jobs.Job) {
			ticker := time.NewTicker(job.GetInterval())
			for {
				select {
				case <-ticker.C:
					jobName := job.GetName()
					if _, alreadyEnqueued := s.enqueuedJobs.LoadOrStore(jobName, true); !alreadyEnqueued {
						log.WithContext(ctx).Debugf("Enqueuing job: %s", jobName)
						s.jobQueue <- job
					} else {
						log.WithContext(ctx).Debugf("Skipping job %s, already in queue", jobName)
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}(job)
	}
}

// stop uses the context to stop the scheduler and all jobs.
func (s *Scheduler) stop() {
	log.Info("Stopping scheduler...")
	s.cancel()
}

// worker is a goroutine that processes jobs from the job queue.
func worker(ctx context.Context, workerID int, crashTrackerClient crashtracker.CrashTrackerClient, scheduler *Scheduler) {
	defer func() {
		if r := recover(); r != nil {
			log.WithContext(ctx).Errorf("Worker %d encountered a panic while processing a job: %v", workerID, r)
		}
	}()
	for {
		select {
		case job := <-scheduler.jobQueue:
			log.WithContext(ctx).Debugf("Processing job %s on worker %d", job.GetName(), workerID)
			if err := job.Execute(ctx); err != nil {
				msg := fmt.Sprintf("error processing job %s on worker %d", job.GetName(), workerID)
				crashTrackerClient.LogAndReportErrors(ctx, err, msg)
			}
			scheduler.enqueuedJobs.Delete(job.GetName())
		case <-ctx.Done():
			log.WithContext(ctx).Infof("Worker %d stopping...", workerID)
			return
		}
	}
}

func WithProcessPayoutsJobOption(payoutEngine jobs.PayoutEngine, intervalSeconds, batchLimit int) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		s.addJob(jobs.NewProcessPayoutsJob(payoutEngine, intervalSeconds, batchLimit))
	}
}

func WithStalePayoutsSweepJobOption(payoutEngine jobs.PayoutEngine, intervalSeconds int) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		s.addJob(jobs.NewStalePayoutsSweepJob(payoutEngine, intervalSeconds))
	}
}
