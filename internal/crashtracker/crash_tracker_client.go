// Package crashtracker reports unexpected errors and panics to an external error tracker. The payout engine and the
// scheduler both run long-lived loops that must never die silently while money is in flight.
package crashtracker

import (
	"context"
	"time"
)

// CrashTrackerClient is implemented by the Sentry client and by a dry-run client that only logs.
type CrashTrackerClient interface {
	LogAndReportErrors(ctx context.Context, err error, msg string)
	LogAndReportMessages(ctx context.Context, msg string)
	// FlushEvents waits up to waitTime for buffered events to be delivered. Call it before the process exits.
	FlushEvents(waitTime time.Duration) bool
	// Recover captures an in-flight panic. Use in a defer at the top of every worker goroutine.
	Recover()
	// Clone returns an independent client for a new goroutine.
	Clone() CrashTrackerClient
}
