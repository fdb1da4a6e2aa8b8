package data

import (
	"fmt"
	"slices"
	"strings"
)

type PayoutStatus string

const (
	// QueuedPayoutStatus indicates that a payout has been accepted and is waiting to be claimed by a batch.
	QueuedPayoutStatus PayoutStatus = "QUEUED"
	// ProcessingPayoutStatus indicates that a payout has been claimed by a batch and owns an in-flight dispatch.
	ProcessingPayoutStatus PayoutStatus = "PROCESSING"
	// CompletedPayoutStatus indicates that the provider accepted the disbursement. Terminal.
	CompletedPayoutStatus PayoutStatus = "COMPLETED"
	// FailedPayoutStatus indicates a permanent rejection or exhausted retries. Terminal.
	FailedPayoutStatus PayoutStatus = "FAILED"
)

// PayoutStatuses returns a list of all possible payout statuses.
func PayoutStatuses() []PayoutStatus {
	return []PayoutStatus{QueuedPayoutStatus, ProcessingPayoutStatus, CompletedPayoutStatus, FailedPayoutStatus}
}

// Validate validates the payout status.
func (status PayoutStatus) Validate() error {
	switch PayoutStatus(strings.ToUpper(string(status))) {
	case QueuedPayoutStatus, ProcessingPayoutStatus, CompletedPayoutStatus, FailedPayoutStatus:
		return nil
	default:
		return fmt.Errorf("invalid payout status: %s", status)
	}
}

// IsTerminal reports whether the status is absorbing.
func (status PayoutStatus) IsTerminal() bool {
	return status == CompletedPayoutStatus || status == FailedPayoutStatus
}

// payoutStatusTransitions lists the allowed lifecycle transitions. Terminal statuses have no outgoing edges.
var payoutStatusTransitions = map[PayoutStatus][]PayoutStatus{
	// The engine claims the payout for a batch.
	QueuedPayoutStatus: {ProcessingPayoutStatus},
	// The dispatch either succeeded, failed permanently (or out of attempts), or gets requeued after a
	// transient error or by the crash-recovery sweep.
	ProcessingPayoutStatus: {CompletedPayoutStatus, FailedPayoutStatus, QueuedPayoutStatus},
}

// CanTransitionTo verifies if the transition is allowed.
func (status PayoutStatus) CanTransitionTo(targetState PayoutStatus) error {
	if slices.Contains(payoutStatusTransitions[status], targetState) {
		return nil
	}
	return fmt.Errorf("cannot transition from %s to %s", status, targetState)
}

// ToPayoutStatus converts a string to a PayoutStatus.
func ToPayoutStatus(s string) (PayoutStatus, error) {
	err := PayoutStatus(s).Validate()
	if err != nil {
		return "", err
	}
	return PayoutStatus(strings.ToUpper(s)), nil
}
