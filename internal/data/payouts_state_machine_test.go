package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ToPayoutStatus(t *testing.T) {
	testCases := []struct {
		input    string
		expected PayoutStatus
		wantErr  bool
	}{
		{input: "QUEUED", expected: QueuedPayoutStatus},
		{input: "queued", expected: QueuedPayoutStatus},
		{input: "Processing", expected: ProcessingPayoutStatus},
		{input: "COMPLETED", expected: CompletedPayoutStatus},
		{input: "failed", expected: FailedPayoutStatus},
		{input: "unknown", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			status, err := ToPayoutStatus(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, status)
			}
		})
	}
}

func Test_PayoutStatus_IsTerminal(t *testing.T) {
	assert.False(t, QueuedPayoutStatus.IsTerminal())
	assert.False(t, ProcessingPayoutStatus.IsTerminal())
	assert.True(t, CompletedPayoutStatus.IsTerminal())
	assert.True(t, FailedPayoutStatus.IsTerminal())
}

func Test_PayoutStatus_CanTransitionTo(t *testing.T) {
	testCases := []struct {
		from    PayoutStatus
		to      PayoutStatus
		allowed bool
	}{
		{QueuedPayoutStatus, ProcessingPayoutStatus, true},
		{ProcessingPayoutStatus, CompletedPayoutStatus, true},
		{ProcessingPayoutStatus, FailedPayoutStatus, true},
		{ProcessingPayoutStatus, QueuedPayoutStatus, true},

		// Terminal statuses absorb.
		{CompletedPayoutStatus, QueuedPayoutStatus, false},
		{CompletedPayoutStatus, FailedPayoutStatus, false},
		{FailedPayoutStatus, QueuedPayoutStatus, false},
		{FailedPayoutStatus, CompletedPayoutStatus, false},

		{QueuedPayoutStatus, CompletedPayoutStatus, false},
		{QueuedPayoutStatus, FailedPayoutStatus, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to) == nil)
		})
	}
}

func Test_PayoutStatuses(t *testing.T) {
	assert.Equal(t, []PayoutStatus{QueuedPayoutStatus, ProcessingPayoutStatus, CompletedPayoutStatus, FailedPayoutStatus}, PayoutStatuses())
}
