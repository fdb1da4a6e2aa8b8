package jobs

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/kelmah-platform/kelmah-payout-service/internal/engine"
)

// MockPayoutEngine mocks PayoutEngine.
type MockPayoutEngine struct {
	mock.Mock
}

func (m *MockPayoutEngine) ProcessBatch(ctx context.Context, limit int) (engine.BatchResult, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).(engine.BatchResult), args.Error(1)
}

func (m *MockPayoutEngine) SweepStale(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

var _ PayoutEngine = (*MockPayoutEngine)(nil)

// MockJob mocks the Job interface.
type MockJob struct {
	mock.Mock
}

func (m *MockJob) Execute(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockJob) GetInterval() time.Duration {
	return m.Called().Get(0).(time.Duration)
}

func (m *MockJob) GetName() string {
	return m.Called().String(0)
}

var _ Job = (*MockJob)(nil)
