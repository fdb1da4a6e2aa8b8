package httphandler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
	"github.com/kelmah-platform/kelmah-payout-service/internal/engine"
)

// MockPayoutEngine mocks PayoutEngineInterface.
type MockPayoutEngine struct {
	mock.Mock
}

func (m *MockPayoutEngine) Enqueue(ctx context.Context, req engine.EnqueueRequest) (*data.Payout, bool, error) {
	args := m.Called(ctx, req)
	var p *data.Payout
	if args.Get(0) != nil {
		p = args.Get(0).(*data.Payout)
	}
	return p, args.Bool(1), args.Error(2)
}

func (m *MockPayoutEngine) ProcessBatch(ctx context.Context, limit int) (engine.BatchResult, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).(engine.BatchResult), args.Error(1)
}

func (m *MockPayoutEngine) RetryFailed(ctx context.Context, payoutID string) (*data.Payout, error) {
	args := m.Called(ctx, payoutID)
	var p *data.Payout
	if args.Get(0) != nil {
		p = args.Get(0).(*data.Payout)
	}
	return p, args.Error(1)
}

var _ PayoutEngineInterface = (*MockPayoutEngine)(nil)
