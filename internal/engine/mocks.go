package engine

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/kelmah-platform/kelmah-payout-service/db"
	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

// MockPayoutStore mocks PayoutStore.
type MockPayoutStore struct {
	mock.Mock
}

var _ PayoutStore = (*MockPayoutStore)(nil)

func (m *MockPayoutStore) Insert(ctx context.Context, sqlExec db.SQLExecuter, payout data.Payout) (*data.Payout, bool, error) {
	args := m.Called(ctx, sqlExec, payout)
	var p *data.Payout
	if args.Get(0) != nil {
		p = args.Get(0).(*data.Payout)
	}
	return p, args.Bool(1), args.Error(2)
}

func (m *MockPayoutStore) Get(ctx context.Context, sqlExec db.SQLExecuter, payoutID string) (*data.Payout, error) {
	args := m.Called(ctx, sqlExec, payoutID)
	var p *data.Payout
	if args.Get(0) != nil {
		p = args.Get(0).(*data.Payout)
	}
	return p, args.Error(1)
}

func (m *MockPayoutStore) ClaimBatch(ctx context.Context, sqlExec db.SQLExecuter, limit int) ([]*data.Payout, error) {
	args := m.Called(ctx, sqlExec, limit)
	var payouts []*data.Payout
	if args.Get(0) != nil {
		payouts = args.Get(0).([]*data.Payout)
	}
	return payouts, args.Error(1)
}

func (m *MockPayoutStore) UpdateToCompleted(ctx context.Context, sqlExec db.SQLExecuter, payoutID, providerReference string) (*data.Payout, error) {
	args := m.Called(ctx, sqlExec, payoutID, providerReference)
	var p *data.Payout
	if args.Get(0) != nil {
		p = args.Get(0).(*data.Payout)
	}
	return p, args.Error(1)
}

func (m *MockPayoutStore) UpdateToFailed(ctx context.Context, sqlExec db.SQLExecuter, payoutID string, lastError data.PayoutError) (*data.Payout, error) {
	args := m.Called(ctx, sqlExec, payoutID, lastError)
	var p *data.Payout
	if args.Get(0) != nil {
		p = args.Get(0).(*data.Payout)
	}
	return p, args.Error(1)
}

func (m *MockPayoutStore) RequeueForRetry(ctx context.Context, sqlExec db.SQLExecuter, payoutID string, lastError data.PayoutError, backoff time.Duration) (*data.Payout, error) {
	args := m.Called(ctx, sqlExec, payoutID, lastError, backoff)
	var p *data.Payout
	if args.Get(0) != nil {
		p = args.Get(0).(*data.Payout)
	}
	return p, args.Error(1)
}

func (m *MockPayoutStore) RequeueClaimed(ctx context.Context, sqlExec db.SQLExecuter, payoutIDs []string) (int64, error) {
	args := m.Called(ctx, sqlExec, payoutIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPayoutStore) ResetStaleProcessing(ctx context.Context, sqlExec db.SQLExecuter, staleThreshold time.Duration) (int64, error) {
	args := m.Called(ctx, sqlExec, staleThreshold)
	return args.Get(0).(int64), args.Error(1)
}
