package accounts

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kelmah-platform/kelmah-payout-service/internal/provider"
)

// MockClient mocks the user service client.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) ResolvePaymentMethod(ctx context.Context, userID, paymentMethodID string) (*provider.PaymentMethodDetails, error) {
	args := m.Called(ctx, userID, paymentMethodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.PaymentMethodDetails), args.Error(1)
}

var _ ClientInterface = (*MockClient)(nil)
