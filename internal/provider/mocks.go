package provider

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

// MockDispatcher mocks the Dispatcher interface.
type MockDispatcher struct {
	mock.Mock
	ProviderName data.PayoutProvider
}

func (m *MockDispatcher) Dispatch(ctx context.Context, req DispatchRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockDispatcher) Provider() data.PayoutProvider {
	return m.ProviderName
}

var _ Dispatcher = (*MockDispatcher)(nil)

// MockHTTPClient mocks the HTTPClientInterface.
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

var _ HTTPClientInterface = (*MockHTTPClient)(nil)
