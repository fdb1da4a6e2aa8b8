package monitor

import (
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"
)

// NoopMonitorService discards all measurements. Used in tests and one-shot commands.
type NoopMonitorService struct{}

func (NoopMonitorService) MonitorEnqueuedPayout(string)                          {}
func (NoopMonitorService) MonitorDispatch(string, string, time.Duration)         {}
func (NoopMonitorService) MonitorBatch(int, int, int)                            {}
func (NoopMonitorService) MonitorHTTPRequest(string, string, int, time.Duration) {}
func (NoopMonitorService) HTTPHandler() http.Handler                             { return http.NotFoundHandler() }

var _ MonitorServiceInterface = NoopMonitorService{}

// MockMonitorService mocks MonitorServiceInterface.
type MockMonitorService struct {
	mock.Mock
}

func (m *MockMonitorService) MonitorEnqueuedPayout(provider string) {
	m.Called(provider)
}

func (m *MockMonitorService) MonitorDispatch(provider, outcome string, duration time.Duration) {
	m.Called(provider, outcome, duration)
}

func (m *MockMonitorService) MonitorBatch(processed, succeeded, failed int) {
	m.Called(processed, succeeded, failed)
}

func (m *MockMonitorService) MonitorHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.Called(method, route, statusCode, duration)
}

func (m *MockMonitorService) HTTPHandler() http.Handler {
	args := m.Called()
	return args.Get(0).(http.Handler)
}

var _ MonitorServiceInterface = (*MockMonitorService)(nil)
