package httphandler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelmah-platform/kelmah-payout-service/db"
)

func Test_HealthHandler(t *testing.T) {
	t.Run("returns 200 when the database is reachable", func(t *testing.T) {
		sqlDB, mockDB, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer sqlDB.Close()
		mockDB.ExpectPing()

		handler := HealthHandler{
			Version:          "1.3.0",
			ServiceID:        "kelmah-payout-service",
			ReleaseID:        "abc123",
			DBConnectionPool: db.NewDBConnectionPoolFromSqlDB(sqlDB, "postgres"),
		}

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{
			"status": "pass",
			"version": "1.3.0",
			"service_id": "kelmah-payout-service",
			"release_id": "abc123",
			"services": {"database": "pass"}
		}`, rr.Body.String())
	})

	t.Run("returns 503 when the database is unreachable", func(t *testing.T) {
		sqlDB, mockDB, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer sqlDB.Close()
		mockDB.ExpectPing().WillReturnError(errors.New("connection refused"))

		handler := HealthHandler{
			Version:          "1.3.0",
			ServiceID:        "kelmah-payout-service",
			DBConnectionPool: db.NewDBConnectionPoolFromSqlDB(sqlDB, "postgres"),
		}

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.JSONEq(t, `{
			"status": "fail",
			"version": "1.3.0",
			"service_id": "kelmah-payout-service",
			"services": {"database": "fail"}
		}`, rr.Body.String())
	})
}
