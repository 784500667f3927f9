package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/foxwatt/foxwatt/pkg/storage/storagemock"
	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLogs(t *testing.T) {
	logs := []types.APICallLog{{
		ID:           "2",
		Timestamp:    time.Date(2024, time.March, 15, 6, 0, 0, 0, time.UTC),
		Endpoint:     "dev-1/report",
		Method:       http.MethodGet,
		Params:       map[string]string{"year": "2024"},
		StatusCode:   http.StatusTooManyRequests,
		ErrorMessage: "Too many requests. Please wait and try again.",
		DurationMS:   120,
	}}

	t.Run("List", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("ListAPICallLogs", mock.Anything, types.APICallLogFilter{Limit: 10, Endpoint: "dev-1/report", FailedOnly: true}).Return(logs, nil).Once()

		w := serve(t, newTestServer(t, &mockVendor{}, db, nil), http.MethodGet, "/api/logs?limit=10&endpoint=dev-1/report&failed=true")
		require.Equal(t, http.StatusOK, w.Code)

		var got []types.APICallLog
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, logs, got)
		db.AssertExpectations(t)
	})

	t.Run("List Defaults", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("ListAPICallLogs", mock.Anything, types.APICallLogFilter{}).Return(nil, nil).Once()

		w := serve(t, newTestServer(t, &mockVendor{}, db, nil), http.MethodGet, "/api/logs")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("Limit Is Capped", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("ListAPICallLogs", mock.Anything, types.APICallLogFilter{Limit: maxLogLimit}).Return(nil, nil).Once()

		w := serve(t, newTestServer(t, &mockVendor{}, db, nil), http.MethodGet, "/api/logs?limit=50000")
		assert.Equal(t, http.StatusOK, w.Code)
		db.AssertExpectations(t)
	})

	t.Run("Invalid Limit", func(t *testing.T) {
		w := serve(t, newTestServer(t, &mockVendor{}, &storagemock.MockDatabase{}, nil), http.MethodGet, "/api/logs?limit=abc")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		pruner := &mockPruner{}
		pruner.On("PruneDays", mock.Anything, 3).Return(int64(42), nil).Once()

		w := serve(t, newTestServer(t, &mockVendor{}, nil, pruner), http.MethodDelete, "/api/logs?days=3")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"deleted":42}`, w.Body.String())
		pruner.AssertExpectations(t)
	})

	t.Run("Delete Default Days", func(t *testing.T) {
		pruner := &mockPruner{}
		pruner.On("PruneDays", mock.Anything, defaultLogsDays).Return(int64(0), nil).Once()

		w := serve(t, newTestServer(t, &mockVendor{}, nil, pruner), http.MethodDelete, "/api/logs")
		assert.Equal(t, http.StatusOK, w.Code)
		pruner.AssertExpectations(t)
	})

	t.Run("Delete Invalid Days", func(t *testing.T) {
		pruner := &mockPruner{}
		w := serve(t, newTestServer(t, &mockVendor{}, nil, pruner), http.MethodDelete, "/api/logs?days=-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		pruner.AssertNotCalled(t, "PruneDays", mock.Anything, mock.Anything)
	})

	t.Run("Delete Error", func(t *testing.T) {
		pruner := &mockPruner{}
		pruner.On("PruneDays", mock.Anything, 7).Return(int64(0), assert.AnError)

		w := serve(t, newTestServer(t, &mockVendor{}, nil, pruner), http.MethodDelete, "/api/logs?days=7")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
