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

func TestHistory(t *testing.T) {
	hours := []types.HourValue{
		{DeviceID: "dev-1", Year: 2024, Month: 3, Day: 15, Hour: 6, Timestamp: 1710478800, KWh: ptr(0.3)},
	}

	t.Run("Hour Values", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("GetHourValues", mock.Anything, "dev-1", types.PeriodQuery{Year: 2024, Month: ptr(3), Day: ptr(15)}).Return(hours, nil).Once()

		w := serve(t, newTestServer(t, &mockVendor{}, db, nil), http.MethodGet, "/api/history/hour?deviceId=dev-1&year=2024&month=3&day=15")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "private, max-age=86400", w.Header().Get("Cache-Control"))

		var resp struct {
			Granularity types.Granularity `json:"granularity"`
			DeviceID    string            `json:"deviceId"`
			Values      []types.HourValue `json:"values"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, types.GranularityHour, resp.Granularity)
		require.Len(t, resp.Values, 1)
		assert.Equal(t, 0.3, *resp.Values[0].KWh)
		db.AssertExpectations(t)
	})

	t.Run("Current Year Is Cached Briefly", func(t *testing.T) {
		year := time.Now().Year()
		db := &storagemock.MockDatabase{}
		db.On("GetMonthValues", mock.Anything, "dev-1", types.PeriodQuery{Year: year}).Return([]types.MonthValue{}, nil)

		w := serve(t, newTestServer(t, &mockVendor{}, db, nil), http.MethodGet, "/api/history/month?deviceId=dev-1&year="+time.Now().Format("2006"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "private, max-age=60", w.Header().Get("Cache-Control"))
	})

	t.Run("Other Granularities", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("GetQuarterHourValues", mock.Anything, "dev-1", mock.Anything).Return([]types.QuarterHourValue{}, nil).Once()
		db.On("GetDayValues", mock.Anything, "dev-1", mock.Anything).Return([]types.DayValue{}, nil).Once()
		srv := newTestServer(t, &mockVendor{}, db, nil)

		assert.Equal(t, http.StatusOK, serve(t, srv, http.MethodGet, "/api/history/quarterHour?deviceId=dev-1&year=2024&month=3&day=15").Code)
		assert.Equal(t, http.StatusOK, serve(t, srv, http.MethodGet, "/api/history/day?deviceId=dev-1&year=2024&month=3").Code)
		db.AssertExpectations(t)
	})

	t.Run("Bad Requests", func(t *testing.T) {
		srv := newTestServer(t, &mockVendor{}, &storagemock.MockDatabase{}, nil)

		tests := []struct {
			name   string
			path   string
			status int
		}{
			{"Unknown Granularity", "/api/history/week?deviceId=dev-1&year=2024", http.StatusNotFound},
			{"Missing Device", "/api/history/hour?year=2024", http.StatusBadRequest},
			{"Missing Year", "/api/history/hour?deviceId=dev-1", http.StatusBadRequest},
			{"Invalid Month", "/api/history/hour?deviceId=dev-1&year=2024&month=13", http.StatusBadRequest},
			{"Day Without Month", "/api/history/hour?deviceId=dev-1&year=2024&day=3", http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := serve(t, srv, http.MethodGet, tt.path)
				assert.Equal(t, tt.status, w.Code)
			})
		}
	})

	t.Run("Storage Error", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("GetDayValues", mock.Anything, "dev-1", mock.Anything).Return(nil, assert.AnError)

		w := serve(t, newTestServer(t, &mockVendor{}, db, nil), http.MethodGet, "/api/history/day?deviceId=dev-1&year=2024")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
