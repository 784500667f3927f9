package powerfox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foxwatt/foxwatt/pkg/common"
	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) InsertAPICallLog(ctx context.Context, entry types.APICallLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

var testCreds = types.Credentials{Email: "user@example.com", Password: "secret"}

func ptr[T any](v T) *T {
	return &v
}

func TestFetchReport(t *testing.T) {
	t.Run("RequestAndDecode", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/2.0/my/dev-1/report", r.URL.Path)
			assert.Equal(t, "2024", r.URL.Query().Get("year"))
			assert.Equal(t, "3", r.URL.Query().Get("month"))
			assert.Equal(t, "15", r.URL.Query().Get("day"))
			assert.Equal(t, "6", r.URL.Query().Get("fromhour"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, testCreds.Email, user)
			assert.Equal(t, testCreds.Password, pass)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"Consumption": {"ReportValues": [
					{"Timestamp": 1000, "Delta": 5},
					{"timestamp": 2000, "consumption": 1.5},
					{"timestamp": 3000, "delta": null}
				]},
				"feedIn": {"reportValues": [
					{"timestamp": 1000, "deltaKiloWattHour": 2}
				]}
			}`))
		}))
		defer ts.Close()

		rec := &mockRecorder{}
		rec.On("InsertAPICallLog", mock.Anything, mock.MatchedBy(func(e types.APICallLog) bool {
			return e.Endpoint == "dev-1/report" && e.Success && e.StatusCode == http.StatusOK &&
				e.Method == http.MethodGet && e.Params["year"] == "2024" && e.Params["fromhour"] == "6"
		})).Return(nil).Once()

		c := New(ts.URL+"/api/2.0/my", ts.Client(), rec)
		payload, err := c.FetchReport(context.Background(), testCreds, "dev-1", types.ReportParams{
			Year: 2024, Month: ptr(3), Day: ptr(15), FromHour: ptr(6), FromMinute: ptr(30),
		})
		require.NoError(t, err)

		cons := payload.ConsumptionValues()
		require.Len(t, cons, 3)
		assert.Equal(t, int64(1000), cons[0].Timestamp)
		assert.Equal(t, 5.0, *cons[0].Delta)
		assert.Equal(t, 1.5, *cons[1].Consumption)
		assert.Nil(t, cons[2].Delta)

		feed := payload.FeedInValues()
		require.Len(t, feed, 1)
		assert.Equal(t, 2.0, *feed[0].DeltaKiloWattHour)
		rec.AssertExpectations(t)
	})

	t.Run("OmitsUnsetParams", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "year=2023", r.URL.RawQuery)
			_, _ = w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		c := New(ts.URL, ts.Client(), nil)
		payload, err := c.FetchReport(context.Background(), testCreds, "dev", types.ReportParams{Year: 2023})
		require.NoError(t, err)
		assert.Nil(t, payload.ConsumptionValues())
		assert.Nil(t, payload.FeedInValues())
	})

	t.Run("StatusMapping", func(t *testing.T) {
		cases := []struct {
			status   int
			sentinel error
			kind     ErrorKind
			message  string
		}{
			{http.StatusUnauthorized, ErrInvalidCredentials, KindInvalidCredentials, "Invalid credentials"},
			{http.StatusPreconditionFailed, ErrTransmissionRefused, KindTransmissionRefused, "Data transmission has been refused by the customer"},
			{http.StatusTooManyRequests, ErrRateLimited, KindRateLimited, "Too many requests. Please wait and try again."},
			{http.StatusInternalServerError, nil, KindHTTP, "API error: 500"},
		}
		for _, tc := range cases {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))

			rec := &mockRecorder{}
			rec.On("InsertAPICallLog", mock.Anything, mock.MatchedBy(func(e types.APICallLog) bool {
				return !e.Success && e.StatusCode == tc.status && e.ErrorMessage == tc.message
			})).Return(nil).Once()

			c := New(ts.URL, ts.Client(), rec)
			_, err := c.FetchReport(context.Background(), testCreds, "dev", types.ReportParams{Year: 2024})
			require.Error(t, err)

			var pErr *Error
			require.True(t, errors.As(err, &pErr))
			assert.Equal(t, tc.kind, pErr.Kind)
			assert.Equal(t, tc.status, pErr.StatusCode)
			assert.Equal(t, tc.status, pErr.HTTPStatus())
			assert.Equal(t, tc.message, pErr.Error())
			if tc.sentinel != nil {
				assert.ErrorIs(t, err, tc.sentinel)
			}
			rec.AssertExpectations(t)
			ts.Close()
		}
	})

	t.Run("NetworkError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := ts.URL
		ts.Close()

		c := New(url, nil, nil)
		_, err := c.FetchReport(context.Background(), testCreds, "dev", types.ReportParams{Year: 2024})
		var pErr *Error
		require.True(t, errors.As(err, &pErr))
		assert.Equal(t, KindNetwork, pErr.Kind)
		assert.Equal(t, http.StatusBadGateway, pErr.HTTPStatus())
	})

	t.Run("RecorderFailureIgnored", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"consumption":{"reportValues":[]}}`))
		}))
		defer ts.Close()

		rec := &mockRecorder{}
		rec.On("InsertAPICallLog", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		c := New(ts.URL, ts.Client(), rec)
		_, err := c.FetchReport(context.Background(), testCreds, "dev", types.ReportParams{Year: 2024})
		assert.NoError(t, err)
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		c := New("http://127.0.0.1:1", nil, nil)
		_, err := c.FetchReport(context.Background(), types.Credentials{Email: "a"}, "dev", types.ReportParams{Year: 2024})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer ts.Close()

		c := New(ts.URL, ts.Client(), nil)
		_, err := c.FetchReport(context.Background(), testCreds, "dev", types.ReportParams{Year: 2024})
		require.Error(t, err)
		var pErr *Error
		assert.False(t, errors.As(err, &pErr))
	})
}

func TestFetchDevices(t *testing.T) {
	t.Run("List", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/all/devices", r.URL.Path)
			_, _ = w.Write([]byte(`[
				{"deviceId": "a", "name": "Main", "mainDevice": true, "prosumer": true, "division": 0, "accountAssociatedSince": 1600000000},
				{"device_id": "b", "Name": "Heat pump", "Division": 1},
				{"name": "broken"}
			]`))
		}))
		defer ts.Close()

		c := New(ts.URL, ts.Client(), nil)
		devices, err := c.FetchDevices(context.Background(), testCreds)
		require.NoError(t, err)
		require.Len(t, devices, 2)
		assert.Equal(t, types.Device{DeviceID: "a", Name: "Main", MainDevice: true, Prosumer: true, AccountAssociatedSince: 1600000000}, devices[0])
		assert.Equal(t, "b", devices[1].DeviceID)
		assert.Equal(t, "Heat pump", devices[1].Name)
		assert.Equal(t, 1, devices[1].Division)
	})

	t.Run("SingleObject", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(` {"deviceId": "only"}`))
		}))
		defer ts.Close()

		c := New(ts.URL, ts.Client(), nil)
		devices, err := c.FetchDevices(context.Background(), testCreds)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "only", devices[0].DeviceID)
	})
}

func TestFetchCurrent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dev-1/current", r.URL.Path)
		assert.Equal(t, "wh", r.URL.Query().Get("unit"))
		_, _ = w.Write([]byte(`{"Watt": 512.5, "Timestamp": 1710480600, "A_Plus": 1234.5, "a_Minus": 12, "Outdated": false}`))
	}))
	defer ts.Close()

	c := New(ts.URL, ts.Client(), nil)
	cur, err := c.FetchCurrent(context.Background(), testCreds, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", cur.DeviceID)
	assert.Equal(t, int64(1710480600), cur.Timestamp)
	assert.Equal(t, 512.5, *cur.Watt)
	assert.Equal(t, 1234.5, *cur.APlus)
	assert.Equal(t, 12.0, *cur.AMinus)
	assert.Nil(t, cur.APlusHT)
	assert.Nil(t, cur.KiloWattHour)
}

func TestDefaultClientHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, common.UserAgent(), r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, testCreds.Email, user)
		assert.Equal(t, testCreds.Password, pass)
		_, _ = w.Write([]byte(`[{"deviceId": "a"}]`))
	}))
	defer ts.Close()

	c := New(ts.URL, nil, nil)
	devices, err := c.FetchDevices(context.Background(), testCreds)
	require.NoError(t, err)
	require.Len(t, devices, 1)
}
