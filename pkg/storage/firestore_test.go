package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	// use a random database for isolation
	randDB := fmt.Sprintf("test-db-%d", time.Now().UnixNano())
	f := &FirestoreProvider{
		projectID: "test-project-id",
		database:  randDB,
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, f.Validate())
	})

	t.Run("EmptyDeviceID", func(t *testing.T) {
		_, err := f.GetHourValues(ctx, "", types.PeriodQuery{Year: 2024})
		assert.ErrorContains(t, err, "deviceID cannot be empty")
	})

	t.Run("Devices", func(t *testing.T) {
		_, err := f.GetDevice(ctx, "missing")
		assert.ErrorIs(t, err, ErrDeviceNotFound)

		require.NoError(t, f.UpsertDevice(ctx, types.Device{DeviceID: "fs-main", Name: "Main", MainDevice: true}))
		require.NoError(t, f.EnsureDevice(ctx, "fs-main"))
		require.NoError(t, f.EnsureDevice(ctx, "fs-stub"))

		d, err := f.GetDevice(ctx, "fs-main")
		require.NoError(t, err)
		assert.Equal(t, "Main", d.Name)
		assert.True(t, d.MainDevice)

		devices, err := f.ListDevices(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(devices), 2)
		assert.True(t, devices[0].MainDevice)
	})

	t.Run("ReportValues", func(t *testing.T) {
		kwh := 1.25
		qh := types.QuarterHourValue{DeviceID: "fs-dev", Year: 2024, Month: 3, Day: 15, Hour: 6, Minute: 45, Timestamp: 1710481500, Watt: &kwh}
		require.NoError(t, f.UpsertQuarterHourValue(ctx, qh))
		require.NoError(t, f.UpsertQuarterHourValue(ctx, qh))
		assert.Error(t, f.UpsertQuarterHourValue(ctx, types.QuarterHourValue{DeviceID: "fs-dev", Minute: 7}))

		qhs, err := f.GetQuarterHourValues(ctx, "fs-dev", types.PeriodQuery{Year: 2024, Month: &qh.Month, Day: &qh.Day})
		require.NoError(t, err)
		require.Len(t, qhs, 1)
		assert.Equal(t, kwh, *qhs[0].Watt)

		for _, h := range []int{2, 1} {
			require.NoError(t, f.UpsertHourValue(ctx, types.HourValue{DeviceID: "fs-dev", Year: 2024, Month: 3, Day: 15, Hour: h, KWh: &kwh}))
		}
		hours, err := f.GetHourValues(ctx, "fs-dev", types.PeriodQuery{Year: 2024})
		require.NoError(t, err)
		require.Len(t, hours, 2)
		assert.Equal(t, 1, hours[0].Hour)

		require.NoError(t, f.UpsertDayValue(ctx, types.DayValue{DeviceID: "fs-dev", Year: 2024, Month: 3, Day: 15, KWh: &kwh}))
		days, err := f.GetDayValues(ctx, "fs-dev", types.PeriodQuery{Year: 2024})
		require.NoError(t, err)
		assert.Len(t, days, 1)

		require.NoError(t, f.UpsertMonthValue(ctx, types.MonthValue{DeviceID: "fs-dev", Year: 2024, Month: 3, KWh: nil}))
		months, err := f.GetMonthValues(ctx, "fs-dev", types.PeriodQuery{Year: 2024})
		require.NoError(t, err)
		require.Len(t, months, 1)
		assert.Nil(t, months[0].KWh)
	})

	t.Run("APICallLogs", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, f.InsertAPICallLog(ctx, types.APICallLog{Timestamp: now.Add(-30 * 24 * time.Hour), Endpoint: "report", Method: "GET", Success: true}))
		require.NoError(t, f.InsertAPICallLog(ctx, types.APICallLog{Timestamp: now, Endpoint: "devices", Method: "GET", StatusCode: 429}))

		logs, err := f.ListAPICallLogs(ctx, types.APICallLogFilter{FailedOnly: true})
		require.NoError(t, err)
		require.NotEmpty(t, logs)
		assert.Equal(t, 429, logs[0].StatusCode)

		deleted, err := f.DeleteAPICallLogsBefore(ctx, now.Add(-7*24*time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, deleted, int64(1))
	})
}
