package storagemock

import (
	"context"
	"time"

	"github.com/foxwatt/foxwatt/pkg/storage"
	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) UpsertDevice(ctx context.Context, device types.Device) error {
	args := m.Called(ctx, device)
	return args.Error(0)
}

func (m *MockDatabase) EnsureDevice(ctx context.Context, deviceID string) error {
	args := m.Called(ctx, deviceID)
	return args.Error(0)
}

func (m *MockDatabase) GetDevice(ctx context.Context, deviceID string) (types.Device, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).(types.Device), args.Error(1)
}

func (m *MockDatabase) ListDevices(ctx context.Context) ([]types.Device, error) {
	args := m.Called(ctx)
	if v, ok := args.Get(0).([]types.Device); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) UpsertQuarterHourValue(ctx context.Context, v types.QuarterHourValue) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockDatabase) UpsertHourValue(ctx context.Context, v types.HourValue) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockDatabase) UpsertDayValue(ctx context.Context, v types.DayValue) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockDatabase) UpsertMonthValue(ctx context.Context, v types.MonthValue) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockDatabase) GetQuarterHourValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.QuarterHourValue, error) {
	args := m.Called(ctx, deviceID, q)
	if v, ok := args.Get(0).([]types.QuarterHourValue); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) GetHourValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.HourValue, error) {
	args := m.Called(ctx, deviceID, q)
	if v, ok := args.Get(0).([]types.HourValue); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) GetDayValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.DayValue, error) {
	args := m.Called(ctx, deviceID, q)
	if v, ok := args.Get(0).([]types.DayValue); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) GetMonthValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.MonthValue, error) {
	args := m.Called(ctx, deviceID, q)
	if v, ok := args.Get(0).([]types.MonthValue); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) InsertAPICallLog(ctx context.Context, entry types.APICallLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDatabase) ListAPICallLogs(ctx context.Context, filter types.APICallLogFilter) ([]types.APICallLog, error) {
	args := m.Called(ctx, filter)
	if v, ok := args.Get(0).([]types.APICallLog); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) DeleteAPICallLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
