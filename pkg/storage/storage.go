package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/levenlabs/go-lflag"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
)

// Database defines the interface for persisting devices, report aggregates
// and the API call log.
type Database interface {
	// Devices
	UpsertDevice(ctx context.Context, device types.Device) error
	// EnsureDevice creates a stub device if none exists yet. It never
	// overwrites a synced device.
	EnsureDevice(ctx context.Context, deviceID string) error
	GetDevice(ctx context.Context, deviceID string) (types.Device, error)
	ListDevices(ctx context.Context) ([]types.Device, error)

	// Report aggregates, one upsert per bucket keyed by device and calendar fields
	UpsertQuarterHourValue(ctx context.Context, v types.QuarterHourValue) error
	UpsertHourValue(ctx context.Context, v types.HourValue) error
	UpsertDayValue(ctx context.Context, v types.DayValue) error
	UpsertMonthValue(ctx context.Context, v types.MonthValue) error

	// History
	GetQuarterHourValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.QuarterHourValue, error)
	GetHourValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.HourValue, error)
	GetDayValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.DayValue, error)
	GetMonthValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.MonthValue, error)

	// API call log
	InsertAPICallLog(ctx context.Context, entry types.APICallLog) error
	ListAPICallLogs(ctx context.Context, filter types.APICallLogFilter) ([]types.APICallLog, error)
	DeleteAPICallLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Lifecycle
	Close() error
}

// DefaultLogLimit is used when a log listing doesn't specify a limit.
const DefaultLogLimit = 100

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "sqlite", "Storage provider to use (available: sqlite, firestore)")

	var p struct{ Database }

	sq := configuredSQLite()
	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "sqlite":
			if err := sq.Validate(); err != nil {
				panic(fmt.Sprintf("sqlite validation failed: %v", err))
			}
			if err := sq.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("sqlite init failed: %v", err))
			}
			p.Database = sq
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

func logLimit(limit int) int {
	if limit <= 0 {
		return DefaultLogLimit
	}
	return limit
}
