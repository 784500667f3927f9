package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/levenlabs/go-lflag"
	_ "modernc.org/sqlite"
)

// SQLiteProvider implements Database on top of a local SQLite file.
type SQLiteProvider struct {
	db   *sql.DB
	path string
}

func configuredSQLite() *SQLiteProvider {
	path := lflag.String("sqlite-path", "foxwatt.db", "Path to the SQLite database file (use :memory: for an in-memory database)")
	databaseURL := lflag.String("database-url", "", "SQLite database as a file: URL (e.g. file:./dev.db), overrides sqlite-path")

	s := &SQLiteProvider{}

	lflag.Do(func() {
		s.path = *path
		if *databaseURL != "" {
			p, err := pathFromDatabaseURL(*databaseURL)
			if err != nil {
				panic(fmt.Sprintf("invalid database-url: %v", err))
			}
			s.path = p
		}
	})

	return s
}

// pathFromDatabaseURL returns the file path of a file: database URL. Query
// parameters are dropped.
func pathFromDatabaseURL(u string) (string, error) {
	rest, ok := strings.CutPrefix(u, "file:")
	if !ok {
		return "", fmt.Errorf("only file: URLs are supported, got %q", u)
	}
	rest, _, _ = strings.Cut(rest, "?")
	rest = strings.TrimPrefix(rest, "//")
	if rest == "" {
		return "", errors.New("missing file path")
	}
	return rest, nil
}

// NewSQLiteProvider returns an initialized provider for the given path.
func NewSQLiteProvider(ctx context.Context, path string) (*SQLiteProvider, error) {
	s := &SQLiteProvider{path: path}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks if the provider is properly configured.
func (s *SQLiteProvider) Validate() error {
	if s.path == "" {
		return errors.New("sqlite-path is required")
	}
	return nil
}

// Init opens the database and applies the schema.
func (s *SQLiteProvider) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database (path=%s): %w", s.path, err)
	}
	// a single connection serializes writers and keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}
	s.db = db
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to migrate sqlite database: %w", err)
	}
	return nil
}

func (s *SQLiteProvider) migrate(ctx context.Context) error {
	var current int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current)
	if err != nil {
		// no schema_version table yet
		if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		_, err = s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", sqliteSchemaVersion)
		return err
	}

	for v := current + 1; v <= sqliteSchemaVersion; v++ {
		migration, ok := sqliteMigrations[v]
		if !ok {
			continue
		}
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", v, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", v, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func updatedAt(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Unix()
}

// periodWhere builds the WHERE clause for a history query. withDay is false
// for tables without a day column.
func periodWhere(deviceID string, q types.PeriodQuery, withDay bool) (string, []any) {
	clauses := []string{"device_id = ?", "year = ?"}
	args := []any{deviceID, q.Year}
	if q.Month != nil {
		clauses = append(clauses, "month = ?")
		args = append(args, *q.Month)
	}
	if withDay && q.Day != nil {
		clauses = append(clauses, "day = ?")
		args = append(args, *q.Day)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// UpsertDevice inserts the device or overwrites all of its fields.
func (s *SQLiteProvider) UpsertDevice(ctx context.Context, d types.Device) error {
	if d.DeviceID == "" {
		return errors.New("deviceID cannot be empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, name, account_associated_since, main_device, prosumer, division, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			name = excluded.name,
			account_associated_since = excluded.account_associated_since,
			main_device = excluded.main_device,
			prosumer = excluded.prosumer,
			division = excluded.division,
			updated_at = excluded.updated_at`,
		d.DeviceID, d.Name, d.AccountAssociatedSince, d.MainDevice, d.Prosumer, d.Division, updatedAt(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", d.DeviceID, err)
	}
	return nil
}

// EnsureDevice inserts a stub device unless one already exists.
func (s *SQLiteProvider) EnsureDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return errors.New("deviceID cannot be empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, name, main_device, prosumer, division, updated_at)
		VALUES (?, ?, 0, 0, 0, ?)
		ON CONFLICT(device_id) DO NOTHING`,
		deviceID, "", time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to ensure device %s: %w", deviceID, err)
	}
	return nil
}

const deviceColumns = "device_id, name, account_associated_since, main_device, prosumer, division, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (types.Device, error) {
	var d types.Device
	var updated int64
	if err := row.Scan(&d.DeviceID, &d.Name, &d.AccountAssociatedSince, &d.MainDevice, &d.Prosumer, &d.Division, &updated); err != nil {
		return types.Device{}, err
	}
	d.UpdatedAt = time.Unix(updated, 0).UTC()
	return d, nil
}

// GetDevice returns ErrDeviceNotFound if the device is unknown.
func (s *SQLiteProvider) GetDevice(ctx context.Context, deviceID string) (types.Device, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx, "SELECT "+deviceColumns+" FROM devices WHERE device_id = ?", deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Device{}, ErrDeviceNotFound
	}
	if err != nil {
		return types.Device{}, fmt.Errorf("failed to get device %s: %w", deviceID, err)
	}
	return d, nil
}

// ListDevices returns all devices, main devices first.
func (s *SQLiteProvider) ListDevices(ctx context.Context) ([]types.Device, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+deviceColumns+" FROM devices ORDER BY main_device DESC, device_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []types.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// UpsertQuarterHourValue writes one 15 minute bucket.
func (s *SQLiteProvider) UpsertQuarterHourValue(ctx context.Context, v types.QuarterHourValue) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quarter_hour_values (device_id, year, month, day, hour, minute, timestamp, watt, a_plus, a_minus, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, year, month, day, hour, minute) DO UPDATE SET
			timestamp = excluded.timestamp,
			watt = excluded.watt,
			a_plus = excluded.a_plus,
			a_minus = excluded.a_minus,
			updated_at = excluded.updated_at`,
		v.DeviceID, v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Timestamp,
		nullFloat(v.Watt), nullFloat(v.APlus), nullFloat(v.AMinus), updatedAt(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert quarter hour value: %w", err)
	}
	return nil
}

// UpsertHourValue writes one hourly bucket.
func (s *SQLiteProvider) UpsertHourValue(ctx context.Context, v types.HourValue) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hour_values (device_id, year, month, day, hour, timestamp, kwh, a_plus, a_minus, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, year, month, day, hour) DO UPDATE SET
			timestamp = excluded.timestamp,
			kwh = excluded.kwh,
			a_plus = excluded.a_plus,
			a_minus = excluded.a_minus,
			updated_at = excluded.updated_at`,
		v.DeviceID, v.Year, v.Month, v.Day, v.Hour, v.Timestamp,
		nullFloat(v.KWh), nullFloat(v.APlus), nullFloat(v.AMinus), updatedAt(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert hour value: %w", err)
	}
	return nil
}

// UpsertDayValue writes one daily bucket.
func (s *SQLiteProvider) UpsertDayValue(ctx context.Context, v types.DayValue) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO day_values (device_id, year, month, day, timestamp, kwh, a_plus, a_minus, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, year, month, day) DO UPDATE SET
			timestamp = excluded.timestamp,
			kwh = excluded.kwh,
			a_plus = excluded.a_plus,
			a_minus = excluded.a_minus,
			updated_at = excluded.updated_at`,
		v.DeviceID, v.Year, v.Month, v.Day, v.Timestamp,
		nullFloat(v.KWh), nullFloat(v.APlus), nullFloat(v.AMinus), updatedAt(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert day value: %w", err)
	}
	return nil
}

// UpsertMonthValue writes one monthly bucket.
func (s *SQLiteProvider) UpsertMonthValue(ctx context.Context, v types.MonthValue) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO month_values (device_id, year, month, timestamp, kwh, a_plus, a_minus, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, year, month) DO UPDATE SET
			timestamp = excluded.timestamp,
			kwh = excluded.kwh,
			a_plus = excluded.a_plus,
			a_minus = excluded.a_minus,
			updated_at = excluded.updated_at`,
		v.DeviceID, v.Year, v.Month, v.Timestamp,
		nullFloat(v.KWh), nullFloat(v.APlus), nullFloat(v.AMinus), updatedAt(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert month value: %w", err)
	}
	return nil
}

// GetQuarterHourValues returns the stored 15 minute buckets in calendar order.
func (s *SQLiteProvider) GetQuarterHourValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.QuarterHourValue, error) {
	where, args := periodWhere(deviceID, q, true)
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, year, month, day, hour, minute, timestamp, watt, a_plus, a_minus, updated_at
		FROM quarter_hour_values `+where+`
		ORDER BY year, month, day, hour, minute`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quarter hour values: %w", err)
	}
	defer rows.Close()

	var values []types.QuarterHourValue
	for rows.Next() {
		var v types.QuarterHourValue
		var watt, aPlus, aMinus sql.NullFloat64
		var updated int64
		if err := rows.Scan(&v.DeviceID, &v.Year, &v.Month, &v.Day, &v.Hour, &v.Minute, &v.Timestamp, &watt, &aPlus, &aMinus, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan quarter hour value: %w", err)
		}
		v.Watt, v.APlus, v.AMinus = floatPtr(watt), floatPtr(aPlus), floatPtr(aMinus)
		v.UpdatedAt = time.Unix(updated, 0).UTC()
		values = append(values, v)
	}
	return values, rows.Err()
}

// GetHourValues returns the stored hourly buckets in calendar order.
func (s *SQLiteProvider) GetHourValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.HourValue, error) {
	where, args := periodWhere(deviceID, q, true)
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, year, month, day, hour, timestamp, kwh, a_plus, a_minus, updated_at
		FROM hour_values `+where+`
		ORDER BY year, month, day, hour`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hour values: %w", err)
	}
	defer rows.Close()

	var values []types.HourValue
	for rows.Next() {
		var v types.HourValue
		var kwh, aPlus, aMinus sql.NullFloat64
		var updated int64
		if err := rows.Scan(&v.DeviceID, &v.Year, &v.Month, &v.Day, &v.Hour, &v.Timestamp, &kwh, &aPlus, &aMinus, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan hour value: %w", err)
		}
		v.KWh, v.APlus, v.AMinus = floatPtr(kwh), floatPtr(aPlus), floatPtr(aMinus)
		v.UpdatedAt = time.Unix(updated, 0).UTC()
		values = append(values, v)
	}
	return values, rows.Err()
}

// GetDayValues returns the stored daily buckets in calendar order.
func (s *SQLiteProvider) GetDayValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.DayValue, error) {
	where, args := periodWhere(deviceID, q, true)
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, year, month, day, timestamp, kwh, a_plus, a_minus, updated_at
		FROM day_values `+where+`
		ORDER BY year, month, day`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query day values: %w", err)
	}
	defer rows.Close()

	var values []types.DayValue
	for rows.Next() {
		var v types.DayValue
		var kwh, aPlus, aMinus sql.NullFloat64
		var updated int64
		if err := rows.Scan(&v.DeviceID, &v.Year, &v.Month, &v.Day, &v.Timestamp, &kwh, &aPlus, &aMinus, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan day value: %w", err)
		}
		v.KWh, v.APlus, v.AMinus = floatPtr(kwh), floatPtr(aPlus), floatPtr(aMinus)
		v.UpdatedAt = time.Unix(updated, 0).UTC()
		values = append(values, v)
	}
	return values, rows.Err()
}

// GetMonthValues returns the stored monthly buckets in calendar order. The
// day of the query is ignored.
func (s *SQLiteProvider) GetMonthValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.MonthValue, error) {
	where, args := periodWhere(deviceID, q, false)
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, year, month, timestamp, kwh, a_plus, a_minus, updated_at
		FROM month_values `+where+`
		ORDER BY year, month`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query month values: %w", err)
	}
	defer rows.Close()

	var values []types.MonthValue
	for rows.Next() {
		var v types.MonthValue
		var kwh, aPlus, aMinus sql.NullFloat64
		var updated int64
		if err := rows.Scan(&v.DeviceID, &v.Year, &v.Month, &v.Timestamp, &kwh, &aPlus, &aMinus, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan month value: %w", err)
		}
		v.KWh, v.APlus, v.AMinus = floatPtr(kwh), floatPtr(aPlus), floatPtr(aMinus)
		v.UpdatedAt = time.Unix(updated, 0).UTC()
		values = append(values, v)
	}
	return values, rows.Err()
}

// InsertAPICallLog appends an entry to the API call log.
func (s *SQLiteProvider) InsertAPICallLog(ctx context.Context, entry types.APICallLog) error {
	var params sql.NullString
	if len(entry.Params) > 0 {
		b, err := json.Marshal(entry.Params)
		if err != nil {
			return fmt.Errorf("failed to marshal api call params: %w", err)
		}
		params = sql.NullString{String: string(b), Valid: true}
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_call_logs (timestamp, endpoint, method, params, status_code, success, error_message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.UnixMilli(), entry.Endpoint, entry.Method, params, entry.StatusCode, entry.Success, entry.ErrorMessage, entry.DurationMS)
	if err != nil {
		return fmt.Errorf("failed to insert api call log: %w", err)
	}
	return nil
}

// ListAPICallLogs returns the newest entries first.
func (s *SQLiteProvider) ListAPICallLogs(ctx context.Context, filter types.APICallLogFilter) ([]types.APICallLog, error) {
	var clauses []string
	var args []any
	if filter.Endpoint != "" {
		clauses = append(clauses, "endpoint = ?")
		args = append(args, filter.Endpoint)
	}
	if filter.FailedOnly {
		clauses = append(clauses, "success = 0")
	}
	query := "SELECT id, timestamp, endpoint, method, params, status_code, success, error_message, duration_ms FROM api_call_logs"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, logLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query api call logs: %w", err)
	}
	defer rows.Close()

	var logs []types.APICallLog
	for rows.Next() {
		var l types.APICallLog
		var id, ts int64
		var params sql.NullString
		if err := rows.Scan(&id, &ts, &l.Endpoint, &l.Method, &params, &l.StatusCode, &l.Success, &l.ErrorMessage, &l.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan api call log: %w", err)
		}
		l.ID = strconv.FormatInt(id, 10)
		l.Timestamp = time.UnixMilli(ts).UTC()
		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &l.Params); err != nil {
				return nil, fmt.Errorf("failed to unmarshal params of api call log %d: %w", id, err)
			}
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// DeleteAPICallLogsBefore removes log entries older than cutoff and returns
// how many were removed.
func (s *SQLiteProvider) DeleteAPICallLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM api_call_logs WHERE timestamp < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete api call logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted api call logs: %w", err)
	}
	return n, nil
}
