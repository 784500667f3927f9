package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements Database using Google Cloud Firestore.
// Report rows are stored per device under deterministic document IDs so that
// a Set behaves like an upsert.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// the project ID can be inferred from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) deviceCollection(deviceID, name string) (*firestore.CollectionRef, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("deviceID cannot be empty")
	}
	return f.client.Collection("devices").Doc(deviceID).Collection(name), nil
}

// setJSON stores v as a JSON blob next to the given indexed fields.
func setJSON(ctx context.Context, ref *firestore.DocumentRef, v any, fields map[string]any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", ref.ID, err)
	}
	data := map[string]any{"json": string(b)}
	for k, fv := range fields {
		data[k] = fv
	}
	_, err = ref.Set(ctx, data)
	return err
}

func decodeJSON[T any](ctx context.Context, doc *firestore.DocumentSnapshot) (T, error) {
	var v T
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "doc missing json", slog.String("docID", doc.Ref.ID), slog.Any("error", err))
		return v, fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return v, fmt.Errorf("document %s 'json' field is not a string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal doc", slog.String("docID", doc.Ref.ID), slog.Any("error", err))
		return v, fmt.Errorf("failed to unmarshal document %s: %w", doc.Ref.ID, err)
	}
	return v, nil
}

// queryJSON decodes every document of the query, ordered by document ID.
func queryJSON[T any](ctx context.Context, q firestore.Query) ([]T, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var docs []*firestore.DocumentSnapshot
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating documents: %w", err)
		}
		docs = append(docs, doc)
	}
	// document IDs are zero padded calendar keys
	sort.Slice(docs, func(i, j int) bool { return docs[i].Ref.ID < docs[j].Ref.ID })

	values := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decodeJSON[T](ctx, doc)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func periodQuery(coll *firestore.CollectionRef, q types.PeriodQuery, withDay bool) firestore.Query {
	query := coll.Where("year", "==", q.Year)
	if q.Month != nil {
		query = query.Where("month", "==", *q.Month)
	}
	if withDay && q.Day != nil {
		query = query.Where("day", "==", *q.Day)
	}
	return query
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC().Truncate(time.Second)
	}
	return t
}

// UpsertDevice stores the device under its device ID.
func (f *FirestoreProvider) UpsertDevice(ctx context.Context, d types.Device) error {
	if d.DeviceID == "" {
		return fmt.Errorf("deviceID cannot be empty")
	}
	d.UpdatedAt = stamp(d.UpdatedAt)
	if err := setJSON(ctx, f.client.Collection("devices").Doc(d.DeviceID), d, map[string]any{
		"mainDevice": d.MainDevice,
	}); err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", d.DeviceID, err)
	}
	return nil
}

// EnsureDevice creates a stub device document if none exists.
func (f *FirestoreProvider) EnsureDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("deviceID cannot be empty")
	}
	d := types.Device{DeviceID: deviceID, UpdatedAt: stamp(time.Time{})}
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal device: %w", err)
	}
	_, err = f.client.Collection("devices").Doc(deviceID).Create(ctx, map[string]any{
		"json":       string(b),
		"mainDevice": false,
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("failed to ensure device %s: %w", deviceID, err)
	}
	return nil
}

// GetDevice retrieves a device by its ID.
func (f *FirestoreProvider) GetDevice(ctx context.Context, deviceID string) (types.Device, error) {
	if deviceID == "" {
		return types.Device{}, ErrDeviceNotFound
	}
	doc, err := f.client.Collection("devices").Doc(deviceID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Device{}, ErrDeviceNotFound
		}
		return types.Device{}, fmt.Errorf("failed to get device %s: %w", deviceID, err)
	}
	return decodeJSON[types.Device](ctx, doc)
}

// ListDevices returns all devices, main devices first.
func (f *FirestoreProvider) ListDevices(ctx context.Context) ([]types.Device, error) {
	devices, err := queryJSON[types.Device](ctx, f.client.Collection("devices").Query)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].MainDevice && !devices[j].MainDevice
	})
	return devices, nil
}

// UpsertQuarterHourValue stores the bucket under "YYYY-MM-DDTHH:MM".
func (f *FirestoreProvider) UpsertQuarterHourValue(ctx context.Context, v types.QuarterHourValue) error {
	if v.Minute%15 != 0 || v.Minute < 0 || v.Minute > 45 {
		return fmt.Errorf("invalid quarter hour minute: %d", v.Minute)
	}
	coll, err := f.deviceCollection(v.DeviceID, "quarter_hour_values")
	if err != nil {
		return err
	}
	v.UpdatedAt = stamp(v.UpdatedAt)
	docID := fmt.Sprintf("%04d-%02d-%02dT%02d:%02d", v.Year, v.Month, v.Day, v.Hour, v.Minute)
	if err := setJSON(ctx, coll.Doc(docID), v, map[string]any{
		"year": v.Year, "month": v.Month, "day": v.Day,
	}); err != nil {
		return fmt.Errorf("failed to upsert quarter hour value: %w", err)
	}
	return nil
}

// UpsertHourValue stores the bucket under "YYYY-MM-DDTHH".
func (f *FirestoreProvider) UpsertHourValue(ctx context.Context, v types.HourValue) error {
	coll, err := f.deviceCollection(v.DeviceID, "hour_values")
	if err != nil {
		return err
	}
	v.UpdatedAt = stamp(v.UpdatedAt)
	docID := fmt.Sprintf("%04d-%02d-%02dT%02d", v.Year, v.Month, v.Day, v.Hour)
	if err := setJSON(ctx, coll.Doc(docID), v, map[string]any{
		"year": v.Year, "month": v.Month, "day": v.Day,
	}); err != nil {
		return fmt.Errorf("failed to upsert hour value: %w", err)
	}
	return nil
}

// UpsertDayValue stores the bucket under "YYYY-MM-DD".
func (f *FirestoreProvider) UpsertDayValue(ctx context.Context, v types.DayValue) error {
	coll, err := f.deviceCollection(v.DeviceID, "day_values")
	if err != nil {
		return err
	}
	v.UpdatedAt = stamp(v.UpdatedAt)
	docID := fmt.Sprintf("%04d-%02d-%02d", v.Year, v.Month, v.Day)
	if err := setJSON(ctx, coll.Doc(docID), v, map[string]any{
		"year": v.Year, "month": v.Month, "day": v.Day,
	}); err != nil {
		return fmt.Errorf("failed to upsert day value: %w", err)
	}
	return nil
}

// UpsertMonthValue stores the bucket under "YYYY-MM".
func (f *FirestoreProvider) UpsertMonthValue(ctx context.Context, v types.MonthValue) error {
	coll, err := f.deviceCollection(v.DeviceID, "month_values")
	if err != nil {
		return err
	}
	v.UpdatedAt = stamp(v.UpdatedAt)
	docID := fmt.Sprintf("%04d-%02d", v.Year, v.Month)
	if err := setJSON(ctx, coll.Doc(docID), v, map[string]any{
		"year": v.Year, "month": v.Month,
	}); err != nil {
		return fmt.Errorf("failed to upsert month value: %w", err)
	}
	return nil
}

func (f *FirestoreProvider) GetQuarterHourValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.QuarterHourValue, error) {
	coll, err := f.deviceCollection(deviceID, "quarter_hour_values")
	if err != nil {
		return nil, err
	}
	return queryJSON[types.QuarterHourValue](ctx, periodQuery(coll, q, true))
}

func (f *FirestoreProvider) GetHourValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.HourValue, error) {
	coll, err := f.deviceCollection(deviceID, "hour_values")
	if err != nil {
		return nil, err
	}
	return queryJSON[types.HourValue](ctx, periodQuery(coll, q, true))
}

func (f *FirestoreProvider) GetDayValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.DayValue, error) {
	coll, err := f.deviceCollection(deviceID, "day_values")
	if err != nil {
		return nil, err
	}
	return queryJSON[types.DayValue](ctx, periodQuery(coll, q, true))
}

func (f *FirestoreProvider) GetMonthValues(ctx context.Context, deviceID string, q types.PeriodQuery) ([]types.MonthValue, error) {
	coll, err := f.deviceCollection(deviceID, "month_values")
	if err != nil {
		return nil, err
	}
	return queryJSON[types.MonthValue](ctx, periodQuery(coll, q, false))
}

// InsertAPICallLog adds a log entry with an auto generated ID.
func (f *FirestoreProvider) InsertAPICallLog(ctx context.Context, entry types.APICallLog) error {
	entry.Timestamp = stamp(entry.Timestamp)
	ref := f.client.Collection("api_call_logs").NewDoc()
	entry.ID = ref.ID
	if err := setJSON(ctx, ref, entry, map[string]any{
		"timestamp": entry.Timestamp,
		"endpoint":  entry.Endpoint,
		"success":   entry.Success,
	}); err != nil {
		return fmt.Errorf("failed to insert api call log: %w", err)
	}
	return nil
}

// ListAPICallLogs returns the newest entries first.
func (f *FirestoreProvider) ListAPICallLogs(ctx context.Context, filter types.APICallLogFilter) ([]types.APICallLog, error) {
	query := f.client.Collection("api_call_logs").Query
	if filter.Endpoint != "" {
		query = query.Where("endpoint", "==", filter.Endpoint)
	}
	if filter.FailedOnly {
		query = query.Where("success", "==", false)
	}
	iter := query.OrderBy("timestamp", firestore.Desc).Limit(logLimit(filter.Limit)).Documents(ctx)
	defer iter.Stop()

	var logs []types.APICallLog
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating api call logs: %w", err)
		}
		l, err := decodeJSON[types.APICallLog](ctx, doc)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// DeleteAPICallLogsBefore removes log entries older than cutoff.
func (f *FirestoreProvider) DeleteAPICallLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	iter := f.client.Collection("api_call_logs").Where("timestamp", "<", cutoff).Documents(ctx)
	defer iter.Stop()

	var deleted int64
	var errs []error
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("error iterating api call logs: %w", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete api call log %s: %w", doc.Ref.ID, err))
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}
