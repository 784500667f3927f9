package report

import (
	"context"
	"time"

	"github.com/foxwatt/foxwatt/pkg/types"
)

// Store is the persistence the report pipeline writes to.
type Store interface {
	EnsureDevice(ctx context.Context, deviceID string) error
	UpsertQuarterHourValue(ctx context.Context, v types.QuarterHourValue) error
	UpsertHourValue(ctx context.Context, v types.HourValue) error
	UpsertDayValue(ctx context.Context, v types.DayValue) error
	UpsertMonthValue(ctx context.Context, v types.MonthValue) error
}

// bucketKey holds the calendar fields of a bucket. Fields finer than the
// granularity stay zero.
type bucketKey struct {
	Year, Month, Day, Hour, Minute int
}

type bucket struct {
	key     bucketKey
	entries []types.NormalizedEntry
}

// first is the first entry seen for the bucket.
func (b bucket) first() types.NormalizedEntry {
	return b.entries[0]
}

// averages returns the mean of the non-nil values of each field.
func (b bucket) averages() (kwh, aPlus, aMinus *float64) {
	var k, p, m stats
	for _, e := range b.entries {
		k.add(e.KWh)
		p.add(e.APlus)
		m.add(e.AMinus)
	}
	return k.avgPtr(), p.avgPtr(), m.avgPtr()
}

// Granularity is one of the four persisted report resolutions. Each variant
// knows how to bucket an entry and how to write a bucket.
type Granularity struct {
	Name   types.Granularity
	key    func(t time.Time) bucketKey
	upsert func(ctx context.Context, store Store, deviceID string, b bucket, now time.Time) error
}

var (
	QuarterHour = Granularity{
		Name: types.GranularityQuarterHour,
		key: func(t time.Time) bucketKey {
			return bucketKey{t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute() / 15 * 15}
		},
		upsert: func(ctx context.Context, store Store, deviceID string, b bucket, now time.Time) error {
			// a bucket is expected to hold a single value at this resolution
			e := b.first()
			return store.UpsertQuarterHourValue(ctx, types.QuarterHourValue{
				DeviceID:  deviceID,
				Year:      b.key.Year,
				Month:     b.key.Month,
				Day:       b.key.Day,
				Hour:      b.key.Hour,
				Minute:    b.key.Minute,
				Timestamp: e.Timestamp,
				Watt:      e.KWh,
				APlus:     e.APlus,
				AMinus:    e.AMinus,
				UpdatedAt: now,
			})
		},
	}

	Hour = Granularity{
		Name: types.GranularityHour,
		key: func(t time.Time) bucketKey {
			return bucketKey{Year: t.Year(), Month: int(t.Month()), Day: t.Day(), Hour: t.Hour()}
		},
		upsert: func(ctx context.Context, store Store, deviceID string, b bucket, now time.Time) error {
			kwh, aPlus, aMinus := b.averages()
			return store.UpsertHourValue(ctx, types.HourValue{
				DeviceID:  deviceID,
				Year:      b.key.Year,
				Month:     b.key.Month,
				Day:       b.key.Day,
				Hour:      b.key.Hour,
				Timestamp: b.first().Timestamp,
				KWh:       kwh,
				APlus:     aPlus,
				AMinus:    aMinus,
				UpdatedAt: now,
			})
		},
	}

	Day = Granularity{
		Name: types.GranularityDay,
		key: func(t time.Time) bucketKey {
			return bucketKey{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
		},
		upsert: func(ctx context.Context, store Store, deviceID string, b bucket, now time.Time) error {
			kwh, aPlus, aMinus := b.averages()
			return store.UpsertDayValue(ctx, types.DayValue{
				DeviceID:  deviceID,
				Year:      b.key.Year,
				Month:     b.key.Month,
				Day:       b.key.Day,
				Timestamp: b.first().Timestamp,
				KWh:       kwh,
				APlus:     aPlus,
				AMinus:    aMinus,
				UpdatedAt: now,
			})
		},
	}

	Month = Granularity{
		Name: types.GranularityMonth,
		key: func(t time.Time) bucketKey {
			return bucketKey{Year: t.Year(), Month: int(t.Month())}
		},
		upsert: func(ctx context.Context, store Store, deviceID string, b bucket, now time.Time) error {
			kwh, aPlus, aMinus := b.averages()
			return store.UpsertMonthValue(ctx, types.MonthValue{
				DeviceID:  deviceID,
				Year:      b.key.Year,
				Month:     b.key.Month,
				Timestamp: b.first().Timestamp,
				KWh:       kwh,
				APlus:     aPlus,
				AMinus:    aMinus,
				UpdatedAt: now,
			})
		},
	}
)

// SelectGranularity picks the granularity from which parameters are set:
// a start hour means quarter hours, a day means hours, a month means days
// and a bare year means months.
func SelectGranularity(p types.ReportParams) Granularity {
	switch {
	case p.HasFromHour():
		return QuarterHour
	case p.HasDay():
		return Hour
	case p.Month != nil:
		return Day
	default:
		return Month
	}
}

// buckets groups entries by the bucket of their own local timestamp. Buckets
// and the entries inside them keep the order they were first seen in.
// Rollup sums finer entries into one entry per bucket of g, stamped with the
// first entry's timestamp. The result has the shape Powerfox returns for a
// request at that resolution.
func (g Granularity) Rollup(entries []types.NormalizedEntry, loc *time.Location) []types.NormalizedEntry {
	buckets := g.buckets(entries, loc)
	out := make([]types.NormalizedEntry, 0, len(buckets))
	for _, b := range buckets {
		var k, p, m stats
		for _, e := range b.entries {
			k.add(e.KWh)
			p.add(e.APlus)
			m.add(e.AMinus)
		}
		out = append(out, types.NormalizedEntry{
			Timestamp: b.first().Timestamp,
			KWh:       k.sumPtr(),
			APlus:     p.sumPtr(),
			AMinus:    m.sumPtr(),
		})
	}
	return out
}

func (g Granularity) buckets(entries []types.NormalizedEntry, loc *time.Location) []bucket {
	index := map[bucketKey]int{}
	var out []bucket
	for _, e := range entries {
		if e.Timestamp == 0 {
			continue
		}
		k := g.key(e.Time(loc))
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, bucket{key: k})
		}
		out[i].entries = append(out[i].entries, e)
	}
	return out
}
