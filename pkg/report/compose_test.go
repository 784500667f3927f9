package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	loc := berlin(t)

	t.Run("EmptyReport", func(t *testing.T) {
		p := types.ReportParams{Year: 2024, Month: ptr(2)}
		entries := Normalize(nil, nil)
		r := Compose("dev", p, SelectGranularity(p), entries, AggregateDaily(entries), loc)

		assert.True(t, r.Success)
		assert.Equal(t, "api", r.DataSource)
		assert.Equal(t, types.GranularityDay, r.Granularity)
		assert.Equal(t, Summary{}, r.Summary)
		assert.NotEmpty(t, r.Warning)
		assert.Contains(t, r.Warning, "1.2.2024 - 29.2.2024")

		b, err := json.Marshal(r)
		require.NoError(t, err)
		var raw map[string]any
		require.NoError(t, json.Unmarshal(b, &raw))
		assert.Equal(t, []any{}, raw["dailyStats"])
		assert.Equal(t, []any{}, raw["entries"])
		assert.Equal(t, map[string]any{
			"totalDays": 0.0, "totalEntries": 0.0, "avgWatt": 0.0, "maxWatt": 0.0, "minWatt": 0.0, "sumKWh": 0.0,
		}, raw["summary"])
		assert.NotContains(t, raw, "storageWarning")
	})

	t.Run("WarningMentionsStartTime", func(t *testing.T) {
		p := types.ReportParams{Year: 2024, Month: ptr(3), Day: ptr(15), FromHour: ptr(6), FromMinute: ptr(5)}
		r := Compose("dev", p, SelectGranularity(p), nil, nil, loc)
		assert.Contains(t, r.Warning, "from 6:05")
		assert.Contains(t, r.Warning, "15.3.2024 - 15.3.2024")
	})

	t.Run("TimeRange", func(t *testing.T) {
		p := types.ReportParams{Year: 2024, Month: ptr(3), Day: ptr(15), FromHour: ptr(6), FromMinute: ptr(30)}
		r := Compose("dev", p, SelectGranularity(p), nil, nil, loc)
		assert.Equal(t, TimeRange{From: "06:30", To: "23:59"}, r.TimeRange)
		assert.Equal(t, 6, *r.Parameters.FromHour)
		assert.Equal(t, 30, *r.Parameters.FromMinute)

		p = types.ReportParams{Year: 2024, Month: ptr(3), Day: ptr(15)}
		r = Compose("dev", p, SelectGranularity(p), nil, nil, loc)
		assert.Equal(t, TimeRange{From: "00:00", To: "23:59", Note: "fromHour not given"}, r.TimeRange)
		assert.Nil(t, r.Parameters.FromHour)

		p = types.ReportParams{Year: 2024}
		r = Compose("dev", p, SelectGranularity(p), nil, nil, loc)
		assert.Equal(t, "fromHour is only available with year, month and day", r.TimeRange.Note)
	})

	t.Run("DateRange", func(t *testing.T) {
		r := Compose("dev", types.ReportParams{Year: 2024, Month: ptr(3), Day: ptr(15)}, Hour, nil, nil, loc)
		assert.Equal(t, "2024-03-14T23:00:00.000Z", r.DateRange.From)
		assert.Equal(t, "2024-03-15T22:59:59.999Z", r.DateRange.To)
		assert.Equal(t, FormattedRange{From: "15.3.2024", To: "15.3.2024"}, r.DateRange.Formatted)

		r = Compose("dev", types.ReportParams{Year: 2024}, Month, nil, nil, loc)
		assert.Equal(t, "2024-01-01T00:00:00.000Z", r.DateRange.From)
		assert.Equal(t, "2024-12-31T23:59:59.999Z", r.DateRange.To)
		assert.Equal(t, FormattedRange{From: "1.1.2024", To: "31.12.2024"}, r.DateRange.Formatted)

		r = Compose("dev", types.ReportParams{Year: 2023, Month: ptr(2)}, Day, nil, nil, loc)
		assert.Equal(t, FormattedRange{From: "1.2.2023", To: "28.2.2023"}, r.DateRange.Formatted)
	})

	t.Run("Entries", func(t *testing.T) {
		ts := time.Date(2024, time.March, 15, 5, 30, 0, 0, time.UTC).Unix()
		entries := []types.NormalizedEntry{entry(ts, ptr(0.0), ptr(0.0), nil)}
		p := types.ReportParams{Year: 2024, Month: ptr(3), Day: ptr(15)}
		r := Compose("dev", p, Hour, entries, AggregateDaily(entries), loc)

		require.Len(t, r.Entries, 1)
		assert.Equal(t, Entry{
			Timestamp: ts,
			Date:      "2024-03-15",
			Datetime:  "2024-03-15T05:30:00.000Z",
			KWh:       ptr(0.0),
			APlus:     ptr(0.0),
		}, r.Entries[0])
		assert.Empty(t, r.Warning)
		assert.Equal(t, 1, r.Summary.TotalEntries)
		assert.Equal(t, 1, r.Summary.TotalDays)
	})
}
