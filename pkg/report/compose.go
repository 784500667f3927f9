package report

import (
	"fmt"
	"time"

	"github.com/foxwatt/foxwatt/pkg/types"
)

const (
	isoLayout     = "2006-01-02T15:04:05.000Z"
	displayLayout = "2.1.2006"
)

// Report is the response of a timespan report request.
type Report struct {
	Success        bool              `json:"success"`
	Parameters     Parameters        `json:"parameters"`
	DataSource     string            `json:"dataSource"`
	Granularity    types.Granularity `json:"granularity"`
	TimeRange      TimeRange         `json:"timeRange"`
	DateRange      DateRange         `json:"dateRange"`
	Summary        Summary           `json:"summary"`
	DailyStats     []types.DailyStat `json:"dailyStats"`
	Entries        []Entry           `json:"entries"`
	Warning        string            `json:"warning,omitempty"`
	StorageWarning string            `json:"storageWarning,omitempty"`
}

// Parameters echoes the request. FromHour and FromMinute are only set when
// the start hour filter was applied.
type Parameters struct {
	DeviceID   string `json:"deviceId"`
	Year       int    `json:"year"`
	Month      *int   `json:"month,omitempty"`
	Day        *int   `json:"day,omitempty"`
	FromHour   *int   `json:"fromHour,omitempty"`
	FromMinute *int   `json:"fromMinute,omitempty"`
}

type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
	Note string `json:"note,omitempty"`
}

type DateRange struct {
	From      string         `json:"from"`
	To        string         `json:"to"`
	Formatted FormattedRange `json:"formatted"`
}

type FormattedRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Entry is a normalized entry stamped with its UTC date.
type Entry struct {
	Timestamp int64    `json:"timestamp"`
	Date      string   `json:"date"`
	Datetime  string   `json:"datetime"`
	KWh       *float64 `json:"kWh"`
	APlus     *float64 `json:"aPlus"`
	AMinus    *float64 `json:"aMinus"`
}

// dateRange returns the local calendar period the request covers.
func dateRange(p types.ReportParams, loc *time.Location) DateRange {
	var start, end time.Time
	switch {
	case p.HasDay():
		start = time.Date(p.Year, time.Month(*p.Month), *p.Day, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 1).Add(-time.Millisecond)
	case p.Month != nil:
		start = time.Date(p.Year, time.Month(*p.Month), 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0).Add(-time.Millisecond)
	default:
		// a whole year is always reported as the UTC calendar year
		start = time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(1, 0, 0).Add(-time.Millisecond)
	}
	return DateRange{
		From: start.UTC().Format(isoLayout),
		To:   end.UTC().Format(isoLayout),
		Formatted: FormattedRange{
			From: start.Format(displayLayout),
			To:   end.Format(displayLayout),
		},
	}
}

func fromMinute(p types.ReportParams) int {
	if p.FromMinute == nil {
		return 0
	}
	return *p.FromMinute
}

// Compose assembles the report response from the filtered entries and their
// daily statistics.
func Compose(deviceID string, p types.ReportParams, g Granularity, entries []types.NormalizedEntry, daily []types.DailyStat, loc *time.Location) Report {
	r := Report{
		Success: true,
		Parameters: Parameters{
			DeviceID: deviceID,
			Year:     p.Year,
			Month:    p.Month,
			Day:      p.Day,
		},
		DataSource:  "api",
		Granularity: g.Name,
		DateRange:   dateRange(p, loc),
		Summary:     Summarize(daily, len(entries)),
		DailyStats:  daily,
		Entries:     make([]Entry, 0, len(entries)),
	}
	if r.DailyStats == nil {
		r.DailyStats = []types.DailyStat{}
	}

	hasFromHour := p.HasFromHour()
	switch {
	case hasFromHour:
		minute := fromMinute(p)
		r.Parameters.FromHour = p.FromHour
		r.Parameters.FromMinute = &minute
		r.TimeRange = TimeRange{From: fmt.Sprintf("%02d:%02d", *p.FromHour, minute), To: "23:59"}
	case p.Day != nil:
		r.TimeRange = TimeRange{From: "00:00", To: "23:59", Note: "fromHour not given"}
	default:
		r.TimeRange = TimeRange{From: "00:00", To: "23:59", Note: "fromHour is only available with year, month and day"}
	}

	for _, e := range entries {
		t := time.Unix(e.Timestamp, 0).UTC()
		r.Entries = append(r.Entries, Entry{
			Timestamp: e.Timestamp,
			Date:      t.Format(time.DateOnly),
			Datetime:  t.Format(isoLayout),
			KWh:       e.KWh,
			APlus:     e.APlus,
			AMinus:    e.AMinus,
		})
	}

	if len(entries) == 0 {
		period := r.DateRange.Formatted.From + " - " + r.DateRange.Formatted.To
		if hasFromHour {
			r.Warning = fmt.Sprintf("No data found for the period %s from %d:%02d. Please choose a different period or check whether data is available.", period, *p.FromHour, fromMinute(p))
		} else {
			r.Warning = fmt.Sprintf("No data found for the period %s. Please choose a different period or check whether data is available.", period)
		}
	}
	return r
}
