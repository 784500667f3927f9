package report

import (
	"time"

	"github.com/foxwatt/foxwatt/pkg/types"
)

// FilterFrom drops entries before the requested start time of day. It only
// applies to day requests with a fromHour, otherwise entries are returned
// unchanged. Entries outside of the requested local day are dropped too.
func FilterFrom(entries []types.NormalizedEntry, p types.ReportParams, loc *time.Location) []types.NormalizedEntry {
	if !p.HasFromHour() {
		return entries
	}
	fromMinutes := *p.FromHour * 60
	if p.FromMinute != nil {
		fromMinutes += *p.FromMinute
	}

	filtered := make([]types.NormalizedEntry, 0, len(entries))
	for _, e := range entries {
		if e.Timestamp == 0 {
			continue
		}
		t := e.Time(loc)
		if t.Year() != p.Year || int(t.Month()) != *p.Month || t.Day() != *p.Day {
			continue
		}
		if t.Hour()*60+t.Minute() >= fromMinutes {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
