package report

import (
	"sort"

	"github.com/foxwatt/foxwatt/pkg/powerfox"
	"github.com/foxwatt/foxwatt/pkg/types"
)

// field reads one of the synonymous value fields of a raw report value.
type field func(powerfox.ReportValue) *float64

var (
	fieldDelta             field = func(v powerfox.ReportValue) *float64 { return v.Delta }
	fieldConsumption       field = func(v powerfox.ReportValue) *float64 { return v.Consumption }
	fieldFeedIn            field = func(v powerfox.ReportValue) *float64 { return v.FeedIn }
	fieldDeltaKiloWattHour field = func(v powerfox.ReportValue) *float64 { return v.DeltaKiloWattHour }
)

// Resolution order per synthesized figure, first non-nil wins.
var (
	consumptionKWh   = []field{fieldDelta, fieldConsumption, fieldDeltaKiloWattHour}
	consumptionAPlus = []field{fieldDelta, fieldDeltaKiloWattHour}
	feedInKWh        = []field{fieldDelta, fieldFeedIn, fieldDeltaKiloWattHour}
	feedInAMinus     = []field{fieldDelta, fieldDeltaKiloWattHour}
)

// resolve returns the first non-nil field of v.
func resolve(v powerfox.ReportValue, fields ...field) *float64 {
	for _, f := range fields {
		if val := f(v); val != nil {
			return val
		}
	}
	return nil
}

// Normalize merges the consumption and feed-in series into one entry per
// timestamp, sorted ascending. Consumption seeds the entries, feed-in sets
// aMinus and only fills kWh when consumption had none. Values with a zero
// timestamp are dropped.
func Normalize(consumption, feedIn []powerfox.ReportValue) []types.NormalizedEntry {
	byTS := make(map[int64]*types.NormalizedEntry, len(consumption))

	for _, v := range consumption {
		if v.Timestamp == 0 {
			continue
		}
		byTS[v.Timestamp] = &types.NormalizedEntry{
			Timestamp: v.Timestamp,
			KWh:       resolve(v, consumptionKWh...),
			APlus:     resolve(v, consumptionAPlus...),
		}
	}

	for _, v := range feedIn {
		if v.Timestamp == 0 {
			continue
		}
		e, ok := byTS[v.Timestamp]
		if !ok {
			e = &types.NormalizedEntry{Timestamp: v.Timestamp}
			byTS[v.Timestamp] = e
		}
		if e.KWh == nil {
			e.KWh = resolve(v, feedInKWh...)
		}
		e.AMinus = resolve(v, feedInAMinus...)
	}

	entries := make([]types.NormalizedEntry, 0, len(byTS))
	for _, e := range byTS {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	return entries
}
