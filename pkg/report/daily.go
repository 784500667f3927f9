package report

import (
	"math"
	"sort"
	"time"

	"github.com/foxwatt/foxwatt/pkg/types"
)

// Summary is the overall aggregate of a report. Figures are rounded to two
// decimals.
type Summary struct {
	TotalDays    int     `json:"totalDays"`
	TotalEntries int     `json:"totalEntries"`
	AvgWatt      float64 `json:"avgWatt"`
	MaxWatt      float64 `json:"maxWatt"`
	MinWatt      float64 `json:"minWatt"`
	SumKWh       float64 `json:"sumKWh"`
}

// stats accumulates the non-nil values of one field.
type stats struct {
	n        int
	sum      float64
	min, max float64
}

func (s *stats) add(v *float64) {
	if v == nil {
		return
	}
	if s.n == 0 || *v < s.min {
		s.min = *v
	}
	if s.n == 0 || *v > s.max {
		s.max = *v
	}
	s.n++
	s.sum += *v
}

func (s stats) avg() float64 {
	if s.n == 0 {
		return 0
	}
	return s.sum / float64(s.n)
}

// sumPtr is the sum or nil when there were no values.
func (s stats) sumPtr() *float64 {
	if s.n == 0 {
		return nil
	}
	v := s.sum
	return &v
}

// avgPtr is avg but nil when there were no values.
func (s stats) avgPtr() *float64 {
	if s.n == 0 {
		return nil
	}
	v := s.avg()
	return &v
}

// AggregateDaily groups entries by their UTC date and computes per day
// statistics over the non-nil values, sorted by date. Nothing is rounded.
func AggregateDaily(entries []types.NormalizedEntry) []types.DailyStat {
	type day struct {
		count              int
		kwh, aPlus, aMinus stats
	}
	days := map[string]*day{}
	for _, e := range entries {
		key := time.Unix(e.Timestamp, 0).UTC().Format(time.DateOnly)
		d, ok := days[key]
		if !ok {
			d = &day{}
			days[key] = d
		}
		d.count++
		d.kwh.add(e.KWh)
		d.aPlus.add(e.APlus)
		d.aMinus.add(e.AMinus)
	}

	out := make([]types.DailyStat, 0, len(days))
	for date, d := range days {
		out = append(out, types.DailyStat{
			Date:      date,
			Count:     d.count,
			SumKWh:    d.kwh.sum,
			AvgWatt:   d.kwh.avg(),
			MaxWatt:   d.kwh.max,
			MinWatt:   d.kwh.min,
			AvgAPlus:  d.aPlus.avg(),
			AvgAMinus: d.aMinus.avg(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Summarize aggregates the per day statistics. The average is the mean of the
// daily averages, not of the entries, and rounding only happens here.
func Summarize(days []types.DailyStat, totalEntries int) Summary {
	s := Summary{TotalDays: len(days), TotalEntries: totalEntries}
	if len(days) == 0 {
		return s
	}
	var avgSum float64
	s.MaxWatt = days[0].MaxWatt
	s.MinWatt = days[0].MinWatt
	for _, d := range days {
		avgSum += d.AvgWatt
		s.SumKWh += d.SumKWh
		s.MaxWatt = math.Max(s.MaxWatt, d.MaxWatt)
		s.MinWatt = math.Min(s.MinWatt, d.MinWatt)
	}
	s.AvgWatt = round2(avgSum / float64(len(days)))
	s.MaxWatt = round2(s.MaxWatt)
	s.MinWatt = round2(s.MinWatt)
	s.SumKWh = round2(s.SumKWh)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
