package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/types"
)

// handleHistory returns the stored aggregates of one granularity for a year,
// month or day.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	g, ok := types.ParseGranularity(r.PathValue("granularity"))
	if !ok {
		writeJSONError(w, "unknown granularity", http.StatusNotFound)
		return
	}
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		writeJSONError(w, "deviceId is required", http.StatusBadRequest)
		return
	}
	q, err := parsePeriodQuery(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var values any
	switch g {
	case types.GranularityQuarterHour:
		values, err = s.storage.GetQuarterHourValues(ctx, deviceID, q)
	case types.GranularityHour:
		values, err = s.storage.GetHourValues(ctx, deviceID, q)
	case types.GranularityDay:
		values, err = s.storage.GetDayValues(ctx, deviceID, q)
	case types.GranularityMonth:
		values, err = s.storage.GetMonthValues(ctx, deviceID, q)
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get history", slog.String("granularity", string(g)), slog.String("deviceID", deviceID), slog.Any("error", err))
		writeJSONError(w, "failed to get history", http.StatusInternalServerError)
		return
	}

	// a period that ended before today won't change anymore
	if periodEnd(q, s.reports.Location()).Before(time.Now()) {
		w.Header().Set("Cache-Control", "private, max-age=86400")
	} else {
		w.Header().Set("Cache-Control", "private, max-age=60")
	}
	writeJSON(w, struct {
		Granularity types.Granularity `json:"granularity"`
		DeviceID    string            `json:"deviceId"`
		Values      any               `json:"values"`
	}{g, deviceID, values})
}

func parsePeriodQuery(r *http.Request) (types.PeriodQuery, error) {
	var q types.PeriodQuery
	query := r.URL.Query()

	year, err := strconv.Atoi(query.Get("year"))
	if err != nil || year < 1 || year > 9999 {
		return q, fmt.Errorf("a valid year is required")
	}
	q.Year = year

	if v := query.Get("month"); v != "" {
		month, err := strconv.Atoi(v)
		if err != nil || month < 1 || month > 12 {
			return q, fmt.Errorf("month must be between 1 and 12")
		}
		q.Month = &month
	}
	if v := query.Get("day"); v != "" {
		if q.Month == nil {
			return q, fmt.Errorf("day requires month")
		}
		day, err := strconv.Atoi(v)
		if err != nil || day < 1 || day > 31 {
			return q, fmt.Errorf("day must be between 1 and 31")
		}
		q.Day = &day
	}
	return q, nil
}

// periodEnd is the first instant after the period.
func periodEnd(q types.PeriodQuery, loc *time.Location) time.Time {
	switch {
	case q.Day != nil:
		return time.Date(q.Year, time.Month(*q.Month), *q.Day+1, 0, 0, 0, 0, loc)
	case q.Month != nil:
		return time.Date(q.Year, time.Month(*q.Month)+1, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(q.Year+1, time.January, 1, 0, 0, 0, 0, loc)
	}
}
