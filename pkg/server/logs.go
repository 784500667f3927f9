package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/types"
)

const (
	maxLogLimit     = 1000
	defaultLogsDays = 7
)

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var filter types.APICallLogFilter
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeJSONError(w, "limit must be a positive number", http.StatusBadRequest)
			return
		}
		filter.Limit = min(limit, maxLogLimit)
	}
	filter.Endpoint = query.Get("endpoint")
	filter.FailedOnly = query.Get("failed") == "true"

	logs, err := s.storage.ListAPICallLogs(ctx, filter)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list api call logs", slog.Any("error", err))
		writeJSONError(w, "failed to list logs", http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []types.APICallLog{}
	}
	writeJSON(w, logs)
}

// handleDeleteLogs deletes log entries older than the days query parameter.
func (s *Server) handleDeleteLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := defaultLogsDays
	if v := r.URL.Query().Get("days"); v != "" {
		var err error
		days, err = strconv.Atoi(v)
		if err != nil || days < 0 {
			writeJSONError(w, "days must be zero or a positive number", http.StatusBadRequest)
			return
		}
	}

	deleted, err := s.pruner.PruneDays(ctx, days)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to delete api call logs", slog.Int("days", days), slog.Any("error", err))
		writeJSONError(w, "failed to delete logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, struct {
		Deleted int64 `json:"deleted"`
	}{deleted})
}
