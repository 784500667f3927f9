package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/metrics"
	"github.com/foxwatt/foxwatt/pkg/report"
)

func (s *Server) runReport(w http.ResponseWriter, r *http.Request) (report.Report, bool) {
	ctx := r.Context()

	var req report.Request
	if err := decodeBody(w, r, &req); err != nil {
		log.Ctx(ctx).DebugContext(ctx, "failed to decode report request", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return report.Report{}, false
	}

	res, err := s.reports.Run(ctx, s.getCredentials(r), req)
	if err != nil {
		writeError(ctx, w, err, "failed to run report")
		return report.Report{}, false
	}
	return res.Report, true
}

// handleTimespanReport runs the report pipeline and returns the composed
// report. A failure to store the aggregates is reported in storageWarning
// but never fails the request.
func (s *Server) handleTimespanReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.runReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, rep)
}

func (s *Server) handleTimespanExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	format, ok := report.ParseFormat(r.URL.Query().Get("format"))
	if !ok {
		writeJSONError(w, "format must be xlsx or pdf", http.StatusBadRequest)
		return
	}

	rep, ok := s.runReport(w, r)
	if !ok {
		return
	}

	b, err := report.Export(rep, format)
	metrics.ObserveExport(string(format), metrics.Result(err))
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to export report", slog.String("format", string(format)), slog.Any("error", err))
		writeJSONError(w, "failed to export report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(rep)))
	if _, err := w.Write(b); err != nil {
		panic(http.ErrAbortHandler)
	}
}
