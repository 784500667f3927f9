package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/metrics"
	"github.com/foxwatt/foxwatt/pkg/powerfox"
	"github.com/foxwatt/foxwatt/pkg/types"
)

// Fetcher returns the raw vendor report.
type Fetcher interface {
	FetchReport(ctx context.Context, creds types.Credentials, deviceID string, p types.ReportParams) (powerfox.ReportPayload, error)
}

// Result is the outcome of a report run. StorageWarning is set when the
// report was computed but could not be stored.
type Result struct {
	Report         Report
	StorageWarning *StorageWarning
}

// Service runs the report pipeline for a single request.
type Service struct {
	fetcher Fetcher
	store   Store
	loc     *time.Location
}

// NewService returns a Service that buckets and labels entries in loc.
func NewService(fetcher Fetcher, store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{fetcher: fetcher, store: store, loc: loc}
}

// Location is the time zone the service buckets entries in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Run validates the request, fetches the vendor report, aggregates it,
// stores it and composes the response. Validation failures are returned as
// *ValidationError and vendor failures as *powerfox.Error. Storage failures
// never fail the run.
func (s *Service) Run(ctx context.Context, creds types.Credentials, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	p := req.Params()
	g := SelectGranularity(p)

	ctx = log.With(ctx, log.Ctx(ctx).With(
		slog.String("deviceID", req.DeviceID),
		slog.String("granularity", string(g.Name)),
	))

	start := time.Now()
	payload, err := s.fetcher.FetchReport(ctx, creds, req.DeviceID, p)
	if err != nil {
		metrics.ObserveReport(string(g.Name), metrics.ResultError, 0, time.Since(start))
		return Result{}, fmt.Errorf("failed to fetch report: %w", err)
	}

	entries := Normalize(payload.ConsumptionValues(), payload.FeedInValues())
	entries = FilterFrom(entries, p, s.loc)
	daily := AggregateDaily(entries)

	res := Result{Report: Compose(req.DeviceID, p, g, entries, daily, s.loc)}

	if s.store != nil {
		written, warning := Persist(ctx, s.store, g, req.DeviceID, entries, s.loc)
		if warning != nil {
			log.Ctx(ctx).WarnContext(
				ctx,
				"failed to store report",
				slog.Int("attempted", warning.Attempted),
				slog.Int("written", warning.Written),
				slog.Any("error", warning.Err),
			)
			res.StorageWarning = warning
			res.Report.StorageWarning = warning.Message()
		} else {
			log.Ctx(ctx).DebugContext(ctx, "stored report", slog.Int("rows", written))
		}
	}

	metrics.ObserveReport(string(g.Name), metrics.ResultSuccess, len(entries), time.Since(start))
	return res, nil
}
