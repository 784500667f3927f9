package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/report"
	"github.com/foxwatt/foxwatt/pkg/storage"
	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
)

func main() {
	_ = godotenv.Load()

	s := storage.Configured()
	deviceID := lflag.String("seed-device", "demo", "Device ID to seed aggregates for")
	span := lflag.Duration("seed-span", 7*24*time.Hour, "How far back from now to generate quarter hours")
	timezone := lflag.String("timezone", "Europe/Berlin", "Time zone the aggregates are bucketed in")
	lflag.Configure()

	ctx := context.Background()
	defer s.Close()

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid timezone: %v\n", err)
		os.Exit(1)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data", slog.String("deviceID", *deviceID), slog.Duration("span", *span))

	entries := generate(rand.New(rand.NewSource(time.Now().UnixNano())), time.Now().Add(-*span), time.Now(), loc)
	if err := seed(ctx, s, *deviceID, entries, loc); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "seeding complete")
}

// seed stores the demo device and the entries at every granularity. Coarser
// granularities get the entries summed per bucket, the way Powerfox reports
// them when asked for that resolution.
func seed(ctx context.Context, s storage.Database, deviceID string, entries []types.NormalizedEntry, loc *time.Location) error {
	err := s.UpsertDevice(ctx, types.Device{
		DeviceID:   deviceID,
		Name:       "Demo meter",
		MainDevice: true,
		Prosumer:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to store device: %w", err)
	}

	for _, g := range []report.Granularity{report.QuarterHour, report.Hour, report.Day, report.Month} {
		values := entries
		if g.Name != types.GranularityQuarterHour {
			values = g.Rollup(entries, loc)
		}
		written, warning := report.Persist(ctx, s, g, deviceID, values, loc)
		if warning != nil {
			return fmt.Errorf("failed to store %s values: %w", g.Name, warning)
		}
		log.Ctx(ctx).InfoContext(ctx, "seeded values", slog.String("granularity", string(g.Name)), slog.Int("rows", written))
	}
	return nil
}

// generate returns a quarter hour entry for every quarter hour between start
// and end with a household load profile and a solar feed-in curve.
func generate(rng *rand.Rand, start, end time.Time, loc *time.Location) []types.NormalizedEntry {
	const (
		baseLoadKWh  = 0.08 // per quarter hour
		solarPeakKWh = 1.6
	)

	var entries []types.NormalizedEntry
	for t := start.Truncate(15 * time.Minute); t.Before(end); t = t.Add(15 * time.Minute) {
		local := t.In(loc)
		hour := float64(local.Hour()) + float64(local.Minute())/60

		load := baseLoadKWh + rng.Float64()*0.05
		// morning and evening peaks
		if (hour >= 6.5 && hour < 8.5) || (hour >= 17.5 && hour < 21) {
			load += 0.15 + rng.Float64()*0.1
		}

		var solar float64
		if hour > 6 && hour < 20 {
			dist := math.Abs(hour - 13)
			solar = solarPeakKWh / 4 * math.Exp(-(dist*dist)/8)
		}

		consumption := math.Max(load-solar, 0)
		feedIn := math.Max(solar-load, 0)
		entries = append(entries, types.NormalizedEntry{
			Timestamp: t.Unix(),
			KWh:       &consumption,
			APlus:     &consumption,
			AMinus:    &feedIn,
		})
	}
	return entries
}
