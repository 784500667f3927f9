package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/metrics"
	"github.com/foxwatt/foxwatt/pkg/powerfox"
	"github.com/foxwatt/foxwatt/pkg/retention"
	"github.com/foxwatt/foxwatt/pkg/server"
	"github.com/foxwatt/foxwatt/pkg/storage"

	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
)

func main() {
	// a missing .env is fine, flags and the environment still apply
	_ = godotenv.Load()

	// init packages
	s := storage.Configured()
	pf := powerfox.Configured(s)
	r := retention.Configured(s)

	// init server
	srv := server.Configured(pf, s, r)

	logFile := lflag.String("log-file", "", "Also write logs to this file, rotated daily")
	logMaxAge := lflag.Duration("log-max-age", 14*24*time.Hour, "How long rotated log files are kept")

	// parse flags
	lflag.Configure()

	// lflag automatically sets llog's level, but we need to set the slog level
	level, err := log.ConfigureFromLLog()
	if err != nil {
		panic(err)
	}
	if *logFile != "" {
		closer, err := log.ConfigureFile(*logFile, *logMaxAge)
		if err != nil {
			panic(err)
		}
		defer closer.Close()
	}
	slog.Debug("logger configured", slog.String("level", level.String()))

	metrics.Register()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	if err := r.Start(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to start retention", slog.Any("error", err))
		os.Exit(1)
	}
	defer r.Stop()

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
