package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/powerfox"
	"github.com/foxwatt/foxwatt/pkg/report"
	"github.com/foxwatt/foxwatt/pkg/storage"
	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	sessionCookie = "foxwatt_session"
	sessionTTL    = 30 * 24 * time.Hour

	// maxBodySize bounds JSON request bodies.
	maxBodySize = 1 << 20
)

type contextKey string

const (
	credentialsContextKey contextKey = "credentials"
)

// Vendor is the part of the Powerfox client the server needs.
type Vendor interface {
	report.Fetcher
	FetchDevices(ctx context.Context, creds types.Credentials) ([]types.Device, error)
	FetchCurrent(ctx context.Context, creds types.Credentials, deviceID string) (types.CurrentReading, error)
}

// LogPruner deletes API call log entries older than the given number of days.
type LogPruner interface {
	PruneDays(ctx context.Context, days int) (int64, error)
}

// Server handles the HTTP API of foxwatt. It runs the report pipeline on
// behalf of the user whose Powerfox credentials are in the session cookie.
type Server struct {
	vendor  Vendor
	storage storage.Database
	pruner  LogPruner
	reports *report.Service

	listenAddr string
	devProxy   string
	webDir     string
	httpServer *http.Server

	encryptionKey    string
	cookieSecure     bool
	serverName       string
	webCacheDuration time.Duration
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(v Vendor, s storage.Database, p LogPruner) *Server {
	srv := &Server{
		vendor:     v,
		storage:    s,
		pruner:     p,
		serverName: "foxwatt",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in a container
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	devProxy := lflag.String("dev-proxy", "", "Address of the dashboard dev server (e.g. http://localhost:5173)")
	webDir := lflag.String("web-dir", "", "Directory of the built dashboard to serve, empty to serve only the API")
	encryptionKey := lflag.RequiredString("credentials-encryption-key", "Key for encrypting the session cookie (32 characters)")
	timezone := lflag.String("timezone", "Europe/Berlin", "Time zone reports are bucketed and labeled in")
	cookieSecure := lflag.Bool("cookie-secure", true, "Only send the session cookie over HTTPS")
	webCacheDuration := lflag.Duration("web-cache-duration", 0, "Duration to cache web files (e.g. 1h, 5m). 0 means no cache.")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.devProxy = *devProxy
		srv.webDir = *webDir
		srv.cookieSecure = *cookieSecure
		srv.webCacheDuration = *webCacheDuration

		if len(*encryptionKey) != 32 {
			log.Ctx(context.Background()).Error("credentials-encryption-key must be 32 characters")
			os.Exit(1)
		}
		srv.encryptionKey = *encryptionKey

		loc, err := time.LoadLocation(*timezone)
		if err != nil {
			log.Ctx(context.Background()).Error("invalid timezone", slog.String("timezone", *timezone), slog.Any("error", err))
			os.Exit(1)
		}
		srv.reports = report.NewService(v, s, loc)
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	apiMux.HandleFunc("POST /api/auth/login", s.handleLogin)
	apiMux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	apiMux.HandleFunc("POST /api/reports/timespan", s.handleTimespanReport)
	apiMux.HandleFunc("POST /api/reports/timespan/export", s.handleTimespanExport)
	apiMux.HandleFunc("GET /api/devices", s.handleListDevices)
	apiMux.HandleFunc("POST /api/devices/sync", s.handleSyncDevices)
	apiMux.HandleFunc("GET /api/devices/{deviceId}", s.handleGetDevice)
	apiMux.HandleFunc("GET /api/devices/{deviceId}/current", s.handleCurrentReading)
	apiMux.HandleFunc("GET /api/history/{granularity}", s.handleHistory)
	apiMux.HandleFunc("GET /api/logs", s.handleListLogs)
	apiMux.HandleFunc("DELETE /api/logs", s.handleDeleteLogs)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))

	// serve the dashboard, either from a directory or from the dev server
	if s.devProxy != "" {
		u, err := url.Parse(s.devProxy)
		if err != nil {
			panic(fmt.Errorf("invalid dev-proxy url (%s): %w", s.devProxy, err))
		}
		mux.Handle("/", httputil.NewSingleHostReverseProxy(u))
	} else if s.webDir != "" {
		dir := os.DirFS(s.webDir)
		mux.Handle("/", s.webHandler(dir, http.FileServer(http.FS(dir))))
	}
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:        s.listenAddr,
		Handler:     s.setupHandler(),
		ReadTimeout: 15 * time.Second,
		// yearly quarter hour reports and exports take a while upstream
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// writeError maps a pipeline or vendor error to its response. Vendor errors
// keep their status and message, everything unexpected is a 500.
func writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	var vErr *report.ValidationError
	var pErr *powerfox.Error
	switch {
	case errors.As(err, &vErr):
		writeJSONError(w, vErr.Message, http.StatusBadRequest)
	case errors.As(err, &pErr):
		log.Ctx(ctx).WarnContext(ctx, msg, slog.String("kind", string(pErr.Kind)), slog.Any("error", err))
		writeJSONError(w, pErr.Message, pErr.HTTPStatus())
	default:
		log.Ctx(ctx).ErrorContext(ctx, msg, slog.Any("error", err))
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

// decodeBody decodes a bounded JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) webHandler(dir fs.FS, h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// unknown paths are dashboard routes and get index.html
		if r.URL.Path != "/" {
			f, err := dir.Open(strings.TrimPrefix(r.URL.Path, "/"))
			if err == nil {
				f.Close()
			} else if errors.Is(err, fs.ErrNotExist) {
				if strings.HasPrefix(r.URL.Path, "/.well-known/") {
					// we don't write JSON here because we don't know what file type is expected
					http.Error(w, "not found", http.StatusNotFound)
					return
				}
				r.URL.Path = "/"
			} else {
				log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to open file", slog.Any("error", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
		}
		if s.webCacheDuration > 0 {
			w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.webCacheDuration.Seconds())))
		}

		h.ServeHTTP(w, r)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
