package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/storage"
	"github.com/foxwatt/foxwatt/pkg/types"
)

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := s.storage.ListDevices(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list devices", slog.Any("error", err))
		writeJSONError(w, "failed to list devices", http.StatusInternalServerError)
		return
	}
	if devices == nil {
		devices = []types.Device{}
	}
	writeJSON(w, devices)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := r.PathValue("deviceId")

	device, err := s.storage.GetDevice(ctx, deviceID)
	if errors.Is(err, storage.ErrDeviceNotFound) {
		writeJSONError(w, "device not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device", slog.String("deviceID", deviceID), slog.Any("error", err))
		writeJSONError(w, "failed to get device", http.StatusInternalServerError)
		return
	}
	writeJSON(w, device)
}

// handleSyncDevices pulls the devices of the account from Powerfox and
// stores them.
func (s *Server) handleSyncDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := s.vendor.FetchDevices(ctx, s.getCredentials(r))
	if err != nil {
		writeError(ctx, w, err, "failed to fetch devices")
		return
	}
	for _, d := range devices {
		if err := s.storage.UpsertDevice(ctx, d); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to store device", slog.String("deviceID", d.DeviceID), slog.Any("error", err))
			writeJSONError(w, "failed to store devices", http.StatusInternalServerError)
			return
		}
	}
	log.Ctx(ctx).InfoContext(ctx, "synced devices", slog.Int("count", len(devices)))
	writeJSON(w, devices)
}

// storeDevices stores devices fetched during login. Failures are only logged,
// the login itself succeeded.
func (s *Server) storeDevices(ctx context.Context, devices []types.Device) {
	for _, d := range devices {
		if err := s.storage.UpsertDevice(ctx, d); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to store device", slog.String("deviceID", d.DeviceID), slog.Any("error", err))
			return
		}
	}
}

func (s *Server) handleCurrentReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := r.PathValue("deviceId")

	reading, err := s.vendor.FetchCurrent(ctx, s.getCredentials(r), deviceID)
	if err != nil {
		writeError(ctx, w, err, "failed to fetch current reading")
		return
	}
	writeJSON(w, reading)
}
