package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/foxwatt/foxwatt/pkg/powerfox"
	"github.com/foxwatt/foxwatt/pkg/report"
	"github.com/foxwatt/foxwatt/pkg/storage"
	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// 32-byte key for AES-256
const testKey = "01234567890123456789012345678901"

var testCreds = types.Credentials{Email: "user@example.com", Password: "secret"}

type mockVendor struct {
	mock.Mock
}

func (m *mockVendor) FetchReport(ctx context.Context, creds types.Credentials, deviceID string, p types.ReportParams) (powerfox.ReportPayload, error) {
	args := m.Called(ctx, creds, deviceID, p)
	return args.Get(0).(powerfox.ReportPayload), args.Error(1)
}

func (m *mockVendor) FetchDevices(ctx context.Context, creds types.Credentials) ([]types.Device, error) {
	args := m.Called(ctx, creds)
	if v, ok := args.Get(0).([]types.Device); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVendor) FetchCurrent(ctx context.Context, creds types.Credentials, deviceID string) (types.CurrentReading, error) {
	args := m.Called(ctx, creds, deviceID)
	return args.Get(0).(types.CurrentReading), args.Error(1)
}

type mockPruner struct {
	mock.Mock
}

func (m *mockPruner) PruneDays(ctx context.Context, days int) (int64, error) {
	args := m.Called(ctx, days)
	return args.Get(0).(int64), args.Error(1)
}

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func newTestServer(t *testing.T, v Vendor, db storage.Database, p LogPruner) *Server {
	t.Helper()
	return &Server{
		vendor:        v,
		storage:       db,
		pruner:        p,
		reports:       report.NewService(v, db, berlin(t)),
		listenAddr:    ":8080",
		encryptionKey: testKey,
		cookieSecure:  true,
		serverName:    "foxwatt",
	}
}

// sessionFor returns a valid session cookie for creds.
func sessionFor(t *testing.T, srv *Server, creds types.Credentials) *http.Cookie {
	t.Helper()
	return sessionIssuedAt(t, srv, creds, time.Now())
}

// sessionIssuedAt returns a session cookie for creds issued at issuedAt.
func sessionIssuedAt(t *testing.T, srv *Server, creds types.Credentials, issuedAt time.Time) *http.Cookie {
	t.Helper()
	sealed, err := srv.sealSession(t.Context(), creds, issuedAt)
	require.NoError(t, err)
	return &http.Cookie{Name: sessionCookie, Value: base64.RawURLEncoding.EncodeToString(sealed)}
}

func ptr[T any](v T) *T {
	return &v
}
