package server

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/types"
)

// publicPaths don't need a session.
var publicPaths = map[string]bool{
	"/api/auth/login":  true,
	"/api/auth/status": true,
	"/api/auth/logout": true,
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		creds, err := s.sessionCredentials(ctx, r)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "invalid session cookie", slog.Any("error", err))
			s.clearCookie(w)
			if !publicPaths[r.URL.Path] {
				writeJSONError(w, "invalid session", http.StatusUnauthorized)
				return
			}
		}
		if !creds.Valid() && !publicPaths[r.URL.Path] {
			log.Ctx(ctx).DebugContext(ctx, "no session cookie found")
			writeJSONError(w, "not logged in", http.StatusUnauthorized)
			return
		}
		if creds.Valid() {
			ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authEmail", creds.Email)))
			ctx = context.WithValue(ctx, credentialsContextKey, creds)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionCredentials returns the credentials in the session cookie. A missing
// cookie returns empty credentials and no error.
func (s *Server) sessionCredentials(ctx context.Context, r *http.Request) (types.Credentials, error) {
	cookie, err := r.Cookie(sessionCookie)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && cookie.Value == "") {
		return types.Credentials{}, nil
	}
	if err != nil {
		return types.Credentials{}, err
	}
	encrypted, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return types.Credentials{}, err
	}
	sess, err := s.openSession(ctx, encrypted, time.Now())
	if err != nil {
		return types.Credentials{}, err
	}
	return sess.Credentials, nil
}

func (s *Server) getCredentials(r *http.Request) types.Credentials {
	if creds, ok := r.Context().Value(credentialsContextKey).(types.Credentials); ok {
		return creds
	}
	// we want to have a stack trace when this happens
	panic("no credentials in context")
}

func (s *Server) setCookie(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authStatusResponse struct {
	LoggedIn bool           `json:"loggedIn"`
	Email    string         `json:"email,omitempty"`
	Devices  []types.Device `json:"devices,omitempty"`
}

// handleLogin checks the credentials against Powerfox by listing the devices
// of the account, stores the devices and sets the session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	creds := types.Credentials{Email: strings.TrimSpace(req.Email), Password: req.Password}
	if !creds.Valid() {
		writeJSONError(w, "email and password are required", http.StatusBadRequest)
		return
	}

	devices, err := s.vendor.FetchDevices(ctx, creds)
	if err != nil {
		writeError(ctx, w, err, "failed to validate credentials")
		return
	}
	s.storeDevices(ctx, devices)

	issuedAt := time.Now()
	sealed, err := s.sealSession(ctx, creds, issuedAt)
	if err != nil {
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.setCookie(w, base64.RawURLEncoding.EncodeToString(sealed), issuedAt.Add(sessionTTL))

	log.Ctx(ctx).InfoContext(ctx, "logged in", slog.String("email", creds.Email), slog.Int("devices", len(devices)))
	writeJSON(w, authStatusResponse{LoggedIn: true, Email: creds.Email, Devices: devices})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearCookie(w)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	var resp authStatusResponse
	if creds, ok := r.Context().Value(credentialsContextKey).(types.Credentials); ok {
		resp.LoggedIn = true
		resp.Email = creds.Email
	}
	writeJSON(w, resp)
}
