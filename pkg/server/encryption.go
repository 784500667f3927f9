package server

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/types"
)

var errSessionExpired = errors.New("session expired")

// session is the sealed content of the session cookie.
type session struct {
	Credentials types.Credentials `json:"credentials"`
	IssuedAt    time.Time         `json:"issuedAt"`
	ExpiresAt   time.Time         `json:"expiresAt"`
}

// sessionAEAD returns the AES-GCM cipher for the configured key.
func (s *Server) sessionAEAD() (cipher.AEAD, error) {
	if s.encryptionKey == "" {
		return nil, errors.New("no encryption key configured")
	}
	key := []byte(s.encryptionKey)
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key length %d (must be 32 bytes)", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return gcm, nil
}

// sealSession encrypts a session for creds issued at issuedAt. The result is
// the nonce followed by the ciphertext, bound to the cookie name.
func (s *Server) sealSession(ctx context.Context, creds types.Credentials, issuedAt time.Time) ([]byte, error) {
	gcm, err := s.sessionAEAD()
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "cannot seal session", slog.Any("error", err))
		return nil, fmt.Errorf("cannot seal session: %w", err)
	}

	plaintext, err := json.Marshal(session{
		Credentials: creds,
		IssuedAt:    issuedAt.UTC(),
		ExpiresAt:   issuedAt.Add(sessionTTL).UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to generate nonce", slog.Any("error", err))
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, []byte(sessionCookie)), nil
}

// openSession decrypts a sealed session and rejects it once it expired.
// Empty input returns an empty session and no error.
func (s *Server) openSession(ctx context.Context, sealed []byte, now time.Time) (session, error) {
	if len(sealed) == 0 {
		return session{}, nil
	}

	gcm, err := s.sessionAEAD()
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "cannot open session", slog.Any("error", err))
		return session{}, fmt.Errorf("cannot open session: %w", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return session{}, errors.New("malformed session")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(sessionCookie))
	if err != nil {
		return session{}, fmt.Errorf("failed to decrypt session: %w", err)
	}

	var sess session
	if err := json.Unmarshal(plaintext, &sess); err != nil {
		return session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.ExpiresAt.IsZero() || !now.Before(sess.ExpiresAt) {
		return session{}, errSessionExpired
	}
	return sess, nil
}
