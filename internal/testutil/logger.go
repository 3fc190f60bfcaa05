// Package testutil provides shared helpers for LeapLedger tests.
package testutil

import (
	"log/slog"
	"testing"
)

// NewTestLogger returns an slog logger routed through t.Log, so ledger
// operation logs only surface on failure or under -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
