package main

import (
	"log/slog"

	events "github.com/docker/go-events"

	"github.com/gocomm/mstp-gateway/internal/mstp"
)

// loggingSink writes every StateChange published by the master to l, the
// process's structured logger — the upper-layer observer the reference
// gateway's hub/metrics split models for its own broadcast events.
type loggingSink struct{ l *slog.Logger }

func (s loggingSink) Write(ev events.Event) error {
	if sc, ok := ev.(mstp.StateChange); ok {
		s.l.Debug("state_transition", "station", sc.Station, "from", sc.From, "to", sc.To)
	}
	return nil
}

func (s loggingSink) Close() error { return nil }
