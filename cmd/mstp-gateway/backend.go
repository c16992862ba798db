package main

import (
	"context"
	"fmt"

	"github.com/gocomm/mstp-gateway/internal/serialio"
)

// initBackend opens the configured transport and returns the non-blocking
// octet reader and async frame writer a Master is constructed around, plus
// a cleanup function. It returns an error instead of exiting the process so
// the caller can log and shut down gracefully.
func initBackend(ctx context.Context, cfg *appConfig) (*serialio.PortReader, *serialio.TXWriter, func(), error) {
	switch cfg.transport {
	case "tarm":
		return initTarmBackend(ctx, cfg)
	case "rs485":
		return initRS485Backend(ctx, cfg)
	default:
		return nil, nil, func() {}, fmt.Errorf("unknown transport %q (use tarm|rs485)", cfg.transport)
	}
}
