package main

import (
	"context"
	"fmt"

	"github.com/gocomm/mstp-gateway/internal/logging"
	"github.com/gocomm/mstp-gateway/internal/serialio"
)

// openTarmPort is a hook for tests.
var openTarmPort = serialio.Open

func initTarmBackend(ctx context.Context, cfg *appConfig) (*serialio.PortReader, *serialio.TXWriter, func(), error) {
	log := logging.WithComponent("serial")
	sp, err := openTarmPort(cfg.serialDev, cfg.baud, cfg.serialReadTO)
	if err != nil {
		return nil, nil, func() {}, fmt.Errorf("open serial: %w", err)
	}
	log.Info("port_open", "device", cfg.serialDev, "baud", cfg.baud, "transport", "tarm")
	pr := serialio.NewPortReader(sp, portReadBufSize)
	tw := serialio.NewTXWriter(ctx, sp, txQueueSize)
	return pr, tw, func() {
		tw.Close()
		_ = sp.Close()
		log.Info("port_closed", "device", cfg.serialDev)
	}, nil
}
