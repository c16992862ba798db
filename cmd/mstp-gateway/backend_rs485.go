//go:build linux

package main

import (
	"context"
	"fmt"

	"github.com/gocomm/mstp-gateway/internal/logging"
	"github.com/gocomm/mstp-gateway/internal/serialio"
)

// openRS485Port is a hook for tests.
var openRS485Port = serialio.OpenRS485

func initRS485Backend(ctx context.Context, cfg *appConfig) (*serialio.PortReader, *serialio.TXWriter, func(), error) {
	log := logging.WithComponent("serial")
	sp, err := openRS485Port(cfg.serialDev, cfg.baud, cfg.serialReadTO, rs485Turnaround)
	if err != nil {
		return nil, nil, func() {}, fmt.Errorf("open rs485: %w", err)
	}
	log.Info("port_open", "device", cfg.serialDev, "baud", cfg.baud, "transport", "rs485")
	pr := serialio.NewPortReader(sp, portReadBufSize)
	tw := serialio.NewTXWriter(ctx, sp, txQueueSize)
	return pr, tw, func() {
		tw.Close()
		_ = sp.Close()
		log.Info("port_closed", "device", cfg.serialDev)
	}, nil
}
