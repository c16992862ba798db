//go:build !linux

package main

import (
	"context"
	"fmt"

	"github.com/gocomm/mstp-gateway/internal/serialio"
)

func initRS485Backend(ctx context.Context, cfg *appConfig) (*serialio.PortReader, *serialio.TXWriter, func(), error) {
	return nil, nil, func() {}, fmt.Errorf("rs485 transport unsupported on this platform")
}
