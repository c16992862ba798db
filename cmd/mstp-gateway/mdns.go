package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/gocomm/mstp-gateway/internal/logging"
)

// mdnsServiceType advertises the admin HTTP surface, not the serial link
// itself (a local bus has no network presence to discover).
const mdnsServiceType = "_mstp-gateway._tcp"

// startMDNS registers the service via mDNS and returns a cleanup function.
// Safe to call when disabled (no-op).
func startMDNS(ctx context.Context, cfg *appConfig, port int) (func(), error) {
	if !cfg.mdnsEnable {
		return func() {}, nil
	}
	instance := cfg.mdnsName
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("mstp-gateway-%s", host)
	}
	meta := []string{
		"transport=" + cfg.transport,
		fmt.Sprintf("thisStation=%d", cfg.thisStation),
		fmt.Sprintf("maxMaster=%d", cfg.maxMaster),
		"version=" + version,
		"commit=" + commit,
	}
	log := logging.WithComponent("mdns")
	svc, err := zeroconf.Register(instance, mdnsServiceType, "local.", port, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	log.Info("registered", "instance", instance, "service", mdnsServiceType, "port", port)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
		log.Info("unregistered", "instance", instance)
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}
