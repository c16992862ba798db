package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gocomm/mstp-gateway/internal/metrics"
	"github.com/gocomm/mstp-gateway/internal/mstp"
	"github.com/gocomm/mstp-gateway/internal/tap"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("mstp-gateway %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	pr, tw, cleanup, err := initBackend(ctx, cfg)
	if err != nil {
		l.Error("backend_init_error", "error", err)
		return
	}
	l.Info("backend_open", "transport", cfg.transport, "device", cfg.serialDev, "baud", cfg.baud)

	m, err := mstp.NewMaster(pr, tw, uint8(cfg.thisStation), uint8(cfg.maxMaster), cfg.retryCount)
	if err != nil {
		l.Error("master_init_error", "error", err)
		cleanup()
		return
	}
	if err := m.SetMaxInfoFrames(cfg.maxInfoFrames); err != nil {
		l.Error("master_config_error", "error", err)
		cleanup()
		return
	}
	if err := m.SetUsageTimeout(cfg.usageTimeout); err != nil {
		l.Error("master_config_error", "error", err)
		cleanup()
		return
	}

	broadcaster := mstp.NewEventBroadcaster()
	broadcaster.Add(loggingSink{l: l})
	m.SetEventSink(broadcaster)
	defer func() { _ = broadcaster.Close() }()

	tp := tap.New()
	m.SetTap(tp.Broadcast)

	m.SetHooks(mstp.ReceiveHooks{
		DataNoReply: func(fr mstp.Frame) {
			l.Debug("data_no_reply", "from", fr.Source, "type", fr.Type, "len", len(fr.Data))
		},
		DataNeedingReply: func(fr mstp.Frame) {
			l.Debug("data_needing_reply", "from", fr.Source, "len", len(fr.Data))
			// Hooks run synchronously under the master's state lock, so the
			// reply must be installed from another goroutine, never inline.
			go func(src uint8) {
				if err := m.SetReplyFrame(mstp.Frame{Type: mstp.FrameBACnetDataNotExpectingReply, Destination: src, Source: uint8(cfg.thisStation)}); err != nil {
					l.Warn("set_reply_frame_error", "error", err)
				}
			}(fr.Source)
		},
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("cycle_worker_end")
		runCycles(ctx, m, l)
	}()

	adminSrv := startAdminHTTP(cfg.adminAddr, m, tp)
	if adminSrv != nil {
		defer func() { _ = adminSrv.Shutdown(context.Background()) }()
	}
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metricsSrv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = metricsSrv.Shutdown(context.Background()) }()
	}

	metrics.SetReadinessFunc(func() bool { return ctx.Err() == nil })

	if cfg.mdnsEnable {
		port := adminPort(cfg.adminAddr)
		cleanupMDNS, err := startMDNS(ctx, cfg, port)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
		} else {
			defer cleanupMDNS()
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	m.Terminate()
	cleanup()
	wg.Wait()
}

// runCycles drives the master's cycle loop until ctx is cancelled. Each
// DoCycle call is paced by the underlying port's read timeout, mirroring the
// reference gateway's blocking-Read-as-pacing RX loop; non-fatal errors back
// off exponentially instead of busy-looping.
func runCycles(ctx context.Context, m *mstp.Master, l *slog.Logger) {
	backoff := cycleBackoffMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := m.DoCycle(); err != nil {
			if ctx.Err() != nil || errors.Is(err, mstp.ErrClosed) {
				return
			}
			l.Warn("cycle_error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > cycleBackoffMax {
				backoff = cycleBackoffMax
			}
			continue
		}
		backoff = cycleBackoffMin
	}
}

// adminPort extracts the numeric port from a host:port admin address, or 0
// if addr is empty/unparseable.
func adminPort(addr string) int {
	if addr == "" {
		return 0
	}
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		last := strings.LastIndex(addr, ":")
		if last < 0 {
			return 0
		}
		p = addr[last+1:]
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return n
}
