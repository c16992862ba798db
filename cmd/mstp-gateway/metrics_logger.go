package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gocomm/mstp-gateway/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"frames_rx", snap.FramesRx,
					"frames_tx", snap.FramesTx,
					"malformed", snap.Malformed,
					"tokens_passed", snap.TokensPassed,
					"token_retries", snap.TokenPassRetries,
					"pfms_sent", snap.PollsForMaster,
					"replies_postponed", snap.RepliesPostponed,
					"tokens_received", snap.TokensReceived,
					"sole_master", snap.SoleMaster,
					"tx_overflow", snap.TxOverflow,
					"queue_depth", snap.QueueDepth,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
