// Package metrics exposes Prometheus instrumentation for the MS/TP gateway
// plus cheap atomic mirrors of the same counters for local status reporting.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gocomm/mstp-gateway/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus series
var (
	FramesRx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mstp_frames_rx_total",
		Help: "Total well-formed MS/TP frames parsed off the wire.",
	})
	FramesTx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mstp_frames_tx_total",
		Help: "Total MS/TP frames written to the wire.",
	})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mstp_malformed_frames_total",
		Help: "Total rejected frames: bad length, failed header or data CRC.",
	})
	TokensPassed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mstp_tokens_passed_total",
		Help: "Total Token frames transmitted by this master.",
	})
	TokenPassRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mstp_token_pass_retries_total",
		Help: "Total times a token pass was retried after the successor stayed silent for the usage timeout.",
	})
	PollsForMaster = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mstp_polls_for_master_total",
		Help: "Total Poll-For-Master frames sent while probing for new masters.",
	})
	RepliesPostponed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mstp_replies_postponed_total",
		Help: "Total Reply-Postponed frames sent because a reply was not ready in time.",
	})
	TokensReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mstp_tokens_received_total",
		Help: "Total times this station has received the token.",
	})
	SoleMasterTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mstp_sole_master_transitions_total",
		Help: "Total times this station concluded it is the only master on the segment.",
	})
	StateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mstp_master_state",
		Help: "1 for the current master state, 0 otherwise, keyed by state name.",
	}, []string{"state"})
	OutboundQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mstp_outbound_queue_depth",
		Help: "Current depth of the upper-layer outbound frame queue.",
	})
	TapQueueDepthAvg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mstp_tap_queue_depth_avg",
		Help: "Approximate average queued frames per diagnostic tap observer.",
	})
	TapObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mstp_tap_observers",
		Help: "Current number of connected diagnostic tap observers.",
	})
	TxOverflow = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mstp_tx_queue_overflow_total",
		Help: "Total frames dropped because the async wire-sender queue was full.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrPortRead     = "port_read"
	ErrPortWrite    = "port_write"
	ErrWireOverflow = "wire_tx_overflow"
	ErrRS485Control = "rs485_control"
)

// StartHTTP serves Prometheus metrics at /metrics plus a /ready probe.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, cheap to read for the periodic metrics log line
// without round-tripping through the Prometheus registry.
var (
	localFramesRx     uint64
	localFramesTx     uint64
	localMalformed    uint64
	localTokensPassed uint64
	localTokenRetries uint64
	localPFMs         uint64
	localPostponed    uint64
	localTokensRecv   uint64
	localSoleMaster   uint64
	localErrors       uint64
	localTxOverflow   uint64
	localQueueDepth   uint64
)

// Snapshot is a cheap, consistent-enough copy of the local counters.
type Snapshot struct {
	FramesRx         uint64
	FramesTx         uint64
	Malformed        uint64
	TokensPassed     uint64
	TokenPassRetries uint64
	PollsForMaster   uint64
	RepliesPostponed uint64
	TokensReceived   uint64
	SoleMaster       uint64
	Errors           uint64
	TxOverflow       uint64
	QueueDepth       uint64
}

// Snap returns the current value of every local counter.
func Snap() Snapshot {
	return Snapshot{
		FramesRx:         atomic.LoadUint64(&localFramesRx),
		FramesTx:         atomic.LoadUint64(&localFramesTx),
		Malformed:        atomic.LoadUint64(&localMalformed),
		TokensPassed:     atomic.LoadUint64(&localTokensPassed),
		TokenPassRetries: atomic.LoadUint64(&localTokenRetries),
		PollsForMaster:   atomic.LoadUint64(&localPFMs),
		RepliesPostponed: atomic.LoadUint64(&localPostponed),
		TokensReceived:   atomic.LoadUint64(&localTokensRecv),
		SoleMaster:       atomic.LoadUint64(&localSoleMaster),
		Errors:           atomic.LoadUint64(&localErrors),
		TxOverflow:       atomic.LoadUint64(&localTxOverflow),
		QueueDepth:       atomic.LoadUint64(&localQueueDepth),
	}
}

func IncFramesRx() {
	FramesRx.Inc()
	atomic.AddUint64(&localFramesRx, 1)
}

func IncFramesTx() {
	FramesTx.Inc()
	atomic.AddUint64(&localFramesTx, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

func IncTokensPassed() {
	TokensPassed.Inc()
	atomic.AddUint64(&localTokensPassed, 1)
}

func IncTokenPassRetry() {
	TokenPassRetries.Inc()
	atomic.AddUint64(&localTokenRetries, 1)
}

func IncPollForMaster() {
	PollsForMaster.Inc()
	atomic.AddUint64(&localPFMs, 1)
}

func IncReplyPostponed() {
	RepliesPostponed.Inc()
	atomic.AddUint64(&localPostponed, 1)
}

func IncTokenReceived() {
	TokensReceived.Inc()
	atomic.AddUint64(&localTokensRecv, 1)
}

func IncSoleMaster() {
	SoleMasterTransitions.Inc()
	atomic.AddUint64(&localSoleMaster, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func IncTxOverflow() {
	TxOverflow.Inc()
	atomic.AddUint64(&localTxOverflow, 1)
}

func SetQueueDepth(n int) {
	OutboundQueueDepth.Set(float64(n))
	atomic.StoreUint64(&localQueueDepth, uint64(n))
}

// SetTapQueueDepth records the average queue depth across tap observers.
func SetTapQueueDepth(avg int) { TapQueueDepthAvg.Set(float64(avg)) }

// SetTapObservers records the current tap observer count.
func SetTapObservers(n int) { TapObservers.Set(float64(n)) }

// stateNames lists every gauge series SetState keeps in sync; a state
// entering 1 implies every other entry in this list goes to 0.
var stateNames = []string{
	"IDLE", "USE_TOKEN", "WAIT_FOR_REPLY", "DONE_WITH_TOKEN",
	"PASS_TOKEN", "NO_TOKEN", "POLL_FOR_MASTER", "ANSWER_DATA_REQUEST",
}

// SetState marks state as the single active master state gauge.
func SetState(state string) {
	for _, s := range stateNames {
		if s == state {
			StateGauge.WithLabelValues(s).Set(1)
		} else {
			StateGauge.WithLabelValues(s).Set(0)
		}
	}
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error of a kind doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrPortRead, ErrPortWrite, ErrWireOverflow, ErrRS485Control} {
		Errors.WithLabelValues(lbl).Add(0)
	}
	for _, s := range stateNames {
		StateGauge.WithLabelValues(s).Set(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // not set yet: treat as ready so /ready doesn't flap at startup
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
