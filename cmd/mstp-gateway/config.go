package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocomm/mstp-gateway/internal/mstp"
)

type appConfig struct {
	serialDev    string
	baud         int
	serialReadTO time.Duration
	transport    string // tarm|rs485

	thisStation   int
	maxMaster     int
	maxInfoFrames int
	usageTimeout  int
	retryCount    int

	logFormat       string
	logLevel        string
	logMetricsEvery time.Duration

	metricsAddr string
	adminAddr   string

	mdnsEnable bool
	mdnsName   string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	serialDev := flag.String("serial", "/dev/ttyUSB0", "Serial device path")
	baud := flag.Int("baud", 38400, "Serial baud rate")
	serialReadTO := flag.Duration("serial-read-timeout", 20*time.Millisecond, "Serial read timeout")
	transport := flag.String("transport", "tarm", "Serial transport: tarm|rs485")
	thisStation := flag.Int("this-station", 1, "This station's MS/TP address")
	maxMaster := flag.Int("max-master", int(mstp.MaxMaster), "Largest master address on the segment")
	maxInfoFrames := flag.Int("max-info-frames", 1, "Data frames sent per token possession")
	usageTimeout := flag.Int("usage-timeout", mstp.MinUsageTimeout, "Silence threshold in ms after passing the token or a PFM")
	retryCount := flag.Int("retry-count", 0, "Token-pass retry budget override (0 = protocol default)")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters")
	metricsAddr := flag.String("metrics-addr", "", "Standalone Prometheus listen address (e.g., :9100); empty disables")
	adminAddr := flag.String("admin-addr", ":8080", "Admin HTTP listen address serving /status, /metrics, /ready; empty disables")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default mstp-gateway-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.serialDev = *serialDev
	cfg.baud = *baud
	cfg.serialReadTO = *serialReadTO
	cfg.transport = *transport
	cfg.thisStation = *thisStation
	cfg.maxMaster = *maxMaster
	cfg.maxInfoFrames = *maxInfoFrames
	cfg.usageTimeout = *usageTimeout
	cfg.retryCount = *retryCount
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.metricsAddr = *metricsAddr
	cfg.adminAddr = *adminAddr
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs semantic validation only; it never opens devices or
// listeners (testable property 9).
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.transport {
	case "tarm", "rs485":
	default:
		return fmt.Errorf("invalid transport: %s", c.transport)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if c.thisStation < 0 || c.thisStation > 127 {
		return fmt.Errorf("this-station must be in [0,127] (got %d)", c.thisStation)
	}
	if c.maxMaster < c.thisStation || c.maxMaster > 127 {
		return fmt.Errorf("max-master must be in [this-station,127] (got %d)", c.maxMaster)
	}
	if c.maxInfoFrames < 1 {
		return fmt.Errorf("max-info-frames must be >= 1 (got %d)", c.maxInfoFrames)
	}
	if c.usageTimeout < mstp.MinUsageTimeout || c.usageTimeout > mstp.MaxUsageTimeout {
		return fmt.Errorf("usage-timeout must be in [%d,%d] (got %d)", mstp.MinUsageTimeout, mstp.MaxUsageTimeout, c.usageTimeout)
	}
	if c.retryCount < 0 {
		return fmt.Errorf("retry-count must be >= 0 (got %d)", c.retryCount)
	}
	if c.logMetricsEvery < 0 {
		return fmt.Errorf("log-metrics-interval must be >= 0")
	}
	return nil
}

// applyEnvOverrides maps MSTP_GATEWAY_* environment variables onto cfg
// unless the corresponding flag was explicitly set (flag wins over env).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	setInt := func(flagName, env string, dst *int, allowZero bool) {
		if _, ok := set[flagName]; ok {
			return
		}
		v, ok := get(env)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
			return
		}
		if n < 0 && !allowZero {
			return
		}
		*dst = n
	}
	setStr := func(flagName, env string, dst *string) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			*dst = v
		}
	}
	setDur := func(flagName, env string, dst *time.Duration) {
		if _, ok := set[flagName]; ok {
			return
		}
		v, ok := get(env)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
			return
		}
		*dst = d
	}
	setBool := func(flagName, env string, dst *bool) {
		if _, ok := set[flagName]; ok {
			return
		}
		v, ok := get(env)
		if !ok || v == "" {
			return
		}
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}

	setStr("serial", "MSTP_GATEWAY_SERIAL", &c.serialDev)
	setInt("baud", "MSTP_GATEWAY_BAUD", &c.baud, false)
	setDur("serial-read-timeout", "MSTP_GATEWAY_SERIAL_READ_TIMEOUT", &c.serialReadTO)
	setStr("transport", "MSTP_GATEWAY_TRANSPORT", &c.transport)
	setInt("this-station", "MSTP_GATEWAY_THIS_STATION", &c.thisStation, true)
	setInt("max-master", "MSTP_GATEWAY_MAX_MASTER", &c.maxMaster, true)
	setInt("max-info-frames", "MSTP_GATEWAY_MAX_INFO_FRAMES", &c.maxInfoFrames, false)
	setInt("usage-timeout", "MSTP_GATEWAY_USAGE_TIMEOUT", &c.usageTimeout, false)
	setInt("retry-count", "MSTP_GATEWAY_RETRY_COUNT", &c.retryCount, true)
	setStr("log-format", "MSTP_GATEWAY_LOG_FORMAT", &c.logFormat)
	setStr("log-level", "MSTP_GATEWAY_LOG_LEVEL", &c.logLevel)
	setDur("log-metrics-interval", "MSTP_GATEWAY_LOG_METRICS_INTERVAL", &c.logMetricsEvery)
	setStr("metrics-addr", "MSTP_GATEWAY_METRICS_ADDR", &c.metricsAddr)
	setStr("admin-addr", "MSTP_GATEWAY_ADMIN_ADDR", &c.adminAddr)
	setBool("mdns-enable", "MSTP_GATEWAY_MDNS_ENABLE", &c.mdnsEnable)
	setStr("mdns-name", "MSTP_GATEWAY_MDNS_NAME", &c.mdnsName)

	return firstErr
}
