package main

import (
	"testing"
	"time"
)

func baseConfig() *appConfig {
	return &appConfig{
		serialDev:     "/dev/null",
		baud:          38400,
		serialReadTO:  10 * time.Millisecond,
		transport:     "tarm",
		thisStation:   1,
		maxMaster:     3,
		maxInfoFrames: 1,
		usageTimeout:  20,
		retryCount:    0,
		logFormat:     "text",
		logLevel:      "info",
		adminAddr:     ":8080",
	}
}

func TestConfigValidate_OK(t *testing.T) {
	if err := baseConfig().validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badTransport", func(c *appConfig) { c.transport = "xbee" }},
		{"badBaud", func(c *appConfig) { c.baud = 0 }},
		{"badSerialTO", func(c *appConfig) { c.serialReadTO = 0 }},
		{"badThisStation", func(c *appConfig) { c.thisStation = 200 }},
		{"maxMasterBelowThisStation", func(c *appConfig) { c.maxMaster = 0; c.thisStation = 1 }},
		{"maxMasterTooLarge", func(c *appConfig) { c.maxMaster = 200 }},
		{"badMaxInfoFrames", func(c *appConfig) { c.maxInfoFrames = 0 }},
		{"usageTimeoutTooLow", func(c *appConfig) { c.usageTimeout = 19 }},
		{"usageTimeoutTooHigh", func(c *appConfig) { c.usageTimeout = 101 }},
		{"negativeRetryCount", func(c *appConfig) { c.retryCount = -1 }},
		{"negativeLogMetricsInterval", func(c *appConfig) { c.logMetricsEvery = -time.Second }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := baseConfig()
			tc.mod(c)
			if err := c.validate(); err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
		})
	}
}
