// Copyright 2026 The vnfsteer Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the configuration of the steering daemon.
package config

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/vnfsteer/vnfsteer/pkg/log"
	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
	"github.com/vnfsteer/vnfsteer/pkg/private/util"
	"github.com/vnfsteer/vnfsteer/private/config"
	"github.com/vnfsteer/vnfsteer/private/env"
	api "github.com/vnfsteer/vnfsteer/private/mgmtapi"
	"github.com/vnfsteer/vnfsteer/steer/control"
	"github.com/vnfsteer/vnfsteer/steer/policer"
	"github.com/vnfsteer/vnfsteer/steer/tunnel"
)

const (
	DefaultBatchSize       = 256
	DefaultTraceBufferSize = 512
)

var _ config.Config = (*Config)(nil)

// Config is the configuration of the steering daemon.
type Config struct {
	General env.General `toml:"general,omitempty"`
	Logging log.Config  `toml:"log,omitempty"`
	Metrics env.Metrics `toml:"metrics,omitempty"`
	API     api.Config  `toml:"api,omitempty"`
	Steer   SteerConfig `toml:"steer,omitempty"`
}

func (cfg *Config) InitDefaults() {
	config.InitAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.API,
		&cfg.Steer,
	)
}

func (cfg *Config) Validate() error {
	return config.ValidateAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.API,
		&cfg.Steer,
	)
}

func (cfg *Config) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteSample(dst, path, config.CtxMap{config.ID: "steer-1"},
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.API,
		&cfg.Steer,
	)
}

var _ config.Config = (*SteerConfig)(nil)

// SteerConfig holds the data plane and control task settings.
type SteerConfig struct {
	// NumProcessors is the number of workers. It defaults to GOMAXPROCS.
	NumProcessors int `toml:"num_processors,omitempty"`
	// BatchSize is the maximum number of packets processed as one batch.
	BatchSize int `toml:"batch_size,omitempty"`
	// PolicerPeriodShift sets the policer period to 2^shift nanoseconds.
	PolicerPeriodShift uint `toml:"policer_period_shift,omitempty"`
	// TunnelLengthMode selects the tunnel payload length computation
	// (legacy|exact).
	TunnelLengthMode string `toml:"tunnel_length_mode,omitempty"`
	// ControlTimeout is the period of the control task.
	ControlTimeout util.DurWrap `toml:"control_timeout,omitempty"`
	// PeriodicEnabled enables the periodic processing of the control task at
	// startup.
	PeriodicEnabled bool `toml:"periodic_enabled,omitempty"`
	// TraceBufferSize is the number of trace records kept per worker.
	TraceBufferSize int `toml:"trace_buffer_size,omitempty"`
	// ReceiveBufferSize and SendBufferSize are the socket buffer sizes of
	// the interfaces. Zero keeps the system default.
	ReceiveBufferSize int `toml:"receive_buffer_size,omitempty"`
	SendBufferSize    int `toml:"send_buffer_size,omitempty"`
}

func (cfg *SteerConfig) InitDefaults() {
	if cfg.NumProcessors == 0 {
		cfg.NumProcessors = runtime.GOMAXPROCS(0)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PolicerPeriodShift == 0 {
		cfg.PolicerPeriodShift = policer.DefaultPeriodShift
	}
	if cfg.TunnelLengthMode == "" {
		cfg.TunnelLengthMode = tunnel.LengthLegacy.String()
	}
	if cfg.ControlTimeout.Duration == 0 {
		cfg.ControlTimeout.Duration = control.DefaultTimeout
	}
	if cfg.TraceBufferSize == 0 {
		cfg.TraceBufferSize = DefaultTraceBufferSize
	}
}

func (cfg *SteerConfig) Validate() error {
	switch {
	case cfg.NumProcessors < 1:
		return serrors.New("num_processors must be positive", "value", cfg.NumProcessors)
	case cfg.BatchSize < 1:
		return serrors.New("batch_size must be positive", "value", cfg.BatchSize)
	case cfg.PolicerPeriodShift < policer.MinPeriodShift ||
		cfg.PolicerPeriodShift > policer.MaxPeriodShift:
		return serrors.New("policer_period_shift out of range",
			"value", cfg.PolicerPeriodShift,
			"min", policer.MinPeriodShift, "max", policer.MaxPeriodShift)
	case cfg.ControlTimeout.Duration <= 0:
		return serrors.New("control_timeout must be positive", "value", cfg.ControlTimeout)
	case cfg.TraceBufferSize < 1:
		return serrors.New("trace_buffer_size must be positive", "value", cfg.TraceBufferSize)
	case cfg.ReceiveBufferSize < 0 || cfg.SendBufferSize < 0:
		return serrors.New("socket buffer sizes must not be negative",
			"receive", cfg.ReceiveBufferSize, "send", cfg.SendBufferSize)
	}
	if _, err := tunnel.ParseLengthMode(cfg.TunnelLengthMode); err != nil {
		return err
	}
	return nil
}

func (cfg *SteerConfig) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteString(dst, fmt.Sprintf(steerSample,
		DefaultBatchSize, policer.DefaultPeriodShift, control.DefaultTimeout,
		DefaultTraceBufferSize))
}

func (cfg *SteerConfig) ConfigName() string {
	return "steer"
}

// Timeout returns the period of the control task.
func (cfg *SteerConfig) Timeout() time.Duration {
	return cfg.ControlTimeout.Duration
}
