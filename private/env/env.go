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

// Package env contains common configuration blocks and initialization code
// shared by the daemons of this repository.
//
// SIGHUP is captured as soon as the package is loaded; daemons that support
// reloading read from SighupC.
package env

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vnfsteer/vnfsteer/pkg/log"
	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
	"github.com/vnfsteer/vnfsteer/private/config"
)

const (
	// PipelineFile is the file name of the static pipeline configuration.
	PipelineFile = "pipeline.toml"

	// ShutdownGraceInterval is the time applications wait after issuing a
	// clean shutdown signal, before forcefully tearing down the application.
	ShutdownGraceInterval = 5 * time.Second

	// HandlerTimeout is the time after which the http handler gives up on a request and
	// returns an error instead.
	HandlerTimeout = time.Minute
)

var sighupC = make(chan os.Signal, 1)

func init() {
	signal.Notify(sighupC, syscall.SIGHUP)
}

// LogAppStarted logs the start of the application together with its build
// information.
func LogAppStarted(name, elemID string) error {
	info, ok := debug.ReadBuildInfo()
	version := "(devel)"
	if ok {
		version = info.Main.Version
	}
	log.Info(fmt.Sprintf("=====================> Service started %s %s", name, elemID),
		"version", version, "go", runtime.Version(), "pid", os.Getpid())
	return nil
}

// LogAppStopped logs the clean shutdown of the application.
func LogAppStopped(name, elemID string) {
	log.Info(fmt.Sprintf("=====================> Service stopped %s %s", name, elemID))
}

// SighupC returns the channel on which SIGHUP notifications are delivered.
func SighupC() <-chan os.Signal {
	return sighupC
}

var _ config.Config = (*General)(nil)

type General struct {
	// ID is the element ID. It is attached to the log output and the
	// management API.
	ID string `toml:"id,omitempty"`
	// ConfigDir for loading extra files (currently, only pipeline.toml).
	ConfigDir string `toml:"config_dir,omitempty"`
}

func (cfg *General) InitDefaults() {}

func (cfg *General) Validate() error {
	if cfg.ID == "" {
		return serrors.New("no element id specified")
	}
	if cfg.ConfigDir == "" {
		return nil
	}
	info, err := os.Stat(cfg.ConfigDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return serrors.New("config_dir is not a directory", "dir", cfg.ConfigDir)
	}
	return nil
}

func (cfg *General) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteString(dst, fmt.Sprintf(generalSample, ctx[config.ID]))
}

func (cfg *General) ConfigName() string {
	return "general"
}

// Pipeline returns the path to the pipeline configuration file.
func (cfg *General) Pipeline() string {
	return filepath.Join(cfg.ConfigDir, PipelineFile)
}

var _ config.Config = (*Metrics)(nil)

type Metrics struct {
	config.NoDefaulter
	config.NoValidator
	// Prometheus contains the address to export prometheus metrics on. If
	// not set, metrics are not exported.
	Prometheus string `toml:"prometheus,omitempty"`
}

func (cfg *Metrics) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteString(dst, metricsSample)
}

func (cfg *Metrics) ConfigName() string {
	return "metrics"
}

// ServePrometheus serves the default prometheus registry until ctx is done.
// It returns immediately if no address is configured.
func (cfg *Metrics) ServePrometheus(ctx context.Context) error {
	if cfg.Prometheus == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{Timeout: HandlerTimeout},
		),
	))
	log.Info("Exporting prometheus metrics", "addr", cfg.Prometheus)

	server := &http.Server{Addr: cfg.Prometheus, Handler: mux}
	go func() {
		defer log.HandlePanic()
		<-ctx.Done()
		server.Close()
	}()
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return serrors.Wrap("serving prometheus metrics", err)
	}
	return nil
}
