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

//go:build !windows

// Package launcher runs a daemon: it parses the command line, loads and
// validates the configuration, sets up logging and then passes control to
// the daemon's main function with a context that is canceled on SIGINT or
// SIGTERM.
package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vnfsteer/vnfsteer/pkg/log"
	"github.com/vnfsteer/vnfsteer/pkg/private/prom"
	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
	"github.com/vnfsteer/vnfsteer/private/app/command"
	libconfig "github.com/vnfsteer/vnfsteer/private/config"
	"github.com/vnfsteer/vnfsteer/private/env"
)

// Configuration keys read by viper from the same file as the daemon config.
const (
	cfgConfigFile              = "config"
	cfgGeneralID               = "general.id"
	cfgLogConsoleLevel         = "log.console.level"
	cfgLogConsoleFormat        = "log.console.format"
	cfgLogConsoleDisableCaller = "log.console.disable_caller"
)

// Application models a daemon.
type Application struct {
	// TOMLConfig is the daemon configuration. It is loaded from the file
	// given with --config, defaulted and validated before Main runs.
	TOMLConfig libconfig.Config

	// SampleFiles are the samplers of extra files read by the daemon, by
	// file name without extension. Each gets a sample-<name> command.
	SampleFiles map[string]libconfig.Sampler

	// ShortName is the name used in the help output and in the start and
	// stop log lines. If empty, the executable name is used.
	ShortName string

	// Main is the logic of the daemon. If nil, only the harness runs.
	Main func(ctx context.Context) error

	// ErrorWriter specifies where error output is printed. If nil, os.Stderr
	// is used.
	ErrorWriter io.Writer

	cmd    *cobra.Command
	config *viper.Viper
}

// Run sets up the harness and then passes control to Main. It exits the
// process with a non-zero code if anything fails.
func (a *Application) Run() {
	if err := a.run(os.Args[1:]); err != nil {
		fmt.Fprintf(a.getErrorWriter(), "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func (a *Application) run(args []string) error {
	executable := filepath.Base(os.Args[0])
	shortName := a.getShortName(executable)

	a.cmd = newCommandTemplate(executable, shortName, a.TOMLConfig)
	for name, sampler := range a.SampleFiles {
		a.cmd.AddCommand(command.NewSampleFile(a.cmd, name, sampler))
	}
	a.cmd.SetArgs(args)
	a.cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.executeCommand(cmd.Context(), shortName)
	}
	a.config = viper.New()
	a.config.SetDefault(cfgLogConsoleLevel, log.DefaultConsoleLevel)
	a.config.SetDefault(cfgLogConsoleFormat, log.DefaultConsoleFormat)
	a.config.SetDefault(cfgGeneralID, executable)
	if err := a.config.BindPFlag(cfgConfigFile, a.cmd.Flags().Lookup(cfgConfigFile)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.cmd.ExecuteContext(ctx)
}

func newCommandTemplate(executable, shortName string, config libconfig.Sampler) *cobra.Command {
	cmd := &cobra.Command{
		Use:           executable + " --config <config.toml>",
		Short:         shortName,
		Example:       fmt.Sprintf("  %[1]s --config %[1]s.toml", executable),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}
	cmd.AddCommand(
		command.NewSample(cmd, executable, config),
		command.NewVersion(cmd),
	)
	cmd.Flags().String(cfgConfigFile, "", "Configuration file (required)")
	_ = cmd.MarkFlagRequired(cfgConfigFile)
	return cmd
}

func (a *Application) executeCommand(ctx context.Context, shortName string) error {
	os.Setenv("TZ", "UTC")

	// Load launcher configurations from the same config file as the custom
	// application configuration.
	file := a.config.GetString(cfgConfigFile)
	a.config.SetConfigType("toml")
	a.config.SetConfigFile(file)
	if err := a.config.ReadInConfig(); err != nil {
		return serrors.Wrap("loading generic server config from file", err, "file", file)
	}
	if err := libconfig.LoadFile(file, a.TOMLConfig); err != nil {
		return serrors.Wrap("loading config from file", err, "file", file)
	}
	a.TOMLConfig.InitDefaults()

	logEntriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lib_log_emitted_entries_total",
			Help: "Total number of log entries emitted.",
		},
		[]string{"level"},
	)
	logEntriesTotal = prom.SafeRegister(prometheus.DefaultRegisterer,
		logEntriesTotal).(*prometheus.CounterVec)
	opt := log.WithEntriesCounter(log.EntriesCounter{
		Debug: logEntriesTotal.With(prometheus.Labels{"level": "debug"}),
		Info:  logEntriesTotal.With(prometheus.Labels{"level": "info"}),
		Error: logEntriesTotal.With(prometheus.Labels{"level": "error"}),
	})
	if err := log.Setup(a.getLogging(), opt); err != nil {
		return serrors.Wrap("initialize logging", err)
	}
	defer log.Flush()
	elemID := a.config.GetString(cfgGeneralID)
	if err := env.LogAppStarted(shortName, elemID); err != nil {
		return err
	}
	defer env.LogAppStopped(shortName, elemID)
	defer log.HandlePanic()

	prom.ExportElementID(prometheus.DefaultRegisterer, elemID)
	if err := a.TOMLConfig.Validate(); err != nil {
		return serrors.Wrap("validate config", err)
	}
	if a.Main == nil {
		return nil
	}

	// If Main does not return in time after the shutdown signal, the
	// process is torn down.
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer log.HandlePanic()
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		timer := time.NewTimer(env.ShutdownGraceInterval)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			log.Error("Main goroutine did not shut down in time. Forcing shutdown.",
				"waited", env.ShutdownGraceInterval)
			log.Flush()
			os.Exit(1)
		}
	}()
	return a.Main(ctx)
}

func (a *Application) getLogging() log.Config {
	return log.Config{
		Console: log.ConsoleConfig{
			Level:         a.config.GetString(cfgLogConsoleLevel),
			Format:        a.config.GetString(cfgLogConsoleFormat),
			DisableCaller: a.config.GetBool(cfgLogConsoleDisableCaller),
		},
	}
}

func (a *Application) getShortName(executable string) string {
	if a.ShortName != "" {
		return a.ShortName
	}
	return executable
}

func (a *Application) getErrorWriter() io.Writer {
	if a.ErrorWriter != nil {
		return a.ErrorWriter
	}
	return os.Stderr
}
