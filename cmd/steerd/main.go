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

package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/vnfsteer/vnfsteer/pkg/log"
	"github.com/vnfsteer/vnfsteer/pkg/private/processmetrics"
	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
	"github.com/vnfsteer/vnfsteer/private/app/launcher"
	libconfig "github.com/vnfsteer/vnfsteer/private/config"
	"github.com/vnfsteer/vnfsteer/private/env"
	"github.com/vnfsteer/vnfsteer/steer"
	"github.com/vnfsteer/vnfsteer/steer/config"
	"github.com/vnfsteer/vnfsteer/steer/control"
	api "github.com/vnfsteer/vnfsteer/steer/mgmtapi"
	"github.com/vnfsteer/vnfsteer/steer/policer"
	"github.com/vnfsteer/vnfsteer/steer/tunnel"
	"github.com/vnfsteer/vnfsteer/steer/underlayproviders/udpip"
)

var globalCfg config.Config

func main() {
	application := launcher.Application{
		TOMLConfig: &globalCfg,
		ShortName:  "VNF Steering Daemon",
		Main:       realMain,
		SampleFiles: map[string]libconfig.Sampler{
			"pipeline": control.PipelineSample{},
		},
	}
	application.Run()
}

func realMain(ctx context.Context) error {
	cfg := &globalCfg.Steer
	mode, err := tunnel.ParseLengthMode(cfg.TunnelLengthMode)
	if err != nil {
		return err
	}
	dp := steer.NewDataPlane(
		steer.RunConfig{
			NumProcessors:   cfg.NumProcessors,
			BatchSize:       cfg.BatchSize,
			TraceBufferSize: cfg.TraceBufferSize,
		},
		udpip.New(cfg.BatchSize, cfg.ReceiveBufferSize, cfg.SendBufferSize),
		policer.NewClock(cfg.PolicerPeriodShift),
		steer.NewMetrics(prometheus.DefaultRegisterer),
	)
	if err := prometheus.Register(dp.Collector()); err != nil {
		return serrors.Wrap("registering data plane collector", err)
	}
	if err := dp.SetTunnelLengthMode(mode); err != nil {
		return err
	}
	if err := processmetrics.Init(prometheus.DefaultRegisterer); err != nil {
		log.Info("Scheduling time metrics not available", "err", err)
	}

	task := control.NewTask(dp, globalCfg.General.Pipeline(), cfg.PolicerPeriodShift,
		cfg.Timeout(), cfg.PeriodicEnabled)
	task.Metrics = control.NewMetrics(prometheus.DefaultRegisterer)
	if err := task.Configure(); err != nil {
		return serrors.Wrap("configuring dataplane", err)
	}

	g, errCtx := errgroup.WithContext(ctx)

	// Initialize and start the management API.
	if globalCfg.API.Addr != "" {
		r := chi.NewRouter()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
		}))
		server := api.Server{
			Dataplane: dp,
			Control:   task,
		}
		r.Route("/api/v1", server.Routes)
		log.Info("Exposing API", "addr", globalCfg.API.Addr)
		mgmtServer := &http.Server{
			Addr:    globalCfg.API.Addr,
			Handler: r,
		}
		g.Go(func() error {
			defer log.HandlePanic()
			<-errCtx.Done()
			return mgmtServer.Close()
		})
		g.Go(func() error {
			defer log.HandlePanic()
			err := mgmtServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return serrors.Wrap("serving management API", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer log.HandlePanic()
		return globalCfg.Metrics.ServePrometheus(errCtx)
	})
	g.Go(func() error {
		defer log.HandlePanic()
		return task.Run(errCtx)
	})
	g.Go(func() error {
		defer log.HandlePanic()
		for {
			select {
			case <-errCtx.Done():
				return nil
			case <-env.SighupC():
				log.Info("Received SIGHUP, reloading pipeline")
				if err := task.Send(errCtx, control.Event{Type: control.Reload}); err != nil {
					log.Info("Reload not queued", "err", err)
				}
			}
		}
	})
	g.Go(func() error {
		defer log.HandlePanic()
		err := dp.Run(errCtx)
		dp.Shutdown()
		if err != nil {
			return serrors.Wrap("running dataplane", err)
		}
		return nil
	})

	return g.Wait()
}
