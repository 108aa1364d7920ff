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

package control

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vnfsteer/vnfsteer/pkg/log"
	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
	"github.com/vnfsteer/vnfsteer/private/config"
)

// DefaultTimeout is the period of the task while periodic processing is
// enabled.
const DefaultTimeout = 10 * time.Second

// EventType is the type of an event sent to the task.
type EventType int

const (
	// Event1 and Event2 carry an opaque value that is logged.
	Event1 EventType = iota + 1
	Event2
	// PeriodicEnableDisable enables or disables periodic processing.
	PeriodicEnableDisable
	// Reload reloads the pipeline configuration, even if it did not change.
	Reload
)

var eventNames = map[EventType]string{
	Event1:                "event1",
	Event2:                "event2",
	PeriodicEnableDisable: "periodic",
	Reload:                "reload",
}

func (t EventType) String() string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return "unknown"
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EventType) UnmarshalText(b []byte) error {
	for typ, name := range eventNames {
		if strings.EqualFold(name, string(b)) {
			*t = typ
			return nil
		}
	}
	return serrors.New("unknown event type", "type", string(b))
}

// Event is sent to the task.
type Event struct {
	Type EventType `json:"type"`
	// Data is the payload of Event1 and Event2.
	Data uint64 `json:"data,omitempty"`
	// Enable is the payload of PeriodicEnableDisable.
	Enable bool `json:"enable,omitempty"`
}

var (
	errAlreadyStarted = errors.New("task already started")
	errUnknownEvent   = errors.New("unknown event")
)

// Metrics are the metrics of the task.
type Metrics struct {
	Events  *prometheus.CounterVec
	Reloads *prometheus.CounterVec
}

// NewMetrics creates the metrics of the task and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steer_control_events_total",
				Help: "Total number of events handled by the control task.",
			},
			[]string{"type"},
		),
		Reloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steer_control_reloads_total",
				Help: "Total number of pipeline reloads, by result.",
			},
			[]string{"result"},
		),
	}
}

// Status is a snapshot of the state of the task.
type Status struct {
	Periodic   bool          `json:"periodic"`
	Timeout    time.Duration `json:"timeout"`
	Digest     string        `json:"digest"`
	Reloads    uint64        `json:"reloads"`
	LastReload time.Time     `json:"last_reload"`
	LastError  string        `json:"last_error,omitempty"`
}

// Task is the background control task. It waits for events, and for its
// timeout while periodic processing is enabled. On timeout it reloads the
// pipeline configuration if the file changed. It is the only writer of the
// pipeline of the data plane once the data plane runs.
type Task struct {
	// Dataplane is the data plane the pipeline is published to.
	Dataplane Dataplane
	// File is the path of the pipeline configuration.
	File string
	// PeriodShift is the policer period shift of the data plane.
	PeriodShift uint
	// Timeout is the period of the task; DefaultTimeout if zero.
	Timeout time.Duration
	// Metrics are optional.
	Metrics *Metrics

	events   chan Event
	started  atomic.Bool
	periodic atomic.Bool

	mtx    sync.Mutex
	digest []byte
	status Status
}

// NewTask creates the task of the data plane dp, with periodic processing
// enabled or not.
func NewTask(dp Dataplane, file string, shift uint, timeout time.Duration, periodic bool) *Task {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := &Task{
		Dataplane:   dp,
		File:        file,
		PeriodShift: shift,
		Timeout:     timeout,
		events:      make(chan Event, 16),
	}
	t.periodic.Store(periodic)
	return t
}

// Configure loads the pipeline configuration and configures the data plane
// with it. It must be called before the data plane runs.
func (t *Task) Configure() error {
	cfg, digest, err := t.load()
	if err != nil {
		return err
	}
	if err := ConfigDataplane(t.Dataplane, cfg, t.PeriodShift); err != nil {
		return err
	}
	t.reloaded(digest, nil)
	return nil
}

// Send queues an event for the task. It blocks until the event is queued or
// ctx is done.
func (t *Task) Send(ctx context.Context, ev Event) error {
	if _, ok := eventNames[ev.Type]; !ok {
		return serrors.JoinNoStack(errUnknownEvent, nil, "type", int(ev.Type))
	}
	select {
	case t.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current state of the task.
func (t *Task) Status() Status {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	s := t.status
	s.Periodic = t.periodic.Load()
	s.Timeout = t.Timeout
	s.Digest = hex.EncodeToString(t.digest)
	return s
}

// Run handles events until ctx is canceled. A task can only be run once.
func (t *Task) Run(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}
	logger := log.FromCtx(ctx)
	logger.Info("Control task started", "periodic", t.periodic.Load(), "timeout", t.Timeout)
	timer := time.NewTimer(t.Timeout)
	defer timer.Stop()
	for {
		var timeout <-chan time.Time
		if t.periodic.Load() {
			timer.Reset(t.Timeout)
			timeout = timer.C
		} else {
			timer.Stop()
		}
		select {
		case <-ctx.Done():
			logger.Info("Control task stopped")
			return nil
		case ev := <-t.events:
			t.handle(logger, ev)
		case <-timeout:
			t.tick(logger)
		}
	}
}

func (t *Task) handle(logger log.Logger, ev Event) {
	if t.Metrics != nil {
		t.Metrics.Events.WithLabelValues(ev.Type.String()).Inc()
	}
	switch ev.Type {
	case Event1, Event2:
		logger.Info("Received event", "type", ev.Type, "data", ev.Data)
	case PeriodicEnableDisable:
		t.periodic.Store(ev.Enable)
		logger.Info("Periodic processing", "enabled", ev.Enable)
	case Reload:
		t.reload(logger, true)
	}
}

func (t *Task) tick(logger log.Logger) {
	if t.Metrics != nil {
		t.Metrics.Events.WithLabelValues("timeout").Inc()
	}
	if pl := t.Dataplane.Pipeline(); pl != nil {
		logger.Debug("Periodic processing", "routes", len(pl.Routes.Entries()),
			"tunnels", pl.Tunnels.Len(), "policers", len(pl.Policers))
	}
	t.reload(logger, false)
}

// reload publishes the pipeline in the configuration file if it changed or if
// force is set. Errors are logged and the current pipeline stays published.
func (t *Task) reload(logger log.Logger, force bool) {
	cfg, digest, err := t.load()
	if err == nil {
		t.mtx.Lock()
		unchanged := bytes.Equal(digest, t.digest)
		t.mtx.Unlock()
		if unchanged && !force {
			return
		}
		err = t.publish(cfg)
	}
	if err != nil {
		logger.Error("Reloading pipeline failed", "file", t.File, "err", err)
		t.reloaded(nil, err)
		return
	}
	logger.Info("Pipeline reloaded", "file", t.File, "digest", hex.EncodeToString(digest))
	t.reloaded(digest, nil)
}

func (t *Task) publish(cfg *Config) error {
	if err := checkInterfaces(t.Dataplane, cfg); err != nil {
		return err
	}
	pl, err := Compile(cfg, t.PeriodShift, t.Dataplane.Pipeline())
	if err != nil {
		return err
	}
	return t.Dataplane.Publish(pl)
}

func (t *Task) load() (*Config, []byte, error) {
	cfg, err := LoadConfig(t.File)
	if err != nil {
		return nil, nil, err
	}
	digest, err := config.Digest(cfg)
	if err != nil {
		return nil, nil, serrors.Wrap("computing digest", err)
	}
	return cfg, digest, nil
}

func (t *Task) reloaded(digest []byte, err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if err != nil {
		t.status.LastError = err.Error()
		if t.Metrics != nil {
			t.Metrics.Reloads.WithLabelValues("error").Inc()
		}
		return
	}
	t.digest = digest
	t.status.Reloads++
	t.status.LastReload = time.Now()
	t.status.LastError = ""
	if t.Metrics != nil {
		t.Metrics.Reloads.WithLabelValues("ok").Inc()
	}
}
