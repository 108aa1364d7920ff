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

// Package processmetrics exports the scheduling times of the process: the
// time its threads spent on a CPU and the time they spent runnable, waiting
// for one. The difference to the wall clock times the number of cores is
// the CPU time the data plane could have used but did not get. A packet rate
// divided by the running time gives the per-core efficiency of the workers.
//
// Only Linux exposes these times. Elsewhere Init does nothing.

//go:build linux

package processmetrics

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"

	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
)

var (
	runningTime = prometheus.NewDesc(
		"process_running_seconds_total",
		"CPU time the threads of the process spent running.",
		nil, nil,
	)
	runnableTime = prometheus.NewDesc(
		"process_runnable_seconds_total",
		"CPU time the threads of the process spent runnable but not running.",
		nil, nil,
	)
	maxProcs = prometheus.NewDesc(
		"go_sched_maxprocs_threads",
		"The current runtime.GOMAXPROCS setting.",
		nil, nil,
	)
	threadRescans = prometheus.NewDesc(
		"process_metrics_thread_rescans_total",
		"Number of times the collector rebuilt its list of threads.",
		nil, nil,
	)
)

type schedCollector struct {
	pid      int
	taskDir  *os.File
	threads  procfs.Procs
	nThreads uint64
	rescans  int64
	running  uint64
	runnable uint64
}

// update sums the schedstat times of all threads. The thread list is only
// rebuilt when the number of entries in /proc/<pid>/task changes; the Go
// runtime never terminates its threads.
func (c *schedCollector) update() error {
	var st syscall.Stat_t
	if err := syscall.Fstat(int(c.taskDir.Fd()), &st); err != nil {
		return err
	}
	//nolint:unconvert // Nlink is uint32 on some architectures.
	n := uint64(st.Nlink) - 2
	if n != c.nThreads || c.threads == nil {
		threads, err := procfs.AllThreads(c.pid)
		if err != nil {
			return err
		}
		c.threads = threads
		c.nThreads = n
		c.rescans++
	}

	var running, runnable uint64
	var err error
	for _, t := range c.threads {
		s, statErr := t.Schedstat()
		if statErr != nil {
			// A vanished thread does not invalidate the others.
			err = statErr
			continue
		}
		running += s.RunningNanoseconds
		runnable += s.WaitingNanoseconds
	}
	c.running = running
	c.runnable = runnable
	return err
}

func (c *schedCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *schedCollector) Collect(ch chan<- prometheus.Metric) {
	_ = c.update()
	ch <- prometheus.MustNewConstMetric(runningTime, prometheus.CounterValue,
		float64(c.running)/1e9)
	ch <- prometheus.MustNewConstMetric(runnableTime, prometheus.CounterValue,
		float64(c.runnable)/1e9)
	ch <- prometheus.MustNewConstMetric(maxProcs, prometheus.GaugeValue,
		float64(runtime.GOMAXPROCS(-1)))
	ch <- prometheus.MustNewConstMetric(threadRescans, prometheus.CounterValue,
		float64(c.rescans))
}

// Init registers the scheduling time collector with reg. Call it once per
// registry. An error leaves the process without these metrics and is safe to
// ignore.
func Init(reg prometheus.Registerer) error {
	pid := os.Getpid()
	taskPath := filepath.Join(procfs.DefaultMountPoint, strconv.Itoa(pid), "task")
	taskDir, err := os.Open(taskPath)
	if err != nil {
		return serrors.Wrap("opening task directory", err, "pid", pid)
	}
	c := &schedCollector{pid: pid, taskDir: taskDir}
	if err := c.update(); err != nil {
		taskDir.Close()
		return serrors.Wrap("reading scheduling times", err)
	}
	if err := reg.Register(c); err != nil {
		taskDir.Close()
		return serrors.Wrap("registering collector", err)
	}
	return nil
}
