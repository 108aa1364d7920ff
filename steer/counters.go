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

package steer

import (
	"net/netip"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters are the steering counters. Each worker keeps its own; Counters
// of the data plane is their sum.
type Counters struct {
	// Handled counts the packets that reached the steering stage.
	Handled uint64 `json:"handled"`
	// Routine counts the packets per routine, including the policed
	// packets that were dropped.
	Routine     [numRoutines]uint64 `json:"routine"`
	PolicerDrop uint64              `json:"policer_drop"`
	ConfigGap   uint64              `json:"config_gap"`
	// TunnelHandled counts the packets that went through tunnel attribution.
	TunnelHandled uint64 `json:"tunnel_handled"`
	NoTunnel      uint64 `json:"no_tunnel"`
	Malformed     uint64 `json:"malformed"`
}

func (c *Counters) add(o *Counters) {
	c.Handled += o.Handled
	for i := range c.Routine {
		c.Routine[i] += o.Routine[i]
	}
	c.PolicerDrop += o.PolicerDrop
	c.ConfigGap += o.ConfigGap
	c.TunnelHandled += o.TunnelHandled
	c.NoTunnel += o.NoTunnel
	c.Malformed += o.Malformed
}

// workerCounters are written by one worker only, once per batch.
type workerCounters struct {
	handled       atomic.Uint64
	routine       [numRoutines]atomic.Uint64
	policerDrop   atomic.Uint64
	configGap     atomic.Uint64
	tunnelHandled atomic.Uint64
	noTunnel      atomic.Uint64
	malformed     atomic.Uint64
}

func (w *workerCounters) commit(c *Counters) {
	w.handled.Add(c.Handled)
	for i := range c.Routine {
		w.routine[i].Add(c.Routine[i])
	}
	w.policerDrop.Add(c.PolicerDrop)
	w.configGap.Add(c.ConfigGap)
	w.tunnelHandled.Add(c.TunnelHandled)
	w.noTunnel.Add(c.NoTunnel)
	w.malformed.Add(c.Malformed)
}

func (w *workerCounters) load() Counters {
	c := Counters{
		Handled:       w.handled.Load(),
		PolicerDrop:   w.policerDrop.Load(),
		ConfigGap:     w.configGap.Load(),
		TunnelHandled: w.tunnelHandled.Load(),
		NoTunnel:      w.noTunnel.Load(),
		Malformed:     w.malformed.Load(),
	}
	for i := range c.Routine {
		c.Routine[i] = w.routine[i].Load()
	}
	return c
}

var (
	handledDesc = prometheus.NewDesc(
		"steer_handled_pkts_total",
		"Total number of packets handled by the steering stage.",
		nil, nil,
	)
	routineDesc = prometheus.NewDesc(
		"steer_routine_pkts_total",
		"Total number of packets classified into each routine.",
		[]string{"routine"}, nil,
	)
	droppedDesc = prometheus.NewDesc(
		"steer_dropped_pkts_total",
		"Total number of packets dropped by the steering pipeline.",
		[]string{"reason"}, nil,
	)
	tunnelHandledDesc = prometheus.NewDesc(
		"steer_tunnel_handled_pkts_total",
		"Total number of packets handled by the tunnel attribution stage.",
		nil, nil,
	)
	tunnelPacketsDesc = prometheus.NewDesc(
		"steer_tunnel_rx_pkts_total",
		"Total number of packets attributed to a tunnel.",
		[]string{"interface", "src", "teid"}, nil,
	)
	tunnelBytesDesc = prometheus.NewDesc(
		"steer_tunnel_rx_bytes_total",
		"Total number of payload bytes attributed to a tunnel.",
		[]string{"interface", "src", "teid"}, nil,
	)
	policerPacketsDesc = prometheus.NewDesc(
		"steer_policer_pkts_total",
		"Total number of packets policed, by result.",
		[]string{"policer", "result"}, nil,
	)
	policerBytesDesc = prometheus.NewDesc(
		"steer_policer_bytes_total",
		"Total number of bytes policed, by result.",
		[]string{"policer", "result"}, nil,
	)
)

// collector exports the worker counters and the counters of the current
// pipeline.
type collector struct {
	d *DataPlane
}

func (c collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- handledDesc
	ch <- routineDesc
	ch <- droppedDesc
	ch <- tunnelHandledDesc
	ch <- tunnelPacketsDesc
	ch <- tunnelBytesDesc
	ch <- policerPacketsDesc
	ch <- policerBytesDesc
}

func (c collector) Collect(ch chan<- prometheus.Metric) {
	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	total := c.d.Counters()
	counter(handledDesc, total.Handled)
	for r := RoutineDefault; r < numRoutines; r++ {
		counter(routineDesc, total.Routine[r], r.String())
	}
	counter(droppedDesc, total.PolicerDrop, "policer")
	counter(droppedDesc, total.ConfigGap, "config_gap")
	counter(droppedDesc, total.NoTunnel, "no_tunnel")
	counter(droppedDesc, total.Malformed, "malformed")
	counter(tunnelHandledDesc, total.TunnelHandled)

	pl := c.d.Pipeline()
	if pl == nil {
		return
	}
	for _, rec := range pl.Tunnels.Records() {
		pkts, bytes := rec.Counters()
		labels := []string{
			strconv.FormatUint(uint64(rec.IfID), 10),
			netip.AddrFrom4(rec.Key.Src).String(),
			strconv.FormatUint(uint64(rec.Key.TEID), 10),
		}
		counter(tunnelPacketsDesc, pkts, labels...)
		counter(tunnelBytesDesc, bytes, labels...)
	}
	for _, s := range pl.Policers {
		st := s.Stats()
		counter(policerPacketsDesc, st.ConformPackets, s.Name(), "conform")
		counter(policerPacketsDesc, st.ExceedPackets, s.Name(), "exceed")
		counter(policerBytesDesc, st.ConformBytes, s.Name(), "conform")
		counter(policerBytesDesc, st.ExceedBytes, s.Name(), "exceed")
	}
}
