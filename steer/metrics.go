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
	"math/bits"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics defines the per-interface input and output metrics of the data
// plane. The steering counters are kept per worker and exported by the
// collector returned by DataPlane.Collector.
type Metrics struct {
	InputBytesTotal     *prometheus.CounterVec
	OutputBytesTotal    *prometheus.CounterVec
	InputPacketsTotal   *prometheus.CounterVec
	OutputPacketsTotal  *prometheus.CounterVec
	DroppedPacketsTotal *prometheus.CounterVec
	InterfaceUp         *prometheus.GaugeVec
	PipelineGeneration  prometheus.Gauge
}

// NewMetrics initializes the metrics of the data plane and registers them
// with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InputBytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steer_input_bytes_total",
				Help: "Total number of bytes received",
			},
			[]string{"interface", "sizeclass"},
		),
		OutputBytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steer_output_bytes_total",
				Help: "Total number of bytes sent.",
			},
			[]string{"interface", "sizeclass"},
		),
		InputPacketsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steer_input_pkts_total",
				Help: "Total number of packets received",
			},
			[]string{"interface", "sizeclass"},
		),
		OutputPacketsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steer_output_pkts_total",
				Help: "Total number of packets sent.",
			},
			[]string{"interface", "sizeclass"},
		),
		DroppedPacketsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steer_io_dropped_pkts_total",
				Help: "Total number of packets dropped by the input and output stages.",
			},
			[]string{"interface", "sizeclass", "reason"},
		),
		InterfaceUp: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "steer_interface_up",
				Help: "Either zero or one depending on whether the interface is up.",
			},
			[]string{"interface"},
		),
		PipelineGeneration: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "steer_pipeline_generation",
				Help: "Number of pipeline configurations published since start.",
			},
		),
	}
}

// sizeClass is the number of bits needed to represent some given size. This is quicker than
// computing Log2 and serves the same purpose.
type sizeClass uint8

// maxSizeClass is the smallest NOT-supported sizeClass. Packets larger than bufSize are put in the
// last class.
const maxSizeClass sizeClass = 15

// This will fail to compile if bufSize cannot fit in (maxSizeClass - 1) bits.
const _ = uint(1<<(maxSizeClass-1) - 1 - bufSize)

// minSizeClass is the smallest sizeClass that we care about.
// All smaller classes are conflated with this one.
const minSizeClass sizeClass = 6

func classOfSize(pktSize int) sizeClass {
	cs := sizeClass(bits.Len32(uint32(pktSize)))
	if cs > maxSizeClass-1 {
		return maxSizeClass - 1
	}
	if cs <= minSizeClass {
		return minSizeClass
	}
	return cs
}

func (sc sizeClass) String() string {
	low := strconv.Itoa((1 << sc) >> 1)
	high := strconv.Itoa((1 << sc) - 1)
	if sc == minSizeClass {
		low = "0"
	}
	if sc == maxSizeClass {
		high = "inf"
	}
	return strings.Join([]string{low, high}, "_")
}

// InterfaceMetrics is the set of metrics of one interface, indexed by size
// class.
type InterfaceMetrics map[sizeClass]trafficMetrics

// trafficMetrics groups the metrics instances that share the same interface
// and size class label values.
type trafficMetrics struct {
	InputBytesTotal             prometheus.Counter
	InputPacketsTotal           prometheus.Counter
	OutputBytesTotal            prometheus.Counter
	OutputPacketsTotal          prometheus.Counter
	DroppedPacketsBusyProcessor prometheus.Counter
	DroppedPacketsBusyForwarder prometheus.Counter
	DroppedPacketsNoLink        prometheus.Counter
	DroppedPacketsLinkDown      prometheus.Counter
	InterfaceUp                 prometheus.Gauge
}

// NewInterfaceMetrics creates the metrics instances of interface ifID.
func NewInterfaceMetrics(metrics *Metrics, ifID uint32) InterfaceMetrics {
	ifLabels := prometheus.Labels{"interface": strconv.FormatUint(uint64(ifID), 10)}
	m := InterfaceMetrics{}
	for sc := minSizeClass; sc < maxSizeClass; sc++ {
		scLabels := prometheus.Labels{"sizeclass": sc.String()}
		m[sc] = newTrafficMetrics(metrics, ifLabels, scLabels)
	}
	return m
}

func newTrafficMetrics(
	metrics *Metrics,
	ifLabels prometheus.Labels,
	scLabels prometheus.Labels) trafficMetrics {

	c := trafficMetrics{
		InputBytesTotal:    metrics.InputBytesTotal.MustCurryWith(ifLabels).With(scLabels),
		InputPacketsTotal:  metrics.InputPacketsTotal.MustCurryWith(ifLabels).With(scLabels),
		OutputBytesTotal:   metrics.OutputBytesTotal.MustCurryWith(ifLabels).With(scLabels),
		OutputPacketsTotal: metrics.OutputPacketsTotal.MustCurryWith(ifLabels).With(scLabels),
		InterfaceUp:        metrics.InterfaceUp.With(ifLabels),
	}
	dropped := metrics.DroppedPacketsTotal.MustCurryWith(ifLabels).MustCurryWith(scLabels)
	c.DroppedPacketsBusyProcessor = dropped.With(prometheus.Labels{"reason": "busy_processor"})
	c.DroppedPacketsBusyForwarder = dropped.With(prometheus.Labels{"reason": "busy_forwarder"})
	c.DroppedPacketsNoLink = dropped.With(prometheus.Labels{"reason": "no_link"})
	c.DroppedPacketsLinkDown = dropped.With(prometheus.Labels{"reason": "link_down"})

	c.InputBytesTotal.Add(0)
	c.InputPacketsTotal.Add(0)
	c.OutputBytesTotal.Add(0)
	c.OutputPacketsTotal.Add(0)
	c.DroppedPacketsBusyProcessor.Add(0)
	c.DroppedPacketsBusyForwarder.Add(0)
	c.DroppedPacketsNoLink.Add(0)
	c.DroppedPacketsLinkDown.Add(0)
	c.InterfaceUp.Set(0)
	return c
}

// Input counts a packet of the given size received on the interface.
func (m InterfaceMetrics) Input(size int) {
	tm := m[classOfSize(size)]
	tm.InputPacketsTotal.Inc()
	tm.InputBytesTotal.Add(float64(size))
}

// Output counts a packet of the given size sent on the interface.
func (m InterfaceMetrics) Output(size int) {
	tm := m[classOfSize(size)]
	tm.OutputPacketsTotal.Inc()
	tm.OutputBytesTotal.Add(float64(size))
}

// BusyProcessor counts a packet dropped because the worker queue was full.
func (m InterfaceMetrics) BusyProcessor(size int) {
	m[classOfSize(size)].DroppedPacketsBusyProcessor.Inc()
}

// BusyForwarder counts a packet dropped because the egress queue was full.
func (m InterfaceMetrics) BusyForwarder(size int) {
	m[classOfSize(size)].DroppedPacketsBusyForwarder.Inc()
}

// NoLink counts a packet dropped because its egress interface has no link.
func (m InterfaceMetrics) NoLink(size int) {
	m[classOfSize(size)].DroppedPacketsNoLink.Inc()
}

// LinkDown counts a packet dropped because its egress link is not up.
func (m InterfaceMetrics) LinkDown(size int) {
	m[classOfSize(size)].DroppedPacketsLinkDown.Inc()
}

// SetUp records whether the link of the interface is up.
func (m InterfaceMetrics) SetUp(up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m[minSizeClass].InterfaceUp.Set(v)
}
