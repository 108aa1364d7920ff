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

// Package steer implements the traffic steering data plane. Packets received
// on the underlay are handed to workers in batches. A worker attributes tunnel
// packets to their tunnels, classifies every packet against the tables of its
// ingress interface, polices the packets that hit a primary table and hands
// them to the egress link selected by the interface route map.
package steer

import (
	"context"
	"errors"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/vnfsteer/vnfsteer/pkg/log"
	"github.com/vnfsteer/vnfsteer/steer/classify"
	"github.com/vnfsteer/vnfsteer/steer/policer"
	"github.com/vnfsteer/vnfsteer/steer/tunnel"
)

const (
	// Large enough for jumbo frames.
	bufSize = 9000

	// defaultTraceBufferSize is the number of trace records kept per worker
	// if RunConfig.TraceBufferSize is not set.
	defaultTraceBufferSize = 512
)

// Routine is the treatment a packet receives after classification.
type Routine uint8

const (
	// RoutineDefault forwards the packet on the primary egress. Packets that
	// match no table, and packets of interfaces without a table, take it.
	RoutineDefault Routine = iota
	// RoutinePoliced polices the packet and forwards it on the primary
	// egress if it conforms.
	RoutinePoliced
	// RoutineSecondary forwards the packet on the secondary egress.
	RoutineSecondary
	numRoutines
)

func (r Routine) String() string {
	switch r {
	case RoutineDefault:
		return "default"
	case RoutinePoliced:
		return "policed"
	case RoutineSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

func (r Routine) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Next is the stage a packet is handed to after steering.
type Next uint8

const (
	NextDrop Next = iota // Zero value, default.
	// NextOutput sends the packet on its egress link.
	NextOutput
	// NextPolicedOutput sends the packet on its egress link and accounts it
	// as policed traffic.
	NextPolicedOutput
)

func (n Next) String() string {
	switch n {
	case NextDrop:
		return "drop"
	case NextOutput:
		return "output"
	case NextPolicedOutput:
		return "policed-output"
	default:
		return "unknown"
	}
}

func (n Next) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

type dropReason uint8

const (
	dropNone dropReason = iota
	dropConfigGap
	dropPolicer
	dropNoTunnel
	dropMalformed
)

func (r dropReason) String() string {
	switch r {
	case dropNone:
		return ""
	case dropConfigGap:
		return "config_gap"
	case dropPolicer:
		return "policer"
	case dropNoTunnel:
		return "no_tunnel"
	case dropMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Packet aggregates a packet buffer and the metadata produced while
// processing it. Packets are pooled and recycled along with their buffers. A
// packet is owned by exactly one goroutine at a time: the receiver, one worker
// for the duration of a batch, or the sender.
type Packet struct {
	// The useful part of the raw packet at a point in time (i.e. a slice of
	// the full buffer).
	RawPacket []byte
	// The entire packet buffer.
	buffer *[bufSize]byte
	// The interface on which this packet arrived. This is set by the receiver.
	Ingress uint32
	// Traced requests a trace record for every stage the packet goes through.
	Traced bool

	// The interface on which this packet must leave. Set by the worker.
	egress  uint32
	routine Routine
	next    Next
	drop    dropReason
	// Batch-scoped lookup state filled by the prefetch pass.
	route  Route
	table  *classify.Table
	bucket classify.Bucket
	hash   uint64
}

func (p *Packet) init(buffer *[bufSize]byte) *Packet {
	p.buffer = buffer
	p.RawPacket = p.buffer[:]
	return p
}

// Reset makes the packet ready to receive a new underlay message.
func (p *Packet) Reset() {
	*p = Packet{
		buffer:    p.buffer,    // keep the buffer
		RawPacket: p.buffer[:], // restore the full packet capacity
	}
}

// Egress returns the interface the packet leaves on.
func (p *Packet) Egress() uint32 {
	return p.egress
}

// Routine returns the routine the packet was classified into.
func (p *Packet) Routine() Routine {
	return p.routine
}

// Next returns the stage the packet is handed to.
func (p *Packet) Next() Next {
	return p.next
}

// RunConfig holds the sizing parameters of the data plane.
type RunConfig struct {
	NumProcessors int
	BatchSize     int
	// TraceBufferSize is the number of trace records kept per worker.
	TraceBufferSize int
}

var (
	alreadySet     = errors.New("already set")
	emptyValue     = errors.New("empty value")
	modifyExisting = errors.New("modifying a running dataplane is not allowed")
	noPipeline     = errors.New("no pipeline published")
)

// DataPlane holds the links, the workers and the currently published
// pipeline. Create it with NewDataPlane.
type DataPlane struct {
	underlay         UnderlayProvider
	links            map[uint32]Link
	interfaceMetrics map[uint32]InterfaceMetrics
	mtx              sync.Mutex
	running          atomic.Bool

	// The pipeline is replaced as a whole by Publish; workers load it once
	// per batch.
	pipeline   atomic.Pointer[Pipeline]
	generation atomic.Uint64

	clock       *policer.Clock
	traceBudget atomic.Int64
	workers     []*worker

	Metrics   *Metrics
	RunConfig RunConfig

	packetPool chan *Packet
}

// NewDataPlane creates a data plane that receives and sends packets through
// underlay and measures time with clock.
func NewDataPlane(
	runConfig RunConfig,
	underlay UnderlayProvider,
	clock *policer.Clock,
	metrics *Metrics,
) *DataPlane {

	runConfig.NumProcessors = max(runConfig.NumProcessors, 1)
	runConfig.BatchSize = max(runConfig.BatchSize, 1)
	if runConfig.TraceBufferSize <= 0 {
		runConfig.TraceBufferSize = defaultTraceBufferSize
	}
	d := &DataPlane{
		underlay:         underlay,
		links:            make(map[uint32]Link),
		interfaceMetrics: make(map[uint32]InterfaceMetrics),
		clock:            clock,
		Metrics:          metrics,
		RunConfig:        runConfig,
	}
	for i := 0; i < runConfig.NumProcessors; i++ {
		d.workers = append(d.workers, newWorker(i, d))
	}
	return d
}

func (d *DataPlane) isRunning() bool {
	return d.running.Load()
}

// AddInterface creates the link of interface ifID. Interfaces can only be
// added before Run.
func (d *DataPlane) AddInterface(ifID uint32, local, remote netip.AddrPort) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.isRunning() {
		return modifyExisting
	}
	if !local.IsValid() || !remote.IsValid() {
		return emptyValue
	}
	if _, exists := d.links[ifID]; exists {
		return alreadySet
	}
	metrics := NewInterfaceMetrics(d.Metrics, ifID)
	link, err := d.underlay.NewLink(ifID, local, remote, d.RunConfig.BatchSize, metrics)
	if err != nil {
		return err
	}
	d.links[ifID] = link
	d.interfaceMetrics[ifID] = metrics
	return nil
}

// Interfaces returns the configured interfaces in ascending order.
func (d *DataPlane) Interfaces() []uint32 {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	ifIDs := make([]uint32, 0, len(d.links))
	for ifID := range d.links {
		ifIDs = append(ifIDs, ifID)
	}
	slices.Sort(ifIDs)
	return ifIDs
}

// Publish makes pl the pipeline used for all subsequent batches. Batches that
// are being processed complete with the pipeline they started with. pl must
// not be modified after it is published.
func (d *DataPlane) Publish(pl *Pipeline) error {
	if pl == nil {
		return emptyValue
	}
	d.pipeline.Store(pl)
	gen := d.generation.Add(1)
	d.Metrics.PipelineGeneration.Set(float64(gen))
	return nil
}

// Pipeline returns the currently published pipeline, or nil.
func (d *DataPlane) Pipeline() *Pipeline {
	return d.pipeline.Load()
}

// Counters returns the sum of the counters of all workers.
func (d *DataPlane) Counters() Counters {
	var total Counters
	for _, w := range d.workers {
		c := w.counters.load()
		total.add(&c)
	}
	return total
}

// Collector returns a prometheus collector for the steering counters, the
// tunnel counters and the policer counters.
func (d *DataPlane) Collector() prometheus.Collector {
	return collector{d: d}
}

// TracePackets flags the next n packets that reach a worker for tracing.
func (d *DataPlane) TracePackets(n int) {
	d.traceBudget.Store(int64(max(n, 0)))
}

// Traces returns the trace records of all workers, grouped by worker, oldest
// first.
func (d *DataPlane) Traces() []TraceRecord {
	var r []TraceRecord
	for _, w := range d.workers {
		r = append(r, w.tracer.Records()...)
	}
	return r
}

// ClearTraces discards all trace records.
func (d *DataPlane) ClearTraces() {
	for _, w := range d.workers {
		w.tracer.Clear()
	}
}

// Shutdown causes the data plane to stop accepting packets. Run returns once
// its context is canceled.
func (d *DataPlane) Shutdown() {
	d.mtx.Lock() // make sure we're not racing with initialization.
	defer d.mtx.Unlock()
	d.underlay.Stop()
	for _, m := range d.interfaceMetrics {
		m.SetUp(false)
	}
	d.running.Store(false)
}

// Run starts the underlay and the workers and blocks until ctx is canceled
// and all workers have returned.
func (d *DataPlane) Run(ctx context.Context) error {
	d.mtx.Lock()
	if len(d.links) == 0 {
		// Nothing to receive from.
		d.mtx.Unlock()
		return nil
	}
	if d.pipeline.Load() == nil {
		d.mtx.Unlock()
		return noPipeline
	}
	queueSize := max(
		d.underlay.NumConnections()*d.RunConfig.BatchSize/d.RunConfig.NumProcessors,
		d.RunConfig.BatchSize)
	d.initPacketPool(queueSize)
	procQs := d.initQueues(queueSize)
	d.running.Store(true)
	d.underlay.Start(ctx, d.packetPool, procQs)

	g, ctx := errgroup.WithContext(ctx)
	for i, w := range d.workers {
		g.Go(func() error {
			defer log.HandlePanic()
			d.runWorker(ctx, w, procQs[i])
			return nil
		})
	}
	d.mtx.Unlock()
	return g.Wait()
}

// initPacketPool allocates enough packets to fill every queue of the data
// plane at the same time.
func (d *DataPlane) initPacketPool(queueSize int) {
	poolSize := len(d.links)*d.RunConfig.BatchSize +
		d.RunConfig.NumProcessors*(queueSize+d.RunConfig.BatchSize) +
		len(d.links)*(2*d.RunConfig.BatchSize)

	log.Debug("Initialize packet pool of size", "poolSize", poolSize)
	d.packetPool = NewPacketPool(poolSize)
}

// NewPacketPool returns a channel filled with size packets, each with its own
// buffer.
func NewPacketPool(size int) chan *Packet {
	pool := make(chan *Packet, size)
	pktBuffers := make([][bufSize]byte, size)
	pktStructs := make([]Packet, size)
	for i := 0; i < size; i++ {
		pool <- pktStructs[i].init(&pktBuffers[i])
	}
	return pool
}

func (d *DataPlane) initQueues(queueSize int) []chan *Packet {
	procQs := make([]chan *Packet, d.RunConfig.NumProcessors)
	for i := range procQs {
		procQs[i] = make(chan *Packet, queueSize)
	}
	return procQs
}

func (d *DataPlane) returnPacketToPool(p *Packet) {
	d.packetPool <- p
}

// runWorker collects the packets available on q into a batch, processes the
// batch and forwards it, until ctx is canceled.
func (d *DataPlane) runWorker(ctx context.Context, w *worker, q <-chan *Packet) {
	log.Debug("Initialize worker with", "id", w.id)
	batch := make([]*Packet, 0, d.RunConfig.BatchSize)
	for {
		batch = batch[:0]
		select {
		case <-ctx.Done():
			return
		case p := <-q:
			batch = append(batch, p)
		}
	fill:
		for len(batch) < cap(batch) {
			select {
			case p := <-q:
				batch = append(batch, p)
			default:
				break fill
			}
		}
		w.processBatch(d.pipeline.Load(), batch, d.clock.Now())
		d.forward(batch)
	}
}

// forward hands the packets of a processed batch to their egress links, in
// batch order.
func (d *DataPlane) forward(batch []*Packet) {
	for _, p := range batch {
		if p.next == NextDrop {
			d.returnPacketToPool(p)
			continue
		}
		link, ok := d.links[p.egress]
		if !ok {
			log.Debug("Error determining forwarder. Egress is invalid", "egress", p.egress)
			if m, ok := d.interfaceMetrics[p.Ingress]; ok {
				m.NoLink(len(p.RawPacket))
			}
			d.returnPacketToPool(p)
			continue
		}
		if !link.IsUp() {
			if m, ok := d.interfaceMetrics[p.Ingress]; ok {
				m.LinkDown(len(p.RawPacket))
			}
			d.returnPacketToPool(p)
			continue
		}
		if !link.Send(p) {
			if m, ok := d.interfaceMetrics[p.Ingress]; ok {
				m.BusyForwarder(len(p.RawPacket))
			}
			d.returnPacketToPool(p)
		}
	}
}

// worker is the per-goroutine processing context. Only its counters and its
// tracer are read by other goroutines.
type worker struct {
	id       int
	d        *DataPlane
	counters workerCounters
	tracer   *Tracer
	tunnels  tunnel.Stage
}

func newWorker(id int, d *DataPlane) *worker {
	return &worker{
		id:     id,
		d:      d,
		tracer: NewTracer(d.RunConfig.TraceBufferSize),
	}
}

// SetTunnelLengthMode selects how tunnel payload lengths are computed. It
// must be called before Run.
func (d *DataPlane) SetTunnelLengthMode(mode tunnel.LengthMode) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.isRunning() {
		return modifyExisting
	}
	for _, w := range d.workers {
		w.tunnels.Mode = mode
	}
	return nil
}

// processBatch decides the fate of every packet of the batch with pipeline pl
// at time now. It leaves the decision in the packets and commits the batch
// counters.
func (w *worker) processBatch(pl *Pipeline, batch []*Packet, now int64) {
	var c Counters
	w.flagTraced(batch)
	w.attributeTunnels(pl, batch, &c)
	w.prefetch(pl, batch, &c)
	w.decide(pl, batch, now, w.d.clock.Period(now), &c)
	w.counters.commit(&c)
}

func (w *worker) flagTraced(batch []*Packet) {
	budget := &w.d.traceBudget
	for _, p := range batch {
		if budget.Load() <= 0 {
			return
		}
		if budget.Add(-1) >= 0 {
			p.Traced = true
		}
	}
}

// attributeTunnels runs the tunnel attribution stage on the packets of
// attribution interfaces. Packets of unknown tunnels are dropped.
func (w *worker) attributeTunnels(pl *Pipeline, batch []*Packet, c *Counters) {
	if len(pl.Attribution) == 0 {
		return
	}
	for _, p := range batch {
		if !pl.attributes(p.Ingress) {
			continue
		}
		c.TunnelHandled++
		rec, outcome := w.tunnels.Attribute(pl.Tunnels, p.RawPacket)
		switch outcome {
		case tunnel.NoTunnel:
			c.NoTunnel++
			p.drop = dropNoTunnel
		case tunnel.Malformed:
			c.Malformed++
			p.drop = dropMalformed
		}
		if p.Traced {
			r := TraceRecord{
				Worker:  w.id,
				Stage:   StageTunnel,
				Ingress: p.Ingress,
				Next:    NextOutput,
				Drop:    p.drop.String(),
			}
			if rec != nil {
				r.Tunnel = rec.IfID
			} else {
				r.Next = NextDrop
			}
			w.tracer.add(r)
		}
	}
}

// prefetch resolves the route and the primary table of every packet, hashes
// it and resolves its bucket. The resolution of the previous packet is reused
// while the ingress interface does not change.
func (w *worker) prefetch(pl *Pipeline, batch []*Packet, c *Counters) {
	var (
		cached  bool
		ingress uint32
		route   Route
		table   *classify.Table
		gap     bool
	)
	for _, p := range batch {
		if p.drop != dropNone {
			continue
		}
		c.Handled++
		if !cached || p.Ingress != ingress {
			cached, ingress = true, p.Ingress
			var routed, assigned bool
			route, routed = pl.Routes.Lookup(ingress)
			table, assigned = pl.Classifier.TableForInterface(ingress)
			gap = !routed || (assigned && table == nil)
			if gap {
				log.Debug("Configuration gap, dropping packets", "ingress", ingress,
					"route", routed, "table_assigned", assigned)
			}
		}
		if gap {
			c.ConfigGap++
			p.drop = dropConfigGap
			continue
		}
		p.route = route
		p.table = table
		if table != nil {
			p.hash = table.Hash(p.RawPacket)
			p.bucket = table.Prefetch(p.hash)
		}
	}
}

// decide runs the classification cascade and the policer on every packet that
// is still alive and resolves its routine, egress and next stage.
func (w *worker) decide(pl *Pipeline, batch []*Packet, now int64, period uint64, c *Counters) {
	for _, p := range batch {
		switch p.drop {
		case dropNone:
		case dropConfigGap:
			p.next = NextDrop
			w.trace(p)
			continue
		default:
			p.next = NextDrop
			continue
		}
		p.routine, p.next = RoutineDefault, NextOutput
		if t := p.table; t != nil {
			if e, ok := t.Lookup(p.bucket, p.RawPacket, now); ok {
				p.routine = RoutinePoliced
				p.next = w.police(e, p, period, c)
			} else if t.Next != nil {
				if _, ok := t.Next.FindEntry(t.Next.Hash(p.RawPacket), p.RawPacket, now); ok {
					p.routine = RoutineSecondary
				}
			}
		}
		c.Routine[p.routine]++
		if p.next != NextDrop {
			p.egress = p.route.egress(p.routine)
		}
		w.trace(p)
	}
}

// police applies the session of a primary table entry to p.
func (w *worker) police(e *classify.Entry, p *Packet, period uint64, c *Counters) Next {
	if e.Session == nil {
		c.ConfigGap++
		p.drop = dropConfigGap
		log.Debug("Configuration gap, primary entry without policer", "ingress", p.Ingress)
		return NextDrop
	}
	if e.Session.Police(period, len(p.RawPacket)) == policer.Drop {
		c.PolicerDrop++
		p.drop = dropPolicer
		return NextDrop
	}
	return NextPolicedOutput
}

func (w *worker) trace(p *Packet) {
	if !p.Traced {
		return
	}
	w.tracer.add(TraceRecord{
		Worker:  w.id,
		Stage:   StageSteer,
		Ingress: p.Ingress,
		Routine: p.routine,
		Next:    p.next,
		Egress:  p.egress,
		Drop:    p.drop.String(),
	})
}
