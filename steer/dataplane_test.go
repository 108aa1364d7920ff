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

package steer_test

import (
	"context"
	"net/netip"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vnfsteer/vnfsteer/pkg/private/xtest"
	"github.com/vnfsteer/vnfsteer/steer"
	"github.com/vnfsteer/vnfsteer/steer/classify"
	"github.com/vnfsteer/vnfsteer/steer/mock_steer"
	"github.com/vnfsteer/vnfsteer/steer/policer"
	"github.com/vnfsteer/vnfsteer/steer/tunnel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	shift = policer.DefaultPeriodShift

	tagPrimary   = 0x01
	tagSecondary = 0x02
	tagNone      = 0x03

	ifPolicedRouted = 1
	ifUnrouted      = 5
	ifDangling      = 6
	ifUnclassified  = 7
	ifTunnels       = 8
)

// frame returns a packet of the given size whose first two bytes are tag.
func frame(tag byte, size int) []byte {
	b := make([]byte, size)
	b[0], b[1] = tag, tag
	return b
}

type fixture struct {
	dp      *steer.DataPlane
	session *policer.Session
	tunnel  *tunnel.Record
}

// newFixture publishes a pipeline with:
//   - interface 1 routed to (10, 20), classified by a primary table matching
//     0x0101, cascading to a secondary table matching 0x0202;
//   - interface 5 without a route;
//   - interface 6 routed to (10, 20) but assigned to a table that does not
//     exist;
//   - interface 7 routed to (3, 9) without a table;
//   - interface 8 routed to (30, 31), attributing tunnel packets.
func newFixture(t *testing.T, polCfg policer.Config) *fixture {
	t.Helper()
	session, err := policer.NewSession("p1", polCfg, shift)
	require.NoError(t, err)

	primary, err := classify.NewTable("primary", 0, []byte{0xff, 0xff}, 16)
	require.NoError(t, err)
	_, err = primary.AddEntry([]byte{tagPrimary, tagPrimary}, session, 0)
	require.NoError(t, err)
	secondary, err := classify.NewTable("secondary", 0, []byte{0xff, 0xff}, 16)
	require.NoError(t, err)
	_, err = secondary.AddEntry([]byte{tagSecondary, tagSecondary}, nil, 0)
	require.NoError(t, err)
	require.NoError(t, primary.SetNext(secondary))

	set := classify.NewSet()
	idx, err := set.AddTable(primary)
	require.NoError(t, err)
	_, err = set.AddTable(secondary)
	require.NoError(t, err)
	set.Assign(ifPolicedRouted, idx)
	set.Assign(ifDangling, 42)

	key, err := tunnel.MakeKey(netip.MustParseAddr("10.0.0.1"), 42)
	require.NoError(t, err)
	rec := tunnel.NewRecord(key, ifTunnels)
	tunnels, err := tunnel.NewTable(rec)
	require.NoError(t, err)

	dp := steer.NewDataPlane(
		steer.RunConfig{NumProcessors: 1, BatchSize: 64},
		nil,
		policer.NewClock(shift),
		steer.NewMetrics(prometheus.NewRegistry()),
	)
	require.NoError(t, dp.Publish(&steer.Pipeline{
		Routes: steer.NewRouteMap(map[uint32]steer.Route{
			ifPolicedRouted: {Primary: 10, Secondary: 20},
			ifDangling:      {Primary: 10, Secondary: 20},
			ifUnclassified:  {Primary: 3, Secondary: 9},
			ifTunnels:       {Primary: 30, Secondary: 31},
		}),
		Classifier:  set,
		Tunnels:     tunnels,
		Attribution: map[uint32]struct{}{ifTunnels: {}},
		Policers:    []*policer.Session{session},
	}))
	return &fixture{dp: dp, session: session, tunnel: rec}
}

func gtpFrame(t *testing.T, src string, teid uint32, payload int) []byte {
	return xtest.GTPFrame(t, netip.MustParseAddr(src), netip.MustParseAddr("10.0.0.2"),
		xtest.GTP{TEID: teid, Payload: make([]byte, payload)})
}

func TestProcessBatch(t *testing.T) {
	type result struct {
		routine steer.Routine
		next    steer.Next
		egress  uint32
		drop    string
	}
	testCases := map[string]struct {
		ingress  uint32
		frames   [][]byte
		policer  policer.Config
		expected []result
		counters steer.Counters
	}{
		"route miss": {
			ingress: ifUnrouted,
			frames:  [][]byte{frame(tagPrimary, 100), frame(tagNone, 100)},
			policer: policer.Config{Rate: 1000, Burst: 1000},
			expected: []result{
				{next: steer.NextDrop, drop: "config_gap"},
				{next: steer.NextDrop, drop: "config_gap"},
			},
			counters: steer.Counters{Handled: 2, ConfigGap: 2},
		},
		"dangling table assignment": {
			ingress:  ifDangling,
			frames:   [][]byte{frame(tagNone, 100)},
			policer:  policer.Config{Rate: 1000, Burst: 1000},
			expected: []result{{next: steer.NextDrop, drop: "config_gap"}},
			counters: steer.Counters{Handled: 1, ConfigGap: 1},
		},
		"primary hit until bucket exhausted": {
			ingress: ifPolicedRouted,
			frames: [][]byte{
				frame(tagPrimary, 400),
				frame(tagPrimary, 400),
				frame(tagPrimary, 400),
			},
			policer: policer.Config{Rate: 1000, Burst: 1000},
			expected: []result{
				{routine: steer.RoutinePoliced, next: steer.NextPolicedOutput, egress: 10},
				{routine: steer.RoutinePoliced, next: steer.NextPolicedOutput, egress: 10},
				{routine: steer.RoutinePoliced, next: steer.NextDrop, drop: "policer"},
			},
			counters: steer.Counters{
				Handled:     3,
				Routine:     [3]uint64{0, 3, 0},
				PolicerDrop: 1,
			},
		},
		"secondary hit": {
			ingress: ifPolicedRouted,
			frames:  [][]byte{frame(tagSecondary, 400)},
			policer: policer.Config{Rate: 1000, Burst: 1000},
			expected: []result{
				{routine: steer.RoutineSecondary, next: steer.NextOutput, egress: 20},
			},
			counters: steer.Counters{Handled: 1, Routine: [3]uint64{0, 0, 1}},
		},
		"no hit": {
			ingress: ifPolicedRouted,
			frames:  [][]byte{frame(tagNone, 400)},
			policer: policer.Config{Rate: 1000, Burst: 1000},
			expected: []result{
				{routine: steer.RoutineDefault, next: steer.NextOutput, egress: 10},
			},
			counters: steer.Counters{Handled: 1, Routine: [3]uint64{1, 0, 0}},
		},
		"no table on interface": {
			ingress: ifUnclassified,
			frames: [][]byte{
				frame(tagPrimary, 400),
				frame(tagSecondary, 400),
				frame(tagNone, 400),
			},
			policer: policer.Config{Rate: 1000, Burst: 1000},
			expected: []result{
				{routine: steer.RoutineDefault, next: steer.NextOutput, egress: 3},
				{routine: steer.RoutineDefault, next: steer.NextOutput, egress: 3},
				{routine: steer.RoutineDefault, next: steer.NextOutput, egress: 3},
			},
			counters: steer.Counters{Handled: 3, Routine: [3]uint64{3, 0, 0}},
		},
		"zero rate": {
			ingress: ifPolicedRouted,
			frames:  [][]byte{frame(tagPrimary, 64), frame(tagPrimary, 64)},
			policer: policer.Config{Rate: 0, Burst: 1 << 30},
			expected: []result{
				{routine: steer.RoutinePoliced, next: steer.NextDrop, drop: "policer"},
				{routine: steer.RoutinePoliced, next: steer.NextDrop, drop: "policer"},
			},
			counters: steer.Counters{
				Handled:     2,
				Routine:     [3]uint64{0, 2, 0},
				PolicerDrop: 2,
			},
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, tc.policer)
			var batch []*steer.Packet
			for _, raw := range tc.frames {
				batch = append(batch, steer.NewPacket(raw, tc.ingress))
			}
			f.dp.ProcessBatch(batch, 0)

			var got []result
			for _, p := range batch {
				got = append(got, result{
					routine: p.Routine(),
					next:    p.Next(),
					egress:  p.Egress(),
					drop:    p.DropReason(),
				})
			}
			assert.Equal(t, tc.expected, got)
			assert.Equal(t, tc.counters, f.dp.Counters())
		})
	}
}

func TestSecondaryLeavesPolicerUntouched(t *testing.T) {
	f := newFixture(t, policer.Config{Rate: 1000, Burst: 1000})
	batch := []*steer.Packet{
		steer.NewPacket(frame(tagSecondary, 400), ifPolicedRouted),
		steer.NewPacket(frame(tagNone, 400), ifPolicedRouted),
		steer.NewPacket(frame(tagPrimary, 400), ifUnclassified),
	}
	f.dp.ProcessBatch(batch, 0)
	assert.Equal(t, policer.Stats{}, f.session.Stats())
}

func TestClassificationIsIdempotent(t *testing.T) {
	f := newFixture(t, policer.Config{Rate: 1000, Burst: 1000})
	for _, tag := range []byte{tagSecondary, tagNone} {
		first := steer.NewPacket(frame(tag, 200), ifPolicedRouted)
		second := steer.NewPacket(frame(tag, 200), ifPolicedRouted)
		f.dp.ProcessBatch([]*steer.Packet{first}, 0)
		f.dp.ProcessBatch([]*steer.Packet{second}, int64(time.Second))
		assert.Equal(t, first.Routine(), second.Routine())
		assert.Equal(t, first.Egress(), second.Egress())
		assert.Equal(t, first.Next(), second.Next())
	}
}

func TestPolicerRefills(t *testing.T) {
	f := newFixture(t, policer.Config{Rate: 1000, Burst: 1000})
	p := func() *steer.Packet { return steer.NewPacket(frame(tagPrimary, 1000), ifPolicedRouted) }

	batch := []*steer.Packet{p(), p()}
	f.dp.ProcessBatch(batch, 0)
	assert.Equal(t, steer.NextPolicedOutput, batch[0].Next())
	assert.Equal(t, steer.NextDrop, batch[1].Next())

	// One second refills the whole bucket.
	later := []*steer.Packet{p()}
	f.dp.ProcessBatch(later, int64(time.Second)+int64(1)<<shift)
	assert.Equal(t, steer.NextPolicedOutput, later[0].Next())
}

func TestMixedBatchKeepsOrder(t *testing.T) {
	f := newFixture(t, policer.Config{Rate: 1000, Burst: 1000})
	batch := []*steer.Packet{
		steer.NewPacket(frame(tagNone, 100), ifUnclassified),
		steer.NewPacket(frame(tagPrimary, 100), ifPolicedRouted),
		steer.NewPacket(frame(tagNone, 100), ifUnrouted),
		steer.NewPacket(frame(tagSecondary, 100), ifPolicedRouted),
		steer.NewPacket(frame(tagNone, 100), ifUnclassified),
		steer.NewPacket(frame(tagNone, 100), ifPolicedRouted),
	}
	f.dp.ProcessBatch(batch, 0)

	var egress []uint32
	for _, p := range batch {
		egress = append(egress, p.Egress())
	}
	assert.Equal(t, []uint32{3, 10, 0, 20, 3, 10}, egress)
	assert.Equal(t, steer.Counters{
		Handled:   6,
		Routine:   [3]uint64{3, 1, 1},
		ConfigGap: 1,
	}, f.dp.Counters())
}

func TestTunnelAttribution(t *testing.T) {
	t.Run("known tunnel", func(t *testing.T) {
		f := newFixture(t, policer.Config{Rate: 1000, Burst: 1000})
		f.dp.ProcessBatch([]*steer.Packet{
			steer.NewPacket(gtpFrame(t, "10.0.0.1", 42, 100), ifTunnels),
		}, 0)
		pkts, bytes := f.tunnel.Counters()
		assert.Equal(t, uint64(1), pkts)
		assert.Equal(t, uint64(100), bytes)
	})
	t.Run("n packets", func(t *testing.T) {
		f := newFixture(t, policer.Config{Rate: 1000, Burst: 1000})
		var batch []*steer.Packet
		for i := 0; i < 10; i++ {
			batch = append(batch, steer.NewPacket(gtpFrame(t, "10.0.0.1", 42, 60), ifTunnels))
		}
		f.dp.ProcessBatch(batch, 0)
		pkts, bytes := f.tunnel.Counters()
		assert.Equal(t, uint64(10), pkts)
		assert.Equal(t, uint64(600), bytes)
		for _, p := range batch {
			assert.Equal(t, steer.NextOutput, p.Next())
			assert.Equal(t, uint32(30), p.Egress())
		}
		assert.Equal(t, steer.Counters{
			Handled:       10,
			Routine:       [3]uint64{10, 0, 0},
			TunnelHandled: 10,
		}, f.dp.Counters())
	})
	t.Run("unknown tunnel", func(t *testing.T) {
		f := newFixture(t, policer.Config{Rate: 1000, Burst: 1000})
		batch := []*steer.Packet{
			steer.NewPacket(gtpFrame(t, "10.0.0.1", 43, 100), ifTunnels),
			steer.NewPacket(gtpFrame(t, "10.0.0.9", 42, 100), ifTunnels),
			steer.NewPacket(frame(tagNone, 20), ifTunnels),
		}
		f.dp.ProcessBatch(batch, 0)
		for _, p := range batch {
			assert.Equal(t, steer.NextDrop, p.Next())
		}
		assert.Equal(t, "no_tunnel", batch[0].DropReason())
		assert.Equal(t, "malformed", batch[2].DropReason())
		pkts, _ := f.tunnel.Counters()
		assert.Zero(t, pkts)
		assert.Equal(t, steer.Counters{
			TunnelHandled: 3,
			NoTunnel:      2,
			Malformed:     1,
		}, f.dp.Counters())
	})
}

func TestTraces(t *testing.T) {
	f := newFixture(t, policer.Config{Rate: 1000, Burst: 1000})
	f.dp.TracePackets(3)
	f.dp.ProcessBatch([]*steer.Packet{
		steer.NewPacket(frame(tagSecondary, 100), ifPolicedRouted),
		steer.NewPacket(gtpFrame(t, "10.0.0.1", 42, 100), ifTunnels),
		steer.NewPacket(frame(tagNone, 100), ifUnrouted),
		steer.NewPacket(frame(tagNone, 100), ifUnclassified),
	}, 0)
	expected := []steer.TraceRecord{
		{Stage: steer.StageTunnel, Ingress: ifTunnels, Next: steer.NextOutput, Tunnel: ifTunnels},
		{
			Stage:   steer.StageSteer,
			Ingress: ifPolicedRouted,
			Routine: steer.RoutineSecondary,
			Next:    steer.NextOutput,
			Egress:  20,
		},
		{Stage: steer.StageSteer, Ingress: ifTunnels, Next: steer.NextOutput, Egress: 30},
		{Stage: steer.StageSteer, Ingress: ifUnrouted, Next: steer.NextDrop, Drop: "config_gap"},
	}
	assert.Equal(t, expected, f.dp.Traces())

	f.dp.ClearTraces()
	assert.Empty(t, f.dp.Traces())
}

func TestCollector(t *testing.T) {
	f := newFixture(t, policer.Config{Rate: 1000, Burst: 1000})
	f.dp.ProcessBatch([]*steer.Packet{
		steer.NewPacket(frame(tagPrimary, 400), ifPolicedRouted),
		steer.NewPacket(frame(tagSecondary, 400), ifPolicedRouted),
		steer.NewPacket(frame(tagNone, 400), ifUnrouted),
	}, 0)

	expected := `
# HELP steer_handled_pkts_total Total number of packets handled by the steering stage.
# TYPE steer_handled_pkts_total counter
steer_handled_pkts_total 3
# HELP steer_routine_pkts_total Total number of packets classified into each routine.
# TYPE steer_routine_pkts_total counter
steer_routine_pkts_total{routine="default"} 0
steer_routine_pkts_total{routine="policed"} 1
steer_routine_pkts_total{routine="secondary"} 1
# HELP steer_policer_pkts_total Total number of packets policed, by result.
# TYPE steer_policer_pkts_total counter
steer_policer_pkts_total{policer="p1",result="conform"} 1
steer_policer_pkts_total{policer="p1",result="exceed"} 0
`
	err := testutil.CollectAndCompare(f.dp.Collector(), strings.NewReader(expected),
		"steer_handled_pkts_total", "steer_routine_pkts_total", "steer_policer_pkts_total")
	assert.NoError(t, err)
	assert.Equal(t, 4, testutil.CollectAndCount(f.dp.Collector(), "steer_dropped_pkts_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(f.dp.Collector(), "steer_tunnel_rx_pkts_total",
		"steer_tunnel_rx_bytes_total"))
}

func TestPublish(t *testing.T) {
	f := newFixture(t, policer.Config{Rate: 1000, Burst: 1000})
	assert.Error(t, f.dp.Publish(nil))

	// Without a route, interface 7 becomes a configuration gap.
	require.NoError(t, f.dp.Publish(&steer.Pipeline{}))
	batch := []*steer.Packet{steer.NewPacket(frame(tagNone, 100), ifUnclassified)}
	f.dp.ProcessBatch(batch, 0)
	assert.Equal(t, "config_gap", batch[0].DropReason())
	assert.Equal(t, float64(2), testutil.ToFloat64(f.dp.Metrics.PipelineGeneration))
}

func TestForward(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, policer.Config{Rate: 1000, Burst: 1000})
	underlay := mock_steer.NewMockUnderlayProvider(ctrl)
	f.dp = steer.NewDataPlane(
		steer.RunConfig{NumProcessors: 1, BatchSize: 64},
		underlay,
		policer.NewClock(shift),
		steer.NewMetrics(prometheus.NewRegistry()),
	)
	require.NoError(t, f.dp.Publish(&steer.Pipeline{
		Routes: steer.NewRouteMap(map[uint32]steer.Route{
			ifUnclassified: {Primary: 3, Secondary: 9},
			4:              {Primary: 99, Secondary: 99},
		}),
	}))
	links := map[uint32]*mock_steer.MockLink{}
	for _, ifID := range []uint32{3, 4, ifUnclassified} {
		link := mock_steer.NewMockLink(ctrl)
		links[ifID] = link
		underlay.EXPECT().NewLink(ifID, gomock.Any(), gomock.Any(), 64, gomock.Any()).
			Return(link, nil)
		require.NoError(t, f.dp.AddInterface(ifID,
			xtest.MustParseAddrPort(t, "127.0.0.1:30000"),
			xtest.MustParseAddrPort(t, "127.0.0.1:30001")))
	}
	assert.Equal(t, []uint32{3, 4, ifUnclassified}, f.dp.Interfaces())

	batch := []*steer.Packet{
		steer.NewPacket(frame(tagNone, 100), ifUnclassified),
		steer.NewPacket(frame(tagNone, 200), 4),
		steer.NewPacket(frame(tagNone, 300), ifUnclassified),
		steer.NewPacket(frame(tagNone, 400), ifUnrouted),
	}
	var sent []*steer.Packet
	record := func(p *steer.Packet) bool {
		sent = append(sent, p)
		return true
	}
	links[3].EXPECT().IsUp().Return(true).Times(2)
	gomock.InOrder(
		links[3].EXPECT().Send(batch[0]).DoAndReturn(record),
		links[3].EXPECT().Send(batch[2]).DoAndReturn(record),
	)
	f.dp.ProcessBatch(batch, 0)
	f.dp.Forward(batch)
	assert.Equal(t, []*steer.Packet{batch[0], batch[2]}, sent)
}

func TestForwardLinkDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	underlay := mock_steer.NewMockUnderlayProvider(ctrl)
	metrics := steer.NewMetrics(prometheus.NewRegistry())
	dp := steer.NewDataPlane(
		steer.RunConfig{NumProcessors: 1, BatchSize: 8},
		underlay,
		policer.NewClock(shift),
		metrics,
	)
	require.NoError(t, dp.Publish(&steer.Pipeline{
		Routes: steer.NewRouteMap(map[uint32]steer.Route{
			ifUnclassified: {Primary: 3, Secondary: 9},
		}),
	}))
	out := mock_steer.NewMockLink(ctrl)
	underlay.EXPECT().NewLink(uint32(3), gomock.Any(), gomock.Any(), 8, gomock.Any()).
		Return(out, nil)
	underlay.EXPECT().NewLink(uint32(ifUnclassified), gomock.Any(), gomock.Any(), 8,
		gomock.Any()).Return(mock_steer.NewMockLink(ctrl), nil)
	for _, ifID := range []uint32{3, ifUnclassified} {
		require.NoError(t, dp.AddInterface(ifID,
			xtest.MustParseAddrPort(t, "127.0.0.1:30000"),
			xtest.MustParseAddrPort(t, "127.0.0.1:30001")))
	}

	// A link that is down is never handed packets.
	out.EXPECT().IsUp().Return(false).Times(2)
	batch := []*steer.Packet{
		steer.NewPacket(frame(tagNone, 100), ifUnclassified),
		steer.NewPacket(frame(tagNone, 100), ifUnclassified),
	}
	dp.ProcessBatch(batch, 0)
	dp.Forward(batch)

	ingress := strconv.Itoa(ifUnclassified)
	assert.Equal(t, float64(2), testutil.ToFloat64(
		metrics.DroppedPacketsTotal.WithLabelValues(ingress, "64_127", "link_down")))
	assert.Zero(t, testutil.ToFloat64(
		metrics.DroppedPacketsTotal.WithLabelValues(ingress, "64_127", "busy_forwarder")))
	assert.Zero(t, testutil.ToFloat64(metrics.InterfaceUp.WithLabelValues("3")))

	underlay.EXPECT().Stop()
	dp.Shutdown()
	assert.Zero(t, testutil.ToFloat64(metrics.InterfaceUp.WithLabelValues("3")))
}

func TestAddInterface(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	underlay := mock_steer.NewMockUnderlayProvider(ctrl)
	dp := steer.NewDataPlane(steer.RunConfig{}, underlay, policer.NewClock(shift),
		steer.NewMetrics(prometheus.NewRegistry()))
	local := xtest.MustParseAddrPort(t, "127.0.0.1:30000")
	remote := xtest.MustParseAddrPort(t, "127.0.0.1:30001")

	underlay.EXPECT().NewLink(uint32(1), local, remote, 1, gomock.Any()).
		Return(mock_steer.NewMockLink(ctrl), nil)
	require.NoError(t, dp.AddInterface(1, local, remote))
	assert.Error(t, dp.AddInterface(1, local, remote))
	assert.Error(t, dp.AddInterface(2, netip.AddrPort{}, remote))
}

func TestRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	underlay := mock_steer.NewMockUnderlayProvider(ctrl)
	dp := steer.NewDataPlane(
		steer.RunConfig{NumProcessors: 2, BatchSize: 8},
		underlay,
		policer.NewClock(shift),
		steer.NewMetrics(prometheus.NewRegistry()),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Without interfaces, there is nothing to do.
	assert.NoError(t, dp.Run(ctx))

	out := mock_steer.NewMockLink(ctrl)
	in := mock_steer.NewMockLink(ctrl)
	underlay.EXPECT().NewLink(uint32(3), gomock.Any(), gomock.Any(), 8, gomock.Any()).
		Return(out, nil)
	underlay.EXPECT().NewLink(uint32(ifUnclassified), gomock.Any(), gomock.Any(), 8,
		gomock.Any()).Return(in, nil)
	for _, ifID := range []uint32{3, ifUnclassified} {
		require.NoError(t, dp.AddInterface(ifID,
			xtest.MustParseAddrPort(t, "127.0.0.1:30000"),
			xtest.MustParseAddrPort(t, "127.0.0.1:30001")))
	}
	assert.ErrorContains(t, dp.Run(ctx), "no pipeline")
	require.NoError(t, dp.Publish(&steer.Pipeline{
		Routes: steer.NewRouteMap(map[uint32]steer.Route{
			ifUnclassified: {Primary: 3, Secondary: 9},
		}),
	}))

	const numPackets = 5
	done := make(chan struct{})
	var got []byte
	out.EXPECT().IsUp().Return(true).AnyTimes()
	out.EXPECT().Send(gomock.Any()).Times(numPackets).DoAndReturn(func(p *steer.Packet) bool {
		got = append(got, p.RawPacket[0])
		if len(got) == numPackets {
			close(done)
		}
		return true
	})
	underlay.EXPECT().NumConnections().Return(2)
	underlay.EXPECT().Start(gomock.Any(), gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, pool chan *steer.Packet, procQs []chan *steer.Packet) {
			for i := 0; i < numPackets; i++ {
				p := <-pool
				p.Reset()
				p.RawPacket = p.RawPacket[:copy(p.RawPacket, []byte{byte(i), 0, 0, 0})]
				p.Ingress = ifUnclassified
				procQs[ifUnclassified%len(procQs)] <- p
			}
		})

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		assert.NoError(t, dp.Run(ctx))
	}()
	xtest.AssertReadReturnsBefore(t, done, 5*time.Second)
	assert.Equal(t, []byte{0, 1, 2, 3, 4}, got)
	assert.Equal(t, uint64(numPackets), dp.Counters().Routine[steer.RoutineDefault])

	underlay.EXPECT().Stop()
	dp.Shutdown()
	cancel()
	xtest.AssertReadReturnsBefore(t, runDone, 5*time.Second)
}
