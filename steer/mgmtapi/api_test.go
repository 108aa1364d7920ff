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

package mgmtapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnfsteer/vnfsteer/steer"
	"github.com/vnfsteer/vnfsteer/steer/classify"
	"github.com/vnfsteer/vnfsteer/steer/control"
	"github.com/vnfsteer/vnfsteer/steer/mgmtapi"
	"github.com/vnfsteer/vnfsteer/steer/policer"
	"github.com/vnfsteer/vnfsteer/steer/tunnel"
)

type fakeDataplane struct {
	pipeline *steer.Pipeline
	counters steer.Counters
	traces   []steer.TraceRecord
	armed    int
	cleared  bool
}

func (d *fakeDataplane) Counters() steer.Counters { return d.counters }
func (d *fakeDataplane) Pipeline() *steer.Pipeline { return d.pipeline }
func (d *fakeDataplane) TracePackets(n int) { d.armed = n }
func (d *fakeDataplane) Traces() []steer.TraceRecord { return d.traces }
func (d *fakeDataplane) ClearTraces() { d.cleared = true }

type fakeControl struct {
	events []control.Event
	err    error
}

func (c *fakeControl) Send(_ context.Context, ev control.Event) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeControl) Status() control.Status {
	return control.Status{Periodic: true, Reloads: 3}
}

func testPipeline(t *testing.T) *steer.Pipeline {
	session, err := policer.NewSession("gold", policer.Config{Rate: 1000, Burst: 500},
		policer.DefaultPeriodShift)
	require.NoError(t, err)
	table, err := classify.NewTable("subscribers", 0, []byte{0xff}, 4)
	require.NoError(t, err)
	_, err = table.AddEntry([]byte{0x2a}, session, 7)
	require.NoError(t, err)
	set := classify.NewSet()
	idx, err := set.AddTable(table)
	require.NoError(t, err)
	set.Assign(1, idx)

	key, err := tunnel.MakeKey(netip.MustParseAddr("10.0.0.1"), 42)
	require.NoError(t, err)
	rec := tunnel.NewRecord(key, 2)
	rec.Add(2, 200)
	tunnels, err := tunnel.NewTable(rec)
	require.NoError(t, err)

	return &steer.Pipeline{
		Routes:     steer.NewRouteMap(map[uint32]steer.Route{1: {Primary: 3, Secondary: 9}}),
		Classifier: set,
		Tunnels:    tunnels,
		Policers:   []*policer.Session{session},
	}
}

func newHandler(dp *fakeDataplane, ctrl *fakeControl) http.Handler {
	r := chi.NewRouter()
	s := &mgmtapi.Server{Dataplane: dp, Control: ctrl}
	s.Routes(r)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rr
}

func TestGet(t *testing.T) {
	dp := &fakeDataplane{
		pipeline: testPipeline(t),
		counters: steer.Counters{Handled: 5, Routine: [3]uint64{1, 2, 2}, PolicerDrop: 1},
		traces: []steer.TraceRecord{{
			Stage:   steer.StageSteer,
			Ingress: 1,
			Routine: steer.RoutinePoliced,
			Next:    steer.NextPolicedOutput,
			Egress:  3,
		}},
	}
	h := newHandler(dp, &fakeControl{})
	testCases := map[string]string{
		"/counters": `{"handled":5,"routine":[1,2,2],"policer_drop":1,"config_gap":0,
			"tunnel_handled":0,"no_tunnel":0,"malformed":0}`,
		"/routes": `[{"ingress":1,"primary":3,"secondary":9}]`,
		"/tunnels": `[{"src":"10.0.0.1","teid":42,"interface":2,"packets":2,
			"bytes":200}]`,
		"/tables": `[{"name":"subscribers","interfaces":[1],
			"entries":[{"key":"2a","policer":"gold","opaque":7,"hits":0}]}]`,
		"/policers": `[{"name":"gold","rate":1000,"burst":500,"conform_packets":0,
			"conform_bytes":0,"exceed_packets":0,"exceed_bytes":0}]`,
		"/traces": `[{"worker":0,"stage":"steer","ingress":1,"routine":"policed",
			"next":"policed-output","egress":3}]`,
	}
	for target, expected := range testCases {
		t.Run(target, func(t *testing.T) {
			rr := serve(h, http.MethodGet, target, "")
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.JSONEq(t, expected, rr.Body.String())
		})
	}
}

func TestGetWithoutPipeline(t *testing.T) {
	h := newHandler(&fakeDataplane{}, &fakeControl{})
	for _, target := range []string{"/routes", "/tunnels", "/tables", "/policers"} {
		rr := serve(h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, target)
	}
	rr := serve(h, http.MethodGet, "/traces", "")
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestTrace(t *testing.T) {
	dp := &fakeDataplane{}
	h := newHandler(dp, &fakeControl{})

	rr := serve(h, http.MethodPost, "/trace?count=10", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 10, dp.armed)

	for _, target := range []string{"/trace", "/trace?count=-1", "/trace?count=x"} {
		rr := serve(h, http.MethodPost, target, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}

	rr = serve(h, http.MethodDelete, "/traces", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, dp.cleared)
}

func TestControl(t *testing.T) {
	ctrl := &fakeControl{}
	h := newHandler(&fakeDataplane{}, ctrl)

	rr := serve(h, http.MethodGet, "/control", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	var status control.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.True(t, status.Periodic)
	assert.Equal(t, uint64(3), status.Reloads)

	rr = serve(h, http.MethodPost, "/periodic?enable=false", "")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	rr = serve(h, http.MethodPost, "/periodic?enable=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(h, http.MethodPost, "/events", `{"type":"event2","data":9}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	rr = serve(h, http.MethodPost, "/events", `{"type":"reboot"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Equal(t, []control.Event{
		{Type: control.PeriodicEnableDisable, Enable: false},
		{Type: control.Event2, Data: 9},
	}, ctrl.events)

	ctrl.err = errors.New("stopped")
	rr = serve(h, http.MethodPost, "/events", `{"type":"reload"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
