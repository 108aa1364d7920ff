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

// Package mgmtapi implements the http management API of the steering data
// plane.
package mgmtapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	api "github.com/vnfsteer/vnfsteer/private/mgmtapi"
	"github.com/vnfsteer/vnfsteer/steer"
	"github.com/vnfsteer/vnfsteer/steer/classify"
	"github.com/vnfsteer/vnfsteer/steer/control"
	"github.com/vnfsteer/vnfsteer/steer/policer"
)

// Dataplane is the part of the data plane the API reads and controls.
type Dataplane interface {
	Counters() steer.Counters
	Pipeline() *steer.Pipeline
	TracePackets(n int)
	Traces() []steer.TraceRecord
	ClearTraces()
}

// Controller is the part of the control task the API uses.
type Controller interface {
	Send(ctx context.Context, ev control.Event) error
	Status() control.Status
}

// Server implements the management API.
type Server struct {
	Dataplane Dataplane
	Control   Controller
}

// Tunnel is a tunnel and its counters.
type Tunnel struct {
	Src       string `json:"src"`
	TEID      uint32 `json:"teid"`
	Interface uint32 `json:"interface"`
	Packets   uint64 `json:"packets"`
	Bytes     uint64 `json:"bytes"`
}

// Table is a classification table and the interfaces it is assigned to.
type Table struct {
	Name       string   `json:"name"`
	Next       string   `json:"next,omitempty"`
	Interfaces []uint32 `json:"interfaces"`
	Entries    []Entry  `json:"entries"`
}

// Entry is a classification entry and its hit statistics.
type Entry struct {
	Key     string `json:"key"`
	Policer string `json:"policer,omitempty"`
	Opaque  uint32 `json:"opaque"`
	Hits    uint64 `json:"hits"`
}

// Policer is a policer and its counters.
type Policer struct {
	Name string `json:"name"`
	policer.Config
	policer.Stats
}

// Routes registers the handlers of the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/counters", s.GetCounters)
	r.Get("/routes", s.GetRoutes)
	r.Get("/tunnels", s.GetTunnels)
	r.Get("/tables", s.GetTables)
	r.Get("/policers", s.GetPolicers)
	r.Get("/traces", s.GetTraces)
	r.Delete("/traces", s.ClearTraces)
	r.Post("/trace", s.SetTrace)
	r.Get("/control", s.GetControl)
	r.Post("/periodic", s.SetPeriodic)
	r.Post("/events", s.PostEvent)
}

// GetCounters returns the steering counters summed over all workers.
func (s *Server) GetCounters(w http.ResponseWriter, r *http.Request) {
	api.ServeJSON(w, s.Dataplane.Counters())
}

// GetRoutes returns the interface route map.
func (s *Server) GetRoutes(w http.ResponseWriter, r *http.Request) {
	pl, ok := s.pipeline(w)
	if !ok {
		return
	}
	routes := pl.Routes.Entries()
	if routes == nil {
		routes = []steer.RouteEntry{}
	}
	api.ServeJSON(w, routes)
}

// GetTunnels returns the tunnels and their counters.
func (s *Server) GetTunnels(w http.ResponseWriter, r *http.Request) {
	pl, ok := s.pipeline(w)
	if !ok {
		return
	}
	tunnels := []Tunnel{}
	for _, rec := range pl.Tunnels.Records() {
		pkts, bytes := rec.Counters()
		tunnels = append(tunnels, Tunnel{
			Src:       rec.Key.Addr().String(),
			TEID:      rec.Key.TEID,
			Interface: rec.IfID,
			Packets:   pkts,
			Bytes:     bytes,
		})
	}
	api.ServeJSON(w, tunnels)
}

// GetTables returns the classification tables with their entries.
func (s *Server) GetTables(w http.ResponseWriter, r *http.Request) {
	pl, ok := s.pipeline(w)
	if !ok {
		return
	}
	tables := []Table{}
	if pl.Classifier != nil {
		assigned := map[string][]uint32{}
		for _, a := range pl.Classifier.Assignments() {
			assigned[a.Table] = append(assigned[a.Table], a.IfID)
		}
		for _, t := range pl.Classifier.Tables() {
			tbl := Table{Name: t.Name(), Interfaces: assigned[t.Name()], Entries: []Entry{}}
			if t.Next != nil {
				tbl.Next = t.Next.Name()
			}
			t.Entries(func(e *classify.Entry) {
				hits, _ := e.Hits()
				entry := Entry{Key: hex.EncodeToString(e.Key()), Opaque: e.Opaque, Hits: hits}
				if e.Session != nil {
					entry.Policer = e.Session.Name()
				}
				tbl.Entries = append(tbl.Entries, entry)
			})
			tables = append(tables, tbl)
		}
	}
	api.ServeJSON(w, tables)
}

// GetPolicers returns the policers and their counters.
func (s *Server) GetPolicers(w http.ResponseWriter, r *http.Request) {
	pl, ok := s.pipeline(w)
	if !ok {
		return
	}
	policers := []Policer{}
	for _, p := range pl.Policers {
		policers = append(policers, Policer{Name: p.Name(), Config: p.Config(), Stats: p.Stats()})
	}
	api.ServeJSON(w, policers)
}

// GetTraces returns the recorded packet traces.
func (s *Server) GetTraces(w http.ResponseWriter, r *http.Request) {
	traces := s.Dataplane.Traces()
	if traces == nil {
		traces = []steer.TraceRecord{}
	}
	api.ServeJSON(w, traces)
}

// ClearTraces discards the recorded packet traces.
func (s *Server) ClearTraces(w http.ResponseWriter, r *http.Request) {
	s.Dataplane.ClearTraces()
	w.WriteHeader(http.StatusNoContent)
}

// SetTrace flags the next count packets for tracing.
func (s *Server) SetTrace(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count < 0 {
		badRequest(w, "malformed count", err)
		return
	}
	s.Dataplane.TracePackets(count)
	w.WriteHeader(http.StatusNoContent)
}

// GetControl returns the state of the control task.
func (s *Server) GetControl(w http.ResponseWriter, r *http.Request) {
	api.ServeJSON(w, s.Control.Status())
}

// SetPeriodic enables or disables the periodic processing of the control
// task.
func (s *Server) SetPeriodic(w http.ResponseWriter, r *http.Request) {
	enable, err := strconv.ParseBool(r.URL.Query().Get("enable"))
	if err != nil {
		badRequest(w, "malformed enable", err)
		return
	}
	s.send(w, r, control.Event{Type: control.PeriodicEnableDisable, Enable: enable})
}

// PostEvent sends the event in the request body to the control task.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev control.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		badRequest(w, "malformed event", err)
		return
	}
	s.send(w, r, ev)
}

func (s *Server) send(w http.ResponseWriter, r *http.Request, ev control.Event) {
	if err := s.Control.Send(r.Context(), ev); err != nil {
		api.ErrorResponse(w, api.Problem{
			Detail: api.StringRef(err.Error()),
			Status: http.StatusServiceUnavailable,
			Title:  "unable to send event",
			Type:   api.StringRef(api.InternalError),
		})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) pipeline(w http.ResponseWriter) (*steer.Pipeline, bool) {
	pl := s.Dataplane.Pipeline()
	if pl == nil {
		api.ErrorResponse(w, api.Problem{
			Status: http.StatusNotFound,
			Title:  "no pipeline published",
			Type:   api.StringRef(api.NotFound),
		})
		return nil, false
	}
	return pl, true
}

func badRequest(w http.ResponseWriter, title string, err error) {
	p := api.Problem{
		Status: http.StatusBadRequest,
		Title:  title,
		Type:   api.StringRef(api.BadRequest),
	}
	if err != nil {
		p.Detail = api.StringRef(err.Error())
	}
	api.ErrorResponse(w, p)
}
