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
	"sort"

	"github.com/vnfsteer/vnfsteer/steer/classify"
	"github.com/vnfsteer/vnfsteer/steer/policer"
	"github.com/vnfsteer/vnfsteer/steer/tunnel"
)

// Route holds the egress interfaces of an ingress interface: Primary is used
// by the default and the policed routine, Secondary by the secondary routine.
type Route struct {
	Primary   uint32 `json:"primary"`
	Secondary uint32 `json:"secondary"`
}

// egress returns the egress interface of the given routine.
func (r Route) egress(routine Routine) uint32 {
	if routine == RoutineSecondary {
		return r.Secondary
	}
	return r.Primary
}

// RouteMap maps ingress interfaces to their routes. It is immutable once
// published.
type RouteMap struct {
	routes map[uint32]Route
}

// NewRouteMap creates a route map holding a copy of routes.
func NewRouteMap(routes map[uint32]Route) *RouteMap {
	m := &RouteMap{routes: make(map[uint32]Route, len(routes))}
	for k, v := range routes {
		m.routes[k] = v
	}
	return m
}

// Lookup returns the route of ingress interface ifID.
func (m *RouteMap) Lookup(ifID uint32) (Route, bool) {
	if m == nil {
		return Route{}, false
	}
	r, ok := m.routes[ifID]
	return r, ok
}

// RouteEntry is a route together with its ingress interface.
type RouteEntry struct {
	Ingress uint32 `json:"ingress"`
	Route
}

// Entries returns the routes ordered by ingress interface.
func (m *RouteMap) Entries() []RouteEntry {
	if m == nil {
		return nil
	}
	r := make([]RouteEntry, 0, len(m.routes))
	for k, v := range m.routes {
		r = append(r, RouteEntry{Ingress: k, Route: v})
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Ingress < r[j].Ingress })
	return r
}

// Pipeline is the configuration the packet path works with. A pipeline is
// published as a whole and never modified afterwards; each batch is processed
// against the pipeline that was current when the batch started.
type Pipeline struct {
	Routes     *RouteMap
	Classifier *classify.Set
	Tunnels    *tunnel.Table
	// Attribution holds the interfaces whose packets go through the tunnel
	// attribution stage.
	Attribution map[uint32]struct{}
	// Policers lists the policer sessions referenced by classification
	// entries, for reporting.
	Policers []*policer.Session
}

func (p *Pipeline) attributes(ifID uint32) bool {
	_, ok := p.Attribution[ifID]
	return ok
}
