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
	"net/netip"
	"slices"
	"sort"

	"github.com/vnfsteer/vnfsteer/pkg/log"
	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
	"github.com/vnfsteer/vnfsteer/steer"
	"github.com/vnfsteer/vnfsteer/steer/classify"
	"github.com/vnfsteer/vnfsteer/steer/policer"
	"github.com/vnfsteer/vnfsteer/steer/tunnel"
)

// Dataplane is the interface that the control task expects from the data
// plane.
type Dataplane interface {
	AddInterface(ifID uint32, local, remote netip.AddrPort) error
	Interfaces() []uint32
	Publish(pl *steer.Pipeline) error
	Pipeline() *steer.Pipeline
}

// ConfigDataplane adds the interfaces of cfg to the data plane and publishes
// the compiled pipeline. It must be called before the data plane runs.
func ConfigDataplane(dp Dataplane, cfg *Config, shift uint) error {
	if cfg == nil {
		return serrors.New("empty configuration")
	}
	// Sort to get a deterministic order.
	intfs := slices.Clone(cfg.Interfaces)
	sort.Slice(intfs, func(i, j int) bool { return intfs[i].ID < intfs[j].ID })
	for _, intf := range intfs {
		local, err := netip.ParseAddrPort(intf.Local)
		if err != nil {
			return serrors.Wrap("parsing local address", err, "interface", intf.ID)
		}
		remote, err := netip.ParseAddrPort(intf.Remote)
		if err != nil {
			return serrors.Wrap("parsing remote address", err, "interface", intf.ID)
		}
		if err := dp.AddInterface(intf.ID, local, remote); err != nil {
			return serrors.Wrap("adding interface", err, "interface", intf.ID)
		}
	}
	pl, err := Compile(cfg, shift, dp.Pipeline())
	if err != nil {
		return err
	}
	return dp.Publish(pl)
}

// Compile builds the pipeline described by cfg. The counters of the tunnels of
// prev that are attributed to the same interface and the state of the policers
// of prev that have the same configuration are carried over to the new
// pipeline. prev may be nil.
func Compile(cfg *Config, shift uint, prev *steer.Pipeline) (*steer.Pipeline, error) {
	routes := make(map[uint32]steer.Route, len(cfg.Routes))
	for _, r := range cfg.Routes {
		routes[r.Ingress] = steer.Route{Primary: r.Primary, Secondary: r.Secondary}
	}
	sessions, err := compilePolicers(cfg.Policers, shift, prev)
	if err != nil {
		return nil, err
	}
	set, err := compileTables(cfg, sessions)
	if err != nil {
		return nil, err
	}
	tunnels, err := compileTunnels(cfg.Tunnels, prev)
	if err != nil {
		return nil, err
	}
	attribution := make(map[uint32]struct{})
	for _, intf := range cfg.Interfaces {
		if intf.Attribute {
			attribution[intf.ID] = struct{}{}
		}
	}
	pl := &steer.Pipeline{
		Routes:      steer.NewRouteMap(routes),
		Classifier:  set,
		Tunnels:     tunnels,
		Attribution: attribution,
	}
	for _, p := range cfg.Policers {
		pl.Policers = append(pl.Policers, sessions[p.Name])
	}
	return pl, nil
}

func compilePolicers(
	policers []Policer,
	shift uint,
	prev *steer.Pipeline,
) (map[string]*policer.Session, error) {

	old := make(map[string]*policer.Session)
	if prev != nil {
		for _, s := range prev.Policers {
			old[s.Name()] = s
		}
	}
	sessions := make(map[string]*policer.Session, len(policers))
	for _, p := range policers {
		pc := policer.Config{Rate: p.Rate, Burst: p.Burst}
		if s, ok := old[p.Name]; ok && s.Config() == pc && s.Shift() == shift {
			sessions[p.Name] = s
			continue
		}
		s, err := policer.NewSession(p.Name, pc, shift)
		if err != nil {
			return nil, err
		}
		sessions[p.Name] = s
	}
	return sessions, nil
}

func compileTables(cfg *Config, sessions map[string]*policer.Session) (*classify.Set, error) {
	set := classify.NewSet()
	for _, tc := range cfg.Tables {
		mask, err := parseHex(tc.Mask)
		if err != nil {
			return nil, serrors.Wrap("parsing mask", err, "table", tc.Name)
		}
		t, err := classify.NewTable(tc.Name, tc.Skip, mask, tc.Buckets)
		if err != nil {
			return nil, err
		}
		for _, ec := range tc.Entries {
			match, err := parseHex(ec.Match)
			if err != nil {
				return nil, serrors.Wrap("parsing match", err, "table", tc.Name)
			}
			if _, err := t.AddEntry(match, sessions[ec.Policer], ec.Opaque); err != nil {
				return nil, err
			}
		}
		if _, err := set.AddTable(t); err != nil {
			return nil, err
		}
	}
	for _, tc := range cfg.Tables {
		if tc.Next == "" {
			continue
		}
		t, _ := set.Table(tc.Name)
		next, ok := set.Table(tc.Next)
		if !ok {
			return nil, serrors.New("unknown next table", "table", tc.Name, "next", tc.Next)
		}
		if err := t.SetNext(next); err != nil {
			return nil, err
		}
	}
	for _, a := range cfg.Assignments {
		if err := set.AssignByName(a.Interface, a.Table); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func compileTunnels(tunnels []Tunnel, prev *steer.Pipeline) (*tunnel.Table, error) {
	var old *tunnel.Table
	if prev != nil {
		old = prev.Tunnels
	}
	records := make([]*tunnel.Record, 0, len(tunnels))
	for _, tc := range tunnels {
		src, err := netip.ParseAddr(tc.Src)
		if err != nil {
			return nil, serrors.Wrap("parsing tunnel source", err, "teid", tc.TEID)
		}
		key, err := tunnel.MakeKey(src, tc.TEID)
		if err != nil {
			return nil, err
		}
		if rec, ok := old.Lookup(key); ok && rec.IfID == tc.Interface {
			records = append(records, rec)
			continue
		}
		records = append(records, tunnel.NewRecord(key, tc.Interface))
	}
	return tunnel.NewTable(records...)
}

// checkInterfaces reports an error if cfg does not configure exactly the
// interfaces of the data plane. Interfaces cannot change while the data plane
// runs.
func checkInterfaces(dp Dataplane, cfg *Config) error {
	want := make([]uint32, 0, len(cfg.Interfaces))
	for _, intf := range cfg.Interfaces {
		want = append(want, intf.ID)
	}
	slices.Sort(want)
	have := dp.Interfaces()
	if !slices.Equal(want, have) {
		log.Debug("Interface set changed", "configured", want, "running", have)
		return serrors.New("interfaces cannot change at runtime",
			"configured", want, "running", have)
	}
	return nil
}
