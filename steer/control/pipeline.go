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

// Package control loads the static pipeline configuration, compiles it into
// the snapshots published to the data plane and runs the background control
// task.
package control

import (
	"encoding/hex"
	"net/netip"
	"strings"

	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
	"github.com/vnfsteer/vnfsteer/private/config"
)

// DefaultBuckets is the number of buckets of a table that does not set it.
const DefaultBuckets = 64

// Config is the pipeline configuration, usually read from pipeline.toml.
type Config struct {
	Interfaces  []Interface  `toml:"interfaces" json:"interfaces"`
	Routes      []Route      `toml:"routes" json:"routes"`
	Policers    []Policer    `toml:"policers" json:"policers"`
	Tables      []Table      `toml:"tables" json:"tables"`
	Assignments []Assignment `toml:"assignments" json:"assignments"`
	Tunnels     []Tunnel     `toml:"tunnels" json:"tunnels"`
}

// Interface is an underlay interface of the data plane.
type Interface struct {
	ID     uint32 `toml:"id" json:"id"`
	Local  string `toml:"local" json:"local"`
	Remote string `toml:"remote" json:"remote"`
	// Attribute enables tunnel attribution for the packets received on the
	// interface. It is off by default: packets of an interface without it
	// skip the tunnel stage, and tunnels attributed to it are never looked up.
	Attribute bool `toml:"attribute,omitempty" json:"attribute,omitempty"`
}

// Route is the interface route map entry of an ingress interface.
type Route struct {
	Ingress   uint32 `toml:"ingress" json:"ingress"`
	Primary   uint32 `toml:"primary" json:"primary"`
	Secondary uint32 `toml:"secondary" json:"secondary"`
}

// Policer is a named policer. Rate is in bytes per second and Burst in bytes.
type Policer struct {
	Name  string `toml:"name" json:"name"`
	Rate  uint64 `toml:"rate" json:"rate"`
	Burst uint64 `toml:"burst" json:"burst"`
}

// Table is a classification table. Mask and the entry matches are hex
// strings; whitespace is ignored.
type Table struct {
	Name    string  `toml:"name" json:"name"`
	Skip    int     `toml:"skip,omitempty" json:"skip,omitempty"`
	Mask    string  `toml:"mask" json:"mask"`
	Buckets int     `toml:"buckets,omitempty" json:"buckets,omitempty"`
	Next    string  `toml:"next,omitempty" json:"next,omitempty"`
	Entries []Entry `toml:"entries" json:"entries"`
}

// Entry is a table entry. Entries of tables that are assigned to an
// interface must name a policer.
type Entry struct {
	Match   string `toml:"match" json:"match"`
	Policer string `toml:"policer,omitempty" json:"policer,omitempty"`
	Opaque  uint32 `toml:"opaque,omitempty" json:"opaque,omitempty"`
}

// Assignment makes a table the primary table of an interface.
type Assignment struct {
	Interface uint32 `toml:"interface" json:"interface"`
	Table     string `toml:"table" json:"table"`
}

// Tunnel is a GTP-U tunnel attributed to an interface.
type Tunnel struct {
	Src       string `toml:"src" json:"src"`
	TEID      uint32 `toml:"teid" json:"teid"`
	Interface uint32 `toml:"interface" json:"interface"`
}

// LoadConfig reads, defaults and validates the pipeline configuration in file.
func LoadConfig(file string) (*Config, error) {
	cfg := &Config{}
	if err := config.LoadFile(file, cfg); err != nil {
		return nil, serrors.Wrap("loading pipeline config", err)
	}
	cfg.InitDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, serrors.Wrap("validating pipeline config", err, "file", file)
	}
	return cfg, nil
}

// InitDefaults sets the number of buckets of the tables that do not set it.
func (cfg *Config) InitDefaults() {
	for i := range cfg.Tables {
		if cfg.Tables[i].Buckets == 0 {
			cfg.Tables[i].Buckets = DefaultBuckets
		}
	}
}

// Validate checks the references between the parts of the configuration.
// Table layouts and policer rates are checked when the configuration is
// compiled.
func (cfg *Config) Validate() error {
	interfaces := make(map[uint32]Interface, len(cfg.Interfaces))
	for _, intf := range cfg.Interfaces {
		if _, ok := interfaces[intf.ID]; ok {
			return serrors.New("duplicate interface", "id", intf.ID)
		}
		if _, err := netip.ParseAddrPort(intf.Local); err != nil {
			return serrors.Wrap("parsing local address", err, "interface", intf.ID)
		}
		if _, err := netip.ParseAddrPort(intf.Remote); err != nil {
			return serrors.Wrap("parsing remote address", err, "interface", intf.ID)
		}
		interfaces[intf.ID] = intf
	}
	known := func(ifID uint32) bool {
		_, ok := interfaces[ifID]
		return ok
	}

	routed := make(map[uint32]bool, len(cfg.Routes))
	for _, r := range cfg.Routes {
		if routed[r.Ingress] {
			return serrors.New("duplicate route", "ingress", r.Ingress)
		}
		for _, ifID := range []uint32{r.Ingress, r.Primary, r.Secondary} {
			if !known(ifID) {
				return serrors.New("route refers to unknown interface",
					"ingress", r.Ingress, "interface", ifID)
			}
		}
		routed[r.Ingress] = true
	}

	policers := make(map[string]bool, len(cfg.Policers))
	for _, p := range cfg.Policers {
		if p.Name == "" {
			return serrors.New("policer without name")
		}
		if policers[p.Name] {
			return serrors.New("duplicate policer", "name", p.Name)
		}
		policers[p.Name] = true
	}

	tables := make(map[string]*Table, len(cfg.Tables))
	for i := range cfg.Tables {
		t := &cfg.Tables[i]
		if t.Name == "" {
			return serrors.New("table without name")
		}
		if _, ok := tables[t.Name]; ok {
			return serrors.New("duplicate table", "name", t.Name)
		}
		tables[t.Name] = t
	}
	primary := make(map[string]bool, len(cfg.Assignments))
	assigned := make(map[uint32]bool, len(cfg.Assignments))
	for _, a := range cfg.Assignments {
		if !known(a.Interface) {
			return serrors.New("assignment to unknown interface", "interface", a.Interface)
		}
		if assigned[a.Interface] {
			return serrors.New("duplicate assignment", "interface", a.Interface)
		}
		if _, ok := tables[a.Table]; !ok {
			return serrors.New("assignment of unknown table",
				"interface", a.Interface, "table", a.Table)
		}
		assigned[a.Interface] = true
		primary[a.Table] = true
	}
	for _, t := range cfg.Tables {
		if t.Next != "" {
			next, ok := tables[t.Next]
			if !ok {
				return serrors.New("unknown next table", "table", t.Name, "next", t.Next)
			}
			if next.Next != "" || t.Next == t.Name {
				return serrors.New("next table cascades further", "table", t.Name,
					"next", t.Next)
			}
		}
		for _, e := range t.Entries {
			if e.Policer != "" && !policers[e.Policer] {
				return serrors.New("entry refers to unknown policer",
					"table", t.Name, "policer", e.Policer)
			}
			if e.Policer == "" && primary[t.Name] {
				return serrors.New("entry of primary table without policer",
					"table", t.Name, "match", e.Match)
			}
		}
	}

	for _, tun := range cfg.Tunnels {
		if !known(tun.Interface) {
			return serrors.New("tunnel attributed to unknown interface",
				"src", tun.Src, "teid", tun.TEID, "interface", tun.Interface)
		}
		if _, err := netip.ParseAddr(tun.Src); err != nil {
			return serrors.Wrap("parsing tunnel source", err, "teid", tun.TEID)
		}
	}
	return nil
}

func parseHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.Join(strings.Fields(s), ""))
}
