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

// Package tunnel attributes GTP-U encapsulated packets to the tunnel they
// belong to and counts them per tunnel.
package tunnel

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync/atomic"

	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
)

var (
	errDuplicateTunnel = errors.New("duplicate tunnel")
	errNotIPv4         = errors.New("tunnel source must be an IPv4 address")
)

// Key identifies a tunnel by the outer IPv4 source address and the tunnel
// endpoint identifier.
type Key struct {
	Src  [4]byte
	TEID uint32
}

// MakeKey builds a key from an IPv4 address and a TEID.
func MakeKey(src netip.Addr, teid uint32) (Key, error) {
	if !src.Is4() {
		return Key{}, serrors.JoinNoStack(errNotIPv4, nil, "src", src)
	}
	return Key{Src: src.As4(), TEID: teid}, nil
}

// Addr returns the source address of the key.
func (k Key) Addr() netip.Addr {
	return netip.AddrFrom4(k.Src)
}

func (k Key) String() string {
	return fmt.Sprintf("%s/0x%08x", k.Addr(), k.TEID)
}

// Record is a tunnel known to the data plane. The counters are updated by
// the packet path; everything else is fixed when the record is created.
type Record struct {
	Key Key
	// IfID is the interface the tunnel traffic is attributed to.
	IfID uint32

	packets atomic.Uint64
	bytes   atomic.Uint64
}

// NewRecord creates a record with zero counters.
func NewRecord(key Key, ifID uint32) *Record {
	return &Record{Key: key, IfID: ifID}
}

// Add increments the counters of the record.
func (r *Record) Add(packets, bytes uint64) {
	r.packets.Add(packets)
	r.bytes.Add(bytes)
}

// Counters returns the packet and byte counters of the record.
func (r *Record) Counters() (packets, bytes uint64) {
	return r.packets.Load(), r.bytes.Load()
}

// Table maps tunnel keys to records. It is immutable once created.
type Table struct {
	records map[Key]*Record
}

// NewTable creates a table of the given records.
func NewTable(records ...*Record) (*Table, error) {
	t := &Table{records: make(map[Key]*Record, len(records))}
	for _, r := range records {
		if _, ok := t.records[r.Key]; ok {
			return nil, serrors.JoinNoStack(errDuplicateTunnel, nil, "tunnel", r.Key)
		}
		t.records[r.Key] = r
	}
	return t, nil
}

// Lookup returns the record of the given tunnel.
func (t *Table) Lookup(k Key) (*Record, bool) {
	if t == nil {
		return nil, false
	}
	r, ok := t.records[k]
	return r, ok
}

// Len returns the number of tunnels in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Records returns the records of the table ordered by key.
func (t *Table) Records() []*Record {
	if t == nil {
		return nil
	}
	r := make([]*Record, 0, len(t.records))
	for _, rec := range t.records {
		r = append(r, rec)
	}
	sort.Slice(r, func(i, j int) bool {
		a, b := r[i].Key, r[j].Key
		if a.Src != b.Src {
			return a.Addr().Less(b.Addr())
		}
		return a.TEID < b.TEID
	})
	return r
}
