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
	"sync"
)

// Trace stages.
const (
	StageTunnel = "tunnel"
	StageSteer  = "steer"
)

// TraceRecord describes what a stage did with a traced packet.
type TraceRecord struct {
	Worker  int     `json:"worker"`
	Stage   string  `json:"stage"`
	Ingress uint32  `json:"ingress"`
	Routine Routine `json:"routine"`
	Next    Next    `json:"next"`
	Egress  uint32  `json:"egress"`
	// Tunnel is the interface of the tunnel the packet was attributed to.
	Tunnel uint32 `json:"tunnel,omitempty"`
	Drop   string `json:"drop,omitempty"`
}

// Tracer keeps the most recent trace records in a ring. Each worker has its
// own tracer; the lock only serializes the worker with readers of the ring.
type Tracer struct {
	mtx     sync.Mutex
	records []TraceRecord
	next    int
	full    bool
}

// NewTracer creates a tracer that keeps up to size records.
func NewTracer(size int) *Tracer {
	return &Tracer{records: make([]TraceRecord, max(size, 1))}
}

func (t *Tracer) add(r TraceRecord) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.records[t.next] = r
	t.next++
	if t.next == len(t.records) {
		t.next = 0
		t.full = true
	}
}

// Records returns the kept records, oldest first.
func (t *Tracer) Records() []TraceRecord {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if !t.full {
		return append([]TraceRecord(nil), t.records[:t.next]...)
	}
	r := make([]TraceRecord, 0, len(t.records))
	r = append(r, t.records[t.next:]...)
	return append(r, t.records[:t.next]...)
}

// Clear drops all records.
func (t *Tracer) Clear() {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.next = 0
	t.full = false
}
