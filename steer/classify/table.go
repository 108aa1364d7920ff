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

// Package classify implements the masked-match hash tables consulted by the
// steering stage. A table matches a window of the packet bytes under a mask;
// entries are grouped in buckets selected by the hash of the masked window.
// A table may name a next table that is consulted when it misses.
//
// Tables are built by the control plane and are immutable once published in
// a Set. The packet path only reads them.
package classify

import (
	"encoding/hex"
	"errors"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
	"github.com/vnfsteer/vnfsteer/steer/policer"
)

// MaxMatchLen is the largest match window, in bytes.
const MaxMatchLen = 80

var (
	errMaskEmpty      = errors.New("empty mask")
	errMaskTooLong    = errors.New("mask too long")
	errBadBucketCount = errors.New("bucket count must be a power of two")
	errMatchLen       = errors.New("match length differs from mask length")
	errDuplicateEntry = errors.New("duplicate entry")
	errCascadeDepth   = errors.New("next table must not cascade further")
)

// Entry is a match in a table. The match key, the policer session and the
// opaque value never change after the table is published. Hit statistics are
// updated on lookup and are for diagnostics only.
type Entry struct {
	key []byte
	// Session polices packets that hit this entry. It is nil for entries of
	// tables that are not policed.
	Session *policer.Session
	// Opaque is carried along for the consumer of the classification.
	Opaque uint32

	hits    atomic.Uint64
	lastHit atomic.Int64
}

// Key returns the masked match bytes of the entry.
func (e *Entry) Key() []byte {
	return e.key
}

// Hits returns the number of lookups that returned this entry and the time
// of the last one.
func (e *Entry) Hits() (uint64, int64) {
	return e.hits.Load(), e.lastHit.Load()
}

// Bucket is the set of entries that share a hash bucket.
type Bucket []*Entry

// Table is a masked-match hash table.
type Table struct {
	name       string
	skip       int
	mask       []byte
	buckets    []Bucket
	bucketMask uint64
	size       int
	// cascadedFrom counts the tables that have this one as Next.
	cascadedFrom int
	// Next is the table consulted when this one misses, if any.
	Next *Table
}

// NewTable creates an empty table that matches len(mask) bytes starting at
// offset skip of the packet, in nbuckets buckets.
func NewTable(name string, skip int, mask []byte, nbuckets int) (*Table, error) {
	switch {
	case len(mask) == 0:
		return nil, serrors.JoinNoStack(errMaskEmpty, nil, "table", name)
	case len(mask) > MaxMatchLen:
		return nil, serrors.JoinNoStack(errMaskTooLong, nil, "table", name,
			"len", len(mask), "max", MaxMatchLen)
	case nbuckets <= 0 || nbuckets&(nbuckets-1) != 0:
		return nil, serrors.JoinNoStack(errBadBucketCount, nil, "table", name,
			"buckets", nbuckets)
	case skip < 0:
		return nil, serrors.New("negative skip", "table", name, "skip", skip)
	}
	return &Table{
		name:       name,
		skip:       skip,
		mask:       append([]byte(nil), mask...),
		buckets:    make([]Bucket, nbuckets),
		bucketMask: uint64(nbuckets - 1),
	}, nil
}

// Name returns the name of the table.
func (t *Table) Name() string {
	return t.name
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	return t.size
}

// AddEntry adds an entry matching the given bytes. The bytes are masked with
// the table mask before they are stored. AddEntry must not be called once the
// table is published.
func (t *Table) AddEntry(match []byte, session *policer.Session, opaque uint32) (*Entry, error) {
	if len(match) != len(t.mask) {
		return nil, serrors.JoinNoStack(errMatchLen, nil, "table", t.name,
			"match", len(match), "mask", len(t.mask))
	}
	e := &Entry{key: make([]byte, len(t.mask)), Session: session, Opaque: opaque}
	for i := range t.mask {
		e.key[i] = match[i] & t.mask[i]
	}
	h := t.hashKey(e.key)
	b := &t.buckets[h&t.bucketMask]
	for _, other := range *b {
		if string(other.key) == string(e.key) {
			return nil, serrors.JoinNoStack(errDuplicateEntry, nil, "table", t.name,
				"key", hex.EncodeToString(e.key))
		}
	}
	*b = append(*b, e)
	t.size++
	return e, nil
}

// SetNext links the table consulted on a miss. Only one level of cascading is
// supported: next must not itself have a next table, and t must not be the
// next table of another one.
func (t *Table) SetNext(next *Table) error {
	if next != nil && (next.Next != nil || next == t || t.cascadedFrom > 0) {
		return serrors.JoinNoStack(errCascadeDepth, nil, "table", t.name, "next", next.name)
	}
	if t.Next != nil {
		t.Next.cascadedFrom--
	}
	if next != nil {
		next.cascadedFrom++
	}
	t.Next = next
	return nil
}

// Hash computes the hash of the masked match window of pkt. Bytes beyond the
// end of pkt count as zero.
func (t *Table) Hash(pkt []byte) uint64 {
	var key [MaxMatchLen]byte
	t.maskInto(&key, pkt)
	return t.hashKey(key[:len(t.mask)])
}

func (t *Table) hashKey(key []byte) uint64 {
	return xxhash.Sum64(key)
}

func (t *Table) maskInto(key *[MaxMatchLen]byte, pkt []byte) {
	var window []byte
	if t.skip < len(pkt) {
		window = pkt[t.skip:]
	}
	n := min(len(window), len(t.mask))
	for i := 0; i < n; i++ {
		key[i] = window[i] & t.mask[i]
	}
}

// Prefetch resolves the bucket that a packet with the given hash falls in.
// Resolving the buckets of a whole batch before looking them up lets the
// memory loads of the batch overlap.
func (t *Table) Prefetch(hash uint64) Bucket {
	return t.buckets[hash&t.bucketMask]
}

// FindEntry returns the entry matching pkt, if any. hash must be the result
// of Hash for the same packet; now is recorded as the last hit time.
func (t *Table) FindEntry(hash uint64, pkt []byte, now int64) (*Entry, bool) {
	return t.Lookup(t.Prefetch(hash), pkt, now)
}

// Lookup is FindEntry on a bucket previously returned by Prefetch.
func (t *Table) Lookup(b Bucket, pkt []byte, now int64) (*Entry, bool) {
	if len(b) == 0 {
		return nil, false
	}
	var key [MaxMatchLen]byte
	t.maskInto(&key, pkt)
	for _, e := range b {
		if string(e.key) == string(key[:len(t.mask)]) {
			e.hits.Add(1)
			e.lastHit.Store(now)
			return e, true
		}
	}
	return nil, false
}

// Entries calls fn for every entry of the table, in bucket order.
func (t *Table) Entries(fn func(*Entry)) {
	for _, b := range t.buckets {
		for _, e := range b {
			fn(e)
		}
	}
}
