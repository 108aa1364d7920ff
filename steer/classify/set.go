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

package classify

import (
	"errors"
	"sort"

	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
)

var (
	errDuplicateTable = errors.New("duplicate table")
	errUnknownTable   = errors.New("unknown table")
)

// Set is the published classification state: the tables and the table
// assigned to each ingress interface.
type Set struct {
	tables []*Table
	byName map[string]int
	assign map[uint32]int
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{
		byName: make(map[string]int),
		assign: make(map[uint32]int),
	}
}

// AddTable adds a table to the set and returns its index.
func (s *Set) AddTable(t *Table) (int, error) {
	if _, ok := s.byName[t.name]; ok {
		return 0, serrors.JoinNoStack(errDuplicateTable, nil, "table", t.name)
	}
	s.tables = append(s.tables, t)
	s.byName[t.name] = len(s.tables) - 1
	return len(s.tables) - 1, nil
}

// Table returns the table with the given name.
func (s *Set) Table(name string) (*Table, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.tables[idx], true
}

// Assign makes the table at index idx the primary table of interface ifID.
// The index is not checked against the set: an assignment to a table that
// does not exist is reported by TableForInterface.
func (s *Set) Assign(ifID uint32, idx int) {
	s.assign[ifID] = idx
}

// AssignByName makes the named table the primary table of interface ifID.
func (s *Set) AssignByName(ifID uint32, name string) error {
	idx, ok := s.byName[name]
	if !ok {
		return serrors.JoinNoStack(errUnknownTable, nil, "table", name, "ifid", ifID)
	}
	s.Assign(ifID, idx)
	return nil
}

// TableForInterface returns the primary table of interface ifID. assigned is
// false if the interface has no table. If assigned is true and the table is
// nil, the assignment refers to a table that is not in the set.
func (s *Set) TableForInterface(ifID uint32) (t *Table, assigned bool) {
	if s == nil {
		return nil, false
	}
	idx, ok := s.assign[ifID]
	if !ok {
		return nil, false
	}
	if idx < 0 || idx >= len(s.tables) {
		return nil, true
	}
	return s.tables[idx], true
}

// Tables returns the tables of the set in insertion order.
func (s *Set) Tables() []*Table {
	return append([]*Table(nil), s.tables...)
}

// Assignments returns the interface to table name assignments, ordered by
// interface. Dangling assignments are reported with an empty name.
func (s *Set) Assignments() []Assignment {
	r := make([]Assignment, 0, len(s.assign))
	for ifID, idx := range s.assign {
		a := Assignment{IfID: ifID}
		if idx >= 0 && idx < len(s.tables) {
			a.Table = s.tables[idx].name
		}
		r = append(r, a)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].IfID < r[j].IfID })
	return r
}

// Assignment is the table assigned to an interface.
type Assignment struct {
	IfID  uint32 `json:"interface"`
	Table string `json:"table"`
}
