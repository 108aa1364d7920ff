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

// Package policer implements single-rate token-bucket policing on a coarse
// time base.
//
// Time is counted in periods of 2^shift nanoseconds of a monotonic clock. A
// session keeps its bucket as the theoretical arrival time of the next
// conforming byte, which fits in a single word and is updated with
// compare-and-swap. The bucket admits a packet if, after charging it, the
// arrival time is ahead of now by at most the burst size worth of time. This
// is equivalent to a token bucket that is refilled at the configured rate and
// holds at most the burst size.
package policer

import (
	"errors"
	"math/bits"
	"sync/atomic"
	"time"

	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
)

// Action is the outcome of policing a packet.
type Action uint8

const (
	Admit Action = iota
	Drop
)

func (a Action) String() string {
	switch a {
	case Admit:
		return "admit"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}

const (
	// DefaultPeriodShift makes a period 32.768µs long.
	DefaultPeriodShift = 15
	MinPeriodShift     = 10
	MaxPeriodShift     = 24

	// fracBits is the precision of the arrival time within a period.
	fracBits = 20
)

var errRateTooLow = errors.New("rate too low for period")

// Config is the configuration of a policer session.
type Config struct {
	// Rate is the committed rate in bytes per second. A rate of zero drops
	// every packet.
	Rate uint64 `json:"rate"`
	// Burst is the committed burst size in bytes.
	Burst uint64 `json:"burst"`
}

// Session is the state of one policer. It is safe for concurrent use.
type Session struct {
	name  string
	cfg   Config
	shift uint
	deny  bool
	// costFP is the cost of one byte in 2^-fracBits periods, as 32.32 fixed
	// point.
	costFP    uint64
	tolerance uint64

	tat atomic.Uint64

	conformPkts  atomic.Uint64
	conformBytes atomic.Uint64
	exceedPkts   atomic.Uint64
	exceedBytes  atomic.Uint64
}

// NewSession creates a session for the given configuration and period shift.
// The bucket starts full.
func NewSession(name string, cfg Config, shift uint) (*Session, error) {
	if shift < MinPeriodShift || shift > MaxPeriodShift {
		return nil, serrors.New("period shift out of range", "shift", shift,
			"min", MinPeriodShift, "max", MaxPeriodShift)
	}
	s := &Session{name: name, cfg: cfg, shift: shift}
	if cfg.Rate == 0 {
		s.deny = true
		return s, nil
	}
	// costFP = 1e9 * 2^(fracBits+32) / (rate * 2^shift)
	hi, lo := bits.Mul64(uint64(time.Second), 1<<(fracBits+32-shift))
	if hi >= cfg.Rate {
		return nil, serrors.JoinNoStack(errRateTooLow, nil, "policer", name,
			"rate", cfg.Rate, "shift", shift)
	}
	s.costFP, _ = bits.Div64(hi, lo, cfg.Rate)
	s.tolerance = s.cost(cfg.Burst)
	return s, nil
}

// Name returns the name of the session.
func (s *Session) Name() string {
	return s.name
}

// Config returns the configuration of the session.
func (s *Session) Config() Config {
	return s.cfg
}

// Shift returns the period shift the session was created for.
func (s *Session) Shift() uint {
	return s.shift
}

func (s *Session) cost(size uint64) uint64 {
	hi, lo := bits.Mul64(size, s.costFP)
	return hi<<32 | lo>>32
}

// Police charges a packet of the given size at period now and reports whether
// it conforms.
func (s *Session) Police(now uint64, size int) Action {
	if s.deny {
		s.exceed(size)
		return Drop
	}
	c := s.cost(uint64(size))
	// nowFP wraps around; all comparisons are on differences. An admitted
	// arrival time is never ahead of now by more than the tolerance, so a
	// larger difference means tat lies in the past.
	nowFP := now << fracBits
	for {
		tat := s.tat.Load()
		ahead := tat - nowFP
		if ahead > s.tolerance {
			ahead = 0
		}
		if c > s.tolerance-ahead {
			s.exceed(size)
			return Drop
		}
		if s.tat.CompareAndSwap(tat, nowFP+ahead+c) {
			s.conformPkts.Add(1)
			s.conformBytes.Add(uint64(size))
			return Admit
		}
	}
}

func (s *Session) exceed(size int) {
	s.exceedPkts.Add(1)
	s.exceedBytes.Add(uint64(size))
}

// Stats are the counters of a session.
type Stats struct {
	ConformPackets uint64 `json:"conform_packets"`
	ConformBytes   uint64 `json:"conform_bytes"`
	ExceedPackets  uint64 `json:"exceed_packets"`
	ExceedBytes    uint64 `json:"exceed_bytes"`
}

// Stats returns the current counters of the session.
func (s *Session) Stats() Stats {
	return Stats{
		ConformPackets: s.conformPkts.Load(),
		ConformBytes:   s.conformBytes.Load(),
		ExceedPackets:  s.exceedPkts.Load(),
		ExceedBytes:    s.exceedBytes.Load(),
	}
}

// Clock is the time source of the packet path. It counts nanoseconds since
// its creation on the monotonic clock.
type Clock struct {
	start time.Time
	shift uint
}

// NewClock creates a clock with periods of 2^shift nanoseconds.
func NewClock(shift uint) *Clock {
	return &Clock{start: time.Now(), shift: shift}
}

// Now returns the nanoseconds elapsed since the clock was created.
func (c *Clock) Now() int64 {
	return int64(time.Since(c.start))
}

// Period converts a time returned by Now into periods.
func (c *Clock) Period(now int64) uint64 {
	return uint64(now) >> c.shift
}

// Shift returns the period shift of the clock.
func (c *Clock) Shift() uint {
	return c.shift
}
