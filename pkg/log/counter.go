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

package log

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EntriesCounter holds the counters of emitted log entries, one per level.
// Nil counters are skipped.
type EntriesCounter struct {
	Debug prometheus.Counter
	Info  prometheus.Counter
	Error prometheus.Counter
}

// WithEntriesCounter returns a Setup option that counts every emitted entry.
func WithEntriesCounter(c EntriesCounter) zap.Option {
	return zap.Hooks(func(e zapcore.Entry) error {
		var counter prometheus.Counter
		switch {
		case e.Level <= zapcore.DebugLevel:
			counter = c.Debug
		case e.Level == zapcore.InfoLevel:
			counter = c.Info
		default:
			counter = c.Error
		}
		if counter != nil {
			counter.Inc()
		}
		return nil
	})
}
