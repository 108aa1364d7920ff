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

// Package prom contains helpers for registering prometheus metrics.
package prom

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Common label names.
const (
	LabelResult    = "result"
	LabelReason    = "reason"
	LabelInterface = "interface"
)

// ExportElementID exports the element ID of the configuration as the cfg
// label of a constant gauge.
func ExportElementID(reg prometheus.Registerer, id string) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "steer_elem_id",
		Help:        "The element ID from the config file",
		ConstLabels: prometheus.Labels{"cfg": id},
	})
	g.Set(1)
	SafeRegister(reg, g)
}

// SafeRegister registers c with reg and returns the registered collector. If
// an equal collector was registered before, that one is returned. Any other
// error panics, as with MustRegister.
func SafeRegister(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
