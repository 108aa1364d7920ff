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

// Package mgmtapi contains the configuration and the helpers shared by the
// management APIs.
package mgmtapi

import (
	"io"
	"net/netip"

	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
	"github.com/vnfsteer/vnfsteer/private/config"
)

var _ config.Config = (*Config)(nil)

// Config is the configuration of the management API.
type Config struct {
	config.NoDefaulter
	// Addr is the address the management API is served on. If empty, the
	// API is not served.
	Addr string `toml:"addr,omitempty"`
}

// Validate checks that Addr, if set, is an address and a port.
func (cfg *Config) Validate() error {
	if cfg.Addr == "" {
		return nil
	}
	if _, err := netip.ParseAddrPort(cfg.Addr); err != nil {
		return serrors.Wrap("parsing api address", err, "addr", cfg.Addr)
	}
	return nil
}

func (cfg *Config) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, sample)
}

func (cfg *Config) ConfigName() string {
	return "api"
}

const sample = `
# The address to expose the management API on. If not set, the API is not
# exposed. (default "")
addr = "127.0.0.1:30441"
`
