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
	"io"

	"github.com/vnfsteer/vnfsteer/private/config"
)

const pipelineSample = `# Underlay interfaces. Local and remote are UDP addresses.
[[interfaces]]
id = 1
local = "192.0.2.1:50001"
remote = "192.0.2.2:50001"

# Tunnel attribution only runs on the packets of interfaces with
# attribute = true. (default false)
[[interfaces]]
id = 2
local = "192.0.2.1:50002"
remote = "192.0.2.2:50002"
attribute = true

[[interfaces]]
id = 3
local = "192.0.2.1:50003"
remote = "192.0.2.3:50003"

[[interfaces]]
id = 4
local = "192.0.2.1:50004"
remote = "192.0.2.4:50004"

# The primary and secondary egress of the packets of an ingress interface.
[[routes]]
ingress = 1
primary = 3
secondary = 4

[[routes]]
ingress = 2
primary = 3
secondary = 4

# Rate in bytes per second, burst in bytes. A rate of 0 drops every packet.
[[policers]]
name = "gold"
rate = 125000000
burst = 150000

# A table matches len(mask) bytes at offset skip. On a miss, the packet is
# looked up in next, which must not have a next table itself.
[[tables]]
name = "subscribers"
skip = 26
mask = "ffffffff"
buckets = 1024
next = "signalling"

[[tables.entries]]
match = "0a000001"
policer = "gold"
opaque = 1

[[tables]]
name = "signalling"
skip = 36
mask = "ffff"

[[tables.entries]]
match = "0868"

[[assignments]]
interface = 1
table = "subscribers"

# GTP-U tunnels by outer IPv4 source and TEID. Only looked up for packets
# received on interfaces with attribute = true.
[[tunnels]]
src = "198.51.100.1"
teid = 42
interface = 2
`

// PipelineSample writes a sample pipeline.toml.
type PipelineSample struct{}

func (PipelineSample) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, pipelineSample)
}
