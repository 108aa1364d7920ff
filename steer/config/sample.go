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

package config

const steerSample = `
# The number of workers. (default GOMAXPROCS)
num_processors = 4

# The maximum number of packets processed as one batch. (default %d)
batch_size = 256

# The policer period is 2^policer_period_shift nanoseconds. (default %d)
policer_period_shift = 15

# The tunnel payload length computation (legacy|exact). The legacy
# computation is wrong for packets with several extension flags set.
# (default legacy)
tunnel_length_mode = "legacy"

# The period of the control task. On every period the pipeline
# configuration is reloaded if it changed. (default %s)
control_timeout = "10s"

# Enable the periodic processing of the control task at startup.
# (default false)
periodic_enabled = false

# The number of packet trace records kept per worker. (default %d)
trace_buffer_size = 512

# The socket buffer sizes of the interfaces in bytes. (default 0, the system
# default)
receive_buffer_size = 0
send_buffer_size = 0
`
