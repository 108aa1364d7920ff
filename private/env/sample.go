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

package env

const generalSample = `
# The ID of this element. (required)
id = "%s"

# Directory for loading pipeline.toml. (default ".")
config_dir = "/etc/vnfsteer"
`

const metricsSample = `
# The address to export prometheus metrics on. If not set, metrics are not
# exported. (default "")
prometheus = "127.0.0.1:30455"
`
