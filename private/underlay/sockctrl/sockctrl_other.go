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

//go:build !unix

package sockctrl

import (
	"net"

	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
)

var errUnsupported = serrors.New("socket options not supported on this platform")

func GetsockoptInt(c *net.UDPConn, level, opt int) (int, error) {
	return 0, errUnsupported
}

func SetsockoptInt(c *net.UDPConn, level, opt, value int) error {
	return errUnsupported
}
