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

//go:build unix

// Package sockctrl reads and sets socket options on UDP sockets.
package sockctrl

import (
	"net"
	"syscall"
)

// SockControl runs f with the file descriptor of c.
func SockControl(c *net.UDPConn, f func(int) error) error {
	rawConn, err := c.SyscallConn()
	if err != nil {
		return err
	}
	var ctrlErr error
	err = rawConn.Control(func(fd uintptr) {
		ctrlErr = f(int(fd))
	})
	if err != nil {
		return err
	}
	return ctrlErr
}

func GetsockoptInt(c *net.UDPConn, level, opt int) (int, error) {
	var val int
	err := SockControl(c, func(fd int) error {
		var err error
		val, err = syscall.GetsockoptInt(fd, level, opt)
		return err
	})
	return val, err
}

func SetsockoptInt(c *net.UDPConn, level, opt, value int) error {
	return SockControl(c, func(fd int) error {
		return syscall.SetsockoptInt(fd, level, opt, value)
	})
}
