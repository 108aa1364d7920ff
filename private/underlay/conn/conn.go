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

// Package conn implements the point to point UDP sockets of the underlay. A
// connection is bound to the local address and, if a remote address is set,
// connected to it. Reads and writes happen in batches through recvmmsg and
// sendmmsg where the platform supports them.
package conn

import (
	"net"
	"net/netip"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/vnfsteer/vnfsteer/pkg/log"
	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
	"github.com/vnfsteer/vnfsteer/private/underlay/sockctrl"
)

// Messages is a list of ipv4/ipv6 messages for use with the batch calls.
// ipv4.Message and ipv6.Message are the same type.
type Messages []ipv4.Message

// NewReadMessages allocates n messages with one buffer each. The buffers are
// meant to be replaced by the caller before every read.
func NewReadMessages(n int) Messages {
	m := make(Messages, n)
	for i := range m {
		m[i].Buffers = make([][]byte, 1)
	}
	return m
}

// NewWriteMessages allocates n messages with one buffer slot each.
func NewWriteMessages(n int) Messages {
	return NewReadMessages(n)
}

// Config holds the socket buffer sizes. Zero means the system default.
type Config struct {
	SendBufferSize    int
	ReceiveBufferSize int
}

// Conn is a batch capable UDP connection.
type Conn interface {
	ReadBatch(Messages) (int, error)
	WriteBatch(Messages, int) (int, error)
	Write([]byte) (int, error)
	LocalAddr() netip.AddrPort
	RemoteAddr() netip.AddrPort
	SetReadDeadline(time.Time) error
	Close() error
}

// New opens a connection bound to listen. If remote is valid, the connection
// is connected to it and only accepts packets from it.
func New(listen, remote netip.AddrPort, cfg *Config) (Conn, error) {
	if !listen.IsValid() {
		return nil, serrors.New("listen address must be specified")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if remote.IsValid() && listen.Addr().Is4() != remote.Addr().Is4() {
		return nil, serrors.New("mismatched address families",
			"listen", listen, "remote", remote)
	}
	network := "udp6"
	if listen.Addr().Is4() {
		network = "udp4"
	}
	var cc connUDPBase
	if err := cc.initConnUDP(network, listen, remote, cfg); err != nil {
		return nil, err
	}
	if listen.Addr().Is4() {
		return &connUDPIPv4{connUDPBase: cc, pconn: ipv4.NewPacketConn(cc.conn)}, nil
	}
	return &connUDPIPv6{connUDPBase: cc, pconn: ipv6.NewPacketConn(cc.conn)}, nil
}

type connUDPIPv4 struct {
	connUDPBase
	pconn *ipv4.PacketConn
}

func (c *connUDPIPv4) ReadBatch(msgs Messages) (int, error) {
	return c.pconn.ReadBatch(msgs, readFlags)
}

func (c *connUDPIPv4) WriteBatch(msgs Messages, flags int) (int, error) {
	return c.pconn.WriteBatch(msgs, flags)
}

type connUDPIPv6 struct {
	connUDPBase
	pconn *ipv6.PacketConn
}

func (c *connUDPIPv6) ReadBatch(msgs Messages) (int, error) {
	return c.pconn.ReadBatch(msgs, readFlags)
}

func (c *connUDPIPv6) WriteBatch(msgs Messages, flags int) (int, error) {
	return c.pconn.WriteBatch(msgs, flags)
}

type connUDPBase struct {
	conn   *net.UDPConn
	Listen netip.AddrPort
	Remote netip.AddrPort
}

func (cc *connUDPBase) initConnUDP(
	network string,
	laddr, raddr netip.AddrPort,
	cfg *Config,
) error {
	var c *net.UDPConn
	var err error
	if !raddr.IsValid() {
		if c, err = net.ListenUDP(network, net.UDPAddrFromAddrPort(laddr)); err != nil {
			return serrors.Wrap("listening on socket", err,
				"network", network, "listen", laddr)
		}
	} else {
		if c, err = net.DialUDP(
			network,
			net.UDPAddrFromAddrPort(laddr),
			net.UDPAddrFromAddrPort(raddr),
		); err != nil {
			return serrors.Wrap("setting up connection", err,
				"network", network, "listen", laddr, "remote", raddr)
		}
	}
	if cfg.SendBufferSize != 0 {
		if err := c.SetWriteBuffer(cfg.SendBufferSize); err != nil {
			c.Close()
			return serrors.Wrap("setting send buffer size", err,
				"listen", laddr, "remote", raddr)
		}
		checkBufferSize(c, "send", syscall.SO_SNDBUF, cfg.SendBufferSize)
	}
	if cfg.ReceiveBufferSize != 0 {
		if err := c.SetReadBuffer(cfg.ReceiveBufferSize); err != nil {
			c.Close()
			return serrors.Wrap("setting receive buffer size", err,
				"listen", laddr, "remote", raddr)
		}
		checkBufferSize(c, "receive", syscall.SO_RCVBUF, cfg.ReceiveBufferSize)
	}
	cc.conn = c
	cc.Listen = c.LocalAddr().(*net.UDPAddr).AddrPort()
	cc.Remote = raddr
	return nil
}

// checkBufferSize logs if the kernel granted less than requested. The kernel
// doubles the requested value and reports the doubled value.
func checkBufferSize(c *net.UDPConn, name string, opt, target int) {
	after, err := sockctrl.GetsockoptInt(c, syscall.SOL_SOCKET, opt)
	if err != nil {
		log.Debug("Cannot read socket buffer size", "buffer", name, "err", err)
		return
	}
	if after/2 < target {
		log.Info("Socket buffer size smaller than requested",
			"buffer", name, "expected", target, "actual", after/2)
	}
}

func (c *connUDPBase) Write(b []byte) (int, error) {
	return c.conn.Write(b)
}

func (c *connUDPBase) LocalAddr() netip.AddrPort {
	return c.Listen
}

func (c *connUDPBase) RemoteAddr() netip.AddrPort {
	return c.Remote
}

func (c *connUDPBase) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *connUDPBase) Close() error {
	return c.conn.Close()
}
