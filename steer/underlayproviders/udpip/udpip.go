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

// Package udpip implements the UDP/IP underlay of the data plane. Every
// interface is a point to point link with its own connected UDP socket, a
// receiver goroutine and a sender goroutine.
package udpip

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/vnfsteer/vnfsteer/pkg/log"
	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
	"github.com/vnfsteer/vnfsteer/private/underlay/conn"
	"github.com/vnfsteer/vnfsteer/steer"
)

var (
	errDuplicateInterface = errors.New("duplicate interface")
	errInvalidAddress     = errors.New("invalid address")
	errStarted            = errors.New("provider already started")
)

// ConnOpener opens the socket of a link. It exists so that tests can replace
// the real sockets.
type ConnOpener interface {
	Open(local, remote netip.AddrPort, cfg *conn.Config) (conn.Conn, error)
}

type udpOpener struct{}

func (udpOpener) Open(local, remote netip.AddrPort, cfg *conn.Config) (conn.Conn, error) {
	return conn.New(local, remote, cfg)
}

// provider implements steer.UnderlayProvider.
type provider struct {
	mu         sync.Mutex // Prevents race between adding links and Start/Stop.
	batchSize  int
	connCfg    conn.Config
	connOpener ConnOpener
	links      map[uint32]*link
	started    bool
}

// New returns a provider that reads and writes up to batchSize packets per
// system call. Zero buffer sizes keep the system defaults.
func New(batchSize, receiveBufferSize, sendBufferSize int) steer.UnderlayProvider {
	return &provider{
		batchSize: batchSize,
		connCfg: conn.Config{
			ReceiveBufferSize: receiveBufferSize,
			SendBufferSize:    sendBufferSize,
		},
		connOpener: udpOpener{},
		links:      make(map[uint32]*link),
	}
}

// SetConnOpener installs the given opener. Only for use in unit tests.
func (u *provider) SetConnOpener(opener ConnOpener) {
	u.connOpener = opener
}

func (u *provider) NumConnections() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.links)
}

func (u *provider) NewLink(
	ifID uint32,
	local netip.AddrPort,
	remote netip.AddrPort,
	qSize int,
	metrics steer.InterfaceMetrics,
) (steer.Link, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.started {
		return nil, errStarted
	}
	if _, exists := u.links[ifID]; exists {
		return nil, serrors.JoinNoStack(errDuplicateInterface, nil, "interface", ifID)
	}
	if !local.IsValid() || !remote.IsValid() {
		return nil, serrors.JoinNoStack(errInvalidAddress, nil,
			"interface", ifID, "local", local, "remote", remote)
	}
	c, err := u.connOpener.Open(local, remote, &u.connCfg)
	if err != nil {
		return nil, serrors.Wrap("opening link", err, "interface", ifID)
	}
	l := &link{
		ifID:         ifID,
		conn:         c,
		queue:        make(chan *steer.Packet, qSize),
		metrics:      metrics,
		batchSize:    u.batchSize,
		done:         make(chan struct{}),
		receiverDone: make(chan struct{}),
		senderDone:   make(chan struct{}),
	}
	u.links[ifID] = l
	log.Debug("Link added", "interface", ifID, "local", c.LocalAddr(), "remote", remote)
	return l, nil
}

func (u *provider) Start(ctx context.Context, pool chan *steer.Packet, procQs []chan *steer.Packet) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.started {
		return
	}
	u.started = true
	for ifID, l := range u.links {
		l.start(pool, procQs[int(ifID)%len(procQs)])
	}
}

func (u *provider) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, l := range u.links {
		l.stop()
	}
}

// link is a point to point link over a connected UDP socket.
type link struct {
	ifID         uint32
	conn         conn.Conn
	queue        chan *steer.Packet
	metrics      steer.InterfaceMetrics
	batchSize    int
	running      atomic.Bool
	done         chan struct{}
	receiverDone chan struct{}
	senderDone   chan struct{}
}

func (l *link) IfID() uint32 {
	return l.ifID
}

func (l *link) IsUp() bool {
	return l.running.Load()
}

// Send queues p for transmission. It never blocks.
func (l *link) Send(p *steer.Packet) bool {
	select {
	case l.queue <- p:
		return true
	default:
		return false
	}
}

func (l *link) start(pool chan *steer.Packet, procQ chan *steer.Packet) {
	if l.running.Swap(true) {
		return
	}
	l.metrics.SetUp(true)
	go func() {
		defer log.HandlePanic()
		l.receive(pool, procQ)
		close(l.receiverDone)
	}()
	go func() {
		defer log.HandlePanic()
		l.send(pool)
		close(l.senderDone)
	}()
}

func (l *link) stop() {
	if !l.running.Swap(false) {
		l.conn.Close()
		return
	}
	l.metrics.SetUp(false)
	close(l.done)
	l.conn.Close() // Unblock receiver
	<-l.receiverDone
	<-l.senderDone
}

// receive reads batches from the socket and delivers them to procQ. A packet
// that does not fit in procQ is counted and its buffer reused.
func (l *link) receive(pool chan *steer.Packet, procQ chan *steer.Packet) {
	msgs := conn.NewReadMessages(l.batchSize)
	pkts := make([]*steer.Packet, l.batchSize)
	defer func() {
		for _, p := range pkts {
			if p != nil {
				pool <- p
			}
		}
	}()

	for l.running.Load() {
		for i := range pkts {
			if pkts[i] == nil {
				select {
				case pkts[i] = <-pool:
				case <-l.done:
					return
				}
			}
			pkts[i].Reset()
			msgs[i].Buffers[0] = pkts[i].RawPacket
		}
		n, err := l.conn.ReadBatch(msgs)
		if err != nil {
			if !l.running.Load() {
				return
			}
			log.Debug("Error reading from link", "interface", l.ifID, "err", err)
			continue
		}
		for i, m := range msgs[:n] {
			p := pkts[i]
			p.RawPacket = p.RawPacket[:m.N]
			p.Ingress = l.ifID
			l.metrics.Input(m.N)
			select {
			case procQ <- p:
				pkts[i] = nil
			default:
				l.metrics.BusyProcessor(m.N)
			}
		}
	}
}

// send writes the queued packets in batches and returns them to pool.
func (l *link) send(pool chan *steer.Packet) {
	msgs := conn.NewWriteMessages(l.batchSize)
	pkts := make([]*steer.Packet, 0, l.batchSize)
	defer func() {
		for {
			select {
			case p := <-l.queue:
				pool <- p
			default:
				return
			}
		}
	}()

	for {
		pkts = pkts[:0]
		select {
		case p := <-l.queue:
			pkts = append(pkts, p)
		case <-l.done:
			return
		}
	fill:
		for len(pkts) < l.batchSize {
			select {
			case p := <-l.queue:
				pkts = append(pkts, p)
			default:
				break fill
			}
		}
		for i, p := range pkts {
			msgs[i].Buffers[0] = p.RawPacket
			msgs[i].Addr = nil
		}
		written := 0
		for written < len(pkts) {
			n, err := l.conn.WriteBatch(msgs[written:len(pkts)], 0)
			if err != nil {
				log.Debug("Error writing to link", "interface", l.ifID, "err", err)
				break
			}
			written += n
		}
		for i, p := range pkts {
			if i < written {
				l.metrics.Output(len(p.RawPacket))
			}
			pool <- p
		}
	}
}
