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

// This module defines the interfaces between the data plane and the underlay network
// implementations.

package steer

import (
	"context"
	"net/netip"
)

// Link is the data plane's idea of an interface: a point to point
// connection that packets leave through. The underlay implementation decides
// how packets are actually sent.
type Link interface {
	IfID() uint32
	IsUp() bool
	// Send queues the packet for transmission. It returns false, without
	// taking ownership of the packet, if the queue is full.
	Send(p *Packet) bool
}

// UnderlayProvider is a provider of connectivity over some underlay implementation.
type UnderlayProvider interface {
	// NumConnections returns the current number of configured connections.
	NumConnections() int

	// Start puts the provider in the running state. In that state, the provider delivers
	// incoming packets to the processor queues and sends the packets queued on its links.
	// Packets are taken from and returned to pool. Packets received on interface ifID are
	// always delivered to procQs[ifID%len(procQs)], so that one worker sees all packets
	// of an interface in order.
	Start(ctx context.Context, pool chan *Packet, procQs []chan *Packet)

	// Stop puts the provider in the stopped state. The provider is fully stopped when this
	// method returns.
	Stop()

	// NewLink returns a link for interface ifID that exchanges packets between the local
	// and the remote underlay address.
	NewLink(
		ifID uint32,
		local netip.AddrPort,
		remote netip.AddrPort,
		qSize int,
		metrics InterfaceMetrics,
	) (Link, error)
}
