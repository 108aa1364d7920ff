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

package steer

// NewPacket returns a packet with its own buffer holding a copy of raw.
func NewPacket(raw []byte, ingress uint32) *Packet {
	p := (&Packet{}).init(&[bufSize]byte{})
	p.RawPacket = p.RawPacket[:copy(p.RawPacket, raw)]
	p.Ingress = ingress
	return p
}

// DropReason returns the reason the packet was dropped, or "".
func (p *Packet) DropReason() string {
	return p.drop.String()
}

// ProcessBatch runs the steering passes of the first worker on batch, at time
// now, with the published pipeline.
func (d *DataPlane) ProcessBatch(batch []*Packet, now int64) {
	d.workers[0].processBatch(d.pipeline.Load(), batch, now)
}

// Forward forwards a processed batch. Dropped packets are returned to a pool
// that is created if the data plane is not running.
func (d *DataPlane) Forward(batch []*Packet) {
	if d.packetPool == nil {
		d.packetPool = make(chan *Packet, len(batch))
	}
	d.forward(batch)
}
