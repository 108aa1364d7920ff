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

package xtest

import (
	"encoding/binary"
	"net"
	"net/netip"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"
)

// GTP-U header flags.
const (
	GTPFlagE  = 0x04
	GTPFlagS  = 0x02
	GTPFlagPN = 0x01

	gtpVersionPT = 0x30
	gtpTPDU      = 0xff
	gtpPort      = 2152
)

// GTP describes a GTP-U header and its payload.
type GTP struct {
	// Flags are the E, S and PN bits. Version 1 and the protocol type bit are
	// always set.
	Flags byte
	TEID  uint32
	// Optional holds the bytes between the mandatory header and the payload:
	// the optional fields and the extension headers.
	Optional []byte
	Payload  []byte
	// Length overrides the length field if not zero. By default it is the
	// length of Optional and Payload.
	Length uint16
}

// Bytes serializes the header followed by the optional bytes and the payload.
func (g GTP) Bytes() []byte {
	length := g.Length
	if length == 0 {
		length = uint16(len(g.Optional) + len(g.Payload))
	}
	b := make([]byte, 8, 8+len(g.Optional)+len(g.Payload))
	b[0] = gtpVersionPT | g.Flags
	b[1] = gtpTPDU
	binary.BigEndian.PutUint16(b[2:4], length)
	binary.BigEndian.PutUint32(b[4:8], g.TEID)
	b = append(b, g.Optional...)
	return append(b, g.Payload...)
}

// UDPFrame serializes an Ethernet/IPv4/UDP frame from src to dst carrying
// payload, with fixed lengths and checksums.
func UDPFrame(t testing.TB, src, dst netip.Addr, port uint16, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP(src.AsSlice()),
		DstIP:    net.IP(dst.AsSlice()),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(port),
		DstPort: layers.UDPPort(port),
	}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp,
		gopacket.Payload(payload)))
	return buf.Bytes()
}

// GTPFrame serializes a GTP-U packet from src to dst in an Ethernet frame.
func GTPFrame(t testing.TB, src, dst netip.Addr, g GTP) []byte {
	t.Helper()
	return UDPFrame(t, src, dst, gtpPort, g.Bytes())
}
