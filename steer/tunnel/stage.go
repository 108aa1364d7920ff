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

package tunnel

import (
	"encoding/binary"
	"strings"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
)

// The stage reads the headers at fixed offsets: an untagged Ethernet header,
// an IPv4 header without options and a UDP header precede the GTP-U header.
const (
	ethernetLen   = 14
	ipv4Len       = 20
	udpLen        = 8
	ipv4SrcOffset = ethernetLen + 12
	// GTPOffset is the offset of the GTP-U header in the frame.
	GTPOffset = ethernetLen + ipv4Len + udpLen
	// GTPHeaderLen is the length of the mandatory GTP-U header.
	GTPHeaderLen = 8

	flagE = 0x04
	flagS = 0x02
)

// LengthMode selects how the payload length of a tunnel packet is computed.
type LengthMode int

const (
	// LengthLegacy adjusts the GTP-U length field by a fixed amount per
	// extension flag. It is the default.
	LengthLegacy LengthMode = iota
	// LengthExact decodes the optional fields and the extension header chain
	// and subtracts their length.
	LengthExact
)

func (m LengthMode) String() string {
	switch m {
	case LengthLegacy:
		return "legacy"
	case LengthExact:
		return "exact"
	default:
		return "unknown"
	}
}

// ParseLengthMode parses the textual representation of a LengthMode.
func ParseLengthMode(s string) (LengthMode, error) {
	switch strings.ToLower(s) {
	case "", "legacy":
		return LengthLegacy, nil
	case "exact":
		return LengthExact, nil
	default:
		return 0, serrors.New("unknown tunnel length mode", "mode", s)
	}
}

// Outcome is the result of attributing a packet.
type Outcome uint8

const (
	Attributed Outcome = iota
	NoTunnel
	Malformed
)

// Stage attributes packets to tunnels. A Stage holds decoding state and must
// not be shared between workers.
type Stage struct {
	Mode LengthMode
	gtp  layers.GTPv1U
}

// Attribute looks up the tunnel of the frame pkt in t and, if it is known,
// adds the packet and its payload length to the tunnel counters. The frame is
// never modified.
func (s *Stage) Attribute(t *Table, pkt []byte) (*Record, Outcome) {
	if len(pkt) < GTPOffset+GTPHeaderLen {
		return nil, Malformed
	}
	var k Key
	copy(k.Src[:], pkt[ipv4SrcOffset:ipv4SrcOffset+4])
	k.TEID = binary.BigEndian.Uint32(pkt[GTPOffset+4:])
	rec, ok := t.Lookup(k)
	if !ok {
		return nil, NoTunnel
	}
	var n uint64
	switch s.Mode {
	case LengthExact:
		if n, ok = s.exactPayloadLen(pkt[GTPOffset:]); !ok {
			return nil, Malformed
		}
	default:
		n = LegacyPayloadLen(pkt[GTPOffset:])
	}
	rec.Add(1, n)
	return rec, Attributed
}

// LegacyPayloadLen computes the payload length of the GTP-U header gtp the
// way tunnel accounting always has: the E flag subtracts 16 and the S flag
// adds 8 to the length field, independently of each other. The PN flag is
// ignored.
//
// This is only consistent for packets with at most one of these flags set. A
// packet with both E and S set is counted with length-8, which corresponds to
// no actual header layout. The arithmetic is kept because existing accounting
// depends on it; LengthExact is the corrected computation.
func LegacyPayloadLen(gtp []byte) uint64 {
	flags := gtp[0]
	n := int(binary.BigEndian.Uint16(gtp[2:4]))
	n -= int(flags&flagE) * 4
	n += int(flags&flagS) * 4
	return uint64(max(n, 0))
}

func (s *Stage) exactPayloadLen(gtp []byte) (uint64, bool) {
	s.gtp.GTPExtensionHeaders = s.gtp.GTPExtensionHeaders[:0]
	if err := s.gtp.DecodeFromBytes(gtp, gopacket.NilDecodeFeedback); err != nil {
		return 0, false
	}
	hdr := len(s.gtp.Contents) - GTPHeaderLen
	if int(s.gtp.MessageLength) < hdr {
		return 0, false
	}
	return uint64(int(s.gtp.MessageLength) - hdr), true
}
