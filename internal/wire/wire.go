// Package wire implements the on-the-wire distance vector announcement
// datagram: a fixed 16-bit-field binary layout carried over UDP.
//
//	offset  size  field
//	  0      2    N   (number of entries)
//	  2      2    sender_port
//	  4      4    sender_ip   (4 octets)
//	then N x 12 bytes:
//	  +0     4    dest_ip
//	  +4     2    dest_port
//	  +6     2    padding (must be 0 on emit; ignored on receive)
//	  +8     2    dest_id
//	  +10    2    cost        (0xFFFF encodes infinity)
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/r2northstar/dvrouted/internal/rttable"
)

const (
	headerSize = 8
	entrySize  = 12

	// infCode is the wire sentinel for an unreachable destination.
	infCode = 0xFFFF
	// maxCost is the largest cost representable on the wire.
	maxCost = 0xFFFE
)

var (
	// ErrShortBuffer is returned when data is too small to hold its declared
	// entries, or smaller than a header.
	ErrShortBuffer = errors.New("wire: datagram too short")
	// ErrUnknownSender is returned when the sender's (ip, port) isn't in the
	// peer directory.
	ErrUnknownSender = errors.New("wire: unknown sender address")
	// ErrCostOutOfRange is returned by Encode if a finite cost or a
	// destination ID doesn't fit in the wire's 16-bit field.
	ErrCostOutOfRange = errors.New("wire: cost out of range")
)

// Entry is one advertised (destination, cost) pair for Encode's input.
type Entry struct {
	Dest int
	Cost float64
}

// Encode builds an announcement datagram advertising entries, sent from
// selfAddr. peers resolves each entry's destination ID to the address
// carried in its wire record (this is cosmetic: decode only uses the
// header's sender address, never the per-entry address).
func Encode(selfAddr netip.AddrPort, peers map[int]netip.AddrPort, entries []Entry) ([]byte, error) {
	buf := make([]byte, headerSize+entrySize*len(entries))

	binary.BigEndian.PutUint16(buf[0:2], uint16(len(entries)))
	binary.BigEndian.PutUint16(buf[2:4], selfAddr.Port())
	if err := putAddr(buf[4:8], selfAddr.Addr()); err != nil {
		return nil, fmt.Errorf("encode sender address: %w", err)
	}

	for i, e := range entries {
		off := headerSize + i*entrySize
		addr := peers[e.Dest] // zero value is fine; decode never reads it
		if err := putAddr(buf[off:off+4], addr.Addr()); err != nil {
			return nil, fmt.Errorf("encode entry %d address: %w", e.Dest, err)
		}
		binary.BigEndian.PutUint16(buf[off+4:off+6], addr.Port())
		binary.BigEndian.PutUint16(buf[off+6:off+8], 0) // padding

		if e.Dest < 0 || e.Dest > 0xFFFF {
			return nil, fmt.Errorf("%w: dest id %d", ErrCostOutOfRange, e.Dest)
		}
		binary.BigEndian.PutUint16(buf[off+8:off+10], uint16(e.Dest))

		code, err := encodeCost(e.Cost)
		if err != nil {
			return nil, err
		}
		binary.BigEndian.PutUint16(buf[off+10:off+12], code)
	}
	return buf, nil
}

func encodeCost(cost float64) (uint16, error) {
	if cost >= rttable.Infinity {
		return infCode, nil
	}
	if cost < 0 || cost > maxCost {
		return 0, fmt.Errorf("%w: %v", ErrCostOutOfRange, cost)
	}
	return uint16(cost), nil
}

func putAddr(dst []byte, addr netip.Addr) error {
	if !addr.IsValid() {
		return nil
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return fmt.Errorf("address %v is not IPv4", addr)
	}
	b := addr.As4()
	copy(dst, b[:])
	return nil
}

// Decode parses a received datagram. peerByAddr resolves the sender's
// address to its server ID; if the sender isn't recognized, the datagram is
// dropped per spec (ErrUnknownSender). The returned map has one entry per
// advertised destination.
func Decode(data []byte, peerByAddr map[netip.AddrPort]int) (senderID int, entries map[int]float64, err error) {
	if len(data) < headerSize {
		return 0, nil, ErrShortBuffer
	}

	n := binary.BigEndian.Uint16(data[0:2])
	senderPort := binary.BigEndian.Uint16(data[2:4])
	senderIP := data[4:8]

	want := headerSize + int(n)*entrySize
	if len(data) < want {
		return 0, nil, ErrShortBuffer
	}

	senderAddr := netip.AddrPortFrom(netip.AddrFrom4([4]byte(senderIP)), senderPort)
	id, ok := peerByAddr[senderAddr]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnknownSender, senderAddr)
	}

	entries = make(map[int]float64, n)
	for i := 0; i < int(n); i++ {
		off := headerSize + i*entrySize
		destID := int(binary.BigEndian.Uint16(data[off+8 : off+10]))
		code := binary.BigEndian.Uint16(data[off+10 : off+12])

		var cost float64
		if code == infCode {
			cost = rttable.Infinity
		} else {
			cost = float64(code)
		}
		entries[destID] = cost
	}
	return id, entries, nil
}

// BuildPeerIndex inverts a peer directory for use with Decode.
func BuildPeerIndex(peers map[int]netip.AddrPort) map[netip.AddrPort]int {
	idx := make(map[netip.AddrPort]int, len(peers))
	for id, addr := range peers {
		idx[addr] = id
	}
	return idx
}
