// Package netutil provides small optional helpers around the UDP socket
// that aren't part of the core wire protocol.
package netutil

import (
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// TTLReader wraps a UDP connection to additionally report the received
// datagram's IP TTL, for debug-level diagnosis of single-hop drops (e.g. a
// neighbor behind a router that decrements TTL unexpectedly). This has no
// effect on routing decisions; it's purely an annotation for logs.
type TTLReader struct {
	pc *ipv4.PacketConn
}

// NewTTLReader enables TTL reporting on conn. Safe to ignore the returned
// error and skip TTL logging entirely (ipv4.PacketConn support is platform
// dependent).
func NewTTLReader(conn *net.UDPConn) (*TTLReader, error) {
	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagTTL, true); err != nil {
		return nil, err
	}
	return &TTLReader{pc: pc}, nil
}

// ReadFrom reads one datagram, returning its source and TTL. ttl is -1 if
// the platform didn't report one.
func (t *TTLReader) ReadFrom(buf []byte) (n int, src net.Addr, ttl int, err error) {
	n, cm, src, err := t.pc.ReadFrom(buf)
	if err != nil {
		return n, src, -1, err
	}
	if cm == nil {
		return n, src, -1, nil
	}
	return n, src, cm.TTL, nil
}

// SetReadDeadline forwards to the underlying connection, so the receiver
// task's bounded-poll contract (spec 5) still holds when TTL reporting is
// enabled.
func (t *TTLReader) SetReadDeadline(deadline time.Time) error {
	return t.pc.SetReadDeadline(deadline)
}
