package wire

import (
	"net/netip"
	"testing"

	"github.com/r2northstar/dvrouted/internal/rttable"
)

func mustAddr(s string) netip.AddrPort {
	a, err := netip.ParseAddrPort(s)
	if err != nil {
		panic(err)
	}
	return a
}

// TestRoundTrip exercises L1: decode(encode(rt, peers)) recovers the
// advertised dest->cost map and the sender ID.
func TestRoundTrip(t *testing.T) {
	self := mustAddr("127.0.0.1:9001")
	peers := map[int]netip.AddrPort{
		1: self,
		2: mustAddr("127.0.0.1:9002"),
		3: mustAddr("127.0.0.1:9003"),
	}
	entries := []Entry{
		{Dest: 1, Cost: 0},
		{Dest: 2, Cost: 5},
		{Dest: 3, Cost: rttable.Infinity},
	}

	buf, err := Encode(self, peers, entries)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	idx := BuildPeerIndex(peers)
	senderID, got, err := Decode(buf, idx)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if senderID != 1 {
		t.Fatalf("senderID = %d, want 1", senderID)
	}

	want := map[int]float64{1: 0, 2: 5, 3: rttable.Infinity}
	for d, c := range want {
		if got[d] != c {
			t.Fatalf("entry %d = %v, want %v", d, got[d], c)
		}
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	if _, _, err := Decode([]byte{0, 1, 2}, nil); err != ErrShortBuffer {
		t.Fatalf("err = %v, want ErrShortBuffer", err)
	}
}

func TestDecodeUnknownSender(t *testing.T) {
	self := mustAddr("127.0.0.1:9001")
	buf, err := Encode(self, map[int]netip.AddrPort{1: self}, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Empty peer index: no sender can resolve.
	if _, _, err := Decode(buf, map[netip.AddrPort]int{}); err == nil {
		t.Fatalf("expected ErrUnknownSender, got nil")
	}
}

func TestEncodeRejectsOutOfRangeCost(t *testing.T) {
	self := mustAddr("127.0.0.1:9001")
	_, err := Encode(self, nil, []Entry{{Dest: 2, Cost: 70000}})
	if err == nil {
		t.Fatalf("expected error for out-of-range cost")
	}
}

func TestEncodeRejectsNegativeCost(t *testing.T) {
	self := mustAddr("127.0.0.1:9001")
	_, err := Encode(self, nil, []Entry{{Dest: 2, Cost: -1}})
	if err == nil {
		t.Fatalf("expected error for negative cost")
	}
}
