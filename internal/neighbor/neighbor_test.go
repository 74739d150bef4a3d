package neighbor

import (
	"net/netip"
	"testing"
	"time"

	"github.com/r2northstar/dvrouted/internal/rttable"
)

func mustAddr(s string) netip.AddrPort {
	a, err := netip.ParseAddrPort(s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestRegistryBasics(t *testing.T) {
	now := time.Now()
	r := New(map[int]netip.AddrPort{
		2: mustAddr("127.0.0.1:9002"),
		3: mustAddr("127.0.0.1:9003"),
	}, map[int]float64{2: 5, 3: 8}, now)

	if !r.IsNeighbor(2) || r.IsNeighbor(4) {
		t.Fatalf("IsNeighbor wrong")
	}

	c, ok := r.Cost(2)
	if !ok || c != 5 {
		t.Fatalf("Cost(2) = %v, %v", c, ok)
	}

	if got := r.AllLive(); len(got) != 2 {
		t.Fatalf("AllLive() = %v, want 2 live neighbors", got)
	}

	r.SetCost(2, rttable.Infinity)
	if got := r.AllLive(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("AllLive() after SetCost = %v", got)
	}
}

func TestTouchUpdatesLastHeard(t *testing.T) {
	t0 := time.Now()
	r := New(map[int]netip.AddrPort{2: mustAddr("127.0.0.1:9002")}, map[int]float64{2: 5}, t0)

	t1 := t0.Add(time.Minute)
	r.Touch(2, t1)

	lh, ok := r.LastHeard(2)
	if !ok || !lh.Equal(t1) {
		t.Fatalf("LastHeard = %v, want %v", lh, t1)
	}
}

func TestLiveRequiresFiniteCost(t *testing.T) {
	i := Info{LinkCost: rttable.Infinity}
	if i.Live() {
		t.Fatalf("Info with infinite cost reported live")
	}
	i.LinkCost = 1
	if !i.Live() {
		t.Fatalf("Info with finite cost reported dead")
	}
}
