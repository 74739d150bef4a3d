package engine

import (
	"net/netip"
	"testing"
	"time"

	"github.com/r2northstar/dvrouted/internal/neighbor"
	"github.com/r2northstar/dvrouted/internal/rttable"
)

func mustAddr(s string) netip.AddrPort {
	a, err := netip.ParseAddrPort(s)
	if err != nil {
		panic(err)
	}
	return a
}

func newTriangleNode1(t *testing.T) (*rttable.Table, *neighbor.Registry, *Engine) {
	t.Helper()
	table := rttable.New(1, []int{1, 2, 3}, map[int]float64{2: 5, 3: 8})
	nbr := neighbor.New(map[int]netip.AddrPort{
		2: mustAddr("127.0.0.1:9002"),
		3: mustAddr("127.0.0.1:9003"),
	}, map[int]float64{2: 5, 3: 8}, time.Now())
	return table, nbr, New(1, table, nbr)
}

// Scenario 1 (spec 8): direct route to 3 (cost 8) ties with 1->2->3 (5+3=8);
// tie must not replace the already-set direct next hop.
func TestTieKeepsExistingNextHop(t *testing.T) {
	table, _, e := newTriangleNode1(t)

	e.Apply(2, map[int]float64{1: 0, 2: 0, 3: 3})

	e3, _ := table.Get(3)
	if e3.Cost != 8 || e3.NextHop != 3 {
		t.Fatalf("route to 3 = %+v, want next hop 3 (direct) unchanged on tie", e3)
	}
}

func TestImprovementAdoptsNextHop(t *testing.T) {
	table, _, e := newTriangleNode1(t)

	// 2 now offers 3 at cost 1, so 1->2->3 = 5+1 = 6 < 8.
	e.Apply(2, map[int]float64{3: 1})

	e3, _ := table.Get(3)
	if e3.Cost != 6 || e3.NextHop != 2 {
		t.Fatalf("route to 3 = %+v, want cost 6 via 2", e3)
	}
}

func TestForcedRefreshFollowsCurrentNextHop(t *testing.T) {
	table, _, e := newTriangleNode1(t)
	e.Apply(2, map[int]float64{3: 1}) // adopt 2 as next hop to 3, cost 6

	// 2's cost to 3 rises; since we're routing through 2, we must follow even
	// though nothing else beats our current path.
	e.Apply(2, map[int]float64{3: 4})

	e3, _ := table.Get(3)
	if e3.Cost != 9 || e3.NextHop != 2 {
		t.Fatalf("route to 3 = %+v, want forced refresh to cost 9 via 2", e3)
	}
}

func TestIdempotentAnnouncement(t *testing.T) {
	table, _, e := newTriangleNode1(t)
	ann := map[int]float64{1: 0, 2: 0, 3: 3}

	e.Apply(2, ann)
	before := table.Snapshot()

	e.Apply(2, ann)
	after := table.Snapshot()

	if len(before) != len(after) {
		t.Fatalf("snapshot length changed")
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("route %d changed on repeat announcement: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestApplyIgnoresDeadNeighbor(t *testing.T) {
	table, nbr, e := newTriangleNode1(t)
	nbr.SetCost(2, rttable.Infinity)

	ok := e.Apply(2, map[int]float64{3: 0})
	if ok {
		t.Fatalf("Apply reported a change from a dead neighbor")
	}
	e3, _ := table.Get(3)
	if e3.Cost != 8 {
		t.Fatalf("route to 3 mutated by dead neighbor: %+v", e3)
	}
}

func TestOnLinkCostChangeToInfinityInvalidatesRoutes(t *testing.T) {
	table, nbr, e := newTriangleNode1(t)
	e.Apply(2, map[int]float64{3: 1}) // route to 3 now via 2

	nbr.SetCost(2, rttable.Infinity)
	e.OnLinkCostChange(2)

	e2, _ := table.Get(2)
	e3, _ := table.Get(3)
	if e2.Reachable() || e3.Reachable() {
		t.Fatalf("routes via 2 not invalidated: e2=%+v e3=%+v", e2, e3)
	}
}

func TestOnLinkCostChangeClampsDirectRoute(t *testing.T) {
	table, nbr, e := newTriangleNode1(t)

	nbr.SetCost(2, 2) // link to 2 got cheaper
	e.OnLinkCostChange(2)

	e2, _ := table.Get(2)
	if e2.Cost != 2 {
		t.Fatalf("direct route to 2 not clamped: %+v", e2)
	}
}

func TestNewDestinationInserted(t *testing.T) {
	table, _, e := newTriangleNode1(t)
	e.Apply(2, map[int]float64{4: 1})

	e4, ok := table.Get(4)
	if !ok || e4.Cost != 6 || e4.NextHop != 2 {
		t.Fatalf("new destination not inserted correctly: %+v, ok=%v", e4, ok)
	}
}
