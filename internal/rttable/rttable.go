// Package rttable implements the routing table kept by a distance vector
// node: a destination-indexed map of the best known next hop and cost.
package rttable

import (
	"math"
	"sort"
	"time"
)

// Infinity is the sentinel cost for an unreachable destination. It threads
// through encode/decode and arithmetic without degrading to a finite value;
// see [wire.Encode]/[wire.Decode] for the wire-level counterpart (0xFFFF).
var Infinity = math.Inf(1)

// NoNextHop marks a route with no known next hop. Real server IDs are
// positive, so zero is never a valid next hop.
const NoNextHop = 0

// AddCost adds two costs, propagating Infinity (the "absorbing under
// addition" rule from the spec's glossary).
func AddCost(a, b float64) float64 {
	if a >= Infinity || b >= Infinity {
		return Infinity
	}
	return a + b
}

// Entry is one row of the routing table.
type Entry struct {
	Dest       int
	NextHop    int // NoNextHop if Cost is Infinity
	Cost       float64
	LastUpdate time.Time
}

func (e Entry) Reachable() bool {
	return e.Cost < Infinity
}

// Table is the destination-indexed routing table for one node. It is not
// internally synchronized: callers (the daemon's supervisor) serialize
// access with a single mutex, the same discipline the teacher uses for
// nspkt.Listener's maps.
type Table struct {
	selfID int
	routes map[int]Entry
}

// New creates a table for selfID, seeded with a direct route to every peer
// in peerIDs. Peers present in neighborCost start with that link's cost and
// themselves as next hop; all other peers start unreachable.
func New(selfID int, peerIDs []int, neighborCost map[int]float64) *Table {
	t := &Table{
		selfID: selfID,
		routes: make(map[int]Entry, len(peerIDs)+1),
	}
	t.routes[selfID] = Entry{Dest: selfID, NextHop: selfID, Cost: 0}
	for _, id := range peerIDs {
		if id == selfID {
			continue
		}
		if c, ok := neighborCost[id]; ok {
			t.routes[id] = Entry{Dest: id, NextHop: id, Cost: c, LastUpdate: time.Now()}
		} else {
			t.routes[id] = Entry{Dest: id, NextHop: NoNextHop, Cost: Infinity}
		}
	}
	return t
}

// SelfID returns the ID of the node that owns this table.
func (t *Table) SelfID() int {
	return t.selfID
}

// Get returns the current entry for dest, if any.
func (t *Table) Get(dest int) (Entry, bool) {
	e, ok := t.routes[dest]
	return e, ok
}

// Update sets dest's route, stamping LastUpdate to now. An infinite cost
// clears the next hop to NoNextHop. The self entry is never mutated by this
// method; callers must not call it for t.selfID.
func (t *Table) Update(dest, nextHop int, cost float64) {
	if dest == t.selfID {
		return
	}
	if cost >= Infinity {
		nextHop = NoNextHop
	}
	t.routes[dest] = Entry{Dest: dest, NextHop: nextHop, Cost: cost, LastUpdate: time.Now()}
}

// Insert adds a previously-unseen destination with no known path.
func (t *Table) Insert(dest int) {
	if _, ok := t.routes[dest]; !ok {
		t.routes[dest] = Entry{Dest: dest, NextHop: NoNextHop, Cost: Infinity}
	}
}

// InvalidateVia marks every route whose next hop is neighbor as unreachable.
// Used when a link to neighbor goes down (operator disable, or timeout).
func (t *Table) InvalidateVia(neighbor int) {
	for dest, e := range t.routes {
		if dest == t.selfID {
			continue
		}
		if e.NextHop == neighbor {
			e.Cost = Infinity
			e.NextHop = NoNextHop
			e.LastUpdate = time.Now()
			t.routes[dest] = e
		}
	}
}

// ClampVia lowers (never raises) the cost of the route to neighbor itself,
// used by the link-cost-mutation rule in the update engine: when a
// neighbor's link cost drops below the route's cost, the route to it moves
// onto the direct link at the new cost. A rise in link cost leaves the route
// unchanged until the next announcement corrects it.
func (t *Table) ClampVia(neighbor int, linkCost float64) {
	e, ok := t.routes[neighbor]
	if !ok {
		return
	}
	if c := math.Min(e.Cost, linkCost); c != e.Cost {
		e.Cost = c
		e.NextHop = neighbor
		e.LastUpdate = time.Now()
		t.routes[neighbor] = e
	}
}

// Snapshot returns a copy of every entry, sorted by destination ID.
func (t *Table) Snapshot() []Entry {
	out := make([]Entry, 0, len(t.routes))
	for _, e := range t.routes {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dest < out[j].Dest })
	return out
}

// Dests returns the set of known destination IDs.
func (t *Table) Dests() []int {
	out := make([]int, 0, len(t.routes))
	for d := range t.routes {
		out = append(out, d)
	}
	return out
}
