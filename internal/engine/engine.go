// Package engine implements the Bellman-Ford relaxation with next-hop
// adoption that drives routing table convergence.
package engine

import (
	"github.com/r2northstar/dvrouted/internal/neighbor"
	"github.com/r2northstar/dvrouted/internal/rttable"
)

// Engine mutates a routing table in response to received announcements and
// local link-cost changes. It is not internally synchronized; the daemon's
// supervisor must hold its single mutex across each call.
type Engine struct {
	selfID int
	table  *rttable.Table
	nbr    *neighbor.Registry
}

func New(selfID int, table *rttable.Table, nbr *neighbor.Registry) *Engine {
	return &Engine{selfID: selfID, table: table, nbr: nbr}
}

// Apply relaxes the table against an announcement of entries from senderID.
// It returns false without mutating anything if senderID isn't a live
// neighbor (the datagram is still counted as received by the caller; see
// spec 4.F). It reports whether any route changed.
func (e *Engine) Apply(senderID int, entries map[int]float64) bool {
	linkCost, ok := e.nbr.Cost(senderID)
	if !ok || linkCost >= rttable.Infinity {
		return false
	}

	changed := false
	for dest, advertised := range entries {
		if dest == e.selfID {
			continue
		}
		candidate := rttable.AddCost(linkCost, advertised)

		cur, known := e.table.Get(dest)
		if !known {
			e.table.Insert(dest)
			cur, _ = e.table.Get(dest)
		}

		switch {
		case candidate < cur.Cost:
			// Improvement: a strictly better path was found.
			e.table.Update(dest, senderID, candidate)
			changed = true
		case cur.NextHop == senderID && candidate != cur.Cost:
			// Forced refresh: our current path is via this sender, and its
			// advertised cost moved (including to infinity) — we must
			// follow, or we'd keep routing through a path the sender no
			// longer has.
			e.table.Update(dest, senderID, candidate)
			changed = true
		default:
			// candidate == cur.Cost: tie goes to the existing next hop.
			// This keeps routes sticky and avoids oscillation.
		}
	}
	return changed
}

// OnLinkCostChange runs the local relaxation required after the link cost to
// neighbor changes (operator update/disable, or a timeout sweep). The
// registry's cost for neighbor must already reflect the new value when this
// is called.
func (e *Engine) OnLinkCostChange(neighborID int) {
	cost, ok := e.nbr.Cost(neighborID)
	if !ok {
		return
	}
	if cost >= rttable.Infinity {
		e.table.InvalidateVia(neighborID)
		return
	}
	// The last advertised cost from neighborID isn't retained, so routes
	// through it besides the direct link are left for its next
	// announcement to correct; only the direct entry can be fixed locally.
	e.table.ClampVia(neighborID, cost)
}
