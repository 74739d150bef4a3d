// Package neighbor implements the per-node neighbor registry: the set of
// directly adjacent nodes, their configured link cost, and the last time
// each was heard from.
package neighbor

import (
	"net/netip"
	"time"

	"github.com/r2northstar/dvrouted/internal/rttable"
)

// Info is one neighbor's current state.
type Info struct {
	Addr      netip.AddrPort
	LinkCost  float64
	LastHeard time.Time
}

func (i Info) Live() bool {
	return i.LinkCost < rttable.Infinity
}

// Registry is the fixed-at-startup set of neighbors for one node. Keys never
// change after construction; only LinkCost and LastHeard mutate.
type Registry struct {
	m map[int]*Info
}

// New creates a registry from an initial id -> (addr, cost) mapping. now is
// used to seed LastHeard so a freshly started node doesn't immediately look
// timed out.
func New(addrs map[int]netip.AddrPort, costs map[int]float64, now time.Time) *Registry {
	r := &Registry{m: make(map[int]*Info, len(addrs))}
	for id, addr := range addrs {
		r.m[id] = &Info{
			Addr:      addr,
			LinkCost:  costs[id],
			LastHeard: now,
		}
	}
	return r
}

// IsNeighbor reports whether id is a configured neighbor.
func (r *Registry) IsNeighbor(id int) bool {
	_, ok := r.m[id]
	return ok
}

// Cost returns the current link cost to id.
func (r *Registry) Cost(id int) (float64, bool) {
	i, ok := r.m[id]
	if !ok {
		return 0, false
	}
	return i.LinkCost, true
}

// SetCost changes the link cost to id, if id is a neighbor.
func (r *Registry) SetCost(id int, cost float64) bool {
	i, ok := r.m[id]
	if !ok {
		return false
	}
	i.LinkCost = cost
	return true
}

// Touch records that an announcement was just received from id.
func (r *Registry) Touch(id int, now time.Time) {
	if i, ok := r.m[id]; ok {
		i.LastHeard = now
	}
}

// AddrOf returns the socket address of neighbor id.
func (r *Registry) AddrOf(id int) (netip.AddrPort, bool) {
	i, ok := r.m[id]
	if !ok {
		return netip.AddrPort{}, false
	}
	return i.Addr, true
}

// AllLive returns the IDs of neighbors whose link cost is finite.
func (r *Registry) AllLive() []int {
	var out []int
	for id, i := range r.m {
		if i.Live() {
			out = append(out, id)
		}
	}
	return out
}

// IDs returns every configured neighbor ID.
func (r *Registry) IDs() []int {
	out := make([]int, 0, len(r.m))
	for id := range r.m {
		out = append(out, id)
	}
	return out
}

// Snapshot returns a copy of id -> Info for every neighbor.
func (r *Registry) Snapshot() map[int]Info {
	out := make(map[int]Info, len(r.m))
	for id, i := range r.m {
		out[id] = *i
	}
	return out
}

// LastHeard returns when id was last heard from.
func (r *Registry) LastHeard(id int) (time.Time, bool) {
	i, ok := r.m[id]
	if !ok {
		return time.Time{}, false
	}
	return i.LastHeard, true
}
