// Package topology loads the static network description consumed by the
// daemon at startup: this node's identity and address, the full peer
// directory, and the initial cost of each directly configured link.
//
// The file format is plain text:
//
//	num_servers
//	num_neighbors
//	id ip port          (repeated num_servers times)
//	a b cost            (repeated num_neighbors times, one incident edge)
//
// Exactly one of each link's two endpoints must be this node; the loader
// keeps that edge's cost and ignores edges that don't touch self.
package topology

import (
	"bufio"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
)

// ErrParse wraps any malformed topology file error.
var ErrParse = errors.New("topology: parse error")

// Topology is the fully resolved result of loading a topology file.
type Topology struct {
	SelfID       int
	SelfAddr     netip.AddrPort
	Peers        map[int]netip.AddrPort // includes SelfID
	NeighborCost map[int]float64
}

// Load reads and parses the topology file at path. The file has no line
// naming this node, so the self ID is inferred: it is the first server, in
// server-list order, that is an endpoint of every edge line. A file with no
// edge lines takes its first server as self.
func Load(path string) (Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return Topology{}, fmt.Errorf("open topology file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		l := strings.TrimSpace(sc.Text())
		if l != "" {
			lines = append(lines, l)
		}
	}
	if err := sc.Err(); err != nil {
		return Topology{}, fmt.Errorf("read topology file: %w", err)
	}
	return parse(lines)
}

func parse(lines []string) (Topology, error) {
	if len(lines) < 2 {
		return Topology{}, fmt.Errorf("%w: missing server/neighbor counts", ErrParse)
	}

	numServers, err := strconv.Atoi(lines[0])
	if err != nil {
		return Topology{}, fmt.Errorf("%w: num_servers: %v", ErrParse, err)
	}
	numNeighbors, err := strconv.Atoi(lines[1])
	if err != nil {
		return Topology{}, fmt.Errorf("%w: num_neighbors: %v", ErrParse, err)
	}

	need := 2 + numServers + numNeighbors
	if len(lines) < need {
		return Topology{}, fmt.Errorf("%w: expected %d lines, got %d", ErrParse, need, len(lines))
	}

	peers := make(map[int]netip.AddrPort, numServers)
	var order []int
	for i := 0; i < numServers; i++ {
		fields := strings.Fields(lines[2+i])
		if len(fields) != 3 {
			return Topology{}, fmt.Errorf("%w: server line %q", ErrParse, lines[2+i])
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return Topology{}, fmt.Errorf("%w: server id: %v", ErrParse, err)
		}
		ip, err := netip.ParseAddr(fields[1])
		if err != nil {
			return Topology{}, fmt.Errorf("%w: server ip: %v", ErrParse, err)
		}
		port, err := strconv.ParseUint(fields[2], 10, 16)
		if err != nil {
			return Topology{}, fmt.Errorf("%w: server port: %v", ErrParse, err)
		}
		peers[id] = netip.AddrPortFrom(ip, uint16(port))
		order = append(order, id)
	}

	type edge struct{ a, b int; cost float64 }
	edges := make([]edge, 0, numNeighbors)
	touch := make(map[int]int) // id -> number of edges it appears on
	for i := 0; i < numNeighbors; i++ {
		fields := strings.Fields(lines[2+numServers+i])
		if len(fields) != 3 {
			return Topology{}, fmt.Errorf("%w: neighbor line %q", ErrParse, lines[2+numServers+i])
		}
		a, err := strconv.Atoi(fields[0])
		if err != nil {
			return Topology{}, fmt.Errorf("%w: neighbor a: %v", ErrParse, err)
		}
		b, err := strconv.Atoi(fields[1])
		if err != nil {
			return Topology{}, fmt.Errorf("%w: neighbor b: %v", ErrParse, err)
		}
		cost, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return Topology{}, fmt.Errorf("%w: neighbor cost: %v", ErrParse, err)
		}
		edges = append(edges, edge{a, b, cost})
		touch[a]++
		touch[b]++
	}

	// The self ID is whichever server line appears as an endpoint of every
	// edge line. With a single incident self node this is unambiguous for
	// any well-formed topology file (one line per node describing that
	// node's own links), which is what this format's loader is run once
	// per node against.
	self := -1
	for _, id := range order {
		if touch[id] == numNeighbors && numNeighbors > 0 {
			self = id
			break
		}
	}
	if self == -1 {
		if numNeighbors == 0 && len(order) > 0 {
			// degenerate case: a single isolated node.
			self = order[0]
		} else {
			return Topology{}, fmt.Errorf("%w: could not determine self id from neighbor lines", ErrParse)
		}
	}

	selfAddr, ok := peers[self]
	if !ok {
		return Topology{}, fmt.Errorf("%w: self id %d not in server list", ErrParse, self)
	}

	neighborCost := make(map[int]float64, numNeighbors)
	for _, e := range edges {
		var other int
		switch self {
		case e.a:
			other = e.b
		case e.b:
			other = e.a
		default:
			continue
		}
		if _, ok := peers[other]; !ok {
			return Topology{}, fmt.Errorf("%w: neighbor %d not in server list", ErrParse, other)
		}
		neighborCost[other] = e.cost
	}

	return Topology{
		SelfID:       self,
		SelfAddr:     selfAddr,
		Peers:        peers,
		NeighborCost: neighborCost,
	}, nil
}
