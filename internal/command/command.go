// Package command implements the operator control surface: parsing
// whitespace-delimited lines from an operator channel and executing them
// against the shared daemon state.
package command

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/r2northstar/dvrouted/internal/engine"
	"github.com/r2northstar/dvrouted/internal/neighbor"
	"github.com/r2northstar/dvrouted/internal/rttable"
)

// State is the shared daemon state a Processor mutates. Lock is the
// supervisor's single mutex (spec 5): Execute takes it itself around the
// commands that touch Table/Nbr/Engine directly (update, disable, display),
// and leaves it unheld around Step/Crash/Packets, whose implementations do
// their own brief locking internally and must not hold it across network
// I/O.
type State struct {
	SelfID int
	Lock   sync.Locker
	Table  *rttable.Table
	Nbr    *neighbor.Registry
	Engine *engine.Engine

	// Packets reads and resets the count of valid announcements received
	// since the last read. Locks internally.
	Packets func() uint64

	// Step immediately announces the local vector to all live neighbors.
	// Locks internally only to snapshot the table, then sends unlocked.
	Step func()

	// Crash requests daemon shutdown.
	Crash func()
}

// Processor parses and executes operator commands.
type Processor struct {
	st State
}

func New(st State) *Processor {
	return &Processor{st: st}
}

// Execute runs one command line and returns the exact text to print (with
// embedded newlines for multi-line responses, no trailing newline).
func (p *Processor) Execute(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "update":
		p.st.Lock.Lock()
		defer p.st.Lock.Unlock()
		return p.update(args)
	case "step":
		p.st.Step()
		return "step SUCCESS"
	case "packets":
		n := p.st.Packets()
		return fmt.Sprintf("packets SUCCESS\n%d", n)
	case "display":
		p.st.Lock.Lock()
		defer p.st.Lock.Unlock()
		return p.display()
	case "disable":
		p.st.Lock.Lock()
		defer p.st.Lock.Unlock()
		return p.disable(args)
	case "crash":
		p.st.Crash()
		return "crash SUCCESS"
	default:
		return fmt.Sprintf("%s Unknown command", line)
	}
}

func (p *Processor) update(args []string) string {
	echo := "update " + strings.Join(args, " ")
	if len(args) != 3 {
		return echo + " wrong number of arguments"
	}

	s1, err1 := strconv.Atoi(args[0])
	s2, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return echo + " non-integer server id"
	}

	cost, ok := parseCost(args[2])
	if !ok {
		return echo + " non-numeric cost"
	}
	if cost < 0 {
		return echo + " negative cost"
	}

	if s1 != p.st.SelfID && s2 != p.st.SelfID {
		return echo + " neither server is self"
	}
	other := s2
	if s2 == p.st.SelfID {
		other = s1
	}
	if !p.st.Nbr.IsNeighbor(other) {
		return echo + " not a neighbor"
	}

	p.st.Nbr.SetCost(other, cost)
	p.st.Engine.OnLinkCostChange(other)

	return "update " + args[0] + " " + args[1] + " " + args[2] + " SUCCESS"
}

func (p *Processor) disable(args []string) string {
	echo := "disable " + strings.Join(args, " ")
	if len(args) != 1 {
		return echo + " wrong number of arguments"
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return echo + " non-integer server id"
	}
	if id == p.st.SelfID {
		return echo + " cannot disable self"
	}
	if !p.st.Nbr.IsNeighbor(id) {
		return echo + " not a neighbor"
	}

	p.st.Nbr.SetCost(id, rttable.Infinity)
	p.st.Engine.OnLinkCostChange(id)

	return fmt.Sprintf("disable %d SUCCESS", id)
}

func (p *Processor) display() string {
	var b strings.Builder
	b.WriteString("display SUCCESS")

	rows := p.st.Table.Snapshot()
	sort.Slice(rows, func(i, j int) bool { return rows[i].Dest < rows[j].Dest })
	for _, e := range rows {
		nextHop := "-"
		if e.NextHop != rttable.NoNextHop {
			nextHop = strconv.Itoa(e.NextHop)
		}
		cost := "inf"
		if e.Reachable() {
			cost = strconv.FormatInt(int64(e.Cost), 10)
		}
		fmt.Fprintf(&b, "\n%d %s %s", e.Dest, nextHop, cost)
	}
	return b.String()
}

func parseCost(s string) (float64, bool) {
	if strings.EqualFold(s, "inf") {
		return rttable.Infinity, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
