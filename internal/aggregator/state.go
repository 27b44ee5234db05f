package aggregator

import (
	"github.com/tsupplis/ansible-callbacks/internal/recap"
	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"
)

// State is the lifecycle state of a run.
type State int

const (
	// StateOpen accepts admissions. Runs start here.
	StateOpen State = iota
	// StateClosed is reached once, on the run-end signal; the run is read-only.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// RunState is the single mutable aggregate of one run: the ordered event log
// and the per-host counters. Only the Aggregator mutates it. It is not safe
// for concurrent use; upstream delivers notifications one at a time.
type RunState struct {
	id       string
	state    State
	resolved bool
	nextSeq  uint64

	events    []events.Event
	hostOrder []string
	counters  map[string]*recap.Tally
	// signalled holds hosts whose unreachable count came from a bare
	// unreachable signal not yet matched by an unreachable task result.
	signalled map[string]struct{}
}

func newRunState(id string) *RunState {
	return &RunState{
		id:        id,
		state:     StateOpen,
		counters:  make(map[string]*recap.Tally),
		signalled: make(map[string]struct{}),
	}
}

// RunID identifies the run.
func (r *RunState) RunID() string { return r.id }

// State returns the lifecycle state.
func (r *RunState) State() State { return r.state }

// Closed reports whether the run has ended.
func (r *RunState) Closed() bool { return r.state == StateClosed }

// Events returns the admitted events in admission order. The slice is a
// copy; the events themselves are immutable by contract.
func (r *RunState) Events() []events.Event {
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// HasHost reports whether host has a counter row.
func (r *RunState) HasHost(host string) bool {
	_, ok := r.counters[host]
	return ok
}

// HostCount returns the number of hosts known to the run.
func (r *RunState) HostCount() int { return len(r.hostOrder) }

// Snapshot copies the counters in first-seen host order.
func (r *RunState) Snapshot() recap.Snapshot {
	s := recap.Snapshot{Hosts: make([]recap.HostTally, 0, len(r.hostOrder))}
	for _, host := range r.hostOrder {
		s.Hosts = append(s.Hosts, recap.HostTally{Host: host, Tally: *r.counters[host]})
	}
	return s
}

// MarkResolved records that the recap has been taken.
func (r *RunState) MarkResolved() error {
	if r.resolved {
		return cderrors.NewProtocolViolationError("resolve", r.id, "recap already resolved")
	}
	r.resolved = true
	return nil
}

// tally returns the counter row for host, creating a zeroed row on first
// sight. The boolean reports whether the row was created.
func (r *RunState) tally(host string) (*recap.Tally, bool) {
	if t, ok := r.counters[host]; ok {
		return t, false
	}
	t := &recap.Tally{}
	r.counters[host] = t
	r.hostOrder = append(r.hostOrder, host)
	return t, true
}

var _ recap.Source = (*RunState)(nil)
