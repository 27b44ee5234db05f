// Package recap reduces per-host outcome counters into the play recap.
package recap

import (
	"bytes"
	"encoding/json"

	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"
)

// Category is one recap counter.
type Category string

const (
	CategoryOK          Category = "ok"
	CategoryChanged     Category = "changed"
	CategoryFailed      Category = "failed"
	CategoryUnreachable Category = "unreachable"
	CategorySkipped     Category = "skipped"
)

// CategoryFor maps an event kind onto the counter it increments. Debug
// output is the result of a successful debug task and counts as ok.
func CategoryFor(kind events.Kind) Category {
	switch kind {
	case events.KindChanged:
		return CategoryChanged
	case events.KindFailed:
		return CategoryFailed
	case events.KindUnreachable:
		return CategoryUnreachable
	default:
		return CategoryOK
	}
}

// Tally holds the outcome counts for one host. Field order matches the
// serialized order.
type Tally struct {
	OK          int `json:"ok"`
	Changed     int `json:"changed"`
	Failed      int `json:"failed"`
	Unreachable int `json:"unreachable"`
	Skipped     int `json:"skipped"`
}

// Add increments the counter for c. Unknown categories are ignored.
func (t *Tally) Add(c Category) {
	switch c {
	case CategoryOK:
		t.OK++
	case CategoryChanged:
		t.Changed++
	case CategoryFailed:
		t.Failed++
	case CategoryUnreachable:
		t.Unreachable++
	case CategorySkipped:
		t.Skipped++
	}
}

// Total is the number of outcomes attributed to the host.
func (t Tally) Total() int {
	return t.OK + t.Changed + t.Failed + t.Unreachable + t.Skipped
}

// HostTally pairs a host with its counts.
type HostTally struct {
	Host  string
	Tally Tally
}

// Snapshot is a frozen, ordered view of a run's counters (first-seen host
// order).
type Snapshot struct {
	Hosts []HostTally
}

// PlayRecap is the read-only per-host summary of a run. It shares no
// mutable state with the run it was resolved from.
type PlayRecap struct {
	entries []HostTally
	index   map[string]int
}

// FromSnapshot builds a PlayRecap from s. It is pure: equal snapshots give
// equal recaps and s is not retained. A host listed twice keeps its first
// position and the counts are summed.
func FromSnapshot(s Snapshot) PlayRecap {
	r := PlayRecap{
		entries: make([]HostTally, 0, len(s.Hosts)),
		index:   make(map[string]int, len(s.Hosts)),
	}
	for _, ht := range s.Hosts {
		if i, ok := r.index[ht.Host]; ok {
			existing := &r.entries[i].Tally
			existing.OK += ht.Tally.OK
			existing.Changed += ht.Tally.Changed
			existing.Failed += ht.Tally.Failed
			existing.Unreachable += ht.Tally.Unreachable
			existing.Skipped += ht.Tally.Skipped
			continue
		}
		r.index[ht.Host] = len(r.entries)
		r.entries = append(r.entries, ht)
	}
	return r
}

// Len returns the number of hosts.
func (r PlayRecap) Len() int { return len(r.entries) }

// Hosts returns host names in first-seen order.
func (r PlayRecap) Hosts() []string {
	hosts := make([]string, len(r.entries))
	for i, e := range r.entries {
		hosts[i] = e.Host
	}
	return hosts
}

// Get returns the counts for host.
func (r PlayRecap) Get(host string) (Tally, bool) {
	i, ok := r.index[host]
	if !ok {
		return Tally{}, false
	}
	return r.entries[i].Tally, true
}

// Entries returns a copy of the ordered host rows.
func (r PlayRecap) Entries() []HostTally {
	out := make([]HostTally, len(r.entries))
	copy(out, r.entries)
	return out
}

// MarshalJSON renders the recap as an object whose keys keep first-seen
// host order. An empty recap renders as {}.
func (r PlayRecap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		row, err := MarshalRow(e)
		if err != nil {
			return nil, err
		}
		buf.Write(row)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalRow renders one `"host":{...}` member.
func MarshalRow(e HostTally) ([]byte, error) {
	key, err := json.Marshal(e.Host)
	if err != nil {
		return nil, err
	}
	counts, err := json.Marshal(e.Tally)
	if err != nil {
		return nil, err
	}
	row := make([]byte, 0, len(key)+len(counts)+1)
	row = append(row, key...)
	row = append(row, ':')
	row = append(row, counts...)
	return row, nil
}

// Source is a run whose counters can be resolved.
type Source interface {
	// RunID identifies the run in errors.
	RunID() string
	// Closed reports whether the run has ended.
	Closed() bool
	// Snapshot returns the frozen counters.
	Snapshot() Snapshot
	// MarkResolved records that the recap was taken; it fails on the second call.
	MarkResolved() error
}

// Resolve produces the PlayRecap for a closed run. It may be called once per
// run; calling it on an open run or a second time is a protocol violation.
func Resolve(src Source) (PlayRecap, error) {
	if !src.Closed() {
		return PlayRecap{}, cderrors.NewProtocolViolationError("resolve", src.RunID(), "run is still open")
	}
	if err := src.MarkResolved(); err != nil {
		return PlayRecap{}, err
	}
	return FromSnapshot(src.Snapshot()), nil
}
