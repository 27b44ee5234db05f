// Package aggregator accumulates the events and per-host counters of one run.
package aggregator

import (
	"github.com/google/uuid"

	"github.com/tsupplis/ansible-callbacks/internal/config"
	"github.com/tsupplis/ansible-callbacks/internal/logger"
	"github.com/tsupplis/ansible-callbacks/internal/metrics"
	"github.com/tsupplis/ansible-callbacks/internal/normalize"
	"github.com/tsupplis/ansible-callbacks/internal/recap"
	"github.com/tsupplis/ansible-callbacks/internal/visibility"
	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"
	cdlog "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/log"
)

// Aggregator drives a RunState through its lifecycle: admissions while
// Open, a single Finalize, then nothing.
type Aggregator struct {
	run     *RunState
	policy  visibility.Policy
	log     cdlog.Logger
	metrics *metrics.Collectors
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the diagnostics logger.
func WithLogger(log cdlog.Logger) Option {
	return func(a *Aggregator) {
		if log != nil {
			a.log = log
		}
	}
}

// WithCollectors wires Prometheus collectors.
func WithCollectors(c *metrics.Collectors) Option {
	return func(a *Aggregator) { a.metrics = c }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(a *Aggregator) {
		if id != "" {
			a.run.id = id
		}
	}
}

// New starts an Open run governed by cfg.
func New(cfg config.Config, opts ...Option) *Aggregator {
	a := &Aggregator{
		run:    newRunState(uuid.NewString()),
		policy: visibility.NewPolicy(cfg),
		log:    logger.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With("component", "Aggregator", "run_id", a.run.id)
	if a.metrics == nil {
		a.metrics = metrics.NewCollectors(nil, nil)
	}
	a.log.Debugf("Run opened (show_unchanged_ok=%t)", cfg.ShowUnchangedOK)
	return a
}

// Run returns the aggregate. Callers must treat it as read-only.
func (a *Aggregator) Run() *RunState { return a.run }

// Admit normalizes n, counts it against its host and appends it to the
// event log when the visibility policy retains it. It returns the event and
// whether it was logged. Admitting into a closed run is a protocol
// violation and leaves the run untouched.
func (a *Aggregator) Admit(n events.Notification) (events.Event, bool) {
	if !a.open("admit") {
		return events.Event{}, false
	}
	ev := a.sequence(n)
	a.count(ev.Host, recap.CategoryFor(ev.Kind))
	return ev, a.appendIfRetained(ev)
}

// AdmitItem logs the result of one loop item without counting it. The task
// is counted once, from its own result, through Admit or Count. The host is
// registered so it appears in the recap even if the task result never
// arrives.
func (a *Aggregator) AdmitItem(n events.Notification) (events.Event, bool) {
	if !a.open("admit_item") {
		return events.Event{}, false
	}
	ev := a.sequence(n)
	a.register(ev.Host)
	return ev, a.appendIfRetained(ev)
}

// Count counts one outcome of kind for host without logging an event.
func (a *Aggregator) Count(host string, kind events.Kind) {
	if !a.open("count") {
		return
	}
	a.run.nextSeq++
	a.count(host, recap.CategoryFor(kind))
	a.log.Debugf("Counted %s for host '%s' without logging", kind, host)
}

// RecordSkipped counts a skipped task for host. Skips are never logged.
func (a *Aggregator) RecordSkipped(host, task string) {
	if !a.open("skip") {
		return
	}
	a.run.nextSeq++
	a.count(host, recap.CategorySkipped)
	a.log.Debugf("Counted skipped for host '%s' task '%s'", host, task)
}

// RegisterHost makes host known to the run with a zeroed counter row. It is
// a no-op for hosts already known.
func (a *Aggregator) RegisterHost(host string) {
	if !a.open("register_host") {
		return
	}
	a.register(host)
}

// MarkUnreachable makes sure host carries an unreachable outcome without
// logging an event. A host already counted unreachable is left as is, and
// the first unreachable task result that follows the signal is folded into
// the count the signal made.
func (a *Aggregator) MarkUnreachable(host string) {
	if !a.open("mark_unreachable") {
		return
	}
	if t, known := a.run.counters[host]; known && t.Unreachable > 0 {
		a.log.Debugf("Host '%s' already counted unreachable", host)
		return
	}
	a.run.nextSeq++
	a.count(host, recap.CategoryUnreachable)
	a.run.signalled[host] = struct{}{}
	a.log.Debugf("Host '%s' marked unreachable", host)
}

// Finalize moves the run from Open to Closed and returns it. The transition
// happens once; later calls are protocol violations and return the same,
// already closed, run.
func (a *Aggregator) Finalize() *RunState {
	if !a.open("finalize") {
		return a.run
	}
	a.run.state = StateClosed
	a.log.Debugf("Run closed with %d logged events across %d hosts", len(a.run.events), a.run.HostCount())
	return a.run
}

func (a *Aggregator) sequence(n events.Notification) events.Event {
	ev := normalize.Normalize(n)
	a.run.nextSeq++
	ev.Sequence = a.run.nextSeq
	return ev
}

func (a *Aggregator) appendIfRetained(ev events.Event) bool {
	if !a.policy.Retain(ev) {
		a.metrics.Filtered.WithLabelValues(string(ev.Kind)).Inc()
		a.log.Debugf("Not logging %s for host '%s' task '%s'", ev.Kind, ev.Host, ev.Task)
		return false
	}
	a.run.events = append(a.run.events, ev)
	a.metrics.Logged.WithLabelValues(string(ev.Kind)).Inc()
	a.log.Debugf("Logged %s #%d for host '%s' task '%s'", ev.Kind, ev.Sequence, ev.Host, ev.Task)
	return true
}

func (a *Aggregator) register(host string) *recap.Tally {
	t, created := a.run.tally(host)
	if created {
		a.metrics.Hosts.Set(float64(a.run.HostCount()))
		a.log.Debugf("Registered host '%s'", host)
	}
	return t
}

func (a *Aggregator) count(host string, c recap.Category) {
	t := a.register(host)
	if c == recap.CategoryUnreachable {
		if _, ok := a.run.signalled[host]; ok {
			delete(a.run.signalled, host)
			a.log.Debugf("Unreachable result for host '%s' already counted by the unreachable signal", host)
			return
		}
	}
	t.Add(c)
	a.metrics.Notifications.WithLabelValues(string(c)).Inc()
}

// open checks that operation is permitted. When it is not, the violation is
// recorded and handed to assertViolation, which panics in debugassert builds.
func (a *Aggregator) open(operation string) bool {
	if a.run.state == StateOpen {
		return true
	}
	err := cderrors.NewProtocolViolationError(operation, a.run.id, "run is "+a.run.state.String())
	a.metrics.ProtocolViolations.WithLabelValues(operation).Inc()
	a.log.Debugf("Ignoring call: %v", err)
	assertViolation(err)
	return false
}
