package callback

import (
	"context"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/tsupplis/ansible-callbacks/internal/aggregator"
	"github.com/tsupplis/ansible-callbacks/internal/config"
	intMetrics "github.com/tsupplis/ansible-callbacks/internal/metrics"
	"github.com/tsupplis/ansible-callbacks/internal/normalize"
	"github.com/tsupplis/ansible-callbacks/internal/recap"
	"github.com/tsupplis/ansible-callbacks/internal/report"
	"github.com/tsupplis/ansible-callbacks/internal/tracing"
	changeddebug "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1"
	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"
	cdlog "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/log"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/metrics"
	cdtracing "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/tracing"
)

// eventKey identifies one logged event of a task on a host.
type eventKey struct {
	kind events.Kind
	host string
	task string
}

// taskKey identifies one task on one host.
type taskKey struct {
	host string
	task string
}

// pendingLoop is a loop task whose items were seen but whose own result has
// not arrived yet.
type pendingLoop struct {
	kind events.Kind
	name string
}

// Callback records one run. It is created Idle, starts recording on the
// first lifecycle call and is done after RunEnd or Abort.
type Callback struct {
	cfg config.Config
	log cdlog.Logger

	// Settings, frozen once recording starts.
	sink            report.Sink
	sinkWriter      io.Writer
	colorMode       report.ColorMode
	runID           string
	metricsProvider metrics.RegistryProvider
	tracerProvider  cdtracing.TracerProvider

	// Recording state.
	agg          *aggregator.Aggregator
	metrics      *intMetrics.Collectors
	logged       map[eventKey]struct{}
	counted      map[taskKey]struct{}
	pending      map[taskKey]pendingLoop
	pendingOrder []taskKey
	span         trace.Span
	playbook     string
	done         bool
}

var _ changeddebug.RecorderV1 = (*Callback)(nil)

// New builds a Callback for cfg. The report goes to stdout unless an option
// says otherwise.
func New(cfg config.Config, log cdlog.Logger, opts ...changeddebug.RecorderOption) (*Callback, error) {
	if log == nil {
		return nil, cderrors.NewConfigError("logger cannot be nil", nil)
	}
	c := &Callback{
		cfg:        cfg,
		log:        log,
		sink:       report.StdoutSink(),
		sinkWriter: os.Stdout,
		colorMode:  report.ColorNever,
		logged:     make(map[eventKey]struct{}),
		counted:    make(map[taskKey]struct{}),
		pending:    make(map[taskKey]pendingLoop),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, cderrors.NewConfigError("failed to apply recorder option", err)
		}
	}
	return c, nil
}

// RunID returns the run identifier. It is assigned when recording starts.
func (c *Callback) RunID() string {
	if c.agg == nil {
		return c.runID
	}
	return c.agg.Run().RunID()
}

// PlaybookStart opens the run and its span. Calling it is optional: any
// other lifecycle call opens the run on demand.
func (c *Callback) PlaybookStart(ctx context.Context, playbook string) {
	c.playbook = playbook
	c.start(ctx)
	c.log.Debugf("Playbook '%s' started", playbook)
}

// Admit records a notification that is already in canonical form. Every
// call is counted: a notification carries no task identity to tell a repeat
// delivery from a second run of a task with the same name.
func (c *Callback) Admit(n events.Notification) {
	c.start(context.Background())
	c.admit(n)
}

// RunnerOK handles a successful task result. Per-item results of a loop are
// ignored here; they arrive through RunnerItemOK.
func (c *Callback) RunnerOK(r Result) {
	if r.isItemResult() {
		return
	}
	c.admitResult(r, okNotification(r))
}

// RunnerItemOK handles a successful loop item result. Items are logged but
// not counted; the loop counts once, from the task result that follows.
func (c *Callback) RunnerItemOK(r Result) {
	c.admitItem(r, okNotification(r))
}

func okNotification(r Result) events.Notification {
	if r.Task.IsDebug() {
		return events.Notification{
			Outcome:        events.OutcomeDebug,
			IsDebugMessage: true,
			Payload:        debugPayload(r),
		}
	}
	return events.Notification{Outcome: events.OutcomeOK, Payload: r.Data}
}

// RunnerFailed handles a failed task result. Ignored failures are still
// reported as failed.
func (c *Callback) RunnerFailed(r Result, ignoreErrors bool) {
	if ignoreErrors {
		c.log.Debugf("Failure of task '%s' on '%s' is ignored by the play", r.Task.Name, r.Host)
	}
	c.admitResult(r, events.Notification{Outcome: events.OutcomeFailed, Payload: r.Data})
}

// RunnerUnreachable handles a task that could not reach its host.
func (c *Callback) RunnerUnreachable(r Result) {
	c.admitResult(r, events.Notification{Outcome: events.OutcomeUnreachable, Payload: r.Data})
}

// RunnerSkipped counts a skipped task. Skips are never logged, and skipped
// loop items are left to the task result.
func (c *Callback) RunnerSkipped(r Result) {
	c.start(context.Background())
	if r.isItemResult() {
		return
	}
	if !c.done && !c.countOnce(r) {
		return
	}
	c.agg.RecordSkipped(r.Host, r.Task.Name)
}

// HostUnreachable makes sure host is counted unreachable, without logging an
// event. It shares its count with an unreachable task result for the same
// host, whichever arrives first.
func (c *Callback) HostUnreachable(host string) {
	c.start(context.Background())
	c.agg.MarkUnreachable(host)
}

// Stats registers hosts listed in the end-of-run statistics that produced no
// result: dark hosts count as unreachable, the others get a zero row.
func (c *Callback) Stats(s Stats) {
	c.start(context.Background())
	run := c.agg.Run()
	dark := make(map[string]struct{}, len(s.Dark))
	for _, h := range s.Dark {
		dark[h] = struct{}{}
	}
	for _, h := range s.Processed {
		if run.HasHost(h) {
			continue
		}
		if _, ok := dark[h]; ok {
			c.agg.MarkUnreachable(h)
		} else {
			c.agg.RegisterHost(h)
		}
	}
	for _, h := range s.Dark {
		if !run.HasHost(h) {
			c.agg.MarkUnreachable(h)
		}
	}
}

// RunEnd closes the run and writes the report.
func (c *Callback) RunEnd(ctx context.Context) error {
	return c.finish(ctx, nil)
}

// Abort closes an incomplete run and writes a best-effort report. cause is
// logged and recorded on the run span; the returned error only reports sink
// problems.
func (c *Callback) Abort(ctx context.Context, cause error) error {
	if cause == nil {
		cause = cderrors.NewProtocolViolationError("abort", c.RunID(), "run aborted without a cause")
	}
	return c.finish(ctx, cause)
}

func (c *Callback) finish(ctx context.Context, abortCause error) error {
	if c.done {
		return cderrors.NewProtocolViolationError("run_end", c.RunID(), "report already emitted")
	}
	c.start(ctx)
	c.done = true

	aborted := abortCause != nil
	if aborted {
		c.log.Warnf("Run aborted, emitting best-effort report: %v", abortCause)
		tracing.RecordError(c.span, abortCause)
	}
	c.span.SetAttributes(tracing.AttrAborted.Bool(aborted))
	defer c.span.End()

	c.flushPending()
	run := c.agg.Finalize()
	playRecap, err := recap.Resolve(run)
	if err != nil {
		c.log.Warnf("Recap resolution failed, using the current counters: %v", err)
		playRecap = recap.FromSnapshot(run.Snapshot())
	}
	doc := report.Serialize(run.Events(), playRecap)

	emitter := report.NewEmitter(c.sink,
		report.WithColorizer(report.NewColorizer(c.colorMode, c.sinkWriter)),
		report.WithEmitterLogger(c.log),
		report.WithEmitterCollectors(c.metrics),
		report.WithEmitterTracer(c.tracerProvider),
	)
	if err := emitter.Emit(trace.ContextWithSpan(ctx, c.span), doc); err != nil {
		tracing.RecordError(c.span, err)
		return err
	}
	return nil
}

// start opens the run on the first lifecycle call.
func (c *Callback) start(ctx context.Context) {
	if c.agg != nil {
		return
	}
	c.metrics = intMetrics.NewCollectors(c.registry(), c.log)
	c.agg = aggregator.New(c.cfg,
		aggregator.WithLogger(c.log),
		aggregator.WithCollectors(c.metrics),
		aggregator.WithRunID(c.runID),
	)
	_, c.span = tracing.StartRunSpan(ctx, tracing.Tracer(c.tracerProvider), c.agg.Run().RunID(), c.playbook, c.cfg.ShowUnchangedOK)
	c.log = c.log.With("run_id", c.agg.Run().RunID())
	c.log.Debugf("Recording run (show_unchanged_ok=%t from %s)", c.cfg.ShowUnchangedOK, c.cfg.ShowUnchangedOKSource)
}

// admitResult records the result of a whole task. The task is counted once
// per host; its event is logged unless an item of the same task already
// logged one of the same kind.
func (c *Callback) admitResult(r Result, n events.Notification) {
	c.start(context.Background())
	fillTask(&n, r)
	if c.done {
		c.admit(n)
		return
	}
	if !c.countOnce(r) {
		c.log.Debugf("Dropping repeated result for host '%s' task '%s'", r.Host, r.Task.Name)
		return
	}
	kind := normalize.Classify(n)
	if c.firstLog(kind, r) {
		c.admit(n)
		return
	}
	c.agg.Count(r.Host, kind)
}

// admitItem logs a loop item and remembers the most severe item outcome in
// case the task result never arrives.
func (c *Callback) admitItem(r Result, n events.Notification) {
	c.start(context.Background())
	fillTask(&n, r)
	if c.done {
		c.admit(n)
		return
	}
	kind := normalize.Classify(n)
	key := taskKey{host: r.Host, task: r.Task.identity()}
	if _, counted := c.counted[key]; !counted {
		p, known := c.pending[key]
		if !known {
			c.pendingOrder = append(c.pendingOrder, key)
		}
		if !known || severity(kind) > severity(p.kind) {
			c.pending[key] = pendingLoop{kind: kind, name: r.Task.Name}
		}
	}
	if !c.firstLog(kind, r) {
		return
	}
	ev, logged := c.agg.AdmitItem(n)
	if logged {
		tracing.AddEvent(c.span, ev)
	}
}

func (c *Callback) admit(n events.Notification) {
	ev, logged := c.agg.Admit(n)
	if logged {
		tracing.AddEvent(c.span, ev)
	}
}

// countOnce reports whether the task result in r should be counted, and
// settles any loop pending for it. Results without a task UUID are always
// counted.
func (c *Callback) countOnce(r Result) bool {
	key := taskKey{host: r.Host, task: r.Task.identity()}
	delete(c.pending, key)
	if r.Task.UUID == "" {
		return true
	}
	if _, dup := c.counted[key]; dup {
		return false
	}
	c.counted[key] = struct{}{}
	return true
}

// firstLog reports whether r is the first event of kind for its task on its
// host. Without a task UUID every event is new.
func (c *Callback) firstLog(kind events.Kind, r Result) bool {
	if r.Task.UUID == "" {
		return true
	}
	key := eventKey{kind: kind, host: r.Host, task: r.Task.UUID}
	if _, dup := c.logged[key]; dup {
		c.log.Debugf("Not logging repeated %s event for host '%s' task '%s'", kind, r.Host, r.Task.Name)
		return false
	}
	c.logged[key] = struct{}{}
	return true
}

// flushPending counts loops whose task result never arrived, using the
// most severe outcome of their items.
func (c *Callback) flushPending() {
	for _, key := range c.pendingOrder {
		p, ok := c.pending[key]
		if !ok {
			continue
		}
		c.log.Debugf("Counting loop task '%s' on '%s' from its items", p.name, key.host)
		c.agg.Count(key.host, p.kind)
	}
	c.pending = make(map[taskKey]pendingLoop)
	c.pendingOrder = nil
}

func fillTask(n *events.Notification, r Result) {
	n.Host = r.Host
	n.Task = r.Task.Name
	n.Role = r.Task.Role
}

func severity(k events.Kind) int {
	switch k {
	case events.KindUnreachable:
		return 4
	case events.KindFailed:
		return 3
	case events.KindChanged:
		return 2
	default:
		return 1
	}
}

func (c *Callback) registry() *prometheus.Registry {
	if c.metricsProvider == nil {
		return nil
	}
	return c.metricsProvider.Registry()
}

// debugPayload carries the debug message, falling back to the whole result
// when there is no msg, next to the raw result.
func debugPayload(r Result) map[string]interface{} {
	msg, ok := r.Data[keyMsg]
	if !ok {
		msg = r.Data
	}
	return map[string]interface{}{
		"action": r.Task.Action,
		"msg":    msg,
		"result": r.Data,
	}
}
