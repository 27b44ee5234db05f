package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tsupplis/ansible-callbacks/internal/callback"
	"github.com/tsupplis/ansible-callbacks/internal/logger"
	cdlog "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/log"
)

// maxLineSize bounds one job event; results of large tasks can be big.
const maxLineSize = 16 * 1024 * 1024

// ErrIncompleteStream means the stream ended before the end-of-run
// statistics record.
var ErrIncompleteStream = errors.New("job event stream ended before playbook_on_stats")

// Recorder is the lifecycle surface the replayer drives.
type Recorder interface {
	PlaybookStart(ctx context.Context, playbook string)
	RunnerOK(r callback.Result)
	RunnerItemOK(r callback.Result)
	RunnerFailed(r callback.Result, ignoreErrors bool)
	RunnerUnreachable(r callback.Result)
	RunnerSkipped(r callback.Result)
	Stats(s callback.Stats)
	RunEnd(ctx context.Context) error
	Abort(ctx context.Context, cause error) error
}

var _ Recorder = (*callback.Callback)(nil)

// Summary describes one replay.
type Summary struct {
	// Records counts the lines dispatched to the recorder.
	Records int
	// Ignored counts well-formed records of types the replayer skips.
	Ignored int
	// Malformed counts lines that were not valid job events.
	Malformed int
	// Completed is true when the stream carried the statistics record.
	Completed bool
}

// Replayer feeds job events to a Recorder.
type Replayer struct {
	rec Recorder
	log cdlog.Logger
}

// New returns a Replayer driving rec.
func New(rec Recorder, log cdlog.Logger) *Replayer {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Replayer{rec: rec, log: log.With("component", "Replayer")}
}

// Run reads r to the end and then closes the run. A stream without the
// statistics record, a read error or a cancelled ctx aborts the run; the
// report is written in every case. The returned error is the sink error if
// the report could not be written, otherwise the reason the run was aborted.
func (p *Replayer) Run(ctx context.Context, r io.Reader) (Summary, error) {
	var sum Summary
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var abortCause error
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			abortCause = err
			break
		}
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		dispatched, err := p.dispatch(ctx, line, &sum)
		if err != nil {
			sum.Malformed++
			p.log.Warnf("Skipping line %d: %v", lineNo, err)
			continue
		}
		if dispatched {
			sum.Records++
		} else {
			sum.Ignored++
		}
	}
	if abortCause == nil {
		if err := scanner.Err(); err != nil {
			abortCause = fmt.Errorf("read job events: %w", err)
		} else if !sum.Completed {
			abortCause = ErrIncompleteStream
		}
	}

	if abortCause == nil {
		return sum, p.rec.RunEnd(ctx)
	}
	// The report is written even when ctx was cancelled.
	if err := p.rec.Abort(context.WithoutCancel(ctx), abortCause); err != nil {
		return sum, err
	}
	return sum, abortCause
}

func (p *Replayer) dispatch(ctx context.Context, line []byte, sum *Summary) (bool, error) {
	if err := ValidateRecord(line); err != nil {
		return false, err
	}
	var ev JobEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return false, err
	}

	switch ev.Event {
	case EventPlaybookStart:
		var data playbookEventData
		if err := decodeData(ev, &data); err != nil {
			return false, err
		}
		p.rec.PlaybookStart(ctx, data.Playbook)

	case EventRunnerOK, EventRunnerItemOK, EventRunnerFailed, EventRunnerUnreachable, EventRunnerSkipped:
		var data runnerEventData
		if err := decodeData(ev, &data); err != nil {
			return false, err
		}
		res := data.result()
		switch ev.Event {
		case EventRunnerOK:
			p.rec.RunnerOK(res)
		case EventRunnerItemOK:
			p.rec.RunnerItemOK(res)
		case EventRunnerFailed:
			p.rec.RunnerFailed(res, data.IgnoreErrors)
		case EventRunnerUnreachable:
			p.rec.RunnerUnreachable(res)
		case EventRunnerSkipped:
			p.rec.RunnerSkipped(res)
		}

	case EventPlaybookStats:
		var data statsEventData
		if err := decodeData(ev, &data); err != nil {
			return false, err
		}
		p.rec.Stats(data.stats())
		sum.Completed = true

	default:
		return false, nil
	}
	return true, nil
}

func decodeData(ev JobEvent, out interface{}) error {
	if len(ev.EventData) == 0 || bytes.Equal(ev.EventData, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(ev.EventData, out); err != nil {
		return fmt.Errorf("decode event_data of %s: %w", ev.Event, err)
	}
	return nil
}
