package aggregator_test

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tsupplis/ansible-callbacks/internal/aggregator"
	"github.com/tsupplis/ansible-callbacks/internal/config"
	"github.com/tsupplis/ansible-callbacks/internal/metrics"
	"github.com/tsupplis/ansible-callbacks/internal/recap"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(outcome events.Outcome, host, task string) events.Notification {
	return events.Notification{Outcome: outcome, Host: host, Task: task, Payload: map[string]interface{}{"msg": task}}
}

func TestAggregator_CountsEverythingLogsVisible(t *testing.T) {
	agg := aggregator.New(config.Config{})

	_, logged := agg.Admit(note(events.OutcomeOK, "h1", "ping"))
	assert.False(t, logged, "ok is hidden by default")
	ev, logged := agg.Admit(note(events.OutcomeChanged, "h1", "copy"))
	assert.True(t, logged)
	assert.Equal(t, events.KindChanged, ev.Kind)
	assert.Equal(t, uint64(2), ev.Sequence)

	run := agg.Finalize()
	require.Len(t, run.Events(), 1)
	snap := run.Snapshot()
	require.Len(t, snap.Hosts, 1)
	assert.Equal(t, recap.Tally{OK: 1, Changed: 1}, snap.Hosts[0].Tally)
}

func TestAggregator_SumMatchesAttributedOutcomes(t *testing.T) {
	outcomes := []events.Outcome{
		events.OutcomeOK, events.OutcomeChanged, events.OutcomeFailed,
		events.OutcomeUnreachable, events.OutcomeDebug,
	}
	hosts := []string{"a", "b", "c"}

	for _, show := range []bool{false, true} {
		t.Run(fmt.Sprintf("show_unchanged_ok=%t", show), func(t *testing.T) {
			agg := aggregator.New(config.Config{ShowUnchangedOK: show})
			expected := map[string]int{}
			okSeen := 0
			for i := 0; i < 60; i++ {
				host := hosts[(i*7)%len(hosts)]
				outcome := outcomes[(i*3)%len(outcomes)]
				if outcome == events.OutcomeOK {
					okSeen++
				}
				agg.Admit(note(outcome, host, fmt.Sprintf("t%d", i)))
				expected[host]++
				if i%11 == 0 {
					agg.RecordSkipped(host, "skip")
					expected[host]++
				}
			}

			run := agg.Finalize()
			for _, ht := range run.Snapshot().Hosts {
				assert.Equal(t, expected[ht.Host], ht.Tally.Total(), "host %s", ht.Host)
			}

			loggedOK := 0
			var last uint64
			for _, ev := range run.Events() {
				assert.Greater(t, ev.Sequence, last, "events must be in admission order")
				last = ev.Sequence
				if ev.Kind == events.KindOK {
					loggedOK++
				}
			}
			if show {
				assert.Equal(t, okSeen, loggedOK)
			} else {
				assert.Zero(t, loggedOK)
			}
		})
	}
}

func TestAggregator_FirstSeenHostOrder(t *testing.T) {
	agg := aggregator.New(config.Config{})
	agg.Admit(note(events.OutcomeOK, "zulu", "t"))
	agg.RegisterHost("alpha")
	agg.MarkUnreachable("mike")
	agg.Admit(note(events.OutcomeOK, "alpha", "t"))
	agg.RegisterHost("zulu")

	r, err := recap.Resolve(agg.Finalize())
	require.NoError(t, err)
	assert.Equal(t, []string{"zulu", "alpha", "mike"}, r.Hosts())
}

func TestAggregator_UnreachableHostWithoutEvents(t *testing.T) {
	agg := aggregator.New(config.Config{})
	agg.Admit(note(events.OutcomeOK, "h1", "setup"))
	agg.MarkUnreachable("h2")

	run := agg.Finalize()
	assert.Empty(t, run.Events(), "host unreachable signals are not logged")
	r, err := recap.Resolve(run)
	require.NoError(t, err)
	got, ok := r.Get("h2")
	require.True(t, ok)
	assert.Equal(t, recap.Tally{Unreachable: 1}, got)
}

func TestAggregator_RegisterHostCreatesZeroRowOnce(t *testing.T) {
	agg := aggregator.New(config.Config{})
	agg.RegisterHost("h1")
	agg.RegisterHost("h1")
	snap := agg.Finalize().Snapshot()
	require.Len(t, snap.Hosts, 1)
	assert.Equal(t, recap.Tally{}, snap.Hosts[0].Tally)
}

func TestAggregator_ResolveIsDetachedFromRun(t *testing.T) {
	agg := aggregator.New(config.Config{})
	agg.Admit(note(events.OutcomeChanged, "h1", "t"))
	run := agg.Finalize()

	first := recap.FromSnapshot(run.Snapshot())
	second := recap.FromSnapshot(run.Snapshot())
	assert.Equal(t, first, second)

	logged := run.Events()
	logged[0].Host = "mutated"
	assert.Equal(t, "h1", run.Events()[0].Host)
}

func TestAggregator_RunIdentity(t *testing.T) {
	a := aggregator.New(config.Config{})
	b := aggregator.New(config.Config{})
	assert.NotEmpty(t, a.Run().RunID())
	assert.NotEqual(t, a.Run().RunID(), b.Run().RunID())

	c := aggregator.New(config.Config{}, aggregator.WithRunID("fixed"))
	assert.Equal(t, "fixed", c.Run().RunID())
	assert.Equal(t, aggregator.StateOpen, c.Run().State())
	assert.Equal(t, "Open", c.Run().State().String())
}

func TestAggregator_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	col := metrics.NewCollectors(reg, nil)
	agg := aggregator.New(config.Config{}, aggregator.WithCollectors(col))

	agg.Admit(note(events.OutcomeOK, "h1", "a"))
	agg.Admit(note(events.OutcomeFailed, "h2", "b"))
	agg.RecordSkipped("h1", "c")

	assert.Equal(t, 1.0, metricValue(t, col.Notifications.WithLabelValues("ok")))
	assert.Equal(t, 1.0, metricValue(t, col.Notifications.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, metricValue(t, col.Filtered.WithLabelValues("ok")))
	assert.Equal(t, 1.0, metricValue(t, col.Logged.WithLabelValues("failed")))
	assert.Equal(t, 2.0, metricValue(t, col.Hosts))
}

func TestAggregator_ItemsAreLoggedNotCounted(t *testing.T) {
	agg := aggregator.New(config.Config{})
	_, logged := agg.AdmitItem(note(events.OutcomeOK, "h1", "pkgs"))
	assert.False(t, logged)
	ev, logged := agg.AdmitItem(note(events.OutcomeChanged, "h1", "pkgs"))
	assert.True(t, logged)
	assert.Equal(t, events.KindChanged, ev.Kind)
	agg.Count("h1", events.KindChanged)

	run := agg.Finalize()
	require.Len(t, run.Events(), 1)
	snap := run.Snapshot()
	require.Len(t, snap.Hosts, 1)
	assert.Equal(t, recap.Tally{Changed: 1}, snap.Hosts[0].Tally)
}

func TestAggregator_ItemOnlyHostIsKnown(t *testing.T) {
	agg := aggregator.New(config.Config{})
	agg.AdmitItem(note(events.OutcomeOK, "h1", "pkgs"))
	assert.True(t, agg.Run().HasHost("h1"))
	assert.Equal(t, recap.Tally{}, agg.Finalize().Snapshot().Hosts[0].Tally)
}

func TestAggregator_UnreachableSignalAndResultCountOnce(t *testing.T) {
	tests := []struct {
		name  string
		steps func(agg *aggregator.Aggregator)
		want  recap.Tally
	}{
		{
			name: "result then signal",
			steps: func(agg *aggregator.Aggregator) {
				agg.Admit(note(events.OutcomeUnreachable, "h2", "setup"))
				agg.MarkUnreachable("h2")
			},
			want: recap.Tally{Unreachable: 1},
		},
		{
			name: "signal then result",
			steps: func(agg *aggregator.Aggregator) {
				agg.MarkUnreachable("h2")
				agg.Admit(note(events.OutcomeUnreachable, "h2", "setup"))
			},
			want: recap.Tally{Unreachable: 1},
		},
		{
			name: "repeated signal",
			steps: func(agg *aggregator.Aggregator) {
				agg.MarkUnreachable("h2")
				agg.MarkUnreachable("h2")
			},
			want: recap.Tally{Unreachable: 1},
		},
		{
			name: "signal then two unreachable tasks",
			steps: func(agg *aggregator.Aggregator) {
				agg.MarkUnreachable("h2")
				agg.Admit(note(events.OutcomeUnreachable, "h2", "setup"))
				agg.Admit(note(events.OutcomeUnreachable, "h2", "retry"))
			},
			want: recap.Tally{Unreachable: 2},
		},
		{
			name: "signal after an ok task",
			steps: func(agg *aggregator.Aggregator) {
				agg.Admit(note(events.OutcomeOK, "h2", "setup"))
				agg.MarkUnreachable("h2")
			},
			want: recap.Tally{OK: 1, Unreachable: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := aggregator.New(config.Config{})
			tt.steps(agg)
			r, err := recap.Resolve(agg.Finalize())
			require.NoError(t, err)
			got, ok := r.Get("h2")
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
