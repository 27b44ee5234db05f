package normalize_test

import (
	"testing"

	"github.com/tsupplis/ansible-callbacks/internal/normalize"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name   string
		n      events.Notification
		expect events.Kind
	}{
		{
			name:   "plain ok",
			n:      events.Notification{Outcome: events.OutcomeOK, Payload: map[string]interface{}{"changed": false}},
			expect: events.KindOK,
		},
		{
			name:   "ok with changed flag",
			n:      events.Notification{Outcome: events.OutcomeOK, Payload: map[string]interface{}{"changed": true}},
			expect: events.KindChanged,
		},
		{
			name: "ok with a changed loop item",
			n: events.Notification{Outcome: events.OutcomeOK, Payload: map[string]interface{}{
				"results": []interface{}{
					map[string]interface{}{"changed": false},
					"not-a-map",
					map[string]interface{}{"changed": true},
				},
			}},
			expect: events.KindChanged,
		},
		{
			name:   "changed and failed is failed",
			n:      events.Notification{Outcome: events.OutcomeChanged, Payload: map[string]interface{}{"changed": true, "failed": true}},
			expect: events.KindFailed,
		},
		{
			name:   "failed outcome with changed flag",
			n:      events.Notification{Outcome: events.OutcomeFailed, Payload: map[string]interface{}{"changed": true}},
			expect: events.KindFailed,
		},
		{
			name:   "unreachable",
			n:      events.Notification{Outcome: events.OutcomeUnreachable, Payload: map[string]interface{}{"changed": true}},
			expect: events.KindUnreachable,
		},
		{
			name:   "debug flag beats failure",
			n:      events.Notification{Outcome: events.OutcomeFailed, IsDebugMessage: true, Payload: map[string]interface{}{"failed": true, "changed": true}},
			expect: events.KindTaskDebug,
		},
		{
			name:   "debug outcome",
			n:      events.Notification{Outcome: events.OutcomeDebug},
			expect: events.KindTaskDebug,
		},
		{
			name:   "string flags are data",
			n:      events.Notification{Outcome: events.OutcomeOK, Payload: map[string]interface{}{"changed": "true", "failed": "yes"}},
			expect: events.KindOK,
		},
		{
			name:   "empty notification",
			n:      events.Notification{},
			expect: events.KindOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, normalize.Classify(tc.n))
		})
	}
}

func TestNormalize_PreservesPayloadAndIdentity(t *testing.T) {
	payload := map[string]interface{}{
		"changed": true,
		"stdout":  "done",
		"nested":  map[string]interface{}{"k": []interface{}{1, "two"}},
		"raw":     []byte("bytes"),
	}
	ev := normalize.Normalize(events.Notification{
		Outcome: events.OutcomeOK,
		Host:    "web01",
		Task:    "install nginx",
		Role:    "webserver",
		Payload: payload,
	})

	assert.Equal(t, events.KindChanged, ev.Kind)
	assert.Equal(t, "web01", ev.Host)
	assert.Equal(t, "install nginx", ev.Task)
	assert.Equal(t, "webserver", ev.Role)
	assert.Zero(t, ev.Sequence)
	require.Len(t, ev.Payload, len(payload), "no payload key may be dropped")
	assert.Equal(t, "done", ev.Payload["stdout"])
	assert.Equal(t, "bytes", ev.Payload["raw"])
	assert.Equal(t, payload["nested"], ev.Payload["nested"])

	// Mutating the upstream payload afterwards must not leak into the event.
	payload["stdout"] = "changed later"
	assert.Equal(t, "done", ev.Payload["stdout"])
}

func TestNormalize_MissingFieldsStayEmpty(t *testing.T) {
	ev := normalize.Normalize(events.Notification{Outcome: events.OutcomeFailed})
	assert.Equal(t, events.KindFailed, ev.Kind)
	assert.Empty(t, ev.Host)
	assert.Empty(t, ev.Task)
	assert.Nil(t, ev.Payload)
}
