// Package normalize turns raw upstream task-result notifications into
// canonical events.
package normalize

import (
	"github.com/tsupplis/ansible-callbacks/internal/util"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"
)

// Result keys inspected during classification.
const (
	keyChanged = "changed"
	keyFailed  = "failed"
	keyResults = "results"
)

// Normalize produces exactly one Event for n. It never fails: missing fields
// stay empty and the payload is copied into JSON-safe values without dropping
// keys. The returned event has no sequence number yet.
func Normalize(n events.Notification) events.Event {
	return events.Event{
		Kind:    Classify(n),
		Host:    n.Host,
		Task:    n.Task,
		Role:    n.Role,
		Payload: util.SanitizeMap(n.Payload),
	}
}

// Classify decides the event kind. Debug messages are always task_debug.
// Otherwise failure beats changed, which beats ok; unreachable stands on its
// own. Flags in the payload can only escalate the upstream verdict.
func Classify(n events.Notification) events.Kind {
	if n.IsDebugMessage || n.Outcome == events.OutcomeDebug {
		return events.KindTaskDebug
	}
	if n.Outcome == events.OutcomeUnreachable {
		return events.KindUnreachable
	}
	if n.Outcome == events.OutcomeFailed || IsFailed(n.Payload) {
		return events.KindFailed
	}
	if n.Outcome == events.OutcomeChanged || IsChanged(n.Payload) {
		return events.KindChanged
	}
	return events.KindOK
}

// IsChanged reports whether a result, or any of its loop item results, is
// flagged changed.
func IsChanged(payload map[string]interface{}) bool {
	return flagged(payload, keyChanged)
}

// IsFailed reports whether a result, or any of its loop item results, is
// flagged failed.
func IsFailed(payload map[string]interface{}) bool {
	return flagged(payload, keyFailed)
}

func flagged(payload map[string]interface{}, key string) bool {
	if payload == nil {
		return false
	}
	if truthy(payload[key]) {
		return true
	}
	items, ok := payload[keyResults].([]interface{})
	if !ok {
		return false
	}
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok && truthy(m[key]) {
			return true
		}
	}
	return false
}

// truthy accepts real booleans only; strings such as "false" in a result are
// data, not flags.
func truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}
