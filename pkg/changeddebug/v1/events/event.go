// Package events defines the canonical event model shared by the callback,
// the aggregator and the report serializer.
package events

// Kind classifies a normalized event. The set is closed.
type Kind string

// Standard event kinds. KindOK is the only kind hidden by default.
const (
	KindTaskDebug   Kind = "task_debug"
	KindChanged     Kind = "changed"
	KindFailed      Kind = "failed"
	KindUnreachable Kind = "unreachable"
	KindOK          Kind = "ok"
)

// Valid reports whether k is one of the known event kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindTaskDebug, KindChanged, KindFailed, KindUnreachable, KindOK:
		return true
	}
	return false
}

// Outcome is the upstream discriminator describing what happened to a task.
type Outcome string

// Outcomes delivered by the upstream engine.
const (
	OutcomeOK          Outcome = "ok"
	OutcomeChanged     Outcome = "changed"
	OutcomeFailed      Outcome = "failed"
	OutcomeUnreachable Outcome = "unreachable"
	OutcomeDebug       Outcome = "debug"
)

// Notification is one raw task-result notification as delivered upstream.
// Nothing in it is trusted: missing fields simply stay zero.
type Notification struct {
	// Outcome is the upstream verdict for the task.
	Outcome Outcome `json:"kind"`
	// Host names the target host the result belongs to.
	Host string `json:"host"`
	// Task is the task name as displayed by the engine.
	Task string `json:"task"`
	// Role is the role owning the task, if any.
	Role string `json:"role,omitempty"`
	// Payload is the raw result mapping.
	Payload map[string]interface{} `json:"payload"`
	// IsDebugMessage marks debug/verbose output; it overrides Outcome.
	IsDebugMessage bool `json:"isDebugMessage"`
}

// Event is one normalized notification. Events are immutable once admitted
// to a run log.
type Event struct {
	Kind    Kind                   `json:"kind"`
	Host    string                 `json:"host"`
	Task    string                 `json:"task"`
	Role    string                 `json:"role,omitempty"`
	Payload map[string]interface{} `json:"payload"`

	// Sequence is the admission position within the run, starting at 1.
	// It is assigned by the aggregator and never serialized.
	Sequence uint64 `json:"-"`
}
