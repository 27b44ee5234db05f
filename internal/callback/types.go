// Package callback adapts the automation engine's push-style lifecycle
// callbacks onto an aggregator run and emits the report when the run ends.
package callback

// Debug task actions. Their results become task_debug events.
var debugActions = map[string]struct{}{
	"debug":                 {},
	"ansible.builtin.debug": {},
}

// Result keys read by the adapter.
const (
	keyItemResult = "_ansible_item_result"
	keyMsg        = "msg"
)

// Task describes the task a result belongs to.
type Task struct {
	// Name is the display name of the task.
	Name string
	// UUID is the engine's task identifier; it may be empty.
	UUID string
	// Action is the module invoked by the task, e.g. "ansible.builtin.copy".
	Action string
	// Role is the owning role, empty for play-level tasks.
	Role string
}

// IsDebug reports whether the task runs the debug action.
func (t Task) IsDebug() bool {
	_, ok := debugActions[t.Action]
	return ok
}

// identity is the per-run identity of the task used for de-duplication.
func (t Task) identity() string {
	if t.UUID != "" {
		return t.UUID
	}
	return t.Name
}

// Result is one host-bound task result.
type Result struct {
	Host string
	Task Task
	// Data is the raw result mapping; it may be nil.
	Data map[string]interface{}
}

func (r Result) isItemResult() bool {
	v, ok := r.Data[keyItemResult].(bool)
	return ok && v
}

// Stats is the end-of-run statistics record. Only host membership is used:
// counts always come from the admitted results.
type Stats struct {
	// Processed lists every host the engine worked on.
	Processed []string
	// Dark lists hosts that became unreachable.
	Dark []string
}
