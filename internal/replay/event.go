// Package replay drives a callback from a recorded stream of ansible-runner
// job events, one JSON object per line.
package replay

import (
	"encoding/json"
	"sort"

	"github.com/tsupplis/ansible-callbacks/internal/callback"
)

// Job event types the replayer acts on. Every other type is ignored.
// See https://ansible.readthedocs.io/projects/runner/en/stable/intro/#artifactevents
const (
	EventPlaybookStart     = "playbook_on_start"
	EventRunnerOK          = "runner_on_ok"
	EventRunnerItemOK      = "runner_item_on_ok"
	EventRunnerFailed      = "runner_on_failed"
	EventRunnerUnreachable = "runner_on_unreachable"
	EventRunnerSkipped     = "runner_on_skipped"
	EventPlaybookStats     = "playbook_on_stats"
)

// JobEvent is one ansible-runner job event record.
type JobEvent struct {
	UUID      string          `json:"uuid"`
	Counter   int             `json:"counter"`
	Event     string          `json:"event"`
	EventData json.RawMessage `json:"event_data"`
}

type playbookEventData struct {
	Playbook string `json:"playbook"`
}

type runnerEventData struct {
	Playbook     string                 `json:"playbook"`
	Play         string                 `json:"play"`
	Task         string                 `json:"task"`
	TaskUUID     string                 `json:"task_uuid"`
	TaskAction   string                 `json:"task_action"`
	Role         string                 `json:"role"`
	Host         string                 `json:"host"`
	Result       map[string]interface{} `json:"res"`
	IgnoreErrors bool                   `json:"ignore_errors"`
}

func (d runnerEventData) result() callback.Result {
	return callback.Result{
		Host: d.Host,
		Task: callback.Task{
			Name:   d.Task,
			UUID:   d.TaskUUID,
			Action: d.TaskAction,
			Role:   d.Role,
		},
		Data: d.Result,
	}
}

// statsEventData maps host names to counts; only membership matters here.
type statsEventData struct {
	Processed map[string]int `json:"processed"`
	Dark      map[string]int `json:"dark"`
}

func (d statsEventData) stats() callback.Stats {
	return callback.Stats{Processed: sortedHosts(d.Processed), Dark: sortedHosts(d.Dark)}
}

// sortedHosts returns the keys of m in name order, like the engine's own
// recap display.
func sortedHosts(m map[string]int) []string {
	hosts := make([]string, 0, len(m))
	for h := range m {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}
