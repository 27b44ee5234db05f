package replay_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/tsupplis/ansible-callbacks/internal/callback"
	"github.com/tsupplis/ansible-callbacks/internal/config"
	"github.com/tsupplis/ansible-callbacks/internal/logger"
	"github.com/tsupplis/ansible-callbacks/internal/replay"
	"github.com/tsupplis/ansible-callbacks/internal/report"
	changeddebug "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1"
	cderrors "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type document struct {
	Events    []map[string]interface{}      `json:"events"`
	PlayRecap map[string]map[string]float64 `json:"play_recap"`
}

func replayInto(t *testing.T, input string, showOK bool) (replay.Summary, document, error) {
	t.Helper()
	var buf bytes.Buffer
	cb, err := callback.New(config.Config{ShowUnchangedOK: showOK}, logger.NewDiscardLogger(), changeddebug.WithOutput("buffer", &buf))
	require.NoError(t, err)

	sum, runErr := replay.New(cb, nil).Run(context.Background(), strings.NewReader(input))

	require.NoError(t, report.Validate(buf.Bytes()), buf.String())
	var doc document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	return sum, doc, runErr
}

func TestReplay_FullStream(t *testing.T) {
	data, err := os.ReadFile("testdata/site.ndjson")
	require.NoError(t, err)

	sum, doc, runErr := replayInto(t, string(data), false)
	require.NoError(t, runErr)
	assert.True(t, sum.Completed)
	assert.Equal(t, 1, sum.Malformed)
	assert.Equal(t, 1, sum.Ignored)
	assert.Equal(t, 8, sum.Records)

	var kinds []string
	for _, ev := range doc.Events {
		kinds = append(kinds, ev["kind"].(string))
	}
	assert.Equal(t, []string{"changed", "unreachable", "task_debug", "failed"}, kinds)
	assert.Equal(t, "nginx", doc.Events[0]["role"])

	assert.Equal(t, map[string]float64{"ok": 2, "changed": 1, "failed": 1, "unreachable": 0, "skipped": 1}, doc.PlayRecap["web1"])
	assert.Equal(t, map[string]float64{"ok": 0, "changed": 0, "failed": 0, "unreachable": 1, "skipped": 0}, doc.PlayRecap["web2"])
	assert.Equal(t, map[string]float64{"ok": 0, "changed": 0, "failed": 0, "unreachable": 0, "skipped": 0}, doc.PlayRecap["db1"])
}

func TestReplay_LoopTasksCountOnce(t *testing.T) {
	data, err := os.ReadFile("testdata/loop.ndjson")
	require.NoError(t, err)

	tests := []struct {
		showOK bool
		kinds  []string
	}{
		{showOK: false, kinds: []string{"changed", "failed"}},
		{showOK: true, kinds: []string{"ok", "changed", "ok", "failed", "ok"}},
	}
	for _, tt := range tests {
		sum, doc, runErr := replayInto(t, string(data), tt.showOK)
		require.NoError(t, runErr)
		assert.Equal(t, 9, sum.Records)
		assert.Equal(t, 1, sum.Ignored, "runner_item_on_failed is left to the task result")

		var kinds []string
		for _, ev := range doc.Events {
			kinds = append(kinds, ev["kind"].(string))
		}
		assert.Equal(t, tt.kinds, kinds, "show_unchanged_ok=%t", tt.showOK)
		assert.Equal(t, map[string]float64{"ok": 1, "changed": 1, "failed": 1, "unreachable": 0, "skipped": 0}, doc.PlayRecap["app1"],
			"three loop tasks count three outcomes")
	}
}

func TestReplay_TruncatedStreamStillEmits(t *testing.T) {
	input := `{"event":"runner_on_ok","event_data":{"host":"h1","task":"copy","res":{"changed":true}}}` + "\n"
	sum, doc, runErr := replayInto(t, input, false)

	require.Error(t, runErr)
	assert.True(t, errors.Is(runErr, replay.ErrIncompleteStream))
	assert.False(t, sum.Completed)
	require.Len(t, doc.Events, 1)
	assert.Equal(t, float64(1), doc.PlayRecap["h1"]["changed"])
}

func TestReplay_EmptyStream(t *testing.T) {
	_, doc, runErr := replayInto(t, "", false)
	assert.ErrorIs(t, runErr, replay.ErrIncompleteStream)
	assert.Empty(t, doc.Events)
	assert.Empty(t, doc.PlayRecap)
}

func TestReplay_CancelledContext(t *testing.T) {
	var buf bytes.Buffer
	cb, err := callback.New(config.Config{}, logger.NewDiscardLogger(), changeddebug.WithOutput("buffer", &buf))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, runErr := replay.New(cb, nil).Run(ctx, strings.NewReader(`{"event":"playbook_on_stats","event_data":{}}`+"\n"))
	assert.ErrorIs(t, runErr, context.Canceled)
	assert.NoError(t, report.Validate(buf.Bytes()), "a best-effort report is still written")
}

func TestValidateRecord(t *testing.T) {
	assert.NoError(t, replay.ValidateRecord([]byte(`{"event":"runner_on_ok","event_data":{"host":"h"}}`)))

	for _, bad := range []string{
		`{"event_data":{}}`,
		`{"event":""}`,
		`{"event":"runner_on_ok","event_data":{"res":"text"}}`,
		`[1,2]`,
		`{oops`,
	} {
		err := replay.ValidateRecord([]byte(bad))
		require.Error(t, err, bad)
		var verr *cderrors.ValidationError
		assert.True(t, errors.As(err, &verr), bad)
	}
}
