package visibility_test

import (
	"testing"

	"github.com/tsupplis/ansible-callbacks/internal/config"
	"github.com/tsupplis/ansible-callbacks/internal/visibility"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"

	"github.com/stretchr/testify/assert"
)

func TestRetain(t *testing.T) {
	hidden := config.Config{ShowUnchangedOK: false}
	shown := config.Config{ShowUnchangedOK: true}

	testCases := []struct {
		kind        events.Kind
		whenHidden  bool
		whenShowing bool
	}{
		{events.KindOK, false, true},
		{events.KindChanged, true, true},
		{events.KindFailed, true, true},
		{events.KindUnreachable, true, true},
		{events.KindTaskDebug, true, true},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			ev := events.Event{Kind: tc.kind, Host: "h1", Task: "t"}
			assert.Equal(t, tc.whenHidden, visibility.Retain(ev, hidden))
			assert.Equal(t, tc.whenShowing, visibility.Retain(ev, shown))
			assert.Equal(t, tc.whenShowing, visibility.NewPolicy(shown).Retain(ev))
		})
	}
}

func TestPolicy_CapturesConfigByValue(t *testing.T) {
	cfg := config.Config{ShowUnchangedOK: true}
	policy := visibility.NewPolicy(cfg)
	cfg.ShowUnchangedOK = false

	assert.True(t, policy.Retain(events.Event{Kind: events.KindOK}))
	assert.True(t, policy.Config().ShowUnchangedOK)
}
