// Package visibility decides which normalized events appear in the report's
// event log. It never affects recap counting.
package visibility

import (
	"github.com/tsupplis/ansible-callbacks/internal/config"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"
)

// Retain reports whether ev belongs in the event log under cfg. Every kind
// other than ok is retained; ok events only when ShowUnchangedOK is set.
func Retain(ev events.Event, cfg config.Config) bool {
	if ev.Kind != events.KindOK {
		return true
	}
	return cfg.ShowUnchangedOK
}

// Policy binds a configuration to Retain so it can be passed around as a
// predicate.
type Policy struct {
	cfg config.Config
}

// NewPolicy captures cfg by value.
func NewPolicy(cfg config.Config) Policy {
	return Policy{cfg: cfg}
}

// Retain applies the package-level Retain with the captured configuration.
func (p Policy) Retain(ev events.Event) bool {
	return Retain(ev, p.cfg)
}

// Config returns the captured configuration.
func (p Policy) Config() config.Config {
	return p.cfg
}
