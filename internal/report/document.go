// Package report assembles the final run document and writes it to a sink.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tsupplis/ansible-callbacks/internal/recap"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"
)

// Top-level document keys.
const (
	KeyEvents    = "events"
	KeyPlayRecap = "play_recap"
	// KeyUnencodablePayload replaces a payload that failed to encode.
	KeyUnencodablePayload = "unencodable_payload"
)

// Document is the single structured object emitted at the end of a run.
type Document struct {
	// Events is the ordered event log. It is never nil.
	Events []events.Event
	// PlayRecap is the per-host summary in first-seen host order.
	PlayRecap recap.PlayRecap
}

// Serialize assembles a Document. The event slice is copied so later changes
// to evs do not reach the document.
func Serialize(evs []events.Event, r recap.PlayRecap) Document {
	out := make([]events.Event, len(evs))
	copy(out, evs)
	return Document{Events: out, PlayRecap: r}
}

// MarshalJSON renders the document compactly with events first. An empty
// event log renders as [].
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"` + KeyEvents + `":[`)
	for i, ev := range d.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := encodeEvent(ev)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteString(`],"` + KeyPlayRecap + `":`)
	rb, err := d.PlayRecap.MarshalJSON()
	if err != nil {
		return nil, err
	}
	buf.Write(rb)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeEvent marshals one event without HTML escaping and without the
// trailing newline json.Encoder adds. A payload that cannot be encoded is
// replaced by the encoding error so the document stays complete.
func encodeEvent(ev events.Event) ([]byte, error) {
	b, err := marshalEvent(ev)
	if err == nil {
		return b, nil
	}
	ev.Payload = map[string]interface{}{KeyUnencodablePayload: err.Error()}
	if b, err := marshalEvent(ev); err == nil {
		return b, nil
	}
	return nil, fmt.Errorf("encode %s event for host '%s': %w", ev.Kind, ev.Host, err)
}

func marshalEvent(ev events.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
