package report

import (
	"github.com/tsupplis/ansible-callbacks/internal/recap"
	"github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/events"
)

// Line is one rendered line of the document plus the style used to colour it.
type Line struct {
	Text  string
	Style Style
}

// Lines lays the document out one entry per line: each event and each recap
// row is compact JSON on its own line, so the whole text stays valid JSON and
// a terminal can colour entries individually.
func (d Document) Lines() ([]Line, error) {
	lines := make([]Line, 0, len(d.Events)+d.PlayRecap.Len()+6)
	lines = append(lines,
		Line{Text: "{"},
		Line{Text: `  "` + KeyEvents + `": [`},
	)
	for i, ev := range d.Events {
		b, err := encodeEvent(ev)
		if err != nil {
			return nil, err
		}
		lines = append(lines, Line{Text: "    " + string(b) + comma(i, len(d.Events)), Style: StyleForKind(ev.Kind)})
	}
	lines = append(lines,
		Line{Text: "  ],"},
		Line{Text: `  "` + KeyPlayRecap + `": {`, Style: StyleHeader},
	)
	entries := d.PlayRecap.Entries()
	for i, e := range entries {
		b, err := recap.MarshalRow(e)
		if err != nil {
			return nil, err
		}
		lines = append(lines, Line{Text: "    " + string(b) + comma(i, len(entries)), Style: StyleForTally(e.Tally)})
	}
	lines = append(lines,
		Line{Text: "  }", Style: StyleHeader},
		Line{Text: "}"},
	)
	return lines, nil
}

func comma(i, n int) string {
	if i < n-1 {
		return ","
	}
	return ""
}

// StyleForKind picks the colour of an event line.
func StyleForKind(k events.Kind) Style {
	switch k {
	case events.KindTaskDebug:
		return StyleDebug
	case events.KindChanged:
		return StyleChanged
	case events.KindFailed:
		return StyleFailed
	case events.KindUnreachable:
		return StyleUnreachable
	default:
		return StyleOK
	}
}

// StyleForTally picks the colour of a recap row: unreachable beats failed,
// which beats changed; anything else is ok.
func StyleForTally(t recap.Tally) Style {
	switch {
	case t.Unreachable > 0:
		return StyleUnreachable
	case t.Failed > 0:
		return StyleFailed
	case t.Changed > 0:
		return StyleChanged
	default:
		return StyleOK
	}
}
