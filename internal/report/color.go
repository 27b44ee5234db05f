package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Style is the semantic colour of a line.
type Style int

const (
	StylePlain Style = iota
	StyleHeader
	StyleDebug
	StyleOK
	StyleChanged
	StyleFailed
	StyleUnreachable
)

// ColorMode selects when report lines are coloured.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode validates a --color flag value.
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	case "":
		return ColorAuto, nil
	default:
		return "", fmt.Errorf("invalid color mode '%s' (want auto, always or never)", s)
	}
}

// Colorizer paints lines according to their style. The zero value paints
// nothing.
type Colorizer struct {
	enabled bool
	palette map[Style]*color.Color
}

// NewColorizer resolves mode against w. In auto mode colours are used only
// when w is the process stdout and fatih/color considers it a terminal.
func NewColorizer(mode ColorMode, w io.Writer) Colorizer {
	enabled := false
	switch mode {
	case ColorAlways:
		enabled = true
	case ColorAuto:
		enabled = w == os.Stdout && !color.NoColor
	}
	if !enabled {
		return Colorizer{}
	}
	palette := map[Style]*color.Color{
		StyleHeader:      color.New(color.FgBlue),
		StyleDebug:       color.New(color.FgHiBlack),
		StyleOK:          color.New(color.FgGreen),
		StyleChanged:     color.New(color.FgYellow),
		StyleFailed:      color.New(color.FgRed),
		StyleUnreachable: color.New(color.FgHiRed, color.Bold),
	}
	for _, c := range palette {
		c.EnableColor()
	}
	return Colorizer{enabled: true, palette: palette}
}

// Enabled reports whether Paint adds escape sequences.
func (c Colorizer) Enabled() bool { return c.enabled }

// Paint returns text wrapped in the escape sequences of style.
func (c Colorizer) Paint(style Style, text string) string {
	if !c.enabled {
		return text
	}
	p, ok := c.palette[style]
	if !ok {
		return text
	}
	return p.Sprint(text)
}
