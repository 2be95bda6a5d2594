// Package render writes search results to the console.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
)

// ColorMode selects when ANSI colors are emitted.
type ColorMode string

// Color modes accepted by --color.
const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ErrInvalidColorMode is returned for a --color value other than auto,
// always or never.
var ErrInvalidColorMode = errors.New("invalid color mode")

// ParseColorMode parses a --color value. Empty means auto.
func ParseColorMode(text string) (ColorMode, error) {
	switch mode := ColorMode(strings.ToLower(strings.TrimSpace(text))); mode {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q (want auto, always or never)", ErrInvalidColorMode, text)
	}
}

// palette holds one color per header element. Auto mode leaves each color to
// fatih/color's own terminal detection.
type palette struct {
	file      *color.Color
	sampleID  *color.Color
	epoch     *color.Color
	highlight *color.Color
	errLabel  *color.Color
	roles     map[evallog.Role]*color.Color
}

func newPalette(mode ColorMode) palette {
	pal := palette{
		file:      color.New(color.FgCyan),
		sampleID:  color.New(color.FgYellow),
		epoch:     color.New(color.FgGreen),
		highlight: color.New(color.FgRed, color.Bold),
		errLabel:  color.New(color.FgRed),
		roles: map[evallog.Role]*color.Color{
			evallog.RoleSystem:    color.New(color.FgMagenta, color.Bold),
			evallog.RoleUser:      color.New(color.FgBlue, color.Bold),
			evallog.RoleAssistant: color.New(color.FgGreen, color.Bold),
			evallog.RoleTool:      color.New(color.FgYellow, color.Bold),
		},
	}

	for _, c := range pal.all() {
		applyMode(c, mode)
	}

	return pal
}

// NewColor returns a fatih/color color that honors mode.
func NewColor(mode ColorMode, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	applyMode(c, mode)

	return c
}

func applyMode(c *color.Color, mode ColorMode) {
	switch mode {
	case ColorAlways:
		c.EnableColor()
	case ColorNever:
		c.DisableColor()
	case ColorAuto:
	}
}

func (p palette) all() []*color.Color {
	colors := []*color.Color{p.file, p.sampleID, p.epoch, p.highlight, p.errLabel}
	for _, c := range p.roles {
		colors = append(colors, c)
	}

	return colors
}

func (p palette) role(role evallog.Role) *color.Color {
	if c, ok := p.roles[role]; ok {
		return c
	}

	return color.New(color.Bold)
}
