package pawrun

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
)

// TableMode selects the border style used when rendering tables
type TableMode string

const (
	TableBasic         TableMode = "basic"
	TableCompact       TableMode = "compact"
	TableCompactDouble TableMode = "compact_double"
	TableDefault       TableMode = "default"
	TableHeavy         TableMode = "heavy"
	TableLight         TableMode = "light"
	TableMarkdown      TableMode = "markdown"
	TableNone          TableMode = "none"
	TablePsql          TableMode = "psql"
	TableReinforced    TableMode = "reinforced"
	TableRounded       TableMode = "rounded"
	TableSingle        TableMode = "single"
	TableDouble        TableMode = "double"
	TableThin          TableMode = "thin"
	TableASCIIRounded  TableMode = "ascii_rounded"
	TableDots          TableMode = "dots"
)

var tableModes = []TableMode{
	TableBasic, TableCompact, TableCompactDouble, TableDefault, TableHeavy, TableLight,
	TableMarkdown, TableNone, TablePsql, TableReinforced, TableRounded, TableSingle,
	TableDouble, TableThin, TableASCIIRounded, TableDots,
}

// ParseTableMode accepts a table mode name, case-insensitively
func ParseTableMode(s string) (TableMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, mode := range tableModes {
		if string(mode) == name {
			if mode == TableDefault {
				return TableRounded, nil
			}
			return mode, nil
		}
	}
	return "", fmt.Errorf("unrecognized table mode '%s'", s)
}

// ErrorStyle selects how diagnostics are rendered
type ErrorStyle string

const (
	ErrorStyleFancy ErrorStyle = "fancy"
	ErrorStylePlain ErrorStyle = "plain"
	ErrorStyleShort ErrorStyle = "short"
)

// ParseErrorStyle accepts an error style name, case-insensitively
func ParseErrorStyle(s string) (ErrorStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fancy":
		return ErrorStyleFancy, nil
	case "plain":
		return ErrorStylePlain, nil
	case "short":
		return ErrorStyleShort, nil
	}
	return "", fmt.Errorf("unrecognized error style '%s', expected fancy, plain or short", s)
}

// ColorMode controls ANSI colouring of rendered output
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// SessionConfig is the per-call interpreter configuration. The host
// supplies the defaults; overrides shadow them for one call only.
type SessionConfig struct {
	TableMode      TableMode  `yaml:"table_mode" toml:"table_mode"`
	ErrorStyle     ErrorStyle `yaml:"error_style" toml:"error_style"`
	ColorMode      ColorMode  `yaml:"color_mode" toml:"color_mode"`
	FloatPrecision int        `yaml:"float_precision" toml:"float_precision"`
}

// DefaultSessionConfig returns the built-in defaults
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		TableMode:      TableRounded,
		ErrorStyle:     ErrorStyleFancy,
		ColorMode:      ColorAuto,
		FloatPrecision: 2,
	}
}

// Clone returns an independent copy
func (c *SessionConfig) Clone() *SessionConfig {
	if c == nil {
		return DefaultSessionConfig()
	}
	out := *c
	return &out
}

// Validate normalises enum fields, rejecting unknown names
func (c *SessionConfig) Validate() error {
	if c.TableMode != "" {
		mode, err := ParseTableMode(string(c.TableMode))
		if err != nil {
			return err
		}
		c.TableMode = mode
	}
	if c.ErrorStyle != "" {
		style, err := ParseErrorStyle(string(c.ErrorStyle))
		if err != nil {
			return err
		}
		c.ErrorStyle = style
	}
	switch c.ColorMode {
	case "", ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("unrecognized color mode '%s'", c.ColorMode)
	}
	if c.FloatPrecision < 0 {
		return fmt.Errorf("float_precision must not be negative")
	}
	return nil
}

// overlay lays the non-empty fields of src over a copy of c
func (c *SessionConfig) overlay(src *SessionConfig) (*SessionConfig, error) {
	out := c.Clone()
	if err := mergo.Merge(out, src, mergo.WithOverride); err != nil {
		return nil, err
	}
	return out, nil
}

// Overrides are the optional per-call settings supplied by the caller.
// Each is an opaque scalar value carrying the span it came from.
type Overrides struct {
	RenderingMode *Value
	ErrorStyle    *Value
}

// StringOverrides builds Overrides from plain strings; empty means unset
func StringOverrides(renderingMode, errorStyle string) Overrides {
	var o Overrides
	if renderingMode != "" {
		v := StringValue(renderingMode, UnknownSpan)
		o.RenderingMode = &v
	}
	if errorStyle != "" {
		v := StringValue(errorStyle, UnknownSpan)
		o.ErrorStyle = &v
	}
	return o
}

// applyErrorStyleOverride is fatal on any invalid value
func applyErrorStyleOverride(cfg *SessionConfig, override *Value) (*SessionConfig, error) {
	if override == nil {
		return cfg, nil
	}
	raw, err := override.CoerceString()
	if err != nil {
		return nil, err
	}
	style, perr := ParseErrorStyle(raw)
	if perr != nil {
		e := newError(ErrorConfigOverride, override.Span, "Invalid value for `--error-style`", perr.Error())
		return nil, e
	}
	out, err := cfg.overlay(&SessionConfig{ErrorStyle: style})
	if err != nil {
		return nil, newError(ErrorConfigOverride, override.Span, "Invalid value for `--error-style`", err.Error())
	}
	return out, nil
}

// applyTableModeOverride falls back to the default mode when the name does
// not parse; only a value that is not a scalar fails the call
func applyTableModeOverride(cfg *SessionConfig, override *Value) (*SessionConfig, error) {
	if override == nil {
		return cfg, nil
	}
	raw, err := override.CoerceString()
	if err != nil {
		return nil, err
	}
	mode, perr := ParseTableMode(raw)
	if perr != nil {
		mode = DefaultSessionConfig().TableMode
	}
	out, err := cfg.overlay(&SessionConfig{TableMode: mode})
	if err != nil {
		return nil, asStructured(err, override.Span)
	}
	return out, nil
}
