// Package hostproto carries script evaluation requests between a host
// process and a pawrun server over any byte stream.
package hostproto

import (
	"github.com/phroun/pawrun"
)

// ProtocolVersion is reported by the describe operation
const ProtocolVersion = "0.1.0"

// Message is a request or a response. Requests set Op; responses echo the
// request ID and set Status.
type Message struct {
	Op string `json:"op,omitempty" msgpack:"op,omitempty"`
	ID string `json:"id" msgpack:"id"`

	// eval
	Source    string            `json:"source,omitempty" msgpack:"source,omitempty"`
	Input     interface{}       `json:"input,omitempty" msgpack:"input"`
	Overrides *Overrides        `json:"overrides,omitempty" msgpack:"overrides,omitempty"`
	Cwd       string            `json:"cwd,omitempty" msgpack:"cwd,omitempty"`
	Env       map[string]string `json:"env,omitempty" msgpack:"env,omitempty"`

	// describe; empty lists every command
	Name string `json:"name,omitempty" msgpack:"name,omitempty"`

	Status []string    `json:"status,omitempty" msgpack:"status,omitempty"`
	Value  interface{} `json:"value,omitempty" msgpack:"value"`
	// Output is what print and table wrote during the call
	Output string `json:"output,omitempty" msgpack:"output,omitempty"`
	// Diagnostics holds rendered warnings and reported errors
	Diagnostics string `json:"diagnostics,omitempty" msgpack:"diagnostics,omitempty"`
	// Error is the structured error that ended an eval
	Error *ErrorInfo `json:"error,omitempty" msgpack:"error,omitempty"`
	// ProtocolError is for malformed requests and unknown operations only
	ProtocolError string `json:"protocol_error,omitempty" msgpack:"protocol_error,omitempty"`

	Data map[string]interface{} `json:"data,omitempty" msgpack:"data,omitempty"`
}

// Overrides are the optional per-call settings of an eval
type Overrides struct {
	RenderingMode string `json:"rendering_mode,omitempty" msgpack:"rendering_mode,omitempty"`
	ErrorStyle    string `json:"error_style,omitempty" msgpack:"error_style,omitempty"`
}

// ErrorInfo is a StructuredError in wire form
type ErrorInfo struct {
	Kind    string       `json:"kind" msgpack:"kind"`
	Message string       `json:"message" msgpack:"message"`
	Label   string       `json:"label,omitempty" msgpack:"label,omitempty"`
	Help    string       `json:"help,omitempty" msgpack:"help,omitempty"`
	Span    *SpanInfo    `json:"span,omitempty" msgpack:"span,omitempty"`
	Inner   []*ErrorInfo `json:"inner,omitempty" msgpack:"inner,omitempty"`
}

// SpanInfo is a byte range into the request's source
type SpanInfo struct {
	Start int `json:"start" msgpack:"start"`
	End   int `json:"end" msgpack:"end"`
}

// Status flags
const (
	StatusDone  = "done"
	StatusError = "error"
)

// NewErrorInfo converts a StructuredError, nested causes included
func NewErrorInfo(err *pawrun.StructuredError) *ErrorInfo {
	if err == nil {
		return nil
	}
	info := &ErrorInfo{
		Kind:    err.Kind.String(),
		Message: err.Message,
		Label:   err.Label,
		Help:    err.Help,
	}
	if err.Span != nil {
		info.Span = &SpanInfo{Start: err.Span.Start, End: err.Span.End}
	}
	for _, inner := range err.Inner {
		info.Inner = append(info.Inner, NewErrorInfo(inner))
	}
	return info
}
