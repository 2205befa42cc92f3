package hostproto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/phroun/pawrun"
)

// StatusEvalError marks an eval that ran and ended with a script error
const StatusEvalError = "eval-error"

var operations = []string{"eval", "describe", "ping"}

// Options configure a Handler
type Options struct {
	Debug         bool
	LogCategories []pawrun.LogCategory
	// Dir is the working directory of evals that send no cwd
	Dir string
	// Session is the session config every eval starts from; nil uses the
	// built-in defaults
	Session *pawrun.SessionConfig
	// Commands are added to every eval
	Commands []*pawrun.Command
}

// Handler answers requests. Every eval builds its own Runner over a host
// made from the request, so requests share nothing mutable.
type Handler struct {
	opts    Options
	inspect *pawrun.Runner
}

// NewHandler creates a handler
func NewHandler(opts Options) (*Handler, error) {
	h := &Handler{opts: opts}
	r, err := h.runner(io.Discard, io.Discard, &pawrun.StaticHost{Dir: opts.Dir, Config: opts.Session})
	if err != nil {
		return nil, err
	}
	h.inspect = r
	return h, nil
}

func (h *Handler) runner(out, errOut io.Writer, host pawrun.Host) (*pawrun.Runner, error) {
	r := pawrun.New(&pawrun.Config{
		Debug:         h.opts.Debug,
		LogCategories: h.opts.LogCategories,
		Output:        out,
		ErrOutput:     errOut,
		Host:          host,
	})
	for _, cmd := range h.opts.Commands {
		if err := r.RegisterCommand(cmd); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Handle answers one request. The response carries the request's ID.
func (h *Handler) Handle(ctx context.Context, req *Message) *Message {
	resp := &Message{ID: req.ID}
	if err := ctx.Err(); err != nil {
		return protocolError(resp, "interrupted: %v", err)
	}
	switch req.Op {
	case "eval":
		return h.handleEval(req, resp)
	case "describe":
		return h.handleDescribe(req, resp)
	case "ping":
		resp.Value = "pong"
		resp.Status = []string{StatusDone}
		return resp
	case "":
		return protocolError(resp, "request has no op")
	default:
		return protocolError(resp, "unknown operation: %q", req.Op)
	}
}

func protocolError(resp *Message, format string, args ...interface{}) *Message {
	resp.Status = []string{StatusError}
	resp.ProtocolError = fmt.Sprintf(format, args...)
	return resp
}

func (h *Handler) handleEval(req *Message, resp *Message) *Message {
	if req.Source == "" {
		return protocolError(resp, "eval operation requires 'source' field")
	}
	dir := req.Cwd
	if dir == "" {
		dir = h.opts.Dir
	}
	var out, diag bytes.Buffer
	r, err := h.runner(&out, &diag, &pawrun.StaticHost{Dir: dir, Env: req.Env, Config: h.opts.Session})
	if err != nil {
		return protocolError(resp, "%v", err)
	}

	input := pawrun.EmptyPipeline()
	if req.Input != nil {
		input = pawrun.NewValuePipeline(pawrun.FromGo(req.Input, pawrun.Span{}))
	}
	var overrides pawrun.Overrides
	if req.Overrides != nil {
		overrides = pawrun.StringOverrides(req.Overrides.RenderingMode, req.Overrides.ErrorStyle)
	}

	result, err := r.Evaluate(req.Source, input, overrides)
	resp.Output = out.String()
	resp.Diagnostics = diag.String()
	if err != nil {
		var serr *pawrun.StructuredError
		if errors.As(err, &serr) {
			resp.Error = NewErrorInfo(serr)
		} else {
			resp.Error = &ErrorInfo{Kind: "evaluation error", Message: err.Error()}
		}
		resp.Status = []string{StatusDone, StatusEvalError}
		return resp
	}
	if !result.IsEmpty() {
		resp.Value = pawrun.ToGo(result.IntoValue(pawrun.Span{}))
	}
	resp.Status = []string{StatusDone}
	return resp
}

func (h *Handler) handleDescribe(req *Message, resp *Message) *Message {
	if req.Name != "" {
		info, ok := h.inspect.Describe(req.Name)
		if !ok {
			return protocolError(resp, "unknown command: %q", req.Name)
		}
		resp.Data = map[string]interface{}{"command": commandData(info)}
		resp.Status = []string{StatusDone}
		return resp
	}
	var commands []interface{}
	for _, info := range h.inspect.Commands() {
		commands = append(commands, commandData(info))
	}
	resp.Data = map[string]interface{}{
		"versions": map[string]interface{}{
			"pawrun":   pawrun.Version(),
			"protocol": ProtocolVersion,
		},
		"ops":      operations,
		"commands": commands,
	}
	resp.Status = []string{StatusDone}
	return resp
}

func commandData(info pawrun.CommandInfo) map[string]interface{} {
	examples := make([]interface{}, 0, len(info.Examples))
	for _, ex := range info.Examples {
		examples = append(examples, map[string]interface{}{
			"example":     ex.Source,
			"description": ex.Description,
		})
	}
	data := map[string]interface{}{
		"name":        info.Name,
		"usage":       info.Usage,
		"description": info.Description,
		"category":    string(info.Category),
		"examples":    examples,
	}
	if info.Deprecated != "" {
		data["deprecated"] = info.Deprecated
	}
	return data
}
