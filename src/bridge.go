package pawrun

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// Runner evaluates scripts on behalf of a host. Each call to Evaluate
// builds its own interpreter state; a Runner holds configuration only and
// may be used from several goroutines.
type Runner struct {
	config *Config
	logger *Logger

	mu       sync.RWMutex
	commands []*Command // registered by the host, added to every call
}

// New creates a Runner. A nil config uses DefaultConfig.
func New(config *Config) *Runner {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.ErrOutput == nil {
		cfg.ErrOutput = os.Stderr
	}
	if cfg.Host == nil {
		cfg.Host = NewProcessHost("")
	}
	logger := NewLogger(cfg.Debug, cfg.ErrOutput, cfg.ErrOutput)
	for _, cat := range cfg.LogCategories {
		logger.EnableCategory(cat)
	}
	if cfg.Debug && len(cfg.LogCategories) == 0 {
		logger.EnableAllCategories()
	}
	return &Runner{config: &cfg, logger: logger}
}

// Logger returns the runner's logger
func (r *Runner) Logger() *Logger {
	return r.logger
}

// Evaluate runs source with input and returns its output or the error
// that ended the call. Parse and compile diagnostics are reported to the
// error output and never fail the call.
func (r *Runner) Evaluate(source string, input PipelineData, overrides Overrides) (PipelineData, error) {
	host := r.config.Host
	snap := CollectSnapshot(host)
	logger := r.logger.forCall(source, ErrorStyleFancy)
	logger.DebugCat(CatHost, "snapshot cwd=%s env=%d", snap.Cwd, len(snap.Env))

	state, stack := BuildContext(r.config, host, snap, logger)
	state.source = source
	if err := r.mergeHostCommands(state); err != nil {
		return EmptyPipeline(), err
	}

	session, err := host.SessionConfig()
	if err != nil {
		logger.ReportShellError(newError(ErrorConfigOverride, UnknownSpan, "Unable to load session config", err.Error()))
		session = DefaultSessionConfig()
	}
	session, err = applyErrorStyleOverride(session, overrides.ErrorStyle)
	if err != nil {
		return EmptyPipeline(), err
	}
	state.SetConfig(session)
	logger.setStyle(session.ErrorStyle)
	switch session.ColorMode {
	case ColorAlways:
		logger.SetColor(true)
	case ColorNever:
		logger.SetColor(false)
	}

	if err := convertEnvValues(state); err != nil {
		return EmptyPipeline(), err
	}

	session, err = applyTableModeOverride(state.Config(), overrides.RenderingMode)
	if err != nil {
		return EmptyPipeline(), err
	}
	state.SetConfig(session)
	logger.DebugCat(CatConfig, "table_mode=%s error_style=%s", session.TableMode, session.ErrorStyle)

	ws := NewWorkingSet(state)
	block := Parse(ws, source)
	if len(ws.ParseWarnings) > 0 {
		logger.ReportParseWarning(ws.ParseWarnings[0])
	}
	if len(ws.ParseErrors) > 0 {
		logger.ReportParseError(ws.ParseErrors[0])
	}
	if len(ws.CompileErrors) > 0 {
		logger.ReportCompileError(ws.CompileErrors[0])
	}

	if err := state.MergeDelta(ws.Render()); err != nil {
		return EmptyPipeline(), err
	}

	out, err := EvalBlock(state, stack, block, input)
	if err != nil {
		return EmptyPipeline(), asStructured(err, block.Span)
	}
	return translateResult(out)
}

// FormatError renders an error returned by Evaluate against the source it
// came from, in the error style that call used
func (r *Runner) FormatError(err error, source string, overrides Overrides) string {
	style := ErrorStyleFancy
	if session, serr := r.config.Host.SessionConfig(); serr == nil {
		style = session.ErrorStyle
		if cfg, oerr := applyErrorStyleOverride(session, overrides.ErrorStyle); oerr == nil {
			style = cfg.ErrorStyle
		}
	}
	return r.logger.forCall(source, style).RenderError(asStructured(err, UnknownSpan))
}

// RegisterCommand adds a host command to every later call. A command with
// the name of a built-in shadows it.
func (r *Runner) RegisterCommand(cmd *Command) error {
	if cmd == nil || cmd.Name == "" {
		return fmt.Errorf("command needs a name")
	}
	if cmd.Run == nil {
		return fmt.Errorf("command %s has no handler", cmd.Name)
	}
	if cmd.Category == "" {
		cmd.Category = CategoryCustom
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	r.logger.DebugCat(CatCommand, "registered host command %s", cmd.Name)
	return nil
}

// RegisterHandler is RegisterCommand for a handler that takes no arguments
// beyond the input and any positional values
func (r *Runner) RegisterHandler(name, description string, handler Handler) error {
	return r.RegisterCommand(&Command{
		Name:        name,
		Description: description,
		Signature:   Signature{Rest: &PositionalArg{Name: "args", Shape: ShapeAny}},
		Run:         handler,
	})
}

func (r *Runner) mergeHostCommands(state *EngineState) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.commands) == 0 {
		return nil
	}
	ws := NewWorkingSet(state)
	for _, cmd := range r.commands {
		ws.AddDecl(cmd)
	}
	return state.MergeDelta(ws.Render())
}

// translateResult turns an embedded error into the call's error and passes
// anything else through
func translateResult(out PipelineData) (PipelineData, error) {
	switch out.Kind() {
	case PipelineError:
		embedded, _ := out.Err()
		return EmptyPipeline(), embedded
	default:
		return out, nil
	}
}

// CommandInfo is the metadata of a registered command
type CommandInfo struct {
	Name        string
	Usage       string
	Description string
	Category    Category
	Deprecated  string
	Examples    []Example
}

func commandInfo(cmd *Command) CommandInfo {
	return CommandInfo{
		Name:        cmd.Name,
		Usage:       cmd.Signature.Usage(cmd.Name),
		Description: cmd.Description,
		Category:    cmd.Category,
		Deprecated:  cmd.Deprecated,
		Examples:    cmd.Examples,
	}
}

// Commands lists the built-in commands, sorted by name
func (r *Runner) Commands() []CommandInfo {
	state, _ := r.inspectState()
	var out []CommandInfo
	for _, name := range commandNames(state) {
		id, _ := state.FindDecl(name)
		if cmd, err := state.Decl(id); err == nil {
			out = append(out, commandInfo(cmd))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Describe returns the metadata of one built-in command
func (r *Runner) Describe(name string) (CommandInfo, bool) {
	state, _ := r.inspectState()
	id, ok := state.FindDecl(name)
	if !ok {
		return CommandInfo{}, false
	}
	cmd, err := state.Decl(id)
	if err != nil {
		return CommandInfo{}, false
	}
	return commandInfo(cmd), true
}

// inspectState builds a state for metadata queries without a host snapshot
func (r *Runner) inspectState() (*EngineState, *Stack) {
	static := &StaticHost{Dir: string(os.PathSeparator)}
	quiet := NewLogger(false, r.config.ErrOutput, r.config.ErrOutput)
	state, stack := BuildContext(r.config, static, Snapshot{Env: map[string]string{}}, quiet)
	if err := r.mergeHostCommands(state); err != nil {
		quiet.ReportShellError(asStructured(err, UnknownSpan))
	}
	return state, stack
}
