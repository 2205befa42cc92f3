package pawrun

import (
	"io"
	"sync"
)

// commandLayer is one set of commands in the base registry
type commandLayer struct {
	name     string
	register func(ws *WorkingSet)
}

// commandLayers are registered in order; later layers may use earlier ones
var commandLayers = []commandLayer{
	{"core", addCoreCommands},
	{"general", addGeneralCommands},
	{"extra", addExtraCommands},
	{"session", addSessionCommands},
}

var (
	baseOnce     sync.Once
	baseRegistry *registry
)

// buildBaseRegistry registers every command layer through its own working
// set and delta, then freezes the result
func buildBaseRegistry(logger *Logger) *registry {
	state := newEngineState(nil, logger, io.Discard)
	for _, layer := range commandLayers {
		ws := NewWorkingSet(state)
		layer.register(ws)
		if err := state.MergeDelta(ws.Render()); err != nil {
			state.logger.ReportShellError(asStructured(err, UnknownSpan))
			continue
		}
		state.logger.DebugCat(CatSystem, "registered %s commands", layer.name)
	}
	return state.freeze()
}

// sharedBaseRegistry returns the process-wide base registry. It is built
// once and never modified afterwards.
func sharedBaseRegistry() *registry {
	baseOnce.Do(func() {
		baseRegistry = buildBaseRegistry(nil)
	})
	return baseRegistry
}

// BuildContext assembles a fresh EngineState and Stack for one call.
// Working-directory problems are reported and do not stop the call.
func BuildContext(config *Config, host Host, snap Snapshot, logger *Logger) (*EngineState, *Stack) {
	var base *registry
	if config.RebuildRegistry {
		base = buildBaseRegistry(logger)
	} else {
		base = sharedBaseRegistry()
	}
	state := newEngineState(base, logger, config.Output)
	stack := NewStack()

	if dir, err := host.CurrentDir(); err != nil {
		state.logger.ReportShellError(newError(ErrorEvaluation, UnknownSpan, "Unable to determine the current directory", err.Error()))
	} else if err := stack.SetCwd(dir); err != nil {
		state.logger.ReportShellError(asStructured(err, UnknownSpan))
	}

	ws := NewWorkingSet(state)
	addInjectedCommands(ws)
	if err := state.MergeDelta(ws.Render()); err != nil {
		state.logger.ReportShellError(asStructured(err, UnknownSpan))
	}

	gatherParentEnvVars(state, snap)
	return state, stack
}
