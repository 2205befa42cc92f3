package pawrun

import (
	"path/filepath"
)

// VarID identifies a variable declaration resolved at parse time
type VarID int

// Reserved variables present in every call
const (
	InVarID        VarID = 0 // $in
	EnvVarID       VarID = 1 // $env
	firstUserVarID VarID = 2
)

// Stack holds the variable bindings and environment overlay of one call.
// Child stacks see their parent's bindings and share its environment.
type Stack struct {
	vars   map[VarID]Value
	parent *Stack
	env    *Record
}

// NewStack creates an empty root stack
func NewStack() *Stack {
	return &Stack{vars: make(map[VarID]Value), env: NewRecord()}
}

// child creates a nested scope for blocks and closures
func (s *Stack) child() *Stack {
	return &Stack{vars: make(map[VarID]Value), parent: s, env: s.env}
}

// detached creates a scope for a custom command body: it shares the
// environment overlay but none of the caller's variables
func (s *Stack) detached() *Stack {
	return &Stack{vars: make(map[VarID]Value), env: s.env}
}

// AddVar binds a variable in this scope
func (s *Stack) AddVar(id VarID, v Value) {
	s.vars[id] = v
}

// GetVar looks a variable up through the scope chain
func (s *Stack) GetVar(id VarID) (Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[id]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// SetCwd sets the working directory of the stack; relative paths are refused
func (s *Stack) SetCwd(dir string) error {
	if !filepath.IsAbs(dir) {
		err := newEvalError(UnknownSpan, "Invalid current directory")
		err.Label = "the path '" + dir + "' is not absolute"
		return err
	}
	s.env.Set("PWD", StringValue(filepath.Clean(dir), UnknownSpan))
	return nil
}

// Cwd returns the stack's working directory, or "" when none is set
func (s *Stack) Cwd() string {
	if v, ok := s.env.Get("PWD"); ok && v.Kind == KindString {
		return v.Str
	}
	return ""
}

// SetEnv sets an overlay environment variable
func (s *Stack) SetEnv(name string, v Value) {
	s.env.Set(name, v)
}

// envRecord merges the permanent environment with the overlay
func (s *Stack) envRecord(state *EngineState) *Record {
	out := state.env.Clone()
	s.env.Each(func(k string, v Value) { out.Set(k, v) })
	return out
}

// GetEnv looks up an environment variable, overlay first
func (s *Stack) GetEnv(state *EngineState, name string) (Value, bool) {
	if v, ok := s.env.Get(name); ok {
		return v, true
	}
	return state.env.Get(name)
}

// resolvePath makes path absolute against the stack's working directory
func (s *Stack) resolvePath(state *EngineState, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	base := s.Cwd()
	if base == "" {
		if v, ok := state.env.Get("PWD"); ok && v.Kind == KindString {
			base = v.Str
		}
	}
	return filepath.Join(base, path)
}
