package pawrun

import (
	"fmt"
	"io"
	"sync"
)

// registry is an immutable, append-only list of declarations with a name
// index. A registry is never modified once an EngineState refers to it.
type registry struct {
	decls []*Command
	names map[string]DeclID
}

func (r *registry) clone() *registry {
	out := &registry{
		decls: make([]*Command, len(r.decls)),
		names: make(map[string]DeclID, len(r.names)),
	}
	copy(out.decls, r.decls)
	for k, v := range r.names {
		out.names[k] = v
	}
	return out
}

// EngineState is the interpreter state of one call: the declaration
// registry, the permanent environment and the session config
type EngineState struct {
	mu sync.RWMutex

	base    *registry  // shared, read-only
	overlay []*Command // declarations merged during this call
	names   map[string]DeclID

	nextVar VarID
	depth   int
	env     *Record
	config  *SessionConfig
	out     io.Writer
	logger  *Logger
	// source is the text of the block being evaluated, for diagnostics
	source string
}

func newEngineState(base *registry, logger *Logger, out io.Writer) *EngineState {
	if base == nil {
		base = &registry{names: make(map[string]DeclID)}
	}
	if logger == nil {
		logger = NewLogger(false, out, nil)
	}
	return &EngineState{
		base:    base,
		names:   make(map[string]DeclID),
		nextVar: firstUserVarID,
		env:     NewRecord(),
		config:  DefaultSessionConfig(),
		out:     out,
		logger:  logger,
	}
}

// NumDecls returns the number of merged declarations
func (s *EngineState) NumDecls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.base.decls) + len(s.overlay)
}

// NumVars returns the next variable id to be allocated
func (s *EngineState) NumVars() VarID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextVar
}

// FindDecl looks a command up by name among merged declarations
func (s *EngineState) FindDecl(name string) (DeclID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.names[name]; ok {
		return id, true
	}
	id, ok := s.base.names[name]
	return id, ok
}

// Decl returns a merged declaration. Ids of declarations that have not
// been merged yet are refused.
func (s *EngineState) Decl(id DeclID) (*Command, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.base.decls)
	switch {
	case id >= 0 && int(id) < n:
		return s.base.decls[id], nil
	case int(id) >= n && int(id) < n+len(s.overlay):
		return s.overlay[int(id)-n], nil
	}
	return nil, newEvalError(UnknownSpan, "declaration %d has not been merged", id)
}

func (s *EngineState) declNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.base.names)+len(s.names))
	for name := range s.base.names {
		if _, shadowed := s.names[name]; !shadowed {
			names = append(names, name)
		}
	}
	for name := range s.names {
		names = append(names, name)
	}
	return names
}

// MergeDelta commits a delta. A delta can be merged once, and only into
// the state it was rendered against.
func (s *EngineState) MergeDelta(delta *Delta) error {
	if delta == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if delta.merged {
		return newMergeError("delta has already been merged")
	}
	if delta.baseDecls != len(s.base.decls)+len(s.overlay) {
		return newMergeError(fmt.Sprintf(
			"delta was built against %d declarations but the state has %d",
			delta.baseDecls, len(s.base.decls)+len(s.overlay)))
	}
	if delta.baseVars != s.nextVar {
		return newMergeError("delta variables conflict with the state")
	}
	for _, cmd := range delta.decls {
		id := DeclID(len(s.base.decls) + len(s.overlay))
		s.overlay = append(s.overlay, cmd)
		s.names[cmd.Name] = id
	}
	s.nextVar = delta.nextVar
	delta.merged = true
	s.logger.DebugCat(CatSystem, "merged %d declarations", len(delta.decls))
	return nil
}

// Config returns the session config in force
func (s *EngineState) Config() *SessionConfig {
	return s.config
}

// SetConfig replaces the session config for the rest of the call
func (s *EngineState) SetConfig(cfg *SessionConfig) {
	s.config = cfg
}

// Env returns a permanent environment variable
func (s *EngineState) Env(name string) (Value, bool) {
	return s.env.Get(name)
}

// freeze turns the merged declarations into a registry that can be shared
func (s *EngineState) freeze() *registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.base.clone()
	for _, cmd := range s.overlay {
		id := DeclID(len(out.decls))
		out.decls = append(out.decls, cmd)
		out.names[cmd.Name] = id
	}
	return out
}
