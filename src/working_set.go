package pawrun

// WorkingSet is a mutable view over an EngineState used while parsing.
// Declarations added here are visible to the parser immediately and reach
// the state only when the rendered Delta is merged.
type WorkingSet struct {
	state   *EngineState
	decls   []*Command
	names   map[string]DeclID
	nextVar VarID

	baseDecls int
	baseVars  VarID

	ParseWarnings []*StructuredError
	ParseErrors   []*StructuredError
	CompileErrors []*StructuredError
}

// NewWorkingSet starts a working set over state
func NewWorkingSet(state *EngineState) *WorkingSet {
	return &WorkingSet{
		state:     state,
		names:     make(map[string]DeclID),
		nextVar:   state.NumVars(),
		baseDecls: state.NumDecls(),
		baseVars:  state.NumVars(),
	}
}

// FindDecl looks a command up, newest declarations first
func (ws *WorkingSet) FindDecl(name string) (DeclID, bool) {
	if id, ok := ws.names[name]; ok {
		return id, true
	}
	return ws.state.FindDecl(name)
}

// GetDecl returns a declaration known to the working set
func (ws *WorkingSet) GetDecl(id DeclID) *Command {
	if int(id) >= ws.baseDecls {
		idx := int(id) - ws.baseDecls
		if idx < len(ws.decls) {
			return ws.decls[idx]
		}
		return nil
	}
	cmd, err := ws.state.Decl(id)
	if err != nil {
		return nil
	}
	return cmd
}

// AddDecl registers a new declaration and returns its id
func (ws *WorkingSet) AddDecl(cmd *Command) DeclID {
	id := DeclID(ws.baseDecls + len(ws.decls))
	ws.decls = append(ws.decls, cmd)
	ws.names[cmd.Name] = id
	return id
}

// NewVar allocates a variable id
func (ws *WorkingSet) NewVar() VarID {
	id := ws.nextVar
	ws.nextVar++
	return id
}

// names known to the working set, for suggestions
func (ws *WorkingSet) allNames() []string {
	names := ws.state.declNames()
	for name := range ws.names {
		if _, ok := ws.state.FindDecl(name); !ok {
			names = append(names, name)
		}
	}
	return names
}

func (ws *WorkingSet) addWarning(err *StructuredError) {
	ws.ParseWarnings = append(ws.ParseWarnings, err)
}

func (ws *WorkingSet) addError(err *StructuredError) {
	ws.ParseErrors = append(ws.ParseErrors, err)
}

func (ws *WorkingSet) addCompileError(err *StructuredError) {
	ws.CompileErrors = append(ws.CompileErrors, err)
}

// Render produces the Delta of everything added through this working set
func (ws *WorkingSet) Render() *Delta {
	decls := make([]*Command, len(ws.decls))
	copy(decls, ws.decls)
	return &Delta{
		decls:     decls,
		baseDecls: ws.baseDecls,
		baseVars:  ws.baseVars,
		nextVar:   ws.nextVar,
	}
}

// Delta is the write-once set of declarations produced by one parse
type Delta struct {
	decls     []*Command
	baseDecls int
	baseVars  VarID
	nextVar   VarID
	merged    bool
}

// NumDecls returns the number of declarations in the delta
func (d *Delta) NumDecls() int { return len(d.decls) }

// Merged reports whether the delta has been committed
func (d *Delta) Merged() bool { return d.merged }
