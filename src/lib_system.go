package pawrun

import (
	"sort"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// addDateCommands registers date now
func addDateCommands(ws *WorkingSet) {
	ws.AddDecl(&Command{
		Name:        "date now",
		Description: "Returns the current time as RFC 3339 text.",
		Category:    CategoryCore,
		Signature:   Signature{Named: []Flag{switchFlag("utc", 'u', "use UTC instead of local time")}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			now := time.Now()
			if ctx.Has("utc") {
				now = now.UTC()
			}
			return valueResult(StringValue(now.Format(time.RFC3339Nano), ctx.Span))
		},
	})
}

// addSessionCommands registers the interactive/session command set
func addSessionCommands(ws *WorkingSet) {
	ws.AddDecl(&Command{
		Name:        "help",
		Description: "Lists commands, describes one, or searches with --find.",
		Category:    CategorySession,
		Signature: Signature{
			Rest:  &PositionalArg{Name: "command", Shape: ShapeString},
			Named: []Flag{valueFlag("find", 'f', ShapeString, "fuzzy search command names and descriptions")},
		},
		Examples: []Example{
			{Source: "help str join", Description: "describe str join"},
			{Source: "help --find srt", Description: "commands resembling srt"},
		},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			state := ctx.Engine
			names := commandNames(state)
			if f, ok := ctx.Named("find"); ok {
				term, err := f.CoerceString()
				if err != nil {
					return EmptyPipeline(), err
				}
				return valueResult(helpFind(state, names, term, ctx.Span))
			}
			words, err := stringsOf(ctx.Rest(0))
			if err != nil {
				return EmptyPipeline(), err
			}
			if len(words) > 0 {
				name := strings.Join(words, " ")
				id, ok := state.FindDecl(name)
				if !ok {
					e := newEvalError(ctx.Span, "Command not found")
					e.Label = "no command named '" + name + "'"
					e.Help = "use help --find " + name
					return EmptyPipeline(), e
				}
				cmd, err := state.Decl(id)
				if err != nil {
					return EmptyPipeline(), err
				}
				return valueResult(helpRecord(cmd, ctx.Span))
			}
			var rows []Value
			for _, name := range names {
				id, _ := state.FindDecl(name)
				cmd, err := state.Decl(id)
				if err != nil {
					continue
				}
				rows = append(rows, helpRow(cmd, ctx.Span))
			}
			return listResult(rows, ctx.Span), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "debug",
		Description: "Shows the input's text form, or its full structure with --raw.",
		Category:    CategorySession,
		Signature:   Signature{Named: []Flag{switchFlag("raw", 'r', "dump the structure")}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			v := input.IntoValue(ctx.Span)
			if ctx.Has("raw") {
				return valueResult(StringValue(dumpConfig.Sdump(ToGo(v)), ctx.Span))
			}
			return valueResult(StringValue(formatValue(v, -1), ctx.Span))
		},
	})

	ws.AddDecl(&Command{
		Name:        "term size",
		Description: "Returns the size of the output terminal.",
		Category:    CategorySession,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			caps := ctx.terminal()
			rec := NewRecord()
			rec.Set("columns", IntValue(int64(caps.Width), ctx.Span))
			rec.Set("rows", IntValue(int64(caps.Height), ctx.Span))
			return valueResult(RecordValue(rec, ctx.Span))
		},
	})

	ws.AddDecl(&Command{
		Name:        "config show",
		Description: "Shows the session configuration in force for this call.",
		Category:    CategorySession,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			cfg := ctx.Config()
			rec := NewRecord()
			rec.Set("table_mode", StringValue(string(cfg.TableMode), ctx.Span))
			rec.Set("error_style", StringValue(string(cfg.ErrorStyle), ctx.Span))
			rec.Set("color_mode", StringValue(string(cfg.ColorMode), ctx.Span))
			rec.Set("float_precision", IntValue(int64(cfg.FloatPrecision), ctx.Span))
			return valueResult(RecordValue(rec, ctx.Span))
		},
	})
}

func helpRow(cmd *Command, span Span) Value {
	rec := NewRecord()
	rec.Set("name", StringValue(cmd.Name, span))
	rec.Set("category", StringValue(string(cmd.Category), span))
	rec.Set("description", StringValue(cmd.Description, span))
	return RecordValue(rec, span)
}

func helpRecord(cmd *Command, span Span) Value {
	rec := NewRecord()
	rec.Set("name", StringValue(cmd.Name, span))
	rec.Set("usage", StringValue(cmd.Signature.Usage(cmd.Name), span))
	rec.Set("description", StringValue(cmd.Description, span))
	rec.Set("category", StringValue(string(cmd.Category), span))
	var examples []Value
	for _, ex := range cmd.Examples {
		r := NewRecord()
		r.Set("example", StringValue(ex.Source, span))
		r.Set("description", StringValue(ex.Description, span))
		examples = append(examples, RecordValue(r, span))
	}
	rec.Set("examples", ListValue(examples, span))
	if cmd.Deprecated != "" {
		rec.Set("deprecated", StringValue("use "+cmd.Deprecated, span))
	}
	return RecordValue(rec, span)
}

// helpFind ranks commands whose name fuzzily matches term, then adds those
// whose description mentions it
func helpFind(state *EngineState, names []string, term string, span Span) Value {
	ranks := fuzzy.RankFindFold(term, names)
	sort.Stable(ranks)
	seen := make(map[string]bool)
	var rows []Value
	add := func(name string) {
		if seen[name] {
			return
		}
		id, ok := state.FindDecl(name)
		if !ok {
			return
		}
		cmd, err := state.Decl(id)
		if err != nil {
			return
		}
		seen[name] = true
		rows = append(rows, helpRow(cmd, span))
	}
	for _, r := range ranks {
		add(r.Target)
	}
	lower := strings.ToLower(term)
	for _, name := range names {
		id, _ := state.FindDecl(name)
		if cmd, err := state.Decl(id); err == nil && strings.Contains(strings.ToLower(cmd.Description), lower) {
			add(name)
		}
	}
	return ListValue(rows, span)
}
