package pawrun

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// addFileCommands registers the filesystem commands. Relative paths resolve
// against the call's working directory, never the process's.
func addFileCommands(ws *WorkingSet) {
	ws.AddDecl(&Command{
		Name:        "pwd",
		Description: "Returns the current working directory.",
		Category:    CategoryFilesystem,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			dir := ctx.Stack.Cwd()
			if dir == "" {
				if v, ok := ctx.Stack.GetEnv(ctx.Engine, "PWD"); ok && v.Kind == KindString {
					dir = v.Str
				}
			}
			if dir == "" {
				return EmptyPipeline(), ctx.Fail("Unable to determine the current directory")
			}
			return valueResult(StringValue(dir, ctx.Span))
		},
	})

	ws.AddDecl(&Command{
		Name:        "cd",
		Description: "Changes the working directory for the rest of the call.",
		Category:    CategoryFilesystem,
		Signature:   Signature{Optional: []PositionalArg{required("path", ShapeString, "the new directory; home when omitted")}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			target := ""
			if _, ok := ctx.Positional(0); ok {
				s, err := ctx.StringArg(0)
				if err != nil {
					return EmptyPipeline(), err
				}
				target = s
			} else if home, ok := ctx.Stack.GetEnv(ctx.Engine, "HOME"); ok && home.Kind == KindString {
				target = home.Str
			}
			if target == "" {
				return EmptyPipeline(), ctx.Fail("No directory given and HOME is not set")
			}
			dir := ctx.Stack.resolvePath(ctx.Engine, expandHome(ctx, target))
			info, err := os.Stat(dir)
			if err != nil {
				e := newEvalError(ctx.Span, "Directory not found")
				e.Label = "cannot change to " + dir
				e.Help = err.Error()
				return EmptyPipeline(), e
			}
			if !info.IsDir() {
				e := newEvalError(ctx.Span, "Not a directory")
				e.Label = dir + " is a file"
				return EmptyPipeline(), e
			}
			if err := ctx.Stack.SetCwd(dir); err != nil {
				return EmptyPipeline(), err
			}
			ctx.Logger().DebugCat(CatIO, "cd %s", dir)
			return EmptyPipeline(), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "ls",
		Description: "Lists directory contents as a table.",
		Category:    CategoryFilesystem,
		Signature: Signature{
			Optional: []PositionalArg{required("pattern", ShapeString, "directory or glob pattern")},
			Named:    []Flag{switchFlag("all", 'a', "include hidden files")},
		},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			pattern := "."
			if _, ok := ctx.Positional(0); ok {
				s, err := ctx.StringArg(0)
				if err != nil {
					return EmptyPipeline(), err
				}
				pattern = s
			}
			showAll := ctx.Has("all")
			full := ctx.Stack.resolvePath(ctx.Engine, expandHome(ctx, pattern))

			var paths []string
			if strings.ContainsAny(pattern, "*?[") {
				matches, err := filepath.Glob(full)
				if err != nil {
					return EmptyPipeline(), ctx.Fail("Invalid glob pattern").WithHelp(err.Error())
				}
				paths = matches
			} else {
				entries, err := os.ReadDir(full)
				if err != nil {
					return EmptyPipeline(), fileError(ctx, "Unable to list directory", full, err)
				}
				for _, e := range entries {
					paths = append(paths, filepath.Join(full, e.Name()))
				}
			}

			base := ctx.Stack.resolvePath(ctx.Engine, ".")
			var rows []Value
			for _, p := range paths {
				if !showAll && strings.HasPrefix(filepath.Base(p), ".") {
					continue
				}
				info, err := os.Lstat(p)
				if err != nil {
					continue
				}
				name := p
				if rel, err := filepath.Rel(base, p); err == nil && !strings.HasPrefix(rel, "..") {
					name = rel
				}
				rec := NewRecord()
				rec.Set("name", StringValue(name, ctx.Span))
				rec.Set("type", StringValue(fileType(info.Mode()), ctx.Span))
				rec.Set("size", IntValue(info.Size(), ctx.Span))
				rec.Set("modified", StringValue(info.ModTime().Format(time.RFC3339), ctx.Span))
				rows = append(rows, RecordValue(rec, ctx.Span))
			}
			return listResult(rows, ctx.Span), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "open",
		Description: "Reads a file, parsing json, yaml and toml by extension.",
		Category:    CategoryFilesystem,
		Signature: Signature{
			Required: []PositionalArg{required("path", ShapeString, "the file to read")},
			Named:    []Flag{switchFlag("raw", 'r', "return the text without parsing")},
		},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			name, err := ctx.StringArg(0)
			if err != nil {
				return EmptyPipeline(), err
			}
			path := ctx.Stack.resolvePath(ctx.Engine, expandHome(ctx, name))
			data, err := os.ReadFile(path)
			if err != nil {
				return EmptyPipeline(), fileError(ctx, "Unable to open file", path, err)
			}
			ctx.Logger().DebugCat(CatIO, "open %s (%d bytes)", path, len(data))
			text := StringValue(string(data), ctx.Span)
			if ctx.Has("raw") {
				return valueResult(text)
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".json":
				return fromText(ctx, NewValuePipeline(text), "json", decodeJSON)
			case ".yaml", ".yml":
				return fromText(ctx, NewValuePipeline(text), "yaml", decodeYAML)
			case ".toml":
				return fromText(ctx, NewValuePipeline(text), "toml", decodeTOML)
			}
			return valueResult(text)
		},
	})

	ws.AddDecl(&Command{
		Name:        "save",
		Description: "Writes the input to a file, encoding by extension unless it is text.",
		Category:    CategoryFilesystem,
		Signature: Signature{
			Required: []PositionalArg{required("path", ShapeString, "the file to write")},
			Named: []Flag{
				switchFlag("force", 'f', "overwrite an existing file"),
				switchFlag("append", 'a', "append instead of replacing"),
				switchFlag("raw", 'r', "write text without encoding"),
			},
		},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			name, err := ctx.StringArg(0)
			if err != nil {
				return EmptyPipeline(), err
			}
			path := ctx.Stack.resolvePath(ctx.Engine, expandHome(ctx, name))
			v := input.IntoValue(ctx.Span)
			if v.Kind == KindError {
				return NewErrorPipeline(v.Err), nil
			}
			data, err := encodeForFile(v, path, ctx.Has("raw"))
			if err != nil {
				return EmptyPipeline(), err
			}

			flags := os.O_WRONLY | os.O_CREATE
			switch {
			case ctx.Has("append"):
				flags |= os.O_APPEND
			case ctx.Has("force"):
				flags |= os.O_TRUNC
			default:
				flags |= os.O_EXCL
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if err != nil {
				if errors.Is(err, fs.ErrExist) {
					e := newEvalError(ctx.Span, "Destination file already exists")
					e.Label = path
					e.Help = "use --force to overwrite"
					return EmptyPipeline(), e
				}
				return EmptyPipeline(), fileError(ctx, "Unable to write file", path, err)
			}
			defer f.Close()
			if _, err := f.Write(data); err != nil {
				return EmptyPipeline(), fileError(ctx, "Unable to write file", path, err)
			}
			ctx.Logger().DebugCat(CatIO, "save %s (%d bytes)", path, len(data))
			return EmptyPipeline(), nil
		},
	})
}

// encodeForFile picks the encoding of a value being saved
func encodeForFile(v Value, path string, raw bool) ([]byte, error) {
	if v.Kind == KindString || raw {
		return []byte(toText(v)), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var buf bytes.Buffer
		if err := encodeJSON(&buf, v, "  ", 0); err != nil {
			return nil, err
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	case ".yaml", ".yml":
		node, err := toYAMLNode(v)
		if err != nil {
			return nil, err
		}
		return yaml.Marshal(node)
	case ".toml":
		text, err := encodeTOML(v)
		return []byte(text), err
	}
	return []byte(toText(v)), nil
}

func fileType(mode fs.FileMode) string {
	switch {
	case mode&fs.ModeSymlink != 0:
		return "symlink"
	case mode.IsDir():
		return "dir"
	}
	return "file"
}

// expandHome replaces a leading ~ with the call's HOME
func expandHome(ctx *Context, path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, ok := ctx.Stack.GetEnv(ctx.Engine, "HOME")
	if !ok || home.Kind != KindString {
		return path
	}
	return filepath.Join(home.Str, strings.TrimPrefix(path, "~"))
}

func fileError(ctx *Context, msg, path string, err error) *StructuredError {
	e := newEvalError(ctx.Span, "%s", msg)
	e.Label = path
	e.Help = err.Error()
	return e
}
