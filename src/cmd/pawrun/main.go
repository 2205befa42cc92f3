package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/phroun/pawrun"
	"github.com/phroun/pawrun/src/pkg/hostproto"
	"golang.org/x/term"
)

var version = "dev" // set via -ldflags at build time

// ANSI color codes for terminal output
const (
	colorYellow = "\x1b[93m"
	colorGreen  = "\x1b[92m"
	colorReset  = "\x1b[0m"
)

const historyFile = ".pawrun_history"

type options struct {
	command     string
	interactive bool
	tableMode   string
	errorStyle  string
	configPath  string
	debug       bool
	logCats     string
	serve       bool
	codec       string
	concurrency int
	showVersion bool
}

// stderrSupportsColor checks if stderr is a terminal that supports color output
func stderrSupportsColor() bool {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return false
	}
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// errorPrintf prints an error message to stderr, using color if supported
func errorPrintf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	if stderrSupportsColor() {
		fmt.Fprintf(os.Stderr, "%s%s%s", colorYellow, message, colorReset)
	} else {
		fmt.Fprint(os.Stderr, message)
	}
}

func main() {
	var opts options
	flag.StringVar(&opts.command, "c", "", "Run SOURCE instead of a script file")
	flag.BoolVar(&opts.interactive, "i", false, "Start the interactive loop")
	flag.StringVar(&opts.tableMode, "table-mode", "", "Table mode for rendered output")
	flag.StringVar(&opts.errorStyle, "error-style", "", "Error style: fancy, plain or short")
	flag.StringVar(&opts.configPath, "config", "", "Session config file (.yaml, .yml or .toml)")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug output")
	flag.BoolVar(&opts.debug, "d", false, "Enable debug output (short)")
	flag.StringVar(&opts.logCats, "log", "", "Comma-separated debug log categories")
	flag.BoolVar(&opts.serve, "serve", false, "Answer protocol requests on stdin/stdout")
	flag.StringVar(&opts.codec, "codec", "json", "Protocol codec: json or msgpack")
	flag.IntVar(&opts.concurrency, "concurrency", hostproto.DefaultConcurrency, "Evals answered at once with -serve")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Usage = showUsage
	flag.Parse()

	if opts.showVersion {
		fmt.Printf("pawrun %s (interpreter %s)\n", version, pawrun.Version())
		return
	}

	cats, err := parseCategories(opts.logCats)
	if err != nil {
		errorPrintf("Error: %v\n", err)
		os.Exit(2)
	}

	if opts.serve {
		os.Exit(runServer(opts, cats))
	}

	runner := pawrun.New(&pawrun.Config{
		Debug:         opts.debug,
		LogCategories: cats,
		Output:        os.Stdout,
		ErrOutput:     os.Stderr,
		Host:          pawrun.NewProcessHost(opts.configPath),
	})
	overrides := pawrun.StringOverrides(opts.tableMode, opts.errorStyle)

	stdinPiped := !term.IsTerminal(int(os.Stdin.Fd()))
	args := flag.Args()

	switch {
	case opts.interactive:
		os.Exit(runREPL(runner, overrides))
	case opts.command != "":
		os.Exit(runSource(runner, opts.command, stdinInput(stdinPiped), overrides))
	case len(args) > 0:
		content, err := os.ReadFile(args[0])
		if err != nil {
			errorPrintf("Error reading script file: %v\n", err)
			os.Exit(1)
		}
		os.Exit(runSource(runner, string(content), stdinInput(stdinPiped), overrides))
	case stdinPiped:
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			errorPrintf("Error reading from stdin: %v\n", err)
			os.Exit(1)
		}
		os.Exit(runSource(runner, string(content), pawrun.EmptyPipeline(), overrides))
	default:
		os.Exit(runREPL(runner, overrides))
	}
}

func parseCategories(list string) ([]pawrun.LogCategory, error) {
	var cats []pawrun.LogCategory
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cat, ok := pawrun.ParseLogCategory(name)
		if !ok {
			return nil, fmt.Errorf("unknown log category '%s'", name)
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// stdinInput reads piped stdin as the string input of the script
func stdinInput(piped bool) pawrun.PipelineData {
	if !piped {
		return pawrun.EmptyPipeline()
	}
	content, err := io.ReadAll(os.Stdin)
	if err != nil || len(content) == 0 {
		return pawrun.EmptyPipeline()
	}
	return pawrun.NewValuePipeline(pawrun.FromGo(string(content), pawrun.Span{}))
}

// runSource evaluates one call and prints its output. The exit status is 1
// when the call failed.
func runSource(r *pawrun.Runner, source string, input pawrun.PipelineData, overrides pawrun.Overrides) int {
	out, err := r.Evaluate(source, input, overrides)
	if err != nil {
		fmt.Fprintln(os.Stderr, r.FormatError(err, source, overrides))
		return 1
	}
	if out.IsEmpty() {
		return 0
	}
	if _, err := r.Evaluate("print", out, overrides); err != nil {
		fmt.Fprintln(os.Stderr, r.FormatError(err, source, overrides))
		return 1
	}
	return 0
}

// stdio joins stdin and stdout into the connection the server answers on
type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return nil }

func runServer(opts options, cats []pawrun.LogCategory) int {
	var session *pawrun.SessionConfig
	if opts.configPath != "" {
		cfg, err := pawrun.LoadSessionConfig(opts.configPath)
		if err != nil {
			errorPrintf("Error: %v\n", err)
			return 1
		}
		session = cfg
	}
	dir, _ := os.Getwd()
	handler, err := hostproto.NewHandler(hostproto.Options{
		Debug:         opts.debug,
		LogCategories: cats,
		Dir:           dir,
		Session:       session,
	})
	if err != nil {
		errorPrintf("Error: %v\n", err)
		return 1
	}
	codec, err := hostproto.NewCodec(opts.codec, stdio{Reader: os.Stdin, Writer: os.Stdout})
	if err != nil {
		errorPrintf("Error: %v\n", err)
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := hostproto.NewServer(codec, handler, opts.concurrency).Serve(ctx); err != nil {
		errorPrintf("Error: %v\n", err)
		return 1
	}
	return 0
}

// runREPL reads statements until EOF or exit. Every statement is its own
// call; nothing carries over between them.
func runREPL(r *pawrun.Runner, overrides pawrun.Overrides) int {
	fmt.Fprintf(os.Stderr, "pawrun %s\nInteractive mode. Type 'exit' or 'quit' to leave.\n\n", version)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			if _, err := ln.ReadHistory(f); err != nil {
				r.Logger().WarnCat(pawrun.CatIO, "unable to read history %s: %v", histPath, err)
			}
			_ = f.Close()
		} else if !errors.Is(err, os.ErrNotExist) {
			r.Logger().WarnCat(pawrun.CatIO, "unable to open history %s: %v", histPath, err)
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		f, err := os.Create(histPath)
		if err != nil {
			r.Logger().ErrorCat(pawrun.CatIO, "unable to save history %s: %v", histPath, err)
			return
		}
		if _, err := ln.WriteHistory(f); err != nil {
			r.Logger().ErrorCat(pawrun.CatIO, "unable to save history %s: %v", histPath, err)
		}
		_ = f.Close()
	}()

	ln.SetCompleter(func(line string) []string {
		var out []string
		for _, info := range r.Commands() {
			if strings.HasPrefix(info.Name, line) {
				out = append(out, info.Name)
			}
		}
		return out
	})

	prompt := "paw> "
	if stderrSupportsColor() {
		prompt = colorGreen + "paw>" + colorReset + " "
	}
	for {
		input, ok := readStatement(ln, prompt, "...> ")
		if !ok {
			fmt.Println()
			return 0
		}
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(trimmed, "\n", " "))
		switch strings.ToLower(trimmed) {
		case "exit", "quit":
			return 0
		}
		runSource(r, input, pawrun.EmptyPipeline(), overrides)
	}
}

// readStatement reads lines until brackets and quotes balance
func readStatement(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder
	for {
		p := prompt
		if b.Len() > 0 {
			p = cont
		}
		line, err := ln.Prompt(p)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if isComplete(b.String()) {
			return b.String(), true
		}
	}
}

// isComplete checks if the input forms a complete statement
func isComplete(input string) bool {
	depth := 0
	var quote rune
	prev := rune(0)
	for _, ch := range input {
		switch {
		case quote != 0:
			if ch == quote && (quote == '`' || prev != '\\') {
				quote = 0
			}
		case ch == '"' || ch == '\'' || ch == '`':
			quote = ch
		case ch == '(' || ch == '{' || ch == '[':
			depth++
		case ch == ')' || ch == '}' || ch == ']':
			depth--
		}
		prev = ch
	}
	return quote == 0 && depth <= 0
}

func showUsage() {
	usage := `Usage: pawrun [options] [script]
       pawrun [options] -c SOURCE
       echo "commands" | pawrun [options]
       pawrun -serve [-codec json|msgpack]

Run a pipeline script from a file, -c or stdin. With -c or a script file,
piped stdin becomes the script's input.

Options:
  -c SOURCE           Run SOURCE
  -i                  Start the interactive loop
  -table-mode MODE    Table mode for rendered output (rounded, psql, markdown, ...)
  -error-style STYLE  Error style: fancy, plain or short
  -config FILE        Session config file (.yaml, .yml or .toml)
  -d, -debug          Enable debug output
  -log CATS           Debug categories: parse,command,variable,io,config,flow,system,host
  -serve              Answer protocol requests on stdin/stdout
  -codec NAME         Protocol codec for -serve: json or msgpack
  -concurrency N      Evals answered at once with -serve
  -version            Show version and exit

Examples:
  pawrun -c 'range 1 5 | first 2'
  cat data.json | pawrun -c 'from json | where size > 10'
  pawrun -table-mode psql report.paw
`
	fmt.Fprint(os.Stderr, usage)
}
