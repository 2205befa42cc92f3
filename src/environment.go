package pawrun

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Host supplies the outside world to one call: where it runs, the
// environment it inherits and the session defaults.
type Host interface {
	CurrentDir() (string, error)
	EnvVars() map[string]string
	SessionConfig() (*SessionConfig, error)
}

// Snapshot is the host environment captured at the start of a call
type Snapshot struct {
	Cwd string
	Env map[string]string
}

// CollectSnapshot captures the working directory and environment. It is
// called once per call and never cached.
func CollectSnapshot(host Host) Snapshot {
	snap := Snapshot{Env: make(map[string]string)}
	if dir, err := host.CurrentDir(); err == nil {
		snap.Cwd = dir
	} else {
		snap.Cwd = CurrentDirFromEnvironment()
	}
	for k, v := range host.EnvVars() {
		snap.Env[k] = v
	}
	return snap
}

// dirResolver lists the ways of finding a working directory, tried in order
type dirResolver struct {
	getwd      func() (string, error)
	lookupEnv  func(string) (string, bool)
	homeDir    func() (string, error)
	executable func() (string, error)
}

var processResolver = dirResolver{
	getwd:      os.Getwd,
	lookupEnv:  os.LookupEnv,
	homeDir:    os.UserHomeDir,
	executable: os.Executable,
}

// CurrentDirFromEnvironment resolves the process working directory, falling
// back to $PWD, the home directory and finally the executable's directory.
// It returns "" only if every source fails.
func CurrentDirFromEnvironment() string {
	return processResolver.resolve()
}

func (r dirResolver) resolve() string {
	if dir, err := r.getwd(); err == nil && dir != "" {
		return dir
	}
	if dir, ok := r.lookupEnv("PWD"); ok && dir != "" {
		return dir
	}
	if dir, err := r.homeDir(); err == nil && dir != "" {
		return dir
	}
	if exe, err := r.executable(); err == nil && exe != "" {
		return filepath.Dir(exe)
	}
	return ""
}

// ProcessHost is the Host backed by the running process
type ProcessHost struct {
	configPath string
}

// NewProcessHost creates a ProcessHost. configPath may be empty, in which
// case the built-in session defaults are used.
func NewProcessHost(configPath string) *ProcessHost {
	return &ProcessHost{configPath: configPath}
}

func (h *ProcessHost) CurrentDir() (string, error) {
	dir := CurrentDirFromEnvironment()
	if dir == "" {
		return "", errors.New("unable to determine the current directory")
	}
	return dir, nil
}

func (h *ProcessHost) EnvVars() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}
	return env
}

func (h *ProcessHost) SessionConfig() (*SessionConfig, error) {
	if h.configPath == "" {
		return DefaultSessionConfig(), nil
	}
	return LoadSessionConfig(h.configPath)
}

// StaticHost is a Host with fixed answers
type StaticHost struct {
	Dir    string
	DirErr error
	Env    map[string]string
	Config *SessionConfig
}

func (h *StaticHost) CurrentDir() (string, error) {
	if h.DirErr != nil {
		return "", h.DirErr
	}
	return h.Dir, nil
}

func (h *StaticHost) EnvVars() map[string]string {
	out := make(map[string]string, len(h.Env))
	for k, v := range h.Env {
		out[k] = v
	}
	return out
}

func (h *StaticHost) SessionConfig() (*SessionConfig, error) {
	if h.Config == nil {
		return DefaultSessionConfig(), nil
	}
	return h.Config.Clone(), nil
}

// gatherParentEnvVars loads the snapshot environment into the permanent
// environment as strings, filling in PWD from the snapshot cwd
func gatherParentEnvVars(state *EngineState, snap Snapshot) {
	keys := make([]string, 0, len(snap.Env))
	for k := range snap.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		state.env.Set(k, StringValue(snap.Env[k], UnknownSpan))
	}
	pwd, ok := snap.Env["PWD"]
	if (!ok || !filepath.IsAbs(pwd)) && snap.Cwd != "" {
		state.env.Set("PWD", StringValue(snap.Cwd, UnknownSpan))
	}
}

// convertEnvValues turns the raw strings of the permanent environment into
// structured values. PATH becomes a list; PWD must be absolute.
func convertEnvValues(state *EngineState) error {
	for _, key := range []string{"PATH", "Path"} {
		raw, ok := state.env.Get(key)
		if !ok || raw.Kind != KindString {
			continue
		}
		var items []Value
		for _, part := range filepath.SplitList(raw.Str) {
			if part != "" {
				items = append(items, StringValue(part, UnknownSpan))
			}
		}
		state.env.Set(key, ListValue(items, UnknownSpan))
	}
	if pwd, ok := state.env.Get("PWD"); ok {
		if pwd.Kind != KindString || !filepath.IsAbs(pwd.Str) {
			err := newEvalError(UnknownSpan, "Invalid environment variable PWD")
			err.Label = "PWD must be an absolute path"
			return err.WithHelp("found " + pwd.String())
		}
	}
	return nil
}
