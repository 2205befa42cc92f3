package pawrun

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirResolver_FallbackChain(t *testing.T) {
	fail := errors.New("unavailable")
	tests := []struct {
		name     string
		resolver dirResolver
		want     string
	}{
		{
			name: "process directory",
			resolver: dirResolver{
				getwd:      func() (string, error) { return "/work", nil },
				lookupEnv:  func(string) (string, bool) { return "/pwd", true },
				homeDir:    func() (string, error) { return "/home/paw", nil },
				executable: func() (string, error) { return "/opt/bin/host", nil },
			},
			want: "/work",
		},
		{
			name: "PWD",
			resolver: dirResolver{
				getwd:      func() (string, error) { return "", fail },
				lookupEnv:  func(name string) (string, bool) { return "/pwd", name == "PWD" },
				homeDir:    func() (string, error) { return "/home/paw", nil },
				executable: func() (string, error) { return "/opt/bin/host", nil },
			},
			want: "/pwd",
		},
		{
			name: "home directory",
			resolver: dirResolver{
				getwd:      func() (string, error) { return "", fail },
				lookupEnv:  func(string) (string, bool) { return "", false },
				homeDir:    func() (string, error) { return "/home/paw", nil },
				executable: func() (string, error) { return "/opt/bin/host", nil },
			},
			want: "/home/paw",
		},
		{
			name: "executable directory",
			resolver: dirResolver{
				getwd:      func() (string, error) { return "", fail },
				lookupEnv:  func(string) (string, bool) { return "", true },
				homeDir:    func() (string, error) { return "", fail },
				executable: func() (string, error) { return "/opt/bin/host", nil },
			},
			want: filepath.Dir("/opt/bin/host"),
		},
		{
			name: "nothing works",
			resolver: dirResolver{
				getwd:      func() (string, error) { return "", fail },
				lookupEnv:  func(string) (string, bool) { return "", false },
				homeDir:    func() (string, error) { return "", fail },
				executable: func() (string, error) { return "", fail },
			},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resolver.resolve())
		})
	}
}

func TestCollectSnapshot(t *testing.T) {
	env := map[string]string{"A": "1"}
	host := &StaticHost{Dir: "/srv", Env: env}
	snap := CollectSnapshot(host)
	assert.Equal(t, "/srv", snap.Cwd)
	assert.Equal(t, env, snap.Env)

	t.Run("snapshot is a copy", func(t *testing.T) {
		snap.Env["A"] = "2"
		assert.Equal(t, "1", env["A"])
		env["B"] = "3"
		_, ok := snap.Env["B"]
		assert.False(t, ok)
	})

	t.Run("each call sees the current environment", func(t *testing.T) {
		host.Env = map[string]string{"A": "changed"}
		assert.Equal(t, "changed", CollectSnapshot(host).Env["A"])
	})

	t.Run("failed host directory falls back to the process", func(t *testing.T) {
		snap := CollectSnapshot(&StaticHost{DirErr: errors.New("gone")})
		assert.Equal(t, CurrentDirFromEnvironment(), snap.Cwd)
	})
}

func TestConvertEnvValues(t *testing.T) {
	t.Run("PATH splits", func(t *testing.T) {
		state, _ := newTestState(t)
		gatherParentEnvVars(state, Snapshot{Cwd: "/", Env: map[string]string{
			"PATH": "/bin" + string(filepath.ListSeparator) + string(filepath.ListSeparator) + "/usr/bin",
		}})
		assert.NoError(t, convertEnvValues(state))
		v, ok := state.Env("PATH")
		assert.True(t, ok)
		assert.Equal(t, []interface{}{"/bin", "/usr/bin"}, ToGo(v))
	})

	t.Run("relative PWD without a cwd", func(t *testing.T) {
		state, _ := newTestState(t)
		gatherParentEnvVars(state, Snapshot{Env: map[string]string{"PWD": "not/absolute"}})
		err := convertEnvValues(state)
		assert.True(t, IsKind(err, ErrorEvaluation))
		assert.EqualError(t, err, "Invalid environment variable PWD")
	})

	t.Run("PWD filled from the cwd", func(t *testing.T) {
		state, _ := newTestState(t)
		gatherParentEnvVars(state, Snapshot{Cwd: "/data", Env: map[string]string{}})
		assert.NoError(t, convertEnvValues(state))
		v, _ := state.Env("PWD")
		assert.Equal(t, "/data", v.Str)
	})
}
