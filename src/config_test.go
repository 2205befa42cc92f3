package pawrun

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSessionConfig(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		data    string
		want    *SessionConfig
		wantErr string
	}{
		{
			name: "yaml",
			ext:  ".yaml",
			data: "table_mode: psql\nerror_style: Plain\n",
			want: &SessionConfig{TableMode: TablePsql, ErrorStyle: ErrorStylePlain, ColorMode: ColorAuto, FloatPrecision: 2},
		},
		{
			name: "toml",
			ext:  ".toml",
			data: "table_mode = \"markdown\"\ncolor_mode = \"never\"\nfloat_precision = 4\n",
			want: &SessionConfig{TableMode: TableMarkdown, ErrorStyle: ErrorStyleFancy, ColorMode: ColorNever, FloatPrecision: 4},
		},
		{
			name: "default mode is rounded",
			ext:  ".yml",
			data: "table_mode: default\n",
			want: &SessionConfig{TableMode: TableRounded, ErrorStyle: ErrorStyleFancy, ColorMode: ColorAuto, FloatPrecision: 2},
		},
		{
			name: "empty file",
			ext:  ".yaml",
			data: "",
			want: DefaultSessionConfig(),
		},
		{name: "unknown yaml field", ext: ".yaml", data: "tabel_mode: psql\n", wantErr: "parsing yaml config"},
		{name: "bad table mode", ext: ".yaml", data: "table_mode: sparkly\n", wantErr: "unrecognized table mode 'sparkly'"},
		{name: "bad error style", ext: ".toml", data: "error_style = \"loud\"\n", wantErr: "unrecognized error style 'loud'"},
		{name: "bad color mode", ext: ".toml", data: "color_mode = \"sometimes\"\n", wantErr: "unrecognized color mode 'sometimes'"},
		{name: "bad toml", ext: ".toml", data: "table_mode = \n", wantErr: "parsing toml config"},
		{name: "unsupported format", ext: ".ini", data: "", wantErr: "unsupported config format '.ini'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSessionConfig([]byte(tt.data), tt.ext)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadSessionConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.toml")
	require.NoError(t, os.WriteFile(path, []byte("table_mode = \"heavy\"\n"), 0o644))

	cfg, err := LoadSessionConfig(path)
	require.NoError(t, err)
	assert.Equal(t, TableHeavy, cfg.TableMode)

	t.Run("process host uses the file", func(t *testing.T) {
		cfg, err := NewProcessHost(path).SessionConfig()
		require.NoError(t, err)
		assert.Equal(t, TableHeavy, cfg.TableMode)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSessionConfig(filepath.Join(dir, "nope.yaml"))
		assert.ErrorContains(t, err, "reading config")
	})
}

func TestOverrides(t *testing.T) {
	base := DefaultSessionConfig()

	t.Run("error style overlay leaves the base alone", func(t *testing.T) {
		v := StringValue("short", Span{Start: 3, End: 8})
		cfg, err := applyErrorStyleOverride(base, &v)
		require.NoError(t, err)
		assert.Equal(t, ErrorStyleShort, cfg.ErrorStyle)
		assert.Equal(t, ErrorStyleFancy, base.ErrorStyle)
	})

	t.Run("invalid error style carries the value's span", func(t *testing.T) {
		v := StringValue("loud", Span{Start: 3, End: 7})
		_, err := applyErrorStyleOverride(base, &v)
		require.Error(t, err)
		serr := err.(*StructuredError)
		assert.Equal(t, ErrorConfigOverride, serr.Kind)
		require.NotNil(t, serr.Span)
		assert.Equal(t, Span{Start: 3, End: 7}, *serr.Span)
	})

	t.Run("invalid table mode falls back", func(t *testing.T) {
		v := StringValue("sparkly", UnknownSpan)
		cfg, err := applyTableModeOverride(base, &v)
		require.NoError(t, err)
		assert.Equal(t, base.TableMode, cfg.TableMode)
	})

	t.Run("unset overrides", func(t *testing.T) {
		o := StringOverrides("", "")
		assert.Nil(t, o.RenderingMode)
		assert.Nil(t, o.ErrorStyle)
		cfg, err := applyErrorStyleOverride(base, nil)
		require.NoError(t, err)
		assert.Same(t, base, cfg)
	})
}
