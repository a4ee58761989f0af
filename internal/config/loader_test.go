package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("delimiter", ",", "")
	fs.Bool("preserve-types", false, "")
	fs.Int("chunk-size", 0, "")
	fs.String("format", "json", "")
	fs.String("log-level", "info", "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	p, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "csvjson", p.Job)
	assert.Equal(t, "file", p.Source.Kind)
	assert.Equal(t, "csv", p.Parser.Kind)
	assert.Equal(t, "json", p.Output.Format)
	assert.Equal(t, "-", p.Output.Path)
	assert.Equal(t, "none", p.Metrics.Backend)
	assert.Equal(t, 60*time.Second, p.Metrics.FlushEvery)
	assert.Equal(t, "info", p.Logging.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
job: customers
parser:
  options:
    delimiter: ";"
    preserve_types: true
    chunk_size: 500
    custom_type_mapping:
      zip: string
transforms:
  - kind: sort
    options:
      key: age
      descending: true
  - kind: group_by
    options:
      key: city
output:
  format: yaml
storage:
  kind: sqlite
  db:
    dsn: "file:out.db"
    table: customers
metrics:
  flush_every: 15s
`)

	p, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "customers", p.Job)
	assert.Equal(t, ';', p.Parser.Options.Rune("delimiter", ','))
	assert.True(t, p.Parser.Options.Bool("preserve_types", false))
	assert.Equal(t, 500, p.Parser.Options.Int("chunk_size", 0))
	assert.Equal(t, map[string]string{"zip": "string"}, p.Parser.Options.StringMap("custom_type_mapping"))

	require.Len(t, p.Transforms, 2)
	assert.Equal(t, TransformSort, p.Transforms[0].Kind)
	assert.Equal(t, "age", p.Transforms[0].Options.String("key", ""))
	assert.True(t, p.Transforms[0].Options.Bool("descending", false))
	assert.Equal(t, TransformGroupBy, p.Transforms[1].Kind)

	assert.Equal(t, "yaml", p.Output.Format)
	assert.Equal(t, "-", p.Output.Path, "unset keys keep their default")
	assert.Equal(t, "sqlite", p.Storage.Kind)
	assert.Equal(t, "customers", p.Storage.DB.Table)
	assert.Equal(t, 15*time.Second, p.Metrics.FlushEvery)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "output:\n  format: yaml\n")
	t.Setenv("CSVJSON_OUTPUT__FORMAT", "ndjson")
	t.Setenv("CSVJSON_PARSER__OPTIONS__CHUNK_SIZE", "25")

	p, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "ndjson", p.Output.Format)
	assert.Equal(t, 25, p.Parser.Options.Int("chunk_size", 0))
}

func TestLoad_OnlyChangedFlagsOverride(t *testing.T) {
	path := writeConfig(t, "output:\n  format: yaml\nparser:\n  options:\n    delimiter: \";\"\n")
	t.Setenv("CSVJSON_LOGGING__LEVEL", "warn")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--preserve-types", "--log-level=debug", "--config=ignored.yaml"}))

	p, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "yaml", p.Output.Format, "unchanged --format must not override the file")
	assert.Equal(t, ';', p.Parser.Options.Rune("delimiter", ','))
	assert.True(t, p.Parser.Options.Bool("preserve_types", false))
	assert.Equal(t, "debug", p.Logging.Level, "flags beat env")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "parser.options.trim_whitespace", envKey("CSVJSON_PARSER__OPTIONS__TRIM_WHITESPACE"))
	assert.Equal(t, "job", envKey("CSVJSON_JOB"))
}
