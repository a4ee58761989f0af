package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvjson/internal/config"
	"csvjson/pkg/records"
)

// The CLI configures the process-wide slog default, so these tests do not
// run in parallel.

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// fakeMetrics counts initMetrics and cleanup calls.
type fakeMetrics struct {
	err     error
	inits   atomic.Int64
	cleanup atomic.Int64
}

func (f *fakeMetrics) init(context.Context, config.Metrics, string) (func(), error) {
	f.inits.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return func() { f.cleanup.Add(1) }, nil
}

func run(t *testing.T, stdin string, fm *fakeMetrics, args ...string) cliResult {
	t.Helper()
	if fm == nil {
		fm = &fakeMetrics{}
	}
	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), args, &stdout, &stderr, appDeps{
		initMetrics: fm.init,
		newRunID:    func() string { return "run-1" },
		stdin:       strings.NewReader(stdin),
	})
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunMain_UsageErrors(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantInErr string
	}{
		{"unknown flag", []string{"convert", "--nope"}, "unknown flag: --nope"},
		{"too many files", []string{"convert", "a.csv", "b.csv"}, "at most one file argument"},
		{"unknown command", []string{"explode"}, "unknown command"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fm := &fakeMetrics{}
			res := run(t, "", fm, tc.args...)
			assert.Equal(t, 2, res.code)
			assert.Contains(t, res.stderr, tc.wantInErr)
			assert.Empty(t, res.stdout)
			assert.Zero(t, fm.inits.Load())
		})
	}
}

func TestRunMain_Version(t *testing.T) {
	res := run(t, "", nil, "version")
	require.Equal(t, 0, res.code)
	assert.Equal(t, "csvjson dev\n", res.stdout)
}

func TestConvert_StdinToJSON(t *testing.T) {
	fm := &fakeMetrics{}
	res := run(t, "name,age\nAnn,30\nBob,\n", fm, "convert", "--preserve-types")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, `[{"name":"Ann","age":30},{"name":"Bob","age":null}]`+"\n", res.stdout)
	assert.Contains(t, res.stderr, "conversion finished")
	assert.Contains(t, res.stderr, "run_id=run-1")
	assert.EqualValues(t, 1, fm.inits.Load())
	assert.EqualValues(t, 1, fm.cleanup.Load())
}

func TestConvert_FileArgumentAndYAML(t *testing.T) {
	in := writeFile(t, "in.csv", "a;b\n1;x\n")
	res := run(t, "", nil, "convert", in, "--delimiter", ";", "-f", "yaml")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "- a: \"1\"\n  b: x\n", res.stdout)
}

func TestConvert_TransformsFromConfigFile(t *testing.T) {
	in := writeFile(t, "in.csv", "id,team,score\n1,red,5\n2,blue,9\n3,red,7\n3,red,7\n")
	cfg := writeFile(t, "pipeline.yaml", `
job: teams
source:
  file:
    path: `+in+`
parser:
  options:
    preserve_types: true
transforms:
  - kind: dedupe
  - kind: filter
    options:
      field: team
      equals: red
  - kind: sort
    options:
      key: score
      descending: true
`)
	res := run(t, "", nil, "convert", "--config", cfg)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, `[{"id":3,"team":"red","score":7},{"id":1,"team":"red","score":5}]`+"\n", res.stdout)
}

func TestConvert_GroupBy(t *testing.T) {
	cfg := writeFile(t, "pipeline.yaml", `
transforms:
  - kind: group_by
    options:
      key: k
`)
	res := run(t, "k,v\nb,1\na,2\nb,3\n", nil, "convert", "--config", cfg)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, `{"b":[{"k":"b","v":"1"},{"k":"b","v":"3"}],"a":[{"k":"a","v":"2"}]}`+"\n", res.stdout)
}

func TestConvert_HashTransform(t *testing.T) {
	cfg := writeFile(t, "pipeline.yaml", `
transforms:
  - kind: hash
    options:
      fields: [id]
      target_field: row_hash
`)
	res := run(t, "id\n1\n", nil, "convert", "--config", cfg, "-f", "ndjson")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Regexp(t, `^\{"id":"1","row_hash":"[0-9a-f]{64}"\}\n$`, res.stdout)
}

func TestConvert_StreamsIntoSQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "out.db")
	args := []string{"convert", "-f", "none", "--storage", "sqlite", "--dsn", db, "--table", "people", "--chunk-size", "2"}
	input := "id,name\n1,Ann\n2,Bob\n3,Cid\n"

	res := run(t, input, nil, args...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "stored=3")

	conn, err := sql.Open("sqlite", db)
	require.NoError(t, err)
	defer conn.Close()

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM people`).Scan(&n))
	assert.Equal(t, 3, n)

	var name string
	require.NoError(t, conn.QueryRow(`SELECT name FROM people WHERE id = '2'`).Scan(&name))
	assert.Equal(t, "Bob", name)
}

func TestConvert_OutputFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.ndjson")
	res := run(t, "a\n1\n2\n", nil, "convert", "-f", "ndjson", "-o", out)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stdout)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":\"1\"}\n{\"a\":\"2\"}\n", string(got))
}

func TestConvert_Failures(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		fm := &fakeMetrics{}
		res := run(t, "a\n1\n", fm, "convert", "-f", "xml")
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "error: output.format")
		assert.Contains(t, res.stderr, "configuration is invalid")
		assert.Zero(t, fm.inits.Load())
	})

	t.Run("metrics init", func(t *testing.T) {
		fm := &fakeMetrics{err: errors.New("no api key")}
		res := run(t, "a\n1\n", fm, "convert")
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "init metrics: no api key")
		assert.Empty(t, res.stdout)
	})

	t.Run("missing input runs cleanup", func(t *testing.T) {
		fm := &fakeMetrics{}
		res := run(t, "", fm, "convert", filepath.Join(t.TempDir(), "missing.csv"))
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "open source")
		assert.EqualValues(t, 1, fm.cleanup.Load())
	})

	t.Run("unterminated quote", func(t *testing.T) {
		res := run(t, "a,b\n\"x,1\n", nil, "convert", "--config", writeFile(t, "p.yaml", "parser:\n  options:\n    continuation: quote_parity\n"))
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "unterminated quoted field")
	})
}

func TestValidate(t *testing.T) {
	res := run(t, "", nil, "validate")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "configuration is valid\n", res.stdout)

	cfg := writeFile(t, "bad.yaml", "transforms:\n  - kind: group_by\n    options:\n      key: k\n  - kind: dedupe\n")
	res = run(t, "", nil, "validate", "--config", cfg)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "group_by must be last")
}

func TestProbe(t *testing.T) {
	res := run(t, "id,name,joined\n1,Ann,2024-01-02\n2,Ann,2024-02-03\n", nil, "probe", "--layout", "csv")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "1,id,integer,2,0,2,yes,integer=2")
	assert.Contains(t, res.stdout, "2,name,text,2,0,1,no,text=2")
	assert.Contains(t, res.stdout, "3,joined,date,2,0,2,yes,date=2")
}

func TestStorageColumns(t *testing.T) {
	t.Parallel()
	recs := []*records.Record{
		records.Of("a", "1", "row_hash", "x"),
		records.Of("b", "2", "a", "3"),
	}
	assert.Equal(t, []string{"a", "row_hash", "b"}, storageColumns([]string{"a"}, recs))
	assert.Empty(t, storageColumns(nil, nil))
}
