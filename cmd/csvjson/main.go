// Command csvjson converts delimited text into JSON-like records.
//
// Subcommands:
//
//	csvjson convert [file]   convert, apply transforms, write and store
//	csvjson probe [file]     print a per-column type summary
//	csvjson validate         check the pipeline config and exit
//	csvjson version
//
// Configuration comes from, lowest to highest precedence: built-in defaults,
// the file named by --config (YAML or JSON), CSVJSON_* environment variables
// and explicitly set flags. A positional file argument overrides
// source.file.path; "-" or no path at all reads standard input.
//
// Exit codes: 0 on success, 1 on a failed run or invalid config, 2 on
// usage errors.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	// Every storage backend is linked in; the config picks one.
	_ "csvjson/internal/storage/all"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// appDeps holds the side-effecting seams of the CLI so tests can replace
// them.
type appDeps struct {
	initMetrics metricsInit
	newRunID    func() string
	stdin       io.Reader
}

func defaultDeps() appDeps {
	return appDeps{
		initMetrics: initMetrics,
		newRunID:    uuid.NewString,
		stdin:       os.Stdin,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// usageError marks errors caused by how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// runMain executes the CLI and returns the process exit code.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	root := newRootCmd(deps)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "csvjson: %v\n", err)

	var ue usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		return 2
	}
	return 1
}
