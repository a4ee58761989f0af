package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"csvjson/internal/config"
	"csvjson/internal/logging"
)

// pipelineKey stores the loaded config.Pipeline in the command context.
type pipelineKey struct{}

func pipelineFrom(ctx context.Context) config.Pipeline {
	p, _ := ctx.Value(pipelineKey{}).(config.Pipeline)
	return p
}

func newRootCmd(deps appDeps) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "csvjson",
		Short: "Convert CSV into JSON-like records",
		Long: `csvjson reads delimited text, turns every line after the header into a
record keyed by header name and writes the records as JSON, NDJSON or YAML,
optionally storing them in a SQL table.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			p, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				p.Source.File.Path = args[0]
			}

			logging.Setup(cmd.ErrOrStderr(), p.Logging.Level, p.Logging.Format)

			ctx := logging.WithRunID(cmd.Context(), deps.newRunID())
			cmd.SetContext(context.WithValue(ctx, pipelineKey{}, p))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "pipeline config file (YAML or JSON)")
	registerPipelineFlags(pf)

	_ = root.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "ndjson", "yaml", "none"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = root.RegisterFlagCompletionFunc("storage", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"sqlite", "postgres", "mssql"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(newConvertCmd(deps))
	root.AddCommand(newProbeCmd(deps))
	root.AddCommand(newValidateCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// registerPipelineFlags declares one flag per entry of config.FlagKeys.
// Defaults here are only shown in help; config.Load ignores unset flags.
func registerPipelineFlags(fs *pflag.FlagSet) {
	fs.String("job", "", "job name used in logs and metric tags")
	fs.String("encoding", "", "input character encoding (utf-8, windows-1250, ...)")
	fs.String("delimiter", ",", `field delimiter; "tab" or \t for tabs`)
	fs.Bool("preserve-types", false, "coerce numbers, booleans, dates and null")
	fs.Bool("trim-whitespace", false, "trim leading and trailing whitespace of values")
	fs.String("default-value", "", "value used for missing or empty fields")
	fs.Int("chunk-size", 0, "records per chunk; streamed runs default to 1000")
	fs.StringP("format", "f", "json", "output format: json, ndjson, yaml or none")
	fs.StringP("out", "o", "-", `output file, "-" for stdout`)
	fs.Bool("indent", false, "indent JSON output")
	fs.String("storage", "", "store records in sqlite, postgres or mssql")
	fs.String("dsn", "", "storage connection string")
	fs.String("table", "", "storage table name")
	fs.String("metrics-backend", "none", "metrics backend: none or datadog")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-format", "text", "log format: text or json")
}

// maxOneArg is cobra.MaximumNArgs(1) reporting a usage error.
func maxOneArg(_ *cobra.Command, args []string) error {
	if len(args) > 1 {
		return usageError{fmt.Errorf("accepts at most one file argument, got %d", len(args))}
	}
	return nil
}

// checkPipeline prints every validation issue to stderr and fails when any of
// them is an error.
func checkPipeline(cmd *cobra.Command, p config.Pipeline) error {
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintln(cmd.ErrOrStderr(), iss.String())
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid")
	}
	return nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check the pipeline configuration and exit",
		Args:  maxOneArg,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkPipeline(cmd, pipelineFrom(cmd.Context())); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "csvjson %s\n", Version)
		},
	}
}
