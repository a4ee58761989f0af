package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"csvjson/internal/datasource/file"
	"csvjson/internal/logging"
	"csvjson/internal/parser/csv"
	"csvjson/internal/probe"
)

func newProbeCmd(deps appDeps) *cobra.Command {
	var layout string

	cmd := &cobra.Command{
		Use:   "probe [file]",
		Short: "Summarize the value kinds and uniqueness of every column",
		Long: `probe converts the input with the configured parser options and prints one
row per column: the kind every value fits (integer, float, boolean, date,
text or null), how many values are present, how many are distinct and
which columns could serve as a unique key.`,
		Args: maxOneArg,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p := pipelineFrom(ctx)
			log := logging.WithFields(ctx, "source", sourceName(p))

			cfg, err := csv.ConfigFromOptions(p.Parser.Options)
			if err != nil {
				return fmt.Errorf("parser options: %w", err)
			}

			src := &file.Local{Path: sourcePath(p), Encoding: p.Source.File.Encoding, Stdin: deps.stdin}
			in, err := src.Open(ctx)
			if err != nil {
				return err
			}
			defer in.Close()

			headers, recs, err := csv.ConvertWithHeaders(ctx, in, cfg)
			if err != nil {
				return err
			}
			log.Debug("probe converted input", "columns", len(headers), "records", len(recs))

			return probe.Render(cmd.OutOrStdout(), probe.Summarize(headers, recs), layout)
		},
	}
	cmd.Flags().StringVar(&layout, "layout", probe.LayoutTable, "report layout: table, markdown or csv")
	return cmd
}
