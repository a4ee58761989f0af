package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"csvjson/internal/config"
	"csvjson/internal/datasource/file"
	"csvjson/internal/logging"
	"csvjson/internal/output"
	"csvjson/internal/parser/csv"
	"csvjson/internal/storage"
	"csvjson/pkg/records"
)

func newConvertCmd(deps appDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert CSV to JSON, NDJSON or YAML and optionally store it",
		Args:  maxOneArg,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p := pipelineFrom(ctx)
			if err := checkPipeline(cmd, p); err != nil {
				return err
			}

			cleanup, err := deps.initMetrics(ctx, p.Metrics, p.Job)
			if err != nil {
				return fmt.Errorf("init metrics: %w", err)
			}
			defer cleanup()

			return runConvert(ctx, p, deps, cmd.OutOrStdout())
		},
	}
}

// runConvert executes one pipeline run. Without transforms the input is
// streamed chunk by chunk into the writer and the sink; otherwise the whole
// dataset is converted first.
func runConvert(ctx context.Context, p config.Pipeline, deps appDeps, stdout io.Writer) (err error) {
	log := logging.WithFields(ctx, "job", p.Job, "source", sourceName(p))
	start := time.Now()

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

	var out io.WriteCloser
	if p.Output.Format != "none" {
		out, err = output.Create(p.Output.Path, stdout)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := out.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
		}()
	}
	opt, err := outputOptions(p.Output)
	if err != nil {
		return err
	}

	var sink *storage.Sink
	if p.Storage.Kind != "" {
		repo, err := storage.New(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DB.DSN})
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer repo.Close()
		sink = &storage.Sink{Repo: repo, Spec: storage.TableSpec{Name: p.Storage.DB.Table, Unique: p.Storage.DB.Unique}, BatchSize: p.Storage.DB.BatchSize}
	}

	log.Info("conversion started", "format", opt.Format, "storage", p.Storage.Kind)

	var res runResult
	if len(p.Transforms) == 0 && (out == nil || opt.Format == output.NDJSON) {
		res, err = streamRun(ctx, in, cfg, out, opt, sink)
	} else {
		res, err = batchRun(ctx, in, cfg, p.Transforms, out, opt, sink)
	}
	if err != nil {
		log.Error("conversion failed", "error", err, "records", res.records, "stored", res.stored)
		return err
	}

	log.Info("conversion finished",
		"records", res.records,
		"groups", res.groups,
		"stored", res.stored,
		"duration", time.Since(start).Truncate(time.Millisecond),
	)
	return nil
}

type runResult struct {
	records int
	groups  int
	stored  int64
}

// batchRun converts everything, applies the transforms and then writes.
func batchRun(ctx context.Context, in io.Reader, cfg csv.Config, ts []config.Transform, out io.Writer, opt output.Options, sink *storage.Sink) (runResult, error) {
	var res runResult

	headers, recs, err := csv.ConvertWithHeaders(ctx, in, cfg)
	if err != nil {
		return res, err
	}

	recs, groups, err := applyTransforms(recs, ts)
	if err != nil {
		return res, err
	}

	if groups != nil {
		res.groups = groups.Len()
		if out != nil {
			return res, output.WriteGroups(out, groups, opt)
		}
		return res, nil
	}

	res.records = len(recs)
	if out != nil {
		if err := output.WriteRecords(out, recs, opt); err != nil {
			return res, err
		}
	}
	if sink != nil {
		sink.Spec.Columns = storageColumns(headers, recs)
		res.stored, err = sink.Write(ctx, recs)
	}
	return res, err
}

// defaultStreamChunk bounds memory when streaming without a configured
// chunk size.
const defaultStreamChunk = 1000

// streamRun writes and stores each chunk as soon as the parser emits it.
// The table columns come from the header row.
func streamRun(ctx context.Context, in io.Reader, cfg csv.Config, out io.Writer, opt output.Options, sink *storage.Sink) (runResult, error) {
	var res runResult
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultStreamChunk
	}
	chunks := make(chan []*records.Record)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(chunks)
		return csv.StreamChunks(gctx, in, cfg, chunks)
	})
	g.Go(func() error {
		for chunk := range chunks {
			res.records += len(chunk)
			if out != nil {
				if err := output.WriteRecords(out, chunk, opt); err != nil {
					return err
				}
			}
			if sink != nil {
				if sink.Spec.Columns == nil {
					sink.Spec.Columns = storageColumns(nil, chunk)
				}
				n, err := sink.Write(gctx, chunk)
				res.stored += n
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	err := g.Wait()
	return res, err
}

// storageColumns is the header row plus any extra keys transforms added,
// such as a hash target field, in first-seen order.
func storageColumns(headers []string, recs []*records.Record) []string {
	cols := append([]string(nil), headers...)
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		seen[c] = true
	}
	for _, r := range recs {
		r.Range(func(k string, _ any) bool {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
			return true
		})
	}
	return cols
}

func outputOptions(o config.Output) (output.Options, error) {
	if o.Format == "none" {
		return output.Options{Format: output.JSON}, nil
	}
	f, err := output.ParseFormat(o.Format)
	if err != nil {
		return output.Options{}, err
	}
	opt := output.Options{Format: f}
	if o.Indent {
		opt.Indent = 2
	}
	return opt, nil
}

func sourcePath(p config.Pipeline) string {
	if p.Source.File.Path == "" {
		return "-"
	}
	return p.Source.File.Path
}

func sourceName(p config.Pipeline) string {
	if s := sourcePath(p); s != "-" {
		return s
	}
	return "stdin"
}
