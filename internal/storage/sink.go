package storage

import (
	"context"
	"fmt"
	"time"

	"csvjson/internal/metrics"
	"csvjson/pkg/records"
)

// DefaultBatchSize is the number of records per InsertRows call when the
// caller does not choose one.
const DefaultBatchSize = 500

// Sink writes records into one table of a Repository. The table is created
// on first use.
type Sink struct {
	Repo      Repository
	Spec      TableSpec
	BatchSize int

	ensured bool
}

// Write inserts recs in batches and returns the number of rows written.
// A failed batch stops the write; rows of earlier batches stay committed.
func (s *Sink) Write(ctx context.Context, recs []*records.Record) (int64, error) {
	start := time.Now()
	n, err := s.write(ctx, recs)
	metrics.RecordStep("store", err, time.Since(start))
	metrics.RecordRecords("stored", int(n))
	return n, err
}

func (s *Sink) write(ctx context.Context, recs []*records.Record) (int64, error) {
	if !s.ensured {
		if err := s.Spec.Validate(); err != nil {
			return 0, err
		}
		if err := s.Repo.EnsureTable(ctx, s.Spec); err != nil {
			return 0, fmt.Errorf("ensure table %s: %w", s.Spec.Name, err)
		}
		s.ensured = true
	}

	size := s.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	var total int64
	for start := 0; start < len(recs); start += size {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := min(start+size, len(recs))
		rows := RowsFromRecords(s.Spec.Columns, recs[start:end])
		n, err := s.Repo.InsertRows(ctx, s.Spec, rows)
		total += n
		if err != nil {
			return total, fmt.Errorf("insert into %s (records %d-%d): %w", s.Spec.Name, start+1, end, err)
		}
	}
	return total, nil
}
