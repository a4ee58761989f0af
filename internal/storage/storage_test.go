package storage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"csvjson/pkg/records"
)

type fakeRepo struct {
	ensured  []TableSpec
	batches  [][][]any
	closed   int
	failCall int
}

func (f *fakeRepo) Close() { f.closed++ }

func (f *fakeRepo) EnsureTable(_ context.Context, spec TableSpec) error {
	f.ensured = append(f.ensured, spec)
	return nil
}

func (f *fakeRepo) InsertRows(_ context.Context, _ TableSpec, rows [][]any) (int64, error) {
	f.batches = append(f.batches, rows)
	if f.failCall == len(f.batches) {
		return 0, errors.New("boom")
	}
	return int64(len(rows)), nil
}

func TestRegisterAndNew(t *testing.T) {
	repo := &fakeRepo{}
	Register("fake-test", func(context.Context, Config) (Repository, error) { return repo, nil })

	got, err := New(context.Background(), Config{Kind: "fake-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got != repo {
		t.Fatalf("New returned a different repository")
	}

	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	_, err = New(context.Background(), Config{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), "fake-test") {
		t.Fatalf("expected unsupported-kind error listing registered kinds, got %v", err)
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	f := func(context.Context, Config) (Repository, error) { return nil, nil }
	Register("dup-test", f)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("dup-test", f)
}

func TestTableSpec_Validate(t *testing.T) {
	cases := []struct {
		name string
		spec TableSpec
		ok   bool
	}{
		{"valid", TableSpec{Name: "t", Columns: []string{"a", "b"}, Unique: []string{"B"}}, true},
		{"no name", TableSpec{Columns: []string{"a"}}, false},
		{"no columns", TableSpec{Name: "t"}, false},
		{"empty column", TableSpec{Name: "t", Columns: []string{"a", " "}}, false},
		{"case-insensitive repeat", TableSpec{Name: "t", Columns: []string{"Name", "name"}}, false},
		{"unknown unique", TableSpec{Name: "t", Columns: []string{"a"}, Unique: []string{"b"}}, false},
	}
	for _, tc := range cases {
		err := tc.spec.Validate()
		if (err == nil) != tc.ok {
			t.Fatalf("%s: Validate() err=%v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestSQLValue(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{records.Undefined, nil},
		{"x", "x"},
		{int64(42), "42"},
		{2.5, "2.5"},
		{true, "true"},
		{ts, "2024-01-02T03:04:05Z"},
	}
	for _, tc := range cases {
		if got := SQLValue(tc.in); got != tc.want {
			t.Fatalf("SQLValue(%#v)=%#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestRowsFromRecords_AlignsColumns(t *testing.T) {
	recs := []*records.Record{
		records.Of("b", "2", "a", "1"),
		records.Of("a", "3"),
	}
	got := RowsFromRecords([]string{"a", "b"}, recs)
	want := [][]any{{"1", "2"}, {"3", nil}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rows=%v, want %v", got, want)
	}
}

func TestSplitRows(t *testing.T) {
	rows := make([][]any, 7)
	parts := SplitRows(rows, 3, 9)
	if len(parts) != 3 || len(parts[0]) != 3 || len(parts[2]) != 1 {
		t.Fatalf("unexpected split sizes: %d parts", len(parts))
	}
	// more columns than parameters still yields one row per part
	if parts := SplitRows(rows[:2], 10, 5); len(parts) != 2 {
		t.Fatalf("parts=%d, want 2", len(parts))
	}
	if SplitRows(nil, 3, 9) != nil {
		t.Fatalf("expected nil for no rows")
	}
}

func TestDedupeRows_StableAndCorrect(t *testing.T) {
	columns := []string{"country_id", "vehicle_id", "import_date"}
	rows := [][]any{
		{"46", "2049", "2022-01-01"},
		{"46", "2049", "2022-01-02"}, // duplicate key, dropped
		{"47", "999", "2022-02-01"},
		{"46", nil, "2022-03-01"},
		{"46", nil, "2022-03-02"}, // NULL in key, kept
		{" 46", "2049", "2022-04-01"}, // same key after trimming, dropped
	}

	got, err := DedupeRows(rows, columns, []string{"country_id", "VEHICLE_ID"})
	if err != nil {
		t.Fatalf("DedupeRows: %v", err)
	}
	var dates []any
	for _, r := range got {
		dates = append(dates, r[2])
	}
	want := []any{"2022-01-01", "2022-02-01", "2022-03-01", "2022-03-02"}
	if !reflect.DeepEqual(dates, want) {
		t.Fatalf("kept=%v, want %v", dates, want)
	}

	if _, err := DedupeRows(rows, columns, []string{"missing"}); err == nil {
		t.Fatalf("expected error for missing dedupe column")
	}
}

func TestSink_WritesInBatchesAndEnsuresOnce(t *testing.T) {
	repo := &fakeRepo{}
	s := &Sink{Repo: repo, Spec: TableSpec{Name: "t", Columns: []string{"n"}}, BatchSize: 2}

	recs := []*records.Record{records.Of("n", "1"), records.Of("n", "2"), records.Of("n", "3")}
	n, err := s.Write(context.Background(), recs)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 3 || len(repo.batches) != 2 {
		t.Fatalf("n=%d batches=%d, want 3/2", n, len(repo.batches))
	}

	if _, err := s.Write(context.Background(), recs[:1]); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if len(repo.ensured) != 1 {
		t.Fatalf("EnsureTable calls=%d, want 1", len(repo.ensured))
	}
}

func TestSink_ReportsFailedBatch(t *testing.T) {
	repo := &fakeRepo{failCall: 2}
	s := &Sink{Repo: repo, Spec: TableSpec{Name: "t", Columns: []string{"n"}}, BatchSize: 2}

	recs := []*records.Record{records.Of("n", "1"), records.Of("n", "2"), records.Of("n", "3")}
	n, err := s.Write(context.Background(), recs)
	if err == nil || !strings.Contains(err.Error(), "records 3-3") {
		t.Fatalf("err=%v, want failure naming records 3-3", err)
	}
	if n != 2 {
		t.Fatalf("n=%d, want 2 rows from the first batch", n)
	}
}

func TestSink_InvalidSpec(t *testing.T) {
	s := &Sink{Repo: &fakeRepo{}, Spec: TableSpec{Name: "t"}}
	if _, err := s.Write(context.Background(), nil); err == nil {
		t.Fatalf("expected validation error")
	}
}
