package pipeline

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"goldrates/internal/config"
	"goldrates/internal/datasource/file"
	"goldrates/internal/frame"
	"goldrates/internal/sink"
	_ "goldrates/internal/storage/sqlite"
	"goldrates/internal/transformer"
)

// header is date plus every rate column.
func header() []string {
	return append([]string{"date"}, transformer.RateColumns...)
}

// writeInput writes a CSV whose buyRateUSD column holds buy and every
// other rate column holds "1".
func writeInput(t *testing.T, buy ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(strings.Join(header(), ","))
	b.WriteString("\n")
	for i, v := range buy {
		fields := []string{fmt.Sprintf("2024-01-%02d", i%28+1), v}
		for range transformer.RateColumns[1:] {
			fields = append(fields, "1")
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteString("\n")
	}
	p := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return p
}

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprint(i + 1)
	}
	return out
}

func testConfig(t *testing.T, input string, chunk int) config.Config {
	t.Helper()
	dir := t.TempDir()
	c := config.Default()
	c.Input = input
	c.ChunkSize = chunk
	c.DB = config.DBConfig{Kind: "sqlite", DSN: filepath.Join(dir, "gold.db"), Table: "gold_rates"}
	c.Outputs.CSV = filepath.Join(dir, "out.csv")
	return c
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return recs
}

func openDB(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "gold_rates"`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, writeInput(t, "100", "bad", "50"), 2)
	dir := filepath.Dir(cfg.Outputs.CSV)
	cfg.Outputs.XLSX = filepath.Join(dir, "out.xlsx")
	cfg.Outputs.Parquet = filepath.Join(dir, "out.parquet")

	d := New(cfg, zap.NewNop(), WithRunID("run-1"))
	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if d.State() != StateDone {
		t.Fatalf("State() = %v, want done", d.State())
	}
	if sum.RunID != "run-1" || sum.Rows != 3 || sum.Chunks != 2 || sum.Expected != 3 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sum.Sinks) != 4 || sum.Sinks[0].Name != "db" {
		t.Fatalf("sinks = %+v", sum.Sinks)
	}

	// Delimited file: header plus three rows, derived column appended.
	recs := readCSV(t, cfg.Outputs.CSV)
	if len(recs) != 4 {
		t.Fatalf("csv rows = %d, want 4", len(recs))
	}
	if got, want := len(recs[0]), len(header())+8; got != want {
		t.Fatalf("csv columns = %d, want %d", got, want)
	}
	oz := len(header())
	if recs[0][oz] != "buyRateUSDOz" {
		t.Fatalf("csv header[%d] = %q, want buyRateUSDOz", oz, recs[0][oz])
	}
	for i, want := range []string{"3110.35", "", "1555.175"} {
		if got := recs[i+1][oz]; got != want {
			t.Fatalf("csv row %d buyRateUSDOz = %q, want %q", i, got, want)
		}
	}

	// Relational table.
	db := openDB(t, cfg.DB.DSN)
	rows, err := db.Query(`SELECT "buyRateUSDOz" FROM "gold_rates" ORDER BY rowid`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var got []sql.NullFloat64
	for rows.Next() {
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, v)
	}
	rows.Close()
	if len(got) != 3 || got[0].Float64 != 3110.35 || got[1].Valid || got[2].Float64 != 1555.175 {
		t.Fatalf("db buyRateUSDOz = %+v", got)
	}

	// Spreadsheet.
	f, err := excelize.OpenFile(cfg.Outputs.XLSX)
	if err != nil {
		t.Fatalf("excelize.OpenFile() error = %v", err)
	}
	defer f.Close()
	xrows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(xrows) != 4 {
		t.Fatalf("xlsx rows = %d, want 4", len(xrows))
	}

	// Parquet file has been closed with a footer.
	if fi, err := os.Stat(cfg.Outputs.Parquet); err != nil || fi.Size() == 0 {
		t.Fatalf("parquet stat = %v, %v", fi, err)
	}
}

func TestRun_RowCountInvariant(t *testing.T) {
	t.Parallel()

	input := writeInput(t, numbered(20)...)
	var digests []uint64
	for _, size := range []int{1, 7, 1000} {
		cfg := testConfig(t, input, size)
		sum, err := New(cfg, nil).Run(context.Background())
		if err != nil {
			t.Fatalf("chunk %d: Run() error = %v", size, err)
		}
		if sum.Rows != 20 {
			t.Fatalf("chunk %d: Rows = %d, want 20", size, sum.Rows)
		}
		wantChunks := int64((20 + size - 1) / size)
		if sum.Chunks != wantChunks {
			t.Fatalf("chunk %d: Chunks = %d, want %d", size, sum.Chunks, wantChunks)
		}
		if got := len(readCSV(t, cfg.Outputs.CSV)); got != 21 {
			t.Fatalf("chunk %d: csv lines = %d, want 21", size, got)
		}
		if got := countRows(t, openDB(t, cfg.DB.DSN)); got != 20 {
			t.Fatalf("chunk %d: table rows = %d, want 20", size, got)
		}
		digests = append(digests, sum.Digest)
	}
	for i := 1; i < len(digests); i++ {
		if digests[i] != digests[0] {
			t.Fatalf("digest differs across chunk sizes: %x", digests)
		}
	}
}

func TestRun_IdempotentRerun(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, writeInput(t, numbered(5)...), 2)
	var first Summary
	for run := 0; run < 2; run++ {
		sum, err := New(cfg, nil).Run(context.Background())
		if err != nil {
			t.Fatalf("run %d: Run() error = %v", run, err)
		}
		if run == 0 {
			first = sum
		} else if sum.Digest != first.Digest {
			t.Fatalf("digest changed across re-runs: %x != %x", sum.Digest, first.Digest)
		}
	}
	if got := countRows(t, openDB(t, cfg.DB.DSN)); got != 5 {
		t.Fatalf("table rows = %d, want 5", got)
	}
	if got := len(readCSV(t, cfg.Outputs.CSV)); got != 6 {
		t.Fatalf("csv lines = %d, want 6", got)
	}
}

func TestRun_HeaderOnly(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, writeInput(t), 10)
	cfg.Outputs.XLSX = filepath.Join(filepath.Dir(cfg.Outputs.CSV), "out.xlsx")

	sum, err := New(cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Rows != 0 || sum.Chunks != 1 {
		t.Fatalf("summary = %+v, want 0 rows in 1 chunk", sum)
	}
	recs := readCSV(t, cfg.Outputs.CSV)
	if len(recs) != 1 || len(recs[0]) != len(header())+8 {
		t.Fatalf("csv = %v, want header only", recs)
	}
	if got := countRows(t, openDB(t, cfg.DB.DSN)); got != 0 {
		t.Fatalf("table rows = %d, want 0", got)
	}
	if _, err := os.Stat(cfg.Outputs.XLSX); err != nil {
		t.Fatalf("xlsx not written: %v", err)
	}
}

// fakeSink records calls and can fail on a given write.
type fakeSink struct {
	mu      sync.Mutex
	name    string
	failAt  int // 1-based write number; 0 never fails
	writes  int
	firsts  []bool
	rows    int
	flushed int
	closed  int
}

func (f *fakeSink) Name() string   { return f.name }
func (f *fakeSink) Target() string { return "mem:" + f.name }

func (f *fakeSink) Write(_ context.Context, ch *frame.Chunk, first bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failAt > 0 && f.writes == f.failAt {
		return errors.New("write failed")
	}
	f.firsts = append(f.firsts, first)
	f.rows += ch.Len()
	return nil
}

func (f *fakeSink) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed++
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func builderOf(sinks ...sink.Sink) (SinkBuilder, *int) {
	calls := 0
	return func(context.Context, config.Config, []string, *zap.Logger) ([]sink.Sink, error) {
		calls++
		return sinks, nil
	}, &calls
}

func TestRun_FakeSinks(t *testing.T) {
	t.Parallel()

	a, b := &fakeSink{name: "a"}, &fakeSink{name: "b"}
	build, calls := builderOf(a, b)
	cfg := testConfig(t, writeInput(t, numbered(5)...), 2)

	sum, err := New(cfg, nil, WithSinkBuilder(build)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if *calls != 1 || sum.Rows != 5 {
		t.Fatalf("calls=%d summary=%+v", *calls, sum)
	}
	for _, s := range []*fakeSink{a, b} {
		if s.rows != 5 || s.flushed != 1 || s.closed != 1 {
			t.Fatalf("sink %s = %+v", s.name, s)
		}
		if want := []bool{true, false, false}; fmt.Sprint(s.firsts) != fmt.Sprint(want) {
			t.Fatalf("sink %s firsts = %v, want %v", s.name, s.firsts, want)
		}
	}
}

func TestRun_SinkFailureClosesEverything(t *testing.T) {
	t.Parallel()

	a, b := &fakeSink{name: "a"}, &fakeSink{name: "b", failAt: 2}
	build, _ := builderOf(a, b)
	cfg := testConfig(t, writeInput(t, numbered(5)...), 2)

	d := New(cfg, nil, WithSinkBuilder(build))
	_, err := d.Run(context.Background())
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageSink || se.Sink != "b" {
		t.Fatalf("Run() error = %v, want sink b StageError", err)
	}
	if ExitCode(err) != ExitSink {
		t.Fatalf("ExitCode() = %d, want %d", ExitCode(err), ExitSink)
	}
	if d.State() != StateFailed {
		t.Fatalf("State() = %v, want failed", d.State())
	}
	// The failing chunk reached a but no further chunk was read.
	if a.writes != 2 || a.flushed != 0 {
		t.Fatalf("sink a = %+v", a)
	}
	if a.closed != 1 || b.closed != 1 {
		t.Fatalf("closed a=%d b=%d, want 1 each", a.closed, b.closed)
	}
}

func TestRun_Failures(t *testing.T) {
	t.Parallel()

	tooWide := filepath.Join(t.TempDir(), "wide.csv")
	if err := os.WriteFile(tooWide, []byte(strings.Join(header(), ",")+"\nd,1,1,1,1,1,1,1,1,extra\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	missingCol := filepath.Join(t.TempDir(), "narrow.csv")
	if err := os.WriteFile(missingCol, []byte("date,buyRateUSD\nd,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		input     string
		mutate    func(*config.Config)
		wantCode  int
		wantBuild bool
	}{
		{"missing input", filepath.Join(t.TempDir(), "nope.csv"), nil, ExitInput, false},
		{"missing rate column", missingCol, nil, ExitConfig, false},
		{"too many fields", tooWide, nil, ExitInput, true},
		{"bad chunk size", missingCol, func(c *config.Config) { c.ChunkSize = 0 }, ExitConfig, false},
		{"bad comma", missingCol, func(c *config.Config) { c.Comma = "::" }, ExitConfig, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &fakeSink{name: "a"}
			build, calls := builderOf(s)
			cfg := testConfig(t, tt.input, 10)
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			_, err := New(cfg, nil, WithSinkBuilder(build)).Run(context.Background())
			if got := ExitCode(err); got != tt.wantCode {
				t.Fatalf("ExitCode(%v) = %d, want %d", err, got, tt.wantCode)
			}
			if (*calls == 1) != tt.wantBuild {
				t.Fatalf("sink builder calls = %d, wantBuild %v", *calls, tt.wantBuild)
			}
			if tt.wantBuild && s.closed != 1 {
				t.Fatalf("sink closed = %d, want 1", s.closed)
			}
		})
	}
}

func TestRun_AllowMissingRateColumns(t *testing.T) {
	t.Parallel()

	in := filepath.Join(t.TempDir(), "narrow.csv")
	if err := os.WriteFile(in, []byte("date,buyRateUSD\nd1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t, in, 10)
	cfg.AllowMissingRateColumns = true
	cfg.Precision = 2

	if _, err := New(cfg, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	recs := readCSV(t, cfg.Outputs.CSV)
	if len(recs) != 2 || len(recs[0]) != 10 {
		t.Fatalf("csv = %v", recs)
	}
	if got, want := recs[1][2], "62.21"; got != want {
		t.Fatalf("buyRateUSDOz = %q, want %q", got, want)
	}
	if recs[1][3] != "" {
		t.Fatalf("sellRateUSDOz = %q, want empty", recs[1][3])
	}
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeSink{name: "a"}
	build, _ := builderOf(s)
	cfg := testConfig(t, writeInput(t, "1"), 10)

	_, err := New(cfg, nil, WithSinkBuilder(build)).Run(ctx)
	if got := ExitCode(err); got != ExitInterrupted {
		t.Fatalf("ExitCode(%v) = %d, want %d", err, got, ExitInterrupted)
	}
}

func TestNew_GeneratesRunID(t *testing.T) {
	t.Parallel()

	a, b := New(config.Default(), nil), New(config.Default(), nil)
	if a.RunID() == "" || a.RunID() == b.RunID() {
		t.Fatalf("run IDs = %q, %q; want distinct non-empty", a.RunID(), b.RunID())
	}
	if a.State() != StateInitializing {
		t.Fatalf("State() = %v, want initializing", a.State())
	}
}

// stringSource serves an in-memory input.
type stringSource struct{ body string }

func (s stringSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func (s stringSource) CountRows(ctx context.Context) (int64, error) {
	n, err := file.CountLines(ctx, strings.NewReader(s.body))
	if n > 0 {
		n--
	}
	return n, err
}

func TestRun_WithSource(t *testing.T) {
	t.Parallel()

	body := strings.Join(header(), ";") + "\n" + "d1;1800;;;;;;;\n"
	a := &fakeSink{name: "a"}
	build, _ := builderOf(a)
	cfg := testConfig(t, "ignored.csv", 10)
	cfg.Comma = ";"

	sum, err := New(cfg, nil, WithSource(stringSource{body}), WithSinkBuilder(build)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Rows != 1 || sum.Expected != 1 || a.rows != 1 {
		t.Fatalf("summary = %+v, sink rows = %d", sum, a.rows)
	}
}

func TestRun_RemoteInput(t *testing.T) {
	t.Parallel()

	body, err := os.ReadFile(writeInput(t, "100", "50"))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/gold.csv", 10)
	sum, err := New(cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Rows != 2 || sum.Expected != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if got := countRows(t, openDB(t, cfg.DB.DSN)); got != 2 {
		t.Fatalf("table rows = %d, want 2", got)
	}
}

// cancelSink cancels the run from inside its first Write.
type cancelSink struct {
	fakeSink
	cancel context.CancelFunc
}

func (c *cancelSink) Write(ctx context.Context, ch *frame.Chunk, first bool) error {
	c.cancel()
	return c.fakeSink.Write(ctx, ch, first)
}

func TestRun_CancelDuringWriteCompletesChunk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		rows       int
		chunk      int
		wantRows   int
		wantChunks int64
	}{
		{"only chunk", 3, 10, 3, 1},
		{"first of three chunks", 5, 2, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cfg := testConfig(t, writeInput(t, numbered(tt.rows)...), tt.chunk)
			cfg.Outputs.XLSX = filepath.Join(filepath.Dir(cfg.Outputs.CSV), "out.xlsx")

			cs := &cancelSink{fakeSink: fakeSink{name: "cancel"}, cancel: cancel}
			build := func(ctx context.Context, cfg config.Config, derived []string, log *zap.Logger) ([]sink.Sink, error) {
				ss, err := OpenSinks(ctx, cfg, derived, log)
				return append([]sink.Sink{cs}, ss...), err
			}

			d := New(cfg, nil, WithSinkBuilder(build))
			sum, err := d.Run(ctx)
			if got := ExitCode(err); got != ExitInterrupted {
				t.Fatalf("ExitCode(%v) = %d, want %d", err, got, ExitInterrupted)
			}
			if d.State() != StateFailed {
				t.Fatalf("State() = %v, want failed", d.State())
			}
			if sum.Rows != int64(tt.wantRows) || sum.Chunks != tt.wantChunks {
				t.Fatalf("summary = %+v, want %d rows in %d chunks", sum, tt.wantRows, tt.wantChunks)
			}

			if got := countRows(t, openDB(t, cfg.DB.DSN)); got != tt.wantRows {
				t.Fatalf("table rows = %d, want %d", got, tt.wantRows)
			}
			if got := len(readCSV(t, cfg.Outputs.CSV)); got != tt.wantRows+1 {
				t.Fatalf("csv lines = %d, want %d", got, tt.wantRows+1)
			}
			f, err := excelize.OpenFile(cfg.Outputs.XLSX)
			if err != nil {
				t.Fatalf("excelize.OpenFile() error = %v", err)
			}
			defer f.Close()
			xrows, err := f.GetRows("Sheet1")
			if err != nil {
				t.Fatalf("GetRows() error = %v", err)
			}
			if len(xrows) != tt.wantRows+1 {
				t.Fatalf("xlsx rows = %d, want %d", len(xrows), tt.wantRows+1)
			}
			if cs.writes != 1 || cs.flushed != 1 || cs.closed != 1 {
				t.Fatalf("cancel sink = %+v", &cs.fakeSink)
			}
		})
	}
}

// trackedSource serves an in-memory input and counts opens and closes of
// the input stream.
type trackedSource struct {
	stringSource
	mu     sync.Mutex
	opens  int
	closes int
}

func (s *trackedSource) Open(context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	return &trackedReader{Reader: strings.NewReader(s.body), src: s}, nil
}

type trackedReader struct {
	io.Reader
	src *trackedSource
}

func (r *trackedReader) Close() error {
	r.src.mu.Lock()
	defer r.src.mu.Unlock()
	r.src.closes++
	return nil
}

func TestRun_ClosesInput(t *testing.T) {
	t.Parallel()

	hdr := strings.Join(header(), ",") + "\n"
	good := hdr + "d1,1,1,1,1,1,1,1,1\nd2,2,1,1,1,1,1,1,1\nd3,3,1,1,1,1,1,1,1\n"
	wide := hdr + "d1,1,1,1,1,1,1,1,1,extra\n"

	tests := []struct {
		name     string
		body     string
		failAt   int
		wantCode int
	}{
		{"success", good, 0, ExitOK},
		{"sink write failure", good, 2, ExitSink},
		{"too many fields", wide, 0, ExitInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := &trackedSource{stringSource: stringSource{tt.body}}
			s := &fakeSink{name: "a", failAt: tt.failAt}
			build, _ := builderOf(s)
			cfg := testConfig(t, "ignored.csv", 2)

			_, err := New(cfg, nil, WithSource(src), WithSinkBuilder(build)).Run(context.Background())
			if got := ExitCode(err); got != tt.wantCode {
				t.Fatalf("ExitCode(%v) = %d, want %d", err, got, tt.wantCode)
			}
			if src.opens != 1 || src.closes != 1 {
				t.Fatalf("input opens = %d closes = %d, want 1 each", src.opens, src.closes)
			}
			if s.closed != 1 {
				t.Fatalf("sink closed = %d, want 1", s.closed)
			}
		})
	}
}
