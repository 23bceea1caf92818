package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

func readBack(t *testing.T, buf *bytes.Buffer) arrow.Table {
	t.Helper()
	mem := memory.DefaultAllocator
	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(buf.Bytes()),
		parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		t.Fatalf("failed to read parquet output back: %v", err)
	}
	t.Cleanup(tbl.Release)
	return tbl
}

func TestParquetRendererRoundTrip(t *testing.T) {
	schema := Schema{
		{Name: "id", Kind: KindInt64},
		{Name: "name", Kind: KindString},
		{Name: "score", Kind: KindFloat64},
		{Name: "active", Kind: KindBool},
		{Name: "created", Kind: KindTimestamp},
	}
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	r, err := NewRenderer(FormatParquet, &buf, RenderOptions{})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	err = r.WriteBatch(&Batch{
		Schema: schema,
		Rows: [][]any{
			{int64(1), "alpha", 1.5, true, created},
			{int64(2), nil, 2.25, false, created.Add(time.Hour)},
		},
	})
	if err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}
	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	tbl := readBack(t, &buf)

	if tbl.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", tbl.NumRows())
	}
	for i, want := range []string{"id", "name", "score", "active", "created"} {
		if got := tbl.Schema().Field(i).Name; got != want {
			t.Errorf("column %d name = %q, want %q", i, got, want)
		}
	}

	ids := tbl.Column(0).Data().Chunks()[0].(*array.Int64)
	if ids.Value(0) != 1 || ids.Value(1) != 2 {
		t.Errorf("id column = [%d %d], want [1 2]", ids.Value(0), ids.Value(1))
	}

	names := tbl.Column(1).Data().Chunks()[0].(*array.String)
	if names.Value(0) != "alpha" {
		t.Errorf("name[0] = %q, want %q", names.Value(0), "alpha")
	}
	if !names.IsNull(1) {
		t.Error("name[1] should be null")
	}

	scores := tbl.Column(2).Data().Chunks()[0].(*array.Float64)
	if scores.Value(1) != 2.25 {
		t.Errorf("score[1] = %v, want 2.25", scores.Value(1))
	}

	active := tbl.Column(3).Data().Chunks()[0].(*array.Boolean)
	if !active.Value(0) || active.Value(1) {
		t.Errorf("active column = [%v %v], want [true false]", active.Value(0), active.Value(1))
	}

	ts := tbl.Column(4).Data().Chunks()[0].(*array.Timestamp)
	tsType := ts.DataType().(*arrow.TimestampType)
	got0 := ts.Value(0).ToTime(tsType.Unit)
	if !got0.Equal(created) {
		t.Errorf("created[0] = %v, want %v", got0, created)
	}
}

func TestParquetRendererOneRowGroupPerBatch(t *testing.T) {
	schema := Schema{{Name: "n", Kind: KindInt64}}

	var buf bytes.Buffer
	r, err := NewRenderer(FormatParquet, &buf, RenderOptions{})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	for i := int64(0); i < 3; i++ {
		b := &Batch{Schema: schema, Rows: [][]any{{i}, {i + 10}}}
		if err := r.WriteBatch(b); err != nil {
			t.Fatalf("WriteBatch() error = %v", err)
		}
	}
	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	tbl := readBack(t, &buf)
	if tbl.NumRows() != 6 {
		t.Errorf("NumRows() = %d, want 6", tbl.NumRows())
	}

	// Rows must come back in batch emission order
	var got []int64
	for _, chunk := range tbl.Column(0).Data().Chunks() {
		col := chunk.(*array.Int64)
		for i := 0; i < col.Len(); i++ {
			got = append(got, col.Value(i))
		}
	}
	want := []int64{0, 10, 1, 11, 2, 12}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row order = %v, want %v", got, want)
		}
	}
}

func TestParquetRendererEmptyResult(t *testing.T) {
	schema := Schema{{Name: "id", Kind: KindInt64}, {Name: "name", Kind: KindString}}

	var buf bytes.Buffer
	r, err := NewRenderer(FormatParquet, &buf, RenderOptions{})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	// One batch, zero rows: the container must still carry the schema
	if err := r.WriteBatch(&Batch{Schema: schema}); err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}
	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	tbl := readBack(t, &buf)
	if tbl.NumRows() != 0 {
		t.Errorf("NumRows() = %d, want 0", tbl.NumRows())
	}
	if got := tbl.Schema().Field(0).Name; got != "id" {
		t.Errorf("column 0 = %q, want %q", got, "id")
	}
	if got := tbl.Schema().Field(1).Name; got != "name" {
		t.Errorf("column 1 = %q, want %q", got, "name")
	}
}

func TestParquetRendererZeroBatchesUsesFallbackSchema(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(FormatParquet, &buf, RenderOptions{})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	// Finalize without a single batch: a degenerate source produced
	// nothing, yet the file must still be valid and readable.
	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	tbl := readBack(t, &buf)
	if tbl.NumRows() != 0 {
		t.Errorf("NumRows() = %d, want 0", tbl.NumRows())
	}
	if got := tbl.Schema().Field(0).Name; got != "column0" {
		t.Errorf("fallback column = %q, want %q", got, "column0")
	}
}

// closeTrackingBuffer counts Close calls so tests can assert ownership of
// the output's lifecycle.
type closeTrackingBuffer struct {
	bytes.Buffer
	closes int
}

func (b *closeTrackingBuffer) Close() error {
	b.closes++
	return nil
}

func TestParquetRendererFinalizeLeavesSinkOpen(t *testing.T) {
	var buf closeTrackingBuffer
	r, err := NewRenderer(FormatParquet, &buf, RenderOptions{})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	err = r.WriteBatch(&Batch{
		Schema: Schema{{Name: "n", Kind: KindInt64}},
		Rows:   [][]any{{int64(1)}},
	})
	if err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}
	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	// The coordinator owns the output writer and closes it exactly once;
	// Finalize must only write the footer, never close the sink.
	if buf.closes != 0 {
		t.Errorf("Finalize() closed the sink %d times, want 0", buf.closes)
	}

	tbl := readBack(t, &buf.Buffer)
	if tbl.NumRows() != 1 {
		t.Errorf("NumRows() = %d, want 1", tbl.NumRows())
	}
}

func TestParquetRendererTypeMismatch(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(FormatParquet, &buf, RenderOptions{})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	err = r.WriteBatch(&Batch{
		Schema: Schema{{Name: "n", Kind: KindInt64}},
		Rows:   [][]any{{"not an int"}},
	})
	if err == nil {
		t.Fatal("WriteBatch() with mismatched value should fail")
	}
	if kind, ok := KindOf(err); !ok || kind != ErrFormat {
		t.Errorf("error kind = %v, want ErrFormat", kind)
	}
	r.Abort()
}
