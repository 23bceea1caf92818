package export

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// flakyWriter fails permanently from the failAt-th Write call on.
type flakyWriter struct {
	writes int
	failAt int
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes >= w.failAt {
		return 0, errors.New("disk full")
	}
	return len(p), nil
}

func newTestCSV(t *testing.T, opts RenderOptions) (*bytes.Buffer, Renderer) {
	t.Helper()
	var buf bytes.Buffer
	r, err := NewRenderer(FormatCSV, &buf, opts)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return &buf, r
}

func TestCSVRenderer(t *testing.T) {
	schema := Schema{{Name: "id", Kind: KindInt64}, {Name: "name", Kind: KindString}}

	tests := []struct {
		name    string
		opts    RenderOptions
		batches []*Batch
		want    string
	}{
		{
			name: "header and rows in order",
			batches: []*Batch{{
				Schema: schema,
				Rows:   [][]any{{int64(1), "alpha"}, {int64(2), "beta"}},
			}},
			want: "id,name\n1,alpha\n2,beta\n",
		},
		{
			name:    "zero-row batch yields header only",
			batches: []*Batch{{Schema: schema}},
			want:    "id,name\n",
		},
		{
			name: "header written once across batches",
			batches: []*Batch{
				{Schema: schema, Rows: [][]any{{int64(1), "a"}}},
				{Schema: schema, Rows: [][]any{{int64(2), "b"}}},
			},
			want: "id,name\n1,a\n2,b\n",
		},
		{
			name: "fields with delimiter quote and newline are quoted",
			batches: []*Batch{{
				Schema: Schema{{Name: "v", Kind: KindString}},
				Rows: [][]any{
					{"x,y"},
					{`he said "hi"`},
					{"line1\nline2"},
				},
			}},
			want: "v\n\"x,y\"\n\"he said \"\"hi\"\"\"\n\"line1\nline2\"\n",
		},
		{
			name: "null renders as empty field",
			batches: []*Batch{{
				Schema: schema,
				Rows:   [][]any{{int64(1), nil}},
			}},
			want: "id,name\n1,\n",
		},
		{
			name: "custom delimiter",
			opts: RenderOptions{Delimiter: ';'},
			batches: []*Batch{{
				Schema: schema,
				Rows:   [][]any{{int64(1), "a;b"}},
			}},
			want: "id;name\n1;\"a;b\"\n",
		},
		{
			name:    "no batches leaves an empty file",
			batches: nil,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, r := newTestCSV(t, tt.opts)
			for _, b := range tt.batches {
				if err := r.WriteBatch(b); err != nil {
					t.Fatalf("WriteBatch() error = %v", err)
				}
			}
			if err := r.Finalize(); err != nil {
				t.Fatalf("Finalize() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCSVRendererLineEndingsAreLF(t *testing.T) {
	buf, r := newTestCSV(t, RenderOptions{})
	err := r.WriteBatch(&Batch{
		Schema: Schema{{Name: "a", Kind: KindString}},
		Rows:   [][]any{{"one"}, {"two"}},
	})
	if err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}

	if bytes.Contains(buf.Bytes(), []byte("\r")) {
		t.Errorf("output contains CR bytes; line termination contract is LF only: %q", buf.String())
	}
}

func TestCSVRendererMeterCountsOnlyWrittenLines(t *testing.T) {
	meter := newTestMeter(t, 1)

	headerProbe := newTestMeter(t, 1)
	headerProbe.AddLine([]byte("v\n"))
	headerTokens := headerProbe.Total()

	// Header write succeeds, the first row write fails.
	w := &flakyWriter{failAt: 2}
	r, err := NewRenderer(FormatCSV, w, RenderOptions{Meter: meter})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	err = r.WriteBatch(&Batch{
		Schema: Schema{{Name: "v", Kind: KindString}},
		Rows:   [][]any{{"lost row"}},
	})
	if err == nil {
		t.Fatal("WriteBatch() should fail when the output rejects the write")
	}
	if kind, ok := KindOf(err); !ok || kind != ErrIO {
		t.Errorf("error kind = %v, want ErrIO", kind)
	}

	if meter.Total() != headerTokens {
		t.Errorf("meter total = %d, want %d (only the header reached the output)",
			meter.Total(), headerTokens)
	}
}

func TestCSVRendererTimestampFormatting(t *testing.T) {
	buf, r := newTestCSV(t, RenderOptions{TimeFormat: "yyyy-MM-dd HH:mm:ss", TimeZone: "UTC"})
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	err := r.WriteBatch(&Batch{
		Schema: Schema{{Name: "at", Kind: KindTimestamp}},
		Rows:   [][]any{{ts}},
	})
	if err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}

	want := "at\n2024-03-15 10:30:00\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
