package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// RenderOptions holds per-job renderer configuration.
type RenderOptions struct {
	Delimiter  rune
	TimeFormat string
	TimeZone   string
	Meter      *TokenMeter
}

// Renderer converts batches into one output file encoding. WriteBatch is
// called once per batch in arrival order; exactly one of Finalize or Abort
// ends the renderer's life.
type Renderer interface {
	WriteBatch(b *Batch) error
	// Finalize flushes trailing data (the Parquet footer, for the
	// columnar format) and must leave a complete, valid file behind.
	Finalize() error
	// Abort releases renderer resources without finalizing; the
	// coordinator deletes the partial file afterwards.
	Abort()
}

// Factory builds a renderer writing to w.
type Factory func(w io.Writer, opts RenderOptions) Renderer

var registry = map[string]Factory{}

func Register(format string, factory Factory) error {
	format = strings.ToLower(strings.TrimSpace(format))
	if _, exists := registry[format]; exists {
		return fmt.Errorf("export: format %q already registered", format)
	}
	registry[format] = factory
	return nil
}

func MustRegister(format string, factory Factory) {
	if err := Register(format, factory); err != nil {
		panic(err)
	}
}

// NewRenderer builds the renderer for format, or a format error when the
// format is not one of the supported kinds.
func NewRenderer(format string, w io.Writer, opts RenderOptions) (Renderer, error) {
	factory, ok := registry[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, Errorf(ErrFormat, "unsupported output format %q (supported: %s)",
			format, strings.Join(Formats(), ", "))
	}
	return factory(w, opts), nil
}

// Supported reports whether format has a registered renderer.
func Supported(format string) bool {
	_, ok := registry[strings.ToLower(strings.TrimSpace(format))]
	return ok
}

// Formats lists the registered output formats, sorted.
func Formats() []string {
	formats := make([]string, 0, len(registry))
	for name := range registry {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	return formats
}
