package export

import (
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/tern-data/sqlport/internal/logger"
)

// fallbackSchema is used when a job finishes without a single batch: the
// container format needs some schema to produce a readable file, and a
// zero-column Parquet schema is not reliably accepted by standard readers.
var fallbackSchema = Schema{{Name: "column0", Kind: KindString}}

// parquetRenderer streams batches into an Arrow-compatible Parquet file.
// The container is opened lazily on the first batch, since Parquet commits
// its schema once; every non-empty batch becomes one row group.
type parquetRenderer struct {
	out     io.Writer
	mem     memory.Allocator
	fw      *pqarrow.FileWriter
	builder *array.RecordBuilder
	schema  Schema
}

func newParquetRenderer(w io.Writer, _ RenderOptions) Renderer {
	return &parquetRenderer{out: w, mem: memory.DefaultAllocator}
}

// sink hides any Close method on the output writer. pqarrow closes a
// closable sink when the file writer is closed, but the output's lifecycle
// belongs to the coordinator, which closes it exactly once itself.
type sink struct{ io.Writer }

func (r *parquetRenderer) open(s Schema) error {
	arrSchema := arrowSchema(s)
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(arrSchema, sink{r.out}, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return Errorf(ErrFormat, "error opening parquet writer: %w", err)
	}
	r.fw = fw
	r.builder = array.NewRecordBuilder(r.mem, arrSchema)
	r.schema = s
	logger.Debug("Parquet container opened (schema: %s)", s)
	return nil
}

func (r *parquetRenderer) WriteBatch(b *Batch) error {
	if r.fw == nil {
		if err := r.open(b.Schema); err != nil {
			return err
		}
	}
	if len(b.Rows) == 0 {
		return nil
	}

	for _, row := range b.Rows {
		for i, v := range row {
			if err := appendValue(r.builder.Field(i), r.schema[i], v); err != nil {
				return err
			}
		}
	}

	rec := r.builder.NewRecord()
	defer rec.Release()

	if err := r.fw.Write(rec); err != nil {
		return Errorf(ErrIO, "error writing parquet row group: %w", err)
	}
	return nil
}

// Finalize writes the trailing footer metadata. A job with zero batches
// still produces a valid empty file under the fallback schema.
func (r *parquetRenderer) Finalize() error {
	if r.fw == nil {
		if err := r.open(fallbackSchema); err != nil {
			return err
		}
	}
	r.builder.Release()
	r.builder = nil
	if err := r.fw.Close(); err != nil {
		return Errorf(ErrIO, "error finalizing parquet file: %w", err)
	}
	return nil
}

// Abort drops builder memory without closing the writer, so no footer is
// written; the partial file is deleted by the coordinator.
func (r *parquetRenderer) Abort() {
	if r.builder != nil {
		r.builder.Release()
		r.builder = nil
	}
}

func arrowSchema(s Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(s))
	for i, c := range s {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Kind), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(k Kind) arrow.DataType {
	switch k {
	case KindBool:
		return arrow.FixedWidthTypes.Boolean
	case KindInt64:
		return arrow.PrimitiveTypes.Int64
	case KindFloat64:
		return arrow.PrimitiveTypes.Float64
	case KindBytes:
		return arrow.BinaryTypes.Binary
	case KindTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

func appendValue(b array.Builder, col Column, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch bld := b.(type) {
	case *array.BooleanBuilder:
		val, ok := v.(bool)
		if !ok {
			return typeError(col, v)
		}
		bld.Append(val)
	case *array.Int64Builder:
		val, ok := v.(int64)
		if !ok {
			return typeError(col, v)
		}
		bld.Append(val)
	case *array.Float64Builder:
		val, ok := v.(float64)
		if !ok {
			return typeError(col, v)
		}
		bld.Append(val)
	case *array.StringBuilder:
		val, ok := v.(string)
		if !ok {
			return typeError(col, v)
		}
		bld.Append(val)
	case *array.BinaryBuilder:
		val, ok := v.([]byte)
		if !ok {
			return typeError(col, v)
		}
		bld.Append(val)
	case *array.TimestampBuilder:
		val, ok := v.(time.Time)
		if !ok {
			return typeError(col, v)
		}
		ts, err := arrow.TimestampFromTime(val.UTC(), arrow.Microsecond)
		if err != nil {
			return Errorf(ErrFormat, "error converting timestamp for column %q: %w", col.Name, err)
		}
		bld.Append(ts)
	default:
		return Errorf(ErrFormat, "unsupported arrow builder %T for column %q", b, col.Name)
	}
	return nil
}

func typeError(col Column, v any) error {
	return Errorf(ErrFormat, "column %q: value %v (%T) does not match declared kind %s",
		col.Name, v, v, col.Kind)
}

func init() {
	MustRegister(FormatParquet, newParquetRenderer)
}
