package export

import (
	"strings"
	"time"
)

// Kind is the logical type of a column. Every value in a batch column is
// either nil (SQL NULL) or the canonical Go value for its kind.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindBytes
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBytes:
		return "bytes"
	case KindTimestamp:
		return "timestamp"
	default:
		return "string"
	}
}

// GoValue reports whether v is the canonical value for the kind.
// nil is valid for every kind (SQL NULL).
func (k Kind) GoValue(v any) bool {
	if v == nil {
		return true
	}
	switch k {
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindInt64:
		_, ok := v.(int64)
		return ok
	case KindFloat64:
		_, ok := v.(float64)
		return ok
	case KindBytes:
		_, ok := v.([]byte)
		return ok
	case KindTimestamp:
		_, ok := v.(time.Time)
		return ok
	default:
		_, ok := v.(string)
		return ok
	}
}

// Column is one named, typed column of a batch schema.
type Column struct {
	Name string
	Kind Kind
}

// Schema is the ordered column list shared by every row of a batch.
type Schema []Column

// Equal reports whether two schemas agree on name, order and kind.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// String renders the schema as "name:kind, ..." for error messages.
func (s Schema) String() string {
	var b strings.Builder
	for i, c := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteByte(':')
		b.WriteString(c.Kind.String())
	}
	return b.String()
}

// Batch is one chunk of query-result rows sharing a schema. A batch may
// carry zero rows; an empty result set is still a valid batch.
type Batch struct {
	Schema Schema
	Rows   [][]any
}

// BatchSource is a lazy, finite, non-restartable sequence of batches in the
// exact order the backend produced them.
type BatchSource interface {
	// Next returns the next batch, or (nil, nil) once the sequence is
	// exhausted. After an error or exhaustion the source must not be
	// used again.
	Next() (*Batch, error)
}
