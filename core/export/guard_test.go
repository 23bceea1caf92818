package export

import (
	"strings"
	"testing"
)

func TestSchemaGuard(t *testing.T) {
	base := Schema{{Name: "a", Kind: KindInt64}, {Name: "b", Kind: KindString}}

	tests := []struct {
		name    string
		batches []Schema
		wantErr bool
	}{
		{
			name:    "single batch establishes",
			batches: []Schema{base},
			wantErr: false,
		},
		{
			name:    "identical schema accepted",
			batches: []Schema{base, {{Name: "a", Kind: KindInt64}, {Name: "b", Kind: KindString}}},
			wantErr: false,
		},
		{
			name:    "type change rejected",
			batches: []Schema{base, {{Name: "a", Kind: KindString}, {Name: "b", Kind: KindString}}},
			wantErr: true,
		},
		{
			name:    "name change rejected",
			batches: []Schema{base, {{Name: "x", Kind: KindInt64}, {Name: "b", Kind: KindString}}},
			wantErr: true,
		},
		{
			name:    "column count change rejected",
			batches: []Schema{base, {{Name: "a", Kind: KindInt64}}},
			wantErr: true,
		},
		{
			name: "order change rejected",
			batches: []Schema{base,
				{{Name: "b", Kind: KindString}, {Name: "a", Kind: KindInt64}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var guard SchemaGuard
			var err error
			for _, s := range tt.batches {
				if err = guard.Check(s); err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				kind, ok := KindOf(err)
				if !ok || kind != ErrSchemaMismatch {
					t.Errorf("error kind = %v, want ErrSchemaMismatch", kind)
				}
				if !strings.Contains(err.Error(), "schema mismatch") {
					t.Errorf("error message %q should mention the mismatch", err)
				}
			}
		})
	}
}

func TestSchemaGuardEstablished(t *testing.T) {
	var guard SchemaGuard

	if _, ok := guard.Established(); ok {
		t.Error("Established() should report false before any batch")
	}

	s := Schema{{Name: "id", Kind: KindInt64}}
	if err := guard.Check(s); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	got, ok := guard.Established()
	if !ok || !got.Equal(s) {
		t.Errorf("Established() = %v, %v; want %v, true", got, ok, s)
	}
}
