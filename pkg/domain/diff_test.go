package domain

import (
	"reflect"
	"testing"

	"github.com/aretw0/rux/pkg/schema"
)

func levelsType(t *testing.T) *SliceType {
	t.Helper()
	c := NewCatalog()
	typ, err := c.Define(SliceDef{
		Name: "Levels",
		Fields: []FieldDef{
			{Name: "black", Type: schema.Float(), Default: 0.0, HasDefault: true},
			{Name: "white", Type: schema.Float(), Default: 1.0, HasDefault: true},
			{Name: "tags", Type: schema.Slice(schema.String()), Default: []string{}, HasDefault: true},
		},
	})
	if err != nil {
		t.Fatalf("Define() error = %v", err)
	}
	return typ
}

func TestChangedFields(t *testing.T) {
	typ := levelsType(t)
	base := typ.MustNew(nil)

	tests := []struct {
		name string
		prev *Instance
		next func() *Instance
		want []string
	}{
		{
			name: "Initial Load (Prev is Nil)",
			prev: nil,
			next: func() *Instance { return base },
			want: []string{"black", "white", "tags"},
		},
		{
			name: "No Changes",
			prev: base,
			next: func() *Instance {
				same, _ := base.Set("white", 1)
				return same
			},
			want: nil,
		},
		{
			name: "Scalar Change",
			prev: base,
			next: func() *Instance {
				n, _ := base.Set("black", 0.5)
				return n
			},
			want: []string{"black"},
		},
		{
			name: "Deep Equal Slices",
			prev: base,
			next: func() *Instance {
				n, _ := base.Set("tags", []any{})
				return n
			},
			want: nil,
		},
		{
			name: "Slice Content Change",
			prev: base,
			next: func() *Instance {
				n, _ := base.Set("tags", []string{"hdr"})
				return n
			},
			want: []string{"tags"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChangedFields(tt.prev, tt.next())
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ChangedFields() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChangedFields_LayoutOrder(t *testing.T) {
	typ := levelsType(t)
	prev := typ.MustNew(nil)
	next, err := prev.Update(
		Assign(typ.MustPath("tags"), []string{"a"}),
		Assign(typ.MustPath("black"), 0.25),
	)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got := ChangedFields(prev, next)
	want := []string{"black", "tags"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ChangedFields() = %v, want %v", got, want)
	}
}
