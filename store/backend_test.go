package store_test

import (
	"testing"

	"github.com/jacentio/murmur/store"
)

func TestEdgeOpApply(t *testing.T) {
	tests := []struct {
		name string
		op   store.EdgeOp
		refs []string
		want []string
	}{
		{"append to empty", store.EdgeOp{Target: "a"}, nil, []string{"a"}},
		{"append keeps duplicates", store.EdgeOp{Target: "a"}, []string{"a"}, []string{"a", "a"}},
		{"remove first", store.EdgeOp{Target: "a", Remove: true}, []string{"b", "a", "c", "a"}, []string{"b", "c", "a"}},
		{"remove all", store.EdgeOp{Target: "a", Remove: true, All: true}, []string{"a", "b", "a"}, []string{"b"}},
		{"remove absent", store.EdgeOp{Target: "z", Remove: true}, []string{"a"}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.op.Apply(tt.refs)
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Apply() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestEdgeOpApply_DoesNotMutateInput(t *testing.T) {
	refs := []string{"a", "b", "a"}
	store.EdgeOp{Target: "a", Remove: true, All: true}.Apply(refs)
	if refs[0] != "a" || refs[1] != "b" || refs[2] != "a" {
		t.Errorf("input mutated: %v", refs)
	}
}

func TestEdgeOpRemovalIndexes(t *testing.T) {
	refs := []string{"a", "b", "a"}
	if got := (store.EdgeOp{Target: "a"}).RemovalIndexes(refs); len(got) != 1 || got[0] != 0 {
		t.Errorf("first: %v", got)
	}
	if got := (store.EdgeOp{Target: "a", All: true}).RemovalIndexes(refs); len(got) != 2 || got[1] != 2 {
		t.Errorf("all: %v", got)
	}
}

func TestErrors(t *testing.T) {
	errs := []error{
		store.ErrNotFound,
		store.ErrAlreadyExists,
		store.ErrConcurrentModification,
		store.ErrInvalidQuery,
		store.ErrInvalidEdge,
	}
	for _, err := range errs {
		if len(err.Error()) < 7 || err.Error()[:7] != "murmur:" {
			t.Errorf("error %q should start with 'murmur:'", err.Error())
		}
	}
}
