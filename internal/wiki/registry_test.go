package wiki

import (
	"errors"
	"strings"
	"testing"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

func TestDefaultRegistryComplete(t *testing.T) {
	reg, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	descs := reg.Descriptors()
	if len(descs) != len(model.AllFamilies()) {
		t.Fatalf("got %d descriptors", len(descs))
	}
	for i, f := range model.AllFamilies() {
		if descs[i].Family != f {
			t.Errorf("descriptor %d is %s, want %s", i, descs[i].Family, f)
		}
		if descs[i].Editable() != f.Editable() {
			t.Errorf("%s editable mismatch", f)
		}
	}
}

func TestNewRegistry_Missing(t *testing.T) {
	descs := DefaultDescriptors()
	_, err := NewRegistry(descs[:len(descs)-1]...)
	if err == nil || !strings.Contains(err.Error(), "no descriptor for scene") {
		t.Fatalf("got %v, want missing scene descriptor", err)
	}
}

func TestNewRegistry_Duplicate(t *testing.T) {
	descs := append(DefaultDescriptors(), DefaultDescriptors()[0])
	_, err := NewRegistry(descs...)
	if err == nil || !strings.Contains(err.Error(), "duplicate descriptor for entry") {
		t.Fatalf("got %v, want duplicate entry descriptor", err)
	}
}

func TestNewRegistry_Incomplete(t *testing.T) {
	descs := DefaultDescriptors()
	descs[0].Build = nil
	if _, err := NewRegistry(descs...); err == nil {
		t.Fatal("expected error for descriptor without build func")
	}
	descs = DefaultDescriptors()
	descs = append(descs, Descriptor{Family: model.Family(99), Template: "x"})
	if _, err := NewRegistry(descs...); !errors.Is(err, apperr.ErrUnknownFamily) {
		t.Fatalf("got %v, want ErrUnknownFamily", err)
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		full    bool
		include model.Family
		exclude model.Family
	}{
		{"", true, model.FamilyEntry, 0},
		{"all", true, model.FamilyScene, 0},
		{"journal", false, model.FamilyTag, model.FamilyChapter},
		{"Manuscript", false, model.FamilyScene, model.FamilyEntry},
		{"chapters", false, model.FamilyChapter, model.FamilyScene},
		{"scene", false, model.FamilyScene, model.FamilyChapter},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s, err := ParseScope(tt.in)
			if err != nil {
				t.Fatalf("ParseScope(%q): %v", tt.in, err)
			}
			if s.Full() != tt.full {
				t.Errorf("Full() = %v", s.Full())
			}
			if !s.Includes(tt.include) {
				t.Errorf("%s excludes %s", s, tt.include)
			}
			if tt.exclude != 0 && s.Includes(tt.exclude) {
				t.Errorf("%s includes %s", s, tt.exclude)
			}
		})
	}
	if _, err := ParseScope("gossip"); !errors.Is(err, apperr.ErrUnknownFamily) {
		t.Errorf("got %v, want ErrUnknownFamily", err)
	}
}
