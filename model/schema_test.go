package model_test

import (
	"testing"

	"github.com/jacentio/murmur/model"
)

func TestSchemaFor_AllKinds(t *testing.T) {
	tables := map[model.Kind]string{
		model.KindAccount:      "accounts",
		model.KindPost:         "posts",
		model.KindComment:      "comments",
		model.KindNotification: "notifications",
	}
	for kind, table := range tables {
		s, err := model.SchemaFor(kind)
		if err != nil {
			t.Fatalf("SchemaFor(%s): %v", kind, err)
		}
		if s.Table != table {
			t.Errorf("%s table = %q, want %q", kind, s.Table, table)
		}
		for _, name := range []string{model.FieldID, model.FieldCreatedAt, model.FieldUpdatedAt} {
			f, ok := s.Field(name)
			if !ok || !f.Managed {
				t.Errorf("%s.%s should be a managed field", kind, name)
			}
		}
	}
}

func TestSchemaFor_Unknown(t *testing.T) {
	if _, err := model.SchemaFor("like"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestAccountUniqueFields(t *testing.T) {
	got := model.MustSchema(model.KindAccount).UniqueFields()
	want := []string{"externalId", "email", "username"}
	if len(got) != len(want) {
		t.Fatalf("UniqueFields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("UniqueFields()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFieldBounds(t *testing.T) {
	bio, _ := model.MustSchema(model.KindAccount).Field("bio")
	if bio.MaxLen != 160 {
		t.Errorf("bio max = %d, want 160", bio.MaxLen)
	}
	content, _ := model.MustSchema(model.KindPost).Field("content")
	if content.MaxLen != 280 || content.Required || content.HasDefault {
		t.Errorf("post content = %+v, want optional with max 280 and no default", content)
	}
	commentContent, _ := model.MustSchema(model.KindComment).Field("content")
	if !commentContent.Required {
		t.Error("comment content should be required")
	}
}

func TestNotificationSchema(t *testing.T) {
	s := model.MustSchema(model.KindNotification)
	typ, _ := s.Field("type")
	if len(typ.Enum) != 3 {
		t.Errorf("type enum = %v", typ.Enum)
	}
	for _, name := range []string{"post", "comment"} {
		f, _ := s.Field(name)
		if f.Type != model.TypeNullableRef || !f.HasDefault || f.Default != nil {
			t.Errorf("%s = %+v, want nullable ref defaulting to null", name, f)
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    model.Kind
		wantErr bool
	}{
		{"account", model.KindAccount, false},
		{"accounts", model.KindAccount, false},
		{"notifications", model.KindNotification, false},
		{"comment", model.KindComment, false},
		{"", "", true},
		{"users", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := model.ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFieldTypeString(t *testing.T) {
	if model.TypeRefList.String() == "" || model.TypeRefList.String() == model.TypeRef.String() {
		t.Error("field types should have distinct names")
	}
}
