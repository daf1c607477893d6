package storage

import (
	"errors"
	"testing"
)

func TestKeyDeterminism(t *testing.T) {
	for _, kind := range Kinds {
		first := Key("sess-1", "step-1", kind)
		second := Key("sess-1", "step-1", kind)
		if first != second {
			t.Errorf("Key(%q) not deterministic: %q != %q", kind, first, second)
		}
	}
}

func TestKeyLayout(t *testing.T) {
	tests := []struct {
		kind ArtifactKind
		want string
	}{
		{KindHTML, "sess-1/step-1/observation.html"},
		{KindScreenshot, "sess-1/step-1/screenshot.png"},
		{KindAction, "sess-1/step-1/action.json"},
		{KindMetadata, "sess-1/step-1/metadata.json"},
	}
	for _, tt := range tests {
		if got := Key("sess-1", "step-1", tt.kind); got != tt.want {
			t.Errorf("Key(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestKeyCollisionFree(t *testing.T) {
	triples := []struct {
		session, step string
		kind          ArtifactKind
	}{
		{"a", "b", KindHTML},
		{"a", "b", KindScreenshot},
		{"a", "b", KindAction},
		{"a", "b", KindMetadata},
		{"a", "c", KindHTML},
		{"d", "b", KindHTML},
	}
	seen := make(map[string]struct{})
	for _, tr := range triples {
		key := Key(tr.session, tr.step, tr.kind)
		if _, dup := seen[key]; dup {
			t.Errorf("key collision for (%s,%s,%s): %q", tr.session, tr.step, tr.kind, key)
		}
		seen[key] = struct{}{}
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "sess-1", false},
		{"uuid", "550e8400-e29b-41d4-a716-446655440000", false},
		{"empty", "", true},
		{"forward slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"traversal", "..", true},
		{"embedded traversal", "a..b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidID) {
				t.Errorf("ValidateID(%q) error = %v, want ErrInvalidID", tt.id, err)
			}
		})
	}
}
