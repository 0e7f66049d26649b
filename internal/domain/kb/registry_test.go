package kb

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	r := NewRegistry(t.TempDir(), t.TempDir())

	tests := []struct {
		name  string
		kbID  string
		valid bool
	}{
		{"simple", "kb1", true},
		{"mixed punctuation", "data-set_1.v2", true},
		{"single char", "a", true},
		{"empty", "", false},
		{"dot dot", "..", false},
		{"traversal", "../etc", false},
		{"slash", "a/b", false},
		{"backslash", `a\b`, false},
		{"leading dot", ".hidden", false},
		{"leading dash", "-kb", false},
		{"space", "my kb", false},
		{"max length", strings.Repeat("a", 64), true},
		{"too long", strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateID(tt.kbID)
			if tt.valid && err != nil {
				t.Errorf("ValidateID(%q) = %v, want nil", tt.kbID, err)
			}
			if !tt.valid {
				if err == nil {
					t.Errorf("ValidateID(%q) = nil, want error", tt.kbID)
				} else if !errors.Is(err, ErrInvalidKnowledgeBaseID) {
					t.Errorf("ValidateID(%q) = %v, want ErrInvalidKnowledgeBaseID", tt.kbID, err)
				}
			}
		})
	}
}

// TestRegistryRejectsTraversal 所有路径解析入口都必须挡住穿越标识
func TestRegistryRejectsTraversal(t *testing.T) {
	r := NewRegistry(t.TempDir(), t.TempDir())

	for _, kbID := range []string{"..", "../other", "a/../b"} {
		if _, err := r.DocumentDir(kbID); !errors.Is(err, ErrInvalidKnowledgeBaseID) {
			t.Errorf("DocumentDir(%q) err = %v, want ErrInvalidKnowledgeBaseID", kbID, err)
		}
		if _, err := r.IndexPath(kbID); !errors.Is(err, ErrInvalidKnowledgeBaseID) {
			t.Errorf("IndexPath(%q) err = %v, want ErrInvalidKnowledgeBaseID", kbID, err)
		}
		if _, err := r.EnsureDocumentDir(kbID); !errors.Is(err, ErrInvalidKnowledgeBaseID) {
			t.Errorf("EnsureDocumentDir(%q) err = %v, want ErrInvalidKnowledgeBaseID", kbID, err)
		}
		if r.Exists(kbID) {
			t.Errorf("Exists(%q) = true, want false", kbID)
		}
	}
}

func TestRegistryImplicitCreation(t *testing.T) {
	dataDir := t.TempDir()
	r := NewRegistry(dataDir, t.TempDir())

	if r.Exists("kb1") {
		t.Fatal("kb should not exist before first upload")
	}

	dir, err := r.EnsureDocumentDir("kb1")
	if err != nil {
		t.Fatalf("EnsureDocumentDir: %v", err)
	}
	if dir != filepath.Join(dataDir, "kb1") {
		t.Errorf("unexpected document dir: %s", dir)
	}
	if !r.Exists("kb1") {
		t.Error("kb should exist after EnsureDocumentDir")
	}
}

func TestRegistryIndexPath(t *testing.T) {
	indexDir := t.TempDir()
	r := NewRegistry(t.TempDir(), indexDir)

	path, err := r.IndexPath("kb1")
	if err != nil {
		t.Fatalf("IndexPath: %v", err)
	}
	if path != filepath.Join(indexDir, "kb1.json") {
		t.Errorf("unexpected index path: %s", path)
	}
}
