package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWalkerPatterns(t *testing.T) {
	root := t.TempDir()

	mustWrite := func(rel string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	mustWrite("report.pdf")
	mustWrite("notes/readme.md")
	mustWrite("notes/image.png")
	mustWrite(".git/config.txt")

	w := NewWalker([]string{"**/*.pdf", "**/*.md", "**/*.txt"}, []string{"**/.git/**"})
	files, err := w.Walk(root)
	if err != nil {
		t.Fatal(err)
	}

	got := make(map[string]bool)
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		got[rel] = true
	}

	if !got["report.pdf"] {
		t.Error("expected report.pdf to be included")
	}
	if !got[filepath.Join("notes", "readme.md")] {
		t.Error("expected notes/readme.md to be included")
	}
	if got[filepath.Join("notes", "image.png")] {
		t.Error("expected image.png to be excluded by include patterns")
	}
	if got[filepath.Join(".git", "config.txt")] {
		t.Error("expected .git contents to be excluded")
	}
}
