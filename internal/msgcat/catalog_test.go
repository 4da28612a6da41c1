package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogRenders(t *testing.T) {
	c := MustDefault()
	got, err := c.Render("game.started", map[string]any{"Side": "white"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Game started. You play white." {
		t.Fatalf("got %q", got)
	}
	if !c.Has("game.end.mate") || !c.Has("game.end.default") {
		t.Fatalf("end-of-game keys missing")
	}
}

func TestRenderMissingKeyData(t *testing.T) {
	c := MustDefault()
	if _, err := c.Render("move.malformed", map[string]any{}); err == nil {
		t.Fatalf("expected missingkey error")
	}
	if got := c.Text("no.such.key", nil); got != "no.such.key" {
		t.Fatalf("Text fallback = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("game:\n  end:\n    mate: \"Mat! Igra okonchena.\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("game.end.mate", nil); got != "Mat! Igra okonchena." {
		t.Fatalf("override not applied: %q", got)
	}
	if got := c.Text("game.end.draw", nil); got != "The game ended in a draw." {
		t.Fatalf("default lost after override: %q", got)
	}
}

func TestOverrideDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	body := []byte("move:\n  rejected: \"x\"\n")
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}
