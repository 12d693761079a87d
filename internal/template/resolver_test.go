package template

import (
	"path/filepath"
	"testing"
)

func TestGetPreferredReturnsFirstMatchInCallerOrder(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "template_preferences.json"))
	r.prefs = map[string]string{"bob@acme.com": "tmpl-b"}

	id, ok := r.GetPreferred([]string{"alice@acme.com", "bob@acme.com"})
	if !ok || id != "tmpl-b" {
		t.Errorf("got (%q, %v), want (tmpl-b, true)", id, ok)
	}
}

func TestGetPreferredMissingReturnsFalse(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "template_preferences.json"))
	_, ok := r.GetPreferred([]string{"stranger@example.com"})
	if ok {
		t.Error("expected no preference for an unknown participant")
	}
}

func TestSetPreferredPersistsAcrossLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template_preferences.json")
	r := New(path)
	if err := r.SetPreferred("alice@acme.com", "tmpl-a"); err != nil {
		t.Fatalf("SetPreferred failed: %v", err)
	}

	reloaded := New(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	id, ok := reloaded.GetPreferred([]string{"alice@acme.com"})
	if !ok || id != "tmpl-a" {
		t.Errorf("got (%q, %v), want (tmpl-a, true)", id, ok)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err := r.Load(); err != nil {
		t.Errorf("Load on a missing file should be a no-op, got %v", err)
	}
}
