package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetFallsBackToBuiltinDefaults(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Get(KeyDefaultIgnoreRules); got != DefaultIgnoreRules {
		t.Errorf("expected built-in default ignore rules, got %q", got)
	}
	if got := s.Get("unknownKey"); got != "" {
		t.Errorf("unknown key should return empty string, got %q", got)
	}
}

func TestSetPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(KeyDefaultIgnoreRules, "*.log\n"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if got := reopened.Get(KeyDefaultIgnoreRules); got != "*.log\n" {
		t.Errorf("expected persisted value, got %q", got)
	}
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("expected an error for a corrupt settings file")
	}
}
