package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRun_Version(t *testing.T) {
	config := &Config{version: true}
	if err := Run(config); err != nil {
		t.Errorf("Expected nil error for version, got %v", err)
	}
}

func TestRun_NoTarget(t *testing.T) {
	if err := Run(&Config{Addr: ":0"}); err == nil {
		t.Error("Expected error without target")
	}
}

func TestNewProxy_Rules(t *testing.T) {
	tmpDir := t.TempDir()
	rules := filepath.Join(tmpDir, "rules.json")
	os.WriteFile(rules, []byte(`{"enable":true,"items":[{"enable":true,"from":{},"actions":[{"op":"delete","path":"a"}]}]}`), 0644)

	p, err := newProxy(&Config{Addr: ":0", Target: "http://localhost:8000", Rules: rules, LogBody: true})
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("nil proxy")
	}

	bad := filepath.Join(tmpDir, "bad.json")
	os.WriteFile(bad, []byte(`{"enable":true,"items":[{"actions":[]}]}`), 0644)
	if _, err := newProxy(&Config{Target: "http://localhost:8000", Rules: bad}); err == nil {
		t.Error("Expected error for invalid rules")
	}
}
