package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/swayscope/swayscope/internal/config"
	"github.com/swayscope/swayscope/internal/engine"
	"github.com/swayscope/swayscope/internal/ipc"
	"github.com/swayscope/swayscope/internal/util"
)

type testCompositor struct{}

func (testCompositor) RunCommand(context.Context, string) error             { return nil }
func (testCompositor) GetWorkspaces(context.Context) ([]ipc.Workspace, error) { return nil, nil }
func (testCompositor) GetOutputs(context.Context) ([]ipc.Output, error)     { return nil, nil }
func (testCompositor) GetTree(context.Context) (*ipc.Node, error) {
	return &ipc.Node{ID: 1, Type: "root"}, nil
}
func (testCompositor) GetMarks(context.Context) ([]string, error) { return nil, nil }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReloadRejectsBadConfigAndLogsDiff(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "window-rules.yaml")
	writeFile(t, rulesPath, `rules:
  - pattern: firefox
    workspace: 2
`)

	docs, err := config.LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snapshot, err := config.Compile(docs)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var logBuf bytes.Buffer
	logger := util.NewLoggerWithWriter(util.LevelWarn, &logBuf)
	eng := engine.New(testCompositor{}, logger, snapshot)
	reloader := newConfigReloader(dir, logger, eng)

	writeFile(t, rulesPath, `rules:
  - match:
      kind: regex
      pattern: "["
`)
	if err := reloader.Reload("test edit"); err == nil {
		t.Fatal("expected reload of invalid regex to fail")
	}
	if !strings.Contains(logBuf.String(), "diff vs last valid config") {
		t.Fatalf("expected rejected-diff log, got:\n%s", logBuf.String())
	}

	// The previous snapshot stays live: the old project set is intact.
	if err := eng.SetActiveProject("editor"); err == nil {
		t.Fatal("project from rejected config should not exist")
	}
}

func TestReloadAppliesNewSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "window-rules.yaml"), "rules: []\n")

	docs, err := config.LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snapshot, err := config.Compile(docs)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	logger := util.NewLoggerWithWriter(util.LevelError, &bytes.Buffer{})
	eng := engine.New(testCompositor{}, logger, snapshot)
	reloader := newConfigReloader(dir, logger, eng)

	if err := eng.SetActiveProject("editor"); err == nil {
		t.Fatal("project should not exist before reload")
	}
	writeFile(t, filepath.Join(dir, "projects", "editor.yaml"), "classes: [Code]\n")
	if err := reloader.Reload("test edit"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := eng.SetActiveProject("editor"); err != nil {
		t.Fatalf("project missing after reload: %v", err)
	}
}
