package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/codescope/internal/config"
)

func TestInitWritesConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}

	path := filepath.Join(dir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# codescope configuration.") {
		t.Errorf("missing header:\n%s", data)
	}
	if !strings.Contains(stderr.String(), "wrote "+path) {
		t.Errorf("stderr = %q", stderr.String())
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	want := config.Default()
	if cfg.SimilarityThreshold != want.SimilarityThreshold || cfg.FileTimeout != want.FileTimeout {
		t.Errorf("loaded config differs from defaults: %+v", cfg)
	}
}

func TestInitDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", "--dry-run", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(stdout.String(), "max_file_size: 1000000") {
		t.Errorf("dry run should print the config:\n%s", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(dir, configFileName)); !os.IsNotExist(err) {
		t.Error("dry run wrote a file")
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, configFileName, "max_cycles: 5\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{"init", dir}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already exists error, got %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, configFileName))
	if string(data) != "max_cycles: 5\n" {
		t.Errorf("existing file was modified: %q", data)
	}
}

func TestInitForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, configFileName, "max_cycles: 5\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", "--force", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, configFileName))
	if !strings.Contains(string(data), "max_cycles: 1000") {
		t.Errorf("--force should rewrite the file:\n%s", data)
	}
}

func TestInitThenAnalyze(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}
	r, _ := runJSON(t, dir)
	if len(r.Files) != 2 {
		t.Errorf("expected 2 files, got %+v", r.Files)
	}
}
