package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tognete/codi/internal/config"
)

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cmd := newConfigCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"init"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init failed: %v", err)
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}
	if !strings.Contains(string(data), "# provider: openai") {
		t.Error("expected starter config content")
	}
	if !strings.Contains(out.String(), "Created") {
		t.Errorf("output = %q, want confirmation", out.String())
	}

	// The starter file must load cleanly.
	if _, err := config.LoadFromDirWithWarnings(dir); err != nil {
		t.Errorf("starter config does not load: %v", err)
	}
}

func TestConfigInit_FailsIfExists(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	configPath := filepath.Join(dir, config.ConfigFileName)
	if err := os.WriteFile(configPath, []byte("provider: gemini\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := newConfigCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"init"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error when config file already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected 'already exists' error, got: %v", err)
	}
	data, _ := os.ReadFile(configPath)
	if string(data) != "provider: gemini\n" {
		t.Error("existing config was overwritten")
	}
}

func TestConfigValidate_ReportsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte("provider: bogus\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := newConfigCmd()
	var stderr bytes.Buffer
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"validate"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected validation error for unknown provider")
	}
	if !strings.Contains(stderr.String(), "bogus") {
		t.Errorf("stderr = %q, want the offending provider", stderr.String())
	}
}

func TestConfigValidate_NoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SLACK_BOT_TOKEN", "")
	t.Setenv("SLACK_APP_TOKEN", "")

	cmd := newConfigCmd()
	var stderr bytes.Buffer
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"validate"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config validate failed: %v\n%s", err, stderr.String())
	}
}
