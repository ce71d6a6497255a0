package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// runConfigCLI runs the CLI without a daemon; config subcommands skip the
// config preload and never touch the API.
func runConfigCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestConfigInitWritesSampleAndRespectsForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gloss.toml")

	stdout, err := runConfigCLI(t, "config", "init", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, stdout, "Wrote sample config to "+path)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := runConfigCLI(t, "config", "init", path); err == nil {
		t.Fatal("expected second init without --force to fail")
	}

	if _, err := runConfigCLI(t, "config", "init", path, "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gloss.toml")
	content := "[ai]\napi_key = \"secret-ai\"\n\n[storage]\napi_key = \"secret-storage\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	stdout, err := runConfigCLI(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, stdout, "# loaded from "+path)
	requireContains(t, stdout, "<redacted>")
	if bytes.Contains([]byte(stdout), []byte("secret-ai")) {
		t.Fatalf("AI key leaked in output:\n%s", stdout)
	}
	if bytes.Contains([]byte(stdout), []byte("secret-storage")) {
		t.Fatalf("storage key leaked in output:\n%s", stdout)
	}
}

func TestConfigShowWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	stdout, err := runConfigCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, stdout, "# no config file found")
}

func TestConfigValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gloss.toml")
	if err := os.WriteFile(path, []byte("[processing]\npool_size = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	stdout, err := runConfigCLI(t, "--config", path, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, stdout, "is valid")

	if err := os.WriteFile(path, []byte("[processing]\npool_size = \"lots\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := runConfigCLI(t, "--config", path, "config", "validate"); err == nil {
		t.Fatal("expected validate to fail on malformed config")
	}
}
