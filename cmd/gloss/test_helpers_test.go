package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gloss/internal/batch"
	"gloss/internal/config"
	"gloss/internal/daemon"
	"gloss/internal/logging"
	"gloss/internal/services/dam"
	"gloss/internal/testsupport"
)

type fakeProcessor struct{}

func (fakeProcessor) Process(ctx context.Context, originalRef, instructions string) (string, error) {
	return "proc/" + originalRef, nil
}

func (fakeProcessor) Retouch(ctx context.Context, processedRef, instruction string) (string, error) {
	return processedRef + "+r", nil
}

type fakeObjects struct{}

func (fakeObjects) PutOriginal(ctx context.Context, name string, payload io.Reader) (string, error) {
	return "orig/" + name, nil
}

func (fakeObjects) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("payload")), nil
}

type fakePublisher struct{}

func (fakePublisher) Publish(ctx context.Context, req dam.PublishRequest) (string, error) {
	return "remote/" + req.Ref, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *batch.Store
	daemon     *daemon.Daemon
	addr       string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Processing.RetryInitialSeconds = 0
	cfg.Processing.RetryMaxSeconds = 0

	configPath := filepath.Join(testsupport.BaseDir(cfg), "gloss.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.NewWithCollaborators(cfg, store, logging.NewNop(), fakeProcessor{}, fakeObjects{}, fakePublisher{})
	if err != nil {
		t.Fatalf("NewWithCollaborators: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		addr:       d.APIAddr(),
		configPath: configPath,
	}
}

func waitTerminal(t *testing.T, env *cliTestEnv) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		progress, err := env.store.Progress(context.Background())
		if err == nil && progress != nil && progress.Terminal() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("batch never reached terminal state")
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--config", env.configPath, "--addr", env.addr}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\narchive_dir = %q\napi_bind = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.ArchiveDir,
		cfg.Paths.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeTestImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("pixels of "+name), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
