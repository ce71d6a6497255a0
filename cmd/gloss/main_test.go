package main

import (
	"context"
	"strings"
	"testing"
)

func TestSubmitStatusAndResetFlow(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	imgA := writeTestImage(t, dir, "a.jpg")
	imgB := writeTestImage(t, dir, "b.jpg")

	stdout, _, err := runCLI(t, env, "submit", imgA, imgB, "--instructions", "warm grade")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, stdout, "Submitted batch")
	requireContains(t, stdout, "2 image(s)")

	waitTerminal(t, env)

	stdout, _, err = runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, stdout, "a.jpg")
	requireContains(t, stdout, "b.jpg")
	requireContains(t, stdout, "Completed")
	requireContains(t, stdout, "2 completed, 0 failed")

	stdout, _, err = runCLI(t, env, "summary", "two", "keepers")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	requireContains(t, stdout, "Summary updated")

	stdout, _, err = runCLI(t, env, "reset")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	requireContains(t, stdout, "Active batch discarded")

	stdout, _, err = runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status after reset: %v", err)
	}
	requireContains(t, stdout, "No active batch")
}

func TestSubmitRequiresInstructions(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	img := writeTestImage(t, dir, "a.jpg")

	_, _, err := runCLI(t, env, "submit", img)
	if err == nil {
		t.Fatal("expected error without --instructions")
	}
	if !strings.Contains(err.Error(), "--instructions is required") {
		t.Fatalf("error = %v", err)
	}
}

func TestRetouchAndRequeueCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	img := writeTestImage(t, dir, "a.jpg")

	if _, _, err := runCLI(t, env, "submit", img, "-i", "warm grade"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitTerminal(t, env)

	b, err := env.store.Batch(context.Background())
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	imageID := b.Images[0].ID

	stdout, _, err := runCLI(t, env, "retouch", imageID, "-i", "brighten")
	if err != nil {
		t.Fatalf("retouch: %v", err)
	}
	requireContains(t, stdout, "New ref: proc/orig/a.jpg+r")
	requireContains(t, stdout, "Retouches applied: 1")

	// Requeue only applies to failed images; a completed one maps to a
	// conflict surfaced as a CLI error.
	if _, _, err := runCLI(t, env, "requeue", imageID); err == nil {
		t.Fatal("expected requeue of completed image to fail")
	}
}

func TestStatusDaemonFlag(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env, "status", "--daemon")
	if err != nil {
		t.Fatalf("status --daemon: %v", err)
	}
	requireContains(t, stdout, "Daemon running")
	requireContains(t, stdout, "No active batch")
}

func TestExportCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	img := writeTestImage(t, dir, "a.jpg")

	if _, _, err := runCLI(t, env, "submit", img, "-i", "warm grade"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitTerminal(t, env)

	stdout, _, err := runCLI(t, env, "export", "archive")
	if err != nil {
		t.Fatalf("export archive: %v", err)
	}
	requireContains(t, stdout, "Archive written to")
	requireContains(t, stdout, ".zip")

	stdout, _, err = runCLI(t, env, "export", "dam", "--folder", "clients/acme", "--pattern", "batch")
	if err != nil {
		t.Fatalf("export dam: %v", err)
	}
	requireContains(t, stdout, "Delivered 1, failed 0")
	requireContains(t, stdout, "remote/proc/orig/a.jpg")
}
