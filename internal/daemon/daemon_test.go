package daemon_test

import (
	"context"
	"testing"

	"gloss/internal/daemon"
	"gloss/internal/logging"
	"gloss/internal/testsupport"
)

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first, err := daemon.NewWithCollaborators(cfg, store, logging.NewNop(), &fakeProcessor{}, fakeObjects{}, fakePublisher{})
	if err != nil {
		t.Fatalf("NewWithCollaborators: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	cfg2 := *cfg
	cfg2.Paths.APIBind = "127.0.0.1:0"
	store2 := testsupport.MustOpenStore(t, &cfg2)
	second, err := daemon.NewWithCollaborators(&cfg2, store2, logging.NewNop(), &fakeProcessor{}, fakeObjects{}, fakePublisher{})
	if err != nil {
		t.Fatalf("NewWithCollaborators: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon acquired the lock")
	}
}

func TestDaemonStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.NewWithCollaborators(cfg, store, logging.NewNop(), &fakeProcessor{}, fakeObjects{}, fakePublisher{})
	if err != nil {
		t.Fatalf("NewWithCollaborators: %v", err)
	}

	status := d.Status(context.Background())
	if status.Running {
		t.Fatal("daemon reports running before Start")
	}
	if status.SessionDB == "" || status.LockFilePath == "" {
		t.Fatalf("status = %+v", status)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	status = d.Status(context.Background())
	if !status.Running {
		t.Fatal("daemon reports stopped after Start")
	}

	testsupport.NewBatch(t, store, "grade", "a.jpg")
	status = d.Status(context.Background())
	if status.ActiveBatch == "" {
		t.Fatal("active batch missing from status")
	}
}

func TestDaemonStopIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.NewWithCollaborators(cfg, store, logging.NewNop(), &fakeProcessor{}, fakeObjects{}, fakePublisher{})
	if err != nil {
		t.Fatalf("NewWithCollaborators: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Stop()
	d.Stop()
}
