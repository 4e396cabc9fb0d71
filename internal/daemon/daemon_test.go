package daemon_test

import (
	"context"
	"testing"

	"inkwell/internal/daemon"
	"inkwell/internal/logging"
	"inkwell/internal/testsupport"
)

func TestStartStopLifecycle(t *testing.T) {
	stack := testsupport.NewStack(t, testsupport.StubDispatcher{})
	ctx := context.Background()

	if stack.Daemon.Running() {
		t.Fatal("running before start")
	}
	if err := stack.Daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !stack.Daemon.Running() {
		t.Fatal("not running after start")
	}
	if err := stack.Daemon.Start(ctx); err == nil {
		t.Fatal("second start must fail")
	}

	status := stack.Daemon.Status(ctx)
	if !status.Running || status.SessionID == "" || status.PID == 0 {
		t.Fatalf("status = %+v", status)
	}

	stack.Daemon.Stop()
	if stack.Daemon.Running() {
		t.Fatal("running after stop")
	}
	// Stop is idempotent.
	stack.Daemon.Stop()
}

func TestLockBlocksSecondInstance(t *testing.T) {
	stack := testsupport.NewStack(t, testsupport.StubDispatcher{})
	ctx := context.Background()

	if err := stack.Daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rival, err := daemon.New(stack.Config, stack.Scheduler, stack.Pool, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := rival.Start(ctx); err == nil {
		rival.Stop()
		t.Fatal("second instance acquired the lock")
	}

	stack.Daemon.Stop()
}
