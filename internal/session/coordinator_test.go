package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/bbtrace/bbtrace/internal/session"
)

// These tests exercise the coordinator's error-propagation paths using the
// platform-stub shm backend (see internal/shm/mapping_stub.go): on a
// non-Windows build, segment creation and attach always fail, which is
// enough to verify that Coordinator reports the underlying failure rather
// than hanging or panicking. The real create/attach/verify success paths
// are exercised directly against internal/shm's in-memory segment helper.
func TestCreateOrAttachPropagatesFailure(t *testing.T) {
	c := session.NewCoordinator(nil, nil)
	name := session.NewChannelName("")

	_, created, err := c.CreateOrAttach(name, 1234)
	if err == nil {
		t.Fatal("CreateOrAttach on an unsupported platform returned nil error, want non-nil")
	}
	if created {
		t.Fatal("CreateOrAttach reported created=true alongside an error")
	}
}

func TestAttachWithBackoffRespectsMaxElapsed(t *testing.T) {
	c := session.NewCoordinator(nil, nil)
	name := session.NewChannelName("")

	start := time.Now()
	_, err := c.AttachWithBackoff(context.Background(), name, 100*time.Millisecond)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("AttachWithBackoff against a nonexistent channel returned nil error, want non-nil")
	}
	if elapsed > 2*time.Second {
		t.Fatalf("AttachWithBackoff took %s, want it to stop near its 100ms budget", elapsed)
	}
}

func TestAttachWithBackoffRespectsContextCancellation(t *testing.T) {
	c := session.NewCoordinator(nil, nil)
	name := session.NewChannelName("")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.AttachWithBackoff(ctx, name, time.Minute)
	if err == nil {
		t.Fatal("AttachWithBackoff with an already-cancelled context returned nil error, want non-nil")
	}
}
