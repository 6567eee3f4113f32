package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryChannel(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	a := bus.Join()
	b := bus.Join()
	c := bus.Join()

	require.NoError(t, a.Publish(context.Background()))

	select {
	case <-b.Notifications():
	case <-time.After(time.Second):
		t.Fatal("peer b never notified")
	}
	select {
	case <-c.Notifications():
	case <-time.After(time.Second):
		t.Fatal("peer c never notified")
	}

	// The publisher must not hear its own announcement
	select {
	case <-a.Notifications():
		t.Fatal("publisher notified itself")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, b.Close())
	require.NoError(t, a.Publish(context.Background()), "publishing past a closed peer still works")
}

func TestFileChannel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.signal")

	a := NewFileChannel(path, 10*time.Millisecond)
	b := NewFileChannel(path, 10*time.Millisecond)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})

	require.NoError(t, a.Publish(context.Background()))

	select {
	case <-b.Notifications():
	case <-time.After(2 * time.Second):
		t.Fatal("peer never observed the signal file change")
	}

	// Own writes are suppressed
	select {
	case <-a.Notifications():
		t.Fatal("publisher notified itself")
	case <-time.After(100 * time.Millisecond):
	}
}
