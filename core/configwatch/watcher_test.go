package configwatch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jdelaire/openbot/core/configwatch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func counter(n *atomic.Int32) configwatch.Callback {
	return func(string) error {
		n.Add(1)
		return nil
	}
}

func TestCheckDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	os.WriteFile(path, []byte(`{"prefix":"."}`), 0644)

	var called atomic.Int32
	w := configwatch.New(time.Hour, testLogger())
	w.Watch(path, counter(&called))

	if n := w.Check(); n != 0 {
		t.Fatalf("fired %d callbacks before any change", n)
	}

	os.WriteFile(path, []byte(`{"prefix":"!!"}`), 0644)
	if n := w.Check(); n != 1 {
		t.Fatalf("fired %d callbacks, want 1", n)
	}
	if n := w.Check(); n != 0 {
		t.Fatalf("fired again without a change")
	}
	if called.Load() != 1 {
		t.Errorf("callback ran %d times", called.Load())
	}
}

func TestCheckIgnoresDeletedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	os.WriteFile(path, []byte(`{}`), 0644)

	var called atomic.Int32
	w := configwatch.New(time.Hour, testLogger())
	w.Watch(path, counter(&called))

	os.Remove(path)
	w.Check()
	if called.Load() != 0 {
		t.Errorf("callback fired %d times for deleted file", called.Load())
	}
}

func TestCheckFileAppearsLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.json")

	var called atomic.Int32
	w := configwatch.New(time.Hour, testLogger())
	w.Watch(path, counter(&called))

	w.Check()
	os.WriteFile(path, []byte(`[]`), 0644)
	w.Check()
	if called.Load() != 1 {
		t.Errorf("callback ran %d times, want 1", called.Load())
	}
}

func TestCallbackErrorDoesNotRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.json")
	os.WriteFile(path, []byte(`[]`), 0644)

	var called atomic.Int32
	w := configwatch.New(time.Hour, testLogger())
	w.Watch(path, func(string) error {
		called.Add(1)
		return errors.New("broken manifest")
	})

	os.WriteFile(path, []byte(`[{"broken"`), 0644)
	w.Check()
	w.Check()
	if called.Load() != 1 {
		t.Errorf("callback ran %d times, want 1", called.Load())
	}
}

func TestRunPollsAndStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	os.WriteFile(path, []byte(`{"v":1}`), 0644)

	var called atomic.Int32
	w := configwatch.New(20*time.Millisecond, testLogger())
	w.Watch(path, counter(&called))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	os.WriteFile(path, []byte(`{"v":22}`), 0644)
	deadline := time.After(2 * time.Second)
	for called.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for change callback")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after context cancel")
	}
}
