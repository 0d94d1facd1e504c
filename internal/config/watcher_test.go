package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type reloadConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadReloadConfig(path string) (reloadConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return reloadConfig{}, err
	}
	var cfg reloadConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startWatcher(t *testing.T, w *Watcher[reloadConfig]) {
	t.Helper()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	time.Sleep(50 * time.Millisecond)
}

func TestConfigWatcher_Reload(t *testing.T) {
	path := writeConfig(t, "name = \"initial\"\nvalue = 1\n")

	received := make(chan reloadConfig, 4)
	w := NewConfigWatcher(path, loadReloadConfig, quietLogger(), WithDebounce[reloadConfig](50*time.Millisecond))
	w.OnReload(func(cfg reloadConfig) { received <- cfg })
	startWatcher(t, w)

	if err := os.WriteFile(path, []byte("name = \"updated\"\nvalue = 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Name != "updated" || cfg.Value != 42 {
			t.Errorf("got %+v, want name=updated value=42", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestConfigWatcher_RenameReplace(t *testing.T) {
	path := writeConfig(t, "name = \"initial\"\n")

	received := make(chan reloadConfig, 4)
	w := NewConfigWatcher(path, loadReloadConfig, quietLogger(), WithDebounce[reloadConfig](50*time.Millisecond))
	w.OnReload(func(cfg reloadConfig) { received <- cfg })
	startWatcher(t, w)

	tmp := filepath.Join(filepath.Dir(path), "camerahost.toml.swp")
	if err := os.WriteFile(tmp, []byte("name = \"renamed\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Name != "renamed" {
			t.Errorf("Name = %q, want renamed", cfg.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	path := writeConfig(t, "value = 1\n")

	var kept, removed atomic.Int32
	done := make(chan struct{}, 4)
	w := NewConfigWatcher(path, loadReloadConfig, quietLogger(), WithDebounce[reloadConfig](50*time.Millisecond))
	unsubscribe := w.OnReload(func(reloadConfig) { removed.Add(1) })
	w.OnReload(func(reloadConfig) {
		kept.Add(1)
		done <- struct{}{}
	})
	unsubscribe()
	startWatcher(t, w)

	if err := os.WriteFile(path, []byte("value = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
	if removed.Load() != 0 {
		t.Errorf("unsubscribed handler called %d times", removed.Load())
	}
	if kept.Load() != 1 {
		t.Errorf("kept handler called %d times, want 1", kept.Load())
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := writeConfig(t, "value = 1\n")

	errs := make(chan error, 4)
	var reloads atomic.Int32
	w := NewConfigWatcher(path, loadReloadConfig, quietLogger(),
		WithDebounce[reloadConfig](50*time.Millisecond),
		WithErrorHandler[reloadConfig](func(err error) { errs <- err }),
	)
	w.OnReload(func(reloadConfig) { reloads.Add(1) })
	startWatcher(t, w)

	if err := os.WriteFile(path, []byte("value = = 2"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected non-nil load error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
	if reloads.Load() != 0 {
		t.Errorf("handlers called %d times on load failure", reloads.Load())
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := writeConfig(t, "value = 0\n")

	var calls atomic.Int32
	last := make(chan reloadConfig, 8)
	w := NewConfigWatcher(path, loadReloadConfig, quietLogger(), WithDebounce[reloadConfig](200*time.Millisecond))
	w.OnReload(func(cfg reloadConfig) {
		calls.Add(1)
		last <- cfg
	})
	startWatcher(t, w)

	for i := 1; i <= 5; i++ {
		if err := os.WriteFile(path, []byte("value = "+string(rune('0'+i))+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case cfg := <-last:
		if cfg.Value != 5 {
			t.Errorf("Value = %d, want 5", cfg.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced reload")
	}
	time.Sleep(300 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}
}

func TestConfigWatcher_StartMissingDirectory(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "nope", "c.toml"), loadReloadConfig, quietLogger())
	if err := w.Start(); err == nil {
		w.Stop()
		t.Fatal("expected error watching missing directory")
	}
}

func TestConfigWatcher_StopWithoutStart(t *testing.T) {
	w := NewConfigWatcher("unused.toml", func(string) (reloadConfig, error) {
		return reloadConfig{}, errors.New("unused")
	}, quietLogger())
	if err := w.Stop(); err != nil {
		t.Errorf("Stop before Start = %v, want nil", err)
	}
}
