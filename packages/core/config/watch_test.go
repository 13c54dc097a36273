package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hitreq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: 100\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config, err error) {
			if err == nil {
				reloads <- cfg
			}
		})
	}()

	// Rewrite until the watcher has been registered and picks it up.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-reloads:
			assert.Equal(t, 200, cfg.Timeout)
			cancel()
			require.NoError(t, <-done)
			return
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("timeout: 200\n"), 0644))
		case <-deadline:
			t.Fatal("config was never reloaded")
		}
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "hitreq.json"), func(*Config, error) {})
	assert.Error(t, err)
}
