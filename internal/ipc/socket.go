package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// EnvSocketPath overrides the control socket location.
const EnvSocketPath = "REHEARSE_SOCKET"

var ErrAlreadyRunning = errors.New("rehearse interview already running")

// SocketPath returns $REHEARSE_SOCKET, or rehearse.sock under
// $XDG_RUNTIME_DIR.
func SocketPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv(EnvSocketPath)); path != "" {
		return path, nil
	}
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", fmt.Errorf("XDG_RUNTIME_DIR is not set and %s is empty", EnvSocketPath)
	}
	return filepath.Join(runtimeDir, "rehearse.sock"), nil
}

// AcquireOptions tunes stale socket recovery.
type AcquireOptions struct {
	ProbeTimeout time.Duration
	Retries      int
	Backoff      time.Duration
}

// Lock is a held control socket. Only one interview holds it at a time.
type Lock struct {
	net.Listener
	Path string
}

// Release stops listening and removes the socket file.
func (l *Lock) Release() error {
	err := l.Listener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	if rmErr := os.Remove(l.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	return err
}

// Acquire listens on path. A leftover socket whose owner no longer answers
// is removed and the listen retried, up to Retries extra times. A live
// owner yields ErrAlreadyRunning.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (*Lock, error) {
	if opts.Backoff <= 0 {
		opts.Backoff = 25 * time.Millisecond
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure socket dir: %w", err)
	}

	probe := Client{Path: path, Timeout: opts.ProbeTimeout}
	for attempt := 0; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return &Lock{Listener: listener, Path: path}, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}
		if attempt > opts.Retries {
			return nil, fmt.Errorf("acquire socket %s: still in use after %d stale removals", path, attempt)
		}

		alive, err := probe.Probe(ctx)
		if err != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, err)
		}
		if alive {
			return nil, ErrAlreadyRunning
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Backoff * time.Duration(attempt+1)):
		}
	}
}
