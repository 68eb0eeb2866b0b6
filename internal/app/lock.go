package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrAlreadyRunning is returned when another agent holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

var pidExists = process.PidExistsWithContext

// AcquireLock records this process in the pid file at path. A pid file
// naming a live process other than this one fails with ErrAlreadyRunning;
// a stale one is taken over. The returned func removes the file.
func AcquireLock(ctx context.Context, path string) (func(), error) {
	self := os.Getpid()

	if data, err := os.ReadFile(path); err == nil {
		pid, perr := strconv.Atoi(strings.TrimSpace(string(data)))
		if perr == nil && pid > 0 && pid != self {
			alive, err := pidExists(ctx, int32(pid))
			if err != nil {
				return nil, fmt.Errorf("checking pid %d: %w", pid, err)
			}
			if alive {
				return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading lock file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	content := strconv.Itoa(self)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("writing lock file: %w", err)
	}

	return func() {
		// Leave a lock that a newer instance took over.
		if data, err := os.ReadFile(path); err == nil && strings.TrimSpace(string(data)) == content {
			os.Remove(path)
		}
	}, nil
}

// Running returns the pid recorded at path when that process is alive.
func Running(ctx context.Context, path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	alive, err := pidExists(ctx, int32(pid))
	if err != nil || !alive {
		return 0, false
	}
	return pid, true
}
