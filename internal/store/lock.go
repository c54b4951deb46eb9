package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const ownerFile = "owner.json"

// Lock is a directory-based lock guarding a state file or data directory.
// Creating a directory is atomic on POSIX filesystems, which makes it a
// portable mutual-exclusion primitive for single-host batch runs.
type Lock struct {
	dir string
}

type lockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// Acquire takes the lock at lockDir. A lock whose owner record is older
// than staleAfter is presumed abandoned by a crashed process and is
// broken before retrying once.
func Acquire(lockDir string, staleAfter time.Duration) (*Lock, error) {
	err := tryAcquire(lockDir)
	if err == nil {
		return &Lock{dir: lockDir}, nil
	}
	if !os.IsExist(err) {
		return nil, fmt.Errorf("acquiring lock %s: %w", lockDir, err)
	}

	ownerPath := filepath.Join(lockDir, ownerFile)
	var owner lockOwner
	if readErr := ReadJSON(ownerPath, &owner); readErr == nil {
		created, parseErr := time.Parse(time.RFC3339, owner.CreatedAt)
		if parseErr == nil && time.Since(created) < staleAfter {
			return nil, fmt.Errorf(
				"locked by pid=%d since %s (host=%s): %s",
				owner.PID, owner.CreatedAt, owner.Hostname, lockDir,
			)
		}
	}

	// Stale or unreadable owner: break the lock and retry once.
	_ = os.Remove(ownerPath)
	_ = os.Remove(lockDir)
	if err := tryAcquire(lockDir); err != nil {
		return nil, fmt.Errorf("reacquiring stale lock %s: %w", lockDir, err)
	}
	return &Lock{dir: lockDir}, nil
}

func tryAcquire(lockDir string) error {
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		return err
	}
	owner := lockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostname(),
	}
	if err := WriteJSON(filepath.Join(lockDir, ownerFile), owner); err != nil {
		_ = os.Remove(lockDir)
		return err
	}
	return nil
}

// Release removes the lock. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.dir == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.dir, ownerFile))
	if err := os.Remove(l.dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing lock %s: %w", l.dir, err)
	}
	l.dir = ""
	return nil
}

func hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}
