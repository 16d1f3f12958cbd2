// Package lock provides single-host mutual exclusion backed by an
// exclusively created file, with recovery of locks left behind by
// crashed holders.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dmcsvoices/creative-ai-agents/internal/log"
)

// ErrBusy reports that another run holds the lock. Callers treat it as a
// normal, silent exit rather than a failure.
var ErrBusy = errors.New("process lock held by another run")

// info is the JSON payload written into the lock file so humans and the
// stale check can see who holds it and until when.
type info struct {
	PID       int    `json:"pid"`
	StartedAt string `json:"started_at"`
	TimeoutAt string `json:"timeout_at"`
}

// timeoutLayouts accepts our own RFC 3339 stamps plus the zone-less ISO
// form earlier deployments wrote.
var timeoutLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// writeGrace shields a holder between exclusive create and payload write.
// A lock file younger than this is never treated as corrupt.
const writeGrace = 10 * time.Second

// Lock is a file-backed process lock. The timeout is a safety net for
// crashed holders, not a limit on legitimate work.
type Lock struct {
	path    string
	timeout time.Duration
	file    *os.File
}

// New returns an unacquired lock at path with the given stale timeout.
func New(path string, timeout time.Duration) *Lock {
	return &Lock{path: path, timeout: timeout}
}

// Acquire takes the lock or returns ErrBusy if a live holder exists.
// Stale and unreadable lock files are removed first, so a crashed run
// never wedges the queue. Any non-busy error is fatal to the caller.
func (l *Lock) Acquire() error {
	l.removeDeadLock()

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return ErrBusy
	}
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	now := time.Now()
	payload, err := json.Marshal(info{
		PID:       os.Getpid(),
		StartedAt: now.Format(time.RFC3339),
		TimeoutAt: now.Add(l.timeout).Format(time.RFC3339),
	})
	if err == nil {
		_, err = file.Write(payload)
	}
	if err == nil {
		err = file.Sync()
	}
	if err != nil {
		_ = file.Close()
		_ = os.Remove(l.path)
		return fmt.Errorf("failed to write lock file: %w", err)
	}

	l.file = file
	return nil
}

// Release closes and unlinks the lock file. Safe to call repeatedly and
// without a successful Acquire.
func (l *Lock) Release() {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn(log.CatLock, "failed to remove lock file", "path", l.path, "error", err)
	}
}

// removeDeadLock unlinks the lock file when its holder has timed out or
// the payload cannot be read. Missing files and live holders are left
// alone; the exclusive create decides the winner.
func (l *Lock) removeDeadLock() {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err == nil {
		var holder info
		if jsonErr := json.Unmarshal(data, &holder); jsonErr == nil {
			deadline, ok := parseTimeout(holder.TimeoutAt)
			if ok && time.Now().Before(deadline) {
				return
			}
			if ok {
				if removeErr := os.Remove(l.path); removeErr == nil {
					log.Info(log.CatLock, "removed stale lock file",
						"path", l.path, "holder_pid", holder.PID)
				}
				return
			}
		}
	}
	if fi, statErr := os.Stat(l.path); statErr == nil && time.Since(fi.ModTime()) < writeGrace {
		// A concurrent acquirer may be between create and write; the
		// exclusive create below will report busy.
		return
	}
	if removeErr := os.Remove(l.path); removeErr == nil {
		log.Info(log.CatLock, "removed corrupt lock file", "path", l.path)
	}
}

func parseTimeout(s string) (time.Time, bool) {
	for _, layout := range timeoutLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
