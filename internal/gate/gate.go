// Package gate provides cross-process mutual exclusion for the thread
// registry. Every registry-mutating operation runs as its own short-lived
// process, so exclusion cannot rely on in-memory synchronization: the gate
// is a lock file created with O_CREATE|O_EXCL, which the filesystem
// guarantees is atomic across processes.
//
// A crashed holder never calls Release, so the gate carries a staleness
// policy: the lock file records the holder's pid and acquisition time, a
// background toucher refreshes the file's mtime while held, and a waiter may
// forcibly reclaim a lock whose holder pid is dead or whose mtime is older
// than the configured threshold.
package gate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	wefterrors "github.com/weft-sh/weft/internal/errors"
)

// pollInterval is how often a blocked waiter retries acquisition.
const pollInterval = 50 * time.Millisecond

// touchInterval is how often the holder refreshes the lock file's mtime.
const touchInterval = 1 * time.Second

// payload is the JSON body of the lock file, identifying the holder.
type payload struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Gate is a filesystem-backed mutex guarding the registry.
// A Gate value is not safe for concurrent use within one process; each
// operation constructs its own. The mutex guards held/holder against the
// background toucher, which may mark the gate lost after an eviction.
type Gate struct {
	path       string
	staleAfter time.Duration

	mu       sync.Mutex
	held     bool
	holder   payload
	stopCh   chan struct{}
	stopOnce func()
}

// New creates a Gate over the lock file at path. staleAfter is the age
// beyond which a waiter may reclaim an unreleased lock.
func New(path string, staleAfter time.Duration) *Gate {
	return &Gate{
		path:       path,
		staleAfter: staleAfter,
	}
}

// Acquire blocks until the gate is held or timeout elapses, in which case
// it fails with ErrLockTimeout. A stale lock (dead holder pid, or mtime
// older than the staleness threshold) is forcibly reclaimed.
func (g *Gate) Acquire(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		ok, err := g.tryAcquire()
		if err != nil {
			return fmt.Errorf("acquire registry lock: %w", err)
		}
		if ok {
			g.startToucher()
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %s (%s)", wefterrors.ErrLockTimeout, timeout, g.path)
		}
		time.Sleep(pollInterval)
	}
}

// tryAcquire makes a single acquisition attempt.
func (g *Gate) tryAcquire() (bool, error) {
	body, err := g.newPayload()
	if err != nil {
		return false, err
	}

	f, err := os.OpenFile(g.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		if _, werr := f.Write(body); werr != nil {
			f.Close()
			_ = os.Remove(g.path)
			return false, werr
		}
		_ = f.Close()
		g.setHeld(true)
		return true, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return false, err
	}

	// Lock exists. Reclaim only if the holder is provably gone.
	stale, err := g.isStaleLocked()
	if err != nil || !stale {
		return false, err
	}
	return g.reclaim(body)
}

// reclaim replaces a stale lock file with our payload via an atomic rename,
// then re-reads to confirm no concurrent waiter won the race.
func (g *Gate) reclaim(body []byte) (bool, error) {
	tmp := fmt.Sprintf("%s.%d.tmp", g.path, os.Getpid())
	if err := os.WriteFile(tmp, body, 0644); err != nil {
		return false, err
	}
	if err := os.Rename(tmp, g.path); err != nil {
		_ = os.Remove(tmp)
		return false, err
	}

	current, err := readPayload(g.path)
	if err != nil {
		return false, nil // lost the race; file changed under us
	}
	if current.PID != os.Getpid() || !current.AcquiredAt.Equal(g.holder.AcquiredAt) {
		return false, nil
	}

	g.setHeld(true)
	return true, nil
}

// Release removes the lock file, but only while it is still ours: a waiter
// may have reclaimed the lock as stale while we stalled, and removing the
// new holder's file would hand the gate to a third process behind its back.
// Idempotent: releasing an unheld or already-lost gate is a no-op.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		return
	}
	g.stopToucher()
	g.held = false
	if g.ownsLock() {
		_ = os.Remove(g.path)
	}
}

// Held reports whether the gate is currently held. It turns false after an
// eviction is detected, not at the instant of the eviction.
func (g *Gate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

func (g *Gate) setHeld(held bool) {
	g.mu.Lock()
	g.held = held
	g.mu.Unlock()
}

// ownsLock reports whether the on-disk lock payload is still this gate's.
// Caller holds mu.
func (g *Gate) ownsLock() bool {
	current, err := readPayload(g.path)
	if err != nil {
		return false
	}
	return current.PID == g.holder.PID && current.AcquiredAt.Equal(g.holder.AcquiredAt)
}

// IsStale reports whether an existing lock file is older than age and its
// holder is no longer alive. Returns false if no lock file exists.
func (g *Gate) IsStale(age time.Duration) (bool, error) {
	info, err := os.Stat(g.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	body, err := readPayload(g.path)
	if err == nil && body.PID > 0 && pidAlive(body.PID) {
		return false, nil
	}
	return time.Since(info.ModTime()) >= age, nil
}

// isStaleLocked applies the reclaim policy against the on-disk lock.
// A dead holder pid makes the lock immediately reclaimable; an unreadable
// payload or live pid falls back to the mtime age threshold.
func (g *Gate) isStaleLocked() (bool, error) {
	info, err := os.Stat(g.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil // released between our attempt and now; retry
	}
	if err != nil {
		return false, err
	}

	body, perr := readPayload(g.path)
	if perr == nil && body.PID > 0 && !pidAlive(body.PID) {
		return true, nil
	}
	return time.Since(info.ModTime()) >= g.staleAfter, nil
}

// newPayload builds and remembers this process's lock file body.
func (g *Gate) newPayload() ([]byte, error) {
	hostname, _ := os.Hostname()
	g.holder = payload{
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now().UTC(),
	}
	return json.Marshal(g.holder)
}

// startToucher refreshes the lock file's mtime while the gate is held so
// long-running holders are not reclaimed as stale. Each tick re-verifies
// ownership: once a waiter has reclaimed the lock, refreshing it would keep
// someone else's lock alive, so the gate is marked lost instead.
func (g *Gate) startToucher() {
	stopCh := make(chan struct{})
	g.stopCh = stopCh
	g.stopOnce = func() { close(stopCh) }

	go func() {
		ticker := time.NewTicker(touchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.mu.Lock()
				if !g.held || !g.ownsLock() {
					g.held = false
					g.mu.Unlock()
					return
				}
				now := time.Now()
				_ = os.Chtimes(g.path, now, now)
				g.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

func (g *Gate) stopToucher() {
	if g.stopOnce != nil {
		g.stopOnce()
		g.stopOnce = nil
	}
}

// readPayload decodes the lock file body.
func readPayload(path string) (payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return payload{}, err
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return payload{}, err
	}
	return p, nil
}

// pidAlive reports whether a process with the given pid exists.
// Signal 0 performs the existence check without delivering anything.
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
