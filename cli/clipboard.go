package cli

import (
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Clipboard copies secrets and forgets them after a while.
type Clipboard interface {
	Copy(text string, timeout time.Duration) error
	ClearNow() error
	// Wait blocks until a pending clear has run.
	Wait()
	Close()
}

// ClipboardManager is the system clipboard with a single auto-clear timer.
type ClipboardManager struct {
	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
	gen   uint64 // bumped whenever the pending clear is cancelled

	write func(string) error
	log   logrus.FieldLogger
}

// NewClipboardManager returns a manager backed by the system clipboard.
func NewClipboardManager(log logrus.FieldLogger) *ClipboardManager {
	return &ClipboardManager{write: clipboard.WriteAll, log: log}
}

// Copy writes text to the clipboard. If timeout is positive the clipboard is
// cleared once it elapses; a later Copy replaces the pending clear.
func (m *ClipboardManager) Copy(text string, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stop()
	if err := m.write(text); err != nil {
		return errors.Wrap(err, "writing to clipboard")
	}
	if timeout <= 0 {
		return nil
	}

	gen := m.gen
	done := make(chan struct{})
	m.done = done
	m.timer = time.AfterFunc(timeout, func() {
		defer close(done)
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.gen {
			return
		}
		if err := m.write(""); err != nil {
			m.log.WithError(err).Warn("could not clear clipboard")
			return
		}
		m.log.Debug("clipboard cleared")
	})
	return nil
}

// ClearNow empties the clipboard and cancels any pending clear.
func (m *ClipboardManager) ClearNow() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stop()
	if err := m.write(""); err != nil {
		return errors.Wrap(err, "clearing clipboard")
	}
	return nil
}

func (m *ClipboardManager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close cancels the pending clear without touching the clipboard.
func (m *ClipboardManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stop()
}

// stop cancels the pending clear. A callback that already fired finds the
// generation changed and leaves the clipboard alone.
func (m *ClipboardManager) stop() {
	m.gen++
	if m.timer != nil && m.timer.Stop() {
		close(m.done)
	}
	m.timer = nil
	m.done = nil
}
