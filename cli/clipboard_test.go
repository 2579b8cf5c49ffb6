package cli

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	writes []string
	err    error
}

func (r *recorder) write(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.writes = append(r.writes, s)
	return nil
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func newTestManager(r *recorder) *ClipboardManager {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &ClipboardManager{write: r.write, log: l}
}

func TestClipboardManagerCopyClears(t *testing.T) {
	r := &recorder{}
	m := newTestManager(r)
	defer m.Close()

	require.NoError(t, m.Copy("test-secret", 10*time.Millisecond))
	m.Wait()
	assert.Equal(t, []string{"test-secret", ""}, r.got())
}

func TestClipboardManagerNoTimeout(t *testing.T) {
	r := &recorder{}
	m := newTestManager(r)
	defer m.Close()

	require.NoError(t, m.Copy("keep", 0))
	m.Wait()
	assert.Equal(t, []string{"keep"}, r.got())
}

func TestClipboardManagerClearNow(t *testing.T) {
	r := &recorder{}
	m := newTestManager(r)
	defer m.Close()

	require.NoError(t, m.Copy("test", time.Minute))
	require.NoError(t, m.ClearNow())
	m.Wait()
	assert.Equal(t, []string{"test", ""}, r.got())
}

func TestClipboardManagerMultipleCopies(t *testing.T) {
	r := &recorder{}
	m := newTestManager(r)
	defer m.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, m.Copy("test", time.Minute))
	}
	require.NoError(t, m.Copy("last", 10*time.Millisecond))
	m.Wait()

	got := r.got()
	require.Len(t, got, 12)
	assert.Equal(t, "last", got[10])
	assert.Equal(t, "", got[11])
}

func TestClipboardManagerLateClearKeepsNewCopy(t *testing.T) {
	r := &recorder{}
	m := newTestManager(r)
	defer m.Close()

	require.NoError(t, m.Copy("old", 10*time.Millisecond))
	m.mu.Lock()
	pending := m.done
	time.Sleep(50 * time.Millisecond) // the clear fires and blocks on mu
	m.mu.Unlock()

	require.NoError(t, m.Copy("new", time.Minute))
	<-pending

	got := r.got()
	assert.Equal(t, "new", got[len(got)-1])
}

func TestClipboardManagerClose(t *testing.T) {
	r := &recorder{}
	m := newTestManager(r)

	require.NoError(t, m.Copy("test", time.Minute))
	m.Close()
	m.Wait()
	assert.Equal(t, []string{"test"}, r.got())
}

func TestClipboardManagerWriteError(t *testing.T) {
	r := &recorder{err: errors.New("no clipboard utility")}
	m := newTestManager(r)
	defer m.Close()

	assert.Error(t, m.Copy("test", time.Minute))
	assert.Error(t, m.ClearNow())
	m.Wait()
}
