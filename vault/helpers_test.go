package vault

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fahmaliyi/keyvault/secret"
)

// testParams keep scrypt fast enough to run it hundreds of times.
var testParams = KDFParams{LogN: 4, R: 8, P: 1}

var testClock = func() time.Time { return time.Unix(1700000000, 0) }

func newTestStore(t *testing.T, master string) *Store {
	t.Helper()
	s, err := New([]byte(master), WithKDFParams(testParams), WithClock(testClock))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func openTestStore(t *testing.T, master string, data []byte) (*Store, error) {
	t.Helper()
	s, err := Open([]byte(master), data, WithClock(testClock))
	if err == nil {
		t.Cleanup(s.Close)
	}
	return s, err
}

func entry(name, username, password string) Entry {
	return Entry{
		Name:      name,
		Username:  username,
		Secret:    secret.NewString(password),
		CreatedAt: 1700000000,
		UpdatedAt: 1700000000,
	}
}

func names(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

// memFile is an in-memory File.
type memFile struct {
	buf   []byte
	off   int64
	syncs int

	writeErr error
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	end := f.off + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[f.off:], p)
	f.off = end
	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		return 0, errors.New("memFile: only SeekStart is supported")
	}
	f.off = offset
	return offset, nil
}

func (f *memFile) Truncate(size int64) error {
	if size < int64(len(f.buf)) {
		f.buf = f.buf[:size]
	}
	return nil
}

func (f *memFile) Sync() error {
	f.syncs++
	return nil
}

// bytes returns a copy so that later syncs do not change what a test holds.
func (f *memFile) bytes() []byte {
	return append([]byte(nil), f.buf...)
}

func syncTo(t *testing.T, s *Store) []byte {
	t.Helper()
	f := &memFile{}
	require.NoError(t, s.Sync(f))
	return f.bytes()
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy pool gone") }

func withRandReader(t *testing.T, r io.Reader) {
	t.Helper()
	prev := randReader
	randReader = r
	t.Cleanup(func() { randReader = prev })
}
