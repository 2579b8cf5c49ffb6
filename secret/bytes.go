// Package secret provides owning containers for key material and passwords.
// Both containers wipe their storage when destroyed and never print their
// contents through fmt or a logger.
package secret

import (
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
)

const redacted = "<redacted>"

// Bytes is a byte vector held in memguard locked memory, outside the Go heap.
// A nil *Bytes behaves as an empty, destroyed buffer.
type Bytes struct {
	buf *memguard.LockedBuffer
}

// NewBytes moves b into locked memory. The caller's slice is wiped.
func NewBytes(b []byte) *Bytes {
	return &Bytes{buf: memguard.NewBufferFromBytes(b)}
}

// Bytes returns a view of the buffer. The slice is only valid until Destroy.
func (b *Bytes) Bytes() []byte {
	if !b.alive() {
		return nil
	}
	return b.buf.Bytes()
}

// Len returns the number of bytes held.
func (b *Bytes) Len() int {
	if !b.alive() {
		return 0
	}
	return b.buf.Size()
}

// Clone returns an independent copy in its own locked buffer.
func (b *Bytes) Clone() *Bytes {
	n := b.Len()
	if n == 0 {
		return &Bytes{buf: memguard.NewBuffer(0)}
	}
	c := memguard.NewBuffer(n)
	c.Copy(b.buf.Bytes())
	return &Bytes{buf: c}
}

// Append grows the buffer by p. The old locked region is destroyed and p is
// left untouched.
func (b *Bytes) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	n := b.Len()
	grown := memguard.NewBuffer(n + len(p))
	if n > 0 {
		grown.Copy(b.buf.Bytes())
	}
	grown.CopyAt(n, p)
	if b.buf != nil {
		b.buf.Destroy()
	}
	b.buf = grown
}

// Equal reports whether both buffers hold the same bytes, in constant time.
func (b *Bytes) Equal(o *Bytes) bool {
	return subtle.ConstantTimeCompare(b.Bytes(), o.Bytes()) == 1
}

// Destroy wipes and releases the locked memory. It is safe to call more than once.
func (b *Bytes) Destroy() {
	if b == nil || b.buf == nil {
		return
	}
	b.buf.Destroy()
}

func (b *Bytes) alive() bool {
	return b != nil && b.buf != nil && b.buf.IsAlive()
}

func (b *Bytes) String() string   { return redacted }
func (b *Bytes) GoString() string { return redacted }

// Format implements fmt.Formatter so no verb can print the contents.
func (b *Bytes) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, redacted)
}
