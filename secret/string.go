package secret

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/awnumar/memguard"
)

// String is secret text such as a stored password. Its bytes live on the Go
// heap and are wiped by Destroy, or by a finalizer once the last reference is
// dropped.
//
// Copies of a String share storage; use Clone for an independent value.
type String struct {
	t *text
}

type text struct {
	b []byte
}

func newText(b []byte) *text {
	t := &text{b: b}
	runtime.SetFinalizer(t, (*text).wipe)
	return t
}

func (t *text) wipe() {
	memguard.WipeBytes(t.b)
	t.b = t.b[:0]
	runtime.KeepAlive(t)
}

// NewString copies s into a wipeable buffer. The Go string itself cannot be
// wiped, so prefer StringFromBytes when the source is a byte slice.
func NewString(s string) String {
	if s == "" {
		return String{}
	}
	return String{t: newText([]byte(s))}
}

// StringFromBytes copies b into a new String and wipes b.
func StringFromBytes(b []byte) String {
	if len(b) == 0 {
		return String{}
	}
	c := make([]byte, len(b))
	copy(c, b)
	memguard.WipeBytes(b)
	return String{t: newText(c)}
}

// Reveal returns the plaintext. Use it only where a Go string is required.
func (s String) Reveal() string {
	return string(s.Bytes())
}

// Bytes returns a view of the plaintext, valid until Destroy.
func (s String) Bytes() []byte {
	if s.t == nil {
		return nil
	}
	return s.t.b
}

func (s String) Len() int { return len(s.Bytes()) }

func (s String) IsEmpty() bool { return s.Len() == 0 }

// Clone returns a String with its own storage.
func (s String) Clone() String {
	return StringFromBytes(append([]byte(nil), s.Bytes()...))
}

// Append adds p to the end of the text. The previous storage is wiped when
// it has to be reallocated.
func (s *String) Append(p string) {
	if p == "" {
		return
	}
	if s.t == nil {
		*s = NewString(p)
		return
	}
	old := s.t.b
	grown := make([]byte, len(old), len(old)+len(p))
	copy(grown, old)
	s.t.b = append(grown, p...)
	memguard.WipeBytes(old)
}

// Equal compares two secrets in constant time.
func (s String) Equal(o String) bool {
	return subtle.ConstantTimeCompare(s.Bytes(), o.Bytes()) == 1
}

// Destroy zeroes the storage. Every copy sharing it becomes empty.
func (s String) Destroy() {
	if s.t == nil {
		return
	}
	s.t.wipe()
}

func (s String) String() string   { return redacted }
func (s String) GoString() string { return redacted }

// Format implements fmt.Formatter so %v, %s, %q, %x and friends all redact.
func (s String) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, redacted)
}

// MarshalJSON writes the plaintext as an ordinary JSON string.
func (s String) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Reveal())
}

// UnmarshalJSON reads a JSON string into a fresh buffer.
func (s *String) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = NewString(v)
	return nil
}
