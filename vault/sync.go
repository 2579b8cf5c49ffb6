package vault

import (
	"io"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// File is what Sync writes to. *os.File satisfies it.
type File interface {
	io.Writer
	io.Seeker

	Truncate(size int64) error
	Sync() error
}

// Sync serializes the store, encrypts it under a fresh IV and replaces the
// whole content of f, then flushes f to stable storage. The salt is reused.
func (s *Store) Sync(f File) error {
	raw, err := s.seal()
	if err != nil {
		return err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(ErrIO, "seeking to start: %v", err)
	}
	if err := f.Truncate(0); err != nil {
		return errors.Wrapf(ErrIO, "truncating: %v", err)
	}
	if _, err := f.Write(raw); err != nil {
		return errors.Wrapf(ErrIO, "writing container: %v", err)
	}
	if err := f.Sync(); err != nil {
		return errors.Wrapf(ErrIO, "flushing: %v", err)
	}

	s.state = StateSynced
	s.log.WithFields(logrus.Fields{
		"entries": len(s.entries),
		"bytes":   len(raw),
	}).Debug("synced vault")
	return nil
}

// seal serializes the store under a fresh IV without changing its state.
func (s *Store) seal() ([]byte, error) {
	pt, err := marshalEntries(s.entries)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(pt)

	iv, err := randomIV()
	if err != nil {
		return nil, err
	}
	ct, err := encrypt(s.key.Bytes(), iv[:], pt)
	if err != nil {
		return nil, err
	}

	h := &fileHeader{
		Version: Version,
		Params:  s.params,
		Salt:    s.salt,
		IV:      iv,
	}
	copy(h.MAC[:], sign(s.key.Bytes(), h.signedMessage(ct)))

	raw, err := encodeContainer(h, ct)
	if err != nil {
		return nil, errors.Wrapf(ErrEncryption, "%v", err)
	}
	return raw, nil
}
