package vault

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// fileHeader is everything in front of the ciphertext.
type fileHeader struct {
	Version uint32
	Params  KDFParams
	Salt    [SaltLen]byte
	IV      [IVLen]byte
	MAC     [MACLen]byte
}

// signedMessage is the MAC input: version, log2_n, r, p, iv, salt, ciphertext.
// The IV comes before the salt here even though the file stores them the
// other way round.
func (h *fileHeader) signedMessage(ciphertext []byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, bodyOffset+len(ciphertext)))
	_ = binary.Write(buf, binary.BigEndian, h.Version)
	_ = writeParams(buf, h.Params)
	buf.Write(h.IV[:])
	buf.Write(h.Salt[:])
	buf.Write(ciphertext)
	return buf.Bytes()
}

func writeParams(w io.Writer, p KDFParams) error {
	if err := binary.Write(w, binary.BigEndian, p.LogN); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, p.R); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, p.P)
}

// encodeContainer lays out the whole file body.
func encodeContainer(h *fileHeader, ciphertext []byte) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, bodyOffset+len(ciphertext)))

	if err := binary.Write(buf, binary.BigEndian, h.Version); err != nil {
		return nil, errors.Wrap(err, "writing version")
	}
	if err := writeParams(buf, h.Params); err != nil {
		return nil, errors.Wrap(err, "writing scrypt parameters")
	}
	buf.Write(h.Salt[:])
	buf.Write(h.IV[:])
	buf.Write(h.MAC[:])
	buf.Write(ciphertext)

	return buf.Bytes(), nil
}

// readVersion checks the leading version field.
func readVersion(r io.Reader) (uint32, error) {
	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return 0, errors.Wrapf(ErrCorruption, "reading version: %v", err)
	}
	switch {
	case version > Version:
		return version, errors.Wrapf(ErrOutdatedBinary, "file version %d, supported %d", version, Version)
	case version < Version:
		return version, errors.Wrapf(ErrNeedsUpgrade, "file version %d, supported %d", version, Version)
	}
	return version, nil
}

// decodeContainer parses the header and returns the remaining ciphertext.
// Nothing here is trusted until the MAC has been checked.
func decodeContainer(raw []byte) (*fileHeader, []byte, error) {
	r := bytes.NewReader(raw)
	h := &fileHeader{}

	version, err := readVersion(r)
	if err != nil {
		return nil, nil, err
	}
	h.Version = version

	if err := binary.Read(r, binary.BigEndian, &h.Params.LogN); err != nil {
		return nil, nil, errors.Wrapf(ErrCorruption, "reading log2_n: %v", err)
	}
	if err := binary.Read(r, binary.BigEndian, &h.Params.R); err != nil {
		return nil, nil, errors.Wrapf(ErrCorruption, "reading r: %v", err)
	}
	if err := binary.Read(r, binary.BigEndian, &h.Params.P); err != nil {
		return nil, nil, errors.Wrapf(ErrCorruption, "reading p: %v", err)
	}
	if _, err := io.ReadFull(r, h.Salt[:]); err != nil {
		return nil, nil, errors.Wrapf(ErrCorruption, "reading salt: %v", err)
	}
	if _, err := io.ReadFull(r, h.IV[:]); err != nil {
		return nil, nil, errors.Wrapf(ErrCorruption, "reading iv: %v", err)
	}
	if _, err := io.ReadFull(r, h.MAC[:]); err != nil {
		return nil, nil, errors.Wrapf(ErrCorruption, "reading mac: %v", err)
	}

	// Remaining is ciphertext
	ct := raw[len(raw)-r.Len():]

	return h, ct, nil
}
