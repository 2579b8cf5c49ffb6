package vault

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeader() *fileHeader {
	h := &fileHeader{Version: Version, Params: DefaultKDFParams()}
	copy(h.Salt[:], bytes.Repeat([]byte{0xaa}, SaltLen))
	copy(h.IV[:], bytes.Repeat([]byte{0xbb}, IVLen))
	copy(h.MAC[:], bytes.Repeat([]byte{0xcc}, MACLen))
	return h
}

func TestEncodeContainerLayout(t *testing.T) {
	ct := []byte("0123456789abcdef")
	raw, err := encodeContainer(testHeader(), ct)
	require.NoError(t, err)

	require.Len(t, raw, bodyOffset+len(ct))
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(raw[0:4]))
	assert.Equal(t, byte(12), raw[paramsOffset])
	assert.Equal(t, uint32(8), binary.BigEndian.Uint32(raw[paramsOffset+1:]))
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(raw[paramsOffset+5:]))
	assert.Equal(t, bytes.Repeat([]byte{0xaa}, SaltLen), raw[saltOffset:ivOffset])
	assert.Equal(t, bytes.Repeat([]byte{0xbb}, IVLen), raw[ivOffset:macOffset])
	assert.Equal(t, bytes.Repeat([]byte{0xcc}, MACLen), raw[macOffset:bodyOffset])
	assert.Equal(t, ct, raw[bodyOffset:])
}

func TestSignedMessageOrder(t *testing.T) {
	h := testHeader()
	ct := []byte("ciphertext")
	msg := h.signedMessage(ct)

	want := []byte{0, 0, 0, 2, 12, 0, 0, 0, 8, 0, 0, 0, 1}
	want = append(want, h.IV[:]...)
	want = append(want, h.Salt[:]...)
	want = append(want, ct...)
	assert.Equal(t, want, msg)
}

func TestDecodeContainer(t *testing.T) {
	ct := []byte("0123456789abcdef")
	raw, err := encodeContainer(testHeader(), ct)
	require.NoError(t, err)

	h, got, err := decodeContainer(raw)
	require.NoError(t, err)
	assert.Equal(t, testHeader(), h)
	assert.Equal(t, ct, got)
}

func TestDecodeContainerShortRead(t *testing.T) {
	raw, err := encodeContainer(testHeader(), nil)
	require.NoError(t, err)

	for _, n := range []int{0, 3, paramsOffset, saltOffset - 1, ivOffset - 1, macOffset, bodyOffset - 1} {
		_, _, err := decodeContainer(raw[:n])
		assert.ErrorIs(t, err, ErrCorruption, "truncated to %d bytes", n)
	}

	_, ct, err := decodeContainer(raw)
	require.NoError(t, err)
	assert.Empty(t, ct)
}

func TestDecodeContainerVersion(t *testing.T) {
	tests := []struct {
		version uint32
		want    error
	}{
		{version: 1, want: ErrNeedsUpgrade},
		{version: 0, want: ErrNeedsUpgrade},
		{version: 3, want: ErrOutdatedBinary},
		{version: 1 << 31, want: ErrOutdatedBinary},
	}
	for _, tt := range tests {
		h := testHeader()
		h.Version = tt.version
		raw, err := encodeContainer(h, nil)
		require.NoError(t, err)

		_, _, err = decodeContainer(raw)
		assert.ErrorIs(t, err, tt.want, "version %d", tt.version)
	}
}
