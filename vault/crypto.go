package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"io"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"

	"github.com/fahmaliyi/keyvault/secret"
)

// randReader is the entropy source for salts and IVs.
var randReader io.Reader = rand.Reader

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return nil, errors.Wrapf(ErrRandomnessUnavailable, "reading %d random bytes: %v", n, err)
	}
	return b, nil
}

func randomIV() ([IVLen]byte, error) {
	var iv [IVLen]byte
	b, err := randBytes(IVLen)
	if err != nil {
		return iv, err
	}
	copy(iv[:], b)
	return iv, nil
}

func randomSalt() ([SaltLen]byte, error) {
	var salt [SaltLen]byte
	b, err := randBytes(SaltLen)
	if err != nil {
		return salt, err
	}
	copy(salt[:], b)
	return salt, nil
}

// deriveKey runs scrypt over the master password. The result is moved into
// locked memory and the intermediate slice is wiped.
func deriveKey(master []byte, salt []byte, p KDFParams) (*secret.Bytes, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw, err := scrypt.Key(master, salt, 1<<p.LogN, int(p.R), int(p.P), KeyLen)
	if err != nil {
		return nil, errors.Wrapf(ErrKeyDerivation, "scrypt: %v", err)
	}
	return secret.NewBytes(raw), nil
}

// encrypt is AES-256-CBC with PKCS#7 padding.
func encrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrapf(ErrEncryption, "aes: %v", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, errors.Wrapf(ErrEncryption, "iv length %d", len(iv))
	}
	padded := pad(plaintext, block.BlockSize())
	defer memguard.WipeBytes(padded)

	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	return ct, nil
}

// decrypt reverses encrypt. Any failure here happens after the MAC has been
// verified, so it is reported as corruption.
func decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruption, "aes: %v", err)
	}
	bs := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, errors.Wrapf(ErrCorruption, "ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}
	pt := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ciphertext)

	out, err := unpad(pt, bs)
	if err != nil {
		memguard.WipeBytes(pt)
		return nil, err
	}
	return out, nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.Wrap(ErrCorruption, "empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.Wrap(ErrCorruption, "bad padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.Wrap(ErrCorruption, "bad padding")
		}
	}
	return b[:len(b)-n], nil
}

// sign is HMAC-SHA-512 keyed with the derived key.
func sign(key, message []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(message)
	return mac.Sum(make([]byte, 0, MACLen))
}

// verify recomputes the MAC and compares it in constant time.
func verify(key, message, expected []byte) bool {
	return hmac.Equal(sign(key, message), expected)
}
