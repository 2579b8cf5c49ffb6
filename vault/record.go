package vault

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
)

// schema is the plaintext document inside the ciphertext:
//
//	{"passwords": [{"name": "YouTube", "username": "u", "password": "p",
//	                "created_at": 1700000000, "updated_at": 1700000000}]}
//
// Unknown fields are ignored when reading.
type schema struct {
	Passwords []Entry `json:"passwords"`
}

func marshalEntries(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	out, err := json.Marshal(schema{Passwords: entries})
	if err != nil {
		return nil, errors.Wrapf(ErrEncryption, "encoding entries: %v", err)
	}
	return out, nil
}

// unmarshalEntries parses decrypted plaintext. The plaintext is wiped on
// return; the entries hold their own copies of every secret.
func unmarshalEntries(plaintext []byte) ([]Entry, error) {
	defer memguard.WipeBytes(plaintext)

	if !utf8.Valid(plaintext) {
		return nil, errors.Wrap(ErrCorruption, "plaintext is not valid UTF-8")
	}
	var doc struct {
		Passwords *[]Entry `json:"passwords"`
	}
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, errors.Wrapf(ErrInvalidSchema, "%v", err)
	}
	if doc.Passwords == nil {
		return nil, errors.Wrap(ErrInvalidSchema, `missing "passwords"`)
	}
	return *doc.Passwords, nil
}
