package vault

import "errors"

var (
	ErrIO                    = errors.New("vault: i/o failure")
	ErrRandomnessUnavailable = errors.New("vault: randomness unavailable")
	ErrKeyDerivation         = errors.New("vault: key derivation failed")
	ErrEncryption            = errors.New("vault: encryption failed")
	ErrInvalidKDFParams      = errors.New("vault: invalid key derivation parameters")

	// open
	ErrOutdatedBinary                  = errors.New("vault: file was written by a newer version")
	ErrNeedsUpgrade                    = errors.New("vault: file format is too old and needs an upgrade")
	ErrCorruption                      = errors.New("vault: corrupt file")
	ErrWrongMasterPasswordOrCorruption = errors.New("vault: wrong master password or corrupt file")
	ErrInvalidSchema                   = errors.New("vault: decrypted content does not match the schema")

	// entries
	ErrEmptySecret = errors.New("vault: password must not be empty")
	ErrEmptyName   = errors.New("vault: app name must not be empty")
	ErrAppExists   = errors.New("vault: app already exists")
	ErrNoSuchApp   = errors.New("vault: no such app")
)
