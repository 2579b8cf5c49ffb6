package vault

import (
	"strings"
	"time"

	"github.com/fahmaliyi/keyvault/secret"
)

const (
	// Version is the container version this build reads and writes.
	Version uint32 = 2

	KeyLen  = 32
	SaltLen = 32
	IVLen   = 16
	MACLen  = 64

	// offsets of the on-disk layout
	paramsOffset = 4
	saltOffset   = paramsOffset + 1 + 4 + 4
	ivOffset     = saltOffset + SaltLen
	macOffset    = ivOffset + IVLen
	bodyOffset   = macOffset + MACLen
)

// Entry is one stored credential.
type Entry struct {
	Name      string        `json:"name"`
	Username  string        `json:"username"`
	Secret    secret.String `json:"password"`
	CreatedAt int64         `json:"created_at"`
	UpdatedAt int64         `json:"updated_at"`
}

// NewEntry builds an entry stamped with the current time.
func NewEntry(name, username string, password secret.String) Entry {
	now := time.Now().Unix()
	return Entry{
		Name:      name,
		Username:  username,
		Secret:    password,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy whose secret has its own storage.
func (e Entry) Clone() Entry {
	e.Secret = e.Secret.Clone()
	return e
}

// Equal compares every field; secrets are compared in constant time.
func (e Entry) Equal(o Entry) bool {
	return e.Name == o.Name &&
		e.Username == o.Username &&
		e.CreatedAt == o.CreatedAt &&
		e.UpdatedAt == o.UpdatedAt &&
		e.Secret.Equal(o.Secret)
}

func (e Entry) key() string { return foldName(e.Name) }

// foldName is the comparison form of an app name. strings.ToLower applies the
// Unicode mapping and is independent of the process locale.
func foldName(name string) string { return strings.ToLower(name) }

// KDFParams are the scrypt cost parameters, N = 2^LogN.
type KDFParams struct {
	LogN uint8
	R    uint32
	P    uint32
}

// DefaultKDFParams returns the parameters used for new stores.
func DefaultKDFParams() KDFParams { return KDFParams{LogN: 12, R: 8, P: 1} }

// State tracks the store relative to its file.
type State int

const (
	StateCreated State = iota
	StateLoaded
	StateDirty
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoaded:
		return "loaded"
	case StateDirty:
		return "dirty"
	case StateSynced:
		return "synced"
	default:
		return "unknown"
	}
}
