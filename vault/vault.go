package vault

import (
	"io"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fahmaliyi/keyvault/secret"
)

// Store is an unlocked vault. It keeps the derived key in memory so that
// mutations followed by Sync do not rerun scrypt. A Store is not safe for
// concurrent use and holds no file handle between calls.
type Store struct {
	key     *secret.Bytes
	master  *secret.Bytes
	params  KDFParams
	salt    [SaltLen]byte
	entries []Entry
	state   State

	log logrus.FieldLogger
	now func() time.Time
}

// New creates an empty store with a fresh salt. master is wiped.
func New(master []byte, opts ...Option) (*Store, error) {
	o := buildOptions(opts)
	pw := secret.NewBytes(master)

	salt, err := randomSalt()
	if err != nil {
		pw.Destroy()
		return nil, err
	}
	key, err := deriveKey(pw.Bytes(), salt[:], o.params)
	if err != nil {
		pw.Destroy()
		return nil, err
	}

	o.log.WithField("params", o.params.String()).Debug("created new vault")
	return &Store{
		key:    key,
		master: pw,
		params: o.params,
		salt:   salt,
		state:  StateCreated,
		log:    o.log,
		now:    o.now,
	}, nil
}

// Open authenticates and decrypts a serialized store. master is wiped.
//
// The MAC is checked before any plaintext is produced. A MAC mismatch is
// reported as ErrWrongMasterPasswordOrCorruption because the two causes
// cannot be told apart.
func Open(master []byte, data []byte, opts ...Option) (*Store, error) {
	o := buildOptions(opts)
	pw := secret.NewBytes(master)

	s, err := open(pw, data, o)
	if err != nil {
		pw.Destroy()
		o.log.WithError(err).Warn("could not open vault")
		return nil, err
	}
	o.log.WithFields(logrus.Fields{
		"entries": len(s.entries),
		"params":  s.params.String(),
	}).Debug("opened vault")
	return s, nil
}

// Load reads r to the end and opens the result.
func Load(master []byte, r io.Reader, opts ...Option) (*Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		memguard.WipeBytes(master)
		return nil, errors.Wrapf(ErrIO, "reading vault: %v", err)
	}
	return Open(master, data, opts...)
}

func open(pw *secret.Bytes, data []byte, o options) (*Store, error) {
	h, ct, err := decodeContainer(data)
	if err != nil {
		return nil, err
	}

	// Parameters out of range cannot have been written by us and cannot be
	// used to check the MAC.
	if err := h.Params.Validate(); err != nil {
		return nil, errors.Wrapf(ErrWrongMasterPasswordOrCorruption, "header parameters: %v", err)
	}

	key, err := deriveKey(pw.Bytes(), h.Salt[:], h.Params)
	if err != nil {
		return nil, err
	}
	if !verify(key.Bytes(), h.signedMessage(ct), h.MAC[:]) {
		key.Destroy()
		return nil, ErrWrongMasterPasswordOrCorruption
	}

	pt, err := decrypt(key.Bytes(), h.IV[:], ct)
	if err != nil {
		key.Destroy()
		return nil, err
	}
	entries, err := unmarshalEntries(pt)
	if err != nil {
		key.Destroy()
		return nil, err
	}
	if err := checkLoaded(entries); err != nil {
		destroyEntries(entries)
		key.Destroy()
		return nil, err
	}

	return &Store{
		key:     key,
		master:  pw,
		params:  h.Params,
		salt:    h.Salt,
		entries: entries,
		state:   StateLoaded,
		log:     o.log,
		now:     o.now,
	}, nil
}

// checkLoaded applies the insertion invariants to decrypted entries. Like
// insert it raises an UpdatedAt older than CreatedAt instead of rejecting it.
func checkLoaded(entries []Entry) error {
	seen := make(map[string]struct{}, len(entries))
	for i := range entries {
		e := &entries[i]
		if err := checkEntry(*e); err != nil {
			return errors.Wrapf(ErrInvalidSchema, "entry %q: %v", e.Name, err)
		}
		if _, dup := seen[e.key()]; dup {
			return errors.Wrapf(ErrInvalidSchema, "duplicate app %q", e.Name)
		}
		seen[e.key()] = struct{}{}
		normalizeTimes(e)
	}
	return nil
}

func checkEntry(e Entry) error {
	if e.Name == "" {
		return ErrEmptyName
	}
	if e.Secret.IsEmpty() {
		return ErrEmptySecret
	}
	return nil
}

// State reports whether the store has unsynced changes.
func (s *Store) State() State { return s.state }

// Params returns the current scrypt parameters.
func (s *Store) Params() KDFParams { return s.params }

// Salt returns the key derivation salt.
func (s *Store) Salt() [SaltLen]byte { return s.salt }

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.entries) }

// Add inserts e. The store takes ownership of e.Secret.
func (s *Store) Add(e Entry) error {
	if err := s.insert(e, len(s.entries)); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *Store) insert(e Entry, at int) error {
	if err := checkEntry(e); err != nil {
		return err
	}
	if s.index(e.Name) >= 0 {
		return errors.Wrapf(ErrAppExists, "%q", e.Name)
	}
	normalizeTimes(&e)
	s.entries = slices.Insert(s.entries, at, e)
	return nil
}

// Get returns a copy of the entry named name, ignoring case.
func (s *Store) Get(name string) (Entry, bool) {
	i := s.index(name)
	if i < 0 {
		return Entry{}, false
	}
	return s.entries[i].Clone(), true
}

// Has reports whether an entry named name exists, ignoring case.
func (s *Store) Has(name string) bool { return s.index(name) >= 0 }

// List returns copies of all entries sorted by lowercased name.
func (s *Store) List() []Entry {
	return s.collect(func(Entry) bool { return true })
}

// Search returns the entries whose lowercased name contains the lowercased
// query as a subsequence. "fcbk" finds "Facebook".
func (s *Store) Search(query string) []Entry {
	q := foldName(query)
	return s.collect(func(e Entry) bool { return fuzzyMatch(e.key(), q) })
}

func (s *Store) collect(keep func(Entry) bool) []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		return strings.Compare(a.key(), b.key())
	})
	return out
}

func fuzzyMatch(name, query string) bool {
	rest := name
	for _, c := range query {
		i := strings.IndexRune(rest, c)
		if i < 0 {
			return false
		}
		_, size := utf8.DecodeRuneInString(rest[i:])
		rest = rest[i+size:]
	}
	return true
}

// Delete removes the entry named name and hands it to the caller.
func (s *Store) Delete(name string) (Entry, error) {
	i := s.index(name)
	if i < 0 {
		return Entry{}, errors.Wrapf(ErrNoSuchApp, "%q", name)
	}
	e := s.entries[i]
	s.entries = slices.Delete(s.entries, i, i+1)
	s.touch()
	return e, nil
}

// Change replaces the entry named name with transform(old). If the new entry
// is rejected the old one is put back in place and the error is returned.
func (s *Store) Change(name string, transform func(Entry) Entry) (Entry, error) {
	i := s.index(name)
	if i < 0 {
		return Entry{}, errors.Wrapf(ErrNoSuchApp, "%q", name)
	}
	old := s.entries[i]
	s.entries = slices.Delete(s.entries, i, i+1)

	updated := transform(old.Clone())
	if err := s.insert(updated, i); err != nil {
		s.entries = slices.Insert(s.entries, i, old)
		return Entry{}, err
	}
	// transform only ever saw a clone, so the old storage is unreferenced.
	old.Secret.Destroy()
	s.touch()

	got, _ := s.Get(updated.Name)
	return got, nil
}

// Rename changes the app name, keeping everything else.
func (s *Store) Rename(name, newName string) (Entry, error) {
	return s.Change(name, func(e Entry) Entry {
		e.Name = newName
		e.UpdatedAt = s.now().Unix()
		return e
	})
}

// Transfer changes the username of an app.
func (s *Store) Transfer(name, username string) (Entry, error) {
	return s.Change(name, func(e Entry) Entry {
		e.Username = username
		e.UpdatedAt = s.now().Unix()
		return e
	})
}

// ChangeSecret replaces the password of an app. The store takes ownership of
// password when the change succeeds.
func (s *Store) ChangeSecret(name string, password secret.String) (Entry, error) {
	return s.Change(name, func(e Entry) Entry {
		e.Secret.Destroy()
		e.Secret = password
		e.UpdatedAt = s.now().Unix()
		return e
	})
}

// ChangeMasterPassword derives a new key from master with the current salt
// and parameters. The file is only affected by the next Sync. master is wiped.
func (s *Store) ChangeMasterPassword(master []byte) error {
	pw := secret.NewBytes(master)
	key, err := deriveKey(pw.Bytes(), s.salt[:], s.params)
	if err != nil {
		pw.Destroy()
		return err
	}
	s.key.Destroy()
	s.master.Destroy()
	s.key, s.master = key, pw
	s.touch()

	s.log.Info("master password changed")
	return nil
}

// ChangeKDFParams re-derives the key from the retained master password with
// new scrypt parameters. Whether the values are sensible is the caller's
// decision; see KDFParams.ExceedsRecommended.
func (s *Store) ChangeKDFParams(p KDFParams) error {
	key, err := deriveKey(s.master.Bytes(), s.salt[:], p)
	if err != nil {
		return err
	}
	s.key.Destroy()
	s.key = key
	s.params = p
	s.touch()

	s.log.WithField("params", p.String()).Info("key derivation parameters changed")
	return nil
}

// Close wipes the key, the master password and every entry secret. The
// store must not be used afterwards.
func (s *Store) Close() {
	s.key.Destroy()
	s.master.Destroy()
	destroyEntries(s.entries)
	s.entries = nil
}

func destroyEntries(entries []Entry) {
	for _, e := range entries {
		e.Secret.Destroy()
	}
}

func normalizeTimes(e *Entry) {
	if e.UpdatedAt < e.CreatedAt {
		e.UpdatedAt = e.CreatedAt
	}
}

func (s *Store) index(name string) int {
	key := foldName(name)
	return slices.IndexFunc(s.entries, func(e Entry) bool { return e.key() == key })
}

func (s *Store) touch() { s.state = StateDirty }
