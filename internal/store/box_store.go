package store

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"courier/internal/crypto"
	"courier/internal/domain"
)

const (
	identityFile = "identity.enc"
	prekeysFile  = "prekeys.json"  // map[uint16]domain.PrekeyPair
	sessionsFile = "sessions.json" // map[domain.SessionID]domain.SessionState
	metaFile     = "box_meta.json" // { "max_issued_prekey_id": n }
)

type boxMeta struct {
	MaxIssuedPrekeyID uint16 `json:"max_issued_prekey_id"`
	HasIssued         bool   `json:"has_issued"`
}

// identityEnvelope is the on-disk form of the encrypted identity.
type identityEnvelope struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	CT    []byte `json:"ct"`
}

// FileStore keeps identity, prekey pairs and session states on disk.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

// ---------- Identity ----------

// SaveIdentity encrypts id under passphrase and writes it to disk.
func (s *FileStore) SaveIdentity(passphrase string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	salt := make([]byte, crypto.SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	nonce, ct, err := crypto.EncryptSecret(passphrase, raw, salt)
	if err != nil {
		return err
	}
	env := identityEnvelope{Salt: salt, Nonce: nonce, CT: ct}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, identityFile), b, 0o600)
}

// LoadIdentity decrypts the stored identity. The second return is false when
// no identity has been saved yet.
func (s *FileStore) LoadIdentity(passphrase string) (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(filepath.Join(s.dir, identityFile))
	if os.IsNotExist(err) {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, err
	}
	var env identityEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return domain.Identity{}, false, err
	}
	raw, err := crypto.DecryptSecret(passphrase, env.Salt, env.Nonce, env.CT)
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("decrypt identity: %w", err)
	}
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.Identity{}, false, err
	}
	return id, true, nil
}

// ---------- Prekey pairs ----------

// SavePrekeyPair stores a prekey pair and advances the issued-id watermark.
func (s *FileStore) SavePrekeyPair(pair domain.PrekeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, prekeysFile)
	m := map[uint16]domain.PrekeyPair{}
	if err := readJSON(path, &m); err != nil {
		return err
	}
	m[pair.ID] = pair
	if err := writeJSON(path, m, 0o600); err != nil {
		return err
	}

	// The last-resort id is reserved and does not move the watermark.
	if pair.ID == domain.MaxPrekeyID {
		return nil
	}
	metaPath := filepath.Join(s.dir, metaFile)
	var meta boxMeta
	if err := readJSON(metaPath, &meta); err != nil {
		return err
	}
	if !meta.HasIssued || pair.ID > meta.MaxIssuedPrekeyID {
		meta.MaxIssuedPrekeyID = pair.ID
		meta.HasIssued = true
		return writeJSON(metaPath, meta, 0o600)
	}
	return nil
}

// LoadPrekeyPair retrieves a stored prekey pair by id.
func (s *FileStore) LoadPrekeyPair(id uint16) (domain.PrekeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[uint16]domain.PrekeyPair{}
	if err := readJSON(filepath.Join(s.dir, prekeysFile), &m); err != nil {
		return domain.PrekeyPair{}, false, err
	}
	p, ok := m[id]
	return p, ok, nil
}

// DeletePrekeyPair removes a consumed prekey pair.
func (s *FileStore) DeletePrekeyPair(id uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, prekeysFile)
	m := map[uint16]domain.PrekeyPair{}
	if err := readJSON(path, &m); err != nil {
		return err
	}
	if _, ok := m[id]; !ok {
		return nil
	}
	delete(m, id)
	return writeJSON(path, m, 0o600)
}

// PrekeyCount returns the number of remaining one-time prekey pairs. The
// last-resort pair is excluded.
func (s *FileStore) PrekeyCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[uint16]domain.PrekeyPair{}
	if err := readJSON(filepath.Join(s.dir, prekeysFile), &m); err != nil {
		return 0, err
	}
	n := len(m)
	if _, ok := m[domain.MaxPrekeyID]; ok {
		n--
	}
	return n, nil
}

// MaxIssuedPrekeyID returns the highest one-time prekey id issued so far.
// The second return is false before the first pair is issued.
func (s *FileStore) MaxIssuedPrekeyID() (uint16, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta boxMeta
	if err := readJSON(filepath.Join(s.dir, metaFile), &meta); err != nil {
		return 0, false, err
	}
	return meta.MaxIssuedPrekeyID, meta.HasIssued, nil
}

// ---------- Sessions ----------

// SaveSession persists the ratchet state for one session id.
func (s *FileStore) SaveSession(id domain.SessionID, st domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, sessionsFile)
	m := map[domain.SessionID]domain.SessionState{}
	if err := readJSON(path, &m); err != nil {
		return err
	}
	m[id] = st
	return writeJSON(path, m, 0o600)
}

// LoadSession retrieves the ratchet state for one session id.
func (s *FileStore) LoadSession(id domain.SessionID) (domain.SessionState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[domain.SessionID]domain.SessionState{}
	if err := readJSON(filepath.Join(s.dir, sessionsFile), &m); err != nil {
		return domain.SessionState{}, false, err
	}
	st, ok := m[id]
	return st, ok, nil
}

// Compile-time assertion that FileStore implements domain.BoxStore.
var _ domain.BoxStore = (*FileStore)(nil)
