package vault

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const pendingSuffix = ".pending"

// Store owns the on-disk vault: a ciphertext file and a metadata file holding
// the salt and the MAC of the ciphertext. It keeps no key material or
// plaintext between calls.
//
// Writes go through a small commit protocol so the two files never disagree
// after a crash:
//  1. the new ciphertext is written atomically to <vault>.pending
//  2. the metadata is replaced atomically (commit point)
//  3. <vault>.pending is renamed over <vault>
//
// Unlock finishes or discards an interrupted commit once the key is known.
type Store struct {
	vaultPath string
	metaPath  string
	log       *zap.Logger
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func NewStore(vaultPath, metaPath string, opts ...Option) *Store {
	s := &Store{vaultPath: vaultPath, metaPath: metaPath, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) VaultPath() string { return s.vaultPath }
func (s *Store) MetaPath() string  { return s.metaPath }

func (s *Store) pendingPath() string { return s.vaultPath + pendingSuffix }

// Exists reports whether a vault has been created. A pending ciphertext next
// to metadata counts: it is a create that crashed after its commit point.
func (s *Store) Exists() bool {
	if fileExists(s.vaultPath) {
		return true
	}
	return fileExists(s.pendingPath()) && fileExists(s.metaPath)
}

// State is StateLocked when a vault exists and StateNoVault otherwise.
// Unlocked state belongs to a Session, never to the Store.
func (s *Store) State() State {
	if s.Exists() {
		return StateLocked
	}
	return StateNoVault
}

// Create initialises a new vault holding an empty document.
func (s *Store) Create(passphrase []byte) error {
	if s.Exists() {
		return ErrVaultAlreadyExists
	}
	if err := os.MkdirAll(filepath.Dir(s.vaultPath), 0700); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.metaPath), 0700); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	// leftover from a create that crashed before its commit point
	if err := os.Remove(s.pendingPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	salt, err := GenerateSalt()
	if err != nil {
		return err
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return err
	}
	defer zero(key)

	if err := s.commit(NewDocument(), salt, key); err != nil {
		return err
	}
	s.log.Info("vault created", zap.String("path", s.vaultPath))
	return nil
}

// Unlock decrypts the vault into a document. The MAC is checked before any
// decryption is attempted.
func (s *Store) Unlock(passphrase []byte) (*Document, error) {
	if !s.Exists() {
		return nil, ErrVaultNotFound
	}
	meta, err := s.loadMetadata()
	if err != nil {
		return nil, err
	}
	key, err := DeriveKey(passphrase, meta.Salt)
	if err != nil {
		return nil, err
	}
	defer zero(key)

	ct, err := s.currentCiphertext(key, meta)
	if err != nil {
		s.log.Warn("unlock rejected", zap.String("reason", "integrity"))
		return nil, err
	}

	pt, err := Decrypt(ct, key)
	if err != nil {
		s.log.Warn("unlock rejected", zap.String("reason", "decryption"))
		return nil, ErrDecryptionFailure
	}
	defer zero(pt)

	doc := &Document{}
	if err := json.Unmarshal(pt, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	s.log.Info("vault unlocked",
		zap.Int("entries", len(doc.Entries)),
		zap.Int("notes", len(doc.Notes)),
		zap.Int("trash", len(doc.Trash)),
	)
	return doc, nil
}

// Lock serializes, encrypts and persists the document, replacing the vault
// content wholesale. The passphrase must match the one the vault was last
// locked with.
func (s *Store) Lock(doc *Document, passphrase []byte) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidInput)
	}
	if !s.Exists() {
		return ErrVaultNotFound
	}
	meta, err := s.loadMetadata()
	if err != nil {
		return err
	}
	key, err := DeriveKey(passphrase, meta.Salt)
	if err != nil {
		return err
	}
	defer zero(key)

	if _, err := s.currentCiphertext(key, meta); err != nil {
		return fmt.Errorf("passphrase does not match vault: %w", err)
	}
	if err := s.commit(doc, meta.Salt, key); err != nil {
		return err
	}
	s.log.Info("vault locked", zap.Int("entries", len(doc.Entries)), zap.Int("notes", len(doc.Notes)))
	return nil
}

func (s *Store) commit(doc *Document, salt, key []byte) error {
	pt, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	defer zero(pt)

	ct, err := Encrypt(pt, key)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	mac, err := ComputeMAC(key, ct)
	if err != nil {
		return err
	}

	if err := atomicWriteFile(s.pendingPath(), ct, 0600); err != nil {
		return fmt.Errorf("stage ciphertext: %w", err)
	}
	if err := s.saveMetadata(Metadata{Salt: salt, MAC: mac}); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return s.promotePending()
}

func (s *Store) promotePending() error {
	if err := os.Rename(s.pendingPath(), s.vaultPath); err != nil {
		return fmt.Errorf("promote ciphertext: %w", err)
	}
	_ = syncDir(filepath.Dir(s.vaultPath))
	return nil
}

// currentCiphertext returns the ciphertext the metadata vouches for, first
// settling any interrupted commit. Nothing on disk changes unless the key has
// been proven correct by a matching MAC.
func (s *Store) currentCiphertext(key []byte, meta Metadata) ([]byte, error) {
	current, err := os.ReadFile(s.vaultPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	haveCurrent := err == nil

	pending, err := os.ReadFile(s.pendingPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
		if !haveCurrent {
			return nil, ErrVaultNotFound
		}
		if !VerifyMAC(key, current, meta.MAC) {
			return nil, ErrIntegrityFailure
		}
		return current, nil
	case err != nil:
		return nil, err
	}

	if VerifyMAC(key, pending, meta.MAC) {
		if err := s.promotePending(); err != nil {
			return nil, err
		}
		s.log.Warn("completed interrupted commit", zap.String("path", s.vaultPath))
		return pending, nil
	}
	if haveCurrent && VerifyMAC(key, current, meta.MAC) {
		if err := os.Remove(s.pendingPath()); err != nil {
			return nil, err
		}
		s.log.Warn("discarded uncommitted ciphertext", zap.String("path", s.pendingPath()))
		return current, nil
	}
	return nil, ErrIntegrityFailure
}

func (s *Store) loadMetadata() (Metadata, error) {
	var m Metadata
	raw, err := os.ReadFile(s.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, fmt.Errorf("%w: metadata file missing", ErrCorruptConfig)
		}
		return m, err
	}

	var mf metadataFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return m, fmt.Errorf("%w: %v", ErrCorruptConfig, err)
	}
	if mf.Salt == "" {
		return m, fmt.Errorf("%w: missing salt", ErrCorruptConfig)
	}
	if m.Salt, err = hex.DecodeString(mf.Salt); err != nil {
		return m, fmt.Errorf("%w: bad salt", ErrCorruptConfig)
	}
	if mf.MAC == "" {
		return m, fmt.Errorf("%w: missing mac", ErrCorruptConfig)
	}
	if m.MAC, err = hex.DecodeString(mf.MAC); err != nil || len(m.MAC) != MACLen {
		return m, fmt.Errorf("%w: bad mac", ErrCorruptConfig)
	}
	return m, nil
}

func (s *Store) saveMetadata(m Metadata) error {
	raw, err := json.MarshalIndent(metadataFile{
		Salt: hex.EncodeToString(m.Salt),
		MAC:  hex.EncodeToString(m.MAC),
	}, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(s.metaPath, raw, 0600)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
