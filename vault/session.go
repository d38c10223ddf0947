package vault

// Session is one unlocked view of a vault. Callers pass it around explicitly;
// nothing about it is process-wide. The passphrase is not retained and must be
// supplied again to save.
type Session struct {
	store *Store
	doc   *Document
}

// Open unlocks the vault and starts a session over its document.
func (s *Store) Open(passphrase []byte) (*Session, error) {
	doc, err := s.Unlock(passphrase)
	if err != nil {
		return nil, err
	}
	return &Session{store: s, doc: doc}, nil
}

func (s *Session) State() State {
	if s.doc == nil {
		return StateLocked
	}
	return StateUnlocked
}

// Document returns the live document, or nil once the session is closed.
func (s *Session) Document() *Document {
	return s.doc
}

// Save writes the current document back without ending the session.
func (s *Session) Save(passphrase []byte) error {
	if s.doc == nil {
		return ErrLocked
	}
	return s.store.Lock(s.doc, passphrase)
}

// Close saves the document and drops it from the session.
func (s *Session) Close(passphrase []byte) error {
	if err := s.Save(passphrase); err != nil {
		return err
	}
	s.doc = nil
	return nil
}

// Discard drops the document without saving.
func (s *Session) Discard() {
	s.doc = nil
}
