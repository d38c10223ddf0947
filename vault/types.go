package vault

import "errors"

const (
	KeyLen        = 32
	SaltLen       = 16
	MACLen        = 32
	NonceLen      = 24
	KDFIterations = 200_000
	Magic         = "LKBX"
	Version       = 0x01

	MinPasswordLen      = 8
	MaxPasswordHistory  = 5
	DefaultRotationDays = 180
)

var (
	ErrVaultAlreadyExists = errors.New("vault: already exists")
	ErrVaultNotFound      = errors.New("vault: not found")
	ErrCorruptConfig      = errors.New("vault: corrupt metadata")
	ErrCorruptDocument    = errors.New("vault: corrupt document")
	ErrIntegrityFailure   = errors.New("vault: integrity check failed")
	ErrDecryptionFailure  = errors.New("vault: decryption failed")
	ErrLocked             = errors.New("vault: locked")

	ErrEntryNotFound  = errors.New("vault: entry not found")
	ErrNoteNotFound   = errors.New("vault: note not found")
	ErrInvalidInput   = errors.New("vault: invalid input")
	ErrWeakInput      = errors.New("vault: password too short")
	ErrPasswordReused = errors.New("vault: password reused")
	ErrNotEnabled     = errors.New("vault: one-time code not enabled")
)

// State is the lifecycle position of a vault on disk or in a session.
type State int

const (
	StateNoVault State = iota
	StateLocked
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateNoVault:
		return "no-vault"
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Metadata is the durable record kept next to the ciphertext file.
type Metadata struct {
	Salt []byte
	MAC  []byte
}

type metadataFile struct {
	Salt string `json:"salt"`
	MAC  string `json:"mac"`
}

type tokenHeader struct {
	Flags uint16
	Nonce []byte
}
