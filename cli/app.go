package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/awnumar/memguard"
	"go.uber.org/zap"

	"github.com/fahmaliyi/lockbox/otp"
	"github.com/fahmaliyi/lockbox/strength"
	"github.com/fahmaliyi/lockbox/vault"
)

const maxUnlockAttempts = 3

var errPassphraseMismatch = errors.New("passphrases do not match")

// App is the interactive front end over one vault. It owns the session and
// keeps the master passphrase sealed in a memguard enclave while unlocked.
type App struct {
	store   *vault.Store
	session *vault.Session
	pass    *memguard.Enclave
	dirty   bool

	log       *zap.Logger
	codes     vault.CodeGenerator
	clip      Clipboard
	clipAfter time.Duration
	autoSave  bool

	in         *bufio.Reader
	out        io.Writer
	readSecret func(prompt string) ([]byte, error)
}

type AppOption func(*App)

func WithLogger(l *zap.Logger) AppOption {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithIO replaces stdin and stdout. Secrets are read as plain lines from in
// unless in is a terminal.
func WithIO(in io.Reader, out io.Writer) AppOption {
	return func(a *App) {
		a.in = bufio.NewReader(in)
		a.out = out
		a.readSecret = newSecretReader(in, a.in, out)
	}
}

func WithSecretReader(fn func(prompt string) ([]byte, error)) AppOption {
	return func(a *App) { a.readSecret = fn }
}

func WithClipboard(c Clipboard, clearAfter time.Duration) AppOption {
	return func(a *App) {
		if c != nil {
			a.clip = c
		}
		if clearAfter > 0 {
			a.clipAfter = clearAfter
		}
	}
}

func WithCodeGenerator(g vault.CodeGenerator) AppOption {
	return func(a *App) { a.codes = g }
}

func WithAutoSave(on bool) AppOption {
	return func(a *App) { a.autoSave = on }
}

func NewApp(store *vault.Store, opts ...AppOption) *App {
	a := &App{
		store:     store,
		log:       zap.NewNop(),
		codes:     otp.NewGenerator(),
		clip:      systemClipboard{},
		clipAfter: 30 * time.Second,
		autoSave:  true,
	}
	WithIO(os.Stdin, os.Stdout)(a)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start unlocks the vault, creating it first when none exists.
func (a *App) Start() error {
	if !a.store.Exists() {
		fmt.Fprintln(a.out, "No vault found. Setting up a new master passphrase.")
		return a.create()
	}
	return a.unlock()
}

func (a *App) create() error {
	pass, err := a.readNewPassphrase()
	if err != nil {
		return err
	}
	if err := a.store.Create(pass); err != nil {
		memguard.WipeBytes(pass)
		return err
	}
	fmt.Fprintln(a.out, "Vault created.")
	return a.open(pass)
}

// readNewPassphrase asks for a passphrase twice. Weak choices are allowed
// but flagged.
func (a *App) readNewPassphrase() ([]byte, error) {
	pass, err := a.readSecret("Master passphrase: ")
	if err != nil {
		return nil, err
	}
	confirm, err := a.readSecret("Repeat passphrase: ")
	if err != nil {
		memguard.WipeBytes(pass)
		return nil, err
	}
	defer memguard.WipeBytes(confirm)
	if string(pass) != string(confirm) {
		memguard.WipeBytes(pass)
		return nil, errPassphraseMismatch
	}
	if len(pass) == 0 {
		return nil, fmt.Errorf("%w: empty passphrase", vault.ErrInvalidInput)
	}
	if r := strength.Check(string(pass)); !r.Acceptable() {
		fmt.Fprintf(a.out, "Warning: this passphrase is %s (cracked in %s).\n", r.Label(), r.CrackTime)
	}
	return pass, nil
}

func (a *App) unlock() error {
	var err error
	for i := 0; i < maxUnlockAttempts; i++ {
		var pass []byte
		pass, err = a.readSecret("Master passphrase: ")
		if err != nil {
			return err
		}
		err = a.open(pass)
		if err == nil {
			return nil
		}
		if !errors.Is(err, vault.ErrIntegrityFailure) && !errors.Is(err, vault.ErrDecryptionFailure) {
			return err
		}
		fmt.Fprintln(a.out, describeError(err))
	}
	return err
}

// open unlocks with pass and seals it. pass is wiped either way.
func (a *App) open(pass []byte) error {
	sess, err := a.store.Open(pass)
	if err != nil {
		memguard.WipeBytes(pass)
		return err
	}
	a.session = sess
	a.pass = memguard.NewEnclave(pass)
	a.dirty = false
	return nil
}

func (a *App) unlocked() bool {
	return a.session != nil && a.session.State() == vault.StateUnlocked
}

func (a *App) doc() *vault.Document {
	return a.session.Document()
}

func (a *App) withPassphrase(fn func([]byte) error) error {
	if a.pass == nil {
		return vault.ErrLocked
	}
	buf, err := a.pass.Open()
	if err != nil {
		return fmt.Errorf("open passphrase enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Save writes the document back to disk.
func (a *App) Save() error {
	if !a.unlocked() {
		return vault.ErrLocked
	}
	if err := a.withPassphrase(a.session.Save); err != nil {
		return err
	}
	a.dirty = false
	return nil
}

// changed records a mutation and saves it when autosave is on.
func (a *App) changed() error {
	a.dirty = true
	if !a.autoSave {
		return nil
	}
	return a.Save()
}

// Close saves pending changes and locks the session.
func (a *App) Close() error {
	if !a.unlocked() {
		return nil
	}
	if a.dirty {
		if err := a.withPassphrase(a.session.Close); err != nil {
			return err
		}
	} else {
		a.session.Discard()
	}
	a.session = nil
	a.pass = nil
	a.dirty = false
	a.log.Debug("session closed")
	return nil
}
