package cli

import (
	"errors"

	"github.com/fahmaliyi/lockbox/vault"
)

// describeError turns an error into the message shown to the user. Both
// unlock failure kinds read the same so the output does not reveal which
// check failed.
func describeError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, vault.ErrIntegrityFailure), errors.Is(err, vault.ErrDecryptionFailure):
		return "wrong passphrase or corrupted vault"
	case errors.Is(err, vault.ErrVaultAlreadyExists):
		return "a vault already exists at this location"
	case errors.Is(err, vault.ErrVaultNotFound):
		return "no vault found; run 'lockbox init' first"
	case errors.Is(err, vault.ErrCorruptConfig):
		return "vault metadata is missing or damaged"
	case errors.Is(err, vault.ErrCorruptDocument):
		return "vault content is malformed"
	case errors.Is(err, vault.ErrLocked):
		return "vault is locked"
	case errors.Is(err, errPassphraseMismatch):
		return "passphrases do not match"
	case errors.Is(err, vault.ErrNotEnabled):
		return "one-time codes are not enabled for this entry"
	default:
		return err.Error()
	}
}
