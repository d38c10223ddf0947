package cli

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fahmaliyi/lockbox/passgen"
	"github.com/fahmaliyi/lockbox/strength"
	"github.com/fahmaliyi/lockbox/vault"
)

var errTooWeak = errors.New("password is too weak")

// vetPassword applies the checks every new password goes through: the
// strength floor and no sharing with another live entry.
func (a *App) vetPassword(pw, entryID string, hints ...string) error {
	r := strength.Check(pw, hints...)
	if !r.Acceptable() {
		return fmt.Errorf("%w: %s, cracked in %s", errTooWeak, r.Label(), r.CrackTime)
	}
	if a.doc().PasswordInUse(pw, entryID) {
		return fmt.Errorf("%w: another entry already uses this password", vault.ErrPasswordReused)
	}
	return nil
}

// readNewPassword asks for a password, generating one on empty input.
func (a *App) readNewPassword(prompt string) (pw string, generated bool, err error) {
	raw, err := a.readSecret(prompt)
	if err != nil {
		return "", false, err
	}
	if len(raw) > 0 {
		return string(raw), false, nil
	}
	pw, err = passgen.Generate(passgen.Options{})
	if err != nil {
		return "", false, err
	}
	return pw, true, nil
}

func (a *App) addEntry(site, username, password string, tags []string) (*vault.Entry, error) {
	if err := a.vetPassword(password, "", site, username); err != nil {
		return nil, err
	}
	e, err := a.doc().AddEntry(site, username, password, tags)
	if err != nil {
		return nil, err
	}
	a.log.Debug("entry added", zap.String("id", e.ID))
	return e, a.changed()
}

func (a *App) changePassword(e *vault.Entry, password string) error {
	if err := a.vetPassword(password, e.ID, e.Site, e.Username); err != nil {
		return err
	}
	if err := a.doc().UpdatePassword(e.ID, password); err != nil {
		return err
	}
	return a.changed()
}

func (a *App) addNote(title, content string, tags []string) (*vault.Note, error) {
	n, err := a.doc().AddNote(title, content, tags)
	if err != nil {
		return nil, err
	}
	return n, a.changed()
}

func (a *App) trashEntry(e *vault.Entry) error {
	if _, err := a.doc().SoftDeleteEntry(e.ID); err != nil {
		return err
	}
	return a.changed()
}

func (a *App) restore(id string) (vault.ItemKind, error) {
	kind, err := a.doc().Restore(id)
	if err != nil {
		return "", err
	}
	return kind, a.changed()
}

func (a *App) copyPassword(e *vault.Entry) error {
	if err := a.clip.Set(e.Password, a.clipAfter); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

func (a *App) cmdAdd([]string) error {
	site, err := a.prompt("Site: ")
	if err != nil {
		return err
	}
	username, err := a.prompt("Username: ")
	if err != nil {
		return err
	}
	pw, generated, err := a.readNewPassword("Password (empty to generate): ")
	if err != nil {
		return err
	}
	tags, err := a.prompt("Tags (comma separated): ")
	if err != nil {
		return err
	}
	e, err := a.addEntry(site, username, pw, vault.ParseTags(tags))
	if err != nil {
		return err
	}
	if generated {
		fmt.Fprintln(a.out, "Generated a password; use 'copy' to put it on the clipboard.")
	}
	fmt.Fprintf(a.out, "Entry added: %s\n", e.Site)
	return nil
}

func (a *App) cmdAddNote([]string) error {
	title, err := a.prompt("Title: ")
	if err != nil {
		return err
	}
	content, err := a.promptText("Content")
	if err != nil {
		return err
	}
	tags, err := a.prompt("Tags (comma separated): ")
	if err != nil {
		return err
	}
	n, err := a.addNote(title, content, vault.ParseTags(tags))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Note added: %s\n", n.Title)
	return nil
}

func (a *App) cmdPasswd(args []string) error {
	e, err := a.entryArg(args[0])
	if err != nil {
		return err
	}
	pw, generated, err := a.readNewPassword("New password (empty to generate): ")
	if err != nil {
		return err
	}
	if err := a.changePassword(e, pw); err != nil {
		return err
	}
	if generated {
		fmt.Fprintln(a.out, "Generated a new password.")
	}
	fmt.Fprintf(a.out, "Password updated for %s.\n", e.Site)
	return nil
}
