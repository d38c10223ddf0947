package vault

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// CodeGenerator produces time-based one-time codes from a stored secret.
type CodeGenerator interface {
	Code(secret string, at time.Time) (string, error)
}

// ReusePair is two live entries sharing the same password. First is the
// earliest entry that used it.
type ReusePair struct {
	First  *Entry
	Second *Entry
}

// ExpiredEntry reports an entry older than a maximum age.
type ExpiredEntry struct {
	Entry   *Entry
	AgeDays int
}

func (d *Document) AddEntry(site, username, password string, tags []string) (*Entry, error) {
	e, err := NewEntry(site, username, password, tags, d.now())
	if err != nil {
		return nil, err
	}
	d.Entries = append(d.Entries, e)
	return e, nil
}

// Entry returns the live entry with the given id.
func (d *Document) Entry(id string) (*Entry, error) {
	_, e, err := d.findEntry(id)
	return e, err
}

func (d *Document) findEntry(id string) (int, *Entry, error) {
	for i, e := range d.Entries {
		if e.ID == id {
			return i, e, nil
		}
	}
	return -1, nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
}

// UpdatePassword rotates the password of an entry. The previous password is
// pushed to the history, which keeps the five most recent ones.
func (d *Document) UpdatePassword(id, newPassword string) error {
	if utf8.RuneCountInString(newPassword) < MinPasswordLen {
		return fmt.Errorf("%w: need at least %d characters", ErrWeakInput, MinPasswordLen)
	}
	_, e, err := d.findEntry(id)
	if err != nil {
		return err
	}
	if newPassword == e.Password {
		return fmt.Errorf("%w: same as current password", ErrPasswordReused)
	}
	for _, old := range e.PasswordHistory {
		if old == newPassword {
			return fmt.Errorf("%w: used previously", ErrPasswordReused)
		}
	}

	e.PasswordHistory = append(e.PasswordHistory, e.Password)
	if n := len(e.PasswordHistory); n > MaxPasswordHistory {
		e.PasswordHistory = append([]string(nil), e.PasswordHistory[n-MaxPasswordHistory:]...)
	}
	e.Password = newPassword
	e.UpdatedAt = d.now()
	return nil
}

func (d *Document) UpdateEntryMeta(id, site, username string, tags []string) error {
	site = strings.TrimSpace(site)
	if site == "" {
		return fmt.Errorf("%w: site is required", ErrInvalidInput)
	}
	_, e, err := d.findEntry(id)
	if err != nil {
		return err
	}
	e.Site = site
	e.Username = strings.TrimSpace(username)
	e.Tags = NormalizeTags(tags)
	e.UpdatedAt = d.now()
	return nil
}

// UpdateEntryRotation sets how many days a password may live before the entry
// is reported by EntriesNeedingRotation.
func (d *Document) UpdateEntryRotation(id string, days int) error {
	if days < 1 {
		return fmt.Errorf("%w: rotation days must be positive", ErrInvalidInput)
	}
	_, e, err := d.findEntry(id)
	if err != nil {
		return err
	}
	e.RotationDays = days
	return nil
}

// DeleteEntry removes a live entry permanently, bypassing the trash.
func (d *Document) DeleteEntry(id string) error {
	i, _, err := d.findEntry(id)
	if err != nil {
		return err
	}
	d.Entries = append(d.Entries[:i], d.Entries[i+1:]...)
	return nil
}

func (d *Document) SoftDeleteEntry(id string) (*Entry, error) {
	i, e, err := d.findEntry(id)
	if err != nil {
		return nil, err
	}
	now := d.now()
	e.DeletedAt = &now
	d.Entries = append(d.Entries[:i], d.Entries[i+1:]...)
	d.Trash = append(d.Trash, &TrashItem{Kind: KindEntry, DeletedAt: now, Entry: e})
	return e, nil
}

func (d *Document) RestoreEntry(id string) (*Entry, error) {
	for i, t := range d.Trash {
		if t.Kind == KindEntry && t.Entry != nil && t.Entry.ID == id {
			e := t.Entry
			e.DeletedAt = nil
			d.Trash = append(d.Trash[:i], d.Trash[i+1:]...)
			d.Entries = append(d.Entries, e)
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w in trash: %s", ErrEntryNotFound, id)
}

// EnableOneTimeCode attaches a base32 secret to the entry, replacing any
// previous one.
func (d *Document) EnableOneTimeCode(id, secret string) error {
	secret, err := normalizeSecret(secret)
	if err != nil {
		return err
	}
	_, e, err := d.findEntry(id)
	if err != nil {
		return err
	}
	e.OneTimeCode = OneTimeCode{Enabled: true, Secret: secret}
	return nil
}

func (d *Document) DisableOneTimeCode(id string) error {
	_, e, err := d.findEntry(id)
	if err != nil {
		return err
	}
	e.OneTimeCode = OneTimeCode{}
	return nil
}

// OneTimeCode returns the current code for the entry.
func (d *Document) OneTimeCode(id string, gen CodeGenerator) (string, error) {
	_, e, err := d.findEntry(id)
	if err != nil {
		return "", err
	}
	if !e.OneTimeCode.Enabled || e.OneTimeCode.Secret == "" {
		return "", ErrNotEnabled
	}
	code, err := gen.Code(e.OneTimeCode.Secret, d.now())
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return code, nil
}

func normalizeSecret(secret string) (string, error) {
	secret = strings.ToUpper(strings.Join(strings.Fields(secret), ""))
	secret = strings.TrimRight(secret, "=")
	if secret == "" {
		return "", fmt.Errorf("%w: empty one-time code secret", ErrInvalidInput)
	}
	if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret); err != nil {
		return "", fmt.Errorf("%w: secret is not base32", ErrInvalidInput)
	}
	return secret, nil
}

// DetectPasswordReuse pairs every entry with the first entry that used the
// same password before it.
func (d *Document) DetectPasswordReuse() []ReusePair {
	seen := make(map[string]*Entry, len(d.Entries))
	var pairs []ReusePair
	for _, e := range d.Entries {
		if first, ok := seen[e.Password]; ok {
			pairs = append(pairs, ReusePair{First: first, Second: e})
			continue
		}
		seen[e.Password] = e
	}
	return pairs
}

// PasswordInUse reports whether any live entry other than exceptID already
// uses the password.
func (d *Document) PasswordInUse(password, exceptID string) bool {
	for _, e := range d.Entries {
		if e.ID != exceptID && e.Password == password {
			return true
		}
	}
	return false
}

// NeedsRotation reports whether the password is older than the entry's
// rotation policy.
func (e *Entry) NeedsRotation(now time.Time) bool {
	days := e.RotationDays
	if days <= 0 {
		days = DefaultRotationDays
	}
	return now.Sub(e.UpdatedAt) > time.Duration(days)*24*time.Hour
}

func (d *Document) EntriesNeedingRotation() []*Entry {
	now := d.now()
	var out []*Entry
	for _, e := range d.Entries {
		if e.NeedsRotation(now) {
			out = append(out, e)
		}
	}
	return out
}

// ExpiredEntries lists entries created more than maxAgeDays ago.
func (d *Document) ExpiredEntries(maxAgeDays int) []ExpiredEntry {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultRotationDays
	}
	now := d.now()
	limit := time.Duration(maxAgeDays) * 24 * time.Hour
	var out []ExpiredEntry
	for _, e := range d.Entries {
		age := now.Sub(e.CreatedAt)
		if age > limit {
			out = append(out, ExpiredEntry{Entry: e, AgeDays: int(age / (24 * time.Hour))})
		}
	}
	return out
}

func (d *Document) FilterByTag(tag string) []*Entry {
	tag = strings.TrimSpace(tag)
	var out []*Entry
	for _, e := range d.Entries {
		if hasTag(e.Tags, tag) {
			out = append(out, e)
		}
	}
	return out
}

// SearchEntries matches the query against site and username, ignoring case.
func (d *Document) SearchEntries(query string) []*Entry {
	q := strings.ToLower(query)
	var out []*Entry
	for _, e := range d.Entries {
		if strings.Contains(strings.ToLower(e.Site), q) || strings.Contains(strings.ToLower(e.Username), q) {
			out = append(out, e)
		}
	}
	return out
}
