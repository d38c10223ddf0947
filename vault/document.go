package vault

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ItemKind tags what a trashed item was before it was deleted.
type ItemKind string

const (
	KindEntry ItemKind = "entry"
	KindNote  ItemKind = "note"
)

// OneTimeCode holds the shared secret of a time-based second factor.
type OneTimeCode struct {
	Enabled bool   `json:"enabled"`
	Secret  string `json:"secret,omitempty"`
}

// Entry is a stored login.
type Entry struct {
	ID              string      `json:"id"`
	Site            string      `json:"site"`
	Username        string      `json:"username"`
	Password        string      `json:"password"`
	PasswordHistory []string    `json:"password_history"`
	Tags            []string    `json:"tags"`
	OneTimeCode     OneTimeCode `json:"one_time_code"`
	RotationDays    int         `json:"rotation_days"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	DeletedAt       *time.Time  `json:"deleted_at,omitempty"`
}

// Note is a free-text secret.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrashItem is a soft-deleted entry or note. Exactly one of Entry and Note is
// set, matching Kind.
type TrashItem struct {
	Kind      ItemKind  `json:"kind"`
	DeletedAt time.Time `json:"deleted_at"`
	Entry     *Entry    `json:"entry,omitempty"`
	Note      *Note     `json:"note,omitempty"`
}

// ID returns the id of the wrapped item.
func (t *TrashItem) ID() string {
	switch t.Kind {
	case KindEntry:
		if t.Entry != nil {
			return t.Entry.ID
		}
	case KindNote:
		if t.Note != nil {
			return t.Note.ID
		}
	}
	return ""
}

// Title returns a display label for the wrapped item.
func (t *TrashItem) Title() string {
	switch t.Kind {
	case KindEntry:
		if t.Entry != nil {
			return t.Entry.Site
		}
	case KindNote:
		if t.Note != nil {
			return t.Note.Title
		}
	}
	return ""
}

// Document is the plaintext content of a vault. It only lives in memory while
// a session is unlocked and is written back as a whole.
type Document struct {
	Entries []*Entry     `json:"entries"`
	Notes   []*Note      `json:"notes"`
	Trash   []*TrashItem `json:"trash"`

	clock func() time.Time
}

func NewDocument() *Document {
	return &Document{
		Entries: []*Entry{},
		Notes:   []*Note{},
		Trash:   []*TrashItem{},
	}
}

// SetClock replaces the time source used for timestamps and age checks.
func (d *Document) SetClock(now func() time.Time) {
	d.clock = now
}

func (d *Document) now() time.Time {
	if d.clock != nil {
		return d.clock().UTC()
	}
	return time.Now().UTC()
}

func newID() string {
	return uuid.New().String()
}

// NewEntry builds a live entry. Site is required.
func NewEntry(site, username, password string, tags []string, now time.Time) (*Entry, error) {
	site = strings.TrimSpace(site)
	if site == "" {
		return nil, fmt.Errorf("%w: site is required", ErrInvalidInput)
	}
	return &Entry{
		ID:              newID(),
		Site:            site,
		Username:        strings.TrimSpace(username),
		Password:        password,
		PasswordHistory: []string{},
		Tags:            NormalizeTags(tags),
		RotationDays:    DefaultRotationDays,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// NewNote builds a note. Title is required.
func NewNote(title, content string, tags []string, now time.Time) (*Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	return &Note{
		ID:        newID(),
		Title:     title,
		Content:   content,
		Tags:      NormalizeTags(tags),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NormalizeTags trims and lower-cases tags, dropping blanks and duplicates
// while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ParseTags splits a comma separated tag list.
func ParseTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// validate checks structural invariants of a decoded document and fills in
// empty collections.
func (d *Document) validate() error {
	if d.Entries == nil {
		d.Entries = []*Entry{}
	}
	if d.Notes == nil {
		d.Notes = []*Note{}
	}
	if d.Trash == nil {
		d.Trash = []*TrashItem{}
	}

	seen := make(map[string]struct{})
	claim := func(id string) error {
		if id == "" {
			return fmt.Errorf("%w: item without id", ErrCorruptDocument)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate id %s", ErrCorruptDocument, id)
		}
		seen[id] = struct{}{}
		return nil
	}

	for _, e := range d.Entries {
		if e == nil {
			return fmt.Errorf("%w: null entry", ErrCorruptDocument)
		}
		if err := claim(e.ID); err != nil {
			return err
		}
		if e.RotationDays <= 0 {
			e.RotationDays = DefaultRotationDays
		}
	}
	for _, n := range d.Notes {
		if n == nil {
			return fmt.Errorf("%w: null note", ErrCorruptDocument)
		}
		if err := claim(n.ID); err != nil {
			return err
		}
	}
	for _, t := range d.Trash {
		if t == nil {
			return fmt.Errorf("%w: null trash item", ErrCorruptDocument)
		}
		switch {
		case t.Kind == KindEntry && t.Entry != nil && t.Note == nil:
		case t.Kind == KindNote && t.Note != nil && t.Entry == nil:
		default:
			return fmt.Errorf("%w: malformed trash item of kind %q", ErrCorruptDocument, t.Kind)
		}
		if err := claim(t.ID()); err != nil {
			return err
		}
	}
	return nil
}
