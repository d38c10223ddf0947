package vault

import (
	"fmt"
	"strings"
)

func (d *Document) AddNote(title, content string, tags []string) (*Note, error) {
	n, err := NewNote(title, content, tags, d.now())
	if err != nil {
		return nil, err
	}
	d.Notes = append(d.Notes, n)
	return n, nil
}

// Note returns the live note with the given id.
func (d *Document) Note(id string) (*Note, error) {
	_, n, err := d.findNote(id)
	return n, err
}

func (d *Document) findNote(id string) (int, *Note, error) {
	for i, n := range d.Notes {
		if n.ID == id {
			return i, n, nil
		}
	}
	return -1, nil, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
}

func (d *Document) UpdateNote(id, title, content string, tags []string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	_, n, err := d.findNote(id)
	if err != nil {
		return err
	}
	n.Title = title
	n.Content = content
	n.Tags = NormalizeTags(tags)
	n.UpdatedAt = d.now()
	return nil
}

func (d *Document) SoftDeleteNote(id string) (*Note, error) {
	i, n, err := d.findNote(id)
	if err != nil {
		return nil, err
	}
	d.Notes = append(d.Notes[:i], d.Notes[i+1:]...)
	d.Trash = append(d.Trash, &TrashItem{Kind: KindNote, DeletedAt: d.now(), Note: n})
	return n, nil
}

func (d *Document) RestoreNote(id string) (*Note, error) {
	for i, t := range d.Trash {
		if t.Kind == KindNote && t.Note != nil && t.Note.ID == id {
			n := t.Note
			d.Trash = append(d.Trash[:i], d.Trash[i+1:]...)
			d.Notes = append(d.Notes, n)
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w in trash: %s", ErrNoteNotFound, id)
}

func (d *Document) FilterNotesByTag(tag string) []*Note {
	tag = strings.TrimSpace(tag)
	var out []*Note
	for _, n := range d.Notes {
		if hasTag(n.Tags, tag) {
			out = append(out, n)
		}
	}
	return out
}

// SearchNotes matches the query against title and content, ignoring case.
func (d *Document) SearchNotes(query string) []*Note {
	q := strings.ToLower(query)
	var out []*Note
	for _, n := range d.Notes {
		if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Content), q) {
			out = append(out, n)
		}
	}
	return out
}
