package vault

import "fmt"

// EmptyTrash permanently drops every trashed item and returns how many were
// removed. There is no undo.
func (d *Document) EmptyTrash() int {
	n := len(d.Trash)
	d.Trash = []*TrashItem{}
	return n
}

// PurgeTrashItem permanently drops one trashed item.
func (d *Document) PurgeTrashItem(id string) error {
	for i, t := range d.Trash {
		if t.ID() == id {
			d.Trash = append(d.Trash[:i], d.Trash[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w in trash: %s", ErrEntryNotFound, id)
}

// Restore moves a trashed item of either kind back to its collection.
func (d *Document) Restore(id string) (ItemKind, error) {
	for _, t := range d.Trash {
		if t.ID() != id {
			continue
		}
		switch t.Kind {
		case KindEntry:
			_, err := d.RestoreEntry(id)
			return KindEntry, err
		case KindNote:
			_, err := d.RestoreNote(id)
			return KindNote, err
		}
	}
	return "", fmt.Errorf("%w in trash: %s", ErrEntryNotFound, id)
}
