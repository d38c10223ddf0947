package vault

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDocument(t *testing.T) (*Document, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	d := NewDocument()
	d.SetClock(clk.now)
	return d, clk
}

func assertDisjoint(t *testing.T, d *Document) {
	t.Helper()
	trashed := make(map[string]bool, len(d.Trash))
	for _, it := range d.Trash {
		trashed[it.ID()] = true
	}
	for _, e := range d.Entries {
		assert.False(t, trashed[e.ID], "entry %s is live and trashed", e.ID)
	}
	for _, n := range d.Notes {
		assert.False(t, trashed[n.ID], "note %s is live and trashed", n.ID)
	}
}

func TestAddEntry(t *testing.T) {
	d, clk := newTestDocument(t)

	e, err := d.AddEntry("github.com", "bob", "Tr0ub4dor&9", []string{"dev"})
	require.NoError(t, err)
	require.Len(t, d.Entries, 1)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, []string{"dev"}, e.Tags)
	assert.Empty(t, e.PasswordHistory)
	assert.False(t, e.OneTimeCode.Enabled)
	assert.Equal(t, DefaultRotationDays, e.RotationDays)
	assert.Equal(t, clk.t, e.CreatedAt)
	assert.Equal(t, clk.t, e.UpdatedAt)
	assert.Nil(t, e.DeletedAt)

	other, err := d.AddEntry("gitlab.com", "bob", "x", nil)
	require.NoError(t, err)
	assert.NotEqual(t, e.ID, other.ID)
}

func TestAddEntry_RequiresSite(t *testing.T) {
	d, _ := newTestDocument(t)
	_, err := d.AddEntry("   ", "bob", "pw", nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, d.Entries)
}

func TestAddNote_RequiresTitle(t *testing.T) {
	d, _ := newTestDocument(t)
	_, err := d.AddNote("", "body", nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	n, err := d.AddNote(" wifi ", "psk", []string{"Home", "home", " "})
	require.NoError(t, err)
	assert.Equal(t, "wifi", n.Title)
	assert.Equal(t, []string{"home"}, n.Tags)
}

func TestUpdatePassword(t *testing.T) {
	d, clk := newTestDocument(t)
	e, err := d.AddEntry("github.com", "bob", "Tr0ub4dor&9", nil)
	require.NoError(t, err)

	err = d.UpdatePassword(e.ID, "Tr0ub4dor&9")
	require.ErrorIs(t, err, ErrPasswordReused)

	clk.advance(time.Hour)
	require.NoError(t, d.UpdatePassword(e.ID, "N3wPassw0rd!"))
	assert.Equal(t, "N3wPassw0rd!", e.Password)
	assert.Equal(t, []string{"Tr0ub4dor&9"}, e.PasswordHistory)
	assert.Equal(t, clk.t, e.UpdatedAt)
}

func TestUpdatePassword_Errors(t *testing.T) {
	d, _ := newTestDocument(t)
	e, err := d.AddEntry("github.com", "bob", "Tr0ub4dor&9", nil)
	require.NoError(t, err)

	require.ErrorIs(t, d.UpdatePassword(e.ID, "short"), ErrWeakInput)
	require.ErrorIs(t, d.UpdatePassword("missing", "long enough"), ErrEntryNotFound)
	assert.Equal(t, "Tr0ub4dor&9", e.Password)
	assert.Empty(t, e.PasswordHistory)
}

func TestUpdatePassword_HistoryCap(t *testing.T) {
	d, _ := newTestDocument(t)
	e, err := d.AddEntry("site", "u", "password-0", nil)
	require.NoError(t, err)

	for i := 1; i <= 8; i++ {
		require.NoError(t, d.UpdatePassword(e.ID, fmt.Sprintf("password-%d", i)))
		want := i
		if want > MaxPasswordHistory {
			want = MaxPasswordHistory
		}
		require.Len(t, e.PasswordHistory, want)
	}

	assert.Equal(t, []string{
		"password-3", "password-4", "password-5", "password-6", "password-7",
	}, e.PasswordHistory)
	assert.Equal(t, "password-8", e.Password)

	// anything still in history is rejected, anything that fell off is allowed
	require.ErrorIs(t, d.UpdatePassword(e.ID, "password-3"), ErrPasswordReused)
	require.ErrorIs(t, d.UpdatePassword(e.ID, "password-7"), ErrPasswordReused)
	require.NoError(t, d.UpdatePassword(e.ID, "password-2"))
}

func TestUpdateEntryMeta(t *testing.T) {
	d, clk := newTestDocument(t)
	e, err := d.AddEntry("github.com", "bob", "pw", []string{"dev"})
	require.NoError(t, err)

	clk.advance(time.Minute)
	require.NoError(t, d.UpdateEntryMeta(e.ID, "github.com ", "alice", []string{"Work"}))
	assert.Equal(t, "github.com", e.Site)
	assert.Equal(t, "alice", e.Username)
	assert.Equal(t, []string{"work"}, e.Tags)
	assert.Equal(t, clk.t, e.UpdatedAt)
	assert.Equal(t, "pw", e.Password)

	require.ErrorIs(t, d.UpdateEntryMeta("nope", "s", "u", nil), ErrEntryNotFound)
	require.ErrorIs(t, d.UpdateEntryMeta(e.ID, "", "u", nil), ErrInvalidInput)
}

func TestUpdateNote(t *testing.T) {
	d, clk := newTestDocument(t)
	n, err := d.AddNote("wifi", "old", nil)
	require.NoError(t, err)

	clk.advance(time.Minute)
	require.NoError(t, d.UpdateNote(n.ID, "wifi", "new", []string{"home"}))
	assert.Equal(t, "new", n.Content)
	assert.Equal(t, []string{"home"}, n.Tags)
	assert.Equal(t, clk.t, n.UpdatedAt)

	require.ErrorIs(t, d.UpdateNote("nope", "t", "c", nil), ErrNoteNotFound)
}

func TestSoftDeleteRestoreEntry(t *testing.T) {
	d, clk := newTestDocument(t)
	e, err := d.AddEntry("github.com", "bob", "Tr0ub4dor&9", []string{"dev"})
	require.NoError(t, err)
	before := *e

	clk.advance(time.Hour)
	gone, err := d.SoftDeleteEntry(e.ID)
	require.NoError(t, err)
	assert.Empty(t, d.Entries)
	require.Len(t, d.Trash, 1)
	assert.Equal(t, KindEntry, d.Trash[0].Kind)
	assert.Equal(t, clk.t, d.Trash[0].DeletedAt)
	require.NotNil(t, gone.DeletedAt)
	assert.Equal(t, clk.t, *gone.DeletedAt)
	assertDisjoint(t, d)

	_, err = d.SoftDeleteEntry(e.ID)
	require.ErrorIs(t, err, ErrEntryNotFound)

	restored, err := d.RestoreEntry(e.ID)
	require.NoError(t, err)
	assert.Empty(t, d.Trash)
	require.Len(t, d.Entries, 1)
	if diff := cmp.Diff(&before, restored); diff != "" {
		t.Fatalf("restored entry differs (-want +got):\n%s", diff)
	}
	assertDisjoint(t, d)

	_, err = d.RestoreEntry(e.ID)
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestSoftDeleteRestoreNote(t *testing.T) {
	d, _ := newTestDocument(t)
	n, err := d.AddNote("wifi", "psk", nil)
	require.NoError(t, err)

	_, err = d.SoftDeleteNote(n.ID)
	require.NoError(t, err)
	assert.Empty(t, d.Notes)
	require.Len(t, d.Trash, 1)
	assert.Equal(t, "wifi", d.Trash[0].Title())
	assertDisjoint(t, d)

	// a note id is never restored as an entry
	_, err = d.RestoreEntry(n.ID)
	require.ErrorIs(t, err, ErrEntryNotFound)

	_, err = d.RestoreNote(n.ID)
	require.NoError(t, err)
	assert.Len(t, d.Notes, 1)
	assert.Empty(t, d.Trash)
}

func TestRestore_RoutesByKind(t *testing.T) {
	d, _ := newTestDocument(t)
	e, err := d.AddEntry("a", "u", "p", nil)
	require.NoError(t, err)
	n, err := d.AddNote("b", "c", nil)
	require.NoError(t, err)
	_, err = d.SoftDeleteEntry(e.ID)
	require.NoError(t, err)
	_, err = d.SoftDeleteNote(n.ID)
	require.NoError(t, err)

	kind, err := d.Restore(n.ID)
	require.NoError(t, err)
	assert.Equal(t, KindNote, kind)
	kind, err = d.Restore(e.ID)
	require.NoError(t, err)
	assert.Equal(t, KindEntry, kind)

	_, err = d.Restore("missing")
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestEmptyTrash(t *testing.T) {
	d, _ := newTestDocument(t)
	assert.Equal(t, 0, d.EmptyTrash())

	e, err := d.AddEntry("a", "u", "p", nil)
	require.NoError(t, err)
	n, err := d.AddNote("b", "c", nil)
	require.NoError(t, err)
	_, err = d.SoftDeleteEntry(e.ID)
	require.NoError(t, err)
	_, err = d.SoftDeleteNote(n.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, d.EmptyTrash())
	assert.Empty(t, d.Trash)
	_, err = d.Restore(e.ID)
	require.Error(t, err)
}

func TestDeleteEntry(t *testing.T) {
	d, _ := newTestDocument(t)
	e, err := d.AddEntry("a", "u", "p", nil)
	require.NoError(t, err)

	require.NoError(t, d.DeleteEntry(e.ID))
	assert.Empty(t, d.Entries)
	assert.Empty(t, d.Trash)
	require.ErrorIs(t, d.DeleteEntry(e.ID), ErrEntryNotFound)
}

type fakeCodes struct {
	secret string
	at     time.Time
}

func (f *fakeCodes) Code(secret string, at time.Time) (string, error) {
	f.secret, f.at = secret, at
	if secret == "" {
		return "", errors.New("no secret")
	}
	return "123456", nil
}

func TestOneTimeCode(t *testing.T) {
	d, clk := newTestDocument(t)
	e, err := d.AddEntry("github.com", "bob", "pw", nil)
	require.NoError(t, err)
	gen := &fakeCodes{}

	_, err = d.OneTimeCode(e.ID, gen)
	require.ErrorIs(t, err, ErrNotEnabled)

	updated := e.UpdatedAt
	clk.advance(time.Minute)
	require.NoError(t, d.EnableOneTimeCode(e.ID, "jbsw y3dp ehpk 3pxp"))
	assert.True(t, e.OneTimeCode.Enabled)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", e.OneTimeCode.Secret)
	assert.Equal(t, updated, e.UpdatedAt, "second factor changes do not reset rotation")

	code, err := d.OneTimeCode(e.ID, gen)
	require.NoError(t, err)
	assert.Equal(t, "123456", code)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", gen.secret)
	assert.Equal(t, clk.t, gen.at)

	require.NoError(t, d.DisableOneTimeCode(e.ID))
	_, err = d.OneTimeCode(e.ID, gen)
	require.ErrorIs(t, err, ErrNotEnabled)
	assert.Empty(t, e.OneTimeCode.Secret)
}

func TestEnableOneTimeCode_Invalid(t *testing.T) {
	d, _ := newTestDocument(t)
	e, err := d.AddEntry("a", "u", "p", nil)
	require.NoError(t, err)

	require.ErrorIs(t, d.EnableOneTimeCode(e.ID, ""), ErrInvalidInput)
	require.ErrorIs(t, d.EnableOneTimeCode(e.ID, "not-base32!"), ErrInvalidInput)
	require.ErrorIs(t, d.EnableOneTimeCode("nope", "JBSWY3DPEHPK3PXP"), ErrEntryNotFound)
	assert.False(t, e.OneTimeCode.Enabled)
}

func TestDetectPasswordReuse(t *testing.T) {
	d, _ := newTestDocument(t)
	a, err := d.AddEntry("a.example", "u", "same1234", nil)
	require.NoError(t, err)
	_, err = d.AddEntry("b.example", "u", "different", nil)
	require.NoError(t, err)
	b, err := d.AddEntry("c.example", "u", "same1234", nil)
	require.NoError(t, err)

	pairs := d.DetectPasswordReuse()
	require.Len(t, pairs, 1)
	assert.Same(t, a, pairs[0].First)
	assert.Same(t, b, pairs[0].Second)

	assert.True(t, d.PasswordInUse("same1234", a.ID))
	assert.False(t, d.PasswordInUse("different", d.Entries[1].ID))
}

func TestDetectPasswordReuse_ThreeWay(t *testing.T) {
	d, _ := newTestDocument(t)
	var es []*Entry
	for _, site := range []string{"a", "b", "c"} {
		e, err := d.AddEntry(site, "u", "shared-pw", nil)
		require.NoError(t, err)
		es = append(es, e)
	}
	pairs := d.DetectPasswordReuse()
	require.Len(t, pairs, 2)
	assert.Same(t, es[0], pairs[0].First)
	assert.Same(t, es[1], pairs[0].Second)
	assert.Same(t, es[0], pairs[1].First)
	assert.Same(t, es[2], pairs[1].Second)
}

func TestEntriesNeedingRotation(t *testing.T) {
	d, clk := newTestDocument(t)
	old, err := d.AddEntry("old", "u", "p", nil)
	require.NoError(t, err)
	clk.advance(100 * 24 * time.Hour)
	fresh, err := d.AddEntry("fresh", "u", "p", nil)
	require.NoError(t, err)

	assert.Empty(t, d.EntriesNeedingRotation())

	clk.advance(81 * 24 * time.Hour)
	due := d.EntriesNeedingRotation()
	require.Len(t, due, 1)
	assert.Same(t, old, due[0])

	require.NoError(t, d.UpdateEntryRotation(fresh.ID, 30))
	due = d.EntriesNeedingRotation()
	assert.Len(t, due, 2)

	require.ErrorIs(t, d.UpdateEntryRotation(fresh.ID, 0), ErrInvalidInput)
	require.ErrorIs(t, d.UpdateEntryRotation("nope", 10), ErrEntryNotFound)
}

func TestExpiredEntries(t *testing.T) {
	d, clk := newTestDocument(t)
	e, err := d.AddEntry("old", "u", "p", nil)
	require.NoError(t, err)
	clk.advance(40 * 24 * time.Hour)
	_, err = d.AddEntry("new", "u", "p", nil)
	require.NoError(t, err)
	clk.advance(time.Hour)

	got := d.ExpiredEntries(30)
	require.Len(t, got, 1)
	assert.Same(t, e, got[0].Entry)
	assert.Equal(t, 40, got[0].AgeDays)
}

func TestFilterAndSearch(t *testing.T) {
	d, _ := newTestDocument(t)
	_, err := d.AddEntry("GitHub.com", "bob", "p", []string{"dev", "work"})
	require.NoError(t, err)
	_, err = d.AddEntry("bank.example", "Robert", "p", []string{"finance"})
	require.NoError(t, err)
	_, err = d.AddNote("Router", "admin password on the sticker", []string{"home"})
	require.NoError(t, err)

	assert.Len(t, d.FilterByTag("DEV"), 1)
	assert.Empty(t, d.FilterByTag("home"))
	assert.Len(t, d.FilterNotesByTag("Home"), 1)

	assert.Len(t, d.SearchEntries("github"), 1)
	assert.Len(t, d.SearchEntries("ROB"), 1)
	assert.Len(t, d.SearchEntries(""), 2)
	assert.Len(t, d.SearchNotes("STICKER"), 1)
	assert.Empty(t, d.SearchNotes("github"))
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"dev", "work"}, ParseTags(" Dev, work ,,dev"))
	assert.Empty(t, ParseTags(""))
}

func TestValidate(t *testing.T) {
	e := &Entry{ID: "a", Site: "s"}
	cases := map[string]*Document{
		"empty id":        {Entries: []*Entry{{Site: "s"}}},
		"duplicate":       {Entries: []*Entry{e, {ID: "a", Site: "t"}}},
		"live and trash":  {Entries: []*Entry{e}, Trash: []*TrashItem{{Kind: KindEntry, Entry: &Entry{ID: "a"}}}},
		"kind mismatch":   {Trash: []*TrashItem{{Kind: KindNote, Entry: &Entry{ID: "b"}}}},
		"both payloads":   {Trash: []*TrashItem{{Kind: KindEntry, Entry: &Entry{ID: "b"}, Note: &Note{ID: "c"}}}},
		"null entry":      {Entries: []*Entry{nil}},
		"unknown kind":    {Trash: []*TrashItem{{Kind: "card", Entry: &Entry{ID: "b"}}}},
		"duplicate note":  {Notes: []*Note{{ID: "n"}, {ID: "n"}}},
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, d.validate(), ErrCorruptDocument)
		})
	}

	d := &Document{Entries: []*Entry{{ID: "a", Site: "s"}}}
	require.NoError(t, d.validate())
	assert.NotNil(t, d.Notes)
	assert.NotNil(t, d.Trash)
	assert.Equal(t, DefaultRotationDays, d.Entries[0].RotationDays)
}

func TestPurgeTrashItem(t *testing.T) {
	d, _ := newTestDocument(t)
	a, err := d.AddEntry("a", "u", "p", nil)
	require.NoError(t, err)
	b, err := d.AddNote("b", "c", nil)
	require.NoError(t, err)
	_, err = d.SoftDeleteEntry(a.ID)
	require.NoError(t, err)
	_, err = d.SoftDeleteNote(b.ID)
	require.NoError(t, err)

	require.NoError(t, d.PurgeTrashItem(a.ID))
	require.Len(t, d.Trash, 1)
	assert.Equal(t, b.ID, d.Trash[0].ID())
	require.ErrorIs(t, d.PurgeTrashItem(a.ID), ErrEntryNotFound)
}
