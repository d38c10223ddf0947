package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/fahmaliyi/lockbox/passgen"
	"github.com/fahmaliyi/lockbox/strength"
	"github.com/fahmaliyi/lockbox/vault"
)

type command struct {
	name    string
	args    string
	minArgs int
	help    string
	run     func(args []string) error
}

func (a *App) commands() []command {
	return []command{
		{"list", "", 0, "list entries", a.cmdList},
		{"show", "N", 1, "show entry N", a.cmdShow},
		{"add", "", 0, "add an entry", a.cmdAdd},
		{"edit", "N", 1, "edit site, username and tags of entry N", a.cmdEdit},
		{"passwd", "N", 1, "change the password of entry N", a.cmdPasswd},
		{"copy", "N", 1, "copy the password of entry N to the clipboard", a.cmdCopy},
		{"rotation", "N DAYS", 2, "set the rotation period of entry N", a.cmdRotation},
		{"del", "N", 1, "move entry N to the trash", a.cmdDelete},
		{"rm", "N", 1, "delete entry N permanently", a.cmdRemove},
		{"otp", "N [SECRET]", 1, "show the one-time code of entry N, or enable it with SECRET", a.cmdOTP},
		{"otpoff", "N", 1, "disable one-time codes for entry N", a.cmdOTPOff},
		{"notes", "", 0, "list notes", a.cmdNotes},
		{"note", "N", 1, "show note N", a.cmdShowNote},
		{"addnote", "", 0, "add a note", a.cmdAddNote},
		{"editnote", "N", 1, "edit note N", a.cmdEditNote},
		{"delnote", "N", 1, "move note N to the trash", a.cmdDeleteNote},
		{"trash", "", 0, "list trashed items", a.cmdTrash},
		{"restore", "N", 1, "restore trashed item N", a.cmdRestore},
		{"purge", "N", 1, "delete trashed item N permanently", a.cmdPurge},
		{"empty", "", 0, "empty the trash", a.cmdEmptyTrash},
		{"find", "QUERY", 1, "search entries and notes", a.cmdFind},
		{"tag", "TAG", 1, "list entries and notes with TAG", a.cmdTag},
		{"reuse", "", 0, "report entries sharing a password", a.cmdReuse},
		{"rotate", "", 0, "report entries due for a password change", a.cmdRotate},
		{"expired", "[DAYS]", 0, "report entries older than DAYS (default 180)", a.cmdExpired},
		{"gen", "[LENGTH]", 0, "generate a random password", a.cmdGenerate},
		{"save", "", 0, "write the vault to disk", a.cmdSave},
		{"help", "", 0, "show this help", a.cmdHelp},
		{"quit", "", 0, "lock the vault and exit", nil},
	}
}

func (a *App) lookup(name string) (command, bool) {
	for _, c := range a.commands() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// Run reads commands until quit or end of input, then locks the vault.
func (a *App) Run() error {
	if !a.unlocked() {
		return vault.ErrLocked
	}
	fmt.Fprintln(a.out, "Vault unlocked. Type 'help' for commands.")
	for {
		fmt.Fprint(a.out, "> ")
		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out)
				return a.Close()
			}
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name, args := fields[0], fields[1:]
		if name == "quit" || name == "q" || name == "exit" {
			fmt.Fprintln(a.out, "Locking vault.")
			return a.Close()
		}
		cmd, ok := a.lookup(name)
		if !ok {
			fmt.Fprintf(a.out, "Unknown command %q. Type 'help' for commands.\n", name)
			continue
		}
		if len(args) < cmd.minArgs {
			fmt.Fprintf(a.out, "Usage: %s %s\n", cmd.name, cmd.args)
			continue
		}
		a.log.Debug("command", zap.String("name", cmd.name))
		if err := cmd.run(args); err != nil {
			fmt.Fprintln(a.out, "Error:", describeError(err))
		}
	}
}

func (a *App) cmdHelp([]string) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, c := range a.commands() {
		fmt.Fprintf(w, "  %s %s\t%s\n", c.name, c.args, c.help)
	}
	return w.Flush()
}

func parseNumber(s string, n int) (int, bool) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

// entryArg resolves a 1-based position in the entry list.
func (a *App) entryArg(s string) (*vault.Entry, error) {
	entries := a.doc().Entries
	i, ok := parseNumber(s, len(entries))
	if !ok {
		return nil, fmt.Errorf("%w: no entry #%s", vault.ErrEntryNotFound, s)
	}
	return entries[i], nil
}

func (a *App) noteArg(s string) (*vault.Note, error) {
	notes := a.doc().Notes
	i, ok := parseNumber(s, len(notes))
	if !ok {
		return nil, fmt.Errorf("%w: no note #%s", vault.ErrNoteNotFound, s)
	}
	return notes[i], nil
}

func (a *App) trashArg(s string) (*vault.TrashItem, error) {
	trash := a.doc().Trash
	i, ok := parseNumber(s, len(trash))
	if !ok {
		return nil, fmt.Errorf("%w: no trashed item #%s", vault.ErrEntryNotFound, s)
	}
	return trash[i], nil
}

func (a *App) entryNumber(e *vault.Entry) int {
	for i, x := range a.doc().Entries {
		if x == e {
			return i + 1
		}
	}
	return 0
}

func (a *App) noteNumber(n *vault.Note) int {
	for i, x := range a.doc().Notes {
		if x == n {
			return i + 1
		}
	}
	return 0
}

func (a *App) printEntries(entries []*vault.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No entries.")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSITE\tUSERNAME\tTAGS\t")
	for _, e := range entries {
		site := e.Site
		if e.OneTimeCode.Enabled {
			site += " [otp]"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t\n", a.entryNumber(e), site, e.Username, strings.Join(e.Tags, ","))
	}
	w.Flush()
}

func (a *App) printNotes(notes []*vault.Note) {
	if len(notes) == 0 {
		fmt.Fprintln(a.out, "No notes.")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTITLE\tTAGS\t")
	for _, n := range notes {
		fmt.Fprintf(w, "%d\t%s\t%s\t\n", a.noteNumber(n), n.Title, strings.Join(n.Tags, ","))
	}
	w.Flush()
}

func (a *App) cmdList([]string) error {
	a.printEntries(a.doc().Entries)
	return nil
}

func (a *App) cmdShow(args []string) error {
	e, err := a.entryArg(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Site:      %s\nUsername:  %s\nPassword:  %s\n", e.Site, e.Username, e.Password)
	fmt.Fprintf(a.out, "Tags:      %s\n", strings.Join(e.Tags, ", "))
	fmt.Fprintf(a.out, "OTP:       %t\n", e.OneTimeCode.Enabled)
	fmt.Fprintf(a.out, "Rotation:  every %d days\n", e.RotationDays)
	fmt.Fprintf(a.out, "History:   %d previous passwords\n", len(e.PasswordHistory))
	fmt.Fprintf(a.out, "Created:   %s\nUpdated:   %s\n",
		e.CreatedAt.Local().Format(time.DateTime), e.UpdatedAt.Local().Format(time.DateTime))
	return nil
}

func (a *App) cmdEdit(args []string) error {
	e, err := a.entryArg(args[0])
	if err != nil {
		return err
	}
	site, err := a.promptDefault("Site", e.Site)
	if err != nil {
		return err
	}
	username, err := a.promptDefault("Username", e.Username)
	if err != nil {
		return err
	}
	tags, err := a.promptDefault("Tags", strings.Join(e.Tags, ","))
	if err != nil {
		return err
	}
	if err := a.doc().UpdateEntryMeta(e.ID, site, username, vault.ParseTags(tags)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Entry updated.")
	return a.changed()
}

func (a *App) cmdCopy(args []string) error {
	e, err := a.entryArg(args[0])
	if err != nil {
		return err
	}
	if err := a.copyPassword(e); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Password copied. Clearing in %s.\n", a.clipAfter)
	return nil
}

func (a *App) cmdRotation(args []string) error {
	e, err := a.entryArg(args[0])
	if err != nil {
		return err
	}
	days, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: days must be a number", vault.ErrInvalidInput)
	}
	if err := a.doc().UpdateEntryRotation(e.ID, days); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s now rotates every %d days.\n", e.Site, days)
	return a.changed()
}

func (a *App) cmdDelete(args []string) error {
	e, err := a.entryArg(args[0])
	if err != nil {
		return err
	}
	if err := a.trashEntry(e); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Moved %s to the trash.\n", e.Site)
	return nil
}

func (a *App) cmdRemove(args []string) error {
	e, err := a.entryArg(args[0])
	if err != nil {
		return err
	}
	if !a.confirm(fmt.Sprintf("Delete %s permanently?", e.Site)) {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}
	if err := a.doc().DeleteEntry(e.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s.\n", e.Site)
	return a.changed()
}

func (a *App) cmdOTP(args []string) error {
	e, err := a.entryArg(args[0])
	if err != nil {
		return err
	}
	if len(args) > 1 {
		if err := a.doc().EnableOneTimeCode(e.ID, strings.Join(args[1:], "")); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "One-time codes enabled for %s.\n", e.Site)
		return a.changed()
	}
	code, err := a.doc().OneTimeCode(e.ID, a.codes)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s\n", e.Site, code)
	return nil
}

func (a *App) cmdOTPOff(args []string) error {
	e, err := a.entryArg(args[0])
	if err != nil {
		return err
	}
	if err := a.doc().DisableOneTimeCode(e.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "One-time codes disabled for %s.\n", e.Site)
	return a.changed()
}

func (a *App) cmdNotes([]string) error {
	a.printNotes(a.doc().Notes)
	return nil
}

func (a *App) cmdShowNote(args []string) error {
	n, err := a.noteArg(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Title: %s\nTags:  %s\n\n%s\n", n.Title, strings.Join(n.Tags, ", "), n.Content)
	return nil
}

func (a *App) cmdEditNote(args []string) error {
	n, err := a.noteArg(args[0])
	if err != nil {
		return err
	}
	title, err := a.promptDefault("Title", n.Title)
	if err != nil {
		return err
	}
	tags, err := a.promptDefault("Tags", strings.Join(n.Tags, ","))
	if err != nil {
		return err
	}
	content, err := a.promptText("Content, empty keeps the current one")
	if err != nil {
		return err
	}
	if content == "" {
		content = n.Content
	}
	if err := a.doc().UpdateNote(n.ID, title, content, vault.ParseTags(tags)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Note updated.")
	return a.changed()
}

func (a *App) cmdDeleteNote(args []string) error {
	n, err := a.noteArg(args[0])
	if err != nil {
		return err
	}
	if _, err := a.doc().SoftDeleteNote(n.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Moved %s to the trash.\n", n.Title)
	return a.changed()
}

func (a *App) cmdTrash([]string) error {
	trash := a.doc().Trash
	if len(trash) == 0 {
		fmt.Fprintln(a.out, "Trash is empty.")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tKIND\tTITLE\tDELETED\t")
	for i, t := range trash {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t\n", i+1, t.Kind, t.Title(), t.DeletedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func (a *App) cmdRestore(args []string) error {
	t, err := a.trashArg(args[0])
	if err != nil {
		return err
	}
	title := t.Title()
	kind, err := a.restore(t.ID())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Restored %s %s.\n", kind, title)
	return nil
}

func (a *App) cmdPurge(args []string) error {
	t, err := a.trashArg(args[0])
	if err != nil {
		return err
	}
	if err := a.doc().PurgeTrashItem(t.ID()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Purged %s.\n", t.Title())
	return a.changed()
}

func (a *App) cmdEmptyTrash([]string) error {
	if len(a.doc().Trash) == 0 {
		fmt.Fprintln(a.out, "Trash is empty.")
		return nil
	}
	if !a.confirm("Permanently delete everything in the trash?") {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}
	n := a.doc().EmptyTrash()
	fmt.Fprintf(a.out, "Purged %d items.\n", n)
	return a.changed()
}

func (a *App) cmdFind(args []string) error {
	q := strings.Join(args, " ")
	a.printEntries(a.doc().SearchEntries(q))
	if notes := a.doc().SearchNotes(q); len(notes) > 0 {
		a.printNotes(notes)
	}
	return nil
}

func (a *App) cmdTag(args []string) error {
	a.printEntries(a.doc().FilterByTag(args[0]))
	if notes := a.doc().FilterNotesByTag(args[0]); len(notes) > 0 {
		a.printNotes(notes)
	}
	return nil
}

func (a *App) cmdReuse([]string) error {
	pairs := a.doc().DetectPasswordReuse()
	if len(pairs) == 0 {
		fmt.Fprintln(a.out, "No reused passwords.")
		return nil
	}
	for _, p := range pairs {
		fmt.Fprintf(a.out, "#%d %s and #%d %s share a password\n",
			a.entryNumber(p.First), p.First.Site, a.entryNumber(p.Second), p.Second.Site)
	}
	return nil
}

func (a *App) cmdRotate([]string) error {
	due := a.doc().EntriesNeedingRotation()
	if len(due) == 0 {
		fmt.Fprintln(a.out, "No passwords are due for rotation.")
		return nil
	}
	a.printEntries(due)
	return nil
}

func (a *App) cmdExpired(args []string) error {
	days := vault.DefaultRotationDays
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("%w: days must be a positive number", vault.ErrInvalidInput)
		}
		days = n
	}
	expired := a.doc().ExpiredEntries(days)
	if len(expired) == 0 {
		fmt.Fprintf(a.out, "No entries older than %d days.\n", days)
		return nil
	}
	for _, x := range expired {
		fmt.Fprintf(a.out, "#%d %s is %d days old\n", a.entryNumber(x.Entry), x.Entry.Site, x.AgeDays)
	}
	return nil
}

func (a *App) cmdGenerate(args []string) error {
	opts := passgen.Options{}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: length must be a number", vault.ErrInvalidInput)
		}
		opts.Length = n
	}
	pw, err := passgen.Generate(opts)
	if err != nil {
		return err
	}
	r := strength.Check(pw)
	fmt.Fprintf(a.out, "%s\n(%s, cracked in %s)\n", pw, r.Label(), r.CrackTime)
	return nil
}

func (a *App) cmdSave([]string) error {
	if err := a.Save(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Saved.")
	return nil
}
