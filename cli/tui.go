package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fahmaliyi/lockbox/passgen"
	"github.com/fahmaliyi/lockbox/vault"
)

type view int

const (
	viewEntries view = iota
	viewEntry
	viewAdd
	viewNotes
	viewTrash
)

const revealFor = 5 * time.Second

type clearMsg struct{ seq int }

type model struct {
	app    *App
	view   view
	cursor int
	inputs []textinput.Model
	reveal bool
	msg    string
	msgSeq int
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	msgStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("0"))
)

// RunTUI runs the full screen interface over an unlocked app and locks the
// vault when it exits.
func (a *App) RunTUI() error {
	if !a.unlocked() {
		return vault.ErrLocked
	}
	if _, err := tea.NewProgram(newModel(a), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return a.Close()
}

func newModel(a *App) model {
	return model{app: a, view: viewEntries, inputs: newAddInputs()}
}

func newAddInputs() []textinput.Model {
	labels := []string{"Site", "Username", "Password (empty to generate)", "Tags"}
	inputs := make([]textinput.Model, len(labels))
	for i, l := range labels {
		ti := textinput.New()
		ti.Placeholder = l
		ti.CharLimit = 256
		inputs[i] = ti
	}
	inputs[2].EchoMode = textinput.EchoPassword
	inputs[2].EchoCharacter = '*'
	inputs[0].Focus()
	return inputs
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if c, ok := msg.(clearMsg); ok {
		if c.seq == m.msgSeq {
			m.msg = ""
			m.reveal = false
		}
		return m, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.view {
	case viewEntries:
		return m.updateEntries(msg)
	case viewEntry:
		return m.updateEntry(msg)
	case viewAdd:
		return m.updateAdd(msg)
	case viewNotes:
		return m.updateNotes(msg)
	case viewTrash:
		return m.updateTrash(msg)
	}
	return m, nil
}

func (m model) View() string {
	var s string
	switch m.view {
	case viewEntries:
		s = m.viewEntries()
	case viewEntry:
		s = m.viewEntry()
	case viewAdd:
		s = m.viewAdd()
	case viewNotes:
		s = m.viewNotes()
	case viewTrash:
		s = m.viewTrash()
	}
	if m.msg != "" {
		s += "\n" + m.msg + "\n"
	}
	return s
}

// flash shows a message for a few seconds.
func (m model) flash(text string, style lipgloss.Style) (model, tea.Cmd) {
	m.msgSeq++
	m.msg = style.Render(text)
	seq := m.msgSeq
	return m, tea.Tick(revealFor, func(time.Time) tea.Msg { return clearMsg{seq: seq} })
}

func (m model) fail(err error) (model, tea.Cmd) {
	return m.flash(describeError(err), errStyle)
}

func (m model) length() int {
	d := m.app.doc()
	switch m.view {
	case viewNotes:
		return len(d.Notes)
	case viewTrash:
		return len(d.Trash)
	default:
		return len(d.Entries)
	}
}

// moveCursor handles the navigation keys shared by the list views.
func (m *model) moveCursor(key string) bool {
	switch key {
	case "j", "down":
		if m.cursor < m.length()-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	default:
		return false
	}
	return true
}

func (m *model) clampCursor() {
	if n := m.length(); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

func (m model) switchTo(v view) model {
	m.view = v
	m.cursor = 0
	m.reveal = false
	return m
}

func (m model) selectedEntry() *vault.Entry {
	entries := m.app.doc().Entries
	if m.cursor < 0 || m.cursor >= len(entries) {
		return nil
	}
	return entries[m.cursor]
}

// --- Entries ---

func (m model) updateEntries(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.moveCursor(k.String()) {
		return m, nil
	}
	switch k.String() {
	case "q", "esc":
		return m, tea.Quit
	case "n":
		return m.switchTo(viewNotes), nil
	case "t":
		return m.switchTo(viewTrash), nil
	case "a":
		m.view = viewAdd
		m.inputs = newAddInputs()
		return m, textinput.Blink
	}

	e := m.selectedEntry()
	if e == nil {
		return m, nil
	}
	switch k.String() {
	case "enter":
		m.view = viewEntry
		m.reveal = false
	case "c":
		if err := m.app.copyPassword(e); err != nil {
			return m.fail(err)
		}
		return m.flash(fmt.Sprintf("Password copied! (clears in %s)", m.app.clipAfter), msgStyle)
	case "d":
		if err := m.app.trashEntry(e); err != nil {
			return m.fail(err)
		}
		m.clampCursor()
		return m.flash("Moved "+e.Site+" to the trash", msgStyle)
	}
	return m, nil
}

func (m model) viewEntries() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Entries") + "\n\n")
	entries := m.app.doc().Entries
	if len(entries) == 0 {
		b.WriteString(dimStyle.Render("no entries yet") + "\n")
	}
	for i, e := range entries {
		line := fmt.Sprintf("%-28s  %-24s  %s", e.Site, e.Username, strings.Join(e.Tags, ","))
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(dimStyle.Render("\nj/k move  enter show  a add  c copy  d trash  n notes  t trash bin  q quit"))
	return b.String()
}

// --- Entry detail ---

func (m model) updateEntry(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	e := m.selectedEntry()
	if e == nil {
		return m.switchTo(viewEntries), nil
	}
	switch k.String() {
	case "esc", "q":
		m.view = viewEntries
		m.reveal = false
	case "v":
		m.reveal = true
		return m.flash("Revealing for a few seconds", dimStyle)
	case "c":
		if err := m.app.copyPassword(e); err != nil {
			return m.fail(err)
		}
		return m.flash("Password copied!", msgStyle)
	case "o":
		code, err := m.app.doc().OneTimeCode(e.ID, m.app.codes)
		if err != nil {
			return m.fail(err)
		}
		return m.flash("One-time code: "+code, msgStyle)
	}
	return m, nil
}

func (m model) viewEntry() string {
	e := m.selectedEntry()
	if e == nil {
		return ""
	}
	pw := mask(e.Password)
	if m.reveal {
		pw = e.Password
	}
	s := titleStyle.Render(e.Site) + "\n\n"
	s += fmt.Sprintf("Username: %s\nPassword: %s\nTags:     %s\nOTP:      %t\nUpdated:  %s\n",
		e.Username, pw, strings.Join(e.Tags, ", "), e.OneTimeCode.Enabled,
		e.UpdatedAt.Local().Format(time.DateTime))
	if e.NeedsRotation(time.Now()) {
		s += errStyle.Render("Password is due for rotation") + "\n"
	}
	s += dimStyle.Render("\nv reveal  c copy  o one-time code  esc back")
	return s
}

// --- Add entry ---

func (m model) updateAdd(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			m.view = viewEntries
			return m, nil
		case "tab", "down", "shift+tab", "up":
			m.focusNext(k.String() == "shift+tab" || k.String() == "up")
			return m, nil
		case "enter":
			if !m.inputs[len(m.inputs)-1].Focused() {
				m.focusNext(false)
				return m, nil
			}
			return m.saveAdd()
		}
	}

	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) focusNext(backward bool) {
	n := len(m.inputs)
	for i := 0; i < n; i++ {
		if m.inputs[i].Focused() {
			m.inputs[i].Blur()
			if backward {
				m.inputs[(i-1+n)%n].Focus()
			} else {
				m.inputs[(i+1)%n].Focus()
			}
			return
		}
	}
}

func (m model) saveAdd() (tea.Model, tea.Cmd) {
	pw := m.inputs[2].Value()
	if pw == "" {
		generated, err := passgen.Generate(passgen.Options{})
		if err != nil {
			return m.fail(err)
		}
		pw = generated
	}
	e, err := m.app.addEntry(m.inputs[0].Value(), m.inputs[1].Value(), pw, vault.ParseTags(m.inputs[3].Value()))
	if err != nil {
		return m.fail(err)
	}
	m.view = viewEntries
	m.cursor = len(m.app.doc().Entries) - 1
	m.inputs = newAddInputs()
	return m.flash("Added "+e.Site, msgStyle)
}

func (m model) viewAdd() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Add entry") + "\n\n")
	for _, ti := range m.inputs {
		b.WriteString(ti.View() + "\n")
	}
	b.WriteString(dimStyle.Render("\ntab next field  enter save  esc cancel"))
	return b.String()
}

// --- Notes ---

func (m model) updateNotes(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.moveCursor(k.String()) {
		return m, nil
	}
	notes := m.app.doc().Notes
	switch k.String() {
	case "esc", "q":
		return m.switchTo(viewEntries), nil
	case "enter":
		if m.cursor < len(notes) {
			m.reveal = !m.reveal
		}
	case "d":
		if m.cursor >= len(notes) {
			return m, nil
		}
		n := notes[m.cursor]
		if _, err := m.app.doc().SoftDeleteNote(n.ID); err != nil {
			return m.fail(err)
		}
		if err := m.app.changed(); err != nil {
			return m.fail(err)
		}
		m.clampCursor()
		m.reveal = false
		return m.flash("Moved "+n.Title+" to the trash", msgStyle)
	}
	return m, nil
}

func (m model) viewNotes() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Notes") + "\n\n")
	notes := m.app.doc().Notes
	if len(notes) == 0 {
		b.WriteString(dimStyle.Render("no notes yet") + "\n")
	}
	for i, n := range notes {
		line := fmt.Sprintf("%-32s  %s", n.Title, strings.Join(n.Tags, ","))
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
		if i == m.cursor && m.reveal {
			b.WriteString(n.Content + "\n")
		}
	}
	b.WriteString(dimStyle.Render("\nj/k move  enter open  d trash  esc back"))
	return b.String()
}

// --- Trash ---

func (m model) updateTrash(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.moveCursor(k.String()) {
		return m, nil
	}
	trash := m.app.doc().Trash
	switch k.String() {
	case "esc", "q":
		return m.switchTo(viewEntries), nil
	case "r":
		if m.cursor >= len(trash) {
			return m, nil
		}
		t := trash[m.cursor]
		title := t.Title()
		if _, err := m.app.restore(t.ID()); err != nil {
			return m.fail(err)
		}
		m.clampCursor()
		return m.flash("Restored "+title, msgStyle)
	case "x":
		if m.cursor >= len(trash) {
			return m, nil
		}
		t := trash[m.cursor]
		if err := m.app.doc().PurgeTrashItem(t.ID()); err != nil {
			return m.fail(err)
		}
		if err := m.app.changed(); err != nil {
			return m.fail(err)
		}
		m.clampCursor()
		return m.flash("Purged "+t.Title(), msgStyle)
	}
	return m, nil
}

func (m model) viewTrash() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Trash") + "\n\n")
	trash := m.app.doc().Trash
	if len(trash) == 0 {
		b.WriteString(dimStyle.Render("trash is empty") + "\n")
	}
	for i, t := range trash {
		line := fmt.Sprintf("%-6s  %-32s  %s", t.Kind, t.Title(), t.DeletedAt.Local().Format(time.DateTime))
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(dimStyle.Render("\nj/k move  r restore  x purge  esc back"))
	return b.String()
}
