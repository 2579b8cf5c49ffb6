package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fahmaliyi/keyvault/secret"
	"github.com/fahmaliyi/keyvault/vault"
)

type tuiState int

const (
	stateTable tuiState = iota
	stateShowEntry
	stateAddEntry
)

const revealFor = 10 * time.Second

type clearFlashMsg struct{ seq int }

type hideSecretMsg struct{ seq int }

type model struct {
	sess    *session
	clip    Clipboard
	timeout time.Duration

	entries []vault.Entry
	cursor  int
	state   tuiState

	filter    textinput.Model
	filtering bool

	textInputs []textinput.Model
	selected   vault.Entry
	revealed   bool

	msg       string
	isErr     bool
	msgSeq    int
	revealSeq int
}

func newModel(s *session, clip Clipboard, timeout time.Duration) model {
	filter := textinput.New()
	filter.Placeholder = "fuzzy filter"
	filter.Prompt = "/ "

	m := model{
		sess:       s,
		clip:       clip,
		timeout:    timeout,
		filter:     filter,
		textInputs: newAddInputs(),
	}
	m.refresh()
	return m
}

func newAddInputs() []textinput.Model {
	placeholders := []string{"App", "Username", "Password (ctrl+g generates)"}
	inputs := make([]textinput.Model, len(placeholders))
	for i, p := range placeholders {
		ti := textinput.New()
		ti.Placeholder = p
		inputs[i] = ti
	}
	inputs[2].EchoMode = textinput.EchoPassword
	inputs[2].EchoCharacter = '*'
	return inputs
}

// runTUI blocks until the user quits. Changes are saved as they are made and
// the clipboard is cleared on exit.
func runTUI(s *session, clip Clipboard, timeout time.Duration) error {
	final, err := tea.NewProgram(newModel(s, clip, timeout)).Run()
	if m, ok := final.(model); ok {
		m.release()
	}
	if clearErr := clip.ClearNow(); err == nil && clearErr != nil {
		err = clearErr
	}
	return err
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case clearFlashMsg:
		if msg.seq == m.msgSeq {
			m.msg = ""
		}
		return m, nil
	case hideSecretMsg:
		if msg.seq == m.revealSeq {
			m.revealed = false
		}
		return m, nil
	}

	switch m.state {
	case stateShowEntry:
		return updateShowEntry(m, msg)
	case stateAddEntry:
		return updateAddEntry(m, msg)
	default:
		return updateTable(m, msg)
	}
}

func (m model) View() string {
	var s string
	switch m.state {
	case stateShowEntry:
		s = viewShowEntry(m)
	case stateAddEntry:
		s = viewAddEntry(m)
	default:
		s = viewTable(m)
	}
	if m.msg != "" {
		style := msgStyle
		if m.isErr {
			style = errorStyle
		}
		s += "\n" + style.Render(m.msg)
	}
	return s
}

// refresh reloads the visible entries from the store.
func (m *model) refresh() {
	discard(m.entries...)
	if q := m.filter.Value(); q != "" {
		m.entries = m.sess.Search(q)
	} else {
		m.entries = m.sess.List()
	}
	if m.cursor >= len(m.entries) {
		m.cursor = max(len(m.entries)-1, 0)
	}
}

func (m *model) release() {
	discard(m.entries...)
	discard(m.selected)
	m.entries = nil
}

func (m *model) flash(text string, isErr bool) tea.Cmd {
	m.msgSeq++
	m.msg, m.isErr = text, isErr
	seq := m.msgSeq
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg { return clearFlashMsg{seq: seq} })
}

func (m *model) copySecret(e vault.Entry) tea.Cmd {
	if err := m.clip.Copy(e.Secret.Reveal(), m.timeout); err != nil {
		return m.flash(err.Error(), true)
	}
	if m.timeout > 0 {
		return m.flash(fmt.Sprintf("Password copied! (clears in %s)", m.timeout), false)
	}
	return m.flash("Password copied!", false)
}

// --- Table ---
func updateTable(m model, msg tea.Msg) (model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.filtering {
		switch key.String() {
		case "enter", "esc":
			m.filtering = false
			m.filter.Blur()
			if key.String() == "esc" {
				m.filter.SetValue("")
				m.refresh()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.cursor = 0
		m.refresh()
		return m, cmd
	}

	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "/":
		m.filtering = true
		return m, m.filter.Focus()
	case "j", "down":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "enter":
		if len(m.entries) > 0 {
			m.selected = m.entries[m.cursor].Clone()
			m.revealed = false
			m.state = stateShowEntry
		}
	case "a":
		m.state = stateAddEntry
		return m, m.textInputs[0].Focus()
	case "c":
		if len(m.entries) > 0 {
			return m, m.copySecret(m.entries[m.cursor])
		}
	case "d":
		if len(m.entries) == 0 {
			return m, nil
		}
		name := m.entries[m.cursor].Name
		deleted, err := m.sess.Delete(name)
		if err != nil {
			return m, m.flash(err.Error(), true)
		}
		discard(deleted)
		m.refresh()
		if err := m.sess.save(); err != nil {
			return m, m.flash(err.Error(), true)
		}
		return m, m.flash(fmt.Sprintf("Deleted %q.", name), false)
	}
	return m, nil
}

func viewTable(m model) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Vault Entries") + "\n\n")
	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View() + "\n\n")
	}
	if len(m.entries) == 0 {
		b.WriteString(infoStyle.Render("No entries.") + "\n")
	}
	for i, e := range m.entries {
		line := fmt.Sprintf("%-30s  %-30s", e.Name, e.Username)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(helpStyle.Render("j/k=move  /=filter  enter=show  a=add  d=delete  c=copy  q=quit"))
	return b.String()
}

// --- Show Entry ---
func updateShowEntry(m model, msg tea.Msg) (model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "esc", "q":
		discard(m.selected)
		m.selected = vault.Entry{}
		m.revealed = false
		m.state = stateTable
	case "v":
		m.revealed = !m.revealed
		if m.revealed {
			m.revealSeq++
			seq := m.revealSeq
			return m, tea.Tick(revealFor, func(time.Time) tea.Msg { return hideSecretMsg{seq: seq} })
		}
	case "c":
		return m, m.copySecret(m.selected)
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func viewShowEntry(m model) string {
	e := m.selected
	pw := "********"
	if m.revealed {
		pw = e.Secret.Reveal()
	}
	s := titleStyle.Render(e.Name) + "\n\n"
	s += fmt.Sprintf("Username: %s\nPassword: %s\nCreated:  %s\nUpdated:  %s\n",
		e.Username, pw,
		time.Unix(e.CreatedAt, 0).Format(time.DateTime),
		time.Unix(e.UpdatedAt, 0).Format(time.DateTime))
	s += helpStyle.Render("v=reveal  c=copy  esc=back")
	return s
}

// --- Add Entry ---
func updateAddEntry(m model, msg tea.Msg) (model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "shift+tab", "down", "up":
			back := key.String() == "shift+tab" || key.String() == "up"
			return m, m.focusNext(back)
		case "esc":
			m.resetInputs()
			m.state = stateTable
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+g":
			pw, err := GeneratePassword(PasswordSpec{})
			if err != nil {
				return m, m.flash(err.Error(), true)
			}
			m.textInputs[2].SetValue(pw.Reveal())
			pw.Destroy()
			return m, nil
		case "enter":
			if m.textInputs[len(m.textInputs)-1].Focused() {
				return saveAddEntry(m)
			}
			return m, m.focusNext(false)
		}
	}

	// Update the focused text input
	var cmds []tea.Cmd
	for i := range m.textInputs {
		if m.textInputs[i].Focused() {
			var cmd tea.Cmd
			m.textInputs[i], cmd = m.textInputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

// Focus next or previous input
func (m *model) focusNext(backward bool) tea.Cmd {
	n := len(m.textInputs)
	for i := 0; i < n; i++ {
		if m.textInputs[i].Focused() {
			m.textInputs[i].Blur()
			if backward {
				return m.textInputs[(i-1+n)%n].Focus()
			}
			return m.textInputs[(i+1)%n].Focus()
		}
	}
	return m.textInputs[0].Focus()
}

func (m *model) resetInputs() {
	for i := range m.textInputs {
		m.textInputs[i].SetValue("")
		m.textInputs[i].Blur()
	}
}

func saveAddEntry(m model) (model, tea.Cmd) {
	name := strings.TrimSpace(m.textInputs[0].Value())
	e := vault.NewEntry(name, strings.TrimSpace(m.textInputs[1].Value()),
		secret.NewString(m.textInputs[2].Value()))
	if err := m.sess.Add(e); err != nil {
		e.Secret.Destroy()
		return m, m.flash(err.Error(), true)
	}
	if err := m.sess.save(); err != nil {
		return m, m.flash(err.Error(), true)
	}

	m.resetInputs()
	m.state = stateTable
	m.refresh()
	return m, m.flash(fmt.Sprintf("Added %q.", name), false)
}

func viewAddEntry(m model) string {
	s := titleStyle.Render("Add New Entry") + "\n\n"
	for _, ti := range m.textInputs {
		s += fmt.Sprintf("%s\n\n", ti.View())
	}
	s += helpStyle.Render("tab=next field  enter=save on last field  esc=cancel")
	return s
}
