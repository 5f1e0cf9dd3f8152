package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatdeck/internal/config"
	"chatdeck/internal/engine"
	"chatdeck/internal/store"
)

type focusArea int

const (
	focusInput focusArea = iota
	focusChat
)

// sessionUpdatedMsg arrives whenever the registry delivers a backend event;
// the model refreshes the timeline and persists the touched session.
type sessionUpdatedMsg struct{ sessionID string }

type spinMsg struct{}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type MainModel struct {
	registry *engine.Registry
	store    store.Store
	cfg      config.Config

	width  int
	height int
	ready  bool

	focus  focusArea
	input  textarea.Model
	chatVP viewport.Model

	markdown *MarkdownRenderer

	// Flash line under the status bar for command feedback.
	flash string

	// Keyboard selection over the current permission request's choices.
	permSelected int

	// Session picker overlay.
	showPicker   bool
	pickerQuery  string
	pickerItems  []pickerItem
	pickerSel    int

	// Prompt history for the active workspace, newest last.
	history []string
	histIdx int

	// Attachments staged for the next submit.
	attachments []engine.Attachment

	spinnerPos int
	lastTick   time.Time
}

func NewMainModel(registry *engine.Registry, st store.Store, cfg config.Config) *MainModel {
	ta := textarea.New()
	ta.Placeholder = "Type a message, /sessions switches chats, Enter sends."
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetHeight(3)
	ta.Prompt = " "
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	m := &MainModel{
		registry: registry,
		store:    st,
		cfg:      cfg,
		width:    100,
		height:   30,
		focus:    focusInput,
		input:    ta,
		markdown: NewMarkdownRenderer(),
	}
	if st != nil {
		if entries, err := st.LoadPromptHistory(cfg.Workspace); err == nil {
			m.history = entries
		}
	}
	m.histIdx = len(m.history)
	return m
}

func (m *MainModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatH := m.height - 9
		if chatH < 5 {
			chatH = 5
		}
		if !m.ready {
			m.chatVP = viewport.New(m.width, chatH)
			m.ready = true
		} else {
			m.chatVP.Width = m.width
			m.chatVP.Height = chatH
		}
		m.input.SetWidth(max(10, m.width-4))
		m.refreshTimeline()
		return m, nil

	case tea.KeyMsg:
		if m.showPicker {
			return m.updatePicker(msg)
		}
		if handled, cmd := m.updatePermission(msg); handled {
			return m, cmd
		}

		switch msg.Type {
		case tea.KeyCtrlC:
			m.persistAll()
			return m, tea.Quit
		case tea.KeyEsc:
			if cmd := m.cancelForeground(); cmd != nil {
				return m, cmd
			}
			return m, nil
		case tea.KeyTab:
			if m.focus == focusInput {
				m.focus = focusChat
				m.input.Blur()
			} else {
				m.focus = focusInput
				m.input.Focus()
			}
			return m, nil
		case tea.KeyCtrlP:
			m.recallHistory(-1)
			return m, nil
		case tea.KeyCtrlN:
			m.recallHistory(1)
			return m, nil
		case tea.KeyUp:
			if m.focus == focusChat {
				m.chatVP.LineUp(1)
				return m, nil
			}
		case tea.KeyDown:
			if m.focus == focusChat {
				m.chatVP.LineDown(1)
				return m, nil
			}
		case tea.KeyPgUp:
			m.chatVP.ViewUp()
			return m, nil
		case tea.KeyPgDown:
			m.chatVP.ViewDown()
			return m, nil
		case tea.KeyEnter:
			if m.focus == focusInput {
				return m, m.onEnter()
			}
		}

	case sessionUpdatedMsg:
		m.persistSession(msg.sessionID)
		if msg.sessionID == m.registry.ForegroundID() {
			m.refreshTimeline()
			m.chatVP.GotoBottom()
		}
		return m, nil

	case spinMsg:
		m.spinnerPos = (m.spinnerPos + 1) % len(spinnerFrames)
		if sess, ok := m.registry.Foreground(); ok && sess.Status() == engine.StatusRunning {
			return m, spinTick()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.chatVP, cmd = m.chatVP.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *MainModel) View() string {
	if !m.ready {
		return "…"
	}

	sess, ok := m.registry.Foreground()
	if !ok {
		return infoStyle.Render("no session. /new starts one")
	}

	var parts []string
	parts = append(parts, m.chatVP.View())

	if req, pending := sess.CurrentPermission(); pending {
		parts = append(parts, renderPermissionBox(req, sess.PermissionQueueSize(), m.permSelected, m.cfg.SafeMode, m.width))
	}

	status := renderStatusBar(sess, m.width)
	if sess.Status() == engine.StatusRunning {
		status = spinnerFrames[m.spinnerPos] + " " + status
	}
	parts = append(parts, status)

	if m.flash != "" {
		parts = append(parts, infoStyle.Render(m.flash))
	}
	if n := len(m.attachments); n > 0 {
		parts = append(parts, infoStyle.Render(fmt.Sprintf("%d attachment(s) staged", n)))
	}
	parts = append(parts, inputBoxStyle.Width(max(20, m.width-2)).Render(m.input.View()))

	view := lipgloss.JoinVertical(lipgloss.Left, parts...)
	if m.showPicker {
		return lipgloss.JoinVertical(lipgloss.Left,
			renderPicker(m.pickerItems, m.pickerQuery, m.pickerSel, m.width), view)
	}
	return view
}

// onEnter routes the input line: slash commands drive the session, anything
// else is a prompt for the foreground session.
func (m *MainModel) onEnter() tea.Cmd {
	val := strings.TrimSpace(m.input.Value())
	if val == "" {
		return nil
	}
	m.input.Reset()
	m.flash = ""

	if strings.HasPrefix(val, "/") {
		return m.runCommand(val)
	}
	return m.submitPrompt(val)
}

func (m *MainModel) submitPrompt(prompt string) tea.Cmd {
	sess, ok := m.registry.Foreground()
	if !ok {
		sess = m.registry.CreateSession(m.cfg.Workspace)
	}

	var err error
	if len(sess.Lines()) == 0 {
		_, err = sess.Submit(prompt, m.attachments)
	} else if sess.Status() == engine.StatusRunning || sess.Status() == engine.StatusPaused {
		_, err = sess.SendFollowUp(prompt)
	} else {
		_, err = sess.Submit(prompt, m.attachments)
	}
	if err != nil {
		m.flash = fmt.Sprintf("send failed: %v", err)
		return nil
	}

	m.attachments = nil
	m.rememberPrompt(prompt)
	m.refreshTimeline()
	m.chatVP.GotoBottom()
	return spinTick()
}

func (m *MainModel) runCommand(val string) tea.Cmd {
	fields := strings.Fields(val)
	name := fields[0]
	args := fields[1:]

	sess, haveSess := m.registry.Foreground()

	switch name {
	case "/new":
		m.persistAll()
		next := m.registry.CreateSession(m.cfg.Workspace)
		if err := m.registry.SwitchForeground(next.ID); err != nil {
			m.flash = fmt.Sprintf("switch failed: %v", err)
			return nil
		}
		m.flash = "started " + next.ID
		m.refreshTimeline()
		return nil

	case "/sessions":
		m.openPicker()
		return nil

	case "/attach":
		if len(args) != 1 {
			m.flash = "usage: /attach <path>"
			return nil
		}
		m.stageAttachment(args[0])
		return nil

	case "/edit":
		if !haveSess || len(args) < 2 {
			m.flash = "usage: /edit <line-id> <new text>"
			return nil
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			m.flash = "line id must be a number"
			return nil
		}
		newText := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(val, name), " "+args[0]))
		if _, err := sess.EditAndResend(id, newText); err != nil {
			m.flash = fmt.Sprintf("edit failed: %v", err)
			return nil
		}
		m.refreshTimeline()
		m.chatVP.GotoBottom()
		return spinTick()

	case "/regen":
		if !haveSess || len(args) != 1 {
			m.flash = "usage: /regen <line-id>"
			return nil
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			m.flash = "line id must be a number"
			return nil
		}
		if err := sess.RegenerateResponse(id); err != nil {
			m.flash = fmt.Sprintf("regenerate failed: %v", err)
			return nil
		}
		m.refreshTimeline()
		return spinTick()

	case "/rollback":
		if !haveSess || len(args) != 1 {
			m.flash = "usage: /rollback <line-id>"
			return nil
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			m.flash = "line id must be a number"
			return nil
		}
		if err := sess.RollbackToTurn(id); err != nil {
			m.flash = fmt.Sprintf("rollback failed: %v", err)
			return nil
		}
		m.refreshTimeline()
		return nil

	case "/pause":
		if haveSess {
			if err := sess.Pause(); err != nil {
				m.flash = fmt.Sprintf("pause failed: %v", err)
			}
		}
		return nil

	case "/resume":
		if haveSess {
			if err := sess.Resume(); err != nil {
				m.flash = fmt.Sprintf("resume failed: %v", err)
			}
		}
		return spinTick()

	case "/cancel":
		return m.cancelForeground()

	case "/reset":
		if haveSess {
			if err := sess.Reset(); err != nil {
				m.flash = fmt.Sprintf("reset failed: %v", err)
			} else {
				m.persistSession(sess.ID)
				m.refreshTimeline()
			}
		}
		return nil

	case "/quit":
		m.persistAll()
		return tea.Quit

	default:
		m.flash = "unknown command " + name
		return nil
	}
}

func (m *MainModel) cancelForeground() tea.Cmd {
	sess, ok := m.registry.Foreground()
	if !ok {
		return nil
	}
	if err := sess.Cancel(); err != nil {
		m.flash = fmt.Sprintf("cancel failed: %v", err)
		return nil
	}
	m.permSelected = 0
	m.flash = "cancelled"
	m.refreshTimeline()
	return nil
}

// updatePermission handles keys while a permission request waits on the
// foreground session. Returns handled=false when nothing is pending so the
// normal key path runs.
func (m *MainModel) updatePermission(msg tea.KeyMsg) (bool, tea.Cmd) {
	sess, ok := m.registry.Foreground()
	if !ok {
		return false, nil
	}
	req, pending := sess.CurrentPermission()
	if !pending {
		return false, nil
	}

	choices := permissionChoices(req, m.cfg.SafeMode)
	switch msg.Type {
	case tea.KeyUp:
		if m.permSelected > 0 {
			m.permSelected--
		}
		return true, nil
	case tea.KeyDown:
		if m.permSelected < len(choices)-1 {
			m.permSelected++
		}
		return true, nil
	case tea.KeyEnter:
		response := choices[m.permSelected]
		if err := sess.RespondPermission(req.RequestID, response); err != nil {
			m.flash = fmt.Sprintf("respond failed: %v", err)
		}
		m.permSelected = 0
		m.refreshTimeline()
		return true, nil
	case tea.KeyEsc:
		if err := sess.RespondPermission(req.RequestID, engine.PermissionDeny); err != nil {
			m.flash = fmt.Sprintf("respond failed: %v", err)
		}
		m.permSelected = 0
		return true, nil
	}
	return false, nil
}

func (m *MainModel) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.showPicker = false
		return m, nil
	case tea.KeyUp:
		if m.pickerSel > 0 {
			m.pickerSel--
		}
		return m, nil
	case tea.KeyDown:
		if m.pickerSel < len(m.pickerItems)-1 {
			m.pickerSel++
		}
		return m, nil
	case tea.KeyEnter:
		if m.pickerSel < len(m.pickerItems) {
			m.openSession(m.pickerItems[m.pickerSel].ID)
		}
		m.showPicker = false
		m.refreshTimeline()
		m.chatVP.GotoBottom()
		return m, nil
	case tea.KeyBackspace:
		if len(m.pickerQuery) > 0 {
			m.pickerQuery = m.pickerQuery[:len(m.pickerQuery)-1]
			m.refilterPicker()
		}
		return m, nil
	case tea.KeyRunes:
		m.pickerQuery += string(msg.Runes)
		m.refilterPicker()
		return m, nil
	}
	return m, nil
}

func (m *MainModel) openPicker() {
	m.showPicker = true
	m.pickerQuery = ""
	m.pickerSel = 0
	m.pickerItems = m.allPickerItems()
}

func (m *MainModel) refilterPicker() {
	m.pickerItems = filterPickerItems(m.allPickerItems(), m.pickerQuery)
	if m.pickerSel >= len(m.pickerItems) {
		m.pickerSel = 0
	}
}

// allPickerItems merges live registry sessions with persisted ones; live
// sessions win on id collision and sort first.
func (m *MainModel) allPickerItems() []pickerItem {
	var items []pickerItem
	seen := make(map[string]bool)
	for _, sess := range m.registry.Sessions() {
		item := pickerItem{
			ID:       sess.ID,
			Title:    sess.Title(),
			Subtitle: fmt.Sprintf("%s · %d lines · %s", sess.WorkspacePath, len(sess.Lines()), sess.Status()),
			Live:     true,
		}
		if item.Title == "" {
			item.Title = "new chat"
		}
		items = append(items, item)
		seen[sess.ID] = true
	}
	if m.store != nil {
		summaries, err := m.store.ListSessions(50)
		if err == nil {
			for _, sum := range summaries {
				if seen[sum.Record.ID] {
					continue
				}
				items = append(items, pickerItemFromSummary(sum))
			}
		}
	}
	return items
}

// openSession switches to a live session, or restores a persisted one and
// adopts it into the registry.
func (m *MainModel) openSession(sessionID string) {
	if _, ok := m.registry.Session(sessionID); ok {
		if err := m.registry.SwitchForeground(sessionID); err != nil {
			m.flash = fmt.Sprintf("switch failed: %v", err)
		}
		return
	}
	if m.store == nil {
		m.flash = "session not loaded"
		return
	}
	record, lines, err := m.store.LoadSession(sessionID)
	if err != nil {
		m.flash = fmt.Sprintf("load failed: %v", err)
		return
	}
	sess, err := m.registry.Restore(record.ID, record.WorkspacePath, record.Title, lines, record.LastLineID)
	if err != nil {
		m.flash = fmt.Sprintf("restore failed: %v", err)
		return
	}
	if err := m.registry.SwitchForeground(sess.ID); err != nil {
		m.flash = fmt.Sprintf("switch failed: %v", err)
	}
}

func (m *MainModel) stageAttachment(path string) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		m.attachments = append(m.attachments, engine.Attachment{
			Kind:  "image_path",
			Label: filepath.Base(path),
			Data:  path,
		})
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			m.flash = fmt.Sprintf("attach failed: %v", err)
			return
		}
		m.attachments = append(m.attachments, engine.Attachment{
			Kind:  "text",
			Label: filepath.Base(path),
			Data:  string(data),
		})
	}
	m.flash = "attached " + filepath.Base(path)
}

func (m *MainModel) rememberPrompt(prompt string) {
	m.history = append(m.history, prompt)
	if limit := m.cfg.MaxPromptHistory; limit > 0 && len(m.history) > limit {
		m.history = m.history[len(m.history)-limit:]
	}
	m.histIdx = len(m.history)
	if m.store != nil {
		if err := m.store.SavePromptHistory(m.cfg.Workspace, m.history); err != nil {
			m.flash = fmt.Sprintf("history save failed: %v", err)
		}
	}
}

func (m *MainModel) recallHistory(dir int) {
	if len(m.history) == 0 {
		return
	}
	m.histIdx += dir
	if m.histIdx < 0 {
		m.histIdx = 0
	}
	if m.histIdx >= len(m.history) {
		m.histIdx = len(m.history)
		m.input.Reset()
		return
	}
	m.input.SetValue(m.history[m.histIdx])
	m.input.CursorEnd()
}

func (m *MainModel) refreshTimeline() {
	if !m.ready {
		return
	}
	sess, ok := m.registry.Foreground()
	if !ok {
		m.chatVP.SetContent("")
		return
	}
	width := m.width - 2
	if width < 20 {
		width = 20
	}
	m.chatVP.SetContent(renderTimeline(sess.Lines(), m.markdown, width))
}

func (m *MainModel) persistSession(sessionID string) {
	if m.store == nil {
		return
	}
	sess, ok := m.registry.Session(sessionID)
	if !ok {
		return
	}
	if err := m.store.SaveSession(store.RecordOf(sess), sess.Lines()); err != nil {
		m.flash = fmt.Sprintf("save failed: %v", err)
	}
}

func (m *MainModel) persistAll() {
	for _, sess := range m.registry.Sessions() {
		m.persistSession(sess.ID)
	}
}

func spinTick() tea.Cmd {
	return tea.Tick(90*time.Millisecond, func(_ time.Time) tea.Msg { return spinMsg{} })
}
