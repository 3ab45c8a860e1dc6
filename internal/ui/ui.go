package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"grannypad/internal/capture"
	"grannypad/internal/config"
	"grannypad/internal/logging"
	"grannypad/internal/todo"
)

var ErrNoTTY = errors.New("grannypad needs an interactive terminal")

type mode int

const (
	modeList mode = iota
	modeCompose
	modePicker
	modeMove
)

type viewMode int

const (
	viewSorted viewMode = iota
	viewManual
)

func (v viewMode) String() string {
	if v == viewManual {
		return "manual order"
	}
	return "sorted"
}

// Narrator reads grandma's remarks aloud.
type Narrator interface {
	Say(text string)
	Stop()
}

// Snapshot persists the list between runs.
type Snapshot interface {
	SaveTasks(tasks []todo.Task) error
}

type updateNotifier interface {
	SetOnUpdate(fn func())
}

type Deps struct {
	Config     config.Config
	Store      *todo.Store
	Capture    *capture.Controller
	Recognizer capture.Recognizer
	Narrator   Narrator
	Snapshot   Snapshot
	Logger     *log.Logger
}

type (
	storeChangedMsg struct{}
	transcriptMsg   struct{}
	submitDoneMsg   struct {
		res capture.Result
		err error
	}
	voiceMsg struct {
		action capture.Action
		err    error
	}
	modalityMsg struct {
		modality capture.Modality
		err      error
	}
	savedMsg struct{ err error }
)

type Model struct {
	ctx      context.Context
	cfg      config.Config
	store    *todo.Store
	capture  *capture.Controller
	voice    *narration
	snapshot Snapshot
	logger   *log.Logger

	items  []todo.Item
	cursor int
	mode   mode
	view   viewMode
	busy   bool
	input  textinput.Model
	picker filepicker.Model
	spin   spinner.Model
	status string
	width  int
}

func Run(ctx context.Context, deps Deps) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return ErrNoTTY
	}

	m := newModel(ctx, deps)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Hooks fire from timers, recorder goroutines and from inside Update, so
	// the send must never block the caller.
	deps.Store.SetOnChange(func() { go program.Send(storeChangedMsg{}) })
	defer deps.Store.SetOnChange(nil)
	if n, ok := deps.Recognizer.(updateNotifier); ok {
		n.SetOnUpdate(func() { go program.Send(transcriptMsg{}) })
		defer n.SetOnUpdate(nil)
	}

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func newModel(ctx context.Context, deps Deps) Model {
	ti := textinput.New()
	ti.Placeholder = "e.g. buy milk tomorrow, call mom on friday"
	ti.CharLimit = 1024
	ti.Width = 60

	fp := filepicker.New()
	fp.AllowedTypes = capture.ImageExtensions
	fp.ShowPermissions = false
	if home, err := os.UserHomeDir(); err == nil {
		fp.CurrentDirectory = home
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	m := Model{
		ctx:      ctx,
		cfg:      deps.Config,
		store:    deps.Store,
		capture:  deps.Capture,
		voice:    newNarration(deps.Narrator),
		snapshot: deps.Snapshot,
		logger:   logger,
		input:    ti,
		picker:   fp,
		spin:     sp,
		mode:     modeList,
		view:     viewSorted,
		status: fmt.Sprintf("Press '%s' to write, '%s' to dictate, '%s' for a picture.",
			deps.Config.Keys.Compose, deps.Config.Keys.Voice, deps.Config.Keys.Upload),
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-10, 20)
		if m.mode == modePicker {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return m, cmd
		}
	case storeChangedMsg:
		m.refresh()
		return m, m.saveCmd()
	case transcriptMsg:
		return m, nil
	case voiceMsg:
		return m.handleVoice(msg)
	case modalityMsg:
		return m.handleModality(msg)
	case submitDoneMsg:
		return m.handleSubmitDone(msg)
	case savedMsg:
		if msg.err != nil {
			m.logger.Warn("snapshot save failed", "err", msg.err)
			m.status = fmt.Sprintf("save failed: %v", msg.err)
		}
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	default:
		if m.mode == modePicker {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.mode {
	case modeCompose:
		return m.updateComposeMode(key, msg)
	case modePicker:
		return m.updatePickerMode(key, msg)
	case modeMove:
		return m.updateMoveMode(key)
	default:
		return m.updateListMode(key)
	}
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	switch key {
	case k.Quit:
		return m, tea.Quit
	case k.Down, "down":
		m.cursor = clampCursor(m.cursor+1, len(m.items))
	case k.Up, "up":
		m.cursor = clampCursor(m.cursor-1, len(m.items))
	case k.Compose:
		if m.busy {
			m.status = "Hold your horses, dear. I'm still reading."
			return m, nil
		}
		return m, modalityCmd(m.ctx, m.capture, capture.ModalityText)
	case k.Voice:
		if m.busy {
			return m, nil
		}
		return m, voiceCmd(m.ctx, m.capture)
	case k.Upload:
		if m.busy {
			return m, nil
		}
		return m, modalityCmd(m.ctx, m.capture, capture.ModalityImage)
	case k.Submit:
		return m.submit()
	case k.Toggle:
		if it, ok := m.selected(); ok {
			m.store.Toggle(it.ID)
			m.refresh()
			m.follow(it.ID)
		}
	case k.Delete:
		if it, ok := m.selected(); ok {
			if m.store.Delete(it.ID) {
				m.status = fmt.Sprintf("Tore off %q", it.Text)
			}
			m.refresh()
		}
	case k.SortView:
		if m.view == viewSorted {
			m.view = viewManual
		} else {
			m.view = viewSorted
		}
		id := m.selectedID()
		m.refresh()
		m.follow(id)
		m.status = "Showing " + m.view.String()
	case k.Move:
		if m.view != viewManual {
			m.status = fmt.Sprintf("Switch to manual order with '%s' to move tasks.", k.SortView)
			return m, nil
		}
		if it, ok := m.selected(); ok {
			m.mode = modeMove
			m.status = fmt.Sprintf("Moving %q: %s/%s to shift, %s to drop.", it.Text, k.Up, k.Down, k.Confirm)
		}
	case k.Dismiss:
		m.capture.ClearCommentary()
		m.voice.hush()
	}
	return m, nil
}

func (m Model) updateComposeMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel:
		m.capture.SetText(m.input.Value())
		m.mode = modeList
		m.input.Blur()
		m.status = "Saved your note for later."
		return m, nil
	case m.cfg.Keys.Confirm, m.cfg.Keys.Submit:
		m.capture.SetText(m.input.Value())
		if strings.TrimSpace(m.input.Value()) == "" {
			m.status = "Write something first, dear."
			return m, nil
		}
		m.mode = modeList
		m.input.Blur()
		return m.submit()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.capture.SetText(m.input.Value())
		return m, cmd
	}
}

func (m Model) updatePickerMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key == m.cfg.Keys.Cancel || key == m.cfg.Keys.Quit {
		m.mode = modeList
		m.status = "No picture, then."
		return m, nil
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.mode = modeList
		img, err := m.capture.LoadImage(path)
		if err != nil {
			m.status = fmt.Sprintf("Couldn't read that picture: %v", err)
			return m, cmd
		}
		m.status = fmt.Sprintf("Got %s. Press %s to send it to grandma.", img.Name, m.cfg.Keys.Submit)
		return m, cmd
	}
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.status = fmt.Sprintf("%s isn't a picture I can read.", filepath.Base(path))
	}
	return m, cmd
}

func (m Model) updateMoveMode(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	switch key {
	case k.Confirm, k.Cancel, k.Move:
		m.mode = modeList
		m.status = "Dropped."
	case k.Up, "up":
		if m.cursor > 0 && m.store.Reorder(m.cursor, m.cursor-1) {
			m.cursor--
			m.refresh()
		}
	case k.Down, "down":
		if m.store.Reorder(m.cursor, m.cursor+1) {
			m.cursor++
			m.refresh()
		}
	}
	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy || m.capture.Busy() {
		m.status = "Hold your horses, dear. I'm still reading."
		return m, nil
	}
	if !m.capture.CanSubmit() {
		m.status = m.nothingToSubmit()
		return m, nil
	}
	m.busy = true
	m.status = "Grandma is reading..."
	m.voice.hush()
	return m, tea.Batch(m.spin.Tick, submitCmd(m.ctx, m.capture))
}

func (m Model) nothingToSubmit() string {
	switch m.capture.Modality() {
	case capture.ModalityVoice:
		if !m.capture.VoiceSupported() {
			return capture.UnsupportedVoiceMessage
		}
		return fmt.Sprintf("I didn't hear anything. Press '%s' and start talking.", m.cfg.Keys.Voice)
	case capture.ModalityImage:
		return fmt.Sprintf("Pick a picture first with '%s'.", m.cfg.Keys.Upload)
	default:
		return fmt.Sprintf("Write something first with '%s'.", m.cfg.Keys.Compose)
	}
}

func (m Model) handleVoice(msg voiceMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Warn("voice capture failed", "err", msg.err)
		m.status = fmt.Sprintf("voice failed: %v", msg.err)
		return m, nil
	}
	switch msg.action {
	case capture.ActionVoiceUnsupported:
		m.status = capture.UnsupportedVoiceMessage
	case capture.ActionListening:
		m.status = fmt.Sprintf("I'm listening, dear. Press '%s' when you're done.", m.cfg.Keys.Voice)
	case capture.ActionStoppedListening:
		m.status = fmt.Sprintf("Got it. Press %s to send.", m.cfg.Keys.Submit)
	}
	return m, nil
}

func (m Model) handleModality(msg modalityMsg) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	switch {
	case errors.Is(msg.err, capture.ErrBusy):
		m.status = "Hold your horses, dear. I'm still reading."
		return m, nil
	case msg.err != nil:
		m.logger.Warn("switching input failed", "modality", msg.modality, "err", msg.err)
		m.status = msg.err.Error()
		return m, nil
	}
	switch msg.modality {
	case capture.ModalityText:
		m.mode = modeCompose
		m.input.SetValue(m.capture.Text())
		m.input.CursorEnd()
		m.status = fmt.Sprintf("Tell grandma what needs doing. %s or %s to send, %s to go back.", k.Confirm, k.Submit, k.Cancel)
		cmd := m.input.Focus()
		return m, cmd
	case capture.ModalityImage:
		m.mode = modePicker
		m.status = fmt.Sprintf("Pick an image. %s to go back.", k.Cancel)
		return m, m.picker.Init()
	}
	return m, nil
}

func (m Model) handleSubmitDone(msg submitDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	m.input.SetValue("")
	switch {
	case errors.Is(msg.err, capture.ErrBusy):
		return m, nil
	case errors.Is(msg.err, capture.ErrNoInput):
		m.status = m.nothingToSubmit()
		return m, nil
	case msg.err != nil:
		m.status = msg.err.Error()
		return m, nil
	}

	m.refresh()
	switch msg.res.Outcome {
	case capture.OutcomeAdded:
		m.status = fmt.Sprintf("Added %d %s.", msg.res.Added, plural(msg.res.Added, "task", "tasks"))
	case capture.OutcomeDuplicate:
		m.status = "Nothing new."
	case capture.OutcomeNotUnderstood:
		m.status = "Nothing found."
	case capture.OutcomeFailed:
		m.status = "The request failed; see the log for details."
	}
	return m, m.sayCmd(msg.res.Commentary)
}

func (m Model) sayCmd(text string) tea.Cmd {
	if !m.voice.enabled() || strings.TrimSpace(text) == "" {
		return nil
	}
	v := m.voice
	turn := v.current()
	return func() tea.Msg {
		v.say(turn, text)
		return nil
	}
}

func (m Model) saveCmd() tea.Cmd {
	if m.snapshot == nil {
		return nil
	}
	snap := m.snapshot
	tasks := m.store.Tasks()
	return func() tea.Msg {
		return savedMsg{err: snap.SaveTasks(tasks)}
	}
}

func submitCmd(ctx context.Context, c *capture.Controller) tea.Cmd {
	return func() tea.Msg {
		if c.Modality() == capture.ModalityVoice && c.Listening() {
			if _, err := c.SelectModality(ctx, capture.ModalityVoice); err != nil {
				return submitDoneMsg{err: err}
			}
		}
		res, err := c.Submit(ctx)
		return submitDoneMsg{res: res, err: err}
	}
}

// modalityCmd switches input off the update loop, since leaving voice waits
// for the recorder to exit.
func modalityCmd(ctx context.Context, c *capture.Controller, mod capture.Modality) tea.Cmd {
	return func() tea.Msg {
		_, err := c.SelectModality(ctx, mod)
		return modalityMsg{modality: mod, err: err}
	}
}

func voiceCmd(ctx context.Context, c *capture.Controller) tea.Cmd {
	return func() tea.Msg {
		action, err := c.SelectModality(ctx, capture.ModalityVoice)
		return voiceMsg{action: action, err: err}
	}
}

// refresh rebuilds the visible rows from the store.
func (m *Model) refresh() {
	items := m.store.Items()
	if m.view == viewSorted {
		items = todo.SortForDisplay(items)
	}
	m.items = items
	m.cursor = clampCursor(m.cursor, len(m.items))
}

func (m *Model) follow(id string) {
	for i, it := range m.items {
		if it.ID == id {
			m.cursor = i
			return
		}
	}
}

func (m Model) selected() (todo.Item, bool) {
	if len(m.items) == 0 {
		return todo.Item{}, false
	}
	return m.items[clampCursor(m.cursor, len(m.items))], true
}

func (m Model) selectedID() string {
	it, _ := m.selected()
	return it.ID
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
