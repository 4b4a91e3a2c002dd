package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/christopherklint97/matterclock/internal/suggest"
	"github.com/christopherklint97/matterclock/internal/timer"
)

// Hooks let the host react to what happens in the view. All are optional.
type Hooks struct {
	// Discarded is called with the session a reset threw away.
	Discarded func(s timer.State)
	// Stopped is called after every stop attempt with the session as it was
	// before the attempt and, on success, what was committed.
	Stopped func(s timer.State, c timer.Commit, err error)
	// DefaultNotes supplies notes when the session has none.
	DefaultNotes func(s timer.State) string
}

type eventMsg timer.Event

type eventsClosedMsg struct{}

type startedMsg struct {
	err error
}

type stoppedMsg struct {
	session timer.State
	commit  timer.Commit
	err     error
}

// ContextFunc returns the suggestion context for a new session.
type ContextFunc func() (suggest.Context, error)

type App struct {
	timer   *timer.Timer
	events  <-chan timer.Event
	context ContextFunc
	matters map[string]string
	hooks   Hooks

	snap         timer.State
	notes        textinput.Model
	editingNotes bool
	quitting     bool
	message      string
	errMsg       string
}

// NewApp builds the view for tm. sc is called on every start so the suggestion
// sees sessions committed from this view. matters maps matter ids to display
// names and may be nil.
func NewApp(tm *timer.Timer, sc ContextFunc, matters map[string]string, hooks Hooks) *App {
	ti := textinput.New()
	ti.Placeholder = "What are you working on?"
	ti.CharLimit = 500
	ti.Width = 50

	return &App{
		timer:   tm,
		events:  tm.Subscribe(16),
		context: sc,
		matters: matters,
		hooks:   hooks,
		snap:    tm.Snapshot(),
		notes:   ti,
	}
}

func (a *App) Init() tea.Cmd {
	return a.waitForEvent()
}

func (a *App) waitForEvent() tea.Cmd {
	ch := a.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		a.snap = a.timer.Snapshot()
		return a, a.waitForEvent()
	case eventsClosedMsg:
		return a, tea.Quit
	case startedMsg:
		a.refresh()
		if msg.err != nil {
			a.errMsg = msg.err.Error()
		}
		return a, nil
	case stoppedMsg:
		return a.handleStopped(msg)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a.quit()
		}
		if a.editingNotes {
			return a.updateNotes(msg)
		}
		return a.handleKey(msg)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.refresh()
	a.message = ""

	switch msg.String() {
	case "q", "esc":
		return a.quit()
	case "s":
		switch a.snap.Status {
		case timer.StatusIdle:
			return a, a.start()
		case timer.StatusRunning:
			return a, a.stop()
		}
	case "a":
		if a.snap.SuggestedMatterID == "" {
			a.message = "No suggestion to accept."
			return a, nil
		}
		a.setError(a.timer.UpdateMatter(a.snap.SuggestedMatterID))
	case "n":
		if a.snap.Status != timer.StatusRunning {
			a.message = "Start the timer before adding notes."
			return a, nil
		}
		a.editingNotes = true
		a.notes.SetValue(a.snap.Notes)
		return a, a.notes.Focus()
	case "x":
		prev := a.timer.Reset()
		if prev.Status != timer.StatusIdle {
			a.message = fmt.Sprintf("Discarded %s.", FormatElapsed(prev.ElapsedSeconds))
			if a.hooks.Discarded != nil {
				a.hooks.Discarded(prev)
			}
		}
		a.errMsg = ""
	}
	a.refresh()
	return a, nil
}

// quit exits unless a stop is in flight, in which case the view exits once it resolves.
func (a *App) quit() (tea.Model, tea.Cmd) {
	a.refresh()
	if a.snap.Status == timer.StatusCommitting {
		a.quitting = true
		a.message = "Saving the session, quitting when done..."
		return a, nil
	}
	return a, tea.Quit
}

func (a *App) updateNotes(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.editingNotes = false
		a.notes.Blur()
		a.setError(a.timer.UpdateNotes(strings.TrimSpace(a.notes.Value())))
		a.refresh()
		return a, nil
	case "esc":
		a.editingNotes = false
		a.notes.Blur()
		return a, nil
	}

	var cmd tea.Cmd
	a.notes, cmd = a.notes.Update(msg)
	return a, cmd
}

func (a *App) start() tea.Cmd {
	tm, sc := a.timer, a.context
	return func() tea.Msg {
		c, err := sc()
		if err != nil {
			return startedMsg{err: fmt.Errorf("loading recent sessions: %w", err)}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return startedMsg{err: tm.Start(ctx, c)}
	}
}

func (a *App) stop() tea.Cmd {
	tm, session, hooks := a.timer, a.snap, a.hooks
	notes := session.Notes
	if notes == "" && hooks.DefaultNotes != nil {
		notes = hooks.DefaultNotes(session)
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		c, err := tm.Stop(ctx, notes)
		return stoppedMsg{session: session, commit: c, err: err}
	}
}

func (a *App) handleStopped(msg stoppedMsg) (tea.Model, tea.Cmd) {
	a.refresh()
	if a.hooks.Stopped != nil {
		a.hooks.Stopped(msg.session, msg.commit, msg.err)
	}
	if a.quitting {
		return a, tea.Quit
	}
	if msg.err != nil {
		a.errMsg = msg.err.Error()
		return a, nil
	}
	a.errMsg = ""
	a.message = fmt.Sprintf("Logged %d min to %s.", msg.commit.DurationMinutes, a.matterName(msg.commit.MatterID))
	return a, nil
}

func (a *App) refresh() {
	a.snap = a.timer.Snapshot()
}

func (a *App) setError(err error) {
	if err != nil {
		a.errMsg = err.Error()
	}
}

func (a *App) matterName(id string) string {
	if id == "" {
		return "(none)"
	}
	if name, ok := a.matters[id]; ok && name != "" {
		return name
	}
	return id
}

// Session returns the timer state at the time of the call.
func (a *App) Session() timer.State {
	return a.timer.Snapshot()
}

func (a *App) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("matterclock"))
	sb.WriteString("\n")

	sb.WriteString(clockStyle.Render(FormatElapsed(a.snap.ElapsedSeconds)))
	sb.WriteString("  ")
	sb.WriteString(dimStyle.Render(string(a.snap.Status)))
	sb.WriteString("\n\n")

	if s := a.snap.Suggestion(); s.Found() {
		sb.WriteString(labelStyle.Render("Suggested"))
		sb.WriteString(a.matterName(s.MatterID))
		sb.WriteString("  ")
		sb.WriteString(dimStyle.Render(suggest.ReasonLabel(s.Reason)))
		sb.WriteString("\n")
	}
	sb.WriteString(labelStyle.Render("Matter"))
	sb.WriteString(a.matterName(a.snap.SelectedMatterID))
	sb.WriteString("\n")

	sb.WriteString(labelStyle.Render("Notes"))
	if a.editingNotes {
		sb.WriteString(a.notes.View())
	} else if a.snap.Notes != "" {
		sb.WriteString(a.snap.Notes)
	} else {
		sb.WriteString(dimStyle.Render("—"))
	}
	sb.WriteString("\n")

	if a.errMsg != "" {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render("Error: "))
		sb.WriteString(a.errMsg)
		if a.snap.Status == timer.StatusRunning {
			sb.WriteString("\n")
			sb.WriteString(warningStyle.Render("Your time is not lost. Press s to try again."))
		}
		sb.WriteString("\n")
	} else if a.message != "" {
		sb.WriteString("\n")
		sb.WriteString(successStyle.Render(a.message))
		sb.WriteString("\n")
	}

	help := "[s]tart • [q]uit"
	switch {
	case a.editingNotes:
		help = "Enter: save • Esc: cancel"
	case a.snap.Status == timer.StatusRunning:
		help = "[s]top • [a]ccept suggestion • [n]otes • [x] discard • [q]uit"
	case a.snap.Status == timer.StatusCommitting:
		help = "Saving..."
	}
	sb.WriteString(helpStyle.Render(help))

	return boxStyle.Render(sb.String())
}

// FormatElapsed renders seconds as h:mm:ss.
func FormatElapsed(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
