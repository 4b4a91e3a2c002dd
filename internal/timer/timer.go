// Package timer tracks a single billable work session.
//
// A Timer moves between idle, running and committing. Start asks the suggest
// package for a likely matter, Stop hands the finished session to a Committer
// and only returns to idle once the commit succeeds.
package timer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/christopherklint97/matterclock/internal/suggest"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a Timer.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRunning    Status = "running"
	StatusCommitting Status = "committing"
)

var (
	// ErrClosed is returned by operations on a closed Timer.
	ErrClosed = errors.New("timer closed")
	// ErrFutureStart is returned when a backdated start lies after now.
	ErrFutureStart = errors.New("start time is in the future")
	// ErrInvalidSession is returned by Restore for a state that is not an active session.
	ErrInvalidSession = errors.New("not an active session")
)

// State is a copy of the timer's mutable state.
type State struct {
	SessionID         string         `json:"session_id"`
	Status            Status         `json:"status"`
	StartTime         time.Time      `json:"start_time"`
	ElapsedSeconds    int64          `json:"-"`
	SelectedMatterID  string         `json:"selected_matter_id,omitempty"`
	SuggestedMatterID string         `json:"suggested_matter_id,omitempty"`
	SuggestionReason  suggest.Reason `json:"suggestion_reason,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	ActiveEntryID     string         `json:"active_entry_id,omitempty"`
	Err               error          `json:"-"`
}

// Suggestion returns the stored suggestion.
func (s State) Suggestion() suggest.Suggestion {
	if s.SuggestedMatterID == "" {
		return suggest.None()
	}
	return suggest.Suggestion{MatterID: s.SuggestedMatterID, Reason: s.SuggestionReason}
}

func idleState() State {
	return State{Status: StatusIdle, SuggestionReason: suggest.ReasonNone}
}

// Commit is a finished session handed to the time-record service.
type Commit struct {
	EntryID         string
	MatterID        string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationMinutes int
	Notes           string
}

// Committer durably records a finished session.
type Committer interface {
	Commit(ctx context.Context, c Commit) error
}

// Opener is implemented by committers that record a session when it starts.
// The returned id is passed back as Commit.EntryID.
type Opener interface {
	Open(ctx context.Context, startedAt time.Time) (string, error)
	Discard(ctx context.Context, entryID string) error
}

// Config contains runtime options for a Timer.
type Config struct {
	TickInterval time.Duration
	Windows      suggest.Windows
	Now          func() time.Time
	Logger       *slog.Logger
}

// Timer is the work-session state machine. It is safe for concurrent use.
type Timer struct {
	mu         sync.Mutex
	cfg        Config
	committer  Committer
	logger     *slog.Logger
	state      State
	generation uint64
	events     []chan Event
	done       chan struct{}
	closed     bool
}

// New creates an idle Timer. Release it with Close.
func New(committer Committer, cfg Config) *Timer {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Timer{
		cfg:       cfg,
		committer: committer,
		logger:    logger,
		state:     idleState(),
		done:      make(chan struct{}),
	}
}

// Start begins a session now.
func (t *Timer) Start(ctx context.Context, sc suggest.Context) error {
	return t.StartAt(ctx, sc, t.cfg.Now())
}

// StartAt begins a session that started at the given time, which may be in the past.
func (t *Timer) StartAt(ctx context.Context, sc suggest.Context, at time.Time) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.state.Status != StatusIdle {
		status := t.state.Status
		t.mu.Unlock()
		return &TransitionError{Op: "start", Status: status}
	}
	now := t.cfg.Now()
	if at.After(now) {
		t.mu.Unlock()
		return ErrFutureStart
	}

	s := t.cfg.Windows.Suggest(sc, now)
	t.state = State{
		SessionID:         uuid.NewString(),
		Status:            StatusRunning,
		StartTime:         at,
		SuggestedMatterID: s.MatterID,
		SuggestionReason:  s.Reason,
	}
	t.generation++
	gen := t.generation
	sessionID := t.state.SessionID
	t.emitLocked(Event{Type: EventStateChange, Status: StatusRunning, At: now})
	t.mu.Unlock()

	t.logger.Info("timer started",
		"session", sessionID,
		"start", at,
		"suggested_matter", s.MatterID,
		"reason", s.Reason,
	)

	if opener, ok := t.committer.(Opener); ok {
		t.open(ctx, opener, gen, at)
	}
	return nil
}

func (t *Timer) open(ctx context.Context, opener Opener, gen uint64, at time.Time) {
	id, err := opener.Open(ctx, at)
	if err != nil {
		t.logger.Warn("opening running entry failed, session is local only", "error", err)
		return
	}

	t.mu.Lock()
	if gen == t.generation && t.state.Status != StatusIdle {
		t.state.ActiveEntryID = id
		t.mu.Unlock()
		t.logger.Debug("running entry opened", "entry", id)
		return
	}
	t.mu.Unlock()

	// Session was reset while the entry was being opened.
	if err := opener.Discard(ctx, id); err != nil {
		t.logger.Warn("discarding orphaned entry failed", "entry", id, "error", err)
	}
}

// Stop commits the running session with the given notes and returns what was
// committed. The call blocks while the commit is in flight; the timer reports
// StatusCommitting meanwhile. On failure the session keeps running and the
// error is also kept in State.Err.
func (t *Timer) Stop(ctx context.Context, notes string) (Commit, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return Commit{}, ErrClosed
	}
	if t.state.Status != StatusRunning {
		status := t.state.Status
		t.mu.Unlock()
		return Commit{}, &TransitionError{Op: "stop", Status: status}
	}

	now := t.cfg.Now()
	commit := Commit{
		EntryID:         t.state.ActiveEntryID,
		MatterID:        t.state.SelectedMatterID,
		StartedAt:       t.state.StartTime,
		EndedAt:         now,
		DurationMinutes: durationMinutes(now.Sub(t.state.StartTime)),
		Notes:           notes,
	}
	t.state.Status = StatusCommitting
	t.state.Err = nil
	gen := t.generation
	sessionID := t.state.SessionID
	t.emitLocked(Event{Type: EventStateChange, Status: StatusCommitting, At: now})
	t.mu.Unlock()

	t.logger.Debug("committing session",
		"session", sessionID,
		"matter", commit.MatterID,
		"minutes", commit.DurationMinutes,
	)

	err := t.committer.Commit(ctx, commit)

	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation {
		t.logger.Warn("commit finished after session was discarded", "session", sessionID, "error", err)
		return Commit{}, err
	}

	if err != nil {
		cerr := &CommitError{Err: err}
		t.state.Status = StatusRunning
		t.state.Err = cerr
		t.logger.Error("commit failed", "session", sessionID, "error", err)
		at := t.cfg.Now()
		t.emitLocked(Event{Type: EventCommitError, Status: StatusRunning, Message: err.Error(), At: at})
		t.emitLocked(Event{Type: EventStateChange, Status: StatusRunning, At: at})
		return Commit{}, cerr
	}

	t.state = idleState()
	t.generation++
	t.logger.Info("session committed", "session", sessionID, "matter", commit.MatterID, "minutes", commit.DurationMinutes)
	t.emitLocked(Event{Type: EventStateChange, Status: StatusIdle, At: t.cfg.Now()})
	return commit, nil
}

// Reset discards the current session without committing and returns what was discarded.
// A commit still in flight is ignored when it resolves.
func (t *Timer) Reset() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.snapshotLocked(t.cfg.Now())
	t.state = idleState()
	t.generation++
	if prev.Status != StatusIdle {
		t.logger.Info("session discarded", "session", prev.SessionID, "elapsed_seconds", prev.ElapsedSeconds)
		t.emitLocked(Event{Type: EventStateChange, Status: StatusIdle, At: t.cfg.Now()})
	}
	return prev
}

// UpdateNotes replaces the session notes. Only allowed while running.
func (t *Timer) UpdateNotes(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status != StatusRunning {
		return &TransitionError{Op: "update notes", Status: t.state.Status}
	}
	t.state.Notes = text
	return nil
}

// UpdateMatter selects the matter the session bills to. Only allowed while running.
func (t *Timer) UpdateMatter(matterID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status != StatusRunning {
		return &TransitionError{Op: "update matter", Status: t.state.Status}
	}
	t.state.SelectedMatterID = matterID
	return nil
}

// SetSuggestedMatter replaces the stored suggestion without re-running the heuristic.
func (t *Timer) SetSuggestedMatter(s suggest.Suggestion) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !s.Found() {
		s = suggest.None()
	}
	t.state.SuggestedMatterID = s.MatterID
	t.state.SuggestionReason = s.Reason
}

// Restore resumes a previously persisted session. The timer must be idle.
// A session persisted mid-commit comes back as running since its outcome is unknown.
func (t *Timer) Restore(s State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.state.Status != StatusIdle {
		return &TransitionError{Op: "restore", Status: t.state.Status}
	}
	if s.Status == StatusIdle || s.StartTime.IsZero() {
		return ErrInvalidSession
	}

	if s.SessionID == "" {
		s.SessionID = uuid.NewString()
	}
	if s.SuggestedMatterID == "" {
		s.SuggestionReason = suggest.ReasonNone
	}
	s.Status = StatusRunning
	s.Err = nil
	s.ElapsedSeconds = 0
	t.state = s
	t.generation++
	t.emitLocked(Event{Type: EventStateChange, Status: StatusRunning, At: t.cfg.Now()})
	return nil
}

// Snapshot returns a copy of the current state with elapsed time computed from the clock.
func (t *Timer) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(t.cfg.Now())
}

func (t *Timer) snapshotLocked(now time.Time) State {
	s := t.state
	s.ElapsedSeconds = t.elapsedLocked(now)
	return s
}

func (t *Timer) elapsedLocked(now time.Time) int64 {
	if t.state.Status == StatusIdle || t.state.StartTime.IsZero() {
		return 0
	}
	d := now.Sub(t.state.StartTime)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

func durationMinutes(d time.Duration) int {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return 0
	}
	return int((secs + 59) / 60)
}

// Subscribe registers a new observer channel. Slow observers miss events.
func (t *Timer) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		close(ch)
		return ch
	}
	t.events = append(t.events, ch)
	t.mu.Unlock()
	return ch
}

// Run ticks the elapsed counter until ctx is done or the timer is closed.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *Timer) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status == StatusIdle {
		return
	}
	now := t.cfg.Now()
	t.state.ElapsedSeconds = t.elapsedLocked(now)
	t.emitLocked(Event{
		Type:           EventTick,
		Status:         t.state.Status,
		ElapsedSeconds: t.state.ElapsedSeconds,
		At:             now,
	})
}

// Close stops Run and closes all observer channels.
func (t *Timer) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.done)
	events := t.events
	t.events = nil
	t.mu.Unlock()

	for _, ch := range events {
		close(ch)
	}
}

func (t *Timer) emitLocked(event Event) {
	for _, ch := range t.events {
		select {
		case ch <- event:
		default:
		}
	}
}
