// Package records is the time-record service behind the timer. Sessions are
// stored in the local database and, when a workspace is configured, pushed
// to Clockify.
package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/christopherklint97/matterclock/internal/clockify"
	"github.com/christopherklint97/matterclock/internal/store"
	"github.com/christopherklint97/matterclock/internal/suggest"
	"github.com/christopherklint97/matterclock/internal/timer"
)

// ErrNoMatter is returned when a session is committed without a selected matter.
var ErrNoMatter = errors.New("no matter selected")

// Remote is the subset of the Clockify client the service needs.
type Remote interface {
	CreateTimeEntry(ctx context.Context, workspaceID string, entry clockify.TimeEntryRequest) (*clockify.TimeEntry, error)
	GetProjects(ctx context.Context, workspaceID string) ([]clockify.Project, error)
}

type Service struct {
	db          *store.DB
	remote      Remote
	workspaceID string
	billable    bool
	logger      *slog.Logger
}

type Option func(*Service)

// WithRemote pushes committed sessions to a Clockify workspace.
func WithRemote(remote Remote, workspaceID string, billable bool) Option {
	return func(s *Service) {
		s.remote = remote
		s.workspaceID = workspaceID
		s.billable = billable
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(db *store.DB, opts ...Option) *Service {
	s := &Service{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ timer.Committer = (*Service)(nil)
	_ timer.Opener    = (*Service)(nil)
)

// Open records a running entry and returns its id.
func (s *Service) Open(ctx context.Context, startedAt time.Time) (string, error) {
	id, err := s.db.OpenEntry(startedAt)
	if err != nil {
		return "", fmt.Errorf("opening entry: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// Discard removes a running entry left behind by a reset session.
func (s *Service) Discard(ctx context.Context, entryID string) error {
	if entryID == "" {
		return nil
	}
	id, err := strconv.ParseInt(entryID, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing entry id %q: %w", entryID, err)
	}
	return s.db.DeleteEntry(id)
}

// Commit writes a finished session. The remote push happens first so a
// remote failure leaves nothing logged locally and the session can be retried.
func (s *Service) Commit(ctx context.Context, c timer.Commit) error {
	if c.MatterID == "" {
		return ErrNoMatter
	}

	var remoteID string
	if s.remote != nil {
		created, err := s.remote.CreateTimeEntry(ctx, s.workspaceID, clockify.TimeEntryRequest{
			Start:       clockify.FormatTime(c.StartedAt),
			End:         clockify.FormatTime(c.EndedAt),
			ProjectID:   c.MatterID,
			Description: c.Notes,
			Billable:    s.billable,
		})
		if err != nil {
			return fmt.Errorf("pushing to clockify: %w", err)
		}
		remoteID = created.ID
		s.logger.Debug("time entry pushed", "remote_id", remoteID, "matter", c.MatterID)
	}

	entry := store.Entry{
		RemoteID:  remoteID,
		MatterID:  c.MatterID,
		Notes:     c.Notes,
		StartTime: c.StartedAt,
		EndTime:   c.EndedAt,
		Minutes:   c.DurationMinutes,
		Status:    store.StatusLogged,
	}

	if c.EntryID != "" {
		id, err := strconv.ParseInt(c.EntryID, 10, 64)
		if err == nil {
			err = s.db.CloseEntry(id, entry)
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrEntryNotFound) {
			return fmt.Errorf("saving entry: %w", err)
		}
		s.logger.Warn("running entry missing, inserting a new one", "entry", c.EntryID)
	}

	if _, err := s.db.InsertEntry(&entry); err != nil {
		return fmt.Errorf("saving entry: %w", err)
	}
	return nil
}

// Recent returns up to limit logged sessions, newest first, for the suggestion engine.
func (s *Service) Recent(ctx context.Context, limit int) ([]suggest.Entry, error) {
	entries, err := s.db.RecentEntries(limit)
	if err != nil {
		return nil, fmt.Errorf("loading recent entries: %w", err)
	}
	out := make([]suggest.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, suggest.Entry{MatterID: e.MatterID, StartedAt: e.StartTime})
	}
	return out, nil
}

// Matter is a billable matter as shown to the user.
type Matter struct {
	ID     string
	Name   string
	Client string
}

// Matters lists the workspace's matters. Without a remote it returns nil.
func (s *Service) Matters(ctx context.Context) ([]Matter, error) {
	if s.remote == nil {
		return nil, nil
	}
	projects, err := s.remote.GetProjects(ctx, s.workspaceID)
	if err != nil {
		return nil, fmt.Errorf("fetching matters: %w", err)
	}
	matters := make([]Matter, 0, len(projects))
	for _, p := range projects {
		matters = append(matters, Matter{ID: p.ID, Name: p.Name, Client: p.ClientName})
	}
	return matters, nil
}
