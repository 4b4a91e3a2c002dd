package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/christopherklint97/matterclock/internal/calendar"
	"github.com/christopherklint97/matterclock/internal/clockify"
	"github.com/christopherklint97/matterclock/internal/config"
	"github.com/christopherklint97/matterclock/internal/notify"
	"github.com/christopherklint97/matterclock/internal/records"
	"github.com/christopherklint97/matterclock/internal/store"
	"github.com/christopherklint97/matterclock/internal/suggest"
	"github.com/christopherklint97/matterclock/internal/timer"
	"github.com/christopherklint97/matterclock/internal/tui"
	"github.com/spf13/cobra"
	"github.com/tj/go-naturaldate"
)

var rootCmd = &cobra.Command{
	Use:          "matterclock",
	Short:        "Matter timer for legal work",
	Long:         "matterclock times billable work, suggests the matter it belongs to, and logs finished sessions locally and to Clockify.",
	SilenceUsage: true,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a timer",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running timer and log the session",
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running timer",
	RunE:  runStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the running timer without logging it",
	RunE:  runReset,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Show which matter a new timer would suggest",
	RunE:  runSuggest,
}

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's logged sessions",
	RunE:  runToday,
}

var mattersCmd = &cobra.Command{
	Use:   "matters",
	Short: "List matters from Clockify",
	RunE:  runMatters,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive timer",
	RunE:  runTUI,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Write debug logs")

	for _, c := range []*cobra.Command{startCmd, suggestCmd, tuiCmd} {
		c.Flags().String("path", "", "Current navigation path, e.g. /matters/abc-123")
		c.Flags().String("route-matter", "", "Matter id already extracted from the route")
	}
	startCmd.Flags().String("matter", "", "Bill the session to this matter")
	startCmd.Flags().String("at", "", `When the work started, e.g. "15 minutes ago"`)
	stopCmd.Flags().String("notes", "", "Notes for the time entry")
	stopCmd.Flags().String("matter", "", "Bill the session to this matter")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(mattersCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds everything a command needs. Close releases it.
type app struct {
	cfg      *config.Config
	db       *store.DB
	records  *records.Service
	notifier *notify.Notifier
	logger   *slog.Logger
	logFile  *os.File
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	debug, _ := cmd.Flags().GetBool("debug")
	logger, logFile := newLogger(cfg.DataDir, debug)

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		notifier: notify.New(cfg.Notifications.Enabled, logger),
		logger:   logger,
		logFile:  logFile,
	}

	opts := []records.Option{records.WithLogger(logger)}
	if cfg.Remote() {
		client := clockify.NewClient(cfg.Clockify.APIKey, cfg.Clockify.BaseURL, time.Hour, logger)
		workspaceID, err := resolveWorkspaceID(cmd.Context(), cfg, client)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, records.WithRemote(client, workspaceID, cfg.Clockify.Billable))
	}
	a.records = records.New(db, opts...)

	return a, nil
}

func (a *app) Close() {
	a.db.Close()
	if a.logFile != nil {
		a.logFile.Close()
	}
}

func newLogger(dataDir string, debug bool) (*slog.Logger, *os.File) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}
	f, err := os.OpenFile(filepath.Join(dataDir, "matterclock.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), f
}

func resolveWorkspaceID(ctx context.Context, cfg *config.Config, client *clockify.Client) (string, error) {
	if cfg.Clockify.WorkspaceID != "" {
		return cfg.Clockify.WorkspaceID, nil
	}
	user, err := client.GetUser(ctx)
	if err != nil {
		return "", fmt.Errorf("getting user info: %w", err)
	}
	return user.DefaultWorkspace, nil
}

func (a *app) newTimer() *timer.Timer {
	return timer.New(a.records, timer.Config{
		TickInterval: a.cfg.TickInterval(),
		Windows:      a.cfg.Windows(),
		Logger:       a.logger,
	})
}

// suggestionContext builds the context from flags and the stored history.
func (a *app) suggestionContext(cmd *cobra.Command) (suggest.Context, error) {
	path, _ := cmd.Flags().GetString("path")
	routeMatter, _ := cmd.Flags().GetString("route-matter")

	recent, err := a.records.Recent(cmd.Context(), a.cfg.Timer.HistoryLimit)
	if err != nil {
		return suggest.Context{}, err
	}
	return suggest.NewContext(path, routeMatter, recent), nil
}

// resume restores the persisted session into a fresh timer, or returns a nil timer if none is running.
func (a *app) resume() (*timer.Timer, error) {
	session, err := a.db.LoadSession()
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	tm := a.newTimer()
	if err := tm.Restore(*session); err != nil {
		tm.Close()
		return nil, fmt.Errorf("restoring session: %w", err)
	}
	return tm, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if session, err := a.db.LoadSession(); err != nil {
		return err
	} else if session != nil {
		return fmt.Errorf("a timer is already running since %s; stop or reset it first", session.StartTime.Local().Format("15:04"))
	}

	sc, err := a.suggestionContext(cmd)
	if err != nil {
		return err
	}

	tm := a.newTimer()
	defer tm.Close()

	at := time.Now()
	if v, _ := cmd.Flags().GetString("at"); v != "" {
		at, err = naturaldate.Parse(v, time.Now(), naturaldate.WithDirection(naturaldate.Past))
		if err != nil {
			return fmt.Errorf("parsing --at %q: %w", v, err)
		}
	}
	if err := tm.StartAt(cmd.Context(), sc, at); err != nil {
		return err
	}

	if matter, _ := cmd.Flags().GetString("matter"); matter != "" {
		if err := tm.UpdateMatter(matter); err != nil {
			return err
		}
	}

	s := tm.Snapshot()
	if err := a.db.SaveSession(s); err != nil {
		return err
	}

	fmt.Printf("Timer started at %s\n", s.StartTime.Local().Format("15:04"))
	printSuggestion(s.Suggestion())
	if s.SelectedMatterID != "" {
		fmt.Printf("Billing to: %s\n", s.SelectedMatterID)
	}
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tm, err := a.resume()
	if err != nil {
		return err
	}
	if tm == nil {
		return errors.New("no timer running")
	}
	defer tm.Close()

	if matter, _ := cmd.Flags().GetString("matter"); matter != "" {
		if err := tm.UpdateMatter(matter); err != nil {
			return err
		}
	}

	before := tm.Snapshot()
	notes, _ := cmd.Flags().GetString("notes")
	if notes == "" {
		notes = before.Notes
	}
	if notes == "" {
		notes = a.calendarNotes(cmd.Context(), before)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	committed, err := stopWithNotes(ctx, tm, notes)
	if err != nil {
		a.notifier.CommitFailed(err)
		if saveErr := a.db.SaveSession(tm.Snapshot()); saveErr != nil {
			a.logger.Error("saving session after failed stop", "error", saveErr)
		}
		if errors.Is(err, records.ErrNoMatter) {
			return fmt.Errorf("%w; pass --matter (suggested: %s)", err, orNone(before.SuggestedMatterID))
		}
		return fmt.Errorf("%w; the timer is still running, try again", err)
	}

	if err := a.db.ClearSession(); err != nil {
		return err
	}
	a.notifier.Committed(committed.MatterID, committed.DurationMinutes)
	fmt.Printf("Logged %d min to %s\n", committed.DurationMinutes, committed.MatterID)
	return nil
}

// stopWithNotes keeps notes on the session before committing, so a failed
// stop persists them for the retry.
func stopWithNotes(ctx context.Context, tm *timer.Timer, notes string) (timer.Commit, error) {
	if notes != tm.Snapshot().Notes {
		if err := tm.UpdateNotes(notes); err != nil {
			return timer.Commit{}, err
		}
	}
	return tm.Stop(ctx, notes)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tm, err := a.resume()
	if err != nil {
		return err
	}
	if tm == nil {
		fmt.Println("No timer running.")
		return nil
	}
	defer tm.Close()

	s := tm.Snapshot()
	fmt.Printf("Running since %s  %s\n", s.StartTime.Local().Format("15:04"), tui.FormatElapsed(s.ElapsedSeconds))
	fmt.Printf("Matter: %s\n", orNone(s.SelectedMatterID))
	printSuggestion(s.Suggestion())
	if s.Notes != "" {
		fmt.Printf("Notes: %s\n", s.Notes)
	}
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tm, err := a.resume()
	if err != nil {
		return err
	}
	if tm == nil {
		fmt.Println("No timer running.")
		return nil
	}
	defer tm.Close()

	prev := tm.Reset()
	a.discard(cmd.Context(), prev)
	if err := a.db.ClearSession(); err != nil {
		return err
	}
	fmt.Printf("Discarded %s\n", tui.FormatElapsed(prev.ElapsedSeconds))
	return nil
}

func (a *app) discard(ctx context.Context, s timer.State) {
	if err := a.records.Discard(ctx, s.ActiveEntryID); err != nil {
		a.logger.Warn("discarding running entry", "entry", s.ActiveEntryID, "error", err)
	}
}

func runSuggest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sc, err := a.suggestionContext(cmd)
	if err != nil {
		return err
	}
	printSuggestion(a.cfg.Windows().Suggest(sc, time.Now()))
	return nil
}

func runToday(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.db.GetTodayEntries()
	if err != nil {
		return fmt.Errorf("fetching today's entries: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No sessions logged today.")
		return nil
	}

	totalMinutes := 0
	fmt.Println("Today's sessions:")
	fmt.Println()
	for _, e := range entries {
		end := "running"
		if !e.EndTime.IsZero() {
			end = e.EndTime.Local().Format("15:04")
		}
		fmt.Printf("  %s–%-7s  %4dmin  %-20s  %s\n",
			e.StartTime.Local().Format("15:04"),
			end,
			e.Minutes,
			orNone(e.MatterID),
			e.Notes,
		)
		totalMinutes += e.Minutes
	}

	fmt.Printf("\nTotal: %dh %dmin (%d sessions)\n", totalMinutes/60, totalMinutes%60, len(entries))
	return nil
}

func runMatters(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.Remote() {
		return errors.New("clockify API key not configured; run 'matterclock config' to set it up")
	}

	matters, err := a.records.Matters(cmd.Context())
	if err != nil {
		return err
	}
	if len(matters) == 0 {
		fmt.Println("No matters found.")
		return nil
	}

	fmt.Printf("Found %d matters:\n\n", len(matters))
	for _, m := range matters {
		if m.Client != "" {
			fmt.Printf("  %s  %s / %s\n", m.ID, m.Client, m.Name)
			continue
		}
		fmt.Printf("  %s  %s\n", m.ID, m.Name)
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tm, err := a.resume()
	if err != nil {
		return err
	}
	if tm == nil {
		tm = a.newTimer()
	}
	defer tm.Close()

	names := make(map[string]string)
	if a.cfg.Remote() {
		matters, err := a.records.Matters(cmd.Context())
		if err != nil {
			a.logger.Warn("fetching matters for display", "error", err)
		}
		for _, m := range matters {
			names[m.ID] = m.Name
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go tm.Run(ctx)

	sc := func() (suggest.Context, error) {
		return a.suggestionContext(cmd)
	}
	view := tui.NewApp(tm, sc, names, tui.Hooks{
		Discarded: func(s timer.State) {
			a.discard(ctx, s)
		},
		Stopped: func(s timer.State, c timer.Commit, err error) {
			if err != nil {
				a.notifier.CommitFailed(err)
				return
			}
			a.notifier.Committed(c.MatterID, c.DurationMinutes)
		},
		DefaultNotes: func(s timer.State) string {
			return a.calendarNotes(ctx, s)
		},
	})

	if _, err := tea.NewProgram(view).Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}

	s := view.Session()
	if s.Status == timer.StatusIdle {
		return a.db.ClearSession()
	}
	if err := a.db.SaveSession(s); err != nil {
		return err
	}
	fmt.Printf("Timer still running (%s). Use 'matterclock stop' to log it.\n", tui.FormatElapsed(s.ElapsedSeconds))
	return nil
}

// calendarNotes returns calendar events overlapping the session as notes.
func (a *app) calendarNotes(ctx context.Context, s timer.State) string {
	if !a.cfg.Calendar.Enabled || a.cfg.Calendar.Source == "" || s.StartTime.IsZero() {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	events, err := calendar.Fetch(ctx, a.cfg.Calendar.Source, s.StartTime, time.Now())
	if err != nil {
		a.logger.Warn("fetching calendar events", "error", err)
		return ""
	}
	return calendar.FormatNotes(events)
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if err := config.WriteDefault(configPath); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	editor, err := editorCommand(os.Getenv("EDITOR"), configPath)
	if err != nil {
		fmt.Printf("Could not open editor (%v). Config file is at: %s\n", err, configPath)
		return nil
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor.Path)

	editor.Stdin = os.Stdin
	editor.Stdout = os.Stdout
	editor.Stderr = os.Stderr
	return editor.Run()
}

// editorCommand resolves $EDITOR (which may carry arguments, e.g. "code -w")
// on PATH, falling back to vi.
func editorCommand(editor, path string) (*exec.Cmd, error) {
	fields := strings.Fields(editor)
	if len(fields) == 0 {
		fields = []string{"vi"}
	}
	bin, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, err
	}
	args := append(fields[1:], path)
	return exec.Command(bin, args...), nil
}

func printSuggestion(s suggest.Suggestion) {
	if !s.Found() {
		fmt.Println("No matter suggestion.")
		return
	}
	fmt.Printf("Suggested matter: %s (%s)\n", s.MatterID, suggest.ReasonLabel(s.Reason))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
