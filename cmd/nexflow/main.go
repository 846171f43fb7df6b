package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aristath/nexflow/internal/config"
	"github.com/aristath/nexflow/internal/events"
	"github.com/aristath/nexflow/internal/persistence"
	"github.com/aristath/nexflow/internal/scheduler"
	"github.com/aristath/nexflow/internal/tui"
	"github.com/aristath/nexflow/internal/workspace"
)

// options holds the command-line flags.
type options struct {
	project string // project name to open in the TUI
	dbPath  string // overrides storage.db_path
	list    bool   // print projects and exit
	check   bool   // schedule every project and exit
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("nexflow", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.project, "project", "", "project to open (created if missing)")
	fs.StringVar(&opts.dbPath, "db", "", "database path (default from config)")
	fs.BoolVar(&opts.list, "list", false, "list projects and exit")
	fs.BoolVar(&opts.check, "check", false, "schedule every project, report failures and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.list && opts.check {
		return options{}, errors.New("-list and -check are mutually exclusive")
	}
	return opts, nil
}

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if opts.dbPath != "" {
		cfg.Storage.DBPath = opts.dbPath
	}
	if opts.project == "" {
		opts.project = cfg.Workspace.DefaultProject
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	bus := events.NewEventBus()
	defer bus.Close()

	ws := workspace.New(workspace.Config{
		RemovalPolicy:    cfg.Scheduler.Policy(),
		ConcurrencyLimit: cfg.Workspace.ConcurrencyLimit,
	}, store, bus, logger)

	switch {
	case opts.list:
		err = listProjects(ctx, ws, os.Stdout)
	case opts.check:
		err = checkProjects(ctx, ws, os.Stdout)
	default:
		err = runTUI(ctx, stop, ws, bus, cfg, opts.project, logger)
	}
	if err != nil {
		logger.Error("exiting with error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds a JSON file logger at the configured level. The TUI owns
// the terminal, so nothing is written to stdout or stderr.
func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	if lc.File == "" {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lc.File), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{lc.File}
	zc.ErrorOutputPaths = []string{lc.File}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// openStore opens the SQLite database behind the retrying, circuit-breaking
// wrapper.
func openStore(ctx context.Context, sc config.StorageConfig, logger *zap.Logger) (*persistence.ResilientStore, error) {
	if err := os.MkdirAll(filepath.Dir(sc.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := persistence.NewSQLiteStore(ctx, sc.DBPath)
	if err != nil {
		return nil, err
	}
	return persistence.NewResilientStore(db, sc.Retry.Persistence(), logger), nil
}

// listProjects prints one line per stored project.
func listProjects(ctx context.Context, ws *workspace.Workspace, out io.Writer) error {
	projects, err := ws.List(ctx)
	if err != nil {
		return fmt.Errorf("listing projects: %w", err)
	}
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTASKS\tUPDATED\tID")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.Name, p.TaskCount, p.UpdatedAt.Local().Format(time.DateTime), p.ID)
	}
	return tw.Flush()
}

// checkProjects schedules every project and reports the ones that cannot be
// scheduled. It fails if any project is unschedulable.
func checkProjects(ctx context.Context, ws *workspace.Workspace, out io.Writer) error {
	outcomes, err := ws.ScheduleAll(ctx)
	if err != nil {
		return fmt.Errorf("scheduling projects: %w", err)
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			var cycle *scheduler.CycleError
			if errors.As(o.Err, &cycle) {
				fmt.Fprintf(out, "FAIL %s: dependency cycle %s\n", o.Name, strings.Join(cycle.Path, " -> "))
			} else {
				fmt.Fprintf(out, "FAIL %s: %v\n", o.Name, o.Err)
			}
			continue
		}
		fmt.Fprintf(out, "ok   %s: %d tasks, ends at %g, critical %s\n",
			o.Name, len(o.Result.Order), o.Result.ProjectEnd, strings.Join(o.Result.CriticalPath, " -> "))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d projects cannot be scheduled", failed, len(outcomes))
	}
	return nil
}

const shutdownTimeout = 10 * time.Second

// waitForExit blocks until the program reports its exit on errChan. If ctx is
// cancelled first, quit is called and the exit is awaited for up to timeout.
func waitForExit(ctx context.Context, errChan <-chan error, quit func(), timeout time.Duration, logger *zap.Logger) error {
	select {
	case err := <-errChan:
		// Normal TUI exit (user pressed 'q')
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, cleaning up")
	quit()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-errChan:
		return err
	case <-timer.C:
		logger.Warn("shutdown timeout exceeded, forcing exit", zap.Duration("timeout", timeout))
		return nil
	}
}

// runTUI opens the named project and runs the interface until the user quits
// or a signal arrives.
func runTUI(ctx context.Context, stop context.CancelFunc, ws *workspace.Workspace, bus *events.EventBus, cfg *config.NexflowConfig, project string, logger *zap.Logger) error {
	projectID, err := ws.OpenByName(ctx, project)
	if err != nil {
		return fmt.Errorf("opening project %q: %w", project, err)
	}
	logger.Info("project opened", zap.String("project", project), zap.String("id", projectID))

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("getting home directory: %w", err)
	}

	model := tui.New(ctx, ws, bus, tui.Options{
		ProjectID:         projectID,
		Config:            cfg,
		GlobalConfigPath:  filepath.Join(homeDir, ".nexflow", "config.json"),
		ProjectConfigPath: filepath.Join(".nexflow", "config.json"),
	})

	// Start Bubble Tea program in a goroutine so main can handle shutdown
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	runErr := waitForExit(ctx, errChan, func() {
		// Restore default signal handling so a second Ctrl+C force-exits
		stop()
		p.Quit()
	}, shutdownTimeout, logger)

	// Every successful mutation is already saved; Flush covers projects
	// loaded but never written.
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ws.Flush(flushCtx); err != nil {
		logger.Error("failed to flush projects", zap.Error(err))
		return errors.Join(runErr, fmt.Errorf("saving projects: %w", err))
	}
	logger.Info("shutdown complete")
	return runErr
}
