package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/smileynet/snapdash/internal/config"
	"github.com/smileynet/snapdash/internal/dashboard"
	"github.com/smileynet/snapdash/internal/dispatch"
	"github.com/smileynet/snapdash/internal/snapper"
	"github.com/smileynet/snapdash/internal/state"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the top-level command structure for snapdash.
type CLI struct {
	Version   kong.VersionFlag `help:"Show version." short:"V"`
	Dashboard DashboardCmd     `cmd:"" default:"1" help:"Open the interactive snapshot dashboard."`
	List      ListCmd          `cmd:"" help:"List snapshots."`
	Create    CreateCmd        `cmd:"" help:"Create a snapshot."`
	Delete    DeleteCmd        `cmd:"" help:"Delete one or more snapshots."`
	Rollback  RollbackCmd      `cmd:"" help:"Roll back the filesystem to a snapshot."`
	Status    StatusCmd        `cmd:"" help:"Show the files a snapshot changed."`
}

// gateway abstracts the backend client for testing the plain commands.
type gateway interface {
	Execute(ctx context.Context, req snapper.Request) snapper.Result
}

// loadConfig loads layered config from user and project paths with env overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/snapdash/config.yaml"),
		".snapdash/config.yaml",
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newGateway builds the backend client from config.
func newGateway(cfg *config.Config) (*snapper.Client, error) {
	if _, err := exec.LookPath(cfg.Tool.Binary); err != nil {
		return nil, fmt.Errorf("%s is not installed", cfg.Tool.Binary)
	}
	return snapper.NewClient(
		snapper.WithBinary(cfg.Tool.Binary),
		snapper.WithConfig(cfg.Tool.Config),
		snapper.WithSudo(cfg.Tool.Sudo),
	), nil
}

// sortKeyByName maps config sort names to state sort keys.
var sortKeyByName = map[string]state.SortKey{
	"number": state.SortNumber,
	"type":   state.SortType,
	"date":   state.SortDate,
	"user":   state.SortUser,
	"space":  state.SortSpace,
}

// --- Dashboard command ---

// DashboardCmd opens the interactive dashboard TUI.
type DashboardCmd struct{}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run builds real dependencies and launches the dashboard TUI.
func (d *DashboardCmd) Run() error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("dashboard: requires a terminal (TTY)")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	gw, err := newGateway(cfg)
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := dashboard.NewModel(ctx,
		dashboard.WithDispatcher(dispatch.New(gw)),
		dashboard.WithDefaultSort(sortKeyByName[cfg.UI.DefaultSort], cfg.UI.SortAscending),
	)

	prog := tea.NewProgram(m, tea.WithAltScreen())
	return d.run(true, prog)
}

// run executes the tea program, enabling testable wiring.
func (d *DashboardCmd) run(isTTY bool, prog teaRunner) error {
	if !isTTY {
		return fmt.Errorf("dashboard: requires a terminal (TTY)")
	}
	_, err := prog.Run()
	return err
}

// --- Plain commands ---

// ListCmd prints the snapshot table to stdout.
type ListCmd struct{}

// Run executes the list command.
func (l *ListCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	gw, err := newGateway(cfg)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	return l.run(os.Stdout, gw)
}

// run executes the listing against the given gateway, enabling testable wiring.
func (l *ListCmd) run(w io.Writer, gw gateway) error {
	res := gw.Execute(context.Background(), snapper.Request{Kind: snapper.OpRefresh})
	listed, err := unwrap[snapper.Listed](res)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\ttype\tdate\tuser\tspace\tcleanup\tdescription")
	for _, snap := range listed.Snapshots {
		date := ""
		if !snap.Date.IsZero() {
			date = snap.Date.Format("2006-01-02 15:04")
		}
		space := ""
		if snap.UsedSpace > 0 {
			space = humanize.IBytes(snap.UsedSpace)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			snap.ID, snap.Type, date, snap.User, space, snap.Cleanup, snap.Description)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if listed.Skipped > 0 {
		fmt.Fprintf(w, "warning: skipped %d unreadable rows\n", listed.Skipped)
	}
	return nil
}

// CreateCmd creates a snapshot with a description.
type CreateCmd struct {
	Description string `arg:"" help:"Snapshot description."`
}

// Run executes the create command.
func (c *CreateCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	gw, err := newGateway(cfg)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	return c.run(os.Stdout, gw)
}

func (c *CreateCmd) run(w io.Writer, gw gateway) error {
	res := gw.Execute(context.Background(), snapper.Request{
		Kind:        snapper.OpCreate,
		Description: c.Description,
	})
	created, err := unwrap[snapper.Created](res)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	fmt.Fprintf(w, "created snapshot %d\n", created.Snapshot.ID)
	return nil
}

// DeleteCmd deletes one or more snapshots. Requires --yes: there is no
// interactive confirmation outside the dashboard.
type DeleteCmd struct {
	IDs []int `arg:"" help:"Snapshot ids to delete."`
	Yes bool  `help:"Confirm the deletion." required:""`
}

// Run executes the delete command.
func (d *DeleteCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	gw, err := newGateway(cfg)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return d.run(os.Stdout, gw)
}

func (d *DeleteCmd) run(w io.Writer, gw gateway) error {
	res := gw.Execute(context.Background(), snapper.Request{
		Kind: snapper.OpDelete,
		IDs:  d.IDs,
	})
	deleted, err := unwrap[snapper.Deleted](res)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	fmt.Fprintf(w, "deleted %s\n", joinInts(deleted.IDs))
	return nil
}

// RollbackCmd rolls the filesystem back to a snapshot. Requires --yes.
type RollbackCmd struct {
	ID  int  `arg:"" help:"Snapshot id to roll back to."`
	Yes bool `help:"Confirm the rollback." required:""`
}

// Run executes the rollback command.
func (r *RollbackCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	gw, err := newGateway(cfg)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return r.run(os.Stdout, gw)
}

func (r *RollbackCmd) run(w io.Writer, gw gateway) error {
	res := gw.Execute(context.Background(), snapper.Request{
		Kind: snapper.OpApply,
		ID:   r.ID,
	})
	applied, err := unwrap[snapper.Applied](res)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	fmt.Fprintf(w, "rolled back to snapshot %d\n", applied.ID)
	return nil
}

// StatusCmd prints the files a snapshot changed.
type StatusCmd struct {
	ID  int `arg:"" help:"Snapshot id to inspect."`
	Pre int `help:"Range start; defaults to the snapshot before ID." default:"0"`
}

// Run executes the status command.
func (s *StatusCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	gw, err := newGateway(cfg)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return s.run(os.Stdout, gw)
}

func (s *StatusCmd) run(w io.Writer, gw gateway) error {
	res := gw.Execute(context.Background(), snapper.Request{
		Kind: snapper.OpStatus,
		ID:   s.ID,
		Pre:  s.Pre,
	})
	fetched, err := unwrap[snapper.StatusFetched](res)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	for _, path := range sortedKeys(fetched.Fields) {
		fmt.Fprintf(w, "%-3s %s\n", fetched.Fields[path], path)
	}
	return nil
}

// --- helpers ---

// unwrap asserts the expected result type, surfacing Failed errors.
func unwrap[T snapper.Result](res snapper.Result) (T, error) {
	var zero T
	if failed, ok := res.(snapper.Failed); ok {
		return zero, failed.Err
	}
	out, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result %T", res)
	}
	return out, nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Exit codes.
const (
	exitSuccess = 0
	exitBackend = 1
	exitSetup   = 2
)

// exitCode maps an error to the appropriate exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var invErr *snapper.InvocationError
	var parseErr *snapper.ParseError
	if errors.As(err, &invErr) || errors.As(err, &parseErr) {
		return exitBackend
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli, kong.Vars{"version": version + " " + commit + " " + date})
	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
