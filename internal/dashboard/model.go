package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/snapdash/internal/dispatch"
	"github.com/smileynet/snapdash/internal/snapper"
	"github.com/smileynet/snapdash/internal/state"
)

// dispatcher abstracts the background worker pool so tests can observe
// dispatched requests without real goroutines.
type dispatcher interface {
	Dispatch(ctx context.Context, req snapper.Request) *dispatch.Handle
	Results() <-chan snapper.Result
}

// Model is the dashboard's Bubble Tea model. It owns the AppState and
// is the single consumer of the dispatcher's result channel: every
// result is folded in on the update goroutine, one at a time, so no
// lock guards the state.
type Model struct {
	ctx  context.Context
	disp dispatcher
	st   state.AppState

	mode     Mode
	input    textinput.Model
	status   viewport.Model
	statusID int
	confirm  confirmState

	spinner spinner.Model
	help    help.Model
	message string

	width  int
	height int

	browseKeys  browseKeys
	inputKeys   inputKeys
	confirmKeys confirmKeys
	statusKeys  statusKeys
}

// Option configures a Model.
type Option func(*Model)

// WithDispatcher sets the background dispatcher. Required in production;
// tests may substitute a stub.
func WithDispatcher(d dispatcher) Option {
	return func(m *Model) { m.disp = d }
}

// WithDefaultSort applies the configured initial sort order.
func WithDefaultSort(key state.SortKey, ascending bool) Option {
	return func(m *Model) { m.st = m.st.WithSort(key, ascending) }
}

// NewModel creates a dashboard model.
func NewModel(ctx context.Context, opts ...Option) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = busyStyle

	ti := textinput.New()
	ti.CharLimit = 120

	m := Model{
		ctx:         ctx,
		st:          state.New(),
		mode:        ModeBrowse,
		input:       ti,
		status:      viewport.New(0, 0),
		spinner:     sp,
		help:        help.New(),
		browseKeys:  BrowseKeyMap(),
		inputKeys:   InputKeyMap(),
		confirmKeys: ConfirmKeyMap(),
		statusKeys:  StatusKeyMap(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// State exposes the current application state for tests.
func (m Model) State() state.AppState { return m.st }

// Init kicks off the spinner, the initial listing, and the single
// outstanding receive on the result channel.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		request(snapper.Request{Kind: snapper.OpRefresh}),
		awaitResult(m.disp.Results()),
	)
}

// Update routes messages by type, then by mode for key input.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.status.Width = msg.Width - 4
		m.status.Height = msg.Height - 6
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case requestMsg:
		return m.startOp(msg.req)

	case ResultMsg:
		return m.reconcile(msg.Result)

	case tea.KeyMsg:
		switch m.mode {
		case ModeBrowse:
			return m.updateBrowse(msg)
		case ModeCreate, ModeFilter:
			return m.updateInput(msg)
		case ModeConfirmDelete, ModeConfirmApply:
			return m.updateConfirm(msg)
		case ModeStatus:
			return m.updateStatus(msg)
		}
	}
	return m, nil
}

// startOp runs the admission gate and, if accepted, hands the request
// to the dispatcher. Refusals surface as a message without dispatching.
func (m Model) startOp(req snapper.Request) (Model, tea.Cmd) {
	st, err := m.st.BeginOperation(req)
	if err != nil {
		m.message = err.Error()
		return m, nil
	}
	m.st = st
	m.message = ""
	m.disp.Dispatch(m.ctx, req)
	return m, nil
}

// reconcile folds one result into the state, re-arms the channel
// receive, and issues any follow-up the result calls for.
func (m Model) reconcile(res snapper.Result) (Model, tea.Cmd) {
	m.st = m.st.Apply(res)
	cmds := []tea.Cmd{awaitResult(m.disp.Results())}

	switch res := res.(type) {
	case snapper.Listed:
		// A clean listing retires any stale transient message.
		m.message = ""
		if res.Skipped > 0 {
			m.message = fmt.Sprintf("skipped %d unreadable rows", res.Skipped)
		}
	case snapper.Created:
		m.message = fmt.Sprintf("created snapshot %d", res.Snapshot.ID)
	case snapper.Deleted:
		m.message = fmt.Sprintf("deleted %d snapshot(s)", len(res.IDs))
	case snapper.Applied:
		// The backend mutated the filesystem; re-list to pick up any
		// snapshots the rollback itself produced.
		m.message = fmt.Sprintf("rolled back to snapshot %d", res.ID)
		cmds = append(cmds, request(snapper.Request{Kind: snapper.OpRefresh}))
	case snapper.StatusFetched:
		if _, ok := m.st.Get(res.ID); ok {
			m.statusID = res.ID
			m.status.SetContent(renderChanges(res.Fields))
			m.status.GotoTop()
			m.mode = ModeStatus
		}
	case snapper.Failed:
		m.message = res.Err.Error()
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateBrowse(msg tea.KeyMsg) (Model, tea.Cmd) {
	k := m.browseKeys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Up):
		m.st = m.st.MoveCursor(-1)
	case key.Matches(msg, k.Down):
		m.st = m.st.MoveCursor(1)
	case key.Matches(msg, k.Select):
		if id := m.st.Cursor(); id >= 0 {
			m.st = m.st.ToggleSelection(id)
		}
	case key.Matches(msg, k.ClearSel):
		m.st = m.st.ClearSelection()
	case key.Matches(msg, k.Refresh):
		return m.startOp(snapper.Request{Kind: snapper.OpRefresh})
	case key.Matches(msg, k.Create):
		m.mode = ModeCreate
		m.input.Placeholder = "description"
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink
	case key.Matches(msg, k.Filter):
		m.mode = ModeFilter
		m.input.Placeholder = "filter"
		m.input.SetValue(m.st.Filter())
		m.input.Focus()
		return m, textinput.Blink
	case key.Matches(msg, k.Delete):
		targets := m.st.DeleteTargets()
		if len(targets) == 0 {
			return m, nil
		}
		m.confirm = confirmState{kind: snapper.OpDelete, ids: targets}
		m.mode = ModeConfirmDelete
	case key.Matches(msg, k.Apply):
		snap, ok := m.st.CursorSnapshot()
		if !ok {
			return m, nil
		}
		m.confirm = confirmState{kind: snapper.OpApply, ids: []int{snap.ID}}
		m.mode = ModeConfirmApply
	case key.Matches(msg, k.Status):
		snap, ok := m.st.CursorSnapshot()
		if !ok {
			return m, nil
		}
		return m.startOp(snapper.Request{
			Kind: snapper.OpStatus,
			ID:   snap.ID,
			Pre:  snap.PreNumber,
		})
	case key.Matches(msg, k.Sort):
		m.st = m.st.SetSort(sortKeyFor(msg.String()))
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.inputKeys.Cancel):
		if m.mode == ModeFilter {
			// Filtering is live; esc clears rather than restores.
			m.st = m.st.SetFilter("")
		}
		m.mode = ModeBrowse
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.inputKeys.Confirm):
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.mode = ModeBrowse
		m.input.Blur()
		if mode == ModeCreate {
			if value == "" {
				return m, nil
			}
			return m.startOp(snapper.Request{Kind: snapper.OpCreate, Description: value})
		}
		m.st = m.st.SetFilter(value)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == ModeFilter {
		m.st = m.st.SetFilter(m.input.Value())
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.confirmKeys.Cancel):
		m.mode = ModeBrowse
		return m, nil
	case key.Matches(msg, m.confirmKeys.Confirm):
		confirm := m.confirm
		m.mode = ModeBrowse
		switch confirm.kind {
		case snapper.OpDelete:
			return m.startOp(snapper.Request{Kind: snapper.OpDelete, IDs: confirm.ids})
		case snapper.OpApply:
			return m.startOp(snapper.Request{Kind: snapper.OpApply, ID: confirm.ids[0]})
		}
	}
	return m, nil
}

func (m Model) updateStatus(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.statusKeys.Back) {
		m.mode = ModeBrowse
		return m, nil
	}
	var cmd tea.Cmd
	m.status, cmd = m.status.Update(msg)
	return m, cmd
}

// sortKeyFor maps the 1-5 sort keystrokes to sort keys.
func sortKeyFor(keystroke string) state.SortKey {
	switch keystroke {
	case "2":
		return state.SortType
	case "3":
		return state.SortDate
	case "4":
		return state.SortUser
	case "5":
		return state.SortSpace
	default:
		return state.SortNumber
	}
}

// renderChanges formats a path → change-code map with paths in stable
// order for the status viewport.
func renderChanges(fields map[string]string) string {
	if len(fields) == 0 {
		return mutedText.Render("no changes")
	}
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "%-3s %s\n", fields[p], p)
	}
	return b.String()
}
