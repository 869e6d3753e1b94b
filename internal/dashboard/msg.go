// Package dashboard implements the interactive snapshot TUI: a table
// pane over the live snapshot set with a detail pane, confirmation
// screens for destructive actions, and a reconciler folding background
// operation results into the shared state one at a time.
package dashboard

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/snapdash/internal/snapper"
)

// Mode represents the current dashboard view mode.
type Mode int

const (
	ModeBrowse        Mode = iota // Browsing the snapshot table.
	ModeCreate                    // Entering a description for a new snapshot.
	ModeFilter                    // Editing the filter needle (live).
	ModeConfirmDelete             // Awaiting confirmation for a delete.
	ModeConfirmApply              // Awaiting confirmation for a rollback.
	ModeStatus                    // Viewing a snapshot's change list.
)

// ResultMsg carries one operation result from the dispatcher's channel
// into the update loop. The model re-arms the receive after each one,
// so results are reconciled strictly one at a time, in channel order.
type ResultMsg struct {
	Result snapper.Result
}

// requestMsg asks the update loop to admit and dispatch an operation.
// Routing requests through a message keeps admission on the update
// goroutine, where the state may be mutated.
type requestMsg struct {
	req snapper.Request
}

// request wraps an operation request as a command.
func request(req snapper.Request) tea.Cmd {
	return func() tea.Msg { return requestMsg{req: req} }
}

// awaitResult blocks on the dispatcher channel and delivers the next
// result. Exactly one of these is outstanding at any time.
func awaitResult(ch <-chan snapper.Result) tea.Cmd {
	return func() tea.Msg { return ResultMsg{Result: <-ch} }
}
