package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/smileynet/snapdash/internal/snapper"
	"github.com/smileynet/snapdash/internal/state"
)

const dateLayout = "2006-01-02 15:04"

// columnLabels in table order, indexed by the sort key that orders them.
var columnLabels = map[state.SortKey]string{
	state.SortNumber: "#",
	state.SortType:   "type",
	state.SortDate:   "date",
	state.SortUser:   "user",
	state.SortSpace:  "space",
}

// View renders the full dashboard frame.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	switch m.mode {
	case ModeConfirmDelete, ModeConfirmApply:
		b.WriteString(m.confirm.View(m.width))
	case ModeStatus:
		b.WriteString(m.statusView())
	default:
		b.WriteString(m.browseView())
	}

	b.WriteString("\n")
	if bar := m.messageView(); bar != "" {
		b.WriteString(bar)
		b.WriteString("\n")
	}
	b.WriteString(m.helpView())
	return b.String()
}

// headerView shows the title, the active filter, and a spinner while
// any operation is in flight.
func (m Model) headerView() string {
	parts := []string{titleStyle.Render("snapdash")}
	if f := m.st.Filter(); f != "" {
		parts = append(parts, mutedText.Render("filter: "+f))
	}
	if m.st.Busy() {
		parts = append(parts, busyStyle.Render(m.spinner.View()+" working"))
	}
	return strings.Join(parts, "  ")
}

// browseView renders the snapshot table beside the detail pane.
func (m Model) browseView() string {
	_, detailW := PaneWidths(m.width)
	table := m.tableView()
	if detailW < 20 {
		return table
	}
	detail := m.detailView(detailW)
	return lipgloss.JoinHorizontal(lipgloss.Top, table, detail)
}

func (m Model) tableView() string {
	rows := m.st.Visible()
	if len(rows) == 0 {
		if m.st.Filter() != "" {
			return mutedText.Render("no snapshots match the filter")
		}
		return mutedText.Render("no snapshots — press c to create one")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(m.tableHeader()))
	for _, snap := range rows {
		b.WriteByte('\n')
		b.WriteString(m.tableRow(snap))
	}
	return b.String()
}

// tableHeader renders the column labels with an arrow on the active
// sort column.
func (m Model) tableHeader() string {
	sortKey, asc := m.st.Sort()
	label := func(key state.SortKey) string {
		l := columnLabels[key]
		if key != sortKey {
			return l
		}
		if asc {
			return l + "↑"
		}
		return l + "↓"
	}
	return fmt.Sprintf("    %5s  %-7s %-16s  %-8s %10s  %s",
		label(state.SortNumber), label(state.SortType), label(state.SortDate),
		label(state.SortUser), label(state.SortSpace), "description")
}

func (m Model) tableRow(snap snapper.Snapshot) string {
	var b strings.Builder
	if snap.ID == m.st.Cursor() {
		b.WriteString(CursorMarker)
	} else {
		b.WriteString("  ")
	}
	if m.st.Selected(snap.ID) {
		b.WriteString(SelectMarker + " ")
	} else {
		b.WriteString("  ")
	}

	date := ""
	if !snap.Date.IsZero() {
		date = snap.Date.Format(dateLayout)
	}
	space := ""
	if snap.UsedSpace > 0 {
		space = humanize.IBytes(snap.UsedSpace)
	}
	fmt.Fprintf(&b, "%5d  %-7s %-16s  %-8s %10s  %s",
		snap.ID, TypeBadge(snap.Type), date, snap.User, space, snap.Description)

	if kind, busy := m.st.InFlight(snap.ID); busy {
		b.WriteString(busyStyle.Render("  [" + kind.String() + "…]"))
	}
	return b.String()
}

// detailView renders the highlighted snapshot's fields and, when a
// status query has run, its change list.
func (m Model) detailView(width int) string {
	snap, ok := m.st.CursorSnapshot()
	if !ok {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", titleStyle.Render("snapshot"), snap.ID)
	fmt.Fprintf(&b, "type     %s\n", TypeBadge(snap.Type))
	if !snap.Date.IsZero() {
		fmt.Fprintf(&b, "date     %s\n", snap.Date.Format(dateLayout))
	}
	if snap.User != "" {
		fmt.Fprintf(&b, "user     %s\n", snap.User)
	}
	if snap.Cleanup != "" {
		fmt.Fprintf(&b, "cleanup  %s\n", snap.Cleanup)
	}
	if snap.UsedSpace > 0 {
		fmt.Fprintf(&b, "space    %s\n", humanize.IBytes(snap.UsedSpace))
	}
	if snap.Type == snapper.TypePost && snap.PreNumber > 0 {
		fmt.Fprintf(&b, "pre      %d\n", snap.PreNumber)
	}
	if snap.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", snap.Description)
	}
	if len(snap.Changes) > 0 {
		fmt.Fprintf(&b, "\n%s\n%s", headerStyle.Render("changes"), renderChanges(snap.Changes))
	}

	return UnfocusedBorder().Padding(0, 1).Width(width - 2).Render(b.String())
}

func (m Model) statusView() string {
	title := titleStyle.Render(fmt.Sprintf("changes in snapshot %d", m.statusID))
	return title + "\n\n" + m.status.View()
}

// messageView renders the transient message bar: admission refusals and
// operation errors in red, everything else muted.
func (m Model) messageView() string {
	if err := m.st.LastError(); err != nil && m.message == err.Error() {
		return errorStyle.Render(m.message)
	}
	if m.message == "" {
		return ""
	}
	return mutedText.Render(m.message)
}

func (m Model) helpView() string {
	switch m.mode {
	case ModeCreate, ModeFilter:
		return m.input.View() + "\n" + m.help.View(m.inputKeys)
	case ModeConfirmDelete, ModeConfirmApply:
		return m.help.View(m.confirmKeys)
	case ModeStatus:
		return m.help.View(m.statusKeys)
	default:
		return m.help.View(m.browseKeys)
	}
}
