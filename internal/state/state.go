// Package state holds the dashboard's single source of truth. AppState
// is a value type with copy-on-write semantics: every mutation returns a
// new state, so applying a result is a pure reducer and is testable
// without spawning real processes. Only the owning UI loop may call the
// mutation methods.
package state

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/smileynet/snapdash/internal/snapper"
)

// SortKey selects the column snapshots are ordered by.
type SortKey int

const (
	SortNumber SortKey = iota
	SortType
	SortDate
	SortUser
	SortSpace
)

// Reserved in-flight slots for operations without a single snapshot
// target. Snapshot ids are never negative.
const (
	SlotCreate  = -1
	SlotBatch   = -2
	SlotRefresh = -3
)

// ConflictError reports an admission refusal: the target already has an
// operation in flight.
type ConflictError struct {
	Target int
	Kind   snapper.OpKind
}

func (e *ConflictError) Error() string {
	switch e.Target {
	case SlotCreate:
		return fmt.Sprintf("state: a %s is already in flight", e.Kind)
	case SlotBatch:
		return fmt.Sprintf("state: a batch %s is already in flight", e.Kind)
	case SlotRefresh:
		return fmt.Sprintf("state: a %s is already in flight", e.Kind)
	default:
		return fmt.Sprintf("state: snapshot %d already has a %s in flight", e.Target, e.Kind)
	}
}

// AppState is the in-memory view of the snapshot set plus UI selection,
// filter, sort, and the operation-in-flight registry.
type AppState struct {
	snapshots []snapper.Snapshot
	selection map[int]struct{}
	cursor    int // snapshot id; -1 when no row is highlighted
	filter    string
	sortKey   SortKey
	sortAsc   bool
	inFlight  map[int]snapper.OpKind
	lastErr   error
}

// New returns an empty AppState sorted ascending by number.
func New() AppState {
	return AppState{
		selection: map[int]struct{}{},
		cursor:    -1,
		sortAsc:   true,
		inFlight:  map[int]snapper.OpKind{},
	}
}

// WithSort returns the state with the given initial sort order. Unlike
// SetSort it never toggles, so it is suitable for applying configured
// defaults before the first render.
func (s AppState) WithSort(key SortKey, ascending bool) AppState {
	s.sortKey = key
	s.sortAsc = ascending
	return s
}

// --- read accessors ---

// Snapshots returns the raw snapshot set in insertion order.
func (s AppState) Snapshots() []snapper.Snapshot { return s.snapshots }

// Visible returns the rows the user currently sees: filtered, then
// sorted by the active key with ascending id as the tie-break.
func (s AppState) Visible() []snapper.Snapshot {
	var rows []snapper.Snapshot
	for _, snap := range s.snapshots {
		if s.matches(snap) {
			rows = append(rows, snap)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := compare(rows[i], rows[j], s.sortKey)
		if c == 0 {
			return rows[i].ID < rows[j].ID
		}
		if s.sortAsc {
			return c < 0
		}
		return c > 0
	})
	return rows
}

// Cursor returns the highlighted snapshot id, or -1 when none.
func (s AppState) Cursor() int { return s.cursor }

// CursorSnapshot returns the highlighted snapshot, if any.
func (s AppState) CursorSnapshot() (snapper.Snapshot, bool) {
	return s.lookup(s.cursor)
}

// Get returns the snapshot with the given id, if present.
func (s AppState) Get(id int) (snapper.Snapshot, bool) {
	return s.lookup(id)
}

// Selection returns the selected ids in ascending order.
func (s AppState) Selection() []int {
	ids := make([]int, 0, len(s.selection))
	for id := range s.selection {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Selected reports whether the given id is in the selection set.
func (s AppState) Selected(id int) bool {
	_, ok := s.selection[id]
	return ok
}

// DeleteTargets returns the ids a delete should act on: the selection
// set when non-empty, otherwise the cursor row.
func (s AppState) DeleteTargets() []int {
	if len(s.selection) > 0 {
		return s.Selection()
	}
	if _, ok := s.lookup(s.cursor); ok {
		return []int{s.cursor}
	}
	return nil
}

// Filter returns the active filter needle.
func (s AppState) Filter() string { return s.filter }

// Sort returns the active sort key and direction.
func (s AppState) Sort() (SortKey, bool) { return s.sortKey, s.sortAsc }

// InFlight returns the operation registered for a target, if any.
func (s AppState) InFlight(target int) (snapper.OpKind, bool) {
	k, ok := s.inFlight[target]
	return k, ok
}

// Busy reports whether any operation is in flight.
func (s AppState) Busy() bool { return len(s.inFlight) > 0 }

// LastError returns the most recent surfaced error, or nil.
func (s AppState) LastError() error { return s.lastErr }

// --- admission ---

// BeginOperation is the sole admission gate. It registers the request's
// targets as in flight, or refuses with a *ConflictError if any target
// already has an operation pending. It must be called on the owning
// thread before any background work is spawned.
func (s AppState) BeginOperation(req snapper.Request) (AppState, error) {
	targets := requestTargets(req)
	for _, t := range targets {
		if kind, ok := s.inFlight[t]; ok {
			return s, &ConflictError{Target: t, Kind: kind}
		}
	}
	inFlight := cloneRegistry(s.inFlight)
	for _, t := range targets {
		inFlight[t] = req.Kind
	}
	s.inFlight = inFlight
	return s, nil
}

// --- reducer ---

// Apply folds one operation result into the state. It is the only path
// by which snapshots, selection, and the in-flight registry change
// after dispatch. Results referencing ids absent from the state are
// applied best-effort and never panic.
func (s AppState) Apply(res snapper.Result) AppState {
	switch res := res.(type) {
	case snapper.Listed:
		return s.applyListed(res)
	case snapper.Created:
		return s.applyCreated(res)
	case snapper.Deleted:
		return s.applyDeleted(res)
	case snapper.Applied:
		s.inFlight = deleteKeys(s.inFlight, res.ID)
		return s
	case snapper.StatusFetched:
		return s.applyStatus(res)
	case snapper.Failed:
		s.inFlight = deleteKeys(s.inFlight, requestTargets(res.Request)...)
		s.lastErr = res.Err
		return s
	default:
		return s
	}
}

// applyListed replaces the snapshot set wholesale. Selection ids absent
// from the new set are dropped; in-flight entries for absent ids are
// left alone — their operations are still authoritative and will clear
// themselves when their results arrive.
func (s AppState) applyListed(res snapper.Listed) AppState {
	s.snapshots = append([]snapper.Snapshot(nil), res.Snapshots...)

	selection := map[int]struct{}{}
	for id := range s.selection {
		if _, ok := s.lookup(id); ok {
			selection[id] = struct{}{}
		}
	}
	s.selection = selection
	s.inFlight = deleteKeys(s.inFlight, SlotRefresh)
	return s.clampCursor()
}

func (s AppState) applyCreated(res snapper.Created) AppState {
	s.snapshots = append(append([]snapper.Snapshot(nil), s.snapshots...), res.Snapshot)
	s.inFlight = deleteKeys(s.inFlight, SlotCreate)
	s.lastErr = nil
	return s.clampCursor()
}

func (s AppState) applyDeleted(res snapper.Deleted) AppState {
	gone := map[int]struct{}{}
	for _, id := range res.IDs {
		gone[id] = struct{}{}
	}

	var kept []snapper.Snapshot
	for _, snap := range s.snapshots {
		if _, dropped := gone[snap.ID]; !dropped {
			kept = append(kept, snap)
		}
	}
	s.snapshots = kept

	selection := map[int]struct{}{}
	for id := range s.selection {
		if _, dropped := gone[id]; !dropped {
			selection[id] = struct{}{}
		}
	}
	s.selection = selection

	s.inFlight = deleteKeys(s.inFlight, append([]int{SlotBatch}, res.IDs...)...)
	return s.clampCursor()
}

// applyStatus merges fetched fields into the matching record. A target
// deleted while the query ran is discarded without error.
func (s AppState) applyStatus(res snapper.StatusFetched) AppState {
	s.inFlight = deleteKeys(s.inFlight, res.ID)
	for i, snap := range s.snapshots {
		if snap.ID != res.ID {
			continue
		}
		snapshots := append([]snapper.Snapshot(nil), s.snapshots...)
		snapshots[i].Changes = res.Fields
		s.snapshots = snapshots
		break
	}
	return s
}

// --- synchronous UI mutations (never touch inFlight) ---

// SetFilter replaces the filter needle and re-anchors the cursor to a
// visible row.
func (s AppState) SetFilter(needle string) AppState {
	s.filter = needle
	return s.clampCursor()
}

// SetSort selects a sort key. Re-selecting the active key toggles the
// direction; a new key resets to ascending.
func (s AppState) SetSort(key SortKey) AppState {
	if key == s.sortKey {
		s.sortAsc = !s.sortAsc
	} else {
		s.sortKey = key
		s.sortAsc = true
	}
	return s
}

// ToggleSelection adds or removes an id from the selection set. Ids not
// present in the snapshot set are ignored, preserving the invariant
// that selection is always a subset of snapshots.
func (s AppState) ToggleSelection(id int) AppState {
	if _, ok := s.lookup(id); !ok {
		return s
	}
	selection := make(map[int]struct{}, len(s.selection))
	for k := range s.selection {
		selection[k] = struct{}{}
	}
	if _, on := selection[id]; on {
		delete(selection, id)
	} else {
		selection[id] = struct{}{}
	}
	s.selection = selection
	return s
}

// ClearSelection empties the selection set.
func (s AppState) ClearSelection() AppState {
	s.selection = map[int]struct{}{}
	return s
}

// MoveCursor moves the highlight by delta within the visible rows,
// wrapping at both ends.
func (s AppState) MoveCursor(delta int) AppState {
	rows := s.Visible()
	if len(rows) == 0 {
		s.cursor = -1
		return s
	}
	idx := 0
	for i, row := range rows {
		if row.ID == s.cursor {
			idx = i
			break
		}
	}
	idx = ((idx+delta)%len(rows) + len(rows)) % len(rows)
	s.cursor = rows[idx].ID
	return s
}

// --- internals ---

// clampCursor keeps the cursor on a visible row, falling back to the
// first visible row or -1 when nothing is visible.
func (s AppState) clampCursor() AppState {
	rows := s.Visible()
	if len(rows) == 0 {
		s.cursor = -1
		return s
	}
	for _, row := range rows {
		if row.ID == s.cursor {
			return s
		}
	}
	s.cursor = rows[0].ID
	return s
}

func (s AppState) lookup(id int) (snapper.Snapshot, bool) {
	if id < 0 {
		return snapper.Snapshot{}, false
	}
	for _, snap := range s.snapshots {
		if snap.ID == id {
			return snap, true
		}
	}
	return snapper.Snapshot{}, false
}

// matches applies the case-insensitive filter against description,
// type, user, and the decimal id.
func (s AppState) matches(snap snapper.Snapshot) bool {
	if s.filter == "" {
		return true
	}
	needle := strings.ToLower(s.filter)
	return strings.Contains(strings.ToLower(snap.Description), needle) ||
		strings.Contains(strings.ToLower(string(snap.Type)), needle) ||
		strings.Contains(strings.ToLower(snap.User), needle) ||
		strings.Contains(strconv.Itoa(snap.ID), s.filter)
}

// compare orders two snapshots by the sort key, returning <0, 0, or >0.
func compare(a, b snapper.Snapshot, key SortKey) int {
	switch key {
	case SortType:
		return strings.Compare(string(a.Type), string(b.Type))
	case SortDate:
		switch {
		case a.Date.Before(b.Date):
			return -1
		case a.Date.After(b.Date):
			return 1
		}
		return 0
	case SortUser:
		return strings.Compare(a.User, b.User)
	case SortSpace:
		switch {
		case a.UsedSpace < b.UsedSpace:
			return -1
		case a.UsedSpace > b.UsedSpace:
			return 1
		}
		return 0
	default: // SortNumber
		return a.ID - b.ID
	}
}

// requestTargets maps a request to the in-flight slots it occupies. A
// batch delete claims the batch slot and every member id so no member
// can receive a conflicting operation mid-batch.
func requestTargets(req snapper.Request) []int {
	switch req.Kind {
	case snapper.OpRefresh:
		return []int{SlotRefresh}
	case snapper.OpCreate:
		return []int{SlotCreate}
	case snapper.OpDelete:
		return append([]int{SlotBatch}, req.IDs...)
	case snapper.OpApply, snapper.OpStatus:
		return []int{req.ID}
	default:
		return nil
	}
}

func cloneRegistry(m map[int]snapper.OpKind) map[int]snapper.OpKind {
	out := make(map[int]snapper.OpKind, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// deleteKeys returns a copy of the registry with the given keys removed.
func deleteKeys(m map[int]snapper.OpKind, keys ...int) map[int]snapper.OpKind {
	out := cloneRegistry(m)
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
