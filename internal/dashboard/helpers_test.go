package dashboard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/snapdash/internal/dispatch"
	"github.com/smileynet/snapdash/internal/snapper"
)

// stripANSI removes ANSI escape sequences from a string.
func stripANSI(s string) string {
	var out []byte
	i := 0
	for i < len(s) {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 'A' || s[j] > 'Z') && (s[j] < 'a' || s[j] > 'z') {
				j++
			}
			if j < len(s) {
				j++
			}
			i = j
		} else {
			out = append(out, s[i])
			i++
		}
	}
	return string(out)
}

// containsPlainText checks if s contains sub after stripping ANSI escapes.
func containsPlainText(s, sub string) bool {
	return strings.Contains(stripANSI(s), sub)
}

// execBatch executes a tea.Cmd, handling both single commands and batch
// commands. It returns all resulting messages. Spinner ticks are skipped
// to avoid infinite recursion. Batches from Init and reconcile contain
// the dispatcher-channel receive, which blocks until a result exists, so
// callers must queue one on the stub channel before executing them.
func execBatch(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			if c != nil {
				result := c()
				if _, isTick := result.(spinner.TickMsg); !isTick {
					msgs = append(msgs, result)
				}
			}
		}
		return msgs
	}
	return []tea.Msg{msg}
}

// stubDispatcher records dispatched requests and exposes a channel the
// test feeds results into.
type stubDispatcher struct {
	requests []snapper.Request
	results  chan snapper.Result

	// respond, when set, is invoked per request to produce an immediate
	// result on the channel.
	respond func(snapper.Request) snapper.Result
}

func newStubDispatcher() *stubDispatcher {
	return &stubDispatcher{results: make(chan snapper.Result, 16)}
}

func (d *stubDispatcher) Dispatch(_ context.Context, req snapper.Request) *dispatch.Handle {
	d.requests = append(d.requests, req)
	if d.respond != nil {
		d.results <- d.respond(req)
	}
	return &dispatch.Handle{}
}

func (d *stubDispatcher) Results() <-chan snapper.Result { return d.results }

// lastRequest returns the most recently dispatched request.
func (d *stubDispatcher) lastRequest(t *testing.T) snapper.Request {
	t.Helper()
	if len(d.requests) == 0 {
		t.Fatal("no request was dispatched")
	}
	return d.requests[len(d.requests)-1]
}

// fixtureSnapshots is a small snapshot set shared across tests.
func fixtureSnapshots() []snapper.Snapshot {
	return []snapper.Snapshot{
		{ID: 1, Type: snapper.TypeSingle, Date: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), User: "root", Description: "first"},
		{ID: 2, Type: snapper.TypePre, Date: time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC), User: "root", Description: "before upgrade"},
		{ID: 3, Type: snapper.TypePost, PreNumber: 2, Date: time.Date(2026, 1, 11, 9, 5, 0, 0, time.UTC), User: "root", Description: "after upgrade"},
	}
}

// loadedModel returns a model with the fixture snapshots applied and the
// stub dispatcher it is wired to.
func loadedModel(t *testing.T) (Model, *stubDispatcher) {
	t.Helper()
	d := newStubDispatcher()
	m := NewModel(context.Background(), WithDispatcher(d))
	m, _ = m.reconcile(snapper.Listed{Snapshots: fixtureSnapshots()})
	return m, d
}

// press feeds one key to the model and returns the updated model.
func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}
