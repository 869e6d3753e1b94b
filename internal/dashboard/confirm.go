package dashboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smileynet/snapdash/internal/snapper"
)

// confirmState holds the pending destructive action while the user
// decides. Nothing is dispatched until they confirm.
type confirmState struct {
	kind snapper.OpKind
	ids  []int
}

// prompt returns the confirmation question for the pending action.
func (c confirmState) prompt() string {
	switch c.kind {
	case snapper.OpDelete:
		if len(c.ids) == 1 {
			return fmt.Sprintf("Delete snapshot %d?", c.ids[0])
		}
		return fmt.Sprintf("Delete %d snapshots (%s)?", len(c.ids), joinIDs(c.ids))
	case snapper.OpApply:
		return fmt.Sprintf("Roll back the filesystem to snapshot %d?", c.ids[0])
	default:
		return "Proceed?"
	}
}

// View renders the confirmation box.
func (c confirmState) View(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(c.prompt()))
	b.WriteString("\n\n")
	if c.kind == snapper.OpApply {
		b.WriteString(errorStyle.Render("This changes the live filesystem."))
		b.WriteString("\n\n")
	}
	b.WriteString(mutedText.Render("[enter] confirm   [esc] cancel"))

	box := FocusedBorder().Padding(1, 2)
	if width > 4 {
		box = box.MaxWidth(width)
	}
	return box.Render(b.String())
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}
