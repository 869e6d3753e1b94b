package snapper

import (
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// dateLayouts are the timestamp formats the backend is known to emit,
// tried in order. The list format varies with locale settings.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"Mon 02 Jan 2006 15:04:05",
	"Mon Jan _2 15:04:05 2006",
	"02.01.2006 15:04",
}

// excerptLen bounds raw text carried inside errors.
const excerptLen = 200

// ParseListing parses the backend's pipe-delimited listing table into
// snapshot records. Rows that do not match the header's column count or
// carry an unusable number/type are skipped and counted rather than
// failing the whole parse. A listing with no recognizable header is a
// hard *ParseError.
func ParseListing(raw string) ([]Snapshot, int, error) {
	lines := strings.Split(raw, "\n")

	cols, body := findHeader(lines)
	if cols == nil {
		return nil, 0, &ParseError{Raw: excerpt(raw)}
	}

	var (
		snaps   []Snapshot
		skipped int
	)
	for _, line := range body {
		if strings.TrimSpace(line) == "" || isSeparator(line) {
			continue
		}
		fields := splitRow(line)
		if len(fields) != len(cols) {
			skipped++
			continue
		}
		s, ok := parseRow(cols, fields)
		if !ok {
			skipped++
			continue
		}
		snaps = append(snaps, s)
	}
	return snaps, skipped, nil
}

// ParseStatus parses diff-style status output ("<code> <path>" per line)
// into a path → change-code map. An output yielding zero fields is a
// hard *ParseError: unlike a listing, a status query for an existing
// range always reports something.
func ParseStatus(raw string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		path := strings.Join(parts[1:], " ")
		fields[path] = parts[0]
	}
	if len(fields) == 0 {
		return nil, &ParseError{Raw: excerpt(raw)}
	}
	return fields, nil
}

// parseCreatedID extracts the new snapshot's number from create output.
// The backend prints the assigned id on success; any surrounding noise
// is tolerated, the first integer token wins.
func parseCreatedID(raw string) (int, bool) {
	for _, tok := range strings.Fields(raw) {
		if id, err := strconv.Atoi(tok); err == nil && id >= 0 {
			return id, true
		}
	}
	return 0, false
}

// findHeader locates the column header row and returns the normalized
// column names plus the remaining lines.
func findHeader(lines []string) ([]string, []string) {
	for i, line := range lines {
		if !strings.Contains(line, "|") || isSeparator(line) {
			continue
		}
		cols := splitRow(line)
		if !isHeaderRow(cols) {
			continue
		}
		for j, c := range cols {
			cols[j] = strings.ToLower(c)
		}
		return cols, lines[i+1:]
	}
	return nil, nil
}

// isHeaderRow reports whether a split row looks like the listing header.
// The number column is always present and always titled "#".
func isHeaderRow(cols []string) bool {
	for _, c := range cols {
		if strings.EqualFold(c, "#") {
			return true
		}
	}
	return false
}

// isSeparator reports whether a line is a table rule like "---+---+---".
func isSeparator(line string) bool {
	seen := false
	for _, r := range line {
		switch r {
		case '-', '+', '|', ' ':
			if r == '-' {
				seen = true
			}
		default:
			return false
		}
	}
	return seen
}

// splitRow splits a table row on pipes and trims each cell.
func splitRow(line string) []string {
	parts := strings.Split(line, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// parseRow converts one data row into a Snapshot using the header's
// column positions. Column order is not assumed.
func parseRow(cols, fields []string) (Snapshot, bool) {
	var s Snapshot
	numberSeen := false

	for i, col := range cols {
		val := fields[i]
		switch col {
		case "#":
			id, err := strconv.Atoi(strings.TrimSuffix(val, "*"))
			if err != nil {
				return Snapshot{}, false
			}
			s.ID = id
			numberSeen = true
		case "type":
			switch Type(val) {
			case TypeSingle, TypePre, TypePost:
				s.Type = Type(val)
			default:
				return Snapshot{}, false
			}
		case "pre #":
			if val != "" {
				pre, err := strconv.Atoi(val)
				if err != nil {
					return Snapshot{}, false
				}
				s.PreNumber = pre
			}
		case "date":
			s.Date = parseDate(val)
		case "user":
			s.User = val
		case "used space":
			if val != "" {
				if n, err := humanize.ParseBytes(val); err == nil {
					s.UsedSpace = n
				}
			}
		case "cleanup":
			s.Cleanup = val
		case "description":
			s.Description = val
		}
	}

	return s, numberSeen
}

// parseDate tries the known locale layouts, returning the zero time
// when none match. A missing date is not a row-level failure: the
// backend leaves the column blank for the live root entry.
func parseDate(val string) time.Time {
	if val == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, val); err == nil {
			return t
		}
	}
	return time.Time{}
}

// excerpt bounds raw output for inclusion in error values.
func excerpt(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > excerptLen {
		return raw[:excerptLen]
	}
	return raw
}
