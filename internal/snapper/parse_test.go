package snapper

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

const sampleListing = ` # | Type   | Pre # | Date                | User | Used Space | Cleanup  | Description
---+--------+-------+---------------------+------+------------+----------+------------------------
 0 | single |       |                     | root |            |          | current
 1 | single |       | 2026-01-10 09:15:00 | root | 1.5 MiB    | number   | first root filesystem
 2 | pre    |       | 2026-01-11 12:00:00 | root | 312 KiB    | number   | zypp(zypper)
 3 | post   |     2 | 2026-01-11 12:03:10 | root | 7.8 MiB    | number   | zypp(zypper)
`

func TestParseListing(t *testing.T) {
	// Given: a well-formed listing table
	// When: it is parsed
	snaps, skipped, err := ParseListing(sampleListing)

	// Then: every row becomes a record and nothing is skipped
	if err != nil {
		t.Fatalf("ParseListing error: %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if len(snaps) != 4 {
		t.Fatalf("len(snaps) = %d, want 4", len(snaps))
	}

	first := snaps[1]
	if first.ID != 1 || first.Type != TypeSingle || first.User != "root" {
		t.Errorf("snapshot 1 = %+v", first)
	}
	if first.Description != "first root filesystem" {
		t.Errorf("Description = %q", first.Description)
	}
	if first.Cleanup != "number" {
		t.Errorf("Cleanup = %q", first.Cleanup)
	}
	wantDate := time.Date(2026, 1, 10, 9, 15, 0, 0, time.UTC)
	if !first.Date.Equal(wantDate) {
		t.Errorf("Date = %v, want %v", first.Date, wantDate)
	}
	if first.UsedSpace != 1536*1024 {
		t.Errorf("UsedSpace = %d, want %d", first.UsedSpace, 1536*1024)
	}

	post := snaps[3]
	if post.Type != TypePost || post.PreNumber != 2 {
		t.Errorf("post snapshot = %+v, want type post linked to pre 2", post)
	}

	// The live root entry has no date and no space.
	root := snaps[0]
	if !root.Date.IsZero() || root.UsedSpace != 0 {
		t.Errorf("root entry = %+v, want zero date and space", root)
	}
}

func TestParseListing_SkipsMalformedRows(t *testing.T) {
	tests := []struct {
		name        string
		row         string
		wantSkipped int
	}{
		{
			name:        "wrong column count",
			row:         " 9 | single | garbage",
			wantSkipped: 1,
		},
		{
			name:        "non-numeric id",
			row:         " x | single |       | 2026-01-10 09:15:00 | root | 1 MiB | number | bad id",
			wantSkipped: 1,
		},
		{
			name:        "unknown type",
			row:         " 9 | weird  |       | 2026-01-10 09:15:00 | root | 1 MiB | number | bad type",
			wantSkipped: 1,
		},
		{
			name:        "non-numeric pre number",
			row:         " 9 | post   |   abc | 2026-01-10 09:15:00 | root | 1 MiB | number | bad pre",
			wantSkipped: 1,
		},
		{
			name:        "blank line",
			row:         "   ",
			wantSkipped: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a valid listing with one suspect row appended
			raw := sampleListing + tt.row + "\n"

			// When: it is parsed
			snaps, skipped, err := ParseListing(raw)

			// Then: valid rows survive and the suspect row is counted
			if err != nil {
				t.Fatalf("ParseListing error: %v", err)
			}
			if skipped != tt.wantSkipped {
				t.Errorf("skipped = %d, want %d", skipped, tt.wantSkipped)
			}
			if len(snaps) != 4 {
				t.Errorf("len(snaps) = %d, want 4 intact rows", len(snaps))
			}
		})
	}
}

func TestParseListing_NoHeaderIsParseError(t *testing.T) {
	// Given: output with no recognizable header row
	raw := "command 'list' not recognized\nsee --help\n"

	// When: it is parsed
	_, _, err := ParseListing(raw)

	// Then: a *ParseError carrying the raw text is returned
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if !strings.Contains(pe.Raw, "not recognized") {
		t.Errorf("ParseError.Raw = %q, want raw excerpt", pe.Raw)
	}
}

func TestParseListing_EmptyTableIsNotAnError(t *testing.T) {
	// Given: a header with no data rows
	raw := " # | Type | Pre # | Date | User | Used Space | Cleanup | Description\n---+---+---+---+---+---+---+---\n"

	// When: it is parsed
	snaps, skipped, err := ParseListing(raw)

	// Then: an empty set is returned without error
	if err != nil {
		t.Fatalf("ParseListing error: %v", err)
	}
	if len(snaps) != 0 || skipped != 0 {
		t.Errorf("got %d snaps, %d skipped, want 0, 0", len(snaps), skipped)
	}
}

func TestParseListing_ColumnOrderIndependent(t *testing.T) {
	// Given: a listing with columns in a non-standard order
	raw := `Description | Type   | #
hello       | single | 5
`
	// When: it is parsed
	snaps, _, err := ParseListing(raw)

	// Then: fields land by header name, not position
	if err != nil {
		t.Fatalf("ParseListing error: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("len(snaps) = %d, want 1", len(snaps))
	}
	if snaps[0].ID != 5 || snaps[0].Description != "hello" {
		t.Errorf("snapshot = %+v", snaps[0])
	}
}

func TestParseListing_DateLayouts(t *testing.T) {
	layouts := []string{
		"2026-01-10 09:15:00",
		"Sat 10 Jan 2026 09:15:00",
		"10.01.2026 09:15",
	}
	for _, val := range layouts {
		t.Run(val, func(t *testing.T) {
			raw := fmt.Sprintf("# | Type | Date\n1 | single | %s\n", val)
			snaps, _, err := ParseListing(raw)
			if err != nil {
				t.Fatalf("ParseListing error: %v", err)
			}
			if len(snaps) != 1 || snaps[0].Date.IsZero() {
				t.Errorf("date %q did not parse: %+v", val, snaps)
			}
		})
	}
}

func TestParseListing_RoundTrip(t *testing.T) {
	// Given: a parsed listing re-rendered in the same table format
	snaps, _, err := ParseListing(sampleListing)
	if err != nil {
		t.Fatalf("ParseListing error: %v", err)
	}
	again, skipped, err := ParseListing(formatListing(snaps))

	// Then: a second parse reproduces the same records
	if err != nil {
		t.Fatalf("re-parse error: %v", err)
	}
	if skipped != 0 {
		t.Errorf("re-parse skipped = %d, want 0", skipped)
	}
	if len(again) != len(snaps) {
		t.Fatalf("re-parse len = %d, want %d", len(again), len(snaps))
	}
	for i := range snaps {
		a, b := snaps[i], again[i]
		if a.ID != b.ID || a.Type != b.Type || !a.Date.Equal(b.Date) ||
			a.User != b.User || a.Description != b.Description ||
			a.Cleanup != b.Cleanup || a.PreNumber != b.PreNumber {
			t.Errorf("record %d: %+v != %+v", i, a, b)
		}
	}
}

// formatListing renders snapshots back into the backend's table format.
// Used space is omitted: the humanized form is lossy.
func formatListing(snaps []Snapshot) string {
	var b strings.Builder
	b.WriteString(" # | Type | Pre # | Date | User | Cleanup | Description\n")
	b.WriteString("---+------+-------+------+------+---------+------------\n")
	for _, s := range snaps {
		pre := ""
		if s.PreNumber > 0 {
			pre = fmt.Sprintf("%d", s.PreNumber)
		}
		date := ""
		if !s.Date.IsZero() {
			date = s.Date.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(&b, "%d | %s | %s | %s | %s | %s | %s\n",
			s.ID, s.Type, pre, date, s.User, s.Cleanup, s.Description)
	}
	return b.String()
}

func TestParseStatus(t *testing.T) {
	// Given: diff-style status output
	raw := "c..... /etc/fstab\n+..... /etc/new file.conf\n-..... /usr/bin/old\n"

	// When: it is parsed
	fields, err := ParseStatus(raw)

	// Then: each line becomes a path → change-code entry
	if err != nil {
		t.Fatalf("ParseStatus error: %v", err)
	}
	want := map[string]string{
		"/etc/fstab":         "c.....",
		"/etc/new file.conf": "+.....",
		"/usr/bin/old":       "-.....",
	}
	if len(fields) != len(want) {
		t.Fatalf("len(fields) = %d, want %d", len(fields), len(want))
	}
	for path, code := range want {
		if fields[path] != code {
			t.Errorf("fields[%q] = %q, want %q", path, fields[path], code)
		}
	}
}

func TestParseStatus_EmptyIsParseError(t *testing.T) {
	// Given: output yielding no fields
	// When: it is parsed
	_, err := ParseStatus("\n\n")

	// Then: a *ParseError is returned
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestParseCreatedID(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantID int
		wantOK bool
	}{
		{name: "bare number", raw: "22\n", wantID: 22, wantOK: true},
		{name: "surrounded by noise", raw: "created snapshot 7 successfully", wantID: 7, wantOK: true},
		{name: "no number", raw: "done\n", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := parseCreatedID(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && id != tt.wantID {
				t.Errorf("id = %d, want %d", id, tt.wantID)
			}
		})
	}
}
