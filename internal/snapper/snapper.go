// Package snapper wraps the external snapshot tool behind a structured
// request/result contract. The Client is the only component that launches
// subprocesses; parsing of the tool's tabular output lives in this package
// as pure functions so format drift is a localized failure mode.
package snapper

import (
	"errors"
	"fmt"
	"time"
)

// Type classifies a snapshot entry.
type Type string

const (
	TypeSingle Type = "single"
	TypePre    Type = "pre"
	TypePost   Type = "post"
)

// Snapshot is one backend snapshot entry. ID is backend-assigned and
// immutable; PreNumber links a post snapshot to its paired pre snapshot.
type Snapshot struct {
	ID          int
	Type        Type
	Date        time.Time
	User        string
	Description string
	Cleanup     string
	UsedSpace   uint64 // bytes; 0 when the backend has not computed it yet
	PreNumber   int    // 0 when absent; only meaningful for post entries

	// Changes holds path → change-code entries from the most recent
	// status query, keyed exactly as the backend reports them.
	Changes map[string]string
}

// OpKind identifies a logical operation against the backend.
type OpKind int

const (
	OpRefresh OpKind = iota
	OpCreate
	OpDelete
	OpApply
	OpStatus
)

// String returns the operation name for messages and logs.
func (k OpKind) String() string {
	switch k {
	case OpRefresh:
		return "refresh"
	case OpCreate:
		return "create"
	case OpDelete:
		return "delete"
	case OpApply:
		return "apply"
	case OpStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Request describes one operation to run against the backend.
// Only the fields relevant to Kind are consulted.
type Request struct {
	Kind        OpKind
	Description string // OpCreate
	IDs         []int  // OpDelete
	ID          int    // OpApply, OpStatus
	Pre         int    // OpStatus range start; 0 derives ID-1
}

// Result is the outcome of an executed Request. Exactly one concrete
// type is produced per request; values are immutable once emitted.
type Result interface {
	isResult()
}

// Created reports a successful create with the full new record.
type Created struct {
	Snapshot Snapshot
}

// Deleted reports a successful batch delete.
type Deleted struct {
	IDs []int
}

// Applied reports a successful rollback. The backend's own state change
// is not reflected locally until the next refresh.
type Applied struct {
	ID int
}

// StatusFetched carries the parsed status fields for one snapshot.
type StatusFetched struct {
	ID     int
	Fields map[string]string
}

// Listed carries a full listing. Skipped counts malformed rows that
// were dropped during parsing.
type Listed struct {
	Snapshots []Snapshot
	Skipped   int
}

// Failed echoes the request that could not be completed.
type Failed struct {
	Request Request
	Err     error
}

func (Created) isResult()       {}
func (Deleted) isResult()       {}
func (Applied) isResult()       {}
func (StatusFetched) isResult() {}
func (Listed) isResult()        {}
func (Failed) isResult()        {}

// ErrCancelled marks a request withdrawn before its worker started.
var ErrCancelled = errors.New("snapper: operation cancelled")

// InvocationError means the backend process ran but exited non-zero.
type InvocationError struct {
	ExitCode int
	Stderr   string
}

func (e *InvocationError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("snapper: backend exited %d", e.ExitCode)
	}
	return fmt.Sprintf("snapper: backend exited %d: %s", e.ExitCode, e.Stderr)
}

// ParseError means the backend succeeded but its output was unintelligible.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("snapper: unparseable backend output: %q", e.Raw)
}
