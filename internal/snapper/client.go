package snapper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Client invokes the external snapshot tool for one logical action at a
// time. It performs no retries and mutates no state: every outcome,
// success or failure, is returned as a Result for the caller to apply.
type Client struct {
	bin        string
	config     string
	useSudo    bool
	cmdBuilder func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// Option configures a Client.
type Option func(*Client)

// WithBinary sets the backend binary name (default "snapper").
func WithBinary(bin string) Option {
	return func(c *Client) { c.bin = bin }
}

// WithConfig sets the backend config name passed as "-c <name>".
// Empty means the backend's default config.
func WithConfig(name string) Option {
	return func(c *Client) { c.config = name }
}

// WithSudo elevates write operations (create, delete, rollback, status)
// through sudo. Listing stays unelevated.
func WithSudo(enabled bool) Option {
	return func(c *Client) { c.useSudo = enabled }
}

// NewClient creates a Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{bin: "snapper"}
	for _, opt := range opts {
		opt(c)
	}
	if c.cmdBuilder == nil {
		c.cmdBuilder = exec.CommandContext
	}
	return c
}

// Execute runs one request to completion and returns its Result. It is
// safe to call from any goroutine; the Client holds no mutable state.
// Failures never surface as a Go error — they become Failed results so
// the reconciler sees every outcome on the same path.
func (c *Client) Execute(ctx context.Context, req Request) Result {
	switch req.Kind {
	case OpRefresh:
		return c.refresh(ctx, req)
	case OpCreate:
		return c.create(ctx, req)
	case OpDelete:
		return c.delete(ctx, req)
	case OpApply:
		return c.apply(ctx, req)
	case OpStatus:
		return c.status(ctx, req)
	default:
		return Failed{Request: req, Err: fmt.Errorf("snapper: unknown operation kind %d", req.Kind)}
	}
}

func (c *Client) refresh(ctx context.Context, req Request) Result {
	out, err := c.run(ctx, false, "list")
	if err != nil {
		return Failed{Request: req, Err: err}
	}
	snaps, skipped, err := ParseListing(out)
	if err != nil {
		return Failed{Request: req, Err: err}
	}
	return Listed{Snapshots: snaps, Skipped: skipped}
}

// create runs the create command and then re-lists to obtain the full
// record for the printed id. The backend prints only the assigned
// number on success.
func (c *Client) create(ctx context.Context, req Request) Result {
	out, err := c.run(ctx, true, "create", "--description", req.Description)
	if err != nil {
		return Failed{Request: req, Err: err}
	}
	id, ok := parseCreatedID(out)
	if !ok {
		return Failed{Request: req, Err: &ParseError{Raw: excerpt(out)}}
	}

	listOut, err := c.run(ctx, false, "list")
	if err != nil {
		return Failed{Request: req, Err: err}
	}
	snaps, _, err := ParseListing(listOut)
	if err != nil {
		return Failed{Request: req, Err: err}
	}
	for _, s := range snaps {
		if s.ID == id {
			return Created{Snapshot: s}
		}
	}
	return Failed{Request: req, Err: &ParseError{Raw: fmt.Sprintf("created snapshot %d missing from listing", id)}}
}

// delete issues one batch invocation for all ids. The backend reports
// mixed-validity batches as a whole-batch failure via its exit code; a
// refresh is the only way to learn the true post-state in that case.
func (c *Client) delete(ctx context.Context, req Request) Result {
	ids := make([]string, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = strconv.Itoa(id)
	}
	if _, err := c.run(ctx, true, "delete", strings.Join(ids, ",")); err != nil {
		return Failed{Request: req, Err: err}
	}
	return Deleted{IDs: req.IDs}
}

func (c *Client) apply(ctx context.Context, req Request) Result {
	if _, err := c.run(ctx, true, "rollback", strconv.Itoa(req.ID)); err != nil {
		return Failed{Request: req, Err: err}
	}
	return Applied{ID: req.ID}
}

// status queries the change set between a snapshot and its pre
// snapshot, defaulting the range start to ID-1 when no pre link exists.
func (c *Client) status(ctx context.Context, req Request) Result {
	pre := req.Pre
	if pre <= 0 {
		pre = req.ID - 1
		if pre < 0 {
			pre = 0
		}
	}
	out, err := c.run(ctx, true, "status", fmt.Sprintf("%d..%d", pre, req.ID))
	if err != nil {
		return Failed{Request: req, Err: err}
	}
	fields, err := ParseStatus(out)
	if err != nil {
		return Failed{Request: req, Err: err}
	}
	return StatusFetched{ID: req.ID, Fields: fields}
}

// run executes one backend invocation and returns stdout. A non-zero
// exit is an *InvocationError carrying the exit code and a stderr
// excerpt; stdout content never rescues a failed exit.
func (c *Client) run(ctx context.Context, elevated bool, args ...string) (string, error) {
	name, argv := c.argv(elevated, args)
	cmd := c.cmdBuilder(ctx, name, argv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &InvocationError{
				ExitCode: exitErr.ExitCode(),
				Stderr:   excerpt(stderr.String()),
			}
		}
		// Binary missing, context cancelled, or wait failure.
		return "", fmt.Errorf("snapper: running %s: %w", name, err)
	}
	return stdout.String(), nil
}

// argv assembles the full invocation, prepending sudo for elevated
// operations when configured and the config selector when set.
func (c *Client) argv(elevated bool, args []string) (string, []string) {
	var argv []string
	if c.config != "" {
		argv = append(argv, "-c", c.config)
	}
	argv = append(argv, args...)

	if elevated && c.useSudo {
		return "sudo", append([]string{c.bin}, argv...)
	}
	return c.bin, argv
}
