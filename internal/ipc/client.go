package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

const defaultTimeout = time.Second

// Client talks to the interview that owns a control socket. Each call
// dials a fresh connection and exchanges exactly one request and response.
type Client struct {
	Path    string
	Timeout time.Duration
}

// RemoteError is a request the owning interview received and rejected.
type RemoteError struct {
	Command string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s rejected", e.Command)
	}
	return e.Message
}

// Do sends req and decodes the reply. A reply with OK unset is returned
// together with a *RemoteError so callers can still read its state.
func (c Client) Do(ctx context.Context, req Request) (Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.Path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if !resp.OK {
		return resp, &RemoteError{Command: req.Command, Message: resp.Error}
	}
	return resp, nil
}

// Probe reports whether a responsive owner is listening. A socket that
// accepts but never answers is an error, not an absent owner.
func (c Client) Probe(ctx context.Context) (bool, error) {
	_, err := c.Do(ctx, Request{Command: CommandStatus})
	var remote *RemoteError
	switch {
	case err == nil, errors.As(err, &remote):
		return true, nil
	case IsNotRunning(err):
		return false, nil
	default:
		return false, fmt.Errorf("probe socket: %w", err)
	}
}

// IsNotRunning reports dial errors meaning nothing listens on the socket.
func IsNotRunning(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
