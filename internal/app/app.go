// Package app dispatches parsed CLI commands to the interview runtime and
// the one-shot backend commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/cli"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/doctor"
	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/ipc"
	"github.com/rbright/rehearse/internal/logging"
	"github.com/rbright/rehearse/internal/version"
)

const forwardTimeout = 220 * time.Millisecond

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// screen runs the interactive interview; replaced in tests.
	screen func(ctx context.Context, iv *interview.Interview, cvText string) error
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("rehearse"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("rehearse"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Log.Level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandUpload:
		return r.commandUpload(ctx, cfgLoaded.Config, logger, parsed.File)
	case cli.CommandQuestions:
		return r.commandQuestions(ctx, cfgLoaded.Config, logger, parsed.CVPath)
	case cli.CommandHistory:
		return r.commandHistory(ctx, cfgLoaded.Config, logger)
	case cli.CommandInterview:
		return r.commandInterview(ctx, cfgLoaded.Config, logger, parsed.CVPath)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandToggle:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandToggle})
	case cli.CommandNext:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandNext})
	case cli.CommandPrevious:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandPrevious})
	case cli.CommandJump:
		idx := parsed.Question
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandJump, Index: &idx})
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// fail prints err for the user and logs it.
func (r Runner) fail(logger *slog.Logger, op string, err error) int {
	fmt.Fprintf(r.Stderr, "error: %s\n", fault.UserMessage(err))
	if logger != nil {
		logger.Error(op+" failed", "error", err.Error())
	}
	return 1
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.SocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus})
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(r.Stdout, formatStatus(resp))
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	socketPath, err := ipc.SocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no running rehearse interview\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, formatStatus(resp))
	return 0
}

// formatStatus renders an IPC response as one line, numbering questions
// from 1.
func formatStatus(resp ipc.Response) string {
	state := resp.State
	if state == "" {
		state = "idle"
	}
	if resp.Question == nil {
		return state
	}

	line := fmt.Sprintf("question %d/%d %s (%d answered)", *resp.Question+1, resp.Total, state, resp.Answered)
	if msg := strings.TrimSpace(resp.Message); msg != "" {
		line += ": " + msg
	}
	return line
}

// tryForward hands req to a running interview. handled is false when no
// interview owns the socket.
func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Client{Path: socketPath, Timeout: forwardTimeout}.Do(ctx, req)
	var remote *ipc.RemoteError
	switch {
	case err == nil:
		return resp, true, nil
	case errors.As(err, &remote):
		return resp, true, remote
	case ipc.IsNotRunning(err):
		return ipc.Response{}, false, nil
	default:
		return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
	}
}
