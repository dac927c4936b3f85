// Package output copies interview transcripts to the system clipboard.
package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrNothingToCopy is returned when no question has a transcript yet.
var ErrNothingToCopy = errors.New("no transcript to copy")

const clipboardTimeout = 2 * time.Second

// Entry is one answered question in a copied transcript.
type Entry struct {
	Number     int
	Question   string
	Transcript string
}

// Clipboard pipes text into the configured clipboard command.
type Clipboard struct {
	argv   []string
	logger *slog.Logger
}

func NewClipboard(argv []string, logger *slog.Logger) *Clipboard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Clipboard{argv: argv, logger: logger}
}

// Copy writes text to the clipboard. Empty text is a no-op.
func (c *Clipboard) Copy(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, clipboardTimeout)
	defer cancel()
	if err := pipeTo(ctx, c.argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	c.logger.Debug("clipboard set", "chars", len(text))
	return nil
}

// CopyTranscript renders entries and copies the result.
func (c *Clipboard) CopyTranscript(ctx context.Context, entries []Entry) error {
	text := FormatTranscript(entries)
	if text == "" {
		return ErrNothingToCopy
	}
	return c.Copy(ctx, text)
}

// FormatTranscript renders answered questions as plain text, one block per
// question. Entries without a transcript are skipped.
func FormatTranscript(entries []Entry) string {
	var b strings.Builder
	for _, entry := range entries {
		transcript := strings.TrimSpace(entry.Transcript)
		if transcript == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Q%d. %s\n", entry.Number, strings.TrimSpace(entry.Question))
		b.WriteString(transcript)
		b.WriteString("\n")
	}
	return b.String()
}

// pipeTo runs argv with input on stdin. A failing command's stderr is
// folded into the returned error.
func pipeTo(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return errors.New("clipboard command is empty")
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(input)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}
