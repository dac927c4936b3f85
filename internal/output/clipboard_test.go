package output

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureCommand returns argv for a command that writes stdin to a file,
// plus that file's path.
func captureCommand(t *testing.T) ([]string, string) {
	t.Helper()

	dir := t.TempDir()
	script := filepath.Join(dir, "capture.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/usr/bin/env sh\ncat > \"$1\"\n"), 0o755))
	return []string{script, filepath.Join(dir, "clipboard.txt")}, filepath.Join(dir, "clipboard.txt")
}

func TestClipboardCopy(t *testing.T) {
	argv, target := captureCommand(t)
	clipboard := NewClipboard(argv, nil)

	require.NoError(t, clipboard.Copy(context.Background(), ""))
	_, err := os.Stat(target)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, clipboard.Copy(context.Background(), "Q1. Why Go?\nSimple concurrency.\n"))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "Q1. Why Go?\nSimple concurrency.\n", string(data))
}

func TestClipboardCopyFailures(t *testing.T) {
	dir := t.TempDir()
	failing := filepath.Join(dir, "fail.sh")
	require.NoError(t, os.WriteFile(failing, []byte("#!/usr/bin/env sh\necho 'no wayland display' >&2\nexit 3\n"), 0o755))

	tests := []struct {
		name    string
		argv    []string
		wantErr []string
	}{
		{name: "empty argv", argv: nil, wantErr: []string{"clipboard command is empty"}},
		{name: "missing binary", argv: []string{filepath.Join(dir, "absent")}, wantErr: []string{"set clipboard", "absent"}},
		{name: "stderr surfaces", argv: []string{failing}, wantErr: []string{"set clipboard", "exit status 3", "no wayland display"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := NewClipboard(tc.argv, nil).Copy(context.Background(), "text")
			require.Error(t, err)
			for _, want := range tc.wantErr {
				require.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestFormatTranscript(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    string
	}{
		{name: "nothing answered", entries: []Entry{{Number: 1, Question: "Q"}}, want: ""},
		{
			name: "skips unanswered and trims",
			entries: []Entry{
				{Number: 1, Question: "Tell me about yourself.", Transcript: "I build audio tools."},
				{Number: 2, Question: "Why this role?", Transcript: "   "},
				{Number: 3, Question: " Biggest challenge? ", Transcript: " Shipping on time. "},
			},
			want: "Q1. Tell me about yourself.\nI build audio tools.\n\nQ3. Biggest challenge?\nShipping on time.\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, FormatTranscript(tc.entries))
		})
	}
}

func TestClipboardCopyTranscript(t *testing.T) {
	argv, target := captureCommand(t)
	clipboard := NewClipboard(argv, nil)

	err := clipboard.CopyTranscript(context.Background(), []Entry{{Number: 1, Question: "Q"}})
	require.ErrorIs(t, err, ErrNothingToCopy)

	require.NoError(t, clipboard.CopyTranscript(context.Background(), []Entry{
		{Number: 2, Question: "Why this role?", Transcript: "The team ships audio."},
	}))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "Q2. Why this role?\nThe team ships audio.\n", string(data))
}
