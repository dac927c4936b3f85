package cue

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/rehearse/internal/config"
)

func TestNotifierDispatchesReplaceableDesktopNotifications(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
if [[ "$*" == *" Notify "* ]]; then
  echo 'u 42'
fi
`)

	cfg := config.Default().Cue
	cfg.SoundEnable = false

	notify := New(cfg, nil)
	notify.RecordingStarted(context.Background(), 0)
	notify.RecordingStopped(context.Background(), 0)
	notify.AnswerReady(context.Background(), 0)
	notify.Close(context.Background())

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], "Notify susssasa{sv}i rehearse 0 audio-input-microphone Recording answer to question 1…")
	require.Contains(t, lines[1], "Notify susssasa{sv}i rehearse 42 audio-input-microphone Transcribing answer to question 1…")
	require.Contains(t, lines[2], "Answer to question 1 recorded successfully")
	require.True(t, strings.HasSuffix(lines[2], " 2500"))
	require.True(t, strings.HasSuffix(lines[3], "CloseNotification u 42"))
}

func TestNotifierAnswerFailedUsesErrorTimeoutAndBody(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
echo 'u 7'
`)

	cfg := config.Default().Cue
	cfg.SoundEnable = false
	cfg.ErrorTimeoutMS = 0

	notify := New(cfg, nil)
	notify.AnswerFailed(context.Background(), 2, "Request timed out. Please try again.")
	notify.Close(context.Background())

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Recording failed Question 3: Request timed out. Please try again.")
	require.True(t, strings.HasSuffix(lines[0], " 1200"))
	require.True(t, strings.HasSuffix(lines[1], "CloseNotification u 7"))
}

func TestNotifierDoesNotBlockCaller(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
sleep 0.3
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
echo 'u 9'
`)

	cfg := config.Default().Cue
	cfg.SoundEnable = false

	notify := New(cfg, nil)
	started := time.Now()
	notify.RecordingStarted(context.Background(), 0)
	notify.RecordingStopped(context.Background(), 0)
	require.Less(t, time.Since(started), 150*time.Millisecond)

	notify.Close(context.Background())
	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.GreaterOrEqual(t, len(lines), 1)
	require.Contains(t, lines[0], "Recording answer to question 1")
}

func TestNotifierDisabledSkipsBusctl(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
`)

	cfg := config.Default().Cue
	cfg.Enable = false
	cfg.SoundEnable = false

	notify := New(cfg, nil)
	notify.RecordingStarted(context.Background(), 0)
	notify.AnswerFailed(context.Background(), 0, "ignored")
	notify.Close(context.Background())

	_, err := os.Stat(argsFile)
	require.True(t, os.IsNotExist(err))
}

func TestNotifierBusctlFailureIsNotFatal(t *testing.T) {
	installBusctlStub(t, `
echo 'no session bus' >&2
exit 1
`)

	cfg := config.Default().Cue
	cfg.SoundEnable = false

	notify := New(cfg, nil)
	notify.RecordingStarted(context.Background(), 0)
	notify.Close(context.Background())
}

func TestNotifierPlaysCuePerTransition(t *testing.T) {
	cfg := config.Default().Cue
	cfg.Enable = false

	var (
		mu     sync.Mutex
		played []cueKind
	)
	notify := New(cfg, nil)
	notify.emit = func(_ context.Context, kind cueKind) error {
		mu.Lock()
		defer mu.Unlock()
		played = append(played, kind)
		return nil
	}

	notify.RecordingStarted(context.Background(), 0)
	notify.RecordingStopped(context.Background(), 0)
	notify.AnswerReady(context.Background(), 0)
	notify.AnswerFailed(context.Background(), 1, "boom")
	notify.Close(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []cueKind{cueStart, cueStop, cueComplete, cueError}, played)
}

func TestNotifierSoundDisabledSkipsCues(t *testing.T) {
	cfg := config.Default().Cue
	cfg.Enable = false
	cfg.SoundEnable = false

	notify := New(cfg, nil)
	notify.emit = func(context.Context, cueKind) error {
		t.Fatal("cue should not play")
		return nil
	}
	notify.RecordingStarted(context.Background(), 0)
	notify.Close(context.Background())
}

func installBusctlStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "busctl")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
