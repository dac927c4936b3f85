package cue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/rehearse/internal/config"
)

func TestEveryCueHasAChime(t *testing.T) {
	rendered := renderedChimes()
	for _, kind := range []cueKind{cueStart, cueStop, cueComplete, cueError} {
		require.NotEmpty(t, rendered[kind], kind.String())
	}
	require.Empty(t, rendered[cueKind(99)])
	require.Equal(t, "cue(99)", cueKind(99).String())
}

func TestRenderChimeLength(t *testing.T) {
	notes := []note{{440, 50 * time.Millisecond, 0.2}, {880, 25 * time.Millisecond, 0.2}}
	want := sampleCount(50*time.Millisecond) + sampleCount(noteGap) + sampleCount(25*time.Millisecond)
	require.Len(t, renderChime(notes), want)
}

func TestRenderNoteFadesAtEdges(t *testing.T) {
	pcm := renderNote(note{hz: 440, dur: 100 * time.Millisecond, gain: 0.5})
	require.Len(t, pcm, 1600)
	require.Zero(t, pcm[0])
	require.Zero(t, pcm[len(pcm)-1])

	var peak int16
	for _, s := range pcm {
		peak = max(peak, s)
	}
	require.InDelta(t, 0.5*32767, float64(peak), 200)
}

func TestRenderNoteRejectsSilentNotes(t *testing.T) {
	for _, n := range []note{
		{hz: 0, dur: 100 * time.Millisecond, gain: 0.2},
		{hz: 440, dur: 0, gain: 0.2},
		{hz: 440, dur: 100 * time.Millisecond, gain: 0},
	} {
		require.Empty(t, renderNote(n))
	}
}

func TestSampleCount(t *testing.T) {
	require.Equal(t, 0, sampleCount(-time.Second))
	require.Equal(t, 400, sampleCount(25*time.Millisecond))
}

func TestSoundFileSelection(t *testing.T) {
	cfg := config.CueConfig{SoundStartFile: "/cues/start.wav", SoundErrorFile: "/cues/error.wav"}
	require.Equal(t, "/cues/start.wav", soundFile(cueStart, cfg))
	require.Equal(t, "/cues/error.wav", soundFile(cueError, cfg))
	require.Empty(t, soundFile(cueStop, cfg))
	require.Empty(t, soundFile(cueKind(99), cfg))
}

func TestPlayFile(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.log")
	script := "#!/usr/bin/env sh\nprintf '%s\\n' \"$*\" > " + argsFile + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pw-play"), []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	err := playFile(context.Background(), filepath.Join(dir, "missing.wav"))
	require.ErrorContains(t, err, "stat cue file")

	file := filepath.Join(dir, "start.wav")
	require.NoError(t, os.WriteFile(file, []byte("RIFF"), 0o600))
	require.NoError(t, playFile(context.Background(), file))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "--media-role Notification "+file+"\n", string(data))
}

func TestEmitCuePrefersConfiguredFile(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "played")
	script := "#!/usr/bin/env sh\ntouch " + marker + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pw-play"), []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	file := filepath.Join(dir, "done.wav")
	require.NoError(t, os.WriteFile(file, []byte("RIFF"), 0o600))

	require.NoError(t, emitCue(context.Background(), cueComplete, config.CueConfig{SoundCompleteFile: file}))
	_, err := os.Stat(marker)
	require.NoError(t, err)
}

func TestEmitCueRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := emitCue(ctx, cueStart, config.CueConfig{})
	require.ErrorIs(t, err, context.Canceled)
}
