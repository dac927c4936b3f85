package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/rehearse/internal/answer"
	"github.com/rbright/rehearse/internal/backend"
	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/transcript"
)

type fakeUploader struct {
	calls atomic.Int32
	clips []backend.Clip
	fn    func(attempt int32) (string, error)
}

func (u *fakeUploader) TranscribeAnswer(_ context.Context, clip backend.Clip, sessionID string, idx int) (string, error) {
	n := u.calls.Add(1)
	u.clips = append(u.clips, clip)
	return u.fn(n)
}

func wavClip() answer.Clip {
	return answer.Clip{Ref: "clip-1", Format: "audio/wav", Data: []byte("RIFFdata")}
}

func TestTranscribeNormalizesAndNamesFile(t *testing.T) {
	up := &fakeUploader{fn: func(int32) (string, error) { return "  i built it.  then i tested it ", nil }}
	tr := NewTranscriber(up, Options{Transcript: transcript.Options{CapitalizeSentences: true}})

	text, err := tr.Transcribe(context.Background(), wavClip(), "s-1", 4)
	require.NoError(t, err)
	require.Equal(t, "I built it. Then I tested it", text)
	require.Equal(t, "answer-4.wav", up.clips[0].Filename)
	require.Equal(t, "audio/wav", up.clips[0].Format)
}

func TestTranscribeEmptyClipIsProcessingError(t *testing.T) {
	up := &fakeUploader{fn: func(int32) (string, error) { return "", nil }}
	_, err := NewTranscriber(up, Options{}).Transcribe(context.Background(), answer.Clip{}, "s", 0)
	require.ErrorIs(t, err, fault.ErrProcessing)
	require.Zero(t, up.calls.Load())
}

func TestTranscribeNoRetryByDefault(t *testing.T) {
	up := &fakeUploader{fn: func(int32) (string, error) {
		return "", fault.Wrap(fault.KindNetwork, "transcribe_answer", "", errors.New("reset"))
	}}
	_, err := NewTranscriber(up, Options{}).Transcribe(context.Background(), wavClip(), "s", 0)
	require.ErrorIs(t, err, fault.ErrNetwork)
	require.Equal(t, int32(1), up.calls.Load())
}

func TestTranscribeRetriesNetworkErrorsWithinBound(t *testing.T) {
	up := &fakeUploader{fn: func(n int32) (string, error) {
		if n < 3 {
			return "", fault.Wrap(fault.KindNetwork, "transcribe_answer", "", errors.New("reset"))
		}
		return "ok", nil
	}}
	tr := NewTranscriber(up, Options{Retry: RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}})

	text, err := tr.Transcribe(context.Background(), wavClip(), "s", 0)
	require.NoError(t, err)
	require.Equal(t, "ok", text)
	require.Equal(t, int32(3), up.calls.Load())
}

func TestTranscribeRetryExhausted(t *testing.T) {
	up := &fakeUploader{fn: func(int32) (string, error) {
		return "", fault.Wrap(fault.KindNetwork, "transcribe_answer", "", errors.New("reset"))
	}}
	tr := NewTranscriber(up, Options{Retry: RetryPolicy{MaxAttempts: 2}})
	_, err := tr.Transcribe(context.Background(), wavClip(), "s", 0)
	require.ErrorIs(t, err, fault.ErrNetwork)
	require.Equal(t, int32(2), up.calls.Load())
}

func TestTranscribeServerErrorsNotRetried(t *testing.T) {
	up := &fakeUploader{fn: func(int32) (string, error) {
		return "", fault.Server("transcribe_answer", "Transcription failed", 500)
	}}
	tr := NewTranscriber(up, Options{Retry: RetryPolicy{MaxAttempts: 5}})
	_, err := tr.Transcribe(context.Background(), wavClip(), "s", 0)
	require.ErrorIs(t, err, fault.ErrServer)
	require.Equal(t, int32(1), up.calls.Load())
}

func TestTranscribeRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	up := &fakeUploader{fn: func(int32) (string, error) {
		cancel()
		return "", fault.Wrap(fault.KindNetwork, "transcribe_answer", "", errors.New("reset"))
	}}
	tr := NewTranscriber(up, Options{Retry: RetryPolicy{MaxAttempts: 3, Backoff: time.Hour}})
	_, err := tr.Transcribe(ctx, wavClip(), "s", 0)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(1), up.calls.Load())
}

func TestResolveStateDirUsesXDGStateHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_STATE_HOME", tmp)
	dir, err := resolveStateDir()
	require.NoError(t, err)
	require.Equal(t, tmp, dir)
}

func TestResolveStateDirFallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", home)
	dir, err := resolveStateDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "state"), dir)
}

func TestDumpClipsWritesDebugArtifact(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_STATE_HOME", tmp)

	up := &fakeUploader{fn: func(int32) (string, error) { return "ok", nil }}
	_, err := NewTranscriber(up, Options{DumpClips: true}).Transcribe(context.Background(), wavClip(), "s", 2)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(tmp, "rehearse", "debug"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "answer-2-"))
	require.True(t, strings.HasSuffix(entries[0].Name(), ".wav"))
}
