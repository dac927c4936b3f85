package recording

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/rehearse/internal/answer"
	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/media"
)

// fakeCapture emits one WAV increment carrying payload, then Final.
type fakeCapture struct {
	payload []byte
	events  chan media.Event
	once    sync.Once
	stops   atomic.Int32
}

func newFakeCapture(payload []byte) *fakeCapture {
	return &fakeCapture{payload: payload, events: make(chan media.Event, 4)}
}

func (c *fakeCapture) Format() string              { return media.FormatWAV }
func (c *fakeCapture) Events() <-chan media.Event { return c.events }

func (c *fakeCapture) Stop() {
	c.stops.Add(1)
	c.once.Do(func() {
		if len(c.payload) > 0 {
			var buf []byte
			buf = append(buf, "RIFF"...)
			buf = append(buf, make([]byte, 40)...)
			buf = append(buf, c.payload...)
			c.events <- media.Event{Kind: media.EventData, Seq: 1, Data: buf}
		}
		c.events <- media.Event{Kind: media.EventFinal, Seq: 2}
		close(c.events)
	})
}

type fakeCapturer struct {
	mu       sync.Mutex
	payload  []byte
	err      error
	captures []*fakeCapture
}

func (c *fakeCapturer) StartCapture() (media.Capture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	capture := newFakeCapture(c.payload)
	c.captures = append(c.captures, capture)
	return capture, nil
}

type fakeTranscriber struct {
	calls atomic.Int32
	mu    sync.Mutex
	gates map[int]chan struct{}
	texts map[int]string
	errs  map[int]error
	seen  []string
}

func newFakeTranscriber() *fakeTranscriber {
	return &fakeTranscriber{gates: map[int]chan struct{}{}, texts: map[int]string{}, errs: map[int]error{}}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, clip answer.Clip, sessionID string, idx int) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.gates[idx]
	text, err := f.texts[idx], f.errs[idx]
	f.seen = append(f.seen, sessionID)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return text, err
}

type fakeIndicator struct {
	started atomic.Int32
	stopped atomic.Int32
	ready   atomic.Int32
	failed  atomic.Int32
}

func (i *fakeIndicator) RecordingStarted(context.Context, int)     { i.started.Add(1) }
func (i *fakeIndicator) RecordingStopped(context.Context, int)     { i.stopped.Add(1) }
func (i *fakeIndicator) AnswerReady(context.Context, int)          { i.ready.Add(1) }
func (i *fakeIndicator) AnswerFailed(context.Context, int, string) { i.failed.Add(1) }

func waitForStatus(t *testing.T, board *answer.Board, idx int, want fsm.State) {
	t.Helper()
	require.Eventually(t, func() bool { return board.Get(idx).Status == want }, 2*time.Second, 5*time.Millisecond,
		"question %d never reached %s (is %s)", idx, want, board.Get(idx).Status)
}

func newMachine(capturer Capturer, tr Transcriber, ind Indicator) (*Machine, *answer.Board) {
	board := answer.NewBoard()
	m := New(board, capturer, tr, Options{SessionID: func() string { return "s-1" }, Indicator: ind})
	return m, board
}

func TestRecordStopUploadReady(t *testing.T) {
	tr := newFakeTranscriber()
	tr.texts[0] = "my answer"
	ind := &fakeIndicator{}
	m, board := newMachine(&fakeCapturer{payload: []byte{1, 2, 3, 4}}, tr, ind)

	require.NoError(t, m.Start(context.Background(), 0))
	idx, ok := m.Recording()
	require.True(t, ok)
	require.Equal(t, 0, idx)
	require.Equal(t, fsm.StateRecording, board.Get(0).Status)

	require.NoError(t, m.Stop(context.Background(), 0))
	require.NoError(t, m.Wait(context.Background()))

	got := board.Get(0)
	require.Equal(t, fsm.StateReady, got.Status)
	require.Equal(t, "my answer", got.Transcript)
	require.NotNil(t, got.Clip)
	require.NotEmpty(t, got.Clip.Ref)
	require.Equal(t, []byte{1, 2, 3, 4}, got.Clip.Data[44:])
	require.Equal(t, []string{"s-1"}, tr.seen)
	require.Equal(t, int32(1), ind.started.Load())
	require.Equal(t, int32(1), ind.stopped.Load())
	require.Equal(t, int32(1), ind.ready.Load())
}

func TestStartWhileRecordingIsConflict(t *testing.T) {
	m, board := newMachine(&fakeCapturer{payload: []byte{1}}, newFakeTranscriber(), nil)

	require.NoError(t, m.Start(context.Background(), 0))
	err := m.Start(context.Background(), 1)
	require.ErrorIs(t, err, fault.ErrConflict)
	require.Equal(t, fsm.StateIdle, board.Get(1).Status)
}

func TestStopWrongIndexIsConflict(t *testing.T) {
	m, _ := newMachine(&fakeCapturer{payload: []byte{1}}, newFakeTranscriber(), nil)
	require.ErrorIs(t, m.Stop(context.Background(), 0), fault.ErrConflict)

	require.NoError(t, m.Start(context.Background(), 0))
	require.ErrorIs(t, m.Stop(context.Background(), 1), fault.ErrConflict)
}

func TestEmptyRecordingIsProcessingError(t *testing.T) {
	ind := &fakeIndicator{}
	tr := newFakeTranscriber()
	m, board := newMachine(&fakeCapturer{}, tr, ind)

	require.NoError(t, m.Start(context.Background(), 0))
	err := m.Stop(context.Background(), 0)
	require.ErrorIs(t, err, fault.ErrProcessing)

	got := board.Get(0)
	require.Equal(t, fsm.StateError, got.Status)
	require.Equal(t, "Failed to process audio recording", got.ErrorMessage)
	require.Zero(t, tr.calls.Load())
	require.Equal(t, int32(1), ind.failed.Load())
}

func TestCaptureStartFailureMarksError(t *testing.T) {
	capErr := fault.New(fault.KindDevice, "start", "")
	m, board := newMachine(&fakeCapturer{err: capErr}, newFakeTranscriber(), nil)

	err := m.Start(context.Background(), 0)
	require.ErrorIs(t, err, fault.ErrDevice)
	require.Equal(t, fsm.StateError, board.Get(0).Status)
	_, ok := m.Recording()
	require.False(t, ok)

	_, ok = board.Recording()
	require.False(t, ok)
}

func TestUploadFailureScopedToQuestion(t *testing.T) {
	tr := newFakeTranscriber()
	tr.errs[0] = fault.Server("transcribe_answer", "Audio too short", 400)
	tr.texts[1] = "second"
	m, board := newMachine(&fakeCapturer{payload: []byte{1, 2}}, tr, nil)

	require.NoError(t, m.Start(context.Background(), 0))
	require.NoError(t, m.Stop(context.Background(), 0))
	require.NoError(t, m.Start(context.Background(), 1))
	require.NoError(t, m.Stop(context.Background(), 1))
	require.NoError(t, m.Wait(context.Background()))

	require.Equal(t, fsm.StateError, board.Get(0).Status)
	require.Equal(t, "Audio too short", board.Get(0).ErrorMessage)
	require.Equal(t, fsm.StateReady, board.Get(1).Status)
	require.Equal(t, "second", board.Get(1).Transcript)
}

func TestUploadsRunConcurrentlyAndIndependently(t *testing.T) {
	tr := newFakeTranscriber()
	gate := make(chan struct{})
	tr.gates[0] = gate
	tr.texts[0] = "first"
	tr.texts[1] = "second"
	m, board := newMachine(&fakeCapturer{payload: []byte{9}}, tr, nil)

	require.NoError(t, m.Start(context.Background(), 0))
	require.NoError(t, m.Stop(context.Background(), 0))
	require.Equal(t, fsm.StateUploading, board.Get(0).Status)

	require.NoError(t, m.Start(context.Background(), 1))
	require.NoError(t, m.Stop(context.Background(), 1))
	waitForStatus(t, board, 1, fsm.StateReady)
	require.Equal(t, fsm.StateUploading, board.Get(0).Status)

	close(gate)
	waitForStatus(t, board, 0, fsm.StateReady)
	require.Equal(t, "first", board.Get(0).Transcript)
	require.Equal(t, "second", board.Get(1).Transcript)
}

func TestRestartBlockedWhileUploadingAllowedFromReady(t *testing.T) {
	tr := newFakeTranscriber()
	gate := make(chan struct{})
	tr.gates[0] = gate
	tr.texts[0] = "first take"
	m, board := newMachine(&fakeCapturer{payload: []byte{1}}, tr, nil)

	require.NoError(t, m.Start(context.Background(), 0))
	require.NoError(t, m.Stop(context.Background(), 0))
	waitForStatus(t, board, 0, fsm.StateUploading)

	// Uploading is busy: a restart is only allowed from Ready or Error.
	require.ErrorIs(t, m.Start(context.Background(), 0), fault.ErrConflict)

	close(gate)
	waitForStatus(t, board, 0, fsm.StateReady)

	tr.mu.Lock()
	tr.texts[0] = "fresh"
	delete(tr.gates, 0)
	tr.mu.Unlock()

	require.NoError(t, m.Start(context.Background(), 0))
	require.Empty(t, board.Get(0).Transcript)
	require.NoError(t, m.Stop(context.Background(), 0))
	waitForStatus(t, board, 0, fsm.StateReady)
	require.Equal(t, "fresh", board.Get(0).Transcript)
}

func TestToggle(t *testing.T) {
	tr := newFakeTranscriber()
	tr.texts[2] = "toggled"
	m, board := newMachine(&fakeCapturer{payload: []byte{1}}, tr, nil)

	require.NoError(t, m.Toggle(context.Background(), 2))
	require.Equal(t, fsm.StateRecording, board.Get(2).Status)
	require.ErrorIs(t, m.Toggle(context.Background(), 3), fault.ErrConflict)
	require.NoError(t, m.Toggle(context.Background(), 2))
	waitForStatus(t, board, 2, fsm.StateReady)
}

func TestAbortDiscardsActiveRecording(t *testing.T) {
	tr := newFakeTranscriber()
	capturer := &fakeCapturer{payload: []byte{1}}
	m, board := newMachine(capturer, tr, nil)

	require.NoError(t, m.Start(context.Background(), 0))
	m.Abort()
	m.Abort()

	require.Equal(t, fsm.StateError, board.Get(0).Status)
	require.Equal(t, "Recording cancelled", board.Get(0).ErrorMessage)
	require.Zero(t, tr.calls.Load())
	require.Equal(t, int32(1), capturer.captures[0].stops.Load())
}

func TestShutdownWaitsThenCancelsUploads(t *testing.T) {
	tr := newFakeTranscriber()
	tr.gates[0] = make(chan struct{})
	m, board := newMachine(&fakeCapturer{payload: []byte{1}}, tr, nil)

	require.NoError(t, m.Start(context.Background(), 0))
	require.NoError(t, m.Stop(context.Background(), 0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Shutdown(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Equal(t, fsm.StateError, board.Get(0).Status)
}

func TestStartWithoutCapturerIsUnsupported(t *testing.T) {
	m, _ := newMachine(nil, newFakeTranscriber(), nil)
	require.ErrorIs(t, m.Start(context.Background(), 0), fault.ErrUnsupported)
}

type blockingIndicator struct {
	fakeIndicator
	entered chan int
	release chan struct{}
}

func (i *blockingIndicator) RecordingStarted(_ context.Context, idx int) {
	i.entered <- idx
	<-i.release
}

func TestIndicatorRunsOutsideStateLock(t *testing.T) {
	ind := &blockingIndicator{entered: make(chan int, 1), release: make(chan struct{})}
	m, board := newMachine(&fakeCapturer{payload: []byte{1}}, newFakeTranscriber(), ind)

	started := make(chan error, 1)
	go func() { started <- m.Start(context.Background(), 0) }()
	require.Equal(t, 0, <-ind.entered)

	observed := make(chan int, 1)
	go func() {
		idx, _ := m.Recording()
		observed <- idx
	}()
	select {
	case idx := <-observed:
		require.Equal(t, 0, idx)
	case <-time.After(time.Second):
		t.Fatal("Recording blocked behind the start indicator")
	}
	require.Equal(t, fsm.StateRecording, board.Get(0).Status)
	require.ErrorIs(t, m.Start(context.Background(), 1), fault.ErrConflict)

	close(ind.release)
	require.NoError(t, <-started)
	require.NoError(t, m.Stop(context.Background(), 0))
	require.NoError(t, m.Wait(context.Background()))
}
