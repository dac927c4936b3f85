package media

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/rehearse/internal/fault"
)

type fakeTrack struct {
	kind  TrackKind
	stops atomic.Int32
}

func (t *fakeTrack) Kind() TrackKind { return t.kind }
func (t *fakeTrack) Label() string   { return string(t.kind) }
func (t *fakeTrack) Stop()           { t.stops.Add(1) }

type fakeStream struct {
	tracks []Track

	mu   sync.Mutex
	subs map[int]func([]byte)
	next int
}

func newFakeStream(tracks ...Track) *fakeStream {
	return &fakeStream{tracks: tracks, subs: map[int]func([]byte){}}
}

func (s *fakeStream) Tracks() []Track { return s.tracks }
func (s *fakeStream) PCM() PCMFormat  { return PCMFormat{SampleRate: 16000, Channels: 1, BitsPerSample: 16} }

func (s *fakeStream) Subscribe(fn func([]byte)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *fakeStream) push(frame []byte) {
	s.mu.Lock()
	subs := make([]func([]byte), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(frame)
	}
}

func (s *fakeStream) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

type fakeRuntime struct {
	stream    Stream
	err       error
	supported map[string]bool
	def       string
	acquires  atomic.Int32
}

func (r *fakeRuntime) Acquire(context.Context, Constraints) (Stream, error) {
	r.acquires.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.stream, nil
}

func (r *fakeRuntime) Supports(format string) bool { return r.supported[format] }
func (r *fakeRuntime) DefaultFormat() string       { return r.def }

type failingPreview struct{ detached atomic.Int32 }

func (p *failingPreview) Attach(Stream) error { return errors.New("no output") }
func (p *failingPreview) Detach()             { p.detached.Add(1) }

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name      string
		supported map[string]bool
		def       string
		want      string
	}{
		{name: "first preference", supported: map[string]bool{FormatWebMOpus: true, FormatWAV: true}, want: FormatWebMOpus},
		{name: "later preference", supported: map[string]bool{FormatMP4: true, FormatWAV: true}, want: FormatMP4},
		{name: "wav only", supported: map[string]bool{FormatWAV: true}, want: FormatWAV},
		{name: "runtime default", supported: map[string]bool{}, def: "audio/flac", want: "audio/flac"},
		{name: "fallback", supported: map[string]bool{}, want: FallbackFormat},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			supports := func(f string) bool { return tc.supported[f] }
			require.Equal(t, tc.want, Negotiate(DefaultPreferences, supports, tc.def))
		})
	}
}

func TestExtension(t *testing.T) {
	require.Equal(t, "webm", Extension(FormatWebMOpus))
	require.Equal(t, "ogg", Extension(FormatOggOpus))
	require.Equal(t, "m4a", Extension(FormatMP4))
	require.Equal(t, "wav", Extension(FormatWAV))
	require.Equal(t, "webm", Extension(""))
}

func TestAssembleEmptyIsProcessingError(t *testing.T) {
	_, err := Assemble(FormatWAV, nil)
	require.ErrorIs(t, err, fault.ErrProcessing)

	_, err = Assemble(FormatWAV, [][]byte{wavHeader(PCMFormat{SampleRate: 16000}, 0)})
	require.ErrorIs(t, err, fault.ErrProcessing)
}

func TestAssemblePatchesWAVSizes(t *testing.T) {
	pcm := PCMFormat{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
	first := append(wavHeader(pcm, 0), 1, 2, 3, 4)
	clip, err := Assemble(FormatWAV, [][]byte{first, {5, 6}})
	require.NoError(t, err)
	require.Len(t, clip, wavHeaderSize+6)
	require.Equal(t, uint32(36+6), binary.LittleEndian.Uint32(clip[4:8]))
	require.Equal(t, uint32(6), binary.LittleEndian.Uint32(clip[40:44]))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, clip[wavHeaderSize:])
}

func TestRecorderEmitsIncrementsThenFinal(t *testing.T) {
	stream := newFakeStream(&fakeTrack{kind: TrackAudio})
	rec, err := NewRecorder(stream, FormatWAV, 10*time.Millisecond)
	require.NoError(t, err)

	stream.push([]byte{1, 0, 2, 0})
	require.Eventually(t, func() bool { return rec.BytesCaptured() == 4 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	stream.push([]byte{3, 0})
	rec.Stop()
	rec.Stop()

	increments, final := Collect(rec.Events())
	require.True(t, final)
	require.NotEmpty(t, increments)
	require.Equal(t, "RIFF", string(increments[0][:4]))

	clip, err := Assemble(FormatWAV, increments)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 0, 2, 0, 3, 0}, clip[wavHeaderSize:])
	require.Zero(t, stream.subscribers())
	<-rec.Done()
}

func TestRecorderWithoutAudioProducesNoIncrements(t *testing.T) {
	stream := newFakeStream()
	rec, err := NewRecorder(stream, FormatWAV, time.Hour)
	require.NoError(t, err)
	rec.Stop()

	increments, final := Collect(rec.Events())
	require.True(t, final)
	require.Empty(t, increments)

	_, err = Assemble(FormatWAV, increments)
	require.ErrorIs(t, err, fault.ErrProcessing)
}

func TestRecorderRejectsUnencodableFormat(t *testing.T) {
	_, err := NewRecorder(newFakeStream(), FormatWebMOpus, 0)
	require.ErrorIs(t, err, fault.ErrUnsupported)

	_, err = NewRecorder(nil, FormatWAV, 0)
	require.ErrorIs(t, err, fault.ErrConflict)
}

func TestControllerAcquireNegotiatesAndReleasesOnce(t *testing.T) {
	audio := &fakeTrack{kind: TrackAudio}
	video := &fakeTrack{kind: TrackVideo}
	runtime := &fakeRuntime{stream: newFakeStream(audio, video), supported: map[string]bool{FormatWAV: true}}
	c := NewController(runtime, Options{})

	require.NoError(t, c.Acquire(context.Background()))
	require.NoError(t, c.Acquire(context.Background()))
	require.Equal(t, int32(1), runtime.acquires.Load())
	require.True(t, c.Acquired())
	require.Equal(t, FormatWAV, c.Format())

	require.True(t, c.Release())
	require.False(t, c.Release())
	require.False(t, c.Acquired())
	require.Equal(t, int32(1), audio.stops.Load())
	require.Equal(t, int32(1), video.stops.Load())
}

func TestControllerAcquireClassifiesErrors(t *testing.T) {
	perm := fault.New(fault.KindPermission, "acquire media", "")
	c := NewController(&fakeRuntime{err: perm}, Options{})
	require.ErrorIs(t, c.Acquire(context.Background()), fault.ErrPermission)

	c = NewController(&fakeRuntime{err: errors.New("no sound server")}, Options{})
	require.ErrorIs(t, c.Acquire(context.Background()), fault.ErrUnsupported)

	c = NewController(&fakeRuntime{err: context.DeadlineExceeded}, Options{})
	require.ErrorIs(t, c.Acquire(context.Background()), fault.ErrTimeout)

	require.ErrorIs(t, NewController(nil, Options{}).Acquire(context.Background()), fault.ErrUnsupported)
}

func TestControllerAcquireStopsStreamArrivingAfterCancel(t *testing.T) {
	track := &fakeTrack{kind: TrackAudio}
	runtime := &fakeRuntime{stream: newFakeStream(track), supported: map[string]bool{FormatWAV: true}}
	c := NewController(runtime, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(1), runtime.acquires.Load())
	require.False(t, c.Acquired())
	require.Equal(t, int32(1), track.stops.Load())
	require.False(t, c.Release())
	require.Equal(t, int32(1), track.stops.Load())
}

func TestControllerPreviewFailureIsNonFatal(t *testing.T) {
	preview := &failingPreview{}
	c := NewController(&fakeRuntime{stream: newFakeStream(&fakeTrack{kind: TrackAudio}), supported: map[string]bool{FormatWAV: true}}, Options{Preview: preview})

	require.NoError(t, c.Acquire(context.Background()))
	require.True(t, c.Release())
	require.Equal(t, int32(1), preview.detached.Load())
}

func TestControllerStartCaptureRequiresStream(t *testing.T) {
	c := NewController(&fakeRuntime{}, Options{})
	_, err := c.StartCapture()
	require.ErrorIs(t, err, fault.ErrConflict)
}

func TestControllerScopeReleasesOnError(t *testing.T) {
	track := &fakeTrack{kind: TrackAudio}
	c := NewController(&fakeRuntime{stream: newFakeStream(track), supported: map[string]bool{FormatWAV: true}}, Options{})

	boom := errors.New("boom")
	err := c.Scope(context.Background(), func(context.Context) error {
		require.True(t, c.Acquired())
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, c.Acquired())
	require.Equal(t, int32(1), track.stops.Load())
}

func TestLevelMeterTracksRMS(t *testing.T) {
	stream := newFakeStream()
	meter := NewLevelMeter()
	require.NoError(t, meter.Attach(stream))

	frame := make([]byte, 4)
	binary.LittleEndian.PutUint16(frame[0:], uint16(16384))
	binary.LittleEndian.PutUint16(frame[2:], uint16(16384))
	stream.push(frame)
	require.InDelta(t, 0.5, meter.Level(), 0.001)

	meter.Detach()
	require.Zero(t, meter.Level())
	require.Zero(t, stream.subscribers())
	require.Error(t, meter.Attach(nil))
}
