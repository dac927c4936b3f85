package media

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/rehearse/internal/fault"
)

// DefaultTimeslice is the interval between recorder data increments.
const DefaultTimeslice = time.Second

type EventKind int

const (
	EventData EventKind = iota + 1
	EventFinal
)

// Event is one recorder message. Data events arrive in capture order; a
// single Final event follows the last one, then the channel closes.
type Event struct {
	Kind EventKind
	Seq  int
	Data []byte
}

// Encodable reports whether the recorder can produce format.
func Encodable(format string) bool {
	return Extension(format) == "wav"
}

// Recorder slices stream audio into timed increments.
type Recorder struct {
	format    string
	pcm       PCMFormat
	timeslice time.Duration

	events chan Event
	stopCh chan struct{}
	done   chan struct{}

	mu          sync.Mutex
	pending     []byte
	stopped     bool
	headerSent  bool
	unsubscribe func()

	bytes atomic.Int64
}

// NewRecorder subscribes to stream and starts emitting increments.
func NewRecorder(stream Stream, format string, timeslice time.Duration) (*Recorder, error) {
	if stream == nil {
		return nil, fault.Conflict("start recording", "media stream is not acquired")
	}
	if !Encodable(format) {
		return nil, fault.New(fault.KindUnsupported, "start recording", "recording format "+format+" is not supported")
	}
	if timeslice <= 0 {
		timeslice = DefaultTimeslice
	}

	r := &Recorder{
		format:    format,
		pcm:       stream.PCM(),
		timeslice: timeslice,
		events:    make(chan Event, 64),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	r.unsubscribe = stream.Subscribe(r.onPCM)
	go r.loop()
	return r, nil
}

func (r *Recorder) Format() string { return r.format }

func (r *Recorder) Events() <-chan Event { return r.events }

// BytesCaptured reports PCM bytes accepted so far.
func (r *Recorder) BytesCaptured() int64 { return r.bytes.Load() }

// Stop ends recording. Remaining audio is flushed, then Final is emitted
// and Events closes. Safe to call more than once.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	unsubscribe := r.unsubscribe
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	close(r.stopCh)
}

// Done is closed after the Final event has been delivered.
func (r *Recorder) Done() <-chan struct{} { return r.done }

func (r *Recorder) onPCM(frame []byte) {
	if len(frame) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.pending = append(r.pending, frame...)
	r.bytes.Add(int64(len(frame)))
}

func (r *Recorder) loop() {
	defer close(r.done)
	defer close(r.events)

	ticker := time.NewTicker(r.timeslice)
	defer ticker.Stop()

	seq := 0
	emit := func() {
		data := r.drain()
		if len(data) == 0 {
			return
		}
		seq++
		r.events <- Event{Kind: EventData, Seq: seq, Data: data}
	}

	for {
		select {
		case <-ticker.C:
			emit()
		case <-r.stopCh:
			emit()
			r.events <- Event{Kind: EventFinal, Seq: seq + 1}
			return
		}
	}
}

func (r *Recorder) drain() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil
	}

	var out []byte
	if !r.headerSent && Encodable(r.format) {
		out = append(out, wavHeader(r.pcm, 0)...)
		r.headerSent = true
	}
	out = append(out, r.pending...)
	r.pending = nil
	return out
}

// Collect drains events until Final and returns the data increments.
func Collect(events <-chan Event) ([][]byte, bool) {
	var increments [][]byte
	for ev := range events {
		switch ev.Kind {
		case EventData:
			increments = append(increments, ev.Data)
		case EventFinal:
			return increments, true
		}
	}
	return increments, false
}
