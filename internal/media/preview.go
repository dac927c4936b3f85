package media

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
)

// PreviewSink renders the live stream back to the user.
type PreviewSink interface {
	Attach(stream Stream) error
	Detach()
}

// LevelMeter tracks the RMS level of the most recent PCM frame in [0,1].
type LevelMeter struct {
	mu          sync.Mutex
	unsubscribe func()
	level       atomic.Uint64
}

func NewLevelMeter() *LevelMeter { return &LevelMeter{} }

func (m *LevelMeter) Attach(stream Stream) error {
	if stream == nil {
		return errNoStream
	}
	if bits := stream.PCM().BitsPerSample; bits != 0 && bits != 16 {
		return errUnsupportedPCM
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.unsubscribe = stream.Subscribe(m.observe)
	return nil
}

func (m *LevelMeter) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.level.Store(0)
}

func (m *LevelMeter) Level() float64 {
	return math.Float64frombits(m.level.Load())
}

func (m *LevelMeter) observe(frame []byte) {
	m.level.Store(math.Float64bits(rmsInt16LE(frame)))
}

func rmsInt16LE(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(frame[i*2:]))) / 32768
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
