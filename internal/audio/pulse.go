// Package audio is the PulseAudio capture runtime: source discovery,
// selection, and the live record stream behind an interview.
package audio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/media"
)

const (
	sampleRate       = 16000
	fragmentBytes    = 640 // 20ms @ 16kHz mono s16
	clientName       = "rehearse"
	recordMediaTitle = "rehearse interview answer"
)

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved capture source plus fallback context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func connect() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(clientName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, classifyConnectError(err)
	}
	return client, nil
}

// classifyConnectError separates a refused connection from a missing server.
func classifyConnectError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") || strings.Contains(msg, "permission denied") {
		return fault.Wrap(fault.KindPermission, "connect pulse server", "", err)
	}
	return fault.Wrap(fault.KindUnsupported, "connect pulse server", "", err)
}

// ListDevices returns Pulse input sources with default/availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := connect()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var defaultID string
	if src, err := client.DefaultSource(); err == nil {
		defaultID = src.ID()
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, source := range infos {
		if source == nil || isMonitor(source) {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves media.input/media.fallback against live sources.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, deviceError("no audio input devices found")
	}

	input = normalizeTerm(input)
	fallback = normalizeTerm(fallback)

	var preferred, byInput, byFallback *Device
	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			preferred = dev
		}
		if byInput == nil && deviceMatches(*dev, input) {
			byInput = dev
		}
		if byFallback == nil && deviceMatches(*dev, fallback) {
			byFallback = dev
		}
	}
	if preferred == nil {
		preferred = &devices[0]
	}

	primary := preferred
	if input != "" {
		if byInput == nil {
			return Selection{}, deviceError(fmt.Sprintf("media.input %q did not match any device", input))
		}
		primary = byInput
	}
	if usable(*primary) {
		return Selection{Device: *primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	alt := preferred
	if fallback != "" {
		if byFallback == nil {
			return Selection{}, deviceError(fmt.Sprintf("input %q is %s and fallback %q not found", primary.ID, reason, fallback))
		}
		alt = byFallback
	}
	if !usable(*alt) {
		return Selection{}, deviceError(fmt.Sprintf("input %q is %s and fallback %q is not usable", primary.ID, reason, alt.ID))
	}

	return Selection{
		Device:   *alt,
		Warning:  fmt.Sprintf("media.input %q is %s; falling back to %q", primary.ID, reason, alt.ID),
		Fallback: primary.ID != alt.ID,
	}, nil
}

func usable(d Device) bool { return d.Available && !d.Muted }

func normalizeTerm(term string) string {
	term = strings.TrimSpace(strings.ToLower(term))
	if term == "default" {
		return ""
	}
	return term
}

func deviceError(message string) error {
	return fault.Wrap(fault.KindDevice, "select input", "", fmt.Errorf("%s", message))
}

func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func isMonitor(source *pulseproto.GetSourceInfoReply) bool {
	return strings.HasSuffix(source.SourceName, ".monitor")
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	for _, port := range source.Ports {
		if port.Name == source.ActivePortName {
			// PulseAudio values: unknown=0, no=1, yes=2.
			return port.Available != 1
		}
	}
	return true
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }

// Stream is a running Pulse record stream exposed as a media.Stream.
type Stream struct {
	device Device
	client *pulse.Client
	record *pulse.RecordStream
	track  *track

	mu      sync.Mutex
	subs    map[int]func([]byte)
	nextSub int
	stopped bool

	inflight sync.WaitGroup
}

func startStream(selected Device) (*Stream, error) {
	client, err := connect()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fault.Wrap(fault.KindDevice, "resolve source", "", err)
	}

	s := &Stream{device: selected, client: client, subs: map[int]func([]byte){}}
	s.track = &track{label: selected.Description, stop: s.stop}

	writer := pulse.NewWriter(writerFunc(s.onPCM), pulseproto.FormatInt16LE)
	record, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(fragmentBytes),
		pulse.RecordMediaName(recordMediaTitle),
	)
	if err != nil {
		client.Close()
		return nil, classifyConnectError(fmt.Errorf("create record stream: %w", err))
	}

	s.record = record
	record.Start()
	return s, nil
}

func (s *Stream) Device() Device { return s.device }

func (s *Stream) Tracks() []media.Track { return []media.Track{s.track} }

func (s *Stream) PCM() media.PCMFormat {
	return media.PCMFormat{SampleRate: sampleRate, Channels: 1, BitsPerSample: 16}
}

func (s *Stream) Subscribe(fn func([]byte)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// stop halts the record stream and disconnects exactly once.
func (s *Stream) stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	if s.record != nil {
		s.record.Stop()
		s.record.Close()
	}
	if s.client != nil {
		s.client.Close()
	}
	s.inflight.Wait()

	s.mu.Lock()
	s.subs = map[int]func([]byte){}
	s.mu.Unlock()
}

func (s *Stream) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same mutex as stopped so stop's Wait cannot miss it.
	s.inflight.Add(1)
	subs := make([]func([]byte), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	defer s.inflight.Done()

	frame := make([]byte, len(buffer))
	copy(frame, buffer)
	for _, fn := range subs {
		fn(frame)
	}
	return len(buffer), nil
}

type track struct {
	label string
	stop  func()
}

func (t *track) Kind() media.TrackKind { return media.TrackAudio }
func (t *track) Label() string         { return t.label }
func (t *track) Stop()                 { t.stop() }
