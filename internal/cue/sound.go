package cue

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/rehearse/internal/config"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueError
)

func (k cueKind) String() string {
	switch k {
	case cueStart:
		return "start"
	case cueStop:
		return "stop"
	case cueComplete:
		return "complete"
	case cueError:
		return "error"
	default:
		return fmt.Sprintf("cue(%d)", int(k))
	}
}

const (
	chimeRate    = 16000
	noteGap      = 22 * time.Millisecond
	fadeLimit    = 5 * time.Millisecond
	filePlayTime = 4 * time.Second
)

// note is one sine segment of a chime.
type note struct {
	hz   float64
	dur  time.Duration
	gain float64
}

// Rising pairs for start and complete, a single low note for stop and a
// falling triad for errors.
var chimes = map[cueKind][]note{
	cueStart:    {{660, 60 * time.Millisecond, 0.18}, {990, 80 * time.Millisecond, 0.18}},
	cueStop:     {{620, 120 * time.Millisecond, 0.18}},
	cueComplete: {{740, 65 * time.Millisecond, 0.18}, {988, 90 * time.Millisecond, 0.18}},
	cueError:    {{520, 70 * time.Millisecond, 0.2}, {390, 70 * time.Millisecond, 0.2}, {290, 110 * time.Millisecond, 0.2}},
}

var renderedChimes = sync.OnceValue(func() map[cueKind][]int16 {
	out := make(map[cueKind][]int16, len(chimes))
	for kind, notes := range chimes {
		out[kind] = renderChime(notes)
	}
	return out
})

// emitCue plays the configured sound file for kind. Without a file, or when
// pw-play fails, the built-in chime plays instead.
func emitCue(ctx context.Context, kind cueKind, cfg config.CueConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path := soundFile(kind, cfg); path != "" {
		if err := playFile(ctx, path); err == nil {
			return nil
		}
	}

	pcm := renderedChimes()[kind]
	if len(pcm) == 0 {
		return nil
	}
	return playPCM(pcm)
}

func soundFile(kind cueKind, cfg config.CueConfig) string {
	switch kind {
	case cueStart:
		return cfg.SoundStartFile
	case cueStop:
		return cfg.SoundStopFile
	case cueComplete:
		return cfg.SoundCompleteFile
	case cueError:
		return cfg.SoundErrorFile
	}
	return ""
}

func playFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat cue file %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, filePlayTime)
	defer cancel()

	if err := exec.CommandContext(ctx, "pw-play", "--media-role", "Notification", path).Run(); err != nil {
		return fmt.Errorf("pw-play %q: %w", path, err)
	}
	return nil
}

func playPCM(pcm []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("rehearse"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	remaining := pcm
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		n := copy(buf, remaining)
		remaining = remaining[n:]
		if len(remaining) == 0 {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(chimeRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("rehearse cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue: %w", err)
	}
	return nil
}

// renderChime concatenates notes with a short silence between them.
func renderChime(notes []note) []int16 {
	var pcm []int16
	for i, n := range notes {
		if i > 0 {
			pcm = append(pcm, make([]int16, sampleCount(noteGap))...)
		}
		pcm = append(pcm, renderNote(n)...)
	}
	return pcm
}

// renderNote produces a sine wave with raised-cosine fades at both ends so
// the note starts and stops without clicks.
func renderNote(n note) []int16 {
	total := sampleCount(n.dur)
	if total == 0 || n.hz <= 0 || n.gain <= 0 {
		return nil
	}

	fade := min(max(total/10, 1), sampleCount(fadeLimit))
	pcm := make([]int16, total)
	for i := range pcm {
		edge := min(i, total-1-i)
		envelope := 1.0
		if edge < fade {
			envelope = 0.5 - 0.5*math.Cos(math.Pi*float64(edge)/float64(fade))
		}
		phase := 2 * math.Pi * n.hz * float64(i) / chimeRate
		pcm[i] = int16(math.Round(math.Sin(phase) * n.gain * envelope * math.MaxInt16))
	}
	return pcm
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * chimeRate))
}
