package media

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/rbright/rehearse/internal/fault"
)

const wavHeaderSize = 44

// wavHeader builds a PCM WAV header for dataSize bytes of samples.
func wavHeader(pcm PCMFormat, dataSize int) []byte {
	channels := pcm.Channels
	if channels <= 0 {
		channels = 1
	}
	bits := pcm.BitsPerSample
	if bits <= 0 {
		bits = 16
	}
	byteRate := pcm.SampleRate * channels * (bits / 8)
	blockAlign := channels * (bits / 8)

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(pcm.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bits))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))
	return header
}

// WriteWAV writes pcm with a complete header.
func WriteWAV(w io.Writer, pcm PCMFormat, samples []byte) error {
	if _, err := w.Write(wavHeader(pcm, len(samples))); err != nil {
		return err
	}
	_, err := w.Write(samples)
	return err
}

// Assemble joins recorder increments into one clip. For WAV the first
// increment carries a streaming header whose sizes are patched here.
func Assemble(format string, increments [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	for _, inc := range increments {
		buf.Write(inc)
	}
	if buf.Len() == 0 {
		return nil, fault.Processing("assemble clip", "Failed to process audio recording")
	}

	out := buf.Bytes()
	if Extension(format) != "wav" {
		return out, nil
	}
	if len(out) <= wavHeaderSize || string(out[0:4]) != "RIFF" {
		return nil, fault.Processing("assemble clip", "Failed to process audio recording")
	}
	dataSize := len(out) - wavHeaderSize
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))
	return out, nil
}
