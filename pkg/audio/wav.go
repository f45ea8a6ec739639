package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	wavHeaderSize = 44
	pcmFormatTag  = 1
)

var ErrInvalidPCMFormat = errors.New("invalid pcm format")

// PCMFormat describes raw little-endian interleaved PCM
type PCMFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Speech is the capture format used for contributions: 16 kHz mono 16-bit
var Speech = PCMFormat{SampleRate: 16000, Channels: 1, BitDepth: 16}

func (f PCMFormat) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidPCMFormat, f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channels %d", ErrInvalidPCMFormat, f.Channels)
	}
	if f.BitDepth != 8 && f.BitDepth != 16 && f.BitDepth != 24 && f.BitDepth != 32 {
		return fmt.Errorf("%w: bit depth %d", ErrInvalidPCMFormat, f.BitDepth)
	}
	return nil
}

// BlockAlign is the size of one frame in bytes
func (f PCMFormat) BlockAlign() int {
	return f.Channels * f.BitDepth / 8
}

// BytesPerSecond is the PCM byte rate
func (f PCMFormat) BytesPerSecond() int {
	return f.SampleRate * f.BlockAlign()
}

// EncodeWAV wraps PCM data into a RIFF/WAVE container.
// Trailing bytes that do not form a full frame are dropped.
func EncodeWAV(pcm []byte, f PCMFormat) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	frame := f.BlockAlign()
	pcm = pcm[:len(pcm)-len(pcm)%frame]

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(pcmFormatTag))
	binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(f.BytesPerSecond()))
	binary.Write(&buf, binary.LittleEndian, uint16(frame))
	binary.Write(&buf, binary.LittleEndian, uint16(f.BitDepth))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}
