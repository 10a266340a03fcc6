package holysaw

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Wav encodes the buffer as a mono .wav file at SampleRate. With pcm16, the
// samples are clamped to [-1, 1] and stored as 16-bit signed integers;
// otherwise they are stored as 32-bit IEEE floats, unclamped.
func (b AudioBuffer) Wav(pcm16 bool) ([]byte, error) {
	if pcm16 {
		ws := &memWriteSeeker{}
		enc := wav.NewEncoder(ws, SampleRate, 16, 1, 1)
		intBuffer := &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: SampleRate},
			Data:           b.ints16(),
			SourceBitDepth: 16,
		}
		if err := enc.Write(intBuffer); err != nil {
			return nil, fmt.Errorf("Wav failed: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("Wav failed: %w", err)
		}
		return ws.buf, nil
	}
	// go-audio/wav only encodes integer PCM, so the float header is written
	// by hand
	buf := new(bytes.Buffer)
	floatWavHeader(len(b), buf)
	if err := binary.Write(buf, binary.LittleEndian, []float32(b)); err != nil {
		return nil, fmt.Errorf("Wav failed: could not binary write data to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

// Raw returns the samples without any header, little-endian, either as
// 16-bit integers or as 32-bit floats.
func (b AudioBuffer) Raw(pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	var err error
	if pcm16 {
		ints := b.ints16()
		data := make([]int16, len(ints))
		for i, v := range ints {
			data[i] = int16(v)
		}
		err = binary.Write(buf, binary.LittleEndian, data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, []float32(b))
	}
	if err != nil {
		return nil, fmt.Errorf("Raw failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (b AudioBuffer) ints16() []int {
	ret := make([]int, len(b))
	for i, v := range b {
		ret[i] = clamp(int(float64(v)*math.MaxInt16), math.MinInt16, math.MaxInt16)
	}
	return ret
}

// floatWavHeader writes the header of a mono 32-bit float .wav file holding
// bufferLength samples.
// Refer to: http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
func floatWavHeader(bufferLength int, buf *bytes.Buffer) {
	const (
		numChannels    = 1
		bytesPerSample = 4
		fmtChunkSize   = 18
		waveFormat     = 3 // IEEE float
	)
	chunkSize := 50 + bytesPerSample*bufferLength
	buf.Write([]byte("RIFF"))
	binary.Write(buf, binary.LittleEndian, uint32(chunkSize))
	buf.Write([]byte("WAVE"))
	buf.Write([]byte("fmt "))
	binary.Write(buf, binary.LittleEndian, uint32(fmtChunkSize))
	binary.Write(buf, binary.LittleEndian, uint16(waveFormat))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(SampleRate*numChannels*bytesPerSample)) // avgBytesPerSec
	binary.Write(buf, binary.LittleEndian, uint16(numChannels*bytesPerSample))            // blockAlign
	binary.Write(buf, binary.LittleEndian, uint16(8*bytesPerSample))                      // bits per sample
	binary.Write(buf, binary.LittleEndian, uint16(0))                                     // size of extension
	buf.Write([]byte("fact"))
	binary.Write(buf, binary.LittleEndian, uint32(4))
	binary.Write(buf, binary.LittleEndian, uint32(bufferLength)) // sample length
	buf.Write([]byte("data"))
	binary.Write(buf, binary.LittleEndian, uint32(bytesPerSample*bufferLength))
}

// memWriteSeeker is an in-memory io.WriteSeeker; the wav encoder seeks back
// to patch chunk sizes when it is closed.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memWriteSeeker: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("memWriteSeeker: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
