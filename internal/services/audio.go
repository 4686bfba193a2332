package services

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

const (
	wavBitDepth  = 16
	wavPCMFormat = 1
)

// NormalizeToWAV returns audio as 16-bit PCM WAV. WAV input passes through
// untouched, anything else is decoded as MP3.
func NormalizeToWAV(data []byte) ([]byte, error) {
	if isWAV(data) {
		return data, nil
	}
	return MP3ToWAV(data)
}

// MP3ToWAV decodes an MP3 stream and re-encodes it as stereo 16-bit PCM WAV.
func MP3ToWAV(data []byte) ([]byte, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decode mp3 frames: %w", err)
	}
	if len(pcm) == 0 {
		return nil, errors.New("decode mp3: no audio frames")
	}

	// go-mp3 always yields interleaved stereo little-endian int16.
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	return EncodeWAV(samples, dec.SampleRate(), 2)
}

// EncodeWAV writes interleaved 16-bit samples as a WAV file.
func EncodeWAV(samples []int, sampleRate, channels int) ([]byte, error) {
	out := &memWriteSeeker{}
	enc := wav.NewEncoder(out, sampleRate, wavBitDepth, channels, wavPCMFormat)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}
	return out.buf, nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// memWriteSeeker is the io.WriteSeeker the WAV encoder needs to patch its header.
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
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if next < 0 {
		return 0, errors.New("seek: negative position")
	}
	m.pos = int(next)
	return next, nil
}
