// ABOUTME: Codec backends producing planar float audio
// ABOUTME: Wraps go-mp3, mewkiz/flac and beep's wav and vorbis decoders
package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"

	"github.com/resonix-audio/resonix-go/pkg/audio"
)

// errRecoverable marks a damaged unit that can be skipped
var errRecoverable = errors.New("recoverable decode error")

// source is one codec backend. read returns one decoded unit as planar
// float samples, io.EOF at the end, or an error wrapping errRecoverable for
// a unit that should be skipped.
type source interface {
	read() ([][]float32, error)
	sampleRate() int
	channels() int
	// durationMs is 0 when unknown
	durationMs() int64
	close() error
}

// mp3Source decodes MPEG audio. go-mp3 always yields 16-bit stereo.
type mp3Source struct {
	decoder *mp3.Decoder
	buf     []byte
}

const mp3ReadBytes = 4608 // 1152 stereo samples

func openMP3(f *os.File) (source, error) {
	d, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	return &mp3Source{decoder: d, buf: make([]byte, mp3ReadBytes)}, nil
}

func (s *mp3Source) read() ([][]float32, error) {
	n, err := io.ReadFull(s.decoder, s.buf)
	if n > 0 {
		frames := n / 4
		left := make([]float32, frames)
		right := make([]float32, frames)
		for i := 0; i < frames; i++ {
			left[i] = audio.Int16ToFloat(int16(binary.LittleEndian.Uint16(s.buf[i*4:])))
			right[i] = audio.Int16ToFloat(int16(binary.LittleEndian.Uint16(s.buf[i*4+2:])))
		}
		// a short final read still carries samples; report the end next call
		return [][]float32{left, right}, nil
	}
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("%w: mp3 frame: %v", errRecoverable, err)
	}
}

func (s *mp3Source) sampleRate() int { return s.decoder.SampleRate() }
func (s *mp3Source) channels() int   { return 2 }

func (s *mp3Source) durationMs() int64 {
	length := s.decoder.Length()
	if length <= 0 {
		return 0
	}
	return length / 4 * 1000 / int64(s.decoder.SampleRate())
}

func (s *mp3Source) close() error { return nil }

// flacSource decodes FLAC frames
type flacSource struct {
	stream   *flac.Stream
	rate     int
	nch      int
	bitDepth int
	samples  uint64
}

func openFLAC(f *os.File) (source, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	info := stream.Info
	return &flacSource{
		stream:   stream,
		rate:     int(info.SampleRate),
		nch:      int(info.NChannels),
		bitDepth: int(info.BitsPerSample),
		samples:  info.NSamples,
	}, nil
}

func (s *flacSource) read() ([][]float32, error) {
	frame, err := s.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if isFLACRecoverable(err) {
			return nil, fmt.Errorf("%w: flac frame: %v", errRecoverable, err)
		}
		return nil, err
	}

	planes := make([][]float32, len(frame.Subframes))
	for ch, sub := range frame.Subframes {
		plane := make([]float32, len(sub.Samples))
		for i, v := range sub.Samples {
			plane[i] = audio.IntToFloat(v, s.bitDepth)
		}
		planes[ch] = plane
	}
	return planes, nil
}

func isFLACRecoverable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "checksum mismatch") || strings.Contains(msg, "CRC")
}

func (s *flacSource) sampleRate() int { return s.rate }
func (s *flacSource) channels() int   { return s.nch }

func (s *flacSource) durationMs() int64 {
	if s.samples == 0 || s.rate == 0 {
		return 0
	}
	return int64(s.samples * 1000 / uint64(s.rate))
}

func (s *flacSource) close() error { return s.stream.Close() }

// beepSource adapts beep streamers, which always yield stereo pairs
type beepSource struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	buf      [][2]float64
}

const beepReadFrames = 1024

func openWAV(f *os.File) (source, error) {
	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: wav: %v", ErrUnsupportedFeature, err)
	}
	return newBeepSource(streamer, format), nil
}

func openVorbis(f *os.File) (source, error) {
	streamer, format, err := vorbis.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: vorbis: %v", ErrUnsupportedFeature, err)
	}
	return newBeepSource(streamer, format), nil
}

func newBeepSource(s beep.StreamSeekCloser, format beep.Format) *beepSource {
	return &beepSource{streamer: s, format: format, buf: make([][2]float64, beepReadFrames)}
}

func (s *beepSource) read() ([][]float32, error) {
	n, ok := s.streamer.Stream(s.buf)
	if n > 0 {
		left := make([]float32, n)
		right := make([]float32, n)
		for i := 0; i < n; i++ {
			left[i] = float32(s.buf[i][0])
			right[i] = float32(s.buf[i][1])
		}
		return [][]float32{left, right}, nil
	}
	if err := s.streamer.Err(); err != nil {
		return nil, err
	}
	if !ok || n == 0 {
		return nil, io.EOF
	}
	return nil, nil
}

func (s *beepSource) sampleRate() int { return int(s.format.SampleRate) }
func (s *beepSource) channels() int   { return s.format.NumChannels }

func (s *beepSource) durationMs() int64 {
	length := s.streamer.Len()
	if length <= 0 || s.format.SampleRate <= 0 {
		return 0
	}
	return int64(length) * 1000 / int64(s.format.SampleRate)
}

func (s *beepSource) close() error { return s.streamer.Close() }
