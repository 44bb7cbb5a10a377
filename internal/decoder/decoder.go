// ABOUTME: Track decoder producing canonical 48 kHz stereo blocks
// ABOUTME: Handles encrypted inputs, downmix, resampling and block accumulation
package decoder

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/resonix-audio/resonix-go/internal/enc"
	"github.com/resonix-audio/resonix-go/internal/failure"
	"github.com/resonix-audio/resonix-go/pkg/audio"
	"github.com/resonix-audio/resonix-go/pkg/audio/resample"
)

var (
	// ErrUnsupportedCodec means the container or codec has no native decoder
	ErrUnsupportedCodec = errors.New("unsupported codec")
	// ErrUnsupportedFeature means a supported codec uses a variant we cannot read
	ErrUnsupportedFeature = errors.New("unsupported codec feature")
)

// MinBlockSamples is the minimum number of samples per channel in a block
// returned by Next, except for the final flush
const MinBlockSamples = audio.FrameSamples

// maxConsecutiveErrors bounds how many damaged units in a row are skipped
const maxConsecutiveErrors = 32

// Info describes the opened track
type Info struct {
	Codec      Codec
	SampleRate int
	Channels   int
	DurationMs int64
	Title      string
	Artist     string
}

// Decoder reads a file and yields canonical PCM blocks
type Decoder struct {
	path     string
	file     *os.File
	tempCopy string

	src       source
	resampler *resample.Resampler
	info      Info

	pending audio.Block
	eos     bool
	done    bool
	errRun  int
}

// Opener opens decoders. Box decrypts RXENC1 files; nil uses the process key.
type Opener struct {
	Box *enc.Box
}

// Open opens path with the default opener
func Open(path string) (*Decoder, error) {
	return (&Opener{}).Open(path)
}

// Open probes path and prepares a decoder for it
func (o *Opener) Open(path string) (*Decoder, error) {
	readPath := path
	tempCopy := ""

	if enc.IsEncrypted(path) {
		box := o.Box
		if box == nil {
			box = enc.Default()
		}
		plain, err := box.DecryptToTemp(path)
		if err != nil {
			return nil, failure.New(failure.DecodeOpenFailure, "decrypt", err)
		}
		readPath = plain
		tempCopy = plain
	}

	d, err := openPlain(readPath)
	if err != nil {
		if tempCopy != "" {
			os.Remove(tempCopy)
		}
		return nil, err
	}
	d.path = path
	d.tempCopy = tempCopy
	return d, nil
}

func openPlain(path string) (*Decoder, error) {
	codec, err := Probe(path)
	if err != nil {
		return nil, failure.New(failure.SourceUnavailable, "open", err)
	}
	if !codec.Supported() {
		name := string(codec)
		if name == "" {
			name = "unknown"
		}
		return nil, failure.New(failure.DecodeOpenFailure, "probe", fmt.Errorf("%w: %s", ErrUnsupportedCodec, name))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, failure.New(failure.SourceUnavailable, "open", err)
	}

	title, artist := readTags(f)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, failure.New(failure.DecodeOpenFailure, "seek", err)
	}

	var src source
	switch codec {
	case CodecMP3:
		src, err = openMP3(f)
	case CodecFLAC:
		src, err = openFLAC(f)
	case CodecWAV:
		src, err = openWAV(f)
	case CodecVorbis:
		src, err = openVorbis(f)
	}
	if err != nil {
		f.Close()
		return nil, failure.New(failure.DecodeOpenFailure, string(codec), err)
	}

	rate := src.sampleRate()
	if rate <= 0 {
		src.close()
		f.Close()
		return nil, failure.Newf(failure.DecodeOpenFailure, string(codec), "invalid sample rate %d", rate)
	}

	info := Info{
		Codec:      codec,
		SampleRate: rate,
		Channels:   src.channels(),
		DurationMs: src.durationMs(),
		Title:      title,
		Artist:     artist,
	}
	log.Printf("Opened %s: %s, %d Hz, %d channels", filepath.Base(path), codec, info.SampleRate, info.Channels)

	return &Decoder{
		file:      f,
		src:       src,
		resampler: resample.New(rate, audio.SampleRate, audio.Channels),
		info:      info,
	}, nil
}

func readTags(f *os.File) (title, artist string) {
	m, err := tag.ReadFrom(f)
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(m.Title()), strings.TrimSpace(m.Artist())
}

// Info returns the track description
func (d *Decoder) Info() Info {
	return d.info
}

// Next returns the next block of at least MinBlockSamples samples. The
// remainder is returned as a final shorter block, then io.EOF.
func (d *Decoder) Next() (audio.Block, error) {
	if d.done {
		return audio.Block{}, io.EOF
	}

	for !d.eos && d.pending.Len() < MinBlockSamples {
		planes, err := d.src.read()
		switch {
		case err == nil:
			d.errRun = 0
			d.push(planes)
		case errors.Is(err, io.EOF):
			d.eos = true
		case errors.Is(err, errRecoverable):
			d.errRun++
			if d.errRun > maxConsecutiveErrors {
				d.done = true
				return audio.Block{}, failure.Newf(failure.DecodeStreamFailure, string(d.info.Codec),
					"%d consecutive damaged units: %v", d.errRun, err)
			}
			log.Printf("Skipping damaged unit in %s: %v", filepath.Base(d.path), err)
		default:
			d.done = true
			return audio.Block{}, failure.New(failure.DecodeStreamFailure, string(d.info.Codec), err)
		}
	}

	if d.pending.Len() == 0 {
		d.done = true
		return audio.Block{}, io.EOF
	}

	out := d.pending
	d.pending = audio.Block{}
	return out, nil
}

func (d *Decoder) push(planes [][]float32) {
	if len(planes) == 0 || len(planes[0]) == 0 {
		return
	}
	left, right := Downmix(planes)
	res := d.resampler.Resample([][]float32{left, right})
	d.pending.Append(audio.Block{Left: res[0], Right: res[1]})
}

// Close releases the file and removes any decrypted copy
func (d *Decoder) Close() error {
	var firstErr error
	if d.src != nil {
		if err := d.src.close(); err != nil && !errors.Is(err, os.ErrClosed) {
			firstErr = err
		}
	}
	if d.file != nil {
		if err := d.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) && firstErr == nil {
			firstErr = err
		}
	}
	if d.tempCopy != "" {
		if err := os.Remove(d.tempCopy); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
		d.tempCopy = ""
	}
	return firstErr
}
