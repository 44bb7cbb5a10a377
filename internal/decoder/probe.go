// ABOUTME: Container and codec detection
// ABOUTME: Sniffs magic bytes first and falls back to the file extension
package decoder

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Codec names a supported or recognised audio format
type Codec string

const (
	CodecUnknown Codec = ""
	CodecMP3     Codec = "mp3"
	CodecFLAC    Codec = "flac"
	CodecWAV     Codec = "wav"
	CodecVorbis  Codec = "vorbis"

	// Recognised but not decoded natively
	CodecOpus Codec = "opus"
	CodecMP4  Codec = "mp4"
	CodecWebM Codec = "webm"
)

// Supported reports whether the codec has a native decoder
func (c Codec) Supported() bool {
	switch c {
	case CodecMP3, CodecFLAC, CodecWAV, CodecVorbis:
		return true
	}
	return false
}

const sniffLen = 512

// Probe identifies the codec of the file at path
func Probe(path string) (Codec, error) {
	f, err := os.Open(path)
	if err != nil {
		return CodecUnknown, err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return CodecUnknown, err
	}
	head = head[:n]

	if c := sniff(head); c != CodecUnknown {
		return c, nil
	}
	return byExtension(path), nil
}

func sniff(head []byte) Codec {
	switch {
	case bytes.HasPrefix(head, []byte("fLaC")):
		return CodecFLAC
	case len(head) >= 12 && bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return CodecWAV
	case bytes.HasPrefix(head, []byte("OggS")):
		switch {
		case bytes.Contains(head, []byte("\x01vorbis")):
			return CodecVorbis
		case bytes.Contains(head, []byte("OpusHead")):
			return CodecOpus
		}
		return CodecUnknown
	case len(head) >= 8 && bytes.Equal(head[4:8], []byte("ftyp")):
		return CodecMP4
	case bytes.HasPrefix(head, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return CodecWebM
	case bytes.HasPrefix(head, []byte("ID3")):
		return CodecMP3
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0 && head[1]&0x06 != 0:
		// MPEG audio frame sync with a valid layer
		return CodecMP3
	}
	return CodecUnknown
}

func byExtension(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return CodecMP3
	case ".flac":
		return CodecFLAC
	case ".wav", ".wave":
		return CodecWAV
	case ".ogg", ".oga":
		return CodecVorbis
	case ".opus":
		return CodecOpus
	case ".m4a", ".mp4", ".aac":
		return CodecMP4
	case ".webm", ".mka":
		return CodecWebM
	}
	return CodecUnknown
}
