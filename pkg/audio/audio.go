// Package audio validates that downloaded files are genuine audio before
// they are handed to transcription. Validation is a shallow magic-bytes
// check with an optional probe-tool fallback for containers the sniffer
// does not recognize.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MinValidSize is the smallest file size accepted as audio. Error pages and
// truncated responses are almost always smaller.
const MinValidSize = 1000

var (
	ErrTooSmall    = errors.New("file too small to be valid audio")
	ErrHTMLContent = errors.New("file contains HTML, not audio")
	ErrNotAudio    = errors.New("file does not look like audio")
)

// Prober identifies a file's container via an external tool. Implemented by
// pkg/ffmpeg; used as a fallback when the magic-bytes check is inconclusive.
type Prober interface {
	IsAudio(ctx context.Context, path string) (bool, error)
}

// Validator checks downloaded files for audio content.
type Validator struct {
	prober Prober
}

// NewValidator creates a validator. prober may be nil, in which case only
// the magic-bytes check is applied.
func NewValidator(prober Prober) *Validator {
	return &Validator{prober: prober}
}

// Validate returns nil when path holds a plausible audio file. HTML bodies
// and files under MinValidSize fail outright regardless of the prober.
func (v *Validator) Validate(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", filepath.Base(path), err)
	}
	if info.Size() < MinValidSize {
		return fmt.Errorf("%w: %d bytes", ErrTooSmall, info.Size())
	}

	header, err := readHeader(path, 64)
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", filepath.Base(path), err)
	}

	if LooksLikeHTML(header) {
		return ErrHTMLContent
	}
	if HasAudioSignature(header) {
		return nil
	}

	if v.prober != nil {
		ok, err := v.prober.IsAudio(ctx, path)
		if err == nil && ok {
			return nil
		}
	}

	return ErrNotAudio
}

// HasAudioSignature reports whether the header bytes match a known audio
// container signature.
func HasAudioSignature(header []byte) bool {
	if len(header) < 4 {
		return false
	}

	// ID3 tag (MP3 with metadata)
	if bytes.HasPrefix(header, []byte("ID3")) {
		return true
	}
	// Raw MPEG audio frame sync
	if header[0] == 0xFF && (header[1] == 0xFB || header[1] == 0xF3 || header[1] == 0xF2) {
		return true
	}
	// ISO base media (MP4/M4A): [4-byte size] + 'ftyp'
	if len(header) >= 8 && bytes.Equal(header[4:8], []byte("ftyp")) {
		return true
	}
	// Ogg container (Vorbis or Opus)
	if bytes.HasPrefix(header, []byte("OggS")) {
		return true
	}
	// RIFF (WAV)
	if bytes.HasPrefix(header, []byte("RIFF")) {
		return true
	}
	// FLAC
	if bytes.HasPrefix(header, []byte("fLaC")) {
		return true
	}
	// Opus identification header, normally inside the first Ogg page
	if bytes.Contains(header, []byte("OpusHead")) {
		return true
	}

	return false
}

// LooksLikeHTML reports whether the header bytes begin an HTML document.
// CDN error pages are the usual source of these.
func LooksLikeHTML(header []byte) bool {
	trimmed := bytes.TrimLeft(header, " \t\r\n\xef\xbb\xbf")
	lowered := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lowered, []byte("<!doctype")) ||
		bytes.HasPrefix(lowered, []byte("<html"))
}

func readHeader(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && read == 0 {
		return nil, err
	}
	return buf[:read], nil
}
