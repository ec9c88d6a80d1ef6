package tagio

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/derat/taglib-go/taglib"
)

// Embed writes imageData into every file in audioPaths as an ID3v2.3
// APIC front-cover frame, replacing any existing ID3v2 tag. Only
// .mp3/ID3v2 is supported, per spec.md §6's "cover embedder" contract.
func Embed(imageData []byte, audioPaths []string) error {
	mime := http.DetectContentType(imageData)
	if mime != "image/jpeg" && mime != "image/png" {
		return fmt.Errorf("tagio: unsupported embed image type %q", mime)
	}
	frame := buildAPICFrame(mime, imageData)
	tag := buildID3v23Tag(frame)

	for _, path := range audioPaths {
		if err := embedOne(path, tag); err != nil {
			return fmt.Errorf("tagio: embedding into %s: %w", path, err)
		}
	}
	return nil
}

func embedOne(path string, tag []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	existingTagSize := int64(0)
	if t, err := decodeForTagSize(f, fi.Size()); err == nil {
		existingTagSize = t
	}

	if _, err := f.Seek(existingTagSize, io.SeekStart); err != nil {
		f.Close()
		return err
	}

	tmp, err := os.CreateTemp(dirOf(path), ".covergrab-embed-*")
	if err != nil {
		f.Close()
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(tag); err != nil {
		tmp.Close()
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if _, err := io.Copy(tmp, f); err != nil {
		tmp.Close()
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	f.Close()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// decodeForTagSize returns the byte length of any existing ID3v2 tag
// at the start of f, so Embed can splice it out and replace it.
func decodeForTagSize(f *os.File, size int64) (int64, error) {
	tag, err := taglib.Decode(f, size)
	if err != nil {
		return 0, err
	}
	return int64(tag.TagSize()), nil
}

// buildAPICFrame constructs a single ID3v2.3 APIC frame (header +
// payload) embedding data as a front-cover picture.
func buildAPICFrame(mime string, data []byte) []byte {
	const (
		textEncodingISO88591  = 0x00
		pictureTypeFrontCover = 0x03
	)
	var payload bytes.Buffer
	payload.WriteByte(textEncodingISO88591)
	payload.WriteString(mime)
	payload.WriteByte(0) // MIME type terminator
	payload.WriteByte(pictureTypeFrontCover)
	payload.WriteByte(0) // empty description + terminator
	payload.Write(data)

	var frame bytes.Buffer
	frame.WriteString(apicFrameID)
	writeUint32BE(&frame, uint32(payload.Len()))
	frame.Write([]byte{0, 0}) // frame flags
	frame.Write(payload.Bytes())
	return frame.Bytes()
}

// buildID3v23Tag wraps frame in a minimal ID3v2.3 tag header.
func buildID3v23Tag(frame []byte) []byte {
	var tag bytes.Buffer
	tag.WriteString("ID3")
	tag.Write([]byte{3, 0}) // version 2.3.0
	tag.WriteByte(0)        // flags
	writeSynchsafe32(&tag, uint32(len(frame)))
	tag.Write(frame)
	return tag.Bytes()
}

func writeUint32BE(buf *bytes.Buffer, v uint32) {
	buf.Write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// writeSynchsafe32 writes v as a synchsafe 28-bit integer, the
// encoding ID3v2 tag sizes use so the high bit of every byte stays
// clear (avoiding accidental sync-frame collisions in MP3 players that
// scan the file linearly).
func writeSynchsafe32(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte((v >> 21) & 0x7f))
	buf.WriteByte(byte((v >> 14) & 0x7f))
	buf.WriteByte(byte((v >> 7) & 0x7f))
	buf.WriteByte(byte(v & 0x7f))
}
