// Package tagio implements the two external collaborators spec.md §6
// leaves abstract: reading audio tags and embedding a cover image into
// audio files. Reading is backed by github.com/derat/taglib-go, the
// same library the teacher uses for ID3 frame access in its own
// library-scanning code; embedding writes a minimal ID3v2.3 APIC frame
// directly, since taglib-go itself is read-only.
package tagio

import (
	"os"

	"github.com/derat/taglib-go/taglib"
	"github.com/derat/taglib-go/taglib/id3"
)

// apicFrameID is the ID3v2 frame that carries an embedded picture.
const apicFrameID = "APIC"

// Info is what Read returns about one audio file: its artist
// and album tags, and whether it already carries an embedded cover.
type Info struct {
	Artist           string
	Album            string
	HasEmbeddedCover bool
}

// Read opens path and returns its artist/album tags and whether it
// already has an embedded cover, or (nil, nil) if the file has no
// readable tag at all (not an error per se — spec.md §6 models this
// as an Option, not a Result).
func Read(path string, probeCover bool) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	tag, err := taglib.Decode(f, fi.Size())
	if err != nil {
		return nil, nil
	}

	info := &Info{Artist: tag.Artist(), Album: tag.Album()}
	if probeCover {
		info.HasEmbeddedCover = hasFrame(tag, apicFrameID)
	}
	return info, nil
}

// hasFrame reports whether gen carries at least one frame with the
// given ID, mirroring the generic-frame-access idiom the teacher uses
// for TPE2 in cmd/nup/update/scan.go.
func hasFrame(gen taglib.GenericTag, id string) bool {
	switch tag := gen.(type) {
	case *id3.Id3v23Tag:
		return len(tag.Frames[id]) > 0
	case *id3.Id3v24Tag:
		return len(tag.Frames[id]) > 0
	default:
		return false
	}
}
