package library

import (
	"os"
	"path/filepath"
	"sort"
)

// audioExts are the file extensions treated as audio files, matching
// what internal/tagio knows how to read.
var audioExts = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
}

// IsAudioPath reports whether path has a recognized audio extension.
func IsAudioPath(path string) bool {
	ext := filepath.Ext(path)
	lower := make([]byte, len(ext))
	for i := 0; i < len(ext); i++ {
		c := ext[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}
	return audioExts[string(lower)]
}

// Stats accumulates counters observed during a Walk, mirroring the
// "iter(root, stats)" library-walker contract.
type Stats struct {
	DirsVisited  int
	FilesScanned int
	AudioDirs    int
}

// Walker walks a library root directory, yielding one batch of audio
// file paths per directory that directly contains any, whether or not
// it also has subdirectories.
type Walker struct {
	Root string
}

// NewWalker returns a Walker rooted at root.
func NewWalker(root string) *Walker { return &Walker{Root: root} }

// Walk visits every directory under w.Root and calls fn once per
// directory that contains at least one audio file, with that
// directory's audio file paths in sorted order. Walking stops and the
// first error is returned if either the tree walk or fn fails.
func (w *Walker) Walk(stats *Stats, fn func(dir string, audioPaths []string) error) error {
	dirFiles := make(map[string][]string)
	var dirOrder []string

	err := filepath.Walk(w.Root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			stats.DirsVisited++
			return nil
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		stats.FilesScanned++
		if !IsAudioPath(path) {
			return nil
		}
		dir := filepath.Dir(path)
		if _, ok := dirFiles[dir]; !ok {
			dirOrder = append(dirOrder, dir)
		}
		dirFiles[dir] = append(dirFiles[dir], path)
		return nil
	})
	if err != nil {
		return err
	}

	sort.Strings(dirOrder)
	for _, dir := range dirOrder {
		paths := dirFiles[dir]
		sort.Strings(paths)
		stats.AudioDirs++
		if err := fn(dir, paths); err != nil {
			return err
		}
	}
	return nil
}
