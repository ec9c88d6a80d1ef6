// Command coverscan recursively walks a music library, and for every
// album directory missing cover art, searches the configured sources
// and writes (or embeds) the best match.
//
// Usage:
//
//	coverscan [-t pct] [-s sources] [-i] [-p] [-v level] <lib_root_dir> <size> <output_pattern_or_'+'>
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"covergrab/internal/library"
	"covergrab/internal/orchestrator"
	"covergrab/internal/sourcehttp"
	"covergrab/internal/tagio"
)

// workerCount bounds the worker pool. Workers are I/O-bound and
// limited by per-source rate limits, so more than this buys nothing.
const workerCount = 8

type work struct {
	artist, album string
	audioPaths    []string
	output        string // absolute path, or "" to embed
}

func main() {
	log.SetFlags(0)
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("coverscan", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <lib_root_dir> <size> <output_pattern_or_'+'>\n\n", os.Args[0])
		fs.PrintDefaults()
	}
	tolerancePct := fs.Int("t", 25, "acceptable undersize tolerance, as a percentage of size")
	sourcesFlag := newSourceListFlag()
	fs.Var(sourcesFlag, "s", "comma-separated sources to query (default: all)")
	ignoreExisting := fs.Bool("i", false, "ignore existing covers and force search and download for all files")
	preserveFormat := fs.Bool("p", false, "preserve each cover's native image format instead of the output pattern's extension")
	verbosity := fs.Int("v", 0, "log verbosity level")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return 2
	}

	libRoot := fs.Arg(0)
	size, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		log.Printf("coverscan: invalid size %q: %v", fs.Arg(1), err)
		return 2
	}
	pattern := library.NewPattern(fs.Arg(2))

	cacheDir, err := cacheRoot()
	if err != nil {
		log.Printf("coverscan: finding cache directory: %v", err)
		return 2
	}
	reg := sourcehttp.NewRegistry(cacheDir)
	defer reg.Close()

	opts := orchestrator.Options{
		Sources:          sourcesFlag.names,
		TargetSizePx:     size,
		SizeTolerancePct: *tolerancePct,
		PreserveFormat:   *preserveFormat,
	}

	workCh := make(chan work, workerCount*4)
	var wg sync.WaitGroup
	var found, notFound, errs int
	var statsMu sync.Mutex

	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			for w := range workCh {
				status := processWork(w, opts, reg, *verbosity)
				statsMu.Lock()
				switch status {
				case statusFound:
					found++
				case statusNotFound:
					notFound++
				default:
					errs++
				}
				statsMu.Unlock()
			}
		}()
	}

	var stats library.Stats
	walkErr := library.NewWalker(libRoot).Walk(&stats, func(dir string, audioPaths []string) error {
		w, skip, err := buildWork(dir, audioPaths, pattern, *ignoreExisting)
		if err != nil {
			log.Printf("coverscan: %v: %v", dir, err)
			return nil
		}
		if skip {
			return nil
		}
		workCh <- w
		return nil
	})
	close(workCh)
	wg.Wait()

	if walkErr != nil {
		log.Printf("coverscan: walking %v: %v", libRoot, walkErr)
		return 2
	}

	log.Printf("coverscan: %d dir(s) scanned, %d found, %d not found, %d error(s)",
		stats.AudioDirs, found, notFound, errs)
	if errs > 0 {
		return 2
	}
	return 0
}

// buildWork reads tags for one album directory and decides whether it
// needs a cover at all.
func buildWork(dir string, audioPaths []string, pattern library.Pattern, ignoreExisting bool) (w work, skip bool, err error) {
	info, err := tagio.Read(audioPaths[0], pattern.Embed())
	if err != nil {
		return work{}, false, err
	}
	if info == nil {
		return work{}, true, nil
	}

	var output string
	var hasCover bool
	if pattern.Embed() {
		hasCover = info.HasEmbeddedCover
	} else {
		output = pattern.Expand(info.Artist, info.Album)
		if !filepath.IsAbs(output) {
			output = filepath.Join(dir, output)
		}
		if _, statErr := os.Stat(output); statErr == nil {
			hasCover = true
		}
	}
	if hasCover && !ignoreExisting {
		return work{}, true, nil
	}

	return work{
		artist:     info.Artist,
		album:      info.Album,
		audioPaths: audioPaths,
		output:     output,
	}, false, nil
}

type workStatus int

const (
	statusFound workStatus = iota
	statusNotFound
	statusError
)

func processWork(w work, opts orchestrator.Options, reg *sourcehttp.Registry, verbosity int) workStatus {
	embed := w.output == ""
	outputPath := w.output
	var tmpFile *os.File
	if embed {
		f, err := os.CreateTemp("", "coverscan-embed-*.jpg")
		if err != nil {
			log.Printf("coverscan: %v/%v: creating temp file: %v", w.artist, w.album, err)
			return statusError
		}
		tmpFile = f
		tmpFile.Close()
		outputPath = f.Name()
		defer os.Remove(outputPath)
	} else if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("coverscan: %v/%v: creating %v: %v", w.artist, w.album, dir, err)
			return statusError
		}
	}

	localOpts := opts
	localOpts.OutputPath = outputPath

	if verbosity > 0 {
		log.Printf("coverscan: searching for %q / %q", w.artist, w.album)
	}

	res, err := orchestrator.Search(context.Background(), orchestrator.Query{
		Artist: w.artist,
		Album:  w.album,
	}, localOpts, reg)
	if err == orchestrator.ErrNotFound {
		log.Printf("coverscan: no cover found for %q / %q", w.artist, w.album)
		return statusNotFound
	} else if err != nil {
		log.Printf("coverscan: %q / %q: %v", w.artist, w.album, err)
		return statusError
	}

	if embed {
		data, err := os.ReadFile(res.Path)
		if err != nil {
			log.Printf("coverscan: reading downloaded cover for %q / %q: %v", w.artist, w.album, err)
			return statusError
		}
		if err := tagio.Embed(data, w.audioPaths); err != nil {
			log.Printf("coverscan: embedding cover for %q / %q: %v", w.artist, w.album, err)
			return statusError
		}
	}

	log.Printf("coverscan: wrote cover for %q / %q", w.artist, w.album)
	return statusFound
}

func cacheRoot() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	dir := base + "/covergrab"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
