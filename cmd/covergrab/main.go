// Command covergrab searches the configured cover-art sources for a
// single artist/album and downloads the best match to output_path.
//
// Usage:
//
//	covergrab [-t pct] [-s sources] [-p] [-v level] <artist> <album> <size> <output_path>
//
// Exits 0 if a cover was downloaded, 1 if none was found, and with any
// other nonzero status on error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"covergrab/internal/orchestrator"
	"covergrab/internal/sourcehttp"
)

func main() {
	log.SetFlags(0)
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("covergrab", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <artist> <album> <size> <output_path>\n\n", os.Args[0])
		fs.PrintDefaults()
	}
	tolerancePct := fs.Int("t", 25, "acceptable undersize tolerance, as a percentage of size")
	sourcesFlag := newSourceListFlag()
	fs.Var(sourcesFlag, "s", "comma-separated sources to query (default: all)")
	preserveFormat := fs.Bool("p", false, "preserve each cover's native image format instead of output_path's extension")
	verbosity := fs.Int("v", 0, "log verbosity level")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 4 {
		fs.Usage()
		return 2
	}

	artist := fs.Arg(0)
	album := fs.Arg(1)
	size, err := strconv.Atoi(fs.Arg(2))
	if err != nil {
		log.Printf("covergrab: invalid size %q: %v", fs.Arg(2), err)
		return 2
	}
	outputPath := fs.Arg(3)

	cacheDir, err := cacheRoot()
	if err != nil {
		log.Printf("covergrab: finding cache directory: %v", err)
		return 2
	}
	reg := sourcehttp.NewRegistry(cacheDir)
	defer reg.Close()

	if *verbosity > 0 {
		log.Printf("covergrab: searching for %q / %q at %dpx", artist, album, size)
	}

	res, err := orchestrator.Search(context.Background(), orchestrator.Query{
		Artist: artist,
		Album:  album,
	}, orchestrator.Options{
		Sources:          sourcesFlag.names,
		TargetSizePx:     size,
		SizeTolerancePct: *tolerancePct,
		PreserveFormat:   *preserveFormat,
		OutputPath:       outputPath,
	}, reg)
	if err == orchestrator.ErrNotFound {
		log.Printf("covergrab: no cover found for %q / %q", artist, album)
		return 1
	} else if err != nil {
		log.Printf("covergrab: %v", err)
		return 2
	}

	log.Printf("covergrab: wrote %v (%v)", res.Path, res.FinalFormat)
	return 0
}

// cacheRoot returns the per-user XDG-style cache directory covergrab's
// source registry should use.
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
