// Package orchestrator runs the full search-and-download pipeline:
// fan out to every requested source, pick a reference image, filter
// and rank the merged results, then try to download them in order
// until one succeeds.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sort"
	"sync"

	"covergrab/internal/cover"
	"covergrab/internal/download"
	"covergrab/internal/phash"
	"covergrab/internal/rank"
	"covergrab/internal/sourcehttp"
	"covergrab/internal/sources"
)

// ErrNotFound is returned when every candidate cover failed to
// download, or no source produced any candidate at all.
var ErrNotFound = errors.New("orchestrator: no usable cover found")

// Query is the artist/album text to search for.
type Query struct {
	Artist string
	Album  string
}

// Options controls which sources run and how candidates are filtered
// and ranked.
type Options struct {
	Sources          []cover.SourceName
	TargetSizePx     int
	SizeTolerancePct int
	PreserveFormat   bool
	OutputPath       string
}

// Result describes a successful search-and-download.
type Result struct {
	Cover       cover.Cover
	Path        string
	FinalFormat cover.Format
}

// fanOutAndMergeFunc is overridden in tests so the pipeline stages
// downstream of search (reference selection, filtering, ranking,
// download) can be exercised without hitting real source APIs.
var fanOutAndMergeFunc = fanOutAndMerge

// Search runs the full pipeline and writes the winning cover to
// opts.OutputPath via internal/download (with PreserveFormat, possibly
// under the cover's own extension instead), returning the path written.
func Search(ctx context.Context, q Query, opts Options, reg *sourcehttp.Registry) (*Result, error) {
	merged := fanOutAndMergeFunc(ctx, q, opts, reg)
	if len(merged) == 0 {
		return nil, ErrNotFound
	}

	refHash, haveRef := selectReference(ctx, merged)

	filtered := filterBySize(merged, opts.TargetSizePx, opts.SizeTolerancePct)
	if len(filtered) == 0 {
		return nil, ErrNotFound
	}

	hashes := computeHashes(ctx, filtered, haveRef)

	sort.SliceStable(filtered, func(i, j int) bool {
		p := rank.Params{
			Mode:          rank.Search,
			HaveReference: haveRef,
			ReferenceHash: refHash,
			Hashes: func(c cover.Cover) (phash.Hash, bool) {
				h, ok := hashes[c.Key()]
				return h, ok
			},
			TargetSize: float64(opts.TargetSizePx),
		}
		return rank.Compare(filtered[i], filtered[j], p) < 0
	})

	for _, c := range filtered {
		res, err := download.Download(ctx, c, opts.OutputPath, opts.TargetSizePx, opts.SizeTolerancePct, opts.PreserveFormat)
		if err != nil {
			log.Printf("covergrab: download of %v (%v) failed: %v", c.URL, c.Source, err)
			continue
		}
		return &Result{Cover: c, Path: res.Path, FinalFormat: res.Format}, nil
	}
	return nil, ErrNotFound
}

// fanOutAndMerge spawns one goroutine per requested source and
// concatenates their successful results. A source whose client can't
// be constructed, or whose search fails outright, only drops that
// source; it never fails the whole query.
func fanOutAndMerge(ctx context.Context, q Query, opts Options, reg *sourcehttp.Registry) []cover.Cover {
	names := opts.Sources
	if len(names) == 0 {
		names = cover.AllSourceNames
	}

	var wg sync.WaitGroup
	resultsCh := make(chan []cover.Cover, len(names))

	for _, name := range names {
		wg.Add(1)
		go func(name cover.SourceName) {
			defer wg.Done()
			adapter, err := sources.New(name)
			if err != nil {
				log.Printf("covergrab: %v: %v", name, err)
				return
			}
			client, err := sourcehttp.New(string(name), adapter.Config(), reg)
			if err != nil {
				log.Printf("covergrab: %v: constructing client: %v", name, err)
				return
			}
			covers, err := adapter.Search(ctx, q.Artist, q.Album, client)
			if err != nil {
				log.Printf("covergrab: %v: search failed: %v", name, err)
				return
			}
			resultsCh <- covers
		}(name)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var merged []cover.Cover
	for covers := range resultsCh {
		merged = append(merged, covers...)
	}
	return merged
}

// selectReference walks reference-grade candidates in Reference-mode
// order and returns the first perceptual hash that computes
// successfully.
func selectReference(ctx context.Context, covers []cover.Cover) (phash.Hash, bool) {
	var candidates []cover.Cover
	for _, c := range covers {
		if c.Relevance.IsReference() {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return rank.Compare(candidates[i], candidates[j], rank.Params{Mode: rank.Reference}) < 0
	})

	for _, c := range candidates {
		h, err := hashCover(ctx, c)
		if err != nil {
			continue
		}
		return h, true
	}
	return 0, false
}

func filterBySize(covers []cover.Cover, targetPx, tolerancePct int) []cover.Cover {
	if targetPx <= 0 {
		return covers
	}
	minDim := targetPx - targetPx*tolerancePct/100
	var out []cover.Cover
	for _, c := range covers {
		if !c.Size.IsKnown() {
			out = append(out, c)
			continue
		}
		s := c.Size.Value()
		if min(s.Width, s.Height) < minDim {
			continue
		}
		out = append(out, c)
	}
	return out
}

// computeHashes hashes every cover in parallel if a reference exists;
// a hash failure drops only that cover's key from the map, never the
// cover itself.
func computeHashes(ctx context.Context, covers []cover.Cover, haveRef bool) map[cover.Key]phash.Hash {
	out := make(map[cover.Key]phash.Hash)
	if !haveRef {
		return out
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, c := range covers {
		wg.Add(1)
		go func(c cover.Cover) {
			defer wg.Done()
			h, err := hashCover(ctx, c)
			if err != nil {
				return
			}
			mu.Lock()
			out[c.Key()] = h
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return out
}

func hashCover(ctx context.Context, c cover.Cover) (phash.Hash, error) {
	url := c.ThumbnailURL
	if url == "" {
		url = c.URL
	}
	data, err := fetchThumbnail(ctx, c, url)
	if err != nil {
		return 0, err
	}
	return phash.FromImageBuffer(data)
}

func fetchThumbnail(ctx context.Context, c cover.Cover, url string) ([]byte, error) {
	type thumbnailDownloader interface {
		DownloadThumbnail(ctx context.Context, url string) ([]byte, error)
	}
	if td, ok := c.SourceHTTP.(thumbnailDownloader); ok {
		return td.DownloadThumbnail(ctx, url)
	}
	var buf bytes.Buffer
	if err := c.SourceHTTP.DownloadCover(ctx, url, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
