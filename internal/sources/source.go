// Package sources implements the five concrete cover-art providers:
// CoverArtArchive, Deezer, Discogs, iTunes, and LastFm. Each adapter
// turns an (artist, album) query into a slice of candidate covers.
package sources

import (
	"context"
	"fmt"
	"time"

	"covergrab/internal/cover"
	"covergrab/internal/sourcehttp"
)

// Adapter is the interface every concrete source implements.
type Adapter interface {
	// Name identifies the source in Cover.Source and cache filenames.
	Name() cover.SourceName
	// Search returns candidate covers for the given query. http is
	// this adapter's dedicated client, already configured with its
	// UserAgent/Timeout/CommonHeaders/RateLimit.
	Search(ctx context.Context, artist, album string, http *sourcehttp.Client) ([]cover.Cover, error)
	// Config returns the connection parameters Search expects its
	// client to have been built with.
	Config() sourcehttp.Config
}

const defaultUserAgent = "covergrab/1 (+https://github.com/covergrab/covergrab)"
const defaultTimeout = 10 * time.Second

// defaultConfig returns the shared defaults (spec.md §4.3: user_agent
// default constant, timeout default 10s, common_headers default empty,
// rate_limit default 5 req/500ms) that an adapter can start from and
// override.
func defaultConfig() sourcehttp.Config {
	return sourcehttp.Config{
		UserAgent:       defaultUserAgent,
		Timeout:         defaultTimeout,
		RateLimit:       5,
		RateLimitWindow: 500 * time.Millisecond,
	}
}

// New returns the Adapter implementation for name.
func New(name cover.SourceName) (Adapter, error) {
	switch name {
	case cover.CoverArtArchive:
		return &coverArtArchiveAdapter{}, nil
	case cover.Deezer:
		return &deezerAdapter{}, nil
	case cover.Discogs:
		return &discogsAdapter{}, nil
	case cover.Itunes:
		return &itunesAdapter{}, nil
	case cover.LastFm:
		return &lastFmAdapter{}, nil
	default:
		return nil, fmt.Errorf("sources: unknown source %q", name)
	}
}

// All returns one Adapter per cover.AllSourceNames, in that order.
func All() ([]Adapter, error) {
	out := make([]Adapter, 0, len(cover.AllSourceNames))
	for _, n := range cover.AllSourceNames {
		a, err := New(n)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
