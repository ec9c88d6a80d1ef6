package sources

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"covergrab/internal/cover"
	"covergrab/internal/sourcehttp"
)

const discogsSearchURL = "https://api.discogs.com/database/search"

type discogsAdapter struct {
	searchURL string // overridden in tests; defaults to discogsSearchURL
}

func (a *discogsAdapter) Name() cover.SourceName { return cover.Discogs }

func (a *discogsAdapter) searchURLOverride(url string) { a.searchURL = url }

func (a *discogsAdapter) baseURL() string {
	if a.searchURL != "" {
		return a.searchURL
	}
	return discogsSearchURL
}

func (a *discogsAdapter) Config() sourcehttp.Config {
	cfg := defaultConfig()
	cfg.CommonHeaders = map[string]string{
		"Accept":        "application/vnd.discogs.v2.discogs+json",
		"Authorization": fmt.Sprintf("Discogs key=%s, secret=%s", os.Getenv("COVERGRAB_DISCOGS_KEY"), os.Getenv("COVERGRAB_DISCOGS_SECRET")),
	}
	return cfg
}

type discogsResult struct {
	Results []struct {
		Formats []struct {
			Name string `json:"name"`
		} `json:"format"`
		Thumb      string `json:"thumb"`
		CoverImage string `json:"cover_image"`
	} `json:"results"`
}

func (a *discogsAdapter) Search(ctx context.Context, artist, album string, client *sourcehttp.Client) ([]cover.Cover, error) {
	searchURL := a.baseURL() + "?" + url.Values{
		"artist":        {artist},
		"release_title": {album},
		"type":          {"release"},
	}.Encode()

	result, err := sourcehttp.GetJSON[discogsResult](ctx, client, searchURL)
	if err != nil {
		return nil, err
	}

	var covers []cover.Cover
	for rank, r := range result.Results {
		if r.Thumb == "" {
			continue
		}
		if !hasCDFormat(r.Formats) {
			continue
		}
		size, ok := parseCoverDimensions(r.CoverImage)
		if !ok {
			continue
		}
		covers = append(covers, cover.Cover{
			URL:          r.CoverImage,
			ThumbnailURL: r.Thumb,
			Size:         cover.Known(size),
			Format:       cover.Known(cover.Jpeg),
			Source:       cover.Discogs,
			SourceHTTP:   client,
			Relevance:    cover.Relevance{Fuzzy: false, OnlyFrontCovers: false, UnrelatedRisk: false},
			Rank:         rank,
		})
	}
	return covers, nil
}

func hasCDFormat(formats []struct {
	Name string `json:"name"`
}) bool {
	for _, f := range formats {
		if f.Name == "CD" {
			return true
		}
	}
	return false
}

// parseCoverDimensions extracts width/height from Discogs image-proxy
// URLs, which embed them as "w:NNN"/"h:NNN" path segments, e.g.
// ".../discogs-images/R-123-456.jpg.../w:600/h:600/...". Search is
// performed from the right so the outermost (final) transform wins.
func parseCoverDimensions(rawURL string) (cover.SizePx, bool) {
	segs := strings.Split(rawURL, "/")
	var w, h int
	var haveW, haveH bool
	for i := len(segs) - 1; i >= 0 && (!haveW || !haveH); i-- {
		seg := segs[i]
		switch {
		case !haveW && strings.HasPrefix(seg, "w:"):
			if v, err := strconv.Atoi(seg[2:]); err == nil {
				w, haveW = v, true
			}
		case !haveH && strings.HasPrefix(seg, "h:"):
			if v, err := strconv.Atoi(seg[2:]); err == nil {
				h, haveH = v, true
			}
		}
	}
	if !haveW || !haveH {
		return cover.SizePx{}, false
	}
	return cover.SizePx{Width: w, Height: h}, true
}
