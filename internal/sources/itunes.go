package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"covergrab/internal/cover"
	"covergrab/internal/normalize"
	"covergrab/internal/sourcehttp"
)

const itunesSearchURL = "https://itunes.apple.com/search"

type itunesAdapter struct {
	searchURL string // overridden in tests; defaults to itunesSearchURL
}

func (a *itunesAdapter) Name() cover.SourceName { return cover.Itunes }

func (a *itunesAdapter) searchURLOverride(url string) { a.searchURL = url }

func (a *itunesAdapter) baseURL() string {
	if a.searchURL != "" {
		return a.searchURL
	}
	return itunesSearchURL
}

func (a *itunesAdapter) Config() sourcehttp.Config { return defaultConfig() }

type itunesSearchResult struct {
	Results []struct {
		CollectionName string `json:"collectionName"`
		ArtistName     string `json:"artistName"`
		ArtworkURL100  string `json:"artworkUrl100"`
	} `json:"results"`
}

// trailingThumbRE matches the "/NNNxNNN-suffix.ext" trailer on an
// iTunes artwork URL template, e.g. "/100x100bb.jpg".
var trailingThumbRE = regexp.MustCompile(`/\d+x\d+(?:bb)?(?:-\d+)?\.\w+$`)

var itunesSizes = []int{5000, 1200, 600}

func (a *itunesAdapter) Search(ctx context.Context, artist, album string, client *sourcehttp.Client) ([]cover.Cover, error) {
	nArtist := normalize.Strict(artist)
	nAlbum := normalize.Strict(album)

	term := fmt.Sprintf("%s %s", nArtist, nAlbum)
	searchURL := a.baseURL() + "?" + url.Values{
		"media":  {"music"},
		"entity": {"album"},
		"term":   {term},
	}.Encode()

	result, err := sourcehttp.GetJSON[itunesSearchResult](ctx, client, searchURL)
	if err != nil {
		return nil, err
	}

	var covers []cover.Cover
	rank := 0
	for _, r := range result.Results {
		nCollection := normalize.Strict(r.CollectionName)
		nRespArtist := normalize.Strict(r.ArtistName)
		if !strings.HasPrefix(nCollection, nAlbum) || nRespArtist != nArtist {
			continue
		}
		fuzzy := nCollection != nAlbum
		relevance := cover.Relevance{Fuzzy: fuzzy, OnlyFrontCovers: true, UnrelatedRisk: false}

		for _, sz := range itunesSizes {
			for _, format := range []cover.Format{cover.Png, cover.Jpeg} {
				candidate, ok := itunesCandidateURL(r.ArtworkURL100, sz, format)
				if !ok {
					continue
				}
				if !client.Head(ctx, candidate) {
					continue
				}
				covers = append(covers, cover.Cover{
					URL:          candidate,
					ThumbnailURL: r.ArtworkURL100,
					Size:         cover.Known(cover.SizePx{Width: sz, Height: sz}),
					Format:       cover.Known(format),
					Source:       cover.Itunes,
					SourceHTTP:   client,
					Relevance:    relevance,
					Rank:         rank,
				})
			}
		}
		rank++
	}
	return covers, nil
}

// itunesCandidateURL rewrites the trailing "/NxN-suffix" segment of a
// thumbnail URL template into the requested size and format.
func itunesCandidateURL(template string, size int, format cover.Format) (string, bool) {
	if !trailingThumbRE.MatchString(template) {
		return "", false
	}
	var suffix string
	switch format {
	case cover.Png:
		suffix = fmt.Sprintf("/%dx%d.png", size, size)
	default:
		suffix = fmt.Sprintf("/%dx%d-100.jpg", size, size)
	}
	return trailingThumbRE.ReplaceAllString(template, suffix), true
}
