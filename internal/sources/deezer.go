package sources

import (
	"context"
	"fmt"
	"net/url"

	"covergrab/internal/cover"
	"covergrab/internal/normalize"
	"covergrab/internal/sourcehttp"
)

const deezerSearchURL = "https://api.deezer.com/search"

type deezerAdapter struct {
	searchURL string // overridden in tests; defaults to deezerSearchURL
}

func (a *deezerAdapter) Name() cover.SourceName { return cover.Deezer }

func (a *deezerAdapter) Config() sourcehttp.Config { return defaultConfig() }

// searchURLOverride points Search at a test server instead of Deezer's
// production API.
func (a *deezerAdapter) searchURLOverride(url string) { a.searchURL = url }

func (a *deezerAdapter) baseURL() string {
	if a.searchURL != "" {
		return a.searchURL
	}
	return deezerSearchURL
}

type deezerArtist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// deezerAlbumInfo is the album sub-object Deezer's /search endpoint
// embeds in each track result.
type deezerAlbumInfo struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	CoverSmall  string `json:"cover_small"`  // 56x56
	CoverMedium string `json:"cover_medium"` // 250x250
	CoverBig    string `json:"cover_big"`    // 500x500
	CoverXL     string `json:"cover_xl"`     // 1000x1000
}

type deezerSearchResult struct {
	Data []struct {
		Artist deezerArtist    `json:"artist"`
		Album  deezerAlbumInfo `json:"album"`
	} `json:"data"`
}

type deezerSizeVariant struct {
	px   int
	pick func(deezerAlbumInfo) string
}

var deezerSizes = []deezerSizeVariant{
	{56, func(a deezerAlbumInfo) string { return a.CoverSmall }},
	{250, func(a deezerAlbumInfo) string { return a.CoverMedium }},
	{500, func(a deezerAlbumInfo) string { return a.CoverBig }},
	{1000, func(a deezerAlbumInfo) string { return a.CoverXL }},
}

func (a *deezerAdapter) Search(ctx context.Context, artist, album string, client *sourcehttp.Client) ([]cover.Cover, error) {
	nArtist, nAlbum := normalize.String(artist), normalize.String(album)

	q := fmt.Sprintf(`artist:"%s" album:"%s"`, artist, album)
	searchURL := a.baseURL() + "?" + url.Values{
		"q":     {q},
		"order": {"RANKING"},
	}.Encode()

	result, err := sourcehttp.GetJSON[deezerSearchResult](ctx, client, searchURL)
	if err != nil {
		return nil, err
	}

	type key struct{ artistID, albumID int }
	seen := make(map[key]bool)

	var covers []cover.Cover
	rank := 0
	for _, d := range result.Data {
		if d.Album.CoverSmall == "" {
			continue
		}
		k := key{d.Artist.ID, d.Album.ID}
		if seen[k] {
			continue
		}
		seen[k] = true

		fuzzy := normalize.String(d.Artist.Name) != nArtist || normalize.String(d.Album.Title) != nAlbum
		relevance := cover.Relevance{Fuzzy: fuzzy, OnlyFrontCovers: true, UnrelatedRisk: false}

		for _, sv := range deezerSizes {
			u := sv.pick(d.Album)
			if u == "" {
				continue
			}
			covers = append(covers, cover.Cover{
				URL:          u,
				ThumbnailURL: d.Album.CoverSmall,
				Size:         cover.Known(cover.SizePx{Width: sv.px, Height: sv.px}),
				Format:       cover.Known(cover.Jpeg),
				Source:       cover.Deezer,
				SourceHTTP:   client,
				Relevance:    relevance,
				Rank:         rank,
			})
		}
		rank++
	}
	return covers, nil
}
