package sources

import (
	"context"
	"encoding/xml"
	"net/url"
	"os"
	"strings"

	"covergrab/internal/cover"
	"covergrab/internal/sourcehttp"
)

const lastFmAPIURL = "https://ws.audioscrobbler.com/2.0/"

type lastFmAdapter struct {
	apiURL string // overridden in tests; defaults to lastFmAPIURL
}

func (a *lastFmAdapter) Name() cover.SourceName { return cover.LastFm }

func (a *lastFmAdapter) searchURLOverride(url string) { a.apiURL = url }

func (a *lastFmAdapter) baseURL() string {
	if a.apiURL != "" {
		return a.apiURL
	}
	return lastFmAPIURL
}

func (a *lastFmAdapter) Config() sourcehttp.Config { return defaultConfig() }

type lastFmImage struct {
	Size string `xml:"size,attr"`
	URL  string `xml:",chardata"`
}

type lastFmAlbum struct {
	Images []lastFmImage `xml:"image"`
}

type lastFmResponse struct {
	XMLName xml.Name    `xml:"lfm"`
	Album   lastFmAlbum `xml:"album"`
}

// lastFmSizeHint maps Last.fm's size tag to an approximate pixel
// dimension. "mega" and "" (legacy, untagged) are both served at
// roughly 600px or larger, hence Uncertain.
var lastFmSizeHint = map[string]cover.Metadata[cover.SizePx]{
	"small":      cover.Known(cover.SizePx{Width: 34, Height: 34}),
	"medium":     cover.Known(cover.SizePx{Width: 64, Height: 64}),
	"large":      cover.Known(cover.SizePx{Width: 174, Height: 174}),
	"extralarge": cover.Known(cover.SizePx{Width: 300, Height: 300}),
	"mega":       cover.Uncertain(cover.SizePx{Width: 600, Height: 600}),
	"":           cover.Uncertain(cover.SizePx{Width: 600, Height: 600}),
}

func (a *lastFmAdapter) Search(ctx context.Context, artist, album string, client *sourcehttp.Client) ([]cover.Cover, error) {
	apiURL := a.baseURL() + "?" + url.Values{
		"method":  {"album.getinfo"},
		"api_key": {os.Getenv("COVERGRAB_LASTFM_API_KEY")},
		"artist":  {artist},
		"album":   {album},
	}.Encode()

	resp, err := sourcehttp.GetXML[lastFmResponse](ctx, client, apiURL)
	if err != nil {
		if _, ok := err.(*sourcehttp.NotFoundError); ok {
			return nil, nil
		}
		return nil, err
	}

	seenURLs := make(map[string]bool)
	var covers []cover.Cover
	var smallestURL string
	var smallestWidth int
	for _, img := range resp.Album.Images {
		u := strings.TrimSpace(img.URL)
		if u == "" || seenURLs[u] {
			continue
		}
		seenURLs[u] = true

		format, ok := formatFromExt(u)
		if !ok {
			continue
		}
		size, ok := lastFmSizeHint[img.Size]
		if !ok {
			size = lastFmSizeHint[""]
		}
		if size.IsKnown() && (smallestURL == "" || size.Value().Width < smallestWidth) {
			smallestURL, smallestWidth = u, size.Value().Width
		}

		covers = append(covers, cover.Cover{
			URL:        u,
			Size:       size,
			Format:     cover.Known(format),
			Source:     cover.LastFm,
			SourceHTTP: client,
			Relevance:  cover.Relevance{Fuzzy: false, OnlyFrontCovers: true, UnrelatedRisk: false},
			Rank:       0,
		})
	}
	if smallestURL == "" && len(covers) > 0 {
		smallestURL = covers[0].URL
	}
	for i := range covers {
		covers[i].ThumbnailURL = smallestURL
	}
	return covers, nil
}

func formatFromExt(u string) (cover.Format, bool) {
	lower := strings.ToLower(u)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return cover.Jpeg, true
	case strings.HasSuffix(lower, ".png"):
		return cover.Png, true
	default:
		return 0, false
	}
}
