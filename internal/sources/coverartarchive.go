package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"covergrab/internal/cover"
	"covergrab/internal/normalize"
	"covergrab/internal/sourcehttp"
)

const (
	musicbrainzSearchURL = "https://musicbrainz.org/ws/2/release/"
	coverArchiveBaseURL  = "https://coverartarchive.org/release/"
)

type coverArtArchiveAdapter struct {
	// overridden in tests; default to musicbrainzSearchURL/coverArchiveBaseURL
	searchURL, coverURL string
}

func (a *coverArtArchiveAdapter) Name() cover.SourceName { return cover.CoverArtArchive }

func (a *coverArtArchiveAdapter) searchURLOverride(search, cover string) {
	a.searchURL, a.coverURL = search, cover
}

func (a *coverArtArchiveAdapter) searchBaseURL() string {
	if a.searchURL != "" {
		return a.searchURL
	}
	return musicbrainzSearchURL
}

func (a *coverArtArchiveAdapter) coverBaseURL() string {
	if a.coverURL != "" {
		return a.coverURL
	}
	return coverArchiveBaseURL
}

func (a *coverArtArchiveAdapter) Config() sourcehttp.Config {
	cfg := defaultConfig()
	// MusicBrainz's API usage policy: https://musicbrainz.org/doc/MusicBrainz_API/Rate_Limiting
	cfg.RateLimit = 1
	cfg.RateLimitWindow = time.Second
	return cfg
}

type mbArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
}

func joinArtistCredits(acs []mbArtistCredit) string {
	var s string
	for _, ac := range acs {
		s += ac.Name + ac.JoinPhrase
	}
	return s
}

type mbRelease struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Artists []mbArtistCredit `json:"artist-credit"`
}

type mbReleaseSearchResult struct {
	Releases []mbRelease `json:"releases"`
}

type caaImage struct {
	Front      bool              `json:"front"`
	Image      string            `json:"image"`
	Thumbnails map[string]string `json:"thumbnails"`
}

type caaResult struct {
	Images []caaImage `json:"images"`
}

// thumbSizes are the fixed thumbnail widths the Cover Art Archive
// serves, smallest first.
var thumbSizes = []int{250, 500, 1200}

func (a *coverArtArchiveAdapter) Search(ctx context.Context, artist, album string, client *sourcehttp.Client) ([]cover.Cover, error) {
	nArtist, nAlbum := normalize.String(artist), normalize.String(album)

	query := fmt.Sprintf(`artist:"%s" AND release:"%s"`, artist, album)
	searchURL := a.searchBaseURL() + "?" + url.Values{
		"query": {query},
		"limit": {"8"},
		"fmt":   {"json"},
	}.Encode()

	searchResult, err := sourcehttp.GetJSON[mbReleaseSearchResult](ctx, client, searchURL)
	if err != nil {
		return nil, err
	}

	var covers []cover.Cover
	for rank, rel := range searchResult.Releases {
		fuzzy := normalize.String(rel.Title) != nAlbum || normalize.String(joinArtistCredits(rel.Artists)) != nArtist

		caaURL := a.coverBaseURL() + rel.ID
		caa, err := sourcehttp.GetJSON[caaResult](ctx, client, caaURL)
		if err != nil {
			// A release with no cover art at all is a 404; treat like
			// an empty image set rather than failing the whole search.
			continue
		}

		for _, img := range caa.Images {
			if !img.Front {
				continue
			}
			relevance := cover.Relevance{Fuzzy: fuzzy, OnlyFrontCovers: true, UnrelatedRisk: false}
			smallestThumb := smallestThumbnail(img.Thumbnails)

			for _, sz := range thumbSizes {
				thumbURL, ok := img.Thumbnails[fmt.Sprint(sz)]
				if !ok {
					continue
				}
				covers = append(covers, cover.Cover{
					URL:          thumbURL,
					ThumbnailURL: thumbURL,
					Size:         cover.Known(cover.SizePx{Width: sz, Height: sz}),
					Format:       cover.Known(cover.Jpeg),
					Source:       cover.CoverArtArchive,
					SourceHTTP:   client,
					Relevance:    relevance,
					Rank:         rank,
				})
			}

			if img.Image != "" {
				covers = append(covers, cover.Cover{
					URL:          img.Image,
					ThumbnailURL: smallestThumb,
					Size:         cover.Uncertain(cover.SizePx{Width: 900, Height: 900}),
					Format:       cover.Uncertain(cover.Png),
					Source:       cover.CoverArtArchive,
					SourceHTTP:   client,
					Relevance:    relevance,
					Rank:         rank,
				})
			}
		}
	}
	return covers, nil
}

func smallestThumbnail(thumbs map[string]string) string {
	for _, sz := range thumbSizes {
		if u, ok := thumbs[fmt.Sprint(sz)]; ok {
			return u
		}
	}
	return ""
}
