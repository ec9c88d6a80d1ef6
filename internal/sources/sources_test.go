package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"covergrab/internal/cover"
	"covergrab/internal/sourcehttp"
)

func clientFor(t *testing.T, a Adapter, handler http.HandlerFunc) (*sourcehttp.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	reg := sourcehttp.NewRegistry(t.TempDir())
	t.Cleanup(func() { reg.Close() })

	cfg := a.Config()
	cfg.RateLimit = 0 // tests don't want to wait on real-world rate limits
	c, err := sourcehttp.New(string(a.Name()), cfg, reg)
	if err != nil {
		t.Fatal(err)
	}
	return c, srv
}

func TestNewKnowsAllNames(t *testing.T) {
	for _, n := range cover.AllSourceNames {
		if _, err := New(n); err != nil {
			t.Errorf("New(%q): %v", n, err)
		}
	}
}

func TestAllReturnsOnePerName(t *testing.T) {
	adapters, err := All()
	if err != nil {
		t.Fatal(err)
	}
	if len(adapters) != len(cover.AllSourceNames) {
		t.Fatalf("got %d adapters; want %d", len(adapters), len(cover.AllSourceNames))
	}
}

func TestDeezerDedupesAndEmitsSizeVariants(t *testing.T) {
	a := &deezerAdapter{}
	body := `{"data":[
		{"artist":{"id":1,"name":"Artist"},"album":{"id":10,"title":"Album","cover_small":"s1","cover_medium":"m1","cover_big":"b1","cover_xl":"x1"}},
		{"artist":{"id":1,"name":"Artist"},"album":{"id":10,"title":"Album","cover_small":"s1","cover_medium":"m1","cover_big":"b1","cover_xl":"x1"}},
		{"artist":{"id":2,"name":"Other"},"album":{"id":11,"title":"Other Album","cover_small":"s2"}}
	]}`
	client, srv := clientFor(t, a, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})
	a.searchURLOverride(srv.URL)
	covers, err := a.Search(context.Background(), "Artist", "Album", client)
	if err != nil {
		t.Fatal(err)
	}
	var firstAlbum int
	for _, c := range covers {
		if c.Rank == 0 {
			firstAlbum++
		}
	}
	if firstAlbum != 4 {
		t.Errorf("first album produced %d size variants; want 4", firstAlbum)
	}
	var sawOtherAlbum bool
	for _, c := range covers {
		if c.Rank == 1 {
			sawOtherAlbum = true
			if !c.Relevance.Fuzzy {
				t.Error("second album should be fuzzy (name mismatch)")
			}
		}
	}
	if !sawOtherAlbum {
		t.Error("missing second, distinct album")
	}
}

func TestDiscogsParsesDimensionsAndFiltersFormat(t *testing.T) {
	a := &discogsAdapter{}
	body := `{"results":[
		{"format":["CD"],"thumb":"thumb1","cover_image":"https://img.example/release/abc/w:600/h:600/img.jpg"},
		{"format":["Vinyl"],"thumb":"thumb2","cover_image":"https://img.example/release/xyz/w:600/h:600/img.jpg"},
		{"format":["CD"],"thumb":"thumb3","cover_image":"https://img.example/release/no-dims/img.jpg"}
	]}`
	// Rewrite each "format" entry into the {"name": ...} object shape the
	// struct decodes.
	body = strings.ReplaceAll(body, `"format":["CD"]`, `"format":[{"name":"CD"}]`)
	body = strings.ReplaceAll(body, `"format":["Vinyl"]`, `"format":[{"name":"Vinyl"}]`)

	client, srv := clientFor(t, a, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})
	a.searchURLOverride(srv.URL)
	covers, err := a.Search(context.Background(), "Artist", "Album", client)
	if err != nil {
		t.Fatal(err)
	}
	if len(covers) != 1 {
		t.Fatalf("got %d covers; want 1 (only the CD release with parseable dims)", len(covers))
	}
	if covers[0].Size.Value().Width != 600 || covers[0].Size.Value().Height != 600 {
		t.Errorf("size = %+v; want 600x600", covers[0].Size.Value())
	}
}

func TestParseCoverDimensions(t *testing.T) {
	cases := []struct {
		url    string
		wantW  int
		wantH  int
		wantOK bool
	}{
		{"https://img/r-1/w:300/h:300/x.jpg", 300, 300, true},
		{"https://img/r-1/nodims/x.jpg", 0, 0, false},
		{"https://img/r-1/w:300/h:300/w:600/h:600/x.jpg", 600, 600, true},
	}
	for _, tc := range cases {
		size, ok := parseCoverDimensions(tc.url)
		if ok != tc.wantOK {
			t.Errorf("parseCoverDimensions(%q) ok = %v; want %v", tc.url, ok, tc.wantOK)
			continue
		}
		if ok && (size.Width != tc.wantW || size.Height != tc.wantH) {
			t.Errorf("parseCoverDimensions(%q) = %+v; want %dx%d", tc.url, size, tc.wantW, tc.wantH)
		}
	}
}

func TestItunesCandidateURL(t *testing.T) {
	tmpl := "https://is1-ssl.mzstatic.com/image/thumb/Music/abc/100x100bb.jpg"
	png, ok := itunesCandidateURL(tmpl, 5000, cover.Png)
	if !ok || !strings.HasSuffix(png, "/5000x5000.png") {
		t.Errorf("png candidate = %q, %v", png, ok)
	}
	jpg, ok := itunesCandidateURL(tmpl, 600, cover.Jpeg)
	if !ok || !strings.HasSuffix(jpg, "/600x600-100.jpg") {
		t.Errorf("jpg candidate = %q, %v", jpg, ok)
	}
}

func TestItunesFiltersByNormalizedMatch(t *testing.T) {
	a := &itunesAdapter{}
	body := `{"results":[
		{"collectionName":"Back in Black","artistName":"AC/DC","artworkUrl100":"http://x/100x100bb.jpg"},
		{"collectionName":"Back in Black (Deluxe)","artistName":"AC/DC","artworkUrl100":"http://x/100x100bb.jpg"},
		{"collectionName":"Unrelated","artistName":"Someone Else","artworkUrl100":"http://x/100x100bb.jpg"}
	]}`
	client, srv := clientFor(t, a, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		// Point the artwork URLs at this server so the HEAD probes reach it.
		w.Write([]byte(strings.ReplaceAll(body, "http://x/", "http://"+r.Host+"/")))
	})
	a.searchURLOverride(srv.URL)
	covers, err := a.Search(context.Background(), "AC/DC", "Back in Black", client)
	if err != nil {
		t.Fatal(err)
	}
	if len(covers) == 0 {
		t.Fatal("expected at least one cover")
	}
	for _, c := range covers {
		if c.Rank > 1 {
			t.Errorf("unrelated result should have been filtered out, rank=%d", c.Rank)
		}
	}
}

func TestLastFmDedupesByURLAndTranslates404(t *testing.T) {
	a := &lastFmAdapter{}
	body := `<?xml version="1.0"?>
<lfm><album>
  <image size="small">http://x/a.jpg</image>
  <image size="medium">http://x/a.jpg</image>
  <image size="large">http://x/b.jpg</image>
</album></lfm>`
	client, srv := clientFor(t, a, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})
	a.searchURLOverride(srv.URL)
	covers, err := a.Search(context.Background(), "Artist", "Album", client)
	if err != nil {
		t.Fatal(err)
	}
	if len(covers) != 2 {
		t.Fatalf("got %d covers; want 2 (deduped by URL)", len(covers))
	}

	client2, srv2 := clientFor(t, a, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	a.searchURLOverride(srv2.URL)
	covers2, err := a.Search(context.Background(), "Artist", "Album", client2)
	if err != nil {
		t.Fatalf("404 should translate to empty results, not an error: %v", err)
	}
	if len(covers2) != 0 {
		t.Errorf("got %d covers for 404; want 0", len(covers2))
	}
}

func TestFormatFromExt(t *testing.T) {
	cases := map[string]cover.Format{
		"http://x/a.jpg":  cover.Jpeg,
		"http://x/a.JPEG": cover.Jpeg,
		"http://x/a.png":  cover.Png,
	}
	for u, want := range cases {
		got, ok := formatFromExt(u)
		if !ok || got != want {
			t.Errorf("formatFromExt(%q) = %v, %v; want %v, true", u, got, ok, want)
		}
	}
	if _, ok := formatFromExt("http://x/a.gif"); ok {
		t.Error("formatFromExt(.gif) should not be recognized")
	}
}

func TestCoverArtArchiveEmitsThumbAndFullRes(t *testing.T) {
	a := &coverArtArchiveAdapter{}
	var callCount int
	client, srv := clientFor(t, a, func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if strings.Contains(r.URL.Path, "/release/") {
			w.Write([]byte(`{"images":[{"front":true,"image":"full.png","thumbnails":{"250":"t250","500":"t500","1200":"t1200"}}]}`))
			return
		}
		w.Write([]byte(`{"releases":[{"id":"mbid-1","title":"Album","artist-credit":[{"name":"Artist"}]}]}`))
	})
	a.searchURLOverride(srv.URL, srv.URL+"/release/")
	covers, err := a.Search(context.Background(), "Artist", "Album", client)
	if err != nil {
		t.Fatal(err)
	}
	if len(covers) != 4 { // 3 thumb sizes + 1 full-res
		t.Fatalf("got %d covers; want 4", len(covers))
	}
	for _, c := range covers {
		if c.Relevance.Fuzzy {
			t.Error("exact artist/title match should not be fuzzy")
		}
	}
}

