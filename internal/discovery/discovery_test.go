package discovery_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormtrack/stormtrack/internal/discovery"
	"github.com/stormtrack/stormtrack/internal/fetch"
	"github.com/stormtrack/stormtrack/internal/model"
)

const indexHTML = `<html><body>
<table><tr>
<td><a href="odt28W.html">Typhoon 28W - FUNG-WONG</a></td>
<td><a href="odt28W.html">Typhoon 28W - FUNG-WONG</a></td>
<td><a href="odt09L.html">Hurricane 09L - MELISSA</a></td>
<td><a href="odt95S.html#anchor">ignored</a></td>
<td><a href="odt04S.html">Tropical Depression 04S</a></td>
</tr></table>
</body></html>`

const detail28W = `<html><body>
<a href="28W-list.txt">ADT History File</a>
<a href="images/28W.GIF">Latest image</a>
</body></html>`

const detail09L = `<html><body>
<a href="09L-list.txt">ADT History File</a>
<img src="thumbs/09L-vis.jpg">
</body></html>`

const detail04S = `<html><body>
<a href="04S-list.txt">ADT History File</a>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	pages := map[string]string{
		"/adt.html":    indexHTML,
		"/odt28W.html": detail28W,
		"/odt09L.html": detail09L,
		"/odt04S.html": detail04S,
	}

	for path, body := range pages {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		})
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func newService(t *testing.T, baseURL string) *discovery.Service {
	t.Helper()

	client := fetch.NewClient(5*time.Second, 2, nil)

	return discovery.NewService(client, baseURL, slog.New(slog.DiscardHandler))
}

func TestDiscoverParsesAllStorms(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	svc := newService(t, srv.URL)

	storms, changed, err := svc.Discover(context.Background())
	require.NoError(t, err)
	require.True(t, changed)
	require.Len(t, storms, 3)

	byCode := make(map[string]discovery.Discovered, len(storms))
	for _, storm := range storms {
		byCode[storm.Code] = storm
	}

	fungWong := byCode["28W"]
	assert.Equal(t, model.BasinWestPacific, fungWong.Basin)
	require.NotNil(t, fungWong.Name)
	assert.Equal(t, "FUNG-WONG", *fungWong.Name)
	assert.Equal(t, srv.URL+"/28W-list.txt", fungWong.HistoryURL)
	require.NotNil(t, fungWong.SatelliteImageURL)
	assert.Equal(t, srv.URL+"/images/28W.GIF", *fungWong.SatelliteImageURL)

	melissa := byCode["09L"]
	assert.Equal(t, model.BasinAtlantic, melissa.Basin)
	require.NotNil(t, melissa.SatelliteImageURL)
	assert.Equal(t, srv.URL+"/thumbs/09L-vis.jpg", *melissa.SatelliteImageURL)

	depression := byCode["04S"]
	assert.Equal(t, model.BasinSouthern, depression.Basin)
	assert.Nil(t, depression.Name)
	assert.Nil(t, depression.SatelliteImageURL)
}

func TestDiscoverSkipsBrokenDetailPages(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/adt.html", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<a href="odt28W.html">28W</a><a href="odt09L.html">09L</a>`))
	})
	mux.HandleFunc("/odt28W.html", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(detail28W))
	})
	mux.HandleFunc("/odt09L.html", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc := newService(t, srv.URL)

	storms, changed, err := svc.Discover(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, storms, 1)
	assert.Equal(t, "28W", storms[0].Code)
}

func TestDiscoverNotModifiedIndex(t *testing.T) {
	t.Parallel()

	hits := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/adt.html", func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"idx-1"` {
			w.WriteHeader(http.StatusNotModified)

			return
		}

		w.Header().Set("ETag", `"idx-1"`)
		_, _ = w.Write([]byte(`<html></html>`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc := newService(t, srv.URL)
	ctx := context.Background()

	_, changed, err := svc.Discover(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	storms, changed, err := svc.Discover(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, storms)
	assert.Equal(t, 2, hits)
}

func TestExtractName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		code string
		want *string
	}{
		{"Typhoon 28W - FUNG-WONG", "28W", strPtr("FUNG-WONG")},
		{"Hurricane 09L: Melissa", "09L", strPtr("MELISSA")},
		{"Tropical Depression 04S", "04S", nil},
		{"28W - INVEST", "28W", nil},
		{"Tropical Storm 15E UNNAMED", "15E", nil},
		{"TD 03I", "03I", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			got := discovery.ExtractName(tt.text, tt.code)
			if tt.want == nil {
				assert.Nil(t, got)

				return
			}

			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func strPtr(s string) *string { return &s }
