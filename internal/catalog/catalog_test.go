package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abhayap/speedtest-go/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleClientXML = `<?xml version="1.0" encoding="UTF-8"?>
<settings>
  <client ip="203.0.113.5" lat="40.7128" lon="-74.0060" isp="Example ISP"/>
</settings>`

const sampleServersXML = `<?xml version="1.0" encoding="UTF-8"?>
<settings>
  <servers>
    <server url="http://s1.example.com/upload.php" host="s1.example.com:8080" name="City1" country="US" sponsor="Sponsor1" id="1" lat="40.0" lon="-74.0" version="1"/>
    <server url="http://s2.example.com/upload.php" host="s2.example.com:8080" name="City2" country="US" sponsor="Sponsor2" id="2" lat="41.0" lon="-73.0" version="1"/>
    <server url="" host="broken.example.com" name="Broken" country="US" sponsor="Sponsor3" id="3" lat="1" lon="1" version="1"/>
  </servers>
</settings>`

func TestFetchClientInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleClientXML))
	}))
	defer srv.Close()

	c := New(srv.Client())
	testOverrideClientInfoURL(t, srv.URL)

	info, err := c.FetchClientInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.5", info.IP)
	assert.Equal(t, "Example ISP", info.ISP)
	assert.InDelta(t, 40.7128, info.Lat, 0.0001)
}

func TestFetchThroughputCatalogDropsMalformedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleServersXML))
	}))
	defer srv.Close()

	c := New(srv.Client())
	testOverrideThroughputMirrors(t, srv.URL)

	records, err := c.FetchThroughputCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "1", records[0].ID)
}

func TestFetchThroughputCatalogEmptyReturnsCatalogEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<settings><servers></servers></settings>`))
	}))
	defer srv.Close()

	c := New(srv.Client())
	testOverrideThroughputMirrors(t, srv.URL)

	_, err := c.FetchThroughputCatalog(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CatalogEmpty))
}

func TestFetchCatalogFallsThroughMirrors(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleServersXML))
	}))
	defer good.Close()

	c := New(good.Client())
	restore := throughputMirrors
	throughputMirrors = []string{bad.URL, good.URL}
	defer func() { throughputMirrors = restore }()

	records, err := c.FetchThroughputCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func testOverrideClientInfoURL(t *testing.T, url string) {
	t.Helper()
	restore := clientInfoURL
	clientInfoURL = url
	t.Cleanup(func() { clientInfoURL = restore })
}

func testOverrideThroughputMirrors(t *testing.T, url string) {
	t.Helper()
	restore := throughputMirrors
	throughputMirrors = []string{url}
	t.Cleanup(func() { throughputMirrors = restore })
}
