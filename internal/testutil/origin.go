package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Origin is an in-process stand-in for the catalog host, the mediator API
// and the media CDN.
//
//	/catalog.json.gz          catalog feed
//	/mediator/{lang}/{key}    media-items responses
//	/files/...                media and subtitle bodies
type Origin struct {
	Server *httptest.Server

	mu      sync.Mutex
	catalog []byte
	items   map[string]string
	files   map[string][]byte
	status  map[string]int
	hits    map[string]int
}

// NewOrigin starts an Origin. Call Close when done.
func NewOrigin() *Origin {
	o := &Origin{
		items:  make(map[string]string),
		files:  make(map[string][]byte),
		status: make(map[string]int),
		hits:   make(map[string]int),
	}
	o.Server = httptest.NewServer(http.HandlerFunc(o.serve))
	return o
}

// Close shuts the server down.
func (o *Origin) Close() { o.Server.Close() }

// CatalogURL is the feed URL.
func (o *Origin) CatalogURL() string { return o.Server.URL + "/catalog.json.gz" }

// MediatorURL is the media-items base URL.
func (o *Origin) MediatorURL() string { return o.Server.URL + "/mediator" }

// SetCatalog sets the gzip feed body.
func (o *Origin) SetCatalog(gz []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.catalog = gz
}

// AddMediaItem registers the media-items response for lang/key.
func (o *Origin) AddMediaItem(lang, key, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items["/mediator/"+lang+"/"+key] = body
}

// AddFile registers a file body and returns its absolute URL.
func (o *Origin) AddFile(name string, body []byte) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := "/files/" + strings.TrimPrefix(name, "/")
	o.files[p] = body
	return o.Server.URL + p
}

// FailPath makes requests to path answer with status.
func (o *Origin) FailPath(path string, status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status[path] = status
}

// Hits returns how many requests reached path.
func (o *Origin) Hits(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

func (o *Origin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.hits[r.URL.Path]++
	status, failing := o.status[r.URL.Path]
	catalog := o.catalog
	item, isItem := o.items[r.URL.Path]
	file, isFile := o.files[r.URL.Path]
	o.mu.Unlock()

	switch {
	case failing:
		w.WriteHeader(status)
	case r.URL.Path == "/catalog.json.gz" && catalog != nil:
		w.Header().Set("Content-Type", "application/gzip")
		_, _ = w.Write(catalog)
	case isItem:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(item))
	case isFile:
		// No charset: clients must detect the encoding themselves.
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(file)
	default:
		http.NotFound(w, r)
	}
}
