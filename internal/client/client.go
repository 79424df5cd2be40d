package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/failsafehttp"

	"github.com/Belphemur/DualMux/internal/cache"
	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/language"
	"github.com/Belphemur/DualMux/internal/models"
)

// Client talks to the catalog feed, the mediator metadata endpoint and the
// media CDN.
type Client interface {
	// StreamCatalog emits the video records of the catalog feed in feed order.
	// A result with a non-nil Err ends the stream.
	StreamCatalog(ctx context.Context) <-chan models.StreamResult[models.CatalogRecord]
	FetchCatalog(ctx context.Context) ([]models.CatalogRecord, error)
	SearchCatalog(ctx context.Context, query string) ([]models.CatalogRecord, error)

	// Resolve looks up the download links of a title in both target languages.
	Resolve(ctx context.Context, naturalKey string) (models.LanguagePair, error)

	// FetchVideo spools a video to a temporary file owned by the returned payload.
	FetchVideo(ctx context.Context, url string, role models.PayloadRole) (*models.Payload, error)
	// FetchSubtitle downloads a subtitle into memory as UTF-8. An empty url
	// returns a nil payload and no error.
	FetchSubtitle(ctx context.Context, url string, role models.PayloadRole) (*models.Payload, error)

	// Close releases any resources held by the client (e.g., cache connections).
	Close() error
}

type client struct {
	httpClient       *http.Client
	caches           Caches
	catalogURL       string
	mediatorURL      string
	clientType       string
	primary          language.Language
	secondary        language.Language
	requestTimeout   time.Duration
	fetchTimeout     time.Duration
	maxSubtitleBytes int64
	spoolDir         string
}

// Caches holds the per-group caches used by the client. A nil field disables
// caching for that group.
type Caches struct {
	// Catalog holds the compressed catalog feed, keyed by feed URL.
	Catalog cache.Cache
	// Media holds mediator metadata, keyed by language and natural key.
	Media cache.Cache
}

// Close closes every non-nil cache.
func (cs Caches) Close() error {
	var errs []error
	for _, c := range []cache.Cache{cs.Catalog, cs.Media} {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// NewClient creates a new client. The zero Caches disables caching.
func NewClient(cfg *config.Config, caches Caches) (Client, error) {
	primary, err := language.Lookup(cfg.Languages.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary language: %w", err)
	}
	secondary, err := language.Lookup(cfg.Languages.Secondary)
	if err != nil {
		return nil, fmt.Errorf("secondary language: %w", err)
	}

	maxSubtitleBytes := cfg.Fetch.MaxSubtitleBytes
	if maxSubtitleBytes <= 0 {
		maxSubtitleBytes = 10 << 20
	}

	return &client{
		httpClient:       newHTTPClient(cfg),
		caches:           caches,
		catalogURL:       cfg.Catalog.URL,
		mediatorURL:      cfg.Mediator.BaseURL,
		clientType:       cfg.Mediator.ClientType,
		primary:          primary,
		secondary:        secondary,
		requestTimeout:   config.ParseDuration("client_timeout", cfg.ClientTimeout, 30*time.Second),
		fetchTimeout:     config.ParseDuration("fetch.timeout", cfg.Fetch.Timeout, 30*time.Minute),
		maxSubtitleBytes: maxSubtitleBytes,
		spoolDir:         cfg.Mux.TempDir,
	}, nil
}

// newHTTPClient builds the transport chain: proxy, then transparent
// decompression, then retries on transient failures. No client-wide timeout
// is set because video downloads run far longer than metadata calls; every
// request carries its own context deadline instead.
func newHTTPClient(cfg *config.Config) *http.Client {
	logger := config.GetLogger()

	// Clone DefaultTransport to preserve all its settings (timeouts, connection pooling, HTTP/2, etc.)
	baseTransport := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.ProxyConnectionString != "" {
		proxyURL, err := url.Parse(cfg.ProxyConnectionString)
		if err != nil {
			logger.Warn().Err(err).Str("proxy", cfg.ProxyConnectionString).Msg("Invalid proxy URL, continuing without proxy")
		} else {
			baseTransport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	var transport http.RoundTripper = newCompressionTransport(baseTransport)

	if cfg.Fetch.Retries > 0 {
		retryPolicy := failsafehttp.NewRetryPolicyBuilder().
			WithMaxRetries(cfg.Fetch.Retries).
			WithBackoff(500*time.Millisecond, 10*time.Second).
			ReturnLastFailure().
			OnRetry(func(e failsafe.ExecutionEvent[*http.Response]) {
				logger.Warn().Err(e.LastError()).Int("attempt", e.Attempts()).Msg("Retrying request")
			}).
			Build()
		transport = failsafehttp.NewRoundTripper(transport, retryPolicy)
	}

	return &http.Client{Transport: transport}
}

// newRequest creates a GET request with the configured User-Agent.
func newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", config.GetUserAgent())
	return req, nil
}

// Close releases any resources held by the client, such as cache connections.
func (c *client) Close() error {
	return c.caches.Close()
}
