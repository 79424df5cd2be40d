// Package httpapi exposes search and packaging over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Belphemur/DualMux/internal/models"
	"github.com/Belphemur/DualMux/internal/publish"
)

// Searcher finds catalog records by title.
type Searcher interface {
	SearchCatalog(ctx context.Context, query string) ([]models.CatalogRecord, error)
}

// Packager builds the archive for a selection.
type Packager interface {
	Package(ctx context.Context, selections []models.Selection) (*models.PackageResult, error)
}

// Checker reports the version of an external tool.
type Checker interface {
	Check(ctx context.Context) (string, error)
}

type Deps struct {
	Catalog   Searcher
	Packager  Packager
	Publisher publish.Publisher
	Archives  *publish.LocalFS // set when archives are served by this process
	FFmpeg    Checker          // optional, used by /health?deep=true
	Logger    zerolog.Logger
	Sentry    bool // wrap handlers with the Sentry middleware
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(d.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request served")
	}))
	r.Use(middleware.Recoverer)
	if d.Sentry {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}

	h := newHandler(d)

	r.Get("/health", h.Health)
	r.Get("/search", h.Search)
	r.Post("/download", h.Download)
	r.Get("/download_page", h.DownloadPage)
	if d.Archives != nil {
		r.Get("/archives/{name}", h.Archive)
	}

	return r
}
