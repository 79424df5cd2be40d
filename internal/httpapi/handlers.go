package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/Belphemur/DualMux/internal/apperrors"
	"github.com/Belphemur/DualMux/internal/models"
	"github.com/Belphemur/DualMux/internal/publish"
)

const maxFormBytes = 8 << 20

type handler struct {
	catalog   Searcher
	packager  Packager
	publisher publish.Publisher
	archives  *publish.LocalFS
	ffmpeg    Checker
}

func newHandler(d Deps) *handler {
	return &handler{
		catalog:   d.Catalog,
		packager:  d.Packager,
		publisher: d.Publisher,
		archives:  d.Archives,
		ffmpeg:    d.FFmpeg,
	}
}

// Health reports liveness. With ?deep=true it also checks ffmpeg and names
// the publish provider.
func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}

	if r.URL.Query().Get("deep") == "true" {
		checks := map[string]any{}
		if h.ffmpeg != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if version, err := h.ffmpeg.Check(ctx); err != nil {
				checks["ffmpeg"] = map[string]any{"status": "error", "error": err.Error()}
				health["status"] = "degraded"
			} else {
				checks["ffmpeg"] = map[string]any{"status": "ok", "version": version}
			}
		}
		if h.publisher != nil {
			checks["publish"] = map[string]any{"status": "ok", "provider": h.publisher.Provider()}
		}
		health["checks"] = checks
	}

	WriteJSON(w, http.StatusOK, health)
}

type searchResult struct {
	Title string          `json:"title"`
	Data  json.RawMessage `json:"data"`
}

// Search returns the catalog videos whose title contains q.
func (h *handler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	records, err := h.catalog.SearchCatalog(r.Context(), query)
	if err != nil {
		report(r, err, "Catalog search failed")
		WriteErr(w, http.StatusBadGateway, "CATALOG_UNAVAILABLE", err.Error(), nil)
		return
	}

	out := make([]searchResult, 0, len(records))
	for _, rec := range records {
		out = append(out, searchResult{Title: rec.Title, Data: rec.Raw})
	}
	WriteJSON(w, http.StatusOK, out)
}

type selectedVideo struct {
	Title string `json:"title"`
	Data  struct {
		NaturalKey string `json:"languageAgnosticNaturalKey"`
		Title      string `json:"title"`
	} `json:"data"`
}

type downloadRequest struct {
	SelectedVideos []selectedVideo `json:"selected_videos"`
}

type failedTitle struct {
	Title string `json:"title"`
	Key   string `json:"key"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

type downloadResponse struct {
	DownloadURL string        `json:"download_url"`
	Entries     []string      `json:"entries"`
	Failed      []failedTitle `json:"failed"`
}

// Download packages the selected titles, publishes the archive and sends the
// client to the download page.
func (h *handler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := hlog.FromRequest(r)

	selections, err := parseSelections(w, r)
	if err != nil {
		WriteErr(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), map[string]any{"field": "selected_videos"})
		return
	}

	result, err := h.packager.Package(ctx, selections)
	if err != nil {
		report(r, err, "Packaging failed")
		details := map[string]any{}
		if result != nil {
			details["failed"] = failedTitles(result.Failures)
		}
		code := "PACKAGING_FAILED"
		if errors.Is(err, apperrors.ErrNothingPackaged) {
			code = "NOTHING_PACKAGED"
		}
		WriteErr(w, http.StatusBadGateway, code, err.Error(), details)
		return
	}

	name := publish.ArchiveName()
	downloadURL, err := h.publisher.Upload(ctx, name, bytes.NewReader(result.Archive), int64(len(result.Archive)))
	if err != nil {
		report(r, err, "Publishing failed")
		WriteErr(w, http.StatusBadGateway, "PUBLISH_FAILED", err.Error(), map[string]any{"name": name})
		return
	}

	logger.Info().
		Str("name", name).
		Int("entries", len(result.Entries)).
		Int("failed", len(result.Failures)).
		Msg("Download ready")

	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, downloadResponse{
			DownloadURL: downloadURL,
			Entries:     result.Entries,
			Failed:      failedTitles(result.Failures),
		})
		return
	}
	http.Redirect(w, r, "/download_page?download_url="+url.QueryEscape(downloadURL), http.StatusSeeOther)
}

// parseSelections reads selected_videos from a JSON body or from the form
// field of the same name, which carries a JSON array.
func parseSelections(w http.ResponseWriter, r *http.Request) ([]models.Selection, error) {
	var videos []selectedVideo

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req downloadRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxFormBytes)).Decode(&req); err != nil {
			return nil, errors.New("invalid json body")
		}
		videos = req.SelectedVideos
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("invalid form body")
		}
		raw := r.PostForm.Get("selected_videos")
		if raw == "" {
			raw = "[]"
		}
		if err := json.Unmarshal([]byte(raw), &videos); err != nil {
			return nil, errors.New("selected_videos is not a json array")
		}
	}

	if len(videos) == 0 {
		return nil, errors.New("selected_videos is empty")
	}

	selections := make([]models.Selection, 0, len(videos))
	for _, v := range videos {
		title := v.Data.Title
		if title == "" {
			title = v.Title
		}
		if v.Data.NaturalKey == "" || title == "" {
			return nil, errors.New("every selected video needs data.languageAgnosticNaturalKey and a title")
		}
		selections = append(selections, models.Selection{Title: title, NaturalKey: v.Data.NaturalKey})
	}
	return selections, nil
}

func failedTitles(failures []models.Failure) []failedTitle {
	out := make([]failedTitle, 0, len(failures))
	for _, f := range failures {
		out = append(out, failedTitle{Title: f.Title, Key: f.NaturalKey, Stage: string(f.Stage), Error: f.Err.Error()})
	}
	return out
}

var downloadPage = template.Must(template.New("download").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Download ready</title>
</head>
<body>
<main>
<h1>Your archive is ready</h1>
<p><a id="download-link" href="{{.}}" download>Download archive</a></p>
</main>
</body>
</html>
`))

// DownloadPage renders a link to a published archive.
func (h *handler) DownloadPage(w http.ResponseWriter, r *http.Request) {
	downloadURL := r.URL.Query().Get("download_url")
	if downloadURL == "" {
		http.Error(w, "No download URL found.", http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := downloadPage.Execute(&buf, downloadURL); err != nil {
		report(r, err, "Rendering download page failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// Archive serves an archive stored by the local publisher.
func (h *handler) Archive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	path, err := h.archives.Path(name)
	if err != nil {
		WriteErr(w, http.StatusNotFound, "ARCHIVE_NOT_FOUND", "archive not found", map[string]any{"name": name})
		return
	}
	f, err := os.Open(path)
	if err != nil {
		WriteErr(w, http.StatusNotFound, "ARCHIVE_NOT_FOUND", "archive not found", map[string]any{"name": name})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		report(r, err, "Stat archive failed")
		WriteErr(w, http.StatusInternalServerError, "INTERNAL_ERROR", "archive unreadable", nil)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// report logs err and forwards it to Sentry when a hub is attached to the request.
func report(r *http.Request, err error, msg string) {
	hlog.FromRequest(r).Error().Err(err).Msg(msg)
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	}
}
