// Package publish uploads finished archives to a blob store and returns the
// public URL they can be downloaded from.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/Belphemur/DualMux/internal/apperrors"
	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/metrics"
)

// Publisher stores an archive under name, replacing any previous object
// with the same name, and returns its public URL.
type Publisher interface {
	Provider() string
	Upload(ctx context.Context, name string, r io.Reader, size int64) (string, error)
}

// New builds the publisher selected by publish.provider.
func New(ctx context.Context, cfg *config.Config) (Publisher, error) {
	var (
		p   Publisher
		err error
	)
	switch cfg.Publish.Provider {
	case "", "localfs":
		p, err = NewLocalFS(cfg.Publish.Local.Root, cfg.Publish.PublicBaseURL)
	case "gdrive":
		g := cfg.Publish.GDrive
		p, err = NewGDrive(ctx, g.ClientID, g.ClientSecret, g.RefreshToken, g.FolderID)
	default:
		return nil, fmt.Errorf("unknown publish provider %q", cfg.Publish.Provider)
	}
	if err != nil {
		return nil, err
	}
	return instrumented{p}, nil
}

// ArchiveName returns a fresh, unguessable archive object name.
func ArchiveName() string {
	return uuid.NewString() + ".zip"
}

// ValidName reports whether name is a plain object name: no path
// separators, no leading dot.
func ValidName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}

// instrumented counts uploads and normalizes errors to ErrPublishFailed.
type instrumented struct {
	Publisher
}

func (i instrumented) Upload(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	logger := config.GetLogger()
	url, err := i.Publisher.Upload(ctx, name, r, size)
	if err != nil {
		metrics.ArchivesPublishedTotal.WithLabelValues(i.Provider(), metrics.StatusError).Inc()
		if !errors.Is(err, &apperrors.ErrPublishFailed{}) {
			err = &apperrors.ErrPublishFailed{Name: name, Provider: i.Provider(), Cause: err}
		}
		return "", err
	}
	metrics.ArchivesPublishedTotal.WithLabelValues(i.Provider(), metrics.StatusSuccess).Inc()
	logger.Info().Str("provider", i.Provider()).Str("name", name).Int64("size", size).Str("url", url).Msg("Archive published")
	return url, nil
}

// Unwrap returns the underlying publisher.
func (i instrumented) Unwrap() Publisher { return i.Publisher }

// LocalStore returns the local filesystem store behind p, if p is one.
func LocalStore(p Publisher) (*LocalFS, bool) {
	for {
		switch v := p.(type) {
		case *LocalFS:
			return v, true
		case interface{ Unwrap() Publisher }:
			p = v.Unwrap()
		default:
			return nil, false
		}
	}
}
