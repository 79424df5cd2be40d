package publish

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/Belphemur/DualMux/internal/apperrors"
)

const lockFileName = ".publish.lock"

// LocalFS stores archives in a directory that the HTTP API serves under
// /archives/.
type LocalFS struct {
	root    string
	baseURL string
}

// NewLocalFS creates the root directory if needed.
func NewLocalFS(root, publicBaseURL string) (*LocalFS, error) {
	if root == "" {
		root = "./archives"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive root: %w", err)
	}
	return &LocalFS{root: root, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (l *LocalFS) Provider() string { return "localfs" }

// Root is the directory archives are written to.
func (l *LocalFS) Root() string { return l.root }

// Upload writes the archive to a temporary file and renames it into place
// while holding the root lock, so readers never observe a partial archive.
func (l *LocalFS) Upload(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	fail := func(err error) (string, error) {
		return "", &apperrors.ErrPublishFailed{Name: name, Provider: l.Provider(), Cause: err}
	}
	if !ValidName(name) {
		return fail(fmt.Errorf("invalid object name %q", name))
	}

	lock := flock.New(filepath.Join(l.root, lockFileName))
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fail(fmt.Errorf("acquire lock: %w", err))
	}
	if !locked {
		return fail(fmt.Errorf("acquire lock: %s is busy", l.root))
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(l.root, ".upload-*")
	if err != nil {
		return fail(err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err == nil && size >= 0 && n != size {
		err = fmt.Errorf("wrote %d bytes, expected %d", n, size)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fail(err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(l.root, name)); err != nil {
		return fail(err)
	}
	return l.URL(name), nil
}

// URL returns the public URL of an archive.
func (l *LocalFS) URL(name string) string {
	return l.baseURL + "/archives/" + url.PathEscape(name)
}

// Path returns the file path of a stored archive.
func (l *LocalFS) Path(name string) (string, error) {
	if !ValidName(name) {
		return "", os.ErrNotExist
	}
	return filepath.Join(l.root, name), nil
}
