package publish

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Belphemur/DualMux/internal/apperrors"
)

// GDrive stores archives in a Google Drive folder and shares them with
// anyone holding the link.
type GDrive struct {
	srv      *drive.Service
	folderID string
}

// NewGDrive authenticates with an OAuth refresh token.
func NewGDrive(ctx context.Context, clientID, clientSecret, refreshToken, folderID string) (*GDrive, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("gdrive publisher needs client_id, client_secret and refresh_token")
	}
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}
	httpClient := conf.Client(context.Background(), &oauth2.Token{RefreshToken: refreshToken})

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return NewGDriveWithService(srv, folderID), nil
}

// NewGDriveWithService wraps an existing Drive service.
func NewGDriveWithService(srv *drive.Service, folderID string) *GDrive {
	return &GDrive{srv: srv, folderID: folderID}
}

func (g *GDrive) Provider() string { return "gdrive" }

// Upload replaces the content of an existing file with the same name in the
// folder, or creates it, then grants anyone read access.
func (g *GDrive) Upload(ctx context.Context, name string, r io.Reader, _ int64) (string, error) {
	fail := func(err error) (string, error) {
		return "", &apperrors.ErrPublishFailed{Name: name, Provider: g.Provider(), Cause: err}
	}
	if !ValidName(name) {
		return fail(fmt.Errorf("invalid object name %q", name))
	}

	existing, err := g.find(ctx, name)
	if err != nil {
		return fail(fmt.Errorf("look up existing file: %w", err))
	}

	media := googleapi.ContentType("application/zip")
	var file *drive.File
	if existing != "" {
		file, err = g.srv.Files.Update(existing, &drive.File{}).
			Media(r, media).
			Fields("id", "webContentLink").
			SupportsAllDrives(true).
			Context(ctx).
			Do()
	} else {
		meta := &drive.File{Name: name, MimeType: "application/zip"}
		if g.folderID != "" {
			meta.Parents = []string{g.folderID}
		}
		file, err = g.srv.Files.Create(meta).
			Media(r, media).
			Fields("id", "webContentLink").
			SupportsAllDrives(true).
			Context(ctx).
			Do()
	}
	if err != nil {
		return fail(fmt.Errorf("upload: %w", err))
	}

	_, err = g.srv.Permissions.Create(file.Id, &drive.Permission{Type: "anyone", Role: "reader"}).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return fail(fmt.Errorf("share: %w", err))
	}
	return file.WebContentLink, nil
}

func (g *GDrive) find(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(name))
	if g.folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(g.folderID))
	}
	list, err := g.srv.Files.List().
		Q(q).
		Fields("files(id)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}
