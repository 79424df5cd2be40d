package models

import "os"

// PayloadRole identifies which mux input a fetched payload feeds.
type PayloadRole string

const (
	RoleVideoPrimary      PayloadRole = "video-primary"
	RoleVideoSecondary    PayloadRole = "video-secondary"
	RoleSubtitlePrimary   PayloadRole = "subtitle-primary"
	RoleSubtitleSecondary PayloadRole = "subtitle-secondary"
)

// IsSubtitle reports whether the role is one of the subtitle roles.
func (r PayloadRole) IsSubtitle() bool {
	return r == RoleSubtitlePrimary || r == RoleSubtitleSecondary
}

// Payload is a fully fetched media or subtitle body. It is backed either by a
// spool file on disk (Path) or by an in-memory buffer (Data), never both.
// The pipeline step that fetched it owns it until Release is called.
type Payload struct {
	Role   PayloadRole
	Source string
	Path   string
	Data   []byte
	Size   int64
}

// Release drops the payload content and removes its spool file, if any.
// It is safe to call on a nil payload and more than once.
func (p *Payload) Release() error {
	if p == nil {
		return nil
	}
	p.Data = nil
	if p.Path == "" {
		return nil
	}
	path := p.Path
	p.Path = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
