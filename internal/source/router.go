package source

import (
	"context"
	"os"
	"regexp"
	"strings"

	"mediabatch/internal/services"
)

var bareDriveID = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)

// Router dispatches references to the backend that understands them.
type Router struct {
	local *Local
	drive *Drive
}

// NewRouter returns a router. Either backend may be nil.
func NewRouter(local *Local, drive *Drive) *Router {
	return &Router{local: local, drive: drive}
}

// IsDriveRef reports whether ref looks like a Drive folder link or ID.
func IsDriveRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "drive.google.com") || strings.Contains(ref, "docs.google.com") {
		return true
	}
	return bareDriveID.MatchString(ref)
}

// List lists ref through the matching backend. Existing local paths win over
// Drive IDs.
func (r *Router) List(ctx context.Context, ref string, recursive bool) ([]Item, error) {
	backend, err := r.resolve(ref)
	if err != nil {
		return nil, err
	}
	return backend.List(ctx, ref, recursive)
}

// Materialize hands the item to the backend it was listed from.
func (r *Router) Materialize(ctx context.Context, item Item, dir string) (string, error) {
	switch item.Origin {
	case OriginDrive:
		if r.drive == nil {
			return "", services.Wrap(services.ErrSourceUnavailable, "source", "materialize", "drive backend not configured", nil)
		}
		return r.drive.Materialize(ctx, item, dir)
	default:
		if r.local == nil {
			return "", services.Wrap(services.ErrSourceUnavailable, "source", "materialize", "local backend not configured", nil)
		}
		return r.local.Materialize(ctx, item, dir)
	}
}

func (r *Router) resolve(ref string) (Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, services.Wrap(services.ErrSourceUnavailable, "source", "resolve", "empty source reference", nil)
	}
	if _, err := os.Stat(ref); err == nil && r.local != nil {
		return r.local, nil
	}
	if IsDriveRef(ref) && r.drive != nil {
		return r.drive, nil
	}
	if r.local != nil && !IsDriveRef(ref) {
		// Let the local backend report the missing path.
		return r.local, nil
	}
	return nil, services.Wrap(services.ErrSourceUnavailable, "source", "resolve", "no backend for "+ref, nil)
}
