package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mediabatch/internal/fileutil"
	"mediabatch/internal/services"
)

// Local lists audio files from a directory on disk.
type Local struct {
	filter Filter
}

// NewLocal returns a local backend accepting the given extensions.
func NewLocal(extensions []string) *Local {
	return &Local{filter: NewFilter(extensions)}
}

// List walks ref in lexical order. A ref naming a single file yields that file.
func (l *Local) List(ctx context.Context, ref string, recursive bool) ([]Item, error) {
	root := strings.TrimSpace(ref)
	info, err := os.Stat(root)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "source", "list", root, err)
	}
	if !info.IsDir() {
		if !l.filter.Accepts(info.Name()) {
			return nil, services.Wrap(services.ErrSourceUnavailable, "source", "list", fmt.Sprintf("%s is not a supported audio file", root), nil)
		}
		return []Item{localItem(root, info.Name(), info)}, nil
	}

	var items []Item
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || !l.filter.Accepts(entry.Name()) {
			return nil
		}
		fileInfo, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		items = append(items, localItem(path, rel, fileInfo))
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "source", "list", root, err)
	}
	return items, nil
}

func localItem(path, rel string, info fs.FileInfo) Item {
	return Item{
		Locator:  path,
		Name:     info.Name(),
		RelPath:  filepath.ToSlash(rel),
		Size:     info.Size(),
		MimeType: MimeType(info.Name()),
		Origin:   OriginLocal,
	}
}

// Materialize copies the item under dir, keeping its relative path. A copy of
// the expected size is reused. With an empty dir the original path is returned.
func (l *Local) Materialize(ctx context.Context, item Item, dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return item.Locator, nil
	}
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "source", "materialize", item.Name, err)
	}
	dest := filepath.Join(dir, filepath.FromSlash(item.RelPath))
	if fileutil.SizeMatches(dest, item.Size) {
		return dest, nil
	}
	if _, err := os.Stat(item.Locator); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrSourceUnavailable, "source", "materialize", item.Locator+" no longer exists", err)
		}
		return "", services.Wrap(services.ErrSourceUnavailable, "source", "materialize", item.Locator, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "source", "materialize", dest, err)
	}
	if err := fileutil.CopyFile(item.Locator, dest); err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "source", "materialize", dest, err)
	}
	return dest, nil
}
