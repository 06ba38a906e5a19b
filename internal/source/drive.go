package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"mediabatch/internal/fileutil"
	"mediabatch/internal/logging"
	"mediabatch/internal/metrics"
	"mediabatch/internal/services"
)

const (
	folderMimeType  = "application/vnd.google-apps.folder"
	listPageSize    = 1000
	listFields      = "nextPageToken,files(id,name,mimeType,size)"
	errorBodyLimit  = 512
	defaultCacheTTL = 5 * time.Minute
)

// HTTPDoer describes the HTTP client used by the Drive backend.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DriveOptions configures the Drive backend.
type DriveOptions struct {
	BaseURL    string
	APIKey     string
	Extensions []string
	CacheSize  int
	CacheTTL   time.Duration
	Client     HTTPDoer
	Logger     *slog.Logger
}

// Drive lists and downloads files from Google Drive folders shared by link.
// Listings are cached per folder and recursion flag.
type Drive struct {
	baseURL string
	apiKey  string
	filter  Filter
	client  HTTPDoer
	cache   *expirable.LRU[string, []Item]
	logger  *slog.Logger
}

// NewDrive constructs a Drive backend.
func NewDrive(opts DriveOptions) *Drive {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 64
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Drive{
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:  strings.TrimSpace(opts.APIKey),
		filter:  NewFilter(opts.Extensions),
		client:  client,
		cache:   expirable.NewLRU[string, []Item](size, nil, ttl),
		logger:  logging.NewComponentLogger(logger, "drive"),
	}
}

// ExtractFolderID returns the folder ID from a Drive folder link, an
// "id=" style link, or a bare ID.
func ExtractFolderID(link string) string {
	link = strings.TrimSpace(link)
	switch {
	case strings.Contains(link, "/folders/"):
		id := link[strings.LastIndex(link, "/folders/")+len("/folders/"):]
		return cutAny(id, "?/#")
	case strings.Contains(link, "id="):
		id := link[strings.LastIndex(link, "id=")+len("id="):]
		return cutAny(id, "&#")
	default:
		return link
	}
}

func cutAny(value, separators string) string {
	if idx := strings.IndexAny(value, separators); idx >= 0 {
		return value[:idx]
	}
	return value
}

type driveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     string `json:"size"`
}

type fileList struct {
	NextPageToken string      `json:"nextPageToken"`
	Files         []driveFile `json:"files"`
}

// List returns the audio files in the folder ref, descending into subfolders
// when recursive is set.
func (d *Drive) List(ctx context.Context, ref string, recursive bool) ([]Item, error) {
	folderID := ExtractFolderID(ref)
	if folderID == "" {
		return nil, services.Wrap(services.ErrSourceUnavailable, "drive", "list", "empty folder id", nil)
	}
	key := fmt.Sprintf("%s|%t", folderID, recursive)
	if cached, ok := d.cache.Get(key); ok {
		metrics.ListingCacheLookup(true)
		return slices.Clone(cached), nil
	}
	metrics.ListingCacheLookup(false)

	var items []Item
	if err := d.walk(ctx, folderID, "", recursive, &items); err != nil {
		return nil, err
	}
	d.logger.Info("listed drive folder",
		logging.String("folder_id", folderID),
		logging.Int("items", len(items)),
		logging.Bool("recursive", recursive),
	)
	d.cache.Add(key, slices.Clone(items))
	return items, nil
}

func (d *Drive) walk(ctx context.Context, folderID, prefix string, recursive bool, items *[]Item) error {
	files, err := d.listFolder(ctx, folderID)
	if err != nil {
		return err
	}
	slices.SortFunc(files, func(a, b driveFile) int { return strings.Compare(a.Name, b.Name) })
	for _, file := range files {
		rel := path.Join(prefix, file.Name)
		if file.MimeType == folderMimeType {
			if !recursive {
				continue
			}
			if err := d.walk(ctx, file.ID, rel, recursive, items); err != nil {
				return err
			}
			continue
		}
		if !d.filter.Accepts(file.Name) {
			continue
		}
		size, _ := strconv.ParseInt(file.Size, 10, 64)
		*items = append(*items, Item{
			Locator:  file.ID,
			Name:     file.Name,
			RelPath:  rel,
			Size:     size,
			MimeType: MimeType(file.Name),
			Origin:   OriginDrive,
		})
	}
	return nil
}

func (d *Drive) listFolder(ctx context.Context, folderID string) ([]driveFile, error) {
	var files []driveFile
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", folderID))
		query.Set("fields", listFields)
		query.Set("pageSize", strconv.Itoa(listPageSize))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		resp, err := d.get(ctx, "/files", query)
		if err != nil {
			return nil, services.Wrap(services.ErrSourceUnavailable, "drive", "list", folderID, err)
		}
		var page fileList
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, services.Wrap(services.ErrSourceUnavailable, "drive", "decode listing", folderID, decodeErr)
		}
		files = append(files, page.Files...)
		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

// Materialize downloads the item under dir, keeping its relative path. A file
// of the listed size is reused.
func (d *Drive) Materialize(ctx context.Context, item Item, dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", services.Wrap(services.ErrSourceUnavailable, "drive", "materialize", "download directory required", nil)
	}
	dest := filepath.Join(dir, filepath.FromSlash(item.RelPath))
	expected := item.Size
	if expected <= 0 {
		expected = -1
	}
	if fileutil.SizeMatches(dest, expected) {
		d.logger.Debug("reusing downloaded file", logging.String("path", dest))
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "drive", "materialize", dest, err)
	}

	query := url.Values{}
	query.Set("alt", "media")
	resp, err := d.get(ctx, "/files/"+url.PathEscape(item.Locator), query)
	if err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "drive", "download", item.Name, err)
	}
	defer resp.Body.Close()

	err = fileutil.WriteAtomic(dest, 0o644, func(w io.Writer) error {
		_, copyErr := io.Copy(w, resp.Body)
		return copyErr
	})
	if err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "drive", "download", item.Name, err)
	}
	d.logger.Info("downloaded drive file",
		logging.String("name", item.Name),
		logging.String("path", dest),
	)
	return dest, nil
}

// get issues a GET and returns the response only for 2xx statuses.
func (d *Drive) get(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	if d.apiKey != "" {
		query.Set("key", d.apiKey)
	}
	target := d.baseURL + endpoint + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, fmt.Errorf("drive returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
