package httpds

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"

	"goldrates/internal/datasource/file"
)

// IsURL reports whether input names an http or https resource.
func IsURL(input string) bool {
	s := strings.ToLower(input)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Remote is a datasource.Source backed by a URL. The body is downloaded once
// into a temporary file on first use; Open and CountRows then read that file
// like a local input, including codec detection from the URL's extension.
type Remote struct {
	url    string
	client *Client
	dir    string

	once  sync.Once
	local *file.Local
	size  int64
	err   error
}

// NewRemote returns a Remote for rawURL. dir is where the download is
// staged; empty means os.TempDir().
func NewRemote(rawURL string, client *Client, dir string) *Remote {
	if client == nil {
		client = NewClient(Config{MaxRetries: 3})
	}
	return &Remote{url: rawURL, client: client, dir: dir}
}

// URL returns the source URL.
func (r *Remote) URL() string { return r.url }

// Size returns the downloaded byte count, or 0 before the download.
func (r *Remote) Size() int64 { return r.size }

func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	l, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return l.Open(ctx)
}

func (r *Remote) CountRows(ctx context.Context) (int64, error) {
	l, err := r.fetch(ctx)
	if err != nil {
		return 0, err
	}
	return l.CountRows(ctx)
}

// Close removes the staged download.
func (r *Remote) Close() error {
	if r.local == nil {
		return nil
	}
	err := os.Remove(r.local.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (r *Remote) fetch(ctx context.Context) (*file.Local, error) {
	r.once.Do(func() {
		r.local, r.size, r.err = r.download(ctx)
	})
	return r.local, r.err
}

func (r *Remote) download(ctx context.Context) (*file.Local, int64, error) {
	resp, err := r.client.Get(ctx, r.url)
	if err != nil {
		return nil, 0, fmt.Errorf("download %s: %w", r.url, err)
	}
	defer resp.Body.Close()

	f, err := os.CreateTemp(r.dir, "goldrates-*-"+localName(r.url))
	if err != nil {
		return nil, 0, fmt.Errorf("download %s: %w", r.url, err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, 0, fmt.Errorf("download %s: %w", r.url, err)
	}
	return file.NewLocal(f.Name()), n, nil
}

// localName derives a filesystem-safe name for a URL that keeps the last
// path segment's extension, so compressed inputs stay recognisable.
func localName(rawURL string) string {
	sum := fmt.Sprintf("%016x", xxh3.HashString(rawURL))
	u, err := url.Parse(rawURL)
	if err != nil {
		return sum
	}
	base := path.Base(u.Path)
	var ext string
	for {
		e := path.Ext(base)
		if e == "" || e == "." || len(e) > 8 {
			break
		}
		ext = e + ext
		base = strings.TrimSuffix(base, e)
	}
	return sum + strings.ToLower(ext)
}
