// Package fetcher retrieves input tables from local paths, HTTP and FTP
// servers, and parses CSV and XLSX sources into string rows.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher downloads a remote resource.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Resolver maps an input location to a readable local file. Local paths are
// returned as-is; http(s) and ftp URLs are downloaded into TempDir first.
type Resolver struct {
	HTTP    Fetcher
	FTP     Fetcher
	TempDir string
}

// NewResolver creates a Resolver that stages downloads in tempDir.
func NewResolver(httpFetcher, ftpFetcher Fetcher, tempDir string) *Resolver {
	return &Resolver{HTTP: httpFetcher, FTP: ftpFetcher, TempDir: tempDir}
}

// IsRemote reports whether loc is a URL the Resolver would download.
func IsRemote(loc string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return true
	}
	return false
}

// Ext returns the lower-case file extension of a local path or URL path.
func Ext(loc string) string {
	if IsRemote(loc) {
		if u, err := url.Parse(loc); err == nil {
			return strings.ToLower(path.Ext(u.Path))
		}
	}
	return strings.ToLower(filepath.Ext(loc))
}

// Resolve returns a local path holding the content at loc.
func (r *Resolver) Resolve(ctx context.Context, loc string) (string, error) {
	if loc == "" {
		return "", eris.New("fetcher: empty location")
	}
	if !IsRemote(loc) {
		if _, err := os.Stat(loc); err != nil {
			return "", eris.Wrapf(err, "fetcher: stat %s", loc)
		}
		return loc, nil
	}

	u, _ := url.Parse(loc)
	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "ftp":
		f = r.FTP
	default:
		f = r.HTTP
	}
	if f == nil {
		return "", eris.Errorf("fetcher: no fetcher configured for %s", u.Scheme)
	}

	dir := r.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create temp dir")
	}
	tmp, err := os.CreateTemp(dir, "input-*"+Ext(loc))
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create temp file")
	}
	dest := tmp.Name()
	_ = tmp.Close()

	n, err := f.DownloadToFile(ctx, loc, dest)
	if err != nil {
		_ = os.Remove(dest)
		return "", eris.Wrapf(err, "fetcher: download %s", loc)
	}
	zap.L().Info("fetcher: downloaded input",
		zap.String("location", loc),
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return dest, nil
}
