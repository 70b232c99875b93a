package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.org/a.csv"))
	assert.True(t, IsRemote("HTTP://example.org/a.csv"))
	assert.True(t, IsRemote("ftp://files.example.org/a.csv"))
	assert.False(t, IsRemote("data/a.csv"))
	assert.False(t, IsRemote("/abs/a.xlsx"))
	assert.False(t, IsRemote(`C:\data\a.csv`))
}

func TestExt(t *testing.T) {
	assert.Equal(t, ".xlsx", Ext("https://example.org/tables/Biometric.XLSX?sig=1"))
	assert.Equal(t, ".csv", Ext("data/enrollment.csv"))
	assert.Equal(t, "", Ext("ftp://files.example.org/raw"))
}

func TestResolve_LocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrollment.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	r := NewResolver(nil, nil, t.TempDir())
	got, err := r.Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestResolve_MissingLocalPath(t *testing.T) {
	r := NewResolver(nil, nil, t.TempDir())
	_, err := r.Resolve(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher: stat")
}

func TestResolve_Empty(t *testing.T) {
	_, err := NewResolver(nil, nil, "").Resolve(context.Background(), "")
	require.Error(t, err)
}

func TestResolve_HTTPKeepsExtension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("state,district\n")) //nolint:errcheck
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := NewResolver(newTestFetcher(1), nil, dir)
	got, err := r.Resolve(context.Background(), srv.URL+"/exports/biometric.csv")
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(got))
	assert.Equal(t, ".csv", filepath.Ext(got))
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "state,district\n", string(data))
}

func TestResolve_HTTPFailureRemovesTempFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := NewResolver(newTestFetcher(1), nil, dir)
	_, err := r.Resolve(context.Background(), srv.URL+"/missing.csv")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolve_FTP(t *testing.T) {
	srv := newMiniFTPServer(t, map[string]string{"/demo.csv": "a,b\n"})
	defer srv.close()

	r := NewResolver(nil, NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second}), t.TempDir())
	got, err := r.Resolve(context.Background(), fmt.Sprintf("ftp://%s/demo.csv", srv.addr()))
	require.NoError(t, err)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

func TestResolve_NoFetcherForScheme(t *testing.T) {
	r := NewResolver(nil, nil, t.TempDir())
	_, err := r.Resolve(context.Background(), "ftp://files.example.org/a.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetcher configured")
}
