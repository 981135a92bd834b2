package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInstallerURL(t *testing.T) {
	require.Equal(t, "https://lutris.net/api/installers/quake-gog", InstallerURL("https://lutris.net/api/installers/", "quake-gog"))
	require.Equal(t, "http://x/a%2Fb", InstallerURL("http://x/", "a/b"))
}

func TestBytes_SendsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer srv.Close()

	c := New(Options{UserAgent: "polecat/1.2.3"})
	b, err := c.Bytes(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "polecat/1.2.3", string(b))
}

func TestOpen_NotFoundAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Options{})
	_, _, err := c.Open(context.Background(), srv.URL+"/missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = c.Open(context.Background(), srv.URL+"/forbidden")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusForbidden, se.StatusCode)
}

func TestOpen_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	core, logs := observer.New(zap.DebugLevel)
	c := New(Options{Retries: 2, Logger: zap.New(core)})
	rc, size, err := c.Open(context.Background(), srv.URL+"/file?token=s3cr3t")
	require.NoError(t, err)
	defer rc.Close()
	require.Equal(t, int64(len("payload")), size)
	require.Equal(t, int32(2), hits.Load())

	for _, e := range logs.All() {
		for _, f := range e.Context {
			require.NotContains(t, f.String, "s3cr3t")
		}
	}
}

func TestOpen_FileURL(t *testing.T) {
	p := filepath.Join(t.TempDir(), "setup.exe")
	require.NoError(t, os.WriteFile(p, []byte("MZ"), 0o644))

	c := New(Options{})
	rc, size, err := c.Open(context.Background(), "file://"+p)
	require.NoError(t, err)
	rc.Close()
	require.Equal(t, int64(2), size)

	_, _, err = c.Open(context.Background(), "file://"+p+".gone")
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = c.Open(context.Background(), "ftp://example/x")
	require.ErrorContains(t, err, "unsupported url scheme")
}
