package ghadapter

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jgivc/ghrelay/internal/common"
	"github.com/jgivc/ghrelay/internal/config"
	"github.com/jgivc/ghrelay/internal/entity"
	"github.com/jgivc/ghrelay/internal/repository/cache"
	"github.com/stretchr/testify/require"
)

const releasesJSON = `[
  {"tag_name": "v2", "name": "Two", "body": "notes", "published_at": "2025-07-20T10:00:00Z",
   "assets": [{"name": "app-arm64.apk", "browser_download_url": "https://github.com/a/b/app-arm64.apk", "size": 10, "content_type": "application/vnd.android.package-archive"}]},
  {"tag_name": "v1", "name": null, "body": null, "published_at": "2025-07-01T10:00:00Z", "assets": []}
]`

const (
	testMaxBody   = 1024
	slowChunks    = 5
	slowChunkSize = 1024
)

type upstream struct {
	srv   *httptest.Server
	calls atomic.Int32
	auth  atomic.Value
}

func newUpstream(t *testing.T) *upstream {
	u := &upstream{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/app/releases", func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		u.auth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		io.WriteString(w, releasesJSON)
	})
	mux.HandleFunc("GET /repos/acme/app/contents/backups/one", func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		if r.Header.Get("Accept") == AcceptRaw {
			w.Header().Set("Content-Type", "application/octet-stream")
			io.WriteString(w, "raw-bytes")

			return
		}
		io.WriteString(w, `[{"name": "manifest.json", "path": "backups/one/manifest.json", "type": "file", "download_url": "https://raw.githubusercontent.com/acme/app/main/backups/one/manifest.json", "sha": "abc", "size": 3}]`)
	})
	mux.HandleFunc("GET /repos/acme/app/contents/broken", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{not json`)
	})
	mux.HandleFunc("GET /repos/acme/app/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("recursive") != "1" {
			http.Error(w, "not recursive", http.StatusBadRequest)

			return
		}
		io.WriteString(w, `{"sha": "x", "tree": [{"path": "direct", "type": "tree"}, {"path": "direct/msg1/manifest.json", "type": "blob"}]}`)
	})
	mux.HandleFunc("GET /repos/acme/app/git/trees/huge", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"sha": "y", "truncated": true, "tree": [{"path": "direct/msg1/manifest.json", "type": "blob"}]}`)
	})
	mux.HandleFunc("GET /repos/acme/app/contents/big", func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(bytes.Repeat([]byte("x"), testMaxBody+10))
	})
	mux.HandleFunc("GET /repos/acme/app/contents/fits", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(bytes.Repeat([]byte("x"), testMaxBody))
	})
	mux.HandleFunc("GET /slow/app.apk", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.android.package-archive")
		for range slowChunks {
			w.Write(bytes.Repeat([]byte("a"), slowChunkSize))
			w.(http.Flusher).Flush()
			time.Sleep(100 * time.Millisecond)
		}
	})
	mux.HandleFunc("HEAD /acme/flags/main/direct/msg1/image.png", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})

	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)

	return u
}

func newTestClient(t *testing.T, u *upstream, ttl time.Duration, token string) *Client {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	return newTestClientWith(t, u, ttl, token, 5*time.Second, log)
}

func newTestClientWith(t *testing.T, u *upstream, ttl time.Duration, token string, timeout time.Duration, log *slog.Logger) *Client {
	cfg := &config.GitHubConfig{
		APIURL:    u.srv.URL,
		RawURL:    u.srv.URL,
		Token:     token,
		UserAgent: "ghrelay-test",
		Timeout:   timeout,
	}

	c, err := NewClient(cfg, cache.NewMemoryCache(0, log), ttl, log)
	require.NoError(t, err)
	c.maxBody = testMaxBody

	return c
}

func TestReleases(t *testing.T) {
	u := newUpstream(t)
	c := newTestClient(t, u, time.Hour, "secret")

	releases, err := c.Releases(context.Background(), "acme", "app")
	require.NoError(t, err)
	require.Len(t, releases, 2)
	require.Equal(t, "v2", releases[0].Tag)
	require.Equal(t, "Two", *releases[0].Title)
	require.Nil(t, releases[1].Title)
	require.Equal(t, "app-arm64.apk", releases[0].Assets[0].Name)
	require.Equal(t, int64(10), releases[0].Assets[0].Size)
	require.Equal(t, time.Date(2025, 7, 20, 10, 0, 0, 0, time.UTC), releases[0].PublishedAt.UTC())
	require.Equal(t, "Bearer secret", u.auth.Load())
}

func TestResponsesAreCached(t *testing.T) {
	u := newUpstream(t)
	c := newTestClient(t, u, time.Hour, "")

	for range 3 {
		payload, err := c.ReleasesPayload(context.Background(), "acme", "app")
		require.NoError(t, err)
		require.Equal(t, contentTypeJSON, payload.ContentType)
		require.JSONEq(t, releasesJSON, string(payload.Body))
	}

	require.Equal(t, int32(1), u.calls.Load())
	require.Equal(t, "", u.auth.Load())
}

func TestZeroTTLDisablesCache(t *testing.T) {
	u := newUpstream(t)
	c := newTestClient(t, u, 0, "")

	for range 2 {
		_, err := c.Releases(context.Background(), "acme", "app")
		require.NoError(t, err)
	}

	require.Equal(t, int32(2), u.calls.Load())
}

func TestContents(t *testing.T) {
	u := newUpstream(t)
	c := newTestClient(t, u, time.Hour, "")
	ctx := context.Background()

	payload, err := c.Contents(ctx, "acme", "app", "backups/one", true)
	require.NoError(t, err)
	require.Equal(t, "raw-bytes", string(payload.Body))
	require.Equal(t, "application/octet-stream", payload.ContentType)

	entries, err := c.ListDir(ctx, "acme", "app", "backups/one")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, entity.EntryTypeFile, entries[0].Type)
	require.NotNil(t, entries[0].DownloadURL)

	// raw and json are cached under different keys
	require.Equal(t, int32(2), u.calls.Load())

	_, err = c.Contents(ctx, "", "app", "x", false)
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	for _, path := range []string{"../../../user", "a/./b", "..", "a/.."} {
		_, err = c.Contents(ctx, "acme", "app", path, false)
		require.ErrorIs(t, err, common.ErrInvalidArgument, path)
	}

	_, err = c.Contents(ctx, "..", "app", "x", false)
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = c.Contents(ctx, "acme", "app", "broken", false)
	require.Error(t, err)
	require.True(t, common.ParseError.Has(err))
}

func TestUpstreamStatusIsPropagated(t *testing.T) {
	u := newUpstream(t)
	c := newTestClient(t, u, time.Hour, "")

	_, err := c.Contents(context.Background(), "acme", "app", "missing", false)
	require.ErrorIs(t, err, common.ErrUpstreamUnavailable)
	require.Equal(t, http.StatusNotFound, common.UpstreamStatus(err))
}

func TestNetworkFailure(t *testing.T) {
	u := newUpstream(t)
	c := newTestClient(t, u, time.Hour, "")
	u.srv.Close()

	_, err := c.Releases(context.Background(), "acme", "app")
	require.ErrorIs(t, err, common.ErrUpstreamUnavailable)
	require.Equal(t, 0, common.UpstreamStatus(err))
}

func TestTree(t *testing.T) {
	u := newUpstream(t)
	c := newTestClient(t, u, time.Hour, "")

	tree, err := c.Tree(context.Background(), "acme", "app", "main")
	require.NoError(t, err)
	require.Equal(t, []entity.TreeEntry{
		{Path: "direct", Type: entity.TreeTypeTree},
		{Path: "direct/msg1/manifest.json", Type: entity.TreeTypeBlob},
	}, tree)
}

func TestExists(t *testing.T) {
	u := newUpstream(t)
	c := newTestClient(t, u, time.Hour, "")
	ctx := context.Background()

	ok, err := c.Exists(ctx, c.RawURL("acme", "flags", "main", "direct/msg1/image.png"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.Exists(ctx, c.RawURL("acme", "flags", "main", "direct/msg1/image.jpg"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStreamRejectsForeignHosts(t *testing.T) {
	u := newUpstream(t)
	c := newTestClient(t, u, time.Hour, "")

	_, err := c.Stream(context.Background(), "https://example.com/app.apk")
	require.ErrorIs(t, err, common.ErrHostNotAllowed)

	_, err = c.Stream(context.Background(), "ftp://github.com/app.apk")
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	resp, err := c.Stream(context.Background(), u.srv.URL+"/repos/acme/app/releases")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJoinURL(t *testing.T) {
	require.Equal(t, "https://api.github.com/repos/a/b/contents/dir/my%20file.json",
		joinURL("https://api.github.com/", "repos", "a", "b", "contents", "/dir/my file.json"))
}

func TestDotSegmentsNeverReachUpstream(t *testing.T) {
	u := newUpstream(t)
	c := newTestClient(t, u, time.Hour, "secret")

	_, err := c.Contents(context.Background(), "acme", "app", "../../../user", false)
	require.ErrorIs(t, err, common.ErrInvalidArgument)
	require.Nil(t, u.auth.Load())
	require.Equal(t, int32(0), u.calls.Load())
}

func TestOversizedBodyIsRejected(t *testing.T) {
	u := newUpstream(t)
	c := newTestClient(t, u, time.Hour, "")
	ctx := context.Background()

	for range 2 {
		_, err := c.Contents(ctx, "acme", "app", "big", true)
		require.ErrorIs(t, err, common.ErrBodyTooLarge)
	}

	// nothing was cached, both calls went upstream
	require.Equal(t, int32(2), u.calls.Load())

	payload, err := c.Contents(ctx, "acme", "app", "fits", true)
	require.NoError(t, err)
	require.Len(t, payload.Body, testMaxBody)
}

func TestStreamOutlivesRequestTimeout(t *testing.T) {
	u := newUpstream(t)
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	c := newTestClientWith(t, u, time.Hour, "", 200*time.Millisecond, log)

	resp, err := c.Stream(context.Background(), u.srv.URL+"/slow/app.apk")
	require.NoError(t, err)
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	require.NoError(t, err)
	require.Equal(t, int64(slowChunks*slowChunkSize), n)
}

func TestStreamHonorsContext(t *testing.T) {
	u := newUpstream(t)
	c := newTestClient(t, u, time.Hour, "")

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	resp, err := c.Stream(ctx, u.srv.URL+"/slow/app.apk")
	require.NoError(t, err)
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	require.Error(t, err)
	require.Less(t, n, int64(slowChunks*slowChunkSize))
}

func TestTruncatedTreeIsLogged(t *testing.T) {
	u := newUpstream(t)

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{}))
	c := newTestClientWith(t, u, time.Hour, "", 5*time.Second, log)

	tree, err := c.Tree(context.Background(), "acme", "app", "huge")
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Contains(t, buf.String(), "Tree is truncated")

	buf.Reset()
	_, err = c.Tree(context.Background(), "acme", "app", "main")
	require.NoError(t, err)
	require.NotContains(t, buf.String(), "truncated")
}
