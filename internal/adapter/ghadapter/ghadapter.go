package ghadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jgivc/ghrelay/internal/common"
	"github.com/jgivc/ghrelay/internal/config"
	"github.com/jgivc/ghrelay/internal/entity"
	"github.com/jgivc/ghrelay/internal/util"
)

const (
	AcceptJSON = "application/vnd.github.v3+json"
	AcceptRaw  = "application/vnd.github.v3.raw"
	AcceptAny  = "*/*"

	contentTypeJSON = "application/json"
	contentTypeText = "text/plain"

	cachePrefix = "gh"
	maxBodySize = 32 << 20
)

var (
	// Hosts a download may be streamed from, besides the configured api and raw hosts.
	streamHosts = map[string]struct{}{
		"github.com":                           {},
		"objects.githubusercontent.com":        {},
		"release-assets.githubusercontent.com": {},
		"raw.githubusercontent.com":            {},
	}
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Client struct {
	cfg       *config.GitHubConfig
	cl        *http.Client
	stream    *http.Client
	maxBody   int64
	cache     Cache
	ttl       time.Duration
	authHosts map[string]struct{}
	log       *slog.Logger
}

func NewClient(cfg *config.GitHubConfig, cache Cache, ttl time.Duration, log *slog.Logger) (*Client, error) {
	authHosts := make(map[string]struct{})
	for _, raw := range []string{cfg.APIURL, cfg.RawURL} {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("cannot parse github url %s: %w", raw, err)
		}

		authHosts[u.Host] = struct{}{}
	}

	// Downloads may run far longer than cfg.Timeout, only the wait for headers is bounded.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	return &Client{
		cfg:       cfg,
		cl:        &http.Client{Timeout: cfg.Timeout},
		stream:    &http.Client{Transport: transport},
		maxBody:   maxBodySize,
		cache:     cache,
		ttl:       ttl,
		authHosts: authHosts,
		log:       log.With(slog.String("item", "GitHubClient")),
	}, nil
}

// Contents relays repos/{owner}/{repo}/contents/{path}. With raw the file bytes are returned
// as GitHub serves them, otherwise the JSON listing.
func (c *Client) Contents(ctx context.Context, owner, repo, path string, raw bool) (*entity.Payload, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repository are required: %w", common.ErrInvalidArgument)
	}

	if !validPath(owner, repo, path) {
		return nil, fmt.Errorf("bad contents path %s/%s/%s: %w", owner, repo, path, common.ErrInvalidArgument)
	}

	accept := AcceptJSON
	if raw {
		accept = AcceptRaw
	}

	payload, err := c.get(ctx, c.apiURL("repos", owner, repo, "contents", path), accept)
	if err != nil {
		return nil, err
	}

	if raw {
		if payload.ContentType == "" {
			payload.ContentType = contentTypeText
		}

		return payload, nil
	}

	if !json.Valid(payload.Body) {
		return nil, common.ParseError.New("contents of %s/%s/%s is not json", owner, repo, path)
	}
	payload.ContentType = contentTypeJSON

	return payload, nil
}

func (c *Client) ListDir(ctx context.Context, owner, repo, path string) ([]entity.RepoEntry, error) {
	payload, err := c.Contents(ctx, owner, repo, path, false)
	if err != nil {
		return nil, err
	}

	var entries []entity.RepoEntry
	if err := json.Unmarshal(payload.Body, &entries); err != nil {
		return nil, common.ParseError.Wrap(fmt.Errorf("cannot decode listing of %s/%s/%s: %w", owner, repo, path, err))
	}

	return entries, nil
}

func (c *Client) ReleasesPayload(ctx context.Context, owner, repo string) (*entity.Payload, error) {
	payload, err := c.get(ctx, c.apiURL("repos", owner, repo, "releases"), AcceptJSON)
	if err != nil {
		return nil, err
	}

	if !json.Valid(payload.Body) {
		return nil, common.ParseError.New("releases of %s/%s are not json", owner, repo)
	}
	payload.ContentType = contentTypeJSON

	return payload, nil
}

func (c *Client) Releases(ctx context.Context, owner, repo string) ([]entity.Release, error) {
	payload, err := c.ReleasesPayload(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	var releases []entity.Release
	if err := json.Unmarshal(payload.Body, &releases); err != nil {
		return nil, common.ParseError.Wrap(fmt.Errorf("cannot decode releases of %s/%s: %w", owner, repo, err))
	}

	return releases, nil
}

// Tree returns the recursive git tree of ref.
func (c *Client) Tree(ctx context.Context, owner, repo, ref string) ([]entity.TreeEntry, error) {
	payload, err := c.get(ctx, c.apiURL("repos", owner, repo, "git", "trees", ref)+"?recursive=1", AcceptJSON)
	if err != nil {
		return nil, err
	}

	var tree struct {
		Tree      []entity.TreeEntry `json:"tree"`
		Truncated bool               `json:"truncated"`
	}
	if err := json.Unmarshal(payload.Body, &tree); err != nil {
		return nil, common.ParseError.Wrap(fmt.Errorf("cannot decode tree of %s/%s@%s: %w", owner, repo, ref, err))
	}

	if tree.Truncated {
		c.log.Warn("Tree is truncated, some entries are missing", slog.String("owner", owner),
			slog.String("repo", repo), slog.String("ref", ref), slog.Int("entries", len(tree.Tree)))
	}

	return tree.Tree, nil
}

// RawURL builds a raw CDN url for path in owner/repo at ref.
func (c *Client) RawURL(owner, repo, ref, path string) string {
	return joinURL(c.cfg.RawURL, owner, repo, ref, path)
}

func (c *Client) Raw(ctx context.Context, rawURL string) ([]byte, error) {
	payload, err := c.get(ctx, rawURL, AcceptAny)
	if err != nil {
		return nil, err
	}

	return payload.Body, nil
}

// Exists probes rawURL with HEAD. Only transport failures are errors.
func (c *Client) Exists(ctx context.Context, rawURL string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodHead, rawURL, AcceptAny)
	if err != nil {
		return false, err
	}

	resp, err := c.cl.Do(req)
	if err != nil {
		return false, &common.UpstreamError{URL: rawURL, Err: err}
	}
	resp.Body.Close()

	return isSuccess(resp.StatusCode), nil
}

// Stream opens rawURL for a pass-through download. The caller must close the body.
func (c *Client) Stream(ctx context.Context, rawURL string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, fmt.Errorf("cannot parse download url %s: %w", rawURL, common.ErrInvalidArgument)
	}

	if !c.streamAllowed(u.Host) {
		return nil, fmt.Errorf("cannot download from %s: %w", u.Host, common.ErrHostNotAllowed)
	}

	req, err := c.newRequest(ctx, http.MethodGet, rawURL, AcceptAny)
	if err != nil {
		return nil, err
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, &common.UpstreamError{URL: rawURL, Err: err}
	}

	if !isSuccess(resp.StatusCode) {
		resp.Body.Close()
		c.log.Error("Cannot stream file", slog.String("url", rawURL), slog.Int("status", resp.StatusCode))

		return nil, &common.UpstreamError{Status: resp.StatusCode, URL: rawURL}
	}

	return resp, nil
}

func (c *Client) get(ctx context.Context, rawURL, accept string) (*entity.Payload, error) {
	key := util.CacheKey(cachePrefix, accept, rawURL)
	log := c.log.With(slog.String("url", rawURL))

	if c.ttl > 0 {
		payload, err := c.fromCache(ctx, key)
		if err == nil {
			log.Debug("Cache hit")

			return payload, nil
		}

		if !errors.Is(err, common.ErrCacheMiss) {
			log.Error("Cannot read cache", slog.Any("error", err))
		}
	}

	req, err := c.newRequest(ctx, http.MethodGet, rawURL, accept)
	if err != nil {
		return nil, err
	}

	resp, err := c.cl.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Debug("Request canceled", slog.Any("error", err))
		} else {
			log.Error("Cannot reach upstream", slog.Any("error", err))
		}

		return nil, &common.UpstreamError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		log.Error("Upstream request failed", slog.Int("status", resp.StatusCode))

		return nil, &common.UpstreamError{Status: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &common.UpstreamError{URL: rawURL, Err: err}
	}

	if int64(len(body)) > c.maxBody {
		log.Error("Upstream body is too large", slog.Int64("limit", c.maxBody))

		return nil, fmt.Errorf("body of %s exceeds %d bytes: %w", rawURL, c.maxBody, common.ErrBodyTooLarge)
	}

	payload := &entity.Payload{
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}

	if c.ttl > 0 {
		if err := c.toCache(ctx, key, payload); err != nil {
			log.Error("Cannot write cache", slog.Any("error", err))
		}
	}

	return payload, nil
}

func (c *Client) fromCache(ctx context.Context, key string) (*entity.Payload, error) {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var payload entity.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("cannot decode cache entry %s: %w", key, err)
	}

	return &payload, nil
}

func (c *Client) toCache(ctx context.Context, key string, payload *entity.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cannot encode cache entry %s: %w", key, err)
	}

	return c.cache.Set(ctx, key, data, c.ttl)
}

func (c *Client) newRequest(ctx context.Context, method, rawURL, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot create request for %s: %w", rawURL, err)
	}

	req.Header.Set("Accept", accept)
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	if c.cfg.Token != "" {
		if _, ok := c.authHosts[req.URL.Host]; ok {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}
	}

	return req, nil
}

func (c *Client) streamAllowed(host string) bool {
	if _, ok := c.authHosts[host]; ok {
		return true
	}

	_, ok := streamHosts[host]

	return ok
}

func (c *Client) apiURL(parts ...string) string {
	return joinURL(c.cfg.APIURL, parts...)
}

func joinURL(base string, parts ...string) string {
	segments := []string{strings.TrimRight(base, "/")}
	for _, part := range parts {
		for _, seg := range strings.Split(part, "/") {
			if seg == "" {
				continue
			}

			segments = append(segments, url.PathEscape(seg))
		}
	}

	return strings.Join(segments, "/")
}

// validPath rejects dot segments, which upstream would resolve outside of the contents api.
func validPath(parts ...string) bool {
	for _, part := range parts {
		for _, seg := range strings.Split(part, "/") {
			if seg == "." || seg == ".." {
				return false
			}
		}
	}

	return true
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
