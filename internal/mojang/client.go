package mojang

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andcoolsystems/eldraxis/pkg/logger"
	"github.com/andcoolsystems/eldraxis/pkg/metrics"
)

const (
	DefaultProfilesURL     = "https://api.mojang.com/users/profiles/minecraft/"
	DefaultSessionsURL     = "https://sessionserver.mojang.com/session/minecraft/profile/"
	DefaultTimeout         = 5 * time.Second
	DefaultUserAgent       = "eldraxis/1.0"
	DefaultMaxTextureBytes = 1 << 20

	endpointHandle  = "handle"
	endpointProfile = "profile"
	endpointTexture = "texture"

	maxJSONBytes = 64 << 10
)

// Config configures the upstream client.
type Config struct {
	ProfilesURL     string
	SessionsURL     string
	Timeout         time.Duration
	UserAgent       string
	MaxTextureBytes int64
	// HTTPClient overrides the transport; its own Timeout is left untouched.
	HTTPClient *http.Client
}

// Client talks to the identity service (handle and profile lookups) and
// downloads texture files. It holds no state besides its configuration and
// is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// NewClient validates cfg, applies defaults and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ProfilesURL == "" {
		cfg.ProfilesURL = DefaultProfilesURL
	}
	if cfg.SessionsURL == "" {
		cfg.SessionsURL = DefaultSessionsURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxTextureBytes <= 0 {
		cfg.MaxTextureBytes = DefaultMaxTextureBytes
	}
	for _, raw := range []string{cfg.ProfilesURL, cfg.SessionsURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("mojang: invalid base url %q: %w", raw, err)
		}
	}
	cfg.ProfilesURL = withTrailingSlash(cfg.ProfilesURL)
	cfg.SessionsURL = withTrailingSlash(cfg.SessionsURL)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		cfg:  cfg,
		http: httpClient,
		log:  logger.WithModule("mojang"),
	}, nil
}

// Resolve maps an identifier (account id, dashed or not, or a display name)
// to the account's current profile. It performs no caching.
func (c *Client) Resolve(ctx context.Context, identifier string) (*Profile, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrNotFound
	}

	id := NormalizeID(identifier)
	if !IsCanonicalID(id) {
		var err error
		if id, err = c.lookupHandle(ctx, identifier); err != nil {
			return nil, err
		}
	}
	return c.lookupProfile(ctx, id)
}

// Download fetches a texture file. Bodies larger than MaxTextureBytes are rejected.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty texture url", ErrDecode)
	}

	resp, err := c.get(ctx, endpointTexture, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.observe(endpointTexture, "status_"+statusClass(resp.StatusCode))
		return nil, fmt.Errorf("%w: texture %s: status %d", ErrUpstream, rawURL, resp.StatusCode)
	}

	body, err := readLimited(resp.Body, c.cfg.MaxTextureBytes)
	if err != nil {
		c.observe(endpointTexture, "error")
		return nil, fmt.Errorf("%w: texture %s: %v", ErrUpstream, rawURL, err)
	}
	c.observe(endpointTexture, "ok")
	return body, nil
}

func (c *Client) lookupHandle(ctx context.Context, handle string) (string, error) {
	resp, err := c.get(ctx, endpointHandle, c.cfg.ProfilesURL+url.PathEscape(handle))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		c.observe(endpointHandle, "not_found")
		return "", fmt.Errorf("%w: handle %q", ErrNotFound, handle)
	default:
		c.observe(endpointHandle, "status_"+statusClass(resp.StatusCode))
		return "", fmt.Errorf("%w: handle lookup: status %d", ErrUpstream, resp.StatusCode)
	}

	body, err := readLimited(resp.Body, maxJSONBytes)
	if err != nil {
		c.observe(endpointHandle, "error")
		return "", fmt.Errorf("%w: handle lookup: %v", ErrUpstream, err)
	}

	var out handleResponse
	if err := json.Unmarshal(body, &out); err != nil {
		c.observe(endpointHandle, "decode_error")
		return "", fmt.Errorf("%w: handle body: %v", ErrDecode, err)
	}
	if !IsCanonicalID(out.ID) {
		c.observe(endpointHandle, "decode_error")
		return "", fmt.Errorf("%w: handle lookup returned id %q", ErrDecode, out.ID)
	}
	c.observe(endpointHandle, "ok")
	return NormalizeID(out.ID), nil
}

func (c *Client) lookupProfile(ctx context.Context, id string) (*Profile, error) {
	resp, err := c.get(ctx, endpointProfile, c.cfg.SessionsURL+id)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		// the session server answers 204 for ids that do not (or no longer) exist
		c.observe(endpointProfile, "not_found")
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	default:
		c.observe(endpointProfile, "status_"+statusClass(resp.StatusCode))
		return nil, fmt.Errorf("%w: profile lookup: status %d", ErrUpstream, resp.StatusCode)
	}

	body, err := readLimited(resp.Body, maxJSONBytes)
	if err != nil {
		c.observe(endpointProfile, "error")
		return nil, fmt.Errorf("%w: profile lookup: %v", ErrUpstream, err)
	}

	profile, err := decodeProfile(body)
	if err != nil {
		c.observe(endpointProfile, "decode_error")
		return nil, err
	}
	c.observe(endpointProfile, "ok")
	return profile, nil
}

// get issues a GET bounded by the configured timeout. Transport failures are
// reported as ErrUpstream; a cancelled caller context is returned as is.
func (c *Client) get(ctx context.Context, endpoint, rawURL string) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, image/png;q=0.9, */*;q=0.1")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		c.observe(endpoint, "error")
		c.log.Warn("upstream request failed",
			zap.String("endpoint", endpoint),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, endpoint, err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) observe(endpoint, result string) {
	metrics.UpstreamRequests.WithLabelValues(endpoint, result).Inc()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("body exceeds %d bytes", limit)
	}
	return body, nil
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

func withTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
