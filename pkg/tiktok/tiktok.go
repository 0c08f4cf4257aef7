// Package tiktok provides TikTok profile fetching.
package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/tokage/pkg/auth"
	"github.com/codeGROOVE-dev/tokage/pkg/httpcache"
)

// Sentinel errors for upstream failure modes callers need to distinguish.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrRateLimited     = errors.New("rate limited by tiktok")
)

// Profile holds the fields scraped from a TikTok profile page.
type Profile struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Bio         string `json:"bio"`
	Region      string `json:"region"`
	UserID      string `json:"user_id"`
	URL         string `json:"url"`
	Followers   int64  `json:"followers"`
	TotalLikes  int64  `json:"total_likes"`
	Verified    bool   `json:"verified"`
}

// Match returns true if the URL is a TikTok profile URL.
func Match(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	return strings.Contains(lower, "tiktok.com/@")
}

// Client handles TikTok requests.
type Client struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
	policy     httpcache.RetryPolicy
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cookies        map[string]string
	cache          httpcache.Cacher
	logger         *slog.Logger
	policy         httpcache.RetryPolicy
	browserCookies bool
}

// WithCookies sets explicit cookie values.
func WithCookies(cookies map[string]string) Option {
	return func(c *config) { c.cookies = cookies }
}

// WithBrowserCookies enables reading cookies from browser stores.
func WithBrowserCookies() Option {
	return func(c *config) { c.browserCookies = true }
}

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithRetryPolicy overrides the per-fetch retry policy.
func WithRetryPolicy(policy httpcache.RetryPolicy) Option {
	return func(c *config) { c.policy = policy }
}

// New creates a TikTok client.
// Cookies are optional and will be used if provided via: WithCookies > environment variables > browser.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &config{logger: slog.Default(), policy: httpcache.DefaultRetryPolicy}
	for _, opt := range opts {
		opt(cfg)
	}

	var sources []auth.Source
	if len(cfg.cookies) > 0 {
		sources = append(sources, auth.NewStaticSource(cfg.cookies))
	}
	sources = append(sources, auth.EnvSource{})
	if cfg.browserCookies {
		sources = append(sources, auth.NewBrowserSource(cfg.logger))
	}

	cookies, err := auth.ChainSources(ctx, sources...)
	if err != nil {
		cfg.logger.Debug("cookie retrieval failed, continuing without auth", "error", err)
	}

	var jar http.CookieJar
	if len(cookies) > 0 {
		jar, err = auth.NewCookieJar(cookies)
		if err != nil {
			return nil, fmt.Errorf("cookie jar creation failed: %w", err)
		}
		cfg.logger.InfoContext(ctx, "tiktok client created with cookies", "cookie_count", len(cookies))
	} else {
		cfg.logger.InfoContext(ctx, "tiktok client created without cookies")
	}

	return &Client{
		httpClient: &http.Client{Jar: jar, Timeout: 10 * time.Second},
		cache:      cfg.cache,
		logger:     cfg.logger,
		policy:     cfg.policy,
	}, nil
}

// Fetch retrieves a TikTok profile by username or profile URL.
func (c *Client) Fetch(ctx context.Context, usernameOrURL string) (*Profile, error) {
	username := extractUsername(usernameOrURL)
	if username == "" {
		return nil, fmt.Errorf("could not extract username from: %s", usernameOrURL)
	}

	profileURL := "https://www.tiktok.com/@" + username
	c.logger.InfoContext(ctx, "fetching tiktok profile", "url", profileURL, "username", username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}

	setHeaders(req)

	body, err := httpcache.FetchURLWithPolicy(ctx, c.cache, c.httpClient, req, c.logger, hasRehydrationData, c.policy)
	if err != nil {
		var httpErr *httpcache.HTTPError
		if errors.As(err, &httpErr) {
			switch httpErr.StatusCode {
			case http.StatusNotFound:
				return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, username)
			case http.StatusTooManyRequests:
				return nil, fmt.Errorf("%w: %s", ErrRateLimited, username)
			}
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return c.parseProfile(ctx, body, profileURL)
}

func setHeaders(req *http.Request) {
	// User-Agent matching Chrome 120 on macOS
	userAgent := "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
}

func (c *Client) parseProfile(ctx context.Context, body []byte, profileURL string) (*Profile, error) {
	content := string(body)

	// Extract JSON data from __UNIVERSAL_DATA_FOR_REHYDRATION__ script tag
	jsonData := extractUniversalData(content)
	if jsonData == "" {
		c.logger.Debug("failed to find __UNIVERSAL_DATA_FOR_REHYDRATION__ in page", "url", profileURL)
		return nil, fmt.Errorf("%w: no rehydration data in page", ErrProfileNotFound)
	}

	c.logger.Debug("found __UNIVERSAL_DATA_FOR_REHYDRATION__", "length", len(jsonData))

	var data map[string]any
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return nil, fmt.Errorf("failed to parse __UNIVERSAL_DATA_FOR_REHYDRATION__: %w", err)
	}

	// Navigate: data["__DEFAULT_SCOPE__"]["webapp.user-detail"]["userInfo"]["user"]
	defaultScope, ok := data["__DEFAULT_SCOPE__"].(map[string]any)
	if !ok {
		return nil, errors.New("no __DEFAULT_SCOPE__ in data")
	}

	userDetail, ok := defaultScope["webapp.user-detail"].(map[string]any)
	if !ok {
		return nil, errors.New("no webapp.user-detail in __DEFAULT_SCOPE__")
	}

	userInfo, ok := userDetail["userInfo"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: no userInfo in webapp.user-detail", ErrProfileNotFound)
	}

	user, ok := userInfo["user"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: no user data in page", ErrProfileNotFound)
	}

	p := &Profile{URL: profileURL}

	if username, ok := user["uniqueId"].(string); ok {
		p.Username = username
	}
	if name, ok := user["nickname"].(string); ok {
		p.DisplayName = name
	}
	if id, ok := user["id"].(string); ok {
		p.UserID = id
	}
	if avatarURL, ok := user["avatarLarger"].(string); ok {
		p.AvatarURL = avatarURL
	} else if avatarURL, ok := user["avatarMedium"].(string); ok {
		p.AvatarURL = avatarURL
	}
	if signature, ok := user["signature"].(string); ok {
		p.Bio = signature
	}
	if region, ok := user["region"].(string); ok {
		p.Region = region
	}
	if verified, ok := user["verified"].(bool); ok {
		p.Verified = verified
	}

	if stats, ok := userInfo["stats"].(map[string]any); ok {
		p.Followers = parseCount(stats["followerCount"])
		p.TotalLikes = parseCount(stats["heartCount"])
		if p.TotalLikes == 0 {
			p.TotalLikes = parseCount(stats["heart"])
		}
	}

	c.logger.InfoContext(ctx, "tiktok profile parsed",
		"username", p.Username,
		"user_id", p.UserID,
		"followers", p.Followers,
		"verified", p.Verified)

	return p, nil
}

// hasRehydrationData reports whether the page carries the full profile
// document. Bot-wall and interstitial pages lack the rehydration payload
// and must not be cached for the full TTL.
func hasRehydrationData(body []byte) bool {
	return extractUniversalData(string(body)) != ""
}

// extractUniversalData extracts the JSON content from the __UNIVERSAL_DATA_FOR_REHYDRATION__ script tag.
func extractUniversalData(content string) string {
	// Match: <script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">{...}</script>
	re := regexp.MustCompile(`<script[^>]*id="__UNIVERSAL_DATA_FOR_REHYDRATION__"[^>]*>([^<]+)</script>`)
	if matches := re.FindStringSubmatch(content); len(matches) > 1 {
		return matches[1]
	}
	return ""
}

// extractUsername extracts the username from a TikTok URL or @username string.
func extractUsername(s string) string {
	if strings.Contains(s, "/") {
		re := regexp.MustCompile(`tiktok\.com/@([^/?]+)`)
		if m := re.FindStringSubmatch(s); len(m) > 1 {
			return m[1]
		}
	}
	return strings.TrimPrefix(s, "@")
}
