// Package searchapi provides a client for SearchAPI.io: the Google Ads
// Transparency Center engine for advertiser discovery and the Google web
// engine for resolving company domains.
package searchapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/adlead-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://www.searchapi.io/api/v1"
	serviceName    = "searchapi"

	engineAdsTransparency = "google_ads_transparency_center"
	engineGoogle          = "google"
)

// Client defines the SearchAPI operations used by discovery.
type Client interface {
	// Creatives fetches one page of ad creatives.
	Creatives(ctx context.Context, q AdsQuery) (*AdsResponse, error)
	// AllCreatives follows next_page_token until exhausted or q.MaxPages is reached.
	AllCreatives(ctx context.Context, q AdsQuery) ([]Creative, error)
	// Search runs a Google web search.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// AdsQuery selects creatives from the transparency engine. Set either Query
// (free text over advertiser names) or Domain.
type AdsQuery struct {
	Query     string
	Domain    string
	Region    string
	Platform  string
	Format    string
	PageToken string
	// TimePeriod is one of today, yesterday, last_7_days, last_30_days or
	// a "YYYY-MM-DD..YYYY-MM-DD" range.
	TimePeriod string
	MaxPages   int
}

// AdsResponse is one page of transparency results.
type AdsResponse struct {
	SearchInformation struct {
		TotalResults int `json:"total_results"`
	} `json:"search_information"`
	Creatives  []Creative `json:"ad_creatives"`
	Pagination struct {
		NextPageToken string `json:"next_page_token"`
	} `json:"pagination"`
	Error string `json:"error"`
}

// Creative is a single ad as reported by the transparency center.
type Creative struct {
	ID         string     `json:"id"`
	Advertiser Advertiser `json:"advertiser"`
	Target     string     `json:"target_domain"`
	Format     string     `json:"format"`
	FirstShown string     `json:"first_shown_datetime"`
	LastShown  string     `json:"last_shown_datetime"`
	DaysShown  int        `json:"total_days_shown"`
	Platforms  []string   `json:"platforms"`
	Link       string     `json:"details_link"`
}

var shownLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "Jan 2, 2006"}

// FirstSeen parses FirstShown, returning the zero time when absent or unparsable.
func (c Creative) FirstSeen() time.Time { return parseShown(c.FirstShown) }

// LastSeen parses LastShown, returning the zero time when absent or unparsable.
func (c Creative) LastSeen() time.Time { return parseShown(c.LastShown) }

func parseShown(s string) time.Time {
	for _, layout := range shownLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Advertiser identifies who paid for a creative.
type Advertiser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchResponse is a Google web search result page.
type SearchResponse struct {
	Organic []OrganicResult `json:"organic_results"`
	Error   string          `json:"error"`
}

// OrganicResult is one organic search hit.
type OrganicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Domain   string `json:"domain"`
	Snippet  string `json:"snippet"`
}

// SearchOption configures a web search.
type SearchOption func(url.Values)

// WithCountry sets the gl parameter.
func WithCountry(code string) SearchOption {
	return func(v url.Values) { v.Set("gl", code) }
}

// WithNum limits the number of organic results.
func WithNum(n int) SearchOption {
	return func(v url.Values) { v.Set("num", strconv.Itoa(n)) }
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) { c.policy = p }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	policy  resilience.Policy
}

// NewClient creates a SearchAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(2, 1),
		policy:  resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Creatives(ctx context.Context, q AdsQuery) (*AdsResponse, error) {
	if q.Query == "" && q.Domain == "" {
		return nil, eris.New("searchapi: query or domain is required")
	}

	params := url.Values{}
	params.Set("engine", engineAdsTransparency)
	setIf(params, "q", q.Query)
	setIf(params, "domain", q.Domain)
	setIf(params, "region", q.Region)
	setIf(params, "platform", q.Platform)
	setIf(params, "ad_format", q.Format)
	setIf(params, "time_period", q.TimePeriod)
	setIf(params, "next_page_token", q.PageToken)

	var resp AdsResponse
	if err := c.get(ctx, "creatives", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, eris.Errorf("searchapi: %s", resp.Error)
	}
	return &resp, nil
}

func (c *httpClient) AllCreatives(ctx context.Context, q AdsQuery) ([]Creative, error) {
	var all []Creative
	for page := 1; ; page++ {
		resp, err := c.Creatives(ctx, q)
		if err != nil {
			return all, eris.Wrapf(err, "searchapi: page %d", page)
		}
		all = append(all, resp.Creatives...)

		next := resp.Pagination.NextPageToken
		if next == "" || len(resp.Creatives) == 0 || (q.MaxPages > 0 && page >= q.MaxPages) {
			return all, nil
		}
		q.PageToken = next
	}
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("engine", engineGoogle)
	params.Set("q", query)
	for _, opt := range opts {
		opt(params)
	}

	var resp SearchResponse
	if err := c.get(ctx, "search", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, eris.Errorf("searchapi: %s", resp.Error)
	}
	return &resp, nil
}

// get performs a rate-limited, retried GET against /search and decodes
// the JSON body into out.
func (c *httpClient) get(ctx context.Context, op string, params url.Values, out any) error {
	reqURL := c.baseURL + "/search?" + params.Encode()

	body, err := resilience.DoVal(ctx, c.policy.Logged(serviceName, op), func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "searchapi: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "searchapi: read body"))
		}
		if resp.StatusCode != http.StatusOK {
			return nil, resilience.NewStatusError(serviceName, resp, data)
		}
		return data, nil
	})
	if err != nil {
		return eris.Wrapf(err, "searchapi: %s", op)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "searchapi: decode %s", op)
	}
	return nil
}

func setIf(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}
