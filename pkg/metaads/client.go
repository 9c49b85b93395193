// Package metaads provides a client for the Meta Ad Library (Graph API ads_archive).
package metaads

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/adlead-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://graph.facebook.com/v21.0"
	serviceName    = "meta"
	defaultLimit   = 100
)

// DefaultFields are the ads_archive fields discovery needs.
var DefaultFields = []string{
	"id",
	"page_id",
	"page_name",
	"ad_creation_time",
	"ad_delivery_start_time",
	"ad_delivery_stop_time",
	"ad_creative_bodies",
	"ad_creative_link_captions",
	"ad_creative_link_titles",
	"ad_snapshot_url",
	"publisher_platforms",
	"impressions",
	"spend",
}

// Client defines the Ad Library operations used by discovery.
type Client interface {
	// Ads fetches one page from ads_archive.
	Ads(ctx context.Context, q Query) (*Page, error)
	// AllAds follows paging cursors until exhausted or q.MaxPages is reached.
	AllAds(ctx context.Context, q Query) ([]Ad, error)
}

// Query selects ads from the archive.
type Query struct {
	SearchTerms string
	PageIDs     []string
	Countries   []string
	// ActiveStatus is ACTIVE, INACTIVE or ALL. Empty means ACTIVE.
	ActiveStatus string
	// DeliveredSince filters on ad_delivery_date_min.
	DeliveredSince time.Time
	Limit          int
	After          string
	MaxPages       int
}

// Page is one ads_archive response.
type Page struct {
	Data   []Ad `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

// Ad is one archived ad.
type Ad struct {
	ID            string   `json:"id"`
	PageID        string   `json:"page_id"`
	PageName      string   `json:"page_name"`
	CreationTime  string   `json:"ad_creation_time"`
	DeliveryStart string   `json:"ad_delivery_start_time"`
	DeliveryStop  string   `json:"ad_delivery_stop_time"`
	Bodies        []string `json:"ad_creative_bodies"`
	LinkCaptions  []string `json:"ad_creative_link_captions"`
	LinkTitles    []string `json:"ad_creative_link_titles"`
	SnapshotURL   string   `json:"ad_snapshot_url"`
	Platforms     []string `json:"publisher_platforms"`
	Impressions   *Bounds  `json:"impressions"`
	Spend         *Bounds  `json:"spend"`
}

// Bounds is a reported range. Meta returns both bounds as strings, and
// omits the upper bound on the top bucket.
type Bounds struct {
	Lower string `json:"lower_bound"`
	Upper string `json:"upper_bound"`
}

// Mid returns the midpoint of the range, or the lower bound when the upper
// bound is missing. ok is false when nothing parses.
func (b *Bounds) Mid() (float64, bool) {
	if b == nil {
		return 0, false
	}
	lo, errLo := strconv.ParseFloat(b.Lower, 64)
	hi, errHi := strconv.ParseFloat(b.Upper, 64)
	switch {
	case errLo == nil && errHi == nil:
		return (lo + hi) / 2, true
	case errLo == nil:
		return lo, true
	case errHi == nil:
		return hi, true
	default:
		return 0, false
	}
}

// Started parses DeliveryStart, falling back to CreationTime.
func (a Ad) Started() time.Time {
	for _, s := range []string{a.DeliveryStart, a.CreationTime} {
		for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

// Domain returns the first link caption that looks like a host name.
// Meta puts the display URL of the landing page there.
func (a Ad) Domain() string {
	for _, c := range a.LinkCaptions {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" && !strings.Contains(c, " ") && strings.Contains(c, ".") {
			return c
		}
	}
	return ""
}

// Text joins the creative bodies and titles for classification.
func (a Ad) Text() string {
	parts := make([]string, 0, len(a.Bodies)+len(a.LinkTitles))
	parts = append(parts, a.LinkTitles...)
	parts = append(parts, a.Bodies...)
	return strings.Join(parts, " ")
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
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	policy  resilience.Policy
}

// NewClient creates an Ad Library client.
func NewClient(accessToken string, opts ...Option) Client {
	c := &httpClient{
		token:   accessToken,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(1, 1),
		policy:  resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// graphError is the error envelope returned by the Graph API.
type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Rate-limit codes the Graph API returns with HTTP 400.
func throttled(code int) bool {
	return code == 4 || code == 17 || code == 32 || code == 613
}

func (c *httpClient) Ads(ctx context.Context, q Query) (*Page, error) {
	if q.SearchTerms == "" && len(q.PageIDs) == 0 {
		return nil, eris.New("meta: search terms or page ids are required")
	}
	if len(q.Countries) == 0 {
		return nil, eris.New("meta: at least one country is required")
	}

	params := url.Values{}
	params.Set("access_token", c.token)
	params.Set("fields", strings.Join(DefaultFields, ","))
	params.Set("ad_type", "ALL")
	params.Set("ad_reached_countries", jsonList(q.Countries))
	if q.SearchTerms != "" {
		params.Set("search_terms", q.SearchTerms)
	}
	if len(q.PageIDs) > 0 {
		params.Set("search_page_ids", jsonList(q.PageIDs))
	}
	status := q.ActiveStatus
	if status == "" {
		status = "ACTIVE"
	}
	params.Set("ad_active_status", status)
	if !q.DeliveredSince.IsZero() {
		params.Set("ad_delivery_date_min", q.DeliveredSince.Format("2006-01-02"))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	params.Set("limit", strconv.Itoa(limit))
	if q.After != "" {
		params.Set("after", q.After)
	}

	reqURL := c.baseURL + "/ads_archive?" + params.Encode()
	body, err := resilience.DoVal(ctx, c.policy.Logged(serviceName, "ads_archive"), func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, reqURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "meta: ads_archive")
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, eris.Wrap(err, "meta: decode ads_archive")
	}
	return &page, nil
}

func (c *httpClient) AllAds(ctx context.Context, q Query) ([]Ad, error) {
	var all []Ad
	for n := 1; ; n++ {
		page, err := c.Ads(ctx, q)
		if err != nil {
			return all, eris.Wrapf(err, "meta: page %d", n)
		}
		all = append(all, page.Data...)

		after := page.Paging.Cursors.After
		if page.Paging.Next == "" || after == "" || len(page.Data) == 0 || (q.MaxPages > 0 && n >= q.MaxPages) {
			return all, nil
		}
		q.After = after
	}
}

func (c *httpClient) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "meta: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "meta: read body"))
	}
	if resp.StatusCode == http.StatusOK {
		return data, nil
	}

	statusErr := resilience.NewStatusError(serviceName, resp, data)
	var ge graphError
	if json.Unmarshal(data, &ge) == nil && ge.Error != nil {
		statusErr.Body = ge.Error.Message
		if throttled(ge.Error.Code) {
			return nil, resilience.NewTransientError(statusErr)
		}
	}
	return nil, statusErr
}

func jsonList(items []string) string {
	b, _ := json.Marshal(items)
	return string(b)
}
