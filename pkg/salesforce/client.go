// Package salesforce exports qualified leads as Salesforce Lead records.
package salesforce

import (
	"context"
	"os"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/adlead-cli/internal/config"
)

// maxBatchSize is the Collections API limit per request.
const maxBatchSize = 200

// Client is the subset of the Salesforce REST API the exporter uses.
type Client interface {
	Query(ctx context.Context, soql string, out any) error
	InsertCollection(ctx context.Context, sObject string, records []map[string]any) ([]CollectionResult, error)
	UpdateCollection(ctx context.Context, sObject string, records []map[string]any) ([]CollectionResult, error)
}

// CollectionResult is the outcome of one record in a collection call.
type CollectionResult struct {
	ID      string   `json:"id"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

// ClientOption configures the client.
type ClientOption func(*sfClient)

// WithRateLimit caps API calls per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *sfClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// sfClient wraps go-salesforce. The library takes no context, so ctx only
// bounds the rate limiter wait.
type sfClient struct {
	sf      *gosf.Salesforce
	limiter *rate.Limiter
}

// NewClient wraps an initialized go-salesforce instance.
func NewClient(sf *gosf.Salesforce, opts ...ClientOption) Client {
	c := &sfClient{sf: sf, limiter: rate.NewLimiter(rate.Inf, 0)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect authenticates with the JWT bearer flow using the configured
// connected app and private key.
func Connect(cfg config.SalesforceConfig, opts ...ClientOption) (Client, error) {
	pem, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "sf: read JWT private key")
	}
	sf, err := gosf.Init(gosf.Creds{
		Domain:         cfg.LoginURL,
		Username:       cfg.Username,
		ConsumerKey:    cfg.ClientID,
		ConsumerRSAPem: string(pem),
	})
	if err != nil {
		return nil, eris.Wrap(err, "sf: init")
	}
	return NewClient(sf, opts...), nil
}

func (c *sfClient) Query(ctx context.Context, soql string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "sf: rate limit")
	}
	return eris.Wrap(c.sf.Query(soql, out), "sf: query")
}

func (c *sfClient) InsertCollection(ctx context.Context, sObject string, records []map[string]any) ([]CollectionResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sf: rate limit")
	}
	res, err := c.sf.InsertCollection(sObject, records, maxBatchSize)
	if err != nil {
		return nil, eris.Wrapf(err, "sf: insert collection %s", sObject)
	}
	out := make([]CollectionResult, len(res.Results))
	for i, r := range res.Results {
		out[i] = CollectionResult{ID: r.Id, Success: r.Success}
		for _, e := range r.Errors {
			out[i].Errors = append(out[i].Errors, e.Message)
		}
	}
	return out, nil
}

func (c *sfClient) UpdateCollection(ctx context.Context, sObject string, records []map[string]any) ([]CollectionResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sf: rate limit")
	}
	res, err := c.sf.UpdateCollection(sObject, records, maxBatchSize)
	if err != nil {
		return nil, eris.Wrapf(err, "sf: update collection %s", sObject)
	}
	out := make([]CollectionResult, len(res.Results))
	for i, r := range res.Results {
		out[i] = CollectionResult{ID: r.Id, Success: r.Success}
		for _, e := range r.Errors {
			out[i].Errors = append(out[i].Errors, e.Message)
		}
	}
	return out, nil
}
