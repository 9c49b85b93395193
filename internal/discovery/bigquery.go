package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/model"
)

// creativeRow is one (creative, region) row of the Ads Transparency
// Center creative_stats table.
type creativeRow struct {
	AdvertiserID   string                 `bigquery:"advertiser_id"`
	AdvertiserName string                 `bigquery:"advertiser_name"`
	CreativeID     string                 `bigquery:"creative_id"`
	Format         string                 `bigquery:"ad_format_type"`
	Topic          bigquery.NullString    `bigquery:"topic"`
	FirstShown     bigquery.NullTimestamp `bigquery:"first_shown"`
	LastShown      bigquery.NullTimestamp `bigquery:"last_shown"`
}

// RowIterator yields query rows until iterator.Done.
type RowIterator interface {
	Next(dst any) error
}

// QueryRunner executes a parameterized query. It exists so tests can
// substitute canned rows for a live BigQuery client.
type QueryRunner interface {
	Run(ctx context.Context, sql string, params []bigquery.QueryParameter) (RowIterator, error)
}

// bqRunner runs queries on a real BigQuery client.
type bqRunner struct {
	client   *bigquery.Client
	location string
}

func (r *bqRunner) Run(ctx context.Context, sql string, params []bigquery.QueryParameter) (RowIterator, error) {
	q := r.client.Query(sql)
	q.Parameters = params
	if r.location != "" {
		q.Location = r.location
	}
	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	return it, nil
}

var tableName = regexp.MustCompile(`^[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+){1,2}$`)

const creativeStatsSQL = `
SELECT
  cs.advertiser_id,
  cs.advertiser_disclosed_name AS advertiser_name,
  cs.creative_id,
  cs.ad_format_type,
  cs.topic,
  TIMESTAMP(rs.first_shown) AS first_shown,
  TIMESTAMP(rs.last_shown) AS last_shown
FROM ` + "`%s`" + ` AS cs, UNNEST(cs.region_stats) AS rs
WHERE rs.region_code = @region
  AND rs.last_shown >= DATE(@since)
  AND LOWER(cs.advertiser_disclosed_name) LIKE @pattern
ORDER BY rs.last_shown DESC
LIMIT @max_rows`

// BigQuerySource reads the public Google Ads Transparency Center dataset.
// The dataset carries no landing domain, so prospects from it rely on a
// Resolver.
type BigQuerySource struct {
	runner  QueryRunner
	table   string
	maxRows int
	closeFn func() error
}

// NewBigQuerySource connects to BigQuery with application default credentials.
func NewBigQuerySource(ctx context.Context, cfg config.BigQueryConfig) (*BigQuerySource, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: bigquery client")
	}
	src, err := NewBigQuerySourceWithRunner(&bqRunner{client: client, location: cfg.Location}, cfg)
	if err != nil {
		client.Close() //nolint:errcheck
		return nil, err
	}
	src.closeFn = client.Close
	return src, nil
}

// NewBigQuerySourceWithRunner builds a source on an arbitrary runner.
func NewBigQuerySourceWithRunner(r QueryRunner, cfg config.BigQueryConfig) (*BigQuerySource, error) {
	if !tableName.MatchString(cfg.Table) {
		return nil, &config.ValidationError{
			Source:   "bigquery",
			Problems: []string{fmt.Sprintf("table %q is not a dataset.table or project.dataset.table name", cfg.Table)},
		}
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 500
	}
	return &BigQuerySource{runner: r, table: cfg.Table, maxRows: maxRows}, nil
}

func (s *BigQuerySource) Name() model.Source { return model.SourceBigQueryAds }

// Close releases the BigQuery client, if any.
func (s *BigQuerySource) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

func (s *BigQuerySource) Fetch(ctx context.Context, query string, req Request) ([]Ad, error) {
	since := req.Since
	if since.IsZero() {
		since = time.Now().UTC().AddDate(0, 0, -90)
	}
	params := []bigquery.QueryParameter{
		{Name: "region", Value: strings.ToUpper(req.Region)},
		{Name: "since", Value: since.Format("2006-01-02")},
		{Name: "pattern", Value: likePattern(query)},
		{Name: "max_rows", Value: s.maxRows},
	}

	it, err := s.runner.Run(ctx, fmt.Sprintf(creativeStatsSQL, s.table), params)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: bigquery %q", query)
	}

	var ads []Ad
	for {
		var row creativeRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return ads, eris.Wrapf(err, "discovery: bigquery read %q", query)
		}
		ad := Ad{
			ID:         row.CreativeID,
			Advertiser: row.AdvertiserName,
			Format:     strings.ToLower(row.Format),
			Platforms:  []string{ChannelGoogle},
			Channel:    googleChannel(row.Format, nil),
		}
		if row.Topic.Valid {
			ad.Text = row.Topic.StringVal
		}
		if row.FirstShown.Valid {
			ad.FirstSeen = row.FirstShown.Timestamp.UTC()
		}
		if row.LastShown.Valid {
			ad.LastSeen = row.LastShown.Timestamp.UTC()
		}
		if ad.Channel == ChannelYouTube {
			ad.Platforms = []string{ChannelYouTube}
		}
		ads = append(ads, ad)
	}

	zap.L().Debug("bigquery rows read", zap.String("query", query), zap.Int("rows", len(ads)))
	return ads, nil
}

// likePattern turns a free-text query into a LIKE pattern over the
// lowercased advertiser name. Wildcards in the query are escaped.
func likePattern(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "%"
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
