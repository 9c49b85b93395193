package searchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adlead-cli/internal/resilience"
)

func testClient(url string) Client {
	return NewClient("test-key",
		WithBaseURL(url),
		WithRateLimit(0),
		WithRetryPolicy(resilience.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}),
	)
}

func TestCreatives_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "google_ads_transparency_center", q.Get("engine"))
		assert.Equal(t, "dentist toronto", q.Get("q"))
		assert.Equal(t, "CA", q.Get("region"))
		assert.Empty(t, q.Get("domain"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"search_information": {"total_results": 2},
			"ad_creatives": [
				{"id": "CR1", "advertiser": {"id": "AR1", "name": "Bloor West Dental"}, "target_domain": "bloorwestdental.ca",
				 "format": "text", "first_shown_datetime": "2026-05-01T10:00:00Z", "last_shown_datetime": "2026-06-01", "total_days_shown": 31},
				{"id": "CR2", "advertiser": {"id": "AR1", "name": "Bloor West Dental"}, "target_domain": "bloorwestdental.ca", "format": "image"}
			],
			"pagination": {"next_page_token": "abc"}
		}`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).Creatives(context.Background(), AdsQuery{Query: "dentist toronto", Region: "CA"})
	require.NoError(t, err)
	require.Len(t, resp.Creatives, 2)
	assert.Equal(t, 2, resp.SearchInformation.TotalResults)
	assert.Equal(t, "abc", resp.Pagination.NextPageToken)

	c := resp.Creatives[0]
	assert.Equal(t, "Bloor West Dental", c.Advertiser.Name)
	assert.Equal(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC), c.FirstSeen())
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), c.LastSeen())
	assert.True(t, resp.Creatives[1].FirstSeen().IsZero())
}

func TestCreatives_RequiresQueryOrDomain(t *testing.T) {
	t.Parallel()
	_, err := NewClient("k").Creatives(context.Background(), AdsQuery{Region: "CA"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query or domain")
}

func TestCreatives_APIErrorField(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error": "Invalid API key"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Creatives(context.Background(), AdsQuery{Domain: "x.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestAllCreatives_FollowsPagination(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		resp := AdsResponse{}
		switch r.URL.Query().Get("next_page_token") {
		case "":
			resp.Creatives = []Creative{{ID: "a"}, {ID: "b"}}
			resp.Pagination.NextPageToken = "p2"
		case "p2":
			resp.Creatives = []Creative{{ID: "c"}}
		default:
			t.Errorf("unexpected token %q", r.URL.Query().Get("next_page_token"))
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).AllCreatives(context.Background(), AdsQuery{Query: "med spa"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAllCreatives_MaxPages(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		resp := AdsResponse{Creatives: []Creative{{ID: "x"}}}
		resp.Pagination.NextPageToken = "more"
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).AllCreatives(context.Background(), AdsQuery{Query: "q", MaxPages: 3})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"organic_results": [{"position": 1, "title": "Bloor West Dental", "link": "https://www.bloorwestdental.ca/", "domain": "www.bloorwestdental.ca"}]}`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).Search(context.Background(), "Bloor West Dental", WithCountry("ca"), WithNum(5))
	require.NoError(t, err)
	require.Len(t, resp.Organic, 1)
	assert.Equal(t, "https://www.bloorwestdental.ca/", resp.Organic[0].Link)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_PermanentStatusNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Search(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_SendsOptions(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "google", q.Get("engine"))
		assert.Equal(t, "ca", q.Get("gl"))
		assert.Equal(t, "3", q.Get("num"))
		w.Write([]byte(`{"organic_results": []}`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).Search(context.Background(), "acme", WithCountry("ca"), WithNum(3))
	require.NoError(t, err)
	assert.Empty(t, resp.Organic)
}
