package discovery

import (
	"context"
	"errors"
	"sync"

	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/pkg/metaads"
	"github.com/sells-group/adlead-cli/pkg/searchapi"
)

type fakeSearchAPI struct {
	creatives []searchapi.Creative
	organic   map[string][]searchapi.OrganicResult
	err       error
	gotQuery  searchapi.AdsQuery
}

func (f *fakeSearchAPI) Creatives(_ context.Context, q searchapi.AdsQuery) (*searchapi.AdsResponse, error) {
	f.gotQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return &searchapi.AdsResponse{Creatives: f.creatives}, nil
}

func (f *fakeSearchAPI) AllCreatives(ctx context.Context, q searchapi.AdsQuery) ([]searchapi.Creative, error) {
	resp, err := f.Creatives(ctx, q)
	if err != nil {
		return nil, err
	}
	return resp.Creatives, nil
}

func (f *fakeSearchAPI) Search(_ context.Context, query string, _ ...searchapi.SearchOption) (*searchapi.SearchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &searchapi.SearchResponse{Organic: f.organic[query]}, nil
}

type fakeMeta struct {
	ads      []metaads.Ad
	gotQuery metaads.Query
}

func (f *fakeMeta) Ads(_ context.Context, q metaads.Query) (*metaads.Page, error) {
	f.gotQuery = q
	return &metaads.Page{Data: f.ads}, nil
}

func (f *fakeMeta) AllAds(ctx context.Context, q metaads.Query) ([]metaads.Ad, error) {
	page, err := f.Ads(ctx, q)
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}

// stubSource returns canned ads per query.
type stubSource struct {
	mu      sync.Mutex
	ads     map[string][]Ad
	fail    map[string]bool
	reqs    []Request
	queries []string
}

func (s *stubSource) Name() model.Source { return model.SourceSearchAPI }

func (s *stubSource) Fetch(_ context.Context, query string, req Request) ([]Ad, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.fail[query] {
		return nil, errors.New("upstream down")
	}
	return s.ads[query], nil
}

type stubResolver struct {
	domains map[string]string
	err     error
}

func (r *stubResolver) Resolve(_ context.Context, advertiser, _ string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.domains[advertiser], nil
}
