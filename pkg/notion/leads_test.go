package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adlead-cli/internal/model"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *MockClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func (m *MockClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, pageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func qualified(name, domain string) model.Outcome {
	return model.Outcome{
		Prospect: model.Prospect{CompanyName: name, Domain: domain, Vertical: model.VerticalDental, Source: model.SourceSearchAPI},
		Stage:    model.StageScored,
		Result: &model.QualificationResult{
			ICP: "local_sme", Score: 81.234, Tier: model.TierHigh, Qualified: true,
			SignalsDetected: []string{"high_ad_frequency", "creative_stagnation"},
			Insights:        []string{"Running 12 ads with low creative diversity"},
		},
		Leak: &model.LeakEstimate{MonthlyLeak: 1012.96, Confidence: model.ConfidenceHigh},
	}
}

func existingPage(id, domain string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			PropDomain: &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: domain}}},
		},
	}
}

func TestExportLeads_CreatesAndUpdates(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(r *notionapi.DatabaseQueryRequest) bool {
		return r.StartCursor == ""
	})).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{existingPage("page-a", "https://www.bloorwestdental.ca")},
		HasMore:    true,
		NextCursor: "cur-2",
	}, nil).Once()
	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(r *notionapi.DatabaseQueryRequest) bool {
		return r.StartCursor == "cur-2"
	})).Return(&notionapi.DatabaseQueryResponse{}, nil).Once()

	mc.On("UpdatePage", ctx, "page-a", mock.MatchedBy(func(r *notionapi.PageUpdateRequest) bool {
		_, hasStatus := r.Properties[PropStatus]
		return !hasStatus
	})).Return(&notionapi.Page{ID: "page-a"}, nil).Once()

	mc.On("CreatePage", ctx, mock.MatchedBy(func(r *notionapi.PageCreateRequest) bool {
		status, ok := r.Properties[PropStatus].(notionapi.StatusProperty)
		return ok && status.Status.Name == "New" && r.Parent.DatabaseID == "db-1"
	})).Return(&notionapi.Page{ID: "page-b"}, nil).Once()

	outcomes := []model.Outcome{
		qualified("Bloor West Dental", "bloorwestdental.ca"),
		qualified("Smile Studio", "smilestudio.ca"),
		{Prospect: model.Prospect{Domain: "instagram.com"}, Stage: model.StageFiltered, Reason: "platform_domain"},
	}

	res, err := ExportLeads(ctx, mc, "db-1", outcomes)
	require.NoError(t, err)
	assert.Equal(t, ExportResult{Created: 1, Updated: 1, Skipped: 1}, res)
	mc.AssertExpectations(t)
}

func TestExportLeads_CreateError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(&notionapi.DatabaseQueryResponse{}, nil).Once()
	mc.On("CreatePage", ctx, mock.Anything).Return(nil, assert.AnError).Once()

	res, err := ExportLeads(ctx, mc, "db-1", []model.Outcome{qualified("A", "a.com")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create lead a.com")
	assert.Zero(t, res.Created)
	mc.AssertExpectations(t)
}

func TestExportLeads_IndexError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(nil, assert.AnError).Once()

	_, err := ExportLeads(ctx, mc, "db-1", []model.Outcome{qualified("A", "a.com")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index existing leads")
}

func TestLeadProperties(t *testing.T) {
	o := qualified("Bloor West Dental", "bloorwestdental.ca")
	props := leadProperties(&o)

	title := props[PropName].(notionapi.TitleProperty)
	assert.Equal(t, "Bloor West Dental", title.Title[0].Text.Content)
	assert.InDelta(t, 81.23, props[PropScore].(notionapi.NumberProperty).Number, 1e-9)
	assert.Equal(t, "HIGH", props[PropTier].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, "SEARCHAPI", props[PropSource].(notionapi.SelectProperty).Select.Name)
	assert.Len(t, props[PropSignals].(notionapi.MultiSelectProperty).MultiSelect, 2)
	assert.InDelta(t, 1012.96, props[PropLeak].(notionapi.NumberProperty).Number, 1e-9)
	assert.Equal(t, "HIGH", props[PropConfidence].(notionapi.SelectProperty).Select.Name)

	o.Leak = nil
	o.Prospect.Source = ""
	props = leadProperties(&o)
	assert.NotContains(t, props, PropLeak)
	assert.NotContains(t, props, PropSource)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "a.com", plainText(&notionapi.RichTextProperty{RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: " a.com "}}}}))
	assert.Equal(t, "https://b.com", plainText(&notionapi.URLProperty{URL: "https://b.com"}))
	assert.Empty(t, plainText(nil))
}
