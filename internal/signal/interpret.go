package signal

import "github.com/sells-group/adlead-cli/internal/model"

// Creative interpretations.
const (
	InsightSophisticatedMarketing = "sophisticated_marketing"
	InsightCreativeStagnation     = "creative_stagnation"
	InsightBalancedCreative       = "balanced_creative"
	InsightLimitedData            = "limited_creative_data"
)

const (
	highDiversity     = 0.7
	lowDiversity      = 0.3
	minInterpretedAds = 10
)

// InterpretCreative reads creative diversity against ad volume.
//
// Many distinct creatives is a mature, testing-driven advertiser, never
// "excessive testing". Many ads with few distinct creatives is stagnation
// and a reason to reach out.
func InterpretCreative(p *model.Prospect) string {
	if p.AdCount() < minInterpretedAds {
		return InsightLimitedData
	}
	switch {
	case p.CreativeDiversity >= highDiversity:
		return InsightSophisticatedMarketing
	case p.CreativeDiversity <= lowDiversity:
		return InsightCreativeStagnation
	default:
		return InsightBalancedCreative
	}
}
