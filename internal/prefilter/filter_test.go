package prefilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/model"
)

func smeProspect() *model.Prospect {
	return &model.Prospect{
		CompanyName: "Bloor West Dental",
		Domain:      "https://www.bloorwestdental.ca/",
		Title:       "Bloor West Dental | Family Dentist in Toronto",
		Snippet:     "Accepting new patients. Same-day emergency appointments.",
		AdVolume:    model.IntPtr(12),
		Country:     "CA",
	}
}

func TestCheck_Rules(t *testing.T) {
	f := Default()

	tests := []struct {
		name   string
		mutate func(p *model.Prospect)
		pass   bool
		reason string
	}{
		{"sme passes", func(p *model.Prospect) {}, true, ""},
		{"missing domain", func(p *model.Prospect) { p.Domain = "  " }, false, ReasonMissingDomain},
		{"missing ad volume", func(p *model.Prospect) { p.AdVolume = nil }, false, ReasonMissingAdVolume},
		{"instagram", func(p *model.Prospect) { p.Domain = "instagram.com" }, false, ReasonPlatformDomain},
		{"platform subdomain", func(p *model.Prospect) { p.Domain = "https://m.facebook.com/bloorwest" }, false, ReasonPlatformDomain},
		{"site builder subdomain", func(p *model.Prospect) { p.Domain = "bloorwest.wixsite.com" }, false, ReasonPlatformDomain},
		{"listicle", func(p *model.Prospect) { p.Title = "10 Best Dentists in Toronto (2026)" }, false, ReasonContentPage},
		{"how to", func(p *model.Prospect) { p.Snippet = "How to choose a dentist for your family" }, false, ReasonContentPage},
		{"spanish listicle with accents", func(p *model.Prospect) { p.Title = "Cómo elegir un dentista" }, false, ReasonContentPage},
		{"reviews page", func(p *model.Prospect) { p.Title = "Bloor West Dental Reviews" }, false, ReasonContentPage},
		{"enterprise name", func(p *model.Prospect) { p.CompanyName = "Aspen Dental" }, false, ReasonEnterprise},
		{"enterprise language", func(p *model.Prospect) { p.Snippet = "A multinational leader in oral care" }, false, ReasonEnterprise},
		{"enterprise accent folded", func(p *model.Prospect) { p.Snippet = "Parte del Grupo Empresarial Sonrisa" }, false, ReasonEnterprise},
		{"enterprise needs whole word", func(p *model.Prospect) { p.CompanyName = "Walmartin Family Dental" }, true, ""},
		{"below bracket", func(p *model.Prospect) { p.AdVolume = model.IntPtr(4) }, false, ReasonOutsideSMEBracket},
		{"large advertiser", func(p *model.Prospect) { p.AdVolume = model.IntPtr(99) }, false, ReasonOutsideSMEBracket},
		{"bracket inclusive low", func(p *model.Prospect) { p.AdVolume = model.IntPtr(5) }, true, ""},
		{"bracket inclusive high", func(p *model.Prospect) { p.AdVolume = model.IntPtr(25) }, true, ""},
		{"empty text never matches", func(p *model.Prospect) { p.Title, p.Snippet = "", "" }, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := smeProspect()
			tt.mutate(p)
			pass, reason := f.Check(p)
			assert.Equal(t, tt.pass, pass)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestCheck_InstagramScenario(t *testing.T) {
	pass, reason := Default().Check(&model.Prospect{
		CompanyName: "Instagram",
		Domain:      "instagram.com",
		AdVolume:    model.IntPtr(10),
	})
	assert.False(t, pass)
	assert.Equal(t, ReasonPlatformDomain, reason)
}

func TestCheck_LargeAdvertiserScenario(t *testing.T) {
	p := smeProspect()
	p.AdVolume = model.IntPtr(99)
	pass, reason := Default().Check(p)
	assert.False(t, pass)
	assert.Equal(t, ReasonOutsideSMEBracket, reason)
}

func TestCheck_RuleOrder(t *testing.T) {
	// Platform domain wins over the bracket and content rules.
	p := smeProspect()
	p.Domain = "yelp.com"
	p.Title = "Top 10 dentists"
	p.AdVolume = model.IntPtr(500)
	_, reason := Default().Check(p)
	assert.Equal(t, ReasonPlatformDomain, reason)
}

func TestCheck_BracketNotEnforced(t *testing.T) {
	f, err := New(config.FilterConfig{PlatformDomains: []string{"yelp.com"}})
	require.NoError(t, err)

	p := smeProspect()
	p.AdVolume = nil
	pass, _ := f.Check(p)
	assert.True(t, pass)

	p.AdVolume = model.IntPtr(400)
	pass, _ = f.Check(p)
	assert.True(t, pass)
}

func TestCheck_Locale(t *testing.T) {
	f, err := New(config.FilterConfig{
		RequireLocale:  true,
		LocaleTLDs:     []string{".ca"},
		LocaleKeywords: []string{"toronto", "ontario", "CA"},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		p    model.Prospect
		pass bool
	}{
		{"tld", model.Prospect{Domain: "smile.ca"}, true},
		{"country code", model.Prospect{Domain: "smile.com", Country: "ca"}, true},
		{"keyword in snippet", model.Prospect{Domain: "smile.com", Snippet: "Serving Toronto since 1998"}, true},
		{"keyword needs whole word", model.Prospect{Domain: "smile.com", Snippet: "Torontonians welcome"}, false},
		{"nothing", model.Prospect{Domain: "smile.com", Snippet: "Serving Austin"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass, reason := f.Check(&tt.p)
			assert.Equal(t, tt.pass, pass)
			if !tt.pass {
				assert.Equal(t, ReasonLocaleMissing, reason)
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(config.FilterConfig{
		ContentPatterns:   []string{`(unclosed`},
		EnforceSMEBracket: true,
		MinAdVolume:       30,
		MaxAdVolume:       10,
		RequireLocale:     true,
	})
	require.Error(t, err)
	var ve *config.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "filter", ve.Source)
	assert.Len(t, ve.Problems, 3)
}

func TestCheck_Deterministic(t *testing.T) {
	f := Default()
	p := smeProspect()
	p.Title = "Best 5 clinics"
	first, r1 := f.Check(p)
	for i := 0; i < 50; i++ {
		pass, r := f.Check(p)
		require.Equal(t, first, pass)
		require.Equal(t, r1, r)
	}
}

func TestReasons(t *testing.T) {
	assert.Len(t, Reasons(), 7)
	assert.Equal(t, ReasonMissingDomain, Reasons()[0])
}
