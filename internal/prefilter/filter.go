// Package prefilter rejects prospects that are not SME advertisers before
// any scoring work is done.
package prefilter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/vertical"
)

// Rejection reason codes, in the order the rules run.
const (
	ReasonMissingDomain     = "missing_domain"
	ReasonMissingAdVolume   = "missing_ad_volume"
	ReasonPlatformDomain    = "platform_domain"
	ReasonContentPage       = "content_page"
	ReasonEnterprise        = "enterprise"
	ReasonLocaleMissing     = "locale_missing"
	ReasonOutsideSMEBracket = "outside_sme_bracket"
)

// Reasons lists every rejection reason in rule order.
func Reasons() []string {
	return []string{
		ReasonMissingDomain,
		ReasonMissingAdVolume,
		ReasonPlatformDomain,
		ReasonContentPage,
		ReasonEnterprise,
		ReasonLocaleMissing,
		ReasonOutsideSMEBracket,
	}
}

// Filter is a compiled prospect gate. It is immutable and safe for
// concurrent use.
type Filter struct {
	platforms      map[string]struct{}
	content        []*regexp.Regexp
	enterprise     *regexp.Regexp
	requireLocale  bool
	localeTLDs     []string
	localeWords    *regexp.Regexp
	localeCodes    map[string]struct{}
	enforceBracket bool
	minAds, maxAds int
}

// New compiles a filter. Invalid patterns are reported together as a
// *config.ValidationError.
func New(cfg config.FilterConfig) (*Filter, error) {
	f := &Filter{
		platforms:      make(map[string]struct{}, len(cfg.PlatformDomains)),
		requireLocale:  cfg.RequireLocale,
		localeCodes:    make(map[string]struct{}),
		enforceBracket: cfg.EnforceSMEBracket,
		minAds:         cfg.MinAdVolume,
		maxAds:         cfg.MaxAdVolume,
	}
	var errs []string

	for _, d := range cfg.PlatformDomains {
		if d = model.CanonicalDomain(d); d != "" {
			f.platforms[d] = struct{}{}
		}
	}

	for _, pat := range cfg.ContentPatterns {
		re, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			errs = append(errs, fmt.Sprintf("content pattern %q: %v", pat, err))
			continue
		}
		f.content = append(f.content, re)
	}

	f.enterprise = wordList(append(append([]string{}, cfg.EnterpriseNames...), cfg.EnterpriseTerms...))

	for _, tld := range cfg.LocaleTLDs {
		tld = strings.Trim(strings.ToLower(strings.TrimSpace(tld)), ".")
		if tld != "" {
			f.localeTLDs = append(f.localeTLDs, "."+tld)
		}
	}
	f.localeWords = wordList(cfg.LocaleKeywords)
	for _, kw := range cfg.LocaleKeywords {
		if kw = strings.ToUpper(strings.TrimSpace(kw)); len(kw) == 2 {
			f.localeCodes[kw] = struct{}{}
		}
	}

	if cfg.EnforceSMEBracket && (cfg.MinAdVolume < 0 || cfg.MaxAdVolume < cfg.MinAdVolume) {
		errs = append(errs, fmt.Sprintf("SME bracket [%d, %d] is invalid", cfg.MinAdVolume, cfg.MaxAdVolume))
	}
	if cfg.RequireLocale && len(f.localeTLDs) == 0 && f.localeWords == nil {
		errs = append(errs, "require_locale is set but no locale_tlds or locale_keywords are configured")
	}

	if len(errs) > 0 {
		return nil, &config.ValidationError{Source: "filter", Problems: errs}
	}
	return f, nil
}

// Default returns a filter built from the built-in lists with the [5, 25]
// SME bracket enforced and no locale requirement.
func Default() *Filter {
	f, err := New(config.FilterConfig{
		PlatformDomains:   config.DefaultPlatformDomains,
		ContentPatterns:   config.DefaultContentPatterns,
		EnterpriseNames:   config.DefaultEnterpriseNames,
		EnterpriseTerms:   config.DefaultEnterpriseTerms,
		EnforceSMEBracket: true,
		MinAdVolume:       5,
		MaxAdVolume:       25,
	})
	if err != nil {
		panic(err) // built-in lists are static
	}
	return f
}

// Check runs the rules in order and returns false with the first matching
// reason. It never modifies p.
func (f *Filter) Check(p *model.Prospect) (bool, string) {
	domain := model.CanonicalDomain(p.Domain)

	// 0. Required fields.
	if domain == "" {
		return false, ReasonMissingDomain
	}
	if f.enforceBracket && p.AdVolume == nil {
		return false, ReasonMissingAdVolume
	}

	// 1. Platform or aggregator domain.
	if f.isPlatform(domain) {
		return false, ReasonPlatformDomain
	}

	title := vertical.Fold(p.Title)
	snippet := vertical.Fold(p.Snippet)

	// 2. Content page.
	if f.matchesContent(title) || f.matchesContent(snippet) {
		return false, ReasonContentPage
	}

	// 3. Enterprise.
	if f.enterprise != nil {
		for _, text := range []string{title, snippet, vertical.Fold(p.CompanyName)} {
			if text != "" && f.enterprise.MatchString(text) {
				return false, ReasonEnterprise
			}
		}
	}

	// 4. Locale.
	if f.requireLocale && !f.hasLocale(p, domain, title, snippet) {
		return false, ReasonLocaleMissing
	}

	// 5. SME bracket.
	if f.enforceBracket {
		if n := *p.AdVolume; n < f.minAds || n > f.maxAds {
			return false, ReasonOutsideSMEBracket
		}
	}

	return true, ""
}

// isPlatform reports whether domain or any parent domain is listed.
func (f *Filter) isPlatform(domain string) bool {
	for d := domain; d != ""; {
		if _, ok := f.platforms[d]; ok {
			return true
		}
		i := strings.IndexByte(d, '.')
		if i < 0 {
			break
		}
		d = d[i+1:]
	}
	return false
}

func (f *Filter) matchesContent(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, re := range f.content {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (f *Filter) hasLocale(p *model.Prospect, domain, title, snippet string) bool {
	for _, tld := range f.localeTLDs {
		if strings.HasSuffix(domain, tld) {
			return true
		}
	}
	if _, ok := f.localeCodes[strings.ToUpper(strings.TrimSpace(p.Country))]; ok {
		return true
	}
	if f.localeWords == nil {
		return false
	}
	for _, text := range []string{title, snippet, vertical.Fold(p.Description), vertical.Fold(p.CompanyName)} {
		if text != "" && f.localeWords.MatchString(text) {
			return true
		}
	}
	return false
}

// wordList compiles terms into one alternation that only matches whole
// words of folded text. It returns nil for an empty list.
func wordList(terms []string) *regexp.Regexp {
	var quoted []string
	for _, t := range terms {
		if t = vertical.Fold(strings.TrimSpace(t)); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?:^|[^\pL\pN])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\pL\pN])`)
}
