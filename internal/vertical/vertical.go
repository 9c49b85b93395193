// Package vertical classifies prospects into industry verticals by keyword matching.
package vertical

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/adlead-cli/internal/model"
)

// rule maps a vertical to the keywords that identify it. Rules are checked
// in order, so more specific verticals come before broader ones.
//
// Keywords match whole words, with an optional plural "s". A trailing "*"
// marks a stem that matches any word starting with it.
type rule struct {
	vertical model.Vertical
	keywords []string
}

var rules = []rule{
	{model.VerticalDental, []string{"dental", "dentist", "dentistry", "orthodont*", "endodont*", "periodont*", "dental implant", "invisalign", "dentiste", "odontolog*"}},
	{model.VerticalAesthetic, []string{"med spa", "medspa", "medical spa", "aesthetic*", "esthetic*", "estetic*", "botox", "filler", "laser hair", "cosmetic", "plastic surg*"}},
	{model.VerticalLegal, []string{"law firm", "lawyer", "attorney", "legal", "abogado", "avocat", "injury law"}},
	{model.VerticalRealEstate, []string{"real estate", "realtor", "realty", "property management", "mortgage", "inmobiliaria"}},
	{model.VerticalHomeServices, []string{"plumb*", "hvac", "roofing", "roofer", "electrician", "landscap*", "pest control", "cleaning service", "renovation", "contractor"}},
	{model.VerticalFitness, []string{"gym", "fitness", "pilates", "yoga", "crossfit", "personal train*"}},
	{model.VerticalRestaurant, []string{"restaurant", "bistro", "cafe", "pizzeria", "catering", "restaurante"}},
	{model.VerticalAutomotive, []string{"auto repair", "auto body", "dealership", "car wash", "collision", "tire", "automotive"}},
	{model.VerticalHealthcare, []string{"clinic", "chiropract*", "physiotherap*", "physical therap*", "optometr*", "medical", "clinica", "health", "healthcare"}},
}

type matcher struct {
	vertical model.Vertical
	re       *regexp.Regexp
}

var matchers = compile(rules)

// compile builds one word-bounded alternation per rule.
func compile(rs []rule) []matcher {
	out := make([]matcher, 0, len(rs))
	for _, r := range rs {
		alts := make([]string, 0, len(r.keywords))
		for _, kw := range r.keywords {
			stem := strings.HasSuffix(kw, "*")
			kw = regexp.QuoteMeta(strings.TrimSuffix(kw, "*"))
			kw = strings.ReplaceAll(kw, " ", `\s+`)
			if stem {
				alts = append(alts, kw+`[\pL\pN]*`)
			} else {
				alts = append(alts, kw+`s?`)
			}
		}
		out = append(out, matcher{
			vertical: r.vertical,
			re:       regexp.MustCompile(`(?:^|[^\pL\pN])(?:` + strings.Join(alts, "|") + `)(?:$|[^\pL\pN])`),
		})
	}
	return out
}

// Classify returns the first vertical whose keywords appear in any of the
// given texts, or VerticalOther.
func Classify(texts ...string) model.Vertical {
	folded := Fold(strings.Join(texts, " "))
	if strings.TrimSpace(folded) == "" {
		return model.VerticalOther
	}
	for _, m := range matchers {
		if m.re.MatchString(folded) {
			return m.vertical
		}
	}
	return model.VerticalOther
}

// Parse maps a free-form vertical name to a known Vertical.
func Parse(s string) (model.Vertical, bool) {
	v := model.Vertical(strings.ReplaceAll(Fold(strings.TrimSpace(s)), " ", "_"))
	switch v {
	case model.VerticalDental, model.VerticalAesthetic, model.VerticalLegal,
		model.VerticalHomeServices, model.VerticalRealEstate, model.VerticalFitness,
		model.VerticalRestaurant, model.VerticalAutomotive, model.VerticalHealthcare,
		model.VerticalOther:
		return v, true
	}
	return "", false
}

// Fold lowercases s with Unicode case folding and strips diacritics, so
// "Clínica Estética" and "clinica estetica" compare equal.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	// Transformers and casers are stateful; build fresh ones per call so
	// Fold is safe for concurrent scoring workers.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}
