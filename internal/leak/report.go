package leak

import (
	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/adlead-cli/internal/model"
)

var printer = message.NewPrinter(language.English)

// FormatLeak renders a leak estimate for humans. It refuses to render a
// dollar figure that has no confidence label.
func FormatLeak(est model.LeakEstimate) (string, error) {
	switch est.Confidence {
	case model.ConfidenceHigh, model.ConfidenceMedium, model.ConfidenceLow:
	default:
		return "", eris.Errorf("leak: refusing to format estimate without confidence (got %q)", est.Confidence)
	}
	return printer.Sprintf("$%.2f/mo wasted (confidence %s, benchmark %s, efficiency %.1f)",
		est.MonthlyLeak, est.Confidence, est.Benchmark, est.EfficiencyScore), nil
}
