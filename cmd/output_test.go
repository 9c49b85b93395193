package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adlead-cli/internal/model"
)

func sampleOutcomes() []model.Outcome {
	return []model.Outcome{
		{
			Prospect: model.Prospect{CompanyName: "Instagram", Domain: "instagram.com"},
			Stage:    model.StageFiltered,
			Reason:   "platform_domain",
		},
		{
			Prospect: model.Prospect{CompanyName: "Tiny Smiles", Domain: "tinysmiles.ca"},
			Stage:    model.StageScored,
			Reason:   model.ReasonBelowMinSpend,
			Result:   &model.QualificationResult{ICP: "dental_premium_toronto", Score: 0, Tier: model.TierUnqualified},
		},
		{
			Prospect: model.Prospect{CompanyName: "Bloor West Dental", Domain: "bloorwestdental.ca"},
			Stage:    model.StageScored,
			Result: &model.QualificationResult{
				ICP: "dental_premium_toronto", Score: 91.25, Tier: model.TierImmediate, Qualified: true,
				SignalsDetected: []string{"ad_frequency", "creative_stagnation"},
			},
			Leak: &model.LeakEstimate{MonthlyLeak: 1012.956, Confidence: model.ConfidenceHigh},
		},
	}
}

func TestWriteOutcomes_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutcomes(&buf, formatTable, sampleOutcomes()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "COMPANY")
	assert.Contains(t, lines[2], "Bloor West Dental", "qualified leads come first")
	assert.Contains(t, lines[2], "$1012.96 (HIGH)")
	assert.Contains(t, lines[2], "qualified")
	assert.Contains(t, buf.String(), "filtered: platform_domain")
	assert.Contains(t, buf.String(), "scored: below_min_spend")
}

func TestWriteOutcomes_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutcomes(&buf, formatCSV, sampleOutcomes()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, outcomeHeader, records[0])
	assert.Equal(t, []string{"Instagram", "instagram.com", "filtered", "", "", "", "", "", "", "platform_domain"}, records[1])
	assert.Equal(t, []string{
		"Bloor West Dental", "bloorwestdental.ca", "scored", "dental_premium_toronto", "91.2", "IMMEDIATE",
		"1012.96", "HIGH", "ad_frequency;creative_stagnation", "",
	}, records[3])
}

func TestWriteOutcomes_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutcomes(&buf, formatJSON, sampleOutcomes()))

	var got []model.Outcome
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 3)
	assert.True(t, got[2].Qualified())
}

func TestWriteOutcomes_UnknownFormat(t *testing.T) {
	err := writeOutcomes(&bytes.Buffer{}, "xml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestFormatSummary(t *testing.T) {
	var buf bytes.Buffer
	formatSummary(&buf, model.RunSummary{
		Total:             6,
		FilteredOut:       2,
		ScoredUnqualified: 1,
		Qualified:         1,
		DataErrors:        2,
		FilterReasons:     map[string]int{"platform_domain": 1, "outside_sme_bracket": 1},
		Tiers:             map[model.Tier]int{model.TierImmediate: 1},
	})

	out := buf.String()
	assert.Contains(t, out, "Total:")
	assert.Contains(t, out, "IMMEDIATE:")
	assert.Contains(t, out, "outside_sme_bracket:")
	assert.Less(t, strings.Index(out, "outside_sme_bracket"), strings.Index(out, "platform_domain"))
	assert.Contains(t, out, "Data errors:")
	assert.NotContains(t, out, "Config errors:")
}

func TestFormatSummary_ConfigFailure(t *testing.T) {
	var buf bytes.Buffer
	formatSummary(&buf, model.RunSummary{Total: 3, ConfigErrors: 1})
	assert.Contains(t, buf.String(), "Config errors:")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 30))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
