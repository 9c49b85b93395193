package vertical

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/adlead-cli/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  model.Vertical
	}{
		{"dental by name", []string{"Bloor West Dental Centre"}, model.VerticalDental},
		{"orthodontics", []string{"Smile Co", "Invisalign and braces for teens"}, model.VerticalDental},
		{"medspa", []string{"Glow Med Spa", ""}, model.VerticalAesthetic},
		{"accented spanish", []string{"Clínica Estética Lumière"}, model.VerticalAesthetic},
		{"law", []string{"Smith Injury Lawyers"}, model.VerticalLegal},
		{"plumbing", []string{"Fast Plumbing & Drain"}, model.VerticalHomeServices},
		{"healthcare fallback", []string{"Downtown Chiropractic"}, model.VerticalHealthcare},
		{"plural keyword", []string{"Toronto Family Dentists"}, model.VerticalDental},
		{"dental implants", []string{"Same-day Dental Implants"}, model.VerticalDental},
		{"tire shop", []string{"Discount Tires & Wheels"}, model.VerticalAutomotive},
		{"retirement is not tire", []string{"Summit Retirement Planning", "Plan your entire future"}, model.VerticalOther},
		{"hair implant is not dental", []string{"Hair Implant Clinic"}, model.VerticalHealthcare},
		{"healthy is not health", []string{"Healthy Bites Meal Prep"}, model.VerticalOther},
		{"gymnastics is not gym", []string{"Little Stars Gymnastics"}, model.VerticalOther},
		{"stem needs word start", []string{"Superplumbers United"}, model.VerticalOther},
		{"unknown", []string{"Acme Widgets"}, model.VerticalOther},
		{"empty", nil, model.VerticalOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.texts...))
		})
	}
}

func TestParse(t *testing.T) {
	v, ok := Parse("Home Services")
	assert.True(t, ok)
	assert.Equal(t, model.VerticalHomeServices, v)

	v, ok = Parse("DENTAL")
	assert.True(t, ok)
	assert.Equal(t, model.VerticalDental, v)

	_, ok = Parse("crypto")
	assert.False(t, ok)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "clinica estetica", Fold("Clínica ESTÉTICA"))
	assert.Equal(t, "grupo empresarial", Fold("Grupo Empresarial"))
	assert.Equal(t, "", Fold(""))
}
