package duty

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupIncoterm(t *testing.T) {
	term, ok := LookupIncoterm("cif Rotterdam")
	assert.True(t, ok)
	assert.Equal(t, "CIF", term.Code)
	assert.Equal(t, "Cost, Insurance and Freight", term.Name)
	assert.Equal(t, "buyer", term.DutyPayer())

	term, ok = LookupIncoterm("DDP")
	assert.True(t, ok)
	assert.True(t, term.IncludesDutiesTaxes)
	assert.Equal(t, "seller", term.DutyPayer())

	_, ok = LookupIncoterm("")
	assert.False(t, ok)

	_, ok = LookupIncoterm("DDU")
	assert.False(t, ok)
}

func TestLookupIncoterm_Wordings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "D.D.P.", want: "DDP"},
		{input: "d-d-p", want: "DDP"},
		{input: "Incoterms 2020: DDP", want: "DDP"},
		{input: "Terms: FOB Shanghai port", want: "FOB"},
		{input: "Delivered Duty Paid", want: "DDP"},
		{input: "delivered duty paid, Chicago", want: "DDP"},
		{input: "Free On Board", want: "FOB"},
		{input: "Delivered at Place Unloaded", want: "DPU"},
		{input: "Delivered at Place", want: "DAP"},
		{input: "Cost, Insurance and Freight", want: "CIF"},
		{input: "Cost and Freight", want: "CFR"},
		{input: "Carriage and Insurance Paid To", want: "CIP"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			term, ok := LookupIncoterm(tt.input)
			assert.True(t, ok)
			assert.Equal(t, tt.want, term.Code)
		})
	}

	for _, input := range []string{"unknown", "DDU", "2020", "..."} {
		_, ok := LookupIncoterm(input)
		assert.False(t, ok, input)
	}
}

func TestShouldCalculate(t *testing.T) {
	assert.True(t, ShouldCalculate("FOB"))
	assert.True(t, ShouldCalculate("EXW"))
	assert.True(t, ShouldCalculate(""))
	assert.True(t, ShouldCalculate("unknown"))
	assert.False(t, ShouldCalculate("DDP"))
	assert.False(t, ShouldCalculate(" ddp Chicago"))
	assert.False(t, ShouldCalculate("Delivered Duty Paid"))
	assert.False(t, ShouldCalculate("D.D.P."))
	assert.False(t, ShouldCalculate("Incoterms 2020: DDP"))
	assert.True(t, ShouldCalculate("Delivered at Place"))
}
