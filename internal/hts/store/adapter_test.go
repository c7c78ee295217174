package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowToRecord_ColumnConventions(t *testing.T) {
	tests := []struct {
		name string
		row  map[string]any
	}{
		{
			name: "current schema",
			row: map[string]any{
				"hts_number":            "0201.10.1000",
				"general_rate_of_duty":  "26.4%",
				"special_rate_of_duty":  "Free (A+,AU)",
				"column_2_rate_of_duty": "31.1%",
				"unit_of_quantity":      `["kg"]`,
				"additional_duties":     "5",
			},
		},
		{
			name: "code column renamed",
			row: map[string]any{
				"hts_code":              "0201.10.1000",
				"general_rate_of_duty":  "26.4%",
				"special_rate_of_duty":  "Free (A+,AU)",
				"column_2_rate_of_duty": "31.1%",
				"unit_of_quantity":      []string{"kg"},
				"additional_duties":     "5",
			},
		},
		{
			name: "export column names",
			row: map[string]any{
				"htsno":             "0201.10.1000",
				"general":           "26.4%",
				"special":           "Free (A+,AU)",
				"other":             "31.1%",
				"units":             []any{"kg", ""},
				"addiitionalDuties": "5",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := RowToRecord(tt.row)
			require.NoError(t, err)
			assert.Equal(t, "0201.10.1000", rec.Code)
			assert.Equal(t, "26.4%", *rec.GeneralRate)
			assert.Equal(t, "Free (A+,AU)", *rec.SpecialRate)
			assert.Equal(t, "31.1%", *rec.Column2Rate)
			assert.Equal(t, "5", *rec.AdditionalDuties)
			assert.Equal(t, []string{"kg"}, rec.UnitOfQuantity)
		})
	}
}

func TestRowToRecord_PrefersNewestColumn(t *testing.T) {
	rec, err := RowToRecord(map[string]any{
		"hts_number":           "0101.21.0010",
		"hts_code":             "0101.21.00",
		"general_rate_of_duty": "",
		"general":              "Free",
	})
	require.NoError(t, err)
	assert.Equal(t, "0101.21.0010", rec.Code)
	require.NotNil(t, rec.GeneralRate, "an empty newer column falls through to the older one")
	assert.Equal(t, "Free", *rec.GeneralRate)
}

func TestRowToRecord_ValueTypes(t *testing.T) {
	code := " 0101.21.0010 "
	rec, err := RowToRecord(map[string]any{
		"hts_number":            &code,
		"description":           []byte("Horses"),
		"general_rate_of_duty":  sql.NullString{String: "6.8%", Valid: true},
		"special_rate_of_duty":  sql.NullString{},
		"column_2_rate_of_duty": nil,
		"unit_of_quantity":      "{No.,\"kg\"}",
	})
	require.NoError(t, err)
	assert.Equal(t, "0101.21.0010", rec.Code)
	assert.Equal(t, "Horses", rec.Description)
	assert.Equal(t, "6.8%", *rec.GeneralRate)
	assert.Nil(t, rec.SpecialRate)
	assert.Nil(t, rec.Column2Rate)
	assert.Equal(t, []string{"No.", "kg"}, rec.UnitOfQuantity)
}

func TestRowToRecord_MissingCode(t *testing.T) {
	_, err := RowToRecord(map[string]any{"general": "5%"})
	assert.ErrorIs(t, err, ErrMissingCode)

	_, err = RowToRecord(map[string]any{"hts_number": "   "})
	assert.ErrorIs(t, err, ErrMissingCode)
}

func TestToStrings(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{name: "nil", input: nil, want: nil},
		{name: "json array", input: `["No.", "kg"]`, want: []string{"No.", "kg"}},
		{name: "bad json", input: `["No.",`, want: nil},
		{name: "postgres array", input: "{doz.,kg}", want: []string{"doz.", "kg"}},
		{name: "empty postgres array", input: "{}", want: nil},
		{name: "single value", input: "No.", want: []string{"No."}},
		{name: "null literal", input: "null", want: nil},
		{name: "bytes", input: []byte(`["m2"]`), want: []string{"m2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toStrings(tt.input))
		})
	}
}
