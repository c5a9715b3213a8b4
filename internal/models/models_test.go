package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	cases := map[string]Month{
		"Jan":       1,
		"jan":       1,
		"September": 9,
		"may":       5,
		"MARCH":     3,
		" 12 ":      12,
		"3":         3,
	}
	for in, want := range cases {
		got, err := ParseMonth(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "13", "0", "Smarch", "Marzipan", "Mayday", "Sept", "3rd"} {
		_, err := ParseMonth(bad)
		assert.Error(t, err, bad)
	}
}

func TestMonthText(t *testing.T) {
	item := MonthlyItem{Month: 2, Sales: 5}
	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"month":"Feb"`)

	var back MonthlyItem
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, item, back)

	data, err = json.Marshal(MonthlyItem{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"month":""`)

	_, err = json.Marshal(MonthlyItem{Month: 14})
	assert.Error(t, err)

	assert.Equal(t, "Month(0)", Month(0).String())
}
