package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendguard/internal/budget"
	"spendguard/internal/core"
)

func TestReportRows(t *testing.T) {
	rep := budget.Report{
		Owner: "u1", Year: 2025, Month: 4, Total: core.Money{Cents: 15000},
		PerCategory: []budget.CategorySpend{
			{Category: "food", Cap: core.Money{Cents: 10000}, HasCap: true, Spent: core.Money{Cents: 12000}},
			{Category: "misc", Spent: core.Money{Cents: 3000}},
		},
	}
	rows := reportRows(rep)
	require.Len(t, rows, 3)

	assert.Equal(t, []any{"2025-04", "u1", "food", 100.0, 120.0, -20.0, "yes"}, rows[0])
	assert.Equal(t, []any{"2025-04", "u1", "misc", "", 30.0, "", ""}, rows[1])
	assert.Equal(t, []any{"2025-04", "u1", totalLabel, "", 150.0, "", ""}, rows[2])
}

func TestParseExported(t *testing.T) {
	values := [][]any{
		reportHeader,
		{"2025-04", "u1", "food", 100, 120},
		{"2025-04", "u1", "TOTAL", "", 150},
		{"2025-04", "u2", "food", 10, 1},
		{"junk", "u3", "TOTAL"},
		{"2025-05", "u2", "total", "", 1},
	}
	got := parseExported(values)
	assert.Equal(t, map[string]int{
		exportedKey("u1", "2025-04"): 3,
		exportedKey("u2", "2025-05"): 6,
	}, got)
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Reports", 2025, "2025 Reports"},
		{"2024 Reports", 2025, "2024 Reports"},
		{"  ", 2025, ""},
		{"20xx Reports", 2025, "2025 20xx Reports"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, yearPrefixedName(tt.base, tt.year), tt.base)
	}
}

func TestA1Quoting(t *testing.T) {
	assert.Equal(t, "'2025 Reports'!A:C", a1("2025 Reports", "A:C"))
	assert.Equal(t, "'Bob''s'!A1", a1("Bob's", "A1"))
}
