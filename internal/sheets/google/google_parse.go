package google

import (
	"fmt"
	"strconv"
	"strings"

	"spendguard/internal/budget"
)

// reportHeader is written once when a yearly report sheet is created.
var reportHeader = []any{"Period", "Owner", "Category", "Cap", "Spent", "Remaining", "Over limit"}

// totalLabel marks the per-owner summary row.
const totalLabel = "TOTAL"

// periodOf formats the month key used in column A.
func periodOf(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// reportRows converts a report into sheet rows: one per category plus a
// closing total row. Uncapped categories leave Cap and Remaining blank.
func reportRows(rep budget.Report) [][]any {
	period := periodOf(rep.Year, rep.Month)
	rows := make([][]any, 0, len(rep.PerCategory)+1)
	for _, c := range rep.PerCategory {
		capCell, remCell := any(""), any("")
		if c.HasCap {
			capCell = c.Cap.Float()
			remCell = c.Remaining().Float()
		}
		over := ""
		if c.OverLimit() {
			over = "yes"
		}
		rows = append(rows, []any{period, rep.Owner, c.Category, capCell, c.Spent.Float(), remCell, over})
	}
	rows = append(rows, []any{period, rep.Owner, totalLabel, "", rep.Total.Float(), "", ""})
	return rows
}

// exportedKey identifies one owner's month in the sheet.
func exportedKey(owner, period string) string {
	return owner + "\x00" + period
}

// parseExported scans rows (columns A:C) and returns the keys of owner
// months that already have a total row, mapped to their 1-based row.
func parseExported(values [][]any) map[string]int {
	out := make(map[string]int)
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) < 3 || !strings.EqualFold(cols[2], totalLabel) {
			continue
		}
		if _, err := strconv.Atoi(strings.ReplaceAll(cols[0], "-", "")); err != nil {
			continue
		}
		out[exportedKey(cols[1], cols[0])] = i + 1
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
