// Package sheets exports monthly budget reports to spreadsheets.
package sheets

import (
	"context"

	"spendguard/internal/budget"
)

// Ports for outbound adapters.
type (
	// ReportWriter appends a closed month's report. Writing the same owner
	// and month twice is a no-op that returns the existing reference.
	ReportWriter interface {
		WriteReport(ctx context.Context, rep budget.Report) (ref string, err error)
	}
)
