package budget

import (
	"fmt"
	"hash/fnv"

	"spendguard/internal/core"
)

var guiltLines = []string{
	"Your %s budget called. It wants to know what happened.",
	"Another %s purchase? Your future self is taking notes.",
	"%s is over the line. Maybe sleep on it?",
	"That %s cap was a promise you made to yourself.",
	"Skipping this %s purchase is also a kind of treat.",
}

// GuiltMessage picks a canned message for a decision. The same category and
// exceed amount always yield the same line.
func GuiltMessage(category string, d Decision) string {
	switch d.Outcome {
	case Admit:
		return "Transaction recorded."
	case RejectOverLimit:
		return fmt.Sprintf("%s This would exceed your limit by %s; %s left this month. Resubmit with bypass to record it anyway.",
			guiltLine(category, d), d.Exceed, clampZero(d.Remaining))
	case AdmitOverride:
		return fmt.Sprintf("%s Recorded anyway, %s over your limit.", guiltLine(category, d), d.Exceed)
	default:
		return ""
	}
}

func guiltLine(category string, d Decision) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%d", category, d.Exceed.Cents)
	return fmt.Sprintf(guiltLines[h.Sum32()%uint32(len(guiltLines))], category)
}

func clampZero(m core.Money) core.Money {
	if m.Cents < 0 {
		return core.Money{}
	}
	return m
}
