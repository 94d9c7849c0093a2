package progress

import (
	"sort"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
)

// =============================================================================
// EVIDENCE ESCALATION - Sustained Amber/Red makes evidence mandatory
// =============================================================================

// EvidenceConfig controls when supporting evidence becomes mandatory.
type EvidenceConfig struct {
	// RequiredAfterMonths is both the look-back window in months and the
	// consecutive Amber/Red count that triggers the requirement.
	RequiredAfterMonths int
}

const DefaultEvidenceMonths = 2

func DefaultEvidenceConfig() EvidenceConfig {
	return EvidenceConfig{RequiredAfterMonths: DefaultEvidenceMonths}
}

// EvidenceRequired reports whether the update being evaluated must carry
// supporting evidence.
//
// The rule applies only when the update's own RAG is RED or AMBER. History
// inside [periodEnd - N months, periodEnd] is walked chronologically,
// counting consecutive RED/AMBER statuses; a single GREEN (or GREY) break
// resets the counter. Evidence is required once the streak reaches N.
//
// Each historical status is classified against the YTD target as of the
// evaluation date, matching how the rest of the engine reads the ledger.
// Malformed inputs degrade to "not required": the consequence of a false
// negative here is a missing warning banner, not data loss.
func EvidenceRequired(t plan.Target, u plan.ProgressUpdate, history []plan.ProgressUpdate, fy fiscal.FinancialYear, asOf fiscal.Date, cfg EvidenceConfig) bool {
	n := cfg.RequiredAfterMonths
	if n <= 0 || u.PeriodEnd.IsZero() {
		return false
	}

	ytdTarget := YTDTargetValue(t, fy, asOf)
	ragOf := func(actual plan.ProgressUpdate) RAG {
		if ytdTarget.IsZero() {
			return RAGGrey
		}
		return ComputeRAGFromPercent(ComputePercent(actual.ActualValue, ytdTarget), &t)
	}

	if own := ragOf(u); own != RAGRed && own != RAGAmber {
		return false
	}

	cutoff := u.PeriodEnd.AddMonths(-n)
	streak := 0
	for _, h := range sortByPeriodEnd(history) {
		if !h.State.IsActive() {
			continue
		}
		if h.PeriodEnd.Before(cutoff) || h.PeriodEnd.After(u.PeriodEnd) {
			continue
		}
		switch ragOf(h) {
		case RAGRed, RAGAmber:
			streak++
		default:
			streak = 0
		}
	}
	return streak >= n
}

func sortByPeriodEnd(updates []plan.ProgressUpdate) []plan.ProgressUpdate {
	out := make([]plan.ProgressUpdate, len(updates))
	copy(out, updates)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodEnd.Before(out[j].PeriodEnd)
	})
	return out
}
