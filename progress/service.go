/*
service.go - Draft upsert and approval workflow for progress updates

PURPOSE:
  The write path of the ledger. Drafts are upserted against their natural
  key (target, period_start, period_end); submitted updates flow through
  approve or reject. Quarter locking is enforced here, at write time.

CONCURRENCY:
  Draft saves are last-write-wins by design: the upsert carries no
  version check, so two near-simultaneous saves for the same period
  silently overwrite one another. This mirrors the accepted product
  behavior; callers wanting stronger guarantees need an explicit
  version/ETag scheme on top.

  Submit/approve/reject are plain overwrites of the three status fields
  with no state-machine lock; callers serialize these via the UI.

SEE ALSO:
  - calc.go: the read-side calculators
  - evidence.go: mandatory-evidence escalation checked on save
*/
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/notify"
	"github.com/BigAlzz/smon/plan"
)

// =============================================================================
// STORE - Persistence needed by the workflow
// =============================================================================

// Store is the persistence surface the workflow depends on. Implementations
// return only active rows from ListUpdates, in chronological period order.
type Store interface {
	GetTarget(ctx context.Context, id plan.TargetID) (*plan.Target, error)

	// FinancialYearForTarget resolves the financial year through the
	// target's plan item and KPA. Nil when the chain is incomplete.
	FinancialYearForTarget(ctx context.Context, id plan.TargetID) (*fiscal.FinancialYear, error)

	ListUpdates(ctx context.Context, target plan.TargetID, from, to fiscal.Date) ([]plan.ProgressUpdate, error)
	GetUpdate(ctx context.Context, id plan.UpdateID) (*plan.ProgressUpdate, error)

	// UpsertDraft writes a draft by its natural key among active rows:
	// an existing row for (target, period_start, period_end) is replaced
	// in place, otherwise a new row is created. Last write wins.
	UpsertDraft(ctx context.Context, u plan.ProgressUpdate) (plan.ProgressUpdate, error)

	SaveUpdate(ctx context.Context, u plan.ProgressUpdate) error
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store    Store
	clock    fiscal.Clock
	lock     fiscal.LockConfig
	evidence EvidenceConfig
	notifier notify.Notifier
	log      *slog.Logger
}

func NewService(store Store, clock fiscal.Clock, lock fiscal.LockConfig, evidence EvidenceConfig, notifier notify.Notifier) *Service {
	if clock == nil {
		clock = fiscal.SystemClock{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:    store,
		clock:    clock,
		lock:     lock,
		evidence: evidence,
		notifier: notifier,
		log:      slog.Default(),
	}
}

// DraftInput is a draft submission payload. Evidence may arrive either as
// an explicit list or as a newline-delimited text block.
type DraftInput struct {
	TargetID plan.TargetID

	PeriodType  plan.PeriodType
	PeriodStart fiscal.Date
	PeriodEnd   fiscal.Date
	PeriodName  string

	ActualValue decimal.Decimal
	Narrative   string

	EvidenceURLs []string
	EvidenceText string

	RiskRating        plan.RiskRating
	Issues            string
	CorrectiveActions string

	ForecastValue      *decimal.Decimal
	ForecastConfidence plan.ForecastConfidence

	Actor plan.UserID
}

// SaveDraft validates, lock-checks, and upserts a draft progress update.
// The returned update is the persisted row with normalized evidence URLs.
func (s *Service) SaveDraft(ctx context.Context, in DraftInput) (plan.ProgressUpdate, error) {
	if err := validateDraft(in); err != nil {
		return plan.ProgressUpdate{}, err
	}

	target, err := s.store.GetTarget(ctx, in.TargetID)
	if err != nil {
		return plan.ProgressUpdate{}, err
	}
	if target == nil || !target.State.IsActive() {
		return plan.ProgressUpdate{}, ErrTargetNotFound
	}

	fy, err := s.store.FinancialYearForTarget(ctx, in.TargetID)
	if err != nil {
		return plan.ProgressUpdate{}, err
	}

	today := s.clock.Today()
	if fy != nil && fiscal.IsPeriodLocked(*fy, in.PeriodEnd, today, s.lock) {
		return plan.ProgressUpdate{}, &PeriodLockedError{
			TargetID:   in.TargetID,
			PeriodEnd:  in.PeriodEnd,
			QuarterEnd: fiscal.QuarterEndFor(*fy, in.PeriodEnd),
			Today:      today,
			GraceDays:  s.lock.GraceDays,
		}
	}

	urls := in.EvidenceURLs
	if len(urls) == 0 && in.EvidenceText != "" {
		urls = ParseEvidenceURLs(in.EvidenceText)
	} else {
		urls = NormalizeEvidenceURLs(urls)
	}

	draft := plan.ProgressUpdate{
		TargetID:           in.TargetID,
		PeriodType:         in.PeriodType,
		PeriodStart:        in.PeriodStart,
		PeriodEnd:          in.PeriodEnd,
		PeriodName:         in.PeriodName,
		ActualValue:        in.ActualValue,
		Narrative:          in.Narrative,
		EvidenceURLs:       urls,
		RiskRating:         in.RiskRating,
		Issues:             in.Issues,
		CorrectiveActions:  in.CorrectiveActions,
		ForecastValue:      in.ForecastValue,
		ForecastConfidence: in.ForecastConfidence,
		State:              plan.StateActive,
		CreatedBy:          in.Actor,
		UpdatedBy:          in.Actor,
	}

	if s.evidenceMissing(ctx, *target, draft, fy, today) {
		return plan.ProgressUpdate{}, ErrEvidenceRequired
	}

	return s.store.UpsertDraft(ctx, draft)
}

// evidenceMissing checks the escalation rule; any lookup failure degrades
// to "not required" (fail-open, the consequence is a warning banner).
func (s *Service) evidenceMissing(ctx context.Context, target plan.Target, draft plan.ProgressUpdate, fy *fiscal.FinancialYear, today fiscal.Date) bool {
	if len(draft.EvidenceURLs) > 0 || fy == nil {
		return false
	}
	from := draft.PeriodEnd.AddMonths(-s.evidence.RequiredAfterMonths)
	history, err := s.store.ListUpdates(ctx, target.ID, from, draft.PeriodEnd)
	if err != nil {
		s.log.Warn("evidence history lookup failed", "target", target.ID, "error", err)
		return false
	}
	// The draft itself participates in the streak.
	history = replaceSamePeriod(history, draft)
	return EvidenceRequired(target, draft, history, *fy, today, s.evidence)
}

func replaceSamePeriod(history []plan.ProgressUpdate, draft plan.ProgressUpdate) []plan.ProgressUpdate {
	out := history[:0:0]
	for _, h := range history {
		if !h.SamePeriod(draft) {
			out = append(out, h)
		}
	}
	return append(out, draft)
}

func validateDraft(in DraftInput) error {
	switch {
	case in.TargetID == "":
		return &FieldError{Field: "target_id", Message: "this field is required"}
	case in.PeriodStart.IsZero():
		return &FieldError{Field: "period_start", Message: "this field is required"}
	case in.PeriodEnd.IsZero():
		return &FieldError{Field: "period_end", Message: "this field is required"}
	case in.PeriodEnd.Before(in.PeriodStart):
		return &FieldError{Field: "period_end", Message: "period end before period start"}
	case in.PeriodName == "":
		return &FieldError{Field: "period_name", Message: "this field is required"}
	case in.Narrative == "":
		return &FieldError{Field: "narrative", Message: "this field is required"}
	}
	return nil
}

// =============================================================================
// WORKFLOW TRANSITIONS
// =============================================================================

// Submit marks a draft as submitted and notifies approvers.
func (s *Service) Submit(ctx context.Context, id plan.UpdateID, actor plan.UserID, approvers []plan.UserID) (plan.ProgressUpdate, error) {
	u, err := s.activeUpdate(ctx, id)
	if err != nil {
		return plan.ProgressUpdate{}, err
	}

	fy, err := s.store.FinancialYearForTarget(ctx, u.TargetID)
	if err != nil {
		return plan.ProgressUpdate{}, err
	}
	today := s.clock.Today()
	if fy != nil && fiscal.IsPeriodLocked(*fy, u.PeriodEnd, today, s.lock) {
		return plan.ProgressUpdate{}, &PeriodLockedError{
			TargetID:   u.TargetID,
			PeriodEnd:  u.PeriodEnd,
			QuarterEnd: fiscal.QuarterEndFor(*fy, u.PeriodEnd),
			Today:      today,
			GraceDays:  s.lock.GraceDays,
		}
	}

	u.Submitted = true
	if u.SubmittedAt == nil {
		now := time.Now().UTC()
		u.SubmittedAt = &now
	}
	u.UpdatedBy = actor
	if err := s.store.SaveUpdate(ctx, *u); err != nil {
		return plan.ProgressUpdate{}, err
	}

	s.send(ctx, notify.Message{
		Title:       "Progress update submitted: " + u.PeriodName,
		Body:        fmt.Sprintf("Actual value %s for period %s awaits review.", u.ActualValue, u.PeriodName),
		Type:        notify.TypeApprovalRequest,
		Priority:    notify.PriorityNormal,
		Sender:      actor,
		Recipients:  approvers,
		RelatedType: "ProgressUpdate",
		RelatedID:   string(u.ID),
	})
	return *u, nil
}

// Approve records approval on a submitted update and notifies the author.
func (s *Service) Approve(ctx context.Context, id plan.UpdateID, approver plan.UserID, comments string) (plan.ProgressUpdate, error) {
	u, err := s.activeUpdate(ctx, id)
	if err != nil {
		return plan.ProgressUpdate{}, err
	}
	if !u.Submitted {
		return plan.ProgressUpdate{}, ErrNotSubmitted
	}

	u.Approved = true
	u.ApprovedBy = approver
	now := time.Now().UTC()
	u.ApprovedAt = &now
	u.ApprovalComments = comments
	u.UpdatedBy = approver
	if err := s.store.SaveUpdate(ctx, *u); err != nil {
		return plan.ProgressUpdate{}, err
	}

	s.send(ctx, notify.Message{
		Title:       "Progress update approved: " + u.PeriodName,
		Body:        "Your progress update has been approved. " + comments,
		Type:        notify.TypeApprovalResponse,
		Priority:    notify.PriorityNormal,
		Sender:      approver,
		Recipients:  []plan.UserID{u.CreatedBy},
		RelatedType: "ProgressUpdate",
		RelatedID:   string(u.ID),
	})
	return *u, nil
}

// Reject returns a submitted update to draft state for revision. Both the
// submitted and approved flags are cleared.
func (s *Service) Reject(ctx context.Context, id plan.UpdateID, approver plan.UserID, comments string) (plan.ProgressUpdate, error) {
	u, err := s.activeUpdate(ctx, id)
	if err != nil {
		return plan.ProgressUpdate{}, err
	}
	if !u.Submitted {
		return plan.ProgressUpdate{}, ErrNotSubmitted
	}

	u.Submitted = false
	u.Approved = false
	u.SubmittedAt = nil
	u.ApprovalComments = comments
	u.UpdatedBy = approver
	if err := s.store.SaveUpdate(ctx, *u); err != nil {
		return plan.ProgressUpdate{}, err
	}

	s.send(ctx, notify.Message{
		Title:       "Progress update returned for revision: " + u.PeriodName,
		Body:        "Your progress update was rejected. " + comments,
		Type:        notify.TypeApprovalResponse,
		Priority:    notify.PriorityHigh,
		Sender:      approver,
		Recipients:  []plan.UserID{u.CreatedBy},
		RelatedType: "ProgressUpdate",
		RelatedID:   string(u.ID),
	})
	return *u, nil
}

func (s *Service) activeUpdate(ctx context.Context, id plan.UpdateID) (*plan.ProgressUpdate, error) {
	u, err := s.store.GetUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.State.IsActive() {
		return nil, ErrUpdateNotFound
	}
	return u, nil
}

func (s *Service) send(ctx context.Context, msg notify.Message) {
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.log.Error("notification dispatch failed", "title", msg.Title, "error", err)
	}
}

// =============================================================================
// EVIDENCE URL NORMALIZATION
// =============================================================================

// ParseEvidenceURLs splits a newline-delimited text block into a canonical
// list of URLs: trimmed, empty lines dropped. Idempotent.
func ParseEvidenceURLs(text string) []string {
	var urls []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

// NormalizeEvidenceURLs trims an explicit list and drops empties.
func NormalizeEvidenceURLs(urls []string) []string {
	var out []string
	for _, u := range urls {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
