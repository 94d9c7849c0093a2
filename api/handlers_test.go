package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BigAlzz/smon/api"
	"github.com/BigAlzz/smon/authz"
	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
	"github.com/BigAlzz/smon/progress"
	"github.com/BigAlzz/smon/store/memory"
)

const testSecret = "test-secret-do-not-use"

type apiFixture struct {
	store  *memory.Store
	auth   *api.Authenticator
	router http.Handler
}

// newAPIFixture wires the full stack over the in-memory store with a
// fixed clock, seeded with one financial year, KPA, plan item, and a
// monthly target of 120.
func newAPIFixture(t *testing.T, today fiscal.Date) *apiFixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	fy := fiscal.FinancialYear{
		ID:       "fy-2024",
		YearCode: "FY 2024/25",
		Start:    fiscal.NewDate(2024, time.April, 1),
		End:      fiscal.NewDate(2025, time.March, 31),
		Active:   true,
	}
	require.NoError(t, st.SaveFinancialYear(ctx, fy))
	require.NoError(t, st.SaveKPA(ctx, plan.KPA{
		ID: "kpa-1", Title: "Service Delivery", FinancialYearID: fy.ID, State: plan.StateActive,
	}))
	require.NoError(t, st.SavePlanItem(ctx, plan.OperationalPlanItem{
		ID: "item-1", KPAID: "kpa-1", Output: "Facilities maintained",
		InputCost: decimal.NewFromInt(600), OutputCost: decimal.NewFromInt(400),
		State: plan.StateActive,
	}))
	target := plan.NewTarget("item-1", "Facilities maintained per month", decimal.NewFromInt(120))
	target.ID = "target-1"
	target.Periodicity = plan.Monthly
	require.NoError(t, st.SaveTarget(ctx, target))

	clock := fiscal.FixedClock{Date: today}
	svc := progress.NewService(st, clock,
		fiscal.LockConfig{Enabled: true, GraceDays: 14},
		progress.EvidenceConfig{RequiredAfterMonths: 2},
		nil)

	auth := api.NewAuthenticator(testSecret)
	h := api.NewHandler(st, svc, clock)
	return &apiFixture{store: st, auth: auth, router: api.NewRouter(h, auth)}
}

func (f *apiFixture) token(t *testing.T, userID, name string, role authz.Role) string {
	t.Helper()
	tok, err := f.auth.IssueToken(plan.UserID(userID), name, role)
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func draftBody(periodStart, periodEnd, actual string) map[string]any {
	return map[string]any{
		"period_type":  "MONTHLY",
		"period_start": periodStart,
		"period_end":   periodEnd,
		"period_name":  "Month ending " + periodEnd,
		"actual_value": actual,
		"narrative":    "Work proceeding as planned.",
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got), "body: %s", rec.Body.String())
	return got
}

// =============================================================================
// AUTHENTICATION AND CAPABILITIES
// =============================================================================

func TestAPI_MissingTokenIsRejected(t *testing.T) {
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 15))

	rec := f.request(t, http.MethodGet, "/api/dashboard", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_GarbageTokenIsRejected(t *testing.T) {
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 15))

	rec := f.request(t, http.MethodGet, "/api/dashboard", "not-a-jwt", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_CapabilityGates(t *testing.T) {
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 15))

	// Finance cannot record progress.
	finance := f.token(t, "user-fin", "Nandi", authz.Finance)
	rec := f.request(t, http.MethodPost, "/api/targets/target-1/updates", finance,
		draftBody("2024-05-01", "2024-05-31", "10"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Programme managers cannot create financial years.
	pm := f.token(t, "user-pm", "Sipho", authz.ProgrammeManager)
	rec = f.request(t, http.MethodPost, "/api/years", pm,
		map[string]any{"start_year": 2025})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// But M&E can.
	me := f.token(t, "user-me", "Thandi", authz.MEStrategy)
	rec = f.request(t, http.MethodPost, "/api/years", me,
		map[string]any{"start_year": 2025})
	assert.Equal(t, http.StatusCreated, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "FY 2025/26", got["year_code"])
}

// =============================================================================
// PROGRESS WORKFLOW OVER HTTP
// =============================================================================

func TestAPI_SaveDraft(t *testing.T) {
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 15))
	pm := f.token(t, "user-pm", "Sipho", authz.ProgrammeManager)

	rec := f.request(t, http.MethodPost, "/api/targets/target-1/updates", pm,
		draftBody("2024-05-01", "2024-05-31", "10"))

	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	got := decodeBody(t, rec)
	assert.Equal(t, "target-1", got["target_id"])
	assert.Equal(t, "10", got["actual_value"])
	assert.Equal(t, "user-pm", got["created_by"])
	assert.NotEmpty(t, got["id"])
}

func TestAPI_LockedQuarterReturns423(t *testing.T) {
	// GIVEN: today is 20 July, past Q1's 14-day grace window
	f := newAPIFixture(t, fiscal.NewDate(2024, time.July, 20))
	pm := f.token(t, "user-pm", "Sipho", authz.ProgrammeManager)

	// WHEN: saving a draft for an April period
	rec := f.request(t, http.MethodPost, "/api/targets/target-1/updates", pm,
		draftBody("2024-04-01", "2024-04-30", "10"))

	// THEN: 423 Locked, with the quarter boundary in the payload
	require.Equal(t, http.StatusLocked, rec.Code, "body: %s", rec.Body.String())
	got := decodeBody(t, rec)
	assert.Equal(t, "2024-06-30", got["quarter_end"])
	assert.Equal(t, float64(14), got["grace_days"])
}

func TestAPI_EvidenceRequiredReturns422(t *testing.T) {
	// GIVEN: April already recorded deep in the red
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 15))
	pm := f.token(t, "user-pm", "Sipho", authz.ProgrammeManager)

	rec := f.request(t, http.MethodPost, "/api/targets/target-1/updates", pm,
		draftBody("2024-04-01", "2024-04-30", "5"))
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	// WHEN: May is also red and carries no evidence
	rec = f.request(t, http.MethodPost, "/api/targets/target-1/updates", pm,
		draftBody("2024-05-01", "2024-05-31", "5"))

	// THEN: the save is refused until evidence is attached
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := draftBody("2024-05-01", "2024-05-31", "5")
	body["evidence_urls"] = []string{"https://evidence.example.gov.za/may.pdf"}
	rec = f.request(t, http.MethodPost, "/api/targets/target-1/updates", pm, body)
	assert.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
}

func TestAPI_ApproveBeforeSubmitReturns409(t *testing.T) {
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 15))
	pm := f.token(t, "user-pm", "Sipho", authz.ProgrammeManager)
	senior := f.token(t, "user-sm", "Lerato", authz.SeniorManager)

	rec := f.request(t, http.MethodPost, "/api/targets/target-1/updates", pm,
		draftBody("2024-05-01", "2024-05-31", "10"))
	require.Equal(t, http.StatusOK, rec.Code)
	updateID := decodeBody(t, rec)["id"].(string)

	rec = f.request(t, http.MethodPost, fmt.Sprintf("/api/updates/%s/approve", updateID), senior,
		map[string]any{"comments": "Looks good"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_SubmitThenApprove(t *testing.T) {
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 15))
	pm := f.token(t, "user-pm", "Sipho", authz.ProgrammeManager)
	senior := f.token(t, "user-sm", "Lerato", authz.SeniorManager)

	rec := f.request(t, http.MethodPost, "/api/targets/target-1/updates", pm,
		draftBody("2024-05-01", "2024-05-31", "10"))
	require.Equal(t, http.StatusOK, rec.Code)
	updateID := decodeBody(t, rec)["id"].(string)

	rec = f.request(t, http.MethodPost, fmt.Sprintf("/api/updates/%s/submit", updateID), pm, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["submitted"])

	rec = f.request(t, http.MethodPost, fmt.Sprintf("/api/updates/%s/approve", updateID), senior,
		map[string]any{"comments": "Verified against the monthly report"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	got := decodeBody(t, rec)
	assert.Equal(t, true, got["approved"])
	assert.Equal(t, "user-sm", got["approved_by"])
}

func TestAPI_UnknownTargetReturns404(t *testing.T) {
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 15))
	pm := f.token(t, "user-pm", "Sipho", authz.ProgrammeManager)

	rec := f.request(t, http.MethodPost, "/api/targets/nope/updates", pm,
		draftBody("2024-05-01", "2024-05-31", "10"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// READ MODELS OVER HTTP
// =============================================================================

func TestAPI_Dashboard(t *testing.T) {
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 30))
	pm := f.token(t, "user-pm", "Sipho", authz.ProgrammeManager)

	rec := f.request(t, http.MethodPost, "/api/targets/target-1/updates", pm,
		draftBody("2024-05-01", "2024-05-31", "30"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/dashboard", pm, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	got := decodeBody(t, rec)
	cards := got["cards"].([]any)
	require.Len(t, cards, 1)
	card := cards[0].(map[string]any)
	assert.Equal(t, "kpa-1", card["kpa_id"])
	// Monthly 120 -> 30 YTD target at end of June, met exactly.
	assert.Equal(t, "30", card["ytd_target"])
	assert.Equal(t, "GREEN", card["rag"])

	summary := got["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["on_track"])
	assert.Equal(t, "1000", summary["total_planned"])
}

func TestAPI_DrilldownUnknownKPAReturns404(t *testing.T) {
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 15))
	pm := f.token(t, "user-pm", "Sipho", authz.ProgrammeManager)

	rec := f.request(t, http.MethodGet, "/api/kpas/nope/drilldown", pm, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_TargetStatus(t *testing.T) {
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 30))
	pm := f.token(t, "user-pm", "Sipho", authz.ProgrammeManager)

	rec := f.request(t, http.MethodPost, "/api/targets/target-1/updates", pm,
		draftBody("2024-05-01", "2024-05-31", "25"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/targets/target-1/status", pm, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	got := decodeBody(t, rec)
	assert.Equal(t, "AMBER", got["rag"]) // 25/30 = 83%
	assert.Equal(t, "30", got["ytd_target"])
	assert.Equal(t, "25", got["ytd_actual"])
	assert.Equal(t, "-5", got["variance"])
}

func TestAPI_CostLines(t *testing.T) {
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 15))
	fin := f.token(t, "user-fin", "Nandi", authz.Finance)

	rec := f.request(t, http.MethodPost, "/api/items/item-1/costlines", fin, map[string]any{
		"cost_type":         "OPERATIONAL",
		"description":       "Maintenance contractor",
		"budgeted_amount":   "300",
		"actual_spend":      "120",
		"cost_period_start": "2024-04-01",
		"cost_period_end":   "2024-04-30",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	rec = f.request(t, http.MethodGet, "/api/items/item-1/costlines", fin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lines []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, "120", lines[0]["actual_spend"])
	assert.Equal(t, "40.00", lines[0]["spend_percentage"])

	// Programme managers cannot write cost lines.
	pm := f.token(t, "user-pm", "Sipho", authz.ProgrammeManager)
	rec = f.request(t, http.MethodPost, "/api/items/item-1/costlines", pm, map[string]any{
		"cost_type":         "OPERATIONAL",
		"budgeted_amount":   "1",
		"actual_spend":      "1",
		"cost_period_start": "2024-05-01",
		"cost_period_end":   "2024-05-31",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_ListYears(t *testing.T) {
	f := newAPIFixture(t, fiscal.NewDate(2024, time.June, 15))
	pm := f.token(t, "user-pm", "Sipho", authz.ProgrammeManager)

	rec := f.request(t, http.MethodGet, "/api/years", pm, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var years []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &years))
	require.Len(t, years, 1)
	assert.Equal(t, "FY 2024/25", years[0]["year_code"])
	assert.Equal(t, true, years[0]["is_active"])

	rec = f.request(t, http.MethodGet, "/api/years/active", pm, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fy-2024", decodeBody(t, rec)["id"])
}
