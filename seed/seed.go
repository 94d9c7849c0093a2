/*
Package seed provides JSON to Go plan conversion.

PURPOSE:
  Converts JSON annual-plan definitions into domain structs and loads
  them into a store. This enables plan configuration without code
  changes - M&E staff can capture the approved operational plan in
  JSON, and the loader creates the proper records at startup.

WHY JSON?
  - Non-developers can capture the plan
  - Version control for approved plan documents
  - Repeatable provisioning of dev and demo environments

JSON SCHEMA:
  {
    "financial_year": {
      "start_year": 2024,
      "is_active": true,
      "description": "Approved annual performance plan"
    },
    "kpas": [
      {
        "id": "kpa-service-delivery",
        "title": "Service Delivery",
        "owner_name": "DDG: Operations",
        "items": [
          {
            "id": "item-facilities",
            "output": "Facilities maintained",
            "input_cost": "600000",
            "output_cost": "400000",
            "targets": [
              {
                "id": "target-facilities-monthly",
                "name": "Facilities maintained per month",
                "annual_value": "120",
                "periodicity": "MONTHLY"
              }
            ]
          }
        ]
      }
    ]
  }

KEY FEATURES:
  - Validates structure before writing anything
  - Sets sensible defaults (annual periodicity, 95/80 thresholds)
  - Stable IDs from the file, so reloading is idempotent
  - Optional cost lines per plan item

USAGE:
  loader := seed.NewLoader(store)
  if err := loader.LoadFile(ctx, "plan-2024.json"); err != nil { ... }

SEE ALSO:
  - plan/: domain types the loader produces
  - cmd/server/main.go: loads SEED_FILE when configured
*/
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of one financial year's plan.
type PlanJSON struct {
	FinancialYear YearJSON  `json:"financial_year"`
	KPAs          []KPAJSON `json:"kpas"`
}

type YearJSON struct {
	ID          string `json:"id,omitempty"`
	StartYear   int    `json:"start_year"`
	IsActive    bool   `json:"is_active,omitempty"`
	Description string `json:"description,omitempty"`
}

type KPAJSON struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	StrategicObjective string     `json:"strategic_objective,omitempty"`
	OwnerID            string     `json:"owner_id,omitempty"`
	OwnerName          string     `json:"owner_name,omitempty"`
	OrgUnit            string     `json:"org_unit,omitempty"`
	Order              int        `json:"order,omitempty"`
	Items              []ItemJSON `json:"items,omitempty"`
}

type ItemJSON struct {
	ID                 string         `json:"id"`
	Output             string         `json:"output"`
	Indicator          string         `json:"indicator,omitempty"`
	Activities         []string       `json:"activities,omitempty"`
	Inputs             []string       `json:"inputs,omitempty"`
	InputCost          string         `json:"input_cost,omitempty"`
	OutputCost         string         `json:"output_cost,omitempty"`
	ResponsibleOfficer string         `json:"responsible_officer,omitempty"`
	UnitSubdirectorate string         `json:"unit_subdirectorate,omitempty"`
	Targets            []TargetJSON   `json:"targets,omitempty"`
	CostLines          []CostLineJSON `json:"cost_lines,omitempty"`
}

type TargetJSON struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AnnualValue    string `json:"annual_value"`
	Unit           string `json:"unit,omitempty"`
	Baseline       string `json:"baseline,omitempty"`
	Periodicity    string `json:"periodicity,omitempty"` // MONTHLY, QUARTERLY, ANNUAL, MILESTONE
	DueDate        string `json:"due_date,omitempty"`
	GreenThreshold string `json:"green_threshold,omitempty"`
	AmberThreshold string `json:"amber_threshold,omitempty"`
}

type CostLineJSON struct {
	ID              string `json:"id"`
	CostType        string `json:"cost_type,omitempty"`
	Description     string `json:"description,omitempty"`
	BudgetedAmount  string `json:"budgeted_amount,omitempty"`
	ActualSpend     string `json:"actual_spend,omitempty"`
	CostPeriodStart string `json:"cost_period_start"`
	CostPeriodEnd   string `json:"cost_period_end"`
	FundingSource   string `json:"funding_source,omitempty"`
}

// =============================================================================
// LOADER
// =============================================================================

// Store is the write surface the loader needs.
type Store interface {
	SaveFinancialYear(ctx context.Context, fy fiscal.FinancialYear) error
	SaveKPA(ctx context.Context, k plan.KPA) error
	SavePlanItem(ctx context.Context, item plan.OperationalPlanItem) error
	SaveTarget(ctx context.Context, t plan.Target) error
	SaveCostLine(ctx context.Context, cl plan.CostLine) error
}

// Loader provisions a store from a plan definition.
type Loader struct {
	store Store
}

func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// LoadFile reads and loads a plan definition file.
func (l *Loader) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	return l.Load(ctx, data)
}

// Load parses a JSON plan definition and writes it to the store. IDs
// come from the file, so loading the same file twice overwrites rather
// than duplicates.
func (l *Loader) Load(ctx context.Context, data []byte) error {
	var pj PlanJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	if err := validate(pj); err != nil {
		return err
	}

	fy := fiscal.NewSAFinancialYear(pj.FinancialYear.StartYear)
	fy.ID = pj.FinancialYear.ID
	if fy.ID == "" {
		fy.ID = fmt.Sprintf("fy-%d", pj.FinancialYear.StartYear)
	}
	fy.Active = pj.FinancialYear.IsActive
	fy.Description = pj.FinancialYear.Description
	if err := l.store.SaveFinancialYear(ctx, fy); err != nil {
		return fmt.Errorf("failed to save financial year: %w", err)
	}

	for i, kj := range pj.KPAs {
		if err := l.loadKPA(ctx, fy.ID, i, kj); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) loadKPA(ctx context.Context, fyID string, index int, kj KPAJSON) error {
	order := kj.Order
	if order == 0 {
		order = index + 1
	}
	k := plan.KPA{
		ID:                 plan.KPAID(kj.ID),
		Title:              kj.Title,
		Description:        kj.Description,
		StrategicObjective: kj.StrategicObjective,
		OwnerID:            plan.UserID(kj.OwnerID),
		OwnerName:          kj.OwnerName,
		FinancialYearID:    fyID,
		OrgUnit:            kj.OrgUnit,
		Order:              order,
		State:              plan.StateActive,
	}
	if err := l.store.SaveKPA(ctx, k); err != nil {
		return fmt.Errorf("failed to save KPA %s: %w", kj.ID, err)
	}

	for _, ij := range kj.Items {
		if err := l.loadItem(ctx, k.ID, ij); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) loadItem(ctx context.Context, kpaID plan.KPAID, ij ItemJSON) error {
	inputCost, err := parseAmount(ij.InputCost)
	if err != nil {
		return fmt.Errorf("plan item %s: invalid input_cost: %w", ij.ID, err)
	}
	outputCost, err := parseAmount(ij.OutputCost)
	if err != nil {
		return fmt.Errorf("plan item %s: invalid output_cost: %w", ij.ID, err)
	}

	item := plan.OperationalPlanItem{
		ID:                 plan.PlanItemID(ij.ID),
		KPAID:              kpaID,
		Output:             ij.Output,
		Indicator:          ij.Indicator,
		Activities:         ij.Activities,
		Inputs:             ij.Inputs,
		InputCost:          inputCost,
		OutputCost:         outputCost,
		ResponsibleOfficer: ij.ResponsibleOfficer,
		UnitSubdirectorate: ij.UnitSubdirectorate,
		State:              plan.StateActive,
	}
	if err := l.store.SavePlanItem(ctx, item); err != nil {
		return fmt.Errorf("failed to save plan item %s: %w", ij.ID, err)
	}

	for _, tj := range ij.Targets {
		if err := l.loadTarget(ctx, item.ID, tj); err != nil {
			return err
		}
	}
	for _, cj := range ij.CostLines {
		if err := l.loadCostLine(ctx, item.ID, cj); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) loadTarget(ctx context.Context, itemID plan.PlanItemID, tj TargetJSON) error {
	value, err := parseAmount(tj.AnnualValue)
	if err != nil {
		return fmt.Errorf("target %s: invalid annual_value: %w", tj.ID, err)
	}

	t := plan.NewTarget(itemID, tj.Name, value)
	t.ID = plan.TargetID(tj.ID)
	if tj.Unit != "" {
		t.Unit = plan.Unit(tj.Unit)
	}
	if tj.Periodicity != "" {
		t.Periodicity = plan.Periodicity(tj.Periodicity)
	}
	if tj.Baseline != "" {
		if t.Baseline, err = decimal.NewFromString(tj.Baseline); err != nil {
			return fmt.Errorf("target %s: invalid baseline: %w", tj.ID, err)
		}
	}
	if tj.GreenThreshold != "" {
		if t.GreenThreshold, err = decimal.NewFromString(tj.GreenThreshold); err != nil {
			return fmt.Errorf("target %s: invalid green_threshold: %w", tj.ID, err)
		}
	}
	if tj.AmberThreshold != "" {
		if t.AmberThreshold, err = decimal.NewFromString(tj.AmberThreshold); err != nil {
			return fmt.Errorf("target %s: invalid amber_threshold: %w", tj.ID, err)
		}
	}
	if tj.DueDate != "" {
		if t.DueDate, err = fiscal.ParseDate(tj.DueDate); err != nil {
			return fmt.Errorf("target %s: invalid due_date: %w", tj.ID, err)
		}
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("target %s: %w", tj.ID, err)
	}

	if err := l.store.SaveTarget(ctx, t); err != nil {
		return fmt.Errorf("failed to save target %s: %w", tj.ID, err)
	}
	return nil
}

func (l *Loader) loadCostLine(ctx context.Context, itemID plan.PlanItemID, cj CostLineJSON) error {
	budgeted, err := parseAmount(cj.BudgetedAmount)
	if err != nil {
		return fmt.Errorf("cost line %s: invalid budgeted_amount: %w", cj.ID, err)
	}
	actual, err := parseAmount(cj.ActualSpend)
	if err != nil {
		return fmt.Errorf("cost line %s: invalid actual_spend: %w", cj.ID, err)
	}
	start, err := fiscal.ParseDate(cj.CostPeriodStart)
	if err != nil {
		return fmt.Errorf("cost line %s: invalid cost_period_start: %w", cj.ID, err)
	}
	end, err := fiscal.ParseDate(cj.CostPeriodEnd)
	if err != nil {
		return fmt.Errorf("cost line %s: invalid cost_period_end: %w", cj.ID, err)
	}

	costType := plan.CostType(cj.CostType)
	if cj.CostType == "" {
		costType = plan.CostOperational
	}

	cl := plan.CostLine{
		ID:              plan.CostLineID(cj.ID),
		PlanItemID:      itemID,
		CostType:        costType,
		Description:     cj.Description,
		BudgetedAmount:  budgeted,
		ActualSpend:     actual,
		CostPeriodStart: start,
		CostPeriodEnd:   end,
		FundingSource:   plan.FundingSource(cj.FundingSource),
		State:           plan.StateActive,
	}
	if err := l.store.SaveCostLine(ctx, cl); err != nil {
		return fmt.Errorf("failed to save cost line %s: %w", cj.ID, err)
	}
	return nil
}

// =============================================================================
// VALIDATION AND PARSING HELPERS
// =============================================================================

func validate(pj PlanJSON) error {
	if pj.FinancialYear.StartYear < 2000 || pj.FinancialYear.StartYear > 2100 {
		return fmt.Errorf("financial_year.start_year out of range: %d", pj.FinancialYear.StartYear)
	}
	for _, kj := range pj.KPAs {
		if kj.ID == "" || kj.Title == "" {
			return fmt.Errorf("every KPA requires an id and a title")
		}
		for _, ij := range kj.Items {
			if ij.ID == "" || ij.Output == "" {
				return fmt.Errorf("KPA %s: every plan item requires an id and an output", kj.ID)
			}
			for _, tj := range ij.Targets {
				if tj.ID == "" || tj.Name == "" {
					return fmt.Errorf("plan item %s: every target requires an id and a name", ij.ID)
				}
			}
			for _, cj := range ij.CostLines {
				if cj.ID == "" {
					return fmt.Errorf("plan item %s: every cost line requires an id", ij.ID)
				}
			}
		}
	}
	return nil
}

// parseAmount parses a decimal string, treating empty as zero.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
