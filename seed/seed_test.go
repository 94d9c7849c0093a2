package seed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BigAlzz/smon/plan"
	"github.com/BigAlzz/smon/seed"
	"github.com/BigAlzz/smon/store/memory"
)

const planJSON = `{
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
          "unit_subdirectorate": "Directorate A",
          "targets": [
            {
              "id": "target-facilities-monthly",
              "name": "Facilities maintained per month",
              "annual_value": "120",
              "periodicity": "MONTHLY"
            }
          ],
          "cost_lines": [
            {
              "id": "cl-april",
              "budgeted_amount": "80000",
              "actual_spend": "20000",
              "cost_period_start": "2024-04-01",
              "cost_period_end": "2024-04-30"
            }
          ]
        }
      ]
    }
  ]
}`

func TestLoad(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	require.NoError(t, seed.NewLoader(st).Load(ctx, []byte(planJSON)))

	fy, err := st.ActiveFinancialYear(ctx)
	require.NoError(t, err)
	require.NotNil(t, fy)
	assert.Equal(t, "fy-2024", fy.ID)
	assert.Equal(t, "FY 2024/25", fy.YearCode)

	kpas, err := st.ListKPAs(ctx, fy.ID)
	require.NoError(t, err)
	require.Len(t, kpas, 1)
	assert.Equal(t, "Service Delivery", kpas[0].Title)
	assert.Equal(t, 1, kpas[0].Order)

	items, err := st.ListPlanItems(ctx, kpas[0].ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "600000", items[0].InputCost.String())

	targets, err := st.ListTargets(ctx, items[0].ID)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, plan.Monthly, targets[0].Periodicity)
	assert.Equal(t, "120", targets[0].Value.String())
	// Defaults carried from the standard target constructor.
	assert.Equal(t, "95", targets[0].GreenThreshold.String())

	lines, err := st.ListCostLines(ctx, items[0].ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "20000", lines[0].ActualSpend.String())
}

func TestLoad_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	loader := seed.NewLoader(st)

	require.NoError(t, loader.Load(ctx, []byte(planJSON)))
	require.NoError(t, loader.Load(ctx, []byte(planJSON)))

	kpas, err := st.ListKPAs(ctx, "fy-2024")
	require.NoError(t, err)
	assert.Len(t, kpas, 1)

	targets, err := st.ListTargets(ctx, "item-facilities")
	require.NoError(t, err)
	assert.Len(t, targets, 1)
}

func TestLoad_RejectsInvalidDefinitions(t *testing.T) {
	ctx := context.Background()
	loader := seed.NewLoader(memory.New())

	assert.Error(t, loader.Load(ctx, []byte(`not json`)))
	assert.Error(t, loader.Load(ctx, []byte(`{"financial_year":{"start_year":1800}}`)))
	assert.Error(t, loader.Load(ctx, []byte(`{
	  "financial_year": {"start_year": 2024},
	  "kpas": [{"id": "", "title": "No ID"}]
	}`)))
	assert.Error(t, loader.Load(ctx, []byte(`{
	  "financial_year": {"start_year": 2024},
	  "kpas": [{"id": "k", "title": "K", "items": [
	    {"id": "i", "output": "O", "targets": [
	      {"id": "t", "name": "T", "annual_value": "not-a-number"}
	    ]}
	  ]}]
	}`)))
}
