/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Persists the plan hierarchy (financial years, KPAs, plan items, targets),
  progress updates, and cost lines. In production the same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  progress.Store: target lookup, period-bound update queries, draft upsert
  rollup.Store:   read side for dashboard and drilldown aggregation

SOFT DELETE:
  Rows are never deleted. Archiving flips the state column to ARCHIVED;
  list queries filter on state so archived rows stay out of calculations
  but remain available for audit.

KEY INVARIANTS ENFORCED HERE:
  - At most one active financial year: activating a year deactivates the
    rest inside the same transaction.
  - At most one active progress update per (target, period_start,
    period_end): UpsertDraft resolves the natural key before writing.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/smon.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - progress/service.go: the write path that calls UpsertDraft
  - rollup/rollup.go: the read path over ListKPAs/ListTargets/ListUpdates
  - store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
)

// Store implements the progress and rollup storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Financial years (South African fiscal calendar, 1 Apr - 31 Mar)
	CREATE TABLE IF NOT EXISTS financial_years (
		id TEXT PRIMARY KEY,
		year_code TEXT NOT NULL UNIQUE,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		description TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_financial_years_active
		ON financial_years(is_active) WHERE is_active = TRUE;

	-- Key Performance Areas
	CREATE TABLE IF NOT EXISTS kpas (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		strategic_objective TEXT,
		owner_id TEXT,
		owner_name TEXT,
		financial_year_id TEXT NOT NULL REFERENCES financial_years(id),
		org_unit TEXT,
		ordering INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_kpas_year
		ON kpas(financial_year_id, state);

	-- One active KPA per title within a financial year.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_kpas_unique_title
		ON kpas(financial_year_id, title) WHERE state = 'ACTIVE';

	-- Operational plan items
	CREATE TABLE IF NOT EXISTS plan_items (
		id TEXT PRIMARY KEY,
		kpa_id TEXT NOT NULL REFERENCES kpas(id),
		output TEXT NOT NULL,
		indicator TEXT,
		target_description TEXT,
		activities_json TEXT,
		inputs_json TEXT,
		input_cost TEXT NOT NULL DEFAULT '0',
		output_cost TEXT NOT NULL DEFAULT '0',
		timeframe TEXT,
		start_date TEXT,
		end_date TEXT,
		budget_programme TEXT,
		budget_objective TEXT,
		budget_responsibility TEXT,
		responsible_officer TEXT,
		unit_subdirectorate TEXT,
		office TEXT,
		priority TEXT,
		notes TEXT,
		state TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plan_items_kpa
		ON plan_items(kpa_id, state);

	-- Targets
	CREATE TABLE IF NOT EXISTS targets (
		id TEXT PRIMARY KEY,
		plan_item_id TEXT NOT NULL REFERENCES plan_items(id),
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		unit TEXT NOT NULL,
		baseline TEXT NOT NULL DEFAULT '0',
		due_date TEXT,
		periodicity TEXT NOT NULL,
		green_threshold TEXT NOT NULL DEFAULT '0',
		amber_threshold TEXT NOT NULL DEFAULT '0',
		positive_tolerance TEXT NOT NULL DEFAULT '0',
		negative_tolerance TEXT NOT NULL DEFAULT '0',
		is_cumulative BOOLEAN NOT NULL DEFAULT TRUE,
		state TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_targets_item
		ON targets(plan_item_id, state);

	-- Progress updates
	CREATE TABLE IF NOT EXISTS progress_updates (
		id TEXT PRIMARY KEY,
		target_id TEXT NOT NULL REFERENCES targets(id),
		period_type TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		period_name TEXT,
		actual_value TEXT NOT NULL,
		narrative TEXT,
		evidence_urls_json TEXT,
		risk_rating TEXT,
		issues TEXT,
		corrective_actions TEXT,
		forecast_value TEXT,
		forecast_confidence TEXT,
		is_submitted BOOLEAN NOT NULL DEFAULT FALSE,
		submitted_at TEXT,
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		approved_by TEXT,
		approved_at TEXT,
		approval_comments TEXT,
		state TEXT NOT NULL DEFAULT 'ACTIVE',
		created_by TEXT,
		updated_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one active update per target and reporting period.
	-- Drafts for the same period must update in place, not stack up.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_updates_unique_period
		ON progress_updates(target_id, period_start, period_end)
		WHERE state = 'ACTIVE';

	-- Composite index for YTD queries (hot path)
	CREATE INDEX IF NOT EXISTS idx_updates_target_period
		ON progress_updates(target_id, period_end);

	-- Cost lines
	CREATE TABLE IF NOT EXISTS cost_lines (
		id TEXT PRIMARY KEY,
		plan_item_id TEXT NOT NULL REFERENCES plan_items(id),
		cost_type TEXT NOT NULL,
		description TEXT,
		budgeted_amount TEXT NOT NULL DEFAULT '0',
		committed_amount TEXT NOT NULL DEFAULT '0',
		actual_spend TEXT NOT NULL DEFAULT '0',
		cost_period_start TEXT NOT NULL,
		cost_period_end TEXT NOT NULL,
		funding_source TEXT,
		purchase_order_number TEXT,
		supplier_vendor TEXT,
		state TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cost_lines_item
		ON cost_lines(plan_item_id, state);
	CREATE INDEX IF NOT EXISTS idx_cost_lines_period
		ON cost_lines(cost_period_start, cost_period_end);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FINANCIAL YEARS
// =============================================================================

// SaveFinancialYear inserts or updates a year. Activating a year
// deactivates every other year inside the same transaction, so at most
// one row is active at any time.
func (s *Store) SaveFinancialYear(ctx context.Context, fy fiscal.FinancialYear) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fy.ID == "" {
		fy.ID = plan.NewID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if fy.Active {
		if _, err := tx.ExecContext(ctx,
			"UPDATE financial_years SET is_active = FALSE WHERE id != ?", fy.ID,
		); err != nil {
			return fmt.Errorf("failed to deactivate other years: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO financial_years (id, year_code, start_date, end_date, is_active, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			year_code = excluded.year_code,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			is_active = excluded.is_active,
			description = excluded.description,
			updated_at = excluded.updated_at`,
		fy.ID, fy.YearCode, fy.Start.String(), fy.End.String(),
		fy.Active, fy.Description, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save financial year: %w", err)
	}

	return tx.Commit()
}

// GetFinancialYear retrieves a year by ID. Returns nil when not found.
func (s *Store) GetFinancialYear(ctx context.Context, id string) (*fiscal.FinancialYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryFinancialYear(ctx,
		"SELECT id, year_code, start_date, end_date, is_active, description FROM financial_years WHERE id = ?", id)
}

// ActiveFinancialYear returns the single active year, or nil if none.
func (s *Store) ActiveFinancialYear(ctx context.Context) (*fiscal.FinancialYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryFinancialYear(ctx,
		"SELECT id, year_code, start_date, end_date, is_active, description FROM financial_years WHERE is_active = TRUE LIMIT 1")
}

// ListFinancialYears returns all years, newest first.
func (s *Store) ListFinancialYears(ctx context.Context) ([]fiscal.FinancialYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, year_code, start_date, end_date, is_active, description FROM financial_years ORDER BY start_date DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []fiscal.FinancialYear
	for rows.Next() {
		fy, err := scanFinancialYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, fy)
	}
	return years, rows.Err()
}

func (s *Store) queryFinancialYear(ctx context.Context, query string, args ...any) (*fiscal.FinancialYear, error) {
	var (
		fy          fiscal.FinancialYear
		start, end  string
		description sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&fy.ID, &fy.YearCode, &start, &end, &fy.Active, &description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fy.Start, _ = fiscal.ParseDate(start)
	fy.End, _ = fiscal.ParseDate(end)
	fy.Description = description.String
	return &fy, nil
}

func scanFinancialYear(rows *sql.Rows) (fiscal.FinancialYear, error) {
	var (
		fy          fiscal.FinancialYear
		start, end  string
		description sql.NullString
	)
	if err := rows.Scan(&fy.ID, &fy.YearCode, &start, &end, &fy.Active, &description); err != nil {
		return fy, fmt.Errorf("failed to scan financial year: %w", err)
	}
	fy.Start, _ = fiscal.ParseDate(start)
	fy.End, _ = fiscal.ParseDate(end)
	fy.Description = description.String
	return fy, nil
}

// =============================================================================
// KPAS
// =============================================================================

// SaveKPA inserts or updates a KPA.
func (s *Store) SaveKPA(ctx context.Context, k plan.KPA) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kpas (id, title, description, strategic_objective, owner_id, owner_name,
			financial_year_id, org_unit, ordering, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			strategic_objective = excluded.strategic_objective,
			owner_id = excluded.owner_id,
			owner_name = excluded.owner_name,
			org_unit = excluded.org_unit,
			ordering = excluded.ordering,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		k.ID, k.Title, k.Description, k.StrategicObjective, k.OwnerID, k.OwnerName,
		k.FinancialYearID, k.OrgUnit, k.Order, stateOrActive(k.State), now, now,
	)
	return err
}

// GetKPA retrieves a KPA by ID. Returns nil when not found.
func (s *Store) GetKPA(ctx context.Context, id plan.KPAID) (*plan.KPA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var k plan.KPA
	var description, objective, ownerName, orgUnit sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, strategic_objective, owner_id, owner_name,
		       financial_year_id, org_unit, ordering, state
		FROM kpas WHERE id = ?`, id,
	).Scan(&k.ID, &k.Title, &description, &objective, &k.OwnerID, &ownerName,
		&k.FinancialYearID, &orgUnit, &k.Order, &k.State)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	k.Description = description.String
	k.StrategicObjective = objective.String
	k.OwnerName = ownerName.String
	k.OrgUnit = orgUnit.String
	return &k, nil
}

// ListKPAs returns active KPAs for a year in display order.
func (s *Store) ListKPAs(ctx context.Context, financialYearID string) ([]plan.KPA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, strategic_objective, owner_id, owner_name,
		       financial_year_id, org_unit, ordering, state
		FROM kpas
		WHERE financial_year_id = ? AND state = 'ACTIVE'
		ORDER BY ordering ASC, title ASC`, financialYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kpas []plan.KPA
	for rows.Next() {
		var k plan.KPA
		var description, objective, ownerName, orgUnit sql.NullString
		if err := rows.Scan(&k.ID, &k.Title, &description, &objective, &k.OwnerID, &ownerName,
			&k.FinancialYearID, &orgUnit, &k.Order, &k.State); err != nil {
			return nil, fmt.Errorf("failed to scan kpa: %w", err)
		}
		k.Description = description.String
		k.StrategicObjective = objective.String
		k.OwnerName = ownerName.String
		k.OrgUnit = orgUnit.String
		kpas = append(kpas, k)
	}
	return kpas, rows.Err()
}

// =============================================================================
// PLAN ITEMS
// =============================================================================

// SavePlanItem inserts or updates a plan item.
func (s *Store) SavePlanItem(ctx context.Context, item plan.OperationalPlanItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	activitiesJSON, _ := json.Marshal(item.Activities)
	inputsJSON, _ := json.Marshal(item.Inputs)

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plan_items (id, kpa_id, output, indicator, target_description,
			activities_json, inputs_json, input_cost, output_cost, timeframe,
			start_date, end_date, budget_programme, budget_objective, budget_responsibility,
			responsible_officer, unit_subdirectorate, office, priority, notes, state,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			output = excluded.output,
			indicator = excluded.indicator,
			target_description = excluded.target_description,
			activities_json = excluded.activities_json,
			inputs_json = excluded.inputs_json,
			input_cost = excluded.input_cost,
			output_cost = excluded.output_cost,
			timeframe = excluded.timeframe,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			budget_programme = excluded.budget_programme,
			budget_objective = excluded.budget_objective,
			budget_responsibility = excluded.budget_responsibility,
			responsible_officer = excluded.responsible_officer,
			unit_subdirectorate = excluded.unit_subdirectorate,
			office = excluded.office,
			priority = excluded.priority,
			notes = excluded.notes,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		item.ID, item.KPAID, item.Output, item.Indicator, item.TargetDescription,
		string(activitiesJSON), string(inputsJSON),
		item.InputCost.String(), item.OutputCost.String(), item.Timeframe,
		nullTime(item.StartDate), nullTime(item.EndDate),
		item.BudgetProgramme, item.BudgetObjective, item.BudgetResponsibility,
		item.ResponsibleOfficer, item.UnitSubdirectorate, item.Office,
		item.Priority, item.Notes, stateOrActive(item.State), now, now,
	)
	return err
}

// ListPlanItems returns active plan items under a KPA.
func (s *Store) ListPlanItems(ctx context.Context, kpa plan.KPAID) ([]plan.OperationalPlanItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kpa_id, output, indicator, target_description,
		       activities_json, inputs_json, input_cost, output_cost, timeframe,
		       start_date, end_date, budget_programme, budget_objective, budget_responsibility,
		       responsible_officer, unit_subdirectorate, office, priority, notes, state
		FROM plan_items
		WHERE kpa_id = ? AND state = 'ACTIVE'
		ORDER BY id ASC`, kpa)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []plan.OperationalPlanItem
	for rows.Next() {
		item, err := scanPlanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanPlanItem(rows *sql.Rows) (plan.OperationalPlanItem, error) {
	var (
		item                          plan.OperationalPlanItem
		indicator, targetDesc         sql.NullString
		activitiesJSON, inputsJSON    sql.NullString
		inputCost, outputCost         string
		timeframe, startDate, endDate sql.NullString
		budgetProg, budgetObj         sql.NullString
		budgetResp, officer           sql.NullString
		unit, office, priority, notes sql.NullString
	)

	err := rows.Scan(&item.ID, &item.KPAID, &item.Output, &indicator, &targetDesc,
		&activitiesJSON, &inputsJSON, &inputCost, &outputCost, &timeframe,
		&startDate, &endDate, &budgetProg, &budgetObj, &budgetResp,
		&officer, &unit, &office, &priority, &notes, &item.State)
	if err != nil {
		return item, fmt.Errorf("failed to scan plan item: %w", err)
	}

	item.Indicator = indicator.String
	item.TargetDescription = targetDesc.String
	if activitiesJSON.Valid && activitiesJSON.String != "" {
		json.Unmarshal([]byte(activitiesJSON.String), &item.Activities)
	}
	if inputsJSON.Valid && inputsJSON.String != "" {
		json.Unmarshal([]byte(inputsJSON.String), &item.Inputs)
	}
	item.InputCost = parseDecimal(inputCost)
	item.OutputCost = parseDecimal(outputCost)
	item.Timeframe = timeframe.String
	item.StartDate = parseTimePtr(startDate)
	item.EndDate = parseTimePtr(endDate)
	item.BudgetProgramme = budgetProg.String
	item.BudgetObjective = budgetObj.String
	item.BudgetResponsibility = budgetResp.String
	item.ResponsibleOfficer = officer.String
	item.UnitSubdirectorate = unit.String
	item.Office = office.String
	item.Priority = plan.Priority(priority.String)
	item.Notes = notes.String
	return item, nil
}

// =============================================================================
// TARGETS
// =============================================================================

// SaveTarget inserts or updates a target.
func (s *Store) SaveTarget(ctx context.Context, t plan.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO targets (id, plan_item_id, name, value, unit, baseline, due_date,
			periodicity, green_threshold, amber_threshold, positive_tolerance,
			negative_tolerance, is_cumulative, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			value = excluded.value,
			unit = excluded.unit,
			baseline = excluded.baseline,
			due_date = excluded.due_date,
			periodicity = excluded.periodicity,
			green_threshold = excluded.green_threshold,
			amber_threshold = excluded.amber_threshold,
			positive_tolerance = excluded.positive_tolerance,
			negative_tolerance = excluded.negative_tolerance,
			is_cumulative = excluded.is_cumulative,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		t.ID, t.PlanItemID, t.Name, t.Value.String(), t.Unit, t.Baseline.String(),
		nullDate(t.DueDate), t.Periodicity,
		t.GreenThreshold.String(), t.AmberThreshold.String(),
		t.PositiveTolerance.String(), t.NegativeTolerance.String(),
		t.IsCumulative, stateOrActive(t.State), now, now,
	)
	return err
}

// GetTarget retrieves a target by ID. Returns nil when not found.
func (s *Store) GetTarget(ctx context.Context, id plan.TargetID) (*plan.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, targetSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	t, err := scanTarget(rows)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTargets returns active targets under a plan item, earliest due first.
func (s *Store) ListTargets(ctx context.Context, item plan.PlanItemID) ([]plan.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		targetSelect+" WHERE plan_item_id = ? AND state = 'ACTIVE' ORDER BY due_date ASC", item)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []plan.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// FinancialYearForTarget walks target -> plan item -> KPA to the year the
// target reports against.
func (s *Store) FinancialYearForTarget(ctx context.Context, id plan.TargetID) (*fiscal.FinancialYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryFinancialYear(ctx, `
		SELECT fy.id, fy.year_code, fy.start_date, fy.end_date, fy.is_active, fy.description
		FROM targets t
		JOIN plan_items pi ON pi.id = t.plan_item_id
		JOIN kpas k ON k.id = pi.kpa_id
		JOIN financial_years fy ON fy.id = k.financial_year_id
		WHERE t.id = ?`, id)
}

const targetSelect = `
	SELECT id, plan_item_id, name, value, unit, baseline, due_date, periodicity,
	       green_threshold, amber_threshold, positive_tolerance, negative_tolerance,
	       is_cumulative, state
	FROM targets`

func scanTarget(rows *sql.Rows) (plan.Target, error) {
	var (
		t                    plan.Target
		value, baseline      string
		dueDate              sql.NullString
		green, amber         string
		posTol, negTol       string
	)
	err := rows.Scan(&t.ID, &t.PlanItemID, &t.Name, &value, &t.Unit, &baseline,
		&dueDate, &t.Periodicity, &green, &amber, &posTol, &negTol,
		&t.IsCumulative, &t.State)
	if err != nil {
		return t, fmt.Errorf("failed to scan target: %w", err)
	}
	t.Value = parseDecimal(value)
	t.Baseline = parseDecimal(baseline)
	if dueDate.Valid {
		t.DueDate, _ = fiscal.ParseDate(dueDate.String)
	}
	t.GreenThreshold = parseDecimal(green)
	t.AmberThreshold = parseDecimal(amber)
	t.PositiveTolerance = parseDecimal(posTol)
	t.NegativeTolerance = parseDecimal(negTol)
	return t, nil
}

// =============================================================================
// PROGRESS UPDATES
// =============================================================================

const updateSelect = `
	SELECT id, target_id, period_type, period_start, period_end, period_name,
	       actual_value, narrative, evidence_urls_json, risk_rating, issues,
	       corrective_actions, forecast_value, forecast_confidence,
	       is_submitted, submitted_at, is_approved, approved_by, approved_at,
	       approval_comments, state, created_by, updated_by, created_at, updated_at
	FROM progress_updates`

// GetUpdate retrieves an update by ID. Returns nil when not found.
func (s *Store) GetUpdate(ctx context.Context, id plan.UpdateID) (*plan.ProgressUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, updateSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	u, err := scanUpdate(rows)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUpdates returns active updates for a target whose period end falls in
// [from, to], in chronological period order.
func (s *Store) ListUpdates(ctx context.Context, target plan.TargetID, from, to fiscal.Date) ([]plan.ProgressUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, updateSelect+`
		WHERE target_id = ? AND state = 'ACTIVE'
		  AND period_end >= ? AND period_end <= ?
		ORDER BY period_end ASC`,
		target, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []plan.ProgressUpdate
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// UpsertDraft writes a draft update. If an active row already exists for
// the same (target, period_start, period_end) it is updated in place,
// preserving identity, authorship, and submission state; otherwise a new
// row is inserted. Last write wins.
func (s *Store) UpsertDraft(ctx context.Context, u plan.ProgressUpdate) (plan.ProgressUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return u, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		existingID plan.UpdateID
		createdBy  sql.NullString
		submitted  bool
		subAt      sql.NullString
		createdAt  sql.NullString
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, created_by, is_submitted, submitted_at, created_at
		FROM progress_updates
		WHERE target_id = ? AND period_start = ? AND period_end = ? AND state = 'ACTIVE'`,
		u.TargetID, u.PeriodStart.String(), u.PeriodEnd.String(),
	).Scan(&existingID, &createdBy, &submitted, &subAt, &createdAt)

	now := time.Now().UTC()
	switch {
	case err == sql.ErrNoRows:
		u.ID = plan.UpdateID(plan.NewID())
		u.CreatedAt = now
	case err != nil:
		return u, err
	default:
		u.ID = existingID
		u.CreatedBy = plan.UserID(createdBy.String)
		u.Submitted = submitted
		u.SubmittedAt = parseTimePtr(subAt)
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt.String)
	}
	u.UpdatedAt = now

	if err := saveUpdateTx(ctx, tx, u); err != nil {
		return u, err
	}
	return u, tx.Commit()
}

// SaveUpdate persists the full update row, including workflow flags.
func (s *Store) SaveUpdate(ctx context.Context, u plan.ProgressUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.UpdatedAt = time.Now().UTC()
	return saveUpdateTx(ctx, s.db, u)
}

func saveUpdateTx(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, u plan.ProgressUpdate) error {
	evidenceJSON, _ := json.Marshal(u.EvidenceURLs)

	var forecast *string
	if u.ForecastValue != nil {
		v := u.ForecastValue.String()
		forecast = &v
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO progress_updates (id, target_id, period_type, period_start, period_end,
			period_name, actual_value, narrative, evidence_urls_json, risk_rating, issues,
			corrective_actions, forecast_value, forecast_confidence, is_submitted, submitted_at,
			is_approved, approved_by, approved_at, approval_comments, state,
			created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			period_type = excluded.period_type,
			period_name = excluded.period_name,
			actual_value = excluded.actual_value,
			narrative = excluded.narrative,
			evidence_urls_json = excluded.evidence_urls_json,
			risk_rating = excluded.risk_rating,
			issues = excluded.issues,
			corrective_actions = excluded.corrective_actions,
			forecast_value = excluded.forecast_value,
			forecast_confidence = excluded.forecast_confidence,
			is_submitted = excluded.is_submitted,
			submitted_at = excluded.submitted_at,
			is_approved = excluded.is_approved,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			approval_comments = excluded.approval_comments,
			state = excluded.state,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		u.ID, u.TargetID, u.PeriodType, u.PeriodStart.String(), u.PeriodEnd.String(),
		u.PeriodName, u.ActualValue.String(), u.Narrative, string(evidenceJSON),
		u.RiskRating, u.Issues, u.CorrectiveActions, forecast, u.ForecastConfidence,
		u.Submitted, nullTime(u.SubmittedAt),
		u.Approved, u.ApprovedBy, nullTime(u.ApprovedAt), u.ApprovalComments,
		stateOrActive(u.State), u.CreatedBy, u.UpdatedBy,
		u.CreatedAt.UTC().Format(time.RFC3339), u.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("duplicate reporting period for target %s: %w", u.TargetID, err)
		}
		return fmt.Errorf("failed to save progress update: %w", err)
	}
	return nil
}

func scanUpdate(rows *sql.Rows) (plan.ProgressUpdate, error) {
	var (
		u                      plan.ProgressUpdate
		periodStart, periodEnd string
		periodName             sql.NullString
		actualValue            string
		narrative              sql.NullString
		evidenceJSON           sql.NullString
		riskRating, issues     sql.NullString
		corrective             sql.NullString
		forecast, confidence   sql.NullString
		submittedAt            sql.NullString
		approvedBy             sql.NullString
		approvedAt, comments   sql.NullString
		createdBy, updatedBy   sql.NullString
		createdAt, updatedAt   string
	)

	err := rows.Scan(&u.ID, &u.TargetID, &u.PeriodType, &periodStart, &periodEnd,
		&periodName, &actualValue, &narrative, &evidenceJSON, &riskRating, &issues,
		&corrective, &forecast, &confidence, &u.Submitted, &submittedAt,
		&u.Approved, &approvedBy, &approvedAt, &comments, &u.State,
		&createdBy, &updatedBy, &createdAt, &updatedAt)
	if err != nil {
		return u, fmt.Errorf("failed to scan progress update: %w", err)
	}

	u.PeriodStart, _ = fiscal.ParseDate(periodStart)
	u.PeriodEnd, _ = fiscal.ParseDate(periodEnd)
	u.PeriodName = periodName.String
	u.ActualValue = parseDecimal(actualValue)
	u.Narrative = narrative.String
	if evidenceJSON.Valid && evidenceJSON.String != "" {
		json.Unmarshal([]byte(evidenceJSON.String), &u.EvidenceURLs)
	}
	u.RiskRating = plan.RiskRating(riskRating.String)
	u.Issues = issues.String
	u.CorrectiveActions = corrective.String
	if forecast.Valid && forecast.String != "" {
		v := parseDecimal(forecast.String)
		u.ForecastValue = &v
	}
	u.ForecastConfidence = plan.ForecastConfidence(confidence.String)
	u.SubmittedAt = parseTimePtr(submittedAt)
	u.ApprovedBy = plan.UserID(approvedBy.String)
	u.ApprovedAt = parseTimePtr(approvedAt)
	u.ApprovalComments = comments.String
	u.CreatedBy = plan.UserID(createdBy.String)
	u.UpdatedBy = plan.UserID(updatedBy.String)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return u, nil
}

// =============================================================================
// COST LINES
// =============================================================================

// SaveCostLine inserts or updates a cost line.
func (s *Store) SaveCostLine(ctx context.Context, cl plan.CostLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cl.ID == "" {
		cl.ID = plan.CostLineID(plan.NewID())
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cost_lines (id, plan_item_id, cost_type, description,
			budgeted_amount, committed_amount, actual_spend,
			cost_period_start, cost_period_end, funding_source,
			purchase_order_number, supplier_vendor, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cost_type = excluded.cost_type,
			description = excluded.description,
			budgeted_amount = excluded.budgeted_amount,
			committed_amount = excluded.committed_amount,
			actual_spend = excluded.actual_spend,
			cost_period_start = excluded.cost_period_start,
			cost_period_end = excluded.cost_period_end,
			funding_source = excluded.funding_source,
			purchase_order_number = excluded.purchase_order_number,
			supplier_vendor = excluded.supplier_vendor,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		cl.ID, cl.PlanItemID, cl.CostType, cl.Description,
		cl.BudgetedAmount.String(), cl.CommittedAmount.String(), cl.ActualSpend.String(),
		cl.CostPeriodStart.String(), cl.CostPeriodEnd.String(), cl.FundingSource,
		cl.PurchaseOrderNumber, cl.SupplierVendor, stateOrActive(cl.State), now, now,
	)
	return err
}

// ListCostLines returns active cost lines under a plan item.
func (s *Store) ListCostLines(ctx context.Context, item plan.PlanItemID) ([]plan.CostLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_item_id, cost_type, description, budgeted_amount,
		       committed_amount, actual_spend, cost_period_start, cost_period_end,
		       funding_source, purchase_order_number, supplier_vendor, state
		FROM cost_lines
		WHERE plan_item_id = ? AND state = 'ACTIVE'
		ORDER BY cost_period_start ASC`, item)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []plan.CostLine
	for rows.Next() {
		var (
			cl                     plan.CostLine
			description            sql.NullString
			budgeted, committed    string
			actual                 string
			periodStart, periodEnd string
			funding, po, supplier  sql.NullString
		)
		if err := rows.Scan(&cl.ID, &cl.PlanItemID, &cl.CostType, &description,
			&budgeted, &committed, &actual, &periodStart, &periodEnd,
			&funding, &po, &supplier, &cl.State); err != nil {
			return nil, fmt.Errorf("failed to scan cost line: %w", err)
		}
		cl.Description = description.String
		cl.BudgetedAmount = parseDecimal(budgeted)
		cl.CommittedAmount = parseDecimal(committed)
		cl.ActualSpend = parseDecimal(actual)
		cl.CostPeriodStart, _ = fiscal.ParseDate(periodStart)
		cl.CostPeriodEnd, _ = fiscal.ParseDate(periodEnd)
		cl.FundingSource = plan.FundingSource(funding.String)
		cl.PurchaseOrderNumber = po.String
		cl.SupplierVendor = supplier.String
		lines = append(lines, cl)
	}
	return lines, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"cost_lines", "progress_updates", "targets", "plan_items", "kpas", "financial_years"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func stateOrActive(st plan.EntityState) plan.EntityState {
	if st == "" {
		return plan.StateActive
	}
	return st
}

func nullDate(d fiscal.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
