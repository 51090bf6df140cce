package valuations

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/reports/archive"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/reports/export"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
	"agro-valuation/valuation-portal/valuation-portal-backend/pkg/workflows"
)

// Status is the lifecycle status of a stored valuation
type Status string

const (
	StatusDraft     Status = workflows.StatusDraft
	StatusCompleted Status = workflows.StatusCompleted
	StatusArchived  Status = workflows.StatusArchived
)

// ParcelRecord is a stored parcel valuation
type ParcelRecord struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ParcelID          string    `json:"parcel_id" gorm:"not null;index"`
	OperatorName      string    `json:"operator_name"`
	Region            string    `json:"region" gorm:"index"`
	ValuationAsOfDate time.Time `json:"valuation_asof_date" gorm:"type:date;not null;index"`
	TotalParcelAreaHa float64   `json:"total_parcel_area_ha"`

	// Aggregates
	TotalAreaHa         float64        `json:"total_area_ha"`
	ParcelValueCOP      float64        `json:"parcel_value_cop"`
	ParcelValueCOPPerHa float64        `json:"parcel_value_cop_per_ha"`
	OverallTier         string         `json:"overall_tier" gorm:"size:1;index"`
	SummaryFlags        datatypes.JSON `json:"summary_flags"`

	// Snapshots of what the valuation was computed from
	InputSnapshot   datatypes.JSON `json:"input_snapshot"`
	LookupsSnapshot datatypes.JSON `json:"lookups_snapshot"`

	Status             Status `json:"status" gorm:"size:20;not null;index"`
	CalculationVersion string `json:"calculation_version" gorm:"size:20"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Results []BlockResultRecord `json:"results,omitempty" gorm:"foreignKey:ValuationID"`
}

// TableName overrides the table name
func (ParcelRecord) TableName() string {
	return "valuation_parcels"
}

// BlockResultRecord is one flattened block result
type BlockResultRecord struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ValuationID uuid.UUID `json:"valuation_id" gorm:"type:uuid;not null;index"`
	Position    int       `json:"position" gorm:"not null"`

	BlockID     string  `json:"block_id" gorm:"not null"`
	BlockAreaHa float64 `json:"block_area_ha"`

	AgeYears            int     `json:"age_years_t"`
	YieldKgPerHa        float64 `json:"yield_kg_per_ha"`
	DirectCostsCOPPerHa float64 `json:"direct_costs_cop_per_ha"`
	GrossIncomeCOP      float64 `json:"gross_income_cop"`
	FinCostCOP          float64 `json:"fin_cost_cop"`
	TotalInvestCOP      float64 `json:"total_invest_cop"`
	NetIncomeCOP        float64 `json:"net_income_cop"`
	CumInflowsCOP       float64 `json:"cum_inflows_to_t"`
	CumOutflowsCOP      float64 `json:"cum_outflows_to_t"`
	BreakevenReached    bool    `json:"breakeven_reached"`
	Phase               string  `json:"phase" gorm:"size:20"`
	PEFlag              string  `json:"pe_flag" gorm:"size:3"`

	ValueBlockCOP      float64 `json:"value_block_cop"`
	ValueBlockCOPPerHa float64 `json:"value_block_cop_per_ha"`
	NPV                float64 `json:"npv"`

	Tier            string         `json:"tier" gorm:"size:1;index"`
	TierExplanation string         `json:"tier_explanation"`
	QAFlags         datatypes.JSON `json:"qa_flags"`

	CostSourceDetail    string `json:"cost_source_detail"`
	ResolvedCostCurveID string `json:"resolved_cost_curve_id"`
	CycleEndAge         int    `json:"cycle_end_age"`
	ProjectionYears     int    `json:"projection_years"`

	CalculationSteps   datatypes.JSON `json:"calculation_steps"`
	CalculationDate    time.Time      `json:"calculation_date" gorm:"type:date"`
	CalculationVersion string         `json:"calculation_version" gorm:"size:20"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName overrides the table name
func (BlockResultRecord) TableName() string {
	return "valuation_results"
}

// ListFilter narrows List results. Zero values do not filter.
type ListFilter struct {
	Status   Status `form:"status"`
	Tier     string `form:"tier"`
	Region   string `form:"region"`
	ParcelID string `form:"parcel_id"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 50

// MaxListLimit is the largest page List returns
const MaxListLimit = 500

// CalculateRequest carries a parcel and, optionally, the reference tables to value it with
type CalculateRequest struct {
	Parcel valuation.ParcelData `json:"parcel"`
	// Lookups overrides the configured lookup provider when set
	Lookups *valuation.Lookups `json:"lookups,omitempty"`
}

// CalculateResponse is a computed, unsaved valuation
type CalculateResponse struct {
	Result   *valuation.ParcelResult       `json:"result"`
	Warnings []valuation.ValidationWarning `json:"warnings"`
}

// Valuation is a stored valuation with its rebuilt result
type Valuation struct {
	ID          uuid.UUID                     `json:"id"`
	Status      Status                        `json:"status"`
	Region      string                        `json:"region"`
	CreatedAt   time.Time                     `json:"created_at"`
	UpdatedAt   time.Time                     `json:"updated_at"`
	Result      *valuation.ParcelResult       `json:"result"`
	Warnings    []valuation.ValidationWarning `json:"warnings,omitempty"`
	Transitions []string                      `json:"allowed_transitions"`
}

// Summary is the list view of a stored valuation
type Summary struct {
	ID                  uuid.UUID      `json:"id"`
	ParcelID            string         `json:"parcel_id"`
	OperatorName        string         `json:"operator_name,omitempty"`
	Region              string         `json:"region"`
	ValuationAsOfDate   valuation.Date `json:"valuation_asof_date"`
	TotalAreaHa         float64        `json:"total_area_ha"`
	ParcelValueCOP      float64        `json:"parcel_value_cop"`
	ParcelValueCOPPerHa float64        `json:"parcel_value_cop_per_ha"`
	OverallTier         string         `json:"overall_tier"`
	Status              Status         `json:"status"`
	CalculationVersion  string         `json:"calculation_version"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// StatusRequest asks for a status transition
type StatusRequest struct {
	Status Status `json:"status" binding:"required"`
}

// ExportFile is a rendered valuation report
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ArchivedReport points at a report stored in the archive
type ArchivedReport struct {
	ValuationID uuid.UUID       `json:"valuation_id"`
	Format      export.Format   `json:"format"`
	Object      *archive.Object `json:"object"`
	ArchivedAt  time.Time       `json:"archived_at"`
}
