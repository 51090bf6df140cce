package valuation

// YieldSource selects how a block's current yield is derived
type YieldSource string

const (
	YieldSourceMeasured YieldSource = "measured"
	YieldSourceModeled  YieldSource = "modeled"
)

// IsValid reports whether the yield source is one of the known values
func (s YieldSource) IsValid() bool {
	return s == YieldSourceMeasured || s == YieldSourceModeled
}

// CostSource selects how a block's direct costs are priced
type CostSource string

const (
	CostSourceStandardTemplate CostSource = "standard_template"
	CostSourceCustomEntered    CostSource = "custom_entered"
)

// IsValid reports whether the cost source is one of the known values
func (s CostSource) IsValid() bool {
	return s == CostSourceStandardTemplate || s == CostSourceCustomEntered
}

// Phase is the lifecycle classification of a block
type Phase string

const (
	PhaseImproductive Phase = "improductive"
	PhaseProductive   Phase = "productive"
)

// PEFlag marks whether a block has reached break-even
type PEFlag string

const (
	PEFlagReached    PEFlag = "PE+"
	PEFlagNotReached PEFlag = "PE-"
)

// Tier is the confidence grade of a valuation. A is the highest.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

func (t Tier) rank() int {
	switch t {
	case TierA:
		return 0
	case TierB:
		return 1
	default:
		return 2
	}
}

// IsValid reports whether the tier is A, B or C
func (t Tier) IsValid() bool {
	return t == TierA || t == TierB || t == TierC
}

// WorstTier returns the lowest-confidence tier among the given tiers.
// With no tiers it returns TierA.
func WorstTier(tiers ...Tier) Tier {
	worst := TierA
	for _, t := range tiers {
		if t.rank() > worst.rank() {
			worst = t
		}
	}
	// unknown tiers rank with C
	if worst.rank() == 2 {
		return TierC
	}
	return worst
}

// CostBreakdown holds the eleven direct cost categories, all in COP per hectare.
// It is used both for custom-entered block costs and for standard cost templates.
type CostBreakdown struct {
	LandRentCOPPerHa            float64 `json:"land_rent_cop_per_ha" yaml:"land_rent_cop_per_ha"`
	FertilizersCOPPerHa         float64 `json:"fertilizers_cop_per_ha" yaml:"fertilizers_cop_per_ha"`
	CropProtectionCOPPerHa      float64 `json:"crop_protection_cop_per_ha" yaml:"crop_protection_cop_per_ha"`
	PropagationMaterialCOPPerHa float64 `json:"propagation_material_cop_per_ha" yaml:"propagation_material_cop_per_ha"`
	LaborCOPPerHa               float64 `json:"labor_cop_per_ha" yaml:"labor_cop_per_ha"`
	IrrigationEnergyCOPPerHa    float64 `json:"irrigation_energy_cop_per_ha" yaml:"irrigation_energy_cop_per_ha"`
	MaintenanceUpkeepCOPPerHa   float64 `json:"maintenance_upkeep_cop_per_ha" yaml:"maintenance_upkeep_cop_per_ha"`
	HarvestCOPPerHa             float64 `json:"harvest_cop_per_ha" yaml:"harvest_cop_per_ha"`
	TransportLogisticsCOPPerHa  float64 `json:"transport_logistics_cop_per_ha" yaml:"transport_logistics_cop_per_ha"`
	ServicesContractsCOPPerHa   float64 `json:"services_contracts_cop_per_ha" yaml:"services_contracts_cop_per_ha"`
	AdminOverheadsCOPPerHa      float64 `json:"admin_overheads_cop_per_ha" yaml:"admin_overheads_cop_per_ha"`
}

// CostItem is a single named cost category
type CostItem struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Items returns the categories in their canonical order
func (c CostBreakdown) Items() []CostItem {
	return []CostItem{
		{Name: "land_rent", Value: c.LandRentCOPPerHa},
		{Name: "fertilizers", Value: c.FertilizersCOPPerHa},
		{Name: "crop_protection", Value: c.CropProtectionCOPPerHa},
		{Name: "propagation_material", Value: c.PropagationMaterialCOPPerHa},
		{Name: "labor", Value: c.LaborCOPPerHa},
		{Name: "irrigation_energy", Value: c.IrrigationEnergyCOPPerHa},
		{Name: "maintenance_upkeep", Value: c.MaintenanceUpkeepCOPPerHa},
		{Name: "harvest", Value: c.HarvestCOPPerHa},
		{Name: "transport_logistics", Value: c.TransportLogisticsCOPPerHa},
		{Name: "services_contracts", Value: c.ServicesContractsCOPPerHa},
		{Name: "admin_overheads", Value: c.AdminOverheadsCOPPerHa},
	}
}

// Total returns the sum of all categories
func (c CostBreakdown) Total() float64 {
	total := 0.0
	for _, item := range c.Items() {
		total += item.Value
	}
	return total
}

// BlockData is one homogeneous planting within a parcel
type BlockData struct {
	// Identity
	BlockID        string  `json:"block_id" yaml:"block_id"`
	BlockAreaHa    float64 `json:"block_area_ha" yaml:"block_area_ha"`
	Crop           string  `json:"crop" yaml:"crop"`
	Variety        string  `json:"variety,omitempty" yaml:"variety,omitempty"`
	PlantingDate   Date    `json:"planting_date" yaml:"planting_date"`
	DensitySpacing string  `json:"density_spacing,omitempty" yaml:"density_spacing,omitempty"`

	// Yield
	YieldSource          YieldSource `json:"yield_source" yaml:"yield_source"`
	ProductionTonsPeriod *float64    `json:"production_tons_period,omitempty" yaml:"production_tons_period,omitempty"`
	PeriodDays           *int        `json:"period_days,omitempty" yaml:"period_days,omitempty"`
	EvidenceUploads      []string    `json:"evidence_uploads,omitempty" yaml:"evidence_uploads,omitempty"`
	AgeYieldCurveID      string      `json:"age_yield_curve_id,omitempty" yaml:"age_yield_curve_id,omitempty"`
	RealizationFactor    *float64    `json:"realization_factor,omitempty" yaml:"realization_factor,omitempty"`

	// Price
	PriceFarmgateCOPPerKg float64 `json:"price_farmgate_cop_per_kg" yaml:"price_farmgate_cop_per_kg"`
	PriceSourceNote       string  `json:"price_source_note,omitempty" yaml:"price_source_note,omitempty"`

	// Costs
	CostSource     CostSource `json:"cost_source" yaml:"cost_source"`
	CostTemplateID string     `json:"cost_template_id,omitempty" yaml:"cost_template_id,omitempty"`
	// Custom-entered costs; ignored for standard_template blocks
	CostBreakdown `yaml:",inline"`

	// Financing
	FinancedAmountCOP float64 `json:"financed_amount_cop" yaml:"financed_amount_cop"`
	EARate            float64 `json:"ea_rate" yaml:"ea_rate"`

	// Improductive phase
	CumulativeOutlaysToDateCOP *float64 `json:"cumulative_outlays_to_date_cop,omitempty" yaml:"cumulative_outlays_to_date_cop,omitempty"`
	INPFactor                  *float64 `json:"inp_factor,omitempty" yaml:"inp_factor,omitempty"`
	ImproductiveYears          *int     `json:"improductive_years,omitempty" yaml:"improductive_years,omitempty"`

	DNPDiscountRate float64 `json:"dnp_discount_rate" yaml:"dnp_discount_rate"`
	Notes           string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// DefaultINPFactor is applied when a block does not carry its own INP factor
const DefaultINPFactor = 0.40

// EffectiveINPFactor returns the block's INP factor or the default
func (b BlockData) EffectiveINPFactor() float64 {
	if b.INPFactor != nil {
		return *b.INPFactor
	}
	return DefaultINPFactor
}

// ParcelData is the engine's top-level input
type ParcelData struct {
	ValuationAsOfDate Date        `json:"valuation_asof_date" yaml:"valuation_asof_date"`
	ParcelID          string      `json:"parcel_id" yaml:"parcel_id"`
	OperatorName      string      `json:"operator_name,omitempty" yaml:"operator_name,omitempty"`
	Region            string      `json:"region" yaml:"region"`
	TotalParcelAreaHa float64     `json:"total_parcel_area_ha" yaml:"total_parcel_area_ha"`
	Blocks            []BlockData `json:"blocks" yaml:"blocks"`
}

// Lookups holds the reference tables the engine reads. It is never mutated.
type Lookups struct {
	YieldCurves   map[string]Curve         `json:"yield_curves,omitempty" yaml:"yield_curves,omitempty"`
	CostTemplates map[string]CostBreakdown `json:"cost_templates,omitempty" yaml:"cost_templates,omitempty"`
	CostCurves    map[string]Curve         `json:"cost_curves,omitempty" yaml:"cost_curves,omitempty"`
}

func (l *Lookups) yieldCurve(id string) (Curve, bool) {
	if l == nil || id == "" || l.YieldCurves == nil {
		return nil, false
	}
	curve, ok := l.YieldCurves[id]
	return curve, ok && curve != nil
}

func (l *Lookups) costTemplate(id string) (CostBreakdown, bool) {
	if l == nil || id == "" || l.CostTemplates == nil {
		return CostBreakdown{}, false
	}
	tmpl, ok := l.CostTemplates[id]
	return tmpl, ok
}

// BlockResult is the full valuation of one block
type BlockResult struct {
	BlockID     string  `json:"block_id"`
	BlockAreaHa float64 `json:"block_area_ha"`

	AgeYears            int     `json:"age_years_t"`
	YieldKgPerHa        float64 `json:"yield_kg_per_ha"`
	DirectCostsCOPPerHa float64 `json:"direct_costs_cop_per_ha"`
	GrossIncomeCOP      float64 `json:"gross_income_cop"`
	FinCostCOP          float64 `json:"fin_cost_cop"`
	TotalInvestCOP      float64 `json:"total_invest_cop"`
	NetIncomeCOP        float64 `json:"net_income_cop"`

	CumInflowsCOP    float64 `json:"cum_inflows_to_t"`
	CumOutflowsCOP   float64 `json:"cum_outflows_to_t"`
	BreakevenReached bool    `json:"breakeven_reached"`
	Phase            Phase   `json:"phase"`
	PEFlag           PEFlag  `json:"pe_flag"`

	ValueBlockCOP      float64 `json:"value_block_cop"`
	ValueBlockCOPPerHa float64 `json:"value_block_cop_per_ha"`
	NPV                float64 `json:"npv"`

	Tier            Tier     `json:"tier"`
	TierExplanation string   `json:"tier_explanation"`
	QAFlags         []string `json:"qa_flags"`

	CostSourceDetail    string `json:"cost_source_detail"`
	ResolvedCostCurveID string `json:"resolved_cost_curve_id,omitempty"`
	CycleEndAge         int    `json:"cycle_end_age"`
	ProjectionYears     int    `json:"projection_years"`

	CalculationSteps []string `json:"calculation_steps"`
}

// ParcelResult aggregates block results for a parcel
type ParcelResult struct {
	ParcelID            string        `json:"parcel_id"`
	ValuationAsOfDate   Date          `json:"valuation_asof_date"`
	ParcelValueCOP      float64       `json:"parcel_value_cop"`
	ParcelValueCOPPerHa float64       `json:"parcel_value_cop_per_ha"`
	TotalAreaHa         float64       `json:"total_area_ha"`
	Blocks              []BlockResult `json:"blocks"`
	OverallTier         Tier          `json:"overall_tier"`
	SummaryFlags        []string      `json:"summary_flags"`
	CalculationVersion  string        `json:"calculation_version,omitempty"`
}
