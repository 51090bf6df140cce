package lookups

import (
	"database/sql"
	"sort"
	"strings"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

// CurveRow is a row of age_yield_curves or cost_curves
type CurveRow struct {
	ID          string         `db:"id"`
	CropID      string         `db:"crop_id"`
	VarietyID   sql.NullString `db:"variety_id"`
	RegionID    sql.NullString `db:"region_id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	// CurveData is the raw JSON document, decoded by ParseCurveData
	CurveData []byte `db:"curve_data"`
}

// CostTemplateRow is a row of cost_templates. Category columns are nullable.
type CostTemplateRow struct {
	ID                          string          `db:"id"`
	CropID                      string          `db:"crop_id"`
	RegionID                    sql.NullString  `db:"region_id"`
	Name                        string          `db:"name"`
	Description                 sql.NullString  `db:"description"`
	LandRentCOPPerHa            sql.NullFloat64 `db:"land_rent_cop_per_ha"`
	FertilizersCOPPerHa         sql.NullFloat64 `db:"fertilizers_cop_per_ha"`
	CropProtectionCOPPerHa      sql.NullFloat64 `db:"crop_protection_cop_per_ha"`
	PropagationMaterialCOPPerHa sql.NullFloat64 `db:"propagation_material_cop_per_ha"`
	LaborCOPPerHa               sql.NullFloat64 `db:"labor_cop_per_ha"`
	IrrigationEnergyCOPPerHa    sql.NullFloat64 `db:"irrigation_energy_cop_per_ha"`
	MaintenanceUpkeepCOPPerHa   sql.NullFloat64 `db:"maintenance_upkeep_cop_per_ha"`
	HarvestCOPPerHa             sql.NullFloat64 `db:"harvest_cop_per_ha"`
	TransportLogisticsCOPPerHa  sql.NullFloat64 `db:"transport_logistics_cop_per_ha"`
	ServicesContractsCOPPerHa   sql.NullFloat64 `db:"services_contracts_cop_per_ha"`
	AdminOverheadsCOPPerHa      sql.NullFloat64 `db:"admin_overheads_cop_per_ha"`
}

// Breakdown converts the row to engine costs, treating NULL as zero
func (r CostTemplateRow) Breakdown() valuation.CostBreakdown {
	return valuation.CostBreakdown{
		LandRentCOPPerHa:            r.LandRentCOPPerHa.Float64,
		FertilizersCOPPerHa:         r.FertilizersCOPPerHa.Float64,
		CropProtectionCOPPerHa:      r.CropProtectionCOPPerHa.Float64,
		PropagationMaterialCOPPerHa: r.PropagationMaterialCOPPerHa.Float64,
		LaborCOPPerHa:               r.LaborCOPPerHa.Float64,
		IrrigationEnergyCOPPerHa:    r.IrrigationEnergyCOPPerHa.Float64,
		MaintenanceUpkeepCOPPerHa:   r.MaintenanceUpkeepCOPPerHa.Float64,
		HarvestCOPPerHa:             r.HarvestCOPPerHa.Float64,
		TransportLogisticsCOPPerHa:  r.TransportLogisticsCOPPerHa.Float64,
		ServicesContractsCOPPerHa:   r.ServicesContractsCOPPerHa.Float64,
		AdminOverheadsCOPPerHa:      r.AdminOverheadsCOPPerHa.Float64,
	}
}

// Filter narrows the reference data loaded for a valuation
type Filter struct {
	// CropIDs limits rows to these crops; empty loads all crops
	CropIDs []string `json:"crop_ids,omitempty"`
	// Region keeps rows for this region plus region-independent rows; empty loads all regions
	Region string `json:"region,omitempty"`
}

// CacheKey returns a stable key for the filter
func (f Filter) CacheKey() string {
	crops := append([]string(nil), f.CropIDs...)
	sort.Strings(crops)
	return "lookups:" + f.Region + ":" + strings.Join(crops, ",")
}

// FilterForParcel builds a filter covering every crop of the parcel
func FilterForParcel(parcel valuation.ParcelData) Filter {
	seen := make(map[string]struct{})
	var crops []string
	for _, block := range parcel.Blocks {
		if block.Crop == "" {
			continue
		}
		if _, ok := seen[block.Crop]; ok {
			continue
		}
		seen[block.Crop] = struct{}{}
		crops = append(crops, block.Crop)
	}
	sort.Strings(crops)
	return Filter{CropIDs: crops, Region: parcel.Region}
}
