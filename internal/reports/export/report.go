package export

import (
	"fmt"
	"io"
	"strings"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

// Format identifies an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat parses a case-insensitive format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	case "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// FileName returns a download name for a parcel valuation
func (f Format) FileName(parcelID string, asOf valuation.Date) string {
	name := "valuation"
	if parcelID != "" {
		name += "_" + parcelID
	}
	if !asOf.IsZero() {
		name += "_" + asOf.String()
	}
	return name + "." + string(f)
}

// Column maps a row key to a display label
type Column struct {
	Key   string
	Label string
}

// BlockColumns are the per-block columns shared by every format
var BlockColumns = []Column{
	{"block_id", "Block"},
	{"block_area_ha", "Area (ha)"},
	{"age_years_t", "Age (years)"},
	{"phase", "Phase"},
	{"yield_kg_per_ha", "Yield (kg/ha)"},
	{"direct_costs_cop_per_ha", "Direct costs (COP/ha)"},
	{"gross_income_cop", "Gross income (COP)"},
	{"fin_cost_cop", "Financial cost (COP)"},
	{"total_invest_cop", "Total investment (COP)"},
	{"net_income_cop", "Net income (COP)"},
	{"cum_inflows_to_t", "Cumulative inflows (COP)"},
	{"cum_outflows_to_t", "Cumulative outflows (COP)"},
	{"breakeven_reached", "Break-even reached"},
	{"pe_flag", "PE flag"},
	{"value_block_cop", "Value (COP)"},
	{"value_block_cop_per_ha", "Value (COP/ha)"},
	{"npv", "NPV (COP)"},
	{"tier", "Tier"},
	{"tier_explanation", "Tier explanation"},
	{"cost_source_detail", "Cost source"},
	{"qa_flags", "QA flags"},
}

func columnKeys(columns []Column) []string {
	keys := make([]string, len(columns))
	for i, c := range columns {
		keys[i] = c.Key
	}
	return keys
}

func columnLabels(columns []Column) []string {
	labels := make([]string, len(columns))
	for i, c := range columns {
		labels[i] = c.Label
	}
	return labels
}

// blockRow flattens a block result into a row keyed by BlockColumns
func blockRow(b valuation.BlockResult) map[string]interface{} {
	return map[string]interface{}{
		"block_id":                b.BlockID,
		"block_area_ha":           b.BlockAreaHa,
		"age_years_t":             b.AgeYears,
		"phase":                   string(b.Phase),
		"yield_kg_per_ha":         b.YieldKgPerHa,
		"direct_costs_cop_per_ha": b.DirectCostsCOPPerHa,
		"gross_income_cop":        b.GrossIncomeCOP,
		"fin_cost_cop":            b.FinCostCOP,
		"total_invest_cop":        b.TotalInvestCOP,
		"net_income_cop":          b.NetIncomeCOP,
		"cum_inflows_to_t":        b.CumInflowsCOP,
		"cum_outflows_to_t":       b.CumOutflowsCOP,
		"breakeven_reached":       b.BreakevenReached,
		"pe_flag":                 string(b.PEFlag),
		"value_block_cop":         b.ValueBlockCOP,
		"value_block_cop_per_ha":  b.ValueBlockCOPPerHa,
		"npv":                     b.NPV,
		"tier":                    string(b.Tier),
		"tier_explanation":        b.TierExplanation,
		"cost_source_detail":      b.CostSourceDetail,
		"qa_flags":                b.QAFlags,
	}
}

func blockRows(result *valuation.ParcelResult) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, len(result.Blocks))
	for _, b := range result.Blocks {
		rows = append(rows, blockRow(b))
	}
	return rows
}

// SummaryItem is one labelled line of the parcel summary
type SummaryItem struct {
	Label string
	Value interface{}
}

func summaryItems(result *valuation.ParcelResult) []SummaryItem {
	return []SummaryItem{
		{"Parcel", result.ParcelID},
		{"Valuation date", result.ValuationAsOfDate},
		{"Blocks", len(result.Blocks)},
		{"Total area (ha)", result.TotalAreaHa},
		{"Parcel value (COP)", result.ParcelValueCOP},
		{"Parcel value (COP/ha)", result.ParcelValueCOPPerHa},
		{"Overall tier", string(result.OverallTier)},
		{"QA flags", len(result.SummaryFlags)},
		{"Calculation version", result.CalculationVersion},
	}
}

// Write renders result in the given format
func Write(w io.Writer, format Format, result *valuation.ParcelResult) error {
	if result == nil {
		return fmt.Errorf("no valuation result to export")
	}

	switch format {
	case FormatCSV:
		return WriteValuationCSV(w, result, DefaultCSVOptions())
	case FormatXLSX:
		return WriteValuationWorkbook(w, result, DefaultExcelOptions())
	case FormatPDF:
		return WriteValuationPDF(w, result, DefaultPDFOptions())
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
