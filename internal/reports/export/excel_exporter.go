package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

// Sheet names of the valuation workbook
const (
	SheetSummary = "Summary"
	SheetBlocks  = "Blocks"
	SheetSteps   = "Steps"
	SheetFlags   = "Flags"
)

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	FreezeHeader bool              `json:"freeze_header"`
	AutoFilter   bool              `json:"auto_filter"`
	NumberFormat string            `json:"number_format"`
	HeaderStyle  *ExcelStyleConfig `json:"header_style,omitempty"`
	DataStyle    *ExcelStyleConfig `json:"data_style,omitempty"`
	AutoWidth    bool              `json:"auto_width"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"` // left, center, right
	Border    bool   `json:"border"`
	WrapText  bool   `json:"wrap_text"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		FreezeHeader: true,
		AutoFilter:   true,
		NumberFormat: "#,##0.00",
		AutoWidth:    true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "4472C4",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		DataStyle: &ExcelStyleConfig{
			FontSize:  11,
			Alignment: "left",
			Border:    true,
		},
	}
}

// MultiSheetExporter builds a workbook with one table per sheet
type MultiSheetExporter struct {
	file    *excelize.File
	options ExcelOptions
	styles  map[string]int
}

// NewMultiSheetExporter creates a multi-sheet Excel exporter
func NewMultiSheetExporter(options ExcelOptions) *MultiSheetExporter {
	return &MultiSheetExporter{
		file:    excelize.NewFile(),
		options: options,
		styles:  make(map[string]int),
	}
}

// AddSheet adds a sheet holding a header row and the given rows
func (e *MultiSheetExporter) AddSheet(name string, columns []Column, rows []map[string]interface{}) error {
	if e.file.SheetCount == 1 && e.file.GetSheetName(0) == "Sheet1" {
		if err := e.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	} else if _, err := e.file.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	if err := e.writeHeader(name, columns); err != nil {
		return err
	}
	return e.writeRows(name, columns, rows)
}

func (e *MultiSheetExporter) writeHeader(sheet string, columns []Column) error {
	styleID, err := e.style("header", e.options.HeaderStyle, "")
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, col.Label); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if styleID > 0 {
			e.file.SetCellStyle(sheet, cell, cell, styleID)
		}
	}

	if e.options.FreezeHeader {
		e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

func (e *MultiSheetExporter) writeRows(sheet string, columns []Column, rows []map[string]interface{}) error {
	dataStyle, err := e.style("data", e.options.DataStyle, "")
	if err != nil {
		return fmt.Errorf("failed to create data style: %w", err)
	}
	numberStyle, err := e.style("number", e.options.DataStyle, e.options.NumberFormat)
	if err != nil {
		return fmt.Errorf("failed to create number style: %w", err)
	}

	widths := make([]float64, len(columns))
	for i, col := range columns {
		widths[i] = estimateCellWidth(col.Label)
	}

	for rowIdx, row := range rows {
		for colIdx, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			val := cellValue(row[col.Key])
			if err := e.file.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}

			styleID := dataStyle
			if _, isFloat := val.(float64); isFloat {
				styleID = numberStyle
			}
			if styleID > 0 {
				e.file.SetCellStyle(sheet, cell, cell, styleID)
			}

			if w := estimateCellWidth(val); w > widths[colIdx] {
				widths[colIdx] = w
			}
		}
	}

	if e.options.AutoFilter && len(rows) > 0 {
		lastCell, _ := excelize.CoordinatesToCellName(len(columns), len(rows)+1)
		e.file.AutoFilter(sheet, "A1:"+lastCell, nil)
	}

	if e.options.AutoWidth {
		for i, width := range widths {
			colName, _ := excelize.ColumnNumberToName(i + 1)
			// Min width 10, max width 60
			width = max(10, min(width, 60))
			e.file.SetColWidth(sheet, colName, colName, width)
		}
	}

	return nil
}

// style returns a cached style id, or 0 when config is nil
func (e *MultiSheetExporter) style(key string, config *ExcelStyleConfig, numFmt string) (int, error) {
	if config == nil && numFmt == "" {
		return 0, nil
	}
	if id, ok := e.styles[key]; ok {
		return id, nil
	}

	style := &excelize.Style{}
	if config != nil {
		style.Font = &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		}
		if config.FillColor != "" {
			style.Fill = excelize.Fill{
				Type:    "pattern",
				Pattern: 1,
				Color:   []string{config.FillColor},
			}
		}
		if config.Alignment != "" || config.WrapText {
			style.Alignment = &excelize.Alignment{
				Horizontal: config.Alignment,
				WrapText:   config.WrapText,
			}
		}
		if config.Border {
			style.Border = []excelize.Border{
				{Type: "left", Color: "000000", Style: 1},
				{Type: "right", Color: "000000", Style: 1},
				{Type: "top", Color: "000000", Style: 1},
				{Type: "bottom", Color: "000000", Style: 1},
			}
		}
	}
	if numFmt != "" {
		style.CustomNumFmt = &numFmt
	}

	id, err := e.file.NewStyle(style)
	if err != nil {
		return 0, err
	}
	e.styles[key] = id
	return id, nil
}

// WriteTo writes the workbook to a writer
func (e *MultiSheetExporter) WriteTo(w io.Writer) error {
	return e.file.Write(w)
}

// Close closes the workbook
func (e *MultiSheetExporter) Close() error {
	return e.file.Close()
}

// cellValue converts row values into types excelize writes natively
func cellValue(val interface{}) interface{} {
	switch v := val.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(v, "; ")
	case valuation.Date:
		return v.String()
	default:
		return v
	}
}

func estimateCellWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	return float64(len(fmt.Sprintf("%v", val))) * 1.2
}

// WriteValuationWorkbook writes the Summary, Blocks, Steps and Flags sheets
func WriteValuationWorkbook(w io.Writer, result *valuation.ParcelResult, options ExcelOptions) error {
	e := NewMultiSheetExporter(options)
	defer e.Close()

	summary := make([]map[string]interface{}, 0)
	for _, item := range summaryItems(result) {
		summary = append(summary, map[string]interface{}{"item": item.Label, "value": item.Value})
	}

	var steps, flags []map[string]interface{}
	for _, b := range result.Blocks {
		for i, step := range b.CalculationSteps {
			steps = append(steps, map[string]interface{}{"block_id": b.BlockID, "step": i + 1, "text": step})
		}
		for _, flag := range b.QAFlags {
			flags = append(flags, map[string]interface{}{"block_id": b.BlockID, "flag": flag})
		}
	}

	sheets := []struct {
		name    string
		columns []Column
		rows    []map[string]interface{}
	}{
		{SheetSummary, []Column{{"item", "Item"}, {"value", "Value"}}, summary},
		{SheetBlocks, BlockColumns, blockRows(result)},
		{SheetSteps, []Column{{"block_id", "Block"}, {"step", "Step"}, {"text", "Calculation"}}, steps},
		{SheetFlags, []Column{{"block_id", "Block"}, {"flag", "QA flag"}}, flags},
	}
	for _, s := range sheets {
		if err := e.AddSheet(s.name, s.columns, s.rows); err != nil {
			return fmt.Errorf("failed to write %s sheet: %w", s.name, err)
		}
	}

	if err := e.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
