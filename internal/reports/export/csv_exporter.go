package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

// CSVExporter writes tabular valuation data as CSV
type CSVExporter struct {
	writer        *csv.Writer
	options       CSVOptions
	headerWritten bool
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	Delimiter      rune   `json:"delimiter"`
	UseCRLF        bool   `json:"use_crlf"`
	IncludeHeader  bool   `json:"include_header"`
	UseLabels      bool   `json:"use_labels"`    // Header shows labels instead of keys
	NumberFormat   string `json:"number_format"` // e.g. "%.2f"; empty writes full precision
	ListSeparator  string `json:"list_separator"`
	NullValue      string `json:"null_value"`
	BoolTrueValue  string `json:"bool_true_value"`
	BoolFalseValue string `json:"bool_false_value"`
}

// DefaultCSVOptions returns default CSV export options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:      ',',
		IncludeHeader:  true,
		ListSeparator:  "; ",
		BoolTrueValue:  "true",
		BoolFalseValue: "false",
	}
}

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(w io.Writer, options CSVOptions) *CSVExporter {
	writer := csv.NewWriter(w)
	if options.Delimiter != 0 {
		writer.Comma = options.Delimiter
	}
	writer.UseCRLF = options.UseCRLF

	return &CSVExporter{
		writer:  writer,
		options: options,
	}
}

// WriteHeader writes the CSV header row
func (e *CSVExporter) WriteHeader(columns []string) error {
	if !e.options.IncludeHeader || e.headerWritten {
		return nil
	}

	if err := e.writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	e.headerWritten = true
	return nil
}

// WriteRow writes a single row of values
func (e *CSVExporter) WriteRow(row []interface{}) error {
	record := make([]string, len(row))
	for i, val := range row {
		record[i] = e.formatValue(val)
	}

	if err := e.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// WriteMapRows writes rows keyed by column, emitting NullValue for missing keys
func (e *CSVExporter) WriteMapRows(rows []map[string]interface{}, columns []string) error {
	for _, row := range rows {
		values := make([]interface{}, len(columns))
		for i, col := range columns {
			values[i] = row[col]
		}
		if err := e.WriteRow(values); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any buffered data to the underlying writer
func (e *CSVExporter) Flush() error {
	e.writer.Flush()
	return e.writer.Error()
}

func (e *CSVExporter) formatValue(val interface{}) string {
	if val == nil {
		return e.options.NullValue
	}

	switch v := val.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if e.options.NumberFormat != "" {
			return fmt.Sprintf(e.options.NumberFormat, v)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return e.options.BoolTrueValue
		}
		return e.options.BoolFalseValue
	case []string:
		return strings.Join(v, e.options.ListSeparator)
	case valuation.Date:
		if v.IsZero() {
			return e.options.NullValue
		}
		return v.String()
	case time.Time:
		if v.IsZero() {
			return e.options.NullValue
		}
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// WriteValuationCSV writes one row per block of the parcel result
func WriteValuationCSV(w io.Writer, result *valuation.ParcelResult, options CSVOptions) error {
	exporter := NewCSVExporter(w, options)

	header := columnKeys(BlockColumns)
	if options.UseLabels {
		header = columnLabels(BlockColumns)
	}
	if err := exporter.WriteHeader(header); err != nil {
		return err
	}
	if err := exporter.WriteMapRows(blockRows(result), columnKeys(BlockColumns)); err != nil {
		return err
	}
	return exporter.Flush()
}
