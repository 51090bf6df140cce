package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

// PDFGenerator renders valuation reports as PDF
type PDFGenerator struct {
	pdf     *gofpdf.Fpdf
	options PDFOptions
	// tr converts UTF-8 input to the core fonts' code page
	tr func(string) string
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string     `json:"page_size"`   // A4, Letter, Legal
	Orientation    string     `json:"orientation"` // portrait, landscape
	Title          string     `json:"title"`
	Subtitle       string     `json:"subtitle,omitempty"`
	Author         string     `json:"author,omitempty"`
	IncludeDate    bool       `json:"include_date"`
	IncludePageNum bool       `json:"include_page_num"`
	IncludeSteps   bool       `json:"include_steps"`
	HeaderColor    PDFColor   `json:"header_color"`
	AlternateRows  bool       `json:"alternate_rows"`
	AlternateColor PDFColor   `json:"alternate_color"`
	FontFamily     string     `json:"font_family"`
	FontSize       float64    `json:"font_size"`
	HeaderFontSize float64    `json:"header_font_size"`
	TitleFontSize  float64    `json:"title_font_size"`
	Margins        PDFMargins `json:"margins"`
}

// PDFColor represents an RGB color
type PDFColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PDFMargins represents page margins
type PDFMargins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Orientation:    "landscape",
		Title:          "Parcel Valuation Report",
		IncludeDate:    true,
		IncludePageNum: true,
		IncludeSteps:   true,
		HeaderColor:    PDFColor{R: 68, G: 114, B: 196},
		AlternateRows:  true,
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		FontFamily:     "Arial",
		FontSize:       8,
		HeaderFontSize: 8,
		TitleFontSize:  16,
		Margins: PDFMargins{
			Left:   12,
			Right:  12,
			Top:    15,
			Bottom: 15,
		},
	}
}

// pdfBlockColumns is the compact block table printed in the PDF
var pdfBlockColumns = []Column{
	{"block_id", "Block"},
	{"block_area_ha", "Area (ha)"},
	{"age_years_t", "Age"},
	{"phase", "Phase"},
	{"yield_kg_per_ha", "Yield kg/ha"},
	{"net_income_cop", "Net income"},
	{"total_invest_cop", "Investment"},
	{"pe_flag", "PE"},
	{"value_block_cop", "Value (COP)"},
	{"value_block_cop_per_ha", "COP/ha"},
	{"tier", "Tier"},
}

// NewPDFGenerator creates a new PDF generator
func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	orientation := "P"
	if options.Orientation == "landscape" {
		orientation = "L"
	}

	pdf := gofpdf.New(orientation, "mm", options.PageSize, "")
	pdf.SetMargins(options.Margins.Left, options.Margins.Top, options.Margins.Right)
	pdf.SetAutoPageBreak(true, options.Margins.Bottom)
	pdf.SetTitle(options.Title, true)
	if options.Author != "" {
		pdf.SetAuthor(options.Author, true)
	}

	g := &PDFGenerator{
		pdf:     pdf,
		options: options,
		tr:      pdf.UnicodeTranslatorFromDescriptor(""),
	}
	g.setFooter()
	return g
}

// GenerateValuationReport lays out the full report for a parcel result
func (g *PDFGenerator) GenerateValuationReport(result *valuation.ParcelResult) error {
	g.pdf.AddPage()

	g.addTitle()
	subtitle := g.options.Subtitle
	if subtitle == "" {
		subtitle = fmt.Sprintf("Parcel %s as of %s", result.ParcelID, result.ValuationAsOfDate)
	}
	g.addSubtitle(subtitle)
	if g.options.IncludeDate {
		g.addDate()
	}

	g.AddSummarySection("Summary", summaryItems(result))

	g.addSectionTitle("Blocks")
	widths := g.columnWidths(pdfBlockColumns, blockRows(result))
	g.addTableHeader(columnLabels(pdfBlockColumns), widths)
	g.addTableData(pdfBlockColumns, blockRows(result), widths)

	g.addSectionTitle("Confidence")
	for _, b := range result.Blocks {
		g.addParagraph(fmt.Sprintf("%s: tier %s. %s", b.BlockID, b.Tier, b.TierExplanation))
	}

	if len(result.SummaryFlags) > 0 {
		g.addSectionTitle("QA flags")
		for _, flag := range result.SummaryFlags {
			g.addParagraph("- " + flag)
		}
	}

	if g.options.IncludeSteps {
		for _, b := range result.Blocks {
			g.addSectionTitle("Calculation trace: " + b.BlockID)
			for i, step := range b.CalculationSteps {
				g.addParagraph(fmt.Sprintf("%d. %s", i+1, step))
			}
		}
	}

	return g.pdf.Error()
}

func (g *PDFGenerator) addTitle() {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.TitleFontSize)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 10, g.tr(g.options.Title), "", 1, "C", false, 0, "")
}

func (g *PDFGenerator) addSubtitle(text string) {
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize+3)
	g.pdf.SetTextColor(100, 100, 100)
	g.pdf.CellFormat(0, 8, g.tr(text), "", 1, "C", false, 0, "")
}

func (g *PDFGenerator) addDate() {
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize-1)
	g.pdf.SetTextColor(128, 128, 128)
	dateStr := fmt.Sprintf("Generated: %s", time.Now().UTC().Format("2006-01-02 15:04"))
	g.pdf.CellFormat(0, 6, dateStr, "", 1, "R", false, 0, "")
}

func (g *PDFGenerator) addSectionTitle(title string) {
	g.pdf.Ln(6)
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize+3)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 8, g.tr(title), "", 1, "L", false, 0, "")
}

func (g *PDFGenerator) addParagraph(text string) {
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.MultiCell(0, 4.5, g.tr(text), "", "L", false)
}

// AddSummarySection prints labelled values in the given order
func (g *PDFGenerator) AddSummarySection(title string, items []SummaryItem) {
	g.addSectionTitle(title)

	for _, item := range items {
		g.pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize+1)
		g.pdf.CellFormat(60, 6, g.tr(item.Label+":"), "", 0, "L", false, 0, "")
		g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize+1)
		g.pdf.CellFormat(0, 6, g.tr(g.formatValue(item.Value)), "", 1, "L", false, 0, "")
	}
}

// columnWidths sizes columns to their content and scales them to the page
func (g *PDFGenerator) columnWidths(columns []Column, rows []map[string]interface{}) []float64 {
	pageWidth, _ := g.pdf.GetPageSize()
	available := pageWidth - g.options.Margins.Left - g.options.Margins.Right

	widths := make([]float64, len(columns))
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.HeaderFontSize)
	for i, col := range columns {
		widths[i] = g.pdf.GetStringWidth(col.Label) + 4
	}

	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	for _, row := range rows {
		for i, col := range columns {
			if w := g.pdf.GetStringWidth(g.formatValue(row[col.Key])) + 4; w > widths[i] {
				widths[i] = w
			}
		}
	}

	total := 0.0
	for _, w := range widths {
		total += w
	}
	if total > 0 {
		scale := available / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

func (g *PDFGenerator) addTableHeader(labels []string, widths []float64) {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.HeaderFontSize)
	g.pdf.SetFillColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
	g.pdf.SetTextColor(255, 255, 255)

	for i, label := range labels {
		g.pdf.CellFormat(widths[i], 7, g.tr(label), "1", 0, "C", true, 0, "")
	}
	g.pdf.Ln(-1)
}

func (g *PDFGenerator) addTableData(columns []Column, rows []map[string]interface{}, widths []float64) {
	_, pageHeight := g.pdf.GetPageSize()

	for i, row := range rows {
		if g.pdf.GetY()+7 > pageHeight-g.options.Margins.Bottom {
			g.pdf.AddPage()
			g.addTableHeader(columnLabels(columns), widths)
		}

		g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
		g.pdf.SetTextColor(0, 0, 0)
		if g.options.AlternateRows && i%2 == 1 {
			g.pdf.SetFillColor(g.options.AlternateColor.R, g.options.AlternateColor.G, g.options.AlternateColor.B)
		} else {
			g.pdf.SetFillColor(255, 255, 255)
		}

		for j, col := range columns {
			val := g.formatValue(row[col.Key])
			align := "L"
			switch row[col.Key].(type) {
			case float64, int:
				align = "R"
			}
			g.pdf.CellFormat(widths[j], 6, g.tr(val), "1", 0, align, true, 0, "")
		}
		g.pdf.Ln(-1)
	}
}

// formatValue formats a value for display; money and areas use two decimals
func (g *PDFGenerator) formatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case valuation.Date:
		return v.String()
	case float64:
		return groupThousands(fmt.Sprintf("%.2f", v))
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case []string:
		return strings.Join(v, "; ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// groupThousands inserts commas into the integer part of a formatted number
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}

// WriteTo writes the PDF to a writer
func (g *PDFGenerator) WriteTo(w io.Writer) error {
	return g.pdf.Output(w)
}

func (g *PDFGenerator) setFooter() {
	g.pdf.SetFooterFunc(func() {
		if !g.options.IncludePageNum {
			return
		}
		g.pdf.SetY(-12)
		g.pdf.SetFont(g.options.FontFamily, "", 7)
		g.pdf.SetTextColor(128, 128, 128)
		g.pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", g.pdf.PageNo()), "", 0, "C", false, 0, "")
	})
}

// WriteValuationPDF renders result as a PDF report
func WriteValuationPDF(w io.Writer, result *valuation.ParcelResult, options PDFOptions) error {
	g := NewPDFGenerator(options)
	if err := g.GenerateValuationReport(result); err != nil {
		return fmt.Errorf("failed to generate PDF: %w", err)
	}
	if err := g.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}
