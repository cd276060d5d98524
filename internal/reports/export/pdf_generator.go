package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFGenerator renders a report as a landscape A4 table with a summary
// block above it.
type PDFGenerator struct {
	pdf     *gofpdf.Fpdf
	options PDFOptions
}

// PDFOptions configures PDF rendering.
type PDFOptions struct {
	Title      string
	Subtitle   string
	DateFormat string
	FontSize   float64
	Margins    float64
}

func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		Title:      "Relatório de Permissões de Trabalho",
		DateFormat: "02/01/2006",
		FontSize:   8,
		Margins:    10,
	}
}

func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(options.Margins, options.Margins, options.Margins)
	pdf.SetAutoPageBreak(true, options.Margins)

	g := &PDFGenerator{pdf: pdf, options: options}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "", 7)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, fmt.Sprintf("Página %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	return g
}

// GenerateReport lays out the title, an optional summary block and the data
// table. Rows beyond MaxExportRows are dropped with a truncation notice.
func (g *PDFGenerator) GenerateReport(labels []string, rows [][]string, summary map[string]string) error {
	g.pdf.AddPage()

	g.pdf.SetFont("Arial", "B", 14)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 9, g.options.Title, "", 1, "C", false, 0, "")

	if g.options.Subtitle != "" {
		g.pdf.SetFont("Arial", "", 10)
		g.pdf.SetTextColor(100, 100, 100)
		g.pdf.CellFormat(0, 7, g.options.Subtitle, "", 1, "C", false, 0, "")
	}

	g.pdf.SetFont("Arial", "", 8)
	g.pdf.SetTextColor(128, 128, 128)
	g.pdf.CellFormat(0, 6, fmt.Sprintf("Gerado em %s", time.Now().Format(g.options.DateFormat+" 15:04")),
		"", 1, "R", false, 0, "")

	if len(summary) > 0 {
		g.addSummary(summary)
	}
	g.pdf.Ln(4)

	truncated := false
	if len(rows) > MaxExportRows {
		rows = rows[:MaxExportRows]
		truncated = true
	}

	widths := g.columnWidths(labels, rows)
	g.addTableHeader(labels, widths)
	g.addTableRows(labels, rows, widths)

	if truncated {
		g.pdf.Ln(3)
		g.pdf.SetFont("Arial", "I", 8)
		g.pdf.SetTextColor(128, 0, 0)
		g.pdf.CellFormat(0, 6,
			fmt.Sprintf("Relatório truncado em %d linhas; refine o filtro para exportar tudo.", MaxExportRows),
			"", 1, "L", false, 0, "")
	}

	return nil
}

func (g *PDFGenerator) addSummary(items map[string]string) {
	g.pdf.Ln(3)
	g.pdf.SetFont("Arial", "", g.options.FontSize+1)
	g.pdf.SetTextColor(0, 0, 0)

	// Deterministic order matters for snapshot-style review of reports.
	for _, key := range summaryOrder {
		val, ok := items[key]
		if !ok {
			continue
		}
		g.pdf.SetFont("Arial", "B", g.options.FontSize+1)
		g.pdf.CellFormat(55, 5.5, key+":", "", 0, "L", false, 0, "")
		g.pdf.SetFont("Arial", "", g.options.FontSize+1)
		g.pdf.CellFormat(0, 5.5, val, "", 1, "L", false, 0, "")
	}
}

// summaryOrder fixes the render order of the summary block keys.
var summaryOrder = []string{
	"Total de PTs",
	"Liberadas",
	"Impedidas",
	"Atrasos ETM",
	"Atrasos Petrobras",
	"HH improdutivo total",
}

func (g *PDFGenerator) columnWidths(labels []string, rows [][]string) []float64 {
	pageWidth, _ := g.pdf.GetPageSize()
	available := pageWidth - 2*g.options.Margins

	g.pdf.SetFont("Arial", "B", g.options.FontSize)
	widths := make([]float64, len(labels))
	for i, label := range labels {
		widths[i] = g.pdf.GetStringWidth(label) + 4
	}

	g.pdf.SetFont("Arial", "", g.options.FontSize)
	sample := rows
	if len(sample) > 100 {
		sample = sample[:100]
	}
	for _, row := range sample {
		for i, val := range row {
			if i >= len(widths) {
				break
			}
			if w := g.pdf.GetStringWidth(val) + 4; w > widths[i] {
				widths[i] = w
			}
		}
	}

	total := 0.0
	for _, w := range widths {
		total += w
	}
	if total > available {
		scale := available / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

func (g *PDFGenerator) addTableHeader(labels []string, widths []float64) {
	g.pdf.SetFont("Arial", "B", g.options.FontSize)
	g.pdf.SetFillColor(31, 78, 120)
	g.pdf.SetTextColor(255, 255, 255)
	for i, label := range labels {
		g.pdf.CellFormat(widths[i], 7, label, "1", 0, "C", true, 0, "")
	}
	g.pdf.Ln(-1)
}

func (g *PDFGenerator) addTableRows(labels []string, rows [][]string, widths []float64) {
	g.pdf.SetFont("Arial", "", g.options.FontSize)
	g.pdf.SetTextColor(0, 0, 0)

	_, pageHeight := g.pdf.GetPageSize()
	for i, row := range rows {
		if i%2 == 1 {
			g.pdf.SetFillColor(242, 242, 242)
		} else {
			g.pdf.SetFillColor(255, 255, 255)
		}

		if g.pdf.GetY()+6 > pageHeight-g.options.Margins {
			g.pdf.AddPage()
			g.addTableHeader(labels, widths)
			g.pdf.SetFont("Arial", "", g.options.FontSize)
			g.pdf.SetTextColor(0, 0, 0)
		}

		for j, val := range row {
			if j >= len(widths) {
				break
			}
			maxChars := int(widths[j] / 1.6)
			if maxChars > 3 && len(val) > maxChars {
				val = val[:maxChars-3] + "..."
			}
			g.pdf.CellFormat(widths[j], 6, val, "1", 0, "L", true, 0, "")
		}
		g.pdf.Ln(-1)
	}
}

// WriteTo serializes the document.
func (g *PDFGenerator) WriteTo(w io.Writer) error {
	return g.pdf.Output(w)
}
