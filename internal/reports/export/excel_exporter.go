package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// MaxExportRows caps spreadsheet exports; larger result sets are truncated
// and flagged to the caller.
const MaxExportRows = 10000

// ExcelExporter renders tabular report data to an xlsx workbook.
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
}

// ExcelOptions configures workbook rendering.
type ExcelOptions struct {
	SheetName    string
	FreezeHeader bool
	AutoFilter   bool
	HeaderFill   string
	DateFormat   string
}

// DefaultExcelOptions returns the portal's standard workbook look.
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Relatório",
		FreezeHeader: true,
		AutoFilter:   true,
		HeaderFill:   "1F4E78",
		DateFormat:   "02/01/2006 15:04",
	}
}

func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	file := excelize.NewFile()
	file.SetSheetName("Sheet1", options.SheetName)

	return &ExcelExporter{
		file:    file,
		options: options,
	}
}

// SanitizeCell neutralizes spreadsheet formula injection: values starting
// with a formula trigger character are prefixed with an apostrophe so Excel
// treats them as text.
func SanitizeCell(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r', '\n':
		return "'" + value
	}
	return value
}

// WriteHeader writes the styled header row.
func (e *ExcelExporter) WriteHeader(columns []string) error {
	sheet := e.options.SheetName

	styleID, err := e.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{e.options.HeaderFill}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		e.file.SetCellValue(sheet, cell, col)
		e.file.SetCellStyle(sheet, cell, cell, styleID)
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

// WriteRows writes data rows below the header. String cells are sanitized
// against formula injection. Returns true when the input exceeded the export
// cap and was truncated.
func (e *ExcelExporter) WriteRows(rows [][]interface{}) (bool, error) {
	truncated := false
	if len(rows) > MaxExportRows {
		rows = rows[:MaxExportRows]
		truncated = true
	}

	sheet := e.options.SheetName
	widths := make(map[int]float64)

	for rowIdx, row := range rows {
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := e.setCellValue(sheet, cell, val); err != nil {
				return truncated, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
			if w := e.displayWidth(val); w > widths[colIdx] {
				widths[colIdx] = w
			}
		}
	}

	if e.options.AutoFilter && len(rows) > 0 && len(rows[0]) > 0 {
		lastCol, _ := excelize.ColumnNumberToName(len(rows[0]))
		e.file.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1), nil)
	}

	for colIdx, width := range widths {
		if width < 10 {
			width = 10
		}
		if width > 50 {
			width = 50
		}
		col, _ := excelize.ColumnNumberToName(colIdx + 1)
		e.file.SetColWidth(sheet, col, col, width)
	}

	return truncated, nil
}

// WriteTo serializes the workbook.
func (e *ExcelExporter) WriteTo(w io.Writer) error {
	return e.file.Write(w)
}

func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

func (e *ExcelExporter) setCellValue(sheet, cell string, val interface{}) error {
	switch v := val.(type) {
	case nil:
		return e.file.SetCellValue(sheet, cell, "")
	case string:
		return e.file.SetCellValue(sheet, cell, SanitizeCell(v))
	case *string:
		if v == nil {
			return e.file.SetCellValue(sheet, cell, "")
		}
		return e.file.SetCellValue(sheet, cell, SanitizeCell(*v))
	case time.Time:
		if v.IsZero() {
			return e.file.SetCellValue(sheet, cell, "")
		}
		return e.file.SetCellValue(sheet, cell, v.Format(e.options.DateFormat))
	case *time.Time:
		if v == nil || v.IsZero() {
			return e.file.SetCellValue(sheet, cell, "")
		}
		return e.file.SetCellValue(sheet, cell, v.Format(e.options.DateFormat))
	default:
		return e.file.SetCellValue(sheet, cell, v)
	}
}

func (e *ExcelExporter) displayWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	str := fmt.Sprintf("%v", val)
	if idx := strings.IndexByte(str, '\n'); idx >= 0 {
		str = str[:idx]
	}
	return float64(len(str)) * 1.2
}
