package export

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSanitizeCell(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text untouched", "Montagem de andaime", "Montagem de andaime"},
		{"empty untouched", "", ""},
		{"formula prefixed", "=HYPERLINK(\"http://evil\")", "'=HYPERLINK(\"http://evil\")"},
		{"plus prefixed", "+1+2", "'+1+2"},
		{"minus prefixed", "-cmd", "'-cmd"},
		{"at prefixed", "@SUM(A1)", "'@SUM(A1)"},
		{"tab prefixed", "\t=1", "'\t=1"},
		{"newline prefixed", "\n=1", "'\n=1"},
		{"carriage return prefixed", "\r=1", "'\r=1"},
		{"equals mid-string untouched", "a=b", "a=b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeCell(tt.input))
		})
	}
}

func TestExcelExporterSanitizesStringCells(t *testing.T) {
	exporter := NewExcelExporter(DefaultExcelOptions())
	defer exporter.Close()

	require.NoError(t, exporter.WriteHeader([]string{"Número PT", "Causa"}))
	truncated, err := exporter.WriteRows([][]interface{}{
		{"PT-001", "=2+2"},
	})
	require.NoError(t, err)
	assert.False(t, truncated)

	var buf bytes.Buffer
	require.NoError(t, exporter.WriteTo(&buf))

	file, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer file.Close()

	val, err := file.GetCellValue("Relatório", "B2")
	require.NoError(t, err)
	assert.Equal(t, "'=2+2", val)
}

func TestExcelExporterTruncatesAtCap(t *testing.T) {
	exporter := NewExcelExporter(DefaultExcelOptions())
	defer exporter.Close()

	require.NoError(t, exporter.WriteHeader([]string{"Número PT"}))

	rows := make([][]interface{}, MaxExportRows+5)
	for i := range rows {
		rows[i] = []interface{}{fmt.Sprintf("PT-%06d", i)}
	}

	truncated, err := exporter.WriteRows(rows)
	require.NoError(t, err)
	assert.True(t, truncated)
}
