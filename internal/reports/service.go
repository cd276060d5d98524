package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Cabralneto/site-tracker-pro/internal/permits"
	"github.com/Cabralneto/site-tracker-pro/internal/reports/export"
)

// Service provides report queries and file exports over the permit data.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Rows returns the filtered report rows.
func (s *Service) Rows(ctx context.Context, filters Filters) ([]*Row, error) {
	return s.repo.Rows(ctx, filters)
}

// Stats returns the aggregate dashboard numbers for the filtered population.
func (s *Service) Stats(ctx context.Context, filters Filters) (*Stats, error) {
	return s.repo.Stats(ctx, filters)
}

var exportColumns = []string{
	"Número PT", "Tipo", "Data do Serviço", "Status", "Responsável",
	"Efetivo", "Equipe", "Encarregado", "Causa do Atraso",
	"Atraso ETM (min)", "Atraso Petrobras (min)", "HH Improdutivo",
	"Solicitada em", "Chegada em", "Liberada em",
}

// ExportExcel renders the filtered rows as an xlsx workbook. Results beyond
// the export cap are truncated and flagged.
func (s *Service) ExportExcel(ctx context.Context, filters Filters) (*ExportResult, error) {
	rows, err := s.repo.Rows(ctx, filters)
	if err != nil {
		return nil, err
	}

	exporter := export.NewExcelExporter(export.DefaultExcelOptions())
	defer exporter.Close()

	if err := exporter.WriteHeader(exportColumns); err != nil {
		return nil, err
	}

	data := make([][]interface{}, len(rows))
	for i, row := range rows {
		data[i] = []interface{}{
			row.NumeroPT,
			string(row.TipoPT),
			row.DataServico.Format("02/01/2006"),
			string(row.Status),
			responsavelLabel(row.Responsavel),
			row.EfetivoQtd,
			row.Equipe,
			row.EncarregadoNome,
			row.CausaAtraso,
			row.AtrasoETM,
			row.AtrasoPetrobras,
			row.HHImprodutivo(),
			row.SolicitadaEm,
			row.ChegadaEm,
			row.LiberadaEm,
		}
	}

	truncated, err := exporter.WriteRows(data)
	if err != nil {
		return nil, fmt.Errorf("failed to render excel export: %w", err)
	}

	var buf bytes.Buffer
	if err := exporter.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize excel export: %w", err)
	}

	if truncated {
		s.logger.Warn("Excel export truncated",
			zap.Int("rows", len(rows)), zap.Int("cap", export.MaxExportRows))
	}

	return &ExportResult{
		FileName:    fmt.Sprintf("relatorio-pts-%s.xlsx", s.now().Format("2006-01-02")),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     buf.Bytes(),
		Truncated:   truncated,
		RowCount:    len(rows),
	}, nil
}

// ExportPDF renders the filtered rows plus a stats summary as a PDF.
func (s *Service) ExportPDF(ctx context.Context, filters Filters) (*ExportResult, error) {
	rows, err := s.repo.Rows(ctx, filters)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.Stats(ctx, filters)
	if err != nil {
		return nil, err
	}

	labels := []string{
		"Número PT", "Tipo", "Data", "Status", "Responsável",
		"Efetivo", "ETM (min)", "Petrobras (min)", "HH",
	}
	data := make([][]string, len(rows))
	for i, row := range rows {
		data[i] = []string{
			row.NumeroPT,
			string(row.TipoPT),
			row.DataServico.Format("02/01/2006"),
			string(row.Status),
			responsavelLabel(row.Responsavel),
			fmt.Sprintf("%d", row.EfetivoQtd),
			fmt.Sprintf("%d", row.AtrasoETM),
			fmt.Sprintf("%d", row.AtrasoPetrobras),
			fmt.Sprintf("%d", row.HHImprodutivo()),
		}
	}

	options := export.DefaultPDFOptions()
	options.Subtitle = periodLabel(filters)

	generator := export.NewPDFGenerator(options)
	summary := map[string]string{
		"Total de PTs":         fmt.Sprintf("%d", stats.Total),
		"Liberadas":            fmt.Sprintf("%d", stats.Liberadas),
		"Impedidas":            fmt.Sprintf("%d", stats.Impedidas),
		"Atrasos ETM":          fmt.Sprintf("%d (%d min)", stats.AtrasosETM, stats.MinutosETM),
		"Atrasos Petrobras":    fmt.Sprintf("%d (%d min)", stats.AtrasosPetrobras, stats.MinutosPetrobras),
		"HH improdutivo total": fmt.Sprintf("%d", stats.TotalHHImprodutivo),
	}
	if err := generator.GenerateReport(labels, data, summary); err != nil {
		return nil, fmt.Errorf("failed to render pdf export: %w", err)
	}

	var buf bytes.Buffer
	if err := generator.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize pdf export: %w", err)
	}

	return &ExportResult{
		FileName:    fmt.Sprintf("relatorio-pts-%s.pdf", s.now().Format("2006-01-02")),
		ContentType: "application/pdf",
		Content:     buf.Bytes(),
		Truncated:   len(rows) > export.MaxExportRows,
		RowCount:    len(rows),
	}, nil
}

// DailySummary returns the stats for a single service date, used by the
// scheduled summary email.
func (s *Service) DailySummary(ctx context.Context, day time.Time) (*Stats, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return s.repo.Stats(ctx, Filters{DataInicio: &start, DataFim: &start})
}

func responsavelLabel(r *permits.Responsavel) string {
	if r == nil {
		return ""
	}
	switch *r {
	case permits.ResponsavelETM:
		return "ETM"
	case permits.ResponsavelPetrobras:
		return "Petrobras"
	case permits.ResponsavelSemAtraso:
		return "Sem atraso"
	case permits.ResponsavelImpedimento:
		return "Impedimento"
	}
	return string(*r)
}

func periodLabel(filters Filters) string {
	switch {
	case filters.DataInicio != nil && filters.DataFim != nil:
		return fmt.Sprintf("Período: %s a %s",
			filters.DataInicio.Format("02/01/2006"), filters.DataFim.Format("02/01/2006"))
	case filters.DataInicio != nil:
		return fmt.Sprintf("A partir de %s", filters.DataInicio.Format("02/01/2006"))
	case filters.DataFim != nil:
		return fmt.Sprintf("Até %s", filters.DataFim.Format("02/01/2006"))
	}
	return ""
}
