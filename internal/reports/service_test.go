package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Cabralneto/site-tracker-pro/internal/permits"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Rows(ctx context.Context, filters Filters) ([]*Row, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*Row), args.Error(1)
}

func (m *MockRepository) Stats(ctx context.Context, filters Filters) (*Stats, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Stats), args.Error(1)
}

func sampleRows() []*Row {
	etm := permits.ResponsavelETM
	equipe := "Equipe A"
	return []*Row{
		{
			NumeroPT:    "PT-001",
			TipoPT:      permits.TipoPT_PT,
			DataServico: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			Status:      "liberada",
			Responsavel: &etm,
			EfetivoQtd:  8,
			Equipe:      &equipe,
			AtrasoETM:   15,
		},
		{
			NumeroPT:    "PT-002",
			TipoPT:      permits.TipoPT_PTT,
			DataServico: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			Status:      "pendente",
			EfetivoQtd:  4,
		},
	}
}

func TestExportExcel(t *testing.T) {
	repo := &MockRepository{}
	repo.On("Rows", mock.Anything, mock.Anything).Return(sampleRows(), nil)

	svc := NewService(repo, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC) }

	result, err := svc.ExportExcel(context.Background(), Filters{})
	require.NoError(t, err)

	assert.Equal(t, "relatorio-pts-2025-03-11.xlsx", result.FileName)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.ContentType)
	assert.Equal(t, 2, result.RowCount)
	assert.False(t, result.Truncated)
	assert.NotEmpty(t, result.Content)
}

func TestExportPDF(t *testing.T) {
	repo := &MockRepository{}
	repo.On("Rows", mock.Anything, mock.Anything).Return(sampleRows(), nil)
	repo.On("Stats", mock.Anything, mock.Anything).Return(&Stats{
		Total: 2, Liberadas: 1, AtrasosETM: 1, MinutosETM: 15, TotalHHImprodutivo: 120,
	}, nil)

	svc := NewService(repo, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC) }

	result, err := svc.ExportPDF(context.Background(), Filters{})
	require.NoError(t, err)

	assert.Equal(t, "relatorio-pts-2025-03-11.pdf", result.FileName)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.NotEmpty(t, result.Content)
}

func TestRowHHImprodutivo(t *testing.T) {
	row := &Row{EfetivoQtd: 8, AtrasoETM: 15, AtrasoPetrobras: 5}
	assert.Equal(t, 160, row.HHImprodutivo())
}

func TestResponsavelLabel(t *testing.T) {
	etm := permits.ResponsavelETM
	petrobras := permits.ResponsavelPetrobras

	assert.Equal(t, "", responsavelLabel(nil))
	assert.Equal(t, "ETM", responsavelLabel(&etm))
	assert.Equal(t, "Petrobras", responsavelLabel(&petrobras))
}
