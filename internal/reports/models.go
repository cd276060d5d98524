package reports

import (
	"time"

	"github.com/google/uuid"

	"github.com/Cabralneto/site-tracker-pro/internal/permits"
	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

// Row is one permit flattened for reporting: the permit fields plus the
// timestamp of each workflow milestone pulled from the event log.
type Row struct {
	ID                uuid.UUID            `db:"id" json:"id"`
	NumeroPT          string               `db:"numero_pt" json:"numero_pt"`
	TipoPT            permits.TipoPT       `db:"tipo_pt" json:"tipo_pt"`
	DataServico       time.Time            `db:"data_servico" json:"data_servico"`
	Status            workflows.Status     `db:"status" json:"status"`
	Responsavel       *permits.Responsavel `db:"responsavel_atraso" json:"responsavel_atraso"`
	EfetivoQtd        int                  `db:"efetivo_qtd" json:"efetivo_qtd"`
	Equipe            *string              `db:"equipe" json:"equipe,omitempty"`
	EncarregadoNome   *string              `db:"encarregado_nome" json:"encarregado_nome,omitempty"`
	DescricaoOperacao *string              `db:"descricao_operacao" json:"descricao_operacao,omitempty"`
	CausaAtraso       *string              `db:"causa_atraso" json:"causa_atraso,omitempty"`
	AtrasoETM         int                  `db:"atraso_etm" json:"atraso_etm"`
	AtrasoPetrobras   int                  `db:"atraso_petrobras" json:"atraso_petrobras"`
	SolicitadaEm      *time.Time           `db:"solicitada_em" json:"solicitada_em,omitempty"`
	ChegadaEm         *time.Time           `db:"chegada_em" json:"chegada_em,omitempty"`
	LiberadaEm        *time.Time           `db:"liberada_em" json:"liberada_em,omitempty"`
}

// HHImprodutivo is derived, never stored: crew size times total delay minutes.
func (r *Row) HHImprodutivo() int {
	return r.EfetivoQtd * (r.AtrasoETM + r.AtrasoPetrobras)
}

// Stats aggregates the permit population for the dashboard and report
// headers.
type Stats struct {
	Total              int64 `db:"total" json:"total"`
	Pendentes          int64 `db:"pendentes" json:"pendentes"`
	Solicitadas        int64 `db:"solicitadas" json:"solicitadas"`
	Chegadas           int64 `db:"chegadas" json:"chegadas"`
	Liberadas          int64 `db:"liberadas" json:"liberadas"`
	Impedidas          int64 `db:"impedidas" json:"impedidas"`
	AtrasosETM         int64 `db:"atrasos_etm" json:"atrasos_etm"`
	AtrasosPetrobras   int64 `db:"atrasos_petrobras" json:"atrasos_petrobras"`
	MinutosETM         int64 `db:"minutos_etm" json:"minutos_etm"`
	MinutosPetrobras   int64 `db:"minutos_petrobras" json:"minutos_petrobras"`
	TotalHHImprodutivo int64 `db:"total_hh_improdutivo" json:"total_hh_improdutivo"`
}

// Filters narrows report queries. Zero values mean "no restriction".
type Filters struct {
	DataInicio   *time.Time
	DataFim      *time.Time
	Status       *workflows.Status
	TipoPT       *permits.TipoPT
	Responsavel  *permits.Responsavel
	FrenteID     *uuid.UUID
	DisciplinaID *uuid.UUID
}

// ExportResult carries a rendered report file plus truncation metadata.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
	Truncated   bool
	RowCount    int
}
