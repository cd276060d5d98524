package permits

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Cabralneto/site-tracker-pro/pkg/geo"
	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

// Domain errors surfaced by the service. Repository/driver failures are
// wrapped and reach the handler as generic retryable errors.
var (
	ErrNotFound         = errors.New("permit not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrEventNotFound    = errors.New("event not found")
)

// ValidationError reports a rejected request payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// TipoPT is the permit kind: regular or special work permit.
type TipoPT string

const (
	TipoPT_PT  TipoPT = "pt"
	TipoPT_PTT TipoPT = "ptt"
)

// Responsavel identifies the party responsible for a delay.
type Responsavel string

const (
	ResponsavelETM         Responsavel = "etm"
	ResponsavelPetrobras   Responsavel = "petrobras"
	ResponsavelSemAtraso   Responsavel = "sem_atraso"
	ResponsavelImpedimento Responsavel = "impedimento"
)

// ConfirmStatus tracks whether an arrival recorded on behalf of another
// role has been confirmed by an operator.
type ConfirmStatus string

const (
	ConfirmConfirmado ConfirmStatus = "confirmado"
	ConfirmPendente   ConfirmStatus = "pendente"
)

// Permit is the aggregate root: a PT/PTT work permit and its derived delay
// fields. Status and delay values are mutated only through valid workflow
// transitions.
type Permit struct {
	ID                   uuid.UUID        `db:"id" json:"id" gorm:"type:uuid;primaryKey"`
	NumeroPT             string           `db:"numero_pt" json:"numero_pt" gorm:"column:numero_pt;uniqueIndex;not null"`
	TipoPT               TipoPT           `db:"tipo_pt" json:"tipo_pt" gorm:"column:tipo_pt;type:varchar(8);not null;default:pt"`
	DataServico          time.Time        `db:"data_servico" json:"data_servico" gorm:"type:date;not null"`
	Status               workflows.Status `db:"status" json:"status" gorm:"type:varchar(16);not null;default:pendente;index"`
	ResponsavelAtraso    *Responsavel     `db:"responsavel_atraso" json:"responsavel_atraso" gorm:"type:varchar(16)"`
	EfetivoQtd           int              `db:"efetivo_qtd" json:"efetivo_qtd" gorm:"not null;default:1"`
	Equipe               *string          `db:"equipe" json:"equipe,omitempty"`
	EncarregadoNome      *string          `db:"encarregado_nome" json:"encarregado_nome,omitempty"`
	EncarregadoMatricula *string          `db:"encarregado_matricula" json:"encarregado_matricula,omitempty"`
	DescricaoOperacao    *string          `db:"descricao_operacao" json:"descricao_operacao,omitempty"`
	CausaAtraso          *string          `db:"causa_atraso" json:"causa_atraso,omitempty"`
	AtrasoETM            int              `db:"atraso_etm" json:"atraso_etm" gorm:"not null;default:0"`
	AtrasoPetrobras      int              `db:"atraso_petrobras" json:"atraso_petrobras" gorm:"not null;default:0"`
	FrenteIDs            pq.StringArray   `db:"frente_ids" json:"frente_ids" gorm:"type:uuid[]"`
	DisciplinaIDs        pq.StringArray   `db:"disciplina_ids" json:"disciplina_ids" gorm:"type:uuid[]"`
	CriadoPor            uuid.UUID        `db:"criado_por" json:"criado_por" gorm:"type:uuid;not null"`
	CriadoEm             time.Time        `db:"criado_em" json:"criado_em" gorm:"autoCreateTime"`
	AtualizadoEm         time.Time        `db:"atualizado_em" json:"atualizado_em" gorm:"autoUpdateTime"`
}

func (Permit) TableName() string { return "pts" }

// HHImprodutivo is the unproductive labor-hours metric, derived on demand:
// crew size times total delay minutes.
func (p *Permit) HHImprodutivo() int {
	return p.EfetivoQtd * (p.AtrasoETM + p.AtrasoPetrobras)
}

// Event is one append-only entry in a permit's audit log. Events are never
// edited or deleted.
type Event struct {
	ID                 uuid.UUID           `db:"id" json:"id" gorm:"type:uuid;primaryKey"`
	PermitID           uuid.UUID           `db:"pt_id" json:"pt_id" gorm:"column:pt_id;type:uuid;not null;index"`
	TipoEvento         workflows.EventType `db:"tipo_evento" json:"tipo_evento" gorm:"type:varchar(16);not null"`
	CriadoPor          uuid.UUID           `db:"criado_por" json:"criado_por" gorm:"type:uuid;not null"`
	CriadoEm           time.Time           `db:"criado_em" json:"criado_em" gorm:"autoCreateTime"`
	Lat                *float64            `db:"lat" json:"lat,omitempty"`
	Lon                *float64            `db:"lon" json:"lon,omitempty"`
	Accuracy           *float64            `db:"accuracy" json:"accuracy,omitempty"`
	IP                 *string             `db:"ip" json:"ip,omitempty" gorm:"column:ip"`
	UserAgent          *string             `db:"user_agent" json:"user_agent,omitempty"`
	Observacao         *string             `db:"observacao" json:"observacao,omitempty"`
	ConfirmacaoStatus  ConfirmStatus       `db:"confirmacao_status" json:"confirmacao_status" gorm:"type:varchar(16);not null;default:confirmado"`
	ConfirmadoPor      *uuid.UUID          `db:"confirmado_por" json:"confirmado_por,omitempty" gorm:"type:uuid"`
	ConfirmadoEm       *time.Time          `db:"confirmado_em" json:"confirmado_em,omitempty"`
	ImpedimentoID      *uuid.UUID          `db:"impedimento_id" json:"impedimento_id,omitempty" gorm:"type:uuid"`
	DetalheImpedimento *string             `db:"detalhe_impedimento" json:"detalhe_impedimento,omitempty"`
}

func (Event) TableName() string { return "eventos" }

// CreatePermitRequest is the payload for creating a permit.
type CreatePermitRequest struct {
	NumeroPT             string   `json:"numero_pt" binding:"required"`
	TipoPT               TipoPT   `json:"tipo_pt"`
	DataServico          string   `json:"data_servico" binding:"required"` // YYYY-MM-DD
	EfetivoQtd           int      `json:"efetivo_qtd" binding:"required"`
	Equipe               *string  `json:"equipe"`
	EncarregadoNome      *string  `json:"encarregado_nome"`
	EncarregadoMatricula *string  `json:"encarregado_matricula"`
	DescricaoOperacao    *string  `json:"descricao_operacao"`
	FrenteIDs            []string `json:"frente_ids"`
	DisciplinaIDs        []string `json:"disciplina_ids"`
}

// TransitionRequest is the payload for firing a workflow event.
type TransitionRequest struct {
	TipoEvento         workflows.EventType `json:"tipo_evento" binding:"required"`
	Observacao         *string             `json:"observacao"`
	CausaAtraso        *string             `json:"causa_atraso"`
	ImpedimentoID      *uuid.UUID          `json:"impedimento_id"`
	DetalheImpedimento *string             `json:"detalhe_impedimento"`
	Location           *geo.Point          `json:"location"`
	UserAgent          *string             `json:"-"`
	IP                 *string             `json:"-"`
}

// TransitionResult reports a completed transition back to the caller,
// mirroring what the UI needs to refresh a detail view.
type TransitionResult struct {
	PermitID        uuid.UUID        `json:"pt_id"`
	NewStatus       workflows.Status `json:"new_status"`
	EventID         uuid.UUID        `json:"evento_id"`
	AtrasoETM       int              `json:"atraso_etm"`
	AtrasoPetrobras int              `json:"atraso_petrobras"`
}

// Filters narrows permit listings.
type Filters struct {
	Status      *workflows.Status
	TipoPT      *TipoPT
	Responsavel *Responsavel
	FrenteID    *uuid.UUID
	DataInicio  *time.Time
	DataFim     *time.Time
	Search      string
	Page        int
	PageSize    int
}

// PermitDetail bundles a permit with its ordered event timeline.
type PermitDetail struct {
	Permit *Permit  `json:"pt"`
	Events []*Event `json:"eventos"`
}
