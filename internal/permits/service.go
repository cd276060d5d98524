package permits

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Cabralneto/site-tracker-pro/internal/auth"
	"github.com/Cabralneto/site-tracker-pro/internal/sla"
	"github.com/Cabralneto/site-tracker-pro/pkg/geo"
	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

// SLAProvider supplies the active SLA configuration, or nil when none is
// configured.
type SLAProvider interface {
	Active(ctx context.Context) (*sla.Config, error)
}

// Broadcaster receives permit status changes after a transition commits.
// Broadcast failures never fail the transition.
type Broadcaster interface {
	BroadcastStatus(permitID uuid.UUID, numeroPT string, status workflows.Status, responsavel *Responsavel)
}

// Service orchestrates permit lifecycle operations: creation, workflow
// transitions, the event timeline and arrival confirmation.
type Service struct {
	repo    Repository
	machine *workflows.StateMachine
	slas    SLAProvider
	hub     Broadcaster
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a permit service. hub may be nil.
func NewService(repo Repository, slas SLAProvider, hub Broadcaster, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		machine: workflows.NewStateMachine(),
		slas:    slas,
		hub:     hub,
		logger:  logger,
		now:     time.Now,
	}
}

// Create opens a new permit in status pendente.
func (s *Service) Create(ctx context.Context, actor auth.Actor, req *CreatePermitRequest) (*Permit, error) {
	if !actor.Roles.Has(workflows.RoleEncarregado) {
		return nil, ErrPermissionDenied
	}

	if req.EfetivoQtd < 1 {
		return nil, &ValidationError{Field: "efetivo_qtd", Message: "deve ser um inteiro positivo"}
	}
	if strings.TrimSpace(req.NumeroPT) == "" {
		return nil, &ValidationError{Field: "numero_pt", Message: "obrigatório"}
	}
	tipo := req.TipoPT
	if tipo == "" {
		tipo = TipoPT_PT
	}
	if tipo != TipoPT_PT && tipo != TipoPT_PTT {
		return nil, &ValidationError{Field: "tipo_pt", Message: "deve ser pt ou ptt"}
	}

	dataServico, err := time.Parse("2006-01-02", req.DataServico)
	if err != nil {
		return nil, &ValidationError{Field: "data_servico", Message: "deve ser YYYY-MM-DD"}
	}

	now := s.now()
	permit := &Permit{
		ID:                   uuid.New(),
		NumeroPT:             strings.TrimSpace(req.NumeroPT),
		TipoPT:               tipo,
		DataServico:          dataServico,
		Status:               workflows.StatusPendente,
		EfetivoQtd:           req.EfetivoQtd,
		Equipe:               req.Equipe,
		EncarregadoNome:      req.EncarregadoNome,
		EncarregadoMatricula: req.EncarregadoMatricula,
		DescricaoOperacao:    req.DescricaoOperacao,
		FrenteIDs:            pq.StringArray(req.FrenteIDs),
		DisciplinaIDs:        pq.StringArray(req.DisciplinaIDs),
		CriadoPor:            actor.UserID,
		CriadoEm:             now,
		AtualizadoEm:         now,
	}

	if err := s.repo.Create(ctx, permit); err != nil {
		return nil, err
	}

	s.logger.Info("Permit created",
		zap.String("pt_id", permit.ID.String()),
		zap.String("numero_pt", permit.NumeroPT))

	return permit, nil
}

// Get loads a permit with its ordered event timeline.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*PermitDetail, error) {
	permit, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PermitDetail{Permit: permit, Events: events}, nil
}

// List returns permits matching the filters with the total count.
func (s *Service) List(ctx context.Context, filters *Filters) ([]*Permit, int, error) {
	return s.repo.List(ctx, filters)
}

// Transition fires a workflow event against a permit. Guard validation,
// event append and aggregate update all happen inside one repository
// transaction; a rejected guard leaves no trace.
func (s *Service) Transition(ctx context.Context, actor auth.Actor, permitID uuid.UUID, req *TransitionRequest) (*TransitionResult, error) {
	tipo := req.TipoEvento
	if !workflows.ValidEventType(tipo) {
		return nil, &ValidationError{Field: "tipo_evento", Message: fmt.Sprintf("tipo de evento desconhecido: %s", tipo)}
	}
	if !s.machine.Can(actor.Roles, tipo) {
		return nil, ErrPermissionDenied
	}
	if tipo == workflows.EventImpedimento && req.ImpedimentoID == nil {
		return nil, &ValidationError{Field: "impedimento_id", Message: "impedimento requer um motivo selecionado"}
	}

	// Cutoffs are loaded up front to keep the transaction short. A missing
	// or unreadable configuration falls back to the defaults; a release is
	// never blocked by configuration.
	window := DefaultSLAWindow()
	if tipo == workflows.EventLiberacao {
		window = s.slaWindow(ctx)
	}

	now := s.now()
	location := geo.Sanitize(req.Location)

	permit, event, err := s.repo.Transition(ctx, permitID, func(p *Permit, history []*Event) (*Event, error) {
		types := make([]workflows.EventType, len(history))
		for i, e := range history {
			types[i] = e.TipoEvento
		}

		if err := s.machine.Validate(p.Status, types, tipo); err != nil {
			return nil, err
		}

		event := &Event{
			ID:                uuid.New(),
			PermitID:          p.ID,
			TipoEvento:        tipo,
			CriadoPor:         actor.UserID,
			CriadoEm:          now,
			UserAgent:         req.UserAgent,
			IP:                req.IP,
			Observacao:        req.Observacao,
			ConfirmacaoStatus: ConfirmConfirmado,
		}
		if location != nil {
			event.Lat = &location.Lat
			event.Lon = &location.Lon
			event.Accuracy = &location.Accuracy
		}

		switch tipo {
		case workflows.EventChegada:
			// Arrival recorded by a foreman awaits operator confirmation.
			if !actor.Roles.Has(workflows.RoleOperador) {
				event.ConfirmacaoStatus = ConfirmPendente
			}

		case workflows.EventLiberacao:
			requestedAt := eventTime(history, workflows.EventSolicitacao)
			attribution := AttributeDelay(requestedAt, now, window)

			if attribution.AtrasoETM > 0 || attribution.AtrasoPetrobras > 0 {
				if req.CausaAtraso == nil || strings.TrimSpace(*req.CausaAtraso) == "" {
					return nil, &ValidationError{Field: "causa_atraso", Message: "atraso detectado; informe a causa"}
				}
				causa := strings.TrimSpace(*req.CausaAtraso)
				p.CausaAtraso = &causa
			}

			responsavel := attribution.Responsavel
			p.ResponsavelAtraso = &responsavel
			p.AtrasoETM = attribution.AtrasoETM
			p.AtrasoPetrobras = attribution.AtrasoPetrobras

		case workflows.EventImpedimento:
			responsavel := ResponsavelImpedimento
			p.ResponsavelAtraso = &responsavel
			event.ImpedimentoID = req.ImpedimentoID
			event.DetalheImpedimento = req.DetalheImpedimento
		}

		next, _ := s.machine.NextStatus(tipo)
		p.Status = next
		p.AtualizadoEm = now

		return event, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Permit transitioned",
		zap.String("pt_id", permit.ID.String()),
		zap.String("tipo_evento", string(tipo)),
		zap.String("new_status", string(permit.Status)),
		zap.String("actor", actor.UserID.String()))

	if s.hub != nil {
		s.hub.BroadcastStatus(permit.ID, permit.NumeroPT, permit.Status, permit.ResponsavelAtraso)
	}

	return &TransitionResult{
		PermitID:        permit.ID,
		NewStatus:       permit.Status,
		EventID:         event.ID,
		AtrasoETM:       permit.AtrasoETM,
		AtrasoPetrobras: permit.AtrasoPetrobras,
	}, nil
}

// ConfirmArrival lets an operator confirm an arrival that a foreman
// recorded on their behalf.
func (s *Service) ConfirmArrival(ctx context.Context, actor auth.Actor, eventID uuid.UUID) (*Event, error) {
	if !actor.Roles.Has(workflows.RoleOperador) {
		return nil, ErrPermissionDenied
	}
	return s.repo.ConfirmEvent(ctx, eventID, actor.UserID, s.now())
}

// UpdateDelayCause records or amends the free-text delay cause.
func (s *Service) UpdateDelayCause(ctx context.Context, actor auth.Actor, permitID uuid.UUID, causa string) error {
	if !actor.Roles.Has(workflows.RoleOperador) && !actor.Roles.Has(workflows.RoleEncarregado) {
		return ErrPermissionDenied
	}
	causa = strings.TrimSpace(causa)
	if causa == "" {
		return &ValidationError{Field: "causa_atraso", Message: "obrigatória"}
	}
	return s.repo.UpdateDelayCause(ctx, permitID, causa)
}

func (s *Service) slaWindow(ctx context.Context) SLAWindow {
	cfg, err := s.slas.Active(ctx)
	if err != nil {
		s.logger.Warn("Failed to load SLA config, using defaults", zap.Error(err))
		return DefaultSLAWindow()
	}
	if cfg == nil {
		s.logger.Info("No active SLA config, using defaults")
		return DefaultSLAWindow()
	}
	return SLAWindow{
		RequestCutoff: cfg.HoraLimiteSolicitacao,
		ReleaseCutoff: cfg.HoraLimiteLiberacao,
	}
}

func eventTime(history []*Event, tipo workflows.EventType) *time.Time {
	for _, e := range history {
		if e.TipoEvento == tipo {
			t := e.CriadoEm
			return &t
		}
	}
	return nil
}
