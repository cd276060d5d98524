package permits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Cabralneto/site-tracker-pro/internal/auth"
	"github.com/Cabralneto/site-tracker-pro/internal/sla"
	"github.com/Cabralneto/site-tracker-pro/pkg/geo"
	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

// MockRepository is a mock implementation of the Repository interface.
// Transition runs the supplied TransitionFunc against the stored permit
// and history, and on success appends the event, emulating a commit.
type MockRepository struct {
	mock.Mock
	permit  *Permit
	history []*Event
}

func (m *MockRepository) Create(ctx context.Context, permit *Permit) error {
	args := m.Called(ctx, permit)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Permit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Permit), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filters *Filters) ([]*Permit, int, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*Permit), args.Int(1), args.Error(2)
}

func (m *MockRepository) Events(ctx context.Context, permitID uuid.UUID) ([]*Event, error) {
	args := m.Called(ctx, permitID)
	return args.Get(0).([]*Event), args.Error(1)
}

func (m *MockRepository) HasEvent(ctx context.Context, permitID uuid.UUID, tipo workflows.EventType) (bool, error) {
	args := m.Called(ctx, permitID, tipo)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Transition(ctx context.Context, permitID uuid.UUID, fn TransitionFunc) (*Permit, *Event, error) {
	args := m.Called(ctx, permitID)
	if err := args.Error(0); err != nil {
		return nil, nil, err
	}
	event, err := fn(m.permit, m.history)
	if err != nil {
		return nil, nil, err
	}
	m.history = append(m.history, event)
	return m.permit, event, nil
}

func (m *MockRepository) UpdateDelayCause(ctx context.Context, id uuid.UUID, causa string) error {
	args := m.Called(ctx, id, causa)
	return args.Error(0)
}

func (m *MockRepository) ConfirmEvent(ctx context.Context, eventID, userID uuid.UUID, at time.Time) (*Event, error) {
	args := m.Called(ctx, eventID, userID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Event), args.Error(1)
}

// MockSLAProvider is a mock implementation of SLAProvider
type MockSLAProvider struct {
	mock.Mock
}

func (m *MockSLAProvider) Active(ctx context.Context) (*sla.Config, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sla.Config), args.Error(1)
}

type recordingBroadcaster struct {
	calls []workflows.Status
}

func (b *recordingBroadcaster) BroadcastStatus(permitID uuid.UUID, numeroPT string, status workflows.Status, responsavel *Responsavel) {
	b.calls = append(b.calls, status)
}

func newTestService(repo *MockRepository, slas *MockSLAProvider, hub Broadcaster, now time.Time) *Service {
	s := NewService(repo, slas, hub, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func encarregado() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Roles: workflows.NewRoleSet(workflows.RoleEncarregado)}
}

func operador() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Roles: workflows.NewRoleSet(workflows.RoleOperador)}
}

func pendingPermit() *Permit {
	return &Permit{
		ID:         uuid.New(),
		NumeroPT:   "PT-2025-001",
		TipoPT:     TipoPT_PT,
		Status:     workflows.StatusPendente,
		EfetivoQtd: 5,
	}
}

func TestCreatePermit(t *testing.T) {
	repo := &MockRepository{}
	repo.On("Create", mock.Anything, mock.AnythingOfType("*permits.Permit")).Return(nil)

	svc := newTestService(repo, &MockSLAProvider{}, nil, at("09:00:00"))

	permit, err := svc.Create(context.Background(), encarregado(), &CreatePermitRequest{
		NumeroPT:    "PT-2025-001",
		DataServico: "2025-03-10",
		EfetivoQtd:  5,
	})
	require.NoError(t, err)

	assert.Equal(t, workflows.StatusPendente, permit.Status)
	assert.Equal(t, TipoPT_PT, permit.TipoPT)
	assert.NotEqual(t, uuid.Nil, permit.ID)
	repo.AssertExpectations(t)
}

func TestCreatePermitPermissionDenied(t *testing.T) {
	svc := newTestService(&MockRepository{}, &MockSLAProvider{}, nil, at("09:00:00"))

	_, err := svc.Create(context.Background(), operador(), &CreatePermitRequest{
		NumeroPT:    "PT-2025-001",
		DataServico: "2025-03-10",
		EfetivoQtd:  5,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCreatePermitValidation(t *testing.T) {
	svc := newTestService(&MockRepository{}, &MockSLAProvider{}, nil, at("09:00:00"))

	var ve *ValidationError

	_, err := svc.Create(context.Background(), encarregado(), &CreatePermitRequest{
		NumeroPT:    "PT-2025-001",
		DataServico: "2025-03-10",
		EfetivoQtd:  0,
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "efetivo_qtd", ve.Field)

	_, err = svc.Create(context.Background(), encarregado(), &CreatePermitRequest{
		NumeroPT:    "PT-2025-002",
		DataServico: "10/03/2025",
		EfetivoQtd:  3,
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "data_servico", ve.Field)
}

func TestFullLifecycleToLiberada(t *testing.T) {
	repo := &MockRepository{permit: pendingPermit()}
	repo.On("Transition", mock.Anything, repo.permit.ID).Return(nil)

	slas := &MockSLAProvider{}
	slas.On("Active", mock.Anything).Return(nil, nil)

	hub := &recordingBroadcaster{}
	foreman := encarregado()
	op := operador()

	// solicitacao at 07:20, liberacao at 08:10: no delay.
	svc := newTestService(repo, slas, hub, at("07:20:00"))

	res, err := svc.Transition(context.Background(), foreman, repo.permit.ID, &TransitionRequest{TipoEvento: workflows.EventSolicitacao})
	require.NoError(t, err)
	assert.Equal(t, workflows.StatusSolicitada, res.NewStatus)

	svc.now = func() time.Time { return at("07:50:00") }
	res, err = svc.Transition(context.Background(), foreman, repo.permit.ID, &TransitionRequest{TipoEvento: workflows.EventChegada})
	require.NoError(t, err)
	assert.Equal(t, workflows.StatusChegada, res.NewStatus)

	svc.now = func() time.Time { return at("08:10:00") }
	res, err = svc.Transition(context.Background(), op, repo.permit.ID, &TransitionRequest{TipoEvento: workflows.EventLiberacao})
	require.NoError(t, err)

	assert.Equal(t, workflows.StatusLiberada, res.NewStatus)
	assert.Equal(t, 0, res.AtrasoETM)
	assert.Equal(t, 0, res.AtrasoPetrobras)
	require.NotNil(t, repo.permit.ResponsavelAtraso)
	assert.Equal(t, ResponsavelSemAtraso, *repo.permit.ResponsavelAtraso)

	// one event of each type in the log
	assert.Len(t, repo.history, 3)
	assert.Equal(t, []workflows.Status{workflows.StatusSolicitada, workflows.StatusChegada, workflows.StatusLiberada}, hub.calls)
}

func TestSecondLiberacaoRejected(t *testing.T) {
	permit := pendingPermit()
	permit.Status = workflows.StatusLiberada
	repo := &MockRepository{
		permit: permit,
		history: []*Event{
			{TipoEvento: workflows.EventSolicitacao, CriadoEm: at("07:00:00")},
			{TipoEvento: workflows.EventChegada, CriadoEm: at("07:40:00")},
			{TipoEvento: workflows.EventLiberacao, CriadoEm: at("08:00:00")},
		},
	}
	repo.On("Transition", mock.Anything, permit.ID).Return(nil)

	slas := &MockSLAProvider{}
	slas.On("Active", mock.Anything).Return(nil, nil)

	svc := newTestService(repo, slas, nil, at("08:05:00"))

	_, err := svc.Transition(context.Background(), operador(), permit.ID, &TransitionRequest{TipoEvento: workflows.EventLiberacao})
	require.Error(t, err)

	var ge *workflows.GuardError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "liberacao_already_recorded", ge.Guard)

	// rejection leaves the log untouched
	assert.Len(t, repo.history, 3)
	assert.Equal(t, workflows.StatusLiberada, permit.Status)
}

func TestLiberacaoLateRequestChargesETM(t *testing.T) {
	permit := pendingPermit()
	permit.Status = workflows.StatusChegada
	repo := &MockRepository{
		permit: permit,
		history: []*Event{
			{TipoEvento: workflows.EventSolicitacao, CriadoEm: at("07:45:00")},
			{TipoEvento: workflows.EventChegada, CriadoEm: at("07:55:00")},
		},
	}
	repo.On("Transition", mock.Anything, permit.ID).Return(nil)

	slas := &MockSLAProvider{}
	slas.On("Active", mock.Anything).Return(nil, nil)

	svc := newTestService(repo, slas, nil, at("08:00:00"))

	// delay detected and no causa supplied: rejected
	_, err := svc.Transition(context.Background(), operador(), permit.ID, &TransitionRequest{TipoEvento: workflows.EventLiberacao})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "causa_atraso", ve.Field)
	assert.Len(t, repo.history, 2)

	causa := "documentação pendente"
	res, err := svc.Transition(context.Background(), operador(), permit.ID, &TransitionRequest{
		TipoEvento:  workflows.EventLiberacao,
		CausaAtraso: &causa,
	})
	require.NoError(t, err)

	assert.Equal(t, 15, res.AtrasoETM)
	assert.Equal(t, 0, res.AtrasoPetrobras)
	require.NotNil(t, permit.ResponsavelAtraso)
	assert.Equal(t, ResponsavelETM, *permit.ResponsavelAtraso)
	require.NotNil(t, permit.CausaAtraso)
	assert.Equal(t, causa, *permit.CausaAtraso)
}

func TestLiberacaoUsesConfiguredSLA(t *testing.T) {
	permit := pendingPermit()
	permit.Status = workflows.StatusChegada
	repo := &MockRepository{
		permit: permit,
		history: []*Event{
			{TipoEvento: workflows.EventSolicitacao, CriadoEm: at("07:45:00")},
			{TipoEvento: workflows.EventChegada, CriadoEm: at("07:55:00")},
		},
	}
	repo.On("Transition", mock.Anything, permit.ID).Return(nil)

	// configured request cutoff of 08:00 makes the 07:45 request on time
	slas := &MockSLAProvider{}
	slas.On("Active", mock.Anything).Return(&sla.Config{
		HoraLimiteSolicitacao: "08:00:00",
		HoraLimiteLiberacao:   "09:00:00",
		Ativo:                 true,
	}, nil)

	svc := newTestService(repo, slas, nil, at("08:30:00"))

	res, err := svc.Transition(context.Background(), operador(), permit.ID, &TransitionRequest{TipoEvento: workflows.EventLiberacao})
	require.NoError(t, err)

	assert.Equal(t, 0, res.AtrasoETM)
	assert.Equal(t, 0, res.AtrasoPetrobras)
	assert.Equal(t, ResponsavelSemAtraso, *permit.ResponsavelAtraso)
}

func TestLiberacaoSLALoadFailureFallsBackToDefaults(t *testing.T) {
	permit := pendingPermit()
	permit.Status = workflows.StatusChegada
	repo := &MockRepository{
		permit: permit,
		history: []*Event{
			{TipoEvento: workflows.EventSolicitacao, CriadoEm: at("07:20:00")},
			{TipoEvento: workflows.EventChegada, CriadoEm: at("07:40:00")},
		},
	}
	repo.On("Transition", mock.Anything, permit.ID).Return(nil)

	slas := &MockSLAProvider{}
	slas.On("Active", mock.Anything).Return(nil, errors.New("connection refused"))

	svc := newTestService(repo, slas, nil, at("08:30:00"))

	causa := "aguardando liberação da área"
	res, err := svc.Transition(context.Background(), operador(), permit.ID, &TransitionRequest{
		TipoEvento:  workflows.EventLiberacao,
		CausaAtraso: &causa,
	})
	require.NoError(t, err)

	// defaults 07:30/08:15: release at 08:30 is 15 minutes late
	assert.Equal(t, 0, res.AtrasoETM)
	assert.Equal(t, 15, res.AtrasoPetrobras)
	assert.Equal(t, ResponsavelPetrobras, *permit.ResponsavelAtraso)
}

func TestImpedimento(t *testing.T) {
	permit := pendingPermit()
	permit.Status = workflows.StatusChegada
	repo := &MockRepository{
		permit: permit,
		history: []*Event{
			{TipoEvento: workflows.EventSolicitacao, CriadoEm: at("07:00:00")},
			{TipoEvento: workflows.EventChegada, CriadoEm: at("07:30:00")},
		},
	}
	repo.On("Transition", mock.Anything, permit.ID).Return(nil)

	svc := newTestService(repo, &MockSLAProvider{}, nil, at("08:00:00"))

	// missing impediment reason
	_, err := svc.Transition(context.Background(), operador(), permit.ID, &TransitionRequest{TipoEvento: workflows.EventImpedimento})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "impedimento_id", ve.Field)

	motivo := uuid.New()
	detalhe := "andaime interditado"
	res, err := svc.Transition(context.Background(), operador(), permit.ID, &TransitionRequest{
		TipoEvento:         workflows.EventImpedimento,
		ImpedimentoID:      &motivo,
		DetalheImpedimento: &detalhe,
	})
	require.NoError(t, err)

	assert.Equal(t, workflows.StatusImpedida, res.NewStatus)
	require.NotNil(t, permit.ResponsavelAtraso)
	assert.Equal(t, ResponsavelImpedimento, *permit.ResponsavelAtraso)
	// no delay-minute computation on impedimento
	assert.Equal(t, 0, permit.AtrasoETM)
	assert.Equal(t, 0, permit.AtrasoPetrobras)

	last := repo.history[len(repo.history)-1]
	require.NotNil(t, last.ImpedimentoID)
	assert.Equal(t, motivo, *last.ImpedimentoID)
}

func TestTransitionPermissionDenied(t *testing.T) {
	svc := newTestService(&MockRepository{}, &MockSLAProvider{}, nil, at("08:00:00"))

	_, err := svc.Transition(context.Background(), encarregado(), uuid.New(), &TransitionRequest{TipoEvento: workflows.EventLiberacao})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	viewer := auth.Actor{UserID: uuid.New(), Roles: workflows.NewRoleSet(workflows.RoleVisualizador)}
	_, err = svc.Transition(context.Background(), viewer, uuid.New(), &TransitionRequest{TipoEvento: workflows.EventSolicitacao})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestChegadaConfirmationStatus(t *testing.T) {
	makeRepo := func() *MockRepository {
		permit := pendingPermit()
		permit.Status = workflows.StatusSolicitada
		repo := &MockRepository{
			permit:  permit,
			history: []*Event{{TipoEvento: workflows.EventSolicitacao, CriadoEm: at("07:00:00")}},
		}
		repo.On("Transition", mock.Anything, permit.ID).Return(nil)
		return repo
	}

	// foreman arrival awaits operator confirmation
	repo := makeRepo()
	svc := newTestService(repo, &MockSLAProvider{}, nil, at("07:30:00"))
	_, err := svc.Transition(context.Background(), encarregado(), repo.permit.ID, &TransitionRequest{TipoEvento: workflows.EventChegada})
	require.NoError(t, err)
	assert.Equal(t, ConfirmPendente, repo.history[len(repo.history)-1].ConfirmacaoStatus)

	// admin acts as operator: confirmed immediately
	repo = makeRepo()
	svc = newTestService(repo, &MockSLAProvider{}, nil, at("07:30:00"))
	admin := auth.Actor{UserID: uuid.New(), Roles: workflows.NewRoleSet(workflows.RoleAdmin)}
	_, err = svc.Transition(context.Background(), admin, repo.permit.ID, &TransitionRequest{TipoEvento: workflows.EventChegada})
	require.NoError(t, err)
	assert.Equal(t, ConfirmConfirmado, repo.history[len(repo.history)-1].ConfirmacaoStatus)
}

func TestTransitionNotFound(t *testing.T) {
	repo := &MockRepository{}
	id := uuid.New()
	repo.On("Transition", mock.Anything, id).Return(ErrNotFound)

	svc := newTestService(repo, &MockSLAProvider{}, nil, at("08:00:00"))

	_, err := svc.Transition(context.Background(), encarregado(), id, &TransitionRequest{TipoEvento: workflows.EventSolicitacao})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmArrivalRequiresOperador(t *testing.T) {
	svc := newTestService(&MockRepository{}, &MockSLAProvider{}, nil, at("08:00:00"))

	_, err := svc.ConfirmArrival(context.Background(), encarregado(), uuid.New())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestTransitionSanitizesGeolocation(t *testing.T) {
	permit := pendingPermit()
	repo := &MockRepository{permit: permit}
	repo.On("Transition", mock.Anything, permit.ID).Return(nil)

	svc := newTestService(repo, &MockSLAProvider{}, nil, at("07:00:00"))

	// out-of-range coordinates are dropped, not an error
	_, err := svc.Transition(context.Background(), encarregado(), permit.ID, &TransitionRequest{
		TipoEvento: workflows.EventSolicitacao,
		Location:   &geo.Point{Lat: 200, Lon: 10, Accuracy: 5},
	})
	require.NoError(t, err)

	last := repo.history[len(repo.history)-1]
	assert.Nil(t, last.Lat)
	assert.Nil(t, last.Lon)
}
