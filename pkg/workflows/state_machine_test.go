package workflows

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanRespectsTransitionTable(t *testing.T) {
	sm := NewStateMachine()

	tests := []struct {
		name  string
		roles RoleSet
		event EventType
		want  bool
	}{
		{"encarregado solicita", NewRoleSet(RoleEncarregado), EventSolicitacao, true},
		{"encarregado registra chegada", NewRoleSet(RoleEncarregado), EventChegada, true},
		{"encarregado nao libera", NewRoleSet(RoleEncarregado), EventLiberacao, false},
		{"encarregado nao impede", NewRoleSet(RoleEncarregado), EventImpedimento, false},
		{"operador libera", NewRoleSet(RoleOperador), EventLiberacao, true},
		{"operador impede", NewRoleSet(RoleOperador), EventImpedimento, true},
		{"operador nao solicita", NewRoleSet(RoleOperador), EventSolicitacao, false},
		{"admin faz tudo", NewRoleSet(RoleAdmin), EventLiberacao, true},
		{"admin solicita", NewRoleSet(RoleAdmin), EventSolicitacao, true},
		{"visualizador nada", NewRoleSet(RoleVisualizador), EventSolicitacao, false},
		{"sem roles nada", NewRoleSet(), EventChegada, false},
		{"evento desconhecido", NewRoleSet(RoleAdmin), EventType("cancelamento"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sm.Can(tt.roles, tt.event))
		})
	}
}

func TestValidateHappyPath(t *testing.T) {
	sm := NewStateMachine()

	require.NoError(t, sm.Validate(StatusPendente, nil, EventSolicitacao))
	require.NoError(t, sm.Validate(StatusSolicitada, []EventType{EventSolicitacao}, EventChegada))
	require.NoError(t, sm.Validate(StatusChegada, []EventType{EventSolicitacao, EventChegada}, EventLiberacao))
	require.NoError(t, sm.Validate(StatusChegada, []EventType{EventSolicitacao, EventChegada}, EventImpedimento))
}

func TestValidateGuardViolations(t *testing.T) {
	sm := NewStateMachine()

	tests := []struct {
		name    string
		status  Status
		history []EventType
		event   EventType
		guard   string
	}{
		{"solicitacao fora de pendente", StatusSolicitada, []EventType{EventSolicitacao}, EventSolicitacao, "status_not_pendente"},
		{"chegada sem solicitacao", StatusPendente, nil, EventChegada, "no_solicitacao"},
		{"chegada duplicada", StatusChegada, []EventType{EventSolicitacao, EventChegada}, EventChegada, "chegada_already_recorded"},
		{"liberacao sem chegada", StatusSolicitada, []EventType{EventSolicitacao}, EventLiberacao, "no_chegada"},
		{"liberacao duplicada", StatusLiberada, []EventType{EventSolicitacao, EventChegada, EventLiberacao}, EventLiberacao, "liberacao_already_recorded"},
		{"liberacao apos impedimento", StatusImpedida, []EventType{EventSolicitacao, EventChegada, EventImpedimento}, EventLiberacao, "impedimento_already_recorded"},
		{"impedimento apos liberacao", StatusLiberada, []EventType{EventSolicitacao, EventChegada, EventLiberacao}, EventImpedimento, "liberacao_already_recorded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sm.Validate(tt.status, tt.history, tt.event)
			require.Error(t, err)
			var ge *GuardError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, tt.guard, ge.Guard)
		})
	}
}

func TestNextStatus(t *testing.T) {
	sm := NewStateMachine()

	next, ok := sm.NextStatus(EventSolicitacao)
	require.True(t, ok)
	assert.Equal(t, StatusSolicitada, next)

	next, ok = sm.NextStatus(EventImpedimento)
	require.True(t, ok)
	assert.Equal(t, StatusImpedida, next)

	_, ok = sm.NextStatus(EventType("outro"))
	assert.False(t, ok)
}

func TestRoleSetAdminSuperset(t *testing.T) {
	admin := NewRoleSet(RoleAdmin)
	assert.True(t, admin.Has(RoleEncarregado))
	assert.True(t, admin.Has(RoleOperador))
	assert.True(t, admin.Has(RoleVisualizador))

	operador := NewRoleSet(RoleOperador)
	assert.False(t, operador.Has(RoleEncarregado))
}
