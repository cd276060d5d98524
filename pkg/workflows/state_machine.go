package workflows

import "fmt"

// Status is the lifecycle state of a permit.
type Status string

const (
	StatusPendente   Status = "pendente"
	StatusSolicitada Status = "solicitada"
	StatusChegada    Status = "chegada"
	StatusLiberada   Status = "liberada"
	StatusImpedida   Status = "impedida"
)

// EventType identifies a workflow transition. Event types mirror statuses
// but are distinct: the event records that a transition happened, the
// status records where the permit is now.
type EventType string

const (
	EventSolicitacao EventType = "solicitacao"
	EventChegada     EventType = "chegada"
	EventLiberacao   EventType = "liberacao"
	EventImpedimento EventType = "impedimento"
)

// Role is an application role carried by an actor.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleEncarregado  Role = "encarregado"
	RoleOperador     Role = "operador"
	RoleVisualizador Role = "visualizador"
)

// RoleSet is the set of roles an actor holds.
type RoleSet map[Role]bool

// NewRoleSet builds a RoleSet from a list of roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	return set
}

// Has reports whether the set contains the role. Admin is a superset of
// every other role.
func (s RoleSet) Has(role Role) bool {
	return s[role] || s[RoleAdmin]
}

// Slice returns the roles as strings, for serialization.
func (s RoleSet) Slice() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, string(r))
	}
	return out
}

// GuardError reports a transition whose guard precondition does not hold.
// Guard carries a stable identifier so the UI can present a precise error.
type GuardError struct {
	Guard   string
	Message string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard %s: %s", e.Guard, e.Message)
}

// transition is one row of the workflow table: the minimum role that may
// fire the event and the status the permit ends up in.
type transition struct {
	actor Role
	next  Status
}

// StateMachine validates and resolves permit status transitions.
type StateMachine struct {
	transitions map[EventType]transition
}

// NewStateMachine creates the permit workflow state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		transitions: map[EventType]transition{
			EventSolicitacao: {actor: RoleEncarregado, next: StatusSolicitada},
			EventChegada:     {actor: RoleEncarregado, next: StatusChegada},
			EventLiberacao:   {actor: RoleOperador, next: StatusLiberada},
			EventImpedimento: {actor: RoleOperador, next: StatusImpedida},
		},
	}
}

// Can reports whether the role set may fire the event type. Permission is
// a pure function of the transition table; it never consults ambient state.
func (sm *StateMachine) Can(roles RoleSet, event EventType) bool {
	t, ok := sm.transitions[event]
	if !ok {
		return false
	}
	return roles.Has(t.actor)
}

// NextStatus returns the status a permit moves to when the event fires.
func (sm *StateMachine) NextStatus(event EventType) (Status, bool) {
	t, ok := sm.transitions[event]
	if !ok {
		return "", false
	}
	return t.next, true
}

// Validate checks the guard for firing event against the permit's current
// status and recorded event history. A nil return means the transition is
// legal; otherwise the returned *GuardError names the violated guard.
func (sm *StateMachine) Validate(status Status, history []EventType, event EventType) error {
	seen := make(map[EventType]bool, len(history))
	for _, h := range history {
		seen[h] = true
	}

	switch event {
	case EventSolicitacao:
		if status != StatusPendente {
			return &GuardError{Guard: "status_not_pendente", Message: "solicitação só é permitida com a PT pendente"}
		}
		if seen[EventSolicitacao] {
			return &GuardError{Guard: "solicitacao_already_recorded", Message: "solicitação já registrada"}
		}
	case EventChegada:
		if !seen[EventSolicitacao] {
			return &GuardError{Guard: "no_solicitacao", Message: "chegada requer solicitação registrada"}
		}
		if seen[EventChegada] {
			return &GuardError{Guard: "chegada_already_recorded", Message: "chegada já registrada"}
		}
	case EventLiberacao, EventImpedimento:
		if !seen[EventChegada] {
			return &GuardError{Guard: "no_chegada", Message: "liberação ou impedimento requer chegada registrada"}
		}
		if seen[EventLiberacao] {
			return &GuardError{Guard: "liberacao_already_recorded", Message: "PT já liberada"}
		}
		if seen[EventImpedimento] {
			return &GuardError{Guard: "impedimento_already_recorded", Message: "PT já impedida"}
		}
	default:
		return &GuardError{Guard: "unknown_event", Message: fmt.Sprintf("tipo de evento desconhecido: %s", event)}
	}
	return nil
}

// ValidStatus reports whether s is one of the five defined statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPendente, StatusSolicitada, StatusChegada, StatusLiberada, StatusImpedida:
		return true
	}
	return false
}

// ValidEventType reports whether t is a known event type.
func ValidEventType(t EventType) bool {
	switch t {
	case EventSolicitacao, EventChegada, EventLiberacao, EventImpedimento:
		return true
	}
	return false
}
