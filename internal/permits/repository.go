package permits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

// TransitionFunc decides a transition inside the repository transaction.
// It receives the locked permit and its full event history, mutates the
// permit in place and returns the event to append. Returning an error
// rolls everything back; neither the event nor the permit update becomes
// visible.
type TransitionFunc func(p *Permit, history []*Event) (*Event, error)

// Repository defines data access for permits and their event log.
type Repository interface {
	Create(ctx context.Context, permit *Permit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Permit, error)
	List(ctx context.Context, filters *Filters) ([]*Permit, int, error)
	Events(ctx context.Context, permitID uuid.UUID) ([]*Event, error)
	HasEvent(ctx context.Context, permitID uuid.UUID, tipo workflows.EventType) (bool, error)
	Transition(ctx context.Context, permitID uuid.UUID, fn TransitionFunc) (*Permit, *Event, error)
	UpdateDelayCause(ctx context.Context, id uuid.UUID, causa string) error
	ConfirmEvent(ctx context.Context, eventID, userID uuid.UUID, at time.Time) (*Event, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const permitColumns = `
	id, numero_pt, tipo_pt, data_servico, status, responsavel_atraso,
	efetivo_qtd, equipe, encarregado_nome, encarregado_matricula,
	descricao_operacao, causa_atraso, atraso_etm, atraso_petrobras,
	frente_ids, disciplina_ids, criado_por, criado_em, atualizado_em`

const eventColumns = `
	id, pt_id, tipo_evento, criado_por, criado_em, lat, lon, accuracy,
	ip, user_agent, observacao, confirmacao_status, confirmado_por,
	confirmado_em, impedimento_id, detalhe_impedimento`

func (r *PostgresRepository) Create(ctx context.Context, permit *Permit) error {
	query := `
		INSERT INTO pts (
			id, numero_pt, tipo_pt, data_servico, status, efetivo_qtd, equipe,
			encarregado_nome, encarregado_matricula, descricao_operacao,
			frente_ids, disciplina_ids, criado_por, criado_em, atualizado_em
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		permit.ID, permit.NumeroPT, permit.TipoPT, permit.DataServico, permit.Status,
		permit.EfetivoQtd, permit.Equipe, permit.EncarregadoNome, permit.EncarregadoMatricula,
		permit.DescricaoOperacao, permit.FrenteIDs, permit.DisciplinaIDs,
		permit.CriadoPor, permit.CriadoEm, permit.AtualizadoEm,
	)
	if err != nil {
		return fmt.Errorf("failed to create permit: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Permit, error) {
	query := `SELECT` + permitColumns + ` FROM pts WHERE id = $1`

	var permit Permit
	if err := r.db.GetContext(ctx, &permit, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get permit: %w", err)
	}

	return &permit, nil
}

func (r *PostgresRepository) List(ctx context.Context, filters *Filters) ([]*Permit, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argIdx := 1

	addCondition := func(clause string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(clause, argIdx))
		args = append(args, value)
		argIdx++
	}

	if filters.Status != nil {
		addCondition("status = $%d", *filters.Status)
	}
	if filters.TipoPT != nil {
		addCondition("tipo_pt = $%d", *filters.TipoPT)
	}
	if filters.Responsavel != nil {
		addCondition("responsavel_atraso = $%d", *filters.Responsavel)
	}
	if filters.FrenteID != nil {
		addCondition("$%d = ANY(frente_ids)", filters.FrenteID.String())
	}
	if filters.DataInicio != nil {
		addCondition("data_servico >= $%d", *filters.DataInicio)
	}
	if filters.DataFim != nil {
		addCondition("data_servico <= $%d", *filters.DataFim)
	}
	if filters.Search != "" {
		conditions = append(conditions,
			fmt.Sprintf("(numero_pt ILIKE $%d OR descricao_operacao ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+filters.Search+"%")
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM pts WHERE " + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count permits: %w", err)
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := fmt.Sprintf(
		"SELECT%s FROM pts WHERE %s ORDER BY criado_em DESC LIMIT $%d OFFSET $%d",
		permitColumns, where, argIdx, argIdx+1,
	)
	args = append(args, pageSize, (page-1)*pageSize)

	permits := []*Permit{}
	if err := r.db.SelectContext(ctx, &permits, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list permits: %w", err)
	}

	return permits, total, nil
}

// Events returns the permit's event log ordered by creation time. The
// result is a point-in-time snapshot.
func (r *PostgresRepository) Events(ctx context.Context, permitID uuid.UUID) ([]*Event, error) {
	query := `SELECT` + eventColumns + ` FROM eventos WHERE pt_id = $1 ORDER BY criado_em ASC`

	events := []*Event{}
	if err := r.db.SelectContext(ctx, &events, query, permitID); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}

func (r *PostgresRepository) HasEvent(ctx context.Context, permitID uuid.UUID, tipo workflows.EventType) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM eventos WHERE pt_id = $1 AND tipo_evento = $2)`
	if err := r.db.GetContext(ctx, &exists, query, permitID, tipo); err != nil {
		return false, fmt.Errorf("failed to check event: %w", err)
	}
	return exists, nil
}

// Transition executes a workflow transition as one atomic unit: it locks
// the permit row, loads the event history, lets fn validate and mutate,
// then appends the event and updates the aggregate in the same
// transaction. Concurrent transitions on the same permit serialize on the
// row lock, so mutually exclusive guards cannot both pass.
func (r *PostgresRepository) Transition(ctx context.Context, permitID uuid.UUID, fn TransitionFunc) (*Permit, *Event, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var permit Permit
	lockQuery := `SELECT` + permitColumns + ` FROM pts WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &permit, lockQuery, permitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to lock permit: %w", err)
	}

	history := []*Event{}
	eventsQuery := `SELECT` + eventColumns + ` FROM eventos WHERE pt_id = $1 ORDER BY criado_em ASC`
	if err := tx.SelectContext(ctx, &history, eventsQuery, permitID); err != nil {
		return nil, nil, fmt.Errorf("failed to load event history: %w", err)
	}

	event, err := fn(&permit, history)
	if err != nil {
		return nil, nil, err
	}

	insertQuery := `
		INSERT INTO eventos (
			id, pt_id, tipo_evento, criado_por, criado_em, lat, lon, accuracy,
			ip, user_agent, observacao, confirmacao_status, confirmado_por,
			confirmado_em, impedimento_id, detalhe_impedimento
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`
	_, err = tx.ExecContext(ctx, insertQuery,
		event.ID, event.PermitID, event.TipoEvento, event.CriadoPor, event.CriadoEm,
		event.Lat, event.Lon, event.Accuracy, event.IP, event.UserAgent,
		event.Observacao, event.ConfirmacaoStatus, event.ConfirmadoPor,
		event.ConfirmadoEm, event.ImpedimentoID, event.DetalheImpedimento,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to append event: %w", err)
	}

	updateQuery := `
		UPDATE pts SET
			status = $1, responsavel_atraso = $2, causa_atraso = $3,
			atraso_etm = $4, atraso_petrobras = $5, atualizado_em = $6
		WHERE id = $7
	`
	_, err = tx.ExecContext(ctx, updateQuery,
		permit.Status, permit.ResponsavelAtraso, permit.CausaAtraso,
		permit.AtrasoETM, permit.AtrasoPetrobras, permit.AtualizadoEm, permit.ID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update permit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	return &permit, event, nil
}

func (r *PostgresRepository) UpdateDelayCause(ctx context.Context, id uuid.UUID, causa string) error {
	query := `UPDATE pts SET causa_atraso = $1, atualizado_em = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, causa, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update delay cause: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ConfirmEvent marks a pending arrival event as confirmed. The event row
// itself is append-only apart from its confirmation fields, which exist
// precisely for this handshake.
func (r *PostgresRepository) ConfirmEvent(ctx context.Context, eventID, userID uuid.UUID, at time.Time) (*Event, error) {
	query := `
		UPDATE eventos
		SET confirmacao_status = $1, confirmado_por = $2, confirmado_em = $3
		WHERE id = $4 AND confirmacao_status = $5
		RETURNING` + eventColumns

	var event Event
	err := r.db.GetContext(ctx, &event, query, ConfirmConfirmado, userID, at, eventID, ConfirmPendente)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to confirm event: %w", err)
	}

	return &event, nil
}
