package reports

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Repository defines read-only reporting queries over permits and their
// event log.
type Repository interface {
	Rows(ctx context.Context, filters Filters) ([]*Row, error)
	Stats(ctx context.Context, filters Filters) (*Stats, error)
}

// PostgresRepository implements Repository with raw SQL; reporting reads
// bypass the ORM so the milestone subqueries stay explicit.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const rowColumns = `
	p.id, p.numero_pt, p.tipo_pt, p.data_servico, p.status, p.responsavel_atraso,
	p.efetivo_qtd, p.equipe, p.encarregado_nome, p.descricao_operacao,
	p.causa_atraso, p.atraso_etm, p.atraso_petrobras,
	(SELECT MIN(e.criado_em) FROM eventos e
		WHERE e.pt_id = p.id AND e.tipo_evento = 'solicitacao') AS solicitada_em,
	(SELECT MIN(e.criado_em) FROM eventos e
		WHERE e.pt_id = p.id AND e.tipo_evento = 'chegada') AS chegada_em,
	(SELECT MIN(e.criado_em) FROM eventos e
		WHERE e.pt_id = p.id AND e.tipo_evento = 'liberacao') AS liberada_em`

// Rows returns permits flattened for reporting, newest service date first.
func (r *PostgresRepository) Rows(ctx context.Context, filters Filters) ([]*Row, error) {
	where, args := buildWhere(filters)
	query := fmt.Sprintf(`SELECT %s FROM pts p %s ORDER BY p.data_servico DESC, p.numero_pt`,
		rowColumns, where)

	rows := []*Row{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query report rows: %w", err)
	}
	return rows, nil
}

// Stats aggregates the filtered permit population in a single query.
func (r *PostgresRepository) Stats(ctx context.Context, filters Filters) (*Stats, error) {
	where, args := buildWhere(filters)
	query := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE p.status = 'pendente')   AS pendentes,
		COUNT(*) FILTER (WHERE p.status = 'solicitada') AS solicitadas,
		COUNT(*) FILTER (WHERE p.status = 'chegada')    AS chegadas,
		COUNT(*) FILTER (WHERE p.status = 'liberada')   AS liberadas,
		COUNT(*) FILTER (WHERE p.status = 'impedida')   AS impedidas,
		COUNT(*) FILTER (WHERE p.responsavel_atraso = 'etm')       AS atrasos_etm,
		COUNT(*) FILTER (WHERE p.responsavel_atraso = 'petrobras') AS atrasos_petrobras,
		COALESCE(SUM(p.atraso_etm), 0)       AS minutos_etm,
		COALESCE(SUM(p.atraso_petrobras), 0) AS minutos_petrobras,
		COALESCE(SUM(p.efetivo_qtd * (p.atraso_etm + p.atraso_petrobras)), 0) AS total_hh_improdutivo
	FROM pts p %s`, where)

	stats := &Stats{}
	if err := r.db.GetContext(ctx, stats, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query report stats: %w", err)
	}
	return stats, nil
}

func buildWhere(filters Filters) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}
	argIdx := 1

	add := func(condition string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(condition, argIdx))
		args = append(args, value)
		argIdx++
	}

	if filters.DataInicio != nil {
		add("p.data_servico >= $%d", *filters.DataInicio)
	}
	if filters.DataFim != nil {
		add("p.data_servico <= $%d", *filters.DataFim)
	}
	if filters.Status != nil {
		add("p.status = $%d", *filters.Status)
	}
	if filters.TipoPT != nil {
		add("p.tipo_pt = $%d", *filters.TipoPT)
	}
	if filters.Responsavel != nil {
		add("p.responsavel_atraso = $%d", *filters.Responsavel)
	}
	if filters.FrenteID != nil {
		add("$%d::uuid = ANY(p.frente_ids)", *filters.FrenteID)
	}
	if filters.DisciplinaID != nil {
		add("$%d::uuid = ANY(p.disciplina_ids)", *filters.DisciplinaID)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
