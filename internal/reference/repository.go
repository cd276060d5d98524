package reference

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the catalogue store for work fronts, disciplines and
// impediment reasons.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListFrentes(ctx context.Context, onlyActive bool) ([]Frente, error) {
	var out []Frente
	q := r.db.WithContext(ctx).Order("nome ASC")
	if onlyActive {
		q = q.Where("ativo = ?", true)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list frentes: %w", err)
	}
	return out, nil
}

func (r *Repository) CreateFrente(ctx context.Context, f *Frente) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("failed to create frente: %w", err)
	}
	return nil
}

func (r *Repository) UpdateFrente(ctx context.Context, id uuid.UUID, nome string, area *string) error {
	res := r.db.WithContext(ctx).Model(&Frente{}).Where("id = ?", id).
		Updates(map[string]interface{}{"nome": nome, "area": area})
	if res.Error != nil {
		return fmt.Errorf("failed to update frente: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) SetFrenteAtivo(ctx context.Context, id uuid.UUID, ativo bool) error {
	return r.setAtivo(ctx, &Frente{}, id, ativo)
}

func (r *Repository) ListDisciplinas(ctx context.Context, onlyActive bool) ([]Disciplina, error) {
	var out []Disciplina
	q := r.db.WithContext(ctx).Order("nome ASC")
	if onlyActive {
		q = q.Where("ativo = ?", true)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list disciplinas: %w", err)
	}
	return out, nil
}

func (r *Repository) CreateDisciplina(ctx context.Context, d *Disciplina) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create disciplina: %w", err)
	}
	return nil
}

func (r *Repository) UpdateDisciplina(ctx context.Context, id uuid.UUID, nome string) error {
	res := r.db.WithContext(ctx).Model(&Disciplina{}).Where("id = ?", id).Update("nome", nome)
	if res.Error != nil {
		return fmt.Errorf("failed to update disciplina: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) SetDisciplinaAtivo(ctx context.Context, id uuid.UUID, ativo bool) error {
	return r.setAtivo(ctx, &Disciplina{}, id, ativo)
}

func (r *Repository) ListImpedimentos(ctx context.Context, onlyActive bool) ([]Impedimento, error) {
	var out []Impedimento
	q := r.db.WithContext(ctx).Order("nome ASC")
	if onlyActive {
		q = q.Where("ativo = ?", true)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list impedimentos: %w", err)
	}
	return out, nil
}

func (r *Repository) CreateImpedimento(ctx context.Context, i *Impedimento) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(i).Error; err != nil {
		return fmt.Errorf("failed to create impedimento: %w", err)
	}
	return nil
}

func (r *Repository) UpdateImpedimento(ctx context.Context, id uuid.UUID, nome string) error {
	res := r.db.WithContext(ctx).Model(&Impedimento{}).Where("id = ?", id).Update("nome", nome)
	if res.Error != nil {
		return fmt.Errorf("failed to update impedimento: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) SetImpedimentoAtivo(ctx context.Context, id uuid.UUID, ativo bool) error {
	return r.setAtivo(ctx, &Impedimento{}, id, ativo)
}

func (r *Repository) setAtivo(ctx context.Context, model interface{}, id uuid.UUID, ativo bool) error {
	res := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Update("ativo", ativo)
	if res.Error != nil {
		return fmt.Errorf("failed to update ativo flag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
