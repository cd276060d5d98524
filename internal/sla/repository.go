package sla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads and manages SLA configuration rows.
type Repository interface {
	Active(ctx context.Context) (*Config, error)
	List(ctx context.Context) ([]Config, error)
	Create(ctx context.Context, cfg *Config) error
	Activate(ctx context.Context, id uuid.UUID) error
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Active returns the single active configuration, or nil when none exists.
func (r *GormRepository) Active(ctx context.Context) (*Config, error) {
	var cfg Config
	err := r.db.WithContext(ctx).Where("ativo = ?", true).Order("criado_em DESC").First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active sla config: %w", err)
	}
	return &cfg, nil
}

func (r *GormRepository) List(ctx context.Context) ([]Config, error) {
	var configs []Config
	if err := r.db.WithContext(ctx).Order("criado_em DESC").Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to list sla configs: %w", err)
	}
	return configs, nil
}

// Create inserts a configuration. An active one deactivates all others in
// the same transaction, preserving the at-most-one-active convention.
func (r *GormRepository) Create(ctx context.Context, cfg *Config) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	cfg.CriadoEm = time.Now()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cfg.Ativo {
			if err := tx.Model(&Config{}).Where("ativo = ?", true).Update("ativo", false).Error; err != nil {
				return fmt.Errorf("failed to deactivate previous sla configs: %w", err)
			}
		}
		if err := tx.Create(cfg).Error; err != nil {
			return fmt.Errorf("failed to create sla config: %w", err)
		}
		return nil
	})
}

// Activate makes the given row the single active configuration.
func (r *GormRepository) Activate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Config{}).Where("ativo = ?", true).Update("ativo", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate previous sla configs: %w", err)
		}
		res := tx.Model(&Config{}).Where("id = ?", id).Update("ativo", true)
		if res.Error != nil {
			return fmt.Errorf("failed to activate sla config: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
