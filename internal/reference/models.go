package reference

import (
	"time"

	"github.com/google/uuid"
)

// Frente is a work front, the physical area a permit applies to.
type Frente struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Nome      string     `json:"nome" gorm:"not null;uniqueIndex"`
	Area      *string    `json:"area,omitempty"`
	Ativo     bool       `json:"ativo" gorm:"not null;default:true"`
	CriadoPor *uuid.UUID `json:"criado_por,omitempty" gorm:"type:uuid"`
	CriadoEm  time.Time  `json:"criado_em" gorm:"autoCreateTime"`
}

func (Frente) TableName() string { return "frentes" }

// Disciplina is a trade discipline (scaffolding, electrical, ...).
type Disciplina struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Nome      string     `json:"nome" gorm:"not null;uniqueIndex"`
	Ativo     bool       `json:"ativo" gorm:"not null;default:true"`
	CriadoPor *uuid.UUID `json:"criado_por,omitempty" gorm:"type:uuid"`
	CriadoEm  time.Time  `json:"criado_em" gorm:"autoCreateTime"`
}

func (Disciplina) TableName() string { return "disciplinas" }

// Impedimento is a catalogued blocking reason an operator selects when
// blocking a permit.
type Impedimento struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Nome      string     `json:"nome" gorm:"not null;uniqueIndex"`
	Ativo     bool       `json:"ativo" gorm:"not null;default:true"`
	CriadoPor *uuid.UUID `json:"criado_por,omitempty" gorm:"type:uuid"`
	CriadoEm  time.Time  `json:"criado_em" gorm:"autoCreateTime"`
}

func (Impedimento) TableName() string { return "impedimentos" }

// UpsertRequest covers create and rename for all three catalogues.
type UpsertRequest struct {
	Nome string  `json:"nome" binding:"required"`
	Area *string `json:"area"`
}
