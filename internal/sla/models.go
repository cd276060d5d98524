package sla

import (
	"time"

	"github.com/google/uuid"
)

// Config is a row of the sla_config table. At most one row is active at a
// time by convention; readers must tolerate zero active rows and fall back
// to the documented defaults.
type Config struct {
	ID                    uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	HoraLimiteSolicitacao string     `json:"hora_limite_solicitacao" gorm:"type:varchar(8);not null;default:'07:30:00'"`
	HoraLimiteLiberacao   string     `json:"hora_limite_liberacao" gorm:"type:varchar(8);not null;default:'08:15:00'"`
	Timezone              string     `json:"timezone" gorm:"type:varchar(64);not null;default:'America/Sao_Paulo'"`
	Ativo                 bool       `json:"ativo" gorm:"not null;default:false;index"`
	CriadoPor             *uuid.UUID `json:"criado_por" gorm:"type:uuid"`
	CriadoEm              time.Time  `json:"criado_em" gorm:"autoCreateTime"`
}

func (Config) TableName() string { return "sla_config" }

// CreateConfigRequest is the admin payload for a new SLA configuration.
type CreateConfigRequest struct {
	HoraLimiteSolicitacao string `json:"hora_limite_solicitacao" binding:"required"`
	HoraLimiteLiberacao   string `json:"hora_limite_liberacao" binding:"required"`
	Timezone              string `json:"timezone"`
	Ativo                 bool   `json:"ativo"`
}
