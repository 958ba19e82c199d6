package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaccion is one normalized payment-provider movement.
// Tipo:   "income" | "expense" | "transfer" | "tax" | "other"
// Estado: "pendiente" | "clasificada" | "facturada" | "conciliada"
// Uniqueness: (conexion_id, external_id) — re-syncing the same movement
// is a no-op upsert.
type Transaccion struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID      uuid.UUID       `gorm:"type:uuid;index;not null"`
	ConexionID  uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_transaccion_conexion_ext;not null"`
	ExternalID  string          `gorm:"type:varchar(64);uniqueIndex:idx_transaccion_conexion_ext;not null"`
	Tipo        string          `gorm:"type:varchar(20);not null;default:'other'"`
	Monto       decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Moneda      string          `gorm:"type:varchar(3);not null;default:'ARS'"`
	Descripcion string          `gorm:"not null"`
	Contraparte *string
	Fecha       time.Time `gorm:"index;not null"`
	// RawData preserves the provider payload verbatim for audit
	RawData   *string    `gorm:"type:jsonb"`
	Estado    string     `gorm:"type:varchar(20);not null;default:'pendiente'"`
	FacturaID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Transaccion) TableName() string { return "transacciones" }
