package model

import (
	"time"

	"github.com/google/uuid"
)

// Conexion links a user with an external provider (one row per user+provider).
// Provider: "mercadopago" | "afip" | "banco"
// Estado:   "activa" | "inactiva" | "error" | "pendiente"
// Credentials and tokens are always stored encrypted by the vault; the raw
// secret never touches the database. Disconnecting marks the row inactiva —
// connections are never hard-deleted.
type Conexion struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID   uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_conexion_user_provider;not null"`
	Provider string    `gorm:"type:varchar(20);uniqueIndex:idx_conexion_user_provider;not null"`
	Estado   string    `gorm:"type:varchar(20);not null;default:'pendiente'"`

	CredencialesCifradas *string `gorm:"column:credenciales_cifradas"`
	AccessTokenCifrado   *string `gorm:"column:access_token_cifrado"`
	RefreshTokenCifrado  *string `gorm:"column:refresh_token_cifrado"`
	TokenExpiraEn        *time.Time
	// Metadata is a serialized JSON blob (cuit, punto_venta, mp user id…)
	Metadata             *string `gorm:"type:jsonb"`
	UltimaSincronizacion *time.Time
	MensajeError         *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Conexion) TableName() string { return "conexiones" }
