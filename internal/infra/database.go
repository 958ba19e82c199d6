package infra

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/galo-graneros/ai-contador/internal/model"
)

// NewDatabase establishes a GORM connection backed by pgx and runs
// AutoMigrate for every entity the core owns.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("migraciones: %w", err)
	}

	return db, nil
}

// RunMigrations applies the schema. Every lookup is scoped by user_id at
// the repository layer; the composite unique indexes declared on the
// models ((user, provider), (punto_venta, numero), (user, periodo, tipo),
// (conexion, external_id)) are what make upserts idempotent.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Usuario{},
		&model.Conexion{},
		&model.Transaccion{},
		&model.Factura{},
		&model.FacturaItem{},
		&model.ContadorPuntoVenta{},
		&model.DeclaracionBorrador{},
		&model.Clasificacion{},
	)
}
