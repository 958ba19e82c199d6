package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/galo-graneros/ai-contador/internal/model"
)

type ConexionRepository interface {
	Upsert(ctx context.Context, c *model.Conexion) error
	FindByUserProvider(ctx context.Context, userID uuid.UUID, provider string) (*model.Conexion, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Conexion, error)
	ListActivas(ctx context.Context, provider string) ([]model.Conexion, error)
	Update(ctx context.Context, c *model.Conexion) error
}

type conexionRepo struct{ db *gorm.DB }

func NewConexionRepository(db *gorm.DB) ConexionRepository {
	return &conexionRepo{db: db}
}

// Upsert creates or replaces the single row per (user, provider).
func (r *conexionRepo) Upsert(ctx context.Context, c *model.Conexion) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"estado", "credenciales_cifradas", "access_token_cifrado",
			"refresh_token_cifrado", "token_expira_en", "metadata",
			"ultima_sincronizacion", "mensaje_error", "updated_at",
		}),
	}).Create(c).Error
}

func (r *conexionRepo) FindByUserProvider(ctx context.Context, userID uuid.UUID, provider string) (*model.Conexion, error) {
	var c model.Conexion
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&c).Error
	return &c, err
}

func (r *conexionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Conexion, error) {
	var conexiones []model.Conexion
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&conexiones).Error
	return conexiones, err
}

// ListActivas returns every active connection for a provider — the sync
// cron iterates this set.
func (r *conexionRepo) ListActivas(ctx context.Context, provider string) ([]model.Conexion, error) {
	var conexiones []model.Conexion
	err := r.db.WithContext(ctx).
		Where("provider = ? AND estado = ?", provider, "activa").
		Find(&conexiones).Error
	return conexiones, err
}

func (r *conexionRepo) Update(ctx context.Context, c *model.Conexion) error {
	c.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(c).Error
}
