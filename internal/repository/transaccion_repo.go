package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/galo-graneros/ai-contador/internal/model"
)

// TransaccionFiltro narrows a listing; zero values mean "no filter".
type TransaccionFiltro struct {
	Tipo   string
	Estado string
	Desde  time.Time
	Hasta  time.Time
	Page   int
	Limit  int
}

type TransaccionRepository interface {
	// Upsert inserts a movement, ignoring duplicates on
	// (conexion_id, external_id). Returns true when a new row was created.
	Upsert(ctx context.Context, t *model.Transaccion) (bool, error)
	FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Transaccion, error)
	List(ctx context.Context, userID uuid.UUID, filtro TransaccionFiltro) ([]model.Transaccion, int64, error)
	ListPendientes(ctx context.Context, userID uuid.UUID, limit int) ([]model.Transaccion, error)
	Update(ctx context.Context, t *model.Transaccion) error
	// SumMontoPorTipo aggregates |monto| and row count for one transaction
	// type within [desde, hasta].
	SumMontoPorTipo(ctx context.Context, userID uuid.UUID, tipo string, desde, hasta time.Time) (decimal.Decimal, int64, error)
}

type transaccionRepo struct{ db *gorm.DB }

func NewTransaccionRepository(db *gorm.DB) TransaccionRepository {
	return &transaccionRepo{db: db}
}

func (r *transaccionRepo) Upsert(ctx context.Context, t *model.Transaccion) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conexion_id"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(t)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *transaccionRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Transaccion, error) {
	var t model.Transaccion
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&t).Error
	return &t, err
}

func (r *transaccionRepo) List(ctx context.Context, userID uuid.UUID, filtro TransaccionFiltro) ([]model.Transaccion, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Transaccion{}).Where("user_id = ?", userID)
	if filtro.Tipo != "" {
		q = q.Where("tipo = ?", filtro.Tipo)
	}
	if filtro.Estado != "" {
		q = q.Where("estado = ?", filtro.Estado)
	}
	if !filtro.Desde.IsZero() {
		q = q.Where("fecha >= ?", filtro.Desde)
	}
	if !filtro.Hasta.IsZero() {
		q = q.Where("fecha <= ?", filtro.Hasta)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filtro.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filtro.Page
	if page <= 0 {
		page = 1
	}

	var transacciones []model.Transaccion
	err := q.Order("fecha DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&transacciones).Error
	return transacciones, total, err
}

func (r *transaccionRepo) ListPendientes(ctx context.Context, userID uuid.UUID, limit int) ([]model.Transaccion, error) {
	var transacciones []model.Transaccion
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND estado = ?", userID, "pendiente").
		Order("fecha").
		Limit(limit).
		Find(&transacciones).Error
	return transacciones, err
}

func (r *transaccionRepo) Update(ctx context.Context, t *model.Transaccion) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *transaccionRepo) SumMontoPorTipo(ctx context.Context, userID uuid.UUID, tipo string, desde, hasta time.Time) (decimal.Decimal, int64, error) {
	var out struct {
		Total    decimal.Decimal
		Cantidad int64
	}
	err := r.db.WithContext(ctx).Model(&model.Transaccion{}).
		Select("COALESCE(SUM(ABS(monto)), 0) AS total, COUNT(*) AS cantidad").
		Where("user_id = ? AND tipo = ? AND fecha >= ? AND fecha <= ?", userID, tipo, desde, hasta).
		Scan(&out).Error
	return out.Total, out.Cantidad, err
}
