package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/galo-graneros/ai-contador/internal/model"
)

// TotalesFacturacion aggregates approved invoices for one period.
type TotalesFacturacion struct {
	Neto     decimal.Decimal
	IVA      decimal.Decimal
	Total    decimal.Decimal
	Cantidad int64
}

type FacturaRepository interface {
	Create(ctx context.Context, f *model.Factura) error
	// AsignarNumero draws the next invoice number from the per-user
	// per-punto-de-venta counter and stamps it on the invoice, atomically.
	// No-op when the invoice already holds a number (re-submission).
	AsignarNumero(ctx context.Context, f *model.Factura) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Factura, error)
	List(ctx context.Context, userID uuid.UUID, estado string, page, limit int) ([]model.Factura, int64, error)
	Update(ctx context.Context, f *model.Factura) error
	// UltimoNumeroLocal reads the counter without consuming a number.
	UltimoNumeroLocal(ctx context.Context, userID uuid.UUID, puntoVenta int) (int64, error)
	// TotalesAprobadas sums neto, IVA and total over approved invoices
	// whose emission date falls in [desde, hasta].
	TotalesAprobadas(ctx context.Context, userID uuid.UUID, desde, hasta time.Time) (TotalesFacturacion, error)
}

type facturaRepo struct{ db *gorm.DB }

func NewFacturaRepository(db *gorm.DB) FacturaRepository {
	return &facturaRepo{db: db}
}

func (r *facturaRepo) Create(ctx context.Context, f *model.Factura) error {
	return r.db.WithContext(ctx).Create(f).Error
}

// AsignarNumero runs the allocation and the invoice update in one
// transaction. The counter row is taken with FOR UPDATE so two concurrent
// submissions for the same punto de venta serialize instead of colliding.
func (r *facturaRepo) AsignarNumero(ctx context.Context, f *model.Factura) error {
	if f.Numero != nil {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contador model.ContadorPuntoVenta
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND punto_venta = ?", f.UserID, f.PuntoVenta).
			First(&contador).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			contador = model.ContadorPuntoVenta{UserID: f.UserID, PuntoVenta: f.PuntoVenta}
			if err := tx.Create(&contador).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		contador.UltimoNumero++
		if err := tx.Model(&model.ContadorPuntoVenta{}).
			Where("user_id = ? AND punto_venta = ?", f.UserID, f.PuntoVenta).
			Update("ultimo_numero", contador.UltimoNumero).Error; err != nil {
			return err
		}

		numero := contador.UltimoNumero
		if err := tx.Model(&model.Factura{}).
			Where("id = ?", f.ID).
			Update("numero", numero).Error; err != nil {
			return err
		}
		f.Numero = &numero
		return nil
	})
}

func (r *facturaRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Factura, error) {
	var f model.Factura
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", id, userID).
		First(&f).Error
	return &f, err
}

func (r *facturaRepo) List(ctx context.Context, userID uuid.UUID, estado string, page, limit int) ([]model.Factura, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Factura{}).Where("user_id = ?", userID)
	if estado != "" {
		q = q.Where("estado = ?", estado)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}

	var facturas []model.Factura
	err := q.Preload("Items").
		Order("fecha_emision DESC, numero DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&facturas).Error
	return facturas, total, err
}

func (r *facturaRepo) Update(ctx context.Context, f *model.Factura) error {
	return r.db.WithContext(ctx).Save(f).Error
}

func (r *facturaRepo) UltimoNumeroLocal(ctx context.Context, userID uuid.UUID, puntoVenta int) (int64, error) {
	var contador model.ContadorPuntoVenta
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND punto_venta = ?", userID, puntoVenta).
		First(&contador).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return contador.UltimoNumero, nil
}

func (r *facturaRepo) TotalesAprobadas(ctx context.Context, userID uuid.UUID, desde, hasta time.Time) (TotalesFacturacion, error) {
	var out struct {
		Neto     decimal.Decimal
		IVA      decimal.Decimal
		Total    decimal.Decimal
		Cantidad int64
	}
	err := r.db.WithContext(ctx).Model(&model.Factura{}).
		Select("COALESCE(SUM(importe_neto), 0) AS neto, COALESCE(SUM(importe_iva), 0) AS iva, COALESCE(SUM(importe_total), 0) AS total, COUNT(*) AS cantidad").
		Where("user_id = ? AND estado = ? AND fecha_emision >= ? AND fecha_emision <= ?",
			userID, "aprobada", desde, hasta).
		Scan(&out).Error
	return TotalesFacturacion{Neto: out.Neto, IVA: out.IVA, Total: out.Total, Cantidad: out.Cantidad}, err
}
