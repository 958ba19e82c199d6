// Package fiscal holds Argentine tax constants and helpers shared by the
// AFIP client, the declaration estimator, and the AI classifier.
package fiscal

import "github.com/shopspring/decimal"

// AFIP comprobante type codes (tabla de tipos de comprobante, RG 1415).
const (
	ComprobanteFacturaA     = 1
	ComprobanteNotaDebitoA  = 2
	ComprobanteNotaCreditoA = 3
	ComprobanteFacturaB     = 6
	ComprobanteNotaDebitoB  = 7
	ComprobanteNotaCreditoB = 8
	ComprobanteFacturaC     = 11
	ComprobanteNotaDebitoC  = 12
	ComprobanteNotaCreditoC = 13
)

// AFIP document type codes for the invoice recipient.
const (
	DocTipoCUIT           = 80
	DocTipoCUIL           = 86
	DocTipoDNI            = 96
	DocTipoSinIdentificar = 99
)

// AFIP concepto codes.
const (
	ConceptoProductos          = 1
	ConceptoServicios          = 2
	ConceptoProductosServicios = 3
)

// MonedaPesos is the only currency this system invoices in. MonCotiz is
// always 1 for domestic peso invoices.
const MonedaPesos = "PES"

// CategoriaMonotributo is one bracket of the simplified regime, keyed by
// trailing-12-month gross income.
type CategoriaMonotributo struct {
	Categoria    string
	IngresosTope decimal.Decimal
	CuotaMensual decimal.Decimal
}

// CategoriasMonotributo are the 2024 brackets, in ascending income order.
// Bracket selection scans for the first IngresosTope >= annual income.
var CategoriasMonotributo = []CategoriaMonotributo{
	{"A", decimal.NewFromFloat(2108288.01), decimal.NewFromInt(6450)},
	{"B", decimal.NewFromFloat(3133941.63), decimal.NewFromInt(7150)},
	{"C", decimal.NewFromFloat(4387656.17), decimal.NewFromInt(8150)},
	{"D", decimal.NewFromFloat(5449094.55), decimal.NewFromInt(10150)},
	{"E", decimal.NewFromFloat(6416528.72), decimal.NewFromInt(14050)},
	{"F", decimal.NewFromFloat(8020660.90), decimal.NewFromInt(17400)},
	{"G", decimal.NewFromFloat(9624793.08), decimal.NewFromInt(22050)},
	{"H", decimal.NewFromFloat(11916410.45), decimal.NewFromInt(38400)},
	{"I", decimal.NewFromFloat(13337213.52), decimal.NewFromInt(53700)},
	{"J", decimal.NewFromFloat(15285088.04), decimal.NewFromInt(67700)},
	{"K", decimal.NewFromFloat(16957968.71), decimal.NewFromInt(77100)},
}

// AlicuotasIIBB maps jurisdiction to its gross-receipts aliquot (percent).
// Only the default is used today; per-jurisdiction computation is a known
// limitation surfaced in the declaration notes.
var AlicuotasIIBB = map[string]decimal.Decimal{
	"caba":         decimal.NewFromFloat(3.0),
	"buenos_aires": decimal.NewFromFloat(3.5),
	"cordoba":      decimal.NewFromFloat(3.0),
	"santa_fe":     decimal.NewFromFloat(3.6),
	"mendoza":      decimal.NewFromFloat(3.0),
}

// AlicuotaIIBBDefault is the jurisdiction-agnostic fallback aliquot.
var AlicuotaIIBBDefault = decimal.NewFromFloat(3.0)

// AlicuotaGanancias is the simplified flat rate applied to positive net
// income (highest bracket, not a real progressive scale).
var AlicuotaGanancias = decimal.NewFromInt(35)

// AlicuotaIVA is the general VAT rate used for the input-VAT estimate.
var AlicuotaIVA = decimal.NewFromInt(21)

// CategoriasAFIP are the valid accounting categories for AI classification.
var CategoriasAFIP = []string{
	"Ventas de bienes",
	"Prestación de servicios",
	"Honorarios profesionales",
	"Alquileres",
	"Intereses cobrados",
	"Dividendos",
	"Regalías",
	"Comisiones cobradas",
	"Compras de mercaderías",
	"Servicios contratados",
	"Gastos de oficina",
	"Gastos de publicidad",
	"Gastos de transporte",
	"Gastos de comunicación",
	"Gastos bancarios",
	"Impuestos y tasas",
	"Seguros",
	"Sueldos y cargas sociales",
	"Servicios públicos",
	"Mantenimiento y reparaciones",
	"Amortizaciones",
	"Otros ingresos",
	"Otros gastos",
	"Transferencias entre cuentas",
	"Retiros personales",
	"Aportes de capital",
}

// TiposOperacionMP maps a MercadoPago movement type to our transaction type.
var TiposOperacionMP = map[string]string{
	"regular_payment":    "income",
	"money_transfer":     "transfer",
	"recurring_payment":  "income",
	"account_fund":       "transfer",
	"payment_addition":   "income",
	"cellphone_recharge": "expense",
	"pos_payment":        "income",
	"money_express":      "transfer",
}
