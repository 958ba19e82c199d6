package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

// VincularAFIPRequest carries the taxpayer credentials for POST
// /v1/conexiones/afip. Certificado and clave privada arrive PEM-encoded.
type VincularAFIPRequest struct {
	CUIT         string `json:"cuit"          validate:"required"`
	Certificado  string `json:"certificado"   validate:"required"`
	ClavePrivada string `json:"clave_privada" validate:"required"`
	PuntoVenta   int    `json:"punto_venta"   validate:"required,min=1,max=9999"`
}

// CallbackMercadoPagoRequest is bound from the OAuth redirect query.
type CallbackMercadoPagoRequest struct {
	Code  string `form:"code"  validate:"required"`
	State string `form:"state" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ConexionResponse struct {
	ID                   string  `json:"id"`
	Provider             string  `json:"provider"`
	Estado               string  `json:"estado"`
	UltimaSincronizacion *string `json:"ultima_sincronizacion,omitempty"`
	MensajeError         *string `json:"mensaje_error,omitempty"`
	CreatedAt            string  `json:"created_at"`
}

type ConexionListResponse struct {
	Data []ConexionResponse `json:"data"`
}

// ProbarConexionResponse reports a live credential check against the provider.
type ProbarConexionResponse struct {
	Provider string `json:"provider"`
	OK       bool   `json:"ok"`
	Detalle  string `json:"detalle,omitempty"`
}

// URLAutorizacionResponse returns the OAuth consent URL for the frontend.
type URLAutorizacionResponse struct {
	URL string `json:"url"`
}
