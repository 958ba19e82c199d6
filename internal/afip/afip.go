// Package afip implements the AFIP electronic invoicing protocol:
// ticket-based authentication against WSAA (loginCms) and Factura C
// submission against WSFEv1 (FECAESolicitar). Both services speak
// SOAP/XML; every request and response is parsed through typed schemas —
// a missing token, sign or CAE is a parse error, never a silent zero.
package afip

import "errors"

// Service endpoints. Homologación (sandbox) is the default; producción is
// opted into per deployment via config.
const (
	WSAAURLHomologacion = "https://wsaahomo.afip.gov.ar/ws/services/LoginCms"
	WSAAURLProduccion   = "https://wsaa.afip.gov.ar/ws/services/LoginCms"
	WSFEURLHomologacion = "https://wswhomo.afip.gov.ar/wsfev1/service.asmx"
	WSFEURLProduccion   = "https://servicios1.afip.gov.ar/wsfev1/service.asmx"
)

// Credenciales is the decrypted AFIP credential bundle for one taxpayer.
// Certificado and ClavePrivada are PEM blocks issued by AFIP for the
// holder's CUIT.
type Credenciales struct {
	CUIT         string `json:"cuit"`
	Certificado  string `json:"certificado"`
	ClavePrivada string `json:"clave_privada"`
	PuntoVenta   int    `json:"punto_venta"`
}

// ErrRespuestaInvalida signals a response that does not match the typed
// schema for the operation (missing credentials node, empty CAE, etc.).
var ErrRespuestaInvalida = errors.New("afip: respuesta invalida del servicio")
