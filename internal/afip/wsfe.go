package afip

// wsfe.go — WSFEv1 invoice submission client.
// Single-invoice FECAESolicitar (CantReg=1, CbteDesde==CbteHasta), plus the
// FECompUltimoAutorizado reconciliation query and the FEDummy health probe.

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/galo-graneros/ai-contador/internal/fiscal"
)

const (
	wsfeNamespace    = "http://ar.gov.afip.dif.FEV1/"
	fechaFormatoAFIP = "20060102"
	// DiasVigenciaCAE is the CAE validity window: emission date + 10 calendar days.
	DiasVigenciaCAE = 10
)

// Auth is the per-request authentication block: the WSAA ticket plus the
// taxpayer's CUIT.
type Auth struct {
	Token string
	Sign  string
	CUIT  string
}

// SolicitudFacturaC carries one draft Factura C to submit. ReceptorCUIT
// empty means an unidentified final consumer (DocTipo 99).
type SolicitudFacturaC struct {
	PuntoVenta   int
	Numero       int64
	FechaEmision time.Time
	ImporteNeto  decimal.Decimal
	ImporteTotal decimal.Decimal
	ReceptorCUIT string
	Concepto     int
}

// Observacion is one observation or error item from the authority.
type Observacion struct {
	Codigo  int    `json:"codigo"`
	Mensaje string `json:"mensaje"`
}

// ResultadoCAE is a successful authorization.
type ResultadoCAE struct {
	CAE           string
	Vencimiento   time.Time
	Resultado     string
	Observaciones []Observacion
	// RawResponse is the authority's XML verbatim, persisted for audit.
	RawResponse []byte
}

// RechazoError is returned when the header result is 'R'. It carries the
// authority's observation/error payload intact; callers must never coerce
// it into an approval.
type RechazoError struct {
	Resultado     string
	Observaciones []Observacion
	Errores       []Observacion
}

func (e *RechazoError) Error() string {
	payload, _ := json.Marshal(struct {
		Observaciones []Observacion `json:"observaciones,omitempty"`
		Errores       []Observacion `json:"errores,omitempty"`
	}{e.Observaciones, e.Errores})
	return fmt.Sprintf("afip: comprobante rechazado (resultado=%s): %s", e.Resultado, payload)
}

// VencimientoCAE computes the authorization-code expiry: emission date
// plus 10 calendar days, crossing month boundaries naturally.
func VencimientoCAE(fechaEmision time.Time) time.Time {
	return fechaEmision.AddDate(0, 0, DiasVigenciaCAE)
}

// Client is the WSFEv1 SOAP client.
type Client struct {
	serviceURL string
	httpClient *http.Client
}

// NewClient creates a WSFE client against the given service URL.
func NewClient(serviceURL string) *Client {
	return &Client{
		serviceURL: serviceURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ── request schemas ──────────────────────────────────────────────────────────

type authXML struct {
	Token string `xml:"ar:Token"`
	Sign  string `xml:"ar:Sign"`
	Cuit  string `xml:"ar:Cuit"`
}

type fecaeSolicitarRequest struct {
	XMLName xml.Name `xml:"ar:FECAESolicitar"`
	Auth    authXML  `xml:"ar:Auth"`
	FeCAEReq struct {
		FeCabReq struct {
			CantReg  int `xml:"ar:CantReg"`
			PtoVta   int `xml:"ar:PtoVta"`
			CbteTipo int `xml:"ar:CbteTipo"`
		} `xml:"ar:FeCabReq"`
		FeDetReq struct {
			Detalle fecaeDetRequest `xml:"ar:FECAEDetRequest"`
		} `xml:"ar:FeDetReq"`
	} `xml:"ar:FeCAEReq"`
}

type fecaeDetRequest struct {
	Concepto   int    `xml:"ar:Concepto"`
	DocTipo    int    `xml:"ar:DocTipo"`
	DocNro     string `xml:"ar:DocNro"`
	CbteDesde  int64  `xml:"ar:CbteDesde"`
	CbteHasta  int64  `xml:"ar:CbteHasta"`
	CbteFch    string `xml:"ar:CbteFch"`
	ImpTotal   string `xml:"ar:ImpTotal"`
	ImpTotConc string `xml:"ar:ImpTotConc"`
	ImpNeto    string `xml:"ar:ImpNeto"`
	ImpOpEx    string `xml:"ar:ImpOpEx"`
	ImpIVA     string `xml:"ar:ImpIVA"`
	ImpTrib    string `xml:"ar:ImpTrib"`
	MonId      string `xml:"ar:MonId"`
	MonCotiz   string `xml:"ar:MonCotiz"`
}

type ultimoAutorizadoRequest struct {
	XMLName  xml.Name `xml:"ar:FECompUltimoAutorizado"`
	Auth     authXML  `xml:"ar:Auth"`
	PtoVta   int      `xml:"ar:PtoVta"`
	CbteTipo int      `xml:"ar:CbteTipo"`
}

type dummyRequest struct {
	XMLName xml.Name `xml:"ar:FEDummy"`
}

// ── response schemas ─────────────────────────────────────────────────────────

type observacionXML struct {
	Codigo  int    `xml:"Code"`
	Mensaje string `xml:"Msg"`
}

type fecaeSolicitarRespuesta struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Result struct {
				FeCabResp struct {
					Resultado string `xml:"Resultado"`
				} `xml:"FeCabResp"`
				FeDetResp struct {
					Detalles []struct {
						Resultado     string `xml:"Resultado"`
						CAE           string `xml:"CAE"`
						CAEFchVto     string `xml:"CAEFchVto"`
						Observaciones struct {
							Obs []observacionXML `xml:"Obs"`
						} `xml:"Observaciones"`
					} `xml:"FECAEDetResponse"`
				} `xml:"FeDetResp"`
				Errors struct {
					Errs []observacionXML `xml:"Err"`
				} `xml:"Errors"`
			} `xml:"FECAESolicitarResult"`
		} `xml:"FECAESolicitarResponse"`
	} `xml:"Body"`
}

type ultimoAutorizadoRespuesta struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Result struct {
				CbteNro int64 `xml:"CbteNro"`
			} `xml:"FECompUltimoAutorizadoResult"`
		} `xml:"FECompUltimoAutorizadoResponse"`
	} `xml:"Body"`
}

// EstadoServidor is the FEDummy health snapshot.
type EstadoServidor struct {
	AppServer  string
	DbServer   string
	AuthServer string
}

type dummyRespuesta struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Result struct {
				AppServer  string `xml:"AppServer"`
				DbServer   string `xml:"DbServer"`
				AuthServer string `xml:"AuthServer"`
			} `xml:"FEDummyResult"`
		} `xml:"FEDummyResponse"`
	} `xml:"Body"`
}

// ── operations ───────────────────────────────────────────────────────────────

// SolicitarCAE exchanges one draft Factura C for a CAE. Amounts are
// transmitted as provided (pesos, MonCotiz 1) with VAT forced to zero —
// Factura C carries no VAT line. A header result of 'R' yields a
// *RechazoError; a malformed detail (no CAE) is ErrRespuestaInvalida.
func (c *Client) SolicitarCAE(ctx context.Context, auth Auth, f SolicitudFacturaC) (*ResultadoCAE, error) {
	docTipo := fiscal.DocTipoSinIdentificar
	docNro := "0"
	if f.ReceptorCUIT != "" {
		docTipo = fiscal.DocTipoCUIT
		docNro = fiscal.LimpiarCUIT(f.ReceptorCUIT)
	}

	req := fecaeSolicitarRequest{
		Auth: authXML{Token: auth.Token, Sign: auth.Sign, Cuit: auth.CUIT},
	}
	req.FeCAEReq.FeCabReq.CantReg = 1
	req.FeCAEReq.FeCabReq.PtoVta = f.PuntoVenta
	req.FeCAEReq.FeCabReq.CbteTipo = fiscal.ComprobanteFacturaC
	req.FeCAEReq.FeDetReq.Detalle = fecaeDetRequest{
		Concepto:   f.Concepto,
		DocTipo:    docTipo,
		DocNro:     docNro,
		CbteDesde:  f.Numero,
		CbteHasta:  f.Numero,
		CbteFch:    f.FechaEmision.Format(fechaFormatoAFIP),
		ImpTotal:   f.ImporteTotal.StringFixed(2),
		ImpTotConc: "0",
		ImpNeto:    f.ImporteNeto.StringFixed(2),
		ImpOpEx:    "0",
		ImpIVA:     "0",
		ImpTrib:    "0",
		MonId:      fiscal.MonedaPesos,
		MonCotiz:   "1",
	}

	raw, err := c.call(ctx, "FECAESolicitar", req)
	if err != nil {
		return nil, err
	}

	var envelope fecaeSolicitarRespuesta
	if err := xml.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRespuestaInvalida, err)
	}
	result := envelope.Body.Response.Result

	if result.FeCabResp.Resultado == "R" {
		rechazo := &RechazoError{Resultado: "R", Errores: convertirObs(result.Errors.Errs)}
		if len(result.FeDetResp.Detalles) > 0 {
			rechazo.Observaciones = convertirObs(result.FeDetResp.Detalles[0].Observaciones.Obs)
		}
		return nil, rechazo
	}

	if len(result.FeDetResp.Detalles) == 0 {
		return nil, fmt.Errorf("%w: FeDetResp sin detalle", ErrRespuestaInvalida)
	}
	detalle := result.FeDetResp.Detalles[0]
	if detalle.CAE == "" {
		return nil, fmt.Errorf("%w: CAE vacio (resultado=%s)", ErrRespuestaInvalida, detalle.Resultado)
	}

	vencimiento, err := time.Parse(fechaFormatoAFIP, detalle.CAEFchVto)
	if err != nil {
		return nil, fmt.Errorf("%w: CAEFchVto %q: %v", ErrRespuestaInvalida, detalle.CAEFchVto, err)
	}
	if esperado := VencimientoCAE(f.FechaEmision); !vencimiento.Equal(esperado) {
		log.Warn().
			Str("cae_fch_vto", detalle.CAEFchVto).
			Str("esperado", esperado.Format(fechaFormatoAFIP)).
			Msg("wsfe: vencimiento de CAE difiere de emision+10 dias")
	}

	return &ResultadoCAE{
		CAE:           detalle.CAE,
		Vencimiento:   vencimiento,
		Resultado:     detalle.Resultado,
		Observaciones: convertirObs(detalle.Observaciones.Obs),
		RawResponse:   raw,
	}, nil
}

// UltimoAutorizado returns the last invoice number the authority authorized
// for the point of sale — the reconciliation source of truth after a
// timeout, and the drift check against the local counter.
func (c *Client) UltimoAutorizado(ctx context.Context, auth Auth, puntoVenta int) (int64, error) {
	req := ultimoAutorizadoRequest{
		Auth:     authXML{Token: auth.Token, Sign: auth.Sign, Cuit: auth.CUIT},
		PtoVta:   puntoVenta,
		CbteTipo: fiscal.ComprobanteFacturaC,
	}

	raw, err := c.call(ctx, "FECompUltimoAutorizado", req)
	if err != nil {
		return 0, err
	}

	var envelope ultimoAutorizadoRespuesta
	if err := xml.Unmarshal(raw, &envelope); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRespuestaInvalida, err)
	}
	return envelope.Body.Response.Result.CbteNro, nil
}

// Estado queries FEDummy for the authority's server status.
func (c *Client) Estado(ctx context.Context) (*EstadoServidor, error) {
	raw, err := c.call(ctx, "FEDummy", dummyRequest{})
	if err != nil {
		return nil, err
	}

	var envelope dummyRespuesta
	if err := xml.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRespuestaInvalida, err)
	}
	r := envelope.Body.Response.Result
	return &EstadoServidor{AppServer: r.AppServer, DbServer: r.DbServer, AuthServer: r.AuthServer}, nil
}

// ── transport ────────────────────────────────────────────────────────────────

const soapEnvelopeAbre = `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ar="` + wsfeNamespace + `">
  <soapenv:Body>`

const soapEnvelopeCierra = `</soapenv:Body>
</soapenv:Envelope>`

// call wraps the operation payload in a SOAP envelope, POSTs it, and
// returns the raw response body. Transport errors propagate as-is — retry,
// if any, is a caller policy.
func (c *Client) call(ctx context.Context, accion string, payload interface{}) ([]byte, error) {
	inner, err := xml.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("wsfe: marshal %s: %w", accion, err)
	}

	var body bytes.Buffer
	body.WriteString(soapEnvelopeAbre)
	body.Write(inner)
	body.WriteString(soapEnvelopeCierra)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, &body)
	if err != nil {
		return nil, fmt.Errorf("wsfe: crear request: %w", err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", wsfeNamespace+accion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wsfe: %s: %w", accion, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wsfe: leer respuesta de %s: %w", accion, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wsfe: %s devolvio %d: %s", accion, resp.StatusCode, resumen(raw))
	}
	return raw, nil
}

func convertirObs(obs []observacionXML) []Observacion {
	if len(obs) == 0 {
		return nil
	}
	out := make([]Observacion, len(obs))
	for i, o := range obs {
		out[i] = Observacion{Codigo: o.Codigo, Mensaje: o.Mensaje}
	}
	return out
}
