package afip

// wsaa.go — WSAA session manager.
// Builds the signed login ticket request (TRA), submits it to loginCms,
// and caches the resulting {token, sign} per CUIT until expiry.

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TicketVigencia is the ticket lifetime fixed by WSAA: 12 hours from issuance.
const TicketVigencia = 12 * time.Hour

// servicioWSFE is the remote service name the ticket authorizes.
const servicioWSFE = "wsfe"

// Ticket is an ephemeral WSAA authentication ticket. It is never persisted
// and never reused past ExpiraEn — a fresh ticket is requested instead.
type Ticket struct {
	Token     string
	Sign      string
	EmitidoEn time.Time
	ExpiraEn  time.Time
}

// Vigente reports whether the ticket can still be used at the given instant.
func (t *Ticket) Vigente(ahora time.Time) bool {
	return t != nil && ahora.Before(t.ExpiraEn)
}

// SessionManager obtains and caches WSAA tickets. The cache is keyed by
// CUIT; concurrent refreshes for the same CUIT are wasteful but safe
// (tickets for one taxpayer and time window are interchangeable, so
// last-writer-wins is acceptable).
type SessionManager struct {
	loginURL   string
	httpClient *http.Client
	ahora      func() time.Time

	mu      sync.Mutex
	tickets map[string]*Ticket
}

// NewSessionManager creates a session manager against the given loginCms URL.
func NewSessionManager(loginURL string) *SessionManager {
	return &SessionManager{
		loginURL:   loginURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		ahora:      time.Now,
		tickets:    make(map[string]*Ticket),
	}
}

// Ticket returns a valid ticket for the credentials, transparently
// requesting a fresh one when the cached ticket is missing or expired.
func (m *SessionManager) Ticket(ctx context.Context, cred Credenciales) (*Ticket, error) {
	m.mu.Lock()
	cached := m.tickets[cred.CUIT]
	m.mu.Unlock()

	if cached.Vigente(m.ahora()) {
		return cached, nil
	}

	ticket, err := m.solicitarTicket(ctx, cred)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.tickets[cred.CUIT] = ticket
	m.mu.Unlock()

	log.Info().Str("cuit", cred.CUIT).Time("expira", ticket.ExpiraEn).Msg("wsaa: ticket obtenido")
	return ticket, nil
}

// TestConnection reports whether a ticket can be obtained with the given
// credentials. It never returns an error: any transport, parse, or
// authority-rejection failure is a plain false, so connection UIs can show
// a soft "no se pudo verificar" state.
func (m *SessionManager) TestConnection(ctx context.Context, cred Credenciales) bool {
	if _, err := m.Ticket(ctx, cred); err != nil {
		log.Warn().Err(err).Str("cuit", cred.CUIT).Msg("wsaa: test de conexion fallido")
		return false
	}
	return true
}

// ── TRA construction and signing ─────────────────────────────────────────────

type loginTicketRequest struct {
	XMLName xml.Name `xml:"loginTicketRequest"`
	Version string   `xml:"version,attr"`
	Header  struct {
		UniqueID       int64  `xml:"uniqueId"`
		GenerationTime string `xml:"generationTime"`
		ExpirationTime string `xml:"expirationTime"`
	} `xml:"header"`
	Service string `xml:"service"`
}

// buildTRA produces the login ticket request XML. The nonce is the unix
// timestamp; expiration is exactly TicketVigencia after generation.
func buildTRA(ahora time.Time) ([]byte, error) {
	tra := loginTicketRequest{Version: "1.0", Service: servicioWSFE}
	tra.Header.UniqueID = ahora.Unix()
	tra.Header.GenerationTime = ahora.Format(time.RFC3339)
	tra.Header.ExpirationTime = ahora.Add(TicketVigencia).Format(time.RFC3339)

	out, err := xml.MarshalIndent(tra, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("wsaa: marshal TRA: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// firmarTRA signs the TRA with the holder's private key and returns the
// CMS payload for loginCms.
//
// The certificate and key are parsed and an RSA-SHA256 signature is
// computed, so invalid or mismatched PEM material fails here instead of at
// the authority. The transmitted payload, however, is the base64 of the
// TRA rather than a full PKCS#7/CMS signed-message structure binding the
// certificate to the signature — a documented simplification inherited
// from the previous implementation. Producing the real CMS envelope is an
// open question pending domain confirmation of the expected format.
func firmarTRA(tra []byte, cred Credenciales) (string, error) {
	certBlock, _ := pem.Decode([]byte(cred.Certificado))
	if certBlock == nil {
		return "", fmt.Errorf("wsaa: certificado PEM invalido")
	}
	if _, err := x509.ParseCertificate(certBlock.Bytes); err != nil {
		return "", fmt.Errorf("wsaa: parse certificado: %w", err)
	}

	keyBlock, _ := pem.Decode([]byte(cred.ClavePrivada))
	if keyBlock == nil {
		return "", fmt.Errorf("wsaa: clave privada PEM invalida")
	}
	key, err := parseClavePrivada(keyBlock.Bytes)
	if err != nil {
		return "", fmt.Errorf("wsaa: parse clave privada: %w", err)
	}

	digest := sha256.Sum256(tra)
	if _, err := rsa.SignPKCS1v15(nil, key, crypto.SHA256, digest[:]); err != nil {
		return "", fmt.Errorf("wsaa: firmar TRA: %w", err)
	}

	return base64.StdEncoding.EncodeToString(tra), nil
}

func parseClavePrivada(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("la clave no es RSA")
	}
	return key, nil
}

// ── loginCms SOAP call ───────────────────────────────────────────────────────

const loginCmsEnvelope = `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:wsaa="http://wsaa.view.sua.dvadac.desein.afip.gov">
  <soapenv:Body>
    <wsaa:loginCms>
      <wsaa:in0>%s</wsaa:in0>
    </wsaa:loginCms>
  </soapenv:Body>
</soapenv:Envelope>`

type loginCmsRespuesta struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Return string `xml:"loginCmsReturn"`
		} `xml:"loginCmsResponse"`
	} `xml:"Body"`
}

type loginTicketResponse struct {
	XMLName     xml.Name `xml:"loginTicketResponse"`
	Credentials struct {
		Token string `xml:"token"`
		Sign  string `xml:"sign"`
	} `xml:"credentials"`
}

// solicitarTicket performs the full WSAA exchange: TRA → CMS → loginCms →
// typed parse of the embedded loginTicketResponse.
func (m *SessionManager) solicitarTicket(ctx context.Context, cred Credenciales) (*Ticket, error) {
	ahora := m.ahora()

	tra, err := buildTRA(ahora)
	if err != nil {
		return nil, err
	}
	cms, err := firmarTRA(tra, cred)
	if err != nil {
		return nil, err
	}

	body := fmt.Sprintf(loginCmsEnvelope, cms)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.loginURL, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("wsaa: crear request: %w", err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", "")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wsaa: loginCms: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wsaa: leer respuesta: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wsaa: loginCms devolvio %d: %s", resp.StatusCode, resumen(data))
	}

	var envelope loginCmsRespuesta
	if err := xml.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRespuestaInvalida, err)
	}
	if envelope.Body.Response.Return == "" {
		return nil, fmt.Errorf("%w: loginCmsReturn vacio", ErrRespuestaInvalida)
	}

	var ltr loginTicketResponse
	if err := xml.Unmarshal([]byte(envelope.Body.Response.Return), &ltr); err != nil {
		return nil, fmt.Errorf("%w: loginTicketResponse: %v", ErrRespuestaInvalida, err)
	}
	if ltr.Credentials.Token == "" || ltr.Credentials.Sign == "" {
		return nil, fmt.Errorf("%w: credenciales sin token/sign", ErrRespuestaInvalida)
	}

	return &Ticket{
		Token:     ltr.Credentials.Token,
		Sign:      ltr.Credentials.Sign,
		EmitidoEn: ahora,
		ExpiraEn:  ahora.Add(TicketVigencia),
	}, nil
}

// resumen truncates a response body for error messages.
func resumen(data []byte) string {
	const max = 200
	if len(data) > max {
		return string(data[:max]) + "…"
	}
	return string(data)
}
