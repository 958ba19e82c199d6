package afip

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// credencialesDePrueba generates a throwaway self-signed certificate and
// RSA key, PEM-encoded the way AFIP issues them.
func credencialesDePrueba(t *testing.T) Credenciales {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "prueba", SerialNumber: "CUIT 20123456786"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	return Credenciales{
		CUIT:         "20123456786",
		Certificado:  string(certPEM),
		ClavePrivada: string(keyPEM),
		PuntoVenta:   1,
	}
}

// servidorWSAA returns a loginCms stub that answers with the given
// token/sign and counts requests.
func servidorWSAA(t *testing.T, token, sign string, llamadas *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(llamadas, 1)

		inner := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<loginTicketResponse version="1.0">
  <credentials>
    <token>%s</token>
    <sign>%s</sign>
  </credentials>
</loginTicketResponse>`, token, sign)

		var escaped bytes.Buffer
		require.NoError(t, xml.EscapeText(&escaped, []byte(inner)))

		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
  <soapenv:Body>
    <loginCmsResponse xmlns="http://wsaa.view.sua.dvadac.desein.afip.gov">
      <loginCmsReturn>%s</loginCmsReturn>
    </loginCmsResponse>
  </soapenv:Body>
</soapenv:Envelope>`, escaped.String())
	}))
}

func TestBuildTRA(t *testing.T) {
	ahora := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	tra, err := buildTRA(ahora)
	require.NoError(t, err)

	var parsed loginTicketRequest
	require.NoError(t, xml.Unmarshal(tra, &parsed))

	assert.Equal(t, "1.0", parsed.Version)
	assert.Equal(t, "wsfe", parsed.Service)
	assert.Equal(t, ahora.Unix(), parsed.Header.UniqueID)
	assert.Equal(t, ahora.Format(time.RFC3339), parsed.Header.GenerationTime)
	assert.Equal(t, ahora.Add(12*time.Hour).Format(time.RFC3339), parsed.Header.ExpirationTime)
}

func TestFirmarTRA(t *testing.T) {
	cred := credencialesDePrueba(t)
	tra, err := buildTRA(time.Now())
	require.NoError(t, err)

	cms, err := firmarTRA(tra, cred)
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(cms)
	require.NoError(t, err)
	assert.Equal(t, tra, decoded)
}

func TestFirmarTRAConPEMInvalido(t *testing.T) {
	tra, err := buildTRA(time.Now())
	require.NoError(t, err)

	cred := credencialesDePrueba(t)
	cred.Certificado = "no es un PEM"
	_, err = firmarTRA(tra, cred)
	assert.Error(t, err)

	cred = credencialesDePrueba(t)
	cred.ClavePrivada = "tampoco"
	_, err = firmarTRA(tra, cred)
	assert.Error(t, err)
}

func TestTicketSeObtieneYSeCachea(t *testing.T) {
	var llamadas int32
	srv := servidorWSAA(t, "tok-1", "sign-1", &llamadas)
	defer srv.Close()

	cred := credencialesDePrueba(t)
	m := NewSessionManager(srv.URL)

	ticket, err := m.Ticket(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", ticket.Token)
	assert.Equal(t, "sign-1", ticket.Sign)
	assert.Equal(t, ticket.EmitidoEn.Add(TicketVigencia), ticket.ExpiraEn)

	// Second request for the same CUIT reuses the cached ticket
	again, err := m.Ticket(context.Background(), cred)
	require.NoError(t, err)
	assert.Same(t, ticket, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&llamadas))
}

func TestTicketSeRenuevaAlExpirar(t *testing.T) {
	var llamadas int32
	srv := servidorWSAA(t, "tok", "sign", &llamadas)
	defer srv.Close()

	cred := credencialesDePrueba(t)
	m := NewSessionManager(srv.URL)

	reloj := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	m.ahora = func() time.Time { return reloj }

	_, err := m.Ticket(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&llamadas))

	// Still inside the 12h window: cache hit
	reloj = reloj.Add(11 * time.Hour)
	_, err = m.Ticket(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&llamadas))

	// Past expiry: a fresh ticket is requested
	reloj = reloj.Add(2 * time.Hour)
	renovado, err := m.Ticket(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&llamadas))
	assert.Equal(t, reloj.Add(TicketVigencia), renovado.ExpiraEn)
}

func TestTicketPorCUITIndependiente(t *testing.T) {
	var llamadas int32
	srv := servidorWSAA(t, "tok", "sign", &llamadas)
	defer srv.Close()

	m := NewSessionManager(srv.URL)

	credA := credencialesDePrueba(t)
	credB := credencialesDePrueba(t)
	credB.CUIT = "30500010912"

	_, err := m.Ticket(context.Background(), credA)
	require.NoError(t, err)
	_, err = m.Ticket(context.Background(), credB)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&llamadas))
}

func TestTicketConRespuestaInvalida(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body></soapenv:Body></soapenv:Envelope>`)
	}))
	defer srv.Close()

	m := NewSessionManager(srv.URL)
	_, err := m.Ticket(context.Background(), credencialesDePrueba(t))
	assert.ErrorIs(t, err, ErrRespuestaInvalida)
}

func TestTestConnection(t *testing.T) {
	var llamadas int32
	srv := servidorWSAA(t, "tok", "sign", &llamadas)
	defer srv.Close()

	m := NewSessionManager(srv.URL)
	assert.True(t, m.TestConnection(context.Background(), credencialesDePrueba(t)))

	caido := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer caido.Close()

	m2 := NewSessionManager(caido.URL)
	assert.False(t, m2.TestConnection(context.Background(), credencialesDePrueba(t)))
}
