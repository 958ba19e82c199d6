package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"encoding/xml"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galo-graneros/ai-contador/internal/afip"
	"github.com/galo-graneros/ai-contador/internal/dto"
	"github.com/galo-graneros/ai-contador/internal/infra"
	"github.com/galo-graneros/ai-contador/internal/model"
	"github.com/galo-graneros/ai-contador/internal/repository"
)

// ── Stubs ────────────────────────────────────────────────────────────────────

type stubFacturaRepo struct {
	facturas map[uuid.UUID]*model.Factura
	contador int64
}

func newStubFacturaRepo() *stubFacturaRepo {
	return &stubFacturaRepo{facturas: make(map[uuid.UUID]*model.Factura)}
}

func (r *stubFacturaRepo) Create(_ context.Context, f *model.Factura) error {
	f.ID = uuid.New()
	r.facturas[f.ID] = f
	return nil
}

func (r *stubFacturaRepo) AsignarNumero(_ context.Context, f *model.Factura) error {
	if f.Numero != nil {
		return nil
	}
	r.contador++
	n := r.contador
	f.Numero = &n
	return nil
}

func (r *stubFacturaRepo) FindByID(_ context.Context, userID, id uuid.UUID) (*model.Factura, error) {
	f, ok := r.facturas[id]
	if !ok || f.UserID != userID {
		return nil, errors.New("not found")
	}
	return f, nil
}

func (r *stubFacturaRepo) List(_ context.Context, userID uuid.UUID, estado string, _, _ int) ([]model.Factura, int64, error) {
	var out []model.Factura
	for _, f := range r.facturas {
		if f.UserID == userID && (estado == "" || f.Estado == estado) {
			out = append(out, *f)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubFacturaRepo) Update(_ context.Context, f *model.Factura) error {
	r.facturas[f.ID] = f
	return nil
}

func (r *stubFacturaRepo) UltimoNumeroLocal(_ context.Context, _ uuid.UUID, _ int) (int64, error) {
	return r.contador, nil
}

func (r *stubFacturaRepo) TotalesAprobadas(_ context.Context, _ uuid.UUID, _, _ time.Time) (repository.TotalesFacturacion, error) {
	return repository.TotalesFacturacion{}, nil
}

type stubUsuarioRepoSinUsuario struct {
	repository.UsuarioRepository
}

// FindByID fails on purpose: the PDF/notification step is best-effort and
// must not affect the emission outcome.
func (r *stubUsuarioRepoSinUsuario) FindByID(_ context.Context, _ uuid.UUID) (*model.Usuario, error) {
	return nil, errors.New("not found")
}

type stubConexiones struct {
	ConexionService
	cred afip.Credenciales
}

func (s *stubConexiones) CredencialesAFIP(_ context.Context, _ uuid.UUID) (*afip.Credenciales, error) {
	c := s.cred
	return &c, nil
}

// ── AFIP stub servers ────────────────────────────────────────────────────────

func servidorWSAAOK(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner := `<?xml version="1.0"?><loginTicketResponse version="1.0"><credentials><token>tok</token><sign>sig</sign></credentials></loginTicketResponse>`
		var escaped bytes.Buffer
		require.NoError(t, xml.EscapeText(&escaped, []byte(inner)))
		fmt.Fprintf(w, `<?xml version="1.0"?><soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body><loginCmsResponse><loginCmsReturn>%s</loginCmsReturn></loginCmsResponse></soapenv:Body></soapenv:Envelope>`, escaped.String())
	}))
}

func respuestaWSFEAprobada(cae, fchVto string) string {
	return fmt.Sprintf(`<?xml version="1.0"?><soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body><FECAESolicitarResponse xmlns="http://ar.gov.afip.dif.FEV1/"><FECAESolicitarResult><FeCabResp><Resultado>A</Resultado></FeCabResp><FeDetResp><FECAEDetResponse><Resultado>A</Resultado><CAE>%s</CAE><CAEFchVto>%s</CAEFchVto></FECAEDetResponse></FeDetResp></FECAESolicitarResult></FECAESolicitarResponse></soap:Body></soap:Envelope>`, cae, fchVto)
}

const respuestaWSFERechazada = `<?xml version="1.0"?><soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body><FECAESolicitarResponse xmlns="http://ar.gov.afip.dif.FEV1/"><FECAESolicitarResult><FeCabResp><Resultado>R</Resultado></FeCabResp><FeDetResp><FECAEDetResponse><Resultado>R</Resultado><Observaciones><Obs><Code>10048</Code><Msg>CUIT emisor no habilitado</Msg></Obs></Observaciones></FECAEDetResponse></FeDetResp></FECAESolicitarResult></FECAESolicitarResponse></soap:Body></soap:Envelope>`

// ── Fixture ──────────────────────────────────────────────────────────────────

func credencialesParaEmision(t *testing.T) afip.Credenciales {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "prueba"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)
	return afip.Credenciales{
		CUIT:         "20123456786",
		Certificado:  string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		ClavePrivada: string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})),
		PuntoVenta:   3,
	}
}

type fixtureFacturacion struct {
	svc    FacturacionService
	repo   *stubFacturaRepo
	userID uuid.UUID
}

func nuevoFixture(t *testing.T, wsfeHandler http.HandlerFunc) (*fixtureFacturacion, func()) {
	t.Helper()

	wsaa := servidorWSAAOK(t)
	wsfe := httptest.NewServer(wsfeHandler)

	repo := newStubFacturaRepo()
	svc := NewFacturacionService(
		repo,
		&stubUsuarioRepoSinUsuario{},
		&stubConexiones{cred: credencialesParaEmision(t)},
		afip.NewSessionManager(wsaa.URL),
		afip.NewClient(wsfe.URL),
		infra.NewCircuitBreaker(infra.DefaultCBConfig()),
		nil, // dispatcher: no se alcanza porque el usuario emisor no existe
		t.TempDir(),
	)

	cleanup := func() {
		wsaa.Close()
		wsfe.Close()
	}
	return &fixtureFacturacion{svc: svc, repo: repo, userID: uuid.New()}, cleanup
}

func (f *fixtureFacturacion) crearBorrador(t *testing.T) *dto.FacturaResponse {
	t.Helper()
	resp, err := f.svc.CrearBorrador(context.Background(), f.userID, dto.CrearFacturaRequest{
		ReceptorNombre: "Cliente SRL",
		Items: []dto.FacturaItemRequest{
			{Descripcion: "Consultoría", Cantidad: decimal.NewFromInt(2), PrecioUnitario: decimal.NewFromFloat(750.25)},
		},
	})
	require.NoError(t, err)
	return resp
}

// ── CrearBorrador ────────────────────────────────────────────────────────────

func TestCrearBorradorDerivaTotales(t *testing.T) {
	f, cleanup := nuevoFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	defer cleanup()

	resp := f.crearBorrador(t)

	assert.Equal(t, "borrador", resp.Estado)
	assert.Nil(t, resp.Numero, "un borrador no consume número")
	assert.Equal(t, 3, resp.PuntoVenta)
	// 2 × 750.25 = 1500.50; Factura C: IVA 0, total = neto
	assert.True(t, resp.ImporteNeto.Equal(decimal.NewFromFloat(1500.50)))
	assert.True(t, resp.ImporteIVA.IsZero())
	assert.True(t, resp.ImporteTotal.Equal(decimal.NewFromFloat(1500.50)))
	require.Len(t, resp.Items, 1)
	assert.True(t, resp.Items[0].Subtotal.Equal(decimal.NewFromFloat(1500.50)))
}

func TestCrearBorradorRechazaCantidadInvalida(t *testing.T) {
	f, cleanup := nuevoFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	defer cleanup()

	_, err := f.svc.CrearBorrador(context.Background(), f.userID, dto.CrearFacturaRequest{
		ReceptorNombre: "Cliente",
		Items: []dto.FacturaItemRequest{
			{Descripcion: "x", Cantidad: decimal.Zero, PrecioUnitario: decimal.NewFromInt(10)},
		},
	})
	assert.Error(t, err)
}

// ── Emitir ───────────────────────────────────────────────────────────────────

func TestEmitirAprobada(t *testing.T) {
	f, cleanup := nuevoFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, respuestaWSFEAprobada("74999888777666", "20240204"))
	})
	defer cleanup()

	borrador := f.crearBorrador(t)
	id := uuid.MustParse(borrador.ID)

	resp, err := f.svc.Emitir(context.Background(), f.userID, id)
	require.NoError(t, err)

	assert.Equal(t, "aprobada", resp.Estado)
	require.NotNil(t, resp.CAE)
	assert.Equal(t, "74999888777666", *resp.CAE)
	require.NotNil(t, resp.Numero)
	assert.Equal(t, int64(1), *resp.Numero)
	require.NotNil(t, resp.CAEVencimiento)
	assert.Equal(t, "2024-02-04", *resp.CAEVencimiento)

	// La respuesta cruda queda guardada para auditoría
	guardada := f.repo.facturas[id]
	require.NotNil(t, guardada.RespuestaAFIP)
	assert.Contains(t, *guardada.RespuestaAFIP, "74999888777666")
}

func TestEmitirRechazadaNuncaAprueba(t *testing.T) {
	f, cleanup := nuevoFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, respuestaWSFERechazada)
	})
	defer cleanup()

	borrador := f.crearBorrador(t)
	id := uuid.MustParse(borrador.ID)

	_, err := f.svc.Emitir(context.Background(), f.userID, id)
	require.Error(t, err)

	var rechazo *afip.RechazoError
	require.ErrorAs(t, err, &rechazo)

	guardada := f.repo.facturas[id]
	assert.Equal(t, "rechazada", guardada.Estado)
	assert.Nil(t, guardada.CAE)
	// Las observaciones de la autoridad se conservan textuales
	require.NotNil(t, guardada.Observaciones)
	assert.Contains(t, *guardada.Observaciones, "10048")
	assert.Contains(t, *guardada.Observaciones, "CUIT emisor no habilitado")
	// El número asignado se conserva para el reintento
	require.NotNil(t, guardada.Numero)
	assert.Equal(t, int64(1), *guardada.Numero)
}

func TestEmitirFalloDeTransporteQuedaPendiente(t *testing.T) {
	f, cleanup := nuevoFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "timeout", http.StatusGatewayTimeout)
	})
	defer cleanup()

	borrador := f.crearBorrador(t)
	id := uuid.MustParse(borrador.ID)

	_, err := f.svc.Emitir(context.Background(), f.userID, id)
	require.Error(t, err)

	var rechazo *afip.RechazoError
	assert.False(t, errors.As(err, &rechazo))

	guardada := f.repo.facturas[id]
	assert.Equal(t, "pendiente", guardada.Estado)
	require.NotNil(t, guardada.Numero)
}

func TestEmitirReintentoConservaNumero(t *testing.T) {
	intentos := 0
	f, cleanup := nuevoFixture(t, func(w http.ResponseWriter, r *http.Request) {
		intentos++
		if intentos == 1 {
			http.Error(w, "timeout", http.StatusGatewayTimeout)
			return
		}
		fmt.Fprint(w, respuestaWSFEAprobada("74000111222333", "20240204"))
	})
	defer cleanup()

	borrador := f.crearBorrador(t)
	id := uuid.MustParse(borrador.ID)

	_, err := f.svc.Emitir(context.Background(), f.userID, id)
	require.Error(t, err)

	resp, err := f.svc.Emitir(context.Background(), f.userID, id)
	require.NoError(t, err)
	assert.Equal(t, "aprobada", resp.Estado)
	// El reintento reutiliza el número que ya había consumido
	require.NotNil(t, resp.Numero)
	assert.Equal(t, int64(1), *resp.Numero)
	assert.Equal(t, int64(1), f.repo.contador)
}

func TestEmitirFacturaYaAprobada(t *testing.T) {
	f, cleanup := nuevoFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, respuestaWSFEAprobada("74999888777666", "20240204"))
	})
	defer cleanup()

	borrador := f.crearBorrador(t)
	id := uuid.MustParse(borrador.ID)

	_, err := f.svc.Emitir(context.Background(), f.userID, id)
	require.NoError(t, err)

	_, err = f.svc.Emitir(context.Background(), f.userID, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ya fue aprobada")
}

func TestEmitirFacturaAjena(t *testing.T) {
	f, cleanup := nuevoFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, respuestaWSFEAprobada("74999888777666", "20240204"))
	})
	defer cleanup()

	borrador := f.crearBorrador(t)
	otroUsuario := uuid.New()
	_, err := f.svc.Emitir(context.Background(), otroUsuario, uuid.MustParse(borrador.ID))
	assert.Error(t, err)
}

// ── UltimoAutorizado ─────────────────────────────────────────────────────────

func TestUltimoAutorizadoSincronizado(t *testing.T) {
	f, cleanup := nuevoFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body><FECompUltimoAutorizadoResponse xmlns="http://ar.gov.afip.dif.FEV1/"><FECompUltimoAutorizadoResult><CbteNro>0</CbteNro></FECompUltimoAutorizadoResult></FECompUltimoAutorizadoResponse></soap:Body></soap:Envelope>`)
	})
	defer cleanup()

	resp, err := f.svc.UltimoAutorizado(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.NumeroAFIP)
	assert.Equal(t, int64(0), resp.NumeroLocal)
	assert.True(t, resp.Sincronizado)
	assert.Equal(t, 3, resp.PuntoVenta)
}
