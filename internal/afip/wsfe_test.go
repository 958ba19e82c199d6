package afip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var authDePrueba = Auth{Token: "tok", Sign: "sign", CUIT: "20123456786"}

func solicitudDePrueba() SolicitudFacturaC {
	return SolicitudFacturaC{
		PuntoVenta:   3,
		Numero:       42,
		FechaEmision: time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC),
		ImporteNeto:  decimal.NewFromFloat(1500.50),
		ImporteTotal: decimal.NewFromFloat(1500.50),
		Concepto:     2,
	}
}

func respuestaAprobada(cae, fchVto string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <FECAESolicitarResponse xmlns="http://ar.gov.afip.dif.FEV1/">
      <FECAESolicitarResult>
        <FeCabResp><Resultado>A</Resultado></FeCabResp>
        <FeDetResp>
          <FECAEDetResponse>
            <Resultado>A</Resultado>
            <CAE>%s</CAE>
            <CAEFchVto>%s</CAEFchVto>
          </FECAEDetResponse>
        </FeDetResp>
      </FECAESolicitarResult>
    </FECAESolicitarResponse>
  </soap:Body>
</soap:Envelope>`, cae, fchVto)
}

const respuestaRechazada = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <FECAESolicitarResponse xmlns="http://ar.gov.afip.dif.FEV1/">
      <FECAESolicitarResult>
        <FeCabResp><Resultado>R</Resultado></FeCabResp>
        <FeDetResp>
          <FECAEDetResponse>
            <Resultado>R</Resultado>
            <CAE></CAE>
            <Observaciones>
              <Obs><Code>10016</Code><Msg>El numero de comprobante no es el proximo a autorizar</Msg></Obs>
            </Observaciones>
          </FECAEDetResponse>
        </FeDetResp>
        <Errors>
          <Err><Code>600</Code><Msg>ValidacionDeToken fallida</Msg></Err>
        </Errors>
      </FECAESolicitarResult>
    </FECAESolicitarResponse>
  </soap:Body>
</soap:Envelope>`

func TestSolicitarCAEAprobada(t *testing.T) {
	var cuerpoRequest string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		cuerpoRequest = string(body)
		fmt.Fprint(w, respuestaAprobada("74123456789012", "20240204"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.SolicitarCAE(context.Background(), authDePrueba, solicitudDePrueba())
	require.NoError(t, err)

	assert.Equal(t, "74123456789012", res.CAE)
	assert.Equal(t, time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC), res.Vencimiento)
	assert.Equal(t, "A", res.Resultado)
	assert.NotEmpty(t, res.RawResponse)

	// Factura C wire invariants
	assert.Contains(t, cuerpoRequest, "<ar:CantReg>1</ar:CantReg>")
	assert.Contains(t, cuerpoRequest, "<ar:CbteTipo>11</ar:CbteTipo>")
	assert.Contains(t, cuerpoRequest, "<ar:ImpIVA>0</ar:ImpIVA>")
	assert.Contains(t, cuerpoRequest, "<ar:ImpNeto>1500.50</ar:ImpNeto>")
	assert.Contains(t, cuerpoRequest, "<ar:ImpTotal>1500.50</ar:ImpTotal>")
	assert.Contains(t, cuerpoRequest, "<ar:CbteDesde>42</ar:CbteDesde>")
	assert.Contains(t, cuerpoRequest, "<ar:CbteHasta>42</ar:CbteHasta>")
	assert.Contains(t, cuerpoRequest, "<ar:CbteFch>20240125</ar:CbteFch>")
	assert.Contains(t, cuerpoRequest, "<ar:MonId>PES</ar:MonId>")
	// Sin CUIT receptor: consumidor final
	assert.Contains(t, cuerpoRequest, "<ar:DocTipo>99</ar:DocTipo>")
	assert.Contains(t, cuerpoRequest, "<ar:DocNro>0</ar:DocNro>")
}

func TestSolicitarCAEConReceptorCUIT(t *testing.T) {
	var cuerpoRequest string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		cuerpoRequest = string(body)
		fmt.Fprint(w, respuestaAprobada("74123456789012", "20240204"))
	}))
	defer srv.Close()

	sol := solicitudDePrueba()
	sol.ReceptorCUIT = "30-50001091-2"

	c := NewClient(srv.URL)
	_, err := c.SolicitarCAE(context.Background(), authDePrueba, sol)
	require.NoError(t, err)

	assert.Contains(t, cuerpoRequest, "<ar:DocTipo>80</ar:DocTipo>")
	assert.Contains(t, cuerpoRequest, "<ar:DocNro>30500010912</ar:DocNro>")
}

func TestSolicitarCAERechazada(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, respuestaRechazada)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.SolicitarCAE(context.Background(), authDePrueba, solicitudDePrueba())
	require.Error(t, err)

	var rechazo *RechazoError
	require.ErrorAs(t, err, &rechazo)
	assert.Equal(t, "R", rechazo.Resultado)
	require.Len(t, rechazo.Observaciones, 1)
	assert.Equal(t, 10016, rechazo.Observaciones[0].Codigo)
	assert.Contains(t, rechazo.Observaciones[0].Mensaje, "proximo a autorizar")
	require.Len(t, rechazo.Errores, 1)
	assert.Equal(t, 600, rechazo.Errores[0].Codigo)
}

func TestSolicitarCAESinCAEEnRespuesta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, respuestaAprobada("", "20240204"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.SolicitarCAE(context.Background(), authDePrueba, solicitudDePrueba())
	assert.ErrorIs(t, err, ErrRespuestaInvalida)
}

func TestSolicitarCAEErrorDeTransporte(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.SolicitarCAE(context.Background(), authDePrueba, solicitudDePrueba())
	require.Error(t, err)

	var rechazo *RechazoError
	assert.False(t, errors.As(err, &rechazo), "un fallo de transporte no es un rechazo")
}

func TestVencimientoCAE(t *testing.T) {
	// Crosses the month boundary: Jan 25 + 10 days = Feb 4
	assert.Equal(t,
		time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC),
		VencimientoCAE(time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)))
	// Crosses the year boundary
	assert.Equal(t,
		time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
		VencimientoCAE(time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t,
		time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
		VencimientoCAE(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)))
}

func TestUltimoAutorizado(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <FECompUltimoAutorizadoResponse xmlns="http://ar.gov.afip.dif.FEV1/">
      <FECompUltimoAutorizadoResult>
        <PtoVta>3</PtoVta>
        <CbteTipo>11</CbteTipo>
        <CbteNro>127</CbteNro>
      </FECompUltimoAutorizadoResult>
    </FECompUltimoAutorizadoResponse>
  </soap:Body>
</soap:Envelope>`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	n, err := c.UltimoAutorizado(context.Background(), authDePrueba, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(127), n)
}

func TestEstado(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <FEDummyResponse xmlns="http://ar.gov.afip.dif.FEV1/">
      <FEDummyResult>
        <AppServer>OK</AppServer>
        <DbServer>OK</DbServer>
        <AuthServer>OK</AuthServer>
      </FEDummyResult>
    </FEDummyResponse>
  </soap:Body>
</soap:Envelope>`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	estado, err := c.Estado(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OK", estado.AppServer)
	assert.Equal(t, "OK", estado.DbServer)
	assert.Equal(t, "OK", estado.AuthServer)
}
