package infra

// mercadopago.go — MercadoPago REST client.
// OAuth (authorization-code + refresh) goes through golang.org/x/oauth2;
// movements and balance are plain authenticated GETs against the REST API.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
)

const mpBaseURL = "https://api.mercadopago.com"

// Movimiento is one account movement as returned by the MercadoPago
// movements search endpoint.
type Movimiento struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	CurrencyID  string          `json:"currency_id"`
	DateCreated time.Time       `json:"date_created"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Payer       *Contraparte    `json:"payer,omitempty"`
	Collector   *Contraparte    `json:"collector,omitempty"`
}

// Contraparte identifies the other side of a movement.
type Contraparte struct {
	ID    int64  `json:"id"`
	Email string `json:"email,omitempty"`
}

// MovimientosOpts filters the movements search.
type MovimientosOpts struct {
	Desde  time.Time
	Hasta  time.Time
	Offset int
	Limit  int
}

// MercadoPagoClient talks to the MercadoPago API for one OAuth application.
type MercadoPagoClient struct {
	oauth      *oauth2.Config
	baseURL    string
	httpClient *http.Client
}

// NewMercadoPagoClient builds the client. Empty credentials only warn:
// the rest of the product works without a linked MercadoPago account.
func NewMercadoPagoClient(clientID, clientSecret, redirectURI string) *MercadoPagoClient {
	if clientID == "" || clientSecret == "" {
		log.Warn().Msg("mercadopago: credenciales de aplicacion no configuradas")
	}
	return &MercadoPagoClient{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://auth.mercadopago.com.ar/authorization",
				TokenURL:  mpBaseURL + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		baseURL:    mpBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// URLAutorizacion returns the OAuth consent URL; state carries the user id
// so the callback can match the grant to its owner.
func (c *MercadoPagoClient) URLAutorizacion(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("platform_id", "mp"))
}

// IntercambiarCodigo exchanges an authorization code for tokens.
func (c *MercadoPagoClient) IntercambiarCodigo(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: intercambio de codigo: %w", err)
	}
	return tok, nil
}

// RefrescarToken obtains a fresh access token from a stored refresh token.
func (c *MercadoPagoClient) RefrescarToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	expirado := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Now().Add(-time.Minute)}
	tok, err := c.oauth.TokenSource(ctx, expirado).Token()
	if err != nil {
		return nil, fmt.Errorf("mercadopago: refresh token: %w", err)
	}
	return tok, nil
}

// Movimientos pulls a page of account movements ordered by creation date.
func (c *MercadoPagoClient) Movimientos(ctx context.Context, accessToken string, opts MovimientosOpts) ([]Movimiento, error) {
	params := url.Values{}
	params.Set("sort", "date_created")
	params.Set("criteria", "desc")
	params.Set("range", "date_created")
	params.Set("offset", strconv.Itoa(opts.Offset))
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	params.Set("limit", strconv.Itoa(limit))
	if !opts.Desde.IsZero() {
		params.Set("begin_date", opts.Desde.UTC().Format(time.RFC3339))
	}
	if !opts.Hasta.IsZero() {
		params.Set("end_date", opts.Hasta.UTC().Format(time.RFC3339))
	}

	var out struct {
		Results []Movimiento `json:"results"`
	}
	endpoint := c.baseURL + "/mercadopago_account/movements/search?" + params.Encode()
	if err := c.get(ctx, endpoint, accessToken, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Balance returns the available and pending account balances.
func (c *MercadoPagoClient) Balance(ctx context.Context, accessToken string) (disponible, pendiente decimal.Decimal, err error) {
	var out struct {
		AvailableBalance decimal.Decimal `json:"available_balance"`
		PendingBalance   decimal.Decimal `json:"pending_balance"`
	}
	endpoint := c.baseURL + "/users/me/mercadopago_account/balance"
	if err := c.get(ctx, endpoint, accessToken, &out); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return out.AvailableBalance, out.PendingBalance, nil
}

func (c *MercadoPagoClient) get(ctx context.Context, endpoint, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("mercadopago: crear request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mercadopago: la API devolvio %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mercadopago: decodificar respuesta: %w", err)
	}
	return nil
}
