package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/galo-graneros/ai-contador/internal/afip"
	"github.com/galo-graneros/ai-contador/internal/dto"
	"github.com/galo-graneros/ai-contador/internal/fiscal"
	"github.com/galo-graneros/ai-contador/internal/infra"
	"github.com/galo-graneros/ai-contador/internal/model"
	"github.com/galo-graneros/ai-contador/internal/repository"
	"github.com/galo-graneros/ai-contador/internal/vault"
	"github.com/galo-graneros/ai-contador/internal/worker"
)

const (
	ProviderAFIP        = "afip"
	ProviderMercadoPago = "mercadopago"
)

type ConexionService interface {
	VincularAFIP(ctx context.Context, userID uuid.UUID, req dto.VincularAFIPRequest) (*dto.ConexionResponse, error)
	URLMercadoPago(userID uuid.UUID) string
	CallbackMercadoPago(ctx context.Context, req dto.CallbackMercadoPagoRequest) (*dto.ConexionResponse, error)
	Listar(ctx context.Context, userID uuid.UUID) (*dto.ConexionListResponse, error)
	Probar(ctx context.Context, userID uuid.UUID, provider string) (*dto.ProbarConexionResponse, error)
	Desconectar(ctx context.Context, userID uuid.UUID, provider string) error
	// CredencialesAFIP decrypts and returns the stored AFIP credentials.
	CredencialesAFIP(ctx context.Context, userID uuid.UUID) (*afip.Credenciales, error)
	// TokenMercadoPago returns a live access token, refreshing it when the
	// stored one expired.
	TokenMercadoPago(ctx context.Context, conexion *model.Conexion) (string, error)
}

type conexionService struct {
	repo       repository.ConexionRepository
	vault      *vault.Vault
	sessions   *afip.SessionManager
	mp         *infra.MercadoPagoClient
	dispatcher *worker.Dispatcher
}

func NewConexionService(
	repo repository.ConexionRepository,
	v *vault.Vault,
	sessions *afip.SessionManager,
	mp *infra.MercadoPagoClient,
	dispatcher *worker.Dispatcher,
) ConexionService {
	return &conexionService{repo: repo, vault: v, sessions: sessions, mp: mp, dispatcher: dispatcher}
}

// VincularAFIP validates the CUIT and the certificate material, verifies a
// ticket can actually be obtained, and stores the credentials encrypted.
// The plaintext certificate and key exist only for the duration of this call.
func (s *conexionService) VincularAFIP(ctx context.Context, userID uuid.UUID, req dto.VincularAFIPRequest) (*dto.ConexionResponse, error) {
	cuit := fiscal.LimpiarCUIT(req.CUIT)
	if !fiscal.ValidarCUIT(cuit) {
		return nil, fmt.Errorf("CUIT inválido: %s", req.CUIT)
	}

	cred := afip.Credenciales{
		CUIT:         cuit,
		Certificado:  req.Certificado,
		ClavePrivada: req.ClavePrivada,
		PuntoVenta:   req.PuntoVenta,
	}

	estado := "activa"
	var mensajeError *string
	if !s.sessions.TestConnection(ctx, cred) {
		estado = "error"
		msg := "No se pudo obtener un ticket de WSAA con las credenciales provistas"
		mensajeError = &msg
	}

	plano, err := json.Marshal(cred)
	if err != nil {
		return nil, fmt.Errorf("serializar credenciales: %w", err)
	}
	cifrado, err := s.vault.Encrypt(string(plano))
	if err != nil {
		return nil, fmt.Errorf("cifrar credenciales: %w", err)
	}

	meta, _ := json.Marshal(map[string]interface{}{
		"cuit":        cuit,
		"punto_venta": req.PuntoVenta,
	})
	metaStr := string(meta)

	conexion := &model.Conexion{
		UserID:               userID,
		Provider:             ProviderAFIP,
		Estado:               estado,
		CredencialesCifradas: &cifrado,
		Metadata:             &metaStr,
		MensajeError:         mensajeError,
	}
	if err := s.repo.Upsert(ctx, conexion); err != nil {
		return nil, fmt.Errorf("guardar conexión AFIP: %w", err)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("cuit_hash", vault.HashSensitive(cuit)).
		Str("estado", estado).
		Msg("conexion AFIP vinculada")
	return conexionToResponse(conexion), nil
}

// URLMercadoPago builds the OAuth consent URL; the user id travels in state.
func (s *conexionService) URLMercadoPago(userID uuid.UUID) string {
	return s.mp.URLAutorizacion(userID.String())
}

// CallbackMercadoPago completes the OAuth dance: exchanges the code, stores
// both tokens encrypted, and queues an initial movement sync.
func (s *conexionService) CallbackMercadoPago(ctx context.Context, req dto.CallbackMercadoPagoRequest) (*dto.ConexionResponse, error) {
	userID, err := uuid.Parse(req.State)
	if err != nil {
		return nil, fmt.Errorf("state inválido: %w", err)
	}

	tok, err := s.mp.IntercambiarCodigo(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	accessCifrado, err := s.vault.Encrypt(tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("cifrar access token: %w", err)
	}
	refreshCifrado, err := s.vault.Encrypt(tok.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("cifrar refresh token: %w", err)
	}

	expira := tok.Expiry
	conexion := &model.Conexion{
		UserID:              userID,
		Provider:            ProviderMercadoPago,
		Estado:              "activa",
		AccessTokenCifrado:  &accessCifrado,
		RefreshTokenCifrado: &refreshCifrado,
		TokenExpiraEn:       &expira,
	}
	if err := s.repo.Upsert(ctx, conexion); err != nil {
		return nil, fmt.Errorf("guardar conexión MercadoPago: %w", err)
	}

	if err := s.dispatcher.EnqueueSync(ctx, worker.SyncPayload{UserID: userID.String()}); err != nil {
		log.Warn().Err(err).Msg("no se pudo encolar la sincronización inicial")
	}

	log.Info().Str("user_id", userID.String()).Msg("conexion MercadoPago vinculada")
	return conexionToResponse(conexion), nil
}

func (s *conexionService) Listar(ctx context.Context, userID uuid.UUID) (*dto.ConexionListResponse, error) {
	conexiones, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := &dto.ConexionListResponse{Data: make([]dto.ConexionResponse, 0, len(conexiones))}
	for i := range conexiones {
		resp.Data = append(resp.Data, *conexionToResponse(&conexiones[i]))
	}
	return resp, nil
}

// Probar runs a live credential check without mutating stored state.
func (s *conexionService) Probar(ctx context.Context, userID uuid.UUID, provider string) (*dto.ProbarConexionResponse, error) {
	switch provider {
	case ProviderAFIP:
		cred, err := s.CredencialesAFIP(ctx, userID)
		if err != nil {
			return &dto.ProbarConexionResponse{Provider: provider, OK: false, Detalle: err.Error()}, nil
		}
		ok := s.sessions.TestConnection(ctx, *cred)
		resp := &dto.ProbarConexionResponse{Provider: provider, OK: ok}
		if !ok {
			resp.Detalle = "No se pudo obtener un ticket de WSAA"
		}
		return resp, nil

	case ProviderMercadoPago:
		conexion, err := s.repo.FindByUserProvider(ctx, userID, ProviderMercadoPago)
		if err != nil {
			return &dto.ProbarConexionResponse{Provider: provider, OK: false, Detalle: "conexión no encontrada"}, nil
		}
		token, err := s.TokenMercadoPago(ctx, conexion)
		if err != nil {
			return &dto.ProbarConexionResponse{Provider: provider, OK: false, Detalle: err.Error()}, nil
		}
		if _, _, err := s.mp.Balance(ctx, token); err != nil {
			return &dto.ProbarConexionResponse{Provider: provider, OK: false, Detalle: err.Error()}, nil
		}
		return &dto.ProbarConexionResponse{Provider: provider, OK: true}, nil

	default:
		return nil, fmt.Errorf("provider desconocido: %s", provider)
	}
}

// Desconectar marks the connection inactiva. Credentials stay encrypted at
// rest so relinking does not require re-uploading the certificate.
func (s *conexionService) Desconectar(ctx context.Context, userID uuid.UUID, provider string) error {
	conexion, err := s.repo.FindByUserProvider(ctx, userID, provider)
	if err != nil {
		return fmt.Errorf("conexión %s no encontrada", provider)
	}
	conexion.Estado = "inactiva"
	return s.repo.Update(ctx, conexion)
}

func (s *conexionService) CredencialesAFIP(ctx context.Context, userID uuid.UUID) (*afip.Credenciales, error) {
	conexion, err := s.repo.FindByUserProvider(ctx, userID, ProviderAFIP)
	if err != nil {
		return nil, fmt.Errorf("no hay una conexión AFIP configurada")
	}
	if conexion.Estado == "inactiva" {
		return nil, fmt.Errorf("la conexión AFIP está desactivada")
	}
	if conexion.CredencialesCifradas == nil {
		return nil, fmt.Errorf("la conexión AFIP no tiene credenciales almacenadas")
	}

	plano, err := s.vault.Decrypt(*conexion.CredencialesCifradas)
	if err != nil {
		return nil, err
	}
	var cred afip.Credenciales
	if err := json.Unmarshal([]byte(plano), &cred); err != nil {
		return nil, fmt.Errorf("credenciales AFIP corruptas: %w", err)
	}
	return &cred, nil
}

func (s *conexionService) TokenMercadoPago(ctx context.Context, conexion *model.Conexion) (string, error) {
	if conexion.AccessTokenCifrado == nil {
		return "", fmt.Errorf("la conexión no tiene access token")
	}

	vigente := conexion.TokenExpiraEn == nil || time.Now().Before(*conexion.TokenExpiraEn)
	if vigente {
		return s.vault.Decrypt(*conexion.AccessTokenCifrado)
	}

	if conexion.RefreshTokenCifrado == nil {
		return "", fmt.Errorf("el token expiró y no hay refresh token")
	}
	refresh, err := s.vault.Decrypt(*conexion.RefreshTokenCifrado)
	if err != nil {
		return "", err
	}
	tok, err := s.mp.RefrescarToken(ctx, refresh)
	if err != nil {
		return "", err
	}

	accessCifrado, err := s.vault.Encrypt(tok.AccessToken)
	if err != nil {
		return "", err
	}
	conexion.AccessTokenCifrado = &accessCifrado
	if tok.RefreshToken != "" {
		refreshCifrado, err := s.vault.Encrypt(tok.RefreshToken)
		if err != nil {
			return "", err
		}
		conexion.RefreshTokenCifrado = &refreshCifrado
	}
	expira := tok.Expiry
	conexion.TokenExpiraEn = &expira
	if err := s.repo.Update(ctx, conexion); err != nil {
		log.Warn().Err(err).Msg("no se pudo persistir el token refrescado")
	}
	return tok.AccessToken, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func conexionToResponse(c *model.Conexion) *dto.ConexionResponse {
	resp := &dto.ConexionResponse{
		ID:           c.ID.String(),
		Provider:     c.Provider,
		Estado:       c.Estado,
		MensajeError: c.MensajeError,
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
	}
	if c.UltimaSincronizacion != nil {
		s := c.UltimaSincronizacion.Format(time.RFC3339)
		resp.UltimaSincronizacion = &s
	}
	return resp
}
