package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/galo-graneros/ai-contador/internal/afip"
	"github.com/galo-graneros/ai-contador/internal/dto"
	"github.com/galo-graneros/ai-contador/internal/infra"
	"github.com/galo-graneros/ai-contador/internal/model"
	"github.com/galo-graneros/ai-contador/internal/repository"
	"github.com/galo-graneros/ai-contador/internal/worker"
)

type FacturacionService interface {
	CrearBorrador(ctx context.Context, userID uuid.UUID, req dto.CrearFacturaRequest) (*dto.FacturaResponse, error)
	Emitir(ctx context.Context, userID, facturaID uuid.UUID) (*dto.FacturaResponse, error)
	Obtener(ctx context.Context, userID, id uuid.UUID) (*dto.FacturaResponse, error)
	Listar(ctx context.Context, userID uuid.UUID, filtro dto.FacturaFilter) (*dto.FacturaListResponse, error)
	UltimoAutorizado(ctx context.Context, userID uuid.UUID) (*dto.UltimoAutorizadoResponse, error)
	ObtenerPDFPath(ctx context.Context, userID, id uuid.UUID) (string, error)
}

type facturacionService struct {
	repo        repository.FacturaRepository
	usuarioRepo repository.UsuarioRepository
	conexiones  ConexionService
	sessions    *afip.SessionManager
	wsfe        *afip.Client
	cb          *infra.CircuitBreaker
	dispatcher  *worker.Dispatcher
	pdfPath     string
}

func NewFacturacionService(
	repo repository.FacturaRepository,
	usuarioRepo repository.UsuarioRepository,
	conexiones ConexionService,
	sessions *afip.SessionManager,
	wsfe *afip.Client,
	cb *infra.CircuitBreaker,
	dispatcher *worker.Dispatcher,
	pdfPath string,
) FacturacionService {
	return &facturacionService{
		repo:        repo,
		usuarioRepo: usuarioRepo,
		conexiones:  conexiones,
		sessions:    sessions,
		wsfe:        wsfe,
		cb:          cb,
		dispatcher:  dispatcher,
		pdfPath:     pdfPath,
	}
}

// CrearBorrador builds a draft Factura C from its items. Totals are
// derived, never taken from the client: subtotal = cantidad × precio
// unitario rounded to centavos, neto = Σ subtotales, IVA = 0 (Factura C),
// total = neto.
func (s *facturacionService) CrearBorrador(ctx context.Context, userID uuid.UUID, req dto.CrearFacturaRequest) (*dto.FacturaResponse, error) {
	fechaEmision := time.Now().Truncate(24 * time.Hour)
	if req.FechaEmision != nil {
		parsed, err := time.Parse("2006-01-02", *req.FechaEmision)
		if err != nil {
			return nil, fmt.Errorf("fecha_emision inválida: %w", err)
		}
		fechaEmision = parsed
	}

	items := make([]model.FacturaItem, 0, len(req.Items))
	neto := decimal.Zero
	for _, it := range req.Items {
		if it.Cantidad.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("la cantidad debe ser positiva")
		}
		if it.PrecioUnitario.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("el precio unitario debe ser positivo")
		}
		subtotal := it.Cantidad.Mul(it.PrecioUnitario).Round(2)
		neto = neto.Add(subtotal)
		items = append(items, model.FacturaItem{
			Descripcion:    it.Descripcion,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Subtotal:       subtotal,
		})
	}

	cred, err := s.conexiones.CredencialesAFIP(ctx, userID)
	if err != nil {
		return nil, err
	}

	concepto := req.Concepto
	if concepto == 0 {
		concepto = 2 // servicios
	}

	factura := &model.Factura{
		UserID:         userID,
		PuntoVenta:     cred.PuntoVenta,
		ReceptorCUIT:   req.ReceptorCUIT,
		ReceptorNombre: req.ReceptorNombre,
		Concepto:       concepto,
		ImporteNeto:    neto,
		ImporteIVA:     decimal.Zero,
		ImporteTotal:   neto,
		FechaEmision:   fechaEmision,
		Estado:         "borrador",
		Items:          items,
	}
	if err := s.repo.Create(ctx, factura); err != nil {
		return nil, fmt.Errorf("no se pudo crear la factura: %w", err)
	}
	return facturaToResponse(factura), nil
}

// Emitir submits a draft to the tax authority. The invoice moves to
// pendiente, draws its number, and the WSFE call runs through the circuit
// breaker. Outcomes:
//   - approved: estado aprobada, CAE and vencimiento stored, PDF
//     generated, notification queued
//   - rejected ('R'): estado rechazada with the authority's observations
//     verbatim; never coerced into an approval
//   - transport failure / breaker open: estado stays pendiente so a later
//     retry reuses the same number
func (s *facturacionService) Emitir(ctx context.Context, userID, facturaID uuid.UUID) (*dto.FacturaResponse, error) {
	factura, err := s.repo.FindByID(ctx, userID, facturaID)
	if err != nil {
		return nil, fmt.Errorf("factura no encontrada")
	}
	switch factura.Estado {
	case "aprobada":
		return nil, fmt.Errorf("la factura ya fue aprobada (CAE %s)", deref(factura.CAE))
	case "borrador", "pendiente", "rechazada":
	default:
		return nil, fmt.Errorf("la factura está en estado '%s' y no puede emitirse", factura.Estado)
	}

	cred, err := s.conexiones.CredencialesAFIP(ctx, userID)
	if err != nil {
		return nil, err
	}

	ticket, err := s.sessions.Ticket(ctx, *cred)
	if err != nil {
		return nil, fmt.Errorf("no se pudo autenticar contra WSAA: %w", err)
	}
	auth := afip.Auth{Token: ticket.Token, Sign: ticket.Sign, CUIT: cred.CUIT}

	if err := s.repo.AsignarNumero(ctx, factura); err != nil {
		return nil, fmt.Errorf("no se pudo asignar el número: %w", err)
	}

	factura.Estado = "pendiente"
	if err := s.repo.Update(ctx, factura); err != nil {
		return nil, err
	}

	solicitud := afip.SolicitudFacturaC{
		PuntoVenta:   factura.PuntoVenta,
		Numero:       *factura.Numero,
		FechaEmision: factura.FechaEmision,
		ImporteNeto:  factura.ImporteNeto,
		ImporteTotal: factura.ImporteTotal,
		Concepto:     factura.Concepto,
	}
	if factura.ReceptorCUIT != nil {
		solicitud.ReceptorCUIT = *factura.ReceptorCUIT
	}

	var resultado *afip.ResultadoCAE
	cbErr := s.cb.Execute(func() error {
		res, err := s.wsfe.SolicitarCAE(ctx, auth, solicitud)
		if err != nil {
			return err
		}
		resultado = res
		return nil
	})

	if cbErr != nil {
		var rechazo *afip.RechazoError
		if errors.As(cbErr, &rechazo) {
			factura.Estado = "rechazada"
			obs := rechazo.Error()
			factura.Observaciones = &obs
			if err := s.repo.Update(ctx, factura); err != nil {
				return nil, err
			}
			return nil, rechazo
		}
		// Transport failure or breaker open: the invoice stays pendiente
		// with its number, and the caller can retry or reconcile via
		// UltimoAutorizado.
		log.Warn().Err(cbErr).Str("factura_id", facturaID.String()).Msg("emision sin respuesta definitiva")
		return nil, fmt.Errorf("no se pudo emitir la factura: %w", cbErr)
	}

	factura.Estado = "aprobada"
	factura.CAE = &resultado.CAE
	factura.CAEVencimiento = &resultado.Vencimiento
	rawResp := string(resultado.RawResponse)
	factura.RespuestaAFIP = &rawResp
	if err := s.repo.Update(ctx, factura); err != nil {
		return nil, err
	}

	s.generarPDFYNotificar(ctx, userID, factura)

	log.Info().
		Str("factura_id", facturaID.String()).
		Str("cae", resultado.CAE).
		Int64("numero", *factura.Numero).
		Msg("factura aprobada")
	return facturaToResponse(factura), nil
}

func (s *facturacionService) Obtener(ctx context.Context, userID, id uuid.UUID) (*dto.FacturaResponse, error) {
	factura, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("factura no encontrada")
	}
	return facturaToResponse(factura), nil
}

func (s *facturacionService) Listar(ctx context.Context, userID uuid.UUID, filtro dto.FacturaFilter) (*dto.FacturaListResponse, error) {
	facturas, total, err := s.repo.List(ctx, userID, filtro.Estado, filtro.Page, filtro.Limit)
	if err != nil {
		return nil, err
	}
	resp := &dto.FacturaListResponse{
		Data:  make([]dto.FacturaResponse, 0, len(facturas)),
		Total: total,
		Page:  filtro.Page,
		Limit: filtro.Limit,
	}
	for i := range facturas {
		resp.Data = append(resp.Data, *facturaToResponse(&facturas[i]))
	}
	return resp, nil
}

// UltimoAutorizado queries the authority for the last number it authorized
// and compares it against the local counter.
func (s *facturacionService) UltimoAutorizado(ctx context.Context, userID uuid.UUID) (*dto.UltimoAutorizadoResponse, error) {
	cred, err := s.conexiones.CredencialesAFIP(ctx, userID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.sessions.Ticket(ctx, *cred)
	if err != nil {
		return nil, fmt.Errorf("no se pudo autenticar contra WSAA: %w", err)
	}
	auth := afip.Auth{Token: ticket.Token, Sign: ticket.Sign, CUIT: cred.CUIT}

	var numeroAFIP int64
	cbErr := s.cb.Execute(func() error {
		n, err := s.wsfe.UltimoAutorizado(ctx, auth, cred.PuntoVenta)
		if err != nil {
			return err
		}
		numeroAFIP = n
		return nil
	})
	if cbErr != nil {
		return nil, fmt.Errorf("no se pudo consultar el último autorizado: %w", cbErr)
	}

	numeroLocal, err := s.repo.UltimoNumeroLocal(ctx, userID, cred.PuntoVenta)
	if err != nil {
		return nil, err
	}

	return &dto.UltimoAutorizadoResponse{
		PuntoVenta:   cred.PuntoVenta,
		NumeroAFIP:   numeroAFIP,
		NumeroLocal:  numeroLocal,
		Sincronizado: numeroAFIP == numeroLocal,
	}, nil
}

func (s *facturacionService) ObtenerPDFPath(ctx context.Context, userID, id uuid.UUID) (string, error) {
	factura, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return "", fmt.Errorf("factura no encontrada")
	}
	if factura.PDFPath == nil || *factura.PDFPath == "" {
		return "", fmt.Errorf("PDF no disponible — la factura está en estado '%s'", factura.Estado)
	}
	return *factura.PDFPath, nil
}

// generarPDFYNotificar is best-effort: a PDF or email failure never undoes
// an approval.
func (s *facturacionService) generarPDFYNotificar(ctx context.Context, userID uuid.UUID, factura *model.Factura) {
	user, err := s.usuarioRepo.FindByID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("no se pudo cargar el emisor para el PDF")
		return
	}

	emisorCUIT := ""
	if user.CUIT != nil {
		emisorCUIT = *user.CUIT
	}
	pdfPath, err := infra.GenerateFacturaPDF(factura, user.Nombre, emisorCUIT, s.pdfPath)
	if err != nil {
		log.Warn().Err(err).Str("factura_id", factura.ID.String()).Msg("no se pudo generar el PDF")
		return
	}
	factura.PDFPath = &pdfPath
	if err := s.repo.Update(ctx, factura); err != nil {
		log.Warn().Err(err).Msg("no se pudo guardar la ruta del PDF")
	}

	emailJob := worker.EmailJobPayload{
		ToEmail: user.Email,
		Subject: fmt.Sprintf("Factura C %04d-%08d aprobada", factura.PuntoVenta, *factura.Numero),
		Body: fmt.Sprintf("Tu factura fue aprobada por AFIP.\nCAE: %s\nTotal: $%s",
			deref(factura.CAE), factura.ImporteTotal.StringFixed(2)),
		PDFPath: pdfPath,
	}
	if err := s.dispatcher.EnqueueEmail(ctx, emailJob); err != nil {
		log.Warn().Err(err).Msg("no se pudo encolar la notificación")
	}
}

// ── helpers ──────────────────────────────────────────────────────────────────

func facturaToResponse(f *model.Factura) *dto.FacturaResponse {
	resp := &dto.FacturaResponse{
		ID:             f.ID.String(),
		PuntoVenta:     f.PuntoVenta,
		Numero:         f.Numero,
		ReceptorCUIT:   f.ReceptorCUIT,
		ReceptorNombre: f.ReceptorNombre,
		Concepto:       f.Concepto,
		ImporteNeto:    f.ImporteNeto,
		ImporteIVA:     f.ImporteIVA,
		ImporteTotal:   f.ImporteTotal,
		FechaEmision:   f.FechaEmision.Format("2006-01-02"),
		Estado:         f.Estado,
		CAE:            f.CAE,
		Observaciones:  f.Observaciones,
		Items:          make([]dto.FacturaItemResponse, 0, len(f.Items)),
		CreatedAt:      f.CreatedAt.Format(time.RFC3339),
	}
	if f.CAEVencimiento != nil {
		v := f.CAEVencimiento.Format("2006-01-02")
		resp.CAEVencimiento = &v
	}
	if f.PDFPath != nil && *f.PDFPath != "" {
		u := "/v1/facturas/" + f.ID.String() + "/pdf"
		resp.PDFUrl = &u
	}
	for _, it := range f.Items {
		resp.Items = append(resp.Items, dto.FacturaItemResponse{
			Descripcion:    it.Descripcion,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Subtotal:       it.Subtotal,
		})
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
