package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/galo-graneros/ai-contador/internal/afip"
	"github.com/galo-graneros/ai-contador/internal/apierror"
	"github.com/galo-graneros/ai-contador/internal/dto"
	"github.com/galo-graneros/ai-contador/internal/middleware"
	"github.com/galo-graneros/ai-contador/internal/service"
)

type FacturasHandler struct{ svc service.FacturacionService }

func NewFacturasHandler(svc service.FacturacionService) *FacturasHandler {
	return &FacturasHandler{svc: svc}
}

// Crear godoc
// @Summary Crea un borrador de Factura C
// @Tags facturas
// @Accept json
// @Produce json
// @Param body body dto.CrearFacturaRequest true "Datos de la factura"
// @Success 201 {object} dto.FacturaResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/facturas [post]
func (h *FacturasHandler) Crear(c *gin.Context) {
	var req dto.CrearFacturaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CrearBorrador(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Emitir godoc
// @Summary Solicita el CAE a AFIP para una factura
// @Tags facturas
// @Produce json
// @Param id path string true "ID de la factura"
// @Success 200 {object} dto.FacturaResponse
// @Failure 409 {object} apierror.APIError
// @Failure 502 {object} apierror.APIError
// @Router /v1/facturas/{id}/emitir [post]
func (h *FacturasHandler) Emitir(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Emitir(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		var rechazo *afip.RechazoError
		if errors.As(err, &rechazo) {
			c.JSON(http.StatusConflict, apierror.New(rechazo.Error()))
			return
		}
		// The factura stays pendiente when AFIP was unreachable; the
		// caller can retry the same request later.
		c.JSON(http.StatusBadGateway, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FacturasHandler) Obtener(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FacturasHandler) Listar(c *gin.Context) {
	var filtro dto.FacturaFilter
	if !bindQueryAndValidate(c, &filtro) {
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), middleware.UserID(c), filtro)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al listar facturas"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UltimoAutorizado compares the local numbering counter against AFIP.
func (h *FacturasHandler) UltimoAutorizado(c *gin.Context) {
	resp, err := h.svc.UltimoAutorizado(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadGateway, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FacturasHandler) DescargarPDF(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	path, err := h.svc.ObtenerPDFPath(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.FileAttachment(path, "factura.pdf")
}
