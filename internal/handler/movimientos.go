package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/galo-graneros/ai-contador/internal/apierror"
	"github.com/galo-graneros/ai-contador/internal/dto"
	"github.com/galo-graneros/ai-contador/internal/middleware"
	"github.com/galo-graneros/ai-contador/internal/service"
)

type MovimientosHandler struct{ svc service.TransaccionService }

func NewMovimientosHandler(svc service.TransaccionService) *MovimientosHandler {
	return &MovimientosHandler{svc: svc}
}

// Listar godoc
// @Summary Lista movimientos bancarios sincronizados
// @Tags movimientos
// @Produce json
// @Param tipo query string false "income | expense | transfer | tax | other"
// @Param estado query string false "pendiente | clasificada | facturada | conciliada"
// @Success 200 {object} dto.TransaccionListResponse
// @Router /v1/movimientos [get]
func (h *MovimientosHandler) Listar(c *gin.Context) {
	var filtro dto.TransaccionFilter
	if !bindQueryAndValidate(c, &filtro) {
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), middleware.UserID(c), filtro)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MovimientosHandler) Obtener(c *gin.Context) {
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

// Sincronizar queues a background pull from MercadoPago. Returns 202:
// the sync itself runs on the worker pool.
func (h *MovimientosHandler) Sincronizar(c *gin.Context) {
	var req dto.SincronizarRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Sincronizar(c.Request.Context(), middleware.UserID(c), req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"mensaje": "Sincronización encolada"})
}

// Clasificar runs the AI classifier synchronously for one movement.
func (h *MovimientosHandler) Clasificar(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Clasificar(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MovimientosHandler) Explicar(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	explicacion, err := h.svc.Explicar(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"explicacion": explicacion})
}
