package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/galo-graneros/ai-contador/internal/apierror"
	"github.com/galo-graneros/ai-contador/internal/dto"
	"github.com/galo-graneros/ai-contador/internal/middleware"
	"github.com/galo-graneros/ai-contador/internal/service"
)

type DeclaracionesHandler struct{ svc service.DeclaracionService }

func NewDeclaracionesHandler(svc service.DeclaracionService) *DeclaracionesHandler {
	return &DeclaracionesHandler{svc: svc}
}

// Generar godoc
// @Summary Genera el borrador de una declaración para un período
// @Tags declaraciones
// @Accept json
// @Produce json
// @Param body body dto.GenerarDeclaracionRequest true "Período y tipo"
// @Success 200 {object} dto.DeclaracionResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/declaraciones/generar [post]
func (h *DeclaracionesHandler) Generar(c *gin.Context) {
	var req dto.GenerarDeclaracionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Generar(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GenerarTodas produces the four primary declaration types for one period.
// A per-type failure does not abort the batch; it is reported in "fallidas".
func (h *DeclaracionesHandler) GenerarTodas(c *gin.Context) {
	var req dto.GenerarTodasRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.GenerarTodas(c.Request.Context(), middleware.UserID(c), req.Periodo)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DeclaracionesHandler) Listar(c *gin.Context) {
	var filtro dto.DeclaracionFilter
	if !bindQueryAndValidate(c, &filtro) {
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), middleware.UserID(c), filtro)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al listar declaraciones"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DeclaracionesHandler) Obtener(c *gin.Context) {
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

func (h *DeclaracionesHandler) Actualizar(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarDeclaracionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Actualizar(c.Request.Context(), middleware.UserID(c), id, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}
