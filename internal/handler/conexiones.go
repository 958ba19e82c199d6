package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/galo-graneros/ai-contador/internal/apierror"
	"github.com/galo-graneros/ai-contador/internal/dto"
	"github.com/galo-graneros/ai-contador/internal/middleware"
	"github.com/galo-graneros/ai-contador/internal/service"
)

type ConexionesHandler struct{ svc service.ConexionService }

func NewConexionesHandler(svc service.ConexionService) *ConexionesHandler {
	return &ConexionesHandler{svc: svc}
}

// VincularAFIP godoc
// @Summary Vincula credenciales AFIP (certificado + clave privada)
// @Tags conexiones
// @Accept json
// @Produce json
// @Param body body dto.VincularAFIPRequest true "Credenciales AFIP"
// @Success 201 {object} dto.ConexionResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/conexiones/afip [post]
func (h *ConexionesHandler) VincularAFIP(c *gin.Context) {
	var req dto.VincularAFIPRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.VincularAFIP(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// URLMercadoPago returns the OAuth consent URL the frontend redirects to.
func (h *ConexionesHandler) URLMercadoPago(c *gin.Context) {
	url := h.svc.URLMercadoPago(middleware.UserID(c))
	c.JSON(http.StatusOK, dto.URLAutorizacionResponse{URL: url})
}

// CallbackMercadoPago completes the OAuth flow. The state parameter carries
// the user id, so this endpoint stays public (MercadoPago redirects the
// browser here without our bearer token).
func (h *ConexionesHandler) CallbackMercadoPago(c *gin.Context) {
	var req dto.CallbackMercadoPagoRequest
	if err := c.ShouldBindQuery(&req); err != nil || req.Code == "" || req.State == "" {
		c.JSON(http.StatusBadRequest, apierror.New("Callback invalido: faltan code o state"))
		return
	}
	resp, err := h.svc.CallbackMercadoPago(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ConexionesHandler) Listar(c *gin.Context) {
	resp, err := h.svc.Listar(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al listar conexiones"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Probar runs a live credential check against the provider.
func (h *ConexionesHandler) Probar(c *gin.Context) {
	provider := c.Param("provider")
	resp, err := h.svc.Probar(c.Request.Context(), middleware.UserID(c), provider)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ConexionesHandler) Desconectar(c *gin.Context) {
	provider := c.Param("provider")
	if err := h.svc.Desconectar(c.Request.Context(), middleware.UserID(c), provider); err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}
