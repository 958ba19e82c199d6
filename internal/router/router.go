package router

import (
	"time"

	"github.com/galo-graneros/ai-contador/internal/afip"
	"github.com/galo-graneros/ai-contador/internal/config"
	"github.com/galo-graneros/ai-contador/internal/handler"
	"github.com/galo-graneros/ai-contador/internal/infra"
	"github.com/galo-graneros/ai-contador/internal/middleware"
	"github.com/galo-graneros/ai-contador/internal/repository"
	"github.com/galo-graneros/ai-contador/internal/service"
	"github.com/galo-graneros/ai-contador/internal/vault"
	"github.com/galo-graneros/ai-contador/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps carries the shared infrastructure built at the composition root.
// The worker pool uses the same instances, so they cannot be constructed
// here.
type Deps struct {
	Vault        *vault.Vault
	Sessions     *afip.SessionManager
	WSFE         *afip.Client
	AFIPCB       *infra.CircuitBreaker
	MP           *infra.MercadoPagoClient
	Clasificador *infra.Clasificador
	Dispatcher   *worker.Dispatcher
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	conexionRepo := repository.NewConexionRepository(db)
	facturaRepo := repository.NewFacturaRepository(db)
	transaccionRepo := repository.NewTransaccionRepository(db)
	declaracionRepo := repository.NewDeclaracionRepository(db)
	clasificacionRepo := repository.NewClasificacionRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(usuarioRepo, cfg)
	conexionSvc := service.NewConexionService(conexionRepo, deps.Vault, deps.Sessions, deps.MP, deps.Dispatcher)
	facturacionSvc := service.NewFacturacionService(
		facturaRepo, usuarioRepo, conexionSvc,
		deps.Sessions, deps.WSFE, deps.AFIPCB, deps.Dispatcher, cfg.PDFStoragePath,
	)
	declaracionSvc := service.NewDeclaracionService(declaracionRepo, facturaRepo, transaccionRepo)
	transaccionSvc := service.NewTransaccionService(
		transaccionRepo, clasificacionRepo, conexionRepo, deps.Clasificador, deps.Dispatcher,
	)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	conexionesH := handler.NewConexionesHandler(conexionSvc)
	facturasH := handler.NewFacturasHandler(facturacionSvc)
	declaracionesH := handler.NewDeclaracionesHandler(declaracionSvc)
	movimientosH := handler.NewMovimientosHandler(transaccionSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, deps.AFIPCB))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/registrar", middleware.LoginRateLimiter(), authH.Registrar)
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// OAuth redirect target — MercadoPago sends the browser here without
	// our bearer token; the signed state parameter identifies the user.
	r.GET("/v1/conexiones/mercadopago/callback", conexionesH.CallbackMercadoPago)

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		v1.GET("/perfil", authH.Perfil)
		v1.PUT("/perfil", authH.ActualizarPerfil)

		conexiones := v1.Group("/conexiones")
		{
			conexiones.GET("", conexionesH.Listar)
			conexiones.POST("/afip", conexionesH.VincularAFIP)
			conexiones.GET("/mercadopago/url", conexionesH.URLMercadoPago)
			conexiones.POST("/:provider/probar", conexionesH.Probar)
			conexiones.DELETE("/:provider", conexionesH.Desconectar)
		}

		facturas := v1.Group("/facturas")
		{
			facturas.POST("", facturasH.Crear)
			facturas.GET("", facturasH.Listar)
			facturas.GET("/ultimo-autorizado", facturasH.UltimoAutorizado)
			facturas.GET("/:id", facturasH.Obtener)
			facturas.POST("/:id/emitir", facturasH.Emitir)
			facturas.GET("/:id/pdf", facturasH.DescargarPDF)
		}

		declaraciones := v1.Group("/declaraciones")
		{
			declaraciones.POST("/generar", declaracionesH.Generar)
			declaraciones.POST("/generar-todas", declaracionesH.GenerarTodas)
			declaraciones.GET("", declaracionesH.Listar)
			declaraciones.GET("/:id", declaracionesH.Obtener)
			declaraciones.PATCH("/:id", declaracionesH.Actualizar)
		}

		movimientos := v1.Group("/movimientos")
		{
			movimientos.GET("", movimientosH.Listar)
			movimientos.POST("/sincronizar", movimientosH.Sincronizar)
			movimientos.GET("/:id", movimientosH.Obtener)
			movimientos.POST("/:id/clasificar", movimientosH.Clasificar)
			movimientos.GET("/:id/explicar", movimientosH.Explicar)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
