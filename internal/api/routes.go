package api

import (
	"net/http"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/api/handlers"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/api/middleware"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/services"
	"github.com/gin-gonic/gin"
)

// Router wires the signature handlers into a gin engine.
type Router struct {
	engine  *gin.Engine
	handler *handlers.SignatureHandler
}

func NewRouter(
	orchestrator *services.Orchestrator,
	tokens *services.TokenService,
	zones *services.ZoneService,
	records *services.RecordService,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.Recovery())

	return &Router{
		engine:  engine,
		handler: handlers.NewSignatureHandler(orchestrator, tokens, zones, records),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up", "name": "signature-pipeline"})
	})

	sig := r.engine.Group("/signature")
	{
		sig.POST("/acknowledge", r.handler.Acknowledge)
		sig.POST("/code/send", r.handler.SendCode)
		sig.POST("/code/verify", r.handler.VerifyCode)
		sig.POST("/token/issue", r.handler.IssueToken)
		sig.GET("/token/validate", r.handler.ValidateToken)
		sig.POST("/sign", r.handler.Sign)
		sig.POST("/reset", r.handler.Reset)
		sig.POST("/zones", r.handler.SaveZones)
		sig.GET("/zones/:documentId", r.handler.GetZones)
		sig.GET("/status/:documentId", r.handler.Status)
	}
}

// Engine exposes the underlying gin engine for serving and for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
