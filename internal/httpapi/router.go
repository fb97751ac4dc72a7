package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/turtacn/KeyIP-Intelligence/internal/coordinator"
	"github.com/turtacn/KeyIP-Intelligence/internal/logging"
)

// RouterConfig aggregates the dependencies NewRouter needs to build the
// complete route tree.
type RouterConfig struct {
	Coordinator    *coordinator.Coordinator
	Env            string
	Logger         logging.Logger
	MetricsHandler http.Handler
}

// NewRouter builds the gin engine implementing every endpoint in §6: health,
// predict, batch submission/status, the admin model-registry surface, and
// the Prometheus scrape endpoint.
func NewRouter(cfg RouterConfig) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(Recovery(cfg.Logger))
	r.Use(CORS())
	r.Use(RequestLogging(cfg.Logger))

	h := NewHandlers(cfg.Coordinator, cfg.Env)

	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)
	r.POST("/batch", h.EnqueueBatch)
	r.GET("/batch/:job_id", h.BatchStatus)

	admin := r.Group("/admin/models")
	{
		admin.GET("", h.ListModels)
		admin.POST("/:version/load", h.LoadModel)
		admin.POST("/:version/promote", h.PromoteModel)
		admin.DELETE("/:version", h.UnloadModel)
	}

	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	return r
}
