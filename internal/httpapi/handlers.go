package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/turtacn/KeyIP-Intelligence/internal/coordinator"
	"github.com/turtacn/KeyIP-Intelligence/internal/jobmanager"
	"github.com/turtacn/KeyIP-Intelligence/internal/model"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// Handlers holds the Coordinator every route delegates to, plus the
// service's env label echoed by /health.
type Handlers struct {
	coord *coordinator.Coordinator
	env   string
}

// NewHandlers constructs the handler set for the routes registered by
// NewRouter.
func NewHandlers(coord *coordinator.Coordinator, env string) *Handlers {
	return &Handlers{coord: coord, env: env}
}

// predictRequest is the body of POST /predict and POST /batch: a flat list
// of feature rows to score together.
type predictRequest struct {
	Instances []model.Row `json:"instances"`
}

// writeAppError maps an error to its HTTP status via ErrorCode.HTTPStatus(),
// with no per-handler special-casing, per the error propagation policy.
func writeAppError(c *gin.Context, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		appErr = errors.Internal("unexpected failure").WithCause(err)
	}
	c.JSON(appErr.Code.HTTPStatus(), gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	status := h.coord.Health(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":        status.Status,
		"default_model": status.DefaultModel,
		"env":           h.env,
	})
}

// Predict handles POST /predict?version=…
func (h *Handlers) Predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Instances) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_param",
			"message": "instances must be a non-empty array",
		})
		return
	}

	out, err := h.coord.Predict(c.Request.Context(), req.Instances, c.Query("version"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// EnqueueBatch handles POST /batch?version=…
func (h *Handlers) EnqueueBatch(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Instances) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_param",
			"message": "instances must be a non-empty array",
		})
		return
	}

	jobID, err := h.coord.EnqueueBatch(c.Request.Context(), req.Instances, c.Query("version"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "status": "submitted"})
}

// BatchStatus handles GET /batch/{job_id}.
func (h *Handlers) BatchStatus(c *gin.Context) {
	rec, err := h.coord.BatchStatus(c.Param("job_id"))
	if err != nil {
		writeAppError(c, err)
		return
	}

	resp := gin.H{"job_id": rec.JobID, "status": rec.Status}
	if rec.Status == jobmanager.StatusCompleted {
		resp["result"] = rec.Result
	}
	if rec.Status == jobmanager.StatusFailed {
		resp["error"] = rec.Error
	}
	c.JSON(http.StatusOK, resp)
}

// ListModels handles GET /admin/models.
func (h *Handlers) ListModels(c *gin.Context) {
	loaded, def := h.coord.ListModels()
	c.JSON(http.StatusOK, gin.H{"loaded_versions": loaded, "default_version": def})
}

// LoadModel handles POST /admin/models/{version}/load.
func (h *Handlers) LoadModel(c *gin.Context) {
	version := c.Param("version")
	if err := h.coord.LoadModel(version); err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "loaded", "version": version})
}

// PromoteModel handles POST /admin/models/{version}/promote.
func (h *Handlers) PromoteModel(c *gin.Context) {
	version := c.Param("version")
	if err := h.coord.PromoteModel(version); err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "promoted", "version": version})
}

// UnloadModel handles DELETE /admin/models/{version}.
func (h *Handlers) UnloadModel(c *gin.Context) {
	version := c.Param("version")
	if err := h.coord.UnloadModel(version); err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unloaded", "version": version})
}
