package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/KeyIP-Intelligence/internal/coordinator"
	"github.com/turtacn/KeyIP-Intelligence/internal/drift"
	"github.com/turtacn/KeyIP-Intelligence/internal/jobmanager"
	"github.com/turtacn/KeyIP-Intelligence/internal/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/metrics"
	"github.com/turtacn/KeyIP-Intelligence/internal/model"
	"github.com/turtacn/KeyIP-Intelligence/internal/registry"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	models := map[string]model.Model{
		"v1": model.NewStaticModel("v1", 0, map[string]float64{"x": 1}),
	}
	loader := func(version string) (model.Model, error) {
		if m, ok := models[version]; ok {
			return m, nil
		}
		return nil, errors.ArtifactMissing(version)
	}
	reg := registry.New(loader, "v1", logging.NewNopLogger())

	jm, err := jobmanager.New(1, t.TempDir(), logging.NewNopLogger())
	require.NoError(t, err)
	jm.Start()
	t.Cleanup(func() { _ = jm.Stop(context.Background()) })

	dt := drift.New(4, 0.1)
	coord := coordinator.New(reg, nil, jm, dt, metrics.Noop(), logging.NewNopLogger(), 2, 0)

	return NewRouter(RouterConfig{Coordinator: coord, Env: "test", Logger: logging.NewNopLogger()})
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth_ReturnsReadyStatus(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(r, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "v1", body["default_model"])
}

func TestPredict_ValidRequestReturnsPredictions(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(r, http.MethodPost, "/predict", map[string]interface{}{
		"instances": []map[string]float64{{"x": 1}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "v1", body["version"])
}

func TestPredict_EmptyInstancesReturns400(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(r, http.MethodPost, "/predict", map[string]interface{}{"instances": []map[string]float64{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredict_UnknownVersionReturns404(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(r, http.MethodPost, "/predict?version=vnope", map[string]interface{}{
		"instances": []map[string]float64{{"x": 1}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnqueueBatch_ReturnsJobID(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(r, http.MethodPost, "/batch", map[string]interface{}{
		"instances": []map[string]float64{{"x": 1}, {"x": 2}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "submitted", body["status"])
	assert.NotEmpty(t, body["job_id"])

	jobID := body["job_id"].(string)
	require.Eventually(t, func() bool {
		rec := doJSON(r, http.MethodGet, "/batch/"+jobID, nil)
		var status map[string]interface{}
		_ = json.Unmarshal(rec.Body.Bytes(), &status)
		return status["status"] == "completed"
	}, time.Second, 5*time.Millisecond)
}

func TestBatchStatus_UnknownJobReturns404(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(r, http.MethodGet, "/batch/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminModels_ListReportsDefault(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(r, http.MethodGet, "/admin/models", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "v1", body["default_version"])
}

func TestAdminModels_UnloadDefaultReturns400(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(r, http.MethodDelete, "/admin/models/v1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminModels_LoadUnknownVersionReturns404(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(r, http.MethodPost, "/admin/models/vnope/load", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
