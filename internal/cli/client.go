package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiClient is a thin net/http wrapper over the admin HTTP surface. It holds
// no state beyond the server address and timeout — every call is a single
// request/response round trip, matching the stated design constraint that
// this CLI has no privilege a remote operator calling the same endpoints
// over curl would lack.
type apiClient struct {
	baseAddr string
	http     *http.Client
}

func newAPIClient(opts *RootOptions) *apiClient {
	return &apiClient{
		baseAddr: opts.ServerAddr,
		http:     &http.Client{Timeout: opts.Timeout},
	}
}

// apiError carries the server's structured error body back to the caller.
type apiError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *apiClient) do(method, path string, out interface{}) error {
	req, err := http.NewRequest(method, c.baseAddr+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &apiError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = string(body)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *apiClient) get(path string, out interface{}) error    { return c.do(http.MethodGet, path, out) }
func (c *apiClient) post(path string, out interface{}) error   { return c.do(http.MethodPost, path, out) }
func (c *apiClient) delete(path string, out interface{}) error { return c.do(http.MethodDelete, path, out) }
