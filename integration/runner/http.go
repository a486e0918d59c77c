package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/internal/handlers"
)

// apiError is a non-2xx answer from the API.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.Status, e.Message)
}

// send performs a request and decodes a 2xx body into out. Other statuses
// come back as *apiError.
func (r *Runner) send(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp handlers.ErrorResponse
		if json.Unmarshal(data, &errResp) != nil || errResp.Error == "" {
			errResp.Error = string(data)
		}
		return &apiError{Status: resp.StatusCode, Message: errResp.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (r *Runner) createSession(ctx context.Context) (*handlers.SessionResponse, error) {
	var res handlers.SessionResponse
	if err := r.send(ctx, http.MethodPost, "/v1/sessions", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *Runner) sessionOp(ctx context.Context, id uuid.UUID, op string, body any) (*handlers.SessionResponse, error) {
	var res handlers.SessionResponse
	if err := r.send(ctx, http.MethodPost, "/v1/sessions/"+id.String()+"/"+op, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *Runner) saveSlot(ctx context.Context, id uuid.UUID, slot int) error {
	return r.send(ctx, http.MethodPut, fmt.Sprintf("/v1/sessions/%s/saves/%d", id, slot), nil, nil)
}

func (r *Runner) deleteSession(ctx context.Context, id uuid.UUID) error {
	return r.send(ctx, http.MethodDelete, "/v1/sessions/"+id.String(), nil, nil)
}
