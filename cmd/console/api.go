package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/internal/handlers"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

// apiClient talks to the novel engine HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, client *http.Client) *apiClient {
	return &apiClient{baseURL: baseURL, http: client}
}

func (c *apiClient) testConnection() bool {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// call sends a request and decodes the response into out when the status
// matches want. Error bodies are unwrapped from the API error envelope.
func (c *apiClient) call(method, path string, reqBody any, want int, out any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *apiClient) sessionPath(id uuid.UUID, op string) string {
	if op == "" {
		return "/v1/sessions/" + id.String()
	}
	return "/v1/sessions/" + id.String() + "/" + op
}

func (c *apiClient) createSession() (*handlers.SessionResponse, error) {
	var res handlers.SessionResponse
	if err := c.call(http.MethodPost, "/v1/sessions", nil, http.StatusCreated, &res); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &res, nil
}

func (c *apiClient) getSession(id uuid.UUID) (*handlers.SessionResponse, error) {
	var res handlers.SessionResponse
	if err := c.call(http.MethodGet, c.sessionPath(id, ""), nil, http.StatusOK, &res); err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &res, nil
}

// post runs a session operation, for example "advance" or "battle/next".
func (c *apiClient) post(id uuid.UUID, op string, reqBody any) (*handlers.SessionResponse, error) {
	var res handlers.SessionResponse
	if err := c.call(http.MethodPost, c.sessionPath(id, op), reqBody, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *apiClient) advance(id uuid.UUID) (*handlers.SessionResponse, error) {
	return c.post(id, "advance", nil)
}

func (c *apiClient) choose(id uuid.UUID, choiceID int) (*handlers.SessionResponse, error) {
	return c.post(id, "choice", handlers.ChoiceRequest{ChoiceID: &choiceID})
}

func (c *apiClient) battleNext(id uuid.UUID) (*handlers.SessionResponse, error) {
	return c.post(id, "battle/next", nil)
}

func (c *apiClient) battleComplete(id uuid.UUID) (*handlers.SessionResponse, error) {
	return c.post(id, "battle/complete", nil)
}

func (c *apiClient) reset(id uuid.UUID) (*handlers.SessionResponse, error) {
	return c.post(id, "reset", nil)
}

func (c *apiClient) addPlaytime(id uuid.UUID, seconds int64) error {
	_, err := c.post(id, "playtime", handlers.PlaytimeRequest{Seconds: seconds})
	return err
}

func (c *apiClient) listSaves(id uuid.UUID) ([]*state.SaveSlot, error) {
	var res handlers.SaveListResponse
	if err := c.call(http.MethodGet, c.sessionPath(id, "saves"), nil, http.StatusOK, &res); err != nil {
		return nil, fmt.Errorf("failed to list saves: %w", err)
	}
	return res.Saves, nil
}

func (c *apiClient) save(id uuid.UUID, slot int) (*state.SaveSlot, error) {
	var save state.SaveSlot
	if err := c.call(http.MethodPut, c.sessionPath(id, fmt.Sprintf("saves/%d", slot)), nil, http.StatusOK, &save); err != nil {
		return nil, fmt.Errorf("failed to save: %w", err)
	}
	return &save, nil
}

func (c *apiClient) load(id uuid.UUID, slot int) (*handlers.SessionResponse, error) {
	res, err := c.post(id, fmt.Sprintf("saves/%d/load", slot), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load: %w", err)
	}
	return res, nil
}
