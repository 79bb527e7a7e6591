package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// API issues the mutation actions: login, claim submission, verification
// submission and the admin resolutions. Every call is a JSON POST whose
// response may carry an "error" field; that field, or a non-2xx status, is
// surfaced as a MutationError. On success the caller should force a fresh
// snapshot.
type API struct {
	baseURL string
	client  *http.Client
}

// NewAPI creates an actions client against the given API base URL.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

func (a *API) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	var envelope struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)

	if envelope.Error != "" {
		return nil, &MutationError{Message: envelope.Error}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &MutationError{Message: fmt.Sprintf("request failed with status %d", resp.StatusCode)}
	}
	return data, nil
}

// LoginResult is the identity a successful login yields.
type LoginResult struct {
	Token string `json:"token"`
	Team  *struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
	} `json:"team"`
	Admin bool `json:"admin"`
}

// TeamLogin exchanges a team id and PIN for a session token.
func (a *API) TeamLogin(ctx context.Context, teamID, pin string) (*LoginResult, error) {
	data, err := a.post(ctx, "/login", map[string]string{"teamId": teamID, "pin": pin})
	if err != nil {
		return nil, err
	}
	var out LoginResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	return &out, nil
}

// AdminLogin exchanges the admin PIN for a session token.
func (a *API) AdminLogin(ctx context.Context, pin string) (*LoginResult, error) {
	data, err := a.post(ctx, "/admin/login", map[string]string{"pin": pin})
	if err != nil {
		return nil, err
	}
	var out LoginResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	return &out, nil
}

// SubmitClaimVerify asks for a GPS verification of the caller's position
// inside a territory.
func (a *API) SubmitClaimVerify(ctx context.Context, token, territoryID string, lat, lng float64) error {
	_, err := a.post(ctx, "/territory/claimVerifyRequest", map[string]any{
		"token":       token,
		"territoryId": territoryID,
		"lat":         lat,
		"lng":         lng,
	})
	return err
}

// SubmitClaim submits a claim request with the team's task answer.
func (a *API) SubmitClaim(ctx context.Context, token, territoryID, answer string) error {
	_, err := a.post(ctx, "/territory/claimRequest", map[string]any{
		"token":       token,
		"territoryId": territoryID,
		"answer":      answer,
	})
	return err
}

// ResolveClaim approves or rejects a pending claim request (admin).
func (a *API) ResolveClaim(ctx context.Context, token, requestID string, approve, correct bool) error {
	_, err := a.post(ctx, "/admin/claimRequest/resolve", map[string]any{
		"token":          token,
		"claimRequestId": requestID,
		"approve":        approve,
		"correct":        correct,
	})
	return err
}

// ResolveClaimVerify accepts or rejects a pending verification request
// (admin).
func (a *API) ResolveClaimVerify(ctx context.Context, token, requestID string, ok bool) error {
	_, err := a.post(ctx, "/admin/claimVerifyRequest/resolve", map[string]any{
		"token":                token,
		"claimVerifyRequestId": requestID,
		"ok":                   ok,
	})
	return err
}

// AssignTask attaches the task text to an approved verification request
// (admin).
func (a *API) AssignTask(ctx context.Context, token, requestID, task string) error {
	_, err := a.post(ctx, "/admin/claimVerifyRequest/assignTask", map[string]any{
		"token":                token,
		"claimVerifyRequestId": requestID,
		"task":                 task,
	})
	return err
}

// SetOwner force-assigns a territory owner (admin).
func (a *API) SetOwner(ctx context.Context, token, territoryID string, ownerTeamID *string) error {
	_, err := a.post(ctx, "/admin/territory/setOwner", map[string]any{
		"token":       token,
		"territoryId": territoryID,
		"ownerTeamId": ownerTeamID,
	})
	return err
}

// ResetTerritories restarts the game (admin).
func (a *API) ResetTerritories(ctx context.Context, token string) error {
	_, err := a.post(ctx, "/admin/territories/reset", map[string]string{"token": token})
	return err
}

// SetGameLocked ends or resumes the game (admin).
func (a *API) SetGameLocked(ctx context.Context, token string, locked bool) error {
	_, err := a.post(ctx, "/admin/game/setLocked", map[string]any{"token": token, "locked": locked})
	return err
}
