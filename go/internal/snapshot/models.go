package snapshot

import (
	"encoding/json"
	"sort"

	"github.com/zonewars/liveclient/go/internal/geometry"
)

// RequestStatus is the lifecycle state of a claim or verification request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Territory is a claimable zone. Polygon and Neighbors are static and may be
// omitted by incremental server pushes; the reconciler carries them forward.
type Territory struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Polygon      geometry.Ring `json:"polygon,omitempty"`
	Neighbors    []string      `json:"neighbors,omitempty"`
	OwnerTeamID  string        `json:"ownerTeamId,omitempty"`
	CapturedAtMs int64         `json:"capturedAtMs,omitempty"`
}

// Team identifies a playing team.
type Team struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ClaimRequest is a team's submission to take an unowned territory, pending
// admin resolution. Requests are never deleted, only filtered by status.
type ClaimRequest struct {
	ID          string        `json:"id"`
	TeamID      string        `json:"teamId"`
	TerritoryID string        `json:"territoryId"`
	Status      RequestStatus `json:"status,omitempty"`
	CreatedAtMs int64         `json:"createdAtMs"`
}

// EffectiveStatus treats an absent status field as pending.
func (r ClaimRequest) EffectiveStatus() RequestStatus {
	if r.Status == "" {
		return StatusPending
	}
	return r.Status
}

// ClaimVerifyRequest is the GPS-location pre-check gating a claim attempt.
// An approval is only valid until ExpiresAtMs.
type ClaimVerifyRequest struct {
	ID           string        `json:"id"`
	TeamID       string        `json:"teamId"`
	TerritoryID  string        `json:"territoryId"`
	Status       RequestStatus `json:"status,omitempty"`
	CreatedAtMs  int64         `json:"createdAtMs"`
	ResolvedAtMs int64         `json:"resolvedAtMs,omitempty"`
	ExpiresAtMs  int64         `json:"expiresAtMs,omitempty"`
}

// EffectiveStatus treats an absent status field as pending.
func (r ClaimVerifyRequest) EffectiveStatus() RequestStatus {
	if r.Status == "" {
		return StatusPending
	}
	return r.Status
}

// ActiveApproval reports whether the request is approved and its validity
// window has not yet expired.
func (r ClaimVerifyRequest) ActiveApproval(nowMs int64) bool {
	return r.EffectiveStatus() == StatusApproved && r.ExpiresAtMs > nowMs
}

// Cooldown blocks a team's claim attempts until UntilMs.
type Cooldown struct {
	UntilMs int64  `json:"untilMs"`
	Reason  string `json:"reason"`
}

// GameConfig carries the server-side game switches the client reads.
type GameConfig struct {
	GPSEnabled bool   `json:"gpsEnabled"`
	MapMode    string `json:"mapMode"`
	GameLocked bool   `json:"gameLocked"`
}

// Event is one entry of the append-only event log.
type Event struct {
	Kind        string `json:"kind"`
	TerritoryID string `json:"territoryId,omitempty"`
	TeamID      string `json:"teamId,omitempty"`
	FromTeamID  string `json:"fromTeamId,omitempty"`
	ToTeamID    string `json:"toTeamId,omitempty"`
	Result      string `json:"result,omitempty"`
	TsMs        int64  `json:"tsMs"`
}

// TeamStats is the per-team scoring aggregate.
type TeamStats struct {
	Captures    int   `json:"captures"`
	TotalTimeMs int64 `json:"totalTimeMs"`
}

// Snapshot is the full server-authoritative state document, delivered
// wholesale on every push or poll. AttackLocks is kept raw because its shape
// depends on the viewer role; see AdminAttackLocks and TeamAttackLocks.
type Snapshot struct {
	Territories         []Territory          `json:"territories"`
	Teams               []Team               `json:"teams"`
	ClaimRequests       []ClaimRequest       `json:"claimRequests"`
	ClaimVerifyRequests []ClaimVerifyRequest `json:"claimVerifyRequests"`
	Cooldown            *Cooldown            `json:"cooldown,omitempty"`
	Config              GameConfig           `json:"config"`
	TerritoryLocks      map[string]int64     `json:"territoryLocks,omitempty"`
	AttackLocks         json.RawMessage      `json:"attackLocks,omitempty"`
	EventLog            []Event              `json:"eventLog,omitempty"`
	TeamStats           map[string]TeamStats `json:"teamStats,omitempty"`
}

// TerritoryByID returns the territory with the given id, or nil.
func (s *Snapshot) TerritoryByID(id string) *Territory {
	for i := range s.Territories {
		if s.Territories[i].ID == id {
			return &s.Territories[i]
		}
	}
	return nil
}

// TeamByID returns the team with the given id, or nil.
func (s *Snapshot) TeamByID(id string) *Team {
	for i := range s.Teams {
		if s.Teams[i].ID == id {
			return &s.Teams[i]
		}
	}
	return nil
}

// AdminAttackLocks decodes the admin-shaped attack locks:
// territory id -> team id -> expiry ms.
func (s *Snapshot) AdminAttackLocks() (map[string]map[string]int64, error) {
	if len(s.AttackLocks) == 0 {
		return map[string]map[string]int64{}, nil
	}
	var out map[string]map[string]int64
	if err := json.Unmarshal(s.AttackLocks, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TeamAttackLocks decodes the team-shaped attack locks, already scoped to
// the caller's own team: territory id -> expiry ms.
func (s *Snapshot) TeamAttackLocks() (map[string]int64, error) {
	if len(s.AttackLocks) == 0 {
		return map[string]int64{}, nil
	}
	var out map[string]int64
	if err := json.Unmarshal(s.AttackLocks, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// attackLocksByTerritory splits the raw attack-lock document by its top-level
// key, which is the territory id in both role shapes. Values stay raw so
// signatures work without knowing the viewer role.
func (s *Snapshot) attackLocksByTerritory() map[string]json.RawMessage {
	if len(s.AttackLocks) == 0 {
		return nil
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(s.AttackLocks, &out); err != nil {
		return nil
	}
	return out
}

// PendingClaims returns claim requests still awaiting resolution, newest
// first.
func (s *Snapshot) PendingClaims() []ClaimRequest {
	var out []ClaimRequest
	for _, r := range s.ClaimRequests {
		if r.EffectiveStatus() == StatusPending {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAtMs > out[j].CreatedAtMs
	})
	return out
}

// ActionableVerifies returns verification requests an admin still has to act
// on: pending ones, plus approved ones waiting for a task assignment.
// Newest first.
func (s *Snapshot) ActionableVerifies() []ClaimVerifyRequest {
	var out []ClaimVerifyRequest
	for _, r := range s.ClaimVerifyRequests {
		switch r.EffectiveStatus() {
		case StatusPending, StatusApproved:
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAtMs > out[j].CreatedAtMs
	})
	return out
}
