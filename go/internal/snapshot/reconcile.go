package snapshot

import (
	"fmt"
	"strings"
)

// Merge folds an incoming snapshot over the previously held one. The
// incoming document is authoritative for everything except territory
// geometry and neighbor lists, which incremental pushes are allowed to omit:
// when a territory known from prev arrives with an empty polygon or neighbor
// list, the last-known values are carried forward rather than treated as
// cleared. The incoming snapshot is modified in place and returned.
func Merge(prev, incoming *Snapshot) *Snapshot {
	if prev == nil || incoming == nil {
		return incoming
	}
	old := make(map[string]*Territory, len(prev.Territories))
	for i := range prev.Territories {
		old[prev.Territories[i].ID] = &prev.Territories[i]
	}
	for i := range incoming.Territories {
		t := &incoming.Territories[i]
		p, ok := old[t.ID]
		if !ok {
			continue
		}
		if len(t.Polygon) == 0 {
			t.Polygon = p.Polygon
		}
		if len(t.Neighbors) == 0 {
			t.Neighbors = p.Neighbors
		}
	}
	return incoming
}

// TerritorySignature digests which territories exist. A change means whole
// territories were added or removed and the map geometry must be rebuilt;
// equality means at most in-place mutation happened.
func TerritorySignature(s *Snapshot) string {
	ids := make([]string, 0, len(s.Territories))
	for _, t := range s.Territories {
		ids = append(ids, t.ID)
	}
	return strings.Join(ids, "|")
}

// OwnershipSignature digests per-territory ownership and lock state. It
// decides whether marker icons need recomputation without re-placing label
// points. The attack-lock part uses the raw per-territory bytes so the same
// digest works for both the admin and the team document shape.
func OwnershipSignature(s *Snapshot) string {
	attack := s.attackLocksByTerritory()
	parts := make([]string, 0, len(s.Territories))
	for _, t := range s.Territories {
		parts = append(parts, fmt.Sprintf("%s:%s:%d:%s",
			t.ID, t.OwnerTeamID, s.TerritoryLocks[t.ID], attack[t.ID]))
	}
	return strings.Join(parts, "|")
}
