// Package statusapi exposes the client's live state over HTTP: a headless
// presenter that records what a graphical surface would render, and a small
// chi server publishing it alongside health and metrics endpoints.
package statusapi

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zonewars/liveclient/go/internal/geometry"
	"github.com/zonewars/liveclient/go/internal/notify"
	"github.com/zonewars/liveclient/go/internal/snapshot"
)

// Presenter is a headless presentation surface. It keeps the latest derived
// artifacts so the HTTP layer can serve them, and implements the dialog
// surface so queued notifications become visible over the API instead of on
// screen.
type Presenter struct {
	mu            sync.Mutex
	snap          *snapshot.Snapshot
	labels        map[string]geometry.Point
	status        string
	dialog        *notify.Item
	rebuilds      int
	markerPasses  int
	lastTerritory string
}

// NewPresenter returns an empty presenter.
func NewPresenter() *Presenter {
	return &Presenter{labels: make(map[string]geometry.Point)}
}

func (p *Presenter) RebuildMap(s *snapshot.Snapshot, labels map[string]geometry.Point) {
	p.mu.Lock()
	p.snap = s
	p.labels = labels
	p.rebuilds++
	p.mu.Unlock()
	log.Debug().Int("territories", len(s.Territories)).Msg("map rebuilt")
}

func (p *Presenter) RefreshMarkers(s *snapshot.Snapshot) {
	p.mu.Lock()
	p.snap = s
	p.markerPasses++
	p.mu.Unlock()
	log.Debug().Msg("markers refreshed")
}

func (p *Presenter) RefreshPanels(s *snapshot.Snapshot) {
	p.mu.Lock()
	p.snap = s
	p.mu.Unlock()
}

func (p *Presenter) SetStatus(text string) {
	p.mu.Lock()
	p.status = text
	p.mu.Unlock()
}

// OpenTerritory records the targeted-refresh request. A graphical surface
// would fetch the detail and open the dialog; here the id is surfaced via
// the status endpoint for the operator to act on.
func (p *Presenter) OpenTerritory(territoryID string) {
	p.mu.Lock()
	p.lastTerritory = territoryID
	p.mu.Unlock()
	log.Info().Str("territory", territoryID).Msg("territory detail requested")
}

// Show implements notify.Surface.
func (p *Presenter) Show(item notify.Item) {
	p.mu.Lock()
	p.dialog = &item
	p.mu.Unlock()
	log.Info().Str("title", item.Title).Msg("dialog shown")
}

// Hide implements notify.Surface.
func (p *Presenter) Hide() {
	p.mu.Lock()
	p.dialog = nil
	p.mu.Unlock()
}

// View is the presenter's state as served by the status endpoint.
type View struct {
	Status        string                    `json:"status"`
	Dialog        *notify.Item              `json:"dialog,omitempty"`
	LabelPoints   map[string]geometry.Point `json:"labelPoints"`
	Rebuilds      int                       `json:"mapRebuilds"`
	MarkerPasses  int                       `json:"markerRefreshes"`
	LastTerritory string                    `json:"lastTerritoryOpened,omitempty"`
}

// View returns a copy of the current presentation state.
func (p *Presenter) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	labels := make(map[string]geometry.Point, len(p.labels))
	for k, v := range p.labels {
		labels[k] = v
	}
	var dialog *notify.Item
	if p.dialog != nil {
		d := *p.dialog
		dialog = &d
	}
	return View{
		Status:        p.status,
		Dialog:        dialog,
		LabelPoints:   labels,
		Rebuilds:      p.rebuilds,
		MarkerPasses:  p.markerPasses,
		LastTerritory: p.lastTerritory,
	}
}

// Snapshot returns the last snapshot handed to the presenter.
func (p *Presenter) Snapshot() *snapshot.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}
