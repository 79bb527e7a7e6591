package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/zonewars/liveclient/go/internal/geometry"
	"github.com/zonewars/liveclient/go/internal/notify"
	"github.com/zonewars/liveclient/go/internal/snapshot"
	"github.com/zonewars/liveclient/go/internal/transport"
)

type fakePresenter struct {
	mu           sync.Mutex
	rebuilds     int
	markerPasses int
	panelPasses  int
	labels       map[string]geometry.Point
	status       string
	opened       []string
}

func (p *fakePresenter) RebuildMap(s *snapshot.Snapshot, labels map[string]geometry.Point) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rebuilds++
	p.labels = labels
}

func (p *fakePresenter) RefreshMarkers(*snapshot.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markerPasses++
}

func (p *fakePresenter) RefreshPanels(*snapshot.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panelPasses++
}

func (p *fakePresenter) SetStatus(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = text
}

func (p *fakePresenter) OpenTerritory(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, id)
}

type fakeSurface struct {
	mu     sync.Mutex
	shown  []notify.Item
	hidden int
}

func (f *fakeSurface) Show(item notify.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, item)
}

func (f *fakeSurface) Hide() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden++
}

func (f *fakeSurface) shownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shown)
}

func baseSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Territories: []snapshot.Territory{
			{
				ID:      "z1",
				Name:    "Zone 1",
				Polygon: geometry.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}},
			},
		},
		Teams: []snapshot.Team{{ID: "red", Name: "Red", Color: "#f00"}},
	}
}

func newTestClient(role string, clock clockwork.Clock) (*Client, *fakePresenter, *fakeSurface) {
	pres := &fakePresenter{}
	surface := &fakeSurface{}
	queue := notify.NewQueue(surface, clock)
	c := New(Identity{Token: "tok", Role: role, TeamID: "red"}, Deps{
		Queue:   queue,
		Pres:    pres,
		Clock:   clock,
		Locator: LocatorFunc(func(context.Context) (geometry.Point, error) { return geometry.Point{}, errors.New("no fix") }),
	})
	return c, pres, surface
}

func TestFirstSnapshotRebuildsWithoutNotifying(t *testing.T) {
	c, pres, surface := newTestClient(RoleAdmin, clockwork.NewFakeClock())

	snap := baseSnapshot()
	// Already-pending work must not fire on the first cycle.
	snap.ClaimRequests = []snapshot.ClaimRequest{{ID: "c0", TeamID: "red", TerritoryID: "z1", CreatedAtMs: 1}}
	c.HandleSnapshot(snap)

	if pres.rebuilds != 1 {
		t.Fatalf("rebuilds = %d, want 1", pres.rebuilds)
	}
	pt, ok := pres.labels["z1"]
	if !ok {
		t.Fatal("no label point for z1")
	}
	if !geometry.PointInPolygon(pt, snap.Territories[0].Polygon) {
		t.Errorf("label point %v is outside z1", pt)
	}
	if surface.shownCount() != 0 {
		t.Errorf("dialogs shown on first cycle: %v", surface.shown)
	}
}

func TestNewClaimTriggersExactlyOneNotification(t *testing.T) {
	c, pres, surface := newTestClient(RoleAdmin, clockwork.NewFakeClock())
	c.HandleSnapshot(baseSnapshot())

	next := baseSnapshot()
	// Geometry omitted: an incremental push relies on the reconciler.
	next.Territories[0].Polygon = nil
	next.ClaimRequests = []snapshot.ClaimRequest{{ID: "c1", TeamID: "red", TerritoryID: "z1", CreatedAtMs: 100}}
	c.HandleSnapshot(next)

	if surface.shownCount() != 1 {
		t.Fatalf("shown = %d dialogs, want 1", surface.shownCount())
	}
	if got := surface.shown[0].Title; got != "New claim request" {
		t.Errorf("dialog title = %q", got)
	}
	if !strings.Contains(surface.shown[0].Body, "Red") {
		t.Errorf("dialog body missing team name: %q", surface.shown[0].Body)
	}
	if pres.rebuilds != 1 {
		t.Errorf("rebuilds = %d, want 1 (carried-forward geometry is not a set change)", pres.rebuilds)
	}

	// The same claim on the next cycle stays silent.
	again := baseSnapshot()
	again.ClaimRequests = []snapshot.ClaimRequest{{ID: "c1", TeamID: "red", TerritoryID: "z1", CreatedAtMs: 100}}
	c.HandleSnapshot(again)
	if surface.shownCount() != 1 {
		t.Errorf("shown = %d dialogs after repeat, want still 1", surface.shownCount())
	}

	if got := c.StatusText(); !strings.Contains(got, "1 claims waiting") {
		t.Errorf("status = %q", got)
	}
}

func TestOwnershipChangeRefreshesMarkersOnly(t *testing.T) {
	c, pres, _ := newTestClient(RoleAdmin, clockwork.NewFakeClock())
	c.HandleSnapshot(baseSnapshot())

	next := baseSnapshot()
	next.Territories[0].OwnerTeamID = "red"
	next.Territories[0].CapturedAtMs = 5000
	c.HandleSnapshot(next)

	if pres.rebuilds != 1 {
		t.Errorf("rebuilds = %d, want 1", pres.rebuilds)
	}
	if pres.markerPasses != 1 {
		t.Errorf("marker passes = %d, want 1", pres.markerPasses)
	}

	// Unchanged snapshot: panels only.
	c.HandleSnapshot(next)
	if pres.markerPasses != 1 {
		t.Errorf("marker passes = %d after no-op snapshot, want 1", pres.markerPasses)
	}
	if pres.panelPasses != 3 {
		t.Errorf("panel passes = %d, want one per snapshot", pres.panelPasses)
	}
}

func TestTerritorySetChangeRebuilds(t *testing.T) {
	c, pres, _ := newTestClient(RoleAdmin, clockwork.NewFakeClock())
	c.HandleSnapshot(baseSnapshot())

	next := baseSnapshot()
	next.Territories = append(next.Territories, snapshot.Territory{
		ID:      "z2",
		Name:    "Zone 2",
		Polygon: geometry.Ring{{0, 10}, {0, 20}, {10, 20}, {10, 10}},
	})
	c.HandleSnapshot(next)

	if pres.rebuilds != 2 {
		t.Errorf("rebuilds = %d, want 2", pres.rebuilds)
	}
	if len(pres.labels) != 2 {
		t.Errorf("labels = %v, want both zones", pres.labels)
	}
}

func TestTeamCooldownDialogOnce(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))
	c, _, surface := newTestClient(RoleTeam, clock)
	c.HandleSnapshot(baseSnapshot())

	withCooldown := func() *snapshot.Snapshot {
		s := baseSnapshot()
		s.Cooldown = &snapshot.Cooldown{UntilMs: 1_060_000}
		return s
	}
	c.HandleSnapshot(withCooldown())
	if surface.shownCount() != 1 {
		t.Fatalf("shown = %d dialogs, want 1", surface.shownCount())
	}
	if got := surface.shown[0].Title; got != "Wrong answer" {
		t.Errorf("dialog title = %q", got)
	}
	if got := c.StatusText(); got != "wrong answer - blocked 01:00" {
		t.Errorf("status = %q", got)
	}

	// The same cooldown must not re-alert.
	c.HandleSnapshot(withCooldown())
	if surface.shownCount() != 1 {
		t.Errorf("shown = %d dialogs after repeat, want still 1", surface.shownCount())
	}
}

func TestTeamApprovalOpensTerritory(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))
	c, pres, _ := newTestClient(RoleTeam, clock)
	c.HandleSnapshot(baseSnapshot())

	next := baseSnapshot()
	next.ClaimVerifyRequests = []snapshot.ClaimVerifyRequest{{
		ID:           "v1",
		TeamID:       "red",
		TerritoryID:  "z1",
		Status:       snapshot.StatusApproved,
		ResolvedAtMs: 999_000,
		ExpiresAtMs:  2_000_000,
	}}
	c.HandleSnapshot(next)

	if len(pres.opened) != 1 || pres.opened[0] != "z1" {
		t.Fatalf("opened = %v, want [z1]", pres.opened)
	}

	// Seen approvals never re-open.
	c.HandleSnapshot(next)
	if len(pres.opened) != 1 {
		t.Errorf("opened = %v after repeat, want one entry", pres.opened)
	}
}

func TestTeamActiveDialogRefreshOnApproval(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))
	c, pres, _ := newTestClient(RoleTeam, clock)
	c.HandleSnapshot(baseSnapshot())

	// The team has z1's dialog open, waiting on a verification.
	c.SetActiveTerritory("z1", true)

	next := baseSnapshot()
	next.ClaimVerifyRequests = []snapshot.ClaimVerifyRequest{{
		ID:          "v1",
		TeamID:      "red",
		TerritoryID: "z1",
		Status:      snapshot.StatusApproved,
		ExpiresAtMs: 2_000_000,
	}}
	c.HandleSnapshot(next)

	if len(pres.opened) != 1 || pres.opened[0] != "z1" {
		t.Errorf("opened = %v, want [z1]", pres.opened)
	}
}

func TestVerifyLocationGate(t *testing.T) {
	var submitted int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/territory/claimVerifyRequest" {
			submitted++
			fmt.Fprint(w, `{}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	pres := &fakePresenter{}
	surface := &fakeSurface{}
	clock := clockwork.NewFakeClock()
	pos := geometry.Point{5, 5}
	var locErr error
	c := New(Identity{Token: "tok", Role: RoleTeam, TeamID: "red"}, Deps{
		API:   NewAPI(srv.URL, nil),
		Queue: notify.NewQueue(surface, clock),
		Pres:  pres,
		Clock: clock,
		Locator: LocatorFunc(func(context.Context) (geometry.Point, error) {
			return pos, locErr
		}),
	})
	c.HandleSnapshot(baseSnapshot())

	if err := c.VerifyLocation(context.Background(), "z1"); err != nil {
		t.Fatalf("inside position should submit: %v", err)
	}
	if submitted != 1 {
		t.Fatalf("submitted = %d, want 1", submitted)
	}

	pos = geometry.Point{50, 50}
	err := c.VerifyLocation(context.Background(), "z1")
	var merr *MutationError
	if !errors.As(err, &merr) {
		t.Fatalf("outside position error = %v, want MutationError", err)
	}
	if submitted != 1 {
		t.Errorf("outside position must not reach the server, submitted = %d", submitted)
	}

	locErr = errors.New("permission denied")
	err = c.VerifyLocation(context.Background(), "z1")
	var gerr *GeolocationError
	if !errors.As(err, &gerr) {
		t.Fatalf("failed fix error = %v, want GeolocationError", err)
	}

	if err := c.VerifyLocation(context.Background(), "missing"); err == nil {
		t.Error("unknown territory should fail")
	}
}

func TestDetectorSurvivesTransportFailover(t *testing.T) {
	c, pres, surface := newTestClient(RoleAdmin, clockwork.NewFakeClock())
	c.HandleSnapshot(baseSnapshot())

	next := baseSnapshot()
	next.ClaimRequests = []snapshot.ClaimRequest{{ID: "c1", TeamID: "red", TerritoryID: "z1", CreatedAtMs: 100}}
	c.HandleSnapshot(next)
	if surface.shownCount() != 1 {
		t.Fatalf("shown = %d dialogs, want 1", surface.shownCount())
	}

	// A channel failover must not re-fire alerts for already-seen work.
	c.HandleTransportState(transport.StatePolling)
	if !strings.HasPrefix(pres.status, "offline - polling mode") {
		t.Errorf("status = %q, want degraded prefix", pres.status)
	}

	again := baseSnapshot()
	again.ClaimRequests = []snapshot.ClaimRequest{{ID: "c1", TeamID: "red", TerritoryID: "z1", CreatedAtMs: 100}}
	c.HandleSnapshot(again)
	if surface.shownCount() != 1 {
		t.Errorf("shown = %d dialogs after failover redelivery, want still 1", surface.shownCount())
	}

	c.HandleTransportState(transport.StateStreaming)
	if !strings.HasPrefix(pres.status, "online") {
		t.Errorf("status = %q, want online prefix", pres.status)
	}
}

func TestFormatCountdown(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{0, "00:00"},
		{-5, "00:00"},
		{1, "00:01"},
		{60_000, "01:00"},
		{61_001, "01:02"},
		{3_599_000, "59:59"},
	}
	for _, tc := range cases {
		if got := formatCountdown(tc.ms); got != tc.want {
			t.Errorf("formatCountdown(%d) = %q, want %q", tc.ms, got, tc.want)
		}
	}
}
