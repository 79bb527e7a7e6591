package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/zonewars/liveclient/go/internal/client"
	"github.com/zonewars/liveclient/go/internal/geometry"
	"github.com/zonewars/liveclient/go/internal/metrics"
	"github.com/zonewars/liveclient/go/internal/notify"
	"github.com/zonewars/liveclient/go/internal/snapshot"
	"github.com/zonewars/liveclient/go/internal/transport"
)

func newTestSetup() (*client.Client, *Presenter, *transport.Manager, *metrics.Metrics) {
	m := metrics.New()
	pres := NewPresenter()
	clock := clockwork.NewFakeClock()
	queue := notify.NewQueue(pres, clock)
	c := client.New(client.Identity{Token: "tok", Role: client.RoleAdmin}, client.Deps{
		Queue:   queue,
		Pres:    pres,
		Clock:   clock,
		Metrics: m,
	})
	mgr := transport.NewManager(transport.DefaultConfig(), nil, nil, func(*snapshot.Snapshot) {}, nil, clock, m)
	return c, pres, mgr, m
}

func TestStatusEndpoints(t *testing.T) {
	c, pres, mgr, m := newTestSetup()
	srv := NewServer(":0", c, pres, mgr, m)
	ts := httptest.NewServer(srv.http.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	// No snapshot delivered yet.
	resp, err = http.Get(ts.URL + "/state")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("state status before first snapshot = %d, want 503", resp.StatusCode)
	}

	c.HandleSnapshot(&snapshot.Snapshot{
		Territories: []snapshot.Territory{{
			ID:      "z1",
			Name:    "Zone 1",
			Polygon: geometry.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}},
		}},
	})

	resp, err = http.Get(ts.URL + "/state")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("state status = %d", resp.StatusCode)
	}
	var snap snapshot.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(snap.Territories) != 1 || snap.Territories[0].ID != "z1" {
		t.Errorf("state = %+v", snap)
	}

	resp, err = http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer resp.Body.Close()
	var status struct {
		Identity map[string]string `json:"identity"`
		View     View              `json:"view"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Identity["role"] != "admin" {
		t.Errorf("identity = %v", status.Identity)
	}
	if len(status.View.LabelPoints) != 1 {
		t.Errorf("label points = %v", status.View.LabelPoints)
	}
	if status.View.Rebuilds != 1 {
		t.Errorf("rebuilds = %d", status.View.Rebuilds)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}

func TestDialogEndpoints(t *testing.T) {
	c, pres, mgr, m := newTestSetup()
	srv := NewServer(":0", c, pres, mgr, m)
	ts := httptest.NewServer(srv.http.Handler)
	defer ts.Close()

	// Establish a baseline, then deliver a new claim so a dialog shows.
	c.HandleSnapshot(&snapshot.Snapshot{
		Territories: []snapshot.Territory{{ID: "z1", Name: "Zone 1", Polygon: geometry.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}}}},
		Teams:       []snapshot.Team{{ID: "red", Name: "Red"}},
	})
	c.HandleSnapshot(&snapshot.Snapshot{
		Territories:   []snapshot.Territory{{ID: "z1", Name: "Zone 1"}},
		Teams:         []snapshot.Team{{ID: "red", Name: "Red"}},
		ClaimRequests: []snapshot.ClaimRequest{{ID: "c1", TeamID: "red", TerritoryID: "z1", CreatedAtMs: 1}},
	})
	if pres.View().Dialog == nil {
		t.Fatal("expected a visible dialog")
	}

	resp, err := http.Post(ts.URL+"/dialog/actions/99", "", nil)
	if err != nil {
		t.Fatalf("bad action: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("out-of-range action status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/dialog/close", "", nil)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("close status = %d, want 204", resp.StatusCode)
	}
	if pres.View().Dialog != nil {
		t.Error("dialog should be hidden after close")
	}
}
