package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/zonewars/liveclient/go/internal/client"
	"github.com/zonewars/liveclient/go/internal/leaderboard"
	"github.com/zonewars/liveclient/go/internal/metrics"
	"github.com/zonewars/liveclient/go/internal/transport"
)

// Server publishes the live client state over HTTP.
type Server struct {
	addr string
	http *http.Server
}

// NewServer builds the status server around a running client.
func NewServer(addr string, c *client.Client, p *Presenter, mgr *transport.Manager, m *metrics.Metrics) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"identity":  map[string]string{"role": c.Identity().Role, "teamId": c.Identity().TeamID},
			"transport": mgr.Status(),
			"view":      p.View(),
		})
	})

	r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		snap := c.Snapshot()
		if snap == nil {
			http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, snap)
	})

	r.Get("/leaderboard", func(w http.ResponseWriter, _ *http.Request) {
		snap := c.Snapshot()
		if snap == nil {
			http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, leaderboard.Compute(snap, time.Now()))
	})

	// Dialog controls let a headless operator drive the single dialog slot:
	// close it, or push one of its action buttons by index.
	r.Post("/dialog/close", func(w http.ResponseWriter, _ *http.Request) {
		c.CloseDialog()
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/dialog/actions/{index}", func(w http.ResponseWriter, req *http.Request) {
		idx, err := strconv.Atoi(chi.URLParam(req, "index"))
		if err != nil {
			http.Error(w, "bad action index", http.StatusBadRequest)
			return
		}
		view := p.View()
		if view.Dialog == nil || idx < 0 || idx >= len(view.Dialog.Actions) {
			http.Error(w, "no such action", http.StatusNotFound)
			return
		}
		action := view.Dialog.Actions[idx]
		if action.Do != nil {
			action.Do()
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// Mutation endpoints forward to the game server through the client so
	// the operator can act from a headless deployment. Server rejections come
	// back verbatim.
	r.Post("/territory/{id}/verify", func(w http.ResponseWriter, req *http.Request) {
		actionResult(w, c.VerifyLocation(req.Context(), chi.URLParam(req, "id")))
	})
	r.Post("/territory/{id}/claim", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Answer string `json:"answer"`
		}
		if !decode(w, req, &body) {
			return
		}
		actionResult(w, c.SubmitClaimAnswer(req.Context(), chi.URLParam(req, "id"), body.Answer))
	})
	r.Post("/admin/claims/{id}/resolve", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Approve bool `json:"approve"`
			Correct bool `json:"correct"`
		}
		if !decode(w, req, &body) {
			return
		}
		actionResult(w, c.ResolveClaim(req.Context(), chi.URLParam(req, "id"), body.Approve, body.Correct))
	})
	r.Post("/admin/verifies/{id}/resolve", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			OK bool `json:"ok"`
		}
		if !decode(w, req, &body) {
			return
		}
		actionResult(w, c.ResolveClaimVerify(req.Context(), chi.URLParam(req, "id"), body.OK))
	})
	r.Post("/admin/verifies/{id}/task", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Task string `json:"task"`
		}
		if !decode(w, req, &body) {
			return
		}
		actionResult(w, c.AssignTask(req.Context(), chi.URLParam(req, "id"), body.Task))
	})
	r.Post("/admin/territory/{id}/owner", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			OwnerTeamID *string `json:"ownerTeamId"`
		}
		if !decode(w, req, &body) {
			return
		}
		actionResult(w, c.SetOwner(req.Context(), chi.URLParam(req, "id"), body.OwnerTeamID))
	})
	r.Post("/admin/territories/reset", func(w http.ResponseWriter, req *http.Request) {
		actionResult(w, c.ResetTerritories(req.Context()))
	})
	r.Post("/admin/game/lock", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Locked bool `json:"locked"`
		}
		if !decode(w, req, &body) {
			return
		}
		actionResult(w, c.SetGameLocked(req.Context(), body.Locked))
	})

	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	}

	handler := cors.AllowAll().Handler(r)
	return &Server{
		addr: addr,
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("status server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func decode(w http.ResponseWriter, req *http.Request, v any) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		http.Error(w, "bad request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func actionResult(w http.ResponseWriter, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("status response encode failed")
	}
}
