// Package client owns the live view of the game: it reconciles incoming
// snapshots, decides what re-derivation the presentation layer needs, scans
// for newly actionable work, and drives the notification queue. One Client
// exists per session; its lifecycle is init on login and teardown on logout.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/zonewars/liveclient/go/internal/geometry"
	"github.com/zonewars/liveclient/go/internal/metrics"
	"github.com/zonewars/liveclient/go/internal/notify"
	"github.com/zonewars/liveclient/go/internal/snapshot"
	"github.com/zonewars/liveclient/go/internal/transport"
)

// Role names the viewer role the session was created with.
const (
	RoleAdmin = "admin"
	RoleTeam  = "team"
)

// Identity is the logged-in viewer.
type Identity struct {
	Token     string
	Role      string
	TeamID    string
	TeamName  string
	TeamColor string
}

// Presenter consumes "snapshot ready" outcomes. Implementations render a
// map, a TUI, or just a status endpoint; the client only tells them how
// stale their derived artifacts are.
type Presenter interface {
	// RebuildMap is invoked when territories were added or removed: all
	// geometry, including the label points supplied here, must be rebuilt.
	RebuildMap(s *snapshot.Snapshot, labels map[string]geometry.Point)
	// RefreshMarkers is invoked when only ownership or lock state changed:
	// marker styling needs recomputation, label points do not.
	RefreshMarkers(s *snapshot.Snapshot)
	// RefreshPanels is invoked on every reconciled snapshot for the cheap
	// surfaces: scoreboards, event log, request lists.
	RefreshPanels(s *snapshot.Snapshot)
	// SetStatus publishes the one-line connection/game status.
	SetStatus(text string)
	// OpenTerritory asks for the territory detail to be (re)fetched and its
	// dialog opened. Used for targeted refreshes on the team client.
	OpenTerritory(territoryID string)
}

// Client is the owned context object holding all live client state.
type Client struct {
	id      Identity
	api     *API
	fetcher transport.Fetcher
	queue   *notify.Queue
	pres    Presenter
	locator Locator
	clock   clockwork.Clock
	metrics *metrics.Metrics

	mu                   sync.Mutex
	data                 *snapshot.Snapshot
	territorySig         string
	ownerSig             string
	labels               map[string]geometry.Point
	claimDetector        *notify.Detector
	verifyDetector       *notify.Detector
	lastSeenResolvedMs   int64
	lastCooldownUntilMs  int64
	activeTerritoryID    string
	activeVerifyPending  bool
	degraded             bool
	statusText           string
}

// Deps carries the collaborators a Client needs.
type Deps struct {
	API     *API
	Fetcher transport.Fetcher
	Queue   *notify.Queue
	Pres    Presenter
	Locator Locator
	Clock   clockwork.Clock
	Metrics *metrics.Metrics
}

// New creates a client for the given identity.
func New(id Identity, deps Deps) *Client {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		id:             id,
		api:            deps.API,
		fetcher:        deps.Fetcher,
		queue:          deps.Queue,
		pres:           deps.Pres,
		locator:        deps.Locator,
		clock:          clock,
		metrics:        deps.Metrics,
		labels:         make(map[string]geometry.Point),
		claimDetector:  notify.NewDetector(notify.KindClaim),
		verifyDetector: notify.NewDetector(notify.KindClaimVerify),
	}
}

// Identity returns the viewer identity.
func (c *Client) Identity() Identity { return c.id }

// Snapshot returns the last reconciled snapshot, or nil before the first
// delivery.
func (c *Client) Snapshot() *snapshot.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// LabelPoints returns the current territory label placements.
func (c *Client) LabelPoints() map[string]geometry.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]geometry.Point, len(c.labels))
	for k, v := range c.labels {
		out[k] = v
	}
	return out
}

// StatusText returns the current one-line status.
func (c *Client) StatusText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusText
}

// SetActiveTerritory records which territory dialog the viewer has open and
// whether it is waiting on a location verification. The targeted-refresh
// rule keys off this.
func (c *Client) SetActiveTerritory(territoryID string, verifyPending bool) {
	c.mu.Lock()
	c.activeTerritoryID = territoryID
	c.activeVerifyPending = verifyPending
	c.mu.Unlock()
}

// CloseDialog closes the visible dialog and clears the active-territory
// tracking. The queue drains the next notification after its grace delay.
func (c *Client) CloseDialog() {
	c.mu.Lock()
	c.activeTerritoryID = ""
	c.activeVerifyPending = false
	c.mu.Unlock()
	c.queue.Close()
}

// HandleTransportState reacts to channel failover so the status line can
// indicate degraded mode. Transport errors themselves never surface here;
// the manager recovers them internally.
func (c *Client) HandleTransportState(st transport.State) {
	c.mu.Lock()
	c.degraded = st == transport.StatePolling
	text := c.statusLineLocked()
	c.statusText = text
	c.mu.Unlock()
	c.pres.SetStatus(text)
}

// snapshotEffects is everything a reconciliation pass decided to do, applied
// after the state lock is released.
type snapshotEffects struct {
	rebuild        bool
	refreshMarkers bool
	labels         map[string]geometry.Point
	items          []notify.Item
	openTerritory  string
	status         string
	snap           *snapshot.Snapshot
}

// HandleSnapshot merges one delivered snapshot and fans out the derived
// work. Safe to call from the transport goroutine.
func (c *Client) HandleSnapshot(incoming *snapshot.Snapshot) {
	if incoming == nil {
		return
	}
	c.mu.Lock()
	eff := c.reconcileLocked(incoming)
	c.mu.Unlock()

	if eff.rebuild {
		c.pres.RebuildMap(eff.snap, eff.labels)
	} else if eff.refreshMarkers {
		c.pres.RefreshMarkers(eff.snap)
	}
	c.pres.RefreshPanels(eff.snap)
	c.pres.SetStatus(eff.status)

	for _, item := range eff.items {
		c.queue.Enqueue(item)
	}
	if len(eff.items) > 0 {
		c.queue.TryDrain()
	}
	if eff.openTerritory != "" {
		c.pres.OpenTerritory(eff.openTerritory)
	}
}

func (c *Client) reconcileLocked(incoming *snapshot.Snapshot) snapshotEffects {
	first := c.data == nil
	merged := snapshot.Merge(c.data, incoming)
	c.data = merged

	newSig := snapshot.TerritorySignature(merged)
	sigChanged := !first && c.territorySig != newSig
	c.territorySig = newSig

	eff := snapshotEffects{snap: merged}

	if first || sigChanged {
		eff.rebuild = true
		c.labels = computeLabels(merged, c.metrics)
		eff.labels = c.labels
		c.ownerSig = snapshot.OwnershipSignature(merged)
	} else {
		newOwnerSig := snapshot.OwnershipSignature(merged)
		if newOwnerSig != c.ownerSig {
			c.ownerSig = newOwnerSig
			eff.refreshMarkers = true
		}
	}

	switch c.id.Role {
	case RoleAdmin:
		eff.items = c.scanAdminWorkLocked(merged)
	case RoleTeam:
		if id := c.teamTargetedRefreshLocked(merged); id != "" {
			eff.openTerritory = id
		}
		if item, ok := c.cooldownAlertLocked(merged); ok {
			eff.items = append(eff.items, item)
		}
	}

	eff.status = c.statusLineLocked()
	c.statusText = eff.status
	return eff
}

// computeLabels places one label point per territory, seeded by the
// territory id so placement is stable across reloads.
func computeLabels(s *snapshot.Snapshot, m *metrics.Metrics) map[string]geometry.Point {
	labels := make(map[string]geometry.Point, len(s.Territories))
	for _, t := range s.Territories {
		if pt, ok := geometry.BestLabelPoint(t.Polygon, t.ID); ok {
			labels[t.ID] = pt
			m.LabelPointComputed()
		}
	}
	return labels
}

// scanAdminWorkLocked diffs the pending request sets against the previous
// cycle and builds one notification per newly appeared request. The first
// observed snapshot only initializes the baseline. An id whose request has
// meanwhile vanished from the document is treated as already resolved and
// skipped, so the queue can always drain.
func (c *Client) scanAdminWorkLocked(s *snapshot.Snapshot) []notify.Item {
	var items []notify.Item

	verifies := s.ActionableVerifies()
	verifyIDs := make([]string, 0, len(verifies))
	byVerifyID := make(map[string]snapshot.ClaimVerifyRequest, len(verifies))
	for _, r := range verifies {
		verifyIDs = append(verifyIDs, r.ID)
		byVerifyID[r.ID] = r
	}
	for _, id := range c.verifyDetector.Observe(verifyIDs) {
		r, ok := byVerifyID[id]
		if !ok {
			continue
		}
		items = append(items, c.verifyItem(s, r))
		c.metrics.NotificationEnqueued(string(notify.KindClaimVerify))
	}

	claims := s.PendingClaims()
	claimIDs := make([]string, 0, len(claims))
	byClaimID := make(map[string]snapshot.ClaimRequest, len(claims))
	for _, r := range claims {
		claimIDs = append(claimIDs, r.ID)
		byClaimID[r.ID] = r
	}
	for _, id := range c.claimDetector.Observe(claimIDs) {
		r, ok := byClaimID[id]
		if !ok {
			continue
		}
		items = append(items, c.claimItem(s, r))
		c.metrics.NotificationEnqueued(string(notify.KindClaim))
	}

	return items
}

func (c *Client) verifyItem(s *snapshot.Snapshot, r snapshot.ClaimVerifyRequest) notify.Item {
	team := teamName(s, r.TeamID)
	zone := territoryLabel(s, r.TerritoryID)
	approved := r.EffectiveStatus() == snapshot.StatusApproved

	title := "Location verification request"
	primary := "Review"
	body := fmt.Sprintf("%s -> territory %s", team, zone)
	if approved {
		title = "Task assignment"
		primary = "Assign task"
		body += "\nWaiting for a task to be assigned."
	}

	reqID := r.ID
	return notify.Item{
		ID:    uuid.New().String(),
		Title: title,
		Body:  body,
		Actions: []notify.Action{
			{Label: "Close", Do: c.CloseDialog},
			{Label: primary, Kind: "primary", Do: func() {
				if approved {
					c.pres.OpenTerritory(r.TerritoryID)
					return
				}
				c.resolveVerify(reqID, true)
			}},
		},
	}
}

func (c *Client) claimItem(s *snapshot.Snapshot, r snapshot.ClaimRequest) notify.Item {
	reqID := r.ID
	return notify.Item{
		ID:    uuid.New().String(),
		Title: "New claim request",
		Body:  fmt.Sprintf("%s -> territory %s", teamName(s, r.TeamID), territoryLabel(s, r.TerritoryID)),
		Actions: []notify.Action{
			{Label: "Close", Do: c.CloseDialog},
			{Label: "Review", Kind: "primary", Do: func() { c.resolveClaim(reqID, true, true) }},
		},
	}
}

// teamTargetedRefreshLocked implements the team-side rule: when the latest
// approved-and-unexpired verification is newer than anything seen before, or
// when the territory dialog the team has open just got its verification
// approved, that territory's detail is re-fetched and its dialog re-opened.
// This is a targeted refresh, not a queued notification.
func (c *Client) teamTargetedRefreshLocked(s *snapshot.Snapshot) string {
	nowMs := c.clock.Now().UnixMilli()

	var latest *snapshot.ClaimVerifyRequest
	for i := range s.ClaimVerifyRequests {
		r := &s.ClaimVerifyRequests[i]
		if !r.ActiveApproval(nowMs) {
			continue
		}
		if latest == nil || r.ResolvedAtMs > latest.ResolvedAtMs {
			latest = r
		}
	}
	if latest != nil && latest.ResolvedAtMs > c.lastSeenResolvedMs {
		c.lastSeenResolvedMs = latest.ResolvedAtMs
		if latest.TerritoryID != "" {
			return latest.TerritoryID
		}
	}

	if c.activeTerritoryID != "" && c.activeVerifyPending {
		for _, r := range s.ClaimVerifyRequests {
			if r.TerritoryID == c.activeTerritoryID && r.ActiveApproval(nowMs) {
				return c.activeTerritoryID
			}
		}
	}
	return ""
}

// cooldownAlertLocked surfaces a newly imposed answer cooldown once.
func (c *Client) cooldownAlertLocked(s *snapshot.Snapshot) (notify.Item, bool) {
	nowMs := c.clock.Now().UnixMilli()
	var until int64
	reason := "Wrong answer"
	if s.Cooldown != nil {
		until = s.Cooldown.UntilMs
		if s.Cooldown.Reason != "" {
			reason = s.Cooldown.Reason
		}
	}
	active := until > nowMs
	fresh := active && (c.lastCooldownUntilMs == 0 || until > c.lastCooldownUntilMs)
	c.lastCooldownUntilMs = until

	if !fresh {
		return notify.Item{}, false
	}
	left := until - nowMs
	return notify.Item{
		ID:    uuid.New().String(),
		Title: "Wrong answer",
		Body:  fmt.Sprintf("%s\nTry again in %s.", reason, formatCountdown(left)),
		Actions: []notify.Action{
			{Label: "OK", Do: c.CloseDialog},
		},
	}, true
}

// statusLineLocked composes the one-line status per viewer role.
func (c *Client) statusLineLocked() string {
	if c.data == nil {
		if c.degraded {
			return "offline - polling mode"
		}
		return "connecting"
	}
	prefix := "online"
	if c.degraded {
		prefix = "offline - polling mode"
	}

	pendingClaims := len(c.data.PendingClaims())
	pendingVerifies := 0
	switch c.id.Role {
	case RoleAdmin:
		pendingVerifies = len(c.data.ActionableVerifies())
	case RoleTeam:
		for _, r := range c.data.ClaimVerifyRequests {
			if r.EffectiveStatus() == snapshot.StatusPending {
				pendingVerifies++
			}
		}
	}

	switch c.id.Role {
	case RoleAdmin:
		switch {
		case pendingVerifies > 0 && pendingClaims > 0:
			return fmt.Sprintf("%s - %d verifications and %d claims waiting", prefix, pendingVerifies, pendingClaims)
		case pendingVerifies > 0:
			return fmt.Sprintf("%s - %d verifications waiting", prefix, pendingVerifies)
		case pendingClaims > 0:
			return fmt.Sprintf("%s - %d claims waiting", prefix, pendingClaims)
		default:
			return prefix
		}
	case RoleTeam:
		nowMs := c.clock.Now().UnixMilli()
		if c.data.Cooldown != nil && c.data.Cooldown.UntilMs > nowMs {
			return fmt.Sprintf("wrong answer - blocked %s", formatCountdown(c.data.Cooldown.UntilMs-nowMs))
		}
		if pendingVerifies > 0 {
			return prefix + " - location verification pending"
		}
		if pendingClaims > 0 {
			return fmt.Sprintf("%s - %d claims waiting", prefix, pendingClaims)
		}
		return prefix
	default:
		return prefix
	}
}

// ForceRefresh fetches a fresh snapshot outside the regular transport cycle,
// typically right after a successful mutation.
func (c *Client) ForceRefresh(ctx context.Context) {
	if c.fetcher == nil {
		return
	}
	snap, err := c.fetcher.FetchState(ctx, c.id.Token)
	if err != nil {
		log.Warn().Err(err).Msg("force refresh failed")
		return
	}
	c.HandleSnapshot(snap)
}

// VerifyLocation runs the GPS gate and submits a verification request: the
// position must be acquired within the timeout and lie inside the
// territory's polygon before the server is asked at all.
func (c *Client) VerifyLocation(ctx context.Context, territoryID string) error {
	c.mu.Lock()
	var ring geometry.Ring
	if c.data != nil {
		if t := c.data.TerritoryByID(territoryID); t != nil {
			ring = t.Polygon
		}
	}
	c.mu.Unlock()
	if len(ring) < 3 {
		return &MutationError{Message: "territory has no usable boundary"}
	}

	locCtx, cancel := context.WithTimeout(ctx, LocateTimeout)
	defer cancel()
	pos, err := c.locator.Locate(locCtx)
	if err != nil {
		gerr := &GeolocationError{Err: err}
		c.surfaceError("Location unavailable", gerr.Error())
		return gerr
	}

	if !geometry.PointInPolygon(pos, ring) {
		merr := &MutationError{Message: "you are not inside this territory"}
		c.surfaceError("Outside territory", merr.Message)
		return merr
	}

	if err := c.api.SubmitClaimVerify(ctx, c.id.Token, territoryID, pos.Lat(), pos.Lng()); err != nil {
		c.surfaceError("Verification failed", err.Error())
		return err
	}
	c.ForceRefresh(ctx)
	return nil
}

// SubmitClaimAnswer submits the team's task answer for a territory.
func (c *Client) SubmitClaimAnswer(ctx context.Context, territoryID, answer string) error {
	if err := c.api.SubmitClaim(ctx, c.id.Token, territoryID, answer); err != nil {
		c.surfaceError("Claim failed", err.Error())
		return err
	}
	c.ForceRefresh(ctx)
	return nil
}

// ResolveClaim approves or rejects a pending claim request (admin).
func (c *Client) ResolveClaim(ctx context.Context, requestID string, approve, correct bool) error {
	if err := c.api.ResolveClaim(ctx, c.id.Token, requestID, approve, correct); err != nil {
		c.surfaceError("Resolution failed", err.Error())
		return err
	}
	c.ForceRefresh(ctx)
	return nil
}

// ResolveClaimVerify accepts or rejects a pending verification request
// (admin).
func (c *Client) ResolveClaimVerify(ctx context.Context, requestID string, ok bool) error {
	if err := c.api.ResolveClaimVerify(ctx, c.id.Token, requestID, ok); err != nil {
		c.surfaceError("Resolution failed", err.Error())
		return err
	}
	c.ForceRefresh(ctx)
	return nil
}

// AssignTask attaches the task text to an approved verification request
// (admin).
func (c *Client) AssignTask(ctx context.Context, requestID, task string) error {
	if err := c.api.AssignTask(ctx, c.id.Token, requestID, task); err != nil {
		c.surfaceError("Task assignment failed", err.Error())
		return err
	}
	c.ForceRefresh(ctx)
	return nil
}

// SetOwner force-assigns a territory owner; nil clears ownership (admin).
func (c *Client) SetOwner(ctx context.Context, territoryID string, ownerTeamID *string) error {
	if err := c.api.SetOwner(ctx, c.id.Token, territoryID, ownerTeamID); err != nil {
		c.surfaceError("Owner change failed", err.Error())
		return err
	}
	c.ForceRefresh(ctx)
	return nil
}

// ResetTerritories restarts the game (admin).
func (c *Client) ResetTerritories(ctx context.Context) error {
	if err := c.api.ResetTerritories(ctx, c.id.Token); err != nil {
		c.surfaceError("Reset failed", err.Error())
		return err
	}
	c.ForceRefresh(ctx)
	return nil
}

// SetGameLocked ends or resumes the game (admin).
func (c *Client) SetGameLocked(ctx context.Context, locked bool) error {
	if err := c.api.SetGameLocked(ctx, c.id.Token, locked); err != nil {
		c.surfaceError("Lock change failed", err.Error())
		return err
	}
	c.ForceRefresh(ctx)
	return nil
}

// mutationTimeout bounds fire-and-forget dialog actions, which run outside
// any caller context.
const mutationTimeout = 30 * time.Second

func (c *Client) resolveClaim(requestID string, approve, correct bool) {
	ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
	defer cancel()
	if err := c.ResolveClaim(ctx, requestID, approve, correct); err != nil {
		return
	}
	c.CloseDialog()
}

func (c *Client) resolveVerify(requestID string, ok bool) {
	ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
	defer cancel()
	if err := c.ResolveClaimVerify(ctx, requestID, ok); err != nil {
		return
	}
	c.CloseDialog()
}

// surfaceError queues an error dialog. Errors from user-initiated actions
// are shown verbatim and never retried silently.
func (c *Client) surfaceError(title, message string) {
	c.queue.Enqueue(notify.Item{
		ID:    uuid.New().String(),
		Title: title,
		Body:  message,
		Actions: []notify.Action{
			{Label: "OK", Do: c.CloseDialog},
		},
	})
	c.queue.TryDrain()
}

// formatCountdown renders remaining milliseconds as MM:SS, rounding up.
func formatCountdown(ms int64) string {
	if ms <= 0 {
		return "00:00"
	}
	s := (ms + 999) / 1000
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// teamName resolves a team id to a display name, falling back to the id.
func teamName(s *snapshot.Snapshot, teamID string) string {
	if t := s.TeamByID(teamID); t != nil {
		return t.Name
	}
	return teamID
}

// territoryLabel prefers the digits embedded in the territory id or name,
// which is how operators refer to zones in the field.
func territoryLabel(s *snapshot.Snapshot, territoryID string) string {
	t := s.TerritoryByID(territoryID)
	if t == nil {
		return territoryID
	}
	if n := digits(t.ID); n != "" {
		return n
	}
	if n := digits(t.Name); n != "" {
		return n
	}
	return t.ID
}

func digits(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
