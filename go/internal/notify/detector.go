package notify

// Kind names a notification class. Each kind keeps its own identity set and
// initialization flag.
type Kind string

const (
	KindClaim       Kind = "claim"
	KindClaimVerify Kind = "claim_verify"
)

// Detector finds newly-appeared request ids by differencing the current
// pending set against the one from the previous cycle. The very first
// observation never reports anything: work that was already pending before
// the client connected must not fire a notification storm on startup, so the
// first cycle only initializes the baseline. The initialized flag persists
// for the whole client session; a transport reconnect does not reset it.
type Detector struct {
	kind        Kind
	initialized bool
	seen        map[string]struct{}
}

// NewDetector creates a detector for one notification class.
func NewDetector(kind Kind) *Detector {
	return &Detector{kind: kind, seen: make(map[string]struct{})}
}

// Kind returns the notification class this detector tracks.
func (d *Detector) Kind() Kind { return d.kind }

// Observe records the current pending id set and returns the ids that were
// not pending in the previous cycle, in input order. Empty ids are ignored.
// The recorded set is replaced wholesale, so ids that resolve and later
// reappear are reported again.
func (d *Detector) Observe(current []string) []string {
	next := make(map[string]struct{}, len(current))
	var added []string
	for _, id := range current {
		if id == "" {
			continue
		}
		if _, dup := next[id]; dup {
			continue
		}
		next[id] = struct{}{}
		if d.initialized {
			if _, ok := d.seen[id]; !ok {
				added = append(added, id)
			}
		}
	}
	d.initialized = true
	d.seen = next
	return added
}
