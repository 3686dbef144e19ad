// Package ranking scores competitor ads by how long they have been running and
// whether they are still active, and orders them for reference selection.
package ranking

import (
	"math"
	"sort"
	"strings"
	"time"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/models"
)

const (
	// MinDaysRunning is the minimum run length before an ad earns any score.
	MinDaysRunning   = 7
	ActiveMultiplier = 1.5
	DefaultTopK      = 5
)

var startLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type Options struct {
	TopK int
	// ForceActive treats every candidate as active regardless of the payload.
	ForceActive bool
	Now         func() time.Time
}

type Engine struct {
	topK        int
	forceActive bool
	now         func() time.Time
}

func NewEngine(opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{topK: opts.TopK, forceActive: opts.ForceActive, now: opts.Now}
}

type Input struct {
	Candidates []models.ReferenceCandidate
	// Existing holds already persisted records for the session, keyed by ad id.
	Existing map[string]models.RankedReference
	// UpstreamFiltersActive is true when the search only returned running ads.
	UpstreamFiltersActive bool
}

type Result struct {
	// All is every scored and deduplicated reference, best first.
	All []models.RankedReference
	// Top is the first TopK entries of All.
	Top []models.RankedReference
	// Fresh lists the references that are not persisted yet, in fetch order.
	Fresh []models.RankedReference
}

func (e *Engine) TopK() int {
	return e.topK
}

func (e *Engine) Rank(in Input) (*Result, error) {
	if len(in.Candidates) == 0 {
		return nil, apperr.ErrNoCandidatesFound
	}

	now := e.now().UTC()
	seen := make(map[string]struct{}, len(in.Candidates))
	all := make([]models.RankedReference, 0, len(in.Candidates))
	var fresh []models.RankedReference

	for _, c := range in.Candidates {
		id := strings.TrimSpace(c.AdID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if existing, ok := in.Existing[id]; ok {
			all = append(all, existing)
			continue
		}

		active := e.resolveActive(c, in.UpstreamFiltersActive)
		days, _ := DaysRunning(c.DeliveryStart, now)
		ref := models.RankedReference{
			ReferenceCandidate: c,
			Active:             active,
			DaysRunning:        days,
			WinnerScore:        WinnerScore(days, active),
		}
		all = append(all, ref)
		fresh = append(fresh, ref)
	}

	if len(all) == 0 {
		return nil, apperr.ErrNoCandidatesFound
	}

	Sort(all)
	return &Result{All: all, Top: Top(all, e.topK), Fresh: fresh}, nil
}

func (e *Engine) resolveActive(c models.ReferenceCandidate, upstreamFiltersActive bool) bool {
	if e.forceActive {
		return true
	}
	if c.IsActive != nil {
		return *c.IsActive
	}
	return upstreamFiltersActive
}

// DaysRunning returns whole days between start and now. ok is false when start
// is missing or cannot be parsed.
func DaysRunning(start string, now time.Time) (days int, ok bool) {
	t, ok := ParseStart(start)
	if !ok {
		return 0, false
	}
	d := now.UTC().Sub(t)
	if d <= 0 {
		return 0, true
	}
	return int(math.Floor(d.Hours() / 24)), true
}

// ParseStart parses a delivery start timestamp. Values without a zone are UTC.
func ParseStart(start string) (time.Time, bool) {
	start = strings.TrimSpace(start)
	if start == "" {
		return time.Time{}, false
	}
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, start); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func WinnerScore(days int, active bool) float64 {
	if days < MinDaysRunning {
		return 0
	}
	if active {
		return float64(days) * ActiveMultiplier
	}
	return float64(days)
}

// Sort orders refs by score, highest first, keeping fetch order on ties.
func Sort(refs []models.RankedReference) {
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].WinnerScore > refs[j].WinnerScore
	})
}

func Top(refs []models.RankedReference, k int) []models.RankedReference {
	if k > len(refs) {
		k = len(refs)
	}
	out := make([]models.RankedReference, k)
	copy(out, refs[:k])
	return out
}
