package farm

import (
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"farmzap/internal/model"
)

// Candidate is a migration target. Yield is invalid until an estimate
// resolves.
type Candidate struct {
	Stream model.IncentiveStream
	Yield  decimal.NullDecimal
}

// Filter keeps streams that can receive a migration from source: same LP,
// a different chef, ACTIVE and not yet ended at now.
func Filter(source model.IncentiveStream, streams []model.IncentiveStream, now time.Time) []Candidate {
	out := make([]Candidate, 0, len(streams))
	for _, stream := range streams {
		if !model.SameID(stream.LpID, source.LpID) {
			continue
		}
		if model.SameID(stream.ChefID, source.ChefID) {
			continue
		}
		if !stream.IsActive() {
			continue
		}
		if stream.EndTime <= now.Unix() {
			continue
		}
		out = append(out, Candidate{Stream: stream})
	}
	return out
}

// Sort orders candidates by yield descending with unknown yields last, then
// by total shares descending, then by chef id ascending.
func Sort(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return less(candidates[i], candidates[j])
	})
}

func less(a, b Candidate) bool {
	if a.Yield.Valid != b.Yield.Valid {
		return a.Yield.Valid
	}
	if a.Yield.Valid {
		if cmp := a.Yield.Decimal.Cmp(b.Yield.Decimal); cmp != 0 {
			return cmp > 0
		}
	}
	if cmp := shares(a.Stream).Cmp(shares(b.Stream)); cmp != 0 {
		return cmp > 0
	}
	return compareIDs(a.Stream.ChefID, b.Stream.ChefID) < 0
}

func shares(stream model.IncentiveStream) *big.Int {
	if stream.TotalShares == nil {
		return new(big.Int)
	}
	return stream.TotalShares
}

// compareIDs orders canonical decimal ids numerically without converting
// them to fixed-size integers.
func compareIDs(a, b string) int {
	a, b = model.CanonicalID(a), model.CanonicalID(b)
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Selection tracks the chosen target across re-sorts.
type Selection struct {
	mu     sync.Mutex
	chefID string
}

func (s *Selection) Select(chefID string) {
	s.mu.Lock()
	s.chefID = model.CanonicalID(chefID)
	s.mu.Unlock()
}

func (s *Selection) ChefID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chefID
}

func (s *Selection) Clear() {
	s.Select("")
}

// Reconcile keeps the selection when its target is still among candidates
// and clears it otherwise. It returns the selection after reconciling.
func (s *Selection) Reconcile(candidates []Candidate) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chefID == "" {
		return ""
	}
	for _, c := range candidates {
		if model.SameID(c.Stream.ChefID, s.chefID) {
			return s.chefID
		}
	}
	s.chefID = ""
	return ""
}
