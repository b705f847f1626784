// Package scoring turns a session's swipes into a ranked, category-diverse
// top-N of recommendations.
package scoring

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/okian/swipescore/internal/domain/model"
	"github.com/okian/swipescore/internal/domain/stats"
)

// Default scoring configuration constants.
const (
	DefaultTopN              = 3
	DefaultAffinityThreshold = 3
	DefaultDiversityCap      = 2
)

// Score components.
const (
	superlikeWeight     = 2.5
	likeWeight          = 1.0
	maxTimeBonus        = 1.0
	extraTimeThreshold  = 0.7
	affinityBonus       = 0.5
	freshnessBonus      = 0.3
	freshnessWindowDays = 3.0
)

// UnknownCategory groups uncategorized and unresolved items during diversity re-ranking.
const UnknownCategory = "unknown"

// Reasons attached to scored items.
const (
	ReasonSuperLiked       = "Super liked"
	ReasonLiked            = "Liked"
	ReasonExtraTime        = "Spent extra time viewing"
	ReasonCategoryAffinity = "Matches your category preference"
	ReasonNewlyDiscovered  = "Newly discovered"
)

// SessionScorer scores one session at a time. It holds no mutable state, so a
// single instance may be shared by concurrent callers.
type SessionScorer struct {
	topN              int
	affinityThreshold int
	diversityCap      int
	now               func() time.Time
}

// New creates a SessionScorer with configuration options.
func New(opts ...Option) *SessionScorer {
	s := &SessionScorer{
		topN:              DefaultTopN,
		affinityThreshold: DefaultAffinityThreshold,
		diversityCap:      DefaultDiversityCap,
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TopN returns the maximum number of items Score emits.
func (s *SessionScorer) TopN() int { return s.topN }

// candidate is a scored item plus the category it counts against during re-ranking.
type candidate struct {
	item     model.ScoredItem
	category string
}

// Score ranks the accepted and superliked interactions of a session.
//
// Rejected interactions never appear in the output. Interactions whose item is
// missing from catalog yield a zero-score entry without reasons. The result
// holds at most TopN items, at most diversityCap per category, ranked 1..k.
func (s *SessionScorer) Score(interactions []model.Interaction, catalog []model.CatalogItem) []model.ScoredItem {
	liked := make([]model.Interaction, 0, len(interactions))
	for _, in := range interactions {
		if in.Direction.IsPositive() {
			liked = append(liked, in)
		}
	}
	if len(liked) == 0 {
		return []model.ScoredItem{}
	}

	now := s.now()
	items := indexCatalog(catalog)

	// Engagement baseline spans the whole session, rejects included.
	durations := make([]float64, 0, len(interactions))
	for _, in := range interactions {
		if in.HasDuration() {
			durations = append(durations, float64(*in.DurationMS))
		}
	}
	medianDuration := stats.Median(durations)

	affinity := s.affinityCategories(liked, items)

	candidates := make([]candidate, 0, len(liked))
	for _, in := range liked {
		candidates = append(candidates, scoreInteraction(in, items, medianDuration, affinity, now))
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(b.item.Score, a.item.Score)
	})

	return s.diversify(candidates)
}

// indexCatalog maps item ids to items. The first occurrence of an id wins.
func indexCatalog(catalog []model.CatalogItem) map[string]*model.CatalogItem {
	idx := make(map[string]*model.CatalogItem, len(catalog))
	for i := range catalog {
		if _, dup := idx[catalog[i].ID]; dup {
			continue
		}
		idx[catalog[i].ID] = &catalog[i]
	}
	return idx
}

// affinityCategories returns the categories liked at least affinityThreshold times.
func (s *SessionScorer) affinityCategories(liked []model.Interaction, items map[string]*model.CatalogItem) map[string]struct{} {
	counts := stats.CountByKey(liked, func(in model.Interaction) (string, bool) {
		item, ok := items[in.ItemID]
		if !ok || item.CategoryID == "" {
			return "", false
		}
		return item.CategoryID, true
	})

	affinity := make(map[string]struct{})
	for category, n := range counts {
		if n >= s.affinityThreshold {
			affinity[category] = struct{}{}
		}
	}
	return affinity
}

func scoreInteraction(
	in model.Interaction,
	items map[string]*model.CatalogItem,
	medianDuration float64,
	affinity map[string]struct{},
	now time.Time,
) candidate {
	item, ok := items[in.ItemID]
	if !ok {
		return candidate{
			item:     model.ScoredItem{ItemID: in.ItemID, Score: 0, Reasons: []string{}},
			category: UnknownCategory,
		}
	}

	var score float64
	reasons := make([]string, 0, 4)

	if in.Direction == model.DirectionSuperlike {
		score += superlikeWeight
		reasons = append(reasons, ReasonSuperLiked)
	} else {
		score += likeWeight
		reasons = append(reasons, ReasonLiked)
	}

	if in.HasDuration() && medianDuration > 0 {
		bonus := math.Min(maxTimeBonus, float64(*in.DurationMS)/(2*medianDuration))
		score += bonus
		if bonus > extraTimeThreshold {
			reasons = append(reasons, ReasonExtraTime)
		}
	}

	if _, ok := affinity[item.CategoryID]; ok {
		score += affinityBonus
		reasons = append(reasons, ReasonCategoryAffinity)
	}

	if stats.DaysBetween(item.DiscoveredAt, now) < freshnessWindowDays {
		score += freshnessBonus
		reasons = append(reasons, ReasonNewlyDiscovered)
	}

	category := item.CategoryID
	if category == "" {
		category = UnknownCategory
	}

	return candidate{
		item:     model.ScoredItem{ItemID: in.ItemID, Score: score, Reasons: reasons},
		category: category,
	}
}

// diversify admits candidates in order while their category is under the cap.
// Skipped candidates are dropped, never used to fill remaining slots.
func (s *SessionScorer) diversify(candidates []candidate) []model.ScoredItem {
	out := make([]model.ScoredItem, 0, min(s.topN, len(candidates)))
	perCategory := make(map[string]int)

	for _, c := range candidates {
		if len(out) >= s.topN {
			break
		}
		if perCategory[c.category] >= s.diversityCap {
			continue
		}
		perCategory[c.category]++
		c.item.Rank = len(out) + 1
		out = append(out, c.item)
	}

	return out
}
