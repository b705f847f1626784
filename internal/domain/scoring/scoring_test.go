package scoring_test

import (
	"testing"
	"time"

	"github.com/okian/swipescore/internal/domain/model"
	"github.com/okian/swipescore/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const stale = 10 * 24 * time.Hour

func ms(v int64) *int64 { return &v }

func catalogItem(id, category string, age time.Duration) model.CatalogItem {
	return model.CatalogItem{ID: id, CategoryID: category, DiscoveredAt: fixedNow.Add(-age)}
}

func swipe(itemID string, d model.Direction, duration *int64) model.Interaction {
	return model.Interaction{ItemID: itemID, Direction: d, DurationMS: duration, CreatedAt: fixedNow}
}

func newScorer(opts ...scoring.Option) *scoring.SessionScorer {
	opts = append([]scoring.Option{scoring.WithClock(func() time.Time { return fixedNow })}, opts...)
	return scoring.New(opts...)
}

func itemIDs(items []model.ScoredItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ItemID
	}
	return ids
}

func TestSessionScorer_Score(t *testing.T) {
	Convey("Given a session over two categories with one long superlike", t, func() {
		catalog := []model.CatalogItem{
			catalogItem("x1", "X", stale),
			catalogItem("x2", "X", stale),
			catalogItem("x3", "X", stale),
			catalogItem("y1", "Y", stale),
			catalogItem("y2", "Y", stale),
		}
		interactions := []model.Interaction{
			swipe("x1", model.DirectionSuperlike, ms(9000)),
			swipe("x2", model.DirectionAccept, ms(1000)),
			swipe("x3", model.DirectionAccept, ms(1000)),
			swipe("y1", model.DirectionAccept, ms(1000)),
			swipe("y2", model.DirectionAccept, ms(1000)),
		}

		result := newScorer().Score(interactions, catalog)

		Convey("Then exactly three items are returned", func() {
			So(len(result), ShouldEqual, 3)
		})

		Convey("Then the superliked item ranks first with its reasons", func() {
			So(result[0].ItemID, ShouldEqual, "x1")
			So(result[0].Rank, ShouldEqual, 1)
			So(result[0].Score, ShouldAlmostEqual, 4.0)
			So(result[0].Reasons, ShouldContain, scoring.ReasonSuperLiked)
			So(result[0].Reasons, ShouldContain, scoring.ReasonExtraTime)
			So(result[0].Reasons, ShouldContain, scoring.ReasonCategoryAffinity)
		})

		Convey("Then no more than two category X items are admitted", func() {
			So(itemIDs(result), ShouldResemble, []string{"x1", "x2", "y1"})
			So(result[1].Score, ShouldAlmostEqual, 2.0)
			So(result[2].Score, ShouldAlmostEqual, 1.5)
		})

		Convey("Then ranks are 1, 2, 3", func() {
			for i, it := range result {
				So(it.Rank, ShouldEqual, i+1)
			}
		})

		Convey("Then a second call returns the same output", func() {
			again := newScorer().Score(interactions, catalog)
			So(again, ShouldResemble, result)
		})
	})

	Convey("Given a session where every swipe is a reject", t, func() {
		catalog := []model.CatalogItem{catalogItem("a", "X", stale), catalogItem("b", "X", stale), catalogItem("c", "Y", stale)}
		interactions := []model.Interaction{
			swipe("a", model.DirectionReject, ms(800)),
			swipe("b", model.DirectionReject, nil),
			swipe("c", model.DirectionReject, ms(300)),
		}

		Convey("Then the result is empty", func() {
			result := newScorer().Score(interactions, catalog)
			So(result, ShouldNotBeNil)
			So(result, ShouldBeEmpty)
		})
	})

	Convey("Given no interactions at all", t, func() {
		So(newScorer().Score(nil, nil), ShouldBeEmpty)
	})

	Convey("Given an accepted item missing from the catalog", t, func() {
		interactions := []model.Interaction{swipe("ghost", model.DirectionAccept, ms(500))}

		result := newScorer().Score(interactions, nil)

		Convey("Then a single zero-score placeholder is returned", func() {
			So(len(result), ShouldEqual, 1)
			So(result[0].ItemID, ShouldEqual, "ghost")
			So(result[0].Score, ShouldEqual, 0)
			So(result[0].Rank, ShouldEqual, 1)
			So(result[0].Reasons, ShouldNotBeNil)
			So(result[0].Reasons, ShouldBeEmpty)
		})
	})

	Convey("Given a resolved item and a missing one", t, func() {
		catalog := []model.CatalogItem{catalogItem("real", "", stale)}
		interactions := []model.Interaction{
			swipe("ghost", model.DirectionSuperlike, nil),
			swipe("real", model.DirectionAccept, nil),
		}

		result := newScorer().Score(interactions, catalog)

		Convey("Then the placeholder ranks below the resolved item", func() {
			So(itemIDs(result), ShouldResemble, []string{"real", "ghost"})
			So(result[0].Score, ShouldEqual, 1.0)
		})
	})
}

func TestSessionScorer_Bonuses(t *testing.T) {
	Convey("Given a scorer with a fixed clock", t, func() {
		scorer := newScorer()

		Convey("When no durations were measured", func() {
			result := scorer.Score(
				[]model.Interaction{swipe("a", model.DirectionAccept, nil)},
				[]model.CatalogItem{catalogItem("a", "", stale)},
			)

			Convey("Then the time bonus is inert", func() {
				So(result[0].Score, ShouldEqual, 1.0)
				So(result[0].Reasons, ShouldResemble, []string{scoring.ReasonLiked})
			})
		})

		Convey("When rejected swipes carry durations", func() {
			result := scorer.Score(
				[]model.Interaction{
					swipe("r", model.DirectionReject, ms(10000)),
					swipe("a", model.DirectionAccept, ms(1000)),
				},
				[]model.CatalogItem{catalogItem("a", "", stale), catalogItem("r", "", stale)},
			)

			Convey("Then they still shape the median baseline", func() {
				// median(10000, 1000) = 5500; bonus = 1000 / 11000
				So(len(result), ShouldEqual, 1)
				So(result[0].Score, ShouldAlmostEqual, 1.0+1000.0/11000.0, 1e-9)
				So(result[0].Reasons, ShouldNotContain, scoring.ReasonExtraTime)
			})
		})

		Convey("When a duration is zero", func() {
			result := scorer.Score(
				[]model.Interaction{
					swipe("a", model.DirectionAccept, ms(0)),
					swipe("b", model.DirectionAccept, ms(2000)),
				},
				[]model.CatalogItem{catalogItem("a", "A", stale), catalogItem("b", "B", stale)},
			)

			Convey("Then it neither counts toward the median nor earns a bonus", func() {
				// median(2000) = 2000; b bonus = 0.5
				So(itemIDs(result), ShouldResemble, []string{"b", "a"})
				So(result[0].Score, ShouldAlmostEqual, 1.5)
				So(result[1].Score, ShouldEqual, 1.0)
			})
		})

		Convey("When a view is far above the median", func() {
			result := scorer.Score(
				[]model.Interaction{
					swipe("a", model.DirectionAccept, ms(100000)),
					swipe("b", model.DirectionAccept, ms(1000)),
					swipe("c", model.DirectionAccept, ms(1000)),
				},
				[]model.CatalogItem{catalogItem("a", "A", stale), catalogItem("b", "B", stale), catalogItem("c", "C", stale)},
			)

			Convey("Then the time bonus is capped at one", func() {
				So(result[0].ItemID, ShouldEqual, "a")
				So(result[0].Score, ShouldEqual, 2.0)
				So(result[0].Reasons, ShouldResemble, []string{scoring.ReasonLiked, scoring.ReasonExtraTime})
			})
		})

		Convey("When one item is fresh and an otherwise equal one is not", func() {
			result := scorer.Score(
				[]model.Interaction{
					swipe("old", model.DirectionAccept, nil),
					swipe("new", model.DirectionAccept, nil),
				},
				[]model.CatalogItem{catalogItem("old", "A", stale), catalogItem("new", "B", 2*24*time.Hour)},
			)

			Convey("Then the fresh item scores at least as high", func() {
				So(result[0].ItemID, ShouldEqual, "new")
				So(result[0].Score, ShouldAlmostEqual, 1.3)
				So(result[0].Score, ShouldBeGreaterThanOrEqualTo, result[1].Score)
				So(result[0].Reasons, ShouldContain, scoring.ReasonNewlyDiscovered)
				So(result[1].Reasons, ShouldNotContain, scoring.ReasonNewlyDiscovered)
			})
		})

		Convey("When an item was discovered exactly three days ago", func() {
			result := scorer.Score(
				[]model.Interaction{swipe("a", model.DirectionAccept, nil)},
				[]model.CatalogItem{catalogItem("a", "", 3*24*time.Hour)},
			)

			Convey("Then it is no longer fresh", func() {
				So(result[0].Score, ShouldEqual, 1.0)
			})
		})

		Convey("When only two likes share a category", func() {
			result := scorer.Score(
				[]model.Interaction{
					swipe("a", model.DirectionAccept, nil),
					swipe("b", model.DirectionAccept, nil),
				},
				[]model.CatalogItem{catalogItem("a", "X", stale), catalogItem("b", "X", stale)},
			)

			Convey("Then no affinity bonus is granted", func() {
				for _, it := range result {
					So(it.Score, ShouldEqual, 1.0)
					So(it.Reasons, ShouldNotContain, scoring.ReasonCategoryAffinity)
				}
			})
		})

		Convey("When rejects share a category with likes", func() {
			result := scorer.Score(
				[]model.Interaction{
					swipe("a", model.DirectionAccept, nil),
					swipe("b", model.DirectionAccept, nil),
					swipe("c", model.DirectionReject, nil),
				},
				[]model.CatalogItem{catalogItem("a", "X", stale), catalogItem("b", "X", stale), catalogItem("c", "X", stale)},
			)

			Convey("Then rejects do not count toward affinity", func() {
				So(result[0].Reasons, ShouldNotContain, scoring.ReasonCategoryAffinity)
			})
		})
	})
}

func TestSessionScorer_Diversity(t *testing.T) {
	Convey("Given four liked items in a single category", t, func() {
		var (
			catalog      []model.CatalogItem
			interactions []model.Interaction
		)
		for _, id := range []string{"a", "b", "c", "d"} {
			catalog = append(catalog, catalogItem(id, "X", stale))
			interactions = append(interactions, swipe(id, model.DirectionAccept, nil))
		}

		result := newScorer().Score(interactions, catalog)

		Convey("Then the cap leaves a shorter result without backfill", func() {
			So(itemIDs(result), ShouldResemble, []string{"a", "b"})
		})
	})

	Convey("Given uncategorized and unresolved items", t, func() {
		catalog := []model.CatalogItem{catalogItem("a", "", stale), catalogItem("b", "", stale)}
		interactions := []model.Interaction{
			swipe("a", model.DirectionSuperlike, nil),
			swipe("b", model.DirectionAccept, nil),
			swipe("ghost", model.DirectionAccept, nil),
		}

		result := newScorer().Score(interactions, catalog)

		Convey("Then they share the unknown category cap", func() {
			So(itemIDs(result), ShouldResemble, []string{"a", "b"})
		})
	})

	Convey("Given many categories and a mixed session", t, func() {
		categories := []string{"X", "X", "X", "Y", "Y", "Y", "Z", ""}
		directions := []model.Direction{
			model.DirectionSuperlike, model.DirectionAccept, model.DirectionReject, model.DirectionAccept,
			model.DirectionSuperlike, model.DirectionAccept, model.DirectionReject, model.DirectionAccept,
		}
		var (
			catalog      []model.CatalogItem
			interactions []model.Interaction
		)
		for i, cat := range categories {
			id := string(rune('a' + i))
			catalog = append(catalog, catalogItem(id, cat, time.Duration(i)*24*time.Hour))
			interactions = append(interactions, swipe(id, directions[i], ms(int64(500*(i+1)))))
		}
		rejected := map[string]bool{"c": true, "g": true}
		categoryOf := make(map[string]string)
		for _, it := range catalog {
			categoryOf[it.ID] = it.CategoryID
		}

		for _, topN := range []int{1, 3, 5, 8} {
			result := newScorer(scoring.WithTopN(topN)).Score(interactions, catalog)

			So(len(result), ShouldBeLessThanOrEqualTo, topN)

			perCategory := make(map[string]int)
			for i, it := range result {
				So(rejected[it.ItemID], ShouldBeFalse)
				So(it.Rank, ShouldEqual, i+1)
				if i > 0 {
					So(it.Score, ShouldBeLessThanOrEqualTo, result[i-1].Score)
				}
				cat := categoryOf[it.ItemID]
				if cat == "" {
					cat = scoring.UnknownCategory
				}
				perCategory[cat]++
			}
			for _, n := range perCategory {
				So(n, ShouldBeLessThanOrEqualTo, scoring.DefaultDiversityCap)
			}
		}
	})

	Convey("Given items with equal scores", t, func() {
		catalog := []model.CatalogItem{catalogItem("a", "A", stale), catalogItem("b", "B", stale), catalogItem("c", "C", stale)}
		interactions := []model.Interaction{
			swipe("c", model.DirectionAccept, nil),
			swipe("a", model.DirectionAccept, nil),
			swipe("b", model.DirectionAccept, nil),
		}

		Convey("Then input order breaks the tie", func() {
			So(itemIDs(newScorer().Score(interactions, catalog)), ShouldResemble, []string{"c", "a", "b"})
		})
	})
}

func TestSessionScorer_Options(t *testing.T) {
	Convey("Given a catalog with several categories", t, func() {
		catalog := []model.CatalogItem{
			catalogItem("a", "X", stale),
			catalogItem("b", "X", stale),
			catalogItem("c", "Y", stale),
		}
		interactions := []model.Interaction{
			swipe("a", model.DirectionSuperlike, nil),
			swipe("b", model.DirectionAccept, nil),
			swipe("c", model.DirectionAccept, nil),
		}

		Convey("When top-N is one", func() {
			result := newScorer(scoring.WithTopN(1)).Score(interactions, catalog)
			So(itemIDs(result), ShouldResemble, []string{"a"})
		})

		Convey("When the diversity cap is one", func() {
			result := newScorer(scoring.WithDiversityCap(1)).Score(interactions, catalog)
			So(itemIDs(result), ShouldResemble, []string{"a", "c"})
		})

		Convey("When the affinity threshold is two", func() {
			result := newScorer(scoring.WithAffinityThreshold(2)).Score(interactions, catalog)
			So(result[0].Score, ShouldEqual, 3.0)
			So(result[1].Score, ShouldEqual, 1.5)
			So(result[1].Reasons, ShouldContain, scoring.ReasonCategoryAffinity)
		})

		Convey("When invalid values are supplied", func() {
			s := newScorer(scoring.WithTopN(0), scoring.WithDiversityCap(-1), scoring.WithAffinityThreshold(0), scoring.WithClock(nil))
			So(s.TopN(), ShouldEqual, scoring.DefaultTopN)
			So(len(s.Score(interactions, catalog)), ShouldEqual, 3)
		})
	})

	Convey("Given the default constructor", t, func() {
		s := scoring.New()
		So(s.TopN(), ShouldEqual, scoring.DefaultTopN)
	})
}
